// Package embedding implements the Embed(texts, kind) contract of
// spec.md §4.5: turning node text into fixed-length vectors for C5
// semantic search, with the provider call rate-limited and cached.
package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sashabaranov/go-openai"

	"github.com/graphkg/service/internal/config"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/logging"
)

// Kind distinguishes a query embedding from a document embedding, per
// spec.md §4.5. Some embedding models encode the two differently; callers
// must say which one they're asking for even when the active model treats
// them identically.
type Kind string

const (
	KindQuery    Kind = "query"
	KindDocument Kind = "document"
)

// Vector is a single fixed-length embedding.
type Vector []float32

// Client wraps the configured embedding provider with rate limiting and an
// in-memory result cache. Grounded on the teacher's internal/llm/client.go
// provider-dispatch shape (NewClient picks a provider from config/env and
// the zero-value "none" provider is a legitimate disabled state, not an
// error) and internal/cache/manager.go's patrickmn/go-cache usage pattern.
type Client struct {
	provider  string
	openai    *openai.Client
	model     string
	dimension int
	limiter   *rateLimiter
	cache     *cache.Cache
}

// NewClient builds an embedding client from configuration. A "none"
// provider yields a disabled client: Embed will fail with
// ServiceUnavailable rather than attempt a call, matching spec.md §4.5's
// "vector-index/embedding capability absent" failure path.
func NewClient(cfg config.EmbeddingConfig, cacheTTL time.Duration, redisAddr string) (*Client, error) {
	c := &Client{
		provider:  cfg.Provider,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		cache:     cache.New(cacheTTL, 2*cacheTTL),
	}

	if cfg.Provider != "openai" {
		logging.Info("embedding provider disabled", "provider", cfg.Provider)
		return c, nil
	}
	if cfg.APIKey == "" {
		logging.Warn("embedding provider configured as openai but no API key set")
		return c, nil
	}

	c.openai = openai.NewClient(cfg.APIKey)
	limiter, err := newRateLimiter(redisAddr, cfg.RPMLimit)
	if err != nil {
		logging.Warn("embedding rate limiter unavailable, proceeding unthrottled", "error", err)
	} else {
		c.limiter = limiter
	}
	return c, nil
}

// Enabled reports whether a live provider is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.openai != nil
}

func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	return c.limiter.Close()
}

// Embed returns one vector per input text, in order. Cache hits never
// count against the rate limiter; only the uncached remainder is sent to
// the provider, as a single batched request.
func (c *Client) Embed(ctx context.Context, texts []string, kind Kind) ([]Vector, error) {
	if !c.Enabled() {
		return nil, graphkgerrors.ServiceUnavailable(nil, "embedding provider not configured")
	}
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([]Vector, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		key := cacheKey(c.model, kind, text)
		if v, found := c.cache.Get(key); found {
			results[i] = v.(Vector)
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}

	if len(missTexts) == 0 {
		return results, nil
	}

	if c.limiter != nil && !c.limiter.Allow(ctx) {
		return nil, graphkgerrors.Internal(nil, "embedding provider rate limit exceeded").
			WithContext("retryable", true)
	}

	resp, err := c.openai.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: missTexts,
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, graphkgerrors.Internal(err, "embedding request failed").
			WithContext("retryable", true)
	}
	if len(resp.Data) != len(missTexts) {
		return nil, graphkgerrors.Internal(nil, "embedding provider returned %d vectors for %d inputs",
			len(resp.Data), len(missTexts)).WithContext("retryable", true)
	}

	for j, data := range resp.Data {
		i := missIdx[j]
		vec := Vector(data.Embedding)
		results[i] = vec
		c.cache.SetDefault(cacheKey(c.model, kind, missTexts[j]), vec)
	}

	return results, nil
}

func cacheKey(model string, kind Kind, text string) string {
	h := sha256.Sum256([]byte(model + "|" + string(kind) + "|" + text))
	return hex.EncodeToString(h[:])
}
