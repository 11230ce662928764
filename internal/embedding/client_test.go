package embedding

import (
	"context"
	"testing"
	"time"

	"github.com/graphkg/service/internal/config"
	graphkgerrors "github.com/graphkg/service/internal/errors"
)

func TestNewClientDisabledProvider(t *testing.T) {
	c, err := NewClient(config.EmbeddingConfig{Provider: "none"}, time.Minute, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.Enabled() {
		t.Error("Enabled() should be false for provider=none")
	}
}

func TestEmbedDisabledReturnsServiceUnavailable(t *testing.T) {
	c, _ := NewClient(config.EmbeddingConfig{Provider: "none"}, time.Minute, "")
	_, err := c.Embed(context.Background(), []string{"hello"}, KindDocument)
	if err == nil {
		t.Fatal("expected an error")
	}
	e, ok := graphkgerrors.As(err)
	if !ok || e.Kind != graphkgerrors.KindServiceUnavailable {
		t.Errorf("Embed() error = %v, want KindServiceUnavailable", err)
	}
}

func TestEmbedEmptyInput(t *testing.T) {
	c, _ := NewClient(config.EmbeddingConfig{Provider: "none"}, time.Minute, "")
	vecs, err := c.Embed(context.Background(), nil, KindQuery)
	if err != nil || vecs != nil {
		t.Errorf("Embed(nil) = (%v, %v), want (nil, nil)", vecs, err)
	}
}

func TestCacheKeyDistinguishesKind(t *testing.T) {
	q := cacheKey("m", KindQuery, "same text")
	d := cacheKey("m", KindDocument, "same text")
	if q == d {
		t.Error("cacheKey should differ between query and document kinds for the same text")
	}
}

func TestCacheKeyDeterministic(t *testing.T) {
	a := cacheKey("m", KindQuery, "text")
	b := cacheKey("m", KindQuery, "text")
	if a != b {
		t.Error("cacheKey should be deterministic for identical inputs")
	}
}
