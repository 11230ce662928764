package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/graphkg/service/internal/errors"
)

// ValidationContext specifies which configuration sections a command
// actually needs, so `graphsvc migrate --dry-run` isn't blocked on a
// missing embedding key it never touches.
type ValidationContext string

const (
	// ValidationContextServe - the long-running server needs the graph
	// store, the DLQ's relational store, and (optionally) the embedding
	// provider for search/dedup.
	ValidationContextServe ValidationContext = "serve"
	// ValidationContextMigrate - the migration/cleanup runner only needs
	// the graph store.
	ValidationContextMigrate ValidationContext = "migrate"
	// ValidationContextAll validates every section.
	ValidationContextAll ValidationContext = "all"
)

// ValidationResult accumulates errors and warnings across a validation pass.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// AddError records a fatal validation failure.
func (vr *ValidationResult) AddError(format string, args ...interface{}) {
	vr.Valid = false
	vr.Errors = append(vr.Errors, fmt.Sprintf(format, args...))
}

// AddWarning records a non-fatal issue.
func (vr *ValidationResult) AddWarning(format string, args ...interface{}) {
	vr.Warnings = append(vr.Warnings, fmt.Sprintf(format, args...))
}

// HasErrors reports whether the result carries any fatal errors.
func (vr *ValidationResult) HasErrors() bool {
	return !vr.Valid || len(vr.Errors) > 0
}

// Error renders the accumulated errors and warnings as a single message.
func (vr *ValidationResult) Error() string {
	if !vr.HasErrors() {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range vr.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err))
	}
	if len(vr.Warnings) > 0 {
		sb.WriteString("warnings:\n")
		for _, warn := range vr.Warnings {
			sb.WriteString(fmt.Sprintf("  - %s\n", warn))
		}
	}
	return sb.String()
}

// Validate validates configuration for the given context with auto-detected
// deployment mode.
func (c *Config) Validate(ctx ValidationContext) *ValidationResult {
	return c.ValidateWithMode(ctx, DetectMode())
}

// ValidateWithMode validates configuration for the given context and an
// explicit deployment mode.
func (c *Config) ValidateWithMode(ctx ValidationContext, mode DeploymentMode) *ValidationResult {
	result := &ValidationResult{Valid: true}

	switch ctx {
	case ValidationContextServe:
		c.validateGraph(result, true, mode)
		c.validateDLQStore(result, true, mode)
		c.validateEmbedding(result, false)
		c.validateSearch(result)
	case ValidationContextMigrate:
		c.validateGraph(result, true, mode)
	case ValidationContextAll:
		c.validateGraph(result, true, mode)
		c.validateDLQStore(result, true, mode)
		c.validateEmbedding(result, false)
		c.validateSearch(result)
		c.validateCache(result)
	}

	return result
}

// ValidateOrFatal validates and panics if the configuration is unusable.
func (c *Config) ValidateOrFatal(ctx ValidationContext) {
	mode := DetectMode()
	result := c.ValidateWithMode(ctx, mode)
	if result.HasErrors() {
		panic(errors.Validation("%s(mode=%s): %s", ctx, mode, result.Error()))
	}
}

func (c *Config) validateGraph(result *ValidationResult, required bool, mode DeploymentMode) {
	if c.Graph.URI == "" {
		if required {
			result.AddError("NEO4J_URI is required but not set")
		} else {
			result.AddWarning("NEO4J_URI is not set")
		}
	} else if _, err := url.Parse(c.Graph.URI); err != nil {
		result.AddError("NEO4J_URI is invalid: %v", err)
	} else if strings.Contains(c.Graph.URI, "localhost") && mode.RequiresSecureCredentials() {
		result.AddError("NEO4J_URI uses localhost, which is not allowed in %s mode; provide a remote URI via %s", mode, mode.ConfigSource())
	}

	if c.Graph.User == "" {
		if required {
			result.AddError("NEO4J_USER is required but not set")
		} else {
			result.AddWarning("NEO4J_USER is not set")
		}
	}

	if c.Graph.Password == "" {
		if required {
			result.AddError("NEO4J_PASSWORD is required but not set; set it via environment variable or the OS keychain")
		} else {
			result.AddWarning("NEO4J_PASSWORD is not set")
		}
	} else if mode.RequiresSecureCredentials() {
		for _, insecure := range []string{"password", "neo4j", "changeme"} {
			if c.Graph.Password == insecure {
				result.AddError("NEO4J_PASSWORD is set to an insecure default (%s); not allowed in %s mode", insecure, mode)
			}
		}
	}

	if c.Graph.MaxPoolSize <= 0 {
		result.AddWarning("graph max pool size is not set, will use default")
	}
}

func (c *Config) validateDLQStore(result *ValidationResult, required bool, mode DeploymentMode) {
	if c.DLQStore.PostgresDSN == "" {
		if required {
			result.AddError("DLQ_POSTGRES_DSN is required but not set")
		} else {
			result.AddWarning("DLQ_POSTGRES_DSN is not set; dead-letter entries will not survive a restart")
		}
		return
	}

	if !strings.HasPrefix(c.DLQStore.PostgresDSN, "postgres://") && !strings.HasPrefix(c.DLQStore.PostgresDSN, "postgresql://") {
		result.AddError("DLQ_POSTGRES_DSN must start with postgres:// or postgresql://")
	}
	if strings.Contains(c.DLQStore.PostgresDSN, "sslmode=disable") && mode.RequiresSecureCredentials() {
		result.AddError("DLQ_POSTGRES_DSN has sslmode=disable, which is not allowed in %s mode", mode)
	}
}

func (c *Config) validateEmbedding(result *ValidationResult, required bool) {
	if c.Embedding.Provider == "none" {
		result.AddWarning("embedding provider is \"none\"; semantic search and duplicate detection will be unavailable")
		return
	}

	if c.Embedding.APIKey == "" {
		if required {
			result.AddError("EMBEDDING_API_KEY is required but not set")
		} else {
			result.AddWarning("EMBEDDING_API_KEY is not set; semantic search will return 503 until configured")
		}
	}
	if c.Embedding.Dimension <= 0 {
		result.AddError("embedding dimension must be positive, got %d", c.Embedding.Dimension)
	}
}

func (c *Config) validateSearch(result *ValidationResult) {
	thresholds := []float64{c.Search.MinScore, c.Search.MediumThreshold, c.Search.HighThreshold, c.Search.DuplicateThreshold}
	for i := 1; i < len(thresholds); i++ {
		if thresholds[i] <= thresholds[i-1] {
			result.AddError("search thresholds must be strictly ascending: min=%v < medium=%v < high=%v < duplicate=%v",
				c.Search.MinScore, c.Search.MediumThreshold, c.Search.HighThreshold, c.Search.DuplicateThreshold)
			break
		}
	}
	for _, t := range thresholds {
		if t < 0 || t > 1 {
			result.AddError("search threshold %.2f is out of range [0,1]", t)
		}
	}
}

func (c *Config) validateCache(result *ValidationResult) {
	if c.Cache.RedisAddr == "" {
		result.AddWarning("REDIS_ADDR is not set; embedding rate limiting falls back to in-process state")
	}
}

// RequireGraph returns an error if the graph store configuration is unusable.
func (c *Config) RequireGraph() error {
	result := &ValidationResult{Valid: true}
	c.validateGraph(result, true, DetectMode())
	if result.HasErrors() {
		return errors.Validation("%s", result.Error())
	}
	return nil
}

// RequireDLQStore returns an error if the DLQ's relational store
// configuration is unusable.
func (c *Config) RequireDLQStore() error {
	result := &ValidationResult{Valid: true}
	c.validateDLQStore(result, true, DetectMode())
	if result.HasErrors() {
		return errors.Validation("%s", result.Error())
	}
	return nil
}
