// Package config loads and validates the service's boot-time configuration:
// graph-store endpoint and credentials, embedding-provider key, pool size,
// admin allowlist, similarity thresholds, and default limits (spec.md §6
// "Environment"). Adapted from the teacher's internal/config/config.go,
// replacing the CLI's storage/github/risk/budget sections with the graph
// service's own sections while keeping the viper+godotenv loading idiom.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the knowledge graph service.
type Config struct {
	// Deployment mode: "production", "ci", "local"
	Mode string `yaml:"mode"`

	Graph      GraphConfig      `yaml:"graph"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	DLQStore   DLQStoreConfig   `yaml:"dlq_store"`
	Cache      CacheConfig      `yaml:"cache"`
	Search     SearchConfig     `yaml:"search"`
	Synthesis  SynthesisConfig  `yaml:"synthesis"`
	EventsCfg  EventsConfig     `yaml:"events"`
	DLQ        DLQConfig        `yaml:"dlq"`
	Admin      AdminConfig      `yaml:"admin"`
}

// GraphConfig configures the Neo4j driver (C1 Graph Gateway).
type GraphConfig struct {
	URI             string        `yaml:"uri"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Database        string        `yaml:"database"`
	MaxPoolSize     int           `yaml:"max_pool_size"`
	ConnAcquireWait time.Duration `yaml:"conn_acquire_wait"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// EmbeddingConfig configures the external embedding provider (C5).
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"` // "openai" | "none"
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
	RPMLimit  int    `yaml:"rpm_limit"`
}

// DLQStoreConfig configures the relational store backing the dead-letter
// queue (C8). The graph itself is not used for DLQ persistence because DLQ
// entries must survive even if the graph store is the thing that is down.
type DLQStoreConfig struct {
	PostgresDSN string `yaml:"postgres_dsn"`
}

// CacheConfig configures the embedding vector cache and shared Redis cache.
type CacheConfig struct {
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// SearchConfig holds the semantic search score thresholds of spec.md §4.5.
type SearchConfig struct {
	MinScore          float64 `yaml:"min_score"`
	DuplicateThreshold float64 `yaml:"duplicate_threshold"`
	HighThreshold     float64 `yaml:"high_threshold"`
	MediumThreshold   float64 `yaml:"medium_threshold"`
	DefaultLimit      int     `yaml:"default_limit"`
}

// SynthesisConfig holds the C6 session-start fan-out budget and
// tokenEstimate heuristic coefficients (spec.md §4.6, a product-owned
// formula per the Open Questions in §9).
type SynthesisConfig struct {
	WallClockBudget  time.Duration `yaml:"wall_clock_budget"`
	DefaultEventLimit int          `yaml:"default_event_limit"`
	TeamEventDays    int           `yaml:"team_event_days"`
	TokenBase        int           `yaml:"token_base"`
	TokenPerTask     int           `yaml:"token_per_task"`
	TokenPerEvent    int           `yaml:"token_per_event"`
	TokenForCharter  int           `yaml:"token_for_charter"`
	TokenPerTeamEvent int          `yaml:"token_per_team_event"`
}

// EventsConfig holds the C7 long-poll defaults.
type EventsConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	MaxTimeout   time.Duration `yaml:"max_timeout"`
	MaxLimit     int           `yaml:"max_limit"`
}

// DLQConfig holds the C8 retry ladder and abandonment threshold.
type DLQConfig struct {
	RetryLadder []time.Duration `yaml:"retry_ladder"`
	MaxRetries  int             `yaml:"max_retries"`
}

// AdminConfig is the process-wide, read-only admin allowlist used by
// cleanup operations (spec.md §5 "Shared resources").
type AdminConfig struct {
	Allowlist []string `yaml:"allowlist"`
}

// Default returns sensible default configuration.
func Default() *Config {
	return &Config{
		Mode: "local",
		Graph: GraphConfig{
			Database:        "neo4j",
			MaxPoolSize:     50,
			ConnAcquireWait: 60 * time.Second,
			ConnMaxLifetime: time.Hour,
		},
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			Model:     "text-embedding-3-small",
			Dimension: 1536,
			RPMLimit:  1000,
		},
		Cache: CacheConfig{
			TTL: 24 * time.Hour,
		},
		Search: SearchConfig{
			MinScore:           0.75,
			DuplicateThreshold: 0.97,
			HighThreshold:      0.90,
			MediumThreshold:    0.80,
			DefaultLimit:       10,
		},
		Synthesis: SynthesisConfig{
			WallClockBudget:   2 * time.Second,
			DefaultEventLimit: 25,
			TeamEventDays:     7,
			TokenBase:         500,
			TokenPerTask:      50,
			TokenPerEvent:     30,
			TokenForCharter:   200,
			TokenPerTeamEvent: 40,
		},
		EventsCfg: EventsConfig{
			PollInterval: 500 * time.Millisecond,
			MaxTimeout:   60 * time.Second,
			MaxLimit:     200,
		},
		DLQ: DLQConfig{
			RetryLadder: []time.Duration{60 * time.Second, 5 * time.Minute, 30 * time.Minute},
			MaxRetries:  3,
		},
	}
}

// Load loads configuration from an optional YAML file, .env files, and
// environment variables (prefix GRAPHKG_), in increasing precedence.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("graph", cfg.Graph)
	v.SetDefault("embedding", cfg.Embedding)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("search", cfg.Search)
	v.SetDefault("synthesis", cfg.Synthesis)
	v.SetDefault("events", cfg.EventsCfg)
	v.SetDefault("dlq", cfg.DLQ)

	v.SetEnvPrefix("GRAPHKG")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}
}

// applyEnvOverrides applies well-known environment variable overrides with
// precedence over both the config file and viper's own env binding (mainly
// so secrets never need to round-trip through a YAML file on disk).
func applyEnvOverrides(cfg *Config) {
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		cfg.Graph.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		cfg.Graph.User = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		cfg.Graph.Password = pass
	} else if cfg.Graph.Password == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if pw, err := km.GetGraphPassword(); err == nil && pw != "" {
				cfg.Graph.Password = pw
			}
		}
	}

	if key := os.Getenv("EMBEDDING_API_KEY"); key != "" {
		cfg.Embedding.APIKey = key
	} else if cfg.Embedding.APIKey == "" {
		km := NewKeyringManager()
		if km.IsAvailable() {
			if key, err := km.GetEmbeddingKey(); err == nil && key != "" {
				cfg.Embedding.APIKey = key
			}
		}
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		cfg.Embedding.Model = model
	}

	if dsn := os.Getenv("DLQ_POSTGRES_DSN"); dsn != "" {
		cfg.DLQStore.PostgresDSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Cache.RedisAddr = addr
	}

	if minScore := os.Getenv("SEARCH_MIN_SCORE"); minScore != "" {
		if v, err := strconv.ParseFloat(minScore, 64); err == nil {
			cfg.Search.MinScore = v
		}
	}

	if mode := os.Getenv("GRAPHKG_MODE"); mode != "" {
		cfg.Mode = mode
	}
}

// Save writes configuration to a YAML file, matching the teacher's Save.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("mode", c.Mode)
	v.Set("graph", c.Graph)
	v.Set("embedding", c.Embedding)
	v.Set("cache", c.Cache)
	v.Set("search", c.Search)
	v.Set("synthesis", c.Synthesis)
	v.Set("events", c.EventsCfg)
	v.Set("dlq", c.DLQ)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}
