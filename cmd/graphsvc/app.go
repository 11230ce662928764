// Package main is the composition root: it wires config, logging, the
// graph gateway, and all ten core components, and exposes a thin
// net/http + chi binding of the resource surfaces in spec.md §6. Per
// spec.md §1 the router itself is an excluded collaborator — it carries
// no business logic beyond decoding a request and calling into a
// component.
package main

import (
	"context"
	"fmt"

	"github.com/graphkg/service/internal/config"
	synthesis "github.com/graphkg/service/internal/context"
	"github.com/graphkg/service/internal/dedup"
	"github.com/graphkg/service/internal/dlq"
	"github.com/graphkg/service/internal/embedding"
	"github.com/graphkg/service/internal/events"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/llm"
	"github.com/graphkg/service/internal/logging"
	"github.com/graphkg/service/internal/metrics"
	"github.com/graphkg/service/internal/migrate"
	"github.com/graphkg/service/internal/repository"
	"github.com/graphkg/service/internal/search"
	"github.com/graphkg/service/internal/verify"
)

// app holds every wired component the HTTP layer and CLI subcommands call
// into. Nothing here does business logic; it is pure composition.
type app struct {
	cfg *config.Config

	gw         *graph.Gateway
	repo       *repository.Repository
	recon      *dedup.Reconciler
	embed      *embedding.Client
	searcher   *search.Searcher
	synth      *synthesis.Synthesizer
	stream     *events.Stream
	dlqStore   *dlq.Store
	dlqProc    *dlq.Processor
	migrations *migrate.Runner
	verifier   *verify.Verifier
	metrics    *metrics.Metrics
}

// newApp connects every collaborator a component needs. It does not start
// any background loop; callers (serve/migrate/cleanup subcommands) decide
// what to run.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	gw, err := graph.NewGateway(graph.Config{
		URI:                   cfg.Graph.URI,
		User:                  cfg.Graph.User,
		Password:              cfg.Graph.Password,
		Database:              cfg.Graph.Database,
		MaxConnectionPoolSize: cfg.Graph.MaxPoolSize,
		ConnectionAcquireWait: cfg.Graph.ConnAcquireWait,
		MaxConnectionLifetime: cfg.Graph.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect graph store: %w", err)
	}
	if err := gw.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("verify graph store connectivity: %w", err)
	}

	embed, err := embedding.NewClient(cfg.Embedding, cfg.Cache.TTL, cfg.Cache.RedisAddr)
	if err != nil {
		return nil, fmt.Errorf("create embedding client: %w", err)
	}

	dlqStore, err := dlq.NewStore(ctx, cfg.DLQStore.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("connect dlq store: %w", err)
	}

	repo := repository.New(gw)
	m := metrics.New("graphkg")

	titleFallback, err := llm.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create llm title-extraction client: %w", err)
	}

	a := &app{
		cfg:        cfg,
		gw:         gw,
		repo:       repo,
		recon:      dedup.New(gw),
		embed:      embed,
		searcher:   search.New(gw, embed, cfg.Search),
		synth:      synthesis.New(gw, cfg.Synthesis),
		stream:     events.New(gw),
		dlqStore:   dlqStore,
		dlqProc:    dlq.NewProcessor(dlqStore, repo, cfg.DLQ),
		migrations: migrate.NewWithTitleFallback(gw, titleFallback),
		verifier:   verify.New(gw, repo),
		metrics:    m,
	}
	return a, nil
}

func (a *app) Close() {
	if a.dlqStore != nil {
		if err := a.dlqStore.Close(); err != nil {
			logging.Warn("closing dlq store", "error", err)
		}
	}
}
