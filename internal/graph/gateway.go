// Package graph owns the connection pool to the graph store and the one
// place every other component funnels queries through: parametric execution,
// numeric normalization, and transactional read/write sessions (spec.md
// §4.1, "Graph Gateway").
//
// Adapted from the teacher's internal/graph/neo4j_client.go: the pool
// configuration, health check, and read/write routing idiom are kept
// verbatim in shape; the coderisk-specific query helpers (QueryCoupling,
// QueryCoChange) are replaced by the generic Execute/WithReadTx/WithWriteTx
// contract spec.md §4.1 names.
package graph

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/logging"
)

// Row is a single returned record, keyed by the query's RETURN aliases.
type Row map[string]any

// Gateway owns the neo4j driver and connection pool and is the sole
// component in the service that imports the neo4j driver package directly.
type Gateway struct {
	driver   neo4j.DriverWithContext
	database string
}

// Config configures the underlying driver's connection pool. Field names
// and defaults mirror the teacher's NewClientWithDatabase.
type Config struct {
	URI                     string
	User                    string
	Password                string
	Database                string
	MaxConnectionPoolSize   int
	ConnectionAcquireWait   time.Duration
	MaxConnectionLifetime   time.Duration
}

// NewGateway opens a driver and pool against the graph store. It does not
// verify connectivity; call VerifyConnectivity for that (kept as a separate
// step so the caller controls retry/backoff around the first probe).
func NewGateway(cfg Config) (*Gateway, error) {
	if cfg.MaxConnectionPoolSize <= 0 {
		cfg.MaxConnectionPoolSize = 50
	}
	if cfg.ConnectionAcquireWait <= 0 {
		cfg.ConnectionAcquireWait = 60 * time.Second
	}
	if cfg.MaxConnectionLifetime <= 0 {
		cfg.MaxConnectionLifetime = time.Hour
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			c.ConnectionAcquisitionTimeout = cfg.ConnectionAcquireWait
			c.MaxConnectionLifetime = cfg.MaxConnectionLifetime
		})
	if err != nil {
		return nil, graphkgerrors.ServiceUnavailable(err, "open graph driver")
	}

	return &Gateway{driver: driver, database: cfg.Database}, nil
}

// VerifyConnectivity is the liveness probe used by health endpoints
// (spec.md §4.1).
func (g *Gateway) VerifyConnectivity(ctx context.Context) error {
	if err := g.driver.VerifyConnectivity(ctx); err != nil {
		return graphkgerrors.ServiceUnavailable(err, "graph store unreachable")
	}
	return nil
}

// Close releases the driver's pool.
func (g *Gateway) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

// Execute runs a single auto-committed query with read routing and returns
// normalized rows. Use WithWriteTx for anything that mutates the graph.
func (g *Gateway) Execute(ctx context.Context, query string, params map[string]any) ([]Row, error) {
	result, err := neo4j.ExecuteQuery(ctx, g.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(g.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return recordsToRows(result.Records), nil
}

// ReadTx is the function signature passed to WithReadTx: it receives a
// transaction-scoped query runner and returns an arbitrary result plus error.
type ReadTx func(tx Runner) (any, error)

// WriteTx is the function signature passed to WithWriteTx.
type WriteTx func(tx Runner) (any, error)

// Runner is the minimal surface a unit of work needs to run parametric
// queries within a transaction; it is satisfied by neo4j.ManagedTransaction.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (neo4j.ResultWithContext, error)
}

// WithReadTx acquires a read-routed session, runs fn inside a managed
// transaction, and guarantees the session is closed on every exit path
// (spec.md §4.1: "guaranteed release on all exit paths including
// exception").
func (g *Gateway) WithReadTx(ctx context.Context, fn ReadTx) (any, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
		AccessMode:   neo4j.AccessModeRead,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return fn(tx)
	})
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return result, nil
}

// WithWriteTx acquires a write-routed session and runs fn inside a managed
// transaction with automatic retry on transient cluster errors (the
// driver's default behavior for ExecuteWrite).
func (g *Gateway) WithWriteTx(ctx context.Context, fn WriteTx) (any, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: g.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	result, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return fn(tx)
	})
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return result, nil
}

// RunAndCollect runs query inside an already-open transaction and returns
// normalized rows, for use inside WithReadTx/WithWriteTx callbacks.
func RunAndCollect(ctx context.Context, tx Runner, query string, params map[string]any) ([]Row, error) {
	result, err := tx.Run(ctx, query, params)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, classifyQueryError(err)
	}
	return recordsToRows(records), nil
}

func recordsToRows(records []*neo4j.Record) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := make(Row, len(rec.Keys))
		for _, key := range rec.Keys {
			v, _ := rec.Get(key)
			row[key] = v
		}
		rows = append(rows, row)
	}
	return rows
}

// classifyQueryError maps a driver error to the service's closed error
// taxonomy. Connectivity failures surface as ServiceUnavailable; anything
// else (bad Cypher, constraint violation, type mismatch) is Internal —
// spec.md §4.1 "Failure semantics".
func classifyQueryError(err error) error {
	if err == nil {
		return nil
	}
	if neo4j.IsConnectivityError(err) || neo4j.IsTransientError(err) {
		return graphkgerrors.ServiceUnavailable(err, "graph store connectivity")
	}
	return graphkgerrors.Internal(err, "graph query failed")
}

// NormalizeValue coerces a value read from the graph store into the
// service's canonical Go types, per spec.md §4.1 "Numeric normalization":
// nil → the type's zero value, the driver's big-integer variant → int64,
// string → parse-or-zero, float → truncate for integer call sites. Callers
// needing a float should type-assert float64 directly; NormalizeValue is
// for call sites that want an int64 regardless of the variant the store
// returned.
func NormalizeValue(v any) int64 {
	switch t := v.(type) {
	case nil:
		return 0
	case int64:
		return t
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		n, err := strconv.ParseInt(t, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		logging.Debug("graph: unrecognized numeric variant during normalization", "type", fmt.Sprintf("%T", v))
		return 0
	}
}

// NormalizeString coerces a nullable string property, treating nil as "".
func NormalizeString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// NormalizeBool coerces a nullable bool property, treating nil as false.
func NormalizeBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// NodeProperties extracts the property map of a value returned from a
// `RETURN n`-shaped query. Returns nil if v is not a node (e.g. the match
// failed and the driver returned nil).
func NodeProperties(v any) map[string]any {
	node, ok := v.(dbtype.Node)
	if !ok {
		return nil
	}
	return node.Props
}

// NormalizeStringSlice coerces a nullable []any-of-strings property
// (Cypher list properties decode to []any) into a []string.
func NormalizeStringSlice(v any) []string {
	if v == nil {
		return nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
