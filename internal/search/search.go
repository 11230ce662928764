// Package search implements semantic search (C5, spec.md §4.5): turning a
// query string into a node ranking via the embedding provider and the
// graph store's vector index.
package search

import (
	"context"
	"fmt"
	"sort"

	"github.com/graphkg/service/internal/config"
	"github.com/graphkg/service/internal/embedding"
	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/models"
	"github.com/graphkg/service/internal/tenant"
)

// Result is one ranked hit: the node's properties, its cosine similarity
// score against the query, and the relationship kind that score maps to.
type Result struct {
	NodeID          string
	Label           string
	Properties      map[string]any
	Score           float64
	RelationshipType models.RelationshipType
}

// Filters narrows a search to a label and/or status, per spec.md §4.5 step 2.
type Filters struct {
	Label  string
	Status string
	Limit  int
}

// Searcher runs the five-step semantic search algorithm of spec.md §4.5.
// Grounded on the teacher's internal/graph/semantic_matcher.go for the
// general idea of a similarity score driving a tiered classification
// (there: ValidateTemporalMatch's medium/high boost bands; here: the
// DUPLICATE_OF/HIGHLY_RELATED_TO/RELATED_TO/LOOSELY_RELATED_TO bands) —
// the actual vector math is delegated to the graph store's native vector
// index rather than reimplemented in Go, since that index is what the
// teacher's own ExecuteQueryWithReadersRouting-routed queries would use
// for anything at this scale.
type Searcher struct {
	gw       *graph.Gateway
	embed    *embedding.Client
	cfg      config.SearchConfig
	index    string
}

// IndexName is the vector index created over node embedding properties.
// A single index spans all labels; label filtering happens in the Cypher
// WHERE clause alongside tenant scoping.
const IndexName = "node_embeddings"

func New(gw *graph.Gateway, embed *embedding.Client, cfg config.SearchConfig) *Searcher {
	return &Searcher{gw: gw, embed: embed, cfg: cfg, index: IndexName}
}

// Search runs the algorithm: embed the query, fetch the top 2*limit
// candidates from the vector index scoped to the tenant (and optionally a
// label/status), drop anything under MinScore, truncate to limit, and
// assign each survivor a relationship kind from the score thresholds.
func (s *Searcher) Search(ctx context.Context, tenantID, query string, filters Filters) ([]Result, error) {
	limit := filters.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	vectors, err := s.embed.Embed(ctx, []string{query}, embedding.KindQuery)
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, graphkgerrors.Internal(nil, "embedding provider returned an empty vector").
			WithContext("retryable", true)
	}

	candidates, err := s.queryIndex(ctx, tenantID, vectors[0], filters, 2*limit)
	if err != nil {
		return nil, err
	}

	filtered := candidates[:0]
	for _, c := range candidates {
		if c.Score >= s.cfg.MinScore {
			filtered = append(filtered, c)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		ui, uj := graph.NormalizeString(filtered[i].Properties["updatedAt"]), graph.NormalizeString(filtered[j].Properties["updatedAt"])
		if ui != uj {
			return ui > uj
		}
		return filtered[i].NodeID < filtered[j].NodeID
	})

	if len(filtered) > limit {
		filtered = filtered[:limit]
	}

	for i := range filtered {
		filtered[i].RelationshipType = s.classify(filtered[i].Score)
	}

	return filtered, nil
}

// classify maps a cosine similarity score to a relationship kind per the
// descending band order of spec.md §4.5 step 5.
func (s *Searcher) classify(score float64) models.RelationshipType {
	switch {
	case score >= s.cfg.DuplicateThreshold:
		return models.RelDuplicateOf
	case score >= s.cfg.HighThreshold:
		return models.RelHighlyRelatedTo
	case score >= s.cfg.MediumThreshold:
		return models.RelRelatedTo
	default:
		return models.RelLooselyRelated
	}
}

// queryIndex asks the graph store's native vector index for the topK
// nearest nodes, then scopes the candidate set down by tenant and the
// optional label/status filters. The vector index query itself cannot be
// tenant-scoped natively (Neo4j's db.index.vector.queryNodes takes no
// predicate), so scoping happens in the surrounding WHERE clause — over
// topK candidates, not the whole graph, which is why step 2 asks for
// 2*limit rather than limit: enough slack that tenant/label/status
// filtering rarely starves the result set below what the caller asked for.
func (s *Searcher) queryIndex(ctx context.Context, tenantID string, vector []float32, filters Filters, topK int) ([]Result, error) {
	cypher := fmt.Sprintf(`
		CALL db.index.vector.queryNodes($indexName, $topK, $vector)
		YIELD node, score
		WHERE %s`, tenant.ScopeClause("node", "tenantId"))

	params := map[string]any{
		"indexName": s.index,
		"topK":      topK,
		"vector":    vector,
		"tenantId":  tenantID,
	}

	if filters.Label != "" {
		cypher += " AND $label IN labels(node)"
		params["label"] = filters.Label
	}
	if filters.Status != "" {
		cypher += " AND node.status = $status"
		params["status"] = filters.Status
	}
	cypher += " RETURN node, score, labels(node) AS nodeLabels"

	rows, err := s.gw.Execute(ctx, cypher, params)
	if err != nil {
		e, ok := graphkgerrors.As(err)
		if ok && e.Kind == graphkgerrors.KindInternal {
			return nil, graphkgerrors.ServiceUnavailable(e, "vector index unavailable")
		}
		return nil, err
	}

	results := make([]Result, 0, len(rows))
	for _, row := range rows {
		props := graph.NodeProperties(row["node"])
		labels := graph.NormalizeStringSlice(row["nodeLabels"])
		label := ""
		if len(labels) > 0 {
			label = labels[0]
		}
		score, _ := row["score"].(float64)
		results = append(results, Result{
			NodeID:     graph.NormalizeString(props["id"]),
			Label:      label,
			Properties: props,
			Score:      score,
		})
	}
	return results, nil
}
