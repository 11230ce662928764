// Package events implements the Event Stream (C7, spec.md §4.7): a
// cursor-based long-poll over the immutable, append-only Event log.
package events

import (
	"context"
	"time"

	graphkgerrors "github.com/graphkg/service/internal/errors"
	"github.com/graphkg/service/internal/graph"
	"github.com/graphkg/service/internal/models"
)

const (
	maxLimit     = 200
	maxTimeout   = 60 * time.Second
	pollInterval = 500 * time.Millisecond
)

// Stream runs the long-poll cursor contract over the Event log.
type Stream struct {
	gw *graph.Gateway
}

func New(gw *graph.Gateway) *Stream {
	return &Stream{gw: gw}
}

// StreamInput is the Stream(tenant, since?, limit, timeout, categories?,
// agentId?) call of spec.md §4.7.
type StreamInput struct {
	Since      string
	Limit      int
	Timeout    time.Duration
	Categories []string
	AgentID    string
}

// StreamResult is the { events, hasMore, lastEventId, pollDurationMs }
// response of spec.md §4.7.
type StreamResult struct {
	Events         []models.Event
	HasMore        bool
	LastEventID    string
	PollDurationMs int64
}

// Poll implements the long-poll contract: it returns immediately if
// matching events exist, otherwise holds the call — checking every
// pollInterval — until either events appear, the timeout elapses, or the
// caller's context is cancelled (at most one pollInterval of extra
// latency in the cancellation case, per spec.md §4.7). Grounded on the
// teacher's internal/graph/pool_monitor.go WatchPoolHealth
// ticker+context.Done() select idiom, adapted from an unbounded
// monitoring loop to a single bounded wait with a deadline branch.
func (s *Stream) Poll(ctx context.Context, tenantID string, in StreamInput) (*StreamResult, error) {
	start := time.Now()

	limit := in.Limit
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	timeout := in.Timeout
	if timeout <= 0 || timeout > maxTimeout {
		timeout = maxTimeout
	}

	var sinceTs *time.Time
	if in.Since != "" {
		ts, err := s.resolveCursor(ctx, tenantID, in.Since)
		if err != nil {
			return nil, err
		}
		sinceTs = &ts
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	lastEventID := in.Since

	for {
		evs, hasMore, err := s.queryEvents(ctx, tenantID, sinceTs, limit, in.Categories, in.AgentID)
		if err != nil {
			return nil, err
		}
		if len(evs) > 0 {
			lastEventID = evs[len(evs)-1].ID
			return &StreamResult{
				Events:         evs,
				HasMore:        hasMore,
				LastEventID:    lastEventID,
				PollDurationMs: time.Since(start).Milliseconds(),
			}, nil
		}

		select {
		case <-ctx.Done():
			return &StreamResult{LastEventID: lastEventID, PollDurationMs: time.Since(start).Milliseconds()}, nil
		case <-deadline.C:
			return &StreamResult{LastEventID: lastEventID, PollDurationMs: time.Since(start).Milliseconds()}, nil
		case <-ticker.C:
			continue
		}
	}
}

// resolveCursor looks up the timestamp of the event named by a since
// cursor. An unknown cursor is a validation error, not silently treated
// as "no cursor" — a stale or forged cursor must not quietly widen the
// result set to the full history.
func (s *Stream) resolveCursor(ctx context.Context, tenantID, sinceID string) (time.Time, error) {
	rows, err := s.gw.Execute(ctx, `
		MATCH (ev:Event {id: $id, project_id: $tenantId})
		RETURN ev.timestamp AS ts`, map[string]any{"id": sinceID, "tenantId": tenantID})
	if err != nil {
		return time.Time{}, err
	}
	if len(rows) == 0 {
		return time.Time{}, graphkgerrors.Validation("unknown cursor %q", sinceID)
	}
	ts, err := time.Parse(time.RFC3339, graph.NormalizeString(rows[0]["ts"]))
	if err != nil {
		return time.Time{}, graphkgerrors.Internal(err, "malformed event timestamp for cursor %q", sinceID)
	}
	return ts, nil
}

// queryEvents fetches one page per spec.md §4.7's two branches: strictly
// newer than a cursor in ascending order, or (if no cursor) the most
// recent `limit` in descending order reversed to ascending. Either way it
// asks for limit+1 rows to detect truncation without a second COUNT query.
func (s *Stream) queryEvents(ctx context.Context, tenantID string, since *time.Time, limit int, categories []string, agentID string) ([]models.Event, bool, error) {
	where := "ev.project_id = $tenantId"
	params := map[string]any{"tenantId": tenantID, "limit": limit + 1}

	if since != nil {
		where += " AND ev.timestamp > $since"
		params["since"] = since.Format(time.RFC3339)
	}
	if len(categories) > 0 {
		where += " AND ev.category IN $categories"
		params["categories"] = toAnySlice(categories)
	}
	if agentID != "" {
		where += " AND ev.agent_id = $agentId"
		params["agentId"] = agentID
	}

	order := "ASC"
	if since == nil {
		order = "DESC"
	}

	cypher := `MATCH (ev:Event) WHERE ` + where + `
		RETURN ev ORDER BY ev.timestamp ` + order + `, ev.id ` + order + ` LIMIT $limit`

	rows, err := s.gw.Execute(ctx, cypher, params)
	if err != nil {
		return nil, false, err
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	events := make([]models.Event, 0, len(rows))
	for _, row := range rows {
		props := graph.NodeProperties(row["ev"])
		if props == nil {
			continue
		}
		events = append(events, eventFromProps(props))
	}

	if since == nil {
		reverse(events)
	}

	return events, hasMore, nil
}

func eventFromProps(p map[string]any) models.Event {
	ts, _ := time.Parse(time.RFC3339, graph.NormalizeString(p["timestamp"]))
	return models.Event{
		ID:          graph.NormalizeString(p["id"]),
		UserID:      graph.NormalizeString(p["user_id"]),
		AgentID:     graph.NormalizeString(p["agent_id"]),
		ProjectID:   graph.NormalizeString(p["project_id"]),
		Timestamp:   ts,
		Category:    graph.NormalizeString(p["category"]),
		Description: graph.NormalizeString(p["description"]),
		Files:       graph.NormalizeStringSlice(p["files"]),
		Impact:      models.Impact(graph.NormalizeString(p["impact"])),
		Branch:      graph.NormalizeString(p["branch"]),
		Tags:        graph.NormalizeStringSlice(p["tags"]),
		Shared:      graph.NormalizeBool(p["shared"]),
		CommitHash:  graph.NormalizeString(p["commit_hash"]),
	}
}

func reverse(events []models.Event) {
	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
}

func toAnySlice(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
