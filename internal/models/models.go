// Package models defines the labeled-property-graph entities and
// relationship types persisted and served by the knowledge graph service.
package models

import "time"

// Base carries the fields common to every tenant-scoped entity: the dual
// graph_id/graphId tenant key (see internal/tenant) and the authorship
// monotonicity fields enforced by the node repository.
type Base struct {
	GraphID   string    `json:"graphId" db:"graph_id"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
	CreatedBy string    `json:"createdBy" db:"created_by"`
	UpdatedBy string    `json:"updatedBy" db:"updated_by"`
}

// EpicStatus enumerates the lifecycle states of an Epic.
type EpicStatus string

const (
	EpicStatusActive   EpicStatus = "active"
	EpicStatusPaused   EpicStatus = "paused"
	EpicStatusComplete EpicStatus = "complete"
)

// RoadmapLane enumerates the roadmap_lane property used by epic retirement.
type RoadmapLane string

const (
	RoadmapLaneNow     RoadmapLane = "now"
	RoadmapLaneNext    RoadmapLane = "next"
	RoadmapLaneLater   RoadmapLane = "later"
	RoadmapLaneDone    RoadmapLane = "done"
	RoadmapLaneDropped RoadmapLane = "dropped"
)

// Epic is the top-level planning unit. (graphId, id) is unique modulo
// reconciliation by the duplicate reconciler.
type Epic struct {
	Base
	ID              string     `json:"id"`
	EpicID          string     `json:"epic_id"`
	Title           string     `json:"title"`
	Goal            string     `json:"goal"`
	Vision          string     `json:"vision"`
	Status          EpicStatus `json:"status"`
	Progress        int        `json:"progress"`
	SuccessCriteria []string   `json:"successCriteria"`
	InScope         []string   `json:"inScope"`
	OutOfScope      []string   `json:"outOfScope"`
	RoadmapStatus   string     `json:"roadmap_status"`
	RoadmapLane     string     `json:"roadmap_lane"`
}

// Retired reports whether the epic has reached its terminal lifecycle state
// (spec.md §3: status=complete AND roadmap_lane in {done,dropped}).
func (e *Epic) Retired() bool {
	return e.Status == EpicStatusComplete &&
		(e.RoadmapLane == string(RoadmapLaneDone) || e.RoadmapLane == string(RoadmapLaneDropped))
}

// Sprint belongs to exactly one Epic (derivable from its id) and contains
// Tasks. ID follows the pattern e<NNN>_s<NN> or adhoc_<YYMMDD>_s<NN>.
type Sprint struct {
	Base
	ID       string `json:"id"`
	Title    string `json:"title"`
	EpicID   string `json:"epic_id"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// TaskStatus enumerates Task lifecycle states.
type TaskStatus string

const (
	TaskNotStarted TaskStatus = "not_started"
	TaskInProgress TaskStatus = "in_progress"
	TaskBlocked    TaskStatus = "blocked"
	TaskComplete   TaskStatus = "complete"
)

// Task is contained by exactly one Sprint.
type Task struct {
	Base
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	SprintID        string     `json:"sprint_id"`
	EpicID          string     `json:"epic_id"`
	Status          TaskStatus `json:"status"`
	BlockedReason   string     `json:"blocked_reason,omitempty"`
	Owner           string     `json:"owner"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	QualityOverride bool       `json:"quality_override,omitempty"`
}

// Document is the shared shape of ADR, PRD, Charter, Principle, and
// ContextModule — entities whose content is freeform prose with tags and a
// category, revised in place rather than versioned as separate nodes.
type Document struct {
	Base
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Summary  string   `json:"summary"`
	Tags     []string `json:"tags"`
	Category string   `json:"category"`
}

// Confidence enumerates the coarse confidence bucket of a Pattern.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Pattern is a reusable engineering pattern extracted from sessions.
type Pattern struct {
	Base
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Confidence      Confidence `json:"confidence"`
	ConfidenceScore int        `json:"confidenceScore"`
	Category        string     `json:"category"`
}

// Severity enumerates Gotcha severities, ordered critical < high < medium <
// low per spec.md §4.6 enrichment ordering (most severe first).
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// severityRank maps a Severity to its sort rank; lower rank sorts first.
var severityRank = map[Severity]int{
	SeverityCritical: 0,
	SeverityHigh:     1,
	SeverityMedium:   2,
	SeverityLow:      3,
}

// Rank returns the sort rank of a severity (critical=0 ... low=3, unknown=4).
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return 4
}

// Gotcha is a known pitfall extracted from sessions and linked to Tasks.
type Gotcha struct {
	Base
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Severity        Severity `json:"severity"`
	ConfidenceScore int      `json:"confidenceScore"`
	Symptom         string   `json:"symptom,omitempty"`
	Cause           string   `json:"cause,omitempty"`
	Solution        string   `json:"solution,omitempty"`
	Encounters      int      `json:"encounters"`
	Resolutions     int      `json:"resolutions"`
}

// Impact enumerates Event impact levels.
type Impact string

const (
	ImpactLow    Impact = "low"
	ImpactMedium Impact = "medium"
	ImpactHigh   Impact = "high"
)

// Event is an immutable, append-only activity record.
type Event struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id"`
	AgentID     string    `json:"agent_id,omitempty"`
	ProjectID   string    `json:"project_id"` // equals the tenant graphId
	Timestamp   time.Time `json:"timestamp"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Files       []string  `json:"files,omitempty"`
	Impact      Impact    `json:"impact"`
	Branch      string    `json:"branch,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Shared      bool      `json:"shared"`
	CommitHash  string    `json:"commit_hash,omitempty"`
	Pressure    string    `json:"pressure,omitempty"`
}

// DLQStatus enumerates the dead-letter entry state machine states (§4.8).
type DLQStatus string

const (
	DLQPending   DLQStatus = "pending"
	DLQRetrying  DLQStatus = "retrying"
	DLQResolved  DLQStatus = "resolved"
	DLQAbandoned DLQStatus = "abandoned"
)

// DeadLetterEntry records a failed event write and its retry state.
type DeadLetterEntry struct {
	ID            string     `json:"id" db:"id"`
	GraphID       string     `json:"graph_id" db:"graph_id"`
	OriginalEvent string     `json:"original_event" db:"original_event"` // serialized Event
	FailureReason string     `json:"failure_reason" db:"failure_reason"`
	FailedAt      time.Time  `json:"failed_at" db:"failed_at"`
	RetryCount    int        `json:"retry_count" db:"retry_count"`
	LastRetryAt   *time.Time `json:"last_retry_at,omitempty" db:"last_retry_at"`
	Status        DLQStatus  `json:"status" db:"status"`
}

// VerificationResult is the outcome of a task verification run.
type VerificationResult struct {
	ID             string             `json:"id"`
	TaskID         string             `json:"task_id"`
	Passed         bool               `json:"passed"`
	Timestamp      time.Time          `json:"timestamp"`
	CriteriaPassed int                `json:"criteria_passed"`
	CriteriaTotal  int                `json:"criteria_total"`
	Summary        string             `json:"summary"`
	Criteria       []CriterionOutcome `json:"criteria"`
}

// CriterionOutcome is one verification criterion's pass/fail result.
type CriterionOutcome struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Passed      bool   `json:"passed"`
	Details     string `json:"details,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
}

// QualityOverride is an append-only audit record of a human overriding a
// failed or skipped verification.
type QualityOverride struct {
	ID        string    `json:"id"`
	TaskID    string    `json:"task_id"`
	UserID    string    `json:"user_id"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	GraphID   string    `json:"graph_id"`
}

// PrincipalKind distinguishes human users from automated agents for the
// override authorization gate in C10.
type PrincipalKind string

const (
	PrincipalUser  PrincipalKind = "User"
	PrincipalAgent PrincipalKind = "Agent"
)

// Principal is the resolved identity of a caller. Resolving a bearer token
// to a Principal is the excluded auth subsystem's job (spec.md §6); this
// service only consumes the resolved Kind and ID.
type Principal struct {
	ID          string        `json:"id"`
	Kind        PrincipalKind `json:"kind"`
	DisplayName string        `json:"displayName"`
}

// RelationshipType enumerates the typed, directed edges of the graph.
type RelationshipType string

const (
	RelContains          RelationshipType = "CONTAINS"
	RelBelongsTo         RelationshipType = "BELONGS_TO"
	RelHasCriterion      RelationshipType = "HAS_CRITERION"
	RelImplements        RelationshipType = "IMPLEMENTS"
	RelAppliesPattern    RelationshipType = "APPLIES_PATTERN"
	RelAvoidGotcha       RelationshipType = "AVOID_GOTCHA"
	RelMustFollow        RelationshipType = "MUST_FOLLOW"
	RelVerifiedBy        RelationshipType = "VERIFIED_BY"
	RelOverriddenBy      RelationshipType = "OVERRIDDEN_BY"
	RelPerformedOverride RelationshipType = "PERFORMED_OVERRIDE"
	RelNextTask          RelationshipType = "NEXT_TASK"
	RelMigratedRel       RelationshipType = "MIGRATED_REL"

	// Semantic search relationship kinds (C5), assigned from cosine
	// similarity score bands rather than stored as graph edges.
	RelDuplicateOf     RelationshipType = "DUPLICATE_OF"
	RelHighlyRelatedTo RelationshipType = "HIGHLY_RELATED_TO"
	RelRelatedTo       RelationshipType = "RELATED_TO"
	RelLooselyRelated  RelationshipType = "LOOSELY_RELATED_TO"
)

// Relationship is a typed, directed edge read back from the graph.
type Relationship struct {
	Type       RelationshipType `json:"type"`
	FromID     string           `json:"fromId"`
	ToID       string           `json:"toId"`
	Properties map[string]any   `json:"properties,omitempty"`
}
