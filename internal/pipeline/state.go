// Package pipeline drives one visualization request through the
// translation pipeline: source resolution, query generation,
// sanitization, preview, provisioning and persistence. Each request
// owns its own State; the orchestrator is a fail-fast sequencer with
// no retries across stages.
package pipeline

import (
	"github.com/gridviz/gridviz/internal/catalog"
)

// Stage identifies the highest pipeline stage a request has completed.
type Stage int

const (
	StageParsed Stage = iota
	StageSourceResolved
	StageQueryGenerated
	StageQueryValidated
	StagePreviewed
	StageProvisioned
	StagePersisted
)

var stageNames = map[Stage]string{
	StageParsed:         "PARSED",
	StageSourceResolved: "SOURCE_RESOLVED",
	StageQueryGenerated: "QUERY_GENERATED",
	StageQueryValidated: "QUERY_VALIDATED",
	StagePreviewed:      "PREVIEWED",
	StageProvisioned:    "PROVISIONED",
	StagePersisted:      "PERSISTED",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "UNKNOWN"
}

// Pipeline status values mirrored into the durable record.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// FailureKind classifies a pipeline failure.
type FailureKind string

const (
	FailRequestInvalid FailureKind = "request_invalid"
	FailResolution     FailureKind = "resolution_failed"
	FailGeneration     FailureKind = "generation_failed"
	FailValidation     FailureKind = "validation_failed"
	FailPreview        FailureKind = "preview_failed"
	FailProvisioning   FailureKind = "provisioning_failed"
	FailPersistence    FailureKind = "persistence_failed"
)

// Failure is one entry in the accumulated error list.
type Failure struct {
	Kind    FailureKind `json:"kind"`
	Message string      `json:"message"`
}

// Request is the immutable input to one pipeline run.
type Request struct {
	UserID int64  `json:"user_id"`
	Text   string `json:"request"`
	Kind   string `json:"type"`
}

// State is the single mutable record threaded through the orchestrator.
// The orchestrator owns it exclusively for the lifetime of one request.
//
// Invariants: StatusCompleted implies SQL, Preview and DashboardUID are
// all non-empty. StatusFailed implies Failures is non-empty; no
// dashboard UID is issued except when a persistence failure orphans an
// already-provisioned dashboard, in which case the UID is retained for
// operator reconciliation.
type State struct {
	Request         Request             `json:"request"`
	VisualizationID string              `json:"visualization_id,omitempty"`
	Source          *catalog.DataSource `json:"-"`
	DataSourceName  string              `json:"data_source,omitempty"`
	RawSQL          string              `json:"-"`
	SQL             string              `json:"sql_query,omitempty"`
	ChartType       string              `json:"chart_type,omitempty"`
	Title           string              `json:"title,omitempty"`
	Preview         []map[string]any    `json:"preview,omitempty"`
	DashboardUID    string              `json:"dashboard_uid,omitempty"`
	DashboardURL    string              `json:"dashboard_url,omitempty"`
	EmbedURL        string              `json:"embed_url,omitempty"`
	Failures        []Failure           `json:"errors,omitempty"`
	Stage           Stage               `json:"-"`
	Status          string              `json:"status"`
}

// Succeeded reports whether the pipeline reached terminal success.
func (s *State) Succeeded() bool {
	return s.Status == StatusCompleted
}

func (s *State) fail(kind FailureKind, message string) {
	s.Failures = append(s.Failures, Failure{Kind: kind, Message: message})
	s.Status = StatusFailed
}
