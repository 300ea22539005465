package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gridviz/gridviz/internal/catalog"
	"github.com/gridviz/gridviz/internal/grafana"
	"github.com/gridviz/gridviz/internal/query"
	"github.com/gridviz/gridviz/internal/sanitize"
	"github.com/gridviz/gridviz/internal/storage"
)

const minRequestLength = 3

// panelIDPrefix keys a provisioned dashboard into the user's layout.
const panelIDPrefix = "ai_dashboard_"

// SourceResolver maps request text to one data source.
type SourceResolver interface {
	Resolve(ctx context.Context, text string) (catalog.DataSource, error)
}

// Previewer runs the bounded preview of a sanitized query.
type Previewer interface {
	Preview(ctx context.Context, sqlText, timeColumn string) ([]map[string]any, error)
}

// PanelBuilder maps chart metadata to a complete panel definition.
type PanelBuilder interface {
	Build(chartType, title, sqlQuery string) grafana.Panel
}

// Provisioner deploys a dashboard definition and returns its identity.
type Provisioner interface {
	CreateDashboard(ctx context.Context, d grafana.Dashboard, userID int64) (grafana.Provisioned, error)
}

// Store is the durable-record surface the orchestrator writes to.
type Store interface {
	CreateVisualization(v storage.Visualization) error
	CompleteVisualization(id, dataSource, chartConfig, dashboardUID string) error
	FailVisualization(id, dataSource, errorDetail string) error
	BindPanel(b storage.PanelBinding) (storage.PanelBinding, bool, error)
	RecordOrphan(o storage.OrphanArtifact) error
}

// Deps wires the stateless components one Orchestrator drives.
type Deps struct {
	Resolver    SourceResolver
	Generator   query.Generator // LLM strategy; may fail
	Fallback    query.Generator // rule strategy; always succeeds
	Previewer   Previewer
	Panels      PanelBuilder
	Provisioner Provisioner
	Store       Store
	Now         func() time.Time // defaults to time.Now
}

// Orchestrator sequences the pipeline stages for one request at a time.
// It is stateless across requests; construct once and share, or build
// per request.
type Orchestrator struct {
	deps Deps
}

// New creates an Orchestrator from its component dependencies.
func New(deps Deps) *Orchestrator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Orchestrator{deps: deps}
}

// Run drives the request through the state machine:
//
//	PARSED → SOURCE_RESOLVED → QUERY_GENERATED → QUERY_VALIDATED →
//	PREVIEWED → PROVISIONED → PERSISTED
//
// Any component failure short-circuits to a failed terminal state that
// carries the accumulated error list and the highest stage reached.
// Nothing is thrown past this boundary: the returned State is always a
// complete structured result.
func (o *Orchestrator) Run(ctx context.Context, req Request) *State {
	state := &State{Request: req, Status: StatusProcessing}

	// Reject unusable requests before any stage runs; no record is
	// written for these.
	req.Text = strings.TrimSpace(req.Text)
	if len(req.Text) < minRequestLength {
		state.fail(FailRequestInvalid, fmt.Sprintf("request text must be at least %d characters", minRequestLength))
		return state
	}
	if req.Kind == "" {
		req.Kind = "chart"
	}
	state.Request = req
	state.Stage = StageParsed

	state.VisualizationID = uuid.New().String()
	if err := o.deps.Store.CreateVisualization(storage.Visualization{
		ID:          state.VisualizationID,
		UserID:      req.UserID,
		RequestText: req.Text,
		Kind:        req.Kind,
		Status:      storage.StatusProcessing,
	}); err != nil {
		state.fail(FailPersistence, fmt.Sprintf("creating visualization record: %v", err))
		return state
	}

	if o.cancelled(ctx, state) {
		return state
	}

	// Resolve the data source. The catalog is static, so a miss here
	// is a wiring fault, not a user error.
	src, err := o.deps.Resolver.Resolve(ctx, req.Text)
	if err != nil {
		return o.terminate(ctx, state, FailResolution, fmt.Sprintf("resolving data source: %v", err))
	}
	state.Source = &src
	state.DataSourceName = src.Name
	state.Stage = StageSourceResolved

	if o.cancelled(ctx, state) {
		return state
	}

	// Generate: LLM strategy first, rule-based fallback exactly once.
	plan, err := o.deps.Generator.Generate(ctx, req.Text, src)
	if err != nil {
		slog.Warn("llm generation failed, using rule-based fallback", "error", err)
		state.Failures = append(state.Failures, Failure{
			Kind:    FailGeneration,
			Message: fmt.Sprintf("llm strategy failed, recovered by fallback: %v", err),
		})
		plan, err = o.deps.Fallback.Generate(ctx, req.Text, src)
		if err != nil {
			return o.terminate(ctx, state, FailGeneration, fmt.Sprintf("fallback generation: %v", err))
		}
	}
	state.RawSQL = plan.SQL
	state.ChartType = plan.ChartType
	state.Title = plan.Title
	state.Stage = StageQueryGenerated

	// Sanitize and gate the candidate query.
	cleaned := sanitize.Clean(plan.SQL, src.TimeColumn)
	if err := sanitize.Validate(cleaned, src.TimeColumn); err != nil {
		return o.terminate(ctx, state, FailValidation, err.Error())
	}
	state.SQL = cleaned
	state.Stage = StageQueryValidated

	if o.cancelled(ctx, state) {
		return state
	}

	// Bounded preview against the analytics store.
	preview, err := o.deps.Previewer.Preview(ctx, cleaned, src.TimeColumn)
	if err != nil {
		return o.terminate(ctx, state, FailPreview, fmt.Sprintf("previewing query: %v", err))
	}
	state.Preview = preview
	state.Stage = StagePreviewed

	if o.cancelled(ctx, state) {
		return state
	}

	// Provision the dashboard.
	panel := o.deps.Panels.Build(state.ChartType, state.Title, cleaned)
	dashboard := grafana.NewDashboard(state.Title, req.UserID, panel, o.deps.Now().UTC())
	provisioned, err := o.deps.Provisioner.CreateDashboard(ctx, dashboard, req.UserID)
	if err != nil {
		return o.terminate(ctx, state, FailProvisioning, fmt.Sprintf("provisioning dashboard: %v", err))
	}
	state.DashboardUID = provisioned.UID
	state.DashboardURL = provisioned.URL
	state.EmbedURL = provisioned.EmbedURL
	state.Stage = StageProvisioned

	// Persist: terminal record update plus the deduplicated binding.
	// A failure past this point orphans the provisioned dashboard, so
	// it is surfaced distinctly and the artifact is recorded.
	chartConfig, err := json.Marshal(map[string]string{
		"sql_query":     cleaned,
		"chart_type":    grafana.NormalizeChartType(state.ChartType),
		"title":         state.Title,
		"dashboard_uid": provisioned.UID,
		"dashboard_url": provisioned.URL,
		"embed_url":     provisioned.EmbedURL,
	})
	if err != nil {
		return o.persistFailed(ctx, state, fmt.Sprintf("marshalling chart config: %v", err))
	}

	if o.cancelled(ctx, state) {
		return state
	}

	if err := o.deps.Store.CompleteVisualization(state.VisualizationID, src.Name, string(chartConfig), provisioned.UID); err != nil {
		return o.persistFailed(ctx, state, fmt.Sprintf("updating visualization record: %v", err))
	}

	binding, created, err := o.deps.Store.BindPanel(storage.PanelBinding{
		UserID:          req.UserID,
		PanelID:         panelIDPrefix + provisioned.UID,
		PanelName:       "AI: " + state.Title,
		VisualizationID: state.VisualizationID,
		IsVisible:       true,
	})
	if err != nil {
		return o.persistFailed(ctx, state, fmt.Sprintf("binding panel: %v", err))
	}
	if !created && binding.PanelID != panelIDPrefix+provisioned.UID {
		// Lost the binding race: the first persisted binding stays
		// authoritative and this run's dashboard is reported orphaned.
		o.recordOrphan(state, provisioned.UID, "lost panel binding race")
		state.DashboardUID = strings.TrimPrefix(binding.PanelID, panelIDPrefix)
	}

	state.Stage = StagePersisted
	state.Status = StatusCompleted
	return state
}

// cancelled checks the caller's context at a stage boundary. After
// cancellation the pipeline stops without touching the durable store.
func (o *Orchestrator) cancelled(ctx context.Context, state *State) bool {
	if ctx.Err() == nil {
		return false
	}
	state.fail(failureKindForStage(state.Stage), fmt.Sprintf("request abandoned: %v", ctx.Err()))
	return true
}

// terminate records a terminal failure on the state and, unless the
// context is already cancelled, on the durable visualization record.
func (o *Orchestrator) terminate(ctx context.Context, state *State, kind FailureKind, message string) *State {
	state.fail(kind, message)
	o.writeFailure(ctx, state)
	return state
}

// persistFailed handles store write errors after successful
// provisioning: the external dashboard may now be orphaned, which
// operators need to reconcile.
func (o *Orchestrator) persistFailed(ctx context.Context, state *State, message string) *State {
	o.recordOrphan(state, state.DashboardUID, "persistence failed after provisioning")
	return o.terminate(ctx, state, FailPersistence,
		fmt.Sprintf("%s (dashboard %s may be orphaned)", message, state.DashboardUID))
}

func (o *Orchestrator) recordOrphan(state *State, dashboardUID, reason string) {
	err := o.deps.Store.RecordOrphan(storage.OrphanArtifact{
		ID:              uuid.New().String(),
		UserID:          state.Request.UserID,
		DashboardUID:    dashboardUID,
		VisualizationID: state.VisualizationID,
		Reason:          reason,
	})
	if err != nil {
		slog.Error("failed to record orphaned dashboard", "dashboard_uid", dashboardUID, "error", err)
	}
}

func (o *Orchestrator) writeFailure(ctx context.Context, state *State) {
	if state.VisualizationID == "" || ctx.Err() != nil {
		return
	}
	detail, _ := json.Marshal(state.Failures)
	if err := o.deps.Store.FailVisualization(state.VisualizationID, state.DataSourceName, string(detail)); err != nil {
		slog.Error("failed to persist pipeline failure", "visualization_id", state.VisualizationID, "error", err)
	}
}

// failureKindForStage maps the highest completed stage to the failure
// kind of the stage that was about to run.
func failureKindForStage(s Stage) FailureKind {
	switch s {
	case StageParsed:
		return FailResolution
	case StageSourceResolved:
		return FailGeneration
	case StageQueryGenerated:
		return FailValidation
	case StageQueryValidated:
		return FailPreview
	case StagePreviewed:
		return FailProvisioning
	default:
		return FailPersistence
	}
}
