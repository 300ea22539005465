package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Visualization status values.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Visualization is the durable record of one pipeline run. Created once
// per request, updated at most twice, never deleted by the pipeline.
type Visualization struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"user_id"`
	RequestText  string    `json:"request_text"`
	Kind         string    `json:"kind"`
	DataSource   string    `json:"data_source"`
	ChartConfig  string    `json:"chart_config"` // JSON blob
	Status       string    `json:"status"`
	DashboardUID string    `json:"dashboard_uid"`
	ErrorDetail  string    `json:"error_detail"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PanelBinding links a provisioned panel into a user's dashboard
// layout. Keyed by (user_id, panel_id); unique per
// (user_id, visualization_id).
type PanelBinding struct {
	UserID          int64     `json:"user_id"`
	PanelID         string    `json:"panel_id"`
	PanelName       string    `json:"panel_name"`
	VisualizationID string    `json:"visualization_id"`
	IsVisible       bool      `json:"is_visible"`
	PanelOrder      int       `json:"panel_order"`
	GridColumn      int       `json:"grid_column"`
	CreatedAt       time.Time `json:"created_at"`
}

// OrphanArtifact records a dashboard that was provisioned externally
// but lost the binding race or failed persistence, so operators can
// reconcile it in Grafana.
type OrphanArtifact struct {
	ID              string    `json:"id"`
	UserID          int64     `json:"user_id"`
	DashboardUID    string    `json:"dashboard_uid"`
	VisualizationID string    `json:"visualization_id"`
	Reason          string    `json:"reason"`
	CreatedAt       time.Time `json:"created_at"`
}
