package grafana

import (
	"fmt"
	"time"
)

// TimeRange is the dashboard's default time window.
type TimeRange struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// Dashboard is the dashboard definition sent to the provisioning API.
type Dashboard struct {
	ID                   *int64         `json:"id"`
	Title                string         `json:"title"`
	Description          string         `json:"description"`
	Tags                 []string       `json:"tags"`
	Timezone             string         `json:"timezone"`
	Panels               []Panel        `json:"panels"`
	Time                 TimeRange      `json:"time"`
	Refresh              string         `json:"refresh"`
	SchemaVersion        int            `json:"schemaVersion"`
	Version              int            `json:"version"`
	Links                []any          `json:"links"`
	Annotations          map[string]any `json:"annotations"`
	Templating           map[string]any `json:"templating"`
	Editable             bool           `json:"editable"`
	FiscalYearStartMonth int            `json:"fiscalYearStartMonth"`
	GraphTooltip         int            `json:"graphTooltip"`
	LiveNow              bool           `json:"liveNow"`
	WeekStart            string         `json:"weekStart"`
}

// NewDashboard assembles a single-panel dashboard for the given caller.
// The title carries a timestamp suffix so repeated requests provision
// uniquely named dashboards.
func NewDashboard(title string, userID int64, panel Panel, now time.Time) Dashboard {
	stamp := now.Format("20060102_150405")
	return Dashboard{
		Title:       fmt.Sprintf("AI: %s %s", title, stamp),
		Description: fmt.Sprintf("AI-generated dashboard created at %s", now.Format(time.RFC3339)),
		Tags: []string{
			"ai-generated",
			fmt.Sprintf("user-%d", userID),
			"ercot",
			stamp,
		},
		Timezone:      "browser",
		Panels:        []Panel{panel},
		Time:          TimeRange{From: "now-24h", To: "now"},
		Refresh:       "30s",
		SchemaVersion: 37,
		Links:         []any{},
		Annotations:   map[string]any{"list": []any{}},
		Templating:    map[string]any{"list": []any{}},
		Editable:      true,
		GraphTooltip:  1,
		LiveNow:       true,
	}
}
