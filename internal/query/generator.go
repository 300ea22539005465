// Package query turns a resolved data source plus free-text request
// into a candidate SQL query and chart metadata. Two interchangeable
// strategies implement Generator: an LLM-backed one and a deterministic
// rule-based fallback that cannot fail.
package query

import (
	"context"

	"github.com/gridviz/gridviz/internal/catalog"
)

// Plan is the output of a generation strategy: a candidate SQL query
// and the chart metadata to render it with.
type Plan struct {
	SQL       string `json:"sql_query"`
	ChartType string `json:"chart_type"`
	Title     string `json:"title"`
}

// Generator produces a Plan for a request against a data source.
type Generator interface {
	Generate(ctx context.Context, text string, src catalog.DataSource) (Plan, error)
}
