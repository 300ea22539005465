package query

import (
	"fmt"
	"strings"

	"github.com/gridviz/gridviz/internal/catalog"
	"github.com/gridviz/gridviz/internal/inference"
)

// BuildPrompt assembles the generation prompt: data-source context plus
// the mandatory output-format rules the sanitizer downstream expects.
func BuildPrompt(text string, src catalog.DataSource) []inference.Message {
	var sb strings.Builder

	sb.WriteString("You are an expert ERCOT data analyst. Generate exactly formatted SQL for Grafana dashboard panels.\n\n")
	fmt.Fprintf(&sb, "User request: %q\n\n", text)

	sb.WriteString("Available data source:\n")
	fmt.Fprintf(&sb, "Table: %s\n", src.Name)
	fmt.Fprintf(&sb, "Description: %s\n", src.Description)
	fmt.Fprintf(&sb, "Columns: %s\n", strings.Join(src.Columns, ", "))
	fmt.Fprintf(&sb, "Time column: %s\n\n", src.TimeColumn)

	sb.WriteString("Respond with a JSON object containing sql_query, chart_type and title.\n\n")
	sb.WriteString("The sql_query value MUST follow this exact format, as a single line with no newlines or tabs:\n")
	fmt.Fprintf(&sb,
		"SELECT %[1]s AS time, column_name AS \"Column Label\" FROM %[2]s WHERE $__timeFilter(%[1]s) ORDER BY %[1]s\n\n",
		src.TimeColumn, src.Name)

	sb.WriteString("Requirements:\n")
	fmt.Fprintf(&sb, "- MUST select %q\n", src.TimeColumn+" AS time")
	fmt.Fprintf(&sb, "- MUST filter with $__timeFilter(%s), never NOW() - INTERVAL\n", src.TimeColumn)
	sb.WriteString("- MUST use quoted column aliases like \"West Hub Price\"\n")
	sb.WriteString("- chart_type MUST be one of: timeseries, bar, area, stat, gauge, table\n")
	sb.WriteString("- Respond with valid JSON only, no surrounding prose or code fences.")

	return []inference.Message{{Role: "user", Content: sb.String()}}
}

// planSchema is the structured-output schema for Plan responses.
func planSchema() *inference.Schema {
	return &inference.Schema{
		Type: "object",
		Properties: map[string]inference.SchemaProperty{
			"sql_query":  {Type: "string", Description: "Single-line SQL query in the mandated format"},
			"chart_type": {Type: "string", Description: "One of: timeseries, bar, area, stat, gauge, table"},
			"title":      {Type: "string", Description: "Short human-readable chart title"},
		},
		Required: []string{"sql_query", "chart_type", "title"},
	}
}
