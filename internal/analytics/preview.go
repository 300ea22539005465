package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	defaultPreviewLimit  = 10
	defaultPreviewWindow = "24 hours"
	previewTimeout       = 10 * time.Second
)

// ErrNoRows is returned when a preview query executes successfully but
// yields zero rows, meaning the generated query selects no data.
var ErrNoRows = errors.New("preview returned no rows")

// Previewer runs a bounded, read-only preview of a sanitized query.
// The sanitized query itself is never modified: the time-range macro is
// substituted and the row cap applied on a separate copy.
type Previewer struct {
	db     *sql.DB
	limit  int
	window string
}

// NewPreviewer creates a Previewer over the analytics store with the
// default row cap (10) and preview window (last 24 hours).
func NewPreviewer(db *sql.DB) *Previewer {
	return &Previewer{db: db, limit: defaultPreviewLimit, window: defaultPreviewWindow}
}

// WithWindow overrides the concrete interval substituted for the
// time-range macro, e.g. "6 hours".
func (p *Previewer) WithWindow(window string) *Previewer {
	if window != "" {
		p.window = window
	}
	return p
}

// WithLimit overrides the preview row cap.
func (p *Previewer) WithLimit(limit int) *Previewer {
	if limit > 0 {
		p.limit = limit
	}
	return p
}

// Preview executes a bounded copy of the sanitized query and returns
// the resulting rows as ordered column maps. It fails if execution
// errors or returns zero rows.
func (p *Previewer) Preview(ctx context.Context, sqlText, timeColumn string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, previewTimeout)
	defer cancel()

	previewSQL := p.buildPreviewQuery(sqlText, timeColumn)

	rows, err := p.db.QueryContext(ctx, previewSQL)
	if err != nil {
		return nil, fmt.Errorf("executing preview: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading preview columns: %w", err)
	}

	var result []map[string]any
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning preview row: %w", err)
		}

		row := make(map[string]any, len(cols))
		for i, col := range cols {
			row[col] = jsonValue(values[i])
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating preview rows: %w", err)
	}

	if len(result) == 0 {
		return nil, ErrNoRows
	}
	return result, nil
}

// buildPreviewQuery substitutes the time-range macro with a concrete
// bounded interval and wraps the query so the row cap is enforced
// regardless of any LIMIT the generated query specifies.
func (p *Previewer) buildPreviewQuery(sqlText, timeColumn string) string {
	macro := "$__timeFilter(" + timeColumn + ")"
	clause := fmt.Sprintf("%s >= NOW() - INTERVAL '%s'", timeColumn, p.window)
	bounded := strings.ReplaceAll(sqlText, macro, clause)
	return fmt.Sprintf("SELECT * FROM (%s) preview LIMIT %d", bounded, p.limit)
}

// jsonValue normalizes driver values for JSON serialization.
func jsonValue(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return v
	}
}
