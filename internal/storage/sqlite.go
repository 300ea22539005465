// Package storage persists visualization records and dashboard panel
// bindings in SQLite, with the atomic conditional insert that
// guarantees bindings are never duplicated per (user, visualization).
package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for visualization records,
// panel bindings and orphaned-artifact bookkeeping.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database
// (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "gridviz.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	// Ensure schema_version table exists (bootstrap).
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Visualizations ---

// CreateVisualization inserts a new record. A zero Status defaults to
// processing, a zero Kind to chart.
func (s *Store) CreateVisualization(v Visualization) error {
	status := v.Status
	if status == "" {
		status = StatusProcessing
	}
	kind := v.Kind
	if kind == "" {
		kind = "chart"
	}
	now := v.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO visualizations (id, user_id, request_text, kind, data_source, chart_config, status, dashboard_uid, error_detail, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		v.ID, v.UserID, v.RequestText, kind, v.DataSource, v.ChartConfig,
		status, v.DashboardUID, v.ErrorDetail,
		now.UTC().Format(time.RFC3339), now.UTC().Format(time.RFC3339),
	)
	return err
}

// CompleteVisualization marks the record completed with its resolved
// source, chart config and provisioned dashboard UID.
func (s *Store) CompleteVisualization(id, dataSource, chartConfig, dashboardUID string) error {
	return s.finishVisualization(id, StatusCompleted, dataSource, chartConfig, dashboardUID, "")
}

// FailVisualization marks the record failed with the accumulated error
// detail. dataSource may be empty when resolution never happened.
func (s *Store) FailVisualization(id, dataSource, errorDetail string) error {
	return s.finishVisualization(id, StatusFailed, dataSource, "", "", errorDetail)
}

func (s *Store) finishVisualization(id, status, dataSource, chartConfig, dashboardUID, errorDetail string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE visualizations
		SET status = ?, data_source = ?, chart_config = ?, dashboard_uid = ?, error_detail = ?, updated_at = ?
		WHERE id = ?`,
		status, dataSource, chartConfig, dashboardUID, errorDetail, now, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetVisualization returns the record with the given id.
func (s *Store) GetVisualization(id string) (Visualization, error) {
	row := s.db.QueryRow(`
		SELECT id, user_id, request_text, kind, data_source, chart_config, status, dashboard_uid, error_detail, created_at, updated_at
		FROM visualizations WHERE id = ?`, id)
	return scanVisualization(row)
}

// ListVisualizations returns the user's records, newest first.
func (s *Store) ListVisualizations(userID int64, limit, offset int) ([]Visualization, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, request_text, kind, data_source, chart_config, status, dashboard_uid, error_detail, created_at, updated_at
		FROM visualizations WHERE user_id = ?
		ORDER BY created_at DESC LIMIT ? OFFSET ?`, userID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Visualization
	for rows.Next() {
		v, err := scanVisualization(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

// ListRecentVisualizations returns the newest records across all
// users, for the MCP recent-activity resource.
func (s *Store) ListRecentVisualizations(limit int) ([]Visualization, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, request_text, kind, data_source, chart_config, status, dashboard_uid, error_detail, created_at, updated_at
		FROM visualizations
		ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Visualization
	for rows.Next() {
		v, err := scanVisualization(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, v)
	}
	return results, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVisualization(row rowScanner) (Visualization, error) {
	var v Visualization
	var createdAt, updatedAt string
	err := row.Scan(&v.ID, &v.UserID, &v.RequestText, &v.Kind, &v.DataSource, &v.ChartConfig,
		&v.Status, &v.DashboardUID, &v.ErrorDetail, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Visualization{}, ErrNotFound
	}
	if err != nil {
		return Visualization{}, err
	}
	if v.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Visualization{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if v.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Visualization{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return v, nil
}

// --- Panel bindings ---

// BindPanel inserts the binding unless one already exists for
// (user_id, visualization_id). The insert is a single atomic
// conditional statement, not a read-then-write, so two pipelines racing
// on the same visualization cannot both insert. It returns the
// surviving binding and whether this call created it.
func (s *Store) BindPanel(b PanelBinding) (PanelBinding, bool, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return PanelBinding{}, false, fmt.Errorf("beginning bind transaction: %w", err)
	}
	defer tx.Rollback()

	var nextOrder int
	if err := tx.QueryRow(`SELECT COALESCE(MAX(panel_order), 0) + 1 FROM panel_bindings WHERE user_id = ?`, b.UserID).Scan(&nextOrder); err != nil {
		return PanelBinding{}, false, fmt.Errorf("computing panel order: %w", err)
	}
	if b.PanelOrder == 0 {
		b.PanelOrder = nextOrder
	}
	if b.GridColumn == 0 {
		b.GridColumn = 2
	}

	res, err := tx.Exec(`
		INSERT INTO panel_bindings (user_id, panel_id, panel_name, visualization_id, is_visible, panel_order, grid_column, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING`,
		b.UserID, b.PanelID, b.PanelName, b.VisualizationID, boolToInt(b.IsVisible),
		b.PanelOrder, b.GridColumn, now.Format(time.RFC3339),
	)
	if err != nil {
		return PanelBinding{}, false, fmt.Errorf("inserting panel binding: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return PanelBinding{}, false, err
	}

	row := tx.QueryRow(`
		SELECT user_id, panel_id, panel_name, visualization_id, is_visible, panel_order, grid_column, created_at
		FROM panel_bindings WHERE user_id = ? AND visualization_id = ?`,
		b.UserID, b.VisualizationID)
	existing, err := scanPanelBinding(row)
	if err != nil {
		return PanelBinding{}, false, fmt.Errorf("reading panel binding: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return PanelBinding{}, false, fmt.Errorf("committing bind: %w", err)
	}
	return existing, inserted == 1, nil
}

// ListPanelBindings returns the user's panel layout in display order.
func (s *Store) ListPanelBindings(userID int64) ([]PanelBinding, error) {
	rows, err := s.db.Query(`
		SELECT user_id, panel_id, panel_name, visualization_id, is_visible, panel_order, grid_column, created_at
		FROM panel_bindings WHERE user_id = ? ORDER BY panel_order ASC`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []PanelBinding
	for rows.Next() {
		b, err := scanPanelBinding(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

func scanPanelBinding(row rowScanner) (PanelBinding, error) {
	var b PanelBinding
	var visible int
	var vizID sql.NullString
	var createdAt string
	err := row.Scan(&b.UserID, &b.PanelID, &b.PanelName, &vizID, &visible, &b.PanelOrder, &b.GridColumn, &createdAt)
	if err == sql.ErrNoRows {
		return PanelBinding{}, ErrNotFound
	}
	if err != nil {
		return PanelBinding{}, err
	}
	b.VisualizationID = vizID.String
	b.IsVisible = visible != 0
	if b.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return PanelBinding{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return b, nil
}

// --- Orphan artifacts ---

// RecordOrphan stores an external dashboard that has no authoritative
// binding, for operator reconciliation.
func (s *Store) RecordOrphan(o OrphanArtifact) error {
	now := o.CreatedAt
	if now.IsZero() {
		now = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO orphan_artifacts (id, user_id, dashboard_uid, visualization_id, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.UserID, o.DashboardUID, o.VisualizationID, o.Reason, now.UTC().Format(time.RFC3339),
	)
	return err
}

// ListOrphans returns recorded orphan artifacts, newest first.
func (s *Store) ListOrphans(limit int) ([]OrphanArtifact, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, dashboard_uid, visualization_id, reason, created_at
		FROM orphan_artifacts ORDER BY created_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []OrphanArtifact
	for rows.Next() {
		var o OrphanArtifact
		var createdAt string
		if err := rows.Scan(&o.ID, &o.UserID, &o.DashboardUID, &o.VisualizationID, &o.Reason, &createdAt); err != nil {
			return nil, err
		}
		if o.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, o)
	}
	return results, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
