package analytics

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"
)

func TestBuildPreviewQuery(t *testing.T) {
	p := NewPreviewer(nil).WithWindow("6 hours").WithLimit(5)

	in := `SELECT timestamp AS time, hb_west FROM prices WHERE $__timeFilter(timestamp) ORDER BY timestamp`
	want := `SELECT * FROM (SELECT timestamp AS time, hb_west FROM prices WHERE timestamp >= NOW() - INTERVAL '6 hours' ORDER BY timestamp) preview LIMIT 5`

	if got := p.buildPreviewQuery(in, "timestamp"); got != want {
		t.Errorf("buildPreviewQuery:\n got %q\nwant %q", got, want)
	}
}

func TestBuildPreviewQueryWithoutMacro(t *testing.T) {
	p := NewPreviewer(nil)

	in := `SELECT ts AS time, v FROM samples ORDER BY ts`
	want := `SELECT * FROM (SELECT ts AS time, v FROM samples ORDER BY ts) preview LIMIT 10`

	if got := p.buildPreviewQuery(in, "ts"); got != want {
		t.Errorf("buildPreviewQuery = %q, want %q", got, want)
	}
}

// openSampleDB seeds an in-memory database standing in for the
// analytics store. The preview path is driver-agnostic as long as the
// query carries no macro, so SQLite covers the row handling.
func openSampleDB(t *testing.T, rows int) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(`CREATE TABLE samples (ts TEXT, v REAL)`); err != nil {
		t.Fatalf("creating table: %v", err)
	}
	for i := 0; i < rows; i++ {
		if _, err := db.Exec(`INSERT INTO samples (ts, v) VALUES (?, ?)`, "2026-08-27T00:00:00Z", float64(i)); err != nil {
			t.Fatalf("inserting row: %v", err)
		}
	}
	return db
}

func TestPreviewReturnsRows(t *testing.T) {
	db := openSampleDB(t, 3)
	p := NewPreviewer(db)

	rows, err := p.Preview(context.Background(), `SELECT ts AS time, v FROM samples ORDER BY ts`, "ts")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	if _, ok := rows[0]["time"]; !ok {
		t.Errorf("row missing time column: %v", rows[0])
	}
	if _, ok := rows[0]["v"]; !ok {
		t.Errorf("row missing value column: %v", rows[0])
	}
}

func TestPreviewEnforcesRowCap(t *testing.T) {
	db := openSampleDB(t, 30)
	p := NewPreviewer(db).WithLimit(4)

	// The generated query's own LIMIT must not widen the cap.
	rows, err := p.Preview(context.Background(), `SELECT ts AS time, v FROM samples LIMIT 100`, "ts")
	if err != nil {
		t.Fatalf("Preview: %v", err)
	}
	if len(rows) != 4 {
		t.Errorf("got %d rows, want 4", len(rows))
	}
}

func TestPreviewNoRows(t *testing.T) {
	db := openSampleDB(t, 0)
	p := NewPreviewer(db)

	_, err := p.Preview(context.Background(), `SELECT ts AS time, v FROM samples`, "ts")
	if !errors.Is(err, ErrNoRows) {
		t.Errorf("Preview = %v, want ErrNoRows", err)
	}
}

func TestPreviewExecutionError(t *testing.T) {
	db := openSampleDB(t, 1)
	p := NewPreviewer(db)

	if _, err := p.Preview(context.Background(), `SELECT nope FROM missing`, "ts"); err == nil {
		t.Error("expected error for broken query")
	}
}

func TestConfigValidate(t *testing.T) {
	valid := Config{
		URL:          "postgres://reader@localhost:5432/ercot",
		PingTimeout:  time.Second,
		MaxOpenConns: 1,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	for name, cfg := range map[string]Config{
		"empty url":    {PingTimeout: time.Second, MaxOpenConns: 1},
		"zero timeout": {URL: "postgres://x", MaxOpenConns: 1},
		"no conns":     {URL: "postgres://x", PingTimeout: time.Second},
	} {
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}
