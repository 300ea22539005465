package storage

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// TestMigrationsIdempotent runs Open twice on the same database and verifies
// the schema_version count stays correct (migration not re-applied).
func TestMigrationsIdempotent(t *testing.T) {
	dir := t.TempDir()

	s1, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}

	v1, err := s1.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	s1.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer s2.Close()

	v2, err := s2.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}

	if len(v1) != len(v2) {
		t.Errorf("migration count changed: %d -> %d", len(v1), len(v2))
	}
}

// TestMigrationsOrdered verifies migrations are applied in ascending numeric order.
func TestMigrationsOrdered(t *testing.T) {
	s := openTestStore(t)

	versions, err := s.AppliedMigrations()
	if err != nil {
		t.Fatalf("AppliedMigrations: %v", err)
	}
	if len(versions) == 0 {
		t.Fatal("expected at least one applied migration")
	}
	for i := 1; i < len(versions); i++ {
		if versions[i] <= versions[i-1] {
			t.Errorf("migrations not in ascending order: %v", versions)
			break
		}
	}
}

func TestVisualizationLifecycle(t *testing.T) {
	s := openTestStore(t)

	v := Visualization{
		ID:          "viz-1",
		UserID:      7,
		RequestText: "west hub prices",
	}
	if err := s.CreateVisualization(v); err != nil {
		t.Fatalf("CreateVisualization: %v", err)
	}

	got, err := s.GetVisualization("viz-1")
	if err != nil {
		t.Fatalf("GetVisualization: %v", err)
	}
	if got.Status != StatusProcessing {
		t.Errorf("initial status = %q, want processing", got.Status)
	}
	if got.Kind != "chart" {
		t.Errorf("kind default = %q, want chart", got.Kind)
	}

	if err := s.CompleteVisualization("viz-1", "ercot_settlement_prices", `{"chart_type":"timeseries"}`, "dash-1"); err != nil {
		t.Fatalf("CompleteVisualization: %v", err)
	}

	got, err = s.GetVisualization("viz-1")
	if err != nil {
		t.Fatalf("GetVisualization after complete: %v", err)
	}
	if got.Status != StatusCompleted || got.DashboardUID != "dash-1" || got.DataSource != "ercot_settlement_prices" {
		t.Errorf("completed record = %+v", got)
	}
}

func TestFailVisualization(t *testing.T) {
	s := openTestStore(t)

	if err := s.CreateVisualization(Visualization{ID: "viz-f", UserID: 1, RequestText: "x"}); err != nil {
		t.Fatalf("CreateVisualization: %v", err)
	}
	if err := s.FailVisualization("viz-f", "", `[{"kind":"preview_failed"}]`); err != nil {
		t.Fatalf("FailVisualization: %v", err)
	}

	got, err := s.GetVisualization("viz-f")
	if err != nil {
		t.Fatalf("GetVisualization: %v", err)
	}
	if got.Status != StatusFailed || got.ErrorDetail == "" {
		t.Errorf("failed record = %+v", got)
	}
}

func TestFinishUnknownVisualization(t *testing.T) {
	s := openTestStore(t)
	if err := s.CompleteVisualization("missing", "", "", ""); !errors.Is(err, ErrNotFound) {
		t.Errorf("CompleteVisualization(missing) = %v, want ErrNotFound", err)
	}
}

func TestGetVisualizationNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetVisualization("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("GetVisualization(missing) = %v, want ErrNotFound", err)
	}
}

func TestListVisualizationsNewestFirst(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		v := Visualization{
			ID:          fmt.Sprintf("viz-%d", i),
			UserID:      7,
			RequestText: "x",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateVisualization(v); err != nil {
			t.Fatalf("CreateVisualization: %v", err)
		}
	}

	got, err := s.ListVisualizations(7, 10, 0)
	if err != nil {
		t.Fatalf("ListVisualizations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].ID != "viz-2" || got[2].ID != "viz-0" {
		t.Errorf("order = %s, %s, %s", got[0].ID, got[1].ID, got[2].ID)
	}

	// Other users see nothing.
	other, err := s.ListVisualizations(8, 10, 0)
	if err != nil {
		t.Fatalf("ListVisualizations(8): %v", err)
	}
	if len(other) != 0 {
		t.Errorf("user 8 sees %d records, want 0", len(other))
	}
}

func TestBindPanelAssignsOrder(t *testing.T) {
	s := openTestStore(t)
	mustCreateViz(t, s, "viz-a", 7)
	mustCreateViz(t, s, "viz-b", 7)

	first, created, err := s.BindPanel(PanelBinding{UserID: 7, PanelID: "ai_dashboard_a", VisualizationID: "viz-a", IsVisible: true})
	if err != nil || !created {
		t.Fatalf("first BindPanel: created=%v err=%v", created, err)
	}
	if first.PanelOrder != 1 {
		t.Errorf("first panel order = %d, want 1", first.PanelOrder)
	}

	second, created, err := s.BindPanel(PanelBinding{UserID: 7, PanelID: "ai_dashboard_b", VisualizationID: "viz-b", IsVisible: true})
	if err != nil || !created {
		t.Fatalf("second BindPanel: created=%v err=%v", created, err)
	}
	if second.PanelOrder != 2 {
		t.Errorf("second panel order = %d, want 2", second.PanelOrder)
	}
	if second.GridColumn != 2 {
		t.Errorf("grid column default = %d, want 2", second.GridColumn)
	}
}

// TestBindPanelDeduplicates binds the same (user, visualization) twice
// with different panel ids: the first binding survives, the second call
// reports created=false and returns the original.
func TestBindPanelDeduplicates(t *testing.T) {
	s := openTestStore(t)
	mustCreateViz(t, s, "viz-a", 7)

	first, created, err := s.BindPanel(PanelBinding{UserID: 7, PanelID: "ai_dashboard_one", VisualizationID: "viz-a", IsVisible: true})
	if err != nil || !created {
		t.Fatalf("first BindPanel: created=%v err=%v", created, err)
	}

	second, created, err := s.BindPanel(PanelBinding{UserID: 7, PanelID: "ai_dashboard_two", VisualizationID: "viz-a", IsVisible: true})
	if err != nil {
		t.Fatalf("second BindPanel: %v", err)
	}
	if created {
		t.Error("second bind reported created=true")
	}
	if second.PanelID != first.PanelID {
		t.Errorf("surviving panel id = %q, want %q", second.PanelID, first.PanelID)
	}

	bindings, err := s.ListPanelBindings(7)
	if err != nil {
		t.Fatalf("ListPanelBindings: %v", err)
	}
	if len(bindings) != 1 {
		t.Errorf("got %d bindings, want 1", len(bindings))
	}
}

func TestOrphanArtifacts(t *testing.T) {
	s := openTestStore(t)

	o := OrphanArtifact{
		ID:              "orph-1",
		UserID:          7,
		DashboardUID:    "dash-lost",
		VisualizationID: "viz-a",
		Reason:          "lost panel binding race",
	}
	if err := s.RecordOrphan(o); err != nil {
		t.Fatalf("RecordOrphan: %v", err)
	}

	got, err := s.ListOrphans(10)
	if err != nil {
		t.Fatalf("ListOrphans: %v", err)
	}
	if len(got) != 1 || got[0].DashboardUID != "dash-lost" || got[0].Reason != o.Reason {
		t.Errorf("orphans = %+v", got)
	}
}

func TestListRecentVisualizations(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 8, 27, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		v := Visualization{
			ID:          fmt.Sprintf("viz-%d", i),
			UserID:      int64(i%2 + 1),
			RequestText: "x",
			CreatedAt:   base.Add(time.Duration(i) * time.Minute),
		}
		if err := s.CreateVisualization(v); err != nil {
			t.Fatalf("CreateVisualization: %v", err)
		}
	}

	got, err := s.ListRecentVisualizations(3)
	if err != nil {
		t.Fatalf("ListRecentVisualizations: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d records, want 3", len(got))
	}
	if got[0].ID != "viz-3" {
		t.Errorf("newest = %s, want viz-3", got[0].ID)
	}
}

func mustCreateViz(t *testing.T, s *Store, id string, userID int64) {
	t.Helper()
	if err := s.CreateVisualization(Visualization{ID: id, UserID: userID, RequestText: "x"}); err != nil {
		t.Fatalf("CreateVisualization(%s): %v", id, err)
	}
}
