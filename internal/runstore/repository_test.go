package runstore

import (
	"path/filepath"
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialctl.db")
	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

func sampleConfig() domain.LoadTestConfig {
	return domain.LoadTestConfig{
		TargetCPS:       25,
		DurationMinutes: 10,
		CountriesToTest: []string{"usa", "mexico"},
		NumberOfCLIs:    500,
	}
}

func TestSave_InsertAssignsUUID(t *testing.T) {
	r := tempRepo(t)

	run := &Run{Source: "api", Config: sampleConfig(), State: "starting"}
	if err := r.Save(run); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := uuid.Parse(run.ID); err != nil {
		t.Errorf("expected UUID id, got %q: %v", run.ID, err)
	}
	if run.StartedAt.IsZero() || run.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestSave_UpdateRoundTripsResult(t *testing.T) {
	r := tempRepo(t)

	run := &Run{Source: "api", Config: sampleConfig(), State: "running"}
	if err := r.Save(run); err != nil {
		t.Fatalf("insert failed: %v", err)
	}

	run.State = "completed"
	run.Result = &domain.LoadTestResult{AvgCPS: 24.5, MaxCPS: 27, MaxConcurrent: 110, OverallSuccessRate: 0.93, TotalErrors: 4, Duration: 600}
	if err := r.Save(run); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got, err := r.Get(run.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil {
		t.Fatal("expected run, got nil")
	}
	if got.State != "completed" {
		t.Errorf("State = %q, want completed", got.State)
	}
	if diff := cmp.Diff(run.Result, got.Result); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(sampleConfig(), got.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestSave_UpdateMissing(t *testing.T) {
	r := tempRepo(t)

	run := &Run{ID: uuid.NewString(), State: "running"}
	if err := r.Save(run); err == nil {
		t.Fatal("expected error updating a missing run")
	}
}

func TestGet_NotFound(t *testing.T) {
	r := tempRepo(t)

	got, err := r.Get("does-not-exist")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil, got %+v", got)
	}
}

func TestListRecent_NewestFirst(t *testing.T) {
	r := tempRepo(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i := range 3 {
		run := &Run{Config: sampleConfig(), State: "completed", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := r.Save(run); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	runs, err := r.ListRecent(2)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if !runs[0].StartedAt.After(runs[1].StartedAt) {
		t.Error("expected runs sorted by start time descending")
	}
}

func TestListActive(t *testing.T) {
	r := tempRepo(t)

	for _, state := range []string{"running", "completed", "starting", "failed"} {
		if err := r.Save(&Run{State: state}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	runs, err := r.ListActive()
	if err != nil {
		t.Fatalf("ListActive failed: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 active runs, got %d", len(runs))
	}
	for _, run := range runs {
		if !run.Active() {
			t.Errorf("run %s in state %q is not active", run.ID, run.State)
		}
	}
}

func TestDeleteOlderThan_KeepsActive(t *testing.T) {
	r := tempRepo(t)

	for _, state := range []string{"running", "completed", "stopped"} {
		if err := r.Save(&Run{State: state}); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	n, err := r.DeleteOlderThan(0)
	if err != nil {
		t.Fatalf("DeleteOlderThan failed: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 deleted, got %d", n)
	}

	runs, err := r.ListRecent(10)
	if err != nil {
		t.Fatalf("ListRecent failed: %v", err)
	}
	if len(runs) != 1 || runs[0].State != "running" {
		t.Errorf("expected only the running run to survive, got %+v", runs)
	}
}
