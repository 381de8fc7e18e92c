package auditlog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func tempRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dialctl.db")
	r, err := OpenAt(path)
	if err != nil {
		t.Fatalf("OpenAt failed: %v", err)
	}
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestSave_AssignsIDAndTimestamp(t *testing.T) {
	r := tempRepo(t)

	entry := &AuditEntry{
		Command:    "dialctl quota set",
		Op:         "set CLI limit",
		Target:     "usa",
		Outcome:    OutcomeSuccess,
		DurationMs: 12,
	}

	if err := r.Save(entry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if entry.ID == 0 {
		t.Error("expected ID to be assigned")
	}
	if entry.Timestamp.IsZero() {
		t.Error("expected Timestamp to be set")
	}

	got, err := r.List(1)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if diff := cmp.Diff([]AuditEntry{*entry}, got); diff != "" {
		t.Errorf("stored entry mismatch (-want +got):\n%s", diff)
	}
}

func TestList(t *testing.T) {
	r := tempRepo(t)

	for i := range 3 {
		entry := &AuditEntry{
			Command:   "dialctl dtmf set",
			Outcome:   OutcomeSuccess,
			Timestamp: time.Now().UTC().Add(time.Duration(i) * time.Second),
		}
		if err := r.Save(entry); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := r.List(2)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Timestamp.Before(entries[1].Timestamp) {
		t.Error("expected entries sorted by timestamp descending")
	}
}

func TestListByTarget(t *testing.T) {
	r := tempRepo(t)

	entries := []*AuditEntry{
		{Command: "dialctl quota set", Target: "usa", Outcome: OutcomeSuccess},
		{Command: "dialctl quota set", Target: "mexico", Outcome: OutcomeSuccess},
		{Command: "dialctl quota reset", Target: "usa", Outcome: OutcomeError},
	}
	for _, entry := range entries {
		if err := r.Save(entry); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	got, err := r.ListByTarget("usa", 10)
	if err != nil {
		t.Fatalf("ListByTarget failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	for _, entry := range got {
		if entry.Target != "usa" {
			t.Errorf("expected target usa, got %q", entry.Target)
		}
	}
}

func TestPrune(t *testing.T) {
	r := tempRepo(t)

	oldEntry := &AuditEntry{
		Command:   "dialctl loadtest start",
		Outcome:   OutcomeSuccess,
		Timestamp: time.Now().UTC().Add(-48 * time.Hour),
	}
	recentEntry := &AuditEntry{
		Command:   "dialctl loadtest stop",
		Outcome:   OutcomeSuccess,
		Timestamp: time.Now().UTC().Add(-1 * time.Hour),
	}

	if err := r.Save(oldEntry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := r.Save(recentEntry); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	removed, err := r.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}

	remaining, err := r.List(10)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(remaining) != 1 || remaining[0].Command != "dialctl loadtest stop" {
		t.Fatalf("unexpected remaining entries: %+v", remaining)
	}
}

func TestNewEntry(t *testing.T) {
	ctx := WithMetadata(context.Background(), Metadata{Source: "static", Op: "set CLI limit"})
	ctx = WithMetadata(ctx, Metadata{Target: "usa"})
	start := time.Now().Add(-50 * time.Millisecond)

	entry := NewEntry(ctx, "dialctl quota set", []string{"usa", "100", "--token", "s3cret"}, start, nil, false)
	if entry.Outcome != OutcomeSuccess || entry.Detail != "" {
		t.Errorf("unexpected outcome: %+v", entry)
	}
	if entry.Source != "static" || entry.Op != "set CLI limit" || entry.Target != "usa" {
		t.Errorf("metadata not applied: %+v", entry)
	}
	if entry.Args != "usa 100 --token <redacted>" {
		t.Errorf("Args = %q", entry.Args)
	}
	if entry.DurationMs < 50 {
		t.Errorf("DurationMs = %d, want >= 50", entry.DurationMs)
	}

	failed := NewEntry(ctx, "dialctl quota set", nil, start, errors.New("boom"), false)
	if failed.Outcome != OutcomeError || failed.Detail != "boom" {
		t.Errorf("unexpected failure entry: %+v", failed)
	}

	declined := NewEntry(ctx, "dialctl quota reset", nil, start, errors.New("cancelled"), true)
	if declined.Outcome != OutcomeCancelled || declined.Detail != "" {
		t.Errorf("unexpected cancelled entry: %+v", declined)
	}
}

func TestSanitizeArgs(t *testing.T) {
	got := SanitizeArgs([]string{"login", "--token=abc", "--api-key", "k", "--token"})
	want := []string{"login", "--token=<redacted>", "--api-key", "<redacted>", "--token", "<redacted>"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SanitizeArgs mismatch (-want +got):\n%s", diff)
	}
}
