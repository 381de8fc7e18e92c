package history

import (
	"testing"
	"time"

	"nathanbeddoewebdev/dialctl/internal/perf/domain"

	"github.com/google/go-cmp/cmp"
)

func seq(from, to int) []int {
	out := make([]int, 0, to-from+1)
	for i := from; i <= to; i++ {
		out = append(out, i)
	}
	return out
}

func TestBuffer_EvictsOldestFirst(t *testing.T) {
	b := New[int]()
	for i := 1; i <= 150; i++ {
		b.Append(i)
	}

	got := b.Snapshot()
	if diff := cmp.Diff(seq(51, 150), got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestBuffer_NeverExceedsCapacity(t *testing.T) {
	b := New[int]()
	for i := 1; i <= 1000; i++ {
		b.Append(i)
		if b.Len() > Capacity {
			t.Fatalf("len %d exceeds capacity after %d appends", b.Len(), i)
		}

		// The snapshot must always be a suffix of 1..i.
		snap := b.Snapshot()
		first := i - len(snap) + 1
		if diff := cmp.Diff(seq(first, i), snap); diff != "" {
			t.Fatalf("after %d appends snapshot is not a suffix (-want +got):\n%s", i, diff)
		}
	}
}

func TestBuffer_BelowCapacity(t *testing.T) {
	b := New[string]()
	b.Append("a")
	b.Append("b")

	if diff := cmp.Diff([]string{"a", "b"}, b.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
	latest, ok := b.Latest()
	if !ok || latest != "b" {
		t.Errorf("Latest() = %q, %v; want %q, true", latest, ok, "b")
	}
}

func TestBuffer_SnapshotIsACopy(t *testing.T) {
	b := New[int]()
	b.Append(1)
	b.Append(2)

	snap := b.Snapshot()
	snap[0] = 99
	b.Append(3)

	if diff := cmp.Diff([]int{1, 2, 3}, b.Snapshot()); diff != "" {
		t.Errorf("buffer mutated through snapshot (-want +got):\n%s", diff)
	}
	if snap[0] != 99 || len(snap) != 2 {
		t.Errorf("earlier snapshot changed after append: %v", snap)
	}
}

func TestBuffer_ResetAndEmpty(t *testing.T) {
	b := New[int]()
	if _, ok := b.Latest(); ok {
		t.Error("expected no latest entry on empty buffer")
	}
	for i := 0; i < 120; i++ {
		b.Append(i)
	}
	b.Reset()
	if b.Len() != 0 || len(b.Snapshot()) != 0 {
		t.Fatalf("expected empty buffer after Reset, got %d", b.Len())
	}
	b.Append(7)
	if diff := cmp.Diff([]int{7}, b.Snapshot()); diff != "" {
		t.Errorf("snapshot mismatch after reset (-want +got):\n%s", diff)
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	samples := []domain.MetricSample{
		{CPS: 10, ConcurrentCalls: 100, SuccessRate: 80, Timestamp: base},
		{CPS: 30, ConcurrentCalls: 300, SuccessRate: 60, Timestamp: base.Add(5 * time.Second)},
		{CPS: 20, ConcurrentCalls: 200, SuccessRate: 70, Timestamp: base.Add(10 * time.Second)},
	}

	want := Summary{
		SampleCount:    3,
		Window:         10 * time.Second,
		PeakCPS:        30,
		AvgCPS:         20,
		PeakConcurrent: 300,
		AvgConcurrent:  200,
		AvgSuccessRate: 70,
		MinSuccessRate: 60,
	}
	if diff := cmp.Diff(want, Summarize(samples)); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	if got := Summarize(nil); got.SampleCount != 0 || got.PeakCPS != 0 {
		t.Errorf("expected zero summary for no samples, got %+v", got)
	}
}
