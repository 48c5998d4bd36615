package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(10)
	durations := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	for _, d := range durations {
		tracker.Observe(d)
	}

	if tracker.Count() != len(durations) {
		t.Fatalf("expected count %d, got %d", len(durations), tracker.Count())
	}

	p95 := tracker.Percentile(95)
	if p95 < 40*time.Millisecond {
		t.Fatalf("expected percentile >= 40ms, got %v", p95)
	}
	if got := tracker.Percentile(0); got != 10*time.Millisecond {
		t.Fatalf("expected min 10ms, got %v", got)
	}
	if got := tracker.Percentile(100); got != 50*time.Millisecond {
		t.Fatalf("expected max 50ms, got %v", got)
	}
}

func TestLatencyTrackerBoundedSize(t *testing.T) {
	tracker := NewLatencyTracker(3)
	for i := 0; i < 10; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 3 {
		t.Fatalf("expected tracker size 3, got %d", tracker.Count())
	}
	if got := tracker.Percentile(0); got != 7*time.Millisecond {
		t.Fatalf("expected oldest samples evicted, min=%v", got)
	}
}

func TestLatencyTrackerSummaryEmpty(t *testing.T) {
	summary := NewLatencyTracker(0).Summary()
	if summary.Samples != 0 || summary.P95 != 0 {
		t.Fatalf("expected zero summary, got %+v", summary)
	}
}
