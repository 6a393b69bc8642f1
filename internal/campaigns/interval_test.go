package campaigns

import (
	"testing"
	"time"
)

func TestNextDelayBounds(t *testing.T) {
	lowest := NextDelay(30, 300, func(int64) int64 { return 0 })
	if lowest != 30*time.Second {
		t.Fatalf("expected 30s, got %v", lowest)
	}
	highest := NextDelay(30, 300, func(n int64) int64 { return n - 1 })
	if highest != 300*time.Second {
		t.Fatalf("expected 300s, got %v", highest)
	}
}

func TestNextDelayDefaultJitterStaysInRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		d := NextDelay(30, 300, nil)
		if d < 30*time.Second || d > 300*time.Second {
			t.Fatalf("delay %v outside [30s, 300s]", d)
		}
	}
}

func TestNextDelayEqualBounds(t *testing.T) {
	called := false
	d := NextDelay(45, 45, func(int64) int64 { called = true; return 0 })
	if d != 45*time.Second || called {
		t.Fatalf("expected fixed 45s without jitter, got %v", d)
	}
}

func TestNextDelayClampsAndSwaps(t *testing.T) {
	if d := NextDelay(-10, -5, nil); d != 0 {
		t.Fatalf("expected negative bounds to clamp to zero, got %v", d)
	}
	d := NextDelay(300, 30, func(int64) int64 { return 0 })
	if d != 30*time.Second {
		t.Fatalf("expected swapped lower bound 30s, got %v", d)
	}
}
