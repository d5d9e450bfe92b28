package sync

import (
	"testing"
	"time"
)

func TestBackoffDelayGrowsAndCaps(t *testing.T) {
	b := Backoff{Base: time.Second, Max: 8 * time.Second}
	for attempt := 0; attempt < 10; attempt++ {
		full := time.Second << attempt
		if full > 8*time.Second {
			full = 8 * time.Second
		}
		for i := 0; i < 50; i++ {
			d := b.Delay(attempt)
			if d < full/2 || d > full {
				t.Fatalf("attempt %d: delay %v outside [%v, %v]", attempt, d, full/2, full)
			}
		}
	}
}

func TestBackoffDefaults(t *testing.T) {
	var b Backoff
	d := b.Delay(0)
	if d <= 0 || d > DefaultBackoff.Base {
		t.Fatalf("zero-value backoff returned %v", d)
	}
}

func TestBackoffJitterVaries(t *testing.T) {
	b := Backoff{Base: time.Second, Max: time.Minute}
	seen := map[time.Duration]bool{}
	for i := 0; i < 100; i++ {
		seen[b.Delay(3)] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expected jittered delays, got a single value")
	}
}
