package sync

import (
	"math/rand"
	"time"
)

// Backoff computes exponential retry delays with jitter. The delay for
// attempt n is Base*2^n capped at Max, then jittered to half its value
// plus a random share of the other half so parked lanes do not retry in
// lockstep.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff matches a field client that should recover quickly once
// connectivity returns without hammering a flapping link.
var DefaultBackoff = Backoff{Base: 2 * time.Second, Max: 5 * time.Minute}

// Delay returns the jittered delay for the given attempt (0-based).
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBackoff.Base
	}
	max := b.Max
	if max <= 0 {
		max = DefaultBackoff.Max
	}
	d := base
	for i := 0; i < attempt && d < max; i++ {
		d *= 2
	}
	if d > max {
		d = max
	}
	half := d / 2
	return half + time.Duration(rand.Int63n(int64(half)+1))
}
