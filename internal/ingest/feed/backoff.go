package feed

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is an exponential reconnect delay with optional jitter.
type Backoff struct {
	Min    time.Duration
	Max    time.Duration
	Factor float64
	// Jitter spreads each delay by up to ±Jitter of its value, capped at 1.
	Jitter float64
}

func DefaultBackoff() Backoff {
	return Backoff{
		Min:    250 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: 0.2,
	}
}

// Next returns the delay before reconnect attempt n, counting from 1.
func (b Backoff) Next(n int) time.Duration {
	lo, hi, factor := b.Min, b.Max, b.Factor
	if lo <= 0 {
		lo = 100 * time.Millisecond
	}
	if hi < lo {
		hi = max(lo, 5*time.Second)
	}
	if factor <= 1 {
		factor = 2
	}
	n = max(n, 1)

	wait := float64(lo) * math.Pow(factor, float64(n-1))
	if wait > float64(hi) || math.IsInf(wait, 0) {
		wait = float64(hi)
	}
	if b.Jitter > 0 {
		spread := wait * min(b.Jitter, 1)
		wait += spread * (2*rand.Float64() - 1)
	}
	return time.Duration(wait)
}
