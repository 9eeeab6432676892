package resilience

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff computes exponential delays with symmetric jitter.
type Backoff struct {
	// Base is the delay before the first retry.
	Base time.Duration
	// Multiplier scales the delay for each further retry.
	Multiplier float64
	// Max caps the delay. Zero means uncapped.
	Max time.Duration
	// Jitter is the fraction of the delay randomly added or removed (0.0 to 1.0).
	Jitter float64
	// Rand returns a value in [0,1). Nil uses math/rand.
	Rand func() float64
}

// Delay returns the wait before retry number n (1-based):
// Base * Multiplier^(n-1), spread by ±Jitter and capped at Max.
func (b Backoff) Delay(n int) time.Duration {
	if n < 1 {
		n = 1
	}
	mult := b.Multiplier
	if mult <= 0 {
		mult = 1
	}
	d := float64(b.Base) * math.Pow(mult, float64(n-1))

	if b.Jitter > 0 {
		r := b.Rand
		if r == nil {
			r = rand.Float64
		}
		d += (r()*2 - 1) * d * math.Min(b.Jitter, 1)
	}
	if b.Max > 0 && d > float64(b.Max) {
		d = float64(b.Max)
	}
	if d < 0 {
		d = 0
	}
	return time.Duration(d)
}
