package worker

import (
	"math"
	"math/rand/v2"
	"time"
)

// Backoff is exponential with full jitter: attempt n waits a random duration
// in [floor, min(Max, Base*2^(n-1))].
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

const minBackoff = 10 * time.Millisecond

// Delay returns the wait before retrying after the given (1-based) attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if b.Base <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	ceiling := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if b.Max > 0 && ceiling > float64(b.Max) {
		ceiling = float64(b.Max)
	}
	floor := float64(minBackoff)
	if floor > ceiling {
		return time.Duration(ceiling)
	}
	return time.Duration(floor + rand.Float64()*(ceiling-floor))
}
