package jobs

import (
	"math/rand"
	"time"
)

// Backoff computes the delay before a job's next attempt: exponential in the
// attempt number, capped, with full jitter so a burst of failures does not
// re-converge on the provider at the same instant.
func Backoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if base <= 0 {
		base = time.Second
	}

	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if cap > 0 && d >= cap {
			d = cap
			break
		}
	}
	if cap > 0 && d > cap {
		d = cap
	}

	return time.Duration(rand.Int63n(int64(d)) + 1)
}
