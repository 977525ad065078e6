package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffStaysWithinExponentialEnvelope(t *testing.T) {
	base := 30 * time.Second
	ceiling := 30 * time.Minute

	for attempt := 1; attempt <= 10; attempt++ {
		envelope := base << (attempt - 1)
		if envelope > ceiling || envelope <= 0 {
			envelope = ceiling
		}
		for i := 0; i < 50; i++ {
			d := Backoff(attempt, base, ceiling)
			assert.Greater(t, d, time.Duration(0), "attempt %d", attempt)
			assert.LessOrEqual(t, d, envelope, "attempt %d", attempt)
		}
	}
}

func TestBackoffCapped(t *testing.T) {
	// Attempt numbers far past the cap must never exceed it.
	for i := 0; i < 100; i++ {
		d := Backoff(30, time.Second, 5*time.Second)
		assert.LessOrEqual(t, d, 5*time.Second)
	}
}

func TestBackoffDefendsAgainstBadInputs(t *testing.T) {
	assert.Greater(t, Backoff(0, time.Second, time.Minute), time.Duration(0))
	assert.Greater(t, Backoff(-3, 0, time.Minute), time.Duration(0))
}

func TestBackoffJitters(t *testing.T) {
	seen := map[time.Duration]bool{}
	for i := 0; i < 50; i++ {
		seen[Backoff(5, time.Second, time.Hour)] = true
	}
	// Full jitter over a 16s window should essentially never collapse to
	// a single value.
	assert.Greater(t, len(seen), 1)
}
