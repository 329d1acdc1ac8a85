package crawler

import (
	"context"
	"math/rand"
	"time"
)

// TimerPauser implements Pauser with a real timer that aborts early when
// the context finishes.
type TimerPauser struct{}

// Pause blocks for d or until ctx is done.
func (TimerPauser) Pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// UniformDuration draws a duration uniformly from [min, max].
func UniformDuration(rng *rand.Rand, min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	return min + time.Duration(rng.Int63n(int64(max-min)))
}
