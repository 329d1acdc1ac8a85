package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/storecrawl/storecrawl/internal/crawler"
)

// RandomBrowser mimics human reading: a short random scroll sequence with
// pauses, occasionally interleaved with a pointer move. It is a pure side
// effect; callers swallow its errors.
type RandomBrowser struct {
	pauser crawler.Pauser
	rng    *rand.Rand
}

var _ crawler.Humanizer = (*RandomBrowser)(nil)

// NewRandomBrowser constructs the default humanization strategy.
func NewRandomBrowser(pauser crawler.Pauser) *RandomBrowser {
	return &RandomBrowser{
		pauser: pauser,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Browse performs 2-5 scrolls with 0.5-2s pauses, moving the pointer about
// half the time.
func (h *RandomBrowser) Browse(ctx context.Context, sess crawler.Session) error {
	scrolls := 2 + h.rng.Intn(4)
	for i := 0; i < scrolls; i++ {
		if err := sess.Scroll(ctx, h.rng.Float64()); err != nil {
			return fmt.Errorf("scroll %d of %d: %w", i+1, scrolls, err)
		}
		h.pauser.Pause(ctx, crawler.UniformDuration(h.rng, 500*time.Millisecond, 2*time.Second))
		if h.rng.Float64() > 0.5 {
			x := float64(100 + h.rng.Intn(400))
			y := float64(100 + h.rng.Intn(400))
			if err := sess.MoveMouse(ctx, x, y); err != nil {
				return fmt.Errorf("pointer move: %w", err)
			}
		}
	}
	return nil
}
