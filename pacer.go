package tiktok

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces out requests to one endpoint: at most one per interval, plus
// a random jitter so the cadence does not look scripted.
type pacer struct {
	limiter *rate.Limiter
	jitter  time.Duration
	sleep   func(ctx context.Context, d time.Duration)
}

// newPacer returns a pacer for the given minimum interval. A zero interval
// and zero jitter disable pacing.
func newPacer(interval, jitter time.Duration) *pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &pacer{
		limiter: rate.NewLimiter(limit, 1),
		jitter:  jitter,
		sleep:   sleepCtx,
	}
}

// Wait blocks until the next request may go out or ctx is done.
func (p *pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if p.jitter > 0 {
		p.sleep(ctx, time.Duration(rand.Int64N(int64(p.jitter))))
	}
	return ctx.Err()
}
