package tiktok

import (
	"context"
	"encoding/json"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// measureScript counts rendered items and reports the page height.
const measureScript = `(sel) => ({
	count: document.querySelectorAll(sel).length,
	height: document.body ? document.body.scrollHeight : 0,
})`

type measurement struct {
	Count  int     `json:"count"`
	Height float64 `json:"height"`
}

// Loader scrolls an infinite feed until enough items are rendered or the
// feed stops growing.
type Loader struct {
	ScrollStep float64
	Delay      time.Duration
	Jitter     time.Duration
	MaxRounds  int

	logger *zap.Logger
	sleep  func(ctx context.Context, d time.Duration)
}

// NewLoader returns a Loader with the defaults used by the pipelines.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		ScrollStep: 500,
		Delay:      500 * time.Millisecond,
		Jitter:     300 * time.Millisecond,
		MaxRounds:  200,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

// LoadUntil scrolls page until at least target items match itemSelector or
// maxStableRounds consecutive rounds add nothing. It returns the last count
// and never fails: an under-target count is a valid outcome.
func (l *Loader) LoadUntil(ctx context.Context, page Page, itemSelector string, target, maxStableRounds int) int {
	if maxStableRounds < 1 {
		maxStableRounds = 1
	}
	count, height, _ := l.measure(ctx, page, itemSelector)
	stable := 0

	for round := 1; count < target && stable < maxStableRounds && round <= l.MaxRounds; round++ {
		if ctx.Err() != nil {
			break
		}
		if err := page.Scroll(ctx, l.ScrollStep); err != nil {
			l.logger.Debug("scroll failed", zap.Int("round", round), zap.Error(err))
		}
		l.sleep(ctx, l.delay())

		next, nextHeight, err := l.measure(ctx, page, itemSelector)
		if err != nil || next <= count {
			stable++
		} else {
			stable = 0
			count = next
		}
		l.logger.Debug("scroll round",
			zap.Int("round", round),
			zap.Int("count", count),
			zap.Int("stable", stable),
			zap.Bool("height_grew", nextHeight > height))
		if nextHeight > height {
			height = nextHeight
		}
	}

	l.logger.Debug("loading finished",
		zap.String("selector", itemSelector),
		zap.Int("count", count),
		zap.Int("target", target))
	return count
}

func (l *Loader) measure(ctx context.Context, page Page, sel string) (int, float64, error) {
	raw, err := page.Eval(ctx, measureScript, sel)
	if err != nil {
		return 0, 0, err
	}
	var m measurement
	if err := json.Unmarshal(raw, &m); err != nil {
		return 0, 0, err
	}
	return m.Count, m.Height, nil
}

func (l *Loader) delay() time.Duration {
	if l.Jitter <= 0 {
		return l.Delay
	}
	return l.Delay + time.Duration(rand.Int64N(int64(l.Jitter)))
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
