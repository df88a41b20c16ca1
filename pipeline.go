package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Pipeline names recorded in Meta.Pipeline.
const (
	PipelineProfile       = "profile"
	PipelineProfileVideos = "profile-videos"
	PipelineHashtag       = "hashtag"
	PipelineSearch        = "search"
	PipelineTrending      = "trending"
	PipelineForYou        = "foryou"
	PipelineSessionCheck  = "session-check"
)

const fallbackMaxItems = 20

// firstMatchScript returns the first selector with at least one match.
const firstMatchScript = `(sels) => sels.find((s) => document.querySelector(s) !== null) || ""`

// run tracks one pipeline invocation.
type run struct {
	meta   Meta
	max    int
	enrich bool
	logger *zap.Logger
}

func (s *Scraper) begin(pipeline, target string, opts Options) *run {
	max := opts.Max
	if max <= 0 {
		max = s.cfg.MaxItems
	}
	if max <= 0 {
		max = fallbackMaxItems
	}
	r := &run{
		meta: Meta{
			RunID:          uuid.NewString(),
			Pipeline:       pipeline,
			Target:         target,
			RequestedCount: max,
			StartedAt:      time.Now(),
		},
		max:    max,
		enrich: opts.Enrich,
	}
	r.logger = s.logger.With(
		zap.String("run_id", r.meta.RunID),
		zap.String("pipeline", pipeline),
		zap.String("target", target))
	r.logger.Info("pipeline started", zap.Int("requested", max), zap.Bool("enrich", opts.Enrich))
	return r
}

// degrade records err on the run without discarding collected work.
func (r *run) degrade(err error) {
	r.meta.Error = err.Error()
	r.meta.Reason = ReasonCode(err)
}

// fail ends the run with no items.
func (r *run) fail(err error) Result {
	r.degrade(err)
	return r.finish(nil, nil)
}

func (r *run) finish(primary *Profile, items []EnrichedRecord) Result {
	res := Assemble(primary, items, r.meta)
	fields := []zap.Field{
		zap.String("status", string(res.Meta.Status)),
		zap.Int("loaded", res.Meta.LoadedCount),
		zap.Int("extracted", res.Meta.ExtractedCount),
		zap.Int("enriched", res.Meta.EnrichedCount),
		zap.Int("count", len(res.Items)),
		zap.Int64("duration_ms", res.Meta.DurationMs),
	}
	if res.Meta.Error != "" {
		r.logger.Warn("pipeline degraded", append(fields,
			zap.String("reason", res.Meta.Reason),
			zap.String("error", res.Meta.Error))...)
	} else {
		r.logger.Info("pipeline finished", fields...)
	}
	return res
}

// withPage launches a browser, opens one page and runs fn on it. Both are
// closed before it returns. When auth is set the stored session must exist
// and pass verification; otherwise a stored session is applied only when
// UseSession is on and its absence is ignored.
func (s *Scraper) withPage(ctx context.Context, r *run, auth bool, fn func(Browser, Page) error) error {
	browser, err := s.launch(ctx, s.cfg.LaunchOptions())
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("launch browser: %w", ctx.Err())
		}
		if !errors.Is(err, ErrBrowserNotReady) {
			err = errors.Join(ErrBrowserNotReady, err)
		}
		return err
	}
	defer func() {
		if err := browser.Close(); err != nil {
			r.logger.Debug("close browser", zap.Error(err))
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		return errors.Join(ErrBrowserNotReady, err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			r.logger.Debug("close page", zap.Error(err))
		}
	}()

	if auth {
		if _, err := s.requireSession(ctx, r, page); err != nil {
			return err
		}
	} else if s.cfg.UseSession {
		s.applyStoredSession(ctx, r, page)
	}
	return fn(browser, page)
}

// requireSession loads the stored session and verifies it on page. A
// session the site rejects is removed from the store.
func (s *Scraper) requireSession(ctx context.Context, r *run, page Page) (*Session, error) {
	sess, err := s.sessions.Load()
	if err != nil {
		return nil, err
	}
	err = s.nav.VerifySession(ctx, page, sess, s.cfg.SelectorTimeout)
	if errors.Is(err, ErrSessionInvalid) {
		if ierr := s.sessions.Invalidate(); ierr != nil {
			r.logger.Warn("invalidate session", zap.Error(ierr))
		}
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Scraper) applyStoredSession(ctx context.Context, r *run, page Page) {
	sess, err := s.sessions.Load()
	if err != nil {
		if !errors.Is(err, ErrSessionMissing) {
			r.logger.Warn("stored session not applied", zap.Error(err))
		}
		return
	}
	if err := s.nav.ApplySession(ctx, page, sess); err != nil {
		r.logger.Warn("stored session not applied", zap.Error(err))
		return
	}
	r.logger.Debug("stored session applied", zap.Int("cookies", len(sess.Cookies)))
}

// collect loads, extracts, ranks and optionally enriches the records of
// schema on an already opened page.
func (s *Scraper) collect(ctx context.Context, r *run, browser Browser, page Page, schema Schema) ([]EnrichedRecord, error) {
	sel := s.itemSelector(ctx, page, schema)
	r.meta.LoadedCount = s.loader.LoadUntil(ctx, page, sel, r.max, s.cfg.MaxStableRounds)

	records, err := NewExtractor(schema, r.logger).Extract(ctx, page, r.max)
	if err != nil {
		return nil, err
	}
	r.meta.ExtractedCount = len(records)

	ranked := Rank(records, FieldDisplayCount)
	if !r.enrich {
		return Plain(ranked), nil
	}
	items := s.enricher.Enrich(ctx, browser, ranked)
	r.meta.EnrichedCount = Enriched(items)
	return items, nil
}

// itemSelector picks the container selector the loader should count.
func (s *Scraper) itemSelector(ctx context.Context, page Page, schema Schema) string {
	if len(schema.Containers) == 0 {
		return ""
	}
	raw, err := page.Eval(ctx, firstMatchScript, schema.Containers)
	if err == nil {
		var sel string
		if json.Unmarshal(raw, &sel) == nil && sel != "" {
			return sel
		}
	}
	return schema.Containers[0]
}
