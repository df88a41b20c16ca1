package tiktok

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Enricher visits each record's own page to read engagement counts that the
// listing does not show. All visits of one batch share one secondary page
// and one pacer; separate batches never wait on each other.
type Enricher struct {
	nav     *Navigator
	delay   time.Duration
	jitter  time.Duration
	timeout time.Duration
	logger  *zap.Logger
}

// NewEnricher returns an Enricher that waits at least delay (plus up to
// jitter) between items and gives each item's page timeout to render.
func NewEnricher(nav *Navigator, delay, jitter, timeout time.Duration, logger *zap.Logger) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enricher{
		nav:     nav,
		delay:   delay,
		jitter:  jitter,
		timeout: timeout,
		logger:  logger,
	}
}

// Enrich returns ranked in the same order with secondary metrics attached.
// An item whose page fails to load or parse gets nil metrics; the batch
// always completes.
func (e *Enricher) Enrich(ctx context.Context, browser Browser, ranked []RankedRecord) []EnrichedRecord {
	out := make([]EnrichedRecord, len(ranked))
	for i, r := range ranked {
		out[i] = EnrichedRecord{RankedRecord: r, Secondary: &SecondaryMetrics{}}
	}
	if len(ranked) == 0 {
		return out
	}

	page, err := browser.NewPage(ctx)
	if err != nil {
		e.logger.Warn("open enrichment page", zap.Error(err))
		return out
	}
	defer func() {
		if err := page.Close(); err != nil {
			e.logger.Debug("close enrichment page", zap.Error(err))
		}
	}()

	pace := newPacer(e.delay, e.jitter)
	for i := range out {
		link, ok := out[i].Record.Get(FieldVideoLink)
		if !ok {
			continue
		}
		if err := pace.Wait(ctx); err != nil {
			e.logger.Info("enrichment stopped", zap.Int("done", i), zap.Error(err))
			break
		}
		m, err := e.visit(ctx, page, link)
		if err != nil {
			e.logger.Info("enrichment item failed",
				zap.Int("position", out[i].Position),
				zap.String("url", link),
				zap.Error(err))
			continue
		}
		out[i].Secondary = &m
	}
	return out
}

func (e *Enricher) visit(ctx context.Context, page Page, link string) (SecondaryMetrics, error) {
	if err := e.nav.Open(ctx, page, link); err != nil {
		return SecondaryMetrics{}, err
	}
	if _, err := e.nav.WaitForAny(ctx, page, videoDetailReady, e.timeout); err != nil {
		return SecondaryMetrics{}, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return SecondaryMetrics{}, err
	}

	rec, err := ExtractDocument(html, page.URL(), videoDetailFields)
	if err != nil {
		return SecondaryMetrics{}, err
	}
	m := SecondaryMetrics{
		Likes:    countField(rec, "likes"),
		Comments: countField(rec, "comments"),
		Shares:   countField(rec, "shares"),
		Views:    countField(rec, "views"),
	}
	if data, err := extractUniversalData([]byte(html)); err == nil {
		if ssr, err := extractVideoStatsFromSSR(data); err == nil {
			m = mergeMetrics(m, ssr)
		}
	}
	return m, nil
}

// countField normalizes a field, keeping null as nil.
func countField(r RawRecord, name string) *int64 {
	v, ok := r.Get(name)
	if !ok {
		return nil
	}
	n := ParseCount(v)
	return &n
}

// Enriched counts records with at least one secondary metric.
func Enriched(items []EnrichedRecord) int {
	n := 0
	for _, it := range items {
		if it.Secondary != nil && !it.Secondary.Empty() {
			n++
		}
	}
	return n
}
