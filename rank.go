package tiktok

import (
	"sort"
	"time"
)

// Rank orders records by the normalized value of field, highest first.
// Records with equal metrics keep their input order.
func Rank(records []RawRecord, field string) []RankedRecord {
	ranked := make([]RankedRecord, len(records))
	for i, r := range records {
		ranked[i] = RankedRecord{Record: r, Metric: NormalizeRecord(r, field)}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Metric > ranked[j].Metric
	})
	for i := range ranked {
		ranked[i].Position = i + 1
	}
	return ranked
}

// Plain wraps ranked records without secondary metrics.
func Plain(ranked []RankedRecord) []EnrichedRecord {
	out := make([]EnrichedRecord, len(ranked))
	for i, r := range ranked {
		out[i] = EnrichedRecord{RankedRecord: r}
	}
	return out
}

// Assemble builds the final envelope. Items is always a non-nil list. An empty
// meta.Status is derived from the error and item count.
func Assemble(primary *Profile, items []EnrichedRecord, meta Meta) Result {
	if items == nil {
		items = []EnrichedRecord{}
	}
	if meta.Status == "" {
		switch {
		case meta.Error != "" && (primary != nil || len(items) > 0):
			meta.Status = StatusPartial
		case meta.Error != "":
			meta.Status = StatusFailed
		case len(items) == 0 && primary == nil:
			meta.Status = StatusEmpty
		default:
			meta.Status = StatusOK
		}
	}
	if !meta.StartedAt.IsZero() && meta.DurationMs == 0 {
		meta.DurationMs = time.Since(meta.StartedAt).Milliseconds()
	}
	return Result{Primary: primary, Items: items, Meta: meta}
}
