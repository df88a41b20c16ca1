package tiktok

import (
	"encoding/json"
	"maps"
	"slices"
	"time"
)

// Field names shared by the extraction schemas.
const (
	FieldVideoLink    = "videoLink"
	FieldThumbnail    = "thumbnail"
	FieldDisplayCount = "displayCount"
	FieldUsername     = "username"
	FieldProfileLink  = "profileLink"
	FieldAvatar       = "avatar"
	FieldDescription  = "description"
	FieldComments     = "comments"
	FieldShares       = "shares"
)

// RawRecord is one scraped item before normalization. Every field declared by
// the schema that produced it is present; a field whose fallback chain found
// nothing is null.
type RawRecord struct {
	fields map[string]*string
}

// NewRawRecord builds a record from field values. A nil value marks a null
// field.
func NewRawRecord(fields map[string]*string) RawRecord {
	r := RawRecord{fields: make(map[string]*string, len(fields))}
	for k, v := range fields {
		if v != nil {
			s := *v
			v = &s
		}
		r.fields[k] = v
	}
	return r
}

// Get returns the value of a field and whether it is non-null.
func (r RawRecord) Get(name string) (string, bool) {
	v := r.fields[name]
	if v == nil {
		return "", false
	}
	return *v, true
}

// Fields lists the declared field names in sorted order.
func (r RawRecord) Fields() []string {
	return slices.Sorted(maps.Keys(r.fields))
}

func (r RawRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.fields)
}

func (r *RawRecord) UnmarshalJSON(data []byte) error {
	var m map[string]*string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*r = NewRawRecord(m)
	return nil
}

// RankedRecord is a RawRecord with its normalized metric and 1-based
// position in descending metric order.
type RankedRecord struct {
	Record   RawRecord
	Metric   int64
	Position int
}

// SecondaryMetrics are counts read from an item's own page. Any of them may be
// nil when the follow-up navigation or its extraction failed.
type SecondaryMetrics struct {
	Likes    *int64 `json:"likes"`
	Comments *int64 `json:"comments"`
	Shares   *int64 `json:"shares"`
	Views    *int64 `json:"views"`
}

// Empty reports whether no metric was recovered.
func (m SecondaryMetrics) Empty() bool {
	return m.Likes == nil && m.Comments == nil && m.Shares == nil && m.Views == nil
}

// EnrichedRecord is a RankedRecord plus optional secondary metrics. Secondary
// is nil when the pipeline did not run enrichment.
type EnrichedRecord struct {
	RankedRecord
	Secondary *SecondaryMetrics
}

// MarshalJSON flattens the record fields and the ranking into one object.
// Secondary metrics sit under their own "secondary" key so they never
// shadow an extracted field of the same name.
func (e EnrichedRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(e.Record.fields)+3)
	for k, v := range e.Record.fields {
		out[k] = v
	}
	out["metric"] = e.Metric
	out["rank"] = e.Position
	if e.Secondary != nil {
		out["secondary"] = e.Secondary
	}
	return json.Marshal(out)
}

// Profile is the primary entity of the profile pipelines.
type Profile struct {
	ID         string `json:"id,omitempty"`
	Username   string `json:"username"`
	Name       string `json:"name"`
	Avatar     string `json:"avatar"`
	Bio        string `json:"bio"`
	Following  int64  `json:"following"`
	Followers  int64  `json:"followers"`
	Likes      int64  `json:"likes"`
	VideoCount int64  `json:"videoCount,omitempty"`
	Verified   bool   `json:"verified"`
	Source     string `json:"source"`
}

// Profile sources.
const (
	SourceDOM  = "dom"
	SourceSSR  = "ssr"
	SourceHTTP = "http"
)

// Status summarizes how a pipeline run ended.
type Status string

const (
	StatusOK      Status = "ok"
	StatusEmpty   Status = "empty"
	StatusPartial Status = "partial"
	StatusFailed  Status = "failed"
)

// Meta carries the counts and diagnostics of one pipeline run.
type Meta struct {
	RunID          string    `json:"runId"`
	Pipeline       string    `json:"pipeline"`
	Target         string    `json:"target,omitempty"`
	RequestedCount int       `json:"requestedCount"`
	LoadedCount    int       `json:"loadedCount"`
	ExtractedCount int       `json:"extractedCount"`
	EnrichedCount  int       `json:"enrichedCount"`
	Status         Status    `json:"status"`
	Reason         string    `json:"reason,omitempty"`
	Error          string    `json:"error,omitempty"`
	StartedAt      time.Time `json:"startedAt"`
	DurationMs     int64     `json:"durationMs"`
}

// Result is the envelope every pipeline returns. Items is never nil.
type Result struct {
	Primary *Profile         `json:"primaryEntity,omitempty"`
	Items   []EnrichedRecord `json:"items"`
	Meta    Meta             `json:"meta"`
}

// Options tune a single pipeline call.
type Options struct {
	// Max caps the number of records; <= 0 uses the configured default.
	Max int
	// Enrich opens each item's page to read secondary metrics.
	Enrich bool
}
