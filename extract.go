package tiktok

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Query is one way to read a field. An empty Selector reads the container
// itself; an empty Attr reads the element's text.
type Query struct {
	Selector string
	Attr     string
}

// FieldSpec names a field and the ordered queries that may produce it.
type FieldSpec struct {
	Name  string
	Chain []Query
}

// Schema describes how to cut a page into records. The first container
// selector that matches anything defines the item boundaries.
type Schema struct {
	Name       string
	Containers []string
	Fields     []FieldSpec
}

// Extractor reads records from a rendered page.
type Extractor struct {
	Schema Schema

	logger *zap.Logger
}

// NewExtractor returns an Extractor for schema.
func NewExtractor(schema Schema, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{Schema: schema, logger: logger}
}

// Extract snapshots page and returns one record per container, at most max.
// A max of zero or less means no cap.
// A field none of whose queries match is null; it never drops the record.
func (e *Extractor) Extract(ctx context.Context, page Page, max int) ([]RawRecord, error) {
	html, err := page.HTML(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot %s: %w", e.Schema.Name, err)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse %s snapshot: %w", e.Schema.Name, err)
	}
	return e.extractDocument(doc, page.URL(), max), nil
}

func (e *Extractor) extractDocument(doc *goquery.Document, base string, max int) []RawRecord {
	containers, anchor := e.containers(doc)
	if containers.Length() > max && max > 0 {
		containers = containers.Slice(0, max)
	}

	baseURL, _ := url.Parse(base)
	records := make([]RawRecord, 0, containers.Length())
	nulls := 0
	containers.Each(func(_ int, item *goquery.Selection) {
		fields := extractFields(item, baseURL, e.Schema.Fields)
		for _, v := range fields {
			if v == nil {
				nulls++
			}
		}
		records = append(records, RawRecord{fields: fields})
	})

	e.logger.Debug("extracted records",
		zap.String("schema", e.Schema.Name),
		zap.String("anchor", anchor),
		zap.Int("records", len(records)),
		zap.Int("null_fields", nulls))
	return records
}

func (e *Extractor) containers(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range e.Schema.Containers {
		if found := doc.Find(sel); found.Length() > 0 {
			return found, sel
		}
	}
	return doc.Selection.Slice(0, 0), ""
}

// ExtractDocument reads one record from a whole HTML document.
func ExtractDocument(html, base string, fields []FieldSpec) (RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return RawRecord{}, fmt.Errorf("parse document: %w", err)
	}
	baseURL, _ := url.Parse(base)
	return RawRecord{fields: extractFields(doc.Selection, baseURL, fields)}, nil
}

func extractFields(root *goquery.Selection, base *url.URL, specs []FieldSpec) map[string]*string {
	out := make(map[string]*string, len(specs))
	for _, f := range specs {
		out[f.Name] = nil
		for _, q := range f.Chain {
			if v, ok := runQuery(root, base, q); ok {
				out[f.Name] = &v
				break
			}
		}
	}
	return out
}

func runQuery(root *goquery.Selection, base *url.URL, q Query) (string, bool) {
	sel := root
	if q.Selector != "" {
		sel = root.Find(q.Selector).First()
	}
	if sel.Length() == 0 {
		return "", false
	}

	var v string
	if q.Attr == "" {
		v = cleanText(sel.Text())
	} else {
		attr, ok := sel.Attr(q.Attr)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(attr)
		if q.Attr == attrHref || q.Attr == attrSrc {
			v = resolveURL(base, v)
		}
	}
	return v, v != ""
}

// cleanText collapses whitespace runs the way rendered text would show them.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func resolveURL(base *url.URL, ref string) string {
	if base == nil || ref == "" {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
