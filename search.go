package tiktok

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// feed describes a multi-entity pipeline: where to go, what proves the page
// rendered and how to cut it into records.
type feed struct {
	pipeline string
	target   string
	url      string
	ready    []string
	schema   Schema
	auth     bool
}

// runFeed runs f to completion. It never returns an error: any fatal failure
// becomes an empty, failed Result carrying a reason code.
func (s *Scraper) runFeed(ctx context.Context, f feed, opts Options) Result {
	r := s.begin(f.pipeline, f.target, opts)
	var items []EnrichedRecord
	err := s.withPage(ctx, r, f.auth, func(b Browser, page Page) error {
		if err := s.nav.Open(ctx, page, f.url); err != nil {
			return err
		}
		if _, err := s.nav.WaitForAny(ctx, page, f.ready, s.cfg.SelectorTimeout); err != nil {
			return err
		}
		var err error
		items, err = s.collect(ctx, r, b, page, f.schema)
		return err
	})
	if err != nil {
		return r.fail(err)
	}
	return r.finish(nil, items)
}

// Hashtag returns the top search results for a hashtag, ranked by views.
// A leading '#' is optional.
func (s *Scraper) Hashtag(ctx context.Context, tag string, opts Options) Result {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	if tag == "" {
		return s.begin(PipelineHashtag, tag, opts).fail(fmt.Errorf("hashtag: tag is required"))
	}
	return s.runFeed(ctx, feed{
		pipeline: PipelineHashtag,
		target:   tag,
		url:      s.baseURL + "/search?q=" + url.QueryEscape("#"+tag),
		ready:    searchReady,
		schema:   searchResults,
	}, opts)
}

// Search returns the top search results for a keyword, ranked by views.
func (s *Scraper) Search(ctx context.Context, keyword string, opts Options) Result {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return s.begin(PipelineSearch, keyword, opts).fail(fmt.Errorf("search: keyword is required"))
	}
	return s.runFeed(ctx, feed{
		pipeline: PipelineSearch,
		target:   keyword,
		url:      s.baseURL + "/search?q=" + url.QueryEscape(keyword),
		ready:    searchReady,
		schema:   searchResults,
	}, opts)
}
