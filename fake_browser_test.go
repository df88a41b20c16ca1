package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// ---------------------------------------------------------------------------
// Scripted fake browser
// ---------------------------------------------------------------------------

const testBaseURL = "https://www.tiktok.test"

// fakeSite is the scripted web the fake pages browse. HTML lookups are by
// exact URL; selectors are evaluated with goquery against that HTML.
type fakeSite struct {
	mu sync.Mutex

	docs map[string]string
	// authDocs replace docs when the page carries a "sessionid" cookie.
	authDocs map[string]string
	// navErr scripts navigation failures per URL and wait policy.
	navErr map[string]map[WaitPolicy]error
	// counts scripts the item count reported after each scroll round.
	counts map[string][]int

	navigations []string
}

func newFakeSite() *fakeSite {
	return &fakeSite{
		docs:     map[string]string{},
		authDocs: map[string]string{},
		navErr:   map[string]map[WaitPolicy]error{},
		counts:   map[string][]int{},
	}
}

func (s *fakeSite) page(url, html string) *fakeSite {
	s.docs[url] = html
	return s
}

func (s *fakeSite) failNav(url string, policy WaitPolicy, err error) *fakeSite {
	if s.navErr[url] == nil {
		s.navErr[url] = map[WaitPolicy]error{}
	}
	s.navErr[url][policy] = err
	return s
}

func (s *fakeSite) visited() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.navigations...)
}

type fakeBrowser struct {
	site *fakeSite

	mu         sync.Mutex
	pages      []*fakePage
	closed     int
	newPageErr error
}

func newFakeBrowser(site *fakeSite) *fakeBrowser {
	return &fakeBrowser{site: site}
}

func (b *fakeBrowser) launcher() Launcher {
	return func(ctx context.Context, _ LaunchOptions) (Browser, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return b, nil
	}
}

func (b *fakeBrowser) NewPage(ctx context.Context) (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.newPageErr != nil {
		return nil, b.newPageErr
	}
	p := &fakePage{site: b.site}
	b.pages = append(b.pages, p)
	return p, nil
}

func (b *fakeBrowser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed++
	return nil
}

// openPages counts pages that were never closed.
func (b *fakeBrowser) openPages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, p := range b.pages {
		if !p.isClosed() {
			n++
		}
	}
	return n
}

type fakePage struct {
	site *fakeSite

	mu      sync.Mutex
	url     string
	cookies []Cookie
	scrolls int
	closed  bool
}

func (p *fakePage) Navigate(ctx context.Context, url string, policy WaitPolicy, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.site.mu.Lock()
	p.site.navigations = append(p.site.navigations, url)
	err := p.site.navErr[url][policy]
	p.site.mu.Unlock()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.url = url
	p.scrolls = 0
	return nil
}

func (p *fakePage) html() string {
	p.mu.Lock()
	url := p.url
	authed := false
	for _, c := range p.cookies {
		if c.Name == "sessionid" {
			authed = true
		}
	}
	p.mu.Unlock()

	p.site.mu.Lock()
	defer p.site.mu.Unlock()
	if html, ok := p.site.authDocs[url]; ok && authed {
		return html
	}
	return p.site.docs[url]
}

func (p *fakePage) doc() *goquery.Document {
	doc, _ := goquery.NewDocumentFromReader(strings.NewReader(p.html()))
	return doc
}

func (p *fakePage) WaitForSelector(ctx context.Context, selector string, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.doc().Find(selector).Length() == 0 {
		return fmt.Errorf("wait for %s: %w", selector, context.DeadlineExceeded)
	}
	return nil
}

func (p *fakePage) Eval(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch fn {
	case measureScript:
		sel, _ := args[0].(string)
		count := p.doc().Find(sel).Length()
		p.mu.Lock()
		scripted, round := p.site.counts[p.url], p.scrolls
		p.mu.Unlock()
		if len(scripted) > 0 {
			count = scripted[min(round, len(scripted)-1)]
		}
		return json.Marshal(map[string]any{"count": count, "height": count * 100})
	case firstMatchScript:
		sels, _ := args[0].([]string)
		doc := p.doc()
		for _, sel := range sels {
			if doc.Find(sel).Length() > 0 {
				return json.Marshal(sel)
			}
		}
		return json.Marshal("")
	}
	return nil, errors.New("fake: unsupported script")
}

func (p *fakePage) HTML(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return p.html(), nil
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) Cookies(context.Context) ([]Cookie, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Cookie(nil), p.cookies...), nil
}

func (p *fakePage) SetCookies(_ context.Context, cookies []Cookie) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cookies = append(p.cookies, cookies...)
	return nil
}

func (p *fakePage) Scroll(context.Context, float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scrolls++
	return nil
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) isClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// ---------------------------------------------------------------------------
// Scraper wiring for tests
// ---------------------------------------------------------------------------

func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BaseURL = testBaseURL
	cfg.SessionFile = filepath.Join(t.TempDir(), "session", "session.json")
	cfg.NavigationTimeout = time.Second
	cfg.SelectorTimeout = 10 * time.Millisecond
	cfg.ScrollDelay = 0
	cfg.ScrollJitter = 0
	cfg.EnrichDelay = 0
	cfg.EnrichJitter = 0
	cfg.EnrichTimeout = 10 * time.Millisecond
	cfg.ProfileDelay = 0
	cfg.MaxStableRounds = 2
	return cfg
}

func newTestScraper(t *testing.T, site *fakeSite) (*Scraper, *fakeBrowser) {
	t.Helper()
	return newTestScraperWithConfig(t, testConfig(t), site)
}

func newTestScraperWithConfig(t *testing.T, cfg Config, site *fakeSite) (*Scraper, *fakeBrowser) {
	t.Helper()
	fb := newFakeBrowser(site)
	s := New(cfg).WithLauncher(fb.launcher())
	return s, fb
}

func testCookies() []Cookie {
	return []Cookie{
		{Name: "sessionid", Value: "abc", Domain: ".tiktok.test", Path: "/", Secure: true, HTTPOnly: true},
		{Name: "tt_csrf_token", Value: "xyz", Domain: ".tiktok.test", Path: "/"},
	}
}

func strPtr(s string) *string { return &s }
