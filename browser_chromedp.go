//go:build !unittest

package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

type cdpBrowser struct {
	ctx         context.Context
	cancel      context.CancelFunc
	cancelAlloc context.CancelFunc
}

// launchChromedp starts Chrome through a chromedp exec allocator. The browser
// outlives ctx; only Close tears it down.
func launchChromedp(ctx context.Context, opts LaunchOptions) (Browser, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.NoSandbox,
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	for _, arg := range launchArgs {
		allocOpts = append(allocOpts, chromedp.Flag(arg, true))
	}
	if opts.BrowserPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.BrowserPath))
	}
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Proxy != "" {
		allocOpts = append(allocOpts, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.BlockResources {
		allocOpts = append(allocOpts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	bctx, cancel := chromedp.NewContext(allocCtx)

	startCtx, stop := context.WithCancel(bctx)
	defer stop()
	unbind := context.AfterFunc(ctx, stop)
	defer unbind()

	if err := chromedp.Run(startCtx); err != nil {
		cancel()
		cancelAlloc()
		return nil, fmt.Errorf("%w: start chromedp: %v", ErrBrowserNotReady, err)
	}
	return &cdpBrowser{ctx: bctx, cancel: cancel, cancelAlloc: cancelAlloc}, nil
}

func (b *cdpBrowser) NewPage(ctx context.Context) (Page, error) {
	tabCtx, cancel := chromedp.NewContext(b.ctx)
	p := &cdpPage{ctx: tabCtx, cancel: cancel}
	if err := p.run(ctx, pageOpTimeout, network.Enable()); err != nil {
		cancel()
		return nil, fmt.Errorf("open tab: %w", err)
	}
	return p, nil
}

func (b *cdpBrowser) Close() error {
	err := chromedp.Cancel(b.ctx)
	b.cancel()
	b.cancelAlloc()
	return err
}

type cdpPage struct {
	ctx    context.Context
	cancel context.CancelFunc
	url    string
}

// run executes actions on the tab bounded by both ctx and timeout.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

func (p *cdpPage) Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error {
	var err error
	switch policy {
	case WaitNetworkIdle:
		err = p.navigateUntil(ctx, url, "networkIdle", timeout)
	default:
		err = p.navigateUntil(ctx, url, "DOMContentLoaded", timeout)
	}
	if err != nil {
		return err
	}
	p.url = url
	return nil
}

// navigateUntil issues the navigation and blocks until the named lifecycle
// event fires for the new document.
func (p *cdpPage) navigateUntil(ctx context.Context, url, event string, timeout time.Duration) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	w := newLifecycleWaiter(event)
	listenCtx, stopListen := context.WithCancel(runCtx)
	defer stopListen()
	chromedp.ListenTarget(listenCtx, func(ev any) {
		if e, ok := ev.(*page.EventLifecycleEvent); ok {
			w.observe(e.LoaderID, e.Name)
		}
	})

	err := chromedp.Run(runCtx,
		page.SetLifecycleEventsEnabled(true),
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, id, errText, err := page.Navigate(url).Do(ctx)
			if err != nil {
				return err
			}
			if errText != "" {
				return fmt.Errorf("navigate %s: %s", url, errText)
			}
			w.expect(id)
			return nil
		}),
	)
	if err != nil {
		return err
	}

	select {
	case <-w.fired:
		return nil
	case <-runCtx.Done():
		return runCtx.Err()
	}
}

// lifecycleWaiter matches lifecycle events against the loader of the
// navigation being awaited. Events seen before the loader is known are kept
// aside, so an event from the previous document never counts and an early
// event from the new one is not lost.
type lifecycleWaiter struct {
	event string
	fired chan struct{}

	mu     sync.Mutex
	loader cdp.LoaderID
	known  bool
	early  map[cdp.LoaderID]bool
}

func newLifecycleWaiter(event string) *lifecycleWaiter {
	return &lifecycleWaiter{
		event: event,
		fired: make(chan struct{}, 1),
		early: map[cdp.LoaderID]bool{},
	}
}

func (w *lifecycleWaiter) observe(loader cdp.LoaderID, name string) {
	if name != w.event {
		return
	}
	w.mu.Lock()
	if !w.known {
		w.early[loader] = true
		w.mu.Unlock()
		return
	}
	match := loader == w.loader
	w.mu.Unlock()
	if match {
		w.signal()
	}
}

// expect records the navigation's loader. An empty loader is a same-document
// navigation, which fires no lifecycle events and is done at once.
func (w *lifecycleWaiter) expect(loader cdp.LoaderID) {
	w.mu.Lock()
	w.loader, w.known = loader, true
	seen := w.early[loader]
	w.early = nil
	w.mu.Unlock()
	if loader == "" || seen {
		w.signal()
	}
}

func (w *lifecycleWaiter) signal() {
	select {
	case w.fired <- struct{}{}:
	default:
	}
}

func (p *cdpPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	return p.run(ctx, timeout, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (p *cdpPage) Eval(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode eval args: %w", err)
	}
	expr := fmt.Sprintf("(%s)(...%s)", fn, encoded)

	var raw []byte
	err = p.run(ctx, pageOpTimeout, chromedp.Evaluate(expr, &raw, awaitPromise))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func awaitPromise(p *runtime.EvaluateParams) *runtime.EvaluateParams {
	return p.WithAwaitPromise(true)
}

func (p *cdpPage) HTML(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, pageOpTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *cdpPage) URL() string { return p.url }

func (p *cdpPage) Cookies(ctx context.Context) ([]Cookie, error) {
	var cookies []*network.Cookie
	err := p.run(ctx, pageOpTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: c.SameSite.String(),
		})
	}
	return out, nil
}

func (p *cdpPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*network.CookieParam, 0, len(cookies))
	for _, c := range cookies {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Expires > 0 {
			exp := cdp.TimeSinceEpoch(time.Unix(0, int64(c.Expires*float64(time.Second))))
			param.Expires = &exp
		}
		params = append(params, param)
	}
	return p.run(ctx, pageOpTimeout, network.SetCookies(params))
}

func (p *cdpPage) Scroll(ctx context.Context, dy float64) error {
	return p.run(ctx, 10*time.Second, chromedp.Evaluate(fmt.Sprintf("window.scrollBy(0, %f)", dy), nil))
}

func (p *cdpPage) Close() error {
	err := chromedp.Cancel(p.ctx)
	p.cancel()
	return err
}
