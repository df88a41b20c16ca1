//go:build !unittest

package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
)

// requestIdleWindow is how long the network must stay quiet for
// WaitNetworkIdle to resolve.
const requestIdleWindow = 500 * time.Millisecond

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	router   *rod.HijackRouter
	opts     LaunchOptions
}

// launchRod starts Chrome through the rod launcher. Every page it opens has
// the stealth evasions applied.
func launchRod(ctx context.Context, opts LaunchOptions) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l := launcher.New().Headless(opts.Headless).NoSandbox(true)
	for _, arg := range launchArgs {
		l = l.Set(flags.Flag(arg))
	}
	if opts.BrowserPath != "" {
		l = l.Bin(opts.BrowserPath)
	}
	if opts.Proxy != "" {
		l = l.Proxy(opts.Proxy)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("%w: launch browser: %v", ErrBrowserNotReady, err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("%w: connect browser: %v", ErrBrowserNotReady, err)
	}

	b := &rodBrowser{launcher: l, browser: browser, opts: opts}
	if opts.BlockResources {
		b.setupResourceBlocking()
	}
	return b, nil
}

// setupResourceBlocking drops media and analytics requests. Markup and
// scripts still load so the DOM renders normally.
func (b *rodBrowser) setupResourceBlocking() {
	router := b.browser.HijackRequests()
	blocked := []string{"*.css", "*.png", "*.jpg", "*.jpeg", "*.webp", "*.mp4", "*.woff*", "*.svg", "*analytics*"}
	for _, pattern := range blocked {
		router.MustAdd(pattern, func(ctx *rod.Hijack) {
			ctx.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
	}
	go router.Run()
	b.router = router
}

func (b *rodBrowser) NewPage(ctx context.Context) (Page, error) {
	page, err := stealth.Page(b.browser)
	if err != nil {
		return nil, fmt.Errorf("create stealth page: %w", err)
	}
	setup := page.Context(ctx)

	if b.opts.UserAgent != "" {
		if err := setup.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      b.opts.UserAgent,
			AcceptLanguage: b.opts.AcceptLanguage,
		}); err != nil {
			_ = page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if err := setup.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
		Width:  viewportWidth,
		Height: viewportHeight,
	}); err != nil {
		_ = page.Close()
		return nil, fmt.Errorf("set viewport: %w", err)
	}
	return &rodPage{page: page, opTimeout: pageOpTimeout}, nil
}

func (b *rodBrowser) Close() error {
	var errs []error
	if b.router != nil {
		if err := b.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop hijack router: %w", err))
		}
		b.router = nil
	}
	if b.browser != nil {
		if err := b.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
		b.browser = nil
	}
	if b.launcher != nil {
		b.launcher.Cleanup()
		b.launcher = nil
	}
	return errors.Join(errs...)
}

type rodPage struct {
	page      *rod.Page
	url       string
	opTimeout time.Duration
}

// bounded returns the page bound to ctx and timeout. Release it with
// CancelTimeout.
func (p *rodPage) bounded(ctx context.Context, timeout time.Duration) *rod.Page {
	return p.page.Context(ctx).Timeout(timeout)
}

func (p *rodPage) Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error {
	page := p.bounded(ctx, timeout)
	defer page.CancelTimeout()

	switch policy {
	case WaitNetworkIdle:
		wait := page.WaitRequestIdle(requestIdleWindow, nil, nil, nil)
		if err := page.Navigate(url); err != nil {
			return err
		}
		wait()
		if err := page.GetContext().Err(); err != nil {
			return err
		}
	default:
		wait := page.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
		if err := page.Navigate(url); err != nil {
			return err
		}
		wait()
		if err := page.GetContext().Err(); err != nil {
			return err
		}
	}
	p.url = url
	return nil
}

func (p *rodPage) WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error {
	page := p.bounded(ctx, timeout)
	defer page.CancelTimeout()
	_, err := page.Element(selector)
	return err
}

func (p *rodPage) Eval(ctx context.Context, fn string, args ...any) (json.RawMessage, error) {
	page := p.bounded(ctx, p.opTimeout)
	defer page.CancelTimeout()
	res, err := page.Evaluate(rod.Eval(fn, args...).ByPromise())
	if err != nil {
		return nil, err
	}
	return res.Value.MarshalJSON()
}

func (p *rodPage) HTML(ctx context.Context) (string, error) {
	page := p.bounded(ctx, p.opTimeout)
	defer page.CancelTimeout()
	return page.HTML()
}

func (p *rodPage) URL() string { return p.url }

func (p *rodPage) Cookies(ctx context.Context) ([]Cookie, error) {
	page := p.bounded(ctx, p.opTimeout)
	defer page.CancelTimeout()
	cookies, err := page.Cookies(nil)
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
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: string(c.SameSite),
		})
	}
	return out, nil
}

func (p *rodPage) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
			SameSite: proto.NetworkCookieSameSite(c.SameSite),
		})
	}
	page := p.bounded(ctx, p.opTimeout)
	defer page.CancelTimeout()
	return page.SetCookies(params)
}

func (p *rodPage) Scroll(ctx context.Context, dy float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return p.page.Mouse.Scroll(0, dy, 4)
}

func (p *rodPage) Close() error {
	return p.page.Close()
}
