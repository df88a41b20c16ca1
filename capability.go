package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// WaitPolicy selects the condition a navigation waits for.
type WaitPolicy int

const (
	// WaitNetworkIdle waits until the page stops issuing requests.
	WaitNetworkIdle WaitPolicy = iota
	// WaitDOMContentLoaded waits only until the initial markup is parsed.
	WaitDOMContentLoaded
)

func (p WaitPolicy) String() string {
	switch p {
	case WaitNetworkIdle:
		return "network-idle"
	case WaitDOMContentLoaded:
		return "dom-content-loaded"
	default:
		return fmt.Sprintf("WaitPolicy(%d)", int(p))
	}
}

// Browser is a running browser engine.
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one browsing context. Methods that block take a context and, where
// the engine supports it, an explicit timeout.
type Page interface {
	Navigate(ctx context.Context, url string, policy WaitPolicy, timeout time.Duration) error
	WaitForSelector(ctx context.Context, selector string, timeout time.Duration) error
	// Eval runs a JS function with JSON-encodable args and returns its JSON
	// encoded result.
	Eval(ctx context.Context, fn string, args ...any) (json.RawMessage, error)
	// HTML returns a snapshot of the current document.
	HTML(ctx context.Context) (string, error)
	// URL is the address of the last successful navigation.
	URL() string
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Scroll(ctx context.Context, dy float64) error
	Close() error
}

// LaunchOptions configure a browser engine.
type LaunchOptions struct {
	Headless       bool
	BrowserPath    string
	UserAgent      string
	AcceptLanguage string
	Proxy          string
	BlockResources bool
}

// Launcher starts a browser. LaunchEngine is the default.
type Launcher func(ctx context.Context, opts LaunchOptions) (Browser, error)

// Engine names accepted by LaunchEngine.
const (
	EngineRod      = "rod"
	EngineChromedp = "chromedp"
)

// LaunchEngine returns a Launcher for the named engine.
func LaunchEngine(name string) (Launcher, error) {
	switch name {
	case "", EngineRod:
		return launchRod, nil
	case EngineChromedp:
		return launchChromedp, nil
	default:
		return nil, fmt.Errorf("unknown browser engine %q", name)
	}
}

// launchArgs are the Chrome switches used by every engine.
var launchArgs = []string{
	"disable-blink-features=AutomationControlled",
	"disable-dev-shm-usage",
	"disable-gpu",
	"no-first-run",
	"disable-setuid-sandbox",
}

const (
	viewportWidth  = 1280
	viewportHeight = 800
)

// pageOpTimeout bounds every engine call that has no caller-supplied
// timeout: evaluation, snapshots and cookie access.
const pageOpTimeout = 30 * time.Second
