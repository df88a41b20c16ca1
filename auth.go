package tiktok

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const defaultLoginPath = "/login"

// BrowserLogin is a LoginFlow that opens the login page in a visible browser
// and lets a human complete it. Confirm blocks until the human reports that
// they are logged in; the page cookies are captured after it returns.
type BrowserLogin struct {
	Launch    Launcher
	Options   LaunchOptions
	Navigator *Navigator
	LoginURL  string
	Confirm   func(ctx context.Context) error
	// MarkerTimeout bounds the wait for the logged-in marker after Confirm.
	MarkerTimeout time.Duration

	logger *zap.Logger
}

// NewBrowserLogin returns a login flow using the scraper's engine with a
// visible window.
func (s *Scraper) NewBrowserLogin(confirm func(ctx context.Context) error) *BrowserLogin {
	opts := s.cfg.LaunchOptions()
	opts.Headless = false
	opts.BlockResources = false
	return &BrowserLogin{
		Launch:        s.launch,
		Options:       opts,
		Navigator:     s.nav,
		LoginURL:      s.baseURL + defaultLoginPath,
		Confirm:       confirm,
		MarkerTimeout: 10 * time.Second,
		logger:        s.logger,
	}
}

// Login runs an interactive login through the session store so concurrent
// logins collapse into one.
func (s *Scraper) Login(ctx context.Context, confirm func(ctx context.Context) error) (*Session, error) {
	return s.sessions.CreateInteractive(ctx, s.NewBrowserLogin(confirm))
}

func (l *BrowserLogin) Login(ctx context.Context) ([]Cookie, error) {
	logger := l.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	browser, err := l.Launch(ctx, l.Options)
	if err != nil {
		return nil, fmt.Errorf("launch login browser: %w", err)
	}
	defer func() {
		if err := browser.Close(); err != nil {
			logger.Debug("close login browser", zap.Error(err))
		}
	}()

	page, err := browser.NewPage(ctx)
	if err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			logger.Debug("close login page", zap.Error(err))
		}
	}()

	if err := l.Navigator.Open(ctx, page, l.LoginURL); err != nil {
		return nil, err
	}
	if l.Confirm != nil {
		if err := l.Confirm(ctx); err != nil {
			return nil, fmt.Errorf("confirm login: %w", err)
		}
	}

	// A missing marker is logged, not fatal.
	if _, err := l.Navigator.WaitForAny(ctx, page, loggedInMarkers, l.MarkerTimeout); err != nil {
		if !errors.Is(err, ErrPageLayoutChanged) {
			return nil, err
		}
		logger.Warn("logged-in marker not found, saving cookies anyway", zap.String("url", page.URL()))
	}

	cookies, err := page.Cookies(ctx)
	if err != nil {
		return nil, fmt.Errorf("read login cookies: %w", err)
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("%w: login produced no cookies", ErrSessionInvalid)
	}
	return cookies, nil
}
