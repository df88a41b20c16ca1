package tiktok

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Navigator opens pages and waits for content with two independent retry
// axes: the wait policy of the navigation and a chain of fallback selectors.
type Navigator struct {
	// Timeout bounds each navigation attempt.
	Timeout time.Duration
	// HomeURL is opened to verify a session.
	HomeURL string

	logger *zap.Logger
}

// NewNavigator returns a Navigator with the given per-attempt timeout.
func NewNavigator(timeout time.Duration, logger *zap.Logger) *Navigator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Navigator{Timeout: timeout, HomeURL: defaultBaseURL, logger: logger}
}

// Open navigates page to url waiting for the network to settle. If that
// does not happen in time it retries once waiting only for the initial
// markup. When both attempts fail it returns ErrNavigationFailed.
func (n *Navigator) Open(ctx context.Context, page Page, url string) error {
	start := time.Now()
	primary := page.Navigate(ctx, url, WaitNetworkIdle, n.Timeout)
	if primary == nil {
		n.logger.Debug("navigation settled",
			zap.String("url", url),
			zap.Stringer("policy", WaitNetworkIdle),
			zap.Duration("duration", time.Since(start)))
		return nil
	}
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %s: %w", ErrNavigationFailed, url, errors.Join(primary, ctx.Err()))
	}

	n.logger.Info("navigation did not settle, retrying with relaxed wait",
		zap.String("url", url), zap.Error(primary))

	relaxed := page.Navigate(ctx, url, WaitDOMContentLoaded, n.Timeout)
	if relaxed == nil {
		n.logger.Debug("navigation loaded",
			zap.String("url", url),
			zap.Stringer("policy", WaitDOMContentLoaded),
			zap.Duration("duration", time.Since(start)))
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrNavigationFailed, url, errors.Join(primary, relaxed))
}

// WaitForAny tries each selector in order, giving each up to timeout, and
// returns the first one that appears. An exhausted chain means the page
// loaded but its markup no longer matches: ErrPageLayoutChanged.
func (n *Navigator) WaitForAny(ctx context.Context, page Page, chain []string, timeout time.Duration) (string, error) {
	for _, sel := range chain {
		err := page.WaitForSelector(ctx, sel, timeout)
		if err == nil {
			n.logger.Debug("selector matched", zap.String("selector", sel))
			return sel, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		n.logger.Debug("selector missed", zap.String("selector", sel), zap.Error(err))
	}
	return "", fmt.Errorf("%w: none of %q on %s", ErrPageLayoutChanged, chain, page.URL())
}

// ApplySession copies the session cookies into page.
func (n *Navigator) ApplySession(ctx context.Context, page Page, s *Session) error {
	if s.State() == SessionAbsent {
		return ErrSessionMissing
	}
	if err := page.SetCookies(ctx, s.Cookies); err != nil {
		return fmt.Errorf("apply session cookies: %w", err)
	}
	return nil
}

// VerifySession applies s to page, opens the home page and looks for a
// marker that only renders for logged-in users. On success s becomes
// verified. A missing marker yields ErrSessionInvalid; navigation errors
// are returned unchanged.
func (n *Navigator) VerifySession(ctx context.Context, page Page, s *Session, timeout time.Duration) error {
	if s.State() == SessionVerified {
		return nil
	}
	if err := n.ApplySession(ctx, page, s); err != nil {
		return err
	}
	if err := n.Open(ctx, page, n.HomeURL); err != nil {
		return err
	}
	if _, err := n.WaitForAny(ctx, page, loggedInMarkers, timeout); err != nil {
		if errors.Is(err, ErrPageLayoutChanged) {
			return fmt.Errorf("%w: logged-in marker not found", ErrSessionInvalid)
		}
		return err
	}
	s.markVerified()
	n.logger.Info("session verified", zap.Time("created_at", s.CreatedAt))
	return nil
}
