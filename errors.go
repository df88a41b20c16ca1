package tiktok

import (
	"context"
	"errors"
)

var (
	ErrSessionMissing    = errors.New("tiktok: session missing")
	ErrSessionInvalid    = errors.New("tiktok: session invalid")
	ErrNavigationFailed  = errors.New("tiktok: navigation failed")
	ErrPageLayoutChanged = errors.New("tiktok: page layout changed")
	ErrBrowserNotReady   = errors.New("tiktok: browser not initialized")
	ErrRateLimited       = errors.New("tiktok: rate limited")
	ErrNotFound          = errors.New("tiktok: not found")
	ErrInvalidResponse   = errors.New("tiktok: invalid response")
)

// Reason codes recorded in Meta.Reason when a pipeline degrades.
const (
	ReasonSessionMissing     = "session_missing"
	ReasonSessionInvalid     = "session_invalid"
	ReasonNavigationFailed   = "navigation_failed"
	ReasonLayoutChanged      = "layout_changed"
	ReasonBrowserUnavailable = "browser_unavailable"
	ReasonNotFound           = "not_found"
	ReasonCanceled           = "canceled"
	ReasonInternal           = "internal"
)

// ReasonCode maps an error to a stable diagnostic code. It returns "" for nil.
func ReasonCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSessionMissing):
		return ReasonSessionMissing
	case errors.Is(err, ErrSessionInvalid):
		return ReasonSessionInvalid
	case errors.Is(err, ErrPageLayoutChanged):
		return ReasonLayoutChanged
	case errors.Is(err, ErrNavigationFailed):
		return ReasonNavigationFailed
	case errors.Is(err, ErrBrowserNotReady):
		return ReasonBrowserUnavailable
	case errors.Is(err, ErrNotFound):
		return ReasonNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	default:
		return ReasonInternal
	}
}
