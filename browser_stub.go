//go:build unittest

package tiktok

import (
	"context"
	"fmt"
)

func launchRod(ctx context.Context, opts LaunchOptions) (Browser, error) {
	return nil, fmt.Errorf("rod: %w (build tag: unittest)", ErrBrowserNotReady)
}

func launchChromedp(ctx context.Context, opts LaunchOptions) (Browser, error) {
	return nil, fmt.Errorf("chromedp: %w (build tag: unittest)", ErrBrowserNotReady)
}
