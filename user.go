package tiktok

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// GetUser fetches a profile from the server-rendered HTML of the profile
// page. It is plain HTTP: no browser and no login.
func (s *Scraper) GetUser(ctx context.Context, username string) (Profile, error) {
	if username == "" {
		return Profile{}, fmt.Errorf("get user: username is required")
	}

	totalStart := time.Now()
	profileURL := s.baseURL + "/@" + username

	delayStart := time.Now()
	if err := s.profilePacer.Wait(ctx); err != nil {
		return Profile{}, fmt.Errorf("get user %q: %w", username, err)
	}
	delayDur := time.Since(delayStart)

	httpStart := time.Now()
	resp, err := s.doRequest(ctx, http.MethodGet, profileURL, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("get user %q: %w", username, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, fmt.Errorf("read user page %q: %w", username, err)
	}
	httpDur := time.Since(httpStart)

	parseStart := time.Now()
	data, err := extractUniversalData(body)
	if err != nil {
		return Profile{}, fmt.Errorf("parse user page %q: %w", username, err)
	}

	p, err := extractUserFromSSR(data)
	if err != nil {
		return Profile{}, fmt.Errorf("extract user %q: %w", username, err)
	}
	p.Source = SourceHTTP

	s.logger.Debug("http profile fetched",
		zap.String("target", username),
		zap.Duration("delay", delayDur),
		zap.Duration("http", httpDur),
		zap.Duration("parse", time.Since(parseStart)),
		zap.Duration("duration", time.Since(totalStart)),
		zap.Int("bytes", len(body)))

	return p, nil
}
