package tiktok

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// Profile scrapes the header of a user's profile page. When the browser
// cannot reach or read the page and HTTPFallback is on, the profile is
// fetched from the server-rendered HTML instead.
func (s *Scraper) Profile(ctx context.Context, username string) (Result, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	r := s.begin(PipelineProfile, username, Options{Max: 1})
	if username == "" {
		err := fmt.Errorf("profile: username is required")
		return r.fail(err), err
	}

	var p Profile
	err := s.withPage(ctx, r, false, func(_ Browser, page Page) error {
		var err error
		p, err = s.profileHeader(ctx, page, username)
		return err
	})
	if err != nil {
		p, err = s.fallbackProfile(ctx, r, username, err)
		if err != nil {
			return r.fail(err), err
		}
	}
	return r.finish(&p, nil), nil
}

// ProfileWithVideos scrapes the profile header and then the user's video
// grid ranked by views. Header failures are returned; a grid failure keeps
// the profile and marks the result partial.
func (s *Scraper) ProfileWithVideos(ctx context.Context, username string, opts Options) (Result, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	r := s.begin(PipelineProfileVideos, username, opts)
	if username == "" {
		err := fmt.Errorf("profile videos: username is required")
		return r.fail(err), err
	}

	var (
		p       Profile
		items   []EnrichedRecord
		gridErr error
	)
	err := s.withPage(ctx, r, false, func(b Browser, page Page) error {
		var err error
		p, err = s.profileHeader(ctx, page, username)
		if err != nil {
			return err
		}
		items, gridErr = s.collect(ctx, r, b, page, profileVideos)
		return nil
	})
	if browserErr := err; browserErr != nil {
		p, err = s.fallbackProfile(ctx, r, username, browserErr)
		if err != nil {
			return r.fail(err), err
		}
		gridErr = fmt.Errorf("video grid skipped: %w", browserErr)
	}
	if gridErr != nil {
		r.degrade(gridErr)
	}
	return r.finish(&p, items), nil
}

func (s *Scraper) profileURL(username string) string {
	return s.baseURL + "/@" + url.PathEscape(username)
}

// profileHeader opens the profile page and reads its header, filling gaps
// from the rehydration data embedded in the same document.
func (s *Scraper) profileHeader(ctx context.Context, page Page, username string) (Profile, error) {
	if err := s.nav.Open(ctx, page, s.profileURL(username)); err != nil {
		return Profile{}, err
	}
	if _, err := s.nav.WaitForAny(ctx, page, profileReady, s.cfg.SelectorTimeout); err != nil {
		return Profile{}, err
	}
	html, err := page.HTML(ctx)
	if err != nil {
		return Profile{}, fmt.Errorf("snapshot profile: %w", err)
	}
	rec, err := ExtractDocument(html, page.URL(), profileFields)
	if err != nil {
		return Profile{}, err
	}

	p := profileFromRecord(rec)
	if data, err := extractUniversalData([]byte(html)); err == nil {
		if ssr, err := extractUserFromSSR(data); err == nil {
			p = mergeProfile(p, ssr)
		}
	}
	if p.Username == "" {
		p.Username = username
	}
	return p, nil
}

// fallbackProfile retries a failed browser read over plain HTTP. Only
// navigation and layout failures qualify.
func (s *Scraper) fallbackProfile(ctx context.Context, r *run, username string, browserErr error) (Profile, error) {
	if !s.cfg.HTTPFallback ||
		!(errors.Is(browserErr, ErrNavigationFailed) || errors.Is(browserErr, ErrPageLayoutChanged)) {
		return Profile{}, browserErr
	}
	r.logger.Info("browser profile failed, trying http", zap.Error(browserErr))
	if s.cfg.UseSession {
		if sess, err := s.sessions.Load(); err == nil {
			s.setHTTPCookies(sess.Cookies)
		}
	}
	p, err := s.GetUser(ctx, username)
	if err != nil {
		return Profile{}, errors.Join(browserErr, err)
	}
	return p, nil
}

func profileFromRecord(r RawRecord) Profile {
	get := func(name string) string {
		v, _ := r.Get(name)
		return v
	}
	return Profile{
		Username:  strings.TrimPrefix(get("username"), "@"),
		Name:      get("name"),
		Avatar:    get("avatar"),
		Bio:       get("bio"),
		Following: ParseCount(get("following")),
		Followers: ParseCount(get("followers")),
		Likes:     ParseCount(get("likes")),
		Source:    SourceDOM,
	}
}
