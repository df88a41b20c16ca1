package tiktok

import "context"

// Trending returns the explore feed ranked by its displayed like counts.
func (s *Scraper) Trending(ctx context.Context, opts Options) Result {
	return s.runFeed(ctx, feed{
		pipeline: PipelineTrending,
		url:      s.baseURL + "/explore",
		ready:    trendingReady,
		schema:   trendingFeed,
	}, opts)
}

// ForYou returns the personalized feed of the stored session. The session
// is verified first; a session that fails verification is removed and the
// result reports session_invalid.
func (s *Scraper) ForYou(ctx context.Context, opts Options) Result {
	return s.runFeed(ctx, feed{
		pipeline: PipelineForYou,
		url:      s.baseURL + "/foryou?lang=en",
		ready:    forYouReady,
		schema:   forYouFeed,
		auth:     true,
	}, opts)
}

// CheckSession loads the stored session and verifies it against the live
// site. A session that fails verification is removed.
func (s *Scraper) CheckSession(ctx context.Context) (*Session, error) {
	r := s.begin(PipelineSessionCheck, "", Options{Max: 1})
	var sess *Session
	err := s.withPage(ctx, r, false, func(_ Browser, page Page) error {
		var err error
		sess, err = s.requireSession(ctx, r, page)
		return err
	})
	if err != nil {
		r.fail(err)
		return nil, err
	}
	r.finish(nil, nil)
	return sess, nil
}
