package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const profileHeaderHTML = `
<div data-e2e="user-page">
	<div data-e2e="user-avatar"><img src="/avatar/alice.jpg"></div>
	<h1 data-e2e="user-title">alice</h1>
	<h2 data-e2e="user-subtitle">Alice A.</h2>
	<h2 data-e2e="user-bio">dancing  every
	day</h2>
	<strong data-e2e="following-count">12</strong>
	<strong data-e2e="followers-count">1.5M</strong>
	<strong data-e2e="likes-count">2,345</strong>
</div>`

func gridItem(id, views string) string {
	return `<div data-e2e="user-post-item"><a href="/@alice/video/` + id + `"><img src="/thumb/` + id + `.jpg" alt="video ` + id + `"></a>` +
		`<strong data-e2e="video-views">` + views + `</strong></div>`
}

func profilePageHTML(items ...string) string {
	return `<html><body>` + profileHeaderHTML + strings.Join(items, "") + `</body></html>`
}

func searchItem(id, views, user string) string {
	return `<div class="css-x-DivItemContainerForSearch">` +
		`<a class="css-y-AVideoContainer" href="/@` + user + `/video/` + id + `"><picture><img src="/t/` + id + `.jpg" alt="caption ` + id + `"></picture></a>` +
		`<strong class="css-z-StrongVideoCount">` + views + `</strong>` +
		`<p data-e2e="search-card-user-unique-id">` + user + `</p>` +
		`<a data-e2e="search-card-user-link" href="/@` + user + `"></a>` +
		`</div>`
}

func searchPageHTML(items ...string) string {
	return `<html><body><div data-e2e="search_top-item-list">` + strings.Join(items, "") + `</div></body></html>`
}

func exploreItem(id, likes string) string {
	return `<div class="css-q-DivItemContainerV2">` +
		`<a href="/@u` + id + `/video/` + id + `"><picture><img src="/t/` + id + `.jpg" alt="explore ` + id + `"></picture></a>` +
		`<div data-e2e="explore-card-like-container"><span>` + likes + `</span></div>` +
		`<p data-e2e="explore-card-user-unique-id">u` + id + `</p>` +
		`</div>`
}

func feedItem(id, likes string) string {
	return `<div data-e2e="recommend-list-item-container">` +
		`<a data-e2e="user-link" href="/@f` + id + `">f` + id + `</a>` +
		`<a href="/@f` + id + `/video/` + id + `">watch</a>` +
		`<span data-e2e="video-desc">feed ` + id + `</span>` +
		`<strong data-e2e="like-count">` + likes + `</strong>` +
		`<strong data-e2e="comment-count">1</strong>` +
		`<strong data-e2e="share-count">2</strong>` +
		`</div>`
}

func rankedField(items []EnrichedRecord, field string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i], _ = it.Record.Get(field)
	}
	return out
}

func failEverywhere(site *fakeSite, url string) {
	site.failNav(url, WaitNetworkIdle, errors.New("net::ERR_TIMED_OUT")).
		failNav(url, WaitDOMContentLoaded, errors.New("net::ERR_TIMED_OUT"))
}

// ---------------------------------------------------------------------------
// Profile
// ---------------------------------------------------------------------------

func TestProfile_FromDOM(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/@alice", profilePageHTML())
	s, fb := newTestScraper(t, site)

	res, err := s.Profile(context.Background(), "@alice")
	require.NoError(t, err)
	require.NotNil(t, res.Primary)

	want := Profile{
		Username:  "alice",
		Name:      "Alice A.",
		Avatar:    testBaseURL + "/avatar/alice.jpg",
		Bio:       "dancing every day",
		Following: 12,
		Followers: 1500000,
		Likes:     2345,
		Source:    SourceDOM,
	}
	if diff := cmp.Diff(want, *res.Primary); diff != "" {
		t.Errorf("profile mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, PipelineProfile, res.Meta.Pipeline)
	assert.NotEmpty(t, res.Meta.RunID)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 1, fb.closed)
	assert.Zero(t, fb.openPages())
}

func TestProfile_SSRFillsGaps(t *testing.T) {
	t.Parallel()
	html := `<html><body><div data-e2e="user-page"><h1 data-e2e="user-title">bob</h1></div>` +
		`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">` +
		`{"__DEFAULT_SCOPE__":{"webapp.user-detail":{"userInfo":{"user":{"id":"77","uniqueId":"bob","nickname":"Bobby","signature":"hi","verified":true},"stats":{"followerCount":900,"followingCount":3,"heartCount":40,"videoCount":8}}}}}` +
		`</script></body></html>`
	site := newFakeSite().page(testBaseURL+"/@bob", html)
	s, _ := newTestScraper(t, site)

	res, err := s.Profile(context.Background(), "bob")
	require.NoError(t, err)
	p := res.Primary
	assert.Equal(t, "77", p.ID)
	assert.Equal(t, "Bobby", p.Name)
	assert.Equal(t, int64(900), p.Followers)
	assert.Equal(t, int64(40), p.Likes)
	assert.Equal(t, int64(8), p.VideoCount)
	assert.True(t, p.Verified)
}

func TestProfile_HTTPFallback(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ssrPage(strings.TrimPrefix(r.URL.Path, "/@"), "123", 5000)))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.BaseURL = srv.URL
	site := newFakeSite()
	failEverywhere(site, srv.URL+"/@carol")
	s, fb := newTestScraperWithConfig(t, cfg, site)

	res, err := s.Profile(context.Background(), "carol")
	require.NoError(t, err)
	assert.Equal(t, "carol", res.Primary.Username)
	assert.Equal(t, int64(5000), res.Primary.Followers)
	assert.Equal(t, SourceHTTP, res.Primary.Source)
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, 1, fb.closed)
}

func TestProfile_FallbackDisabled(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.HTTPFallback = false
	site := newFakeSite()
	failEverywhere(site, testBaseURL+"/@carol")
	s, _ := newTestScraperWithConfig(t, cfg, site)

	res, err := s.Profile(context.Background(), "carol")
	require.ErrorIs(t, err, ErrNavigationFailed)
	assert.Nil(t, res.Primary)
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonNavigationFailed, res.Meta.Reason)
}

func TestProfile_BothPathsFail(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.BaseURL = srv.URL
	site := newFakeSite().page(srv.URL+"/@ghost", `<html><body>Couldn't find this account</body></html>`)
	s, _ := newTestScraperWithConfig(t, cfg, site)

	_, err := s.Profile(context.Background(), "ghost")
	require.ErrorIs(t, err, ErrPageLayoutChanged)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProfile_BrowserUnavailable(t *testing.T) {
	t.Parallel()
	s := New(testConfig(t)).WithLauncher(func(context.Context, LaunchOptions) (Browser, error) {
		return nil, errors.New("chrome not found")
	})

	res, err := s.Profile(context.Background(), "alice")
	require.ErrorIs(t, err, ErrBrowserNotReady)
	assert.Equal(t, ReasonBrowserUnavailable, res.Meta.Reason)
}

func TestProfile_EmptyUsername(t *testing.T) {
	t.Parallel()
	s, fb := newTestScraper(t, newFakeSite())
	_, err := s.Profile(context.Background(), "  ")
	require.Error(t, err)
	assert.Zero(t, fb.closed, "no browser launched")
}

// ---------------------------------------------------------------------------
// ProfileWithVideos
// ---------------------------------------------------------------------------

func TestProfileWithVideos_RanksByViews(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/@alice", profilePageHTML(
		gridItem("1", "1.2K"),
		gridItem("2", "3M"),
		gridItem("3", "900"),
		gridItem("4", "45.6K"),
	))
	s, fb := newTestScraper(t, site)

	res, err := s.ProfileWithVideos(context.Background(), "alice", Options{Max: 3})
	require.NoError(t, err)
	require.NotNil(t, res.Primary)
	assert.Equal(t, "alice", res.Primary.Username)

	// The cap applies in page order; video 4 is never extracted.
	want := []string{
		testBaseURL + "/@alice/video/2",
		testBaseURL + "/@alice/video/1",
		testBaseURL + "/@alice/video/3",
	}
	if diff := cmp.Diff(want, rankedField(res.Items, FieldVideoLink)); diff != "" {
		t.Errorf("ranking mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 1, res.Items[0].Position)
	assert.Nil(t, res.Items[0].Secondary)
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, 3, res.Meta.RequestedCount)
	assert.Equal(t, 4, res.Meta.LoadedCount)
	assert.Equal(t, 3, res.Meta.ExtractedCount)
	assert.Zero(t, fb.openPages())
}

func TestProfileWithVideos_Enrich(t *testing.T) {
	t.Parallel()
	site := newFakeSite().
		page(testBaseURL+"/@alice", profilePageHTML(gridItem("1", "10"), gridItem("2", "20"))).
		page(testBaseURL+"/@alice/video/1", videoPage("5", "1", "0", "10")).
		page(testBaseURL+"/@alice/video/2", `<html><body><p>removed</p></body></html>`)
	s, fb := newTestScraper(t, site)

	res, err := s.ProfileWithVideos(context.Background(), "alice", Options{Enrich: true})
	require.NoError(t, err)
	require.Len(t, res.Items, 2)

	assert.True(t, res.Items[0].Secondary.Empty(), "video 2 failed and keeps empty metrics")
	require.NotNil(t, res.Items[1].Secondary.Likes)
	assert.Equal(t, int64(5), *res.Items[1].Secondary.Likes)
	assert.Equal(t, 1, res.Meta.EnrichedCount)
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Zero(t, fb.openPages(), "primary and secondary pages closed")
}

func TestProfileWithVideos_NoVideos(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/@alice", profilePageHTML())
	s, _ := newTestScraper(t, site)

	res, err := s.ProfileWithVideos(context.Background(), "alice", Options{})
	require.NoError(t, err)
	assert.NotNil(t, res.Primary)
	assert.Empty(t, res.Items)
	assert.Equal(t, StatusOK, res.Meta.Status)
}

func TestProfileWithVideos_FallbackKeepsProfileAsPartial(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(ssrPage("dave", "9", 10)))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.BaseURL = srv.URL
	site := newFakeSite()
	failEverywhere(site, srv.URL+"/@dave")
	s, _ := newTestScraperWithConfig(t, cfg, site)

	res, err := s.ProfileWithVideos(context.Background(), "dave", Options{})
	require.NoError(t, err)
	require.NotNil(t, res.Primary)
	assert.Equal(t, SourceHTTP, res.Primary.Source)
	assert.Empty(t, res.Items)
	assert.Equal(t, StatusPartial, res.Meta.Status)
	assert.Equal(t, ReasonNavigationFailed, res.Meta.Reason)
}

func TestProfileWithVideos_HeaderErrorPropagates(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.HTTPFallback = false
	site := newFakeSite().page(testBaseURL+"/@alice", `<html><body>new layout</body></html>`)
	s, _ := newTestScraperWithConfig(t, cfg, site)

	res, err := s.ProfileWithVideos(context.Background(), "alice", Options{})
	require.ErrorIs(t, err, ErrPageLayoutChanged)
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Empty(t, res.Items)
}

// ---------------------------------------------------------------------------
// Multi-entity pipelines
// ---------------------------------------------------------------------------

func TestHashtag(t *testing.T) {
	t.Parallel()
	url := testBaseURL + "/search?q=%23dance"
	site := newFakeSite().page(url, searchPageHTML(
		searchItem("1", "100", "a"),
		searchItem("2", "2.5K", "b"),
		searchItem("3", "1M", "c"),
	))
	s, fb := newTestScraper(t, site)

	res := s.Hashtag(context.Background(), "#dance", Options{})
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, "dance", res.Meta.Target)
	assert.Equal(t, []string{"c", "b", "a"}, rankedField(res.Items, FieldUsername))
	assert.Equal(t, testBaseURL+"/@c", rankedField(res.Items, FieldProfileLink)[0])
	assert.Equal(t, "caption 3", rankedField(res.Items, FieldDescription)[0])
	assert.Equal(t, 1, fb.closed)
	assert.Zero(t, fb.openPages())
}

func TestSearch(t *testing.T) {
	t.Parallel()
	url := testBaseURL + "/search?q=cute+cats"
	site := newFakeSite().page(url, searchPageHTML(searchItem("1", "5", "a"), searchItem("2", "50", "b")))
	s, _ := newTestScraper(t, site)

	res := s.Search(context.Background(), "cute cats", Options{Max: 1})
	require.Len(t, res.Items, 1)
	assert.Equal(t, "a", rankedField(res.Items, FieldUsername)[0], "max applies before ranking")
	assert.Equal(t, 1, res.Meta.RequestedCount)
}

func TestTrending(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/explore", `<html><body>`+
		exploreItem("1", "10K")+exploreItem("2", "200K")+exploreItem("3", "9")+`</body></html>`)
	s, _ := newTestScraper(t, site)

	res := s.Trending(context.Background(), Options{})
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, []string{"u2", "u1", "u3"}, rankedField(res.Items, FieldUsername))
	assert.Equal(t, []int64{200000, 10000, 9}, []int64{res.Items[0].Metric, res.Items[1].Metric, res.Items[2].Metric})
}

func TestTrending_ConcurrentEnrichRunsPaceIndependently(t *testing.T) {
	t.Parallel()
	site := newFakeSite().
		page(testBaseURL+"/explore", `<html><body>`+exploreItem("1", "10")+exploreItem("2", "20")+`</body></html>`).
		page(testBaseURL+"/@u1/video/1", videoPage("1", "1", "1", "1")).
		page(testBaseURL+"/@u2/video/2", videoPage("2", "2", "2", "2"))
	cfg := testConfig(t)
	cfg.EnrichDelay = 300 * time.Millisecond
	s, _ := newTestScraperWithConfig(t, cfg, site)

	results := make([]Result, 2)
	start := time.Now()
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.Trending(context.Background(), Options{Enrich: true})
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	for _, res := range results {
		assert.Equal(t, StatusOK, res.Meta.Status, res.Meta.Error)
		assert.Equal(t, 2, res.Meta.EnrichedCount)
	}
	// Each run waits one interval between its own two items. A throttle
	// shared by both runs would need three.
	assert.Less(t, elapsed, 800*time.Millisecond)
}

func TestMultiEntity_NavigationFailureYieldsEmptyList(t *testing.T) {
	t.Parallel()
	site := newFakeSite()
	failEverywhere(site, testBaseURL+"/explore")
	s, fb := newTestScraper(t, site)

	res := s.Trending(context.Background(), Options{})
	require.NotNil(t, res.Items)
	assert.Empty(t, res.Items)
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonNavigationFailed, res.Meta.Reason)
	assert.NotEmpty(t, res.Meta.Error)
	assert.Equal(t, 1, fb.closed)
	assert.Zero(t, fb.openPages())
}

func TestMultiEntity_LayoutChanged(t *testing.T) {
	t.Parallel()
	url := testBaseURL + "/search?q=x"
	site := newFakeSite().page(url, `<html><body><div class="totally-new"></div></body></html>`)
	s, _ := newTestScraper(t, site)

	res := s.Search(context.Background(), "x", Options{})
	assert.Empty(t, res.Items)
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonLayoutChanged, res.Meta.Reason)
}

func TestMultiEntity_ReadyButNoItems(t *testing.T) {
	t.Parallel()
	url := testBaseURL + "/search?q=nothing"
	site := newFakeSite().page(url, searchPageHTML())
	s, _ := newTestScraper(t, site)

	res := s.Search(context.Background(), "nothing", Options{})
	assert.Empty(t, res.Items)
	assert.Equal(t, StatusEmpty, res.Meta.Status)
	assert.Empty(t, res.Meta.Reason)
}

func TestMultiEntity_BrowserUnavailable(t *testing.T) {
	t.Parallel()
	s := New(testConfig(t)).WithLauncher(func(context.Context, LaunchOptions) (Browser, error) {
		return nil, fmt.Errorf("launch: %w", ErrBrowserNotReady)
	})
	res := s.Hashtag(context.Background(), "x", Options{})
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonBrowserUnavailable, res.Meta.Reason)
}

func TestMultiEntity_Canceled(t *testing.T) {
	t.Parallel()
	s, _ := newTestScraper(t, newFakeSite())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := s.Trending(ctx, Options{})
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonCanceled, res.Meta.Reason)
}

func TestMultiEntity_EmptyInput(t *testing.T) {
	t.Parallel()
	s, fb := newTestScraper(t, newFakeSite())
	assert.Equal(t, StatusFailed, s.Hashtag(context.Background(), "#", Options{}).Meta.Status)
	assert.Equal(t, StatusFailed, s.Search(context.Background(), " ", Options{}).Meta.Status)
	assert.Zero(t, fb.closed)
}

func TestMultiEntity_DefaultMax(t *testing.T) {
	t.Parallel()
	items := make([]string, 25)
	for i := range items {
		items[i] = exploreItem(fmt.Sprint(i), fmt.Sprint(i))
	}
	site := newFakeSite().page(testBaseURL+"/explore", `<html><body>`+strings.Join(items, "")+`</body></html>`)
	s, _ := newTestScraper(t, site)

	res := s.Trending(context.Background(), Options{})
	assert.Len(t, res.Items, 20)
	assert.Equal(t, 20, res.Meta.RequestedCount)
}

// ---------------------------------------------------------------------------
// Sessions in pipelines
// ---------------------------------------------------------------------------

func forYouSite() *fakeSite {
	site := newFakeSite().
		page(testBaseURL, homeLoggedOut).
		page(testBaseURL+"/foryou?lang=en", `<html><body>`+feedItem("1", "7")+feedItem("2", "70")+`</body></html>`)
	site.authDocs[testBaseURL] = homeLoggedIn
	return site
}

func TestForYou(t *testing.T) {
	t.Parallel()
	s, fb := newTestScraper(t, forYouSite())
	require.NoError(t, s.Sessions().Save(NewSession(testCookies())))

	res := s.ForYou(context.Background(), Options{})
	require.Equal(t, StatusOK, res.Meta.Status, res.Meta.Error)
	assert.Equal(t, []string{"f2", "f1"}, rankedField(res.Items, FieldUsername))
	assert.Equal(t, []string{"2", "2"}, rankedField(res.Items, FieldShares))
	assert.Zero(t, fb.openPages())
}

func TestForYou_EnrichKeepsFeedCounts(t *testing.T) {
	t.Parallel()
	site := forYouSite().page(testBaseURL+"/@f2/video/2", videoPage("70", "9", "8", "100"))
	s, fb := newTestScraper(t, site)
	require.NoError(t, s.Sessions().Save(NewSession(testCookies())))

	res := s.ForYou(context.Background(), Options{Enrich: true})
	require.Equal(t, StatusOK, res.Meta.Status, res.Meta.Error)
	require.Len(t, res.Items, 2)
	assert.Equal(t, 1, res.Meta.EnrichedCount)
	assert.Zero(t, fb.openPages())

	data, err := json.Marshal(res.Items)
	require.NoError(t, err)
	var items []map[string]any
	require.NoError(t, json.Unmarshal(data, &items))
	require.Len(t, items, 2)

	for _, it := range items {
		assert.Equal(t, "1", it[FieldComments], "extracted comments survive enrichment")
		assert.Equal(t, "2", it[FieldShares], "extracted shares survive enrichment")
	}
	assert.Equal(t, map[string]any{
		"likes": float64(70), "comments": float64(9), "shares": float64(8), "views": float64(100),
	}, items[0]["secondary"])
	assert.Equal(t, map[string]any{
		"likes": nil, "comments": nil, "shares": nil, "views": nil,
	}, items[1]["secondary"], "video 1 has no page and keeps empty metrics")
}

func TestForYou_SessionMissing(t *testing.T) {
	t.Parallel()
	site := forYouSite()
	s, _ := newTestScraper(t, site)

	res := s.ForYou(context.Background(), Options{})
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonSessionMissing, res.Meta.Reason)
	assert.Empty(t, site.visited())
}

func TestForYou_RejectedSessionIsInvalidated(t *testing.T) {
	t.Parallel()
	s, _ := newTestScraper(t, forYouSite())
	require.NoError(t, s.Sessions().Save(NewSession([]Cookie{{Name: "stale", Value: "1"}})))

	res := s.ForYou(context.Background(), Options{})
	assert.Equal(t, StatusFailed, res.Meta.Status)
	assert.Equal(t, ReasonSessionInvalid, res.Meta.Reason)
	assert.False(t, s.Sessions().HasValid(), "rejected session removed")
}

func TestCheckSession(t *testing.T) {
	t.Parallel()
	s, _ := newTestScraper(t, forYouSite())
	require.NoError(t, s.Sessions().Save(NewSession(testCookies())))

	sess, err := s.CheckSession(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SessionVerified, sess.State())
}

func TestUseSession_AppliesCookiesWithoutVerifying(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.UseSession = true
	site := newFakeSite().page(testBaseURL+"/explore", `<html><body>`+exploreItem("1", "1")+`</body></html>`)
	s, fb := newTestScraperWithConfig(t, cfg, site)
	require.NoError(t, s.Sessions().Save(NewSession(testCookies())))

	res := s.Trending(context.Background(), Options{})
	assert.Equal(t, StatusOK, res.Meta.Status)
	assert.Equal(t, []string{testBaseURL + "/explore"}, site.visited(), "no verification navigation")
	require.Len(t, fb.pages, 1)
	assert.Len(t, fb.pages[0].cookies, 2)
}

func TestUseSession_MissingSessionIgnored(t *testing.T) {
	t.Parallel()
	cfg := testConfig(t)
	cfg.UseSession = true
	site := newFakeSite().page(testBaseURL+"/explore", `<html><body>`+exploreItem("1", "1")+`</body></html>`)
	s, _ := newTestScraperWithConfig(t, cfg, site)

	res := s.Trending(context.Background(), Options{})
	assert.Equal(t, StatusOK, res.Meta.Status)
}

// ---------------------------------------------------------------------------
// Login
// ---------------------------------------------------------------------------

func TestLogin(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/login", homeLoggedIn)
	s, fb := newTestScraper(t, site)

	confirmed := false
	sess, err := s.Login(context.Background(), func(ctx context.Context) error {
		// The human logs in; the site sets cookies on the page.
		require.Len(t, fb.pages, 1)
		require.NoError(t, fb.pages[0].SetCookies(ctx, testCookies()))
		confirmed = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Len(t, sess.Cookies, 2)
	assert.True(t, s.Sessions().HasValid())
	assert.Zero(t, fb.openPages())
}

func TestLogin_NoCookies(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/login", homeLoggedOut)
	s, _ := newTestScraper(t, site)

	_, err := s.Login(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrSessionInvalid)
	assert.False(t, s.Sessions().HasValid())
}

func TestLogin_ConfirmAborted(t *testing.T) {
	t.Parallel()
	site := newFakeSite().page(testBaseURL+"/login", homeLoggedOut)
	s, _ := newTestScraper(t, site)

	_, err := s.Login(context.Background(), func(context.Context) error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
}

func TestProfile_HTTPFallbackCarriesSession(t *testing.T) {
	t.Parallel()
	got := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie("sessionid")
		if err == nil {
			got <- c.Value
		} else {
			got <- ""
		}
		w.Write([]byte(ssrPage("erin", "5", 1)))
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.BaseURL = srv.URL
	cfg.UseSession = true
	site := newFakeSite()
	failEverywhere(site, srv.URL+"/@erin")
	s, _ := newTestScraperWithConfig(t, cfg, site)
	require.NoError(t, s.Sessions().Save(NewSession([]Cookie{{Name: "sessionid", Value: "abc", Path: "/"}})))

	_, err := s.Profile(context.Background(), "erin")
	require.NoError(t, err)
	assert.Equal(t, "abc", <-got)
}
