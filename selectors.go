package tiktok

// Every selector the scraper depends on lives here. The site ships hashed
// class names that change between deploys, so each field lists the stable
// data-e2e hook first where one exists and looser fallbacks after it.

const (
	attrHref = "href"
	attrSrc  = "src"
	attrAlt  = "alt"
)

// loggedInMarkers render only for an authenticated visitor.
var loggedInMarkers = []string{
	`header [data-e2e="user-avatar"]`,
	`.user-avatar`,
	`[data-e2e="profile-icon"]`,
}

// Profile page header.

var profileReady = []string{
	`[data-e2e="user-avatar"]`,
	`[data-e2e="user-title"]`,
	`[data-e2e="user-page"]`,
}

var profileFields = []FieldSpec{
	{Name: "username", Chain: []Query{{Selector: `h1[data-e2e="user-title"]`}, {Selector: `[data-e2e="user-title"]`}}},
	{Name: "name", Chain: []Query{{Selector: `h2[data-e2e="user-subtitle"]`}, {Selector: `[data-e2e="user-subtitle"]`}}},
	{Name: "avatar", Chain: []Query{
		{Selector: `[data-e2e="user-avatar"] img`, Attr: attrSrc},
		{Selector: `span[class*="SpanAvatarContainer"] img`, Attr: attrSrc},
	}},
	{Name: "bio", Chain: []Query{{Selector: `h2[data-e2e="user-bio"]`}, {Selector: `[data-e2e="user-bio"]`}}},
	{Name: "following", Chain: []Query{{Selector: `strong[data-e2e="following-count"]`}, {Selector: `[data-e2e="following-count"]`}}},
	{Name: "followers", Chain: []Query{{Selector: `strong[data-e2e="followers-count"]`}, {Selector: `[data-e2e="followers-count"]`}}},
	{Name: "likes", Chain: []Query{{Selector: `strong[data-e2e="likes-count"]`}, {Selector: `[data-e2e="likes-count"]`}}},
}

// Profile video grid.

var profileVideos = Schema{
	Name: "profile-videos",
	Containers: []string{
		`[data-e2e="user-post-item"]`,
		`div[class*="DivItemContainerV2"]`,
	},
	Fields: []FieldSpec{
		{Name: FieldVideoLink, Chain: []Query{{Selector: `a[href*="/video/"]`, Attr: attrHref}, {Selector: `a`, Attr: attrHref}}},
		{Name: FieldThumbnail, Chain: []Query{{Selector: `img`, Attr: attrSrc}}},
		{Name: FieldDisplayCount, Chain: []Query{{Selector: `strong[data-e2e="video-views"]`}, {Selector: `.video-count`}}},
		{Name: FieldDescription, Chain: []Query{
			{Selector: `[data-e2e="video-desc"]`, Attr: attrAlt},
			{Selector: `[data-e2e="video-desc"]`},
			{Selector: `[alt]`, Attr: attrAlt},
		}},
	},
}

// Search results, shared by hashtag and keyword search.

var searchReady = []string{
	`#tabs-0-panel-search_top > div`,
	`[data-e2e="search_top-item-list"]`,
	`div[class*="DivItemContainerForSearch"]`,
}

var searchResults = Schema{
	Name: "search",
	Containers: []string{
		`.css-vb7jd0-5e6d46e3--DivItemContainerForSearch.eihah119`,
		`div[class*="DivItemContainerForSearch"]`,
		`[data-e2e="search_top-item"]`,
	},
	Fields: []FieldSpec{
		{Name: FieldVideoLink, Chain: []Query{
			{Selector: `a.css-143ggr2-5e6d46e3--AVideoContainer.eihah114`, Attr: attrHref},
			{Selector: `a[class*="AVideoContainer"]`, Attr: attrHref},
			{Selector: `a[href*="/video/"]`, Attr: attrHref},
		}},
		{Name: FieldThumbnail, Chain: []Query{{Selector: `picture img`, Attr: attrSrc}, {Selector: `img`, Attr: attrSrc}}},
		{Name: FieldDisplayCount, Chain: []Query{
			{Selector: `[data-e2e="video-views"]`},
			{Selector: `strong[class*="StrongVideoCount"]`},
		}},
		{Name: FieldUsername, Chain: []Query{
			{Selector: `[data-e2e="search-card-user-unique-id"]`},
			{Selector: `p[class*="PUniqueId"]`},
		}},
		{Name: FieldProfileLink, Chain: []Query{
			{Selector: `[data-e2e="search-card-user-link"]`, Attr: attrHref},
			{Selector: `a[href^="/@"]`, Attr: attrHref},
		}},
		{Name: FieldAvatar, Chain: []Query{
			{Selector: `.css-jst2c8-5e6d46e3--SpanAvatarContainer.e1iqrkv70 img`, Attr: attrSrc},
			{Selector: `span[class*="SpanAvatarContainer"] img`, Attr: attrSrc},
		}},
		{Name: FieldDescription, Chain: []Query{
			{Selector: `[data-e2e="search-card-video-caption"]`},
			{Selector: `[data-e2e="search-card-desc"]`},
			{Selector: `picture img`, Attr: attrAlt},
		}},
	},
}

// Explore (trending) feed.

var trendingReady = []string{
	`.css-16a7ewj-5e6d46e3--DivItemContainerV2.eihah117`,
	`div[class*="DivItemContainerV2"]`,
	`[data-e2e="explore-item-list"]`,
}

var trendingFeed = Schema{
	Name: "trending",
	Containers: []string{
		`.css-16a7ewj-5e6d46e3--DivItemContainerV2.eihah117`,
		`div[class*="DivItemContainerV2"]`,
		`[data-e2e="explore-item"]`,
	},
	Fields: []FieldSpec{
		{Name: FieldVideoLink, Chain: []Query{
			{Selector: `a.css-143ggr2-5e6d46e3--AVideoContainer.eihah114`, Attr: attrHref},
			{Selector: `a[class*="AVideoContainer"]`, Attr: attrHref},
			{Selector: `a[href*="/video/"]`, Attr: attrHref},
		}},
		{Name: FieldThumbnail, Chain: []Query{
			{Selector: `.css-1gbz2iw-5e6d46e3--Box.elqz51v0 picture img`, Attr: attrSrc},
			{Selector: `picture img`, Attr: attrSrc},
		}},
		{Name: FieldDisplayCount, Chain: []Query{
			{Selector: `div[data-e2e="explore-card-like-container"] span`},
			{Selector: `[data-e2e="explore-card-like-container"]`},
		}},
		{Name: FieldUsername, Chain: []Query{
			{Selector: `p[data-e2e="explore-card-user-unique-id"]`},
			{Selector: `[data-e2e="explore-card-user-unique-id"]`},
		}},
		{Name: FieldProfileLink, Chain: []Query{
			{Selector: `a[data-e2e="explore-card-user-link"]`, Attr: attrHref},
			{Selector: `a[href^="/@"]`, Attr: attrHref},
		}},
		{Name: FieldAvatar, Chain: []Query{
			{Selector: `.css-jst2c8-5e6d46e3--SpanAvatarContainer.e1iqrkv70 img`, Attr: attrSrc},
			{Selector: `span[class*="SpanAvatarContainer"] img`, Attr: attrSrc},
		}},
		{Name: FieldDescription, Chain: []Query{
			{Selector: `[data-e2e="explore-card-desc"]`},
			{Selector: `picture img`, Attr: attrAlt},
		}},
	},
}

// For You feed, authenticated.

var forYouReady = []string{
	`[data-e2e="feed-item"]`,
	`[data-e2e="recommend-list-item-container"]`,
	`article[data-e2e*="recommend"]`,
}

var forYouFeed = Schema{
	Name: "foryou",
	Containers: []string{
		`[data-e2e="feed-item"]`,
		`[data-e2e="recommend-list-item-container"]`,
		`article[data-e2e*="recommend"]`,
	},
	Fields: []FieldSpec{
		{Name: FieldUsername, Chain: []Query{
			{Selector: `a[data-e2e="user-link"]`},
			{Selector: `[data-e2e="video-author-uniqueid"]`},
		}},
		{Name: FieldProfileLink, Chain: []Query{
			{Selector: `a[data-e2e="user-link"]`, Attr: attrHref},
			{Selector: `a[href^="/@"]`, Attr: attrHref},
		}},
		{Name: FieldVideoLink, Chain: []Query{{Selector: `a[href*="/video/"]`, Attr: attrHref}}},
		{Name: FieldDescription, Chain: []Query{
			{Selector: `span[data-e2e="video-desc"]`},
			{Selector: `[data-e2e="video-desc"]`},
			{Selector: `h3`},
		}},
		{Name: FieldDisplayCount, Chain: []Query{
			{Selector: `strong[data-e2e="like-count"]`},
			{Selector: `[data-e2e="like-count"]`},
		}},
		{Name: FieldComments, Chain: []Query{
			{Selector: `strong[data-e2e="comment-count"]`},
			{Selector: `[data-e2e="comment-count"]`},
		}},
		{Name: FieldShares, Chain: []Query{
			{Selector: `strong[data-e2e="share-count"]`},
			{Selector: `[data-e2e="share-count"]`},
		}},
	},
}

// Single video page, read during enrichment.

var videoDetailReady = []string{
	`strong[data-e2e="like-count"]`,
	`strong[data-e2e="browse-like-count"]`,
	`[data-e2e="video-desc"]`,
}

var videoDetailFields = []FieldSpec{
	{Name: "likes", Chain: []Query{{Selector: `strong[data-e2e="like-count"]`}, {Selector: `strong[data-e2e="browse-like-count"]`}}},
	{Name: "comments", Chain: []Query{{Selector: `strong[data-e2e="comment-count"]`}, {Selector: `strong[data-e2e="browse-comment-count"]`}}},
	{Name: "shares", Chain: []Query{{Selector: `strong[data-e2e="share-count"]`}, {Selector: `strong[data-e2e="browse-share-count"]`}}},
	{Name: "views", Chain: []Query{{Selector: `strong[data-e2e="video-views"]`}, {Selector: `[data-e2e="video-views"]`}}},
}
