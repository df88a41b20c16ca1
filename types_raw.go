package tiktok

// SSR (Server-Side Rendered) data structs for __UNIVERSAL_DATA_FOR_REHYDRATION__.

type universalData struct {
	DefaultScope defaultScope `json:"__DEFAULT_SCOPE__"`
}

type defaultScope struct {
	UserDetail  userDetailWrapper  `json:"webapp.user-detail"`
	VideoDetail videoDetailWrapper `json:"webapp.video-detail"`
}

type userDetailWrapper struct {
	UserInfo rawUserInfo `json:"userInfo"`
}

type rawUserInfo struct {
	User  rawUserDetail `json:"user"`
	Stats rawUserStats  `json:"stats"`
}

type rawUserDetail struct {
	ID           string `json:"id"`
	UniqueID     string `json:"uniqueId"`
	Nickname     string `json:"nickname"`
	AvatarLarger string `json:"avatarLarger"`
	Signature    string `json:"signature"`
	Verified     bool   `json:"verified"`
	SecUID       string `json:"secUid"`
}

type rawUserStats struct {
	FollowerCount  int64 `json:"followerCount"`
	FollowingCount int64 `json:"followingCount"`
	Heart          int64 `json:"heart"`
	HeartCount     int64 `json:"heartCount"`
	VideoCount     int64 `json:"videoCount"`
	DiggCount      int64 `json:"diggCount"`
}

type videoDetailWrapper struct {
	ItemInfo struct {
		ItemStruct rawVideo `json:"itemStruct"`
	} `json:"itemInfo"`
}

type rawVideo struct {
	ID    string   `json:"id"`
	Desc  string   `json:"desc"`
	Stats rawStats `json:"stats"`
}

type rawStats struct {
	PlayCount    int64 `json:"playCount"`
	DiggCount    int64 `json:"diggCount"`
	ShareCount   int64 `json:"shareCount"`
	CommentCount int64 `json:"commentCount"`
}

// parseAuthor converts raw SSR user info to a Profile.
func parseAuthor(raw rawUserInfo) Profile {
	likes := raw.Stats.HeartCount
	if likes == 0 {
		likes = raw.Stats.Heart
	}
	return Profile{
		ID:         raw.User.ID,
		Username:   raw.User.UniqueID,
		Name:       raw.User.Nickname,
		Avatar:     raw.User.AvatarLarger,
		Bio:        raw.User.Signature,
		Followers:  raw.Stats.FollowerCount,
		Following:  raw.Stats.FollowingCount,
		Likes:      likes,
		VideoCount: raw.Stats.VideoCount,
		Verified:   raw.User.Verified,
		Source:     SourceSSR,
	}
}

// parseVideoStats converts raw SSR video stats to secondary metrics.
func parseVideoStats(raw rawVideo) SecondaryMetrics {
	return SecondaryMetrics{
		Likes:    &raw.Stats.DiggCount,
		Comments: &raw.Stats.CommentCount,
		Shares:   &raw.Stats.ShareCount,
		Views:    &raw.Stats.PlayCount,
	}
}
