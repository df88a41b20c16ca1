package tiktok

import (
	"bytes"
	"encoding/json"
	"fmt"
)

var (
	ssrTagOpen  = []byte(`<script id="__UNIVERSAL_DATA_FOR_REHYDRATION__" type="application/json">`)
	ssrTagClose = []byte(`</script>`)
)

// extractUniversalData finds and parses the __UNIVERSAL_DATA_FOR_REHYDRATION__
// JSON embedded in server-rendered HTML.
func extractUniversalData(htmlBody []byte) (universalData, error) {
	start := bytes.Index(htmlBody, ssrTagOpen)
	if start == -1 {
		return universalData{}, fmt.Errorf("%w: rehydration script tag not found", ErrInvalidResponse)
	}
	start += len(ssrTagOpen)

	end := bytes.Index(htmlBody[start:], ssrTagClose)
	if end == -1 {
		return universalData{}, fmt.Errorf("%w: closing script tag not found", ErrInvalidResponse)
	}

	var data universalData
	if err := json.Unmarshal(htmlBody[start:start+end], &data); err != nil {
		return universalData{}, fmt.Errorf("%w: unmarshal ssr data: %v", ErrInvalidResponse, err)
	}
	return data, nil
}

// extractUserFromSSR pulls the Profile from parsed SSR data.
func extractUserFromSSR(data universalData) (Profile, error) {
	info := data.DefaultScope.UserDetail.UserInfo
	if info.User.UniqueID == "" {
		return Profile{}, fmt.Errorf("%w: user data missing in ssr response", ErrNotFound)
	}
	return parseAuthor(info), nil
}

// extractVideoStatsFromSSR pulls the engagement counts of a video page.
func extractVideoStatsFromSSR(data universalData) (SecondaryMetrics, error) {
	item := data.DefaultScope.VideoDetail.ItemInfo.ItemStruct
	if item.ID == "" {
		return SecondaryMetrics{}, fmt.Errorf("%w: video data missing in ssr response", ErrNotFound)
	}
	return parseVideoStats(item), nil
}

// mergeProfile fills the empty fields of p from ssr. Counts are taken from
// ssr only when the DOM showed none.
func mergeProfile(p, ssr Profile) Profile {
	if p.Username == "" {
		p.Username = ssr.Username
	}
	if p.Name == "" {
		p.Name = ssr.Name
	}
	if p.Avatar == "" {
		p.Avatar = ssr.Avatar
	}
	if p.Bio == "" {
		p.Bio = ssr.Bio
	}
	if p.Followers == 0 {
		p.Followers = ssr.Followers
	}
	if p.Following == 0 {
		p.Following = ssr.Following
	}
	if p.Likes == 0 {
		p.Likes = ssr.Likes
	}
	p.ID = ssr.ID
	p.VideoCount = ssr.VideoCount
	p.Verified = ssr.Verified
	return p
}

// mergeMetrics fills the nil fields of m from ssr.
func mergeMetrics(m, ssr SecondaryMetrics) SecondaryMetrics {
	if m.Likes == nil {
		m.Likes = ssr.Likes
	}
	if m.Comments == nil {
		m.Comments = ssr.Comments
	}
	if m.Shares == nil {
		m.Shares = ssr.Shares
	}
	if m.Views == nil {
		m.Views = ssr.Views
	}
	return m
}
