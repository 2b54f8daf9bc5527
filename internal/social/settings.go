package social

import "time"

// PlatformSettings carries the platform specific knobs of a post. Each
// provider reads only its own member; a nil member means platform defaults.
type PlatformSettings struct {
	Twitter   *TwitterSettings   `json:"twitter,omitempty"`
	Facebook  *FacebookSettings  `json:"facebook,omitempty"`
	Instagram *InstagramSettings `json:"instagram,omitempty"`
	LinkedIn  *LinkedInSettings  `json:"linkedin,omitempty"`
	TikTok    *TikTokSettings    `json:"tiktok,omitempty"`
	YouTube   *YouTubeSettings   `json:"youtube,omitempty"`
}

// Merge returns s with every non-nil member of other laid over it.
func (s PlatformSettings) Merge(other PlatformSettings) PlatformSettings {
	if other.Twitter != nil {
		s.Twitter = other.Twitter
	}
	if other.Facebook != nil {
		s.Facebook = other.Facebook
	}
	if other.Instagram != nil {
		s.Instagram = other.Instagram
	}
	if other.LinkedIn != nil {
		s.LinkedIn = other.LinkedIn
	}
	if other.TikTok != nil {
		s.TikTok = other.TikTok
	}
	if other.YouTube != nil {
		s.YouTube = other.YouTube
	}
	return s
}

type TwitterSettings struct {
	ThreadMode    bool   `json:"thread_mode"`
	ReplyToID     string `json:"reply_to_id,omitempty"`
	QuoteTweetID  string `json:"quote_tweet_id,omitempty"`
	ReplySettings string `json:"reply_settings,omitempty"` // following, mentionedUsers
}

type FacebookSettings struct {
	// PageID selects a managed page; empty posts to the personal feed.
	PageID string `json:"page_id,omitempty"`
	Link   string `json:"link,omitempty"`
}

type InstagramSettings struct {
	ShareToFeed *bool  `json:"share_to_feed,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	ThumbOffset int    `json:"thumb_offset,omitempty"` // milliseconds
}

const (
	VisibilityPublic      = "PUBLIC"
	VisibilityConnections = "CONNECTIONS"
)

type LinkedInSettings struct {
	Visibility         string `json:"visibility,omitempty"`
	OrganizationID     string `json:"organization_id,omitempty"`
	ArticleURL         string `json:"article_url,omitempty"`
	ArticleTitle       string `json:"article_title,omitempty"`
	ArticleDescription string `json:"article_description,omitempty"`
}

const (
	TikTokPublic    = "PUBLIC_TO_EVERYONE"
	TikTokFriends   = "MUTUAL_FOLLOW_FRIENDS"
	TikTokFollowers = "FOLLOWER_OF_CREATOR"
	TikTokSelfOnly  = "SELF_ONLY"
)

type TikTokSettings struct {
	PrivacyLevel          string `json:"privacy_level,omitempty"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms,omitempty"`
	BrandContentToggle    bool   `json:"brand_content_toggle"`
	BrandOrganicToggle    bool   `json:"brand_organic_toggle"`
	IsAIGC                bool   `json:"is_aigc"`
}

type YouTubeSettings struct {
	Title             string   `json:"title,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	CategoryID        string   `json:"category_id,omitempty"`
	PrivacyStatus     string   `json:"privacy_status,omitempty"` // public, private, unlisted
	MadeForKids       bool     `json:"made_for_kids"`
	NotifySubscribers *bool    `json:"notify_subscribers,omitempty"`
}

// PostOverride replaces parts of a shared PostOptions for a single platform
// during a bulk post.
type PostOverride struct {
	Text         *string          `json:"text,omitempty"`
	Media        []MediaItem      `json:"media,omitempty"`
	Hashtags     []string         `json:"hashtags,omitempty"`
	ScheduleTime *time.Time       `json:"schedule_time,omitempty"`
	Settings     PlatformSettings `json:"settings"`
}

// WithOverride returns a copy of o with the override applied.
func (o PostOptions) WithOverride(ov *PostOverride) PostOptions {
	if ov == nil {
		return o
	}
	if ov.Text != nil {
		o.Text = *ov.Text
	}
	if ov.Media != nil {
		o.Media = append([]MediaItem(nil), ov.Media...)
	}
	if ov.Hashtags != nil {
		o.Hashtags = append([]string(nil), ov.Hashtags...)
	}
	if ov.ScheduleTime != nil {
		o.ScheduleTime = ov.ScheduleTime
	}
	o.Settings = o.Settings.Merge(ov.Settings)
	return o
}
