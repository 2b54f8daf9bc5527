package social

import (
	"strings"
	"time"
)

// AccountKey identifies an account inside a registry.
type AccountKey struct {
	Platform Platform
	ID       string
}

func (k AccountKey) String() string { return string(k.Platform) + ":" + k.ID }

// SocialAccount is one linked external identity.
type SocialAccount struct {
	ID           string          `json:"id"`
	UserID       int64           `json:"user_id"`
	Platform     Platform        `json:"platform"`
	PlatformID   string          `json:"platform_id"`
	Username     string          `json:"username"`
	DisplayName  string          `json:"display_name"`
	AvatarURL    string          `json:"avatar_url"`
	AccessToken  string          `json:"-"`
	RefreshToken string          `json:"-"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
	IsConnected  bool            `json:"is_connected"`
	Scopes       []string        `json:"scopes"`
	Metadata     AccountMetadata `json:"metadata"`
}

func (a *SocialAccount) Key() AccountKey {
	return AccountKey{Platform: a.Platform, ID: a.ID}
}

// NeedsRefresh reports whether the access token expires within window.
// Accounts without an expiry never need a refresh.
func (a *SocialAccount) NeedsRefresh(now time.Time, window time.Duration) bool {
	if a.ExpiresAt == nil {
		return false
	}
	return a.ExpiresAt.Before(now.Add(window))
}

// ApplyToken copies a token exchange or refresh result onto the account.
// An empty refresh token keeps the previous one.
func (a *SocialAccount) ApplyToken(t TokenResponse) {
	a.AccessToken = t.AccessToken
	if t.RefreshToken != "" {
		a.RefreshToken = t.RefreshToken
	}
	a.ExpiresAt = t.ExpiresAt
	if len(t.Scopes) > 0 {
		a.Scopes = t.Scopes
	}
	a.IsConnected = true
}

// AccountMetadata holds the per-platform extras gathered while linking an account.
type AccountMetadata struct {
	Pages               []FacebookPage         `json:"pages,omitempty"`
	InstagramBusinessID string                 `json:"instagram_business_id,omitempty"`
	Organizations       []LinkedInOrganization `json:"organizations,omitempty"`
	ChannelID           string                 `json:"channel_id,omitempty"`
}

func (m AccountMetadata) Page(id string) (FacebookPage, bool) {
	for _, p := range m.Pages {
		if p.ID == id {
			return p, true
		}
	}
	return FacebookPage{}, false
}

type FacebookPage struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Category    string `json:"category,omitempty"`
	AccessToken string `json:"access_token"`
}

type LinkedInOrganization struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
	Role string `json:"role,omitempty"`
}

type MediaType string

const (
	MediaImage MediaType = "image"
	MediaVideo MediaType = "video"
	MediaGIF   MediaType = "gif"
)

// MediaItem is an immutable reference to a piece of media attached to a post.
// Duration is in seconds. ID carries the platform media id once uploaded.
type MediaItem struct {
	Type     MediaType `json:"type"`
	URL      string    `json:"url"`
	ID       string    `json:"id,omitempty"`
	Width    int       `json:"width,omitempty"`
	Height   int       `json:"height,omitempty"`
	Duration float64   `json:"duration,omitempty"`
	Size     int64     `json:"size,omitempty"`
	MimeType string    `json:"mime_type,omitempty"`
	AltText  string    `json:"alt_text,omitempty"`
}

// AspectRatio returns width/height, or 0 when the dimensions are unknown.
func (m MediaItem) AspectRatio() float64 {
	if m.Width <= 0 || m.Height <= 0 {
		return 0
	}
	return float64(m.Width) / float64(m.Height)
}

type Location struct {
	Name      string  `json:"name,omitempty"`
	PlaceID   string  `json:"place_id,omitempty"`
	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
}

// PostOptions is the platform-agnostic content request.
type PostOptions struct {
	Text         string           `json:"text"`
	Media        []MediaItem      `json:"media,omitempty"`
	ScheduleTime *time.Time       `json:"schedule_time,omitempty"`
	Location     *Location        `json:"location,omitempty"`
	Hashtags     []string         `json:"hashtags,omitempty"`
	Mentions     []string         `json:"mentions,omitempty"`
	Settings     PlatformSettings `json:"settings"`
}

// FullText renders the text followed by any hashtags not already present in it.
func (o PostOptions) FullText() string {
	var tags []string
	for _, tag := range o.Hashtags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if !strings.HasPrefix(tag, "#") {
			tag = "#" + tag
		}
		if strings.Contains(o.Text, tag) {
			continue
		}
		tags = append(tags, tag)
	}
	if len(tags) == 0 {
		return o.Text
	}
	if strings.TrimSpace(o.Text) == "" {
		return strings.Join(tags, " ")
	}
	return o.Text + "\n\n" + strings.Join(tags, " ")
}

func (o PostOptions) CountMedia(t MediaType) int {
	n := 0
	for _, m := range o.Media {
		if m.Type == t {
			n++
		}
	}
	return n
}

// IsScheduled reports whether the post asks for a publish time after now.
func (o PostOptions) IsScheduled(now time.Time) bool {
	return o.ScheduleTime != nil && o.ScheduleTime.After(now)
}

type PostStatus string

const (
	StatusPublished PostStatus = "published"
	StatusPending   PostStatus = "pending"
	StatusScheduled PostStatus = "scheduled"
	StatusFailed    PostStatus = "failed"
)

// PublishedPost is the read-only result of a successful publish.
type PublishedPost struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	CreatedAt  time.Time   `json:"created_at"`
	Status     PostStatus  `json:"status"`
	ThreadIDs  []string    `json:"thread_ids,omitempty"`
	Text       string      `json:"text,omitempty"`
	Engagement *Engagement `json:"engagement,omitempty"`
}

type Engagement struct {
	Likes       int64 `json:"likes"`
	Comments    int64 `json:"comments"`
	Shares      int64 `json:"shares"`
	Saves       int64 `json:"saves"`
	Clicks      int64 `json:"clicks"`
	Views       int64 `json:"views"`
	Impressions int64 `json:"impressions"`
	Reach       int64 `json:"reach"`
}

// Total sums the interactions; views, impressions and reach are exposure, not engagement.
func (e Engagement) Total() int64 {
	return e.Likes + e.Comments + e.Shares + e.Saves + e.Clicks
}

type UserProfile struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	Bio         string `json:"bio,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
	Followers   int64  `json:"followers"`
	Following   int64  `json:"following"`
	PostCount   int64  `json:"post_count"`
	Verified    bool   `json:"verified"`
	URL         string `json:"url,omitempty"`
}

type Analytics struct {
	Platform    Platform  `json:"platform"`
	AccountID   string    `json:"account_id"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	Followers   int64     `json:"followers"`
	Engagement  int64     `json:"engagement"`
	Reach       int64     `json:"reach"`
	Impressions int64     `json:"impressions"`
	Views       int64     `json:"views"`
	PostCount   int64     `json:"post_count"`
}

// EngagementRate is engagement divided by reach; zero reach yields zero.
func (a Analytics) EngagementRate() float64 {
	return Rate(a.Engagement, a.Reach)
}

func Rate(engagement, reach int64) float64 {
	if reach <= 0 {
		return 0
	}
	return float64(engagement) / float64(reach)
}

type AnalyticsQuery struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Normalize fills an empty period with the last 30 days ending at now.
func (q AnalyticsQuery) Normalize(now time.Time) AnalyticsQuery {
	if q.End.IsZero() {
		q.End = now
	}
	if q.Start.IsZero() || !q.Start.Before(q.End) {
		q.Start = q.End.AddDate(0, 0, -30)
	}
	return q
}

type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id,omitempty"`
	ParentID   string    `json:"parent_id,omitempty"`
	AuthorID   string    `json:"author_id,omitempty"`
	AuthorName string    `json:"author_name,omitempty"`
	Text       string    `json:"text"`
	LikeCount  int64     `json:"like_count"`
	ReplyCount int64     `json:"reply_count"`
	CreatedAt  time.Time `json:"created_at"`
}

type TokenResponse struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token,omitempty"`
	TokenType    string     `json:"token_type,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	Scopes       []string   `json:"scopes,omitempty"`
	PlatformID   string     `json:"platform_id,omitempty"`
}

// ExpiresIn converts a relative lifetime in seconds into an absolute expiry.
func ExpiresIn(now time.Time, seconds int64) *time.Time {
	if seconds <= 0 {
		return nil
	}
	t := now.Add(time.Duration(seconds) * time.Second)
	return &t
}

// AuthRequest is an authorize URL plus the values the callback needs to
// complete the exchange.
type AuthRequest struct {
	URL          string `json:"url"`
	State        string `json:"state"`
	CodeVerifier string `json:"-"`
}

type ExchangeParams struct {
	Code         string
	CodeVerifier string
}

type ListOptions struct {
	Limit  int    `json:"limit"`
	Cursor string `json:"cursor,omitempty"`
}

func (o ListOptions) LimitOr(def, max int) int {
	if o.Limit <= 0 {
		return def
	}
	if o.Limit > max {
		return max
	}
	return o.Limit
}

type MediaUpload struct {
	Type        MediaType
	Filename    string
	ContentType string
	Data        []byte
	AltText     string
}
