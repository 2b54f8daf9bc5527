package tiktok

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
)

const (
	MaxTitleLength = 2200

	defaultAPIURL  = "https://open.tiktokapis.com"
	defaultAuthURL = "https://www.tiktok.com/v2/auth/authorize/"

	minVideoSecs = 3
	maxVideoSecs = 10 * 60
	maxVideoSize = 4 << 30

	defaultPollInterval = 5 * time.Second
	defaultPollAttempts = 24

	userFields  = "open_id,union_id,avatar_url,display_name,username,bio_description,profile_deep_link,is_verified,follower_count,following_count,likes_count,video_count"
	videoFields = "id,title,video_description,create_time,share_url,like_count,comment_count,share_count,view_count"
)

var DefaultScopes = []string{"user.info.basic", "user.info.profile", "user.info.stats", "video.publish", "video.upload", "video.list"}

// PrivacyLevels are the audience values accepted by the publish API.
var PrivacyLevels = []string{social.TikTokPublic, social.TikTokFriends, social.TikTokFollowers, social.TikTokSelfOnly}

type Config struct {
	ClientKey    string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	APIURL  string
	AuthURL string

	PollInterval time.Duration
	PollAttempts int
}

type Provider struct {
	social.Base
	cfg Config
	now func() time.Time
}

func New(cfg Config, opts ...social.RequesterOption) *Provider {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollAttempts
	}
	limits := social.Limits{MaxTextLength: MaxTitleLength, MaxMediaCount: 1, RequiresMedia: true}
	return &Provider{
		Base: social.NewBase(social.TikTok, limits, social.NewRequester(social.TikTok, opts...)),
		cfg:  cfg,
		now:  time.Now,
	}
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

type envelope[T any] struct {
	Data  T        `json:"data"`
	Error apiError `json:"error"`
}

// call unwraps the data/error envelope every open API endpoint returns. The
// envelope may report an error with a 200 status.
func call[T any](ctx context.Context, p *Provider, req social.Request) (*social.APIResponse[T], error) {
	res, err := social.MakeRequest[envelope[T]](ctx, p.Requester, req)
	if err != nil || !res.Success {
		return social.Forward[T](res), err
	}
	if e := res.Data.Error; e.Code != "" && e.Code != "ok" {
		msg := e.Message
		if msg == "" {
			msg = e.Code
		}
		switch e.Code {
		case "access_token_invalid", "access_token_expired":
			return nil, social.NewAuthenticationError(social.TikTok, msg)
		case "rate_limit_exceeded":
			return nil, social.NewRateLimitError(social.TikTok, time.Minute, msg)
		}
		return social.Fail[T](social.CodePlatformError, msg, e.Code), nil
	}
	return social.OK(res.Data.Data).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) AuthURL(state string) (*social.AuthRequest, error) {
	if p.cfg.ClientKey == "" || p.cfg.RedirectURI == "" {
		return nil, fmt.Errorf("tiktok client key and redirect uri are required")
	}
	q := url.Values{
		"client_key":    {p.cfg.ClientKey},
		"scope":         {strings.Join(p.cfg.Scopes, ",")},
		"response_type": {"code"},
		"redirect_uri":  {p.cfg.RedirectURI},
		"state":         {state},
	}
	return &social.AuthRequest{URL: p.cfg.AuthURL + "?" + q.Encode(), State: state}, nil
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	OpenID           string `json:"open_id"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresIn int64  `json:"refresh_expires_in"`
	Scope            string `json:"scope"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// token posts form to the token endpoint. TikTok authenticates the client
// with client_key in the body rather than client_id.
func (p *Provider) token(ctx context.Context, form url.Values, refresh bool) (*social.APIResponse[social.TokenResponse], error) {
	form.Set("client_key", p.cfg.ClientKey)
	form.Set("client_secret", p.cfg.ClientSecret)
	res, err := social.MakeRequest[tokenResponse](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/oauth/token/",
		Form:   form,
	})
	if err != nil {
		return nil, err
	}
	if !res.Success {
		if refresh && strings.HasPrefix(res.Error.Message, "invalid_grant") {
			return nil, social.NewAuthenticationError(social.TikTok, res.Error.Message)
		}
		return social.Fail[social.TokenResponse](social.CodeTokenExchange, res.Error.Message, res.Error.Details...), nil
	}
	t := res.Data
	if t.AccessToken == "" {
		msg := t.ErrorDescription
		if msg == "" {
			msg = t.Error
		}
		if msg == "" {
			msg = "token endpoint returned no access token"
		}
		if refresh && t.Error == "invalid_grant" {
			return nil, social.NewAuthenticationError(social.TikTok, msg)
		}
		return social.Fail[social.TokenResponse](social.CodeTokenExchange, msg), nil
	}
	return social.OK(social.TokenResponse{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		ExpiresAt:    social.ExpiresIn(p.now(), t.ExpiresIn),
		Scopes:       strings.FieldsFunc(t.Scope, func(r rune) bool { return r == ',' || r == ' ' }),
		PlatformID:   t.OpenID,
	}), nil
}

func (p *Provider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	if params.Code == "" {
		return social.Fail[social.TokenResponse](social.CodeTokenExchange, "authorization code is empty"), nil
	}
	return p.token(ctx, url.Values{
		"code":         {params.Code},
		"grant_type":   {"authorization_code"},
		"redirect_uri": {p.cfg.RedirectURI},
	}, false)
}

func (p *Provider) RefreshToken(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.TokenResponse], error) {
	if account.RefreshToken == "" {
		return nil, social.NewAuthenticationError(social.TikTok, "no refresh token, reconnect the account")
	}
	return p.token(ctx, url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {account.RefreshToken},
	}, true)
}

func (p *Provider) Revoke(ctx context.Context, account *social.SocialAccount) error {
	res, err := social.MakeRequest[struct{}](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/oauth/revoke/",
		Form: url.Values{
			"client_key":    {p.cfg.ClientKey},
			"client_secret": {p.cfg.ClientSecret},
			"token":         {account.AccessToken},
		},
	})
	if err != nil {
		return err
	}
	return res.Err()
}

type user struct {
	OpenID          string `json:"open_id"`
	AvatarURL       string `json:"avatar_url"`
	DisplayName     string `json:"display_name"`
	Username        string `json:"username"`
	BioDescription  string `json:"bio_description"`
	ProfileDeepLink string `json:"profile_deep_link"`
	IsVerified      bool   `json:"is_verified"`
	FollowerCount   int64  `json:"follower_count"`
	FollowingCount  int64  `json:"following_count"`
	LikesCount      int64  `json:"likes_count"`
	VideoCount      int64  `json:"video_count"`
}

func (p *Provider) GetProfile(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	if res := social.RequireAccount[social.UserProfile](social.TikTok, account); res != nil {
		return res, nil
	}
	res, err := call[struct {
		User user `json:"user"`
	}](ctx, p, social.Request{
		URL:   p.cfg.APIURL + "/v2/user/info/",
		Token: account.AccessToken,
		Query: url.Values{"fields": {userFields}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.UserProfile](res), err
	}
	u := res.Data.User
	return social.OK(social.UserProfile{
		ID:          u.OpenID,
		Username:    u.Username,
		DisplayName: u.DisplayName,
		Bio:         u.BioDescription,
		AvatarURL:   u.AvatarURL,
		Followers:   u.FollowerCount,
		Following:   u.FollowingCount,
		PostCount:   u.VideoCount,
		Verified:    u.IsVerified,
		URL:         u.ProfileDeepLink,
	}).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) ValidatePost(opts social.PostOptions) error {
	issues := p.CheckPost(opts)
	for i, m := range opts.Media {
		if m.Type != social.MediaVideo {
			issues = append(issues, fmt.Sprintf("media item %d is a %s, only video is supported", i+1, m.Type))
			continue
		}
		if m.Duration > 0 && (m.Duration < minVideoSecs || m.Duration > maxVideoSecs) {
			issues = append(issues, fmt.Sprintf("video duration %.0fs is outside 3s to 10 minutes", m.Duration))
		}
		if m.Size > maxVideoSize {
			issues = append(issues, "video exceeds 4GB")
		}
	}
	if s := opts.Settings.TikTok; s != nil {
		if s.PrivacyLevel != "" && !slices.Contains(PrivacyLevels, s.PrivacyLevel) {
			issues = append(issues, fmt.Sprintf("privacy level must be one of %s", strings.Join(PrivacyLevels, ", ")))
		}
		if s.VideoCoverTimestampMs < 0 {
			issues = append(issues, "video cover timestamp cannot be negative")
		}
	}
	return social.NewValidationError(social.TikTok, issues)
}

type creatorInfo struct {
	CreatorUsername         string   `json:"creator_username"`
	CreatorNickname         string   `json:"creator_nickname"`
	PrivacyLevelOptions     []string `json:"privacy_level_options"`
	CommentDisabled         bool     `json:"comment_disabled"`
	DuetDisabled            bool     `json:"duet_disabled"`
	StitchDisabled          bool     `json:"stitch_disabled"`
	MaxVideoPostDurationSec float64  `json:"max_video_post_duration_sec"`
}

func (p *Provider) creatorInfo(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[creatorInfo], error) {
	return call[creatorInfo](ctx, p, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/post/publish/creator_info/query/",
		Token:  account.AccessToken,
		JSON:   struct{}{},
	})
}

type postInfo struct {
	Title                 string `json:"title,omitempty"`
	PrivacyLevel          string `json:"privacy_level"`
	DisableDuet           bool   `json:"disable_duet"`
	DisableComment        bool   `json:"disable_comment"`
	DisableStitch         bool   `json:"disable_stitch"`
	VideoCoverTimestampMs int    `json:"video_cover_timestamp_ms,omitempty"`
	BrandContentToggle    bool   `json:"brand_content_toggle"`
	BrandOrganicToggle    bool   `json:"brand_organic_toggle"`
	IsAIGC                bool   `json:"is_aigc"`
}

type sourceInfo struct {
	Source   string `json:"source"`
	VideoURL string `json:"video_url"`
}

type publishStatus struct {
	Status                   string  `json:"status"`
	FailReason               string  `json:"fail_reason"`
	PubliclyAvailablePostIDs []int64 `json:"publicaly_available_post_id"`
}

// CreatePost asks TikTok to pull the video from its URL and polls the
// publish status. A publish still processing when polling stops is
// reported as pending under its publish id.
func (p *Provider) CreatePost(ctx context.Context, account *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := p.ValidatePost(opts); err != nil {
		return nil, err
	}
	if res := social.RequireAccount[social.PublishedPost](social.TikTok, account); res != nil {
		return res, nil
	}

	creator, err := p.creatorInfo(ctx, account)
	if err != nil || !creator.Success {
		return social.Forward[social.PublishedPost](creator), err
	}

	settings := social.TikTokSettings{PrivacyLevel: social.TikTokPublic}
	if opts.Settings.TikTok != nil {
		settings = *opts.Settings.TikTok
		if settings.PrivacyLevel == "" {
			settings.PrivacyLevel = social.TikTokPublic
		}
	}
	info := creator.Data
	if len(info.PrivacyLevelOptions) > 0 && !slices.Contains(info.PrivacyLevelOptions, settings.PrivacyLevel) {
		return social.Fail[social.PublishedPost](social.CodeValidationFailed,
			fmt.Sprintf("privacy level %s is not available to this creator", settings.PrivacyLevel),
			info.PrivacyLevelOptions...), nil
	}
	video := opts.Media[0]
	if info.MaxVideoPostDurationSec > 0 && video.Duration > info.MaxVideoPostDurationSec {
		return social.Fail[social.PublishedPost](social.CodeValidationFailed,
			fmt.Sprintf("video is %.0fs, this creator may post at most %.0fs", video.Duration, info.MaxVideoPostDurationSec)), nil
	}

	started, err := call[struct {
		PublishID string `json:"publish_id"`
	}](ctx, p, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/post/publish/video/init/",
		Token:  account.AccessToken,
		JSON: map[string]any{
			"post_info": postInfo{
				Title:                 opts.FullText(),
				PrivacyLevel:          settings.PrivacyLevel,
				DisableDuet:           settings.DisableDuet || info.DuetDisabled,
				DisableComment:        settings.DisableComment || info.CommentDisabled,
				DisableStitch:         settings.DisableStitch || info.StitchDisabled,
				VideoCoverTimestampMs: settings.VideoCoverTimestampMs,
				BrandContentToggle:    settings.BrandContentToggle,
				BrandOrganicToggle:    settings.BrandOrganicToggle,
				IsAIGC:                settings.IsAIGC,
			},
			"source_info": sourceInfo{Source: "PULL_FROM_URL", VideoURL: video.URL},
		},
	})
	if err != nil || !started.Success {
		return social.Forward[social.PublishedPost](started), err
	}
	publishID := started.Data.PublishID

	post := social.PublishedPost{
		ID:        publishID,
		CreatedAt: p.now(),
		Status:    social.StatusPending,
		Text:      opts.FullText(),
	}
	var failed *social.APIResponse[social.PublishedPost]
	_, err = social.Poll(ctx, p.cfg.PollInterval, p.cfg.PollAttempts, func(int) (bool, error) {
		status, err := call[publishStatus](ctx, p, social.Request{
			Method: http.MethodPost,
			URL:    p.cfg.APIURL + "/v2/post/publish/status/fetch/",
			Token:  account.AccessToken,
			JSON:   map[string]string{"publish_id": publishID},
		})
		if err != nil {
			return false, err
		}
		if !status.Success {
			failed = social.Forward[social.PublishedPost](status)
			return true, nil
		}
		switch status.Data.Status {
		case "PUBLISH_COMPLETE":
			post.Status = social.StatusPublished
			if ids := status.Data.PubliclyAvailablePostIDs; len(ids) > 0 {
				post.ID = strconv.FormatInt(ids[0], 10)
				post.URL = fmt.Sprintf("https://www.tiktok.com/@%s/video/%s", info.CreatorUsername, post.ID)
			}
			return true, nil
		case "FAILED":
			reason := status.Data.FailReason
			if reason == "" {
				reason = "publish failed"
			}
			failed = social.Fail[social.PublishedPost](social.CodeProcessingFailed, reason)
			return true, nil
		}
		return false, nil
	})
	switch {
	case err != nil && social.IsFatal(err):
		return nil, err
	case err != nil:
		return social.Fail[social.PublishedPost](social.CodeNetwork, "publish status of "+publishID+": "+err.Error()), nil
	case failed != nil:
		return failed, nil
	}
	return social.OK(post), nil
}

type video struct {
	ID               string `json:"id"`
	Title            string `json:"title"`
	VideoDescription string `json:"video_description"`
	CreateTime       int64  `json:"create_time"`
	ShareURL         string `json:"share_url"`
	LikeCount        int64  `json:"like_count"`
	CommentCount     int64  `json:"comment_count"`
	ShareCount       int64  `json:"share_count"`
	ViewCount        int64  `json:"view_count"`
}

func (v video) engagement() social.Engagement {
	return social.Engagement{
		Likes:    v.LikeCount,
		Comments: v.CommentCount,
		Shares:   v.ShareCount,
		Views:    v.ViewCount,
		Reach:    v.ViewCount,
	}
}

func (v video) post() social.PublishedPost {
	e := v.engagement()
	text := v.VideoDescription
	if text == "" {
		text = v.Title
	}
	return social.PublishedPost{
		ID:         v.ID,
		URL:        v.ShareURL,
		CreatedAt:  time.Unix(v.CreateTime, 0),
		Status:     social.StatusPublished,
		Text:       text,
		Engagement: &e,
	}
}

type videoPage struct {
	Videos  []video `json:"videos"`
	Cursor  int64   `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

func (p *Provider) listVideos(ctx context.Context, account *social.SocialAccount, count int, cursor string) (*social.APIResponse[videoPage], error) {
	body := map[string]any{"max_count": count}
	if cursor != "" {
		c, err := strconv.ParseInt(cursor, 10, 64)
		if err != nil {
			return social.Fail[videoPage](social.CodeInvalidRequest, "invalid cursor "+cursor), nil
		}
		body["cursor"] = c
	}
	return call[videoPage](ctx, p, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/video/list/",
		Token:  account.AccessToken,
		Query:  url.Values{"fields": {videoFields}},
		JSON:   body,
	})
}

func (p *Provider) ListPosts(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.PublishedPost], error) {
	res, err := p.listVideos(ctx, account, opts.LimitOr(20, 20), opts.Cursor)
	if err != nil || !res.Success {
		return social.Forward[[]social.PublishedPost](res), err
	}
	posts := make([]social.PublishedPost, 0, len(res.Data.Videos))
	for _, v := range res.Data.Videos {
		posts = append(posts, v.post())
	}
	cursor := ""
	if res.Data.HasMore {
		cursor = strconv.FormatInt(res.Data.Cursor, 10)
	}
	return social.OK(posts).WithRateLimit(res.RateLimit).WithCursor(cursor), nil
}

func (p *Provider) GetPostAnalytics(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[social.Engagement], error) {
	res, err := call[struct {
		Videos []video `json:"videos"`
	}](ctx, p, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/video/query/",
		Token:  account.AccessToken,
		Query:  url.Values{"fields": {videoFields}},
		JSON:   map[string]any{"filters": map[string][]string{"video_ids": {postID}}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Engagement](res), err
	}
	if len(res.Data.Videos) == 0 {
		return social.Fail[social.Engagement](social.CodePlatformError, "video "+postID+" not found"), nil
	}
	return social.OK(res.Data.Videos[0].engagement()).WithRateLimit(res.RateLimit), nil
}

// GetAnalytics sums the stats of the videos created in the period. The list
// is newest first, so paging stops at the first video older than the period.
func (p *Provider) GetAnalytics(ctx context.Context, account *social.SocialAccount, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	query = query.Normalize(p.now())
	profile, err := p.GetProfile(ctx, account)
	if err != nil || !profile.Success {
		return social.Forward[social.Analytics](profile), err
	}
	out := social.Analytics{
		Platform:  social.TikTok,
		AccountID: account.ID,
		Start:     query.Start,
		End:       query.End,
		Followers: profile.Data.Followers,
	}

	cursor := ""
	var rl *social.RateLimitInfo
	for page := 0; page < 10; page++ {
		res, err := p.listVideos(ctx, account, 20, cursor)
		if err != nil || !res.Success {
			return social.Forward[social.Analytics](res), err
		}
		rl = res.RateLimit
		older := false
		for _, v := range res.Data.Videos {
			created := time.Unix(v.CreateTime, 0)
			if created.Before(query.Start) {
				older = true
				break
			}
			if created.After(query.End) {
				continue
			}
			e := v.engagement()
			out.PostCount++
			out.Engagement += e.Total()
			out.Views += e.Views
			out.Reach += e.Reach
		}
		if older || !res.Data.HasMore {
			break
		}
		cursor = strconv.FormatInt(res.Data.Cursor, 10)
	}
	out.Impressions = out.Views
	return social.OK(out).WithRateLimit(rl), nil
}
