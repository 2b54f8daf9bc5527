package youtube

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"
	"google.golang.org/api/youtubeanalytics/v2"
)

const (
	MaxDescriptionLength = 5000
	MaxTitleLength       = 100
	MaxTagsLength        = 500

	DefaultCategoryID = "22"
	defaultRevokeURL  = "https://oauth2.googleapis.com/revoke"
	untitled          = "Untitled"
)

var DefaultScopes = []string{
	yt.YoutubeUploadScope,
	yt.YoutubeScope,
	yt.YoutubeForceSslScope,
	youtubeanalytics.YtAnalyticsReadonlyScope,
}

var privacyStatuses = []string{"public", "private", "unlisted"}

// Config for the YouTube provider. APIURL and AnalyticsURL override the
// Google API endpoints and are empty in production.
type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	APIURL       string
	AnalyticsURL string
	AuthURL      string
	TokenURL     string
	RevokeURL    string
}

type Provider struct {
	social.Base
	cfg   Config
	oauth *oauth2.Config
	now   func() time.Time
}

func New(cfg Config, opts ...social.RequesterOption) *Provider {
	endpoint := google.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if cfg.RevokeURL == "" {
		cfg.RevokeURL = defaultRevokeURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}
	limits := social.Limits{
		MaxTextLength:  MaxDescriptionLength,
		MaxMediaCount:  1,
		RequiresMedia:  true,
		NativeSchedule: true,
	}
	return &Provider{
		Base: social.NewBase(social.YouTube, limits, social.NewRequester(social.YouTube, opts...)),
		cfg:  cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		now: time.Now,
	}
}

// AuthURL requests offline access with forced consent so Google always
// returns a refresh token.
func (p *Provider) AuthURL(state string) (*social.AuthRequest, error) {
	if p.cfg.ClientID == "" || p.cfg.RedirectURI == "" {
		return nil, errors.New("youtube oauth2 configuration is incomplete")
	}
	u := p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
	return &social.AuthRequest{URL: u, State: state}, nil
}

func (p *Provider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	return social.ExchangeOAuth2(ctx, p.Requester, p.oauth, params.Code)
}

func (p *Provider) RefreshToken(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.TokenResponse], error) {
	return social.RefreshOAuth2(ctx, p.Requester, p.oauth, account.RefreshToken)
}

func (p *Provider) Revoke(ctx context.Context, account *social.SocialAccount) error {
	token := account.RefreshToken
	if token == "" {
		token = account.AccessToken
	}
	res, err := social.MakeRequest[struct{}](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.RevokeURL,
		Form:   url.Values{"token": {token}},
	})
	if err != nil {
		return err
	}
	return res.Err()
}

// client authorizes requests with the account token on top of the
// requester's HTTP client.
func (p *Provider) client(ctx context.Context, account *social.SocialAccount) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.Requester.Client())
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: account.AccessToken, TokenType: "Bearer"}))
}

func (p *Provider) service(ctx context.Context, account *social.SocialAccount) (*yt.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(p.client(ctx, account))}
	if p.cfg.APIURL != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.APIURL))
	}
	svc, err := yt.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube service: %w", err)
	}
	return svc, nil
}

func (p *Provider) analyticsService(ctx context.Context, account *social.SocialAccount) (*youtubeanalytics.Service, error) {
	opts := []option.ClientOption{option.WithHTTPClient(p.client(ctx, account))}
	if p.cfg.AnalyticsURL != "" {
		opts = append(opts, option.WithEndpoint(p.cfg.AnalyticsURL))
	}
	svc, err := youtubeanalytics.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube analytics service: %w", err)
	}
	return svc, nil
}

// failure maps a Google API client error onto the shared error contract.
func failure[T any](err error) (*social.APIResponse[T], error) {
	var ge *googleapi.Error
	if !errors.As(err, &ge) {
		return social.Fail[T](social.CodeNetwork, err.Error()), nil
	}
	msg := ge.Message
	if msg == "" {
		msg = http.StatusText(ge.Code)
	}
	reasons := make([]string, 0, len(ge.Errors))
	for _, item := range ge.Errors {
		reasons = append(reasons, item.Reason)
	}
	switch {
	case ge.Code == http.StatusTooManyRequests,
		ge.Code == http.StatusForbidden && (slices.Contains(reasons, "rateLimitExceeded") || slices.Contains(reasons, "userRateLimitExceeded")):
		return nil, social.NewRateLimitError(social.YouTube, social.RetryAfter(ge.Header, time.Now()), msg)
	case ge.Code == http.StatusForbidden && slices.Contains(reasons, "quotaExceeded"):
		return nil, social.NewRateLimitError(social.YouTube, time.Hour, msg)
	case ge.Code == http.StatusUnauthorized:
		return nil, social.NewAuthenticationError(social.YouTube, msg)
	}
	return social.Fail[T](social.CodeHTTP, msg, append([]string{fmt.Sprintf("status %d", ge.Code)}, reasons...)...), nil
}

// VideoTitle is the explicit title, or the first line of the text cut to
// the title limit.
func VideoTitle(opts social.PostOptions) string {
	if s := opts.Settings.YouTube; s != nil && strings.TrimSpace(s.Title) != "" {
		return strings.TrimSpace(s.Title)
	}
	if title := social.Truncate(social.FirstLine(opts.Text), MaxTitleLength); title != "" {
		return title
	}
	return untitled
}

func tagsLength(tags []string) int {
	n := 0
	for i, tag := range tags {
		if i > 0 {
			n++
		}
		n += social.RuneLen(tag)
		if strings.Contains(tag, " ") {
			n += 2
		}
	}
	return n
}

func (p *Provider) ValidatePost(opts social.PostOptions) error {
	issues := p.CheckPost(opts)
	for i, m := range opts.Media {
		if m.Type != social.MediaVideo {
			issues = append(issues, fmt.Sprintf("media item %d is a %s, only video is supported", i+1, m.Type))
		}
	}
	if strings.ContainsAny(opts.FullText(), "<>") {
		issues = append(issues, "description cannot contain < or >")
	}
	if s := opts.Settings.YouTube; s != nil {
		if n := social.RuneLen(strings.TrimSpace(s.Title)); n > MaxTitleLength {
			issues = append(issues, fmt.Sprintf("title is %d characters, maximum is %d", n, MaxTitleLength))
		}
		if n := tagsLength(s.Tags); n > MaxTagsLength {
			issues = append(issues, fmt.Sprintf("tags total %d characters, maximum is %d", n, MaxTagsLength))
		}
		if s.PrivacyStatus != "" && !slices.Contains(privacyStatuses, s.PrivacyStatus) {
			issues = append(issues, "privacy status must be public, private or unlisted")
		}
	}
	return social.NewValidationError(social.YouTube, issues)
}

func watchURL(id string) string { return "https://www.youtube.com/watch?v=" + id }

// CreatePost streams the source video into a resumable upload. A future
// schedule time uploads the video private with publishAt set.
func (p *Provider) CreatePost(ctx context.Context, account *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := p.ValidatePost(opts); err != nil {
		return nil, err
	}
	if res := social.RequireAccount[social.PublishedPost](social.YouTube, account); res != nil {
		return res, nil
	}

	settings := social.YouTubeSettings{}
	if opts.Settings.YouTube != nil {
		settings = *opts.Settings.YouTube
	}
	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       VideoTitle(opts),
			Description: opts.FullText(),
			Tags:        settings.Tags,
			CategoryId:  settings.CategoryID,
		},
		Status: &yt.VideoStatus{
			PrivacyStatus:           settings.PrivacyStatus,
			SelfDeclaredMadeForKids: settings.MadeForKids,
			ForceSendFields:         []string{"SelfDeclaredMadeForKids"},
		},
	}
	if video.Snippet.CategoryId == "" {
		video.Snippet.CategoryId = DefaultCategoryID
	}
	if video.Status.PrivacyStatus == "" {
		video.Status.PrivacyStatus = "public"
	}
	status := social.StatusPublished
	if opts.IsScheduled(p.now()) {
		video.Status.PrivacyStatus = "private"
		video.Status.PublishAt = opts.ScheduleTime.UTC().Format(time.RFC3339)
		status = social.StatusScheduled
	}

	source := p.open(ctx, opts.Media[0].URL)
	if !source.Success {
		return social.Forward[social.PublishedPost](source), nil
	}
	defer source.Data.Body.Close()

	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	call := svc.Videos.Insert([]string{"snippet", "status"}, video).Context(ctx)
	if settings.NotifySubscribers != nil {
		call = call.NotifySubscribers(*settings.NotifySubscribers)
	}
	var mediaOpts []googleapi.MediaOption
	if source.Data.ContentType != "" {
		mediaOpts = append(mediaOpts, googleapi.ContentType(source.Data.ContentType))
	}
	uploaded, err := call.Media(source.Data.Body, mediaOpts...).Do()
	if err != nil {
		return failure[social.PublishedPost](err)
	}
	return social.OK(social.PublishedPost{
		ID:        uploaded.Id,
		URL:       watchURL(uploaded.Id),
		CreatedAt: p.now(),
		Status:    status,
		Text:      video.Snippet.Description,
	}), nil
}

// UpdatePost rewrites title, description, tags and category. The category is
// required by the API, so the default applies when none is given.
func (p *Provider) UpdatePost(ctx context.Context, account *social.SocialAccount, postID string, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	check := opts
	check.Media = []social.MediaItem{{Type: social.MediaVideo, ID: postID}}
	if err := p.ValidatePost(check); err != nil {
		return nil, err
	}
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	snippet := &yt.VideoSnippet{
		Title:       VideoTitle(opts),
		Description: opts.FullText(),
		CategoryId:  DefaultCategoryID,
	}
	parts := []string{"snippet"}
	video := &yt.Video{Id: postID, Snippet: snippet}
	if s := opts.Settings.YouTube; s != nil {
		snippet.Tags = s.Tags
		if s.CategoryID != "" {
			snippet.CategoryId = s.CategoryID
		}
		if s.PrivacyStatus != "" {
			video.Status = &yt.VideoStatus{PrivacyStatus: s.PrivacyStatus}
			parts = append(parts, "status")
		}
	}
	updated, err := svc.Videos.Update(parts, video).Context(ctx).Do()
	if err != nil {
		return failure[social.PublishedPost](err)
	}
	return social.OK(social.PublishedPost{
		ID:        updated.Id,
		URL:       watchURL(updated.Id),
		CreatedAt: p.now(),
		Status:    social.StatusPublished,
		Text:      snippet.Description,
	}), nil
}

func (p *Provider) DeletePost(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[bool], error) {
	svc, err := p.service(ctx, account)
	if err != nil {
		return nil, err
	}
	if err := svc.Videos.Delete(postID).Context(ctx).Do(); err != nil {
		return failure[bool](err)
	}
	return social.OK(true), nil
}
