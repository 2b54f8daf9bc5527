package facebook

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
	"golang.org/x/oauth2"
	fb "golang.org/x/oauth2/facebook"
)

const (
	MaxTextLength = 63206

	defaultGraphURL = "https://graph.facebook.com/v18.0"

	maxVideoSize    = 10 << 30
	maxVideoMinutes = 240
	minScheduleLead = 10 * time.Minute
	maxScheduleLead = 30 * 24 * time.Hour
)

var DefaultScopes = []string{
	"public_profile",
	"pages_show_list",
	"pages_read_engagement",
	"pages_manage_posts",
	"pages_manage_engagement",
	"pages_read_user_content",
	"read_insights",
	"publish_video",
}

type Config struct {
	AppID       string
	AppSecret   string
	RedirectURI string
	Scopes      []string

	GraphURL string
	AuthURL  string
	TokenURL string
}

type Provider struct {
	social.Base
	cfg   Config
	oauth *oauth2.Config
	now   func() time.Time
}

func New(cfg Config, opts ...social.RequesterOption) *Provider {
	if cfg.GraphURL == "" {
		cfg.GraphURL = defaultGraphURL
	}
	endpoint := fb.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	} else {
		endpoint.TokenURL = cfg.GraphURL + "/oauth/access_token"
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	limits := social.Limits{MaxTextLength: MaxTextLength, MaxMediaCount: 10}
	return &Provider{
		Base: social.NewBase(social.Facebook, limits, social.NewRequester(social.Facebook, opts...)),
		cfg:  cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.AppID,
			ClientSecret: cfg.AppSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint:     endpoint,
		},
		now: time.Now,
	}
}

func (p *Provider) AuthURL(state string) (*social.AuthRequest, error) {
	if p.cfg.AppID == "" || p.cfg.RedirectURI == "" {
		return nil, fmt.Errorf("facebook app id and redirect uri are required")
	}
	return &social.AuthRequest{URL: p.oauth.AuthCodeURL(state), State: state}, nil
}

type tokenResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExchangeCode trades the code for a short lived token and immediately swaps
// it for a long lived one.
func (p *Provider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	short, err := social.ExchangeOAuth2(ctx, p.Requester, p.oauth, params.Code)
	if err != nil || !short.Success {
		return short, err
	}
	return p.longLived(ctx, short.Data.AccessToken)
}

// RefreshToken re-runs the long lived exchange; the platform issues no
// refresh tokens.
func (p *Provider) RefreshToken(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.TokenResponse], error) {
	if account.AccessToken == "" {
		return nil, social.NewAuthenticationError(social.Facebook, "no access token, reconnect the account")
	}
	return p.longLived(ctx, account.AccessToken)
}

func (p *Provider) longLived(ctx context.Context, token string) (*social.APIResponse[social.TokenResponse], error) {
	res, err := social.MakeRequest[tokenResult](ctx, p.Requester, social.Request{
		URL: p.cfg.GraphURL + "/oauth/access_token",
		Query: url.Values{
			"grant_type":        {"fb_exchange_token"},
			"client_id":         {p.cfg.AppID},
			"client_secret":     {p.cfg.AppSecret},
			"fb_exchange_token": {token},
		},
	})
	if err != nil || !res.Success {
		return social.Forward[social.TokenResponse](res), err
	}
	return social.OK(social.TokenResponse{
		AccessToken: res.Data.AccessToken,
		TokenType:   res.Data.TokenType,
		ExpiresAt:   social.ExpiresIn(p.now(), res.Data.ExpiresIn),
	}), nil
}

func (p *Provider) Revoke(ctx context.Context, account *social.SocialAccount) error {
	res, err := social.MakeRequest[struct {
		Success bool `json:"success"`
	}](ctx, p.Requester, social.Request{
		Method: http.MethodDelete,
		URL:    p.cfg.GraphURL + "/me/permissions",
		Token:  account.AccessToken,
	})
	if err != nil {
		return err
	}
	return res.Err()
}

type page struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Category       string `json:"category"`
	AccessToken    string `json:"access_token"`
	FollowersCount int64  `json:"followers_count"`
	FanCount       int64  `json:"fan_count"`
}

type list[T any] struct {
	Data   []T `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

func (l list[T]) cursor() string {
	if l.Paging.Next == "" {
		return ""
	}
	return l.Paging.Cursors.After
}

// ResolveMetadata records the pages the user manages along with their page
// tokens.
func (p *Provider) ResolveMetadata(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.AccountMetadata], error) {
	res, err := social.MakeRequest[list[page]](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/me/accounts",
		Token: account.AccessToken,
		Query: url.Values{"fields": {"id,name,category,access_token"}, "limit": {"100"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.AccountMetadata](res), err
	}
	meta := account.Metadata
	meta.Pages = nil
	for _, pg := range res.Data.Data {
		meta.Pages = append(meta.Pages, social.FacebookPage{ID: pg.ID, Name: pg.Name, Category: pg.Category, AccessToken: pg.AccessToken})
	}
	return social.OK(meta), nil
}

func (p *Provider) GetProfile(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	if res := social.RequireAccount[social.UserProfile](social.Facebook, account); res != nil {
		return res, nil
	}
	res, err := social.MakeRequest[struct {
		ID      string `json:"id"`
		Name    string `json:"name"`
		Link    string `json:"link"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/me",
		Token: account.AccessToken,
		Query: url.Values{"fields": {"id,name,link,picture.type(large)"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.UserProfile](res), err
	}
	u := res.Data
	return social.OK(social.UserProfile{
		ID:          u.ID,
		Username:    u.Name,
		DisplayName: u.Name,
		AvatarURL:   u.Picture.Data.URL,
		URL:         u.Link,
	}).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) ValidatePost(opts social.PostOptions) error {
	issues := p.CheckPost(opts)

	videos := opts.CountMedia(social.MediaVideo)
	if videos > 0 && len(opts.Media) > 1 {
		issues = append(issues, "a video must be the only media item in a post")
	}
	for i, m := range opts.Media {
		if m.Type != social.MediaVideo {
			continue
		}
		if m.Size > maxVideoSize {
			issues = append(issues, fmt.Sprintf("video %d exceeds 10GB", i+1))
		}
		if m.Duration > maxVideoMinutes*60 {
			issues = append(issues, fmt.Sprintf("video %d is longer than %d minutes", i+1, maxVideoMinutes))
		}
	}

	if opts.ScheduleTime != nil {
		lead := opts.ScheduleTime.Sub(p.now())
		switch {
		case lead < minScheduleLead:
			issues = append(issues, "scheduled time must be at least 10 minutes in the future")
		case lead > maxScheduleLead:
			issues = append(issues, "scheduled time must be within 30 days")
		}
		if s := opts.Settings.Facebook; s == nil || s.PageID == "" {
			issues = append(issues, "scheduled posts require a page")
		}
	}
	return social.NewValidationError(social.Facebook, issues)
}

// CanSchedule reports whether Facebook itself holds the post until its
// scheduled time. Only page posts 10 minutes to 30 days out qualify; the
// personal feed has no scheduling.
func (p *Provider) CanSchedule(opts social.PostOptions) bool {
	if opts.ScheduleTime == nil {
		return false
	}
	if s := opts.Settings.Facebook; s == nil || s.PageID == "" {
		return false
	}
	lead := opts.ScheduleTime.Sub(p.now())
	return lead >= minScheduleLead && lead <= maxScheduleLead
}

// target resolves the node to post to and the token to post with: the
// personal feed with the user token, or a page with its page token.
func (p *Provider) target(ctx context.Context, account *social.SocialAccount, pageID string) (string, string, *social.APIResponse[page], error) {
	if pageID == "" {
		return "me", account.AccessToken, nil, nil
	}
	if pg, ok := account.Metadata.Page(pageID); ok && pg.AccessToken != "" {
		return pageID, pg.AccessToken, nil, nil
	}
	res, err := social.MakeRequest[page](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(pageID),
		Token: account.AccessToken,
		Query: url.Values{"fields": {"id,name,access_token"}},
	})
	if err != nil || !res.Success {
		return "", "", res, err
	}
	if res.Data.AccessToken == "" {
		return "", "", social.Fail[page](social.CodeAuthFailed, "no page access token for page "+pageID), nil
	}
	return pageID, res.Data.AccessToken, nil, nil
}

// tokenFor picks the token owning a Graph object. Page post ids are prefixed
// with the page id.
func (p *Provider) tokenFor(account *social.SocialAccount, objectID string) string {
	prefix, _, _ := strings.Cut(objectID, "_")
	if pg, ok := account.Metadata.Page(prefix); ok && pg.AccessToken != "" {
		return pg.AccessToken
	}
	return account.AccessToken
}

type created struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

func (p *Provider) post(ctx context.Context, token, node, edge string, body map[string]any) (*social.APIResponse[created], error) {
	return social.MakeRequest[created](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.GraphURL + "/" + node + "/" + edge,
		Token:  token,
		JSON:   body,
	})
}

// CreatePost routes to the feed, photo, video or album flow depending on the
// attached media.
func (p *Provider) CreatePost(ctx context.Context, account *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := p.ValidatePost(opts); err != nil {
		return nil, err
	}
	if res := social.RequireAccount[social.PublishedPost](social.Facebook, account); res != nil {
		return res, nil
	}

	settings := opts.Settings.Facebook
	if settings == nil {
		settings = &social.FacebookSettings{}
	}
	node, token, failed, err := p.target(ctx, account, settings.PageID)
	if err != nil || failed != nil {
		return social.Forward[social.PublishedPost](failed), err
	}

	scheduled := opts.IsScheduled(p.now())
	schedule := func(body map[string]any) map[string]any {
		if scheduled {
			body["published"] = false
			body["scheduled_publish_time"] = opts.ScheduleTime.Unix()
		}
		return body
	}
	message := opts.FullText()

	var res *social.APIResponse[created]
	switch {
	case len(opts.Media) == 0:
		body := map[string]any{"message": message}
		if settings.Link != "" {
			body["link"] = settings.Link
		}
		res, err = p.post(ctx, token, node, "feed", schedule(body))
	case len(opts.Media) == 1 && opts.Media[0].Type == social.MediaVideo:
		res, err = p.post(ctx, token, node, "videos", schedule(map[string]any{
			"file_url":    opts.Media[0].URL,
			"description": message,
		}))
	case len(opts.Media) == 1:
		body := map[string]any{"caption": message}
		if opts.Media[0].ID != "" {
			// An unpublished upload is published by attaching it to a feed post.
			res, err = p.post(ctx, token, node, "feed", schedule(map[string]any{
				"message":        message,
				"attached_media": []map[string]string{{"media_fbid": opts.Media[0].ID}},
			}))
			break
		}
		body["url"] = opts.Media[0].URL
		res, err = p.post(ctx, token, node, "photos", schedule(body))
	default:
		res, err = p.album(ctx, token, node, message, opts, schedule)
	}
	if err != nil || !res.Success {
		return social.Forward[social.PublishedPost](res), err
	}

	id := res.Data.PostID
	if id == "" {
		id = res.Data.ID
	}
	status := social.StatusPublished
	if scheduled {
		status = social.StatusScheduled
	}
	return social.OK(social.PublishedPost{
		ID:        id,
		URL:       "https://www.facebook.com/" + id,
		CreatedAt: p.now(),
		Status:    status,
		Text:      message,
	}).WithRateLimit(res.RateLimit), nil
}

// album uploads every photo unpublished, then attaches them to one feed post.
func (p *Provider) album(ctx context.Context, token, node, message string, opts social.PostOptions, schedule func(map[string]any) map[string]any) (*social.APIResponse[created], error) {
	attached := make([]map[string]string, 0, len(opts.Media))
	for _, m := range opts.Media {
		if m.ID != "" {
			attached = append(attached, map[string]string{"media_fbid": m.ID})
			continue
		}
		body := map[string]any{"url": m.URL, "published": false}
		if opts.ScheduleTime != nil {
			body["temporary"] = true
		}
		photo, err := p.post(ctx, token, node, "photos", body)
		if err != nil || !photo.Success {
			return photo, err
		}
		attached = append(attached, map[string]string{"media_fbid": photo.Data.ID})
	}
	return p.post(ctx, token, node, "feed", schedule(map[string]any{
		"message":        message,
		"attached_media": attached,
	}))
}

func (p *Provider) UpdatePost(ctx context.Context, account *social.SocialAccount, postID string, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if strings.TrimSpace(opts.Text) == "" {
		return nil, social.NewValidationError(social.Facebook, []string{"updated text is empty"})
	}
	res, err := social.MakeRequest[struct {
		Success bool `json:"success"`
	}](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.GraphURL + "/" + url.PathEscape(postID),
		Token:  p.tokenFor(account, postID),
		JSON:   map[string]any{"message": opts.FullText()},
	})
	if err != nil || !res.Success {
		return social.Forward[social.PublishedPost](res), err
	}
	return social.OK(social.PublishedPost{
		ID:        postID,
		URL:       "https://www.facebook.com/" + postID,
		CreatedAt: p.now(),
		Status:    social.StatusPublished,
		Text:      opts.FullText(),
	}), nil
}

func (p *Provider) DeletePost(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[bool], error) {
	res, err := social.MakeRequest[struct {
		Success bool `json:"success"`
	}](ctx, p.Requester, social.Request{
		Method: http.MethodDelete,
		URL:    p.cfg.GraphURL + "/" + url.PathEscape(postID),
		Token:  p.tokenFor(account, postID),
	})
	if err != nil || !res.Success {
		return social.Forward[bool](res), err
	}
	return social.OK(res.Data.Success), nil
}

// defaultNode is the first managed page, or the personal feed.
func defaultNode(account *social.SocialAccount) (string, string) {
	if len(account.Metadata.Pages) > 0 {
		pg := account.Metadata.Pages[0]
		return pg.ID, pg.AccessToken
	}
	return "me", account.AccessToken
}

type graphPost struct {
	ID           string `json:"id"`
	Message      string `json:"message"`
	CreatedTime  string `json:"created_time"`
	PermalinkURL string `json:"permalink_url"`
}

// graphTime parses the +0000 offsets the Graph API uses.
func graphTime(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05-0700", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *Provider) ListPosts(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.PublishedPost], error) {
	node, token := defaultNode(account)
	q := url.Values{
		"fields": {"id,message,created_time,permalink_url"},
		"limit":  {strconv.Itoa(opts.LimitOr(25, 100))},
	}
	if opts.Cursor != "" {
		q.Set("after", opts.Cursor)
	}
	res, err := social.MakeRequest[list[graphPost]](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + node + "/posts",
		Token: token,
		Query: q,
	})
	if err != nil || !res.Success {
		return social.Forward[[]social.PublishedPost](res), err
	}
	posts := make([]social.PublishedPost, 0, len(res.Data.Data))
	for _, gp := range res.Data.Data {
		posts = append(posts, social.PublishedPost{
			ID:        gp.ID,
			URL:       gp.PermalinkURL,
			CreatedAt: graphTime(gp.CreatedTime),
			Status:    social.StatusPublished,
			Text:      gp.Message,
		})
	}
	return social.OK(posts).WithRateLimit(res.RateLimit).WithCursor(res.Data.cursor()), nil
}

// UploadMedia stores a photo unpublished on the default node so it can be
// attached to a later post by id.
func (p *Provider) UploadMedia(ctx context.Context, account *social.SocialAccount, upload social.MediaUpload) (*social.APIResponse[social.MediaItem], error) {
	if upload.Type != social.MediaImage {
		return social.Fail[social.MediaItem](social.CodeValidationFailed, "only photos can be uploaded ahead of a post"), nil
	}
	node, token := defaultNode(account)
	body, contentType, err := social.MultipartBody(
		map[string]string{"published": "false"},
		&social.FilePart{Field: "source", Filename: upload.Filename, ContentType: upload.ContentType, Data: upload.Data},
	)
	if err != nil {
		return social.Fail[social.MediaItem](social.CodeInvalidRequest, err.Error()), nil
	}
	res, err := social.MakeRequest[created](ctx, p.Requester, social.Request{
		Method:      http.MethodPost,
		URL:         p.cfg.GraphURL + "/" + node + "/photos",
		Token:       token,
		Body:        body,
		ContentType: contentType,
	})
	if err != nil || !res.Success {
		return social.Forward[social.MediaItem](res), err
	}
	return social.OK(social.MediaItem{
		Type:     social.MediaImage,
		ID:       res.Data.ID,
		Size:     int64(len(upload.Data)),
		MimeType: upload.ContentType,
		AltText:  upload.AltText,
	}), nil
}

func (p *Provider) GetMediaLibrary(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.MediaItem], error) {
	node, token := defaultNode(account)
	q := url.Values{
		"type":   {"uploaded"},
		"fields": {"id,images,name"},
		"limit":  {strconv.Itoa(opts.LimitOr(25, 100))},
	}
	if opts.Cursor != "" {
		q.Set("after", opts.Cursor)
	}
	res, err := social.MakeRequest[list[struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Images []struct {
			Source string `json:"source"`
			Width  int    `json:"width"`
			Height int    `json:"height"`
		} `json:"images"`
	}]](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + node + "/photos",
		Token: token,
		Query: q,
	})
	if err != nil || !res.Success {
		return social.Forward[[]social.MediaItem](res), err
	}
	items := make([]social.MediaItem, 0, len(res.Data.Data))
	for _, ph := range res.Data.Data {
		item := social.MediaItem{Type: social.MediaImage, ID: ph.ID, AltText: ph.Name}
		if len(ph.Images) > 0 {
			item.URL = ph.Images[0].Source
			item.Width = ph.Images[0].Width
			item.Height = ph.Images[0].Height
		}
		items = append(items, item)
	}
	return social.OK(items).WithRateLimit(res.RateLimit).WithCursor(res.Data.cursor()), nil
}

type insight struct {
	Name   string `json:"name"`
	Values []struct {
		Value any `json:"value"`
	} `json:"values"`
}

func (i insight) sum() int64 {
	var total int64
	for _, v := range i.Values {
		if n, ok := v.Value.(float64); ok {
			total += int64(n)
		}
	}
	return total
}

// GetAnalytics reads page insights for the first managed page. Personal
// profiles expose no insights.
func (p *Provider) GetAnalytics(ctx context.Context, account *social.SocialAccount, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	if len(account.Metadata.Pages) == 0 {
		return social.NotImplemented[social.Analytics](social.Facebook, "analytics without a managed page"), nil
	}
	query = query.Normalize(p.now())
	pg := account.Metadata.Pages[0]

	info, err := social.MakeRequest[page](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(pg.ID),
		Token: pg.AccessToken,
		Query: url.Values{"fields": {"followers_count,fan_count"}},
	})
	if err != nil || !info.Success {
		return social.Forward[social.Analytics](info), err
	}

	res, err := social.MakeRequest[list[insight]](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(pg.ID) + "/insights",
		Token: pg.AccessToken,
		Query: url.Values{
			"metric": {"page_impressions,page_impressions_unique,page_post_engagements,page_video_views"},
			"period": {"day"},
			"since":  {strconv.FormatInt(query.Start.Unix(), 10)},
			"until":  {strconv.FormatInt(query.End.Unix(), 10)},
		},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Analytics](res), err
	}

	out := social.Analytics{
		Platform:  social.Facebook,
		AccountID: account.ID,
		Start:     query.Start,
		End:       query.End,
		Followers: max(info.Data.FollowersCount, info.Data.FanCount),
	}
	for _, in := range res.Data.Data {
		switch in.Name {
		case "page_impressions":
			out.Impressions = in.sum()
		case "page_impressions_unique":
			out.Reach = in.sum()
		case "page_post_engagements":
			out.Engagement = in.sum()
		case "page_video_views":
			out.Views = in.sum()
		}
	}
	return social.OK(out).WithRateLimit(res.RateLimit), nil
}

type summary struct {
	Summary struct {
		TotalCount int64 `json:"total_count"`
	} `json:"summary"`
}

func (p *Provider) GetPostAnalytics(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[social.Engagement], error) {
	res, err := social.MakeRequest[struct {
		Reactions summary `json:"reactions"`
		Comments  summary `json:"comments"`
		Shares    struct {
			Count int64 `json:"count"`
		} `json:"shares"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(postID),
		Token: p.tokenFor(account, postID),
		Query: url.Values{"fields": {"reactions.summary(total_count).limit(0),comments.summary(total_count).limit(0),shares"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Engagement](res), err
	}
	return social.OK(social.Engagement{
		Likes:    res.Data.Reactions.Summary.TotalCount,
		Comments: res.Data.Comments.Summary.TotalCount,
		Shares:   res.Data.Shares.Count,
	}).WithRateLimit(res.RateLimit), nil
}

type graphComment struct {
	ID          string `json:"id"`
	Message     string `json:"message"`
	CreatedTime string `json:"created_time"`
	LikeCount   int64  `json:"like_count"`
	Comments    int64  `json:"comment_count"`
	From        struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"from"`
}

func (p *Provider) GetComments(ctx context.Context, account *social.SocialAccount, postID string, opts social.ListOptions) (*social.APIResponse[[]social.Comment], error) {
	q := url.Values{
		"fields": {"id,message,created_time,like_count,comment_count,from"},
		"limit":  {strconv.Itoa(opts.LimitOr(25, 100))},
	}
	if opts.Cursor != "" {
		q.Set("after", opts.Cursor)
	}
	res, err := social.MakeRequest[list[graphComment]](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(postID) + "/comments",
		Token: p.tokenFor(account, postID),
		Query: q,
	})
	if err != nil || !res.Success {
		return social.Forward[[]social.Comment](res), err
	}
	comments := make([]social.Comment, 0, len(res.Data.Data))
	for _, c := range res.Data.Data {
		comments = append(comments, social.Comment{
			ID:         c.ID,
			PostID:     postID,
			AuthorID:   c.From.ID,
			AuthorName: c.From.Name,
			Text:       c.Message,
			LikeCount:  c.LikeCount,
			ReplyCount: c.Comments,
			CreatedAt:  graphTime(c.CreatedTime),
		})
	}
	return social.OK(comments).WithRateLimit(res.RateLimit).WithCursor(res.Data.cursor()), nil
}

func (p *Provider) ReplyToComment(ctx context.Context, account *social.SocialAccount, commentID, text string) (*social.APIResponse[social.Comment], error) {
	if strings.TrimSpace(text) == "" {
		return nil, social.NewValidationError(social.Facebook, []string{"reply text is empty"})
	}
	_, token := defaultNode(account)
	res, err := p.post(ctx, token, url.PathEscape(commentID), "comments", map[string]any{"message": text})
	if err != nil || !res.Success {
		return social.Forward[social.Comment](res), err
	}
	return social.OK(social.Comment{
		ID:        res.Data.ID,
		ParentID:  commentID,
		Text:      text,
		CreatedAt: p.now(),
	}), nil
}

// GetRateLimit reports the app usage header of a minimal call.
func (p *Provider) GetRateLimit(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.RateLimitInfo], error) {
	res, err := social.MakeRequest[struct {
		ID string `json:"id"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/me",
		Token: account.AccessToken,
		Query: url.Values{"fields": {"id"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.RateLimitInfo](res), err
	}
	if res.RateLimit == nil {
		return social.OK(social.RateLimitInfo{Limit: 100, Remaining: 100}), nil
	}
	return social.OK(*res.RateLimit).WithRateLimit(res.RateLimit), nil
}
