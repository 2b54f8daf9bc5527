package instagram

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
	MaxCaptionLength = 2200
	MaxCarouselItems = 10
	MaxHashtags      = 30

	defaultGraphURL = "https://graph.facebook.com/v18.0"

	maxImageSize      = 8 << 20
	maxVideoSize      = 100 << 20
	minVideoSecs      = 3
	maxVideoSecs      = 90
	minAspectRatio    = 0.8
	maxAspectRatio    = 1.91
	defaultPollEvery  = 3 * time.Second
	defaultPollTries  = 40
	containerFinished = "FINISHED"
)

var DefaultScopes = []string{
	"instagram_basic",
	"instagram_content_publish",
	"instagram_manage_comments",
	"instagram_manage_insights",
	"pages_show_list",
	"pages_read_engagement",
	"business_management",
}

type Config struct {
	AppID       string
	AppSecret   string
	RedirectURI string
	Scopes      []string

	GraphURL string
	AuthURL  string
	TokenURL string

	// PollInterval and PollAttempts bound the wait for container processing.
	PollInterval time.Duration
	PollAttempts int
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
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollEvery
	}
	if cfg.PollAttempts <= 0 {
		cfg.PollAttempts = defaultPollTries
	}

	limits := social.Limits{MaxTextLength: MaxCaptionLength, MaxMediaCount: MaxCarouselItems, RequiresMedia: true}
	return &Provider{
		Base: social.NewBase(social.Instagram, limits, social.NewRequester(social.Instagram, opts...)),
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
		return nil, fmt.Errorf("instagram app id and redirect uri are required")
	}
	return &social.AuthRequest{URL: p.oauth.AuthCodeURL(state), State: state}, nil
}

func (p *Provider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	short, err := social.ExchangeOAuth2(ctx, p.Requester, p.oauth, params.Code)
	if err != nil || !short.Success {
		return short, err
	}
	return p.longLived(ctx, short.Data.AccessToken)
}

func (p *Provider) RefreshToken(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.TokenResponse], error) {
	if account.AccessToken == "" {
		return nil, social.NewAuthenticationError(social.Instagram, "no access token, reconnect the account")
	}
	return p.longLived(ctx, account.AccessToken)
}

func (p *Provider) longLived(ctx context.Context, token string) (*social.APIResponse[social.TokenResponse], error) {
	res, err := social.MakeRequest[struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int64  `json:"expires_in"`
	}](ctx, p.Requester, social.Request{
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

type pageAccounts struct {
	Data []struct {
		ID                       string `json:"id"`
		Name                     string `json:"name"`
		Category                 string `json:"category"`
		AccessToken              string `json:"access_token"`
		InstagramBusinessAccount *struct {
			ID string `json:"id"`
		} `json:"instagram_business_account"`
	} `json:"data"`
}

// ResolveMetadata finds the Instagram business account connected to one of
// the user's pages.
func (p *Provider) ResolveMetadata(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.AccountMetadata], error) {
	res, err := social.MakeRequest[pageAccounts](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/me/accounts",
		Token: account.AccessToken,
		Query: url.Values{"fields": {"id,name,category,access_token,instagram_business_account"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.AccountMetadata](res), err
	}
	meta := account.Metadata
	meta.Pages = nil
	for _, pg := range res.Data.Data {
		meta.Pages = append(meta.Pages, social.FacebookPage{ID: pg.ID, Name: pg.Name, Category: pg.Category, AccessToken: pg.AccessToken})
		if meta.InstagramBusinessID == "" && pg.InstagramBusinessAccount != nil {
			meta.InstagramBusinessID = pg.InstagramBusinessAccount.ID
		}
	}
	if meta.InstagramBusinessID == "" {
		return social.Fail[social.AccountMetadata](social.CodeNoAccount, "no Instagram business account is connected to your Facebook pages"), nil
	}
	return social.OK(meta), nil
}

// businessID returns the cached business account id, resolving and caching
// it on the account when missing.
func (p *Provider) businessID(ctx context.Context, account *social.SocialAccount) (string, *social.APIResponse[social.AccountMetadata], error) {
	if id := account.Metadata.InstagramBusinessID; id != "" {
		return id, nil, nil
	}
	res, err := p.ResolveMetadata(ctx, account)
	if err != nil || !res.Success {
		return "", res, err
	}
	account.Metadata = res.Data
	return res.Data.InstagramBusinessID, nil, nil
}

func (p *Provider) GetProfile(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	if res := social.RequireAccount[social.UserProfile](social.Instagram, account); res != nil {
		return res, nil
	}
	igID, failed, err := p.businessID(ctx, account)
	if err != nil || failed != nil {
		return social.Forward[social.UserProfile](failed), err
	}
	res, err := social.MakeRequest[struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		Name           string `json:"name"`
		Biography      string `json:"biography"`
		ProfilePicture string `json:"profile_picture_url"`
		FollowersCount int64  `json:"followers_count"`
		FollowsCount   int64  `json:"follows_count"`
		MediaCount     int64  `json:"media_count"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(igID),
		Token: account.AccessToken,
		Query: url.Values{"fields": {"id,username,name,biography,profile_picture_url,followers_count,follows_count,media_count"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.UserProfile](res), err
	}
	u := res.Data
	return social.OK(social.UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.Name,
		Bio:         u.Biography,
		AvatarURL:   u.ProfilePicture,
		Followers:   u.FollowersCount,
		Following:   u.FollowsCount,
		PostCount:   u.MediaCount,
		URL:         "https://www.instagram.com/" + u.Username,
	}).WithRateLimit(res.RateLimit), nil
}

func countHashtags(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		if strings.HasPrefix(w, "#") && len(w) > 1 {
			n++
		}
	}
	return n
}

func (p *Provider) ValidatePost(opts social.PostOptions) error {
	issues := p.CheckPost(opts)

	if n := countHashtags(opts.FullText()); n > MaxHashtags {
		issues = append(issues, fmt.Sprintf("%d hashtags used, maximum is %d", n, MaxHashtags))
	}
	for i, m := range opts.Media {
		switch m.Type {
		case social.MediaGIF:
			issues = append(issues, fmt.Sprintf("media item %d: gifs are not supported", i+1))
		case social.MediaImage:
			if r := m.AspectRatio(); r != 0 && (r < minAspectRatio || r > maxAspectRatio) {
				issues = append(issues, fmt.Sprintf("image %d has aspect ratio %.2f, allowed range is %.1f to %.2f", i+1, r, minAspectRatio, maxAspectRatio))
			}
			if m.Size > maxImageSize {
				issues = append(issues, fmt.Sprintf("image %d exceeds 8MB", i+1))
			}
		case social.MediaVideo:
			if m.Duration != 0 && (m.Duration < minVideoSecs || m.Duration > maxVideoSecs) {
				issues = append(issues, fmt.Sprintf("video %d must be between %d and %d seconds", i+1, minVideoSecs, maxVideoSecs))
			}
			if m.Size > maxVideoSize {
				issues = append(issues, fmt.Sprintf("video %d exceeds 100MB", i+1))
			}
		}
	}
	return social.NewValidationError(social.Instagram, issues)
}

type idResult struct {
	ID string `json:"id"`
}

func (p *Provider) createContainer(ctx context.Context, account *social.SocialAccount, igID string, body map[string]any) (*social.APIResponse[idResult], error) {
	return social.MakeRequest[idResult](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.GraphURL + "/" + url.PathEscape(igID) + "/media",
		Token:  account.AccessToken,
		JSON:   body,
	})
}

// waitContainer polls the container until it reports FINISHED.
func (p *Provider) waitContainer(ctx context.Context, account *social.SocialAccount, containerID string) (*social.APIResponse[idResult], error) {
	var failed *social.APIResponse[idResult]
	done, err := social.Poll(ctx, p.cfg.PollInterval, p.cfg.PollAttempts, func(int) (bool, error) {
		res, err := social.MakeRequest[struct {
			StatusCode string `json:"status_code"`
			Status     string `json:"status"`
		}](ctx, p.Requester, social.Request{
			URL:   p.cfg.GraphURL + "/" + url.PathEscape(containerID),
			Token: account.AccessToken,
			Query: url.Values{"fields": {"status_code,status"}},
		})
		if err != nil {
			return false, err
		}
		if !res.Success {
			failed = social.Forward[idResult](res)
			return true, nil
		}
		switch res.Data.StatusCode {
		case containerFinished, "PUBLISHED":
			return true, nil
		case "ERROR", "EXPIRED":
			msg := res.Data.Status
			if msg == "" {
				msg = "container " + strings.ToLower(res.Data.StatusCode)
			}
			failed = social.Fail[idResult](social.CodeProcessingFailed, msg)
			return true, nil
		}
		return false, nil
	})
	switch {
	case err != nil && social.IsFatal(err):
		return nil, err
	case err != nil:
		return social.Fail[idResult](social.CodeNetwork, err.Error()), nil
	case failed != nil:
		return failed, nil
	case !done:
		return social.Fail[idResult](social.CodeProcessingTimeout, "media container "+containerID+" is still processing"), nil
	}
	return social.OK(idResult{ID: containerID}), nil
}

func mediaFields(m social.MediaItem, body map[string]any) map[string]any {
	if m.Type == social.MediaVideo {
		body["video_url"] = m.URL
	} else {
		body["image_url"] = m.URL
	}
	return body
}

// CreatePost runs the container protocol: create the container (a parent
// CAROUSEL over per item children for several media), wait until it is
// processed, then publish it.
func (p *Provider) CreatePost(ctx context.Context, account *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := p.ValidatePost(opts); err != nil {
		return nil, err
	}
	if res := social.RequireAccount[social.PublishedPost](social.Instagram, account); res != nil {
		return res, nil
	}
	igID, failed, err := p.businessID(ctx, account)
	if err != nil || failed != nil {
		return social.Forward[social.PublishedPost](failed), err
	}

	caption := opts.FullText()
	body := map[string]any{"caption": caption}
	if opts.Location != nil && opts.Location.PlaceID != "" {
		body["location_id"] = opts.Location.PlaceID
	}

	if len(opts.Media) == 1 {
		m := opts.Media[0]
		body = mediaFields(m, body)
		if m.Type == social.MediaVideo {
			body["media_type"] = "REELS"
			if s := opts.Settings.Instagram; s != nil {
				if s.ShareToFeed != nil {
					body["share_to_feed"] = *s.ShareToFeed
				}
				if s.CoverURL != "" {
					body["cover_url"] = s.CoverURL
				}
				if s.ThumbOffset > 0 {
					body["thumb_offset"] = s.ThumbOffset
				}
			}
		}
	} else {
		children := make([]string, 0, len(opts.Media))
		for _, m := range opts.Media {
			child := mediaFields(m, map[string]any{"is_carousel_item": true})
			if m.Type == social.MediaVideo {
				child["media_type"] = "VIDEO"
			}
			res, err := p.createContainer(ctx, account, igID, child)
			if err != nil || !res.Success {
				return social.Forward[social.PublishedPost](res), err
			}
			ready, err := p.waitContainer(ctx, account, res.Data.ID)
			if err != nil || !ready.Success {
				return social.Forward[social.PublishedPost](ready), err
			}
			children = append(children, res.Data.ID)
		}
		body["media_type"] = "CAROUSEL"
		body["children"] = strings.Join(children, ",")
	}

	container, err := p.createContainer(ctx, account, igID, body)
	if err != nil || !container.Success {
		return social.Forward[social.PublishedPost](container), err
	}
	ready, err := p.waitContainer(ctx, account, container.Data.ID)
	if err != nil || !ready.Success {
		return social.Forward[social.PublishedPost](ready), err
	}

	published, err := social.MakeRequest[idResult](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.GraphURL + "/" + url.PathEscape(igID) + "/media_publish",
		Token:  account.AccessToken,
		JSON:   map[string]any{"creation_id": container.Data.ID},
	})
	if err != nil || !published.Success {
		return social.Forward[social.PublishedPost](published), err
	}

	post := social.PublishedPost{
		ID:        published.Data.ID,
		CreatedAt: p.now(),
		Status:    social.StatusPublished,
		Text:      caption,
	}
	// The permalink is a convenience; the post exists without it.
	if link, err := social.MakeRequest[struct {
		Permalink string `json:"permalink"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(post.ID),
		Token: account.AccessToken,
		Query: url.Values{"fields": {"permalink"}},
	}); err == nil && link.Success {
		post.URL = link.Data.Permalink
	}
	return social.OK(post).WithRateLimit(published.RateLimit), nil
}

type igMedia struct {
	ID            string `json:"id"`
	Caption       string `json:"caption"`
	MediaType     string `json:"media_type"`
	MediaURL      string `json:"media_url"`
	Permalink     string `json:"permalink"`
	Timestamp     string `json:"timestamp"`
	LikeCount     int64  `json:"like_count"`
	CommentsCount int64  `json:"comments_count"`
}

type mediaPage struct {
	Data   []igMedia `json:"data"`
	Paging struct {
		Cursors struct {
			After string `json:"after"`
		} `json:"cursors"`
		Next string `json:"next"`
	} `json:"paging"`
}

func (m mediaPage) cursor() string {
	if m.Paging.Next == "" {
		return ""
	}
	return m.Paging.Cursors.After
}

func graphTime(s string) time.Time {
	t, err := time.Parse("2006-01-02T15:04:05-0700", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (p *Provider) media(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[mediaPage], error) {
	igID, failed, err := p.businessID(ctx, account)
	if err != nil || failed != nil {
		return social.Forward[mediaPage](failed), err
	}
	q := url.Values{
		"fields": {"id,caption,media_type,media_url,permalink,timestamp,like_count,comments_count"},
		"limit":  {strconv.Itoa(opts.LimitOr(25, 100))},
	}
	if opts.Cursor != "" {
		q.Set("after", opts.Cursor)
	}
	return social.MakeRequest[mediaPage](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(igID) + "/media",
		Token: account.AccessToken,
		Query: q,
	})
}

func (p *Provider) ListPosts(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.PublishedPost], error) {
	res, err := p.media(ctx, account, opts)
	if err != nil || !res.Success {
		return social.Forward[[]social.PublishedPost](res), err
	}
	posts := make([]social.PublishedPost, 0, len(res.Data.Data))
	for _, m := range res.Data.Data {
		posts = append(posts, social.PublishedPost{
			ID:         m.ID,
			URL:        m.Permalink,
			CreatedAt:  graphTime(m.Timestamp),
			Status:     social.StatusPublished,
			Text:       m.Caption,
			Engagement: &social.Engagement{Likes: m.LikeCount, Comments: m.CommentsCount},
		})
	}
	return social.OK(posts).WithRateLimit(res.RateLimit).WithCursor(res.Data.cursor()), nil
}

func (p *Provider) GetMediaLibrary(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.MediaItem], error) {
	res, err := p.media(ctx, account, opts)
	if err != nil || !res.Success {
		return social.Forward[[]social.MediaItem](res), err
	}
	items := make([]social.MediaItem, 0, len(res.Data.Data))
	for _, m := range res.Data.Data {
		t := social.MediaImage
		if m.MediaType == "VIDEO" || m.MediaType == "REELS" {
			t = social.MediaVideo
		}
		items = append(items, social.MediaItem{Type: t, ID: m.ID, URL: m.MediaURL})
	}
	return social.OK(items).WithRateLimit(res.RateLimit).WithCursor(res.Data.cursor()), nil
}

type insights struct {
	Data []struct {
		Name   string `json:"name"`
		Values []struct {
			Value float64 `json:"value"`
		} `json:"values"`
		TotalValue *struct {
			Value float64 `json:"value"`
		} `json:"total_value"`
	} `json:"data"`
}

func (in insights) values() map[string]int64 {
	out := make(map[string]int64, len(in.Data))
	for _, d := range in.Data {
		var total float64
		if d.TotalValue != nil {
			total = d.TotalValue.Value
		}
		for _, v := range d.Values {
			total += v.Value
		}
		out[d.Name] = int64(total)
	}
	return out
}

func (p *Provider) GetAnalytics(ctx context.Context, account *social.SocialAccount, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	query = query.Normalize(p.now())
	profile, err := p.GetProfile(ctx, account)
	if err != nil || !profile.Success {
		return social.Forward[social.Analytics](profile), err
	}
	igID := account.Metadata.InstagramBusinessID

	fetch := func(q url.Values) (*social.APIResponse[insights], error) {
		q.Set("since", strconv.FormatInt(query.Start.Unix(), 10))
		q.Set("until", strconv.FormatInt(query.End.Unix(), 10))
		return social.MakeRequest[insights](ctx, p.Requester, social.Request{
			URL:   p.cfg.GraphURL + "/" + url.PathEscape(igID) + "/insights",
			Token: account.AccessToken,
			Query: q,
		})
	}
	daily, err := fetch(url.Values{"metric": {"impressions,reach"}, "period": {"day"}})
	if err != nil || !daily.Success {
		return social.Forward[social.Analytics](daily), err
	}
	totals, err := fetch(url.Values{"metric": {"total_interactions,views"}, "period": {"day"}, "metric_type": {"total_value"}})
	if err != nil || !totals.Success {
		return social.Forward[social.Analytics](totals), err
	}

	d, t := daily.Data.values(), totals.Data.values()
	return social.OK(social.Analytics{
		Platform:    social.Instagram,
		AccountID:   account.ID,
		Start:       query.Start,
		End:         query.End,
		Followers:   profile.Data.Followers,
		Impressions: d["impressions"],
		Reach:       d["reach"],
		Engagement:  t["total_interactions"],
		Views:       t["views"],
		PostCount:   profile.Data.PostCount,
	}).WithRateLimit(totals.RateLimit), nil
}

func (p *Provider) GetPostAnalytics(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[social.Engagement], error) {
	res, err := social.MakeRequest[insights](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(postID) + "/insights",
		Token: account.AccessToken,
		Query: url.Values{"metric": {"impressions,reach,saved,likes,comments,shares"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Engagement](res), err
	}
	v := res.Data.values()
	return social.OK(social.Engagement{
		Likes:       v["likes"],
		Comments:    v["comments"],
		Shares:      v["shares"],
		Saves:       v["saved"],
		Impressions: v["impressions"],
		Reach:       v["reach"],
	}).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) GetComments(ctx context.Context, account *social.SocialAccount, postID string, opts social.ListOptions) (*social.APIResponse[[]social.Comment], error) {
	q := url.Values{
		"fields": {"id,text,username,timestamp,like_count"},
		"limit":  {strconv.Itoa(opts.LimitOr(25, 50))},
	}
	if opts.Cursor != "" {
		q.Set("after", opts.Cursor)
	}
	res, err := social.MakeRequest[struct {
		Data []struct {
			ID        string `json:"id"`
			Text      string `json:"text"`
			Username  string `json:"username"`
			Timestamp string `json:"timestamp"`
			LikeCount int64  `json:"like_count"`
		} `json:"data"`
		Paging struct {
			Cursors struct {
				After string `json:"after"`
			} `json:"cursors"`
			Next string `json:"next"`
		} `json:"paging"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.GraphURL + "/" + url.PathEscape(postID) + "/comments",
		Token: account.AccessToken,
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
			AuthorName: c.Username,
			Text:       c.Text,
			LikeCount:  c.LikeCount,
			CreatedAt:  graphTime(c.Timestamp),
		})
	}
	cursor := ""
	if res.Data.Paging.Next != "" {
		cursor = res.Data.Paging.Cursors.After
	}
	return social.OK(comments).WithRateLimit(res.RateLimit).WithCursor(cursor), nil
}

func (p *Provider) ReplyToComment(ctx context.Context, account *social.SocialAccount, commentID, text string) (*social.APIResponse[social.Comment], error) {
	if strings.TrimSpace(text) == "" {
		return nil, social.NewValidationError(social.Instagram, []string{"reply text is empty"})
	}
	res, err := social.MakeRequest[idResult](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.GraphURL + "/" + url.PathEscape(commentID) + "/replies",
		Token:  account.AccessToken,
		JSON:   map[string]any{"message": text},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Comment](res), err
	}
	return social.OK(social.Comment{
		ID:         res.Data.ID,
		ParentID:   commentID,
		AuthorName: account.Username,
		Text:       text,
		CreatedAt:  p.now(),
	}), nil
}
