package linkedin

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
	li "golang.org/x/oauth2/linkedin"
)

const (
	MaxTextLength = 3000

	defaultAPIURL = "https://api.linkedin.com"

	maxImageSize = 10 << 20
	maxVideoSize = 200 << 20
	maxVideoSecs = 10 * 60

	restliHeader = "X-Restli-Protocol-Version"
)

var DefaultScopes = []string{"openid", "profile", "email", "w_member_social", "r_organization_social", "w_organization_social", "rw_organization_admin"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	APIURL   string
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
	if cfg.APIURL == "" {
		cfg.APIURL = defaultAPIURL
	}
	endpoint := li.Endpoint
	if cfg.AuthURL != "" {
		endpoint.AuthURL = cfg.AuthURL
	}
	if cfg.TokenURL != "" {
		endpoint.TokenURL = cfg.TokenURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	limits := social.Limits{MaxTextLength: MaxTextLength, MaxMediaCount: 1}
	return &Provider{
		Base: social.NewBase(social.LinkedIn, limits, social.NewRequester(social.LinkedIn, opts...)),
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

func (p *Provider) AuthURL(state string) (*social.AuthRequest, error) {
	if p.cfg.ClientID == "" || p.cfg.RedirectURI == "" {
		return nil, fmt.Errorf("linkedin client id and redirect uri are required")
	}
	return &social.AuthRequest{URL: p.oauth.AuthCodeURL(state), State: state}, nil
}

func (p *Provider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	return social.ExchangeOAuth2(ctx, p.Requester, p.oauth, params.Code)
}

// RefreshToken only succeeds for apps granted programmatic refresh tokens.
func (p *Provider) RefreshToken(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.TokenResponse], error) {
	return social.RefreshOAuth2(ctx, p.Requester, p.oauth, account.RefreshToken)
}

func (p *Provider) GetProfile(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	if res := social.RequireAccount[social.UserProfile](social.LinkedIn, account); res != nil {
		return res, nil
	}
	res, err := social.MakeRequest[struct {
		Sub        string `json:"sub"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Picture    string `json:"picture"`
		Email      string `json:"email"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/v2/userinfo",
		Token: account.AccessToken,
	})
	if err != nil || !res.Success {
		return social.Forward[social.UserProfile](res), err
	}
	u := res.Data
	username := u.Email
	if username == "" {
		username = strings.TrimSpace(u.GivenName + " " + u.FamilyName)
	}
	return social.OK(social.UserProfile{
		ID:          u.Sub,
		Username:    username,
		DisplayName: u.Name,
		AvatarURL:   u.Picture,
	}).WithRateLimit(res.RateLimit), nil
}

// ResolveMetadata lists the organizations the member administers.
func (p *Provider) ResolveMetadata(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.AccountMetadata], error) {
	res, err := social.MakeRequest[struct {
		Elements []struct {
			Organization string `json:"organization"`
			Role         string `json:"role"`
			State        string `json:"state"`
		} `json:"elements"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/v2/organizationAcls",
		Token: account.AccessToken,
		Query: url.Values{"q": {"roleAssignee"}, "state": {"APPROVED"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.AccountMetadata](res), err
	}
	meta := account.Metadata
	meta.Organizations = nil
	for _, e := range res.Data.Elements {
		meta.Organizations = append(meta.Organizations, social.LinkedInOrganization{
			ID:   strings.TrimPrefix(e.Organization, "urn:li:organization:"),
			Role: e.Role,
		})
	}
	return social.OK(meta), nil
}

func (p *Provider) ValidatePost(opts social.PostOptions) error {
	issues := p.CheckPost(opts)
	for i, m := range opts.Media {
		switch m.Type {
		case social.MediaImage, social.MediaGIF:
			if m.Size > maxImageSize {
				issues = append(issues, fmt.Sprintf("image %d exceeds 10MB", i+1))
			}
		case social.MediaVideo:
			if m.Size > maxVideoSize {
				issues = append(issues, fmt.Sprintf("video %d exceeds 200MB", i+1))
			}
			if m.Duration > maxVideoSecs {
				issues = append(issues, fmt.Sprintf("video %d is longer than 10 minutes", i+1))
			}
		}
	}
	if s := opts.Settings.LinkedIn; s != nil {
		switch s.Visibility {
		case "", social.VisibilityPublic, social.VisibilityConnections:
		default:
			issues = append(issues, fmt.Sprintf("visibility must be %s or %s", social.VisibilityPublic, social.VisibilityConnections))
		}
		if s.OrganizationID != "" && s.Visibility == social.VisibilityConnections {
			issues = append(issues, "organization posts must be PUBLIC")
		}
		if s.ArticleURL != "" && len(opts.Media) > 0 {
			issues = append(issues, "an article link cannot be combined with media")
		}
	}
	return social.NewValidationError(social.LinkedIn, issues)
}

func author(account *social.SocialAccount, s *social.LinkedInSettings) string {
	if s != nil && s.OrganizationID != "" {
		return "urn:li:organization:" + s.OrganizationID
	}
	return "urn:li:person:" + account.PlatformID
}

type text struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string `json:"status"`
	Media       string `json:"media,omitempty"`
	OriginalURL string `json:"originalUrl,omitempty"`
	Title       *text  `json:"title,omitempty"`
	Description *text  `json:"description,omitempty"`
}

type shareContent struct {
	ShareCommentary    text       `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcPost struct {
	Author          string `json:"author"`
	LifecycleState  string `json:"lifecycleState"`
	SpecificContent struct {
		ShareContent shareContent `json:"com.linkedin.ugc.ShareContent"`
	} `json:"specificContent"`
	Visibility struct {
		MemberNetworkVisibility string `json:"com.linkedin.ugc.MemberNetworkVisibility"`
	} `json:"visibility"`
}

// CreatePost publishes a UGC post with at most one attachment: an uploaded
// image or video asset, or an article link.
func (p *Provider) CreatePost(ctx context.Context, account *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := p.ValidatePost(opts); err != nil {
		return nil, err
	}
	if res := social.RequireAccount[social.PublishedPost](social.LinkedIn, account); res != nil {
		return res, nil
	}

	settings := opts.Settings.LinkedIn
	owner := author(account, settings)
	visibility := social.VisibilityPublic
	if settings != nil && settings.Visibility != "" {
		visibility = settings.Visibility
	}

	var post ugcPost
	post.Author = owner
	post.LifecycleState = "PUBLISHED"
	post.Visibility.MemberNetworkVisibility = visibility
	content := shareContent{ShareCommentary: text{Text: opts.FullText()}, ShareMediaCategory: "NONE"}

	switch {
	case len(opts.Media) == 1:
		m := opts.Media[0]
		asset := m.ID
		if !strings.HasPrefix(asset, "urn:li:digitalmediaAsset:") {
			limit := int64(maxImageSize)
			if m.Type == social.MediaVideo {
				limit = maxVideoSize
			}
			dl := social.Download(ctx, p.Requester, m.URL, limit)
			if !dl.Success {
				return social.Forward[social.PublishedPost](dl), nil
			}
			upload := dl.Data
			upload.Type = m.Type
			uploaded, err := p.upload(ctx, account, owner, upload)
			if err != nil || !uploaded.Success {
				return social.Forward[social.PublishedPost](uploaded), err
			}
			asset = uploaded.Data.ID
		}
		content.ShareMediaCategory = "IMAGE"
		if m.Type == social.MediaVideo {
			content.ShareMediaCategory = "VIDEO"
		}
		media := ugcMedia{Status: "READY", Media: asset}
		if m.AltText != "" {
			media.Description = &text{Text: m.AltText}
		}
		content.Media = []ugcMedia{media}
	case settings != nil && settings.ArticleURL != "":
		article := ugcMedia{Status: "READY", OriginalURL: settings.ArticleURL}
		if settings.ArticleTitle != "" {
			article.Title = &text{Text: settings.ArticleTitle}
		}
		if settings.ArticleDescription != "" {
			article.Description = &text{Text: settings.ArticleDescription}
		}
		content.ShareMediaCategory = "ARTICLE"
		content.Media = []ugcMedia{article}
	}
	post.SpecificContent.ShareContent = content

	res, err := social.MakeRequest[struct {
		ID string `json:"id"`
	}](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/ugcPosts",
		Token:  account.AccessToken,
		Header: http.Header{restliHeader: {"2.0.0"}},
		JSON:   post,
	})
	if err != nil || !res.Success {
		return social.Forward[social.PublishedPost](res), err
	}
	return social.OK(social.PublishedPost{
		ID:        res.Data.ID,
		URL:       "https://www.linkedin.com/feed/update/" + res.Data.ID,
		CreatedAt: p.now(),
		Status:    social.StatusPublished,
		Text:      content.ShareCommentary.Text,
	}).WithRateLimit(res.RateLimit), nil
}

type registerUpload struct {
	Value struct {
		UploadMechanism struct {
			HTTPRequest struct {
				UploadURL string `json:"uploadUrl"`
			} `json:"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"`
		} `json:"uploadMechanism"`
		Asset string `json:"asset"`
	} `json:"value"`
}

// upload registers an asset for owner and PUTs the bytes to the returned URL.
func (p *Provider) upload(ctx context.Context, account *social.SocialAccount, owner string, upload social.MediaUpload) (*social.APIResponse[social.MediaItem], error) {
	recipe := "urn:li:digitalmediaRecipe:feedshare-image"
	if upload.Type == social.MediaVideo {
		recipe = "urn:li:digitalmediaRecipe:feedshare-video"
	}
	reg, err := social.MakeRequest[registerUpload](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/assets",
		Query:  url.Values{"action": {"registerUpload"}},
		Token:  account.AccessToken,
		JSON: map[string]any{
			"registerUploadRequest": map[string]any{
				"recipes": []string{recipe},
				"owner":   owner,
				"serviceRelationships": []map[string]string{
					{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
				},
			},
		},
	})
	if err != nil || !reg.Success {
		return social.Forward[social.MediaItem](reg), err
	}
	uploadURL := reg.Data.Value.UploadMechanism.HTTPRequest.UploadURL
	if uploadURL == "" || reg.Data.Value.Asset == "" {
		return social.Fail[social.MediaItem](social.CodePlatformError, "registerUpload returned no upload url"), nil
	}

	contentType := upload.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	put, err := social.MakeRequest[struct{}](ctx, p.Requester, social.Request{
		Method:      http.MethodPut,
		URL:         uploadURL,
		Token:       account.AccessToken,
		Body:        upload.Data,
		ContentType: contentType,
	})
	if err != nil || !put.Success {
		return social.Forward[social.MediaItem](put), err
	}
	return social.OK(social.MediaItem{
		Type:     upload.Type,
		ID:       reg.Data.Value.Asset,
		Size:     int64(len(upload.Data)),
		MimeType: upload.ContentType,
		AltText:  upload.AltText,
	}), nil
}

// UploadMedia registers the asset under the member so a later post can
// reference it by URN.
func (p *Provider) UploadMedia(ctx context.Context, account *social.SocialAccount, upload social.MediaUpload) (*social.APIResponse[social.MediaItem], error) {
	if len(upload.Data) == 0 {
		return social.Fail[social.MediaItem](social.CodeValidationFailed, "media upload is empty"), nil
	}
	return p.upload(ctx, account, author(account, nil), upload)
}

func (p *Provider) DeletePost(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[bool], error) {
	res, err := social.MakeRequest[struct{}](ctx, p.Requester, social.Request{
		Method: http.MethodDelete,
		URL:    p.cfg.APIURL + "/v2/ugcPosts/" + url.PathEscape(postID),
		Token:  account.AccessToken,
		Header: http.Header{restliHeader: {"2.0.0"}},
	})
	if err != nil || !res.Success {
		return social.Forward[bool](res), err
	}
	return social.OK(true), nil
}

type shareStatistics struct {
	ImpressionCount        int64 `json:"impressionCount"`
	UniqueImpressionsCount int64 `json:"uniqueImpressionsCount"`
	ClickCount             int64 `json:"clickCount"`
	LikeCount              int64 `json:"likeCount"`
	CommentCount           int64 `json:"commentCount"`
	ShareCount             int64 `json:"shareCount"`
}

// GetAnalytics reads share statistics of the first administered
// organization. Member profiles have no analytics API.
func (p *Provider) GetAnalytics(ctx context.Context, account *social.SocialAccount, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	if len(account.Metadata.Organizations) == 0 {
		return social.NotImplemented[social.Analytics](social.LinkedIn, "analytics without an organization"), nil
	}
	query = query.Normalize(p.now())
	org := "urn:li:organization:" + account.Metadata.Organizations[0].ID

	stats, err := social.MakeRequest[struct {
		Elements []struct {
			TotalShareStatistics shareStatistics `json:"totalShareStatistics"`
		} `json:"elements"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/v2/organizationalEntityShareStatistics",
		Token: account.AccessToken,
		Query: url.Values{
			"q":                                 {"organizationalEntity"},
			"organizationalEntity":              {org},
			"timeIntervals.timeGranularityType": {"DAY"},
			"timeIntervals.timeRange.start":     {strconv.FormatInt(query.Start.UnixMilli(), 10)},
			"timeIntervals.timeRange.end":       {strconv.FormatInt(query.End.UnixMilli(), 10)},
		},
	})
	if err != nil || !stats.Success {
		return social.Forward[social.Analytics](stats), err
	}

	followers, err := social.MakeRequest[struct {
		FirstDegreeSize int64 `json:"firstDegreeSize"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/v2/networkSizes/" + url.PathEscape(org),
		Token: account.AccessToken,
		Query: url.Values{"edgeType": {"CompanyFollowedByMember"}},
	})
	if err != nil || !followers.Success {
		return social.Forward[social.Analytics](followers), err
	}

	out := social.Analytics{
		Platform:  social.LinkedIn,
		AccountID: account.ID,
		Start:     query.Start,
		End:       query.End,
		Followers: followers.Data.FirstDegreeSize,
	}
	for _, e := range stats.Data.Elements {
		s := e.TotalShareStatistics
		out.Impressions += s.ImpressionCount
		out.Reach += s.UniqueImpressionsCount
		out.Engagement += s.ClickCount + s.LikeCount + s.CommentCount + s.ShareCount
	}
	return social.OK(out).WithRateLimit(stats.RateLimit), nil
}

func (p *Provider) GetPostAnalytics(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[social.Engagement], error) {
	res, err := social.MakeRequest[struct {
		LikesSummary struct {
			TotalLikes int64 `json:"totalLikes"`
		} `json:"likesSummary"`
		CommentsSummary struct {
			AggregatedTotalComments int64 `json:"aggregatedTotalComments"`
		} `json:"commentsSummary"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/v2/socialActions/" + url.PathEscape(postID),
		Token: account.AccessToken,
	})
	if err != nil || !res.Success {
		return social.Forward[social.Engagement](res), err
	}
	return social.OK(social.Engagement{
		Likes:    res.Data.LikesSummary.TotalLikes,
		Comments: res.Data.CommentsSummary.AggregatedTotalComments,
	}).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) GetComments(ctx context.Context, account *social.SocialAccount, postID string, opts social.ListOptions) (*social.APIResponse[[]social.Comment], error) {
	count := opts.LimitOr(20, 100)
	start := 0
	if opts.Cursor != "" {
		start, _ = strconv.Atoi(opts.Cursor)
	}
	res, err := social.MakeRequest[struct {
		Elements []struct {
			ID         string `json:"id"`
			CommentURN string `json:"$URN"`
			Actor      string `json:"actor"`
			Message    text   `json:"message"`
			Created    struct {
				Time int64 `json:"time"`
			} `json:"created"`
			ParentComment string `json:"parentComment"`
		} `json:"elements"`
		Paging struct {
			Start int `json:"start"`
			Count int `json:"count"`
			Total int `json:"total"`
		} `json:"paging"`
	}](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/v2/socialActions/" + url.PathEscape(postID) + "/comments",
		Token: account.AccessToken,
		Query: url.Values{"start": {strconv.Itoa(start)}, "count": {strconv.Itoa(count)}},
	})
	if err != nil || !res.Success {
		return social.Forward[[]social.Comment](res), err
	}
	comments := make([]social.Comment, 0, len(res.Data.Elements))
	for _, c := range res.Data.Elements {
		id := c.CommentURN
		if id == "" {
			id = c.ID
		}
		comments = append(comments, social.Comment{
			ID:        id,
			PostID:    postID,
			ParentID:  c.ParentComment,
			AuthorID:  c.Actor,
			Text:      c.Message.Text,
			CreatedAt: time.UnixMilli(c.Created.Time),
		})
	}
	cursor := ""
	if next := start + len(res.Data.Elements); next < res.Data.Paging.Total {
		cursor = strconv.Itoa(next)
	}
	return social.OK(comments).WithRateLimit(res.RateLimit).WithCursor(cursor), nil
}

func (p *Provider) ReplyToComment(ctx context.Context, account *social.SocialAccount, commentID, reply string) (*social.APIResponse[social.Comment], error) {
	if err := social.NewValidationError(social.LinkedIn, social.CheckPost(p.Limits(), social.PostOptions{Text: reply})); err != nil {
		return nil, err
	}
	actor := author(account, nil)
	res, err := social.MakeRequest[struct {
		ID string `json:"id"`
	}](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/v2/socialActions/" + url.PathEscape(commentID) + "/comments",
		Token:  account.AccessToken,
		JSON: map[string]any{
			"actor":         actor,
			"message":       text{Text: reply},
			"parentComment": commentID,
		},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Comment](res), err
	}
	return social.OK(social.Comment{
		ID:        res.Data.ID,
		ParentID:  commentID,
		AuthorID:  actor,
		Text:      reply,
		CreatedAt: p.now(),
	}), nil
}
