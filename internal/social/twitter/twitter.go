package twitter

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
	"golang.org/x/oauth2"
)

const (
	MaxTweetLength = 280

	defaultAPIURL    = "https://api.twitter.com"
	defaultAuthURL   = "https://twitter.com/i/oauth2/authorize"
	defaultTokenURL  = "https://api.twitter.com/2/oauth2/token"
	defaultUploadURL = "https://api.twitter.com/2/media/upload"

	maxImageSize = 5 << 20
	maxGIFSize   = 15 << 20
	maxVideoSize = 512 << 20
	maxVideoSecs = 140
)

// offline.access is what makes the platform hand out a refresh token.
var DefaultScopes = []string{"tweet.read", "tweet.write", "users.read", "offline.access", "media.write"}

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Scopes       []string

	APIURL    string
	AuthURL   string
	TokenURL  string
	UploadURL string

	// PollInterval spaces media processing status checks.
	PollInterval time.Duration
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
	if cfg.AuthURL == "" {
		cfg.AuthURL = defaultAuthURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = defaultTokenURL
	}
	if cfg.UploadURL == "" {
		cfg.UploadURL = defaultUploadURL
	}
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes
	}

	limits := social.Limits{MaxTextLength: MaxTweetLength, MaxMediaCount: 4, SupportsThreads: true}
	return &Provider{
		Base: social.NewBase(social.Twitter, limits, social.NewRequester(social.Twitter, opts...)),
		cfg:  cfg,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		now: time.Now,
	}
}

func (p *Provider) AuthURL(state string) (*social.AuthRequest, error) {
	if p.cfg.ClientID == "" || p.cfg.RedirectURI == "" {
		return nil, fmt.Errorf("twitter client id and redirect uri are required")
	}
	verifier := oauth2.GenerateVerifier()
	return &social.AuthRequest{
		URL:          p.oauth.AuthCodeURL(state, oauth2.S256ChallengeOption(verifier)),
		State:        state,
		CodeVerifier: verifier,
	}, nil
}

func (p *Provider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	if params.CodeVerifier == "" {
		return social.Fail[social.TokenResponse](social.CodeTokenExchange, "missing PKCE code verifier"), nil
	}
	return social.ExchangeOAuth2(ctx, p.Requester, p.oauth, params.Code, oauth2.VerifierOption(params.CodeVerifier))
}

func (p *Provider) RefreshToken(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.TokenResponse], error) {
	return social.RefreshOAuth2(ctx, p.Requester, p.oauth, account.RefreshToken)
}

// Revoke invalidates the access token of account.
func (p *Provider) Revoke(ctx context.Context, account *social.SocialAccount) error {
	basic := base64.StdEncoding.EncodeToString([]byte(p.cfg.ClientID + ":" + p.cfg.ClientSecret))
	res, err := social.MakeRequest[struct {
		Revoked bool `json:"revoked"`
	}](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/2/oauth2/revoke",
		Header: http.Header{"Authorization": {"Basic " + basic}},
		Form: url.Values{
			"token":           {account.AccessToken},
			"token_type_hint": {"access_token"},
			"client_id":       {p.cfg.ClientID},
		},
	})
	if err != nil {
		return err
	}
	return res.Err()
}

type publicMetrics struct {
	FollowersCount  int64 `json:"followers_count"`
	FollowingCount  int64 `json:"following_count"`
	TweetCount      int64 `json:"tweet_count"`
	RetweetCount    int64 `json:"retweet_count"`
	ReplyCount      int64 `json:"reply_count"`
	LikeCount       int64 `json:"like_count"`
	QuoteCount      int64 `json:"quote_count"`
	BookmarkCount   int64 `json:"bookmark_count"`
	ImpressionCount int64 `json:"impression_count"`
}

func (m publicMetrics) engagement() social.Engagement {
	return social.Engagement{
		Likes:       m.LikeCount,
		Comments:    m.ReplyCount,
		Shares:      m.RetweetCount + m.QuoteCount,
		Saves:       m.BookmarkCount,
		Views:       m.ImpressionCount,
		Impressions: m.ImpressionCount,
	}
}

type user struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Username        string        `json:"username"`
	Description     string        `json:"description"`
	ProfileImageURL string        `json:"profile_image_url"`
	Verified        bool          `json:"verified"`
	URL             string        `json:"url"`
	PublicMetrics   publicMetrics `json:"public_metrics"`
}

type tweet struct {
	ID               string        `json:"id"`
	Text             string        `json:"text"`
	AuthorID         string        `json:"author_id"`
	ConversationID   string        `json:"conversation_id"`
	InReplyToUserID  string        `json:"in_reply_to_user_id"`
	CreatedAt        time.Time     `json:"created_at"`
	PublicMetrics    publicMetrics `json:"public_metrics"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type envelope[T any] struct {
	Data     T `json:"data"`
	Includes struct {
		Users []user `json:"users"`
	} `json:"includes"`
	Meta struct {
		ResultCount int    `json:"result_count"`
		NextToken   string `json:"next_token"`
	} `json:"meta"`
}

const tweetFields = "created_at,public_metrics,conversation_id,author_id,in_reply_to_user_id,referenced_tweets"

func (p *Provider) me(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[envelope[user]], error) {
	return social.MakeRequest[envelope[user]](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/2/users/me",
		Token: account.AccessToken,
		Query: url.Values{"user.fields": {"description,profile_image_url,public_metrics,verified,url"}},
	})
}

func (p *Provider) GetProfile(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	if res := social.RequireAccount[social.UserProfile](social.Twitter, account); res != nil {
		return res, nil
	}
	res, err := p.me(ctx, account)
	if err != nil || !res.Success {
		return social.Forward[social.UserProfile](res), err
	}
	u := res.Data.Data
	return social.OK(social.UserProfile{
		ID:          u.ID,
		Username:    u.Username,
		DisplayName: u.Name,
		Bio:         u.Description,
		AvatarURL:   u.ProfileImageURL,
		Followers:   u.PublicMetrics.FollowersCount,
		Following:   u.PublicMetrics.FollowingCount,
		PostCount:   u.PublicMetrics.TweetCount,
		Verified:    u.Verified,
		URL:         "https://x.com/" + u.Username,
	}).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) ValidatePost(opts social.PostOptions) error {
	limits := p.Limits()
	if threadMode(opts) {
		limits.MaxTextLength = 0
	}
	issues := social.CheckPost(limits, opts)

	videos := opts.CountMedia(social.MediaVideo)
	gifs := opts.CountMedia(social.MediaGIF)
	if videos+gifs > 0 && len(opts.Media) > 1 {
		issues = append(issues, "a video or gif must be the only media item in a tweet")
	}
	for i, m := range opts.Media {
		switch {
		case m.Type == social.MediaImage && m.Size > maxImageSize:
			issues = append(issues, fmt.Sprintf("image %d exceeds 5MB", i+1))
		case m.Type == social.MediaGIF && m.Size > maxGIFSize:
			issues = append(issues, fmt.Sprintf("gif %d exceeds 15MB", i+1))
		case m.Type == social.MediaVideo && m.Size > maxVideoSize:
			issues = append(issues, fmt.Sprintf("video %d exceeds 512MB", i+1))
		}
		if m.Type == social.MediaVideo && m.Duration > maxVideoSecs {
			issues = append(issues, fmt.Sprintf("video %d is longer than %d seconds", i+1, maxVideoSecs))
		}
	}
	if s := opts.Settings.Twitter; s != nil {
		switch s.ReplySettings {
		case "", "following", "mentionedUsers", "subscribers":
		default:
			issues = append(issues, fmt.Sprintf("unknown reply setting %q", s.ReplySettings))
		}
	}
	return social.NewValidationError(social.Twitter, issues)
}

func threadMode(opts social.PostOptions) bool {
	return opts.Settings.Twitter != nil && opts.Settings.Twitter.ThreadMode
}

type createTweet struct {
	Text          string      `json:"text"`
	ReplySettings string      `json:"reply_settings,omitempty"`
	QuoteTweetID  string      `json:"quote_tweet_id,omitempty"`
	Media         *tweetMedia `json:"media,omitempty"`
	Reply         *tweetReply `json:"reply,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

func (p *Provider) postTweet(ctx context.Context, account *social.SocialAccount, body createTweet) (*social.APIResponse[envelope[tweet]], error) {
	return social.MakeRequest[envelope[tweet]](ctx, p.Requester, social.Request{
		Method: http.MethodPost,
		URL:    p.cfg.APIURL + "/2/tweets",
		Token:  account.AccessToken,
		JSON:   body,
	})
}

// CreatePost publishes a tweet, or a reply-chained thread when thread mode is
// on and the text does not fit in one tweet. Media goes on the first tweet.
func (p *Provider) CreatePost(ctx context.Context, account *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := p.ValidatePost(opts); err != nil {
		return nil, err
	}
	if res := social.RequireAccount[social.PublishedPost](social.Twitter, account); res != nil {
		return res, nil
	}

	mediaIDs, failed, err := p.mediaIDs(ctx, account, opts.Media)
	if err != nil || failed != nil {
		return social.Forward[social.PublishedPost](failed), err
	}

	text := opts.FullText()
	segments := []string{text}
	if threadMode(opts) && social.RuneLen(text) > MaxTweetLength {
		segments = SplitThread(text, MaxTweetLength)
	}

	settings := opts.Settings.Twitter
	var ids []string
	var rl *social.RateLimitInfo
	for i, seg := range segments {
		body := createTweet{Text: seg}
		if i == 0 {
			if len(mediaIDs) > 0 {
				body.Media = &tweetMedia{MediaIDs: mediaIDs}
			}
			if settings != nil {
				body.ReplySettings = settings.ReplySettings
				body.QuoteTweetID = settings.QuoteTweetID
				if settings.ReplyToID != "" {
					body.Reply = &tweetReply{InReplyToTweetID: settings.ReplyToID}
				}
			}
		} else {
			body.Reply = &tweetReply{InReplyToTweetID: ids[i-1]}
		}

		res, err := p.postTweet(ctx, account, body)
		if err != nil {
			return nil, err
		}
		if !res.Success {
			failed := social.Forward[social.PublishedPost](res)
			if len(ids) > 0 {
				failed.Error.Details = append(failed.Error.Details, "thread stopped after tweets "+strings.Join(ids, ","))
			}
			return failed, nil
		}
		ids = append(ids, res.Data.Data.ID)
		rl = res.RateLimit
	}

	post := social.PublishedPost{
		ID:        ids[0],
		URL:       p.tweetURL(account, ids[0]),
		CreatedAt: p.now(),
		Status:    social.StatusPublished,
		Text:      segments[0],
	}
	if len(ids) > 1 {
		post.ThreadIDs = ids
	}
	return social.OK(post).WithRateLimit(rl), nil
}

func (p *Provider) tweetURL(account *social.SocialAccount, id string) string {
	if account.Username == "" {
		return "https://x.com/i/web/status/" + id
	}
	return "https://x.com/" + account.Username + "/status/" + id
}

func (p *Provider) DeletePost(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[bool], error) {
	res, err := social.MakeRequest[envelope[struct {
		Deleted bool `json:"deleted"`
	}]](ctx, p.Requester, social.Request{
		Method: http.MethodDelete,
		URL:    p.cfg.APIURL + "/2/tweets/" + url.PathEscape(postID),
		Token:  account.AccessToken,
	})
	if err != nil || !res.Success {
		return social.Forward[bool](res), err
	}
	return social.OK(res.Data.Data.Deleted).WithRateLimit(res.RateLimit), nil
}

func (p *Provider) ListPosts(ctx context.Context, account *social.SocialAccount, opts social.ListOptions) (*social.APIResponse[[]social.PublishedPost], error) {
	q := url.Values{
		"max_results":  {strconv.Itoa(opts.LimitOr(10, 100))},
		"tweet.fields": {tweetFields},
	}
	if opts.Cursor != "" {
		q.Set("pagination_token", opts.Cursor)
	}
	res, err := p.timeline(ctx, account, q)
	if err != nil || !res.Success {
		return social.Forward[[]social.PublishedPost](res), err
	}

	posts := make([]social.PublishedPost, 0, len(res.Data.Data))
	for _, t := range res.Data.Data {
		e := t.PublicMetrics.engagement()
		posts = append(posts, social.PublishedPost{
			ID:         t.ID,
			URL:        p.tweetURL(account, t.ID),
			CreatedAt:  t.CreatedAt,
			Status:     social.StatusPublished,
			Text:       t.Text,
			Engagement: &e,
		})
	}
	return social.OK(posts).WithRateLimit(res.RateLimit).WithCursor(res.Data.Meta.NextToken), nil
}

func (p *Provider) timeline(ctx context.Context, account *social.SocialAccount, q url.Values) (*social.APIResponse[envelope[[]tweet]], error) {
	return social.MakeRequest[envelope[[]tweet]](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/2/users/" + url.PathEscape(account.PlatformID) + "/tweets",
		Token: account.AccessToken,
		Query: q,
	})
}

func (p *Provider) GetPostAnalytics(ctx context.Context, account *social.SocialAccount, postID string) (*social.APIResponse[social.Engagement], error) {
	res, err := social.MakeRequest[envelope[tweet]](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/2/tweets/" + url.PathEscape(postID),
		Token: account.AccessToken,
		Query: url.Values{"tweet.fields": {"public_metrics"}},
	})
	if err != nil || !res.Success {
		return social.Forward[social.Engagement](res), err
	}
	return social.OK(res.Data.Data.PublicMetrics.engagement()).WithRateLimit(res.RateLimit), nil
}

// GetAnalytics sums the public metrics of the account's tweets in the period.
// The platform reports no reach, so impressions stand in for it.
func (p *Provider) GetAnalytics(ctx context.Context, account *social.SocialAccount, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	query = query.Normalize(p.now())

	profile, err := p.GetProfile(ctx, account)
	if err != nil || !profile.Success {
		return social.Forward[social.Analytics](profile), err
	}

	out := social.Analytics{
		Platform:  social.Twitter,
		AccountID: account.ID,
		Start:     query.Start,
		End:       query.End,
		Followers: profile.Data.Followers,
	}

	q := url.Values{
		"max_results":  {"100"},
		"tweet.fields": {"public_metrics"},
		"start_time":   {query.Start.UTC().Format(time.RFC3339)},
		"end_time":     {query.End.UTC().Format(time.RFC3339)},
	}
	var rl *social.RateLimitInfo
	for {
		res, err := p.timeline(ctx, account, q)
		if err != nil || !res.Success {
			return social.Forward[social.Analytics](res), err
		}
		rl = res.RateLimit
		for _, t := range res.Data.Data {
			e := t.PublicMetrics.engagement()
			out.Engagement += e.Total()
			out.Impressions += e.Impressions
			out.Views += e.Views
			out.PostCount++
		}
		if res.Data.Meta.NextToken == "" {
			break
		}
		q.Set("pagination_token", res.Data.Meta.NextToken)
	}
	out.Reach = out.Impressions
	return social.OK(out).WithRateLimit(rl), nil
}

// GetComments returns the replies in the conversation started by postID.
func (p *Provider) GetComments(ctx context.Context, account *social.SocialAccount, postID string, opts social.ListOptions) (*social.APIResponse[[]social.Comment], error) {
	q := url.Values{
		"query":        {"conversation_id:" + postID},
		"max_results":  {strconv.Itoa(opts.LimitOr(10, 100))},
		"tweet.fields": {tweetFields},
		"expansions":   {"author_id"},
		"user.fields":  {"username"},
	}
	if opts.Cursor != "" {
		q.Set("next_token", opts.Cursor)
	}
	res, err := social.MakeRequest[envelope[[]tweet]](ctx, p.Requester, social.Request{
		URL:   p.cfg.APIURL + "/2/tweets/search/recent",
		Token: account.AccessToken,
		Query: q,
	})
	if err != nil || !res.Success {
		return social.Forward[[]social.Comment](res), err
	}

	names := make(map[string]string, len(res.Data.Includes.Users))
	for _, u := range res.Data.Includes.Users {
		names[u.ID] = u.Username
	}
	comments := make([]social.Comment, 0, len(res.Data.Data))
	for _, t := range res.Data.Data {
		c := social.Comment{
			ID:         t.ID,
			PostID:     postID,
			AuthorID:   t.AuthorID,
			AuthorName: names[t.AuthorID],
			Text:       t.Text,
			LikeCount:  t.PublicMetrics.LikeCount,
			ReplyCount: t.PublicMetrics.ReplyCount,
			CreatedAt:  t.CreatedAt,
		}
		for _, ref := range t.ReferencedTweets {
			if ref.Type == "replied_to" {
				c.ParentID = ref.ID
			}
		}
		comments = append(comments, c)
	}
	return social.OK(comments).WithRateLimit(res.RateLimit).WithCursor(res.Data.Meta.NextToken), nil
}

func (p *Provider) ReplyToComment(ctx context.Context, account *social.SocialAccount, commentID, text string) (*social.APIResponse[social.Comment], error) {
	if err := social.NewValidationError(social.Twitter, social.CheckPost(p.Limits(), social.PostOptions{Text: text})); err != nil {
		return nil, err
	}
	res, err := p.postTweet(ctx, account, createTweet{Text: text, Reply: &tweetReply{InReplyToTweetID: commentID}})
	if err != nil || !res.Success {
		return social.Forward[social.Comment](res), err
	}
	return social.OK(social.Comment{
		ID:        res.Data.Data.ID,
		ParentID:  commentID,
		AuthorID:  account.PlatformID,
		Text:      text,
		CreatedAt: p.now(),
	}).WithRateLimit(res.RateLimit), nil
}

// GetRateLimit reads the rate limit headers of a cheap authenticated call.
func (p *Provider) GetRateLimit(ctx context.Context, account *social.SocialAccount) (*social.APIResponse[social.RateLimitInfo], error) {
	res, err := p.me(ctx, account)
	if err != nil || !res.Success {
		return social.Forward[social.RateLimitInfo](res), err
	}
	if res.RateLimit == nil {
		return social.Fail[social.RateLimitInfo](social.CodeHTTP, "response carried no rate limit headers"), nil
	}
	return social.OK(*res.RateLimit).WithRateLimit(res.RateLimit), nil
}
