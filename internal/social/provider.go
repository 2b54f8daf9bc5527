package social

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Provider is the capability surface every platform implements. Operations
// that reach the network return a failed APIResponse for ordinary failures and
// reserve the error result for validation, authentication and rate limiting.
type Provider interface {
	Platform() Platform
	Limits() Limits

	AuthURL(state string) (*AuthRequest, error)
	ExchangeCode(ctx context.Context, params ExchangeParams) (*APIResponse[TokenResponse], error)
	RefreshToken(ctx context.Context, account *SocialAccount) (*APIResponse[TokenResponse], error)
	GetProfile(ctx context.Context, account *SocialAccount) (*APIResponse[UserProfile], error)

	CreatePost(ctx context.Context, account *SocialAccount, opts PostOptions) (*APIResponse[PublishedPost], error)
	UpdatePost(ctx context.Context, account *SocialAccount, postID string, opts PostOptions) (*APIResponse[PublishedPost], error)
	DeletePost(ctx context.Context, account *SocialAccount, postID string) (*APIResponse[bool], error)
	ListPosts(ctx context.Context, account *SocialAccount, opts ListOptions) (*APIResponse[[]PublishedPost], error)

	UploadMedia(ctx context.Context, account *SocialAccount, upload MediaUpload) (*APIResponse[MediaItem], error)
	GetMediaLibrary(ctx context.Context, account *SocialAccount, opts ListOptions) (*APIResponse[[]MediaItem], error)

	GetAnalytics(ctx context.Context, account *SocialAccount, query AnalyticsQuery) (*APIResponse[Analytics], error)
	GetPostAnalytics(ctx context.Context, account *SocialAccount, postID string) (*APIResponse[Engagement], error)

	GetComments(ctx context.Context, account *SocialAccount, postID string, opts ListOptions) (*APIResponse[[]Comment], error)
	ReplyToComment(ctx context.Context, account *SocialAccount, commentID, text string) (*APIResponse[Comment], error)

	GetRateLimit(ctx context.Context, account *SocialAccount) (*APIResponse[RateLimitInfo], error)

	// ValidatePost returns a *ValidationError listing every problem, or nil.
	ValidatePost(opts PostOptions) error
}

// Revoker is implemented by providers whose platform can revoke a token.
type Revoker interface {
	Revoke(ctx context.Context, account *SocialAccount) error
}

// MetadataResolver is implemented by providers that collect extra account
// data after linking, such as Facebook pages or LinkedIn organizations.
type MetadataResolver interface {
	ResolveMetadata(ctx context.Context, account *SocialAccount) (*APIResponse[AccountMetadata], error)
}

// NativeScheduler is implemented by providers that schedule some posts on
// the platform but not others. It takes precedence over
// Limits.NativeSchedule.
type NativeScheduler interface {
	CanSchedule(opts PostOptions) bool
}

// Limits describes the generic content rules of a platform. A zero
// MaxTextLength disables the length check.
type Limits struct {
	MaxTextLength   int  `json:"max_text_length"`
	MaxMediaCount   int  `json:"max_media_count"`
	RequiresMedia   bool `json:"requires_media"`
	NativeSchedule  bool `json:"native_schedule"`
	SupportsThreads bool `json:"supports_threads"`
}

// Base is embedded by every provider. It supplies the shared Requester, the
// generic validation rules and a NOT_IMPLEMENTED answer for every optional
// operation.
type Base struct {
	platform  Platform
	limits    Limits
	Requester *Requester
}

func NewBase(platform Platform, limits Limits, requester *Requester) Base {
	if requester == nil {
		requester = NewRequester(platform)
	}
	return Base{platform: platform, limits: limits, Requester: requester}
}

func (b *Base) Platform() Platform { return b.platform }

func (b *Base) Limits() Limits { return b.limits }

// CheckPost runs the generic rules against the base limits.
func (b *Base) CheckPost(opts PostOptions) []string {
	return CheckPost(b.limits, opts)
}

func (b *Base) ValidatePost(opts PostOptions) error {
	return NewValidationError(b.platform, b.CheckPost(opts))
}

// CheckPost returns the generic problems of opts under limits.
func CheckPost(limits Limits, opts PostOptions) []string {
	var issues []string
	text := opts.FullText()
	hasText := strings.TrimSpace(text) != ""

	switch {
	case limits.RequiresMedia && len(opts.Media) == 0:
		issues = append(issues, "at least one media item is required")
	case !hasText && len(opts.Media) == 0:
		issues = append(issues, "post must contain text or media")
	}

	if limits.MaxTextLength > 0 {
		if n := utf8.RuneCountInString(text); n > limits.MaxTextLength {
			issues = append(issues, fmt.Sprintf("text is %d characters, maximum is %d", n, limits.MaxTextLength))
		}
	}
	if limits.MaxMediaCount > 0 && len(opts.Media) > limits.MaxMediaCount {
		issues = append(issues, fmt.Sprintf("%d media items attached, maximum is %d", len(opts.Media), limits.MaxMediaCount))
	}
	for i, m := range opts.Media {
		if m.URL == "" && m.ID == "" {
			issues = append(issues, fmt.Sprintf("media item %d has neither url nor id", i+1))
		}
		switch m.Type {
		case MediaImage, MediaVideo, MediaGIF:
		default:
			issues = append(issues, fmt.Sprintf("media item %d has unknown type %q", i+1, m.Type))
		}
	}
	return issues
}

func (b *Base) RefreshToken(ctx context.Context, account *SocialAccount) (*APIResponse[TokenResponse], error) {
	return NotImplemented[TokenResponse](b.platform, "refresh token"), nil
}

func (b *Base) UpdatePost(ctx context.Context, account *SocialAccount, postID string, opts PostOptions) (*APIResponse[PublishedPost], error) {
	return NotImplemented[PublishedPost](b.platform, "update post"), nil
}

func (b *Base) DeletePost(ctx context.Context, account *SocialAccount, postID string) (*APIResponse[bool], error) {
	return NotImplemented[bool](b.platform, "delete post"), nil
}

func (b *Base) ListPosts(ctx context.Context, account *SocialAccount, opts ListOptions) (*APIResponse[[]PublishedPost], error) {
	return NotImplemented[[]PublishedPost](b.platform, "list posts"), nil
}

func (b *Base) UploadMedia(ctx context.Context, account *SocialAccount, upload MediaUpload) (*APIResponse[MediaItem], error) {
	return NotImplemented[MediaItem](b.platform, "upload media"), nil
}

func (b *Base) GetMediaLibrary(ctx context.Context, account *SocialAccount, opts ListOptions) (*APIResponse[[]MediaItem], error) {
	return NotImplemented[[]MediaItem](b.platform, "media library"), nil
}

func (b *Base) GetAnalytics(ctx context.Context, account *SocialAccount, query AnalyticsQuery) (*APIResponse[Analytics], error) {
	return NotImplemented[Analytics](b.platform, "analytics"), nil
}

func (b *Base) GetPostAnalytics(ctx context.Context, account *SocialAccount, postID string) (*APIResponse[Engagement], error) {
	return NotImplemented[Engagement](b.platform, "post analytics"), nil
}

func (b *Base) GetComments(ctx context.Context, account *SocialAccount, postID string, opts ListOptions) (*APIResponse[[]Comment], error) {
	return NotImplemented[[]Comment](b.platform, "comments"), nil
}

func (b *Base) ReplyToComment(ctx context.Context, account *SocialAccount, commentID, text string) (*APIResponse[Comment], error) {
	return NotImplemented[Comment](b.platform, "reply to comment"), nil
}

func (b *Base) GetRateLimit(ctx context.Context, account *SocialAccount) (*APIResponse[RateLimitInfo], error) {
	return NotImplemented[RateLimitInfo](b.platform, "rate limit"), nil
}

// RequireAccount rejects a nil or disconnected account before any request.
func RequireAccount[T any](platform Platform, account *SocialAccount) *APIResponse[T] {
	if account == nil || account.AccessToken == "" {
		return Fail[T](CodeAuthFailed, fmt.Sprintf("no %s access token", platform))
	}
	return nil
}
