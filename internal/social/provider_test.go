package social

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckPostRejectsEmpty(t *testing.T) {
	issues := CheckPost(Limits{MaxTextLength: 10, MaxMediaCount: 1}, PostOptions{Text: "   "})
	assert.Equal(t, []string{"post must contain text or media"}, issues)
}

func TestCheckPostRequiresMedia(t *testing.T) {
	issues := CheckPost(Limits{MaxTextLength: 10, MaxMediaCount: 1, RequiresMedia: true}, PostOptions{Text: "hello"})
	assert.Equal(t, []string{"at least one media item is required"}, issues)
}

func TestCheckPostTextLength(t *testing.T) {
	limits := Limits{MaxTextLength: 5, MaxMediaCount: 1}
	assert.Empty(t, CheckPost(limits, PostOptions{Text: "héllo"}))

	issues := CheckPost(limits, PostOptions{Text: "héllo!"})
	require.Len(t, issues, 1)
	assert.Contains(t, issues[0], "maximum is 5")
}

func TestCheckPostMedia(t *testing.T) {
	limits := Limits{MaxTextLength: 100, MaxMediaCount: 1}
	issues := CheckPost(limits, PostOptions{Media: []MediaItem{
		{Type: MediaImage, URL: "https://cdn/a.png"},
		{Type: "sticker"},
	}})
	assert.Len(t, issues, 3)
}

func TestBaseDefaultsAreNotImplemented(t *testing.T) {
	b := NewBase(LinkedIn, Limits{MaxTextLength: 10}, nil)
	ctx := context.Background()

	res, err := b.GetMediaLibrary(ctx, &SocialAccount{}, ListOptions{})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, CodeNotImplemented, res.Error.Code)

	rl, err := b.GetRateLimit(ctx, &SocialAccount{})
	require.NoError(t, err)
	assert.Equal(t, CodeNotImplemented, rl.Error.Code)
}

func TestBaseValidatePost(t *testing.T) {
	b := NewBase(LinkedIn, Limits{MaxTextLength: 3, MaxMediaCount: 1}, nil)
	assert.NoError(t, b.ValidatePost(PostOptions{Text: "abc"}))

	err := b.ValidatePost(PostOptions{Text: "abcd"})
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, LinkedIn, ve.Platform)
	assert.Len(t, ve.Issues, 1)
	assert.False(t, IsFatal(err))
}

func TestResponseInvariant(t *testing.T) {
	ok := OK("data")
	assert.True(t, ok.Success)
	assert.Nil(t, ok.Error)
	assert.NoError(t, ok.Err())

	fail := Fail[string](CodeHTTP, "boom", "status 400")
	assert.False(t, fail.Success)
	assert.Empty(t, fail.Data)
	assert.EqualError(t, fail.Err(), "HTTP_ERROR: boom")

	fwd := Forward[int](fail)
	assert.False(t, fwd.Success)
	assert.Equal(t, fail.Error, fwd.Error)
	assert.Nil(t, Forward[int, string](nil))
}

func TestToAPIError(t *testing.T) {
	err := NewValidationError(Instagram, []string{"a", "b"})
	apiErr := ToAPIError(err)
	assert.Equal(t, CodeValidationFailed, apiErr.Code)
	assert.Equal(t, []string{"a", "b"}, apiErr.Details)
	assert.Equal(t, CodeValidationFailed, ErrorCode(err))

	assert.Equal(t, CodeRateLimited, ToAPIError(NewRateLimitError(Twitter, 0, "")).Code)
	assert.Equal(t, CodePlatformError, ToAPIError(errors.New("x")).Code)
	assert.Nil(t, NewValidationError(Instagram, nil))
}

func TestFullText(t *testing.T) {
	opts := PostOptions{Text: "Launch day #go", Hashtags: []string{"go", "#release", " "}}
	assert.Equal(t, "Launch day #go\n\n#release", opts.FullText())
	assert.Equal(t, "#a", PostOptions{Hashtags: []string{"a"}}.FullText())
}

func TestWithOverride(t *testing.T) {
	text := "short"
	base := PostOptions{
		Text:     "long text",
		Settings: PlatformSettings{Twitter: &TwitterSettings{ThreadMode: true}},
	}
	got := base.WithOverride(&PostOverride{
		Text:     &text,
		Settings: PlatformSettings{LinkedIn: &LinkedInSettings{Visibility: VisibilityConnections}},
	})
	assert.Equal(t, "short", got.Text)
	assert.True(t, got.Settings.Twitter.ThreadMode)
	assert.Equal(t, VisibilityConnections, got.Settings.LinkedIn.Visibility)
	assert.Equal(t, "long text", base.Text)
	assert.Nil(t, base.Settings.LinkedIn)
}

func TestParsePlatform(t *testing.T) {
	p, err := ParsePlatform(" X ")
	require.NoError(t, err)
	assert.Equal(t, Twitter, p)

	p, err = ParsePlatform("YouTube")
	require.NoError(t, err)
	assert.Equal(t, YouTube, p)

	_, err = ParsePlatform("myspace")
	assert.Error(t, err)
}

func TestTextHelpers(t *testing.T) {
	assert.Equal(t, "hé", Truncate("héllo", 2))
	assert.Equal(t, "abc", Truncate("abc", 5))
	assert.Equal(t, "Title", FirstLine("\n  Title \nbody"))
	assert.Equal(t, 100, RuneLen(strings.Repeat("é", 100)))
	assert.Equal(t, 0.0, Rate(10, 0))
	assert.Equal(t, 0.5, Analytics{Engagement: 5, Reach: 10}.EngagementRate())
}
