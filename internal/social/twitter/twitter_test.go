package twitter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	mu     sync.Mutex
	tweets []createTweet
	status int
}

func (f *fakeAPI) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /2/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "verifier-123", r.PostForm.Get("code_verifier"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"user-token","refresh_token":"refresh","token_type":"bearer","expires_in":7200,"scope":"tweet.read tweet.write offline.access"}`)
	})
	mux.HandleFunc("GET /2/users/me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer user-token", r.Header.Get("Authorization"))
		w.Header().Set("x-rate-limit-limit", "75")
		w.Header().Set("x-rate-limit-remaining", "74")
		fmt.Fprint(w, `{"data":{"id":"u1","name":"Post Flow","username":"postflow","verified":true,"public_metrics":{"followers_count":12,"following_count":3,"tweet_count":99}}}`)
	})
	mux.HandleFunc("POST /2/tweets", func(w http.ResponseWriter, r *http.Request) {
		if f.status != 0 {
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(f.status)
			return
		}
		var body createTweet
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.tweets = append(f.tweets, body)
		id := len(f.tweets)
		f.mu.Unlock()
		fmt.Fprintf(w, `{"data":{"id":"t%d","text":%q}}`, id, body.Text)
	})
	mux.HandleFunc("POST /2/media/upload", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "tweet_image", r.FormValue("media_category"))
		file, _, err := r.FormFile("media")
		require.NoError(t, err)
		data, _ := io.ReadAll(file)
		assert.Equal(t, "PNGDATA", string(data))
		fmt.Fprint(w, `{"data":{"id":"m1","media_key":"3_m1"}}`)
	})
	mux.HandleFunc("GET /cdn/cat.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		fmt.Fprint(w, "PNGDATA")
	})
	return mux
}

func newTestProvider(t *testing.T, api *fakeAPI) (*Provider, *httptest.Server) {
	srv := httptest.NewServer(api.handler(t))
	t.Cleanup(srv.Close)
	p := New(Config{
		ClientID:     "client",
		ClientSecret: "secret",
		RedirectURI:  "https://app.example/auth/twitter/callback",
		APIURL:       srv.URL,
		TokenURL:     srv.URL + "/2/oauth2/token",
		UploadURL:    srv.URL + "/2/media/upload",
	}, social.WithBaseDelay(time.Millisecond))
	return p, srv
}

func account() *social.SocialAccount {
	return &social.SocialAccount{ID: "a1", Platform: social.Twitter, PlatformID: "u1", Username: "postflow", AccessToken: "user-token"}
}

func words(n int) string {
	var b strings.Builder
	for b.Len() < n {
		b.WriteString("lorem ipsum ")
	}
	return strings.TrimSpace(b.String()[:n])
}

func TestAuthURLUsesPKCE(t *testing.T) {
	p := New(Config{ClientID: "client", RedirectURI: "https://app.example/cb"})
	req, err := p.AuthURL("state-1")
	require.NoError(t, err)
	require.NotEmpty(t, req.CodeVerifier)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	q := u.Query()
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.NotEmpty(t, q.Get("code_challenge"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Contains(t, q.Get("scope"), "offline.access")
	assert.Equal(t, "twitter.com", u.Host)
}

func TestValidatePost(t *testing.T) {
	p := New(Config{})

	var ve *social.ValidationError
	require.True(t, errors.As(p.ValidatePost(social.PostOptions{}), &ve))

	assert.NoError(t, p.ValidatePost(social.PostOptions{Text: strings.Repeat("a", 280)}))
	assert.Error(t, p.ValidatePost(social.PostOptions{Text: strings.Repeat("a", 281)}))

	thread := social.PostOptions{
		Text:     strings.Repeat("a", 600),
		Settings: social.PlatformSettings{Twitter: &social.TwitterSettings{ThreadMode: true}},
	}
	assert.NoError(t, p.ValidatePost(thread))

	mixed := social.PostOptions{Text: "hi", Media: []social.MediaItem{
		{Type: social.MediaVideo, URL: "https://cdn/v.mp4"},
		{Type: social.MediaImage, URL: "https://cdn/i.png"},
	}}
	require.True(t, errors.As(p.ValidatePost(mixed), &ve))
	assert.Contains(t, ve.Issues, "a video or gif must be the only media item in a tweet")

	long := social.PostOptions{Media: []social.MediaItem{{Type: social.MediaVideo, URL: "https://cdn/v.mp4", Duration: 141}}}
	assert.Error(t, p.ValidatePost(long))
}

func TestSplitThread(t *testing.T) {
	text := words(600)
	segments := SplitThread(text, MaxTweetLength)
	require.GreaterOrEqual(t, len(segments), 3)
	for i, s := range segments {
		assert.LessOrEqual(t, social.RuneLen(s), MaxTweetLength)
		if i < len(segments)-1 {
			assert.GreaterOrEqual(t, social.RuneLen(s), MaxTweetLength*4/5-1)
		}
	}
	assert.Equal(t, strings.Fields(text), strings.Fields(strings.Join(segments, " ")))

	hard := SplitThread(strings.Repeat("x", 600), MaxTweetLength)
	assert.Equal(t, []int{280, 280, 40}, []int{len(hard[0]), len(hard[1]), len(hard[2])})
}

func TestCreatePostThread(t *testing.T) {
	api := &fakeAPI{}
	p, _ := newTestProvider(t, api)

	res, err := p.CreatePost(context.Background(), account(), social.PostOptions{
		Text:     words(600),
		Settings: social.PlatformSettings{Twitter: &social.TwitterSettings{ThreadMode: true}},
	})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)

	require.GreaterOrEqual(t, len(api.tweets), 3)
	assert.Nil(t, api.tweets[0].Reply)
	for i := 1; i < len(api.tweets); i++ {
		require.NotNil(t, api.tweets[i].Reply)
		assert.Equal(t, fmt.Sprintf("t%d", i), api.tweets[i].Reply.InReplyToTweetID)
		assert.LessOrEqual(t, social.RuneLen(api.tweets[i].Text), MaxTweetLength)
	}
	assert.Equal(t, "t1", res.Data.ID)
	assert.Len(t, res.Data.ThreadIDs, len(api.tweets))
	assert.Equal(t, "https://x.com/postflow/status/t1", res.Data.URL)
}

func TestCreatePostUploadsMedia(t *testing.T) {
	api := &fakeAPI{}
	p, srv := newTestProvider(t, api)

	res, err := p.CreatePost(context.Background(), account(), social.PostOptions{
		Text:  "look",
		Media: []social.MediaItem{{Type: social.MediaImage, URL: srv.URL + "/cdn/cat.png"}},
	})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	require.Len(t, api.tweets, 1)
	require.NotNil(t, api.tweets[0].Media)
	assert.Equal(t, []string{"m1"}, api.tweets[0].Media.MediaIDs)
}

func TestCreatePostRateLimited(t *testing.T) {
	api := &fakeAPI{status: http.StatusTooManyRequests}
	p, _ := newTestProvider(t, api)

	res, err := p.CreatePost(context.Background(), account(), social.PostOptions{Text: "hello"})
	assert.Nil(t, res)
	var rl *social.RateLimitError
	require.True(t, errors.As(err, &rl))
	assert.Equal(t, time.Minute, rl.RetryAfter)
}

func TestExchangeThenProfile(t *testing.T) {
	p, _ := newTestProvider(t, &fakeAPI{})
	ctx := context.Background()

	tok, err := p.ExchangeCode(ctx, social.ExchangeParams{Code: "code", CodeVerifier: "verifier-123"})
	require.NoError(t, err)
	require.True(t, tok.Success, "%+v", tok.Error)
	assert.Equal(t, "refresh", tok.Data.RefreshToken)
	require.NotNil(t, tok.Data.ExpiresAt)
	assert.Contains(t, tok.Data.Scopes, "offline.access")

	acc := &social.SocialAccount{Platform: social.Twitter, PlatformID: "u1"}
	acc.ApplyToken(tok.Data)

	profile, err := p.GetProfile(ctx, acc)
	require.NoError(t, err)
	require.True(t, profile.Success)
	assert.Equal(t, acc.PlatformID, profile.Data.ID)
	assert.Equal(t, int64(12), profile.Data.Followers)

	rl, err := p.GetRateLimit(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, 74, rl.Data.Remaining)
}

func TestExchangeRequiresVerifier(t *testing.T) {
	p := New(Config{})
	res, err := p.ExchangeCode(context.Background(), social.ExchangeParams{Code: "c"})
	require.NoError(t, err)
	assert.Equal(t, social.CodeTokenExchange, res.Error.Code)
}
