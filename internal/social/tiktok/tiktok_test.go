package tiktok

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

type fakeTikTok struct {
	mu        sync.Mutex
	inits     []map[string]json.RawMessage
	polls     int
	pending   int
	final     string
	options   []string
	tokenForm url.Values
}

func (f *fakeTikTok) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/oauth/token/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		f.mu.Lock()
		f.tokenForm = r.PostForm
		f.mu.Unlock()
		if r.PostForm.Get("refresh_token") == "dead" {
			fmt.Fprint(w, `{"error":"invalid_grant","error_description":"refresh token expired"}`)
			return
		}
		fmt.Fprint(w, `{"access_token":"act.1","expires_in":86400,"open_id":"open-1","refresh_token":"rft.1","refresh_expires_in":31536000,"scope":"user.info.basic,video.publish","token_type":"Bearer"}`)
	})
	mux.HandleFunc("GET /v2/user/info/", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer expired" {
			fmt.Fprint(w, `{"data":{},"error":{"code":"access_token_invalid","message":"The access token is invalid or not found in the request."}}`)
			return
		}
		fmt.Fprint(w, `{"data":{"user":{"open_id":"open-1","display_name":"Dancer","username":"dancer","follower_count":2000,"following_count":5,"video_count":12,"is_verified":true}},"error":{"code":"ok","message":""}}`)
	})
	mux.HandleFunc("POST /v2/post/publish/creator_info/query/", func(w http.ResponseWriter, r *http.Request) {
		opts, _ := json.Marshal(f.options)
		fmt.Fprintf(w, `{"data":{"creator_username":"dancer","privacy_level_options":%s,"comment_disabled":true,"max_video_post_duration_sec":300},"error":{"code":"ok"}}`, opts)
	})
	mux.HandleFunc("POST /v2/post/publish/video/init/", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.inits = append(f.inits, body)
		f.mu.Unlock()
		fmt.Fprint(w, `{"data":{"publish_id":"v_pub_1"},"error":{"code":"ok"}}`)
	})
	mux.HandleFunc("POST /v2/post/publish/status/fetch/", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.polls++
		n := f.polls
		f.mu.Unlock()
		status := f.final
		if n <= f.pending {
			status = "PROCESSING_DOWNLOAD"
		}
		switch status {
		case "PUBLISH_COMPLETE":
			fmt.Fprint(w, `{"data":{"status":"PUBLISH_COMPLETE","publicaly_available_post_id":[7301234567890]},"error":{"code":"ok"}}`)
		case "FAILED":
			fmt.Fprint(w, `{"data":{"status":"FAILED","fail_reason":"file_format_check_failed"},"error":{"code":"ok"}}`)
		default:
			fmt.Fprintf(w, `{"data":{"status":%q},"error":{"code":"ok"}}`, status)
		}
	})
	mux.HandleFunc("POST /v2/video/list/", func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Query().Get("fields"), "view_count")
		now := time.Now()
		fmt.Fprintf(w, `{"data":{"videos":[
			{"id":"v1","title":"one","create_time":%d,"like_count":10,"comment_count":2,"share_count":1,"view_count":500},
			{"id":"v2","title":"two","create_time":%d,"like_count":5,"comment_count":1,"share_count":0,"view_count":300},
			{"id":"v3","title":"old","create_time":%d,"like_count":99,"view_count":9999}
		],"cursor":1700,"has_more":true},"error":{"code":"ok"}}`,
			now.Add(-time.Hour).Unix(), now.Add(-48*time.Hour).Unix(), now.AddDate(0, 0, -60).Unix())
	})
	mux.HandleFunc("POST /v2/oauth/revoke/", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "act.1", r.PostForm.Get("token"))
		w.Write([]byte(`{}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestProvider(t *testing.T, f *fakeTikTok) *Provider {
	if f.final == "" {
		f.final = "PUBLISH_COMPLETE"
	}
	if f.options == nil {
		f.options = PrivacyLevels
	}
	srv := f.server(t)
	return New(Config{
		ClientKey:    "ck",
		ClientSecret: "cs",
		RedirectURI:  "https://app.example/cb",
		APIURL:       srv.URL,
		PollInterval: time.Millisecond,
		PollAttempts: 4,
	}, social.WithBaseDelay(time.Millisecond))
}

func account() *social.SocialAccount {
	return &social.SocialAccount{ID: "a1", Platform: social.TikTok, PlatformID: "open-1", AccessToken: "act.1", RefreshToken: "rft.1"}
}

func videoPost() social.PostOptions {
	return social.PostOptions{
		Text:  "dance",
		Media: []social.MediaItem{{Type: social.MediaVideo, URL: "https://cdn.example/v.mp4", Duration: 30}},
	}
}

func TestAuthURL(t *testing.T) {
	p := New(Config{ClientKey: "ck", RedirectURI: "https://app.example/cb"})
	req, err := p.AuthURL("st")
	require.NoError(t, err)
	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "ck", u.Query().Get("client_key"))
	assert.Equal(t, "code", u.Query().Get("response_type"))
	assert.Contains(t, u.Query().Get("scope"), "video.publish")
	assert.Empty(t, u.Query().Get("client_id"))
}

func TestValidatePost(t *testing.T) {
	p := New(Config{})
	var ve *social.ValidationError

	assert.NoError(t, p.ValidatePost(videoPost()))

	require.True(t, errors.As(p.ValidatePost(social.PostOptions{Text: "no video"}), &ve))
	assert.Contains(t, ve.Issues, "at least one media item is required")

	img := social.PostOptions{Media: []social.MediaItem{{Type: social.MediaImage, URL: "https://cdn/a.jpg"}}}
	assert.Error(t, p.ValidatePost(img))

	exact := videoPost()
	exact.Text = strings.Repeat("a", MaxTitleLength)
	assert.NoError(t, p.ValidatePost(exact))

	long := videoPost()
	long.Text = strings.Repeat("a", MaxTitleLength+1)
	require.True(t, errors.As(p.ValidatePost(long), &ve))
	assert.Contains(t, ve.Issues, "text is 2201 characters, maximum is 2200")

	short := videoPost()
	short.Media[0].Duration = 2
	assert.Error(t, p.ValidatePost(short))

	bad := videoPost()
	bad.Settings.TikTok = &social.TikTokSettings{PrivacyLevel: "EVERYONE"}
	require.True(t, errors.As(p.ValidatePost(bad), &ve))
	assert.Contains(t, ve.Issues[0], "privacy level must be one of")
}

func TestExchangeAndRefresh(t *testing.T) {
	f := &fakeTikTok{}
	p := newTestProvider(t, f)
	ctx := context.Background()

	res, err := p.ExchangeCode(ctx, social.ExchangeParams{Code: "c0de"})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "act.1", res.Data.AccessToken)
	assert.Equal(t, "rft.1", res.Data.RefreshToken)
	assert.Equal(t, "open-1", res.Data.PlatformID)
	assert.Equal(t, []string{"user.info.basic", "video.publish"}, res.Data.Scopes)
	require.NotNil(t, res.Data.ExpiresAt)
	assert.Equal(t, "ck", f.tokenForm.Get("client_key"))
	assert.Equal(t, "authorization_code", f.tokenForm.Get("grant_type"))

	res, err = p.RefreshToken(ctx, account())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "refresh_token", f.tokenForm.Get("grant_type"))

	dead := account()
	dead.RefreshToken = "dead"
	_, err = p.RefreshToken(ctx, dead)
	var ae *social.AuthenticationError
	require.True(t, errors.As(err, &ae))
}

func TestGetProfile(t *testing.T) {
	p := newTestProvider(t, &fakeTikTok{})

	res, err := p.GetProfile(context.Background(), account())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, "dancer", res.Data.Username)
	assert.Equal(t, int64(2000), res.Data.Followers)
	assert.True(t, res.Data.Verified)

	expired := account()
	expired.AccessToken = "expired"
	_, err = p.GetProfile(context.Background(), expired)
	assert.True(t, social.IsFatal(err))
}

func TestCreatePostPublishes(t *testing.T) {
	f := &fakeTikTok{pending: 2}
	p := newTestProvider(t, f)

	opts := videoPost()
	opts.Settings.TikTok = &social.TikTokSettings{PrivacyLevel: social.TikTokFollowers, DisableDuet: true, VideoCoverTimestampMs: 1500}
	res, err := p.CreatePost(context.Background(), account(), opts)
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, social.StatusPublished, res.Data.Status)
	assert.Equal(t, "7301234567890", res.Data.ID)
	assert.Equal(t, "https://www.tiktok.com/@dancer/video/7301234567890", res.Data.URL)
	assert.Equal(t, 3, f.polls)

	require.Len(t, f.inits, 1)
	var info postInfo
	require.NoError(t, json.Unmarshal(f.inits[0]["post_info"], &info))
	assert.Equal(t, social.TikTokFollowers, info.PrivacyLevel)
	assert.True(t, info.DisableDuet)
	assert.True(t, info.DisableComment, "creator has comments disabled")
	assert.Equal(t, 1500, info.VideoCoverTimestampMs)
	var src sourceInfo
	require.NoError(t, json.Unmarshal(f.inits[0]["source_info"], &src))
	assert.Equal(t, sourceInfo{Source: "PULL_FROM_URL", VideoURL: "https://cdn.example/v.mp4"}, src)
}

func TestCreatePostStillProcessingIsPending(t *testing.T) {
	f := &fakeTikTok{pending: 100}
	p := newTestProvider(t, f)

	res, err := p.CreatePost(context.Background(), account(), videoPost())
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, social.StatusPending, res.Data.Status)
	assert.Equal(t, "v_pub_1", res.Data.ID)
	assert.Equal(t, 4, f.polls)
}

func TestCreatePostFailures(t *testing.T) {
	f := &fakeTikTok{final: "FAILED"}
	p := newTestProvider(t, f)
	res, err := p.CreatePost(context.Background(), account(), videoPost())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, social.CodeProcessingFailed, res.Error.Code)
	assert.Equal(t, "file_format_check_failed", res.Error.Message)

	f = &fakeTikTok{options: []string{social.TikTokSelfOnly}}
	p = newTestProvider(t, f)
	res, err = p.CreatePost(context.Background(), account(), videoPost())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, social.CodeValidationFailed, res.Error.Code)
	assert.Empty(t, f.inits)

	long := videoPost()
	long.Media[0].Duration = 400
	res, err = p.CreatePost(context.Background(), account(), long)
	require.NoError(t, err)
	assert.False(t, res.Success)
}

func TestListPostsAndAnalytics(t *testing.T) {
	p := newTestProvider(t, &fakeTikTok{})
	ctx := context.Background()

	list, err := p.ListPosts(ctx, account(), social.ListOptions{Limit: 3})
	require.NoError(t, err)
	require.True(t, list.Success)
	require.Len(t, list.Data, 3)
	assert.Equal(t, "1700", list.NextCursor)
	assert.Equal(t, int64(13), list.Data[0].Engagement.Total())

	res, err := p.GetAnalytics(ctx, account(), social.AnalyticsQuery{})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, int64(2000), res.Data.Followers)
	assert.Equal(t, int64(2), res.Data.PostCount)
	assert.Equal(t, int64(19), res.Data.Engagement)
	assert.Equal(t, int64(800), res.Data.Views)
}

func TestRevoke(t *testing.T) {
	p := newTestProvider(t, &fakeTikTok{})
	assert.NoError(t, p.Revoke(context.Background(), account()))
}

func TestCreatePostCanceledWhilePolling(t *testing.T) {
	f := &fakeTikTok{pending: 100}
	p := newTestProvider(t, f)
	p.cfg.PollInterval = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	res, err := p.CreatePost(ctx, account(), videoPost())
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, social.CodeNetwork, res.Error.Code)
	assert.Contains(t, res.Error.Message, "deadline exceeded")
	assert.Equal(t, 1, f.polls)
}
