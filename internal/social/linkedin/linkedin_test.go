package linkedin

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

type fakeLinkedIn struct {
	mu       sync.Mutex
	posts    []ugcPost
	uploads  [][]byte
	recipes  []string
	deleted  []string
	srv      *httptest.Server
	statsReq url.Values
}

func (f *fakeLinkedIn) start(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v2/userinfo", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		fmt.Fprint(w, `{"sub":"abc123","name":"Ada Lovelace","given_name":"Ada","family_name":"Lovelace","picture":"https://media/ada.jpg","email":"ada@example.com"}`)
	})
	mux.HandleFunc("GET /v2/organizationAcls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "roleAssignee", r.URL.Query().Get("q"))
		fmt.Fprint(w, `{"elements":[{"organization":"urn:li:organization:777","role":"ADMINISTRATOR","state":"APPROVED"}]}`)
	})
	mux.HandleFunc("GET /cdn/photo.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		w.Write([]byte("jpeg-bytes"))
	})
	mux.HandleFunc("POST /v2/assets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "registerUpload", r.URL.Query().Get("action"))
		var body struct {
			RegisterUploadRequest struct {
				Recipes []string `json:"recipes"`
				Owner   string   `json:"owner"`
			} `json:"registerUploadRequest"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.mu.Lock()
		f.recipes = append(f.recipes, body.RegisterUploadRequest.Recipes...)
		f.mu.Unlock()
		fmt.Fprintf(w, `{"value":{"uploadMechanism":{"com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest":{"uploadUrl":"%s/upload/1"}},"asset":"urn:li:digitalmediaAsset:D1"}}`, f.srv.URL)
	})
	mux.HandleFunc("PUT /upload/1", func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		f.mu.Lock()
		f.uploads = append(f.uploads, data)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /v2/ugcPosts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2.0.0", r.Header.Get(restliHeader))
		var post ugcPost
		require.NoError(t, json.NewDecoder(r.Body).Decode(&post))
		f.mu.Lock()
		f.posts = append(f.posts, post)
		f.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"id":"urn:li:share:6900"}`)
	})
	mux.HandleFunc("DELETE /v2/ugcPosts/{urn}", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.deleted = append(f.deleted, r.PathValue("urn"))
		f.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /v2/organizationalEntityShareStatistics", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.statsReq = r.URL.Query()
		f.mu.Unlock()
		fmt.Fprint(w, `{"elements":[{"totalShareStatistics":{"impressionCount":1000,"uniqueImpressionsCount":400,"clickCount":20,"likeCount":15,"commentCount":3,"shareCount":2}}]}`)
	})
	mux.HandleFunc("GET /v2/networkSizes/{urn}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "urn:li:organization:777", r.PathValue("urn"))
		fmt.Fprint(w, `{"firstDegreeSize":1200}`)
	})
	mux.HandleFunc("GET /v2/socialActions/{urn}/comments", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("count"))
		fmt.Fprint(w, `{"elements":[{"$URN":"urn:li:comment:(urn:li:share:6900,1)","actor":"urn:li:person:x","message":{"text":"great"},"created":{"time":1700000000000}},{"$URN":"urn:li:comment:(urn:li:share:6900,2)","actor":"urn:li:person:y","message":{"text":"thanks"},"created":{"time":1700000001000}}],"paging":{"start":0,"count":2,"total":5}}`)
	})
	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
}

func newTestProvider(t *testing.T) (*Provider, *fakeLinkedIn) {
	f := &fakeLinkedIn{}
	f.start(t)
	p := New(Config{ClientID: "cid", RedirectURI: "https://app.example/cb", APIURL: f.srv.URL}, social.WithBaseDelay(time.Millisecond))
	return p, f
}

func account() *social.SocialAccount {
	return &social.SocialAccount{ID: "a1", Platform: social.LinkedIn, PlatformID: "abc123", AccessToken: "tok"}
}

func TestAuthURL(t *testing.T) {
	p := New(Config{ClientID: "cid", RedirectURI: "https://app.example/cb"})
	req, err := p.AuthURL("st")
	require.NoError(t, err)

	u, err := url.Parse(req.URL)
	require.NoError(t, err)
	assert.Equal(t, "www.linkedin.com", u.Host)
	assert.Equal(t, "st", u.Query().Get("state"))
	assert.Contains(t, u.Query().Get("scope"), "w_member_social")
	assert.Empty(t, req.CodeVerifier)

	_, err = New(Config{}).AuthURL("st")
	assert.Error(t, err)
}

func TestValidatePost(t *testing.T) {
	p := New(Config{})
	var ve *social.ValidationError

	assert.NoError(t, p.ValidatePost(social.PostOptions{Text: strings.Repeat("a", MaxTextLength)}))
	assert.Error(t, p.ValidatePost(social.PostOptions{Text: strings.Repeat("a", MaxTextLength+1)}))

	two := []social.MediaItem{{Type: social.MediaImage, URL: "u1"}, {Type: social.MediaImage, URL: "u2"}}
	assert.Error(t, p.ValidatePost(social.PostOptions{Text: "x", Media: two}))

	long := social.MediaItem{Type: social.MediaVideo, URL: "v", Duration: 601}
	require.True(t, errors.As(p.ValidatePost(social.PostOptions{Media: []social.MediaItem{long}}), &ve))
	assert.Equal(t, []string{"video 1 is longer than 10 minutes"}, ve.Issues)

	bad := social.PostOptions{Text: "x", Settings: social.PlatformSettings{LinkedIn: &social.LinkedInSettings{Visibility: "LOGGED_IN"}}}
	assert.Error(t, p.ValidatePost(bad))

	org := social.PostOptions{Text: "x", Settings: social.PlatformSettings{LinkedIn: &social.LinkedInSettings{OrganizationID: "777", Visibility: social.VisibilityConnections}}}
	require.True(t, errors.As(p.ValidatePost(org), &ve))
	assert.Contains(t, ve.Issues, "organization posts must be PUBLIC")
}

func TestProfileAndMetadata(t *testing.T) {
	p, _ := newTestProvider(t)
	ctx := context.Background()

	prof, err := p.GetProfile(ctx, account())
	require.NoError(t, err)
	require.True(t, prof.Success)
	assert.Equal(t, "abc123", prof.Data.ID)
	assert.Equal(t, "Ada Lovelace", prof.Data.DisplayName)
	assert.Equal(t, "ada@example.com", prof.Data.Username)

	meta, err := p.ResolveMetadata(ctx, account())
	require.NoError(t, err)
	require.True(t, meta.Success)
	assert.Equal(t, []social.LinkedInOrganization{{ID: "777", Role: "ADMINISTRATOR"}}, meta.Data.Organizations)
}

func TestCreateTextPost(t *testing.T) {
	p, f := newTestProvider(t)

	res, err := p.CreatePost(context.Background(), account(), social.PostOptions{Text: "Hiring", Hashtags: []string{"jobs"}})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "urn:li:share:6900", res.Data.ID)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:6900", res.Data.URL)
	assert.Equal(t, social.StatusPublished, res.Data.Status)

	require.Len(t, f.posts, 1)
	post := f.posts[0]
	assert.Equal(t, "urn:li:person:abc123", post.Author)
	assert.Equal(t, "PUBLIC", post.Visibility.MemberNetworkVisibility)
	assert.Equal(t, "NONE", post.SpecificContent.ShareContent.ShareMediaCategory)
	assert.Equal(t, "Hiring\n\n#jobs", post.SpecificContent.ShareContent.ShareCommentary.Text)
}

func TestCreateImagePostUploadsAsset(t *testing.T) {
	p, f := newTestProvider(t)

	res, err := p.CreatePost(context.Background(), account(), social.PostOptions{
		Text:     "Launch",
		Media:    []social.MediaItem{{Type: social.MediaImage, URL: f.srv.URL + "/cdn/photo.jpg", AltText: "team"}},
		Settings: social.PlatformSettings{LinkedIn: &social.LinkedInSettings{OrganizationID: "777"}},
	})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)

	assert.Equal(t, []string{"urn:li:digitalmediaRecipe:feedshare-image"}, f.recipes)
	require.Len(t, f.uploads, 1)
	assert.Equal(t, "jpeg-bytes", string(f.uploads[0]))

	post := f.posts[0]
	assert.Equal(t, "urn:li:organization:777", post.Author)
	content := post.SpecificContent.ShareContent
	assert.Equal(t, "IMAGE", content.ShareMediaCategory)
	require.Len(t, content.Media, 1)
	assert.Equal(t, "urn:li:digitalmediaAsset:D1", content.Media[0].Media)
	assert.Equal(t, "team", content.Media[0].Description.Text)
}

func TestCreateArticlePost(t *testing.T) {
	p, f := newTestProvider(t)

	res, err := p.CreatePost(context.Background(), account(), social.PostOptions{
		Text: "Read this",
		Settings: social.PlatformSettings{LinkedIn: &social.LinkedInSettings{
			Visibility:   social.VisibilityConnections,
			ArticleURL:   "https://blog.example/post",
			ArticleTitle: "Post",
		}},
	})
	require.NoError(t, err)
	require.True(t, res.Success)

	post := f.posts[0]
	assert.Equal(t, "CONNECTIONS", post.Visibility.MemberNetworkVisibility)
	content := post.SpecificContent.ShareContent
	assert.Equal(t, "ARTICLE", content.ShareMediaCategory)
	assert.Equal(t, "https://blog.example/post", content.Media[0].OriginalURL)
	assert.Equal(t, "Post", content.Media[0].Title.Text)
	assert.Empty(t, f.recipes)
}

func TestDeletePost(t *testing.T) {
	p, f := newTestProvider(t)

	res, err := p.DeletePost(context.Background(), account(), "urn:li:share:6900")
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.Equal(t, []string{"urn:li:share:6900"}, f.deleted)
}

func TestGetAnalytics(t *testing.T) {
	p, f := newTestProvider(t)
	ctx := context.Background()
	acc := account()

	res, err := p.GetAnalytics(ctx, acc, social.AnalyticsQuery{})
	require.NoError(t, err)
	require.False(t, res.Success)
	assert.Equal(t, social.CodeNotImplemented, res.Error.Code)

	acc.Metadata.Organizations = []social.LinkedInOrganization{{ID: "777"}}
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err = p.GetAnalytics(ctx, acc, social.AnalyticsQuery{Start: start, End: start.AddDate(0, 0, 7)})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, int64(1200), res.Data.Followers)
	assert.Equal(t, int64(1000), res.Data.Impressions)
	assert.Equal(t, int64(400), res.Data.Reach)
	assert.Equal(t, int64(40), res.Data.Engagement)
	assert.InDelta(t, 0.1, res.Data.EngagementRate(), 1e-9)

	assert.Equal(t, "urn:li:organization:777", f.statsReq.Get("organizationalEntity"))
	assert.Equal(t, fmt.Sprint(start.UnixMilli()), f.statsReq.Get("timeIntervals.timeRange.start"))
}

func TestGetCommentsPaging(t *testing.T) {
	p, _ := newTestProvider(t)

	res, err := p.GetComments(context.Background(), account(), "urn:li:share:6900", social.ListOptions{Limit: 2})
	require.NoError(t, err)
	require.True(t, res.Success)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "great", res.Data[0].Text)
	assert.Equal(t, "urn:li:share:6900", res.Data[0].PostID)
	assert.Equal(t, "2", res.NextCursor)
}

func TestExchangeCode(t *testing.T) {
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"li-tok","expires_in":5184000,"scope":"openid,w_member_social"}`)
	}))
	t.Cleanup(tokens.Close)

	p := New(Config{ClientID: "cid", ClientSecret: "sec", RedirectURI: "https://app.example/cb", TokenURL: tokens.URL})
	res, err := p.ExchangeCode(context.Background(), social.ExchangeParams{Code: "the-code"})
	require.NoError(t, err)
	require.True(t, res.Success, "%+v", res.Error)
	assert.Equal(t, "li-tok", res.Data.AccessToken)
	require.NotNil(t, res.Data.ExpiresAt)
}
