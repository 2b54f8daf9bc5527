package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/manager"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/maheshrc27/postflow/pkg/utils"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testConfig = config.Config{
	SecretKey:   "session-secret",
	CookieName:  "postflow_session",
	FrontendURL: "http://app.local",
}

type fakeAccounts struct {
	service.AccountService
	userID    int64
	removed   int64
	platforms []social.Platform
}

func (f *fakeAccounts) AuthURL(ctx context.Context, userID int64, platform social.Platform) (string, error) {
	f.userID = userID
	return "https://provider.example/authorize?state=signed", nil
}

func (f *fakeAccounts) Callback(ctx context.Context, platform social.Platform, code, state string) (*models.SocialAccount, error) {
	if state != "good" {
		return nil, service.ErrInvalidState
	}
	return &models.SocialAccount{ID: 1, Platform: string(platform)}, nil
}

func (f *fakeAccounts) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	f.userID = userID
	return []*models.SocialAccount{{ID: 1, UserID: userID, Platform: "twitter", AccessToken: "secret-token"}}, nil
}

func (f *fakeAccounts) Disconnect(ctx context.Context, userID, accountID int64) error {
	if accountID != 1 {
		return service.ErrAccountNotFound
	}
	f.removed = accountID
	return nil
}

func (f *fakeAccounts) Analytics(ctx context.Context, userID int64, query social.AnalyticsQuery, platforms ...social.Platform) (manager.CrossPlatformAnalytics, error) {
	f.platforms = platforms
	return manager.CrossPlatformAnalytics{TotalFollowers: 42}, nil
}

type fakePosts struct {
	service.PostService
}

func (f *fakePosts) Create(ctx context.Context, userID int64, req *service.CreatePostRequest) (*service.PostResult, error) {
	switch req.Options.Text {
	case "bad":
		return nil, &service.InvalidPostError{Results: map[social.Platform]manager.ValidationResult{
			social.Twitter: {Issues: []string{"too long"}},
		}}
	case "later":
		return &service.PostResult{PostID: "p1", Status: models.PostStatusScheduled}, nil
	}
	return &service.PostResult{PostID: "p1", Status: models.PostStatusPosted}, nil
}

type fakeMedia struct {
	filename string
}

func (f *fakeMedia) Upload(ctx context.Context, userID int64, filename string, data []byte) (*social.MediaItem, error) {
	f.filename = filename
	return &social.MediaItem{Type: social.MediaImage, URL: "https://cdn.example/x.png"}, nil
}

func newTestApp(t *testing.T) (*fiber.App, *fakeAccounts, *fakeMedia) {
	accounts := &fakeAccounts{}
	media := &fakeMedia{}
	reg := prometheus.NewRegistry()
	social.NewPrometheusMetrics(reg).ObserveRetry(social.Twitter)

	app := fiber.New()
	Register(app, testConfig, Services{Accounts: accounts, Posts: &fakePosts{}, Media: media}, reg)
	return app, accounts, media
}

func sessionToken(t *testing.T) string {
	token, err := utils.GenerateToken(testConfig.SecretKey, "7", time.Hour)
	require.NoError(t, err)
	return token
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, string) {
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestAuthRequired(t *testing.T) {
	app, accounts, _ := newTestApp(t)

	resp, _ := do(t, app, httptest.NewRequest(http.MethodGet, "/api/accounts", nil))
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(7), accounts.userID)
	assert.NotContains(t, body, "secret-token")

	req = httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.AddCookie(&http.Cookie{Name: testConfig.CookieName, Value: sessionToken(t)})
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestLinkAccountRoutes(t *testing.T) {
	app, accounts, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/auth/twitter", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusFound, resp.StatusCode)
	assert.Equal(t, "https://provider.example/authorize?state=signed", resp.Header.Get("Location"))
	assert.Equal(t, int64(7), accounts.userID)

	req = httptest.NewRequest(http.MethodGet, "/auth/myspace", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/auth/twitter/callback?code=c&state=bad", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/auth/twitter/callback?code=c&state=good", nil))
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://app.local/dashboard/accounts", resp.Header.Get("Location"))

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/auth/twitter/callback?error=access_denied", nil))
	assert.Equal(t, fiber.StatusTemporaryRedirect, resp.StatusCode)
	assert.Equal(t, "http://app.local/dashboard/accounts?error=access_denied", resp.Header.Get("Location"))
}

func TestRemoveAccount(t *testing.T) {
	app, accounts, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodPost, "/api/accounts/remove?id=1", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, _ := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), accounts.removed)

	req = httptest.NewRequest(http.MethodPost, "/api/accounts/remove?id=9", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestCreatePostRoute(t *testing.T) {
	app, _, _ := newTestApp(t)

	post := func(text string) (*http.Response, string) {
		raw, _ := json.Marshal(service.CreatePostRequest{AccountIDs: []int64{1}, Options: social.PostOptions{Text: text}})
		req := httptest.NewRequest(http.MethodPost, "/api/posts", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+sessionToken(t))
		return do(t, app, req)
	}

	resp, body := post("hello")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Contains(t, body, `"status":"posted"`)

	resp, _ = post("later")
	assert.Equal(t, fiber.StatusAccepted, resp.StatusCode)

	resp, body = post("bad")
	assert.Equal(t, fiber.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, body, "too long")
}

func TestAnalyticsRoute(t *testing.T) {
	app, accounts, _ := newTestApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/analytics?platforms=twitter,youtube", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, body := do(t, app, req)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []social.Platform{social.Twitter, social.YouTube}, accounts.platforms)
	assert.Contains(t, body, `"total_followers":42`)

	req = httptest.NewRequest(http.MethodGet, "/api/analytics?start=yesterday", nil)
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, _ = do(t, app, req)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestUploadMediaRoute(t *testing.T) {
	app, _, media := newTestApp(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "cat.png")
	require.NoError(t, err)
	_, _ = part.Write([]byte("png bytes"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/media", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+sessionToken(t))
	resp, body := do(t, app, req)
	assert.Equal(t, fiber.StatusCreated, resp.StatusCode)
	assert.Equal(t, "cat.png", media.filename)
	assert.Contains(t, body, "cdn.example")
}

func TestMetricsRoute(t *testing.T) {
	app, _, _ := newTestApp(t)

	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(body, `social_request_retries_total{platform="twitter"} 1`))
}
