package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api/handlers"
	"github.com/maheshrc27/postflow/internal/api/middleware"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Services struct {
	Accounts service.AccountService
	Posts    service.PostService
	Media    service.MediaService
}

// Register mounts every route on app. Media uploads are only routed when a
// media service is configured.
func Register(app *fiber.App, cfg config.Config, s Services, gatherer prometheus.Gatherer) {
	authMiddleware := middleware.NewAuthMiddleware(cfg)

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	platform := handlers.NewPlatformHandler(s.Accounts, cfg)
	app.Get("/auth/:platform", authMiddleware.AuthMiddleware(), platform.AddSocialAccount)
	app.Get("/auth/:platform/callback", platform.CallbackHandler)

	api := app.Group("/api")
	api.Use(authMiddleware.AuthMiddleware())

	api.Get("/platforms", platform.ListPlatforms)

	// social accounts api routes
	api.Get("/accounts", platform.ListSocialAccounts)
	api.Get("/accounts/status", platform.AccountStatuses)
	api.Post("/accounts/remove", platform.DeleteSocialAccount)

	post := handlers.NewPostHandler(s.Posts)
	api.Post("/posts", post.CreatePost)
	api.Post("/posts/validate", post.ValidatePost)
	api.Get("/posts/history", post.History)

	if s.Media != nil {
		media := handlers.NewMediaHandler(s.Media)
		api.Post("/media", media.UploadMedia)
	}

	analytics := handlers.NewAnalyticsHandler(s.Accounts)
	api.Get("/analytics", analytics.GetAnalytics)
}
