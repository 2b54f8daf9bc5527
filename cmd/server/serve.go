package main

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/hibiken/asynq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/api"
	job "github.com/maheshrc27/postflow/internal/jobs"
	"github.com/maheshrc27/postflow/internal/queue"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/service"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/robfig/cron"
	"github.com/spf13/cobra"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, the publish worker and the account jobs",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

// newAccountService builds the providers, loads every stored account and
// returns the account service around them.
func newAccountService(ctx context.Context, cfg *config.Config, db *sql.DB, reg prometheus.Registerer) (service.AccountService, error) {
	opts := []social.RequesterOption{
		social.WithTimeout(cfg.HTTPTimeout),
		social.WithMaxRetries(cfg.HTTPMaxRetries),
	}
	if reg != nil {
		opts = append(opts, social.WithMetrics(social.NewPrometheusMetrics(reg)))
	}

	providers := service.NewProviders(cfg, opts...)
	if len(providers) == 0 {
		slog.Warn("no platform credentials configured")
	}
	registry := service.NewRegistry(providers...)

	accounts := service.NewAccountService(registry, repository.NewSocialAccountRepository(db), cfg.SecretKey, cfg.EncryptionKey)
	if _, err := accounts.LoadAccounts(ctx); err != nil {
		return nil, err
	}
	return accounts, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	db, err := openDB(ctx, cfg)
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	accountService, err := newAccountService(ctx, cfg, db, reg)
	if err != nil {
		closeDB(db)
		return err
	}

	postRepo := repository.NewPostRepository(db)
	historyRepo := repository.NewPostingHistoryRepository(db)
	socialAccountRepo := repository.NewSocialAccountRepository(db)
	mediaAssetRepo := repository.NewMediaAssetRepository(db)

	postService := service.NewPostService(accountService, postRepo, historyRepo, socialAccountRepo)

	var mediaService service.MediaService
	if cfg.R2.BucketName != "" {
		store, err := service.NewR2Store(ctx, cfg.R2)
		if err != nil {
			closeDB(db)
			return err
		}
		mediaService = service.NewMediaService(store, mediaAssetRepo)
	} else {
		slog.Warn("R2 bucket not configured, media uploads disabled")
	}

	redisConn := asynq.RedisClientOpt{Addr: cfg.RedisURI}
	client := asynq.NewClient(redisConn)
	defer client.Close()

	//queue
	queueW := queue.NewQueue(client, postService)
	postService.SetScheduler(queueW)

	server := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
	})
	slog.Info("starting the asynq server")
	if err := server.Start(queueW.Mux()); err != nil {
		closeDB(db)
		return err
	}

	// cron jobs
	c := cron.New()
	if err := job.Register(c, job.NewTokenRefreshJob(accountService), job.NewStatusCheckJob(accountService)); err != nil {
		server.Shutdown()
		closeDB(db)
		return err
	}
	c.Start()

	app := fiber.New(fiber.Config{
		ReadTimeout:  10 * time.Minute,
		WriteTimeout: 10 * time.Minute,
		BodyLimit:    100 * 1024 * 1024, // 100 MB
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			slog.Error("request failed", "path", c.Path(), "err", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		},
	})

	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.FrontendURL,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
		MaxAge:           3600,
	}))

	api.Register(app, *cfg, api.Services{
		Accounts: accountService,
		Posts:    postService,
		Media:    mediaService,
	}, reg)

	go func() {
		if err := app.Listen(cfg.ListenAddr); err != nil {
			slog.Error("failed to start server", "err", err)
		}
	}()
	slog.Info("server is running", "addr", cfg.ListenAddr)

	gracefulShutdown(app, server, c, db)
	return nil
}

func gracefulShutdown(app *fiber.App, server *asynq.Server, c *cron.Cron, db *sql.DB) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	<-quit
	slog.Info("shutting down server")

	c.Stop()
	if err := app.Shutdown(); err != nil {
		slog.Error("failed to shut down server", "err", err)
	}
	server.Shutdown()

	closeDB(db)
	slog.Info("server shutdown complete")
}
