package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	config "github.com/maheshrc27/postflow/configs"
	"github.com/maheshrc27/postflow/internal/logutil"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/spf13/cobra"
)

var (
	configDir string
	verbose   bool
)

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postflow",
		Short: "Schedule and publish posts across social platforms",
		Long: "postflow links social accounts over OAuth and publishes posts to " +
			"Twitter/X, Facebook, Instagram, LinkedIn, TikTok and YouTube.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Directory holding postflow.yaml")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newServeCommand())
	cmd.AddCommand(newStatusCommand())
	cmd.AddCommand(newTokenCommand())
	return cmd
}

// loadConfig reads .env, the config file and the environment, and installs
// the logger.
func loadConfig() (*config.Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	var (
		cfg *config.Config
		err error
	)
	if configDir != "" {
		cfg, err = config.Load(configDir)
	} else {
		cfg, err = config.LoadConfig()
	}
	if err != nil {
		return nil, err
	}

	logutil.Setup(os.Stderr, cfg.LogLevel)
	if verbose {
		logutil.SetVerbose(true)
	}
	return cfg, nil
}

func openDB(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresURI)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("database is unreachable: %w", err)
	}
	if err := repository.Migrate(ctx, db); err != nil {
		closeDB(db)
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return db, nil
}

func closeDB(db *sql.DB) {
	fmt.Fprint(os.Stdout, "Closing database connection... ")
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to close database: %v", err)
		return
	}
	fmt.Fprintln(os.Stdout, "Done")
}
