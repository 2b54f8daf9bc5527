package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// OAuthApp is the client registration of one platform.
type OAuthApp struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	RedirectURI  string `mapstructure:"redirect_uri"`
}

func (a OAuthApp) Enabled() bool {
	return a.ClientID != "" && a.ClientSecret != ""
}

type R2 struct {
	AccountID  string `mapstructure:"account_id"`
	AccessKey  string `mapstructure:"access_key"`
	SecretKey  string `mapstructure:"secret_key"`
	BucketName string `mapstructure:"bucket_name"`
	PublicURL  string `mapstructure:"public_url"`
}

type Config struct {
	Twitter   OAuthApp `mapstructure:"twitter"`
	Facebook  OAuthApp `mapstructure:"facebook"`
	Instagram OAuthApp `mapstructure:"instagram"`
	LinkedIn  OAuthApp `mapstructure:"linkedin"`
	Tiktok    OAuthApp `mapstructure:"tiktok"`
	Google    OAuthApp `mapstructure:"google"`

	PostgresURI string `mapstructure:"postgres_uri"`
	RedisURI    string `mapstructure:"redis_uri"`
	FrontendURL string `mapstructure:"frontend_url"`
	ListenAddr  string `mapstructure:"listen_addr"`
	R2          R2     `mapstructure:"r2"`

	SecretKey     string `mapstructure:"secret_key"`
	EncryptionKey string `mapstructure:"encryption_key"`
	CookieName    string `mapstructure:"cookie_name"`

	HTTPTimeout    time.Duration `mapstructure:"http_timeout"`
	HTTPMaxRetries int           `mapstructure:"http_max_retries"`
	LogLevel       string        `mapstructure:"log_level"`
}

var envMappings = map[string]string{
	"twitter.client_id":       "TWITTER_CLIENT_ID",
	"twitter.client_secret":   "TWITTER_CLIENT_SECRET",
	"twitter.redirect_uri":    "TWITTER_REDIRECT_URI",
	"facebook.client_id":      "FACEBOOK_APP_ID",
	"facebook.client_secret":  "FACEBOOK_APP_SECRET",
	"facebook.redirect_uri":   "FACEBOOK_REDIRECT_URI",
	"instagram.client_id":     "INSTAGRAM_CLIENT_ID",
	"instagram.client_secret": "INSTAGRAM_CLIENT_SECRET",
	"instagram.redirect_uri":  "INSTAGRAM_REDIRECT_URI",
	"linkedin.client_id":      "LINKEDIN_CLIENT_ID",
	"linkedin.client_secret":  "LINKEDIN_CLIENT_SECRET",
	"linkedin.redirect_uri":   "LINKEDIN_REDIRECT_URI",
	"tiktok.client_id":        "TIKTOK_CLIENT_KEY",
	"tiktok.client_secret":    "TIKTOK_CLIENT_SECRET",
	"tiktok.redirect_uri":     "TIKTOK_REDIRECT_URI",
	"google.client_id":        "GOOGLE_CLIENT_ID",
	"google.client_secret":    "GOOGLE_CLIENT_SECRET",
	"google.redirect_uri":     "GOOGLE_REDIRECT_URI",
	"postgres_uri":            "POSTGRES_URI",
	"redis_uri":               "REDIS_URI",
	"frontend_url":            "FRONTEND_URL",
	"listen_addr":             "LISTEN_ADDR",
	"r2.account_id":           "R2_ACCOUNT_ID",
	"r2.access_key":           "R2_ACCESS_KEY",
	"r2.secret_key":           "R2_SECRET_KEY",
	"r2.bucket_name":          "R2_BUCKET_NAME",
	"r2.public_url":           "R2_PUBLIC_URL",
	"secret_key":              "SECRET_KEY",
	"encryption_key":          "ENCRYPTION_KEY",
	"cookie_name":             "COOKIE_NAME",
	"http_timeout":            "HTTP_TIMEOUT",
	"http_max_retries":        "HTTP_MAX_RETRIES",
	"log_level":               "LOG_LEVEL",
}

// LoadConfig reads postflow.yaml from the working directory or ./configs when
// present and lets environment variables override it.
func LoadConfig() (*Config, error) {
	return Load(".", "./configs")
}

func Load(paths ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, env := range envMappings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	v.SetConfigName("postflow")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		slog.Debug("config file not found, using environment")
	} else {
		slog.Info("using config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("frontend_url", "http://localhost:5173")
	v.SetDefault("listen_addr", ":3000")
	v.SetDefault("redis_uri", "localhost:6379")
	v.SetDefault("cookie_name", "postflow_session")
	v.SetDefault("http_timeout", 30*time.Second)
	v.SetDefault("http_max_retries", 3)
	v.SetDefault("log_level", "info")
}

// Validate reports the settings the server cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.PostgresURI == "" {
		missing = append(missing, "POSTGRES_URI")
	}
	if c.SecretKey == "" {
		missing = append(missing, "SECRET_KEY")
	}
	if c.EncryptionKey == "" {
		missing = append(missing, "ENCRYPTION_KEY")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	if n := len(c.EncryptionKey); n != 16 && n != 24 && n != 32 {
		return fmt.Errorf("ENCRYPTION_KEY must be 16, 24 or 32 bytes, got %d", n)
	}
	return nil
}
