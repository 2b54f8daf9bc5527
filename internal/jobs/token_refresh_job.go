package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/manager"
)

const (
	refreshWindow  = 30 * time.Minute
	refreshTimeout = 5 * time.Minute
)

type TokenRefresher interface {
	RefreshTokens(ctx context.Context, window time.Duration) []manager.RefreshResult
}

type TokenRefreshJob struct {
	accounts TokenRefresher
}

func NewTokenRefreshJob(accounts TokenRefresher) *TokenRefreshJob {
	return &TokenRefreshJob{accounts: accounts}
}

// RefreshTokens renews every token that expires within the next half hour.
func (c *TokenRefreshJob) RefreshTokens() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	results := c.accounts.RefreshTokens(ctx, refreshWindow)
	refreshed := 0
	for _, res := range results {
		if res.Refreshed {
			refreshed++
			continue
		}
		if res.Error != nil {
			slog.Info("unable to refresh token", "platform", res.Platform, "account", res.AccountID, "code", res.Error.Code)
		}
	}
	slog.Info("token refresh finished", "checked", len(results), "refreshed", refreshed)
}
