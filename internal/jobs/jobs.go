package job

import (
	"github.com/robfig/cron"
)

const (
	TokenRefreshSpec = "@every 00h10m00s"
	StatusCheckSpec  = "@every 00h15m00s"
)

// Register schedules the periodic account maintenance jobs on c.
func Register(c *cron.Cron, refresh *TokenRefreshJob, status *StatusCheckJob) error {
	if err := c.AddFunc(TokenRefreshSpec, refresh.RefreshTokens); err != nil {
		return err
	}
	return c.AddFunc(StatusCheckSpec, status.CheckStatuses)
}
