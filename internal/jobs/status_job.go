package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/manager"
)

const statusTimeout = 5 * time.Minute

type StatusChecker interface {
	CheckAllStatuses(ctx context.Context) []manager.AccountStatus
}

type StatusCheckJob struct {
	accounts StatusChecker
}

func NewStatusCheckJob(accounts StatusChecker) *StatusCheckJob {
	return &StatusCheckJob{accounts: accounts}
}

func (c *StatusCheckJob) CheckStatuses() {
	ctx, cancel := context.WithTimeout(context.Background(), statusTimeout)
	defer cancel()

	counts := map[manager.ConnectionStatus]int{}
	statuses := c.accounts.CheckAllStatuses(ctx)
	for _, st := range statuses {
		counts[st.Status]++
		if st.Status != manager.StatusActive {
			slog.Warn("account unhealthy", "platform", st.Platform, "account", st.AccountID, "status", st.Status)
		}
	}
	slog.Info("account status check finished",
		"accounts", len(statuses),
		"active", counts[manager.StatusActive],
		"error", counts[manager.StatusError],
		"rate_limited", counts[manager.StatusRateLimited])
}
