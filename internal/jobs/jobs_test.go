package job

import (
	"context"
	"testing"
	"time"

	"github.com/maheshrc27/postflow/internal/manager"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/robfig/cron"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAccounts struct {
	window    time.Duration
	refreshes int
	checks    int
}

func (f *fakeAccounts) RefreshTokens(ctx context.Context, window time.Duration) []manager.RefreshResult {
	f.window = window
	f.refreshes++
	return []manager.RefreshResult{
		{Platform: social.Twitter, AccountID: "1", Refreshed: true},
		{Platform: social.TikTok, AccountID: "2", Error: &social.APIError{Code: social.CodeAuthFailed}},
	}
}

func (f *fakeAccounts) CheckAllStatuses(ctx context.Context) []manager.AccountStatus {
	f.checks++
	return []manager.AccountStatus{
		{Platform: social.Twitter, AccountID: "1", Status: manager.StatusActive},
		{Platform: social.YouTube, AccountID: "3", Status: manager.StatusRateLimited},
	}
}

func TestJobsRun(t *testing.T) {
	accounts := &fakeAccounts{}
	NewTokenRefreshJob(accounts).RefreshTokens()
	NewStatusCheckJob(accounts).CheckStatuses()

	assert.Equal(t, 30*time.Minute, accounts.window)
	assert.Equal(t, 1, accounts.refreshes)
	assert.Equal(t, 1, accounts.checks)
}

func TestRegister(t *testing.T) {
	accounts := &fakeAccounts{}
	c := cron.New()
	require.NoError(t, Register(c, NewTokenRefreshJob(accounts), NewStatusCheckJob(accounts)))
	assert.Len(t, c.Entries(), 2)
}
