package manager

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
)

type ConnectionStatus string

const (
	StatusActive      ConnectionStatus = "active"
	StatusError       ConnectionStatus = "error"
	StatusRateLimited ConnectionStatus = "rate_limited"
)

type AccountStatus struct {
	Platform       social.Platform  `json:"platform"`
	AccountID      string           `json:"account_id"`
	Username       string           `json:"username"`
	Status         ConnectionStatus `json:"status"`
	Connected      bool             `json:"connected"`
	Error          *social.APIError `json:"error,omitempty"`
	RateLimitReset *time.Time       `json:"rate_limit_reset,omitempty"`
	CheckedAt      time.Time        `json:"checked_at"`
}

// CheckAccountStatuses fetches the profile of every registered account to
// classify its connection health. Accounts whose credentials are rejected are
// marked disconnected in the registry.
func (m *Manager) CheckAccountStatuses(ctx context.Context) []AccountStatus {
	accounts := m.Accounts()
	statuses := make([]AccountStatus, len(accounts))

	fanOut(len(accounts), func(i int) {
		statuses[i] = m.checkOne(ctx, accounts[i])
	})
	return statuses
}

func (m *Manager) checkOne(ctx context.Context, acc social.SocialAccount) AccountStatus {
	now := m.now()
	status := AccountStatus{
		Platform:  acc.Platform,
		AccountID: acc.ID,
		Username:  acc.Username,
		Connected: acc.IsConnected,
		CheckedAt: now,
	}
	p, err := m.Provider(acc.Platform)
	if err != nil {
		status.Status = StatusError
		status.Error = social.ToAPIError(err)
		return status
	}

	res, err := guard(acc.Platform, func() (*social.APIResponse[social.UserProfile], error) {
		return p.GetProfile(ctx, &acc)
	})
	apiErr := outcome(res, err)
	switch {
	case apiErr == nil:
		status.Status = StatusActive
		status.Connected = true
		if res.Data.Username != "" {
			status.Username = res.Data.Username
		}
		m.update(acc.Key(), func(a *social.SocialAccount) {
			a.IsConnected = true
			if res.Data.Username != "" {
				a.Username = res.Data.Username
			}
			if res.Data.DisplayName != "" {
				a.DisplayName = res.Data.DisplayName
			}
			if res.Data.AvatarURL != "" {
				a.AvatarURL = res.Data.AvatarURL
			}
		})
	case apiErr.Code == social.CodeRateLimited:
		status.Status = StatusRateLimited
		status.Error = apiErr
		reset := now.Add(RateLimitWindow)
		var rl *social.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			reset = now.Add(rl.RetryAfter)
		}
		status.RateLimitReset = &reset
	default:
		status.Status = StatusError
		status.Error = apiErr
		if apiErr.Code == social.CodeAuthFailed {
			status.Connected = false
			m.update(acc.Key(), func(a *social.SocialAccount) { a.IsConnected = false })
		}
	}
	if status.Status != StatusActive {
		slog.Warn("account unhealthy", "platform", acc.Platform, "account", acc.ID, "status", status.Status, "code", apiErr.Code)
	}
	return status
}

type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

// ValidatePostForPlatforms checks opts, with any per-platform override
// applied, against each platform's rules concurrently.
func (m *Manager) ValidatePostForPlatforms(platforms []social.Platform, opts social.PostOptions, overrides map[social.Platform]*social.PostOverride) map[social.Platform]ValidationResult {
	platforms = dedupe(platforms)
	results := make([]ValidationResult, len(platforms))

	fanOut(len(platforms), func(i int) {
		p, err := m.Provider(platforms[i])
		if err != nil {
			results[i] = ValidationResult{Issues: []string{err.Error()}}
			return
		}
		err = p.ValidatePost(opts.WithOverride(overrides[platforms[i]]))
		if err == nil {
			results[i] = ValidationResult{Valid: true}
			return
		}
		var ve *social.ValidationError
		if errors.As(err, &ve) {
			results[i] = ValidationResult{Issues: ve.Issues}
			return
		}
		results[i] = ValidationResult{Issues: []string{err.Error()}}
	})

	out := make(map[social.Platform]ValidationResult, len(platforms))
	for i, p := range platforms {
		out[p] = results[i]
	}
	return out
}

type RefreshResult struct {
	Platform  social.Platform       `json:"platform"`
	AccountID string                `json:"account_id"`
	Refreshed bool                  `json:"refreshed"`
	Account   *social.SocialAccount `json:"-"`
	Error     *social.APIError      `json:"error,omitempty"`
}

// RefreshExpiringTokens refreshes the connected accounts whose token expires
// within window and stores the new tokens in the registry. Refreshed results
// carry the updated account so callers can persist it.
func (m *Manager) RefreshExpiringTokens(ctx context.Context, window time.Duration) []RefreshResult {
	now := m.now()
	var due []social.SocialAccount
	for _, acc := range m.Accounts() {
		if acc.IsConnected && acc.NeedsRefresh(now, window) {
			due = append(due, acc)
		}
	}
	results := make([]RefreshResult, len(due))

	fanOut(len(due), func(i int) {
		acc := due[i]
		results[i] = RefreshResult{Platform: acc.Platform, AccountID: acc.ID}
		p, err := m.Provider(acc.Platform)
		if err != nil {
			results[i].Error = social.ToAPIError(err)
			return
		}
		res, err := guard(acc.Platform, func() (*social.APIResponse[social.TokenResponse], error) {
			return p.RefreshToken(ctx, &acc)
		})
		if apiErr := outcome(res, err); apiErr != nil {
			results[i].Error = apiErr
			if apiErr.Code == social.CodeAuthFailed {
				m.update(acc.Key(), func(a *social.SocialAccount) { a.IsConnected = false })
			}
			slog.Warn("token refresh failed", "platform", acc.Platform, "account", acc.ID, "code", apiErr.Code, "err", apiErr.Message)
			return
		}
		acc.ApplyToken(res.Data)
		m.update(acc.Key(), func(a *social.SocialAccount) { a.ApplyToken(res.Data) })
		results[i].Refreshed = true
		results[i].Account = &acc
	})
	return results
}
