package manager

import (
	"context"
	"log/slog"

	"github.com/maheshrc27/postflow/internal/social"
)

type BulkPostRequest struct {
	Platforms []social.Platform                        `json:"platforms"`
	Options   social.PostOptions                       `json:"options"`
	Overrides map[social.Platform]*social.PostOverride `json:"overrides,omitempty"`
	// Accounts pins the account used per platform. Platforms without an entry
	// use their first connected account.
	Accounts map[social.Platform]string `json:"accounts,omitempty"`
}

type BulkPostResult struct {
	Platform  social.Platform       `json:"platform"`
	AccountID string                `json:"account_id,omitempty"`
	Success   bool                  `json:"success"`
	Post      *social.PublishedPost `json:"post,omitempty"`
	Error     *social.APIError      `json:"error,omitempty"`
}

// BulkPost publishes to every requested platform concurrently. Each platform
// gets its own result in request order; failures never affect the other
// platforms and are reported in the result rather than returned.
func (m *Manager) BulkPost(ctx context.Context, req BulkPostRequest) []BulkPostResult {
	platforms := dedupe(req.Platforms)
	results := make([]BulkPostResult, len(platforms))

	fanOut(len(platforms), func(i int) {
		platform := platforms[i]
		results[i] = m.postOne(ctx, platform, req.Accounts[platform], req.Options.WithOverride(req.Overrides[platform]))
	})

	failed := 0
	for _, r := range results {
		if !r.Success {
			failed++
		}
	}
	slog.Info("bulk post finished", "platforms", len(results), "failed", failed)
	return results
}

func (m *Manager) postOne(ctx context.Context, platform social.Platform, accountID string, opts social.PostOptions) BulkPostResult {
	result := BulkPostResult{Platform: platform}
	p, err := m.Provider(platform)
	if err != nil {
		result.Error = social.ToAPIError(err)
		return result
	}
	acc, apiErr := m.target(platform, accountID)
	if apiErr != nil {
		result.Error = apiErr
		return result
	}
	result.AccountID = acc.ID

	res, err := guard(platform, func() (*social.APIResponse[social.PublishedPost], error) {
		return p.CreatePost(ctx, &acc, opts)
	})
	if result.Error = outcome(res, err); result.Error != nil {
		slog.Warn("post failed", "platform", platform, "account", acc.ID, "code", result.Error.Code, "err", result.Error.Message)
		if social.ErrorCode(err) == social.CodeAuthFailed {
			m.update(acc.Key(), func(a *social.SocialAccount) { a.IsConnected = false })
		}
		return result
	}
	post := res.Data
	result.Success = true
	result.Post = &post
	return result
}

func dedupe(platforms []social.Platform) []social.Platform {
	seen := make(map[social.Platform]bool, len(platforms))
	out := make([]social.Platform, 0, len(platforms))
	for _, p := range platforms {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
