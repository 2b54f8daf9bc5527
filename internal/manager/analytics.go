package manager

import (
	"context"
	"sort"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
)

func (m *Manager) GetAnalytics(ctx context.Context, platform social.Platform, accountID string, query social.AnalyticsQuery) (*social.APIResponse[social.Analytics], error) {
	p, err := m.Provider(platform)
	if err != nil {
		return nil, err
	}
	acc, apiErr := m.target(platform, accountID)
	if apiErr != nil {
		return social.FailWith[social.Analytics](apiErr), nil
	}
	return guard(platform, func() (*social.APIResponse[social.Analytics], error) {
		return p.GetAnalytics(ctx, &acc, query)
	})
}

// PlatformAnalytics sums the analytics of every account of one platform.
type PlatformAnalytics struct {
	Platform       social.Platform `json:"platform"`
	Accounts       int             `json:"accounts"`
	Followers      int64           `json:"followers"`
	Engagement     int64           `json:"engagement"`
	Reach          int64           `json:"reach"`
	Impressions    int64           `json:"impressions"`
	Views          int64           `json:"views"`
	PostCount      int64           `json:"post_count"`
	EngagementRate float64         `json:"engagement_rate"`
}

type AnalyticsFailure struct {
	Platform  social.Platform  `json:"platform"`
	AccountID string           `json:"account_id"`
	Error     *social.APIError `json:"error"`
}

// CrossPlatformAnalytics lists platforms ranked by engagement rate, highest
// first, with totals over all of them.
type CrossPlatformAnalytics struct {
	Start            time.Time           `json:"start"`
	End              time.Time           `json:"end"`
	Platforms        []PlatformAnalytics `json:"platforms"`
	TotalFollowers   int64               `json:"total_followers"`
	TotalEngagement  int64               `json:"total_engagement"`
	TotalReach       int64               `json:"total_reach"`
	TotalImpressions int64               `json:"total_impressions"`
	EngagementRate   float64             `json:"engagement_rate"`
	Failures         []AnalyticsFailure  `json:"failures,omitempty"`
}

// GetCrossPlatformAnalytics fetches the analytics of every connected account,
// optionally limited to platforms, concurrently. Accounts that fail are
// reported in Failures and left out of the totals.
func (m *Manager) GetCrossPlatformAnalytics(ctx context.Context, query social.AnalyticsQuery, platforms ...social.Platform) CrossPlatformAnalytics {
	query = query.Normalize(m.now())
	accounts := m.connected(platforms)

	type fetched struct {
		data *social.Analytics
		err  *social.APIError
	}
	results := make([]fetched, len(accounts))
	fanOut(len(accounts), func(i int) {
		acc := accounts[i]
		p, err := m.Provider(acc.Platform)
		if err != nil {
			results[i].err = social.ToAPIError(err)
			return
		}
		res, err := guard(acc.Platform, func() (*social.APIResponse[social.Analytics], error) {
			return p.GetAnalytics(ctx, &acc, query)
		})
		if results[i].err = outcome(res, err); results[i].err == nil {
			data := res.Data
			results[i].data = &data
		}
	})

	out := CrossPlatformAnalytics{Start: query.Start, End: query.End}
	byPlatform := map[social.Platform]*PlatformAnalytics{}
	for i, r := range results {
		acc := accounts[i]
		if r.err != nil {
			out.Failures = append(out.Failures, AnalyticsFailure{Platform: acc.Platform, AccountID: acc.ID, Error: r.err})
			continue
		}
		pa, ok := byPlatform[acc.Platform]
		if !ok {
			pa = &PlatformAnalytics{Platform: acc.Platform}
			byPlatform[acc.Platform] = pa
		}
		pa.Accounts++
		pa.Followers += r.data.Followers
		pa.Engagement += r.data.Engagement
		pa.Reach += r.data.Reach
		pa.Impressions += r.data.Impressions
		pa.Views += r.data.Views
		pa.PostCount += r.data.PostCount
	}

	for _, platform := range social.Platforms() {
		pa, ok := byPlatform[platform]
		if !ok {
			continue
		}
		pa.EngagementRate = social.Rate(pa.Engagement, pa.Reach)
		out.Platforms = append(out.Platforms, *pa)
		out.TotalFollowers += pa.Followers
		out.TotalEngagement += pa.Engagement
		out.TotalReach += pa.Reach
		out.TotalImpressions += pa.Impressions
	}
	sort.SliceStable(out.Platforms, func(i, j int) bool {
		return out.Platforms[i].EngagementRate > out.Platforms[j].EngagementRate
	})
	out.EngagementRate = social.Rate(out.TotalEngagement, out.TotalReach)
	return out
}

// connected returns the connected accounts, limited to platforms when any
// are given.
func (m *Manager) connected(platforms []social.Platform) []social.SocialAccount {
	want := make(map[social.Platform]bool, len(platforms))
	for _, p := range platforms {
		want[p] = true
	}
	var out []social.SocialAccount
	for _, acc := range m.Accounts() {
		if !acc.IsConnected {
			continue
		}
		if len(want) > 0 && !want[acc.Platform] {
			continue
		}
		out = append(out, acc)
	}
	return out
}
