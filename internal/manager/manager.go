// Package manager coordinates the platform providers and the connected
// accounts: bulk posting, cross-platform analytics, account health and token
// refresh.
package manager

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/social"
)

const (
	concurrencyLimit = 10

	// RateLimitWindow is the reset estimate used when a platform reports a
	// rate limit without saying when it ends.
	RateLimitWindow = 15 * time.Minute
)

// Manager holds one provider per platform and the registry of connected
// accounts. It is safe for concurrent use.
type Manager struct {
	providers map[social.Platform]social.Provider

	mu       sync.RWMutex
	accounts map[social.AccountKey]*social.SocialAccount
	order    []social.AccountKey

	now func() time.Time
}

func New(providers ...social.Provider) *Manager {
	m := &Manager{
		providers: make(map[social.Platform]social.Provider, len(providers)),
		accounts:  make(map[social.AccountKey]*social.SocialAccount),
		now:       time.Now,
	}
	for _, p := range providers {
		m.providers[p.Platform()] = p
	}
	return m
}

func (m *Manager) Provider(platform social.Platform) (social.Provider, error) {
	p, ok := m.providers[platform]
	if !ok {
		return nil, &social.SocialMediaError{
			Platform: platform,
			Code:     social.CodeUnsupportedPlatform,
			Message:  fmt.Sprintf("no provider registered for %q", platform),
		}
	}
	return p, nil
}

// Platforms lists the registered platforms in display order.
func (m *Manager) Platforms() []social.Platform {
	var out []social.Platform
	for _, p := range social.Platforms() {
		if _, ok := m.providers[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

// AddAccount registers a copy of account, replacing any account with the
// same platform and id.
func (m *Manager) AddAccount(account social.SocialAccount) error {
	if _, err := m.Provider(account.Platform); err != nil {
		return err
	}
	if account.ID == "" {
		return fmt.Errorf("account for %s has no id", account.Platform)
	}
	key := account.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[key]; !ok {
		m.order = append(m.order, key)
	}
	m.accounts[key] = &account
	return nil
}

func (m *Manager) RemoveAccount(platform social.Platform, id string) bool {
	key := social.AccountKey{Platform: platform, ID: id}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[key]; !ok {
		return false
	}
	delete(m.accounts, key)
	for i, k := range m.order {
		if k == key {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return true
}

// Account returns a copy of the registered account.
func (m *Manager) Account(platform social.Platform, id string) (social.SocialAccount, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	acc, ok := m.accounts[social.AccountKey{Platform: platform, ID: id}]
	if !ok {
		return social.SocialAccount{}, false
	}
	return *acc, true
}

// Accounts returns copies of every registered account in registration order.
func (m *Manager) Accounts() []social.SocialAccount {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]social.SocialAccount, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, *m.accounts[k])
	}
	return out
}

func (m *Manager) AccountsFor(platform social.Platform) []social.SocialAccount {
	var out []social.SocialAccount
	for _, acc := range m.Accounts() {
		if acc.Platform == platform {
			out = append(out, acc)
		}
	}
	return out
}

// update applies fn to the registered account, if it is still registered.
func (m *Manager) update(key social.AccountKey, fn func(*social.SocialAccount)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if acc, ok := m.accounts[key]; ok {
		fn(acc)
	}
}

// target resolves the account a platform operation runs against: the given
// id, or the first connected account registered for the platform.
func (m *Manager) target(platform social.Platform, accountID string) (social.SocialAccount, *social.APIError) {
	if accountID != "" {
		acc, ok := m.Account(platform, accountID)
		if !ok {
			return acc, &social.APIError{Code: social.CodeNoAccount, Message: fmt.Sprintf("no %s account %s connected", platform, accountID)}
		}
		return acc, nil
	}
	for _, acc := range m.AccountsFor(platform) {
		if acc.IsConnected {
			return acc, nil
		}
	}
	return social.SocialAccount{}, &social.APIError{Code: social.CodeNoAccount, Message: fmt.Sprintf("no %s account connected", platform)}
}

// fanOut runs fn for every index with at most concurrencyLimit in flight and
// waits for all of them.
func fanOut(n int, fn func(i int)) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrencyLimit)
	for i := 0; i < n; i++ {
		wg.Add(1)
		semaphore <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-semaphore }()
			fn(i)
		}(i)
	}
	wg.Wait()
}

// guard runs a provider call and turns a panic into an error so one broken
// provider cannot take down a fan-out.
func guard[T any](platform social.Platform, call func() (*social.APIResponse[T], error)) (res *social.APIResponse[T], err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("provider panic", "platform", platform, "panic", r, "stack", string(debug.Stack()))
			res = nil
			err = &social.SocialMediaError{Platform: platform, Code: social.CodePanic, Message: fmt.Sprint(r)}
		}
	}()
	return call()
}

// outcome folds the (response, error) pair of a provider call into a single
// structured failure, or nil on success.
func outcome[T any](res *social.APIResponse[T], err error) *social.APIError {
	if err != nil {
		return social.ToAPIError(err)
	}
	if res == nil {
		return &social.APIError{Code: social.CodePlatformError, Message: "provider returned no response"}
	}
	if !res.Success {
		if res.Error != nil {
			return res.Error
		}
		return &social.APIError{Code: social.CodePlatformError, Message: "request failed"}
	}
	return nil
}

func (m *Manager) GetAuthURL(platform social.Platform, state string) (*social.AuthRequest, error) {
	p, err := m.Provider(platform)
	if err != nil {
		return nil, err
	}
	return p.AuthURL(state)
}

func (m *Manager) ExchangeCode(ctx context.Context, platform social.Platform, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	p, err := m.Provider(platform)
	if err != nil {
		return nil, err
	}
	return guard(platform, func() (*social.APIResponse[social.TokenResponse], error) {
		return p.ExchangeCode(ctx, params)
	})
}

// CreatePost publishes to a single account; an empty accountID picks the
// first connected account of the platform.
func (m *Manager) CreatePost(ctx context.Context, platform social.Platform, accountID string, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	p, err := m.Provider(platform)
	if err != nil {
		return nil, err
	}
	acc, apiErr := m.target(platform, accountID)
	if apiErr != nil {
		return social.FailWith[social.PublishedPost](apiErr), nil
	}
	return guard(platform, func() (*social.APIResponse[social.PublishedPost], error) {
		return p.CreatePost(ctx, &acc, opts)
	})
}

func (m *Manager) GetProfile(ctx context.Context, platform social.Platform, accountID string) (*social.APIResponse[social.UserProfile], error) {
	p, err := m.Provider(platform)
	if err != nil {
		return nil, err
	}
	acc, apiErr := m.target(platform, accountID)
	if apiErr != nil {
		return social.FailWith[social.UserProfile](apiErr), nil
	}
	return guard(platform, func() (*social.APIResponse[social.UserProfile], error) {
		return p.GetProfile(ctx, &acc)
	})
}

// Disconnect revokes the account's token where the platform supports it and
// removes it from the registry. A failed revoke is logged, not returned.
func (m *Manager) Disconnect(ctx context.Context, platform social.Platform, accountID string) bool {
	acc, ok := m.Account(platform, accountID)
	if !ok {
		return false
	}
	if p, err := m.Provider(platform); err == nil {
		if r, ok := p.(social.Revoker); ok && acc.AccessToken != "" {
			if err := r.Revoke(ctx, &acc); err != nil {
				slog.Warn("token revoke failed", "platform", platform, "account", accountID, "err", err)
			}
		}
	}
	return m.RemoveAccount(platform, accountID)
}
