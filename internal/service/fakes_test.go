package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/social"
)

const (
	testSecret = "state-secret"
	testKey    = "0123456789abcdef0123456789abcdef"
)

type fakeProvider struct {
	social.Base

	mu        sync.Mutex
	exchanged []social.ExchangeParams
	posted    []string
	revoked   []string

	post func(acc *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error)
}

func newFake(platform social.Platform, limits social.Limits) *fakeProvider {
	return &fakeProvider{Base: social.NewBase(platform, limits, nil)}
}

func (f *fakeProvider) AuthURL(state string) (*social.AuthRequest, error) {
	return &social.AuthRequest{
		URL:          "https://auth.example/" + f.Platform().String() + "?client_id=app&state=" + state,
		State:        state,
		CodeVerifier: "verifier-" + f.Platform().String(),
	}, nil
}

func (f *fakeProvider) ExchangeCode(ctx context.Context, params social.ExchangeParams) (*social.APIResponse[social.TokenResponse], error) {
	f.mu.Lock()
	f.exchanged = append(f.exchanged, params)
	f.mu.Unlock()
	if params.Code == "denied" {
		return social.Fail[social.TokenResponse](social.CodeTokenExchange, "invalid code"), nil
	}
	exp := time.Now().Add(time.Hour)
	return social.OK(social.TokenResponse{AccessToken: "tok-" + params.Code, RefreshToken: "refresh", ExpiresAt: &exp}), nil
}

func (f *fakeProvider) GetProfile(ctx context.Context, acc *social.SocialAccount) (*social.APIResponse[social.UserProfile], error) {
	return social.OK(social.UserProfile{ID: "pid-" + acc.AccessToken, Username: "ann", DisplayName: "Ann"}), nil
}

func (f *fakeProvider) CreatePost(ctx context.Context, acc *social.SocialAccount, opts social.PostOptions) (*social.APIResponse[social.PublishedPost], error) {
	if err := f.ValidatePost(opts); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.posted = append(f.posted, acc.ID)
	f.mu.Unlock()
	if f.post != nil {
		return f.post(acc, opts)
	}
	status := social.StatusPublished
	if opts.ScheduleTime != nil {
		status = social.StatusScheduled
	}
	return social.OK(social.PublishedPost{ID: "p-" + acc.ID, URL: "https://example/" + acc.ID, Status: status}), nil
}

func (f *fakeProvider) Revoke(ctx context.Context, acc *social.SocialAccount) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.revoked = append(f.revoked, acc.AccessToken)
	return nil
}

// facebookFake resolves page metadata while linking.
type facebookFake struct {
	*fakeProvider
}

func (f facebookFake) ResolveMetadata(ctx context.Context, acc *social.SocialAccount) (*social.APIResponse[social.AccountMetadata], error) {
	return social.OK(social.AccountMetadata{Pages: []social.FacebookPage{{ID: "page1", Name: "Shop", AccessToken: "page-token"}}}), nil
}

type memAccounts struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*models.SocialAccount
}

func newMemAccounts() *memAccounts {
	return &memAccounts{rows: map[int64]*models.SocialAccount{}}
}

func (m *memAccounts) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, row := range m.rows {
		if row.Platform == sa.Platform && row.AccountID == sa.AccountID {
			cp := *sa
			cp.ID = id
			cp.IsConnected = true
			m.rows[id] = &cp
			return id, nil
		}
	}
	m.nextID++
	cp := *sa
	cp.ID = m.nextID
	cp.IsConnected = true
	cp.AccountStatus = models.AccountStatusActive
	m.rows[cp.ID] = &cp
	return cp.ID, nil
}

func (m *memAccounts) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memAccounts) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	all, _ := m.ListAll(ctx)
	var out []*models.SocialAccount
	for _, row := range all {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memAccounts) ListAll(ctx context.Context) ([]*models.SocialAccount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*models.SocialAccount, 0, len(m.rows))
	for _, row := range m.rows {
		cp := *row
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memAccounts) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[accountID]
	return ok && row.UserID == userID, nil
}

func (m *memAccounts) SetToken(ctx context.Context, sa *models.SocialAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sa.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.AccessToken = sa.AccessToken
	if sa.RefreshToken != "" {
		row.RefreshToken = sa.RefreshToken
	}
	row.TokenExpiresAt = sa.TokenExpiresAt
	row.IsConnected = sa.IsConnected
	return nil
}

func (m *memAccounts) SetStatus(ctx context.Context, sa *models.SocialAccount) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[sa.ID]
	if !ok {
		return repository.ErrNotFound
	}
	row.AccountStatus = sa.AccountStatus
	row.StatusMessage = sa.StatusMessage
	row.IsConnected = sa.IsConnected
	row.LastCheckedAt = sa.LastCheckedAt
	if sa.Username != "" {
		row.Username = sa.Username
	}
	return nil
}

func (m *memAccounts) Remove(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(m.rows, id)
	return nil
}

type memPosts struct {
	mu   sync.Mutex
	rows map[string]*models.Post
}

func (m *memPosts) Create(ctx context.Context, post *models.Post) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = map[string]*models.Post{}
	}
	cp := *post
	m.rows[post.ID] = &cp
	return nil
}

func (m *memPosts) GetByID(ctx context.Context, id string) (*models.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *row
	return &cp, nil
}

func (m *memPosts) GetByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	return nil, nil
}

func (m *memPosts) UpdatePostStatus(ctx context.Context, status, postID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[postID]
	if !ok {
		return repository.ErrNotFound
	}
	row.Status = status
	return nil
}

type memHistory struct {
	mu   sync.Mutex
	rows []*models.PostingHistory
}

func (m *memHistory) Create(ctx context.Context, ph *models.PostingHistory) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, ph)
	return int64(len(m.rows)), nil
}

func (m *memHistory) GetByUserID(ctx context.Context, userID int64, limit int) ([]*models.PostingHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.PostingHistory
	for _, row := range m.rows {
		if row.UserID == userID {
			out = append(out, row)
		}
	}
	return out, nil
}

func (m *memHistory) GetByPostID(ctx context.Context, postID string) ([]*models.PostingHistory, error) {
	return nil, nil
}

type fakeScheduler struct {
	postID string
	at     time.Time
	err    error
}

func (f *fakeScheduler) Schedule(ctx context.Context, postID string, at time.Time) error {
	f.postID, f.at = postID, at
	return f.err
}
