package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/maheshrc27/postflow/internal/manager"
	"github.com/maheshrc27/postflow/internal/models"
	"github.com/maheshrc27/postflow/internal/repository"
	"github.com/maheshrc27/postflow/internal/social"
	"github.com/maheshrc27/postflow/pkg/utils"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

const stateLifetime = 15 * time.Minute

var (
	ErrAccountNotFound = errors.New("social account not found")
	ErrInvalidState    = errors.New("invalid or expired oauth state")
)

type AccountService interface {
	AuthURL(ctx context.Context, userID int64, platform social.Platform) (string, error)
	Callback(ctx context.Context, platform social.Platform, code, state string) (*models.SocialAccount, error)
	List(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	Disconnect(ctx context.Context, userID, accountID int64) error
	LoadAccounts(ctx context.Context) (int, error)
	Sync(ctx context.Context, userID int64, accountIDs ...int64) ([]*models.SocialAccount, error)
	RefreshTokens(ctx context.Context, window time.Duration) []manager.RefreshResult
	CheckStatuses(ctx context.Context, userID int64) ([]manager.AccountStatus, error)
	CheckAllStatuses(ctx context.Context) []manager.AccountStatus
	Analytics(ctx context.Context, userID int64, query social.AnalyticsQuery, platforms ...social.Platform) (manager.CrossPlatformAnalytics, error)
	Platforms() []social.Platform
	Manager(userID int64) *manager.Manager
}

type accountService struct {
	registry  *Registry
	sa        repository.SocialAccountRepository
	secretKey string
	key       []byte
}

func NewAccountService(registry *Registry, sa repository.SocialAccountRepository, secretKey, encryptionKey string) AccountService {
	return &accountService{
		registry:  registry,
		sa:        sa,
		secretKey: secretKey,
		key:       []byte(encryptionKey),
	}
}

func (s *accountService) Manager(userID int64) *manager.Manager {
	return s.registry.For(userID)
}

func (s *accountService) Platforms() []social.Platform {
	return s.registry.Platforms()
}

// AuthURL starts linking an account. The signed state carries the user and
// the encrypted PKCE verifier back to the callback.
func (s *accountService) AuthURL(ctx context.Context, userID int64, platform social.Platform) (string, error) {
	m := s.registry.For(userID)
	if _, err := m.Provider(platform); err != nil {
		return "", err
	}
	nonce, err := gonanoid.New()
	if err != nil {
		return "", err
	}
	// The verifier only exists once the provider has built its URL, so the
	// signed state replaces the nonce afterwards.
	req, err := m.GetAuthURL(platform, nonce)
	if err != nil {
		return "", err
	}

	claims := utils.StateClaims{UserID: userID, Platform: string(platform)}
	if req.CodeVerifier != "" {
		if claims.Verifier, err = utils.Encrypt(req.CodeVerifier, s.key); err != nil {
			return "", err
		}
	}
	state, err := utils.GenerateState(s.secretKey, claims, nonce, stateLifetime)
	if err != nil {
		return "", err
	}
	return replaceState(req.URL, state)
}

func (s *accountService) Callback(ctx context.Context, platform social.Platform, code, state string) (*models.SocialAccount, error) {
	claims, err := utils.ValidateState(s.secretKey, state, string(platform))
	if err != nil {
		slog.Info(err.Error())
		return nil, ErrInvalidState
	}
	verifier, err := utils.Decrypt(claims.Verifier, s.key)
	if err != nil {
		slog.Info(err.Error())
		return nil, ErrInvalidState
	}

	m := s.registry.For(claims.UserID)
	p, err := m.Provider(platform)
	if err != nil {
		return nil, err
	}

	token, err := m.ExchangeCode(ctx, platform, social.ExchangeParams{Code: code, CodeVerifier: verifier})
	if err = responseErr(token, err); err != nil {
		return nil, fmt.Errorf("exchange %s code: %w", platform, err)
	}

	acc := social.SocialAccount{UserID: claims.UserID, Platform: platform, PlatformID: token.Data.PlatformID}
	acc.ApplyToken(token.Data)

	if r, ok := p.(social.MetadataResolver); ok {
		meta, err := r.ResolveMetadata(ctx, &acc)
		if err = responseErr(meta, err); err != nil {
			return nil, fmt.Errorf("resolve %s metadata: %w", platform, err)
		}
		acc.Metadata = meta.Data
	}

	profile, err := p.GetProfile(ctx, &acc)
	if err = responseErr(profile, err); err != nil {
		return nil, fmt.Errorf("fetch %s profile: %w", platform, err)
	}
	if profile.Data.ID != "" {
		acc.PlatformID = profile.Data.ID
	}
	acc.Username = profile.Data.Username
	acc.DisplayName = profile.Data.DisplayName
	acc.AvatarURL = profile.Data.AvatarURL

	stored, err := fromSocial(acc, s.key)
	if err != nil {
		return nil, err
	}
	if stored.ID, err = s.sa.Upsert(ctx, stored); err != nil {
		return nil, err
	}

	acc.ID = accountKey(stored.ID)
	if err := m.AddAccount(acc); err != nil {
		return nil, err
	}
	slog.Info("account linked", "platform", platform, "user", claims.UserID, "account", stored.ID)
	return stored, nil
}

func (s *accountService) List(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.sa.ListByUserID(ctx, userID)
}

// Disconnect revokes the token where the platform supports it and deletes the
// stored account.
func (s *accountService) Disconnect(ctx context.Context, userID, accountID int64) error {
	ok, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrAccountNotFound
	}
	stored, err := s.sa.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	m := s.registry.For(userID)
	if acc, err := toSocial(stored, s.key); err == nil {
		if err := m.AddAccount(acc); err == nil {
			m.Disconnect(ctx, acc.Platform, acc.ID)
		}
	} else {
		slog.Info(err.Error())
	}
	return s.sa.Remove(ctx, accountID)
}

// LoadAccounts registers every stored account with its user's manager.
func (s *accountService) LoadAccounts(ctx context.Context) (int, error) {
	accounts, err := s.sa.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	loaded := 0
	for _, stored := range accounts {
		if s.register(stored) {
			loaded++
		}
	}
	slog.Info("accounts loaded", "count", loaded, "stored", len(accounts))
	return loaded, nil
}

// Sync reloads the given accounts of userID, or all of them when none are
// named, from storage into the user's manager and returns the stored rows.
func (s *accountService) Sync(ctx context.Context, userID int64, accountIDs ...int64) ([]*models.SocialAccount, error) {
	accounts, err := s.sa.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*models.SocialAccount, len(accounts))
	for _, sa := range accounts {
		byID[sa.ID] = sa
	}
	if len(accountIDs) == 0 {
		for _, sa := range accounts {
			s.register(sa)
		}
		return accounts, nil
	}

	out := make([]*models.SocialAccount, 0, len(accountIDs))
	for _, id := range accountIDs {
		sa, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, id)
		}
		s.register(sa)
		out = append(out, sa)
	}
	return out, nil
}

func (s *accountService) register(stored *models.SocialAccount) bool {
	acc, err := toSocial(stored, s.key)
	if err != nil {
		slog.Warn("skipping stored account", "account", stored.ID, "err", err)
		return false
	}
	if err := s.registry.For(stored.UserID).AddAccount(acc); err != nil {
		slog.Warn("skipping stored account", "account", stored.ID, "err", err)
		return false
	}
	return true
}

// RefreshTokens refreshes every user's expiring tokens and persists the new
// credentials. Accounts whose refresh was rejected are stored disconnected.
func (s *accountService) RefreshTokens(ctx context.Context, window time.Duration) []manager.RefreshResult {
	var all []manager.RefreshResult
	for _, userID := range s.registry.Users() {
		m := s.registry.For(userID)
		for _, res := range m.RefreshExpiringTokens(ctx, window) {
			all = append(all, res)
			id, err := strconv.ParseInt(res.AccountID, 10, 64)
			if err != nil {
				continue
			}
			switch {
			case res.Refreshed && res.Account != nil:
				stored, err := fromSocial(*res.Account, s.key)
				if err != nil {
					slog.Info(err.Error())
					continue
				}
				if err := s.sa.SetToken(ctx, stored); err != nil {
					slog.Warn("persist refreshed token failed", "account", id, "err", err)
				}
			case res.Error != nil && res.Error.Code == social.CodeAuthFailed:
				s.storeStatus(ctx, id, models.AccountStatusError, res.Error.Message, false, nil)
			}
		}
	}
	return all
}

func (s *accountService) CheckStatuses(ctx context.Context, userID int64) ([]manager.AccountStatus, error) {
	if _, err := s.Sync(ctx, userID); err != nil {
		return nil, err
	}
	return s.checkAndStore(ctx, userID), nil
}

func (s *accountService) CheckAllStatuses(ctx context.Context) []manager.AccountStatus {
	var all []manager.AccountStatus
	for _, userID := range s.registry.Users() {
		all = append(all, s.checkAndStore(ctx, userID)...)
	}
	return all
}

func (s *accountService) checkAndStore(ctx context.Context, userID int64) []manager.AccountStatus {
	m := s.registry.For(userID)
	statuses := m.CheckAccountStatuses(ctx)
	for _, st := range statuses {
		id, err := strconv.ParseInt(st.AccountID, 10, 64)
		if err != nil {
			continue
		}
		var message string
		if st.Error != nil {
			message = st.Error.Message
		}
		var profile *social.SocialAccount
		if acc, ok := m.Account(st.Platform, st.AccountID); ok && st.Status == manager.StatusActive {
			profile = &acc
		}
		s.storeStatus(ctx, id, string(st.Status), message, st.Connected, profile)
	}
	return statuses
}

func (s *accountService) storeStatus(ctx context.Context, id int64, status, message string, connected bool, profile *social.SocialAccount) {
	now := time.Now()
	sa := &models.SocialAccount{
		ID:            id,
		AccountStatus: status,
		StatusMessage: message,
		IsConnected:   connected,
		LastCheckedAt: &now,
	}
	if profile != nil {
		sa.Username = profile.Username
		sa.AccountName = profile.DisplayName
		sa.ProfilePicture = profile.AvatarURL
	}
	if err := s.sa.SetStatus(ctx, sa); err != nil {
		slog.Warn("persist account status failed", "account", id, "err", err)
	}
}

func (s *accountService) Analytics(ctx context.Context, userID int64, query social.AnalyticsQuery, platforms ...social.Platform) (manager.CrossPlatformAnalytics, error) {
	if _, err := s.Sync(ctx, userID); err != nil {
		return manager.CrossPlatformAnalytics{}, err
	}
	return s.registry.For(userID).GetCrossPlatformAnalytics(ctx, query, platforms...), nil
}

func replaceState(rawURL, state string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// responseErr folds a provider call into a single error.
func responseErr[T any](res *social.APIResponse[T], err error) error {
	if err != nil {
		return err
	}
	if res == nil {
		return errors.New("no response")
	}
	return res.Err()
}
