package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/lib/pq"
	"github.com/maheshrc27/postflow/internal/models"
)

var ErrNotFound = errors.New("record not found")

type SocialAccountRepository interface {
	Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.SocialAccount, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	ListAll(ctx context.Context) ([]*models.SocialAccount, error)
	CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error)
	SetToken(ctx context.Context, sa *models.SocialAccount) error
	SetStatus(ctx context.Context, sa *models.SocialAccount) error
	Remove(ctx context.Context, id int64) error
}

type socialAccountRepository struct {
	db *sql.DB
}

func NewSocialAccountRepository(db *sql.DB) SocialAccountRepository {
	return &socialAccountRepository{db: db}
}

const socialAccountColumns = `id, user_id, platform, account_id, account_name, account_username,
	profile_picture_url, access_token, refresh_token, token_expires_at, scopes, metadata,
	is_connected, account_status, status_message, last_checked_at, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanSocialAccount(s scanner) (*models.SocialAccount, error) {
	var sa models.SocialAccount
	err := s.Scan(&sa.ID, &sa.UserID, &sa.Platform, &sa.AccountID, &sa.AccountName, &sa.Username,
		&sa.ProfilePicture, &sa.AccessToken, &sa.RefreshToken, &sa.TokenExpiresAt,
		pq.Array(&sa.Scopes), &sa.Metadata, &sa.IsConnected, &sa.AccountStatus, &sa.StatusMessage,
		&sa.LastCheckedAt, &sa.CreatedAt, &sa.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sa, nil
}

// Upsert stores a freshly linked account. Linking the same platform account
// again refreshes its tokens and profile and reconnects it.
func (r *socialAccountRepository) Upsert(ctx context.Context, sa *models.SocialAccount) (int64, error) {
	query := `
		INSERT INTO social_accounts(
			user_id,
			platform,
			account_id,
			account_name,
			account_username,
			profile_picture_url,
			access_token,
			refresh_token,
			token_expires_at,
			scopes,
			metadata
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (platform, account_id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			account_name = EXCLUDED.account_name,
			account_username = EXCLUDED.account_username,
			profile_picture_url = EXCLUDED.profile_picture_url,
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(NULLIF(EXCLUDED.refresh_token, ''), social_accounts.refresh_token),
			token_expires_at = EXCLUDED.token_expires_at,
			scopes = EXCLUDED.scopes,
			metadata = EXCLUDED.metadata,
			is_connected = TRUE,
			account_status = 'active',
			status_message = '',
			updated_at = CURRENT_TIMESTAMP
		RETURNING id
	`

	metadata := sa.Metadata
	if len(metadata) == 0 {
		metadata = []byte("{}")
	}

	var id int64
	err := r.db.QueryRowContext(ctx, query,
		sa.UserID,
		sa.Platform,
		sa.AccountID,
		sa.AccountName,
		sa.Username,
		sa.ProfilePicture,
		sa.AccessToken,
		sa.RefreshToken,
		sa.TokenExpiresAt,
		pq.Array(sa.Scopes),
		metadata,
	).Scan(&id)
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}
	return id, nil
}

func (r *socialAccountRepository) GetByID(ctx context.Context, id int64) (*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE id = $1`
	sa, err := scanSocialAccount(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return sa, nil
}

func (r *socialAccountRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts WHERE user_id = $1 ORDER BY id`
	return r.list(ctx, query, userID)
}

func (r *socialAccountRepository) ListAll(ctx context.Context) ([]*models.SocialAccount, error) {
	query := `SELECT ` + socialAccountColumns + ` FROM social_accounts ORDER BY id`
	return r.list(ctx, query)
}

func (r *socialAccountRepository) list(ctx context.Context, query string, args ...any) ([]*models.SocialAccount, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var accounts []*models.SocialAccount
	for rows.Next() {
		sa, err := scanSocialAccount(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		accounts = append(accounts, sa)
	}
	if err := rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return accounts, nil
}

func (r *socialAccountRepository) CheckByUserID(ctx context.Context, accountID, userID int64) (bool, error) {
	query := "SELECT 1 FROM social_accounts WHERE id = $1 AND user_id = $2"

	var result int
	err := r.db.QueryRowContext(ctx, query, accountID, userID).Scan(&result)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

// SetToken stores refreshed credentials. An empty refresh token keeps the
// stored one.
func (r *socialAccountRepository) SetToken(ctx context.Context, sa *models.SocialAccount) error {
	query := `
		UPDATE social_accounts
		SET
			access_token = $2,
			refresh_token = COALESCE(NULLIF($3, ''), refresh_token),
			token_expires_at = $4,
			scopes = $5,
			is_connected = $6,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, query, sa.ID, sa.AccessToken, sa.RefreshToken, sa.TokenExpiresAt, pq.Array(sa.Scopes), sa.IsConnected)
}

// SetStatus records the result of a health check. Empty profile fields keep
// the stored values.
func (r *socialAccountRepository) SetStatus(ctx context.Context, sa *models.SocialAccount) error {
	checked := sa.LastCheckedAt
	if checked == nil {
		now := time.Now()
		checked = &now
	}
	query := `
		UPDATE social_accounts
		SET
			account_status = $2,
			status_message = $3,
			is_connected = $4,
			last_checked_at = $5,
			account_username = COALESCE(NULLIF($6, ''), account_username),
			account_name = COALESCE(NULLIF($7, ''), account_name),
			profile_picture_url = COALESCE(NULLIF($8, ''), profile_picture_url),
			updated_at = CURRENT_TIMESTAMP
		WHERE id = $1
	`
	return r.exec(ctx, query, sa.ID, sa.AccountStatus, sa.StatusMessage, sa.IsConnected, checked,
		sa.Username, sa.AccountName, sa.ProfilePicture)
}

func (r *socialAccountRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM social_accounts WHERE id = $1`
	return r.exec(ctx, query, id)
}

// exec runs a single row update and reports ErrNotFound when no row matched.
func (r *socialAccountRepository) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
