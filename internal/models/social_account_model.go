package models

import (
	"time"
)

// SocialAccount is the stored form of a linked account. Tokens are kept
// encrypted and Metadata holds the platform extras as JSON.
type SocialAccount struct {
	ID             int64      `db:"id" json:"id"`
	UserID         int64      `db:"user_id" json:"user_id"`
	Platform       string     `db:"platform" json:"platform"`
	AccountID      string     `db:"account_id" json:"account_id"`
	AccountName    string     `db:"account_name" json:"account_name"`
	Username       string     `db:"account_username" json:"account_username"`
	ProfilePicture string     `db:"profile_picture_url" json:"profile_picture"`
	AccessToken    string     `db:"access_token" json:"-"`
	RefreshToken   string     `db:"refresh_token" json:"-"`
	TokenExpiresAt *time.Time `db:"token_expires_at" json:"token_expires_at,omitempty"`
	Scopes         []string   `db:"scopes" json:"scopes"`
	Metadata       []byte     `db:"metadata" json:"-"`
	IsConnected    bool       `db:"is_connected" json:"is_connected"`
	AccountStatus  string     `db:"account_status" json:"account_status"`
	StatusMessage  string     `db:"status_message" json:"status_message,omitempty"`
	LastCheckedAt  *time.Time `db:"last_checked_at" json:"last_checked_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

const (
	AccountStatusActive      = "active"
	AccountStatusError       = "error"
	AccountStatusRateLimited = "rate_limited"
)
