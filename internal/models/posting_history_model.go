package models

import "time"

// PostingHistory is the outcome of one post on one account.
type PostingHistory struct {
	ID             int64     `db:"id" json:"id"`
	UserID         int64     `db:"user_id" json:"user_id"`
	PostID         string    `db:"post_id" json:"post_id"`
	AccountID      int64     `db:"account_id" json:"account_id"`
	Platform       string    `db:"platform" json:"platform"`
	PlatformPostID string    `db:"platform_post_id" json:"platform_post_id,omitempty"`
	PostURL        string    `db:"post_url" json:"post_url,omitempty"`
	Status         string    `db:"status" json:"status"`
	ErrorCode      string    `db:"error_code" json:"error_code,omitempty"`
	ErrorMessage   string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
