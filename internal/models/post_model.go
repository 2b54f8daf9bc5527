package models

import "time"

// Post is one publish request fanned out to several accounts. Content holds
// the JSON encoded post options and per-platform overrides.
type Post struct {
	ID            string     `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"user_id"`
	Content       []byte     `db:"content" json:"-"`
	AccountIDs    []int64    `db:"account_ids" json:"account_ids"`
	ScheduledTime *time.Time `db:"scheduled_time" json:"scheduled_time,omitempty"`
	Status        string     `db:"status" json:"status"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// A post is pending until published, or scheduled while it waits for the
// queue.
const (
	PostStatusPending   = "pending"
	PostStatusScheduled = "scheduled"
	PostStatusPosted    = "posted"
	PostStatusPartial   = "partial"
	PostStatusFailed    = "failed"
)

type MediaAsset struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user_id"`
	FileName  string    `db:"file_name" json:"file_name"`
	FileType  string    `db:"file_type" json:"file_type"`
	FileSize  int64     `db:"file_size" json:"file_size"`
	FileURL   string    `db:"file_url" json:"file_url"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
