package models

import (
	"time"
)

// Account roles. Privileged accounts bypass purchase and access checks.
const (
	RoleRegular    = "REGULAR"
	RolePrivileged = "PRIVILEGED"
)

// Account represents an authenticated principal
type Account struct {
	ID        string    `db:"id" json:"id"`
	Email     string    `db:"email" json:"email"`
	Name      string    `db:"name" json:"name"`
	Password  string    `db:"password" json:"-"` // Password hash, not returned in JSON
	Role      string    `db:"role" json:"role"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// IsPrivileged reports whether the account bypasses purchase and access checks.
func (a *Account) IsPrivileged() bool {
	return a != nil && a.Role == RolePrivileged
}

// Transaction kinds. Purchase amounts are negative, recharge and refund positive.
const (
	TransactionRecharge = "recharge"
	TransactionPurchase = "purchase"
	TransactionRefund   = "refund"
)

// Transaction statuses
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
)

// WalletAccount holds the point balance for one account.
// Invariant: Balance equals the sum of all completed transaction amounts
// and never goes negative.
type WalletAccount struct {
	AccountID string    `db:"account_id" json:"accountId"`
	Balance   int64     `db:"balance" json:"balance"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// WalletTransaction is an immutable ledger entry. Rows are appended, never updated.
type WalletTransaction struct {
	ID               string    `db:"id" json:"id"`
	AccountID        string    `db:"account_id" json:"accountId"`
	Kind             string    `db:"kind" json:"kind"`
	Amount           int64     `db:"amount" json:"amount"`
	RelatedContentID *string   `db:"related_content_id" json:"relatedContentId,omitempty"`
	Description      string    `db:"description" json:"description"`
	Status           string    `db:"status" json:"status"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
}

// Content kinds. The catalog resolves the variant once when a row is read;
// callers never infer it from field shape.
const (
	ContentLesson = "lesson"
	ContentUnit   = "unit"
)

// ContentItem is a purchasable catalog entry. Price 0 means the item is free
// and access is implicit.
type ContentItem struct {
	ID        string    `db:"id" json:"id"`
	Kind      string    `db:"kind" json:"kind"`
	Title     string    `db:"title" json:"title"`
	Price     int64     `db:"price" json:"price"`
	VideoID   *string   `db:"video_id" json:"videoId,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Grant sources
const (
	GrantSourcePurchase = "purchase"
	GrantSourceAdmin    = "admin"
)

// AccessGrant is durable proof that an account may access a content item.
// At most one row exists per (account, content) pair.
type AccessGrant struct {
	AccountID string    `db:"account_id" json:"accountId"`
	ContentID string    `db:"content_id" json:"contentId"`
	Source    string    `db:"source" json:"source"`
	GrantedAt time.Time `db:"granted_at" json:"grantedAt"`
}

// PurchaseRecord links one wallet transaction to one access grant. The
// unique constraint on (account_id, content_id) is the idempotency boundary
// that prevents double-charging.
type PurchaseRecord struct {
	ID            string    `db:"id" json:"id"`
	TransactionID string    `db:"transaction_id" json:"transactionId"`
	AccountID     string    `db:"account_id" json:"accountId"`
	ContentID     string    `db:"content_id" json:"contentId"`
	Price         int64     `db:"price" json:"price"`
	Status        string    `db:"status" json:"status"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// VideoProgress is the per (account, video) playback record. All fields are
// forward-only: merges take maxima or add non-negative deltas, so applying
// samples in any order converges to the same state.
type VideoProgress struct {
	AccountID       string    `db:"account_id" json:"accountId"`
	VideoID         string    `db:"video_id" json:"videoId"`
	CurrentTime     float64   `db:"current_time_seconds" json:"currentTime"`
	Duration        float64   `db:"duration_seconds" json:"duration"`
	ProgressPercent int       `db:"progress_percent" json:"progressPercent"`
	TotalWatchTime  float64   `db:"total_watch_seconds" json:"totalWatchTime"`
	IsCompleted     bool      `db:"is_completed" json:"isCompleted"`
	LastWatchedAt   time.Time `db:"last_watched_at" json:"lastWatchedAt"`

	Checkpoints []VideoCheckpoint `db:"-" json:"reachedCheckpoints"`
}

// VideoCheckpoint marks a fixed playback-percentage milestone (10, 20, ... 100).
type VideoCheckpoint struct {
	AccountID  string    `db:"account_id" json:"-"`
	VideoID    string    `db:"video_id" json:"-"`
	Percentage int       `db:"percentage" json:"percentage"`
	VideoTime  float64   `db:"video_time_seconds" json:"time"`
	ReachedAt  time.Time `db:"reached_at" json:"reachedAt"`
}

// TelemetrySample is one playback report from a client. Clients are not
// trusted to send monotonic data; regressive fields are merged away, not
// rejected.
type TelemetrySample struct {
	CurrentTime       float64 `json:"currentTime"`
	Duration          float64 `json:"duration"`
	ProgressPercent   int     `json:"progressPercent"`
	WatchTimeDelta    float64 `json:"watchTimeDelta"`
	ReachedPercentage int     `json:"reachedPercentage"` // 0 means no checkpoint in this sample
}
