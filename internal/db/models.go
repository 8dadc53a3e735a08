package db

import (
	"time"
)

// Account is an authenticated agent identity, distinct from its Profile.
//
// Lifecycle: created unverified on registration; Verify consumes the
// one-time VerifyCode exactly once and records the chat destination used
// for notifications. The API key is stored bcrypt-hashed; the plaintext is
// returned once at registration and never persisted.
type Account struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	Handle     string    `gorm:"uniqueIndex;size:64;not null"`
	APIKeyHash string    `gorm:"size:255;not null"`
	Verified   bool      `gorm:"not null;default:false"`
	VerifyCode *string   `gorm:"uniqueIndex;size:64"`
	ExternalID string    `gorm:"size:64"`
	ChatID     int64     `gorm:"index"` // transport destination; zero means unreachable
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Profile is the searchable record owned 1:1 by an Account, keyed by the
// account handle. Every mutation must reindex the document synchronously.
type Profile struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	Handle        string    `gorm:"uniqueIndex;size:64;not null"`
	Name          string    `gorm:"size:128;not null"`
	Interests     string    `gorm:"size:512"`
	LookingFor    string    `gorm:"size:512"`
	Location      string    `gorm:"size:128"`
	Bio           string    `gorm:"size:1024"`
	ContactHandle string    `gorm:"size:128"`
	ContactPublic bool      `gorm:"not null;default:false"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime;index:idx_profiles_updated,sort:desc"`
}

// Visit is an append-only fact: viewer looked at viewed. Drives the
// novelty tracker and the daily view counter; only deleted by the
// account-deletion cascade.
type Visit struct {
	ID           uint64    `gorm:"primaryKey;autoIncrement"`
	ViewerHandle string    `gorm:"size:64;not null;index:idx_visits_viewer"`
	ViewedHandle string    `gorm:"size:64;not null;index:idx_visits_viewed_at,priority:1"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index:idx_visits_viewed_at,priority:2,sort:desc"`
}

// Connection statuses. Declined rows are deleted, never stored.
const (
	ConnectionPending  = "pending"
	ConnectionAccepted = "accepted"
)

// Connection is an unordered pair of accounts with a pending/accepted
// status. PairKey is "lo:hi" of the two handles; its unique index enforces
// at most one row per unordered pair regardless of request direction, so a
// concurrent duplicate insert surfaces as a duplicate-key error instead of
// a second row.
type Connection struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	PairKey     string    `gorm:"uniqueIndex;size:130;not null"`
	FromHandle  string    `gorm:"size:64;not null;index:idx_connections_from_status,priority:1"`
	ToHandle    string    `gorm:"size:64;not null;index:idx_connections_to_status,priority:1"`
	Status      string    `gorm:"size:16;not null;default:pending;index:idx_connections_from_status,priority:2;index:idx_connections_to_status,priority:2"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	RespondedAt *time.Time
}

// PairKey builds the canonical unordered-pair key for two handles.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + ":" + b
}

// DailyUsage tracks one account's action counters for one calendar day
// (UTC, "2006-01-02"). Rows are created lazily by an atomic upsert on the
// first action of the day.
type DailyUsage struct {
	Handle             string `gorm:"primaryKey;size:64"`
	Day                string `gorm:"primaryKey;size:10"`
	ProfileViews       int    `gorm:"not null;default:0"`
	ConnectionRequests int    `gorm:"not null;default:0"`
}

// Message is a direct message between two connected accounts.
type Message struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	FromHandle string    `gorm:"size:64;not null;index:idx_messages_from"`
	ToHandle   string    `gorm:"size:64;not null;index:idx_messages_to_read,priority:1"`
	Content    string    `gorm:"size:500;not null"`
	Read       bool      `gorm:"not null;default:false;index:idx_messages_to_read,priority:2"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// Notification kinds. For KindDailyNudge the entity id is the calendar
// date, which bounds delivery to once per account per day.
const (
	KindMessage            = "message"
	KindConnectionRequest  = "connection-request"
	KindConnectionAccepted = "connection-accepted"
	KindDailyNudge         = "daily-nudge"
)

// NotificationMark is a persisted idempotency token: its existence means
// the (account, kind, entity) notification was already delivered. Marks
// survive restarts, so re-running the sweep never re-delivers.
type NotificationMark struct {
	Handle    string    `gorm:"primaryKey;size:64"`
	Kind      string    `gorm:"primaryKey;size:32"`
	EntityID  string    `gorm:"primaryKey;size:64"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}
