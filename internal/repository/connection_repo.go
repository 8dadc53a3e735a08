package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/db"
)

// ConnectionRepository provides data access for the connection state
// machine. Uniqueness per unordered pair is enforced by the pair_key
// unique index, not by read-then-write checks.
type ConnectionRepository struct {
	db *gorm.DB
}

func NewConnectionRepository(database *gorm.DB) *ConnectionRepository {
	return &ConnectionRepository{db: database}
}

// GetByPair returns the connection row for the unordered pair, or nil if
// none exists.
func (r *ConnectionRepository) GetByPair(ctx context.Context, a, b string) (*db.Connection, error) {
	var conn db.Connection
	err := r.db.WithContext(ctx).
		Where("pair_key = ?", db.PairKey(a, b)).
		First(&conn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conn, nil
}

// CreatePending inserts a new pending request. A concurrent insert for
// the same unordered pair loses on the pair_key index and surfaces as
// gorm.ErrDuplicatedKey.
func (r *ConnectionRepository) CreatePending(ctx context.Context, from, to string) error {
	return r.db.WithContext(ctx).Create(&db.Connection{
		PairKey:    db.PairKey(from, to),
		FromHandle: from,
		ToHandle:   to,
		Status:     db.ConnectionPending,
	}).Error
}

// Accept flips the matching pending row to accepted. Returns false when
// no such pending request exists (already handled, expired, or never
// sent).
func (r *ConnectionRepository) Accept(ctx context.Context, from, to string) (bool, error) {
	now := time.Now().UTC()
	res := r.db.WithContext(ctx).Model(&db.Connection{}).
		Where("from_handle = ? AND to_handle = ? AND status = ?", from, to, db.ConnectionPending).
		Updates(map[string]interface{}{
			"status":       db.ConnectionAccepted,
			"responded_at": now,
		})
	return res.RowsAffected > 0, res.Error
}

// DeletePending hard-deletes the matching pending row. The silent
// decline: no tombstone, no signal to the sender.
func (r *ConnectionRepository) DeletePending(ctx context.Context, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("from_handle = ? AND to_handle = ? AND status = ?", from, to, db.ConnectionPending).
		Delete(&db.Connection{})
	return res.RowsAffected > 0, res.Error
}

// AreConnected reports whether an accepted connection exists for the
// unordered pair. Symmetric by construction of the pair key.
func (r *ConnectionRepository) AreConnected(ctx context.Context, a, b string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Connection{}).
		Where("pair_key = ? AND status = ?", db.PairKey(a, b), db.ConnectionAccepted).
		Count(&count).Error
	return count > 0, err
}

// ExpireStale deletes pending rows created before the cutoff and returns
// how many were removed. Idempotent; expiry sends no notification.
func (r *ConnectionRepository) ExpireStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", db.ConnectionPending, cutoff).
		Delete(&db.Connection{})
	return res.RowsAffected, res.Error
}

// RequestRow is a connection joined with the counterpart's profile
// fields, shaped for listings and notifications.
type RequestRow struct {
	ConnectionID  uint64     `json:"connection_id"`
	Handle        string     `json:"handle"`
	Name          string     `json:"name"`
	Interests     string     `json:"interests"`
	LookingFor    string     `json:"looking_for"`
	Location      string     `json:"location"`
	ContactHandle string     `json:"contact_handle"`
	ContactPublic bool       `json:"contact_public"`
	CreatedAt     time.Time  `json:"created_at"`
	RespondedAt   *time.Time `json:"responded_at"`
}

// PendingFor lists incoming pending requests for an account, newest
// first, with the requester's profile fields.
func (r *ConnectionRepository) PendingFor(ctx context.Context, to string) ([]RequestRow, error) {
	var rows []RequestRow
	err := r.db.WithContext(ctx).
		Table("connections c").
		Select(`c.id AS connection_id, c.from_handle AS handle, p.name, p.interests,
			p.looking_for, p.location, p.contact_handle, p.contact_public,
			c.created_at, c.responded_at`).
		Joins("JOIN profiles p ON p.handle = c.from_handle").
		Where("c.to_handle = ? AND c.status = ?", to, db.ConnectionPending).
		Order("c.created_at DESC").
		Scan(&rows).Error
	return rows, err
}

// ConnectionsOf lists accepted connections for an account with the peer's
// profile, most recently accepted first.
func (r *ConnectionRepository) ConnectionsOf(ctx context.Context, handle string) ([]RequestRow, error) {
	var rows []RequestRow
	err := r.db.WithContext(ctx).
		Table("connections c").
		Select(`c.id AS connection_id,
			CASE WHEN c.from_handle = ? THEN c.to_handle ELSE c.from_handle END AS handle,
			p.name, p.interests, p.looking_for, p.location,
			p.contact_handle, p.contact_public, c.created_at, c.responded_at`, handle).
		Joins(`JOIN profiles p ON p.handle =
			CASE WHEN c.from_handle = ? THEN c.to_handle ELSE c.from_handle END`, handle).
		Where("c.status = ? AND (c.from_handle = ? OR c.to_handle = ?)",
			db.ConnectionAccepted, handle, handle).
		Order("c.responded_at DESC").
		Scan(&rows).Error
	return rows, err
}

// AcceptedFrom lists requests the account sent that were accepted, with
// the accepter's profile. The notification sweep reads this to tell
// senders their request went through.
func (r *ConnectionRepository) AcceptedFrom(ctx context.Context, from string) ([]RequestRow, error) {
	var rows []RequestRow
	err := r.db.WithContext(ctx).
		Table("connections c").
		Select(`c.id AS connection_id, c.to_handle AS handle, p.name, p.interests,
			p.looking_for, p.location, p.contact_handle, p.contact_public,
			c.created_at, c.responded_at`).
		Joins("JOIN profiles p ON p.handle = c.to_handle").
		Where("c.from_handle = ? AND c.status = ?", from, db.ConnectionAccepted).
		Order("c.responded_at DESC").
		Scan(&rows).Error
	return rows, err
}
