package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/introslabs/intros/internal/db"
)

// UsageAction selects which daily counter an operation consumes.
type UsageAction string

const (
	ActionProfileView       UsageAction = "profile_views"
	ActionConnectionRequest UsageAction = "connection_requests"
)

// Column returns the counter column for the action, or false for an
// unknown action. Never interpolate unvalidated strings into SQL.
func (a UsageAction) Column() (string, bool) {
	switch a {
	case ActionProfileView, ActionConnectionRequest:
		return string(a), true
	}
	return "", false
}

// UsageRepository maintains the per-account per-day counters.
type UsageRepository struct {
	db *gorm.DB
}

func NewUsageRepository(database *gorm.DB) *UsageRepository {
	return &UsageRepository{db: database}
}

// Increment is the atomic upsert behind RateLimiter.Record: one round
// trip that creates today's row with the counter at 1 or bumps the
// existing counter. Race-safe under concurrent calls for the same
// account via the composite (handle, day) primary key.
func (r *UsageRepository) Increment(ctx context.Context, handle, day string, action UsageAction) error {
	column, ok := action.Column()
	if !ok {
		return errors.New("unknown usage action: " + string(action))
	}

	row := db.DailyUsage{Handle: handle, Day: day}
	switch action {
	case ActionProfileView:
		row.ProfileViews = 1
	case ActionConnectionRequest:
		row.ConnectionRequests = 1
	}

	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "handle"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				column: gorm.Expr(column + " + 1"),
			}),
		}).
		Create(&row).Error
}

// Get returns the counters for (handle, day); a missing row reads as
// zeros, matching the lazy-creation contract.
func (r *UsageRepository) Get(ctx context.Context, handle, day string) (db.DailyUsage, error) {
	var usage db.DailyUsage
	err := r.db.WithContext(ctx).
		Where("handle = ? AND day = ?", handle, day).
		First(&usage).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return db.DailyUsage{Handle: handle, Day: day}, nil
	}
	return usage, err
}
