package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/introslabs/intros/internal/db"
)

// NotificationRepository persists dedup marks: check-then-mark before
// delivering makes every sweep idempotent across restarts and instances.
type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(database *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: database}
}

// IsMarked reports whether the (account, kind, entity) notification was
// already delivered.
func (r *NotificationRepository) IsMarked(ctx context.Context, handle, kind, entityID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.NotificationMark{}).
		Where("handle = ? AND kind = ? AND entity_id = ?", handle, kind, entityID).
		Count(&count).Error
	return count > 0, err
}

// Mark records a delivery. DoNothing on conflict keeps re-marking
// harmless if two sweeps race.
func (r *NotificationRepository) Mark(ctx context.Context, handle, kind, entityID string) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&db.NotificationMark{
			Handle:   handle,
			Kind:     kind,
			EntityID: entityID,
		}).Error
}
