package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/introslabs/intros/internal/db"
)

// ProfileRepository provides data access for Profile rows. It knows
// nothing about the relevance index; services reindex after mutations.
type ProfileRepository struct {
	db *gorm.DB
}

func NewProfileRepository(database *gorm.DB) *ProfileRepository {
	return &ProfileRepository{db: database}
}

// Upsert performs the full-replace profile mutation: insert on first
// write, overwrite every mutable field on conflict with the handle's
// existing row.
func (r *ProfileRepository) Upsert(ctx context.Context, profile *db.Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "handle"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "interests", "looking_for", "location", "bio",
				"contact_handle", "contact_public", "updated_at",
			}),
		}).
		Create(profile).Error
}

// Patch updates a subset of profile fields. Keys must be column names
// already validated by the service layer. Zero rows affected means the
// profile does not exist.
func (r *ProfileRepository) Patch(ctx context.Context, handle string, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&db.Profile{}).
		Where("handle = ?", handle).
		Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *ProfileRepository) GetByHandle(ctx context.Context, handle string) (*db.Profile, error) {
	var profile db.Profile
	err := r.db.WithContext(ctx).Where("handle = ?", handle).First(&profile).Error
	if err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetByHandles fetches profiles for a ranked handle list. Order is not
// preserved; callers re-order against their ranking.
func (r *ProfileRepository) GetByHandles(ctx context.Context, handles []string) ([]db.Profile, error) {
	if len(handles) == 0 {
		return nil, nil
	}
	var profiles []db.Profile
	err := r.db.WithContext(ctx).Where("handle IN ?", handles).Find(&profiles).Error
	return profiles, err
}

// ListByRecency returns all profiles newest-first. This is the browse
// candidate set; the corpus is small (thousands) so the full scan is the
// documented trade-off.
func (r *ProfileRepository) ListByRecency(ctx context.Context) ([]db.Profile, error) {
	var profiles []db.Profile
	err := r.db.WithContext(ctx).
		Order("updated_at DESC, id DESC").
		Find(&profiles).Error
	return profiles, err
}

func (r *ProfileRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&db.Profile{}).Count(&count).Error
	return count, err
}
