package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/introslabs/intros/internal/db"
)

// VisitRepository records and reads the append-only visit facts.
type VisitRepository struct {
	db *gorm.DB
}

func NewVisitRepository(database *gorm.DB) *VisitRepository {
	return &VisitRepository{db: database}
}

func (r *VisitRepository) Record(ctx context.Context, viewer, viewed string) error {
	return r.db.WithContext(ctx).Create(&db.Visit{
		ViewerHandle: viewer,
		ViewedHandle: viewed,
	}).Error
}

// SeenHandles returns the distinct set of profiles the viewer has ever
// visited. This is the novelty tracker's source of truth.
func (r *VisitRepository) SeenHandles(ctx context.Context, viewer string) ([]string, error) {
	var handles []string
	err := r.db.WithContext(ctx).Model(&db.Visit{}).
		Distinct("viewed_handle").
		Where("viewer_handle = ?", viewer).
		Pluck("viewed_handle", &handles).Error
	return handles, err
}

// VisitorRow is a visit joined with the visitor's profile fields.
type VisitorRow struct {
	VisitorHandle string    `json:"visitor_handle"`
	Name          string    `json:"name"`
	Interests     string    `json:"interests"`
	VisitedAt     time.Time `json:"visited_at"`
}

// VisitorsOf lists who visited a profile, newest first. Visitors without
// a profile are omitted (nothing useful to show).
func (r *VisitRepository) VisitorsOf(ctx context.Context, handle string, limit int) ([]VisitorRow, error) {
	var rows []VisitorRow
	err := r.db.WithContext(ctx).
		Table("visits v").
		Select("v.viewer_handle AS visitor_handle, p.name, p.interests, v.created_at AS visited_at").
		Joins("JOIN profiles p ON p.handle = v.viewer_handle").
		Where("v.viewed_handle = ?", handle).
		Order("v.created_at DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}
