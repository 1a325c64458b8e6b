package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pocket-planner/internal/model"
)

// MarkerRepository is the catch-up gate's durable key-value store. Keys are
// composed by the materializer from cadence, owner and scope; values record
// the last day the gated pass completed.
type MarkerRepository struct {
	db *gorm.DB
}

func NewMarkerRepository(db *gorm.DB) *MarkerRepository {
	return &MarkerRepository{db: db}
}

// Get returns the marker for key, or nil when none has been written yet.
func (r *MarkerRepository) Get(ctx context.Context, key string) (*model.Marker, error) {
	var marker model.Marker
	err := r.db.WithContext(ctx).Where("key = ?", key).First(&marker).Error
	switch {
	case err == nil:
		return &marker, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	default:
		return nil, fmt.Errorf("get marker %q: %w", key, err)
	}
}

// Put upserts the marker row for key.
func (r *MarkerRepository) Put(ctx context.Context, key, date string, done bool) error {
	marker := model.Marker{Key: key, Date: date, Done: done}
	if err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"date", "done", "updated_at"}),
		}).
		Create(&marker).Error; err != nil {
		return fmt.Errorf("put marker %q: %w", key, err)
	}
	return nil
}
