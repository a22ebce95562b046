package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
)

// Repository exposes persistence helpers for queued notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	FindDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error)
	MarkDispatched(ctx context.Context, id uuid.UUID, now time.Time) (bool, error)
	DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a notifications repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

// FindDue returns undispatched notifications whose due time passed, oldest first.
func (r *repositoryImpl) FindDue(ctx context.Context, now time.Time, limit int) ([]models.Notification, error) {
	var due []models.Notification
	query := r.db.WithContext(ctx).
		Where("dispatched_at IS NULL AND due_at <= ?", now).
		Order("due_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&due).Error; err != nil {
		return nil, err
	}
	return due, nil
}

// MarkDispatched stamps the row once; a second sweeper observing the same row
// sees zero rows affected and skips it.
func (r *repositoryImpl) MarkDispatched(ctx context.Context, id uuid.UUID, now time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("id = ? AND dispatched_at IS NULL", id).
		UpdateColumn("dispatched_at", now)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repositoryImpl) DeleteDispatchedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("dispatched_at IS NOT NULL AND dispatched_at < ?", cutoff).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
