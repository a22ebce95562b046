package bookings

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
	"github.com/dcastellon/staybook-backend/pkg/enums"
	pkgerrors "github.com/dcastellon/staybook-backend/pkg/errors"
)

// Repository exposes persistence helpers for bookings and properties.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.Booking) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error)
	FindDueHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.BookingStatus, to enums.BookingStatus, updates map[string]any) (bool, error)
}

type repositoryImpl struct {
	db *gorm.DB
}

// NewRepository returns a bookings repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repositoryImpl{db: db}
}

func (r *repositoryImpl) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repositoryImpl{db: tx}
}

func (r *repositoryImpl) Create(ctx context.Context, booking *models.Booking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	var booking models.Booking
	err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repositoryImpl) FindProperty(ctx context.Context, id uuid.UUID) (*models.Property, error) {
	var property models.Property
	err := r.db.WithContext(ctx).First(&property, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "property not found")
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}

// FindDueHolds returns bookings whose hold window elapsed, oldest first.
func (r *repositoryImpl) FindDueHolds(ctx context.Context, now time.Time, limit int) ([]models.Booking, error) {
	var due []models.Booking
	query := r.db.WithContext(ctx).
		Where("status IN ? AND hold_expires_at < ?", []enums.BookingStatus{enums.BookingStatusHold, enums.BookingStatusReview}, now).
		Order("hold_expires_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&due).Error; err != nil {
		return nil, err
	}
	return due, nil
}

// TransitionStatus performs the conditional status update that arbitrates
// racing writers. It returns false when another transaction already moved the
// booking out of the expected states.
func (r *repositoryImpl) TransitionStatus(ctx context.Context, id uuid.UUID, from []enums.BookingStatus, to enums.BookingStatus, updates map[string]any) (bool, error) {
	values := map[string]any{"status": to}
	for column, value := range updates {
		values[column] = value
	}
	result := r.db.WithContext(ctx).
		Model(&models.Booking{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(values)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
