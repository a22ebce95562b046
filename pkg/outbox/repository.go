package outbox

import (
	"errors"

	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Insert appends a row; it must run inside the transaction that carries the
// business mutation, otherwise the durability guarantee is void.
func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&event).Error
}

// FetchBatch returns up to limit pending rows, oldest first.
func (r *Repository) FetchBatch(limit int) ([]models.OutboxEvent, error) {
	var rows []models.OutboxEvent
	err := r.db.
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// DeleteBatch removes the rows read by a publish cycle after every topic batch
// in that cycle was delivered.
func (r *Repository) DeleteBatch(tx *gorm.DB, ids []int64) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	if len(ids) == 0 {
		return nil
	}
	return tx.Where("id IN ?", ids).Delete(&models.OutboxEvent{}).Error
}

// CountPending reports the backlog size.
func (r *Repository) CountPending() (int64, error) {
	var count int64
	err := r.db.Model(&models.OutboxEvent{}).Count(&count).Error
	return count, err
}
