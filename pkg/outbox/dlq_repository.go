package outbox

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
)

// DLQRepository persists rows the publisher gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx parks an entry; runs in the same transaction that deletes the
// original row so a poison row moves exactly once.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(&entry).Error
}

// DeleteOlderThan purges entries parked before the cutoff; returns the count.
func (r *DLQRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	result := r.db.Where("failed_at < ?", cutoff).Delete(&models.OutboxDLQ{})
	return result.RowsAffected, result.Error
}
