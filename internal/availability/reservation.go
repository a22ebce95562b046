package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dcastellon/staybook-backend/pkg/db/models"
	pkgerrors "github.com/dcastellon/staybook-backend/pkg/errors"
)

// StayQuote is the priced result of an availability check across a date range.
type StayQuote struct {
	Nights     int
	TotalPrice decimal.Decimal
}

// NormalizeDate truncates a timestamp to its UTC calendar date. Availability
// rows are keyed by date, so every caller goes through this before querying.
func NormalizeDate(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// Nights expands [checkIn, checkOut) into the list of dates the stay occupies.
// Check-out day is exclusive: a one-night stay holds exactly one date.
func Nights(checkIn, checkOut time.Time) ([]time.Time, error) {
	start := NormalizeDate(checkIn)
	end := NormalizeDate(checkOut)
	if !end.After(start) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "check-out must be after check-in")
	}
	var nights []time.Time
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		nights = append(nights, d)
	}
	return nights, nil
}

// Quote loads every night of the range and sums nightly prices. It fails if
// any night is missing, blocked, or sold out, so callers can reject a request
// before opening a write transaction.
func Quote(ctx context.Context, db *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) (StayQuote, error) {
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return StayQuote{}, err
	}

	var days []models.AvailabilityDay
	if err := db.WithContext(ctx).
		Where("property_id = ? AND date >= ? AND date < ?", propertyID, nights[0], NormalizeDate(checkOut)).
		Order("date ASC").
		Find(&days).Error; err != nil {
		return StayQuote{}, fmt.Errorf("load availability: %w", err)
	}
	if len(days) != len(nights) {
		return StayQuote{}, pkgerrors.New(pkgerrors.CodeInventory, "property is not open for part of the requested dates")
	}

	total := decimal.Zero
	for _, day := range days {
		if day.IsBlocked {
			return StayQuote{}, pkgerrors.New(pkgerrors.CodeInventory, "property is blocked on "+day.Date.Format("2006-01-02"))
		}
		if day.Remaining <= 0 {
			return StayQuote{}, pkgerrors.New(pkgerrors.CodeInventory, "property is sold out on "+day.Date.Format("2006-01-02"))
		}
		total = total.Add(day.Price)
	}
	return StayQuote{Nights: len(nights), TotalPrice: total}, nil
}

// Reserve decrements Remaining for every night of the stay inside the caller's
// transaction. Each decrement is conditional on remaining > 0; the first night
// that cannot be taken fails the whole call, and the surrounding rollback makes
// the reservation all-or-nothing.
func Reserve(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "availability: reserve requires a transaction")
	}
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return err
	}
	for _, night := range nights {
		result := tx.WithContext(ctx).
			Model(&models.AvailabilityDay{}).
			Where("property_id = ? AND date = ? AND is_blocked = ? AND remaining > 0", propertyID, night, false).
			UpdateColumn("remaining", gorm.Expr("remaining - 1"))
		if result.Error != nil {
			return fmt.Errorf("reserve night %s: %w", night.Format("2006-01-02"), result.Error)
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInventory, "no unit left on "+night.Format("2006-01-02"))
		}
	}
	return nil
}

// Release returns one unit per night of the stay. It runs inside the same
// transaction that finalizes the booking so inventory and status move together.
func Release(ctx context.Context, tx *gorm.DB, propertyID uuid.UUID, checkIn, checkOut time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "availability: release requires a transaction")
	}
	nights, err := Nights(checkIn, checkOut)
	if err != nil {
		return err
	}
	for _, night := range nights {
		result := tx.WithContext(ctx).
			Model(&models.AvailabilityDay{}).
			Where("property_id = ? AND date = ?", propertyID, night).
			UpdateColumn("remaining", gorm.Expr("remaining + 1"))
		if result.Error != nil {
			return fmt.Errorf("release night %s: %w", night.Format("2006-01-02"), result.Error)
		}
		if result.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeInternal, "availability row missing for "+night.Format("2006-01-02"))
		}
	}
	return nil
}
