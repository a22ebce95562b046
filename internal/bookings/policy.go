package bookings

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/dcastellon/staybook-backend/pkg/enums"
)

// refundTier grants Percent when the cancellation happens at least MinDays
// full days before check-in. Tiers are ordered by MinDays descending and
// percents never increase as MinDays shrinks.
type refundTier struct {
	MinDays int
	Percent decimal.Decimal
}

var refundSchedules = map[enums.CancellationPolicy][]refundTier{
	enums.PolicyFlexible: {
		{MinDays: 1, Percent: decimal.NewFromInt(100)},
		{MinDays: 0, Percent: decimal.NewFromInt(50)},
	},
	enums.PolicyModerate: {
		{MinDays: 5, Percent: decimal.NewFromInt(100)},
		{MinDays: 1, Percent: decimal.NewFromInt(50)},
		{MinDays: 0, Percent: decimal.Zero},
	},
	enums.PolicyStrict: {
		{MinDays: 14, Percent: decimal.NewFromInt(100)},
		{MinDays: 7, Percent: decimal.NewFromInt(50)},
		{MinDays: 0, Percent: decimal.Zero},
	},
}

// DaysBeforeCheckIn counts the whole days between now and check-in,
// clamped at zero for cancellations on or after the check-in date.
func DaysBeforeCheckIn(checkIn, now time.Time) int {
	days := int(checkIn.Sub(now).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days
}

// RefundPercent returns the policy's refund percentage for a cancellation
// the given number of days before check-in. Unknown policies refund nothing.
func RefundPercent(policy enums.CancellationPolicy, daysBefore int) decimal.Decimal {
	schedule, ok := refundSchedules[policy]
	if !ok {
		return decimal.Zero
	}
	for _, tier := range schedule {
		if daysBefore >= tier.MinDays {
			return tier.Percent
		}
	}
	return decimal.Zero
}

// RefundAmount applies the policy percentage to the booking total,
// rounded to cents.
func RefundAmount(policy enums.CancellationPolicy, totalPrice decimal.Decimal, checkIn, now time.Time) (decimal.Decimal, decimal.Decimal) {
	percent := RefundPercent(policy, DaysBeforeCheckIn(checkIn, now))
	amount := totalPrice.Mul(percent).Div(decimal.NewFromInt(100)).Round(2)
	return amount, percent
}
