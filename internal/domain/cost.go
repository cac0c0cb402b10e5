package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Cost arithmetic stays in decimals end to end; rounding happens once, at
// the point of persistence (see RoundMoney), never on intermediate values.

const day = 24 * time.Hour

// ElapsedDays returns the number of billable days between start and end:
// any started day counts in full, and a stay is never shorter than one day.
func ElapsedDays(start, end time.Time) int {
	d := end.Sub(start)
	if d <= 0 {
		return 1
	}
	days := int(d / day)
	if d%day != 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// EstimatedCost is the daily rate multiplied by the billable days between
// start and end.
func EstimatedCost(dailyRate decimal.Decimal, start, end time.Time) decimal.Decimal {
	return dailyRate.Mul(decimal.NewFromInt(int64(ElapsedDays(start, end))))
}

// EarlyDepartureSavings is the amount not billed when the occupant leaves
// before the expected vacate date. Zero when the departure is on time or
// late.
func EarlyDepartureSavings(dailyRate decimal.Decimal, expectedVacate, actualVacate time.Time) decimal.Decimal {
	if !actualVacate.Before(expectedVacate) {
		return decimal.Zero
	}
	return dailyRate.Mul(decimal.NewFromInt(int64(ElapsedDays(actualVacate, expectedVacate))))
}

// FinalCost resolves the billed total: a positive override wins, otherwise
// the estimate stands.
func FinalCost(override, estimated decimal.Decimal) decimal.Decimal {
	if override.IsPositive() {
		return override
	}
	return estimated
}

// RoundMoney rounds a money value to 2 decimal places using banker's
// rounding. Applied exactly once, when a total is persisted.
func RoundMoney(v decimal.Decimal) decimal.Decimal {
	return v.RoundBank(2)
}
