package snapshot

import (
	"time"

	"github.com/shopspring/decimal"

	"golang-rfm-analytics-service/internal/models"
)

// Lapsed-day thresholds for the month-end status ladder.
const (
	statusActiveDays = 14
	statusAtRiskDays = 30
)

// enrichCustomer fills out with one row per month for a single customer,
// folding in month order: the last known purchase date forward-fills
// across inactive months, lapsed days are measured from it to each month
// end, and rolling spend sums a trailing window clipped at the start of
// the series.
func enrichCustomer(customerID int64, months []time.Time, activity map[time.Time]*models.MonthlyActivity, window int, out []*models.MonthlySnapshotRow) {
	var lastPurchase time.Time
	spends := make([]decimal.Decimal, len(months))

	for i, monthStart := range months {
		spend := decimal.Zero
		visits := 0
		if a, ok := activity[monthStart]; ok {
			spend = a.Spend
			visits = a.Visits
			lastPurchase = a.LastPurchase
		}
		spends[i] = spend

		rolling := decimal.Zero
		lo := i - window + 1
		if lo < 0 {
			lo = 0
		}
		for j := lo; j <= i; j++ {
			rolling = rolling.Add(spends[j])
		}

		monthEnd := models.MonthEndOf(monthStart)
		lapsed := lapsedDays(lastPurchase, monthEnd)

		out[i] = &models.MonthlySnapshotRow{
			CustomerID:          customerID,
			MonthStart:          monthStart,
			MonthEnd:            monthEnd,
			MonthlySpend:        spend,
			MonthlyVisits:       visits,
			Rolling3MSpend:      rolling,
			LastPurchaseAnytime: lastPurchase,
			LapsedDays:          lapsed,
			Status:              statusForLapsed(lapsed),
		}
	}
}

// lapsedDays measures days from the last known purchase to the month end.
// With no purchase history it returns the sentinel; real measurements are
// capped just below it so the sentinel stays unambiguous.
func lapsedDays(lastPurchase, monthEnd time.Time) int {
	if lastPurchase.IsZero() {
		return models.LapsedDaysUnknown
	}
	d := models.DaysBetween(lastPurchase, monthEnd)
	if d < 0 {
		d = 0
	}
	if d >= models.LapsedDaysUnknown {
		d = models.LapsedDaysUnknown - 1
	}
	return d
}

// statusForLapsed maps lapsed days onto the operational status ladder
func statusForLapsed(lapsed int) models.SnapshotStatus {
	switch {
	case lapsed <= statusActiveDays:
		return models.StatusActive
	case lapsed <= statusAtRiskDays:
		return models.StatusAtRisk
	case lapsed < models.LapsedDaysUnknown:
		return models.StatusChurned
	default:
		return models.StatusNewUnknown
	}
}
