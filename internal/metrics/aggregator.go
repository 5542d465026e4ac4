// Package metrics reduces the raw transaction ledger to the two aggregate
// views the rest of the pipeline consumes: one Recency/Frequency/Monetary
// tuple per customer, and one activity row per customer per calendar month.
//
// The aggregator is incremental: batches of transactions can be added as
// they are parsed (including from the streaming parser), and the aggregate
// views are materialized once at the end. It never produces rows for
// customers or months with no transactions; the dense grid is the snapshot
// spine's job.
package metrics

import (
	"sort"
	"time"

	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/pkg/logger"

	"github.com/shopspring/decimal"
)

type customerAccum struct {
	lastPurchase time.Time
	baskets      map[int64]struct{}
	monetary     decimal.Decimal
}

type monthKey struct {
	customerID int64
	monthStart time.Time
}

type monthAccum struct {
	spend        decimal.Decimal
	baskets      map[int64]struct{}
	lastPurchase time.Time
}

// Aggregator accumulates transactions and materializes per-customer and
// per-customer-month aggregates.
type Aggregator struct {
	logger logger.Logger

	minDate time.Time
	maxDate time.Time

	customers map[int64]*customerAccum
	monthly   map[monthKey]*monthAccum
	rowCount  int
}

// NewAggregator creates an empty Aggregator
func NewAggregator() *Aggregator {
	return &Aggregator{
		logger:    logger.GetGlobalLogger().WithComponent("metric_aggregator"),
		customers: make(map[int64]*customerAccum),
		monthly:   make(map[monthKey]*monthAccum),
	}
}

// Add accumulates a batch of transactions
func (a *Aggregator) Add(transactions []*models.Transaction) {
	for _, tx := range transactions {
		a.addOne(tx)
	}
}

func (a *Aggregator) addOne(tx *models.Transaction) {
	a.rowCount++

	if a.minDate.IsZero() || tx.Date.Before(a.minDate) {
		a.minDate = tx.Date
	}
	if a.maxDate.IsZero() || tx.Date.After(a.maxDate) {
		a.maxDate = tx.Date
	}

	cust, ok := a.customers[tx.CustomerID]
	if !ok {
		cust = &customerAccum{
			baskets:  make(map[int64]struct{}),
			monetary: decimal.Zero,
		}
		a.customers[tx.CustomerID] = cust
	}
	if tx.Date.After(cust.lastPurchase) {
		cust.lastPurchase = tx.Date
	}
	cust.baskets[tx.BasketID] = struct{}{}
	cust.monetary = cust.monetary.Add(tx.SalesAmount)

	key := monthKey{customerID: tx.CustomerID, monthStart: models.MonthStartOf(tx.Date)}
	month, ok := a.monthly[key]
	if !ok {
		month = &monthAccum{
			baskets: make(map[int64]struct{}),
			spend:   decimal.Zero,
		}
		a.monthly[key] = month
	}
	if tx.Date.After(month.lastPurchase) {
		month.lastPurchase = tx.Date
	}
	month.baskets[tx.BasketID] = struct{}{}
	month.spend = month.spend.Add(tx.SalesAmount)
}

// RowCount returns the number of transactions accumulated so far
func (a *Aggregator) RowCount() int {
	return a.rowCount
}

// CustomerCount returns the number of distinct customers seen so far
func (a *Aggregator) CustomerCount() int {
	return len(a.customers)
}

// AnalysisDate is the maximum transaction date across the whole dataset:
// a fixed snapshot reference, not wall-clock now. Zero when no
// transactions have been added.
func (a *Aggregator) AnalysisDate() time.Time {
	return a.maxDate
}

// DateRange returns the inclusive min and max transaction dates. The
// boolean is false when no transactions have been added.
func (a *Aggregator) DateRange() (time.Time, time.Time, bool) {
	if a.rowCount == 0 {
		return time.Time{}, time.Time{}, false
	}
	return a.minDate, a.maxDate, true
}

// CustomerIDs returns all distinct customer IDs in ascending order
func (a *Aggregator) CustomerIDs() []int64 {
	ids := make([]int64, 0, len(a.customers))
	for id := range a.customers {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CustomerMetrics materializes the per-customer RFM tuples, sorted by
// customer ID for deterministic output.
func (a *Aggregator) CustomerMetrics() []*models.CustomerMetrics {
	result := make([]*models.CustomerMetrics, 0, len(a.customers))

	for _, id := range a.CustomerIDs() {
		cust := a.customers[id]
		result = append(result, &models.CustomerMetrics{
			CustomerID:  id,
			RecencyDays: models.DaysBetween(cust.lastPurchase, a.maxDate),
			Frequency:   len(cust.baskets),
			Monetary:    cust.monetary,
		})
	}

	a.logger.WithFields(logger.Fields{
		"customers":    len(result),
		"transactions": a.rowCount,
	}).Info("Materialized customer metrics")

	return result
}

// MonthlyActivity materializes the per-customer-month aggregates, sorted
// by customer ID then month for deterministic output.
func (a *Aggregator) MonthlyActivity() []*models.MonthlyActivity {
	result := make([]*models.MonthlyActivity, 0, len(a.monthly))

	for key, month := range a.monthly {
		result = append(result, &models.MonthlyActivity{
			CustomerID:   key.customerID,
			MonthStart:   key.monthStart,
			Spend:        month.spend,
			Visits:       len(month.baskets),
			LastPurchase: month.lastPurchase,
		})
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CustomerID != result[j].CustomerID {
			return result[i].CustomerID < result[j].CustomerID
		}
		return result[i].MonthStart.Before(result[j].MonthStart)
	})

	a.logger.WithFields(logger.Fields{
		"customer_months": len(result),
	}).Info("Materialized monthly activity")

	return result
}
