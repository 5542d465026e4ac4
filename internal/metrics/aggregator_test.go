package metrics

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"golang-rfm-analytics-service/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func tx(customerID, basketID int64, amount float64, y int, m time.Month, d int) *models.Transaction {
	return models.NewTransaction(customerID, basketID, decimal.NewFromFloat(amount), date(y, m, d))
}

func TestAggregatorCustomerMetrics(t *testing.T) {
	agg := NewAggregator()
	agg.Add([]*models.Transaction{
		// Customer 1: two baskets, three line items
		tx(1, 100, 1.50, 2024, 1, 10),
		tx(1, 100, 2.50, 2024, 1, 10),
		tx(1, 101, 4.00, 2024, 2, 20),
		// Customer 2: one basket, includes a signed return
		tx(2, 200, 10.00, 2024, 3, 1),
		tx(2, 200, -2.00, 2024, 3, 1),
	})

	if agg.RowCount() != 5 {
		t.Errorf("expected 5 rows, got %d", agg.RowCount())
	}
	if agg.CustomerCount() != 2 {
		t.Errorf("expected 2 customers, got %d", agg.CustomerCount())
	}

	// Analysis date is the maximum transaction date in the dataset
	if !agg.AnalysisDate().Equal(date(2024, 3, 1)) {
		t.Errorf("expected analysis date 2024-03-01, got %v", agg.AnalysisDate())
	}

	metrics := agg.CustomerMetrics()
	if len(metrics) != 2 {
		t.Fatalf("expected 2 metric rows, got %d", len(metrics))
	}

	c1 := metrics[0]
	if c1.CustomerID != 1 {
		t.Fatalf("expected customer 1 first, got %d", c1.CustomerID)
	}
	// Frequency counts distinct baskets, not line items
	if c1.Frequency != 2 {
		t.Errorf("expected frequency 2, got %d", c1.Frequency)
	}
	// Recency measured from last purchase (Feb 20) to analysis date (Mar 1)
	if c1.RecencyDays != 10 {
		t.Errorf("expected recency 10 days, got %d", c1.RecencyDays)
	}
	if !c1.Monetary.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected monetary 8, got %s", c1.Monetary)
	}

	c2 := metrics[1]
	if c2.Frequency != 1 {
		t.Errorf("expected frequency 1, got %d", c2.Frequency)
	}
	if c2.RecencyDays != 0 {
		t.Errorf("customer purchasing on the analysis date has recency 0, got %d", c2.RecencyDays)
	}
	// Monetary is the signed sum, returns included
	if !c2.Monetary.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected monetary 8, got %s", c2.Monetary)
	}
}

func TestAggregatorCustomerIDsSorted(t *testing.T) {
	agg := NewAggregator()
	agg.Add([]*models.Transaction{
		tx(30, 1, 1, 2024, 1, 1),
		tx(10, 2, 1, 2024, 1, 2),
		tx(20, 3, 1, 2024, 1, 3),
	})

	ids := agg.CustomerIDs()
	want := []int64{10, 20, 30}
	for i, id := range ids {
		if id != want[i] {
			t.Fatalf("expected sorted IDs %v, got %v", want, ids)
		}
	}
}

func TestAggregatorMonthlyActivity(t *testing.T) {
	agg := NewAggregator()
	agg.Add([]*models.Transaction{
		tx(1, 100, 5.00, 2024, 1, 5),
		tx(1, 101, 3.00, 2024, 1, 25),
		tx(1, 102, 7.00, 2024, 3, 10),
		tx(2, 200, 2.00, 2024, 2, 14),
	})

	activity := agg.MonthlyActivity()

	// Only months with transactions appear, sorted by customer then month
	if len(activity) != 3 {
		t.Fatalf("expected 3 active months, got %d", len(activity))
	}

	jan := activity[0]
	if jan.CustomerID != 1 || !jan.MonthStart.Equal(date(2024, 1, 1)) {
		t.Fatalf("unexpected first activity row: %+v", jan)
	}
	if !jan.Spend.Equal(decimal.NewFromInt(8)) {
		t.Errorf("expected January spend 8, got %s", jan.Spend)
	}
	// Visits count distinct baskets within the month
	if jan.Visits != 2 {
		t.Errorf("expected 2 visits, got %d", jan.Visits)
	}
	// Latest purchase within the month
	if !jan.LastPurchase.Equal(date(2024, 1, 25)) {
		t.Errorf("expected last purchase 2024-01-25, got %v", jan.LastPurchase)
	}

	mar := activity[1]
	if mar.CustomerID != 1 || !mar.MonthStart.Equal(date(2024, 3, 1)) {
		t.Fatalf("unexpected second activity row: %+v", mar)
	}

	if activity[2].CustomerID != 2 {
		t.Errorf("expected customer 2 last, got %d", activity[2].CustomerID)
	}
}

func TestAggregatorEmpty(t *testing.T) {
	agg := NewAggregator()

	if agg.RowCount() != 0 || agg.CustomerCount() != 0 {
		t.Error("expected empty aggregator")
	}
	if len(agg.CustomerMetrics()) != 0 {
		t.Error("expected no metrics")
	}
	if len(agg.MonthlyActivity()) != 0 {
		t.Error("expected no activity")
	}
	if _, _, ok := agg.DateRange(); ok {
		t.Error("expected no date range on empty aggregator")
	}
}

func TestAggregatorIncrementalBatches(t *testing.T) {
	all := NewAggregator()
	batched := NewAggregator()

	txs := []*models.Transaction{
		tx(1, 100, 1, 2024, 1, 1),
		tx(2, 200, 2, 2024, 1, 2),
		tx(1, 101, 3, 2024, 2, 3),
		tx(3, 300, 4, 2024, 2, 4),
	}

	all.Add(txs)
	batched.Add(txs[:2])
	batched.Add(txs[2:])

	a, b := all.CustomerMetrics(), batched.CustomerMetrics()
	if len(a) != len(b) {
		t.Fatalf("metric counts differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].CustomerID != b[i].CustomerID ||
			a[i].RecencyDays != b[i].RecencyDays ||
			a[i].Frequency != b[i].Frequency ||
			!a[i].Monetary.Equal(b[i].Monetary) {
			t.Errorf("metrics differ at %d: %+v vs %+v", i, a[i], b[i])
		}
	}
}
