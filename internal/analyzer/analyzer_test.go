package analyzer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/internal/parsers"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// sliceSource feeds a fixed transaction slice to the pipeline in batches.
type sliceSource struct {
	transactions []*models.Transaction
	batchSize    int
}

func (s *sliceSource) StreamLedger(ctx context.Context, callback parsers.LedgerBatchCallback) (*parsers.ParseStats, error) {
	batchSize := s.batchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	for lo := 0; lo < len(s.transactions); lo += batchSize {
		hi := lo + batchSize
		if hi > len(s.transactions) {
			hi = len(s.transactions)
		}
		if err := callback(s.transactions[lo:hi]); err != nil {
			return nil, err
		}
	}
	return &parsers.ParseStats{
		TotalLines:    len(s.transactions) + 1,
		RecordsParsed: len(s.transactions),
	}, nil
}

// customerPurchases emits one transaction per basket for a customer, all on
// the same day, splitting total spend evenly.
func customerPurchases(customerID int64, day time.Time, baskets int, total float64, nextBasket *int64) []*models.Transaction {
	per := total / float64(baskets)
	txs := make([]*models.Transaction, 0, baskets)
	for i := 0; i < baskets; i++ {
		*nextBasket++
		txs = append(txs, models.NewTransaction(customerID, *nextBasket, decimal.NewFromFloat(per), day))
	}
	return txs
}

// testLedger builds a six-customer ledger with an analysis date of
// 2024-03-31 and a January-through-March observation window.
func testLedger() []*models.Transaction {
	var basket int64
	var txs []*models.Transaction

	txs = append(txs, customerPurchases(1, date(2024, 3, 31), 5, 500, &basket)...)
	txs = append(txs, customerPurchases(2, date(2024, 3, 25), 4, 400, &basket)...)
	txs = append(txs, customerPurchases(3, date(2024, 3, 20), 3, 300, &basket)...)
	txs = append(txs, customerPurchases(4, date(2024, 3, 10), 2, 200, &basket)...)
	txs = append(txs, customerPurchases(5, date(2024, 3, 5), 1, 100, &basket)...)
	// Dormant whale: huge volume, long gone
	txs = append(txs, customerPurchases(6, date(2024, 1, 5), 10, 1000, &basket)...)

	return txs
}

func TestAnalyzePipeline(t *testing.T) {
	service, err := NewService(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := service.Analyze(context.Background(), &sliceSource{transactions: testLedger()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Customers) != 6 {
		t.Fatalf("expected 6 customers, got %d", len(result.Customers))
	}

	byID := make(map[int64]*models.ScoredCustomer)
	for _, c := range result.Customers {
		byID[c.CustomerID] = c
	}

	// Customer 1: bought on the analysis date, top frequency and spend
	c1 := byID[1]
	if c1.RScore != 5 || c1.FScore != 4 {
		t.Errorf("customer 1 scored r=%d f=%d, want r=5 f=4", c1.RScore, c1.FScore)
	}
	if c1.Segment != models.SegmentChampions {
		t.Errorf("customer 1 segment = %s, want Champions", c1.Segment)
	}
	if c1.LifecycleStage != models.LifecycleActive {
		t.Errorf("customer 1 lifecycle = %s, want Active", c1.LifecycleStage)
	}

	// Customer 6: biggest spender in the ledger but dormant, so it takes
	// the bottom frequency and monetary bins.
	c6 := byID[6]
	if c6.RScore != 1 || c6.FScore != 1 || c6.MScore != 1 {
		t.Errorf("customer 6 scored r=%d f=%d m=%d, want 1/1/1", c6.RScore, c6.FScore, c6.MScore)
	}
	if c6.Segment != models.SegmentLost {
		t.Errorf("customer 6 segment = %s, want Lost", c6.Segment)
	}

	// Customers 4 and 5 sit in the intervention window
	for _, id := range []int64{4, 5} {
		if byID[id].Segment != models.SegmentAtRisk {
			t.Errorf("customer %d segment = %s, want At Risk (Intervention)", id, byID[id].Segment)
		}
	}

	summary := result.Summary
	if summary.TotalTransactions != 25 {
		t.Errorf("expected 25 transactions, got %d", summary.TotalTransactions)
	}
	if summary.TotalCustomers != 6 {
		t.Errorf("expected 6 customers, got %d", summary.TotalCustomers)
	}
	if summary.ActiveCustomers != 5 {
		t.Errorf("expected 5 active customers, got %d", summary.ActiveCustomers)
	}
	if !summary.AnalysisDate.Equal(date(2024, 3, 31)) {
		t.Errorf("analysis date = %v, want 2024-03-31", summary.AnalysisDate)
	}
	if summary.DegradedBinning {
		t.Error("did not expect degraded binning")
	}

	// Dense panel: 6 customers x 3 months
	if summary.SnapshotRows != 18 || len(result.Snapshots) != 18 {
		t.Errorf("expected 18 snapshot rows, got %d", len(result.Snapshots))
	}

	// The dormant customer's panel: active in January, lapsing afterwards
	var c6Rows []*models.MonthlySnapshotRow
	for _, row := range result.Snapshots {
		if row.CustomerID == 6 {
			c6Rows = append(c6Rows, row)
		}
	}
	if len(c6Rows) != 3 {
		t.Fatalf("expected 3 rows for customer 6, got %d", len(c6Rows))
	}
	if !c6Rows[0].MonthlySpend.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("customer 6 January spend = %s, want 1000", c6Rows[0].MonthlySpend)
	}
	if c6Rows[2].Status != models.StatusChurned {
		t.Errorf("customer 6 March status = %s, want Churned", c6Rows[2].Status)
	}
	// Rolling spend carries January's volume through March
	if !c6Rows[2].Rolling3MSpend.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("customer 6 March rolling spend = %s, want 1000", c6Rows[2].Rolling3MSpend)
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	run := func() *AnalysisResult {
		service, err := NewService(nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		result, err := service.Analyze(context.Background(), &sliceSource{transactions: testLedger(), batchSize: 3})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return result
	}

	a, b := run(), run()

	if len(a.Customers) != len(b.Customers) || len(a.Snapshots) != len(b.Snapshots) {
		t.Fatal("run shapes differ")
	}
	for i := range a.Customers {
		x, y := a.Customers[i], b.Customers[i]
		if x.CustomerID != y.CustomerID || x.RScore != y.RScore ||
			x.FScore != y.FScore || x.MScore != y.MScore || x.Segment != y.Segment {
			t.Fatalf("customer row %d differs between runs", i)
		}
	}
	for i := range a.Snapshots {
		x, y := a.Snapshots[i], b.Snapshots[i]
		if x.CustomerID != y.CustomerID || !x.MonthStart.Equal(y.MonthStart) ||
			x.LapsedDays != y.LapsedDays || x.Status != y.Status ||
			!x.Rolling3MSpend.Equal(y.Rolling3MSpend) {
			t.Fatalf("snapshot row %d differs between runs", i)
		}
	}
}

func TestAnalyzeEmptyLedger(t *testing.T) {
	service, _ := NewService(nil)

	result, err := service.Analyze(context.Background(), &sliceSource{})
	if err != nil {
		t.Fatalf("an empty ledger is valid input, got error: %v", err)
	}

	if len(result.Customers) != 0 || len(result.Snapshots) != 0 {
		t.Error("expected empty outputs")
	}
	if result.Summary.TotalCustomers != 0 {
		t.Errorf("expected 0 customers in summary, got %d", result.Summary.TotalCustomers)
	}
}

func TestAnalyzeDegradedBinningWarns(t *testing.T) {
	var basket int64
	txs := customerPurchases(1, date(2024, 3, 31), 2, 50, &basket)
	txs = append(txs, customerPurchases(2, date(2024, 3, 30), 1, 20, &basket)...)

	service, _ := NewService(nil)
	result, err := service.Analyze(context.Background(), &sliceSource{transactions: txs})
	if err != nil {
		t.Fatalf("degraded binning must not fail the run: %v", err)
	}

	if !result.Summary.DegradedBinning {
		t.Error("expected degraded binning with two active customers")
	}
	if len(result.Warnings) == 0 {
		t.Error("expected a warning to surface in the result")
	}
	for _, c := range result.Customers {
		if c.FScore != 1 || c.MScore != 1 {
			t.Errorf("customer %d got f=%d m=%d under degradation", c.CustomerID, c.FScore, c.MScore)
		}
	}
}

func TestAnalyzeProgressCallbacks(t *testing.T) {
	service, _ := NewService(nil)

	var steps []string
	var finalPercent float64
	service.AddProgressCallback(func(p *AnalysisProgress) {
		if len(steps) == 0 || steps[len(steps)-1] != p.CurrentStep {
			steps = append(steps, p.CurrentStep)
		}
		finalPercent = p.PercentComplete
	})

	if _, err := service.Analyze(context.Background(), &sliceSource{transactions: testLedger()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(steps) < 5 {
		t.Errorf("expected at least 5 distinct steps, got %v", steps)
	}
	if finalPercent != 100 {
		t.Errorf("expected 100%% on completion, got %.1f", finalPercent)
	}
}
