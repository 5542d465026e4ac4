package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestTransactionValidate(t *testing.T) {
	tests := []struct {
		name    string
		tx      *Transaction
		wantErr bool
	}{
		{
			name:    "valid transaction",
			tx:      NewTransaction(2375, 26984851472, decimal.NewFromFloat(1.50), date(2024, 3, 15)),
			wantErr: false,
		},
		{
			name:    "negative amount is valid, returns are signed",
			tx:      NewTransaction(1, 2, decimal.NewFromFloat(-3.25), date(2024, 3, 15)),
			wantErr: false,
		},
		{
			name:    "zero customer ID",
			tx:      &Transaction{CustomerID: 0, BasketID: 2, Date: date(2024, 3, 15)},
			wantErr: true,
		},
		{
			name:    "negative basket ID",
			tx:      &Transaction{CustomerID: 1, BasketID: -5, Date: date(2024, 3, 15)},
			wantErr: true,
		},
		{
			name:    "zero date",
			tx:      &Transaction{CustomerID: 1, BasketID: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNewTransactionTruncatesDate(t *testing.T) {
	ts := time.Date(2024, 3, 15, 18, 42, 7, 0, time.UTC)
	tx := NewTransaction(1, 2, decimal.NewFromInt(5), ts)

	if !tx.Date.Equal(date(2024, 3, 15)) {
		t.Errorf("expected date truncated to midnight, got %v", tx.Date)
	}
}

func TestParseDecimalFromString(t *testing.T) {
	tests := []struct {
		input   string
		want    string
		wantErr bool
	}{
		{"1.50", "1.5", false},
		{"$2,500.75", "2500.75", false},
		{"-3.25", "-3.25", false},
		{"0", "0", false},
		{"  4.20  ", "4.2", false},
		{"", "", true},
		{"abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimalFromString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalFromString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && got.String() != tt.want {
				t.Errorf("ParseDecimalFromString(%q) = %s, want %s", tt.input, got.String(), tt.want)
			}
		})
	}
}

func TestParseIDFromString(t *testing.T) {
	if _, err := ParseIDFromString("0"); err == nil {
		t.Error("expected zero ID to be rejected")
	}
	if _, err := ParseIDFromString("-7"); err == nil {
		t.Error("expected negative ID to be rejected")
	}
	if _, err := ParseIDFromString("12.5"); err == nil {
		t.Error("expected fractional ID to be rejected")
	}

	id, err := ParseIDFromString(" 2375 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != 2375 {
		t.Errorf("expected 2375, got %d", id)
	}
}

func TestParseDateWithFormats(t *testing.T) {
	want := date(2024, 3, 15)

	for _, input := range []string{
		"2024-03-15",
		"2024-03-15 10:30:00",
		"2024/03/15",
		"03/15/2024",
	} {
		got, err := ParseDateWithFormats(input)
		if err != nil {
			t.Errorf("ParseDateWithFormats(%q) unexpected error: %v", input, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ParseDateWithFormats(%q) = %v, want %v", input, got, want)
		}
	}

	if _, err := ParseDateWithFormats("15th March"); err == nil {
		t.Error("expected unparseable date to fail")
	}
}

func TestRFMScore(t *testing.T) {
	c := &ScoredCustomer{RScore: 5, FScore: 4, MScore: 1}
	if got := c.RFMScore(); got != "541" {
		t.Errorf("expected 541, got %s", got)
	}
}

func TestScoredCustomerValidate(t *testing.T) {
	valid := &ScoredCustomer{
		CustomerMetrics: CustomerMetrics{CustomerID: 1, Frequency: 3},
		RScore:          4, FScore: 2, MScore: 3,
		Segment:        SegmentPotentialLoyal,
		LifecycleStage: LifecycleActive,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	invalid := &ScoredCustomer{
		CustomerMetrics: CustomerMetrics{CustomerID: 1, Frequency: 3},
		RScore:          6, FScore: 2, MScore: 3,
		Segment:        SegmentLost,
		LifecycleStage: LifecycleChurned,
	}
	if err := invalid.Validate(); err == nil {
		t.Error("expected out-of-range r_score to fail validation")
	}
}

func TestMonthHelpers(t *testing.T) {
	if got := MonthStartOf(date(2024, 2, 17)); !got.Equal(date(2024, 2, 1)) {
		t.Errorf("MonthStartOf = %v", got)
	}
	// Leap year February
	if got := MonthEndOf(date(2024, 2, 17)); !got.Equal(date(2024, 2, 29)) {
		t.Errorf("MonthEndOf = %v", got)
	}
	if got := MonthEndOf(date(2023, 2, 1)); !got.Equal(date(2023, 2, 28)) {
		t.Errorf("MonthEndOf = %v", got)
	}
	if got := DaysBetween(date(2024, 3, 1), date(2024, 3, 31)); got != 30 {
		t.Errorf("DaysBetween = %d, want 30", got)
	}
	if got := DaysBetween(date(2024, 3, 15), date(2024, 3, 15)); got != 0 {
		t.Errorf("DaysBetween same day = %d, want 0", got)
	}
}

func TestSnapshotRowHasPurchaseHistory(t *testing.T) {
	row := &MonthlySnapshotRow{}
	if row.HasPurchaseHistory() {
		t.Error("zero time should mean no purchase history")
	}

	row.LastPurchaseAnytime = date(2024, 1, 5)
	if !row.HasPurchaseHistory() {
		t.Error("expected purchase history after setting a date")
	}
}

func TestCreateTransactionFromCSV(t *testing.T) {
	tx, err := CreateTransactionFromCSV("2375", "26984851472", "1.50", "2024-03-15")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tx.CustomerID != 2375 || tx.BasketID != 26984851472 {
		t.Errorf("unexpected identifiers: %+v", tx)
	}
	if !tx.SalesAmount.Equal(decimal.NewFromFloat(1.50)) {
		t.Errorf("unexpected amount: %s", tx.SalesAmount)
	}

	if _, err := CreateTransactionFromCSV("abc", "2", "1.0", "2024-03-15"); err == nil {
		t.Error("expected invalid customer ID to fail")
	}
	if _, err := CreateTransactionFromCSV("1", "2", "notanumber", "2024-03-15"); err == nil {
		t.Error("expected invalid amount to fail")
	}
	if _, err := CreateTransactionFromCSV("1", "2", "1.0", "soon"); err == nil {
		t.Error("expected invalid date to fail")
	}
}
