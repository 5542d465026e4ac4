package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Transaction represents one purchased line item from the cleaned ledger.
// SalesAmount is signed: returns show up as zero or negative values.
type Transaction struct {
	CustomerID  int64           `json:"customer_id" csv:"customer_id"`
	BasketID    int64           `json:"basket_id" csv:"basket_id"`
	SalesAmount decimal.Decimal `json:"sales_amount" csv:"sales_amount"`
	Date        time.Time       `json:"date" csv:"date"`
}

// NewTransaction creates a new Transaction instance. The date is truncated
// to calendar-day granularity in UTC.
func NewTransaction(customerID, basketID int64, amount decimal.Decimal, date time.Time) *Transaction {
	return &Transaction{
		CustomerID:  customerID,
		BasketID:    basketID,
		SalesAmount: amount,
		Date:        TruncateToDay(date),
	}
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if t.CustomerID <= 0 {
		return fmt.Errorf("customer ID must be positive, got %d", t.CustomerID)
	}

	if t.BasketID <= 0 {
		return fmt.Errorf("basket ID must be positive, got %d", t.BasketID)
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Customer: %d, Basket: %d, Amount: %s, Date: %s}",
		t.CustomerID, t.BasketID, t.SalesAmount.String(), t.Date.Format("2006-01-02"))
}

// CustomerMetrics holds the per-customer recency/frequency/monetary tuple.
// RecencyDays is measured against the analysis date (the maximum transaction
// date in the dataset), Frequency counts distinct baskets, Monetary is the
// signed sum of sales amounts.
type CustomerMetrics struct {
	CustomerID  int64           `json:"customer_id" csv:"customer_id"`
	RecencyDays int             `json:"recency_days" csv:"recency_days"`
	Frequency   int             `json:"frequency" csv:"frequency"`
	Monetary    decimal.Decimal `json:"monetary" csv:"monetary"`
}

// Validate performs basic validation on CustomerMetrics
func (m *CustomerMetrics) Validate() error {
	if m.CustomerID <= 0 {
		return fmt.Errorf("customer ID must be positive, got %d", m.CustomerID)
	}
	if m.RecencyDays < 0 {
		return fmt.Errorf("recency days cannot be negative, got %d", m.RecencyDays)
	}
	if m.Frequency < 1 {
		return fmt.Errorf("frequency must be at least 1, got %d", m.Frequency)
	}
	return nil
}

// Segment is a named customer segment derived from RFM scores
type Segment string

const (
	SegmentChampions      Segment = "Champions"
	SegmentLoyalists      Segment = "Loyalists"
	SegmentPotentialLoyal Segment = "Potential Loyal"
	SegmentAtRisk         Segment = "At Risk (Intervention)"
	SegmentHibernating    Segment = "Hibernating"
	SegmentLost           Segment = "Lost"
)

// String returns the string representation of the Segment
func (s Segment) String() string {
	return string(s)
}

// IsValid checks if the segment is one of the known labels
func (s Segment) IsValid() bool {
	switch s {
	case SegmentChampions, SegmentLoyalists, SegmentPotentialLoyal,
		SegmentAtRisk, SegmentHibernating, SegmentLost:
		return true
	default:
		return false
	}
}

// LifecycleStage is a coarse lifecycle view derived from the recency score
type LifecycleStage string

const (
	LifecycleActive  LifecycleStage = "Active"
	LifecycleAtRisk  LifecycleStage = "At-Risk"
	LifecycleChurned LifecycleStage = "Churned"
)

// String returns the string representation of the LifecycleStage
func (l LifecycleStage) String() string {
	return string(l)
}

// IsValid checks if the lifecycle stage is one of the known labels
func (l LifecycleStage) IsValid() bool {
	switch l {
	case LifecycleActive, LifecycleAtRisk, LifecycleChurned:
		return true
	default:
		return false
	}
}

// ScoredCustomer is CustomerMetrics extended with ordinal scores and labels.
// FScore and MScore are only ranked within the active subpopulation
// (RScore >= 3); everyone else gets the lowest score.
type ScoredCustomer struct {
	CustomerMetrics

	RScore         int            `json:"r_score" csv:"r_score"`
	FScore         int            `json:"f_score" csv:"f_score"`
	MScore         int            `json:"m_score" csv:"m_score"`
	Segment        Segment        `json:"segment" csv:"segment"`
	LifecycleStage LifecycleStage `json:"lifecycle_stage" csv:"lifecycle_stage"`
}

// RFMScore returns the concatenated 3-digit score string, e.g. "541"
func (s *ScoredCustomer) RFMScore() string {
	return fmt.Sprintf("%d%d%d", s.RScore, s.FScore, s.MScore)
}

// Validate checks that all scores are within their defined ranges
func (s *ScoredCustomer) Validate() error {
	if s.RScore < 1 || s.RScore > 5 {
		return fmt.Errorf("r_score must be in [1,5], got %d", s.RScore)
	}
	if s.FScore < 1 || s.FScore > 4 {
		return fmt.Errorf("f_score must be in [1,4], got %d", s.FScore)
	}
	if s.MScore < 1 || s.MScore > 4 {
		return fmt.Errorf("m_score must be in [1,4], got %d", s.MScore)
	}
	if !s.Segment.IsValid() {
		return fmt.Errorf("invalid segment: %s", s.Segment)
	}
	if !s.LifecycleStage.IsValid() {
		return fmt.Errorf("invalid lifecycle stage: %s", s.LifecycleStage)
	}
	return nil
}

// MonthlyActivity is the per-customer-per-month aggregate produced from the
// ledger: signed spend, distinct basket count, and the latest purchase date
// within that month. Only months with at least one transaction appear here;
// the dense grid comes from the snapshot spine.
type MonthlyActivity struct {
	CustomerID   int64           `json:"customer_id"`
	MonthStart   time.Time       `json:"month_start"`
	Spend        decimal.Decimal `json:"spend"`
	Visits       int             `json:"visits"`
	LastPurchase time.Time       `json:"last_purchase"`
}

// SnapshotStatus is the operational status of a customer at a month end
type SnapshotStatus string

const (
	StatusActive     SnapshotStatus = "Active"
	StatusAtRisk     SnapshotStatus = "At-Risk"
	StatusChurned    SnapshotStatus = "Churned"
	StatusNewUnknown SnapshotStatus = "New/Unknown"
)

// String returns the string representation of the SnapshotStatus
func (s SnapshotStatus) String() string {
	return string(s)
}

// IsValid checks if the status is one of the known labels
func (s SnapshotStatus) IsValid() bool {
	switch s {
	case StatusActive, StatusAtRisk, StatusChurned, StatusNewUnknown:
		return true
	default:
		return false
	}
}

// LapsedDaysUnknown is the sentinel for "no purchase history yet": months
// before a customer's first-ever purchase carry it, and real lapsed-day
// values are capped just below it so the status ladder stays total.
const LapsedDaysUnknown = 999

// MonthlySnapshotRow is one cell of the dense customer-month grid after
// temporal enrichment. LastPurchaseAnytime is the zero time for months
// before the customer's first-ever purchase.
type MonthlySnapshotRow struct {
	CustomerID          int64           `json:"customer_id" csv:"customer_id"`
	MonthStart          time.Time       `json:"month_start" csv:"month_start"`
	MonthEnd            time.Time       `json:"month_end" csv:"month_end"`
	MonthlySpend        decimal.Decimal `json:"monthly_spend" csv:"monthly_spend"`
	MonthlyVisits       int             `json:"monthly_visits" csv:"monthly_visits"`
	Rolling3MSpend      decimal.Decimal `json:"rolling_3m_spend" csv:"rolling_3m_spend"`
	LastPurchaseAnytime time.Time       `json:"last_purchase_anytime" csv:"last_purchase_anytime"`
	LapsedDays          int             `json:"lapsed_days" csv:"lapsed_days"`
	Status              SnapshotStatus  `json:"status" csv:"status"`
}

// HasPurchaseHistory reports whether any purchase is known as of this month
func (r *MonthlySnapshotRow) HasPurchaseHistory() bool {
	return !r.LastPurchaseAnytime.IsZero()
}

// Utility functions for type conversion and validation

// ParseDecimalFromString parses a decimal value from string with validation
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	// Remove common currency symbols and thousand separators
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseIDFromString parses a positive integer identifier from string
func ParseIDFromString(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("identifier string cannot be empty")
	}

	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid identifier '%s': %w", s, err)
	}

	if id <= 0 {
		return 0, fmt.Errorf("identifier must be positive, got %d", id)
	}

	return id, nil
}

// ParseDateWithFormats attempts to parse a calendar date from string using
// multiple common formats
func ParseDateWithFormats(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		"2006-01-02",
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		time.RFC3339,
		"2006/01/02",
		"01/02/2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return TruncateToDay(t), nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// TruncateToDay normalizes a time to midnight UTC on its calendar day
func TruncateToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStartOf returns the first calendar day of the month containing t
func MonthStartOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEndOf returns the last calendar day of the month containing t
func MonthEndOf(t time.Time) time.Time {
	return MonthStartOf(t).AddDate(0, 1, -1)
}

// DaysBetween returns the whole number of days from earlier to later.
// Both arguments are expected to be day-truncated UTC times.
func DaysBetween(earlier, later time.Time) int {
	return int(later.Sub(earlier).Hours() / 24)
}

// CreateTransactionFromCSV creates a Transaction from CSV field values
func CreateTransactionFromCSV(customerIDStr, basketIDStr, amountStr, dateStr string) (*Transaction, error) {
	customerID, err := ParseIDFromString(customerIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid customer ID in CSV: %w", err)
	}

	basketID, err := ParseIDFromString(basketIDStr)
	if err != nil {
		return nil, fmt.Errorf("invalid basket ID in CSV: %w", err)
	}

	amount, err := ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("invalid sales amount in CSV: %w", err)
	}

	date, err := ParseDateWithFormats(dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid transaction date in CSV: %w", err)
	}

	transaction := NewTransaction(customerID, basketID, amount, date)

	if err := transaction.Validate(); err != nil {
		return nil, fmt.Errorf("invalid transaction data: %w", err)
	}

	return transaction, nil
}
