// Package snapshot reconstructs the dense customer-month panel from sparse
// monthly activity.
//
// The spine is the full cross product of every known customer and every
// calendar month in the observation window. It is built directly from the
// two axes rather than by joining the ledger against itself, so months with
// no transactions still produce rows and the panel size is exactly
// |customers| x |months|. Enrichment then folds each customer's row
// sequence in month order, which is what makes forward-filling and rolling
// windows well defined.
package snapshot

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/pkg/errors"
	"golang-rfm-analytics-service/pkg/logger"
)

// Config holds snapshot construction configuration
type Config struct {
	// Workers is the number of parallel customer partitions.
	Workers int

	// RollingWindowMonths is the trailing window for rolling spend,
	// including the current month.
	RollingWindowMonths int
}

// DefaultConfig returns the standard snapshot configuration
func DefaultConfig() *Config {
	return &Config{
		Workers:             4,
		RollingWindowMonths: 3,
	}
}

// Validate checks the snapshot configuration
func (c *Config) Validate() error {
	if c.Workers < 1 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"workers",
			c.Workers,
			nil,
		).WithSuggestion("At least one worker is required")
	}
	if c.RollingWindowMonths < 1 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"rolling_window_months",
			c.RollingWindowMonths,
			nil,
		).WithSuggestion("Rolling window must cover at least the current month")
	}
	return nil
}

// Builder constructs enriched monthly snapshot panels
type Builder struct {
	config *Config
	logger logger.Logger
}

// NewBuilder creates a new Builder with the given configuration
func NewBuilder(config *Config) (*Builder, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Builder{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("snapshot"),
	}, nil
}

// MonthsBetweenInclusive returns the first calendar day of every month from
// the month containing first through the month containing last.
func MonthsBetweenInclusive(first, last time.Time) []time.Time {
	start := models.MonthStartOf(first)
	end := models.MonthStartOf(last)

	var months []time.Time
	for m := start; !m.After(end); m = m.AddDate(0, 1, 0) {
		months = append(months, m)
	}
	return months
}

// Build produces the enriched customer-month panel. Rows come back sorted
// by customer ID then month, one row per customer per month in the window.
// customerIDs must be sorted ascending; every worker writes a disjoint,
// position-computed slice segment, so the output order never depends on
// goroutine scheduling.
func (b *Builder) Build(ctx context.Context, customerIDs []int64, activity []*models.MonthlyActivity, firstMonth, lastMonth time.Time) ([]*models.MonthlySnapshotRow, error) {
	if len(customerIDs) == 0 {
		return []*models.MonthlySnapshotRow{}, nil
	}

	months := MonthsBetweenInclusive(firstMonth, lastMonth)
	byCustomer := indexActivity(activity)

	rows := make([]*models.MonthlySnapshotRow, len(customerIDs)*len(months))

	tracker := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "snapshot_enrichment",
		Total:     int64(len(customerIDs)),
		Logger:    b.logger,
	})

	workers := b.config.Workers
	if workers > len(customerIDs) {
		workers = len(customerIDs)
	}
	chunk := (len(customerIDs) + workers - 1) / workers

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := lo + chunk
		if hi > len(customerIDs) {
			hi = len(customerIDs)
		}
		if lo >= hi {
			break
		}

		g.Go(func() error {
			for i := lo; i < hi; i++ {
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				id := customerIDs[i]
				out := rows[i*len(months) : (i+1)*len(months)]
				enrichCustomer(id, months, byCustomer[id], b.config.RollingWindowMonths, out)
				tracker.Increment()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		tracker.CompleteWithError(err)
		return nil, errors.InternalError(errors.CodeUnexpectedError, "snapshot construction", err)
	}
	tracker.Complete()

	b.logger.WithFields(logger.Fields{
		"customers": len(customerIDs),
		"months":    len(months),
		"rows":      len(rows),
		"workers":   workers,
	}).Info("Built monthly snapshot panel")

	return rows, nil
}

// indexActivity groups sparse activity by customer, keyed by month start.
func indexActivity(activity []*models.MonthlyActivity) map[int64]map[time.Time]*models.MonthlyActivity {
	byCustomer := make(map[int64]map[time.Time]*models.MonthlyActivity)
	for _, a := range activity {
		months, ok := byCustomer[a.CustomerID]
		if !ok {
			months = make(map[time.Time]*models.MonthlyActivity)
			byCustomer[a.CustomerID] = months
		}
		months[a.MonthStart] = a
	}
	return byCustomer
}
