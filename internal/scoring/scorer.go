// Package scoring assigns ordinal RFM scores to aggregated customer
// metrics.
//
// Recency scoring is a fixed step function over business-cycle thresholds,
// deliberately not quantile-based: the recency score has to line up with an
// absolute intervention window regardless of how the customer population
// happens to be distributed. Frequency and monetary scoring are
// population-relative, but the ranking population is restricted to
// customers who are at least "at risk" on recency, so long-dormant
// customers cannot compress the active population's quantile boundaries.
package scoring

import (
	"sort"

	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/pkg/errors"
	"golang-rfm-analytics-service/pkg/logger"
)

// Recency thresholds in days. A customer seen within a week scores 5; the
// 15-30 day band is the intervention window; beyond 60 days is dormant.
const (
	recencyBand5 = 7
	recencyBand4 = 14
	recencyBand3 = 30
	recencyBand2 = 60
)

// Config holds scoring configuration
type Config struct {
	// ActiveThreshold is the minimum recency score for a customer to be
	// ranked for frequency/monetary scoring.
	ActiveThreshold int

	// Bins is the number of equal-count quantile bins for frequency and
	// monetary scores.
	Bins int
}

// DefaultConfig returns the standard scoring configuration
func DefaultConfig() *Config {
	return &Config{
		ActiveThreshold: 3,
		Bins:            4,
	}
}

// Validate checks the scoring configuration
func (c *Config) Validate() error {
	if c.ActiveThreshold < 1 || c.ActiveThreshold > 5 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"active_threshold",
			c.ActiveThreshold,
			nil,
		).WithSuggestion("Active threshold must be a recency score in [1,5]")
	}
	if c.Bins < 2 {
		return errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"bins",
			c.Bins,
			nil,
		).WithSuggestion("At least 2 quantile bins are required")
	}
	return nil
}

// Result holds scored customers plus any degraded-precision signal. The
// Warning is non-fatal: a partial, lower-precision answer is more useful
// than no answer for a reporting pipeline.
type Result struct {
	Customers   []*models.ScoredCustomer
	ActiveCount int
	Degraded    bool
	Warning     error
}

// Scorer assigns RFM scores to customer metrics
type Scorer struct {
	config *Config
	logger logger.Logger
}

// NewScorer creates a new Scorer with the given configuration
func NewScorer(config *Config) (*Scorer, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Scorer{
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("scorer"),
	}, nil
}

// RecencyScore maps recency days onto the fixed 1-5 step function
func RecencyScore(recencyDays int) int {
	switch {
	case recencyDays <= recencyBand5:
		return 5
	case recencyDays <= recencyBand4:
		return 4
	case recencyDays <= recencyBand3:
		return 3
	case recencyDays <= recencyBand2:
		return 2
	default:
		return 1
	}
}

// Score assigns r/f/m scores to every customer. Input order is preserved
// in the output; ties in frequency or monetary rank break by input order
// (ordinal rank), which keeps bin populations exactly equal and reruns
// byte-identical.
func (s *Scorer) Score(metrics []*models.CustomerMetrics) *Result {
	result := &Result{
		Customers: make([]*models.ScoredCustomer, len(metrics)),
	}

	var active []*models.ScoredCustomer

	for i, m := range metrics {
		scored := &models.ScoredCustomer{
			CustomerMetrics: *m,
			RScore:          RecencyScore(m.RecencyDays),
			FScore:          1,
			MScore:          1,
		}
		result.Customers[i] = scored

		if scored.RScore >= s.config.ActiveThreshold {
			active = append(active, scored)
		}
	}

	result.ActiveCount = len(active)

	if len(active) == 0 {
		return result
	}

	if len(active) < s.config.Bins {
		// Too few active customers to form distinct quantile bins. Every
		// active customer keeps the lowest score; the run still completes.
		result.Degraded = true
		result.Warning = errors.ScoringError(
			errors.CodeDegenerateBins,
			"frequency/monetary quantile binning",
			nil,
		).WithContext("active_customers", len(active)).
			WithContext("bins", s.config.Bins)

		s.logger.WithFields(logger.Fields{
			"active_customers": len(active),
			"bins":             s.config.Bins,
		}).Warn("Active subpopulation too small for quantile binning, degrading to lowest scores")

		return result
	}

	s.assignQuantileScores(active,
		func(a, b *models.ScoredCustomer) bool {
			return a.Frequency < b.Frequency
		},
		func(c *models.ScoredCustomer, score int) { c.FScore = score })

	s.assignQuantileScores(active,
		func(a, b *models.ScoredCustomer) bool {
			return a.Monetary.LessThan(b.Monetary)
		},
		func(c *models.ScoredCustomer, score int) { c.MScore = score })

	s.logger.WithFields(logger.Fields{
		"customers":        len(metrics),
		"active_customers": len(active),
		"bins":             s.config.Bins,
	}).Info("Assigned RFM scores")

	return result
}

// assignQuantileScores ranks the active subpopulation with a stable sort
// (ordinal rank: every customer gets a distinct rank even with duplicate
// metric values) and cuts the ranked sequence into equal-count bins, sizes
// differing by at most one.
func (s *Scorer) assignQuantileScores(
	active []*models.ScoredCustomer,
	less func(a, b *models.ScoredCustomer) bool,
	setScore func(c *models.ScoredCustomer, score int),
) {
	ranked := make([]*models.ScoredCustomer, len(active))
	copy(ranked, active)

	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[i], ranked[j])
	})

	n := len(ranked)
	for i, c := range ranked {
		setScore(c, i*s.config.Bins/n+1)
	}
}
