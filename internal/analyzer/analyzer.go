// Package analyzer orchestrates the full customer analytics pipeline.
//
// The pipeline runs in fixed stages: stream the transaction ledger from its
// source, aggregate per-customer and per-month metrics, assign RFM scores,
// label segments and lifecycle stages, and reconstruct the monthly snapshot
// panel. Progress callbacks fire at stage boundaries and while ledger
// records stream in, so callers can drive terminal progress bars without
// the pipeline knowing about them.
//
// Example usage:
//
//	service, err := analyzer.NewService(analyzer.DefaultConfig())
//	service.AddProgressCallback(func(p *analyzer.AnalysisProgress) {
//		fmt.Printf("%.1f%% - %s\n", p.PercentComplete, p.CurrentStep)
//	})
//	source, err := analyzer.NewFileSource("ledger.csv", nil, nil)
//	result, err := service.Analyze(ctx, source)
package analyzer

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"golang-rfm-analytics-service/internal/metrics"
	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/internal/parsers"
	"golang-rfm-analytics-service/internal/scoring"
	"golang-rfm-analytics-service/internal/segment"
	"golang-rfm-analytics-service/internal/snapshot"
	"golang-rfm-analytics-service/pkg/logger"
)

// Source streams ledger transactions in batches. Both the CSV file parser
// and the database ledger table satisfy it, so the pipeline never knows
// where its input came from.
type Source interface {
	StreamLedger(ctx context.Context, callback parsers.LedgerBatchCallback) (*parsers.ParseStats, error)
}

// fileSource adapts the streaming CSV parser to the Source interface.
type fileSource struct {
	path   string
	parser *parsers.StreamingLedgerParser
}

// NewFileSource returns a Source reading a CSV ledger file
func NewFileSource(path string, config *parsers.LedgerParserConfig, streamConfig *parsers.StreamingConfig) (Source, error) {
	parser, err := parsers.NewStreamingLedgerParser(config, streamConfig)
	if err != nil {
		return nil, err
	}
	return &fileSource{
		path:   path,
		parser: parser,
	}, nil
}

func (fs *fileSource) StreamLedger(ctx context.Context, callback parsers.LedgerBatchCallback) (*parsers.ParseStats, error) {
	return fs.parser.ParseLedgerStream(ctx, fs.path, callback)
}

// Config holds analysis pipeline configuration
type Config struct {
	Scoring  *scoring.Config
	Snapshot *snapshot.Config
}

// DefaultConfig returns the standard pipeline configuration
func DefaultConfig() *Config {
	return &Config{
		Scoring:  scoring.DefaultConfig(),
		Snapshot: snapshot.DefaultConfig(),
	}
}

// AnalysisProgress tracks the progress of a pipeline run
type AnalysisProgress struct {
	TotalSteps       int           `json:"total_steps"`
	CompletedSteps   int           `json:"completed_steps"`
	CurrentStep      string        `json:"current_step"`
	PercentComplete  float64       `json:"percent_complete"`
	StartTime        time.Time     `json:"start_time"`
	ElapsedTime      time.Duration `json:"elapsed_time"`
	RecordsProcessed int           `json:"records_processed"`

	Warnings []string `json:"warnings,omitempty"`
}

// ProgressCallback is called to report pipeline progress
type ProgressCallback func(*AnalysisProgress)

// ResultSummary holds high-level statistics for a completed run
type ResultSummary struct {
	TotalTransactions int             `json:"total_transactions"`
	TotalCustomers    int             `json:"total_customers"`
	ActiveCustomers   int             `json:"active_customers"`
	TotalMonetary     decimal.Decimal `json:"total_monetary"`
	DegradedBinning   bool            `json:"degraded_binning"`

	AnalysisDate time.Time `json:"analysis_date"`
	FirstMonth   time.Time `json:"first_month"`
	LastMonth    time.Time `json:"last_month"`
	SnapshotRows int       `json:"snapshot_rows"`

	SegmentCounts   []segment.Count          `json:"segment_counts"`
	LifecycleCounts []segment.LifecycleCount `json:"lifecycle_counts"`

	ProcessingDuration time.Duration `json:"processing_duration"`
}

// AnalysisResult is the complete output of a pipeline run
type AnalysisResult struct {
	Customers []*models.ScoredCustomer    `json:"customers"`
	Snapshots []*models.MonthlySnapshotRow `json:"snapshots"`
	Summary   *ResultSummary              `json:"summary"`
	Warnings  []string                    `json:"warnings,omitempty"`

	ProcessedAt time.Time `json:"processed_at"`
}

// Service runs the analytics pipeline
type Service struct {
	config  *Config
	scorer  *scoring.Scorer
	builder *snapshot.Builder
	logger  logger.Logger

	progressCallbacks []ProgressCallback
	currentProgress   *AnalysisProgress
	progressMutex     sync.RWMutex
}

// NewService creates a new analysis service with the given configuration
func NewService(config *Config) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}

	scorer, err := scoring.NewScorer(config.Scoring)
	if err != nil {
		return nil, err
	}

	builder, err := snapshot.NewBuilder(config.Snapshot)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:  config,
		scorer:  scorer,
		builder: builder,
		logger:  logger.GetGlobalLogger().WithComponent("analyzer"),
		currentProgress: &AnalysisProgress{
			TotalSteps: 5, // ingest, aggregate, score, label, snapshot
		},
	}, nil
}

// AddProgressCallback adds a progress callback function
func (s *Service) AddProgressCallback(callback ProgressCallback) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	s.progressCallbacks = append(s.progressCallbacks, callback)
}

// Analyze runs the full pipeline against the given ledger source
func (s *Service) Analyze(ctx context.Context, source Source) (*AnalysisResult, error) {
	startTime := time.Now()
	s.resetProgress(startTime)

	result := &AnalysisResult{
		Customers:   []*models.ScoredCustomer{},
		Snapshots:   []*models.MonthlySnapshotRow{},
		ProcessedAt: startTime,
	}

	s.advanceProgress("Ingesting ledger")
	agg := metrics.NewAggregator()
	stats, err := source.StreamLedger(ctx, func(batch []*models.Transaction) error {
		agg.Add(batch)
		s.updateRecordCount(agg.RowCount())
		return nil
	})
	if err != nil {
		return nil, err
	}

	// An empty ledger is a valid input describing an empty population, not
	// a failure. Every downstream output is empty too.
	if agg.RowCount() == 0 {
		s.logger.Warn("Ledger contains no transactions, producing empty outputs")
		result.Summary = &ResultSummary{
			TotalMonetary:      decimal.Zero,
			SegmentCounts:      []segment.Count{},
			LifecycleCounts:    []segment.LifecycleCount{},
			ProcessingDuration: time.Since(startTime),
		}
		return result, nil
	}

	s.advanceProgress("Aggregating customer metrics")
	customerMetrics := agg.CustomerMetrics()
	analysisDate := agg.AnalysisDate()
	firstDate, lastDate, _ := agg.DateRange()

	s.advanceProgress("Assigning RFM scores")
	scoreResult := s.scorer.Score(customerMetrics)
	if scoreResult.Degraded {
		s.addWarning(scoreResult.Warning.Error())
	}

	s.advanceProgress("Labeling segments")
	segment.Apply(scoreResult.Customers)

	s.advanceProgress("Reconstructing monthly snapshots")
	snapshots, err := s.builder.Build(ctx, agg.CustomerIDs(), agg.MonthlyActivity(), firstDate, lastDate)
	if err != nil {
		return nil, err
	}

	result.Customers = scoreResult.Customers
	result.Snapshots = snapshots
	result.Warnings = s.currentWarnings()
	result.Summary = s.buildSummary(stats, agg, scoreResult, snapshots, analysisDate, firstDate, lastDate, startTime)

	s.logDistributions(result.Summary)
	s.completeProgress()

	return result, nil
}

func (s *Service) buildSummary(
	stats *parsers.ParseStats,
	agg *metrics.Aggregator,
	scoreResult *scoring.Result,
	snapshots []*models.MonthlySnapshotRow,
	analysisDate, firstDate, lastDate time.Time,
	startTime time.Time,
) *ResultSummary {
	totalMonetary := decimal.Zero
	for _, c := range scoreResult.Customers {
		totalMonetary = totalMonetary.Add(c.Monetary)
	}

	return &ResultSummary{
		TotalTransactions:  stats.RecordsParsed,
		TotalCustomers:     len(scoreResult.Customers),
		ActiveCustomers:    scoreResult.ActiveCount,
		TotalMonetary:      totalMonetary,
		DegradedBinning:    scoreResult.Degraded,
		AnalysisDate:       analysisDate,
		FirstMonth:         models.MonthStartOf(firstDate),
		LastMonth:          models.MonthStartOf(lastDate),
		SnapshotRows:       len(snapshots),
		SegmentCounts:      segment.Distribution(scoreResult.Customers),
		LifecycleCounts:    segment.LifecycleDistribution(scoreResult.Customers),
		ProcessingDuration: time.Since(startTime),
	}
}

func (s *Service) logDistributions(summary *ResultSummary) {
	for _, c := range summary.SegmentCounts {
		s.logger.WithFields(logger.Fields{
			"segment":   c.Segment.String(),
			"customers": c.Count,
		}).Info("Segment population")
	}
	for _, c := range summary.LifecycleCounts {
		s.logger.WithFields(logger.Fields{
			"stage":     c.Stage.String(),
			"customers": c.Count,
		}).Info("Lifecycle population")
	}
}

// Progress tracking helpers

func (s *Service) resetProgress(startTime time.Time) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	s.currentProgress = &AnalysisProgress{
		TotalSteps: 5,
		StartTime:  startTime,
	}
}

func (s *Service) advanceProgress(step string) {
	s.progressMutex.Lock()
	s.currentProgress.CurrentStep = step
	s.currentProgress.CompletedSteps++
	s.currentProgress.PercentComplete = float64(s.currentProgress.CompletedSteps) / float64(s.currentProgress.TotalSteps) * 100
	s.currentProgress.ElapsedTime = time.Since(s.currentProgress.StartTime)
	snapshotCopy := *s.currentProgress
	callbacks := s.progressCallbacks
	s.progressMutex.Unlock()

	s.logger.WithFields(logger.Fields{
		"step":    step,
		"percent": snapshotCopy.PercentComplete,
	}).Debug("Pipeline progress")

	for _, cb := range callbacks {
		cb(&snapshotCopy)
	}
}

func (s *Service) updateRecordCount(records int) {
	s.progressMutex.Lock()
	s.currentProgress.RecordsProcessed = records
	s.currentProgress.ElapsedTime = time.Since(s.currentProgress.StartTime)
	snapshotCopy := *s.currentProgress
	callbacks := s.progressCallbacks
	s.progressMutex.Unlock()

	for _, cb := range callbacks {
		cb(&snapshotCopy)
	}
}

func (s *Service) completeProgress() {
	s.progressMutex.Lock()
	s.currentProgress.CurrentStep = "Complete"
	s.currentProgress.PercentComplete = 100
	s.currentProgress.ElapsedTime = time.Since(s.currentProgress.StartTime)
	snapshotCopy := *s.currentProgress
	callbacks := s.progressCallbacks
	s.progressMutex.Unlock()

	for _, cb := range callbacks {
		cb(&snapshotCopy)
	}
}

func (s *Service) addWarning(msg string) {
	s.progressMutex.Lock()
	defer s.progressMutex.Unlock()
	s.currentProgress.Warnings = append(s.currentProgress.Warnings, msg)
}

func (s *Service) currentWarnings() []string {
	s.progressMutex.RLock()
	defer s.progressMutex.RUnlock()
	if len(s.currentProgress.Warnings) == 0 {
		return nil
	}
	warnings := make([]string, len(s.currentProgress.Warnings))
	copy(warnings, s.currentProgress.Warnings)
	return warnings
}
