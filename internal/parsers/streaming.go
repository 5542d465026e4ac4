package parsers

import (
	"context"
	"fmt"
	"io"

	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/pkg/logger"
)

// LedgerBatchCallback receives one batch of parsed transactions. Returning
// an error aborts the stream.
type LedgerBatchCallback func(transactions []*models.Transaction) error

// StreamingConfig configures batch sizes for streaming ledger parsing
type StreamingConfig struct {
	BatchSize int
}

// DefaultStreamingConfig returns sensible streaming defaults
func DefaultStreamingConfig() *StreamingConfig {
	return &StreamingConfig{
		BatchSize: 10000,
	}
}

// Validate checks the streaming configuration
func (c *StreamingConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	return nil
}

// StreamingLedgerParser processes the transaction ledger in batches so
// ledgers larger than memory can still feed the aggregator incrementally.
type StreamingLedgerParser struct {
	*LedgerParser
	config *StreamingConfig
	logger logger.Logger
}

// NewStreamingLedgerParser creates a new streaming ledger parser
func NewStreamingLedgerParser(config *LedgerParserConfig, streamConfig *StreamingConfig) (*StreamingLedgerParser, error) {
	if streamConfig == nil {
		streamConfig = DefaultStreamingConfig()
	}

	if err := streamConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid streaming configuration: %w", err)
	}

	ledgerParser, err := NewLedgerParser(config)
	if err != nil {
		return nil, err
	}

	return &StreamingLedgerParser{
		LedgerParser: ledgerParser,
		config:       streamConfig,
		logger:       logger.GetGlobalLogger().WithComponent("streaming_ledger_parser"),
	}, nil
}

// ParseLedgerStream parses the ledger batch by batch, invoking the callback
// for each full batch and once more for the final partial batch.
func (sp *StreamingLedgerParser) ParseLedgerStream(ctx context.Context, filePath string, callback LedgerBatchCallback) (*ParseStats, error) {
	if callback == nil {
		return nil, fmt.Errorf("batch callback cannot be nil")
	}

	sp.logger.WithFields(logger.Fields{
		"file_path":  filePath,
		"batch_size": sp.config.BatchSize,
	}).Info("Starting streaming ledger parse")

	file, reader, err := sp.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := &ParseStats{}

	if err := sp.ReadHeaders(reader, parseCtx); err != nil {
		return stats, err
	}
	sp.normalizeHeaders(parseCtx)
	if err := sp.checkRequiredColumns(parseCtx, filePath); err != nil {
		return stats, err
	}

	batch := make([]*models.Transaction, 0, sp.config.BatchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := callback(batch); err != nil {
			return fmt.Errorf("batch callback error: %w", err)
		}
		batch = batch[:0]
		return nil
	}

	for {
		record, err := sp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, err
		}

		tx, err := sp.parseRecord(record, parseCtx, filePath)
		if err != nil {
			return stats, err
		}

		batch = append(batch, tx)
		parseCtx.RecordCount++

		if len(batch) >= sp.config.BatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	stats.TotalLines = parseCtx.LineNumber
	stats.RecordsParsed = parseCtx.RecordCount

	sp.logger.WithFields(logger.Fields{
		"file_path":    filePath,
		"transactions": stats.RecordsParsed,
	}).Info("Streaming ledger parse completed")

	return stats, nil
}
