package config

import (
	"golang-rfm-analytics-service/internal/analyzer"
	"golang-rfm-analytics-service/internal/database"
	"golang-rfm-analytics-service/internal/parsers"
	"golang-rfm-analytics-service/internal/reporter"
	"golang-rfm-analytics-service/internal/scoring"
	"golang-rfm-analytics-service/internal/snapshot"
)

// CreateLedgerParserConfig creates the default ledger parser configuration
func CreateLedgerParserConfig(delimiter rune) *parsers.LedgerParserConfig {
	config := parsers.DefaultLedgerParserConfig()
	if delimiter != 0 {
		config.Delimiter = delimiter
	}
	return config
}

// CreateStreamingConfig creates a streaming configuration with the given batch size
func CreateStreamingConfig(batchSize int) *parsers.StreamingConfig {
	config := parsers.DefaultStreamingConfig()
	if batchSize > 0 {
		config.BatchSize = batchSize
	}
	return config
}

// CreateAnalyzerConfig creates a pipeline configuration with CLI overrides applied
func CreateAnalyzerConfig(workers int) *analyzer.Config {
	config := &analyzer.Config{
		Scoring:  scoring.DefaultConfig(),
		Snapshot: snapshot.DefaultConfig(),
	}
	if workers > 0 {
		config.Snapshot.Workers = workers
	}
	return config
}

// CreateReportConfig creates a report configuration for the given output format
func CreateReportConfig(format string) *reporter.ReportConfig {
	config := reporter.DefaultReportConfig()
	config.Format = reporter.OutputFormat(format)
	return config
}

// CreateSourceConfig creates a database source configuration with CLI overrides applied
func CreateSourceConfig(dsn, table string, batchSize int) *database.SourceConfig {
	config := database.DefaultSourceConfig()
	config.DSN = dsn
	if table != "" {
		config.Table = table
	}
	if batchSize > 0 {
		config.BatchSize = batchSize
	}
	return config
}
