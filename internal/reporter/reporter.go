// Package reporter renders analysis results in multiple output formats.
//
// Supported output formats:
//   - Console: Human-readable summary for terminal display
//   - JSON: Structured data format for programmatic consumption
//   - CSV: Comma-separated format for spreadsheet applications
//
// Two reports are produced per run: the customer score report (one row per
// customer with RFM scores and labels) and the snapshot report (the dense
// customer-month panel). CSV output always includes the header row, even
// for an empty population, so downstream consumers can rely on the schema.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"golang-rfm-analytics-service/internal/analyzer"
	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/pkg/errors"
)

const dateLayout = "2006-01-02"

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`

	// Console options
	MaxConsoleRows int `json:"max_console_rows"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:         FormatConsole,
		CSVDelimiter:   ',',
		MaxConsoleRows: 10,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxConsoleRows < 1 {
		return fmt.Errorf("max console rows must be positive, got %d", c.MaxConsoleRows)
	}
	return nil
}

// ReportGenerator renders analysis results
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// WriteCustomerReport writes the per-customer score report to the writer
func (rg *ReportGenerator) WriteCustomerReport(result *analyzer.AnalysisResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("analysis result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.writeCustomerConsole(result, writer)
	case FormatJSON:
		return rg.writeCustomerJSON(result, writer)
	case FormatCSV:
		return rg.writeCustomerCSV(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// WriteSnapshotReport writes the customer-month panel to the writer
func (rg *ReportGenerator) WriteSnapshotReport(result *analyzer.AnalysisResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("analysis result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.writeSnapshotConsole(result, writer)
	case FormatJSON:
		return rg.writeSnapshotJSON(result, writer)
	case FormatCSV:
		return rg.writeSnapshotCSV(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// WriteCustomerReportFile writes the customer report to a file path
func (rg *ReportGenerator) WriteCustomerReportFile(result *analyzer.AnalysisResult, path string) error {
	return rg.writeFile(path, func(w io.Writer) error {
		return rg.WriteCustomerReport(result, w)
	})
}

// WriteSnapshotReportFile writes the snapshot report to a file path
func (rg *ReportGenerator) WriteSnapshotReportFile(result *analyzer.AnalysisResult, path string) error {
	return rg.writeFile(path, func(w io.Writer) error {
		return rg.WriteSnapshotReport(result, w)
	})
}

func (rg *ReportGenerator) writeFile(path string, write func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.FileError(errors.CodeDirectoryError, path, err).
			WithSuggestion("Check that the output directory exists and is writable")
	}
	defer f.Close()

	if err := write(f); err != nil {
		return err
	}
	return f.Close()
}

// CSV output

func (rg *ReportGenerator) writeCustomerCSV(result *analyzer.AnalysisResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	headers := []string{
		"customer_id",
		"recency_days",
		"frequency",
		"monetary",
		"r_score",
		"f_score",
		"m_score",
		"rfm_score",
		"segment",
		"lifecycle_stage",
	}
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, c := range result.Customers {
		record := []string{
			strconv.FormatInt(c.CustomerID, 10),
			strconv.Itoa(c.RecencyDays),
			strconv.Itoa(c.Frequency),
			c.Monetary.StringFixed(2),
			strconv.Itoa(c.RScore),
			strconv.Itoa(c.FScore),
			strconv.Itoa(c.MScore),
			c.RFMScore(),
			c.Segment.String(),
			c.LifecycleStage.String(),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write customer record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func (rg *ReportGenerator) writeSnapshotCSV(result *analyzer.AnalysisResult, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	defer csvWriter.Flush()

	headers := []string{
		"customer_id",
		"month_start",
		"month_end",
		"monthly_spend",
		"monthly_visits",
		"rolling_3m_spend",
		"last_purchase_anytime",
		"lapsed_days",
		"status",
	}
	if err := csvWriter.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, row := range result.Snapshots {
		lastPurchase := ""
		if row.HasPurchaseHistory() {
			lastPurchase = row.LastPurchaseAnytime.Format(dateLayout)
		}
		record := []string{
			strconv.FormatInt(row.CustomerID, 10),
			row.MonthStart.Format(dateLayout),
			row.MonthEnd.Format(dateLayout),
			row.MonthlySpend.StringFixed(2),
			strconv.Itoa(row.MonthlyVisits),
			row.Rolling3MSpend.StringFixed(2),
			lastPurchase,
			strconv.Itoa(row.LapsedDays),
			row.Status.String(),
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write snapshot record: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// JSON output

func (rg *ReportGenerator) writeCustomerJSON(result *analyzer.AnalysisResult, writer io.Writer) error {
	output := map[string]interface{}{
		"summary":      result.Summary,
		"customers":    result.Customers,
		"processed_at": result.ProcessedAt,
	}
	if len(result.Warnings) > 0 {
		output["warnings"] = result.Warnings
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func (rg *ReportGenerator) writeSnapshotJSON(result *analyzer.AnalysisResult, writer io.Writer) error {
	output := map[string]interface{}{
		"summary":      result.Summary,
		"snapshots":    result.Snapshots,
		"processed_at": result.ProcessedAt,
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

// Console output

func (rg *ReportGenerator) writeCustomerConsole(result *analyzer.AnalysisResult, writer io.Writer) error {
	fmt.Fprintf(writer, "CUSTOMER ANALYTICS REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n", result.ProcessedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", result.Summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(result.Summary, writer)
	fmt.Fprintf(writer, "\n")

	if len(result.Summary.SegmentCounts) > 0 {
		fmt.Fprintf(writer, "=== SEGMENT DISTRIBUTION ===\n")
		for _, c := range result.Summary.SegmentCounts {
			fmt.Fprintf(writer, "  %-24s %d (%.1f%%)\n",
				c.Segment.String(),
				c.Count,
				percentage(c.Count, result.Summary.TotalCustomers))
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(result.Summary.LifecycleCounts) > 0 {
		fmt.Fprintf(writer, "=== LIFECYCLE DISTRIBUTION ===\n")
		for _, c := range result.Summary.LifecycleCounts {
			fmt.Fprintf(writer, "  %-24s %d (%.1f%%)\n",
				c.Stage.String(),
				c.Count,
				percentage(c.Count, result.Summary.TotalCustomers))
		}
		fmt.Fprintf(writer, "\n")
	}

	if len(result.Customers) > 0 {
		fmt.Fprintf(writer, "=== TOP CUSTOMERS ===\n")
		rg.printCustomerList(result.Customers, writer)
	}

	if len(result.Warnings) > 0 {
		fmt.Fprintf(writer, "\n=== WARNINGS ===\n")
		for _, w := range result.Warnings {
			fmt.Fprintf(writer, "  - %s\n", w)
		}
	}

	return nil
}

func (rg *ReportGenerator) writeSnapshotConsole(result *analyzer.AnalysisResult, writer io.Writer) error {
	fmt.Fprintf(writer, "MONTHLY SNAPSHOT REPORT\n")
	fmt.Fprintf(writer, "Generated: %s\n\n", result.ProcessedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== PANEL ===\n")
	fmt.Fprintf(writer, "Customers:      %d\n", result.Summary.TotalCustomers)
	if !result.Summary.FirstMonth.IsZero() {
		fmt.Fprintf(writer, "Window:         %s to %s\n",
			result.Summary.FirstMonth.Format(dateLayout),
			result.Summary.LastMonth.Format(dateLayout))
	}
	fmt.Fprintf(writer, "Snapshot Rows:  %d\n\n", result.Summary.SnapshotRows)

	if len(result.Snapshots) == 0 {
		return nil
	}

	fmt.Fprintf(writer, "=== SAMPLE ROWS ===\n")
	for i, row := range result.Snapshots {
		fmt.Fprintf(writer, "  %d. Customer: %d, Month: %s, Spend: %s, Lapsed: %d, Status: %s\n",
			i+1,
			row.CustomerID,
			row.MonthStart.Format(dateLayout),
			row.MonthlySpend.StringFixed(2),
			row.LapsedDays,
			row.Status)

		if i >= rg.config.MaxConsoleRows-1 && len(result.Snapshots) > rg.config.MaxConsoleRows {
			fmt.Fprintf(writer, "  ... and %d more\n", len(result.Snapshots)-rg.config.MaxConsoleRows)
			break
		}
	}

	return nil
}

func (rg *ReportGenerator) printSummary(summary *analyzer.ResultSummary, writer io.Writer) {
	fmt.Fprintf(writer, "Transactions:     %d\n", summary.TotalTransactions)
	fmt.Fprintf(writer, "Customers:        %d\n", summary.TotalCustomers)
	fmt.Fprintf(writer, "Active Customers: %d (%.1f%%)\n",
		summary.ActiveCustomers,
		percentage(summary.ActiveCustomers, summary.TotalCustomers))
	fmt.Fprintf(writer, "Total Monetary:   %s\n", summary.TotalMonetary.StringFixed(2))
	if !summary.AnalysisDate.IsZero() {
		fmt.Fprintf(writer, "Analysis Date:    %s\n", summary.AnalysisDate.Format(dateLayout))
	}
	if summary.DegradedBinning {
		fmt.Fprintf(writer, "Note: frequency/monetary binning degraded, active population too small\n")
	}
}

func (rg *ReportGenerator) printCustomerList(customers []*models.ScoredCustomer, writer io.Writer) {
	for i, c := range customers {
		fmt.Fprintf(writer, "  %d. ID: %d, RFM: %s, Monetary: %s, Segment: %s\n",
			i+1,
			c.CustomerID,
			c.RFMScore(),
			c.Monetary.StringFixed(2),
			c.Segment)

		if i >= rg.config.MaxConsoleRows-1 && len(customers) > rg.config.MaxConsoleRows {
			fmt.Fprintf(writer, "  ... and %d more\n", len(customers)-rg.config.MaxConsoleRows)
			break
		}
	}
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}
