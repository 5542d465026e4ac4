package parsers

import (
	"context"
	"fmt"
	"io"

	"golang-rfm-analytics-service/internal/models"
	"golang-rfm-analytics-service/pkg/errors"
	"golang-rfm-analytics-service/pkg/logger"
)

// LedgerParserConfig configures parsing of the cleaned transaction ledger
type LedgerParserConfig struct {
	CustomerIDColumn  string
	BasketIDColumn    string
	SalesAmountColumn string
	DateColumn        string
	HasHeader         bool
	Delimiter         rune

	// ColumnAliases maps alternative header names onto the canonical ones,
	// so feeds exported under different naming conventions parse unchanged.
	ColumnAliases map[string]string
}

// DefaultLedgerParserConfig returns the canonical ledger column layout
func DefaultLedgerParserConfig() *LedgerParserConfig {
	return &LedgerParserConfig{
		CustomerIDColumn:  "customer_id",
		BasketIDColumn:    "basket_id",
		SalesAmountColumn: "sales_amount",
		DateColumn:        "date",
		HasHeader:         true,
		Delimiter:         ',',
		ColumnAliases: map[string]string{
			"household_key": "customer_id",
			"household_id":  "customer_id",
			"hh_key":        "customer_id",
			"BASKET_ID":     "basket_id",
			"trip_id":       "basket_id",
			"SALES_VALUE":   "sales_amount",
			"sales_value":   "sales_amount",
			"amount":        "sales_amount",
			"DATE":          "date",
			"purchase_date": "date",
		},
	}
}

// Validate checks the ledger parser configuration
func (c *LedgerParserConfig) Validate() error {
	if c.CustomerIDColumn == "" {
		return fmt.Errorf("customer ID column name cannot be empty")
	}
	if c.BasketIDColumn == "" {
		return fmt.Errorf("basket ID column name cannot be empty")
	}
	if c.SalesAmountColumn == "" {
		return fmt.Errorf("sales amount column name cannot be empty")
	}
	if c.DateColumn == "" {
		return fmt.Errorf("date column name cannot be empty")
	}
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be zero")
	}
	return nil
}

func (c *LedgerParserConfig) requiredColumns() []string {
	return []string{
		c.CustomerIDColumn,
		c.BasketIDColumn,
		c.SalesAmountColumn,
		c.DateColumn,
	}
}

// LedgerParser parses the cleaned transaction ledger CSV
type LedgerParser struct {
	*BaseParser
	config *LedgerParserConfig
	logger logger.Logger
}

// NewLedgerParser creates a new LedgerParser with the given configuration
func NewLedgerParser(config *LedgerParserConfig) (*LedgerParser, error) {
	if config == nil {
		config = DefaultLedgerParserConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(
			errors.CodeInvalidConfig,
			"ledger_parser_config",
			config,
			err,
		).WithSuggestion("Check the ledger parser configuration values")
	}

	parseConfig := &ParseConfig{
		HasHeader:        config.HasHeader,
		Delimiter:        config.Delimiter,
		TrimLeadingSpace: true,
		SkipEmptyRows:    true,
		ValidateEncoding: true,
	}

	return &LedgerParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("ledger_parser"),
	}, nil
}

// ParseLedger parses a CSV file containing the cleaned transaction ledger
func (lp *LedgerParser) ParseLedger(filePath string) ([]*models.Transaction, *ParseStats, error) {
	return lp.ParseLedgerWithContext(context.Background(), filePath)
}

// ParseLedgerWithContext parses the ledger with cancellation support.
// Any unparseable row is fatal: garbage input invalidates the whole batch.
func (lp *LedgerParser) ParseLedgerWithContext(ctx context.Context, filePath string) ([]*models.Transaction, *ParseStats, error) {
	lp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_ledger",
	}).Info("Starting ledger parsing")

	file, reader, err := lp.OpenFile(filePath)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	parseCtx := NewParseContext(ctx)
	stats := &ParseStats{}

	if err := lp.ReadHeaders(reader, parseCtx); err != nil {
		return nil, stats, err
	}
	lp.normalizeHeaders(parseCtx)
	if err := lp.checkRequiredColumns(parseCtx, filePath); err != nil {
		return nil, stats, err
	}

	var transactions []*models.Transaction

	for {
		record, err := lp.ReadRecord(reader, parseCtx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, errors.ParseError(
				errors.CodeInvalidFormat,
				filePath,
				parseCtx.LineNumber,
				"",
				"",
				err,
			)
		}

		tx, err := lp.parseRecord(record, parseCtx, filePath)
		if err != nil {
			return nil, stats, err
		}

		transactions = append(transactions, tx)
		parseCtx.RecordCount++
	}

	stats.TotalLines = parseCtx.LineNumber
	stats.RecordsParsed = parseCtx.RecordCount

	lp.logger.WithFields(logger.Fields{
		"file_path":    filePath,
		"transactions": len(transactions),
		"lines":        stats.TotalLines,
	}).Info("Ledger parsing completed")

	return transactions, stats, nil
}

// normalizeHeaders rewrites aliased header names onto the canonical ones
func (lp *LedgerParser) normalizeHeaders(parseCtx *ParseContext) {
	if len(lp.config.ColumnAliases) == 0 {
		return
	}

	changed := false
	for i, header := range parseCtx.Headers {
		if canonical, ok := lp.config.ColumnAliases[header]; ok {
			parseCtx.Headers[i] = canonical
			changed = true
		}
	}

	if changed {
		parseCtx.rebuildHeaderMap()
		lp.logger.WithField("headers", parseCtx.Headers).Debug("Normalized aliased headers")
	}
}

func (lp *LedgerParser) checkRequiredColumns(parseCtx *ParseContext, filePath string) error {
	for _, column := range lp.config.requiredColumns() {
		if parseCtx.GetColumnIndex(column) == -1 {
			lp.logger.WithFields(logger.Fields{
				"missing_column":    column,
				"available_headers": parseCtx.Headers,
			}).Error("Required ledger column is missing")

			return errors.ParseError(
				errors.CodeMissingColumn,
				filePath,
				parseCtx.LineNumber,
				column,
				"",
				nil,
			).WithSuggestion(fmt.Sprintf("Ensure the ledger contains a '%s' column (aliases are accepted)", column))
		}
	}
	return nil
}

// parseRecord coerces one CSV record into a Transaction. Errors name the
// offending column so the operator knows what to fix.
func (lp *LedgerParser) parseRecord(record []string, parseCtx *ParseContext, filePath string) (*models.Transaction, error) {
	customerStr, err := lp.GetFieldValue(record, parseCtx, lp.config.CustomerIDColumn)
	if err != nil {
		return nil, err
	}
	customerID, err := models.ParseIDFromString(customerStr)
	if err != nil {
		return nil, lp.fieldError(filePath, parseCtx.LineNumber, lp.config.CustomerIDColumn, customerStr, err)
	}

	basketStr, err := lp.GetFieldValue(record, parseCtx, lp.config.BasketIDColumn)
	if err != nil {
		return nil, err
	}
	basketID, err := models.ParseIDFromString(basketStr)
	if err != nil {
		return nil, lp.fieldError(filePath, parseCtx.LineNumber, lp.config.BasketIDColumn, basketStr, err)
	}

	amountStr, err := lp.GetFieldValue(record, parseCtx, lp.config.SalesAmountColumn)
	if err != nil {
		return nil, err
	}
	amount, err := models.ParseDecimalFromString(amountStr)
	if err != nil {
		return nil, lp.fieldError(filePath, parseCtx.LineNumber, lp.config.SalesAmountColumn, amountStr, err)
	}

	dateStr, err := lp.GetFieldValue(record, parseCtx, lp.config.DateColumn)
	if err != nil {
		return nil, err
	}
	date, err := models.ParseDateWithFormats(dateStr)
	if err != nil {
		return nil, lp.fieldError(filePath, parseCtx.LineNumber, lp.config.DateColumn, dateStr, err)
	}

	tx := models.NewTransaction(customerID, basketID, amount, date)
	if err := tx.Validate(); err != nil {
		return nil, lp.fieldError(filePath, parseCtx.LineNumber, lp.config.CustomerIDColumn, tx.String(), err)
	}

	return tx, nil
}

func (lp *LedgerParser) fieldError(filePath string, line int, column, value string, err error) error {
	return errors.ParseError(
		errors.CodeInvalidData,
		filePath,
		line,
		column,
		value,
		err,
	)
}
