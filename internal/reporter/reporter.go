// Package reporter renders the outcome of an import pipeline.
//
// Supported output formats:
//   - Console: human-readable sections for terminal display
//   - JSON: the import with its transactions, matches and statistics
//   - CSV: one row per match plus one row per unmatched transaction
//
// Example usage:
//
//	gen, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatCSV})
//	err = gen.GenerateReport(result, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/reconciler"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
)

// OutputFormat represents the supported report output formats.
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

	IncludeTransactions bool `json:"include_transactions"`
	IncludeMatches      bool `json:"include_matches"`
	IncludeUnmatched    bool `json:"include_unmatched"`
	IncludeAmbiguities  bool `json:"include_ambiguities"`
	IncludeParseStats   bool `json:"include_parse_stats"`

	// MaxListItems caps console lists. Zero means no cap.
	MaxListItems int  `json:"max_list_items"`
	SortByAmount bool `json:"sort_by_amount"`

	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:              FormatConsole,
		IncludeTransactions: false,
		IncludeMatches:      true,
		IncludeUnmatched:    true,
		IncludeAmbiguities:  true,
		IncludeParseStats:   true,
		MaxListItems:        20,
		SortByAmount:        false,
		CSVDelimiter:        ',',
		CSVHeaders:          true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}
	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '\n' || c.CSVDelimiter == '"') {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}
	return nil
}

// ReportGenerator generates import reports in various formats
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

// GenerateReport writes a report of result to writer
func (rg *ReportGenerator) GenerateReport(result *reconciler.PipelineResult, writer io.Writer) error {
	if result == nil || result.Import == nil {
		return fmt.Errorf("pipeline result cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(result, writer)
	case FormatJSON:
		return rg.generateJSONReport(result, writer)
	case FormatCSV:
		return rg.generateCSVReport(result, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// Summary holds the figures shown at the top of every report.
type Summary struct {
	Import       string          `json:"import"`
	Bank         models.BankType `json:"bank"`
	File         string          `json:"file"`
	State        string          `json:"state"`
	Operations   int             `json:"operations"`
	Matched      int             `json:"matched"`
	Unmatched    int             `json:"unmatched"`
	Matches      int             `json:"matches"`
	Exact        int             `json:"exact"`
	Partial      int             `json:"partial"`
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Message      string          `json:"message,omitempty"`
}

// Summarize computes the report summary of result.
func Summarize(result *reconciler.PipelineResult) *Summary {
	imp := result.Import
	s := &Summary{
		Import:       imp.Name,
		Bank:         imp.BankType,
		File:         imp.FileName,
		State:        imp.State.String(),
		Operations:   imp.TotalOperations(),
		Matched:      imp.MatchedOperations(),
		Unmatched:    imp.UnmatchedOperations(),
		Matches:      len(imp.Matches),
		TotalDebits:  decimal.Zero,
		TotalCredits: decimal.Zero,
	}
	for _, m := range imp.Matches {
		if m.Type == models.MatchExact {
			s.Exact++
		} else {
			s.Partial++
		}
	}
	for _, tx := range imp.Transactions {
		if tx.IsDebit() {
			s.TotalDebits = s.TotalDebits.Add(tx.Amount.Abs())
		} else {
			s.TotalCredits = s.TotalCredits.Add(tx.Amount)
		}
	}
	switch {
	case result.Match != nil:
		s.Message = result.Match.Message
	case result.Process != nil:
		s.Message = result.Process.Message
	}
	return s
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(result *reconciler.PipelineResult, writer io.Writer) error {
	imp := result.Import
	summary := Summarize(result)

	fmt.Fprintf(writer, "BANK IMPORT REPORT\n")
	fmt.Fprintf(writer, "Import:   %s\n", imp.Name)
	fmt.Fprintf(writer, "Bank:     %s\n", imp.BankType.Label())
	fmt.Fprintf(writer, "File:     %s (%s)\n", imp.FileName, imp.FileKind)
	fmt.Fprintf(writer, "State:    %s\n", imp.State)
	if summary.Message != "" {
		fmt.Fprintf(writer, "Result:   %s\n", summary.Message)
	}
	fmt.Fprintf(writer, "Duration: %v\n\n", result.Duration.Round(time.Millisecond))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummary(summary, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeParseStats && result.Process != nil && result.Process.Stats != nil {
		fmt.Fprintf(writer, "=== PARSING ===\n")
		rg.printParseStats(result, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeTransactions && len(imp.Transactions) > 0 {
		fmt.Fprintf(writer, "=== TRANSACTIONS ===\n")
		rg.printTransactionList(imp.Transactions, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeMatches && len(imp.Matches) > 0 {
		fmt.Fprintf(writer, "=== MATCHES ===\n")
		rg.printMatches(imp.Matches, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatched && result.Match != nil {
		if unmatched := imp.UnmatchedTransactions(); len(unmatched) > 0 {
			fmt.Fprintf(writer, "=== UNMATCHED TRANSACTIONS ===\n")
			rg.printUnmatchedTransactions(unmatched, writer)
			fmt.Fprintf(writer, "\n")
		}
	}

	if rg.config.IncludeAmbiguities && len(result.Ambiguities) > 0 {
		fmt.Fprintf(writer, "=== NEEDS REVIEW ===\n")
		for _, g := range result.Ambiguities {
			fmt.Fprintf(writer, "  - %s\n", g.Reason)
		}
		fmt.Fprintf(writer, "\n")
	}

	return nil
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(result *reconciler.PipelineResult, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(rg.filterResultForOutput(result))
}

// MatchRow is one CSV record: a match, or an unmatched transaction with
// empty payment columns.
type MatchRow struct {
	Record           string `csv:"record"`
	Import           string `csv:"import"`
	Sequence         int    `csv:"sequence"`
	Date             string `csv:"date"`
	OperationNumber  string `csv:"operation_number"`
	Description      string `csv:"description"`
	Amount           string `csv:"amount"`
	MatchType        string `csv:"match_type"`
	Score            string `csv:"score"`
	PaymentID        string `csv:"payment_id"`
	PaymentReference string `csv:"payment_reference"`
	PaymentMemo      string `csv:"payment_memo"`
	PaymentAmount    string `csv:"payment_amount"`
	Currency         string `csv:"currency"`
	PartnerName      string `csv:"partner_name"`
}

// MatchRows flattens an import into CSV records, in transaction order.
func MatchRows(imp *models.Import, includeUnmatched bool) []*MatchRow {
	byTx := make(map[string][]*models.Match, len(imp.Matches))
	for _, m := range imp.Matches {
		byTx[m.TransactionID] = append(byTx[m.TransactionID], m)
	}

	var rows []*MatchRow
	for _, tx := range imp.Transactions {
		base := MatchRow{
			Import:          imp.Name,
			Sequence:        tx.Sequence,
			Date:            tx.Date.Format(models.DateLayout),
			OperationNumber: tx.OperationNumber,
			Description:     tx.Description,
			Amount:          tx.Amount.StringFixed(2),
		}

		matches := byTx[tx.ID]
		if len(matches) == 0 {
			if includeUnmatched {
				row := base
				row.Record = "unmatched"
				rows = append(rows, &row)
			}
			continue
		}
		for _, m := range matches {
			row := base
			row.Record = "match"
			row.MatchType = m.Type.String()
			if m.Score > 0 {
				row.Score = fmt.Sprintf("%d", m.Score)
			}
			row.PaymentID = m.PaymentID
			row.PaymentReference = m.PaymentReference
			row.PaymentMemo = m.PaymentMemo
			row.PaymentAmount = m.PaymentAmount.StringFixed(2)
			row.Currency = m.Currency
			row.PartnerName = m.PartnerName
			rows = append(rows, &row)
		}
	}
	return rows
}

// generateCSVReport generates a CSV report with one row per match
func (rg *ReportGenerator) generateCSVReport(result *reconciler.PipelineResult, writer io.Writer) error {
	rows := MatchRows(result.Import, rg.config.IncludeUnmatched)

	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	safe := gocsv.NewSafeCSVWriter(csvWriter)

	var err error
	if rg.config.CSVHeaders {
		err = gocsv.MarshalCSV(&rows, safe)
	} else {
		err = gocsv.MarshalCSVWithoutHeaders(&rows, safe)
	}
	if err != nil {
		return fmt.Errorf("failed to write CSV records: %w", err)
	}
	safe.Flush()
	return safe.Error()
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummary(s *Summary, writer io.Writer) {
	fmt.Fprintf(writer, "Operations:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", s.Operations)
	fmt.Fprintf(writer, "  Matched:   %d (%.1f%%)\n", s.Matched, rg.calculatePercentage(s.Matched, s.Operations))
	fmt.Fprintf(writer, "  Unmatched: %d (%.1f%%)\n", s.Unmatched, rg.calculatePercentage(s.Unmatched, s.Operations))
	fmt.Fprintf(writer, "\nMatches:\n")
	fmt.Fprintf(writer, "  Total:     %d\n", s.Matches)
	fmt.Fprintf(writer, "  Exact:     %d (%.1f%%)\n", s.Exact, rg.calculatePercentage(s.Exact, s.Matches))
	fmt.Fprintf(writer, "  Partial:   %d (%.1f%%)\n", s.Partial, rg.calculatePercentage(s.Partial, s.Matches))
	fmt.Fprintf(writer, "\nAmounts:\n")
	fmt.Fprintf(writer, "  Debits:    %s\n", s.TotalDebits.StringFixed(2))
	fmt.Fprintf(writer, "  Credits:   %s\n", s.TotalCredits.StringFixed(2))
}

func (rg *ReportGenerator) printParseStats(result *reconciler.PipelineResult, writer io.Writer) {
	stats := result.Process.Stats
	if stats.Backend != "" {
		fmt.Fprintf(writer, "Backend:    %s\n", stats.Backend)
	}
	if stats.Sheet != "" {
		fmt.Fprintf(writer, "Sheet:      %s\n", stats.Sheet)
	}
	if stats.HeaderRow > 0 {
		fmt.Fprintf(writer, "Header row: %d\n", stats.HeaderRow)
	}
	fmt.Fprintf(writer, "Candidates: %d\n", stats.Candidates)
	fmt.Fprintf(writer, "Accepted:   %d\n", stats.Accepted)
	fmt.Fprintf(writer, "Skipped:    %d\n", stats.Skipped)
	if len(stats.RowErrors) > 0 {
		fmt.Fprintf(writer, "Row errors: %d\n", len(stats.RowErrors))
		for i, e := range stats.RowErrors {
			if rg.truncated(i, len(stats.RowErrors), writer) {
				break
			}
			fmt.Fprintf(writer, "  - %s\n", e.Message)
		}
	}
}

func (rg *ReportGenerator) printMatches(matches []*models.Match, writer io.Writer) {
	for i, m := range matches {
		if rg.truncated(i, len(matches), writer) {
			break
		}
		fmt.Fprintf(writer, "  %d. [%s] Op: %s, Date: %s, Amount: %s -> Payment %s (%s), %s %s",
			i+1,
			strings.ToUpper(m.Type.String()),
			orDash(m.OperationNumber),
			m.TransactionDate.Format(models.DateLayout),
			m.Amount.StringFixed(2),
			m.PaymentID,
			orDash(m.PaymentReference),
			m.PaymentAmount.StringFixed(2),
			m.Currency)
		if m.PartnerName != "" {
			fmt.Fprintf(writer, ", %s", m.PartnerName)
		}
		if m.Score > 0 {
			fmt.Fprintf(writer, ", score %d", m.Score)
		}
		fmt.Fprintf(writer, "\n")
	}
}

func (rg *ReportGenerator) printUnmatchedTransactions(transactions []*models.Transaction, writer io.Writer) {
	if rg.config.SortByAmount {
		sorted := append([]*models.Transaction(nil), transactions...)
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Amount.Abs().GreaterThan(sorted[j].Amount.Abs())
		})
		transactions = sorted
	}

	fmt.Fprintf(writer, "Total Unmatched Transactions: %d\n\n", len(transactions))

	var debits, credits []*models.Transaction
	for _, tx := range transactions {
		if tx.IsDebit() {
			debits = append(debits, tx)
		} else {
			credits = append(credits, tx)
		}
	}

	if len(debits) > 0 {
		fmt.Fprintf(writer, "Debits (%d):\n", len(debits))
		rg.printTransactionList(debits, writer)
		fmt.Fprintf(writer, "\n")
	}

	if len(credits) > 0 {
		fmt.Fprintf(writer, "Credits (%d):\n", len(credits))
		rg.printTransactionList(credits, writer)
	}
}

func (rg *ReportGenerator) printTransactionList(transactions []*models.Transaction, writer io.Writer) {
	for i, tx := range transactions {
		if rg.truncated(i, len(transactions), writer) {
			break
		}
		date := tx.Date.Format(models.DateLayout)
		if !tx.DateResolved {
			date += "?"
		}
		fmt.Fprintf(writer, "  %d. Date: %s, Op: %s, Amount: %s, %s\n",
			tx.Sequence,
			date,
			orDash(tx.OperationNumber),
			tx.Amount.StringFixed(2),
			tx.Description)
	}
}

// truncated prints the "and N more" marker and reports true once index i
// reaches the configured cap.
func (rg *ReportGenerator) truncated(i, total int, writer io.Writer) bool {
	limit := rg.config.MaxListItems
	if limit <= 0 || i < limit {
		return false
	}
	fmt.Fprintf(writer, "  ... and %d more\n", total-limit)
	return true
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// Helper methods

func (rg *ReportGenerator) calculatePercentage(part, total int) float64 {
	if total == 0 {
		return 0.0
	}
	return float64(part) / float64(total) * 100.0
}

func (rg *ReportGenerator) filterResultForOutput(result *reconciler.PipelineResult) map[string]interface{} {
	imp := result.Import
	output := map[string]interface{}{
		"summary": Summarize(result),
		"import": map[string]interface{}{
			"id":           imp.ID,
			"name":         imp.Name,
			"bank_type":    imp.BankType,
			"file_name":    imp.FileName,
			"file_kind":    imp.FileKind,
			"state":        imp.State,
			"created_at":   imp.CreatedAt,
			"processed_at": imp.ProcessedAt,
			"matched_at":   imp.MatchedAt,
		},
	}

	if rg.config.IncludeTransactions {
		output["transactions"] = imp.Transactions
	}
	if rg.config.IncludeMatches {
		output["matches"] = imp.Matches
	}
	if rg.config.IncludeUnmatched && result.Match != nil {
		output["unmatched_transactions"] = imp.UnmatchedTransactions()
	}
	if rg.config.IncludeAmbiguities && len(result.Ambiguities) > 0 {
		output["ambiguities"] = result.Ambiguities
	}
	if rg.config.IncludeParseStats && result.Process != nil {
		output["parse_stats"] = result.Process.Stats
	}
	if result.Match != nil {
		output["match_stats"] = result.Match.Stats
	}

	return output
}

// UpdateConfiguration updates the report generator configuration
func (rg *ReportGenerator) UpdateConfiguration(config *ReportConfig) error {
	if err := config.Validate(); err != nil {
		return fmt.Errorf("invalid report configuration: %w", err)
	}

	rg.config = config
	return nil
}

// GetConfiguration returns the current configuration
func (rg *ReportGenerator) GetConfiguration() *ReportConfig {
	return rg.config
}
