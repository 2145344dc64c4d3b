package parsers

import (
	stderrors "errors"
	"fmt"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"go.uber.org/multierr"
)

// SpreadsheetParser reads .xlsx and .xls statements. Backends are tried in
// order; a backend that cannot open or read the workbook hands over to the
// next one, while layout problems in a workbook that was read are final.
type SpreadsheetParser struct {
	backends    []Backend
	previewRows int
	logger      logger.Logger
}

// NewSpreadsheetParser creates a SpreadsheetParser from configuration
func NewSpreadsheetParser(config *SpreadsheetConfig) (*SpreadsheetParser, error) {
	if config == nil {
		config = DefaultSpreadsheetConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "spreadsheet.backends", config.Backends, err)
	}

	backends, err := BackendsByName(config.Backends)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "spreadsheet.backends", config.Backends, err)
	}

	p := NewSpreadsheetParserWithBackends(backends...)
	p.previewRows = config.PreviewRows
	return p, nil
}

// NewSpreadsheetParserWithBackends creates a SpreadsheetParser over an
// explicit backend chain.
func NewSpreadsheetParserWithBackends(backends ...Backend) *SpreadsheetParser {
	return &SpreadsheetParser{
		backends:    backends,
		previewRows: 5,
		logger:      logger.GetGlobalLogger().WithComponent("spreadsheet_parser"),
	}
}

// Parse extracts raw transactions from the sheet chosen by profile.
func (p *SpreadsheetParser) Parse(name string, data []byte, profile BankProfile) ([]*RawTransaction, *ParseStats, error) {
	stats := &ParseStats{FileKind: models.FileKindSpreadsheet}
	log := p.logger.WithFields(logger.Fields{"file": name, "bank": profile.Bank()})

	if len(p.backends) == 0 {
		return nil, stats, errors.UserInputError(errors.CodeBackendUnavailable, "no spreadsheet backend is enabled", nil)
	}

	var failures error
	for _, backend := range p.backends {
		sheet, rows, err := p.readSheet(backend, data, profile)
		if err != nil {
			log.WithFields(logger.Fields{
				"backend": backend.Name(),
				"error":   err.Error(),
			}).Warn("Spreadsheet backend failed, trying next")
			failures = multierr.Append(failures, err)
			continue
		}

		stats.Backend = backend.Name()
		stats.Sheet = sheet
		log = log.WithFields(logger.Fields{"backend": backend.Name(), "sheet": sheet})
		log.Debug("Workbook opened")

		raws, err := p.extract(name, rows, profile.Layout(), stats, log)
		return raws, stats, err
	}

	return nil, stats, errors.FormatError(errors.CodeWorkbookUnreadable, name, failures.Error(), failures).
		WithContext("backends_tried", len(multierr.Errors(failures)))
}

// readSheet opens data with backend and returns the rows of the sheet the
// profile selects.
func (p *SpreadsheetParser) readSheet(backend Backend, data []byte, profile BankProfile) (string, []RawRow, error) {
	wb, err := backend.Open(data)
	if err != nil {
		return "", nil, err
	}
	defer wb.Close()

	sheet := selectSheet(profile, wb.SheetNames(), wb.ActiveSheet())

	rows, err := wb.Rows(sheet)
	if err != nil {
		return "", nil, err
	}
	return sheet, rows, nil
}

func selectSheet(profile BankProfile, names []string, active string) string {
	if profile != nil {
		return profile.SelectSheet(names, active)
	}
	if active != "" {
		return active
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

func (p *SpreadsheetParser) extract(name string, rows []RawRow, layout SheetLayout, stats *ParseStats, log logger.Logger) ([]*RawTransaction, error) {
	if len(rows) < 2 {
		return nil, errors.FormatError(errors.CodeNoRecords, name, "the sheet has fewer than two rows", nil)
	}

	headerIdx, err := layout.DetectHeader(rows)
	if err != nil {
		return nil, layoutFailure(name, err)
	}
	cols, err := layout.MapColumns(rows[headerIdx])
	if err != nil {
		return nil, layoutFailure(name, err)
	}
	stats.HeaderRow = headerIdx + 1

	log.WithFields(logger.Fields{
		"header_row": stats.HeaderRow,
		"columns":    cols.String(),
	}).Debug("Header located")

	var out []*RawTransaction
	for _, row := range rows[headerIdx+1:] {
		if !row.HasContent() {
			continue
		}
		stats.Candidates++

		raw, rowErr := parseSheetRow(layout, row, cols)
		switch {
		case rowErr != nil:
			stats.fail(rowErr, log)
		case raw == nil:
			stats.skip()
		default:
			stats.accept()
			out = append(out, raw)
		}
	}

	log.WithFields(logger.Fields{
		"accepted": stats.Accepted,
		"skipped":  stats.Skipped,
	}).Debug("Parsed spreadsheet statement")

	if len(out) == 0 {
		return nil, errors.FormatError(errors.CodeNoRecords, name, "no data row produced a transaction", nil)
	}
	return out, nil
}

// parseSheetRow runs the layout on one row. Skipped rows return nil and no
// error; anything else that goes wrong, panics included, is a RowError.
func parseSheetRow(layout SheetLayout, row RawRow, cols ColumnMap) (raw *RawTransaction, rowErr *errors.ImportError) {
	defer recoverRow(row.Index+1, fmt.Sprint(row.Values()), &rowErr)

	raw, err := layout.ParseRow(row, cols)
	if err != nil {
		if stderrors.Is(err, ErrSkipRow) {
			return nil, nil
		}
		if importErr, ok := errors.AsImportError(err); ok {
			return nil, importErr
		}
		return nil, errors.RowError(errors.CodeMalformedLine, row.Index+1, fmt.Sprint(row.Values()), err)
	}
	return raw, nil
}

func layoutFailure(name string, err error) error {
	var le *LayoutError
	if stderrors.As(err, &le) {
		return errors.FormatError(le.Code, name, le.Detail, nil)
	}
	return errors.FormatError("", name, err.Error(), err)
}

// BackendReport describes what one backend made of a workbook.
type BackendReport struct {
	Backend string     `json:"backend"`
	Opened  bool       `json:"opened"`
	Error   string     `json:"error,omitempty"`
	Sheets  []string   `json:"sheets,omitempty"`
	Sheet   string     `json:"sheet,omitempty"`
	Rows    int        `json:"rows"`
	Preview [][]string `json:"preview,omitempty"`
}

// Inspect runs every backend on data and reports sheet names and the first
// rows of the selected sheet. profile may be nil.
func (p *SpreadsheetParser) Inspect(data []byte, profile BankProfile) []BackendReport {
	reports := make([]BackendReport, 0, len(p.backends))
	for _, backend := range p.backends {
		reports = append(reports, p.inspectWith(backend, data, profile))
	}
	return reports
}

func (p *SpreadsheetParser) inspectWith(backend Backend, data []byte, profile BankProfile) BackendReport {
	report := BackendReport{Backend: backend.Name()}

	wb, err := backend.Open(data)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	defer wb.Close()

	report.Opened = true
	report.Sheets = wb.SheetNames()
	report.Sheet = selectSheet(profile, report.Sheets, wb.ActiveSheet())

	rows, err := wb.Rows(report.Sheet)
	if err != nil {
		report.Error = err.Error()
		return report
	}
	report.Rows = len(rows)
	for i := 0; i < len(rows) && i < p.previewRows; i++ {
		report.Preview = append(report.Preview, rows[i].Values())
	}
	return report
}
