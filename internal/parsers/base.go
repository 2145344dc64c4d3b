// Package parsers turns bank statement exports into raw transaction tuples.
//
// Two file families are supported:
//   - Delimited text: quoted, semicolon separated lines such as the BCP
//     "movimientos" export. See TextParser.
//   - Spreadsheets: modern .xlsx and legacy .xls workbooks. See
//     SpreadsheetParser, which tries an ordered list of backends and
//     hands the resulting grid to the bank's SheetLayout.
//
// Everything bank specific lives in a BankProfile: the text line schema,
// the operation-number rule, the spreadsheet layout and the preferred
// worksheet. Profiles are looked up in a Registry by bank identifier, so a
// new bank is added by registering a profile rather than by editing the
// parsers.
//
// Parsing is forgiving. Lines and rows that do not look like transactions
// are skipped and counted in ParseStats; only undecodable input, a missing
// header or an empty result fail the whole file.
//
// Example usage:
//
//	registry := parsers.NewDefaultRegistry(parsers.DefaultProfileOptions())
//	profile, err := registry.Get(models.BankBCP)
//	parser := parsers.NewParser(parsers.DefaultSpreadsheetConfig())
//	raws, stats, err := parser.Parse("movimientos.txt", data, profile)
package parsers

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/shopspring/decimal"
)

// ErrSkipRow is returned by SheetLayout.ParseRow for rows that are not
// transactions (blank amounts, opening balances). Such rows are counted as
// skipped without a RowError.
var ErrSkipRow = stderrors.New("row skipped")

// Cell is one spreadsheet cell as delivered by a backend. Time is set when
// the backend recognised a native date value.
type Cell struct {
	Text string
	Time time.Time
}

// HasTime reports whether the backend delivered a native date.
func (c Cell) HasTime() bool {
	return !c.Time.IsZero()
}

// IsEmpty reports whether the cell carries no value.
func (c Cell) IsEmpty() bool {
	return strings.TrimSpace(c.Text) == "" && !c.HasTime()
}

// String renders the cell for audit lines and previews.
func (c Cell) String() string {
	if c.HasTime() && strings.TrimSpace(c.Text) == "" {
		return c.Time.Format(models.DateLayout)
	}
	return strings.TrimSpace(c.Text)
}

// RawRow is an ordered list of cells plus its 0-based row index in the sheet.
type RawRow struct {
	Index int
	Cells []Cell
}

// NewTextRow builds a row from plain strings.
func NewTextRow(index int, values ...string) RawRow {
	cells := make([]Cell, len(values))
	for i, v := range values {
		cells[i] = Cell{Text: v}
	}
	return RawRow{Index: index, Cells: cells}
}

// Cell returns the cell at column i, or an empty cell when out of range.
func (r RawRow) Cell(i int) Cell {
	if i < 0 || i >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[i]
}

// HasContent reports whether at least one cell is non-empty.
func (r RawRow) HasContent() bool {
	for _, c := range r.Cells {
		if !c.IsEmpty() {
			return true
		}
	}
	return false
}

// Values returns the trimmed string form of every cell.
func (r RawRow) Values() []string {
	out := make([]string, len(r.Cells))
	for i, c := range r.Cells {
		out[i] = c.String()
	}
	return out
}

// RawTransaction is the parser output consumed by the normalizer.
type RawTransaction struct {
	// Row is the 1-based line or row number in the source file.
	Row             int
	Date            time.Time
	HasDate         bool
	Description     string
	Amount          decimal.Decimal
	OperationNumber string
	Source          string
}

// ParseStats records how a file was read and what was kept.
type ParseStats struct {
	FileKind  models.FileKind `json:"file_kind"`
	Backend   string          `json:"backend,omitempty"`
	Sheet     string          `json:"sheet,omitempty"`
	HeaderRow int             `json:"header_row,omitempty"`
	// Candidates counts non-empty lines or rows after the header.
	Candidates int                   `json:"candidates"`
	Accepted   int                   `json:"accepted"`
	Skipped    int                   `json:"skipped"`
	RowErrors  []*errors.ImportError `json:"row_errors,omitempty"`
}

// ErrorSummary summarises the row errors collected during the parse.
func (s *ParseStats) ErrorSummary() *errors.ErrorSummary {
	return errors.NewErrorSummary(s.RowErrors)
}

func (s *ParseStats) accept() {
	s.Accepted++
}

func (s *ParseStats) skip() {
	s.Skipped++
}

func (s *ParseStats) fail(err *errors.ImportError, log logger.Logger) {
	s.Skipped++
	s.RowErrors = append(s.RowErrors, err)
	log.WithFields(logger.Fields{
		"code":  err.Code,
		"cause": err.Cause,
	}).Debug(err.Message)
}

// LayoutError is returned by SheetLayout implementations when the sheet
// does not have the expected structure. The spreadsheet parser turns it
// into a FormatError naming the file.
type LayoutError struct {
	Code   errors.ErrorCode
	Detail string
}

func (e *LayoutError) Error() string {
	return e.Detail
}

// NewLayoutError creates a LayoutError.
func NewLayoutError(code errors.ErrorCode, format string, args ...interface{}) *LayoutError {
	return &LayoutError{Code: code, Detail: fmt.Sprintf(format, args...)}
}

// recoverRow converts a panic raised while reading a single row into a
// RowError so that one bad row never aborts the batch.
func recoverRow(line int, value string, errp **errors.ImportError) {
	if r := recover(); r != nil {
		*errp = errors.RowError(errors.CodeMalformedLine, line, value, fmt.Errorf("%v", r))
	}
}
