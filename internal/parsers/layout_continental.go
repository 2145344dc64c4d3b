package parsers

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"

	"github.com/shopspring/decimal"
)

const openingBalance = "SALDO ANTERIOR"

var continentalDateLayouts = []string{"2/1/2006", "2-1-2006", "2006-1-2"}

// ContinentalLayout reads BBVA Continental workbooks: a header with
// "FECHA OPER." and "CARGO/ABONO" near the top, one signed amount column
// and dates printed as DD-MM without a year.
type ContinentalLayout struct {
	scanRows int
	now      func() time.Time
}

// NewContinentalLayout creates a ContinentalLayout. now supplies the year
// for DD-MM dates.
func NewContinentalLayout(scanRows int, now func() time.Time) *ContinentalLayout {
	if now == nil {
		now = time.Now
	}
	return &ContinentalLayout{scanRows: scanRows, now: now}
}

func foldUpper(s string) string {
	return strings.ToUpper(foldHeader(s))
}

// DetectHeader returns the first row that has both a "FECHA OPER" cell and
// a "CARGO" cell.
func (l *ContinentalLayout) DetectHeader(rows []RawRow) (int, error) {
	for i := 0; i < len(rows) && i < l.scanRows; i++ {
		var hasDate, hasAmount bool
		for _, cell := range rows[i].Cells {
			h := foldUpper(cell.Text)
			if strings.Contains(h, "FECHA OPER") {
				hasDate = true
			}
			if strings.Contains(h, "CARGO") {
				hasAmount = true
			}
		}
		if hasDate && hasAmount {
			return i, nil
		}
	}
	return 0, NewLayoutError(errors.CodeHeaderNotFound,
		"Continental header with 'FECHA OPER' and 'CARGO' not found in the first %d rows", l.scanRows)
}

// MapColumns maps the Continental header. Date and amount are required.
func (l *ContinentalLayout) MapColumns(header RawRow) (ColumnMap, error) {
	cols := make(ColumnMap)
	for idx, cell := range header.Cells {
		h := foldUpper(cell.Text)
		switch {
		case strings.Contains(h, "FECHA OPER"):
			cols[RoleDate] = idx
		case strings.Contains(h, "DESCRIPCI"):
			cols[RoleDescription] = idx
		case strings.Contains(h, "N OPER"), strings.Contains(h, "N° OPER"), strings.Contains(h, "Nº OPER"):
			cols[RoleOperation] = idx
		case strings.Contains(h, "CARGO/ABONO"):
			cols[RoleAmount] = idx
		}
	}

	var missing []string
	if !cols.Has(RoleDate) {
		missing = append(missing, "FECHA OPER.")
	}
	if !cols.Has(RoleAmount) {
		missing = append(missing, "CARGO/ABONO")
	}
	if len(missing) > 0 {
		return nil, NewLayoutError(errors.CodeColumnsNotMapped,
			"Continental columns missing: %s", strings.Join(missing, ", "))
	}
	return cols, nil
}

// ParseRow extracts a transaction from a Continental data row. The opening
// balance row and rows without a description are skipped.
func (l *ContinentalLayout) ParseRow(row RawRow, cols ColumnMap) (*RawTransaction, error) {
	dateCell := row.Cell(cols[RoleDate])
	amountCell := row.Cell(cols[RoleAmount])

	var description, op string
	if idx, ok := cols[RoleDescription]; ok {
		description = row.Cell(idx).String()
	}
	if idx, ok := cols[RoleOperation]; ok {
		op = cellCode(row.Cell(idx))
	}

	if strings.ToUpper(description) == openingBalance {
		return nil, ErrSkipRow
	}

	raw := &RawTransaction{
		Row:             row.Index + 1,
		Description:     description,
		Amount:          continentalAmount(amountCell.Text),
		OperationNumber: op,
		Source: fmt.Sprintf("Continental: %s | %s | %s | %s",
			dateCell.String(), description, amountCell.String(), op),
	}
	if date, ok := ParseContinentalDate(dateCell, l.now()); ok {
		raw.Date = date
		raw.HasDate = true
	}

	if description == "" || (!raw.HasDate && raw.Amount.IsZero() && op == "") {
		return nil, ErrSkipRow
	}
	return raw, nil
}

// continentalAmount parses the signed CARGO/ABONO value. Unparsable values
// are zero.
func continentalAmount(text string) decimal.Decimal {
	cleaned := strings.ReplaceAll(strings.TrimSpace(text), ",", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	if cleaned == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// ParseContinentalDate resolves a Continental date cell. DD-MM values take
// the year of now, or the previous year when now is in January or
// February and the month is November or December.
func ParseContinentalDate(c Cell, now time.Time) (time.Time, bool) {
	if c.HasTime() {
		return models.CalendarDate(c.Time), true
	}

	text := strings.TrimSpace(c.Text)
	if text == "" {
		return time.Time{}, false
	}
	if t, ok := parseDayMonth(text, now); ok {
		return t, true
	}
	if t, ok := parseWithLayouts(text, continentalDateLayouts); ok {
		return t, true
	}
	return parseSerialDate(text)
}

func parseDayMonth(text string, now time.Time) (time.Time, bool) {
	parts := strings.Split(text, "-")
	if len(parts) != 2 || len(parts[0]) == 0 || len(parts[1]) == 0 || len(parts[0]) > 2 || len(parts[1]) > 2 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(parts[0])
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}

	year := now.Year()
	if now.Month() <= time.February && month >= 11 {
		year--
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// Reject days that do not exist in the month, such as 31-04.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}
