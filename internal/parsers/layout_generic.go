package parsers

import (
	"strings"

	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/shopspring/decimal"
)

// roleKeywords lists, in evaluation order, the header keywords of each
// role. A header takes the first role with a keyword contained in it.
var roleKeywords = []struct {
	role     ColumnRole
	keywords []string
}{
	{RoleDate, []string{"fecha", "date", "dia"}},
	{RoleDescription, []string{"descripcion", "concepto", "detalle", "description", "memo", "glosa", "trans"}},
	{RoleDebit, []string{"cargo", "debe", "debito"}},
	{RoleCredit, []string{"abono", "haber", "credito"}},
	{RoleOperation, []string{"documento", "nro", "numero", "referencia", "reference", "operation"}},
}

// GenericLayout is the keyword-driven layout used by BCP, Banco de la
// Nación and unknown banks: a header row containing "fecha", separate
// debit and credit columns.
type GenericLayout struct {
	scanRows int
	logger   logger.Logger
}

// NewGenericLayout creates a GenericLayout that looks for the header in
// the first scanRows rows.
func NewGenericLayout(scanRows int, log logger.Logger) *GenericLayout {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &GenericLayout{scanRows: scanRows, logger: log.WithComponent("generic_layout")}
}

// DetectHeader returns the first row with a cell containing "fecha".
func (l *GenericLayout) DetectHeader(rows []RawRow) (int, error) {
	for i := 0; i < len(rows) && i < l.scanRows; i++ {
		for _, cell := range rows[i].Cells {
			if strings.Contains(foldHeader(cell.Text), "fecha") {
				return i, nil
			}
		}
	}
	return 0, NewLayoutError(errors.CodeHeaderNotFound,
		"no cell containing 'fecha' in the first %d rows", l.scanRows)
}

// MapColumns assigns roles to header cells by keyword. When several
// columns take the same role, the right-most one wins.
func (l *GenericLayout) MapColumns(header RawRow) (ColumnMap, error) {
	cols := make(ColumnMap)
	for idx, cell := range header.Cells {
		h := foldHeader(cell.Text)
		if h == "" {
			continue
		}

		roles := headerRoles(h)
		if len(roles) == 0 {
			continue
		}
		if len(roles) > 1 {
			l.logger.WithFields(logger.Fields{
				"header": cell.Text,
				"roles":  roles,
				"chosen": roles[0],
			}).Warn("Header matches keywords of several roles")
		}
		cols[roles[0]] = idx
	}

	if len(cols) == 0 {
		return nil, NewLayoutError(errors.CodeColumnsNotMapped,
			"no header matched the date, description, debit, credit or operation keywords")
	}
	l.logger.WithField("columns", cols.String()).Debug("Mapped spreadsheet columns")
	return cols, nil
}

// headerRoles returns every role whose keywords occur in h, in
// evaluation order.
func headerRoles(h string) []ColumnRole {
	var roles []ColumnRole
	for _, rk := range roleKeywords {
		for _, kw := range rk.keywords {
			if strings.Contains(h, kw) {
				roles = append(roles, rk.role)
				break
			}
		}
	}
	return roles
}

// ParseRow extracts a transaction from a data row. A debit value wins over
// a credit value; debits are negative and credits positive.
func (l *GenericLayout) ParseRow(row RawRow, cols ColumnMap) (*RawTransaction, error) {
	raw := &RawTransaction{
		Row:    row.Index + 1,
		Source: "Excel row: " + strings.Join(row.Values(), " | "),
	}

	if idx, ok := cols[RoleDate]; ok {
		cell := row.Cell(idx)
		if date, ok := cellDate(cell); ok {
			raw.Date = date
			raw.HasDate = true
		} else if !cell.IsEmpty() {
			l.logger.WithFields(logger.Fields{"row": raw.Row, "value": cell.Text}).
				Debug("Unparsable date")
		}
	}

	if idx, ok := cols[RoleDescription]; ok {
		raw.Description = row.Cell(idx).String()
	}

	debit := l.amount(row, cols, RoleDebit, raw.Row)
	credit := l.amount(row, cols, RoleCredit, raw.Row)
	switch {
	case !debit.IsZero():
		raw.Amount = debit.Abs().Neg()
	case !credit.IsZero():
		raw.Amount = credit.Abs()
	}

	if idx, ok := cols[RoleOperation]; ok {
		raw.OperationNumber = cellCode(row.Cell(idx))
	}

	if !raw.HasDate && raw.Amount.IsZero() && raw.OperationNumber == "" {
		return nil, ErrSkipRow
	}
	return raw, nil
}

func (l *GenericLayout) amount(row RawRow, cols ColumnMap, role ColumnRole, rowNo int) decimal.Decimal {
	idx, ok := cols[role]
	if !ok {
		return decimal.Zero
	}
	value, ok := cellAmount(row.Cell(idx))
	if !ok {
		l.logger.WithFields(logger.Fields{"row": rowNo, "column": role, "value": row.Cell(idx).Text}).
			Debug("Unparsable amount, using 0")
	}
	return value
}
