package parsers

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/shopspring/decimal"
)

// TextParser reads quoted, delimited statement exports. Lines that do not
// look like transactions (titles, headers, totals) are skipped silently.
type TextParser struct {
	logger logger.Logger
}

// NewTextParser creates a new TextParser
func NewTextParser() *TextParser {
	return &TextParser{
		logger: logger.GetGlobalLogger().WithComponent("text_parser"),
	}
}

// Parse extracts one raw transaction per transaction line of data.
func (p *TextParser) Parse(name string, data []byte, profile BankProfile) ([]*RawTransaction, *ParseStats, error) {
	stats := &ParseStats{FileKind: models.FileKindText}
	log := p.logger.WithFields(logger.Fields{"file": name, "bank": profile.Bank()})

	if !utf8.Valid(data) {
		return nil, stats, errors.UserInputError(errors.CodeUndecodable, name+" is not valid UTF-8", nil)
	}

	schema := profile.TextSchema()
	content := strings.TrimPrefix(string(data), "\ufeff")

	var out []*RawTransaction
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		stats.Candidates++

		fields, date, ok := splitTransactionLine(line, schema)
		if !ok {
			stats.skip()
			continue
		}

		raw, rowErr := p.parseLine(i+1, line, fields, date, schema, profile, log)
		if rowErr != nil {
			stats.fail(rowErr, log)
			continue
		}
		stats.accept()
		out = append(out, raw)
	}

	log.WithFields(logger.Fields{
		"accepted": stats.Accepted,
		"skipped":  stats.Skipped,
	}).Debug("Parsed text statement")

	if len(out) == 0 {
		return nil, stats, errors.FormatError(errors.CodeNoRecords, name,
			"no line matched the quoted, delimited transaction layout", nil)
	}
	return out, stats, nil
}

// splitTransactionLine reports whether line is a transaction line: it
// starts with a quote, has at least MinFields fields and its date field
// parses. The unquoted fields and the parsed date are returned.
func splitTransactionLine(line string, schema TextSchema) ([]string, time.Time, bool) {
	if schema.Quote != "" && !strings.HasPrefix(line, schema.Quote) {
		return nil, time.Time{}, false
	}

	parts := strings.Split(line, schema.Delimiter)
	if len(parts) < schema.MinFields {
		return nil, time.Time{}, false
	}

	fields := make([]string, len(parts))
	for i, part := range parts {
		fields[i] = unquote(part, schema.Quote)
	}

	date, ok := parseWithLayouts(fields[schema.DateField], schema.DateLayouts)
	if !ok {
		return nil, time.Time{}, false
	}
	return fields, date, true
}

func (p *TextParser) parseLine(lineNo int, line string, fields []string, date time.Time, schema TextSchema, profile BankProfile, log logger.Logger) (raw *RawTransaction, rowErr *errors.ImportError) {
	defer recoverRow(lineNo, line, &rowErr)

	amountText := strings.ReplaceAll(fields[schema.AmountField], ",", "")
	amount, err := decimal.NewFromString(amountText)
	if err != nil {
		log.WithFields(logger.Fields{"line": lineNo, "amount": fields[schema.AmountField]}).
			Debug("Unparsable amount, using 0")
		amount = decimal.Zero
	}

	return &RawTransaction{
		Row:             lineNo,
		Date:            date,
		HasDate:         true,
		Description:     fields[schema.DescriptionField],
		Amount:          amount,
		OperationNumber: profile.NormalizeOperationNumber(fields[schema.OperationField]),
		Source:          strings.TrimSpace(line),
	}, nil
}

func unquote(field, quote string) string {
	field = strings.TrimSpace(field)
	if quote != "" {
		field = strings.Trim(field, quote)
	}
	return strings.TrimSpace(field)
}
