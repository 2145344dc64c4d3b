package parsers

import (
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
)

// Parser dispatches a statement to the text or spreadsheet parser
// according to its file name.
type Parser struct {
	text  *TextParser
	sheet *SpreadsheetParser
}

// NewParser creates a Parser. A nil config selects
// DefaultSpreadsheetConfig.
func NewParser(config *SpreadsheetConfig) (*Parser, error) {
	sheet, err := NewSpreadsheetParser(config)
	if err != nil {
		return nil, err
	}
	return &Parser{text: NewTextParser(), sheet: sheet}, nil
}

// NewParserWith creates a Parser from existing parsers.
func NewParserWith(text *TextParser, sheet *SpreadsheetParser) *Parser {
	return &Parser{text: text, sheet: sheet}
}

// Parse extracts raw transactions from data. Empty data is a user input
// error.
func (p *Parser) Parse(name string, data []byte, profile BankProfile) ([]*RawTransaction, *ParseStats, error) {
	if len(data) == 0 {
		return nil, &ParseStats{}, errors.UserInputError(errors.CodeNoFile, name, nil)
	}

	if DetectFileKind(name) == models.FileKindSpreadsheet {
		return p.sheet.Parse(name, data, profile)
	}
	return p.text.Parse(name, data, profile)
}

// Inspect reports how every spreadsheet backend reads data.
func (p *Parser) Inspect(data []byte, profile BankProfile) []BackendReport {
	return p.sheet.Inspect(data, profile)
}
