package parsers

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// genericDateLayouts are tried in order on text date cells.
var genericDateLayouts = []string{
	"2006.1.2",
	"2/1/2006",
	"2006-1-2",
	"2-1-2006",
	"1/2/2006",
}

// maxExcelSerial is 9999-12-31 in the 1900 date system.
const maxExcelSerial = 2958465

var integralFloat = regexp.MustCompile(`^(\d+)\.0+$`)

// foldHeader lower-cases s, trims it and removes diacritics so that
// "Descripción" and "DESCRIPCION" compare equal.
func foldHeader(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.ToLower(strings.TrimSpace(folded))
}

// parseWithLayouts parses s with the first matching layout and returns the
// calendar date.
func parseWithLayouts(s string, layouts []string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return models.CalendarDate(t), true
		}
	}
	return time.Time{}, false
}

// parseSerialDate decodes a spreadsheet date serial number.
func parseSerialDate(s string) (time.Time, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || f < 1 || f > maxExcelSerial {
		return time.Time{}, false
	}
	t, err := excelize.ExcelDateToTime(f, false)
	if err != nil {
		return time.Time{}, false
	}
	return models.CalendarDate(t), true
}

// cellDate extracts a date from a generic-layout cell: a native date
// first, then the text layouts, then a date serial.
func cellDate(c Cell) (time.Time, bool) {
	if c.HasTime() {
		return models.CalendarDate(c.Time), true
	}
	if t, ok := parseWithLayouts(c.Text, genericDateLayouts); ok {
		return t, true
	}
	return parseSerialDate(c.Text)
}

// cellAmount parses a money cell. Thousands separators and currency
// symbols are ignored; anything unparsable is zero.
func cellAmount(c Cell) (decimal.Decimal, bool) {
	text := strings.TrimSpace(c.Text)
	if text == "" {
		return decimal.Zero, true
	}
	d, err := models.ParseDecimalFromString(text)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// cellCode returns a cell as an identifier. Legacy readers deliver numeric
// cells as floats, so "123456.0" becomes "123456".
func cellCode(c Cell) string {
	text := strings.TrimSpace(c.Text)
	if m := integralFloat.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return text
}
