package parsers

import (
	"fmt"
	"strings"
)

// Spreadsheet backend names.
const (
	BackendExcelize  = "excelize"
	BackendXLS       = "xls"
	BackendXLSReader = "xlsreader"
)

// SpreadsheetConfig holds configuration for reading workbooks
type SpreadsheetConfig struct {
	// Backends are tried in order until one opens the file.
	Backends []string `json:"backends" mapstructure:"backends"`
	// PreviewRows is the number of rows Inspect reports per backend.
	PreviewRows int `json:"preview_rows" mapstructure:"preview_rows"`
}

// DefaultSpreadsheetConfig returns a configuration that tries the modern
// reader first and both legacy readers after it.
func DefaultSpreadsheetConfig() *SpreadsheetConfig {
	return &SpreadsheetConfig{
		Backends:    []string{BackendExcelize, BackendXLS, BackendXLSReader},
		PreviewRows: 5,
	}
}

// Validate checks if the spreadsheet configuration is valid. An empty
// backend list is allowed; parsing a spreadsheet then fails with a
// user input error.
func (c *SpreadsheetConfig) Validate() error {
	seen := make(map[string]bool)
	for _, name := range c.Backends {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, ok := backendFactories[key]; !ok {
			return fmt.Errorf("unknown spreadsheet backend %q (available: %s)",
				name, strings.Join(AvailableBackends(), ", "))
		}
		if seen[key] {
			return fmt.Errorf("spreadsheet backend %q listed twice", name)
		}
		seen[key] = true
	}

	if c.PreviewRows < 0 {
		return fmt.Errorf("preview rows cannot be negative, got %d", c.PreviewRows)
	}

	return nil
}
