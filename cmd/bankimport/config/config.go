// Package config turns viper settings into the configurations of the
// parser, matching engines, logger and reporter.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/matcher"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/parsers"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/reporter"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by the CLI.
const EnvPrefix = "BANKIMPORT"

// AppConfig is the full application configuration.
type AppConfig struct {
	Log         logger.Config       `mapstructure:"log"`
	Spreadsheet SpreadsheetSettings `mapstructure:"spreadsheet"`
	Matching    MatchingSettings    `mapstructure:"matching"`
	Advanced    AdvancedSettings    `mapstructure:"advanced"`
	Output      OutputSettings      `mapstructure:"output"`
}

// SpreadsheetSettings configures workbook reading and the bank profiles.
type SpreadsheetSettings struct {
	Backends            []string `mapstructure:"backends"`
	HeaderScanRows      int      `mapstructure:"header_scan_rows"`
	ContinentalScanRows int      `mapstructure:"continental_scan_rows"`
	PreferredSheet      string   `mapstructure:"preferred_sheet"`
	PreviewRows         int      `mapstructure:"preview_rows"`
}

// MatchingSettings configures the default engine.
type MatchingSettings struct {
	AmountTolerance float64  `mapstructure:"amount_tolerance"`
	ActiveStates    []string `mapstructure:"active_states"`
}

// AdvancedSettings configures the scoring engine. Dates use YYYY-MM-DD.
type AdvancedSettings struct {
	TolerancePercent    float64  `mapstructure:"tolerance_percent"`
	SearchReference     bool     `mapstructure:"search_reference"`
	SearchCommunication bool     `mapstructure:"search_communication"`
	SearchNarration     bool     `mapstructure:"search_narration"`
	DateFrom            string   `mapstructure:"date_from"`
	DateTo              string   `mapstructure:"date_to"`
	States              []string `mapstructure:"states"`
}

// OutputSettings configures the report.
type OutputSettings struct {
	Format       string `mapstructure:"format"`
	File         string `mapstructure:"file"`
	Transactions bool   `mapstructure:"transactions"`
	MaxItems     int    `mapstructure:"max_items"`
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	logDefaults := logger.DefaultConfig()
	v.SetDefault("log.level", string(logDefaults.Level))
	v.SetDefault("log.format", string(logDefaults.Format))
	v.SetDefault("log.output", string(logDefaults.Output))
	v.SetDefault("log.file", "")

	sheet := parsers.DefaultSpreadsheetConfig()
	profiles := parsers.DefaultProfileOptions()
	v.SetDefault("spreadsheet.backends", sheet.Backends)
	v.SetDefault("spreadsheet.header_scan_rows", profiles.HeaderScanRows)
	v.SetDefault("spreadsheet.continental_scan_rows", profiles.ContinentalScanRows)
	v.SetDefault("spreadsheet.preferred_sheet", profiles.ContinentalSheet)
	v.SetDefault("spreadsheet.preview_rows", sheet.PreviewRows)

	matching := matcher.DefaultConfig()
	v.SetDefault("matching.amount_tolerance", matching.AmountTolerance)
	v.SetDefault("matching.active_states", stateNames(matching.ActiveStates))

	advanced := matcher.DefaultScoringConfig()
	v.SetDefault("advanced.tolerance_percent", advanced.TolerancePercent)
	v.SetDefault("advanced.search_reference", advanced.SearchReference)
	v.SetDefault("advanced.search_communication", advanced.SearchCommunication)
	v.SetDefault("advanced.search_narration", advanced.SearchNarration)
	v.SetDefault("advanced.date_from", "")
	v.SetDefault("advanced.date_to", "")
	v.SetDefault("advanced.states", stateNames(advanced.States))

	report := reporter.DefaultReportConfig()
	v.SetDefault("output.format", string(report.Format))
	v.SetDefault("output.file", "")
	v.SetDefault("output.transactions", report.IncludeTransactions)
	v.SetDefault("output.max_items", report.MaxListItems)
}

func stateNames(states []models.PaymentState) []string {
	names := make([]string, len(states))
	for i, s := range states {
		names[i] = string(s)
	}
	return names
}

// Load reads the application configuration from v. Defaults are
// registered first, so v only needs to carry overrides.
func Load(v *viper.Viper) (*AppConfig, error) {
	SetDefaults(v)

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "config", v.ConfigFileUsed(), err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every section by building its component configuration.
func (c *AppConfig) Validate() error {
	if err := c.Log.Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "log", c.Log, err)
	}
	if err := c.SpreadsheetConfig().Validate(); err != nil {
		return errors.ConfigurationError(errors.CodeInvalidConfig, "spreadsheet.backends", c.Spreadsheet.Backends, err)
	}
	if _, err := c.MatchingConfig(); err != nil {
		return err
	}
	if _, err := c.ScoringConfig(); err != nil {
		return err
	}
	if _, err := c.ReportConfig(); err != nil {
		return err
	}
	return nil
}

// LoggerConfig returns the logger configuration.
func (c *AppConfig) LoggerConfig() *logger.Config {
	cfg := c.Log
	return &cfg
}

// SpreadsheetConfig returns the workbook reader configuration.
func (c *AppConfig) SpreadsheetConfig() *parsers.SpreadsheetConfig {
	backends := make([]string, 0, len(c.Spreadsheet.Backends))
	for _, b := range c.Spreadsheet.Backends {
		backends = append(backends, strings.ToLower(strings.TrimSpace(b)))
	}
	return &parsers.SpreadsheetConfig{
		Backends:    backends,
		PreviewRows: c.Spreadsheet.PreviewRows,
	}
}

// ProfileOptions returns the options of the built-in bank profiles.
func (c *AppConfig) ProfileOptions() parsers.ProfileOptions {
	opts := parsers.DefaultProfileOptions()
	if c.Spreadsheet.HeaderScanRows > 0 {
		opts.HeaderScanRows = c.Spreadsheet.HeaderScanRows
	}
	if c.Spreadsheet.ContinentalScanRows > 0 {
		opts.ContinentalScanRows = c.Spreadsheet.ContinentalScanRows
	}
	if c.Spreadsheet.PreferredSheet != "" {
		opts.ContinentalSheet = c.Spreadsheet.PreferredSheet
	}
	return opts
}

// MatchingConfig returns the default engine configuration.
func (c *AppConfig) MatchingConfig() (*matcher.Config, error) {
	states, err := matcher.ParseStates(c.Matching.ActiveStates)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching.active_states", c.Matching.ActiveStates, err)
	}
	cfg := &matcher.Config{
		AmountTolerance: c.Matching.AmountTolerance,
		ActiveStates:    states,
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", c.Matching, err)
	}
	return cfg, nil
}

// ScoringConfig returns the scoring engine configuration.
func (c *AppConfig) ScoringConfig() (*matcher.ScoringConfig, error) {
	states, err := matcher.ParseStates(c.Advanced.States)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "advanced.states", c.Advanced.States, err)
	}
	from, err := ParseDate(c.Advanced.DateFrom)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "advanced.date_from", c.Advanced.DateFrom, err)
	}
	to, err := ParseDate(c.Advanced.DateTo)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "advanced.date_to", c.Advanced.DateTo, err)
	}

	cfg := &matcher.ScoringConfig{
		DateFrom:            from,
		DateTo:              to,
		TolerancePercent:    c.Advanced.TolerancePercent,
		SearchReference:     c.Advanced.SearchReference,
		SearchCommunication: c.Advanced.SearchCommunication,
		SearchNarration:     c.Advanced.SearchNarration,
		States:              states,
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "advanced", c.Advanced, err)
	}
	return cfg, nil
}

// ReportConfig returns the report configuration for the output format.
func (c *AppConfig) ReportConfig() (*reporter.ReportConfig, error) {
	cfg := reporter.DefaultReportConfig()
	cfg.Format = reporter.OutputFormat(strings.ToLower(c.Output.Format))
	cfg.IncludeTransactions = c.Output.Transactions
	cfg.MaxListItems = c.Output.MaxItems

	switch cfg.Format {
	case reporter.FormatJSON:
		cfg.MaxListItems = 0
	case reporter.FormatCSV:
		cfg.IncludeParseStats = false
		cfg.IncludeAmbiguities = false
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "output.format", c.Output.Format, err).
			WithSuggestion("use one of: console, json, csv")
	}
	return cfg, nil
}

// ParseDate parses a YYYY-MM-DD date. An empty string yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse(models.DateLayout, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", s, err)
	}
	return &t, nil
}
