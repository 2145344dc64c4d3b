package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jsalvador-zsh/peruanita-bank-import/cmd/bankimport/config"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/parsers"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/reconciler"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/reporter"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/store"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
)

// app holds the components a command needs.
type app struct {
	config   *config.AppConfig
	registry *parsers.Registry
	service  *reconciler.ImportService
}

// newApp wires the import service. payments may be nil for commands that
// never match.
func newApp(cfg *config.AppConfig, payments []*models.Payment) (*app, error) {
	parser, err := parsers.NewParser(cfg.SpreadsheetConfig())
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "spreadsheet", cfg.Spreadsheet, err)
	}

	matching, err := cfg.MatchingConfig()
	if err != nil {
		return nil, err
	}

	registry := parsers.NewDefaultRegistry(cfg.ProfileOptions())
	serviceConfig := reconciler.DefaultConfig()
	serviceConfig.Matching = matching

	service, err := reconciler.NewImportService(
		store.NewMemoryImportRepository(),
		registry,
		parser,
		store.NewMemoryPaymentSource(payments),
		serviceConfig,
	)
	if err != nil {
		return nil, err
	}

	return &app{config: cfg, registry: registry, service: service}, nil
}

// parseBank resolves a --bank value against the registry.
func (a *app) parseBank(name string) (models.BankType, error) {
	bank, err := models.ParseBankType(name)
	if err != nil {
		return "", errors.UserInputError(errors.CodeUnknownBank, name, err)
	}
	if _, err := a.registry.Get(bank); err != nil {
		return "", err
	}
	return bank, nil
}

// readStatement reads a statement file. Missing and unreadable files are
// reported as user input errors.
func readStatement(path string) ([]byte, error) {
	if err := validateFileExists(path, "statement file"); err != nil {
		return nil, errors.UserInputError(errors.CodeNoFile, path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.UserInputError(errors.CodeNoFile, path, err)
	}
	return data, nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	return nil
}

// writeReport renders result to the configured output file, or to out
// when no file is configured.
func (a *app) writeReport(result *reconciler.PipelineResult, out io.Writer) error {
	reportConfig, err := a.config.ReportConfig()
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, nil)
	if err != nil {
		return err
	}

	outputFile := a.config.Output.File
	if outputFile == "" {
		return generator.GenerateReportSafely(result, out)
	}

	if dir := filepath.Dir(outputFile); dir != "." {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			return errors.UserInputError(errors.CodeNoFile, dir, err).
				WithSuggestion("create the output directory first")
		}
	}

	file, err := os.Create(outputFile)
	if err != nil {
		return errors.UserInputError(errors.CodeNoFile, outputFile, err)
	}
	defer file.Close()

	return generator.GenerateReportSafely(result, file)
}
