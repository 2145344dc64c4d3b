// Package reconciler drives the life of an import: a statement file is
// registered as a draft, processed into transactions and matched against
// the payment registry.
//
// Example usage:
//
//	svc, err := reconciler.NewImportService(repo, registry, parser, payments, nil)
//	imp, err := svc.NewImport(ctx, models.BankBCP, "movimientos.txt", data)
//	processed, err := svc.Process(ctx, imp.ID)
//	matched, err := svc.Match(ctx, imp.ID)
//	fmt.Println(processed.Message, matched.Message)
package reconciler

import (
	"context"
	"fmt"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/matcher"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/parsers"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/store"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/google/uuid"
)

// DraftName is the name of an import that has not been processed yet.
const DraftName = "Nueva Importación"

// nameTimeLayout renders the processing time in import names.
const nameTimeLayout = "02/01/2006 15:04"

// Config holds configuration for the import service
type Config struct {
	// Matching configures the default engine used by Match.
	Matching *matcher.Config
	// Now is the clock used for import names and timestamps.
	Now func() time.Time
}

// DefaultConfig returns a default configuration for the import service
func DefaultConfig() *Config {
	return &Config{
		Matching: matcher.DefaultConfig(),
		Now:      time.Now,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Matching == nil {
		return fmt.Errorf("matching configuration is required")
	}
	if err := c.Matching.Validate(); err != nil {
		return fmt.Errorf("invalid matching configuration: %w", err)
	}
	return nil
}

// ImportService orchestrates the import lifecycle
type ImportService struct {
	repo       store.ImportRepository
	registry   *parsers.Registry
	parser     *parsers.Parser
	normalizer *parsers.Normalizer
	payments   store.PaymentSource
	engine     *matcher.Engine
	config     *Config
	logger     logger.Logger
}

// ProcessResult reports the outcome of Process.
type ProcessResult struct {
	Import  *models.Import      `json:"import"`
	Stats   *parsers.ParseStats `json:"stats"`
	Message string              `json:"message"`
}

// MatchResult reports the outcome of Match and MatchAdvanced.
type MatchResult struct {
	Import  *models.Import `json:"import"`
	Stats   *matcher.Stats `json:"stats"`
	Message string         `json:"message"`
}

// NewImportService creates an import service. A nil config selects
// DefaultConfig.
func NewImportService(
	repo store.ImportRepository,
	registry *parsers.Registry,
	parser *parsers.Parser,
	payments store.PaymentSource,
	config *Config,
) (*ImportService, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.Matching, err)
	}
	if repo == nil || registry == nil || parser == nil || payments == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "create import service", nil).
			WithContext("reason", "missing dependency")
	}

	engine, err := matcher.NewEngine(config.Matching, payments)
	if err != nil {
		return nil, err
	}

	return &ImportService{
		repo:       repo,
		registry:   registry,
		parser:     parser,
		normalizer: parsers.NewNormalizer(config.Now),
		payments:   payments,
		engine:     engine,
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("import_service"),
	}, nil
}

// NewImport registers a statement file as a draft import.
func (s *ImportService) NewImport(ctx context.Context, bank models.BankType, fileName string, data []byte) (*models.Import, error) {
	if _, err := s.registry.Get(bank); err != nil {
		return nil, err
	}

	imp := &models.Import{
		ID:        uuid.NewString(),
		Name:      DraftName,
		BankType:  bank,
		FileName:  fileName,
		FileKind:  parsers.DetectFileKind(fileName),
		State:     models.StateDraft,
		Data:      data,
		CreatedAt: s.config.Now(),
	}
	if err := s.repo.Create(ctx, imp); err != nil {
		return nil, err
	}

	s.logger.WithFields(logger.Fields{
		"import_id": imp.ID,
		"bank":      bank,
		"file":      fileName,
		"file_kind": imp.FileKind,
		"bytes":     len(data),
	}).Info("Import created")
	return imp, nil
}

// Process extracts the transactions of an import. On success the previous
// transactions and their matches are replaced and the import becomes
// processed. If nothing can be extracted the import keeps its state and
// its previous transactions.
func (s *ImportService) Process(ctx context.Context, id string) (*ProcessResult, error) {
	imp, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	op := logger.NewOperationLogger("process_import", s.logger, logger.Fields{
		"import_id": imp.ID,
		"bank":      imp.BankType,
		"file":      imp.FileName,
	})

	if len(imp.Data) == 0 {
		err := errors.UserInputError(errors.CodeNoFile, imp.FileName, nil)
		op.Failure(err)
		return nil, err
	}

	profile, err := s.registry.Get(imp.BankType)
	if err != nil {
		op.Failure(err)
		return nil, err
	}

	raws, stats, err := s.parser.Parse(imp.FileName, imp.Data, profile)
	if err != nil {
		op.Failure(err)
		return nil, err
	}
	if len(raws) == 0 {
		err := errors.FormatError(errors.CodeNoRecords, imp.FileName, "no operations could be extracted", nil)
		op.Failure(err)
		return nil, err
	}

	txs, err := s.normalizer.Normalize(imp.ID, raws)
	if err != nil {
		op.Failure(err)
		return nil, err
	}

	if err := s.repo.ReplaceTransactions(ctx, imp.ID, txs); err != nil {
		op.Failure(err)
		return nil, err
	}

	now := s.config.Now()
	imp.State = models.StateProcessed
	imp.Name = ImportName(imp.BankType, now)
	imp.ProcessedAt = &now
	imp.MatchedAt = nil
	if err := s.repo.Update(ctx, imp); err != nil {
		op.Failure(err)
		return nil, err
	}

	updated, err := s.repo.Get(ctx, imp.ID)
	if err != nil {
		return nil, err
	}

	message := fmt.Sprintf("processed %d operations", len(txs))
	op.Success(message, logger.Fields{
		"accepted":   stats.Accepted,
		"skipped":    stats.Skipped,
		"row_errors": len(stats.RowErrors),
		"backend":    stats.Backend,
	})

	return &ProcessResult{Import: updated, Stats: stats, Message: message}, nil
}

// Match runs the default engine over the transactions of an import.
func (s *ImportService) Match(ctx context.Context, id string) (*MatchResult, error) {
	return s.match(ctx, id, "match_import", s.engine, true)
}

// MatchAdvanced runs the scoring engine with config over the transactions
// of an import. Its matches replace the current ones. The import only
// becomes matched when at least one match was found.
func (s *ImportService) MatchAdvanced(ctx context.Context, id string, config *matcher.ScoringConfig) (*MatchResult, error) {
	engine, err := matcher.NewScoringEngine(config, s.payments)
	if err != nil {
		return nil, err
	}
	return s.match(ctx, id, "match_import_advanced", engine, false)
}

func (s *ImportService) match(ctx context.Context, id, operation string, engine matcher.Matcher, alwaysAdvance bool) (*MatchResult, error) {
	imp, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	op := logger.NewOperationLogger(operation, s.logger, logger.Fields{
		"import_id":    imp.ID,
		"transactions": len(imp.Transactions),
	})

	if len(imp.Transactions) == 0 {
		err := errors.UserInputError(errors.CodeNoTransactions, imp.ID, nil)
		op.Failure(err)
		return nil, err
	}

	// Prior matches are dropped before the engine runs, so a failed run
	// leaves the import without matches.
	if err := s.repo.ReplaceMatches(ctx, imp.ID, nil); err != nil {
		op.Failure(err)
		return nil, err
	}

	matches, stats, err := engine.Match(ctx, imp.Transactions)
	if err != nil {
		op.Failure(err)
		return nil, err
	}

	if err := s.repo.ReplaceMatches(ctx, imp.ID, matches); err != nil {
		op.Failure(err)
		return nil, err
	}

	var message string
	if len(matches) > 0 || alwaysAdvance {
		now := s.config.Now()
		imp.State = models.StateMatched
		imp.MatchedAt = &now
		if err := s.repo.Update(ctx, imp); err != nil {
			op.Failure(err)
			return nil, err
		}
		message = fmt.Sprintf("found %d matches", len(matches))
	} else {
		message = "no matches found with the given criteria"
	}

	updated, err := s.repo.Get(ctx, imp.ID)
	if err != nil {
		return nil, err
	}

	op.Success(message, logger.Fields{
		"matched":  stats.Matched,
		"exact":    stats.Exact,
		"partial":  stats.Partial,
		"fallback": stats.Fallback,
	})

	return &MatchResult{Import: updated, Stats: stats, Message: message}, nil
}

// Delete removes an import with its transactions and matches.
func (s *ImportService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.WithField("import_id", id).Info("Import deleted")
	return nil
}

// Get returns an import with its transactions and matches.
func (s *ImportService) Get(ctx context.Context, id string) (*models.Import, error) {
	return s.repo.Get(ctx, id)
}

// List returns every import, oldest first.
func (s *ImportService) List(ctx context.Context) ([]*models.Import, error) {
	return s.repo.List(ctx)
}

// Inspect reports how every spreadsheet backend reads the file of an
// import.
func (s *ImportService) Inspect(ctx context.Context, id string) ([]parsers.BackendReport, error) {
	imp, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	profile, err := s.registry.Get(imp.BankType)
	if err != nil {
		return nil, err
	}
	return s.parser.Inspect(imp.Data, profile), nil
}

// ImportName returns the name a processed import receives.
func ImportName(bank models.BankType, at time.Time) string {
	return fmt.Sprintf("Importación %s - %s", bank.Label(), at.Format(nameTimeLayout))
}
