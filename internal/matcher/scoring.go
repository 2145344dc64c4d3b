package matcher

import (
	"context"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/store"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"
)

// Score weights of the advanced engine.
const (
	AmountScore    = 50
	OperationScore = 50
	ExactScore     = AmountScore + OperationScore
)

// ScoringEngine is the advanced matching engine. Every payment of the
// configured states and date range is scored against every transaction;
// a positive score yields a match, a full score an exact one.
type ScoringEngine struct {
	config *ScoringConfig
	source store.PaymentSource
	logger logger.Logger
	now    func() time.Time
}

// NewScoringEngine creates a scoring engine. A nil config selects
// DefaultScoringConfig.
func NewScoringEngine(config *ScoringConfig, source store.PaymentSource) (*ScoringEngine, error) {
	if config == nil {
		config = DefaultScoringConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "advanced", config.String(), err)
	}
	if source == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "create scoring engine", nil).
			WithContext("reason", "no payment source")
	}

	return &ScoringEngine{
		config: config,
		source: source,
		logger: logger.GetGlobalLogger().WithComponent("scoring"),
		now:    time.Now,
	}, nil
}

// Score returns the score of p for tx.
func (e *ScoringEngine) Score(tx *models.Transaction, p *models.Payment) int {
	score := 0
	if e.config.AmountWithinTolerance(p.Amount, tx.AbsoluteAmount()) {
		score += AmountScore
	}
	if tx.HasOperationNumber() && e.operationFound(tx.OperationNumber, p) {
		score += OperationScore
	}
	return score
}

// operationFound searches the selected fields for a plain occurrence of
// op. The leading-zero and suffix rules of the default engine do not
// apply here.
func (e *ScoringEngine) operationFound(op string, p *models.Payment) bool {
	for _, f := range e.config.SearchFields() {
		if containsPlain(f.Value(p), op) {
			return true
		}
	}
	return false
}

// Match scores every candidate payment against every transaction.
func (e *ScoringEngine) Match(ctx context.Context, transactions []*models.Transaction) ([]*models.Match, *Stats, error) {
	set := newMatchSet(e.now, len(transactions))

	q := store.PaymentQuery{
		States:   e.config.States,
		DateFrom: e.config.DateFrom,
		DateTo:   e.config.DateTo,
	}
	pool, err := e.source.FindPayments(ctx, q)
	if err != nil {
		return nil, nil, errors.MatchError(errors.CodePaymentSource, "", "", err)
	}

	e.logger.WithFields(logger.Fields{
		"transactions": len(transactions),
		"candidates":   len(pool),
		"config":       e.config.String(),
	}).Debug("Starting scored matching")

	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "match_advanced",
		Total:     len(transactions),
		Logger:    e.logger,
	})

	for _, tx := range transactions {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		added := 0
		for _, p := range pool {
			score := e.Score(tx, p)
			if score <= 0 {
				continue
			}
			matchType := models.MatchPartial
			if score >= ExactScore {
				matchType = models.MatchExact
			}
			ok, err := set.add(tx, p, matchType, score)
			if err != nil {
				return nil, nil, err
			}
			if ok {
				added++
			}
		}
		if added > 0 {
			set.stats.Matched++
		}
		progress.Increment()
	}
	progress.Complete()

	e.logger.WithFields(logger.Fields{
		"transactions": set.stats.Transactions,
		"matched":      set.stats.Matched,
		"exact":        set.stats.Exact,
		"partial":      set.stats.Partial,
	}).Info("Scored matching completed")

	return set.matches, set.stats, nil
}
