// Package matcher links the transactions of a processed import to the
// payments of the host application.
//
// Two engines are provided. Engine implements the default algorithm: it
// looks up payments by amount (exactly, then within a small window) and
// confirms them through the operation number, broadening the search to
// every active payment when the amount lookup confirms nothing. The
// ScoringEngine is the advanced variant that scores each payment on amount
// and operation number with caller-selected fields.
package matcher

import (
	"context"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/internal/store"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/google/uuid"
)

// Matcher produces the match set of a list of transactions.
type Matcher interface {
	Match(ctx context.Context, transactions []*models.Transaction) ([]*models.Match, *Stats, error)
}

// Stats summarises one matching run.
type Stats struct {
	Transactions int `json:"transactions"`
	// Matched counts transactions with at least one match.
	Matched int `json:"matched"`
	Matches int `json:"matches"`
	Exact   int `json:"exact"`
	Partial int `json:"partial"`
	// Fallback counts matches found by the broadened search.
	Fallback int `json:"fallback"`
}

// Unmatched returns the number of transactions without a match.
func (s *Stats) Unmatched() int {
	return s.Transactions - s.Matched
}

func (s *Stats) record(m *models.Match) {
	s.Matches++
	if m.Type == models.MatchExact {
		s.Exact++
	} else {
		s.Partial++
	}
}

// matchSet accumulates the matches of one run and enforces that a
// (transaction, payment) pair is matched at most once.
type matchSet struct {
	matches []*models.Match
	seen    map[string]bool
	now     func() time.Time
	stats   *Stats
}

func newMatchSet(now func() time.Time, total int) *matchSet {
	return &matchSet{
		seen:  make(map[string]bool),
		now:   now,
		stats: &Stats{Transactions: total},
	}
}

// add records a match of tx and p unless the pair is already matched. It
// reports whether a match was added.
func (s *matchSet) add(tx *models.Transaction, p *models.Payment, matchType models.MatchType, score int) (bool, error) {
	m := models.NewMatch(tx, p, matchType, score)
	if err := m.Validate(); err != nil {
		return false, errors.MatchError(errors.CodeMissingLinkage, tx.ID, p.ID, err)
	}
	if s.seen[m.Key()] {
		return false, nil
	}
	m.ID = uuid.NewString()
	m.CreatedAt = s.now()
	s.seen[m.Key()] = true
	s.matches = append(s.matches, m)
	s.stats.record(m)
	return true, nil
}

// Engine is the default matching engine.
type Engine struct {
	config *Config
	source store.PaymentSource
	logger logger.Logger
	now    func() time.Time
}

// NewEngine creates a default engine reading payments from source. A nil
// config selects DefaultConfig.
func NewEngine(config *Config, source store.PaymentSource) (*Engine, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "matching", config.AmountTolerance, err)
	}
	if source == nil {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "create matching engine", nil).
			WithContext("reason", "no payment source")
	}

	return &Engine{
		config: config,
		source: source,
		logger: logger.GetGlobalLogger().WithComponent("matcher"),
		now:    time.Now,
	}, nil
}

// Match runs the default algorithm over transactions. A transaction
// without candidates is not an error; a failing payment lookup or a match
// that cannot be linked aborts the run.
func (e *Engine) Match(ctx context.Context, transactions []*models.Transaction) ([]*models.Match, *Stats, error) {
	set := newMatchSet(e.now, len(transactions))
	progress := logger.NewProgressTracker(logger.ProgressConfig{
		Operation: "match",
		Total:     len(transactions),
		Logger:    e.logger,
	})

	for _, tx := range transactions {
		added, err := e.matchTransaction(ctx, tx, set)
		if err != nil {
			return nil, nil, err
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
		"fallback":     set.stats.Fallback,
	}).Info("Matching completed")

	return set.matches, set.stats, nil
}

func (e *Engine) matchTransaction(ctx context.Context, tx *models.Transaction, set *matchSet) (int, error) {
	pool, err := e.candidates(ctx, tx)
	if err != nil {
		return 0, err
	}

	op := tx.OperationNumber
	added := 0
	for _, p := range pool {
		var matchType models.MatchType
		switch {
		case !tx.HasOperationNumber():
			matchType = models.MatchPartial
		case MatchesPayment(p, op, DefaultOperationFields):
			matchType = models.MatchExact
		default:
			continue
		}
		ok, err := set.add(tx, p, matchType, 0)
		if err != nil {
			return added, err
		}
		if ok {
			added++
		}
	}

	if added > 0 || !tx.HasOperationNumber() {
		return added, nil
	}

	broad, err := e.find(ctx, tx, store.PaymentQuery{States: e.config.ActiveStates})
	if err != nil {
		return added, err
	}
	for _, p := range broad {
		if !MatchesPayment(p, op, DefaultOperationFields) {
			continue
		}
		ok, err := set.add(tx, p, models.MatchPartial, 0)
		if err != nil {
			return added, err
		}
		if ok {
			added++
			set.stats.Fallback++
		}
	}

	if added > 0 {
		e.logger.WithFields(logger.Fields{
			"transaction": tx.ID,
			"operation":   op,
			"matches":     added,
		}).Debug("Matched through broadened search")
	}
	return added, nil
}

// candidates returns the active payments with the transaction's amount,
// or within the tolerance window when none has it exactly.
func (e *Engine) candidates(ctx context.Context, tx *models.Transaction) ([]*models.Payment, error) {
	amount := tx.AbsoluteAmount()
	pool, err := e.find(ctx, tx, store.PaymentQuery{
		States: e.config.ActiveStates,
		Amount: &amount,
	})
	if err != nil || len(pool) > 0 {
		return pool, err
	}

	tolerance := e.config.Tolerance()
	q := store.PaymentQuery{States: e.config.ActiveStates}.
		WithAmountRange(amount.Sub(tolerance), amount.Add(tolerance))
	return e.find(ctx, tx, q)
}

func (e *Engine) find(ctx context.Context, tx *models.Transaction, q store.PaymentQuery) ([]*models.Payment, error) {
	payments, err := e.source.FindPayments(ctx, q)
	if err != nil {
		return nil, errors.MatchError(errors.CodePaymentSource, tx.ID, "", err)
	}
	return payments, nil
}
