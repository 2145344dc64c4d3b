package store

import (
	"context"
	"sort"
	"sync"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
)

// ImportRepository persists imports together with their transactions and
// matches. Transactions and matches are owned by their import: deleting
// the import deletes them, and replacing the transactions drops the
// matches.
type ImportRepository interface {
	Create(ctx context.Context, imp *models.Import) error
	Get(ctx context.Context, id string) (*models.Import, error)
	// Update stores the header fields of imp (name, state, timestamps).
	// Transactions and matches are left untouched.
	Update(ctx context.Context, imp *models.Import) error
	Delete(ctx context.Context, id string) error
	ReplaceTransactions(ctx context.Context, id string, txs []*models.Transaction) error
	// ReplaceMatches swaps the match set of an import. Every match must
	// link a transaction of the import to a payment, and no two matches
	// may share a transaction and payment pair. On a violation nothing is
	// stored and a match error is returned.
	ReplaceMatches(ctx context.Context, id string, matches []*models.Match) error
	List(ctx context.Context) ([]*models.Import, error)
}

// MemoryImportRepository is a mutex-guarded in-memory ImportRepository.
// Get and List return copies, so callers may modify what they receive.
type MemoryImportRepository struct {
	mu      sync.RWMutex
	imports map[string]*models.Import
}

// NewMemoryImportRepository creates an empty repository.
func NewMemoryImportRepository() *MemoryImportRepository {
	return &MemoryImportRepository{imports: make(map[string]*models.Import)}
}

func notFound(id string) error {
	return errors.UserInputError(errors.CodeImportNotFound, id, nil)
}

func cloneImport(imp *models.Import) *models.Import {
	c := *imp
	c.Transactions = append([]*models.Transaction(nil), imp.Transactions...)
	c.Matches = append([]*models.Match(nil), imp.Matches...)
	return &c
}

func (r *MemoryImportRepository) Create(ctx context.Context, imp *models.Import) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if imp == nil || imp.ID == "" {
		return errors.InternalError(errors.CodeUnexpectedError, "create import", nil).
			WithContext("reason", "import without id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.imports[imp.ID]; exists {
		return errors.InternalError(errors.CodeUnexpectedError, "create import", nil).
			WithContext("reason", "duplicate import id").
			WithContext("import_id", imp.ID)
	}
	r.imports[imp.ID] = cloneImport(imp)
	return nil
}

func (r *MemoryImportRepository) Get(ctx context.Context, id string) (*models.Import, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	imp, ok := r.imports[id]
	if !ok {
		return nil, notFound(id)
	}
	return cloneImport(imp), nil
}

func (r *MemoryImportRepository) Update(ctx context.Context, imp *models.Import) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.imports[imp.ID]
	if !ok {
		return notFound(imp.ID)
	}

	updated := cloneImport(imp)
	updated.Transactions = stored.Transactions
	updated.Matches = stored.Matches
	r.imports[imp.ID] = updated
	return nil
}

func (r *MemoryImportRepository) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.imports[id]; !ok {
		return notFound(id)
	}
	delete(r.imports, id)
	return nil
}

func (r *MemoryImportRepository) ReplaceTransactions(ctx context.Context, id string, txs []*models.Transaction) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.imports[id]
	if !ok {
		return notFound(id)
	}

	for _, tx := range txs {
		if tx.ImportID != id {
			return errors.InternalError(errors.CodeUnexpectedError, "store transactions", nil).
				WithContext("import_id", id).
				WithContext("transaction_id", tx.ID)
		}
	}

	updated := cloneImport(stored)
	updated.Transactions = append([]*models.Transaction(nil), txs...)
	updated.Matches = nil
	r.imports[id] = updated
	return nil
}

func (r *MemoryImportRepository) ReplaceMatches(ctx context.Context, id string, matches []*models.Match) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.imports[id]
	if !ok {
		return notFound(id)
	}

	if err := validateMatches(stored, matches); err != nil {
		return err
	}

	updated := cloneImport(stored)
	updated.Matches = append([]*models.Match(nil), matches...)
	r.imports[id] = updated
	return nil
}

func validateMatches(imp *models.Import, matches []*models.Match) error {
	txIDs := make(map[string]bool, len(imp.Transactions))
	for _, tx := range imp.Transactions {
		txIDs[tx.ID] = true
	}

	seen := make(map[string]bool, len(matches))
	for _, m := range matches {
		if m == nil {
			return errors.MatchError(errors.CodeMissingLinkage, "", "", nil)
		}
		if err := m.Validate(); err != nil {
			return errors.MatchError(errors.CodeMissingLinkage, m.TransactionID, m.PaymentID, err)
		}
		if m.ImportID != imp.ID || !txIDs[m.TransactionID] {
			return errors.MatchError(errors.CodeMissingLinkage, m.TransactionID, m.PaymentID, nil).
				WithContext("import_id", imp.ID)
		}
		if seen[m.Key()] {
			return errors.MatchError(errors.CodeDuplicateMatch, m.TransactionID, m.PaymentID, nil)
		}
		seen[m.Key()] = true
	}
	return nil
}

func (r *MemoryImportRepository) List(ctx context.Context) ([]*models.Import, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*models.Import, 0, len(r.imports))
	for _, imp := range r.imports {
		out = append(out, cloneImport(imp))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
