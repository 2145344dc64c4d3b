package parsers

import (
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"

	"github.com/google/uuid"
)

// Normalizer turns raw transactions into Transaction records owned by an
// import.
type Normalizer struct {
	now    func() time.Time
	logger logger.Logger
}

// NewNormalizer creates a Normalizer. now supplies the fallback date for
// rows whose date could not be read; nil means time.Now.
func NewNormalizer(now func() time.Time) *Normalizer {
	if now == nil {
		now = time.Now
	}
	return &Normalizer{
		now:    now,
		logger: logger.GetGlobalLogger().WithComponent("normalizer"),
	}
}

// Normalize assigns identifiers, sequence numbers and the import id. Rows
// without a usable date get today's date and DateResolved false.
func (n *Normalizer) Normalize(importID string, raws []*RawTransaction) ([]*models.Transaction, error) {
	if strings.TrimSpace(importID) == "" {
		return nil, errors.InternalError(errors.CodeUnexpectedError, "normalize transactions", nil).
			WithContext("reason", "missing import id")
	}

	today := models.CalendarDate(n.now())
	out := make([]*models.Transaction, 0, len(raws))
	fallbacks := 0

	for _, raw := range raws {
		if raw == nil {
			continue
		}

		tx := &models.Transaction{
			ID:              uuid.NewString(),
			ImportID:        importID,
			Sequence:        len(out) + 1,
			Date:            raw.Date,
			DateResolved:    raw.HasDate,
			Description:     strings.TrimSpace(raw.Description),
			Amount:          raw.Amount,
			OperationNumber: strings.TrimSpace(raw.OperationNumber),
			SourceLine:      raw.Source,
		}
		if !raw.HasDate || raw.Date.IsZero() {
			tx.Date = today
			tx.DateResolved = false
			fallbacks++
		}

		if err := tx.Validate(); err != nil {
			return nil, errors.InternalError(errors.CodeUnexpectedError, "normalize transactions", err).
				WithContext("row", raw.Row)
		}
		out = append(out, tx)
	}

	if fallbacks > 0 {
		n.logger.WithFields(logger.Fields{
			"import_id": importID,
			"rows":      fallbacks,
		}).Warn("Rows without a readable date were dated today")
	}
	return out, nil
}
