// Package store holds the persistence boundaries of the import pipeline:
// the read-only payment registry the matcher queries, and the repository
// that owns imports, their transactions and their matches.
//
// Both come with in-memory implementations. MemoryPaymentSource indexes
// payments by exact amount and by a sorted amount list so tolerance
// lookups are a binary search rather than a scan.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"

	"github.com/shopspring/decimal"
)

// PaymentQuery filters payments. Zero-valued fields do not filter.
type PaymentQuery struct {
	States []models.PaymentState
	// Amount selects payments with exactly this amount.
	Amount *decimal.Decimal
	// MinAmount and MaxAmount bound the amount, inclusive.
	MinAmount *decimal.Decimal
	MaxAmount *decimal.Decimal
	// DateFrom and DateTo bound the payment date, inclusive.
	DateFrom *time.Time
	DateTo   *time.Time
}

// WithAmountRange returns a copy of q restricted to [lo, hi].
func (q PaymentQuery) WithAmountRange(lo, hi decimal.Decimal) PaymentQuery {
	q.MinAmount = &lo
	q.MaxAmount = &hi
	return q
}

// PaymentSource is the host application's payment registry.
type PaymentSource interface {
	FindPayments(ctx context.Context, q PaymentQuery) ([]*models.Payment, error)
}

// amountIndexEntry groups payments sharing one amount.
type amountIndexEntry struct {
	Amount   decimal.Decimal
	Payments []*models.Payment
}

// MemoryPaymentSource is an in-memory PaymentSource. It is safe for
// concurrent reads once built.
type MemoryPaymentSource struct {
	all              []*models.Payment
	position         map[*models.Payment]int
	exactAmountIndex map[string][]*models.Payment
	amountRangeIndex []*amountIndexEntry
	stateIndex       map[models.PaymentState][]*models.Payment
}

// NewMemoryPaymentSource indexes payments.
func NewMemoryPaymentSource(payments []*models.Payment) *MemoryPaymentSource {
	s := &MemoryPaymentSource{
		all:              payments,
		position:         make(map[*models.Payment]int, len(payments)),
		exactAmountIndex: make(map[string][]*models.Payment),
		stateIndex:       make(map[models.PaymentState][]*models.Payment),
	}
	s.buildIndexes()
	return s
}

func (s *MemoryPaymentSource) buildIndexes() {
	amountMap := make(map[string]*amountIndexEntry)

	for i, p := range s.all {
		s.position[p] = i
		amountKey := p.Amount.String()

		s.exactAmountIndex[amountKey] = append(s.exactAmountIndex[amountKey], p)
		s.stateIndex[p.State] = append(s.stateIndex[p.State], p)

		if entry, exists := amountMap[amountKey]; exists {
			entry.Payments = append(entry.Payments, p)
		} else {
			amountMap[amountKey] = &amountIndexEntry{
				Amount:   p.Amount,
				Payments: []*models.Payment{p},
			}
		}
	}

	s.amountRangeIndex = make([]*amountIndexEntry, 0, len(amountMap))
	for _, entry := range amountMap {
		s.amountRangeIndex = append(s.amountRangeIndex, entry)
	}

	sort.Slice(s.amountRangeIndex, func(i, j int) bool {
		return s.amountRangeIndex[i].Amount.LessThan(s.amountRangeIndex[j].Amount)
	})
}

// Len returns the number of indexed payments.
func (s *MemoryPaymentSource) Len() int {
	return len(s.all)
}

// byAmountRange returns payments with lo <= amount <= hi.
func (s *MemoryPaymentSource) byAmountRange(lo, hi decimal.Decimal) []*models.Payment {
	var result []*models.Payment

	startIdx := sort.Search(len(s.amountRangeIndex), func(i int) bool {
		return s.amountRangeIndex[i].Amount.GreaterThanOrEqual(lo)
	})

	for i := startIdx; i < len(s.amountRangeIndex); i++ {
		entry := s.amountRangeIndex[i]
		if entry.Amount.GreaterThan(hi) {
			break
		}
		result = append(result, entry.Payments...)
	}

	return result
}

// FindPayments returns the payments matching q in registry order.
func (s *MemoryPaymentSource) FindPayments(ctx context.Context, q PaymentQuery) ([]*models.Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []*models.Payment
	switch {
	case q.Amount != nil:
		candidates = s.exactAmountIndex[q.Amount.String()]
	case q.MinAmount != nil || q.MaxAmount != nil:
		lo, hi := decimal.NewFromInt(-1<<62), decimal.NewFromInt(1<<62)
		if q.MinAmount != nil {
			lo = *q.MinAmount
		}
		if q.MaxAmount != nil {
			hi = *q.MaxAmount
		}
		candidates = s.byAmountRange(lo, hi)
	case len(q.States) > 0:
		for _, state := range q.States {
			candidates = append(candidates, s.stateIndex[state]...)
		}
	default:
		candidates = s.all
	}

	result := make([]*models.Payment, 0, len(candidates))
	for _, p := range candidates {
		if q.matches(p) {
			result = append(result, p)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return s.position[result[i]] < s.position[result[j]]
	})
	return result, nil
}

func (q PaymentQuery) matches(p *models.Payment) bool {
	if len(q.States) > 0 && !p.HasState(q.States) {
		return false
	}
	if q.Amount != nil && !p.Amount.Equal(*q.Amount) {
		return false
	}
	if q.MinAmount != nil && p.Amount.LessThan(*q.MinAmount) {
		return false
	}
	if q.MaxAmount != nil && p.Amount.GreaterThan(*q.MaxAmount) {
		return false
	}
	day := models.CalendarDate(p.Date)
	if q.DateFrom != nil && day.Before(models.CalendarDate(*q.DateFrom)) {
		return false
	}
	if q.DateTo != nil && day.After(models.CalendarDate(*q.DateTo)) {
		return false
	}
	return true
}
