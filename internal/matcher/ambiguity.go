package matcher

import (
	"fmt"
	"sort"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
)

// AmbiguityKind tells which side of a match is shared.
type AmbiguityKind string

const (
	// SharedTransaction groups the matches of a transaction linked to
	// several payments.
	SharedTransaction AmbiguityKind = "transaction"
	// SharedPayment groups the matches of a payment claimed by several
	// transactions.
	SharedPayment AmbiguityKind = "payment"
)

// AmbiguityGroup is a set of matches sharing one transaction or one
// payment. The engines do not rank such candidates; the group is reported
// so a person can pick.
type AmbiguityGroup struct {
	Kind    AmbiguityKind   `json:"kind"`
	Key     string          `json:"key"`
	GroupID string          `json:"group_id"`
	Matches []*models.Match `json:"matches"`
	Reason  string          `json:"reason"`
}

// DetectAmbiguities returns the groups of matches that share a transaction
// or a payment, transactions first, each side in order of first
// appearance.
func DetectAmbiguities(matches []*models.Match) []AmbiguityGroup {
	groups := groupBy(matches, SharedTransaction, func(m *models.Match) string { return m.TransactionID })
	groups = append(groups, groupBy(matches, SharedPayment, func(m *models.Match) string { return m.PaymentID })...)
	return groups
}

func groupBy(matches []*models.Match, kind AmbiguityKind, key func(*models.Match) string) []AmbiguityGroup {
	byKey := make(map[string][]*models.Match)
	first := make(map[string]int)
	for i, m := range matches {
		k := key(m)
		if _, ok := first[k]; !ok {
			first[k] = i
		}
		byKey[k] = append(byKey[k], m)
	}

	var groups []AmbiguityGroup
	for k, ms := range byKey {
		if len(ms) < 2 {
			continue
		}
		groups = append(groups, AmbiguityGroup{
			Kind:    kind,
			Key:     k,
			GroupID: fmt.Sprintf("AMB_%s_%s", kind, k),
			Matches: ms,
			Reason:  ambiguityReason(kind, ms),
		})
	}

	sort.Slice(groups, func(i, j int) bool {
		return first[groups[i].Key] < first[groups[j].Key]
	})
	return groups
}

func ambiguityReason(kind AmbiguityKind, ms []*models.Match) string {
	exact := 0
	for _, m := range ms {
		if m.Type == models.MatchExact {
			exact++
		}
	}
	if kind == SharedTransaction {
		return fmt.Sprintf("operation %s matches %d payments (%d exact)", ms[0].OperationNumber, len(ms), exact)
	}
	return fmt.Sprintf("payment %s is matched by %d transactions (%d exact)", ms[0].PaymentID, len(ms), exact)
}
