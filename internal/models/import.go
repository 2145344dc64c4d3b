package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ImportState is the lifecycle state of an import batch
type ImportState string

const (
	StateDraft     ImportState = "draft"
	StateProcessed ImportState = "processed"
	StateMatched   ImportState = "matched"
)

// String returns the string representation of ImportState
func (s ImportState) String() string {
	return string(s)
}

// MatchType is the confidence tier of a match
type MatchType string

const (
	// MatchExact means the operation number was found in the payment.
	MatchExact MatchType = "exact"
	// MatchPartial means the payment was accepted on amount alone or through
	// the broadened operation-number search.
	MatchPartial MatchType = "partial"
)

// String returns the string representation of MatchType
func (m MatchType) String() string {
	return string(m)
}

// Import is one uploaded statement file and everything derived from it.
type Import struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	BankType     BankType       `json:"bank_type"`
	FileName     string         `json:"file_name"`
	FileKind     FileKind       `json:"file_kind"`
	State        ImportState    `json:"state"`
	Data         []byte         `json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	ProcessedAt  *time.Time     `json:"processed_at,omitempty"`
	MatchedAt    *time.Time     `json:"matched_at,omitempty"`
	Transactions []*Transaction `json:"transactions"`
	Matches      []*Match       `json:"matches"`
}

// TotalOperations returns the number of extracted transactions.
func (i *Import) TotalOperations() int {
	return len(i.Transactions)
}

// MatchedOperations returns the number of transactions with at least one match.
func (i *Import) MatchedOperations() int {
	seen := make(map[string]bool, len(i.Matches))
	for _, m := range i.Matches {
		seen[m.TransactionID] = true
	}
	return len(seen)
}

// UnmatchedOperations returns the number of transactions without any match.
func (i *Import) UnmatchedOperations() int {
	return i.TotalOperations() - i.MatchedOperations()
}

// UnmatchedTransactions returns the transactions without any match, in order.
func (i *Import) UnmatchedTransactions() []*Transaction {
	matched := make(map[string]bool, len(i.Matches))
	for _, m := range i.Matches {
		matched[m.TransactionID] = true
	}

	var out []*Transaction
	for _, tx := range i.Transactions {
		if !matched[tx.ID] {
			out = append(out, tx)
		}
	}
	return out
}

// Transaction looks up a transaction of this import by ID.
func (i *Import) Transaction(id string) (*Transaction, bool) {
	for _, tx := range i.Transactions {
		if tx.ID == id {
			return tx, true
		}
	}
	return nil, false
}

// Match links one transaction to one external payment. Payment fields are
// copied at creation time so reports can be rendered without the payment
// source.
type Match struct {
	ID               string          `json:"id"`
	ImportID         string          `json:"import_id"`
	TransactionID    string          `json:"transaction_id"`
	PaymentID        string          `json:"payment_id"`
	Type             MatchType       `json:"match_type"`
	Score            int             `json:"score,omitempty"`
	TransactionDate  time.Time       `json:"transaction_date"`
	OperationNumber  string          `json:"operation_number"`
	Amount           decimal.Decimal `json:"amount"`
	PaymentAmount    decimal.Decimal `json:"payment_amount"`
	Currency         string          `json:"currency"`
	PaymentReference string          `json:"payment_reference"`
	PaymentMemo      string          `json:"payment_memo"`
	PartnerName      string          `json:"partner_name"`
	CreatedAt        time.Time       `json:"created_at"`
}

// NewMatch builds a match between tx and p, copying the fields needed for
// reporting. The caller assigns the ID.
func NewMatch(tx *Transaction, p *Payment, matchType MatchType, score int) *Match {
	return &Match{
		ImportID:         tx.ImportID,
		TransactionID:    tx.ID,
		PaymentID:        p.ID,
		Type:             matchType,
		Score:            score,
		TransactionDate:  tx.Date,
		OperationNumber:  tx.OperationNumber,
		Amount:           tx.Amount,
		PaymentAmount:    p.Amount,
		Currency:         p.Currency,
		PaymentReference: p.Name,
		PaymentMemo:      p.Memo,
		PartnerName:      p.PartnerName,
	}
}

// Key identifies the (transaction, payment) pair of the match.
func (m *Match) Key() string {
	return m.TransactionID + "|" + m.PaymentID
}

// Validate checks the links every match must carry.
func (m *Match) Validate() error {
	var missing []string
	if strings.TrimSpace(m.ImportID) == "" {
		missing = append(missing, "import")
	}
	if strings.TrimSpace(m.TransactionID) == "" {
		missing = append(missing, "transaction")
	}
	if strings.TrimSpace(m.PaymentID) == "" {
		missing = append(missing, "payment")
	}
	if len(missing) > 0 {
		return fmt.Errorf("match is missing %s", strings.Join(missing, ", "))
	}
	if m.Type != MatchExact && m.Type != MatchPartial {
		return fmt.Errorf("invalid match type: %q", m.Type)
	}
	return nil
}

// String returns a string representation of the Match
func (m *Match) String() string {
	return fmt.Sprintf("Match{%s, Tx: %s, Payment: %s, Amount: %s}",
		m.Type, m.TransactionID, m.PaymentID, m.Amount.String())
}
