package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the layout used to render calendar dates.
const DateLayout = "2006-01-02"

// BankType identifies the bank whose export format is being imported
type BankType string

const (
	BankBCP         BankType = "bcp"
	BankNacion      BankType = "nacion"
	BankContinental BankType = "continental"
	BankOther       BankType = "other"
)

// String returns the string representation of BankType
func (b BankType) String() string {
	return string(b)
}

// Label returns the short upper-case name used in import titles.
func (b BankType) Label() string {
	switch b {
	case BankBCP:
		return "BCP"
	case BankNacion:
		return "NACION"
	case BankContinental:
		return "CONTINENTAL"
	default:
		return strings.ToUpper(string(b))
	}
}

// ParseBankType parses a bank identifier, case-insensitively.
func ParseBankType(s string) (BankType, error) {
	bank := BankType(strings.ToLower(strings.TrimSpace(s)))
	if bank == "" {
		return "", fmt.Errorf("bank identifier cannot be empty")
	}
	return bank, nil
}

// FileKind is the broad file family of an uploaded statement
type FileKind string

const (
	FileKindText        FileKind = "text"
	FileKindSpreadsheet FileKind = "spreadsheet"
)

// String returns the string representation of FileKind
func (k FileKind) String() string {
	return string(k)
}

// Transaction is one normalized bank movement extracted from a statement.
// Positive amounts are credits (inflows), negative amounts are debits.
type Transaction struct {
	ID       string `json:"id"`
	ImportID string `json:"import_id"`
	// Sequence is the 1-based position of the transaction within its import.
	Sequence int       `json:"sequence"`
	Date     time.Time `json:"date"`
	// DateResolved is false when the source date could not be parsed and
	// Date holds the fallback value.
	DateResolved    bool            `json:"date_resolved"`
	Description     string          `json:"description"`
	Amount          decimal.Decimal `json:"amount"`
	OperationNumber string          `json:"operation_number"`
	SourceLine      string          `json:"source_line"`
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ImportID) == "" {
		return fmt.Errorf("transaction must belong to an import")
	}
	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}
	return nil
}

// AbsoluteAmount returns the unsigned amount used for payment lookups.
func (t *Transaction) AbsoluteAmount() decimal.Decimal {
	return t.Amount.Abs()
}

// IsDebit returns true if the transaction is an outflow
func (t *Transaction) IsDebit() bool {
	return t.Amount.IsNegative()
}

// IsCredit returns true if the transaction is an inflow
func (t *Transaction) IsCredit() bool {
	return t.Amount.IsPositive()
}

// HasOperationNumber reports whether the bank supplied an operation number.
func (t *Transaction) HasOperationNumber() bool {
	return strings.TrimSpace(t.OperationNumber) != ""
}

// SameContent compares two transactions ignoring their identifiers.
func (t *Transaction) SameContent(other *Transaction) bool {
	if other == nil {
		return false
	}
	return t.Sequence == other.Sequence &&
		t.Date.Equal(other.Date) &&
		t.DateResolved == other.DateResolved &&
		t.Description == other.Description &&
		t.Amount.Equal(other.Amount) &&
		t.OperationNumber == other.OperationNumber &&
		t.SourceLine == other.SourceLine
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{Date: %s, Amount: %s, Op: %s, Desc: %s}",
		t.Date.Format(DateLayout), t.Amount.String(), t.OperationNumber, t.Description)
}

// MarshalJSON renders the date as a calendar date.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	type Alias Transaction
	return json.Marshal(&struct {
		Date   string `json:"date"`
		Amount string `json:"amount"`
		*Alias
	}{
		Date:   t.Date.Format(DateLayout),
		Amount: t.Amount.StringFixed(2),
		Alias:  (*Alias)(t),
	})
}

// PaymentState is the posting state of an external payment
type PaymentState string

const (
	PaymentDraft     PaymentState = "draft"
	PaymentPosted    PaymentState = "posted"
	PaymentSent      PaymentState = "sent"
	PaymentInProcess PaymentState = "in_process"
	PaymentCancelled PaymentState = "cancelled"
)

// Payment is a read-only record from the host application's payment
// registry. The text fields are searched for operation numbers.
type Payment struct {
	ID               string          `json:"id"`
	State            PaymentState    `json:"state"`
	Date             time.Time       `json:"date"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Name             string          `json:"name"`
	Memo             string          `json:"memo"`
	Narration        string          `json:"narration"`
	Communication    string          `json:"communication"`
	PaymentReference string          `json:"payment_reference"`
	PartnerName      string          `json:"partner_name"`
}

// Validate performs basic validation on the Payment
func (p *Payment) Validate() error {
	if strings.TrimSpace(p.ID) == "" {
		return fmt.Errorf("payment ID cannot be empty")
	}
	if p.Amount.IsNegative() {
		return fmt.Errorf("payment %s has a negative amount %s", p.ID, p.Amount)
	}
	return nil
}

// HasState reports whether the payment is in one of the given states.
func (p *Payment) HasState(states []PaymentState) bool {
	for _, s := range states {
		if p.State == s {
			return true
		}
	}
	return false
}

// ParseDecimalFromString parses a decimal value, stripping thousands
// separators and the currency symbols found in Peruvian statements.
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	for _, symbol := range []string{"S/.", "S/", "US$", "$", "€"} {
		s = strings.ReplaceAll(s, symbol, "")
	}
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}
	return d, nil
}

// CompareAmountsWithTolerance compares two decimal amounts with a tolerance
func CompareAmountsWithTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// CalendarDate truncates t to midnight UTC of its calendar day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
