package matcher

import (
	"strings"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
)

// suffixLength is the length of the voucher suffix BCP keeps from its
// operation numbers.
const suffixLength = 6

// PaymentField names a text field of a payment searched for operation
// numbers.
type PaymentField string

const (
	FieldReference        PaymentField = "reference"
	FieldMemo             PaymentField = "memo"
	FieldNarration        PaymentField = "narration"
	FieldCommunication    PaymentField = "communication"
	FieldPaymentReference PaymentField = "payment_reference"
)

// DefaultOperationFields are the fields the default engine searches, in
// order.
var DefaultOperationFields = []PaymentField{
	FieldReference,
	FieldMemo,
	FieldCommunication,
	FieldPaymentReference,
}

// Value returns the content of field f of p.
func (f PaymentField) Value(p *models.Payment) string {
	switch f {
	case FieldReference:
		return p.Name
	case FieldMemo:
		return p.Memo
	case FieldNarration:
		return p.Narration
	case FieldCommunication:
		return p.Communication
	case FieldPaymentReference:
		return p.PaymentReference
	default:
		return ""
	}
}

func stripLeadingZeros(s string) string {
	s = strings.TrimLeft(s, "0")
	if s == "" {
		return "0"
	}
	return s
}

// ContainsOperation reports whether field refers to operation number op.
// It accepts, in order: op as a substring; op without leading zeros as a
// substring; equality once both lose their leading zeros; and the last six
// characters of field equal to op with or without leading zeros.
func ContainsOperation(field, op string) bool {
	field = strings.TrimSpace(field)
	op = strings.TrimSpace(op)
	if field == "" || op == "" {
		return false
	}

	if strings.Contains(field, op) {
		return true
	}

	stripped := stripLeadingZeros(op)
	if strings.Contains(field, stripped) {
		return true
	}
	if stripLeadingZeros(field) == stripped {
		return true
	}

	runes := []rune(field)
	if len(runes) >= suffixLength {
		suffix := string(runes[len(runes)-suffixLength:])
		if suffix == op || suffix == stripped {
			return true
		}
	}
	return false
}

func containsPlain(field, op string) bool {
	op = strings.TrimSpace(op)
	return op != "" && strings.Contains(field, op)
}

// MatchesPayment reports whether any of fields of p refers to op. Fields
// are checked in order and the first hit wins.
func MatchesPayment(p *models.Payment, op string, fields []PaymentField) bool {
	for _, f := range fields {
		if ContainsOperation(f.Value(p), op) {
			return true
		}
	}
	return false
}
