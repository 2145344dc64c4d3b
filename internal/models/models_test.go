package models

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestBankType_Label(t *testing.T) {
	tests := []struct {
		bank     BankType
		expected string
	}{
		{BankBCP, "BCP"},
		{BankNacion, "NACION"},
		{BankContinental, "CONTINENTAL"},
		{BankOther, "OTHER"},
	}

	for _, tt := range tests {
		t.Run(string(tt.bank), func(t *testing.T) {
			if got := tt.bank.Label(); got != tt.expected {
				t.Errorf("BankType.Label() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestParseBankType(t *testing.T) {
	bank, err := ParseBankType("  BCP ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bank != BankBCP {
		t.Errorf("expected bcp, got %s", bank)
	}

	if _, err := ParseBankType(" "); err == nil {
		t.Error("expected error for empty identifier")
	}
}

func TestTransaction_Validate(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		tx        Transaction
		wantError bool
	}{
		{
			name: "valid transaction",
			tx:   Transaction{ImportID: "imp-1", Date: date, Amount: decimal.NewFromInt(10)},
		},
		{
			name: "zero amount is allowed",
			tx:   Transaction{ImportID: "imp-1", Date: date},
		},
		{
			name:      "missing import",
			tx:        Transaction{Date: date},
			wantError: true,
		},
		{
			name:      "zero date",
			tx:        Transaction{ImportID: "imp-1"},
			wantError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.tx.Validate()
			if (err != nil) != tt.wantError {
				t.Errorf("Validate() error = %v, wantError %v", err, tt.wantError)
			}
		})
	}
}

func TestTransaction_Sign(t *testing.T) {
	debit := &Transaction{Amount: decimal.RequireFromString("-25.50")}
	credit := &Transaction{Amount: decimal.RequireFromString("25.50")}

	if !debit.IsDebit() || debit.IsCredit() {
		t.Error("negative amount should be a debit")
	}
	if !credit.IsCredit() || credit.IsDebit() {
		t.Error("positive amount should be a credit")
	}
	if !debit.AbsoluteAmount().Equal(credit.Amount) {
		t.Errorf("expected absolute amount 25.50, got %s", debit.AbsoluteAmount())
	}
}

func TestTransaction_SameContent(t *testing.T) {
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	a := &Transaction{ID: "a", ImportID: "imp", Sequence: 1, Date: date, DateResolved: true,
		Description: "PAGO", Amount: decimal.NewFromInt(5), OperationNumber: "123456"}
	b := *a
	b.ID = "b"

	if !a.SameContent(&b) {
		t.Error("transactions differing only by ID should have the same content")
	}

	b.Amount = decimal.NewFromInt(6)
	if a.SameContent(&b) {
		t.Error("different amounts should not compare equal")
	}
	if a.SameContent(nil) {
		t.Error("nil should never compare equal")
	}
}

func TestTransaction_MarshalJSON(t *testing.T) {
	tx := &Transaction{
		ID:       "tx-1",
		ImportID: "imp-1",
		Date:     time.Date(2024, 2, 3, 0, 0, 0, 0, time.UTC),
		Amount:   decimal.RequireFromString("-1500.5"),
	}

	data, err := json.Marshal(tx)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	out := string(data)
	if !strings.Contains(out, `"date":"2024-02-03"`) {
		t.Errorf("expected calendar date in %s", out)
	}
	if !strings.Contains(out, `"amount":"-1500.50"`) {
		t.Errorf("expected fixed amount in %s", out)
	}
}

func TestParseDecimalFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"1,234.56", "1234.56", false},
		{"S/ 1,500.00", "1500", false},
		{"S/. 20.10", "20.1", false},
		{"US$ 99.99", "99.99", false},
		{"-45.00", "-45", false},
		{"", "0", true},
		{"abc", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDecimalFromString(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseDecimalFromString(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !got.Equal(decimal.RequireFromString(tt.expected)) {
				t.Errorf("ParseDecimalFromString(%q) = %s, want %s", tt.input, got, tt.expected)
			}
		})
	}
}

func TestCompareAmountsWithTolerance(t *testing.T) {
	tol := decimal.RequireFromString("0.01")
	if !CompareAmountsWithTolerance(decimal.RequireFromString("100.00"), decimal.RequireFromString("100.005"), tol) {
		t.Error("100.005 should be within 0.01 of 100.00")
	}
	if CompareAmountsWithTolerance(decimal.RequireFromString("100.00"), decimal.RequireFromString("100.02"), tol) {
		t.Error("100.02 should be outside 0.01 of 100.00")
	}
}

func TestPayment_HasState(t *testing.T) {
	p := &Payment{ID: "p1", State: PaymentSent}
	if !p.HasState([]PaymentState{PaymentPosted, PaymentSent}) {
		t.Error("expected sent payment to be in the set")
	}
	if p.HasState([]PaymentState{PaymentDraft}) {
		t.Error("sent payment should not be draft")
	}
}

func TestImport_Counters(t *testing.T) {
	imp := &Import{
		ID: "imp-1",
		Transactions: []*Transaction{
			{ID: "t1"}, {ID: "t2"}, {ID: "t3"},
		},
		Matches: []*Match{
			{TransactionID: "t1", PaymentID: "p1"},
			{TransactionID: "t1", PaymentID: "p2"},
			{TransactionID: "t3", PaymentID: "p3"},
		},
	}

	if imp.TotalOperations() != 3 {
		t.Errorf("expected 3 operations, got %d", imp.TotalOperations())
	}
	if imp.MatchedOperations() != 2 {
		t.Errorf("expected 2 matched operations, got %d", imp.MatchedOperations())
	}
	if imp.UnmatchedOperations() != 1 {
		t.Errorf("expected 1 unmatched operation, got %d", imp.UnmatchedOperations())
	}
	unmatched := imp.UnmatchedTransactions()
	if len(unmatched) != 1 || unmatched[0].ID != "t2" {
		t.Errorf("expected t2 to be unmatched, got %v", unmatched)
	}
	if _, ok := imp.Transaction("t3"); !ok {
		t.Error("expected to find t3")
	}
}

func TestNewMatch(t *testing.T) {
	tx := &Transaction{
		ID: "t1", ImportID: "imp-1", Date: time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		Amount: decimal.RequireFromString("-300"), OperationNumber: "456789",
	}
	p := &Payment{
		ID: "p1", Amount: decimal.RequireFromString("300"), Currency: "PEN",
		Name: "PAY/2024/0001", Memo: "456789", PartnerName: "Ferreteria SAC",
	}

	m := NewMatch(tx, p, MatchExact, 0)
	if err := m.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if m.PaymentReference != "PAY/2024/0001" || m.PartnerName != "Ferreteria SAC" || m.Currency != "PEN" {
		t.Errorf("payment fields not copied: %+v", m)
	}
	if !m.Amount.Equal(tx.Amount) || !m.PaymentAmount.Equal(p.Amount) {
		t.Errorf("amounts not copied: %+v", m)
	}
	if m.Key() != "t1|p1" {
		t.Errorf("unexpected key %s", m.Key())
	}
}

func TestMatch_Validate(t *testing.T) {
	m := &Match{TransactionID: "t1", Type: MatchPartial}
	err := m.Validate()
	if err == nil {
		t.Fatal("expected missing links to fail validation")
	}
	if !strings.Contains(err.Error(), "import") || !strings.Contains(err.Error(), "payment") {
		t.Errorf("expected missing import and payment in %q", err)
	}

	m = &Match{ImportID: "i", TransactionID: "t", PaymentID: "p", Type: "fuzzy"}
	if m.Validate() == nil {
		t.Error("expected invalid type to fail validation")
	}
}
