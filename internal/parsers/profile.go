package parsers

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/logger"
)

// BankProfile holds the per-bank rules used by the parsers.
type BankProfile interface {
	Bank() models.BankType
	DisplayName() string
	// TextSchema describes the delimited text export of the bank.
	TextSchema() TextSchema
	// NormalizeOperationNumber post-processes operation numbers read from
	// text exports.
	NormalizeOperationNumber(op string) string
	// Layout returns the spreadsheet layout of the bank.
	Layout() SheetLayout
	// SelectSheet picks the worksheet to read from a workbook.
	SelectSheet(names []string, active string) string
}

// SheetLayout locates the header row of a sheet, maps its columns to
// roles and turns data rows into raw transactions.
type SheetLayout interface {
	DetectHeader(rows []RawRow) (int, error)
	MapColumns(header RawRow) (ColumnMap, error)
	ParseRow(row RawRow, cols ColumnMap) (*RawTransaction, error)
}

// ColumnRole is the meaning of a spreadsheet column.
type ColumnRole string

const (
	RoleDate        ColumnRole = "date"
	RoleDescription ColumnRole = "description"
	RoleDebit       ColumnRole = "debit"
	RoleCredit      ColumnRole = "credit"
	RoleAmount      ColumnRole = "amount"
	RoleOperation   ColumnRole = "operation"
)

// ColumnMap maps roles to 0-based column indices.
type ColumnMap map[ColumnRole]int

// Has reports whether role is mapped.
func (m ColumnMap) Has(role ColumnRole) bool {
	_, ok := m[role]
	return ok
}

// String renders the mapping in a stable order for logs.
func (m ColumnMap) String() string {
	parts := make([]string, 0, len(m))
	for role, idx := range m {
		parts = append(parts, fmt.Sprintf("%s=%d", role, idx))
	}
	sort.Strings(parts)
	return strings.Join(parts, " ")
}

// TextSchema describes a quoted, delimited text export.
type TextSchema struct {
	Delimiter string
	Quote     string
	MinFields int
	// Field positions, 0-based.
	DateField        int
	DescriptionField int
	AmountField      int
	OperationField   int
	// DateLayouts are tried in order on the date field.
	DateLayouts []string
}

// DefaultTextSchema is the layout shared by the Peruvian bank exports:
// "date";"value date";"description";"amount";"balance";"operation".
func DefaultTextSchema() TextSchema {
	return TextSchema{
		Delimiter:        ";",
		Quote:            `"`,
		MinFields:        6,
		DateField:        0,
		DescriptionField: 2,
		AmountField:      3,
		OperationField:   5,
		DateLayouts:      []string{"2/1/2006"},
	}
}

// OperationRule post-processes an operation number.
type OperationRule func(op string) string

// KeepOperation returns the operation number unchanged.
func KeepOperation(op string) string {
	return op
}

// KeepLastN keeps the last n characters of operation numbers that have at
// least n characters. BCP embeds the voucher number as such a suffix after
// a branch and terminal prefix.
func KeepLastN(n int) OperationRule {
	return func(op string) string {
		runes := []rune(op)
		if len(runes) >= n {
			return string(runes[len(runes)-n:])
		}
		return op
	}
}

// Profile is the standard BankProfile implementation.
type Profile struct {
	ID     models.BankType
	Name   string
	Text   TextSchema
	OpRule OperationRule
	Sheet  SheetLayout
	// PreferredSheet selects the first worksheet whose name contains it.
	// When empty, or when no sheet matches, the active sheet is used.
	PreferredSheet string
}

func (p *Profile) Bank() models.BankType  { return p.ID }
func (p *Profile) DisplayName() string    { return p.Name }
func (p *Profile) TextSchema() TextSchema { return p.Text }
func (p *Profile) Layout() SheetLayout    { return p.Sheet }

func (p *Profile) NormalizeOperationNumber(op string) string {
	if p.OpRule == nil {
		return op
	}
	return p.OpRule(op)
}

func (p *Profile) SelectSheet(names []string, active string) string {
	if p.PreferredSheet != "" {
		for _, name := range names {
			if strings.Contains(name, p.PreferredSheet) {
				return name
			}
		}
	}
	if active != "" {
		return active
	}
	if len(names) > 0 {
		return names[0]
	}
	return ""
}

// ProfileOptions configures the built-in profiles.
type ProfileOptions struct {
	HeaderScanRows      int
	ContinentalScanRows int
	ContinentalSheet    string
	// Now is the clock used for missing years and missing dates.
	Now func() time.Time
}

// DefaultProfileOptions returns the options used by the CLI.
func DefaultProfileOptions() ProfileOptions {
	return ProfileOptions{
		HeaderScanRows:      10,
		ContinentalScanRows: 5,
		ContinentalSheet:    "Sheet6",
		Now:                 time.Now,
	}
}

// Registry maps bank identifiers to profiles.
type Registry struct {
	mu       sync.RWMutex
	profiles map[models.BankType]BankProfile
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{profiles: make(map[models.BankType]BankProfile)}
}

// NewDefaultRegistry creates a registry holding the bcp, nacion,
// continental and other profiles.
func NewDefaultRegistry(opts ProfileOptions) *Registry {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.HeaderScanRows <= 0 {
		opts.HeaderScanRows = 10
	}
	if opts.ContinentalScanRows <= 0 {
		opts.ContinentalScanRows = 5
	}

	log := logger.GetGlobalLogger().WithComponent("profiles")
	generic := NewGenericLayout(opts.HeaderScanRows, log)

	r := NewRegistry()
	r.Register(&Profile{
		ID:     models.BankBCP,
		Name:   "Banco de Crédito del Perú",
		Text:   DefaultTextSchema(),
		OpRule: KeepLastN(6),
		Sheet:  generic,
	})
	r.Register(&Profile{
		ID:     models.BankNacion,
		Name:   "Banco de la Nación",
		Text:   DefaultTextSchema(),
		OpRule: KeepOperation,
		Sheet:  generic,
	})
	r.Register(&Profile{
		ID:             models.BankContinental,
		Name:           "BBVA Continental",
		Text:           DefaultTextSchema(),
		OpRule:         KeepOperation,
		Sheet:          NewContinentalLayout(opts.ContinentalScanRows, opts.Now),
		PreferredSheet: opts.ContinentalSheet,
	})
	r.Register(&Profile{
		ID:     models.BankOther,
		Name:   "Otro banco",
		Text:   DefaultTextSchema(),
		OpRule: KeepOperation,
		Sheet:  generic,
	})
	return r
}

// Register adds a profile. Registering the same bank twice is a
// programming error and panics.
func (r *Registry) Register(p BankProfile) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.profiles[p.Bank()]; exists {
		panic(fmt.Sprintf("parsers: profile for bank %q already registered", p.Bank()))
	}
	r.profiles[p.Bank()] = p
}

// Get returns the profile registered for bank.
func (r *Registry) Get(bank models.BankType) (BankProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[bank]
	if !ok {
		return nil, errors.UserInputError(errors.CodeUnknownBank, string(bank), nil).
			WithContext("registered", r.banksLocked())
	}
	return p, nil
}

// Banks returns the registered bank identifiers in sorted order.
func (r *Registry) Banks() []models.BankType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.banksLocked()
}

func (r *Registry) banksLocked() []models.BankType {
	banks := make([]models.BankType, 0, len(r.profiles))
	for b := range r.profiles {
		banks = append(banks, b)
	}
	sort.Slice(banks, func(i, j int) bool { return banks[i] < banks[j] })
	return banks
}
