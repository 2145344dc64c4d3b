package matcher

import (
	"fmt"
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"

	"github.com/shopspring/decimal"
)

// knownStates are the payment states a configuration may name.
var knownStates = map[models.PaymentState]bool{
	models.PaymentDraft:     true,
	models.PaymentPosted:    true,
	models.PaymentSent:      true,
	models.PaymentInProcess: true,
	models.PaymentCancelled: true,
}

func validateStates(states []models.PaymentState) error {
	if len(states) == 0 {
		return fmt.Errorf("at least one payment state is required")
	}
	for _, s := range states {
		if !knownStates[s] {
			return fmt.Errorf("unknown payment state %q", s)
		}
	}
	return nil
}

// ParseStates converts state names such as "posted" or "In_Process" to
// payment states.
func ParseStates(names []string) ([]models.PaymentState, error) {
	states := make([]models.PaymentState, 0, len(names))
	for _, name := range names {
		s := models.PaymentState(strings.ToLower(strings.TrimSpace(name)))
		if !knownStates[s] {
			return nil, fmt.Errorf("unknown payment state %q", name)
		}
		states = append(states, s)
	}
	return states, nil
}

// Config holds configuration for the default matching engine
type Config struct {
	// AmountTolerance is the absolute window used when no payment has the
	// exact amount of a transaction.
	AmountTolerance float64 `json:"amount_tolerance" mapstructure:"amount_tolerance"`

	// ActiveStates are the payment states eligible for matching.
	ActiveStates []models.PaymentState `json:"active_states" mapstructure:"active_states"`
}

// DefaultConfig returns the configuration of the default engine: a one
// cent window over posted, sent and in-process payments.
func DefaultConfig() *Config {
	return &Config{
		AmountTolerance: 0.01,
		ActiveStates: []models.PaymentState{
			models.PaymentPosted,
			models.PaymentSent,
			models.PaymentInProcess,
		},
	}
}

// Validate checks if the matching configuration is valid
func (c *Config) Validate() error {
	if c.AmountTolerance < 0 {
		return fmt.Errorf("amount tolerance cannot be negative: %f", c.AmountTolerance)
	}
	if err := validateStates(c.ActiveStates); err != nil {
		return fmt.Errorf("invalid active states: %w", err)
	}
	return nil
}

// Tolerance returns the amount window as a decimal.
func (c *Config) Tolerance() decimal.Decimal {
	return decimal.NewFromFloat(c.AmountTolerance)
}

// ScoringConfig holds the parameters of an advanced matching run
type ScoringConfig struct {
	// DateFrom and DateTo bound the payment date, inclusive. Nil means
	// unbounded.
	DateFrom *time.Time `json:"date_from,omitempty" mapstructure:"date_from"`
	DateTo   *time.Time `json:"date_to,omitempty" mapstructure:"date_to"`

	// TolerancePercent is the allowed amount difference as a percentage
	// of the transaction amount. Zero requires equal amounts.
	TolerancePercent float64 `json:"tolerance_percent" mapstructure:"tolerance_percent"`

	SearchReference     bool `json:"search_reference" mapstructure:"search_reference"`
	SearchCommunication bool `json:"search_communication" mapstructure:"search_communication"`
	SearchNarration     bool `json:"search_narration" mapstructure:"search_narration"`

	States []models.PaymentState `json:"states" mapstructure:"states"`
}

// DefaultScoringConfig returns the advanced matching defaults.
func DefaultScoringConfig() *ScoringConfig {
	return &ScoringConfig{
		TolerancePercent:    0,
		SearchReference:     true,
		SearchCommunication: true,
		SearchNarration:     false,
		States: []models.PaymentState{
			models.PaymentPosted,
			models.PaymentSent,
		},
	}
}

// Validate checks if the scoring configuration is valid
func (c *ScoringConfig) Validate() error {
	if c.TolerancePercent < 0 || c.TolerancePercent > 100 {
		return fmt.Errorf("tolerance percent must be between 0 and 100: %f", c.TolerancePercent)
	}
	if c.DateFrom != nil && c.DateTo != nil && c.DateTo.Before(*c.DateFrom) {
		return fmt.Errorf("date_to %s is before date_from %s",
			c.DateTo.Format(models.DateLayout), c.DateFrom.Format(models.DateLayout))
	}
	if err := validateStates(c.States); err != nil {
		return fmt.Errorf("invalid states: %w", err)
	}
	return nil
}

// SearchFields returns the payment fields searched for the operation
// number. Narration searches both memo and narration.
func (c *ScoringConfig) SearchFields() []PaymentField {
	var fields []PaymentField
	if c.SearchReference {
		fields = append(fields, FieldReference)
	}
	if c.SearchCommunication {
		fields = append(fields, FieldCommunication)
	}
	if c.SearchNarration {
		fields = append(fields, FieldMemo, FieldNarration)
	}
	return fields
}

// AmountWithinTolerance reports whether payment amount p is acceptable for
// a transaction of absolute amount amt.
func (c *ScoringConfig) AmountWithinTolerance(p, amt decimal.Decimal) bool {
	if c.TolerancePercent == 0 {
		return p.Equal(amt)
	}
	limit := amt.Abs().Mul(decimal.NewFromFloat(c.TolerancePercent)).Div(decimal.NewFromInt(100))
	return p.Sub(amt).Abs().LessThanOrEqual(limit)
}

// String returns a human-readable description of the configuration
func (c *ScoringConfig) String() string {
	return fmt.Sprintf("ScoringConfig{Tolerance: %.2f%%, Reference: %t, Communication: %t, Narration: %t, States: %v}",
		c.TolerancePercent, c.SearchReference, c.SearchCommunication, c.SearchNarration, c.States)
}
