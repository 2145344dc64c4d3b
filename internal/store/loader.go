package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// fixtureDateLayouts are accepted for payment dates in fixture files.
var fixtureDateLayouts = []string{
	models.DateLayout,
	"02/01/2006",
	time.RFC3339,
}

// fixtureAmount decodes money from YAML, CSV and JSON, quoted or not.
type fixtureAmount struct {
	decimal.Decimal
}

func (a *fixtureAmount) set(s string) error {
	if strings.TrimSpace(s) == "" {
		a.Decimal = decimal.Zero
		return nil
	}
	d, err := models.ParseDecimalFromString(s)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

func (a *fixtureAmount) UnmarshalYAML(node *yaml.Node) error { return a.set(node.Value) }
func (a *fixtureAmount) UnmarshalCSV(s string) error         { return a.set(s) }

func (a *fixtureAmount) UnmarshalJSON(b []byte) error {
	return a.set(strings.Trim(string(b), `"`))
}

// fixtureDate decodes a calendar date.
type fixtureDate struct {
	time.Time
}

func (d *fixtureDate) set(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	for _, layout := range fixtureDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = models.CalendarDate(t)
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

func (d *fixtureDate) UnmarshalYAML(node *yaml.Node) error { return d.set(node.Value) }
func (d *fixtureDate) UnmarshalCSV(s string) error         { return d.set(s) }

func (d *fixtureDate) UnmarshalJSON(b []byte) error {
	return d.set(strings.Trim(string(b), `"`))
}

// paymentRecord is the on-disk shape of a payment.
type paymentRecord struct {
	ID               string        `yaml:"id" csv:"id" json:"id"`
	State            string        `yaml:"state" csv:"state" json:"state"`
	Date             fixtureDate   `yaml:"date" csv:"date" json:"date"`
	Amount           fixtureAmount `yaml:"amount" csv:"amount" json:"amount"`
	Currency         string        `yaml:"currency" csv:"currency" json:"currency"`
	Name             string        `yaml:"name" csv:"name" json:"name"`
	Memo             string        `yaml:"memo" csv:"memo" json:"memo"`
	Narration        string        `yaml:"narration" csv:"narration" json:"narration"`
	Communication    string        `yaml:"communication" csv:"communication" json:"communication"`
	PaymentReference string        `yaml:"payment_reference" csv:"payment_reference" json:"payment_reference"`
	PartnerName      string        `yaml:"partner_name" csv:"partner_name" json:"partner_name"`
}

type paymentFile struct {
	Payments []*paymentRecord `yaml:"payments" json:"payments"`
}

func (r *paymentRecord) toPayment() *models.Payment {
	currency := strings.TrimSpace(r.Currency)
	if currency == "" {
		currency = "PEN"
	}
	state := models.PaymentState(strings.ToLower(strings.TrimSpace(r.State)))
	if state == "" {
		state = models.PaymentPosted
	}
	return &models.Payment{
		ID:               strings.TrimSpace(r.ID),
		State:            state,
		Date:             r.Date.Time,
		Amount:           r.Amount.Decimal,
		Currency:         currency,
		Name:             strings.TrimSpace(r.Name),
		Memo:             strings.TrimSpace(r.Memo),
		Narration:        strings.TrimSpace(r.Narration),
		Communication:    strings.TrimSpace(r.Communication),
		PaymentReference: strings.TrimSpace(r.PaymentReference),
		PartnerName:      strings.TrimSpace(r.PartnerName),
	}
}

// LoadPayments reads a payment fixture. The format follows the extension:
// .yaml/.yml, .csv or .json. YAML and JSON files hold either a list of
// payments or an object with a "payments" list.
func LoadPayments(path string) ([]*models.Payment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read payments file: %w", err)
	}
	return DecodePayments(filepath.Ext(path), data)
}

// DecodePayments decodes payment fixture data in the format named by ext.
func DecodePayments(ext string, data []byte) ([]*models.Payment, error) {
	var records []*paymentRecord

	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			var file paymentFile
			if errFile := yaml.Unmarshal(data, &file); errFile != nil {
				return nil, fmt.Errorf("failed to decode YAML payments: %w", err)
			}
			records = file.Payments
		}
	case ".json":
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			var file paymentFile
			if err := json.Unmarshal(trimmed, &file); err != nil {
				return nil, fmt.Errorf("failed to decode JSON payments: %w", err)
			}
			records = file.Payments
		} else if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, fmt.Errorf("failed to decode JSON payments: %w", err)
		}
	case ".csv":
		if err := gocsv.UnmarshalBytes(data, &records); err != nil {
			return nil, fmt.Errorf("failed to decode CSV payments: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported payments format %q (use .yaml, .csv or .json)", ext)
	}

	payments := make([]*models.Payment, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i, r := range records {
		if r == nil {
			continue
		}
		p := r.toPayment()
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("payment %d: %w", i+1, err)
		}
		if seen[p.ID] {
			return nil, fmt.Errorf("payment %d: duplicate id %q", i+1, p.ID)
		}
		seen[p.ID] = true
		payments = append(payments, p)
	}
	return payments, nil
}
