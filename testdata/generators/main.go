// Command generators writes sample bank statements, and optionally a
// payment fixture that matches part of them, for manual runs of
// bankimport.
//
//	go run ./testdata/generators -bank bcp -out movimientos.txt -payments payments.yaml
//	go run ./testdata/generators -bank continental -out continental.xlsx -n 50
package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

var descriptions = []string{
	"PAGO PROVEEDOR SAC",
	"ABONO CLIENTE",
	"TRANSFERENCIA INTERBANCARIA",
	"DEPOSITO EN EFECTIVO",
	"PAGO DE SERVICIOS",
	"COMISION MANTENIMIENTO",
	"PAGO PLANILLA",
	"COBRO FACTURA",
}

var partners = []string{
	"Comercial Andina SAC",
	"Inversiones Lima EIRL",
	"Distribuidora del Sur SA",
	"Servicios Generales Cusco",
	"Agroexport Piura SAC",
}

// StatementGenerator produces random statement movements for one bank.
type StatementGenerator struct {
	Bank       string
	Count      int
	StartDate  time.Time
	EndDate    time.Time
	MinAmount  decimal.Decimal
	MaxAmount  decimal.Decimal
	DebitRatio float64
	MatchRatio float64 // share of movements that get a matching payment
	Seed       int64

	rng *rand.Rand
}

// Movement is one generated statement line.
type Movement struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
	Balance     decimal.Decimal
	Operation   string
}

// PaymentRecord mirrors the payment fixture format read by bankimport.
type PaymentRecord struct {
	ID               string `yaml:"id" csv:"id"`
	State            string `yaml:"state" csv:"state"`
	Date             string `yaml:"date" csv:"date"`
	Amount           string `yaml:"amount" csv:"amount"`
	Currency         string `yaml:"currency" csv:"currency"`
	Name             string `yaml:"name" csv:"name"`
	Memo             string `yaml:"memo" csv:"memo"`
	PaymentReference string `yaml:"payment_reference" csv:"payment_reference"`
	PartnerName      string `yaml:"partner_name" csv:"partner_name"`
}

func main() {
	var (
		bank       = flag.String("bank", "bcp", "Bank layout: bcp, nacion, continental or other")
		output     = flag.String("out", "", "Output statement path (default depends on the bank)")
		payments   = flag.String("payments", "", "Optional payment fixture path (.yaml or .csv)")
		count      = flag.Int("n", 100, "Number of movements to generate")
		startDate  = flag.String("start-date", "2024-01-01", "Start date (YYYY-MM-DD)")
		endDate    = flag.String("end-date", "2024-03-31", "End date (YYYY-MM-DD)")
		minAmount  = flag.Float64("min-amount", 10.00, "Minimum movement amount")
		maxAmount  = flag.Float64("max-amount", 25000.00, "Maximum movement amount")
		debitRatio = flag.Float64("debit-ratio", 0.5, "Share of movements that are debits (0.0-1.0)")
		matchRatio = flag.Float64("match-ratio", 0.7, "Share of movements with a matching payment (0.0-1.0)")
		seed       = flag.Int64("seed", time.Now().UnixNano(), "Random seed for reproducible generation")
	)
	flag.Parse()

	start, err := time.Parse("2006-01-02", *startDate)
	if err != nil {
		log.Fatalf("Invalid start date: %v", err)
	}
	end, err := time.Parse("2006-01-02", *endDate)
	if err != nil {
		log.Fatalf("Invalid end date: %v", err)
	}

	generator := &StatementGenerator{
		Bank:       strings.ToLower(*bank),
		Count:      *count,
		StartDate:  start,
		EndDate:    end,
		MinAmount:  decimal.NewFromFloat(*minAmount),
		MaxAmount:  decimal.NewFromFloat(*maxAmount),
		DebitRatio: *debitRatio,
		MatchRatio: *matchRatio,
		Seed:       *seed,
	}
	if err := generator.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	path := *output
	if path == "" {
		path = generator.DefaultOutput()
	}

	movements := generator.Generate()
	if err := generator.WriteStatement(path, movements); err != nil {
		log.Fatalf("Failed to write statement: %v", err)
	}
	fmt.Printf("Generated %d %s movements in %s\n", len(movements), generator.Bank, path)

	if *payments != "" {
		records := generator.Payments(movements)
		if err := writePayments(*payments, records); err != nil {
			log.Fatalf("Failed to write payments: %v", err)
		}
		fmt.Printf("Generated %d payments in %s\n", len(records), *payments)
	}
}

// Validate checks the generator settings.
func (g *StatementGenerator) Validate() error {
	switch g.Bank {
	case "bcp", "nacion", "continental", "other":
	default:
		return fmt.Errorf("unknown bank %q", g.Bank)
	}
	if g.Count <= 0 {
		return fmt.Errorf("count must be positive")
	}
	if g.EndDate.Before(g.StartDate) {
		return fmt.Errorf("end date must not be before start date")
	}
	if g.MinAmount.LessThanOrEqual(decimal.Zero) || g.MaxAmount.LessThan(g.MinAmount) {
		return fmt.Errorf("amount range must be positive and ordered")
	}
	if g.DebitRatio < 0 || g.DebitRatio > 1 || g.MatchRatio < 0 || g.MatchRatio > 1 {
		return fmt.Errorf("ratios must be between 0 and 1")
	}
	return nil
}

// DefaultOutput returns the statement path used when -out is not given.
func (g *StatementGenerator) DefaultOutput() string {
	if g.Bank == "bcp" {
		return "generated_bcp.txt"
	}
	return fmt.Sprintf("generated_%s.xlsx", g.Bank)
}

// Generate returns Count movements in date order with a running balance.
func (g *StatementGenerator) Generate() []Movement {
	g.rng = rand.New(rand.NewSource(g.Seed))

	days := int(g.EndDate.Sub(g.StartDate).Hours()/24) + 1
	dates := make([]time.Time, g.Count)
	for i := range dates {
		dates[i] = g.StartDate.AddDate(0, 0, g.rng.Intn(days))
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	balance := decimal.NewFromInt(int64(50000 + g.rng.Intn(50000)))
	movements := make([]Movement, 0, g.Count)
	for i, date := range dates {
		amount := g.randomAmount()
		if g.rng.Float64() < g.DebitRatio {
			amount = amount.Neg()
		}
		balance = balance.Add(amount)

		movements = append(movements, Movement{
			Date:        date,
			Description: descriptions[g.rng.Intn(len(descriptions))],
			Amount:      amount,
			Balance:     balance,
			Operation:   g.operation(i),
		})
	}
	return movements
}

func (g *StatementGenerator) randomAmount() decimal.Decimal {
	spread := g.MaxAmount.Sub(g.MinAmount)
	factor := decimal.NewFromFloat(g.rng.Float64())
	return g.MinAmount.Add(spread.Mul(factor)).Round(2)
}

// operation returns a bank-shaped operation number: BCP pads to twelve
// digits, the others use shorter plain numbers.
func (g *StatementGenerator) operation(i int) string {
	n := 100000 + g.rng.Intn(900000)
	switch g.Bank {
	case "bcp":
		return fmt.Sprintf("%012d", n*10+i%10)
	case "continental":
		return fmt.Sprintf("%07d", n)
	default:
		return fmt.Sprintf("%d", n)
	}
}

// matchKey is the operation number as the importer stores it.
func (g *StatementGenerator) matchKey(op string) string {
	if g.Bank == "bcp" && len(op) > 6 {
		return op[len(op)-6:]
	}
	return op
}

// Payments returns payments for a MatchRatio share of movements. Every
// fifth selected movement gets its payment without an operation reference,
// so only the amount lines up.
func (g *StatementGenerator) Payments(movements []Movement) []*PaymentRecord {
	records := make([]*PaymentRecord, 0, len(movements))
	for i, m := range movements {
		if g.rng.Float64() >= g.MatchRatio {
			continue
		}
		partner := partners[g.rng.Intn(len(partners))]
		record := &PaymentRecord{
			ID:          fmt.Sprintf("PAY-%05d", i+1),
			State:       "posted",
			Date:        m.Date.Format("2006-01-02"),
			Amount:      m.Amount.Abs().StringFixed(2),
			Currency:    "PEN",
			Name:        fmt.Sprintf("PAGO/%04d", i+1),
			PartnerName: partner,
		}
		if len(records)%5 != 4 {
			key := g.matchKey(m.Operation)
			record.PaymentReference = key
			record.Memo = "Op. " + key
		}
		records = append(records, record)
	}
	return records
}

// WriteStatement writes movements in the bank's statement layout.
func (g *StatementGenerator) WriteStatement(path string, movements []Movement) error {
	switch g.Bank {
	case "bcp":
		return os.WriteFile(path, []byte(g.bcpText(movements)), 0o644)
	case "continental":
		return writeWorkbook(path, "Sheet6", continentalRows(movements))
	default:
		return writeWorkbook(path, "Movimientos", genericRows(g.Bank, movements))
	}
}

var printer = message.NewPrinter(language.English)

// formatAmount renders -1250.5 as "-1,250.50".
func formatAmount(d decimal.Decimal) string {
	return printer.Sprintf("%.2f", d.InexactFloat64())
}

func (g *StatementGenerator) bcpText(movements []Movement) string {
	var b strings.Builder
	b.WriteString("\ufeffMovimientos de la cuenta 191-1234567-0-12\r\n\r\n")
	b.WriteString(`"Fecha";"Fecha valuta";"Descripción operación";"Monto";"Saldo";"Operación - Número"` + "\r\n")
	for _, m := range movements {
		date := m.Date.Format("02/01/2006")
		fmt.Fprintf(&b, "%q;%q;%q;%q;%q;%q\r\n",
			date, date, m.Description, formatAmount(m.Amount), formatAmount(m.Balance), m.Operation)
	}
	fmt.Fprintf(&b, "Total de movimientos: %d\r\n", len(movements))
	return b.String()
}

func genericRows(bank string, movements []Movement) [][]interface{} {
	title := "Banco de la Nación - Estado de cuenta"
	if bank == "other" {
		title = "Estado de cuenta"
	}
	rows := [][]interface{}{
		{title},
		{"Cuenta 04-123-456789"},
		{"Fecha", "Descripción", "Cargo", "Abono", "Saldo", "Nro. Operación"},
	}
	for _, m := range movements {
		var charge, credit interface{}
		if m.Amount.IsNegative() {
			charge = m.Amount.Abs().InexactFloat64()
		} else {
			credit = m.Amount.InexactFloat64()
		}
		rows = append(rows, []interface{}{
			m.Date.Format("02/01/2006"), m.Description, charge, credit,
			m.Balance.InexactFloat64(), m.Operation,
		})
	}
	return rows
}

func continentalRows(movements []Movement) [][]interface{} {
	rows := [][]interface{}{
		{"BBVA Continental - Movimientos"},
		{nil},
		{"FECHA OPER.", "FECHA VALOR", "DESCRIPCIÓN", "N° OPER.", "CARGO/ABONO", "SALDO"},
	}
	for _, m := range movements {
		date := m.Date.Format("02-01")
		rows = append(rows, []interface{}{
			date, date, m.Description, m.Operation, formatAmount(m.Amount), formatAmount(m.Balance),
		})
	}
	return rows
}

func writeWorkbook(path, sheet string, rows [][]interface{}) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return err
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return f.SaveAs(path)
}

func writePayments(path string, records []*PaymentRecord) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err := yaml.Marshal(map[string][]*PaymentRecord{"payments": records})
		if err != nil {
			return err
		}
		return os.WriteFile(path, data, 0o644)
	case ".csv":
		file, err := os.Create(path)
		if err != nil {
			return err
		}
		defer file.Close()
		return gocsv.MarshalFile(&records, file)
	default:
		return fmt.Errorf("unsupported payments format %q (use .yaml or .csv)", filepath.Ext(path))
	}
}
