package parsers

import (
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/jsalvador-zsh/peruanita-bank-import/internal/models"
	"github.com/jsalvador-zsh/peruanita-bank-import/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type sheetFixture struct {
	name string
	rows [][]interface{}
}

// buildWorkbook writes an in-memory .xlsx with the given sheets. The first
// sheet stays active.
func buildWorkbook(t *testing.T, sheets ...sheetFixture) []byte {
	t.Helper()

	f := excelize.NewFile()
	defer f.Close()

	for i, sheet := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sheet.name); err != nil {
				t.Fatalf("Failed to rename sheet: %v", err)
			}
		} else if _, err := f.NewSheet(sheet.name); err != nil {
			t.Fatalf("Failed to add sheet %s: %v", sheet.name, err)
		}

		for r, row := range sheet.rows {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			if err != nil {
				t.Fatalf("Failed to compute cell name: %v", err)
			}
			values := row
			if err := f.SetSheetRow(sheet.name, cell, &values); err != nil {
				t.Fatalf("Failed to write row %d: %v", r+1, err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("Failed to serialise workbook: %v", err)
	}
	return buf.Bytes()
}

func testRegistry(now time.Time) *Registry {
	opts := DefaultProfileOptions()
	opts.Now = func() time.Time { return now }
	return NewDefaultRegistry(opts)
}

func mustProfile(t *testing.T, r *Registry, bank models.BankType) BankProfile {
	t.Helper()
	p, err := r.Get(bank)
	if err != nil {
		t.Fatalf("Failed to get profile %s: %v", bank, err)
	}
	return p
}

func mustParser(t *testing.T) *Parser {
	t.Helper()
	p, err := NewParser(DefaultSpreadsheetConfig())
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	return p
}

func TestDetectFileKind(t *testing.T) {
	tests := []struct {
		name     string
		expected models.FileKind
	}{
		{"movimientos.txt", models.FileKindText},
		{"MOVIMIENTOS.XLSX", models.FileKindSpreadsheet},
		{"extracto.xls", models.FileKindSpreadsheet},
		{"export.csv", models.FileKindText},
		{"noextension", models.FileKindText},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectFileKind(tt.name); got != tt.expected {
				t.Errorf("DetectFileKind(%q) = %s, want %s", tt.name, got, tt.expected)
			}
		})
	}
}

const bcpStatement = "\ufeffMovimientos de la cuenta 191-1234567-0-12\r\n" +
	"\r\n" +
	`"Fecha";"Fecha valuta";"Descripción operación";"Monto";"Saldo";"Operación - Número"` + "\r\n" +
	`"15/01/2024";"15/01/2024";"PAGO PROVEEDOR SAC";"-1,250.50";"3,749.50";"000123456789"` + "\r\n" +
	`"16/01/2024";"16/01/2024";"ABONO CLIENTE";"2,000.00";"5,749.50";"55"` + "\r\n" +
	`"17/01/2024";"17/01/2024";"COMISION";"abc";"5,749.50";""` + "\r\n" +
	"Total de movimientos: 3\r\n"

func TestTextParser_BCP(t *testing.T) {
	profile := mustProfile(t, testRegistry(time.Now()), models.BankBCP)

	raws, stats, err := NewTextParser().Parse("movimientos.txt", []byte(bcpStatement), profile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(raws) != 3 {
		t.Fatalf("Expected 3 transactions, got %d", len(raws))
	}
	if stats.Accepted != 3 || stats.Skipped != 3 {
		t.Errorf("Expected 3 accepted and 3 skipped, got %d and %d", stats.Accepted, stats.Skipped)
	}

	first := raws[0]
	if !first.Date.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected date 2024-01-15, got %s", first.Date)
	}
	if !first.Amount.Equal(decimal.RequireFromString("-1250.50")) {
		t.Errorf("Expected amount -1250.50, got %s", first.Amount)
	}
	if first.OperationNumber != "456789" {
		t.Errorf("Expected BCP operation number to keep its last 6 digits, got %q", first.OperationNumber)
	}
	if first.Description != "PAGO PROVEEDOR SAC" {
		t.Errorf("Unexpected description %q", first.Description)
	}
	if !strings.HasPrefix(first.Source, `"15/01/2024"`) {
		t.Errorf("Expected the source line to be kept, got %q", first.Source)
	}

	if raws[1].OperationNumber != "55" {
		t.Errorf("Expected short operation numbers to be unchanged, got %q", raws[1].OperationNumber)
	}
	if !raws[2].Amount.IsZero() {
		t.Errorf("Expected unparsable amount to become zero, got %s", raws[2].Amount)
	}
}

func TestTextParser_NacionKeepsOperation(t *testing.T) {
	profile := mustProfile(t, testRegistry(time.Now()), models.BankNacion)
	line := `"02/03/2024";"02/03/2024";"DEPOSITO";"500.00";"500.00";"000123456789"`

	raws, _, err := NewTextParser().Parse("nacion.txt", []byte(line), profile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if raws[0].OperationNumber != "000123456789" {
		t.Errorf("Expected operation number unchanged, got %q", raws[0].OperationNumber)
	}
}

func TestTextParser_Failures(t *testing.T) {
	profile := mustProfile(t, testRegistry(time.Now()), models.BankBCP)

	tests := []struct {
		name     string
		data     []byte
		category errors.ErrorCategory
		code     errors.ErrorCode
	}{
		{
			name:     "invalid utf-8",
			data:     []byte{'"', 0xff, 0xfe, 0xfd, '"'},
			category: errors.CategoryUserInput,
			code:     errors.CodeUndecodable,
		},
		{
			name:     "no transaction lines",
			data:     []byte("Movimientos\nFecha;Descripcion;Monto\n"),
			category: errors.CategoryFormat,
			code:     errors.CodeNoRecords,
		},
		{
			name:     "too few fields",
			data:     []byte(`"15/01/2024";"PAGO";"10.00"`),
			category: errors.CategoryFormat,
			code:     errors.CodeNoRecords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := NewTextParser().Parse("file.txt", tt.data, profile)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !errors.IsCategory(err, tt.category) {
				t.Errorf("Expected category %s, got %v", tt.category, err)
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestParser_EmptyData(t *testing.T) {
	profile := mustProfile(t, testRegistry(time.Now()), models.BankBCP)

	_, _, err := mustParser(t).Parse("movimientos.txt", nil, profile)
	if !errors.HasCode(err, errors.CodeNoFile) {
		t.Errorf("Expected no_file error, got %v", err)
	}
}

func TestSpreadsheetParser_Generic(t *testing.T) {
	data := buildWorkbook(t, sheetFixture{
		name: "Movimientos",
		rows: [][]interface{}{
			{"Estado de cuenta"},
			{"Cuenta 191-1234567"},
			{"Fecha", "Descripción", "Cargo", "Abono", "Nro. Operación"},
			{"15/01/2024", "PAGO PROVEEDOR", 150.0, nil, "123456"},
			{"16/01/2024", "ABONO CLIENTE", nil, 200.5, 654321.0},
			{"17/01/2024", "AJUSTE", "-30.00", "45.00", "111"},
			{nil, nil, nil, nil, nil},
			{nil, "NOTA SIN DATOS", nil, nil, nil},
			{"2024.01.18", "RETIRO", "S/ 1,000.00", nil, ""},
		},
	})

	profile := mustProfile(t, testRegistry(time.Now()), models.BankBCP)
	raws, stats, err := mustParser(t).Parse("movimientos.xlsx", data, profile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.Backend != BackendExcelize {
		t.Errorf("Expected excelize backend, got %q", stats.Backend)
	}
	if stats.HeaderRow != 3 {
		t.Errorf("Expected header on row 3, got %d", stats.HeaderRow)
	}
	if len(raws) != 4 {
		t.Fatalf("Expected 4 transactions, got %d", len(raws))
	}
	if stats.Skipped != 1 {
		t.Errorf("Expected 1 skipped row, got %d", stats.Skipped)
	}

	expected := []struct {
		amount string
		op     string
		date   time.Time
	}{
		{"-150", "123456", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"200.5", "654321", time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC)},
		{"-30", "111", time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC)},
		{"-1000", "", time.Date(2024, 1, 18, 0, 0, 0, 0, time.UTC)},
	}
	for i, want := range expected {
		got := raws[i]
		if !got.Amount.Equal(decimal.RequireFromString(want.amount)) {
			t.Errorf("Row %d: expected amount %s, got %s", i, want.amount, got.Amount)
		}
		if got.OperationNumber != want.op {
			t.Errorf("Row %d: expected operation %q, got %q", i, want.op, got.OperationNumber)
		}
		if !got.HasDate || !got.Date.Equal(want.date) {
			t.Errorf("Row %d: expected date %s, got %s", i, want.date, got.Date)
		}
		if !strings.HasPrefix(got.Source, "Excel row: ") {
			t.Errorf("Row %d: unexpected source %q", i, got.Source)
		}
	}
}

func TestSpreadsheetParser_LayoutFailures(t *testing.T) {
	profile := mustProfile(t, testRegistry(time.Now()), models.BankOther)

	tests := []struct {
		name string
		rows [][]interface{}
		code errors.ErrorCode
	}{
		{
			name: "header only",
			rows: [][]interface{}{{"Fecha", "Descripción", "Cargo", "Abono"}},
			code: errors.CodeNoRecords,
		},
		{
			name: "no fecha header",
			rows: [][]interface{}{{"Dia", "Detalle"}, {"15/01/2024", "X"}},
			code: errors.CodeHeaderNotFound,
		},
		{
			name: "header without data",
			rows: [][]interface{}{{"Fecha", "Descripción", "Cargo", "Abono"}, {nil, "SOLO TEXTO", nil, nil}},
			code: errors.CodeNoRecords,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := buildWorkbook(t, sheetFixture{name: "Hoja1", rows: tt.rows})
			_, _, err := mustParser(t).Parse("extracto.xlsx", data, profile)
			if !errors.IsCategory(err, errors.CategoryFormat) {
				t.Fatalf("Expected format error, got %v", err)
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Expected code %s, got %v", tt.code, err)
			}
		})
	}
}

func TestGenericLayout_MapColumns(t *testing.T) {
	layout := NewGenericLayout(10, nil)

	cols, err := layout.MapColumns(NewTextRow(0, "Fecha", "Descripción", "Cargo", "Abono", "Saldo", "Nro. Operación"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	expected := ColumnMap{
		RoleDate:        0,
		RoleDescription: 1,
		RoleDebit:       2,
		RoleCredit:      3,
		RoleOperation:   5,
	}
	for role, idx := range expected {
		if got, ok := cols[role]; !ok || got != idx {
			t.Errorf("Expected %s at column %d, got %d (mapped=%v)", role, idx, got, ok)
		}
	}

	// Later columns overwrite earlier ones for the same role.
	cols, err = layout.MapColumns(NewTextRow(0, "Fecha", "Fecha valor", "Concepto"))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if cols[RoleDate] != 1 {
		t.Errorf("Expected the right-most date column to win, got %d", cols[RoleDate])
	}

	if _, err := layout.MapColumns(NewTextRow(0, "Saldo", "Moneda")); err == nil {
		t.Error("Expected error for a header without known columns")
	}
}

func continentalWorkbook(t *testing.T) []byte {
	return buildWorkbook(t,
		sheetFixture{name: "Resumen", rows: [][]interface{}{{"Otra hoja"}}},
		sheetFixture{name: "Sheet6", rows: [][]interface{}{
			{"BBVA Continental - Movimientos"},
			{nil},
			{"FECHA OPER.", "FECHA VALOR", "DESCRIPCIÓN", "N° OPER.", "CARGO/ABONO", "SALDO"},
			{nil, nil, "SALDO ANTERIOR", nil, "1,000.00", "1,000.00"},
			{"15-12", "15-12", "PAGO PROVEEDOR", "0012345", "-1,500.00", "-500.00"},
			{"03-01", "03-01", "ABONO CLIENTE", "998877", "2,000.50", "1,500.50"},
			{"04-01", "04-01", nil, "998878", "10.00", "1,510.50"},
		}},
	)
}

func TestSpreadsheetParser_Continental(t *testing.T) {
	now := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	profile := mustProfile(t, testRegistry(now), models.BankContinental)

	raws, stats, err := mustParser(t).Parse("continental.xlsx", continentalWorkbook(t), profile)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if stats.Sheet != "Sheet6" {
		t.Errorf("Expected the preferred sheet to be read, got %q", stats.Sheet)
	}
	if len(raws) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(raws))
	}
	if stats.Skipped != 2 {
		t.Errorf("Expected opening balance and blank description to be skipped, got %d", stats.Skipped)
	}

	dec := raws[0]
	if !dec.Date.Equal(time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected December date in January to roll back a year, got %s", dec.Date)
	}
	if !dec.Amount.Equal(decimal.RequireFromString("-1500")) {
		t.Errorf("Expected amount -1500, got %s", dec.Amount)
	}
	if dec.OperationNumber != "0012345" {
		t.Errorf("Expected operation 0012345, got %q", dec.OperationNumber)
	}
	if !strings.HasPrefix(dec.Source, "Continental: ") {
		t.Errorf("Unexpected source %q", dec.Source)
	}

	if !raws[1].Date.Equal(time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected 2025-01-03, got %s", raws[1].Date)
	}
}

func TestContinentalLayout_HeaderNotFound(t *testing.T) {
	layout := NewContinentalLayout(5, nil)
	rows := []RawRow{
		NewTextRow(0, "titulo"),
		NewTextRow(1, "FECHA", "IMPORTE"),
	}
	_, err := layout.DetectHeader(rows)

	var le *LayoutError
	if !stderrors.As(err, &le) {
		t.Fatalf("Expected LayoutError, got %v", err)
	}
	if le.Code != errors.CodeHeaderNotFound {
		t.Errorf("Expected header_not_found, got %s", le.Code)
	}
	if !strings.Contains(le.Detail, "first 5 rows") {
		t.Errorf("Unexpected detail %q", le.Detail)
	}
}

func TestParseContinentalDate(t *testing.T) {
	january := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	march := time.Date(2025, 3, 5, 0, 0, 0, 0, time.UTC)
	native := time.Date(2024, 7, 9, 13, 45, 0, 0, time.UTC)

	tests := []struct {
		name   string
		cell   Cell
		now    time.Time
		want   time.Time
		wantOK bool
	}{
		{"december in january", Cell{Text: "15-12"}, january, time.Date(2024, 12, 15, 0, 0, 0, 0, time.UTC), true},
		{"november in january", Cell{Text: "30-11"}, january, time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC), true},
		{"december in march", Cell{Text: "15-12"}, march, time.Date(2025, 12, 15, 0, 0, 0, 0, time.UTC), true},
		{"same month", Cell{Text: "05-01"}, january, time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC), true},
		{"impossible day", Cell{Text: "31-04"}, march, time.Time{}, false},
		{"month out of range", Cell{Text: "10-13"}, march, time.Time{}, false},
		{"full date", Cell{Text: "15/03/2024"}, march, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"iso date", Cell{Text: "2024-03-15"}, march, time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"serial", Cell{Text: "45306"}, march, time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), true},
		{"native", Cell{Time: native}, march, time.Date(2024, 7, 9, 0, 0, 0, 0, time.UTC), true},
		{"garbage", Cell{Text: "ayer"}, march, time.Time{}, false},
		{"empty", Cell{}, march, time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseContinentalDate(tt.cell, tt.now)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v (%s)", tt.wantOK, ok, got)
			}
			if ok && !got.Equal(tt.want) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

// stubBackend serves a fixed workbook or a fixed error and counts opens.
type stubBackend struct {
	name  string
	wb    Workbook
	err   error
	opens int
}

func (b *stubBackend) Name() string { return b.name }

func (b *stubBackend) Open(data []byte) (Workbook, error) {
	b.opens++
	if b.err != nil {
		return nil, b.err
	}
	return b.wb, nil
}

func stubWorkbook(rows ...RawRow) Workbook {
	return &memoryWorkbook{
		names: []string{"Hoja1"},
		grids: map[string][]RawRow{"Hoja1": rows},
	}
}

func TestSpreadsheetParser_BackendFallback(t *testing.T) {
	profile := mustProfile(t, testRegistry(time.Now()), models.BankNacion)
	good := stubWorkbook(
		NewTextRow(0, "Fecha", "Descripción", "Cargo", "Abono"),
		NewTextRow(1, "10/02/2024", "DEPOSITO", "", "80.00"),
	)

	t.Run("next backend after open failure", func(t *testing.T) {
		broken := &stubBackend{name: "broken", err: notOpenable("broken", stderrors.New("bad magic"))}
		working := &stubBackend{name: "working", wb: good}

		raws, stats, err := NewSpreadsheetParserWithBackends(broken, working).Parse("x.xls", []byte("x"), profile)
		if err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		if stats.Backend != "working" {
			t.Errorf("Expected second backend to win, got %q", stats.Backend)
		}
		if len(raws) != 1 || !raws[0].Amount.Equal(decimal.NewFromInt(80)) {
			t.Errorf("Unexpected result %+v", raws)
		}
	})

	t.Run("all backends fail", func(t *testing.T) {
		first := &stubBackend{name: "first", err: stderrors.New("first failed")}
		second := &stubBackend{name: "second", err: stderrors.New("second failed")}

		_, _, err := NewSpreadsheetParserWithBackends(first, second).Parse("x.xls", []byte("x"), profile)
		if !errors.HasCode(err, errors.CodeWorkbookUnreadable) {
			t.Fatalf("Expected workbook_unreadable, got %v", err)
		}
		if !strings.Contains(err.Error(), "first failed") || !strings.Contains(err.Error(), "second failed") {
			t.Errorf("Expected both failures in the message, got %q", err.Error())
		}
	})

	t.Run("layout errors are final", func(t *testing.T) {
		noHeader := &stubBackend{name: "noheader", wb: stubWorkbook(
			NewTextRow(0, "titulo"),
			NewTextRow(1, "otra cosa"),
		)}
		unused := &stubBackend{name: "unused", wb: good}

		_, _, err := NewSpreadsheetParserWithBackends(noHeader, unused).Parse("x.xls", []byte("x"), profile)
		if !errors.HasCode(err, errors.CodeHeaderNotFound) {
			t.Fatalf("Expected header_not_found, got %v", err)
		}
		if unused.opens != 0 {
			t.Errorf("Expected the chain to stop after a layout error, second backend opened %d times", unused.opens)
		}
	})

	t.Run("no backends", func(t *testing.T) {
		_, _, err := NewSpreadsheetParserWithBackends().Parse("x.xls", []byte("x"), profile)
		if !errors.IsCategory(err, errors.CategoryUserInput) || !errors.HasCode(err, errors.CodeBackendUnavailable) {
			t.Errorf("Expected backend_unavailable user input error, got %v", err)
		}
	})
}

func TestSpreadsheetParser_Inspect(t *testing.T) {
	parser, err := NewSpreadsheetParser(DefaultSpreadsheetConfig())
	if err != nil {
		t.Fatalf("Failed to create parser: %v", err)
	}
	profile := mustProfile(t, testRegistry(time.Now()), models.BankContinental)

	reports := parser.Inspect(continentalWorkbook(t), profile)
	if len(reports) != 3 {
		t.Fatalf("Expected one report per backend, got %d", len(reports))
	}

	modern := reports[0]
	if !modern.Opened || modern.Sheet != "Sheet6" {
		t.Errorf("Expected excelize to open Sheet6, got %+v", modern)
	}
	if len(modern.Preview) != 5 {
		t.Errorf("Expected 5 preview rows, got %d", len(modern.Preview))
	}
	for _, legacy := range reports[1:] {
		if legacy.Opened {
			t.Errorf("Expected %s to reject an .xlsx file", legacy.Backend)
		}
	}
}

func TestSpreadsheetConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  *SpreadsheetConfig
		wantErr bool
	}{
		{"default", DefaultSpreadsheetConfig(), false},
		{"empty", &SpreadsheetConfig{}, false},
		{"unknown backend", &SpreadsheetConfig{Backends: []string{"libreoffice"}}, true},
		{"duplicate", &SpreadsheetConfig{Backends: []string{"xls", "XLS"}}, true},
		{"negative preview", &SpreadsheetConfig{PreviewRows: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	r := testRegistry(time.Now())

	banks := r.Banks()
	want := []models.BankType{models.BankBCP, models.BankContinental, models.BankNacion, models.BankOther}
	if len(banks) != len(want) {
		t.Fatalf("Expected %d banks, got %v", len(want), banks)
	}
	for i := range want {
		if banks[i] != want[i] {
			t.Errorf("Bank %d: expected %s, got %s", i, want[i], banks[i])
		}
	}

	if _, err := r.Get("interbank"); !errors.HasCode(err, errors.CodeUnknownBank) {
		t.Errorf("Expected unknown_bank error, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("Expected duplicate registration to panic")
		}
	}()
	r.Register(&Profile{ID: models.BankBCP})
}

func TestNormalizer(t *testing.T) {
	today := time.Date(2025, 2, 3, 16, 30, 0, 0, time.UTC)
	n := NewNormalizer(func() time.Time { return today })

	raws := []*RawTransaction{
		{Row: 4, Date: time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC), HasDate: true, Description: " PAGO ", Amount: decimal.NewFromInt(-10), OperationNumber: " 123 "},
		{Row: 5, Description: "SIN FECHA", Amount: decimal.NewFromInt(5)},
	}

	txs, err := n.Normalize("imp-1", raws)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(txs) != 2 {
		t.Fatalf("Expected 2 transactions, got %d", len(txs))
	}

	for i, tx := range txs {
		if tx.ImportID != "imp-1" {
			t.Errorf("Transaction %d: expected import id imp-1, got %q", i, tx.ImportID)
		}
		if tx.Sequence != i+1 {
			t.Errorf("Transaction %d: expected sequence %d, got %d", i, i+1, tx.Sequence)
		}
		if tx.ID == "" {
			t.Errorf("Transaction %d: expected an id", i)
		}
	}

	if txs[0].Description != "PAGO" || txs[0].OperationNumber != "123" {
		t.Errorf("Expected trimmed fields, got %q and %q", txs[0].Description, txs[0].OperationNumber)
	}
	if !txs[0].DateResolved {
		t.Error("Expected first date to be resolved")
	}
	if txs[1].DateResolved || !txs[1].Date.Equal(time.Date(2025, 2, 3, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Expected missing date to fall back to today, got %s (resolved=%v)", txs[1].Date, txs[1].DateResolved)
	}

	if _, err := n.Normalize("", raws); err == nil {
		t.Error("Expected error for a missing import id")
	}
}
