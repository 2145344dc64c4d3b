package parsers

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/extrame/xls"
	xlsreader "github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
)

// ErrNotOpenable marks a backend failure to open or read a workbook. The
// spreadsheet parser moves on to the next backend when it sees one.
var ErrNotOpenable = stderrors.New("workbook not openable")

// Backend opens workbooks from raw bytes.
type Backend interface {
	Name() string
	Open(data []byte) (Workbook, error)
}

// Workbook is an opened workbook.
type Workbook interface {
	SheetNames() []string
	// ActiveSheet returns the sheet selected when the file was saved, or ""
	// when the format does not record one.
	ActiveSheet() string
	Rows(sheet string) ([]RawRow, error)
	Close() error
}

var backendFactories = map[string]func() Backend{
	BackendExcelize:  func() Backend { return excelizeBackend{} },
	BackendXLS:       func() Backend { return xlsBackend{} },
	BackendXLSReader: func() Backend { return xlsReaderBackend{} },
}

// AvailableBackends returns the names of the built-in backends.
func AvailableBackends() []string {
	names := make([]string, 0, len(backendFactories))
	for name := range backendFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BackendsByName resolves backend names, keeping their order.
func BackendsByName(names []string) ([]Backend, error) {
	backends := make([]Backend, 0, len(names))
	for _, name := range names {
		factory, ok := backendFactories[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown spreadsheet backend %q", name)
		}
		backends = append(backends, factory())
	}
	return backends, nil
}

func notOpenable(backend string, err error) error {
	return fmt.Errorf("%s: %w: %v", backend, ErrNotOpenable, err)
}

// guard runs fn and converts a panic inside a reader library into an
// ErrNotOpenable error.
func guard(backend string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = notOpenable(backend, fmt.Errorf("panic: %v", r))
		}
	}()
	return fn()
}

// excelize reads .xlsx workbooks.

type excelizeBackend struct{}

func (excelizeBackend) Name() string { return BackendExcelize }

func (b excelizeBackend) Open(data []byte) (Workbook, error) {
	var f *excelize.File
	err := guard(b.Name(), func() error {
		var err error
		f, err = excelize.OpenReader(bytes.NewReader(data))
		return err
	})
	if err != nil {
		if stderrors.Is(err, ErrNotOpenable) {
			return nil, err
		}
		return nil, notOpenable(b.Name(), err)
	}
	return &excelizeWorkbook{file: f}, nil
}

type excelizeWorkbook struct {
	file *excelize.File
}

func (w *excelizeWorkbook) SheetNames() []string {
	return w.file.GetSheetList()
}

func (w *excelizeWorkbook) ActiveSheet() string {
	return w.file.GetSheetName(w.file.GetActiveSheetIndex())
}

func (w *excelizeWorkbook) Rows(sheet string) ([]RawRow, error) {
	var grid [][]string
	err := guard(BackendExcelize, func() error {
		var err error
		grid, err = w.file.GetRows(sheet, excelize.Options{RawCellValue: true})
		return err
	})
	if err != nil {
		if stderrors.Is(err, ErrNotOpenable) {
			return nil, err
		}
		return nil, notOpenable(BackendExcelize, err)
	}

	rows := make([]RawRow, len(grid))
	for i, values := range grid {
		rows[i] = NewTextRow(i, values...)
	}
	return rows, nil
}

func (w *excelizeWorkbook) Close() error {
	return w.file.Close()
}

// xls reads legacy BIFF workbooks with github.com/extrame/xls. Date cells
// come back as RFC 3339 text and are turned into native times.

type xlsBackend struct{}

func (xlsBackend) Name() string { return BackendXLS }

func (b xlsBackend) Open(data []byte) (Workbook, error) {
	var wb *xls.WorkBook
	err := guard(b.Name(), func() error {
		var err error
		wb, err = xls.OpenReader(bytes.NewReader(data), "utf-8")
		return err
	})
	if err != nil {
		if stderrors.Is(err, ErrNotOpenable) {
			return nil, err
		}
		return nil, notOpenable(b.Name(), err)
	}
	if wb == nil || wb.NumSheets() == 0 {
		return nil, notOpenable(b.Name(), stderrors.New("no sheets"))
	}
	return &xlsWorkbook{book: wb}, nil
}

type xlsWorkbook struct {
	book *xls.WorkBook
}

func (w *xlsWorkbook) SheetNames() []string {
	names := make([]string, 0, w.book.NumSheets())
	for i := 0; i < w.book.NumSheets(); i++ {
		if sheet := w.book.GetSheet(i); sheet != nil {
			names = append(names, sheet.Name)
		}
	}
	return names
}

func (w *xlsWorkbook) ActiveSheet() string { return "" }

func (w *xlsWorkbook) Rows(name string) ([]RawRow, error) {
	var rows []RawRow
	err := guard(BackendXLS, func() error {
		var sheet *xls.WorkSheet
		for i := 0; i < w.book.NumSheets(); i++ {
			if s := w.book.GetSheet(i); s != nil && s.Name == name {
				sheet = s
				break
			}
		}
		if sheet == nil {
			return notOpenable(BackendXLS, fmt.Errorf("sheet %q not found", name))
		}

		maxRow := int(sheet.MaxRow)
		for i := 0; i <= maxRow; i++ {
			row := sheet.Row(i)
			if row == nil {
				rows = append(rows, RawRow{Index: i})
				continue
			}
			cells := make([]Cell, row.LastCol())
			for c := row.FirstCol(); c < row.LastCol(); c++ {
				cells[c] = xlsCell(row.Col(c))
			}
			rows = append(rows, RawRow{Index: i, Cells: cells})
		}
		return nil
	})
	return rows, err
}

func (w *xlsWorkbook) Close() error { return nil }

func xlsCell(text string) Cell {
	text = strings.TrimSpace(text)
	if t, err := time.Parse(time.RFC3339, text); err == nil {
		return Cell{Time: t}
	}
	return Cell{Text: text}
}

// xlsreader is a second legacy reader, github.com/shakinm/xlsReader. It
// copes with some files the first one rejects.

type xlsReaderBackend struct{}

func (xlsReaderBackend) Name() string { return BackendXLSReader }

func (b xlsReaderBackend) Open(data []byte) (Workbook, error) {
	var grids map[string][]RawRow
	var names []string
	err := guard(b.Name(), func() error {
		wb, err := xlsreader.OpenReader(bytes.NewReader(data))
		if err != nil {
			return notOpenable(b.Name(), err)
		}

		grids = make(map[string][]RawRow)
		for i := 0; i < wb.GetNumberSheets(); i++ {
			sheet, err := wb.GetSheet(i)
			if err != nil {
				return notOpenable(b.Name(), err)
			}
			var rows []RawRow
			for r, row := range sheet.GetRows() {
				var values []string
				for _, col := range row.GetCols() {
					values = append(values, col.GetString())
				}
				rows = append(rows, NewTextRow(r, values...))
			}
			names = append(names, sheet.GetName())
			grids[sheet.GetName()] = rows
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, notOpenable(b.Name(), stderrors.New("no sheets"))
	}
	return &memoryWorkbook{names: names, grids: grids}, nil
}

// memoryWorkbook serves sheets that were fully read at open time.
type memoryWorkbook struct {
	names  []string
	active string
	grids  map[string][]RawRow
}

func (w *memoryWorkbook) SheetNames() []string { return w.names }
func (w *memoryWorkbook) ActiveSheet() string  { return w.active }
func (w *memoryWorkbook) Close() error         { return nil }

func (w *memoryWorkbook) Rows(sheet string) ([]RawRow, error) {
	rows, ok := w.grids[sheet]
	if !ok {
		return nil, fmt.Errorf("%w: sheet %q not found", ErrNotOpenable, sheet)
	}
	return rows, nil
}
