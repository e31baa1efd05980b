// Package spreadsheet reads xlsx sheets into rows with named columns.
//
// Import Path: catalogo.cali.gov.co/etl/internal/spreadsheet
package spreadsheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Sentinel errors. Callers use errors.Is to tell a missing file apart from
// an unreadable one.
var (
	ErrFileNotFound  = errors.New("spreadsheet file not found")
	ErrSheetNotFound = errors.New("sheet not found")
	ErrNoHeader      = errors.New("sheet has no header row")
)

// Workbook is an open xlsx file.
type Workbook struct {
	path string
	file *excelize.File
}

// Open opens the workbook at path.
func Open(path string) (*Workbook, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", path, err)
	}
	return &Workbook{path: path, file: f}, nil
}

// Path returns the file the workbook was opened from.
func (w *Workbook) Path() string {
	return w.path
}

// Close releases the workbook.
func (w *Workbook) Close() error {
	return w.file.Close()
}

// Sheets lists sheet names in workbook order.
func (w *Workbook) Sheets() []string {
	return w.file.GetSheetList()
}

// Sheet reads a sheet with raw cell values. An empty name selects the first
// sheet. skipRows banner rows are dropped before the header row. Fully blank
// data rows are ignored.
func (w *Workbook) Sheet(name string, skipRows int) (*Table, error) {
	return w.read(name, skipRows, true)
}

// FormattedSheet is Sheet with cell values as Excel displays them, which
// keeps dates readable.
func (w *Workbook) FormattedSheet(name string, skipRows int) (*Table, error) {
	return w.read(name, skipRows, false)
}

func (w *Workbook) read(name string, skipRows int, rawValues bool) (*Table, error) {
	if name == "" {
		sheets := w.Sheets()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook %s is empty", ErrSheetNotFound, w.path)
		}
		name = sheets[0]
	}
	if idx, err := w.file.GetSheetIndex(name); err != nil || idx < 0 {
		return nil, fmt.Errorf("%w: %q in %s", ErrSheetNotFound, name, w.path)
	}

	raw, err := w.file.GetRows(name, excelize.Options{RawCellValue: rawValues})
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(raw) <= skipRows {
		return nil, fmt.Errorf("%w: %q in %s", ErrNoHeader, name, w.path)
	}
	return NewTable(name, raw[skipRows], raw[skipRows+1:], skipRows+2), nil
}

// Table is a sheet with a header.
type Table struct {
	Sheet   string
	Columns []string
	Rows    []Row

	index map[string]int
}

// Row is one data row. Number is the 1-based row in the sheet.
type Row struct {
	Number int
	Values []string

	table *Table
}

// NewTable builds a Table from a header and data rows. firstRow is the sheet
// row number of data[0].
func NewTable(sheet string, header []string, data [][]string, firstRow int) *Table {
	t := &Table{
		Sheet:   sheet,
		Columns: make([]string, len(header)),
		index:   make(map[string]int, len(header)),
	}
	for i, h := range header {
		h = strings.TrimSpace(h)
		t.Columns[i] = h
		// First occurrence wins on duplicate headers.
		if _, dup := t.index[h]; !dup && h != "" {
			t.index[h] = i
		}
	}
	for i, cells := range data {
		if blank(cells) {
			continue
		}
		values := make([]string, len(header))
		copy(values, cells)
		t.Rows = append(t.Rows, Row{Number: firstRow + i, Values: values, table: t})
	}
	return t
}

// Has reports whether the header contains column.
func (t *Table) Has(column string) bool {
	_, ok := t.index[column]
	return ok
}

// Missing returns the columns absent from the header, in input order.
func (t *Table) Missing(columns []string) []string {
	var missing []string
	for _, c := range columns {
		if c != "" && !t.Has(c) {
			missing = append(missing, c)
		}
	}
	return missing
}

// Get returns the raw cell under column, or "" when the column is unknown.
func (r Row) Get(column string) string {
	if column == "" || r.table == nil {
		return ""
	}
	i, ok := r.table.index[column]
	if !ok || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

// At returns the raw cell at position i, or "" past the end.
func (r Row) At(i int) string {
	if i < 0 || i >= len(r.Values) {
		return ""
	}
	return r.Values[i]
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
