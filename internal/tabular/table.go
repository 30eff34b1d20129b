// Package tabular reads and writes the pipeline's tabular files: header-indexed
// CSV and XLSX inputs, typed CSV outputs, and atomic publication.
package tabular

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/procurement-signals/internal/model"
)

// Table is a fully loaded tabular file with its header row split off.
type Table struct {
	Path   string
	Header []string
	Rows   [][]string

	cols map[string]int
}

// ReadTable loads a CSV or XLSX file by extension. A missing or unreadable
// file, or one without a header row, is a *model.SchemaError.
func ReadTable(path string) (*Table, error) {
	var (
		rows [][]string
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		rows, err = ReadXLSX(path, XLSXOptions{})
	default:
		var f *os.File
		f, err = os.Open(path)
		if err != nil {
			return nil, &model.SchemaError{Path: path, Err: err}
		}
		defer f.Close() //nolint:errcheck
		rows, err = ReadCSV(f, CSVOptions{TrimSpace: true, LazyQuotes: true})
	}
	if err != nil {
		return nil, &model.SchemaError{Path: path, Err: err}
	}
	if len(rows) == 0 {
		return nil, &model.SchemaError{Path: path, Err: eris.New("file is empty")}
	}
	return NewTable(path, rows[0], rows[1:]), nil
}

// NewTable builds a Table from an explicit header and rows.
func NewTable(path string, header []string, rows [][]string) *Table {
	return &Table{
		Path:   path,
		Header: header,
		Rows:   rows,
		cols:   mapColumnsNormalized(header),
	}
}

// Require returns a *model.SchemaError naming every required column the table
// lacks. Each requirement lists acceptable aliases; the first is reported.
func (t *Table) Require(required ...[]string) error {
	var missing []string
	for _, aliases := range required {
		if t.Column(aliases...) < 0 {
			missing = append(missing, aliases[0])
		}
	}
	if len(missing) > 0 {
		return &model.SchemaError{Path: t.Path, Missing: missing}
	}
	return nil
}

// Column returns the index of the first alias present in the header, or -1.
func (t *Table) Column(aliases ...string) int {
	for _, name := range aliases {
		if idx, ok := t.cols[normalizeCol(name)]; ok {
			return idx
		}
	}
	return -1
}

// Get returns the value of the first alias present for a row, or "".
func (t *Table) Get(row []string, aliases ...string) string {
	idx := t.Column(aliases...)
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// CSVOptions configures the CSV reader.
type CSVOptions struct {
	Delimiter  rune // default ','
	Comment    rune // comment character (0 = none)
	LazyQuotes bool
	TrimSpace  bool
}

// ReadCSV reads every record from r. Rows may have differing field counts.
func ReadCSV(r io.Reader, opts CSVOptions) ([][]string, error) {
	reader := csv.NewReader(r)
	if opts.Delimiter != 0 {
		reader.Comma = opts.Delimiter
	}
	if opts.Comment != 0 {
		reader.Comment = opts.Comment
	}
	reader.LazyQuotes = opts.LazyQuotes
	reader.FieldsPerRecord = -1 // allow variable fields

	var rows [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return nil, eris.Wrap(err, "csv: read row")
		}
		if opts.TrimSpace {
			for i, field := range record {
				record[i] = strings.TrimSpace(field)
			}
		}
		if len(rows) == 0 && len(record) > 0 {
			record[0] = strings.TrimPrefix(record[0], "\ufeff")
		}
		rows = append(rows, record)
	}
}

// XLSXOptions configures the XLSX reader.
type XLSXOptions struct {
	SheetIndex int    // default 0
	SheetName  string // if set, overrides SheetIndex
	SkipRows   int    // number of leading rows to skip
}

// ReadXLSX reads an XLSX sheet and returns all rows as string slices.
func ReadXLSX(path string, opts XLSXOptions) ([][]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "xlsx: open file")
	}

	sheet, err := getSheet(f, opts)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	for i, row := range sheet.Rows {
		if i < opts.SkipRows {
			continue
		}
		cells := rowToStrings(row)
		if isBlank(cells) {
			continue
		}
		rows = append(rows, cells)
	}

	return rows, nil
}

func getSheet(f *xlsx.File, opts XLSXOptions) (*xlsx.Sheet, error) {
	if opts.SheetName != "" {
		sheet, ok := f.Sheet[opts.SheetName]
		if !ok {
			return nil, eris.Errorf("xlsx: sheet %q not found", opts.SheetName)
		}
		return sheet, nil
	}

	if opts.SheetIndex >= len(f.Sheets) {
		return nil, eris.Errorf("xlsx: sheet index %d out of range (file has %d sheets)", opts.SheetIndex, len(f.Sheets))
	}

	return f.Sheets[opts.SheetIndex], nil
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = strings.TrimSpace(cell.String())
	}
	return cells
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}

// normalizeCol lowercases and strips spaces, underscores and dashes so that
// "Contract Number", "contract_number" and "ContractNumber" all match.
func normalizeCol(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

// mapColumnsNormalized builds a normalized column name → index map. The first
// occurrence of a duplicated column wins.
func mapColumnsNormalized(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		key := normalizeCol(col)
		if _, dup := m[key]; !dup {
			m[key] = i
		}
	}
	return m
}
