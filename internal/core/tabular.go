package core

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrEmptyFile is returned when a file has no header line or no data rows.
	ErrEmptyFile = errors.New("file contains no data rows")

	// ErrUnsupportedFormat is returned for file extensions other than .csv and .xlsx.
	ErrUnsupportedFormat = errors.New("unsupported file format")
)

// ParseTabular dispatches on the file extension. Files without an extension
// are read as CSV.
func ParseTabular(fileName string, r io.Reader) (Table, error) {
	switch ext := strings.ToLower(filepath.Ext(fileName)); ext {
	case ".csv", ".txt", "":
		return ParseCSV(r)
	case ".xlsx", ".xlsm":
		return ParseWorkbook(r)
	default:
		return Table{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

// ParseCSV reads a comma-separated file whose first line declares the headers.
// Empty lines are skipped. Rows shorter than the header leave the trailing
// columns absent; cells beyond the header are ignored.
func ParseCSV(r io.Reader) (Table, error) {
	src := NewSanitizingReader(r)
	reader := csv.NewReader(src)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err == io.EOF {
		return Table{}, ErrEmptyFile
	}
	if err != nil {
		return Table{}, fmt.Errorf("read header: %w", err)
	}

	table := Table{Headers: headers}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("read row %d: %w", len(table.Rows)+1, err)
		}
		table.Rows = append(table.Rows, toRawRow(headers, record))
	}

	table.ReplacedBytes = src.Replaced
	return table, nil
}

// ParseWorkbook reads the first sheet of an .xlsx workbook with the same
// header and row contract as ParseCSV. Completely blank sheet rows are skipped.
func ParseWorkbook(r io.Reader) (Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, ErrEmptyFile
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}

	var headers []string
	table := Table{}
	for _, cells := range rows {
		if isBlankRecord(cells) {
			continue
		}
		if headers == nil {
			headers = cells
			table.Headers = headers
			continue
		}
		table.Rows = append(table.Rows, toRawRow(headers, cells))
	}

	if headers == nil {
		return Table{}, ErrEmptyFile
	}
	return table, nil
}

func toRawRow(headers, record []string) RawRow {
	row := make(RawRow, len(headers))
	for i, h := range headers {
		if i >= len(record) {
			break
		}
		row[h] = record[i]
	}
	return row
}

func isBlankRecord(cells []string) bool {
	for _, c := range cells {
		if c != "" {
			return false
		}
	}
	return true
}
