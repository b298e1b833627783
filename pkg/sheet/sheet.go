// Package sheet reads and writes the spreadsheets exchanged with the school
// office. Workbooks (.xlsx) and CSV files are both accepted; cells are
// addressed by header name.
package sheet

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"
)

const utf8BOM = "\ufeff"

// ErrNoHeader is returned when the input has no header line.
var ErrNoHeader = errors.New("sheet: missing header row")

// Format is the on-the-wire spreadsheet encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// xlsx files are zip archives.
var zipMagic = []byte("PK\x03\x04")

func (f Format) IsValid() bool {
	return f == FormatCSV || f == FormatXLSX
}

func (f Format) ContentType() string {
	if f == FormatXLSX {
		return ContentTypeXLSX
	}
	return ContentTypeCSV
}

func (f Format) Extension() string {
	if f == FormatXLSX {
		return ".xlsx"
	}
	return ".csv"
}

// ParseFormat reads a format name such as "xlsx" or "csv".
func ParseFormat(value string) (Format, error) {
	format := Format(strings.ToLower(strings.TrimSpace(value)))
	if !format.IsValid() {
		return "", fmt.Errorf("invalid sheet format %q", value)
	}
	return format, nil
}

// FormatFor infers the format of an upload from its file name, then its
// content type. It returns "" when neither says.
func FormatFor(filename, contentType string) Format {
	switch strings.ToLower(filepath.Ext(strings.TrimSpace(filename))) {
	case ".xlsx":
		return FormatXLSX
	case ".csv", ".txt":
		return FormatCSV
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch {
	case mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
		return FormatXLSX
	case mediaType == "text/csv", mediaType == "application/csv", mediaType == "text/plain":
		return FormatCSV
	}
	return ""
}

// Record is one data row keyed by trimmed header name.
type Record map[string]string

// Get returns the trimmed cell value for column, or "" when absent.
func (r Record) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Blank reports whether every cell is empty.
func (r Record) Blank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// Read parses a sheet with a header row, telling workbooks from CSV by
// their leading bytes.
func Read(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	head, _ := br.Peek(len(zipMagic))
	if bytes.Equal(head, zipMagic) {
		return readXLSX(br)
	}
	return readCSV(br)
}

// ReadAs parses r as format. An empty format falls back to Read.
func ReadAs(r io.Reader, format Format) ([]Record, error) {
	switch format {
	case FormatXLSX:
		return readXLSX(r)
	case FormatCSV:
		return readCSV(r)
	case "":
		return Read(r)
	default:
		return nil, fmt.Errorf("invalid sheet format %q", format)
	}
}

// Write emits header and rows in format. Every row must have one cell per
// header column.
func Write(w io.Writer, format Format, header []string, rows [][]string) error {
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("sheet: row %d has %d cells, want %d", i+1, len(row), len(header))
		}
	}
	switch format {
	case FormatXLSX:
		return writeXLSX(w, header, rows)
	case FormatCSV:
		return writeCSV(w, header, rows)
	default:
		return fmt.Errorf("invalid sheet format %q", format)
	}
}

// records keys the data rows by the first row's headers. Rows without any
// cell are dropped.
func records(rows [][]string) ([]Record, error) {
	if len(rows) == 0 {
		return nil, ErrNoHeader
	}
	header := make([]string, len(rows[0]))
	for i, name := range rows[0] {
		header[i] = strings.TrimSpace(strings.TrimPrefix(name, utf8BOM))
	}

	out := make([]Record, 0, len(rows)-1)
	for _, cells := range rows[1:] {
		if len(cells) == 0 {
			continue
		}
		rec := make(Record, len(header))
		for i, name := range header {
			if name == "" || i >= len(cells) {
				continue
			}
			rec[name] = strings.TrimSpace(cells[i])
		}
		out = append(out, rec)
	}
	return out, nil
}
