package sheet

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// readCSV accepts comma and semicolon separators; the header line decides
// which one is used.
func readCSV(r io.Reader) ([]Record, error) {
	br := bufio.NewReader(r)
	peek, _ := br.Peek(4096)

	reader := csv.NewReader(br)
	reader.Comma = detectDelimiter(peek)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var rows [][]string
	for {
		cells, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if len(rows) == 0 {
				return nil, fmt.Errorf("sheet: read header: %w", err)
			}
			return nil, fmt.Errorf("sheet: read row %d: %w", len(rows), err)
		}
		rows = append(rows, cells)
	}
	return records(rows)
}

func detectDelimiter(head []byte) rune {
	line := head
	if idx := bytes.IndexByte(head, '\n'); idx >= 0 {
		line = head[:idx]
	}
	if bytes.Count(line, []byte{';'}) > bytes.Count(line, []byte{','}) {
		return ';'
	}
	return ','
}

// writeCSV prefixes a UTF-8 byte order mark so spreadsheet applications
// pick the right encoding for umlauts.
func writeCSV(w io.Writer, header []string, rows [][]string) error {
	if _, err := io.WriteString(w, utf8BOM); err != nil {
		return fmt.Errorf("sheet: write bom: %w", err)
	}
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("sheet: write header: %w", err)
	}
	for i, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("sheet: write row %d: %w", i+1, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
