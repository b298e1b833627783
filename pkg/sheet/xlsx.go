package sheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// readXLSX reads the first worksheet of a workbook.
func readXLSX(r io.Reader) ([]Record, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("sheet: open workbook: %w", err)
	}
	defer book.Close()

	names := book.GetSheetList()
	if len(names) == 0 {
		return nil, ErrNoHeader
	}
	rows, err := book.GetRows(names[0])
	if err != nil {
		return nil, fmt.Errorf("sheet: read worksheet %q: %w", names[0], err)
	}
	return records(rows)
}

func writeXLSX(w io.Writer, header []string, rows [][]string) error {
	book := excelize.NewFile()
	defer book.Close()

	name := book.GetSheetName(0)
	if err := setRow(book, name, 1, header); err != nil {
		return fmt.Errorf("sheet: write header: %w", err)
	}
	for i, row := range rows {
		if err := setRow(book, name, i+2, row); err != nil {
			return fmt.Errorf("sheet: write row %d: %w", i+1, err)
		}
	}
	if err := book.Write(w); err != nil {
		return fmt.Errorf("sheet: write workbook: %w", err)
	}
	return nil
}

// setRow writes cells as text starting at column A of the 1-based row.
func setRow(book *excelize.File, sheetName string, row int, cells []string) error {
	anchor, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return book.SetSheetRow(sheetName, anchor, &cells)
}
