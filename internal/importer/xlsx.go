package importer

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// parseXLSX reads the first sheet that holds a recognizable table. Raw cell
// values are used so that dates arrive as serial numbers and amounts without
// display formatting.
func parseXLSX(r io.Reader) (Result, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return Result{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	var firstErr error
	for _, sheet := range f.GetSheetList() {
		records, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
		if err != nil {
			return Result{}, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(records) == 0 {
			continue
		}
		res, err := rowsFromTable(records)
		if err == nil {
			return res, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = &MissingColumnsError{Missing: []string{"date", "amount", "description"}}
	}
	return Result{}, firstErr
}
