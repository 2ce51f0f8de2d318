// Package exchange reads and writes the stock exchange spreadsheet.
package exchange

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"restopos/internal/core/apperror"
	"restopos/internal/core/types"
	"restopos/internal/domain/registers/stock"
)

const (
	sheetName = "Stock"

	// ContentType is the MIME type of xlsx files.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var headers = []string{"Name", "SKU", "Quantity", "Unit", "Par level"}

// column aliases accepted when reading, lower-cased.
var headerAliases = map[string]string{
	"name":      "name",
	"item":      "name",
	"sku":       "sku",
	"code":      "sku",
	"quantity":  "quantity",
	"qty":       "quantity",
	"unit":      "unit",
	"par level": "par_level",
	"parlevel":  "par_level",
	"par_level": "par_level",
	"par":       "par_level",
}

// WriteXLSX renders rows as a single-sheet workbook.
func WriteXLSX(w io.Writer, rows []stock.Row) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheetName); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(sheetName, cell, h); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}

	for i, r := range rows {
		values := []any{r.Name, r.SKU, r.Quantity.Float64(), r.Unit, r.ParLevel.Float64()}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// ReadXLSX parses the first sheet. The first row must be a header naming at least SKU and Quantity.
func ReadXLSX(r io.Reader) ([]stock.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperror.NewInvalidInput("file", "not a valid xlsx workbook")
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, apperror.NewInvalidInput("file", "workbook has no sheets")
	}
	raw, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	if len(raw) == 0 {
		return nil, apperror.NewInvalidInput("file", "sheet is empty")
	}

	cols := make(map[string]int)
	for i, h := range raw[0] {
		if key, ok := headerAliases[strings.ToLower(strings.TrimSpace(h))]; ok {
			if _, dup := cols[key]; !dup {
				cols[key] = i
			}
		}
	}
	for _, required := range []string{"sku", "quantity"} {
		if _, ok := cols[required]; !ok {
			return nil, apperror.NewInvalidInput("file", fmt.Sprintf("missing %s column", required))
		}
	}

	rows := make([]stock.Row, 0, len(raw)-1)
	for n, line := range raw[1:] {
		lineNo := n + 2
		cell := func(key string) string {
			i, ok := cols[key]
			if !ok || i >= len(line) {
				return ""
			}
			return strings.TrimSpace(line[i])
		}

		if isBlank(line) {
			continue
		}
		qty, err := parseQuantityCell(cell("quantity"))
		if err != nil {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("row %d quantity", lineNo), err.Error())
		}
		par, err := parseQuantityCell(cell("par_level"))
		if err != nil {
			return nil, apperror.NewInvalidInput(fmt.Sprintf("row %d par level", lineNo), err.Error())
		}
		rows = append(rows, stock.Row{
			Name:     cell("name"),
			SKU:      cell("sku"),
			Quantity: qty,
			Unit:     cell("unit"),
			ParLevel: par,
		})
	}
	return rows, nil
}

func parseQuantityCell(s string) (types.Quantity, error) {
	if s == "" {
		return 0, nil
	}
	return types.ParseQuantity(strings.ReplaceAll(s, ",", "."))
}

func isBlank(line []string) bool {
	for _, c := range line {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
