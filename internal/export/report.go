package export

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"labcontrol/internal/core"
)

// Report sheet names.
const (
	SheetInventory = "Inventory"
	SheetBatches   = "Batches"
	SheetLowStock  = "Low Stock"
)

// ReportName is the file name for a report generated on the UTC date of t.
func ReportName(t time.Time) string {
	return fmt.Sprintf("labcontrol_inventory_%s.xlsx", t.UTC().Format(time.DateOnly))
}

// BuildReport renders the inventory workbook. The caller must Close the file.
func BuildReport(snap core.Snapshot, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetInventory); err != nil {
		_ = f.Close()
		return nil, err
	}
	for _, name := range []string{SheetBatches, SheetLowStock} {
		if _, err := f.NewSheet(name); err != nil {
			_ = f.Close()
			return nil, err
		}
	}

	summaries := core.Summarize(snap.Catalog, snap.Batches)
	inventory := [][]any{{"ID", "Name", "Category", "CAS Number", "Total Quantity", "Min Stock", "Low Stock", "Batches"}}
	for _, s := range summaries {
		inventory = append(inventory, []any{s.ID, s.Name, string(s.Category), s.CASNumber, s.TotalQuantity, s.MinStockLevel, yesNo(s.LowStock()), len(s.Batches)})
	}

	batches := [][]any{{"Batch ID", "Item", "Lot", "Expiry", "Quantity", "Unit", "Location", "QA Status", "Expired"}}
	for _, row := range core.BuildBatchRows(snap.Catalog, snap.Locations, snap.Batches, "", now) {
		expiry := ""
		if t, ok := row.Expiry(); ok {
			expiry = t.Format(time.DateOnly)
		}
		batches = append(batches, []any{row.ID, row.ItemName, row.LotNumber, expiry, row.Quantity, string(row.Unit), row.LocationName, string(row.QAStatus), yesNo(row.Expired)})
	}

	low := [][]any{{"ID", "Name", "Total Quantity", "Min Stock", "Shortfall"}}
	for _, s := range core.FilterLowStock(summaries) {
		low = append(low, []any{s.ID, s.Name, s.TotalQuantity, s.MinStockLevel, float64(s.MinStockLevel) - s.TotalQuantity})
	}

	for sheet, rows := range map[string][][]any{SheetInventory: inventory, SheetBatches: batches, SheetLowStock: low} {
		if err := writeRows(f, sheet, rows); err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
