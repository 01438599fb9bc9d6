package receipt

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the exported workbook.
const (
	SheetReceipts   = "Receipts"
	SheetItems      = "Items"
	SheetMerchants  = "Merchants"
	SheetCategories = "Categories"
)

type sheet struct {
	name    string
	headers []string
	widths  []float64
	rows    [][]any
}

// ExportXLSX writes one sheet per table to w.
func ExportXLSX(w io.Writer, snap *Snapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range exportSheets(snap) {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.name); err != nil {
				return fmt.Errorf("naming sheet %s: %w", sh.name, err)
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return fmt.Errorf("creating sheet %s: %w", sh.name, err)
		}
		if err := writeSheet(f, sh); err != nil {
			return fmt.Errorf("writing sheet %s: %w", sh.name, err)
		}
	}
	f.SetActiveSheet(0)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx write: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh sheet) error {
	header := make([]any, len(sh.headers))
	for i, h := range sh.headers {
		header[i] = h
	}
	if err := f.SetSheetRow(sh.name, "A1", &header); err != nil {
		return err
	}
	for i, row := range sh.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sh.name, cell, &row); err != nil {
			return err
		}
	}
	for i, width := range sh.widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		if err := f.SetColWidth(sh.name, col, col, width); err != nil {
			return err
		}
	}
	return nil
}

func exportSheets(snap *Snapshot) []sheet {
	receipts := sheet{
		name:    SheetReceipts,
		headers: []string{"ID", "Merchant ID", "Date", "Time", "Subtotal", "Tax", "Total", "Payment Method", "Status", "Confidence", "Filename", "Storage Path", "Created At"},
		widths:  []float64{8, 12, 12, 10, 12, 10, 12, 18, 10, 12, 30, 50, 22},
	}
	for _, r := range snap.Receipts {
		receipts.rows = append(receipts.rows, []any{
			r.ID, r.MerchantID, deref(r.Date), deref(r.Time),
			r.Subtotal, r.TaxAmount, r.TotalAmount, r.PaymentMethod,
			r.Status, string(r.Confidence), r.Filename, r.StoragePath, timestamp(r.CreatedAt),
		})
	}

	items := sheet{
		name:    SheetItems,
		headers: []string{"ID", "Receipt ID", "Category ID", "Receipt Name", "Standard Name", "Price", "Quantity", "Line Total", "Line Order"},
		widths:  []float64{8, 12, 12, 30, 22, 10, 10, 12, 10},
	}
	for _, it := range snap.Items {
		items.rows = append(items.rows, []any{
			it.ID, it.ReceiptID, it.CategoryID, it.ReceiptName, it.StandardName,
			it.Price, it.Quantity, it.LineTotal, it.LineOrder,
		})
	}

	merchants := sheet{
		name:    SheetMerchants,
		headers: []string{"ID", "Name", "Address", "City", "State", "Zip Code", "Phone", "Created At", "Updated At"},
		widths:  []float64{8, 24, 40, 18, 8, 12, 16, 22, 22},
	}
	for _, m := range snap.Merchants {
		merchants.rows = append(merchants.rows, []any{
			m.ID, m.Name, m.Address, m.City, m.State, m.ZipCode, m.Phone,
			timestamp(m.CreatedAt), timestamp(m.UpdatedAt),
		})
	}

	categories := sheet{
		name:    SheetCategories,
		headers: []string{"ID", "Name", "Description", "Created At"},
		widths:  []float64{8, 22, 48, 22},
	}
	for _, c := range snap.Categories {
		categories.rows = append(categories.rows, []any{c.ID, c.Name, c.Description, timestamp(c.CreatedAt)})
	}

	return []sheet{receipts, items, merchants, categories}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func timestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
