package review

import (
	"fmt"
	"io"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/zombor/receipt-tracker/internal/receipt"
)

func money(f float64) string {
	return "$" + humanize.FormatFloat("#,###.##", f)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func newTable(w io.Writer, header ...string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	return t
}

// RenderAnalysis prints an analysis for review: merchant, transaction and
// an item table.
func RenderAnalysis(w io.Writer, a *receipt.Analysis) {
	r := a.Result.Receipt
	fmt.Fprintf(w, "\n%s (%s confidence, score %d)\n", a.Filename, a.Result.Confidence, a.Result.Score)
	fmt.Fprintf(w, "Merchant: %s\n", r.Merchant.Name)
	if r.Merchant.Address != "" {
		fmt.Fprintf(w, "Address:  %s\n", r.Merchant.Address)
	}
	if r.Merchant.City != "" || r.Merchant.State != "" {
		fmt.Fprintf(w, "Location: %s %s %s\n", r.Merchant.City, r.Merchant.State, r.Merchant.ZipCode)
	}
	fmt.Fprintf(w, "Date:     %s %s\n", orDash(r.Transaction.Date), orDash(r.Transaction.Time))
	fmt.Fprintf(w, "Totals:   subtotal %s, tax %s, total %s\n",
		money(r.Transaction.Subtotal), money(r.Transaction.TaxAmount), money(r.Transaction.TotalAmount))
	if r.Transaction.PaymentMethod != "" {
		fmt.Fprintf(w, "Payment:  %s\n", r.Transaction.PaymentMethod)
	}
	for _, warning := range a.Result.Warnings {
		fmt.Fprintf(w, "Warning:  %s\n", warning)
	}

	t := newTable(w, "#", "Receipt Name", "Standard Name", "Category", "Qty", "Price")
	for _, item := range r.Items {
		t.Append([]string{
			strconv.Itoa(item.LineOrder),
			item.ReceiptName,
			item.StandardName,
			item.Category,
			strconv.FormatFloat(item.Quantity, 'f', -1, 64),
			money(item.Price),
		})
	}
	t.Render()
}

// RenderSummary prints database statistics.
func RenderSummary(w io.Writer, s *receipt.Summary) {
	fmt.Fprintf(w, "Receipts: %d  Items: %d  Merchants: %d  Categories: %d\n",
		s.Receipts, s.Items, s.Merchants, s.Categories)
	fmt.Fprintf(w, "Total spending: %s\n\n", money(s.TotalSpending))

	fmt.Fprintln(w, "Top locations")
	t := newTable(w, "City", "State", "Receipts", "Total")
	for _, l := range s.TopLocations {
		t.Append([]string{l.City, l.State, strconv.Itoa(l.Receipts), money(l.Total)})
	}
	t.Render()

	fmt.Fprintln(w, "\nTop categories")
	t = newTable(w, "Category", "Items", "Total")
	for _, c := range s.TopCategories {
		t.Append([]string{c.Name, strconv.Itoa(c.Items), money(c.Total)})
	}
	t.Render()

	fmt.Fprintln(w, "\nRecent receipts")
	t = newTable(w, "ID", "Merchant", "Date", "Total")
	for _, r := range s.Recent {
		t.Append([]string{strconv.FormatUint(r.ID, 10), r.Merchant, orDash(r.Date), money(r.Total)})
	}
	t.Render()
}

// RenderReport prints the outcome of a batch run.
func RenderReport(w io.Writer, rep *RunReport) {
	t := newTable(w, "File", "Status", "Receipt", "Error")
	for _, o := range rep.Outcomes {
		id := ""
		if o.ReceiptID != 0 {
			id = strconv.FormatUint(o.ReceiptID, 10)
		}
		t.Append([]string{o.File, string(o.Status), id, o.Error})
	}
	t.Render()
	fmt.Fprintf(w, "Saved: %d  Rejected: %d  Failed: %d  Skipped: %d\n",
		rep.Saved, rep.Rejected, rep.Failed, rep.Skipped)
}
