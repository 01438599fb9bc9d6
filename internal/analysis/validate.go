package analysis

import (
	"github.com/zombor/receipt-tracker/internal/normalize"
)

// Fallback returns the receipt used when nothing could be extracted.
func Fallback() NormalizedReceipt {
	return NormalizedReceipt{
		Merchant: Merchant{Name: normalize.UnknownMerchant},
		Items:    []LineItem{},
	}
}

// Validate normalizes every field of raw. It never fails: missing or
// malformed fields fall back to defaults and unusable items are dropped.
func Validate(raw RawAnalysis) NormalizedReceipt {
	out := Fallback()

	if raw.Merchant != nil {
		out.Merchant = validateMerchant(*raw.Merchant)
	}
	if raw.Transaction != nil {
		out.Transaction = validateTransaction(*raw.Transaction)
	}
	for _, it := range raw.Items {
		item, ok := validateItem(it)
		if !ok {
			continue
		}
		item.LineOrder = len(out.Items) + 1
		out.Items = append(out.Items, item)
	}

	reconcileTotals(&out)
	return out
}

// Raw converts r back into payload form so it can be validated again.
func (r NormalizedReceipt) Raw() RawAnalysis {
	raw := RawAnalysis{
		Merchant: &RawMerchant{
			Name:    String(r.Merchant.Name),
			Address: String(r.Merchant.Address),
			City:    String(r.Merchant.City),
			State:   String(r.Merchant.State),
			ZipCode: String(r.Merchant.ZipCode),
			Phone:   String(r.Merchant.Phone),
		},
		Transaction: &RawTransaction{
			Date:          optional(r.Transaction.Date),
			Time:          optional(r.Transaction.Time),
			Subtotal:      Number(r.Transaction.Subtotal),
			TaxAmount:     Number(r.Transaction.TaxAmount),
			TotalAmount:   Number(r.Transaction.TotalAmount),
			PaymentMethod: String(r.Transaction.PaymentMethod),
		},
	}
	for _, it := range r.Items {
		raw.Items = append(raw.Items, RawItem{
			ReceiptName:  String(it.ReceiptName),
			StandardName: String(it.StandardName),
			Price:        Number(it.Price),
			Quantity:     Number(it.Quantity),
			Category:     String(it.Category),
		})
	}
	return raw
}

func optional(s *string) Value {
	if s == nil {
		return Null()
	}
	return String(*s)
}

func validateMerchant(m RawMerchant) Merchant {
	out := Merchant{
		Name:    normalize.CleanText(m.Name.Text()),
		Address: normalize.CleanText(m.Address.Text()),
		City:    normalize.CleanText(m.City.Text()),
		State:   normalize.CleanState(m.State.Text()),
		ZipCode: normalize.CleanZip(m.ZipCode.Text()),
		Phone:   normalize.CleanPhone(m.Phone.Text()),
	}
	if out.Name == "" {
		out.Name = normalize.UnknownMerchant
	}

	loc := normalize.Location{City: out.City, State: out.State, ZipCode: out.ZipCode}
	if address := m.Address.Text(); !loc.Complete() && !normalize.IsEmpty(address) {
		loc = normalize.ResolveLocation(address, loc)
		out.City, out.State, out.ZipCode = loc.City, loc.State, loc.ZipCode
	}
	return out
}

func validateTransaction(t RawTransaction) Transaction {
	out := Transaction{
		Subtotal:      nonNegative(normalize.ParseAmount(t.Subtotal.Scalar())),
		TaxAmount:     nonNegative(normalize.ParseAmount(t.TaxAmount.Scalar())),
		TotalAmount:   nonNegative(normalize.ParseAmount(t.TotalAmount.Scalar())),
		PaymentMethod: normalize.CleanText(t.PaymentMethod.Text()),
	}
	if d, ok := normalize.ParseDate(t.Date.Text()); ok {
		out.Date = &d
	}
	if tm, ok := normalize.ParseTime(t.Time.Text()); ok {
		out.Time = &tm
	}
	return out
}

func validateItem(it RawItem) (LineItem, bool) {
	receiptName := normalize.CleanText(it.ReceiptName.Text())
	standardName := normalize.CleanText(it.StandardName.Text())

	switch {
	case receiptName == "" && standardName == "":
		name := it.Name.Text()
		receiptName = normalize.CleanText(name)
		standardName = normalize.StandardizeProductName(receiptName)
	case standardName == "":
		standardName = normalize.StandardizeProductName(receiptName)
	case receiptName == "":
		receiptName = standardName
	}

	price := normalize.ParseAmount(it.Price.Scalar())
	if price <= 0 || receiptName == "" || standardName == "" {
		return LineItem{}, false
	}

	return LineItem{
		ReceiptName:  receiptName,
		StandardName: standardName,
		Price:        price,
		Quantity:     normalize.ParseQuantity(it.Quantity.Scalar()),
		Category:     normalize.CleanCategory(it.Category.Text()),
	}, true
}

func reconcileTotals(r *NormalizedReceipt) {
	if r.Transaction.TotalAmount == 0 {
		lines := make([]float64, len(r.Items))
		for i, it := range r.Items {
			lines[i] = normalize.LineTotal(it.Price, it.Quantity)
		}
		r.Transaction.TotalAmount = normalize.Sum(lines...)
	}
	if r.Transaction.Subtotal == 0 {
		r.Transaction.Subtotal = nonNegative(normalize.Subtract(r.Transaction.TotalAmount, r.Transaction.TaxAmount))
	}
}

func nonNegative(f float64) float64 {
	if f < 0 {
		return 0
	}
	return f
}
