package scanning

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/zombor/receipt-tracker/internal/normalize"
)

// Heuristic structures receipt text with line patterns instead of a model.
// It understands the common US till layout: merchant header, address,
// phone, a timestamp line, department headers, priced item lines and a
// SUBTOTAL/TAX/TOTAL block.
type Heuristic struct{}

var (
	reMoney      = regexp.MustCompile(`-?\$?\d{1,5}\.\d{2}\b`)
	reItemLine   = regexp.MustCompile(`^(.+?)\s+(-?\$?\d{1,5}\.\d{2})\s*[A-Z]?\s*$`)
	reSKU        = regexp.MustCompile(`^\d{5,}\s+`)
	reTaxFlag    = regexp.MustCompile(`\s+[A-Z]$`)
	rePhone      = regexp.MustCompile(`\(?\b\d{3}\)?[\s.-]*\d{3}[\s.-]*\d{4}\b`)
	reStreet     = regexp.MustCompile(`^\d+\s+[A-Za-z]`)
	reCityLine   = regexp.MustCompile(`(?i)^[A-Za-z .'-]+,?\s+[A-Z]{2}\.?\s+\d{5}(?:-\d{4})?$`)
	reDateHint   = regexp.MustCompile(`(?i)\d{1,2}[/.-]\d{1,2}[/.-]\d{2,4}|\d{4}-\d{1,2}-\d{1,2}|\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{1,2},?\s+\d{4}`)
	reTimeHint   = regexp.MustCompile(`\d{1,2}:\d{2}`)
	reSubtotal   = regexp.MustCompile(`(?i)\bSUB\s*-?\s*TOTAL\b`)
	reTax        = regexp.MustCompile(`(?i)\b(?:TAX|HST|GST|PST|VAT)\b`)
	reTotal      = regexp.MustCompile(`(?i)\b(?:GRAND\s+)?TOTAL\b|\bBALANCE\s+DUE\b|\bAMOUNT\s+DUE\b`)
	rePayment    = regexp.MustCompile(`(?i)\b(VISA|MASTERCARD|MASTER\s+CARD|AMEX|AMERICAN\s+EXPRESS|DISCOVER|DEBIT|CREDIT|CASH)\b`)
	reNotAnItem  = regexp.MustCompile(`(?i)\b(?:CHANGE|SAVINGS|DISCOUNT|COUPON|TENDER|PAYMENT|REFUND|VOID|POINTS|REWARDS?|BALANCE|AUTH)\b`)
	reHeaderWord = regexp.MustCompile(`^[A-Za-z&' ]+$`)
)

type heuristicPayload struct {
	Merchant    heuristicMerchant    `json:"merchant"`
	Transaction heuristicTransaction `json:"transaction"`
	Items       []heuristicItem      `json:"items"`
}

type heuristicMerchant struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
}

type heuristicTransaction struct {
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Subtotal      float64 `json:"subtotal"`
	TaxAmount     float64 `json:"tax_amount"`
	TotalAmount   float64 `json:"total_amount"`
	PaymentMethod string  `json:"payment_method"`
}

type heuristicItem struct {
	ReceiptName string  `json:"receipt_name"`
	Price       float64 `json:"price"`
	Quantity    float64 `json:"quantity"`
	Category    string  `json:"category"`
}

// Structure implements Structurer.
func (Heuristic) Structure(_ context.Context, receiptText string) (string, error) {
	var (
		out        = heuristicPayload{Items: []heuristicItem{}}
		street     string
		cityLine   string
		department string
		haveTotal  bool
	)

	for _, line := range strings.Split(receiptText, "\n") {
		line = strings.Join(strings.Fields(strings.NewReplacer("|", " ", "\\", " ").Replace(line)), " ")
		if line == "" {
			continue
		}

		if out.Transaction.Date == "" && reDateHint.MatchString(line) {
			out.Transaction.Date = line
			if reTimeHint.MatchString(line) {
				out.Transaction.Time = line
			}
			continue
		}
		if out.Transaction.Time == "" && reTimeHint.MatchString(line) && !reMoney.MatchString(line) {
			out.Transaction.Time = line
			continue
		}

		if isSummaryLine(line) {
			amount := lastAmount(line)
			switch {
			case reSubtotal.MatchString(line):
				out.Transaction.Subtotal = amount
			case reTax.MatchString(line):
				out.Transaction.TaxAmount = amount
			case reTotal.MatchString(line):
				if !haveTotal {
					out.Transaction.TotalAmount = amount
					haveTotal = true
				}
			}
			if m := rePayment.FindStringSubmatch(line); m != nil && out.Transaction.PaymentMethod == "" {
				out.Transaction.PaymentMethod = m[1]
			}
			continue
		}

		if m := reItemLine.FindStringSubmatch(line); m != nil {
			if reNotAnItem.MatchString(m[1]) {
				continue
			}
			name := itemName(m[1])
			if name == "" {
				continue
			}
			out.Items = append(out.Items, heuristicItem{
				ReceiptName: name,
				Price:       normalize.ParseAmount(m[2]) * sign(m[2]),
				Quantity:    1,
				Category:    itemCategory(name, department),
			})
			continue
		}

		switch {
		case out.Merchant.Phone == "" && rePhone.MatchString(line):
			out.Merchant.Phone = rePhone.FindString(line)
		case cityLine == "" && reCityLine.MatchString(line):
			cityLine = line
		case out.Merchant.Name != "" && street == "" && cityLine == "" && reStreet.MatchString(line):
			street = line
		case out.Merchant.Name == "" && hasLetter(line):
			out.Merchant.Name = line
		case isDepartment(line):
			department = departmentCategory(line)
		}
	}

	out.Merchant.Address = joinNonEmpty(", ", street, cityLine)

	b, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("marshaling receipt: %w", err)
	}
	return string(b), nil
}

// Close implements Structurer.
func (Heuristic) Close() error { return nil }

func isSummaryLine(line string) bool {
	if !reMoney.MatchString(line) {
		return false
	}
	return reSubtotal.MatchString(line) || reTax.MatchString(line) || reTotal.MatchString(line) || rePayment.MatchString(line)
}

// lastAmount returns the right-most money figure; tax lines often print
// the rate and the taxable base before the amount.
func lastAmount(line string) float64 {
	all := reMoney.FindAllString(line, -1)
	if len(all) == 0 {
		return 0
	}
	return normalize.ParseAmount(all[len(all)-1])
}

func sign(amount string) float64 {
	if strings.HasPrefix(amount, "-") {
		return -1
	}
	return 1
}

func itemName(raw string) string {
	name := reSKU.ReplaceAllString(raw, "")
	name = reTaxFlag.ReplaceAllString(name, "")
	name = strings.TrimRight(name, ".,;:-_ ")
	return strings.TrimLeft(name, "@#* ")
}

func itemCategory(name, department string) string {
	if department != "" {
		return department
	}
	if group := normalize.ProductGroup(normalize.StandardizeProductName(name)); group != "" {
		return group
	}
	return normalize.DefaultCategory
}

func isDepartment(line string) bool {
	return reHeaderWord.MatchString(line) && line == strings.ToUpper(line)
}

// departmentCategory maps a till department header onto a category, or ""
// when it is not one.
func departmentCategory(line string) string {
	name := strings.ReplaceAll(strings.ToUpper(line), " AND ", " & ")
	if c := normalize.CleanCategory(name); c != normalize.DefaultCategory {
		return c
	}
	return ""
}

func hasLetter(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' {
			return true
		}
	}
	return false
}

func joinNonEmpty(sep string, parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, sep)
}
