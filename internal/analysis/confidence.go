package analysis

import "github.com/zombor/receipt-tracker/internal/normalize"

// MaxScore is the highest score Score can return.
const MaxScore = 7

// Score rates how much of r was recovered, from 0 to MaxScore.
func Score(r NormalizedReceipt) int {
	score := 0
	if r.Merchant.Name != "" && r.Merchant.Name != normalize.UnknownMerchant {
		score++
	}
	if r.Merchant.City != "" || r.Merchant.State != "" {
		score++
	}
	if r.Transaction.TotalAmount > 0 {
		score++
	}
	if len(r.Items) > 0 {
		score += 2
	}
	if r.Transaction.Date != nil {
		score++
	}
	for _, it := range r.Items {
		if it.StandardName != "" {
			score++
			break
		}
	}
	return score
}

// ConfidenceFor maps a score onto a confidence level.
func ConfidenceFor(score int) Confidence {
	switch {
	case score >= 5:
		return ConfidenceHigh
	case score >= 3:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
