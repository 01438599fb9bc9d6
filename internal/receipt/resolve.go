package receipt

import (
	"fmt"

	"github.com/zombor/receipt-tracker/internal/analysis"
)

// MatchMerchant reports whether stored is the merchant observed on a
// receipt. Names must be equal; city and state must each be equal or blank
// on the stored side.
func MatchMerchant(stored *Merchant, observed analysis.Merchant) bool {
	if stored.Name != observed.Name {
		return false
	}
	if stored.City != "" && stored.City != observed.City {
		return false
	}
	if stored.State != "" && stored.State != observed.State {
		return false
	}
	return true
}

// matchRank orders candidate merchants: exact city and state beat blank
// stored fields.
func matchRank(stored *Merchant, observed analysis.Merchant) int {
	rank := 0
	if stored.City != "" && stored.City == observed.City {
		rank++
	}
	if stored.State != "" && stored.State == observed.State {
		rank++
	}
	return rank
}

// EnrichMerchant fills blank fields of stored from observed. It never
// overwrites a populated field and reports whether anything changed.
func EnrichMerchant(stored *Merchant, observed analysis.Merchant) bool {
	changed := false
	fill := func(dst *string, src string) {
		if *dst == "" && src != "" {
			*dst = src
			changed = true
		}
	}
	fill(&stored.Address, observed.Address)
	fill(&stored.City, observed.City)
	fill(&stored.State, observed.State)
	fill(&stored.ZipCode, observed.ZipCode)
	fill(&stored.Phone, observed.Phone)
	return changed
}

// newMerchant builds a merchant row from an observation.
func newMerchant(observed analysis.Merchant) *Merchant {
	return &Merchant{
		Name:    observed.Name,
		Address: observed.Address,
		City:    observed.City,
		State:   observed.State,
		ZipCode: observed.ZipCode,
		Phone:   observed.Phone,
	}
}

// Persist writes one validated receipt through tx: merchant, receipt row
// and items, in that order. It returns the new receipt id.
func Persist(tx Tx, r analysis.NormalizedReceipt, meta Meta) (uint64, error) {
	merchantID, err := tx.ResolveMerchant(r.Merchant)
	if err != nil {
		return 0, fmt.Errorf("resolving merchant: %w", err)
	}
	receiptID, err := tx.InsertReceipt(merchantID, r.Transaction, meta)
	if err != nil {
		return 0, fmt.Errorf("inserting receipt: %w", err)
	}
	if err := tx.InsertItems(receiptID, r.Items); err != nil {
		return 0, fmt.Errorf("inserting items: %w", err)
	}
	return receiptID, nil
}
