package receipt

import (
	"sort"

	"github.com/zombor/receipt-tracker/internal/normalize"
)

const summaryTop = 5

// Snapshot is every stored table, as loaded for reports.
type Snapshot struct {
	Receipts   []*Receipt
	Items      []*Item
	Merchants  []*Merchant
	Categories []*Category
}

// Summary is the database overview shown by the summary command.
type Summary struct {
	Receipts      int             `json:"receipts"`
	Items         int             `json:"items"`
	Merchants     int             `json:"merchants"`
	Categories    int             `json:"categories"`
	TotalSpending float64         `json:"total_spending"`
	TopLocations  []LocationSpend `json:"top_locations"`
	TopCategories []CategorySpend `json:"top_categories"`
	Recent        []RecentReceipt `json:"recent"`
}

// LocationSpend is spending grouped by merchant city and state.
type LocationSpend struct {
	City     string  `json:"city"`
	State    string  `json:"state"`
	Receipts int     `json:"receipts"`
	Total    float64 `json:"total"`
}

// CategorySpend is spending grouped by item category.
type CategorySpend struct {
	Name  string  `json:"name"`
	Items int     `json:"items"`
	Total float64 `json:"total"`
}

// RecentReceipt is one row of the recent receipts list.
type RecentReceipt struct {
	ID       uint64  `json:"id"`
	Merchant string  `json:"merchant"`
	Date     *string `json:"date"`
	Total    float64 `json:"total"`
}

// BuildSummary computes the overview from a snapshot.
func BuildSummary(snap *Snapshot) Summary {
	merchants := make(map[uint64]*Merchant, len(snap.Merchants))
	for _, m := range snap.Merchants {
		merchants[m.ID] = m
	}
	categories := make(map[uint64]string, len(snap.Categories))
	for _, c := range snap.Categories {
		categories[c.ID] = c.Name
	}

	s := Summary{
		Receipts:      len(snap.Receipts),
		Items:         len(snap.Items),
		Merchants:     len(snap.Merchants),
		Categories:    len(snap.Categories),
		TopLocations:  []LocationSpend{},
		TopCategories: []CategorySpend{},
		Recent:        []RecentReceipt{},
	}

	type place struct{ city, state string }
	byPlace := map[place]*LocationSpend{}
	totals := make([]float64, 0, len(snap.Receipts))
	for _, r := range snap.Receipts {
		totals = append(totals, r.TotalAmount)

		m, ok := merchants[r.MerchantID]
		if !ok || m.City == "" && m.State == "" {
			continue
		}
		key := place{m.City, m.State}
		ls, ok := byPlace[key]
		if !ok {
			ls = &LocationSpend{City: m.City, State: m.State}
			byPlace[key] = ls
		}
		ls.Receipts++
		ls.Total = normalize.Sum(ls.Total, r.TotalAmount)
	}
	s.TotalSpending = normalize.Sum(totals...)

	for _, ls := range byPlace {
		s.TopLocations = append(s.TopLocations, *ls)
	}
	sort.Slice(s.TopLocations, func(i, j int) bool {
		a, b := s.TopLocations[i], s.TopLocations[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.City != b.City {
			return a.City < b.City
		}
		return a.State < b.State
	})
	s.TopLocations = head(s.TopLocations, summaryTop)

	byCategory := map[string]*CategorySpend{}
	for _, it := range snap.Items {
		name, ok := categories[it.CategoryID]
		if !ok {
			name = normalize.DefaultCategory
		}
		cs, ok := byCategory[name]
		if !ok {
			cs = &CategorySpend{Name: name}
			byCategory[name] = cs
		}
		cs.Items++
		cs.Total = normalize.Sum(cs.Total, it.LineTotal)
	}
	for _, cs := range byCategory {
		s.TopCategories = append(s.TopCategories, *cs)
	}
	sort.Slice(s.TopCategories, func(i, j int) bool {
		a, b := s.TopCategories[i], s.TopCategories[j]
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		return a.Name < b.Name
	})
	s.TopCategories = head(s.TopCategories, summaryTop)

	recent := append([]*Receipt(nil), snap.Receipts...)
	sort.Slice(recent, func(i, j int) bool {
		if !recent[i].CreatedAt.Equal(recent[j].CreatedAt) {
			return recent[i].CreatedAt.After(recent[j].CreatedAt)
		}
		return recent[i].ID > recent[j].ID
	})
	for _, r := range head(recent, summaryTop) {
		name := normalize.UnknownMerchant
		if m, ok := merchants[r.MerchantID]; ok {
			name = m.Name
		}
		s.Recent = append(s.Recent, RecentReceipt{ID: r.ID, Merchant: name, Date: r.Date, Total: r.TotalAmount})
	}

	return s
}

func head[T any](s []T, n int) []T {
	if len(s) > n {
		return s[:n]
	}
	return s
}
