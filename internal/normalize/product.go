package normalize

import (
	"strings"
	"unicode"
)

// productRule maps any of its keywords to a standard product name.
type productRule struct {
	group    string
	name     string
	keywords []string
}

// productRules are evaluated top to bottom; the first hit wins.
var productRules = []productRule{
	{"Electronics", "Television", []string{"tv", "television", "led", "lcd", "smart tv"}},
	{"Electronics", "Laptop", []string{"laptop", "notebook", "macbook"}},
	{"Electronics", "Phone", []string{"phone", "iphone", "android", "smartphone"}},
	{"Electronics", "Tablet", []string{"tablet", "ipad"}},
	{"Electronics", "Headphones", []string{"headphone", "earphone", "bluetooth", "airpods"}},
	{"Electronics", "Speaker", []string{"speaker", "soundbar"}},
	{"Electronics", "Cable", []string{"cable", "charger", "adapter"}},

	{"Personal Care", "Shampoo", []string{"shampoo"}},
	{"Personal Care", "Conditioner", []string{"conditioner"}},
	{"Personal Care", "Soap", []string{"soap", "body wash"}},
	{"Personal Care", "Toothpaste", []string{"toothpaste"}},
	{"Personal Care", "Deodorant", []string{"deodorant"}},

	{"Groceries", "Milk", []string{"milk"}},
	{"Groceries", "Bread", []string{"bread"}},
	{"Groceries", "Eggs", []string{"eggs"}},
	{"Groceries", "Cheese", []string{"cheese"}},
	{"Groceries", "Meat", []string{"chicken", "beef", "pork", "meat"}},
	{"Groceries", "Fruit", []string{"apple", "banana", "orange", "fruit"}},
	{"Groceries", "Vegetable", []string{"vegetable", "carrot", "potato", "onion"}},

	{"Clothing", "Shirt", []string{"shirt", "t-shirt", "tshirt"}},
	{"Clothing", "Pants", []string{"pants", "jeans", "trousers"}},
	{"Clothing", "Dress", []string{"dress"}},
	{"Clothing", "Shoes", []string{"shoes", "sneakers", "boots"}},

	{"Home & Garden", "Detergent", []string{"detergent", "laundry"}},
	{"Home & Garden", "Towel", []string{"towel"}},
	{"Home & Garden", "Pillow", []string{"pillow"}},
	{"Home & Garden", "Plant", []string{"plant", "flower"}},
}

// StandardizeProductName maps a receipt line description to a canonical
// product name. Keywords match at the start of a word, so "headphones"
// is not taken for "phone". Without a match the longest word of name is
// used.
func StandardizeProductName(name string) string {
	lower := strings.ToLower(strings.TrimSpace(name))
	if lower == "" {
		return ""
	}
	for _, rule := range productRules {
		for _, kw := range rule.keywords {
			if containsWordPrefix(lower, kw) {
				return rule.name
			}
		}
	}

	var longest string
	for _, w := range strings.Fields(name) {
		if len(w) > len(longest) {
			longest = w
		}
	}
	return CleanText(longest)
}

// ProductGroup returns the keyword group that standard belongs to, or "".
func ProductGroup(standard string) string {
	for _, rule := range productRules {
		if rule.name == standard {
			return rule.group
		}
	}
	return ""
}

func containsWordPrefix(s, kw string) bool {
	for i := 0; ; {
		j := strings.Index(s[i:], kw)
		if j < 0 {
			return false
		}
		at := i + j
		if at == 0 || !isWordRune(rune(s[at-1])) {
			return true
		}
		i = at + 1
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
