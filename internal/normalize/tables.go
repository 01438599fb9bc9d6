package normalize

// usStates lists the 50 US state codes in the order they are searched.
var usStates = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA",
	"HI", "ID", "IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD",
	"MA", "MI", "MN", "MS", "MO", "MT", "NE", "NV", "NH", "NJ",
	"NM", "NY", "NC", "ND", "OH", "OK", "OR", "PA", "RI", "SC",
	"SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV", "WI", "WY",
}

// canadianProvinces lists the 13 province and territory codes.
var canadianProvinces = []string{
	"AB", "BC", "MB", "NB", "NL", "NT", "NS", "NU", "ON", "PE", "QC", "SK", "YT",
}

// stateCodes is the lookup order used when a code has to be found inside a
// longer string: US states first, then Canadian provinces.
var stateCodes = append(append([]string{}, usStates...), canadianProvinces...)

var stateCodeSet = func() map[string]struct{} {
	m := make(map[string]struct{}, len(stateCodes))
	for _, code := range stateCodes {
		m[code] = struct{}{}
	}
	return m
}()

// provinceName maps a spelled-out province (or a common abbreviation of it)
// to its code. Entries are tested in order, so longer names that contain a
// shorter one must come first.
type provinceName struct {
	name string
	code string
}

var provinceNames = []provinceName{
	{"ONTARIO", "ON"},
	{"ONT", "ON"},
	{"QUEBEC", "QC"},
	{"BRITISH COLUMBIA", "BC"},
	{"ALBERTA", "AB"},
	{"MANITOBA", "MB"},
	{"SASKATCHEWAN", "SK"},
	{"NOVA SCOTIA", "NS"},
	{"NEW BRUNSWICK", "NB"},
	{"NEWFOUNDLAND", "NL"},
	{"PRINCE EDWARD ISLAND", "PE"},
}

// merchantNames holds canonical spellings for merchants that plain title
// casing gets wrong. Keys are upper case.
var merchantNames = map[string]string{
	"TARGET":     "Target",
	"WALMART":    "Walmart",
	"COSTCO":     "Costco",
	"BESTBUY":    "Best Buy",
	"BEST BUY":   "Best Buy",
	"MCDONALD'S": "McDonald's",
	"MCDONALDS":  "McDonald's",
	"CVS":        "CVS",
	"WALGREENS":  "Walgreens",
}

// emptySentinels are values the AI uses to mean "not found".
var emptySentinels = map[string]struct{}{
	"":        {},
	"unknown": {},
	"none":    {},
	"null":    {},
}

// Category is one member of the closed set of line-item categories.
type Category struct {
	Name        string
	Description string
}

// DefaultCategory is assigned to items whose category is missing or unknown.
const DefaultCategory = "Other"

// UnknownMerchant is the merchant name used when none could be resolved.
const UnknownMerchant = "Unknown"

var categories = []Category{
	{"Electronics", "Electronic devices and accessories"},
	{"Groceries", "Food items and household consumables"},
	{"Clothing", "Apparel and fashion items"},
	{"Home & Garden", "Home improvement and gardening supplies"},
	{"Personal Care", "Health and beauty products"},
	{"Dining", "Restaurant meals and takeout"},
	{"Transportation", "Fuel, parking, and transit expenses"},
	{"Entertainment", "Movies, games, and recreational activities"},
	{"Health & Beauty", "Medical and cosmetic products"},
	{"Office Supplies", "Business and office materials"},
	{DefaultCategory, "Miscellaneous items"},
}

// Categories returns a copy of the category set in declared order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// CategoryNames returns the names of the category set in declared order.
func CategoryNames() []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
