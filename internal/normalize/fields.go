// Package normalize holds the pure field cleaners used to turn loosely
// structured receipt data into canonical values. Nothing in this package
// returns an error: unusable input maps to a documented default.
package normalize

import (
	"encoding/json"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	reNonDigit = regexp.MustCompile(`\D`)
	reNumber   = regexp.MustCompile(`\d+\.?\d*`)
)

// IsEmpty reports whether s is blank or one of the "not found" sentinels.
func IsEmpty(s string) bool {
	_, ok := emptySentinels[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// CleanText trims s and converts it to proper case. Sentinel values become
// the empty string and well-known merchant names get their canonical
// spelling.
func CleanText(s string) string {
	if IsEmpty(s) {
		return ""
	}
	s = strings.Join(strings.Fields(s), " ")
	if canonical, ok := merchantNames[strings.ToUpper(s)]; ok {
		return canonical
	}
	// Casers are stateful, so one is built per call.
	return cases.Title(language.English).String(s)
}

// CleanState returns a US state or Canadian province code found in s, or
// the empty string.
func CleanState(s string) string {
	state := strings.ToUpper(strings.TrimSpace(s))
	if state == "" {
		return ""
	}
	if IsStateCode(state) {
		return state
	}

	// A code embedded in a longer value ("TX 78701", "CA."). Only whole
	// two-letter words count, so "ONTARIO" is not read as "AR".
	words := strings.FieldsFunc(state, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, code := range stateCodes {
		for _, w := range words {
			if w == code {
				return code
			}
		}
	}

	for _, p := range provinceNames {
		if strings.Contains(state, p.name) {
			return p.code
		}
	}
	return ""
}

// IsStateCode reports whether code is exactly one of the known codes.
func IsStateCode(code string) bool {
	_, ok := stateCodeSet[code]
	return ok
}

// CleanZip returns a 5 digit or ZIP+4 code, or the empty string.
func CleanZip(s string) string {
	digits := reNonDigit.ReplaceAllString(s, "")
	switch len(digits) {
	case 5:
		return digits
	case 9:
		return digits[:5] + "-" + digits[5:]
	}
	return ""
}

// CleanPhone formats North American numbers as (XXX) XXX-XXXX. Anything
// else is returned trimmed so that foreign numbers are not lost.
func CleanPhone(s string) string {
	if IsEmpty(s) {
		return ""
	}
	digits := reNonDigit.ReplaceAllString(s, "")
	if len(digits) == 11 && digits[0] == '1' {
		digits = digits[1:]
	}
	if len(digits) == 10 {
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
	}
	return strings.TrimSpace(s)
}

// ParseAmount converts v into an amount rounded to cents. Numbers are used
// as is; strings contribute their first numeric run with thousands
// separators removed. Everything else is zero.
func ParseAmount(v any) float64 {
	switch t := v.(type) {
	case float64:
		return roundCents(t)
	case float32:
		return roundCents(float64(t))
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return roundCents(f)
	case string:
		m := reNumber.FindString(strings.ReplaceAll(t, ",", ""))
		if m == "" {
			return 0
		}
		d, err := decimal.NewFromString(strings.TrimSuffix(m, "."))
		if err != nil {
			return 0
		}
		return d.Round(2).InexactFloat64()
	}
	return 0
}

// ParseQuantity returns v when it is a positive number and 1 otherwise.
func ParseQuantity(v any) float64 {
	var q float64
	switch t := v.(type) {
	case float64:
		q = t
	case float32:
		q = float64(t)
	case int:
		q = float64(t)
	case int64:
		q = float64(t)
	case json.Number:
		q, _ = t.Float64()
	case string:
		q, _ = strconv.ParseFloat(strings.TrimSpace(t), 64)
	case bool:
		if t {
			q = 1
		}
	}
	if q <= 0 || math.IsNaN(q) || math.IsInf(q, 0) {
		return 1
	}
	return q
}

// CleanCategory maps s onto the closed category set, defaulting to Other.
func CleanCategory(s string) string {
	cleaned := CleanText(s)
	for _, c := range categories {
		if strings.EqualFold(c.Name, cleaned) {
			return c.Name
		}
	}
	return DefaultCategory
}

func roundCents(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// Money rounds f to cents.
func Money(f float64) float64 {
	return roundCents(f)
}

// LineTotal returns price × quantity rounded to cents.
func LineTotal(price, quantity float64) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity)).Round(2).InexactFloat64()
}

// Sum adds amounts without accumulating binary floating point error.
func Sum(amounts ...float64) float64 {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(decimal.NewFromFloat(a))
	}
	return total.Round(2).InexactFloat64()
}

// Subtract returns a − b rounded to cents.
func Subtract(a, b float64) float64 {
	return decimal.NewFromFloat(a).Sub(decimal.NewFromFloat(b)).Round(2).InexactFloat64()
}
