package normalize

import (
	"regexp"
	"strings"
)

// Location is the city, state and postal code of a merchant.
type Location struct {
	City    string
	State   string
	ZipCode string
}

// Complete reports whether every field is set.
func (l Location) Complete() bool {
	return l.City != "" && l.State != "" && l.ZipCode != ""
}

var (
	reCityCommaStateZip = regexp.MustCompile(`(?i)([^,]+),\s*([A-Z]{2})\s*(\d{5}(?:-\d{4})?)`)
	reCityStateZip      = regexp.MustCompile(`(?i)([^0-9,]+?)\s+([A-Z]{2})\s+(\d{5}(?:-\d{4})?)`)
	reZipToken          = regexp.MustCompile(`\b(\d{5}(?:-\d{4})?)\b`)
	reStateToken        = regexp.MustCompile(`\b([A-Z]{2})\b`)
)

// ResolveLocation fills the empty fields of known from a free-text address.
// Fields that are already set are never replaced.
func ResolveLocation(address string, known Location) Location {
	if address == "" || known.Complete() {
		return known
	}

	for _, re := range []*regexp.Regexp{reCityCommaStateZip, reCityStateZip} {
		for _, m := range re.FindAllStringSubmatch(address, -1) {
			state := strings.ToUpper(m[2])
			if !IsStateCode(state) {
				continue
			}
			return fill(known, Location{
				City:    CleanText(m[1]),
				State:   state,
				ZipCode: CleanZip(m[3]),
			})
		}
	}

	var found Location
	if m := reZipToken.FindStringSubmatch(address); m != nil {
		found.ZipCode = CleanZip(m[1])
	}
	for _, m := range reStateToken.FindAllStringSubmatch(address, -1) {
		if IsStateCode(m[1]) {
			found.State = m[1]
			break
		}
	}
	return fill(known, found)
}

func fill(known, found Location) Location {
	if known.City == "" {
		known.City = found.City
	}
	if known.State == "" {
		known.State = found.State
	}
	if known.ZipCode == "" {
		known.ZipCode = found.ZipCode
	}
	return known
}
