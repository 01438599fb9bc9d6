package normalize

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	isoDate = "2006-01-02"
	isoTime = "15:04:05"
)

var (
	reDateLabel = regexp.MustCompile(`(?i)^\s*(?:receipt\s+date|date)\s*:?\s*`)
	reTimeLabel = regexp.MustCompile(`(?i)^\s*(?:receipt\s+time|time)\s*:?\s*`)
)

// dateRule turns one regexp match into a calendar date. The rules are tried
// in order and the first match that builds a real date wins.
type dateRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) (time.Time, bool)
}

var dateRules = []dateRule{
	{
		name:    "MM/DD/YYYY",
		pattern: regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{2,4})`),
		build: func(m []string) (time.Time, bool) {
			return calendarDate(expandYear(m[3]), atoi(m[1]), atoi(m[2]))
		},
	},
	{
		name:    "YYYY-MM-DD",
		pattern: regexp.MustCompile(`(\d{4})-(\d{1,2})-(\d{1,2})`),
		build: func(m []string) (time.Time, bool) {
			return calendarDate(atoi(m[1]), atoi(m[2]), atoi(m[3]))
		},
	},
	{
		name:    "DD/MM/YYYY",
		pattern: regexp.MustCompile(`(\d{1,2})/(\d{1,2})/(\d{4})`),
		build: func(m []string) (time.Time, bool) {
			if t, ok := calendarDate(atoi(m[3]), atoi(m[2]), atoi(m[1])); ok {
				return t, true
			}
			return calendarDate(atoi(m[3]), atoi(m[1]), atoi(m[2]))
		},
	},
	{
		name:    "Month DD, YYYY",
		pattern: regexp.MustCompile(`([A-Za-z]+)\.?\s+(\d{1,2}),?\s+(\d{4})`),
		build: func(m []string) (time.Time, bool) {
			month, ok := monthNumber(m[1])
			if !ok {
				return time.Time{}, false
			}
			return calendarDate(atoi(m[3]), month, atoi(m[2]))
		},
	},
	{
		name:    "DD-MM-YYYY",
		pattern: regexp.MustCompile(`(\d{1,2})[-.](\d{1,2})[-.](\d{4})`),
		build: func(m []string) (time.Time, bool) {
			return calendarDate(atoi(m[3]), atoi(m[2]), atoi(m[1]))
		},
	},
	{
		name:    "YYYYMMDD",
		pattern: regexp.MustCompile(`(?:^|\D)(\d{8})(?:\D|$)`),
		build: func(m []string) (time.Time, bool) {
			s := m[1]
			return calendarDate(atoi(s[:4]), atoi(s[4:6]), atoi(s[6:]))
		},
	},
}

// ParseDate finds a date in s and returns it as YYYY-MM-DD. The boolean is
// false when no rule produced a valid calendar date.
func ParseDate(s string) (string, bool) {
	if IsEmpty(s) {
		return "", false
	}
	s = reDateLabel.ReplaceAllString(strings.TrimSpace(s), "")
	for _, rule := range dateRules {
		for _, m := range rule.pattern.FindAllStringSubmatch(s, -1) {
			if t, ok := rule.build(m); ok {
				return t.Format(isoDate), true
			}
		}
	}
	return "", false
}

// timeRule turns one regexp match into hours, minutes and seconds.
type timeRule struct {
	name    string
	pattern *regexp.Regexp
	build   func(m []string) (int, int, int, bool)
}

// 12-hour forms come first so that "5:32 PM" is not read as 05:32.
var timeRules = []timeRule{
	{
		name:    "HH:MM[:SS] AM/PM",
		pattern: regexp.MustCompile(`(?i)(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([ap])\.?m(?:\.|\b)`),
		build: func(m []string) (int, int, int, bool) {
			h, min := atoi(m[1]), atoi(m[2])
			sec := 0
			if m[3] != "" {
				sec = atoi(m[3])
			}
			if h < 1 || h > 12 {
				return 0, 0, 0, false
			}
			h %= 12
			if strings.EqualFold(m[4], "p") {
				h += 12
			}
			return h, min, sec, validClock(h, min, sec)
		},
	},
	{
		name:    "HH:MM:SS",
		pattern: regexp.MustCompile(`(\d{1,2}):(\d{2}):(\d{2})`),
		build: func(m []string) (int, int, int, bool) {
			h, min, sec := atoi(m[1]), atoi(m[2]), atoi(m[3])
			return h, min, sec, validClock(h, min, sec)
		},
	},
	{
		name:    "HH:MM",
		pattern: regexp.MustCompile(`(\d{1,2}):(\d{2})`),
		build: func(m []string) (int, int, int, bool) {
			h, min := atoi(m[1]), atoi(m[2])
			return h, min, 0, validClock(h, min, 0)
		},
	},
}

// ParseTime finds a clock time in s and returns it as HH:MM:SS. The rules
// run in order 12-hour with AM/PM, then HH:MM:SS, then HH:MM. The meridiem
// must end its word, so "12:30 AMEX" reads as 12:30:00.
func ParseTime(s string) (string, bool) {
	if IsEmpty(s) {
		return "", false
	}
	s = reTimeLabel.ReplaceAllString(strings.TrimSpace(s), "")
	for _, rule := range timeRules {
		for _, m := range rule.pattern.FindAllStringSubmatch(s, -1) {
			if h, min, sec, ok := rule.build(m); ok {
				return fmt.Sprintf("%02d:%02d:%02d", h, min, sec), true
			}
		}
	}
	return "", false
}

func calendarDate(year, month, day int) (time.Time, bool) {
	if year < 1 || year > 9999 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, false
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes out-of-range days, e.g. Feb 30 becomes Mar 2.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, false
	}
	return t, true
}

func validClock(h, m, s int) bool {
	return h >= 0 && h < 24 && m >= 0 && m < 60 && s >= 0 && s < 60
}

// expandYear widens a two-digit year. Any width other than two or four
// gives 0, which no calendar date accepts.
func expandYear(s string) int {
	y := atoi(s)
	switch len(s) {
	case 2:
		if y < 50 {
			return 2000 + y
		}
		return 1900 + y
	case 4:
		return y
	}
	return 0
}

var months = map[string]int{
	"january": 1, "february": 2, "march": 3, "april": 4, "may": 5, "june": 6,
	"july": 7, "august": 8, "september": 9, "october": 10, "november": 11, "december": 12,
	"sept": 9,
}

func monthNumber(name string) (int, bool) {
	name = strings.ToLower(name)
	if m, ok := months[name]; ok {
		return m, true
	}
	if len(name) == 3 {
		for full, m := range months {
			if strings.HasPrefix(full, name) {
				return m, true
			}
		}
	}
	return 0, false
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return -1
	}
	return n
}
