package rules

import (
	"strings"
	"time"
)

// npiPrefix is the ISO card-issuer prefix prepended to an NPI before the Luhn check
const npiPrefix = "80840"

// ValidNPI reports whether s is a 10-digit National Provider Identifier with a
// correct check digit
func ValidNPI(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) != 10 {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return luhnValid(npiPrefix + s)
}

// luhnValid runs the mod-10 check over a string of ASCII digits
func luhnValid(digits string) bool {
	sum := 0
	double := false
	for i := len(digits) - 1; i >= 0; i-- {
		d := int(digits[i] - '0')
		if double {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		double = !double
	}
	return sum%10 == 0
}

var dateLayouts = []string{"01/02/2006", "2006-01-02", "1/2/2006"}

// ValidDate reports whether s parses as a calendar date in one of the
// accepted layouts (MM/DD/YYYY or YYYY-MM-DD)
func ValidDate(s string) bool {
	_, ok := ParseDate(s)
	return ok
}

// ParseDate parses s using the accepted date layouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
