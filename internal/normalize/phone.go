package normalize

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

const defaultRegion = "US"

// Phone returns the E.164 form of a US number, or nil when raw does not parse
// to a valid US number.
func Phone(raw string) *string {
	digits := onlyDigits(raw)
	if digits == "" {
		return nil
	}

	var candidate string
	switch {
	case len(digits) == 10:
		candidate = "+1" + digits
	case len(digits) == 11 && digits[0] == '1':
		candidate = "+" + digits
	case len(digits) > 10:
		// may carry a country code or an extension; let the parser decide
		candidate = strings.TrimSpace(raw)
	default:
		return nil
	}

	num, err := phonenumbers.Parse(candidate, defaultRegion)
	if err != nil {
		return nil
	}
	if !phonenumbers.IsValidNumberForRegion(num, defaultRegion) {
		return nil
	}
	out := phonenumbers.Format(num, phonenumbers.E164)
	return &out
}

func onlyDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
