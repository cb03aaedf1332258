package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/constants"
)

// weeks to months
const weekInMonths = 0.23

type ageRule struct {
	re    *regexp.Regexp
	apply func(m []string) (int, int)
}

const (
	yrs = `\s*(?:years?|yrs?)`
	mos = `\s*(?:months?|mos?)`
	sep = `\s*(?:-|to)\s*`
	num = `(\d+(?:\.\d+)?)`
	// keeps a range from starting inside "2.5" or "1/2"
	lead = `(?:^|[^\d./])`
)

// Tried in order; the first match wins.
var ageRules = []ageRule{
	// "6 weeks - 5 years"
	{regexp.MustCompile(`(\d+)\s*(?:weeks?|wks?)` + sep + num + yrs), func(m []string) (int, int) {
		return int(atof(m[1]) * weekInMonths), years(m[2])
	}},
	// "6 months - 5 years"
	{regexp.MustCompile(`(\d+)\s*(?:months?|mos?)` + sep + num + yrs), func(m []string) (int, int) {
		return atoi(m[1]), years(m[2])
	}},
	// "2 1/2 - 6 years", "2 - 5 1/2 years", "1 year - 5 years"
	{regexp.MustCompile(lead + `(\d+)(\s*1/2)?(?:` + yrs + `)?` + sep + `(\d+)(\s*1/2)?` + yrs), func(m []string) (int, int) {
		return halfYears(m[1], m[2]), halfYears(m[3], m[4])
	}},
	// "2.5 - 6 years", "3 to 5 years", "2 yrs to 12 yrs"
	{regexp.MustCompile(lead + num + `(?:` + yrs + `)?` + sep + num + yrs), func(m []string) (int, int) {
		return years(m[1]), years(m[2])
	}},
	// "infant - 6 years"
	{regexp.MustCompile(`infants?` + sep + num + yrs), func(m []string) (int, int) {
		return 0, years(m[1])
	}},
	// "18 - 36 months", "18 months - 36 months"
	{regexp.MustCompile(`(\d+)(?:` + mos + `)?` + sep + `(\d+)` + mos), func(m []string) (int, int) {
		return atoi(m[1]), atoi(m[2])
	}},
	// "5 years"
	{regexp.MustCompile(num + yrs), func(m []string) (int, int) {
		return 0, years(m[1])
	}},
	// "6 months"
	{regexp.MustCompile(`(\d+)\s*(?:months?|mos?)`), func(m []string) (int, int) {
		return 0, atoi(m[1])
	}},
}

// matched only when no numeric rule applies; several keywords widen the range.
var ageKeywords = []struct {
	keyword string
	rng     constants.AgeRange
}{
	{"infant", constants.AgeRange{Min: 0, Max: 24}},
	{"newborn", constants.AgeRange{Min: 0, Max: 24}},
	{"toddler", constants.AgeRange{Min: 12, Max: 36}},
	{"preschool", constants.AgeRange{Min: 24, Max: 60}},
	{"pre-k", constants.AgeRange{Min: 48, Max: 60}},
	{"school age", constants.AgeRange{Min: 60, Max: 156}},
	{"school-age", constants.AgeRange{Min: 60, Max: 156}},
}

// AgeRange parses free age text into months. Both results are nil when nothing
// could be parsed. When both are set, min <= max.
func AgeRange(raw string) (minMonths, maxMonths *int) {
	text := strings.ToLower(CollapseSpace(raw))
	text = strings.NewReplacer("–", "-", "—", "-", "½", " 1/2").Replace(text)
	if text == "" {
		return nil, nil
	}

	for _, rule := range ageRules {
		m := rule.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		lo, hi := rule.apply(m)
		if lo > hi {
			lo, hi = hi, lo
		}
		return &lo, &hi
	}

	found := false
	var out constants.AgeRange
	for _, k := range ageKeywords {
		if !strings.Contains(text, k.keyword) {
			continue
		}
		if !found {
			out = k.rng
			found = true
			continue
		}
		out.Min = min(out.Min, k.rng.Min)
		out.Max = max(out.Max, k.rng.Max)
	}
	if !found {
		return nil, nil
	}
	return &out.Min, &out.Max
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}

func years(s string) int {
	return int(atof(s) * 12)
}

func halfYears(whole, half string) int {
	n := atoi(whole) * 12
	if strings.TrimSpace(half) != "" {
		n += 6
	}
	return n
}
