package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.AmericanEnglish)

var streetAbbreviations = []struct {
	re   *regexp.Regexp
	full string
}{
	{regexp.MustCompile(`\bAve\b\.?`), "Avenue"},
	{regexp.MustCompile(`\bRd\b\.?`), "Road"},
	{regexp.MustCompile(`\bDr\b\.?`), "Drive"},
	{regexp.MustCompile(`\bBlvd\b\.?`), "Boulevard"},
	{regexp.MustCompile(`\bCt\b\.?`), "Court"},
	{regexp.MustCompile(`\bLn\b\.?`), "Lane"},
	{regexp.MustCompile(`\bPl\b\.?`), "Place"},
}

var (
	reStWord    = regexp.MustCompile(`^St\.?([,;]?)$`)
	reZip5      = regexp.MustCompile(`(?:^|\D)(\d{5})(?:\D|$)`)
	reFirstInt  = regexp.MustCompile(`\d+`)
	reOrdinalUp = regexp.MustCompile(`(\d)(St|Nd|Rd|Th)\b`)
)

// CollapseSpace trims s and collapses internal whitespace runs to one space.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Title collapses whitespace and title-cases s.
func Title(s string) string {
	s = CollapseSpace(s)
	if s == "" {
		return ""
	}
	s = titleCaser.String(strings.ToLower(s))
	// "1St" -> "1st" so ordinals are not mistaken for Street
	return reOrdinalUp.ReplaceAllStringFunc(s, strings.ToLower)
}

// Address title-cases raw and expands street-type abbreviations on word boundaries.
func Address(raw string) string {
	s := expandSt(Title(raw))
	for _, a := range streetAbbreviations {
		s = a.re.ReplaceAllString(s, a.full)
	}
	return s
}

// expandSt expands "St" to "Street" except where it reads as "Saint": the first
// word after the house number followed by another word, as in "1 St. Marks Pl".
func expandSt(s string) string {
	words := strings.Split(s, " ")
	for i, w := range words {
		m := reStWord.FindStringSubmatch(w)
		if m == nil {
			continue
		}
		leading := i == 0 || (i == 1 && startsWithDigit(words[0]))
		if leading && m[1] == "" && i+1 < len(words) && !startsWithDigit(words[i+1]) {
			continue
		}
		words[i] = "Street" + m[1]
	}
	return strings.Join(words, " ")
}

func startsWithDigit(w string) bool {
	return w != "" && w[0] >= '0' && w[0] <= '9'
}

// Zip returns the first 5-digit run of raw, or nil.
func Zip(raw string) *string {
	m := reZip5.FindStringSubmatch(raw)
	if m == nil {
		return nil
	}
	return &m[1]
}

// Capacity returns the first integer in raw, or nil.
func Capacity(raw string) *int {
	m := reFirstInt.FindString(raw)
	if m == "" {
		return nil
	}
	n := 0
	for _, r := range m {
		n = n*10 + int(r-'0')
		if n > 1_000_000 {
			return nil
		}
	}
	return &n
}
