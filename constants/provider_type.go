package constants

import (
	"strings"
)

type ProviderType string

const (
	Daycare     ProviderType = "daycare"
	School      ProviderType = "school"
	Afterschool ProviderType = "afterschool"
	Camp        ProviderType = "camp"
)

var allProviderTypes = []ProviderType{
	Daycare,
	School,
	Afterschool,
	Camp,
}

// ProviderTypeStrings returns the stored enum values.
func ProviderTypeStrings() []string {
	result := make([]string, len(allProviderTypes))
	for i, t := range allProviderTypes {
		result[i] = string(t)
	}
	return result
}

// keyword groups in priority order; the first group with a hit wins.
var typeKeywords = []struct {
	Type     ProviderType
	Keywords []string
}{
	{Camp, []string{"camp", "summer"}},
	{School, []string{"school", "academy", "learning center", "pre-k", "prek", "head start", "headstart"}},
	{Afterschool, []string{"before", "after"}},
}

// ClassifyProviderType maps free-form type text onto the fixed enum.
// The bool is false when nothing matched and the daycare catch-all was used.
func ClassifyProviderType(input string) (ProviderType, bool) {
	normalized := strings.ToLower(strings.Join(strings.Fields(input), " "))
	if normalized == "" {
		return Daycare, false
	}

	for _, g := range typeKeywords {
		for _, kw := range g.Keywords {
			if strings.Contains(normalized, kw) {
				return g.Type, true
			}
		}
	}

	// exact enum values (e.g. an already-canonical "daycare")
	for _, t := range allProviderTypes {
		if normalized == string(t) {
			return t, true
		}
	}

	return Daycare, false
}

// AgeRange is an inclusive [Min, Max] range in months.
type AgeRange struct {
	Min int
	Max int
}

// FallbackAgeRange is the default range for a provider type when no age text parses.
func FallbackAgeRange(t ProviderType) AgeRange {
	switch t {
	case School:
		return AgeRange{Min: 24, Max: 144}
	case Afterschool:
		return AgeRange{Min: 60, Max: 144}
	case Camp:
		return AgeRange{Min: 60, Max: 156}
	default:
		return AgeRange{Min: 0, Max: 60}
	}
}
