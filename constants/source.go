package constants

import "strings"

// Source identifies the dataset a row was imported from.
type Source string

const (
	SourceNJDCF      Source = "NJ_DCF"
	SourceNJDOHCamps Source = "NJ_DOH_YOUTH_CAMP"
	SourceNYCDOHMH   Source = "NYC_DOHMH"
	SourceCSVImport  Source = "CSV_IMPORT"
)

var allSources = []Source{SourceNJDCF, SourceNJDOHCamps, SourceNYCDOHMH, SourceCSVImport}

// SourceStrings returns the stored enum values.
func SourceStrings() []string {
	out := make([]string, len(allSources))
	for i, s := range allSources {
		out[i] = string(s)
	}
	return out
}

// IsGovernment reports whether rows from s are marked verified by a government source.
func (s Source) IsGovernment() bool {
	return s == SourceNJDCF || s == SourceNJDOHCamps || s == SourceNYCDOHMH
}

// ParseSource accepts either the stored value or the short CLI name.
func ParseSource(input string) (Source, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))

	aliases := map[string]Source{
		"nj-dcf":   SourceNJDCF,
		"njdcf":    SourceNJDCF,
		"nj-camps": SourceNJDOHCamps,
		"camps":    SourceNJDOHCamps,
		"nyc":      SourceNYCDOHMH,
		"csv":      SourceCSVImport,
	}
	if s, ok := aliases[normalized]; ok {
		return s, true
	}
	for _, s := range allSources {
		if normalized == strings.ToLower(string(s)) {
			return s, true
		}
	}
	return "", false
}
