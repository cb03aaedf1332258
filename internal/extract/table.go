package extract

import (
	"regexp"
	"sort"
	"strings"

	"github.com/antzucaro/matchr"

	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

// HeaderRule maps headers containing Substr to Field.
type HeaderRule struct {
	Substr string
	Field  string
}

// TableSpec describes how to read a table-shaped source.
type TableSpec struct {
	// Synonyms maps normalized header text to a canonical field.
	Synonyms map[string]string
	// Contains is tried in order when no synonym matches exactly.
	Contains []HeaderRule
	// FuzzyThreshold is the minimum Jaro-Winkler similarity against a synonym; 0 disables.
	FuzzyThreshold float64
	// Positional gives the canonical field per column index ("" skips the column).
	Positional []string
	// PositionalWidth is the minimum row width for the positional layout to apply.
	PositionalWidth int
	// Required fields; if the header does not yield all of them the positional layout is used.
	Required []string
	// HeaderKeywords mark a row as a header row.
	HeaderKeywords []string
	// RepeatKeywords mark a data row as a repeated header.
	RepeatKeywords []string
}

// DefaultTableSpec reads the NJ DCF licensed centers table and similar exports.
func DefaultTableSpec() TableSpec {
	return TableSpec{
		Synonyms: map[string]string{
			"county":                 entity.FieldCounty,
			"license number":         entity.FieldLicenseNumber,
			"license no":             entity.FieldLicenseNumber,
			"license":                entity.FieldLicenseNumber,
			"permit number":          entity.FieldLicenseNumber,
			"provider type":          entity.FieldProviderType,
			"facility type":          entity.FieldProviderType,
			"program type":           entity.FieldProviderType,
			"type":                   entity.FieldProviderType,
			"provider name":          entity.FieldName,
			"center name":            entity.FieldName,
			"facility name":          entity.FieldName,
			"program name":           entity.FieldName,
			"name":                   entity.FieldName,
			"provider address 1":     entity.FieldAddress,
			"provider address":       entity.FieldAddress,
			"street address":         entity.FieldAddress,
			"address 1":              entity.FieldAddress,
			"address":                entity.FieldAddress,
			"provider city":          entity.FieldCity,
			"city":                   entity.FieldCity,
			"municipality":           entity.FieldCity,
			"state":                  entity.FieldState,
			"provider zip code":      entity.FieldZip,
			"zip code":               entity.FieldZip,
			"zipcode":                entity.FieldZip,
			"zip":                    entity.FieldZip,
			"provider phone number":  entity.FieldPhone,
			"phone number":           entity.FieldPhone,
			"phone":                  entity.FieldPhone,
			"telephone":              entity.FieldPhone,
			"provider email address": entity.FieldEmail,
			"email address":          entity.FieldEmail,
			"email":                  entity.FieldEmail,
			"e mail":                 entity.FieldEmail,
			"ages served":            entity.FieldAges,
			"age range":              entity.FieldAges,
			"ages":                   entity.FieldAges,
			"licensed capacity":      entity.FieldCapacity,
			"maximum capacity":       entity.FieldCapacity,
			"capacity":               entity.FieldCapacity,
			"website":                entity.FieldWebsite,
			"borough":                entity.FieldBorough,
		},
		Contains: []HeaderRule{
			{"zip", entity.FieldZip},
			{"phone", entity.FieldPhone},
			{"mail", entity.FieldEmail},
			{"capacity", entity.FieldCapacity},
			{"age", entity.FieldAges},
			{"city", entity.FieldCity},
			{"address", entity.FieldAddress},
			{"license", entity.FieldLicenseNumber},
			{"type", entity.FieldProviderType},
			{"county", entity.FieldCounty},
			{"name", entity.FieldName},
		},
		FuzzyThreshold: 0.92,
		Positional: []string{
			"", // row number
			entity.FieldCounty,
			entity.FieldLicenseNumber,
			entity.FieldProviderType,
			entity.FieldName,
			entity.FieldAddress,
			entity.FieldCity,
			entity.FieldZip,
			entity.FieldPhone,
			entity.FieldEmail,
			entity.FieldAges,
			entity.FieldCapacity,
		},
		PositionalWidth: 10,
		Required:        []string{entity.FieldName, entity.FieldAddress, entity.FieldCity},
		HeaderKeywords:  []string{"county", "license", "provider", "name", "address"},
		RepeatKeywords:  []string{"license number", "provider type"},
	}
}

var rePunct = regexp.MustCompile(`[^a-z0-9#]+`)

// NormalizeHeader lowercases, strips punctuation and collapses whitespace.
func NormalizeHeader(h string) string {
	s := strings.ToLower(h)
	s = rePunct.ReplaceAllString(s, " ")
	return strings.TrimSpace(strings.Join(strings.Fields(s), " "))
}

// HeaderField maps one header cell to a canonical field, or "".
func (s TableSpec) HeaderField(header string) string {
	h := NormalizeHeader(header)
	if h == "" {
		return ""
	}
	if f, ok := s.Synonyms[h]; ok {
		return f
	}
	for _, r := range s.Contains {
		if strings.Contains(h, r.Substr) {
			return r.Field
		}
	}
	if s.FuzzyThreshold <= 0 {
		return ""
	}

	keys := make([]string, 0, len(s.Synonyms))
	for k := range s.Synonyms {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best, bestScore := "", 0.0
	for _, k := range keys {
		if score := matchr.JaroWinkler(h, k, false); score > bestScore {
			best, bestScore = k, score
		}
	}
	if bestScore >= s.FuzzyThreshold {
		return s.Synonyms[best]
	}
	return ""
}

// MapHeaders maps column indices to canonical fields. The first column claiming a
// field keeps it. ok is false when a required field is unmapped.
func (s TableSpec) MapHeaders(headers []string) (mapping map[int]string, ok bool) {
	mapping = map[int]string{}
	seen := map[string]bool{}
	for i, h := range headers {
		f := s.HeaderField(h)
		if f == "" || seen[f] {
			continue
		}
		mapping[i] = f
		seen[f] = true
	}
	for _, r := range s.Required {
		if !seen[r] {
			return mapping, false
		}
	}
	return mapping, true
}

func (s TableSpec) positional() map[int]string {
	m := map[int]string{}
	for i, f := range s.Positional {
		if f != "" {
			m[i] = f
		}
	}
	return m
}

// isHeaderRow needs two distinct header keywords so a data row mentioning
// "county" is not taken for a header.
func (s TableSpec) isHeaderRow(row []string) bool {
	text := strings.ToLower(strings.Join(row, " "))
	hits := 0
	for _, kw := range s.HeaderKeywords {
		if strings.Contains(text, kw) {
			hits++
		}
	}
	return hits >= 2
}

// isRepeatedHeader reports a header row repeated inside the table: a row carrying a
// repeat keyword, or with two or more cells that are themselves header labels.
func (s TableSpec) isRepeatedHeader(row []string) bool {
	text := strings.ToLower(strings.Join(row, " "))
	for _, kw := range s.RepeatKeywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	labels := 0
	for _, c := range row {
		if _, ok := s.Synonyms[NormalizeHeader(c)]; ok {
			labels++
		}
	}
	return labels >= 2
}

func nonBlankCells(row []string) int {
	n := 0
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			n++
		}
	}
	return n
}

// ExtractTable reads table pages into raw records. The header mapping found on
// the first header row carries over to later pages.
func (e *Extractor) ExtractTable(document string, pages []TablePage, spec TableSpec) Result {
	res := Result{Document: document}
	var mapping map[int]string

	for _, page := range pages {
		if len(page.Rows) == 0 {
			continue
		}
		start := 0
		if spec.isHeaderRow(page.Rows[0]) {
			start = 1
			if mapping != nil {
				res.Skipped++
			} else {
				m, ok := spec.MapHeaders(page.Rows[0])
				if !ok && len(page.Rows[0]) >= spec.PositionalWidth && len(spec.Positional) > 0 {
					e.Logger.Warn("header mapping incomplete, using positional layout",
						"document", document, "page", page.Page, "mapped", len(m))
					m = spec.positional()
				} else if !ok {
					res.warnf("page %d: header is missing required columns", page.Page)
				}
				mapping = m
			}
		}
		if mapping == nil {
			if len(page.Rows[0]) < spec.PositionalWidth || len(spec.Positional) == 0 {
				res.warnf("page %d: no header row and row width %d below positional layout", page.Page, len(page.Rows[0]))
				continue
			}
			mapping = spec.positional()
		}

		for i := start; i < len(page.Rows); i++ {
			row := page.Rows[i]
			if nonBlankCells(row) == 0 {
				continue
			}
			if spec.isRepeatedHeader(row) {
				res.Skipped++
				continue
			}
			rec := entity.NewRawRecord(entity.Provenance{Document: document, Page: page.Page, Row: i})
			for col, field := range mapping {
				if col >= len(row) {
					continue
				}
				v := collapseSpace(row[col])
				if IsNoise(v) {
					rec.SetNull(field)
					continue
				}
				rec.Set(field, v)
			}
			if rec.Get(entity.FieldName) == "" && rec.Get(entity.FieldCity) == "" {
				res.Skipped++
				continue
			}
			res.Records = append(res.Records, rec)
		}
	}

	e.Logger.Info("extract.table",
		"document", document, "pages", len(pages),
		"records", len(res.Records), "skipped", res.Skipped,
	)
	return res
}
