package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

// Extractor turns source text, tables and objects into raw records.
// A field that fails to match is left out; extraction never fails on a single field.
type Extractor struct {
	Logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{Logger: logger}
}

var (
	noiseValues = map[string]struct{}{
		"":     {},
		"n/a":  {},
		"na":   {},
		"none": {},
		"null": {},
		"-":    {},
		"--":   {},
		"tbd":  {},
	}
	reBlankLine     = regexp.MustCompile(`^[_\-.\s]+$`)
	reTrailingSpace = regexp.MustCompile(`[ \t]+\n`)
)

// IsNoise reports whether v is a placeholder rather than data.
func IsNoise(v string) bool {
	s := strings.ToLower(strings.TrimSpace(v))
	if _, ok := noiseValues[s]; ok {
		return true
	}
	return reBlankLine.MatchString(s)
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// cleanText normalizes line endings and trailing blanks; column gaps are kept.
func cleanText(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.ReplaceAll(text, "\u00a0", " ")
	return reTrailingSpace.ReplaceAllString(text, "\n")
}

// ExtractText applies spec to text. For each field the patterns are tried in
// order and the first non-noise match wins.
func (e *Extractor) ExtractText(text string, spec *FieldSpec, prov entity.Provenance) entity.RawRecord {
	rec := entity.NewRawRecord(prov)
	if spec == nil {
		return rec
	}
	text = cleanText(text)

	for _, field := range spec.FieldNames() {
		for _, p := range spec.Fields[field] {
			m := p.re.FindStringSubmatch(text)
			if m == nil {
				continue
			}
			v := collapseSpace(p.pick(m))
			if IsNoise(v) {
				continue
			}
			rec.Set(field, v)
			break
		}
	}

	e.Logger.Debug("extract.text",
		"spec", spec.Name, "document", prov.Document, "page", prov.Page,
		"fields", rec.Len(), "of", len(spec.Fields),
	)
	return rec
}

// ExtractDocument extracts one record from all pages of a document.
// A document without text or without any matched field is a zero-yield result.
func (e *Extractor) ExtractDocument(document string, pages []string, spec *FieldSpec) Result {
	res := Result{Document: document}
	text := strings.Join(pages, "\n")
	if strings.TrimSpace(text) == "" {
		res.warnf("no text extracted")
		return res
	}
	rec := e.ExtractText(text, spec, entity.Provenance{Document: document, Page: 1})
	if rec.Len() == 0 {
		res.warnf("no labeled fields found")
		return res
	}
	res.Records = append(res.Records, rec)
	return res
}

// MissingFields lists which of required are absent or null in rec.
func MissingFields(rec entity.RawRecord, required ...string) []string {
	var missing []string
	for _, f := range required {
		if rec.Get(f) == "" {
			missing = append(missing, f)
		}
	}
	return missing
}
