package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

// Options carries the per-source defaults applied during normalization.
type Options struct {
	Source    constants.Source
	State     string
	SourceURL string
	AsOfDate  *time.Time
	// ForceType overrides classification when every row of a source has one type.
	ForceType constants.ProviderType
	// Draft marks imported profiles as not public.
	Draft bool
}

// ProfileFor returns the default options for a known source.
func ProfileFor(source constants.Source) Options {
	switch source {
	case constants.SourceNJDCF:
		asOf := time.Date(2025, time.August, 1, 0, 0, 0, 0, time.UTC)
		return Options{
			Source:    source,
			State:     "NJ",
			SourceURL: "https://www.nj.gov/dcf/about/divisions/ol/NJDCF-Licensed-Child-Care-Centers.pdf",
			AsOfDate:  &asOf,
		}
	case constants.SourceNJDOHCamps:
		return Options{
			Source:    source,
			State:     "NJ",
			SourceURL: "https://www.childcarenj.gov/Parents/Licensing/camps",
			ForceType: constants.Camp,
		}
	case constants.SourceNYCDOHMH:
		return Options{
			Source:    source,
			State:     "NY",
			SourceURL: "https://data.cityofnewyork.us/resource/dsg6-ifza.json",
		}
	default:
		return Options{Source: source}
	}
}

// Normalizer turns raw records into canonical ones. It performs no I/O.
type Normalizer struct {
	opts Options
}

func New(opts Options) *Normalizer {
	return &Normalizer{opts: opts}
}

var (
	reState      = regexp.MustCompile(`^[A-Za-z]{2}$`)
	reYear       = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reCountyWord = regexp.MustCompile(`(?i)\s+county$`)
)

// Normalize maps raw onto a CanonicalRecord. Fields that fail to normalize are left nil.
func (n *Normalizer) Normalize(raw entity.RawRecord) entity.CanonicalRecord {
	rec := entity.CanonicalRecord{
		Name:            Name(raw.Get(entity.FieldName)),
		Address:         Address(raw.Get(entity.FieldAddress)),
		City:            Title(raw.Get(entity.FieldCity)),
		State:           n.state(raw.Get(entity.FieldState)),
		ZipCode:         Zip(raw.Get(entity.FieldZip)),
		County:          nonEmpty(reCountyWord.ReplaceAllString(Title(raw.Get(entity.FieldCounty)), "")),
		Borough:         nonEmpty(Title(raw.Get(entity.FieldBorough))),
		Phone:           Phone(raw.Get(entity.FieldPhone)),
		Email:           Email(raw.Get(entity.FieldEmail)),
		Website:         Website(raw.Get(entity.FieldWebsite)),
		Capacity:        Capacity(raw.Get(entity.FieldCapacity)),
		LicenseNumber:   nonEmpty(CollapseSpace(raw.Get(entity.FieldLicenseNumber))),
		CampID:          nonEmpty(CollapseSpace(raw.Get(entity.FieldCampID))),
		CampOwner:       nonEmpty(CollapseSpace(raw.Get(entity.FieldCampOwner))),
		CampDirector:    nonEmpty(CollapseSpace(raw.Get(entity.FieldCampDirector))),
		HealthDirector:  nonEmpty(CollapseSpace(raw.Get(entity.FieldHealthDirector))),
		Evaluation:      nonEmpty(CollapseSpace(raw.Get(entity.FieldEvaluation))),
		ReportURL:       nonEmpty(raw.Get(entity.FieldReportURL)),
		Description:     nonEmpty(CollapseSpace(raw.Get(entity.FieldDescription))),
		AgesServedRaw:   nonEmpty(CollapseSpace(raw.Get(entity.FieldAges))),
		Source:          n.opts.Source,
		SourceURL:       nonEmpty(n.opts.SourceURL),
		SourceAsOfDate:  n.opts.AsOfDate,
		IsVerifiedByGov: n.opts.Source.IsGovernment(),
		IsProfilePublic: !n.opts.Draft,
		GeocodeStatus:   constants.GeocodeNone,
		Provenance:      raw.Provenance,
	}
	rec.InspectionYear = inspectionYear(raw)

	// type first: the age fallback depends on it
	rec.ProviderType, rec.TypeClassified = n.providerType(raw)
	rec.AgeMinMonths, rec.AgeMaxMonths = AgeRange(raw.Get(entity.FieldAges))
	fallback := constants.FallbackAgeRange(rec.ProviderType)
	rec.AgeRangeMin, rec.AgeRangeMax = fallback.Min, fallback.Max
	if rec.AgeMinMonths != nil && rec.AgeMaxMonths != nil {
		rec.AgeRangeMin, rec.AgeRangeMax = *rec.AgeMinMonths, *rec.AgeMaxMonths
	}

	rec.NaturalKey = NaturalKeyFor(rec)
	rec.Slug = Slug(rec.Name, rec.City, rec.State)
	return rec
}

func (n *Normalizer) state(raw string) string {
	s := strings.ToUpper(CollapseSpace(raw))
	if reState.MatchString(s) {
		return s
	}
	return strings.ToUpper(n.opts.State)
}

// providerType reports false when nothing classified the record and the
// catch-all default was used.
func (n *Normalizer) providerType(raw entity.RawRecord) (constants.ProviderType, bool) {
	if n.opts.ForceType != "" {
		return n.opts.ForceType, true
	}
	if text := raw.Get(entity.FieldProviderType); text != "" {
		return constants.ClassifyProviderType(text)
	}
	// no type column: the name is the only signal
	return constants.ClassifyProviderType(raw.Get(entity.FieldName))
}

// NaturalKeyFor picks license number, then camp ID, then a name/address/city composite.
func NaturalKeyFor(rec entity.CanonicalRecord) entity.NaturalKey {
	switch {
	case rec.LicenseNumber != nil:
		return entity.NaturalKey{Kind: entity.KeyLicense, Value: *rec.LicenseNumber}
	case rec.CampID != nil:
		return entity.NaturalKey{Kind: entity.KeyCamp, Value: *rec.CampID}
	case rec.Name != "":
		parts := []string{rec.Name, rec.Address, rec.City}
		for i := range parts {
			parts[i] = strings.ToLower(parts[i])
		}
		return entity.NaturalKey{Kind: entity.KeyComposite, Value: strings.Join(parts, "|")}
	}
	return entity.NaturalKey{}
}

// Name collapses whitespace and title-cases names that arrive in all caps.
func Name(raw string) string {
	s := CollapseSpace(raw)
	if s != "" && s == strings.ToUpper(s) && s != strings.ToLower(s) {
		return Title(s)
	}
	return s
}

// Website returns a URL with a scheme, or nil.
func Website(raw string) *string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.ContainsAny(s, " \t") {
		return nil
	}
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		s = "http://" + s
	}
	return &s
}

func inspectionYear(raw entity.RawRecord) *int {
	for _, f := range []string{entity.FieldInspectionYear, entity.FieldInspectionDate} {
		if m := reYear.FindString(raw.Get(f)); m != "" {
			y, err := strconv.Atoi(m)
			if err == nil {
				return &y
			}
		}
	}
	return nil
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
