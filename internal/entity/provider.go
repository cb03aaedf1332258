package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/provider-ingest/constants"
)

// KeyKind identifies which attribute a natural key was derived from.
type KeyKind string

const (
	KeyLicense   KeyKind = "license"
	KeyCamp      KeyKind = "camp"
	KeyComposite KeyKind = "composite"
)

// NaturalKey identifies a provider across import runs.
type NaturalKey struct {
	Kind  KeyKind `json:"kind"`
	Value string  `json:"value"`
}

// String is the stored form, e.g. "license:NJ123".
func (k NaturalKey) String() string {
	if k.Value == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", k.Kind, k.Value)
}

// IsZero reports whether no key could be derived.
func (k NaturalKey) IsZero() bool { return k.Value == "" }

// Strong reports whether the key comes from a government identifier.
func (k NaturalKey) Strong() bool {
	return !k.IsZero() && (k.Kind == KeyLicense || k.Kind == KeyCamp)
}

// CanonicalRecord is a normalized provider ready for reconciliation.
type CanonicalRecord struct {
	NaturalKey NaturalKey `json:"natural_key"`
	Slug       string     `json:"slug"`

	Name    string  `json:"name"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
	Website *string `json:"website,omitempty"`

	Address       string                  `json:"address"`
	City          string                  `json:"city"`
	State         string                  `json:"state"`
	ZipCode       *string                 `json:"zip_code,omitempty"`
	County        *string                 `json:"county,omitempty"`
	Borough       *string                 `json:"borough,omitempty"`
	Lat           *float64                `json:"lat,omitempty"`
	Lng           *float64                `json:"lng,omitempty"`
	GeocodeStatus constants.GeocodeStatus `json:"geocode_status"`

	ProviderType constants.ProviderType `json:"provider_type"`
	// TypeClassified is false when ProviderType is only the catch-all default.
	TypeClassified bool    `json:"type_classified"`
	AgesServedRaw  *string `json:"ages_served_raw,omitempty"`
	AgeMinMonths   *int    `json:"age_min_months,omitempty"`
	AgeMaxMonths   *int    `json:"age_max_months,omitempty"`
	AgeRangeMin    int     `json:"age_range_min"`
	AgeRangeMax    int     `json:"age_range_max"`
	Capacity       *int    `json:"capacity,omitempty"`

	LicenseNumber  *string `json:"license_number,omitempty"`
	CampID         *string `json:"camp_id,omitempty"`
	CampOwner      *string `json:"camp_owner,omitempty"`
	CampDirector   *string `json:"camp_director,omitempty"`
	HealthDirector *string `json:"health_director,omitempty"`
	Evaluation     *string `json:"evaluation,omitempty"`
	InspectionYear *int    `json:"doh_inspection_year,omitempty"`
	ReportURL      *string `json:"doh_report_url,omitempty"`

	// Owned by other subsystems; only written when a source supplies them.
	Description  *string  `json:"description,omitempty"`
	MonthlyPrice *float64 `json:"monthly_price,omitempty"`

	Source          constants.Source `json:"source"`
	SourceURL       *string          `json:"source_url,omitempty"`
	SourceAsOfDate  *time.Time       `json:"source_as_of_date,omitempty"`
	IsVerifiedByGov bool             `json:"is_verified_by_gov"`
	IsProfilePublic bool             `json:"is_profile_public"`

	Provenance Provenance `json:"provenance"`
}

// StoredProvider is a providers row as read back from the store.
type StoredProvider struct {
	ID              uuid.UUID
	NaturalKey      string
	Slug            string
	Name            string
	Address         string
	City            string
	State           string
	ZipCode         *string
	County          *string
	Borough         *string
	Phone           *string
	Email           *string
	Website         string
	Description     string
	MonthlyPrice    float64
	ProviderType    string
	AgeMinMonths    *int
	AgeMaxMonths    *int
	AgeRangeMin     int
	AgeRangeMax     int
	Capacity        *int
	LicenseNumber   *string
	CampID          *string
	Evaluation      *string
	InspectionYear  *int
	ReportURL       *string
	Source          string
	SourceURL       *string
	SourceAsOfDate  *time.Time
	GeocodeStatus   string
	Lat             *float64
	Lng             *float64
	IsVerifiedByGov bool
	IsProfilePublic bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// KeyKind returns the kind prefix of the stored natural key.
func (p StoredProvider) KeyKind() KeyKind {
	kind, _, _ := strings.Cut(p.NaturalKey, ":")
	return KeyKind(kind)
}
