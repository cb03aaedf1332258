package entity

import (
	"sort"
	"strings"
)

// Canonical field names emitted by the extractors.
const (
	FieldName           = "name"
	FieldAddress        = "address"
	FieldCity           = "city"
	FieldState          = "state"
	FieldZip            = "zip"
	FieldCounty         = "county"
	FieldBorough        = "borough"
	FieldPhone          = "phone"
	FieldEmail          = "email"
	FieldWebsite        = "website"
	FieldLicenseNumber  = "license_number"
	FieldCampID         = "camp_id"
	FieldProviderType   = "provider_type"
	FieldAges           = "ages"
	FieldCapacity       = "capacity"
	FieldCampOwner      = "camp_owner"
	FieldCampDirector   = "camp_director"
	FieldHealthDirector = "health_director"
	FieldEvaluation     = "evaluation"
	FieldInspector      = "inspector"
	FieldInspectionDate = "inspection_date"
	FieldInspectionYear = "inspection_year"
	FieldReportURL      = "report_url"
	FieldDescription    = "description"
)

// Provenance locates a raw record in its source document. It is diagnostic only.
type Provenance struct {
	Document string `json:"document,omitempty"`
	Page     int    `json:"page,omitempty"`
	Row      int    `json:"row,omitempty"`
}

// RawRecord is a loosely-typed extraction result.
// A missing key means nothing matched; a nil value means the field matched but is null;
// an empty string means it matched empty.
type RawRecord struct {
	Fields     map[string]*string `json:"fields"`
	Provenance Provenance         `json:"provenance"`
}

// NewRawRecord returns an empty record with the given provenance.
func NewRawRecord(prov Provenance) RawRecord {
	return RawRecord{Fields: map[string]*string{}, Provenance: prov}
}

// Set stores a value for field.
func (r *RawRecord) Set(field, value string) {
	if r.Fields == nil {
		r.Fields = map[string]*string{}
	}
	v := value
	r.Fields[field] = &v
}

// SetNull records that field was present but null.
func (r *RawRecord) SetNull(field string) {
	if r.Fields == nil {
		r.Fields = map[string]*string{}
	}
	r.Fields[field] = nil
}

// Has reports whether field is present, even if null.
func (r RawRecord) Has(field string) bool {
	_, ok := r.Fields[field]
	return ok
}

// Lookup returns the value of field; ok is false when absent or null.
func (r RawRecord) Lookup(field string) (string, bool) {
	v, ok := r.Fields[field]
	if !ok || v == nil {
		return "", false
	}
	return *v, true
}

// Get returns the trimmed value of field, or "" when absent or null.
func (r RawRecord) Get(field string) string {
	v, _ := r.Lookup(field)
	return strings.TrimSpace(v)
}

// Keys returns the present field names in sorted order.
func (r RawRecord) Keys() []string {
	keys := make([]string, 0, len(r.Fields))
	for k := range r.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the number of present fields.
func (r RawRecord) Len() int { return len(r.Fields) }
