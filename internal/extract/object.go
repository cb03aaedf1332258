package extract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

// ObjectSpec maps canonical fields to ordered alias keys. An alias of the form
// "building+street" joins the present parts with a space.
type ObjectSpec map[string][]string

// NYCObjectSpec covers the historical key names of the NYC DOHMH child care dataset.
func NYCObjectSpec() ObjectSpec {
	return ObjectSpec{
		entity.FieldName:          {"centername", "center_name", "legalname", "legal_name"},
		entity.FieldAddress:       {"building+street", "address"},
		entity.FieldCity:          {"city"},
		entity.FieldState:         {"state"},
		entity.FieldZip:           {"zipcode", "zip_code"},
		entity.FieldBorough:       {"borough"},
		entity.FieldPhone:         {"phone", "phone_number"},
		entity.FieldWebsite:       {"url", "website"},
		entity.FieldAges:          {"agerange", "age_range"},
		entity.FieldProviderType:  {"childcaretype", "center_type", "facilitytype"},
		entity.FieldLicenseNumber: {"permitnumber", "license_number", "dc_id"},
		entity.FieldCapacity:      {"maximumcapacity", "maximum_capacity"},
	}
}

// CSVObjectSpec covers the column names of manual CSV imports.
func CSVObjectSpec() ObjectSpec {
	return ObjectSpec{
		entity.FieldName:          {"name", "provider_name", "center_name"},
		entity.FieldAddress:       {"address", "street_address", "address_1"},
		entity.FieldCity:          {"city"},
		entity.FieldState:         {"state"},
		entity.FieldZip:           {"zip", "zip_code", "zipcode"},
		entity.FieldCounty:        {"county"},
		entity.FieldPhone:         {"phone", "phone_number"},
		entity.FieldEmail:         {"email", "email_address"},
		entity.FieldWebsite:       {"website", "url"},
		entity.FieldAges:          {"ages", "ages_served", "age_range"},
		entity.FieldProviderType:  {"type", "provider_type"},
		entity.FieldLicenseNumber: {"license_number", "license"},
		entity.FieldCapacity:      {"capacity", "licensed_capacity"},
		entity.FieldDescription:   {"description"},
	}
}

// ExtractObject probes each field's aliases in order and keeps the first present,
// non-empty value. A field whose aliases are present but all empty is recorded as null.
func (e *Extractor) ExtractObject(obj map[string]any, spec ObjectSpec, prov entity.Provenance) entity.RawRecord {
	rec := entity.NewRawRecord(prov)
	lower := make(map[string]any, len(obj))
	for k, v := range obj {
		lower[strings.ToLower(strings.TrimSpace(k))] = v
	}

	fields := make([]string, 0, len(spec))
	for f := range spec {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	for _, field := range fields {
		present := false
		for _, alias := range spec[field] {
			v, ok := probe(lower, alias)
			if !ok {
				continue
			}
			present = true
			if IsNoise(v) {
				continue
			}
			rec.Set(field, v)
			break
		}
		if present && !rec.Has(field) {
			rec.SetNull(field)
		}
	}
	return rec
}

// ExtractObjects runs ExtractObject over a list; records without name and city are dropped.
func (e *Extractor) ExtractObjects(document string, objs []map[string]any, spec ObjectSpec) Result {
	res := Result{Document: document}
	for i, obj := range objs {
		rec := e.ExtractObject(obj, spec, entity.Provenance{Document: document, Row: i})
		if rec.Get(entity.FieldName) == "" && rec.Get(entity.FieldCity) == "" {
			res.Skipped++
			continue
		}
		res.Records = append(res.Records, rec)
	}
	e.Logger.Info("extract.objects",
		"document", document, "objects", len(objs),
		"records", len(res.Records), "skipped", res.Skipped,
	)
	return res
}

// probe resolves one alias. ok is false when none of its keys are present.
func probe(obj map[string]any, alias string) (string, bool) {
	parts := strings.Split(alias, "+")
	var values []string
	found := false
	for _, p := range parts {
		v, ok := obj[strings.TrimSpace(p)]
		if !ok {
			continue
		}
		found = true
		if s := scalarString(v); s != "" {
			values = append(values, s)
		}
	}
	return collapseSpace(strings.Join(values, " ")), found
}

func scalarString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case fmt.Stringer:
		return t.String()
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}
