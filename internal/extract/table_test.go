package extract

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

var dcfHeader = []string{"#", "County", "License Number", "Provider Type", "Provider Name", "Provider Address 1", "Provider City", "Provider Zip Code", "Provider Phone Number", "Provider Email Address", "Ages Served", "Licensed Capacity"}

func dcfRow(n, name, city string) []string {
	return []string{n, "ESSEX", "NJ" + n, "Child Care Center", name, "12 Main St", city, "07102", "(201) 555-1234", "", "2 1/2 - 6 Years", "40"}
}

func TestHeaderField(t *testing.T) {
	spec := DefaultTableSpec()
	cases := map[string]string{
		"Provider  Name":     entity.FieldName,
		"PROVIDER ZIP CODE":  entity.FieldZip,
		"Zip/Postal":         entity.FieldZip,
		"Licensed\nCapacity": entity.FieldCapacity,
		"Provider Adress":    entity.FieldAddress,
		"Provider Cty":       entity.FieldCity,
		"Notes":              "",
		"":                   "",
	}
	for in, want := range cases {
		assert.Equal(t, want, spec.HeaderField(in), in)
	}
}

func TestExtractTableWithHeaders(t *testing.T) {
	pages := []TablePage{
		{Page: 1, Rows: [][]string{dcfHeader, dcfRow("1", "Sunshine Center", "Newark"), dcfRow("2", "Acorn Academy", "Newark")}},
		{Page: 2, Rows: [][]string{
			dcfHeader, // repeated header
			dcfRow("3", "", ""),
			dcfRow("4", "Lakeside Kids", "Montclair"),
			{"", "", "", "", "", "", "", "", "", "", "", ""},
		}},
		{Page: 3, Rows: [][]string{dcfRow("5", "Bright Start", "Orange")}},
	}

	res := NewExtractor(nil).ExtractTable("dcf.pdf", pages, DefaultTableSpec())
	require.Len(t, res.Records, 4)
	assert.Equal(t, 2, res.Skipped, "page 2 header and the row without name or city")

	first := res.Records[0]
	assert.Equal(t, "Sunshine Center", first.Get(entity.FieldName))
	assert.Equal(t, "NJ1", first.Get(entity.FieldLicenseNumber))
	assert.Equal(t, "40", first.Get(entity.FieldCapacity))
	assert.True(t, first.Has(entity.FieldEmail))
	_, ok := first.Lookup(entity.FieldEmail)
	assert.False(t, ok, "empty cell is recorded as null")
	assert.Equal(t, entity.Provenance{Document: "dcf.pdf", Page: 1, Row: 1}, first.Provenance)

	// page 3 has no header but reuses the mapping from page 1
	last := res.Records[3]
	assert.Equal(t, "Bright Start", last.Get(entity.FieldName))
	assert.Equal(t, 3, last.Provenance.Page)
	assert.Equal(t, 0, last.Provenance.Row)
}

func TestExtractTableRepeatedHeaderInsideData(t *testing.T) {
	pages := []TablePage{{Page: 1, Rows: [][]string{
		dcfHeader,
		dcfRow("1", "Sunshine Center", "Newark"),
		{"", "County", "License Number", "Provider Type", "Provider Name", "", "", "", "", "", "", ""},
		dcfRow("2", "County Line Daycare", "Newark"),
	}}}
	res := NewExtractor(nil).ExtractTable("dcf.pdf", pages, DefaultTableSpec())
	require.Len(t, res.Records, 2)
	assert.Equal(t, "County Line Daycare", res.Records[1].Get(entity.FieldName))
	assert.Equal(t, 1, res.Skipped)
}

func TestExtractTablePositionalFallback(t *testing.T) {
	// garbled header text: only the county keyword survives
	header := []string{"", "County", "Lic", "Typ", "Prov", "Addr1", "Cty", "Zp", "Ph", "Em", "Ag", "Cap"}
	pages := []TablePage{{Page: 1, Rows: [][]string{header, dcfRow("1", "Sunshine Center", "Newark")}}}

	spec := DefaultTableSpec()
	spec.HeaderKeywords = []string{"county", "cap"}
	res := NewExtractor(nil).ExtractTable("dcf.pdf", pages, spec)
	require.Len(t, res.Records, 1)
	rec := res.Records[0]
	assert.Equal(t, "Sunshine Center", rec.Get(entity.FieldName))
	assert.Equal(t, "12 Main St", rec.Get(entity.FieldAddress))
	assert.Equal(t, "Newark", rec.Get(entity.FieldCity))
	assert.False(t, rec.Has(""), "row number column is skipped")
}

func TestExtractTableNoHeaderNarrowRows(t *testing.T) {
	pages := []TablePage{{Page: 1, Rows: [][]string{{"a", "b"}, {"c", "d"}}}}
	res := NewExtractor(nil).ExtractTable("narrow.csv", pages, DefaultTableSpec())
	assert.True(t, res.ZeroYield())
	assert.NotEmpty(t, res.Warnings)
}

const nycJSON = `[
  {"centername": "Happy Kids NYC", "building": "120", "street": "W 10TH ST", "borough": "MANHATTAN",
   "zipcode": "10011", "phone": "212-555-0199", "agerange": "2 YEARS - 5 YEARS", "childcaretype": "Child Care - Pre School",
   "permitnumber": "PR-777", "maximumcapacity": 45},
  {"center_name": "Little Learners", "address": "9 Court St", "zip_code": 11201, "phone_number": null,
   "age_range": "Infant - 5 years", "center_type": "Child Care - Infants/Toddlers", "dc_id": "DC-1"},
  {"facilitytype": "School Based Child Care"}
]`

func TestExtractObjectsNYCAliases(t *testing.T) {
	var objs []map[string]any
	require.NoError(t, json.Unmarshal([]byte(nycJSON), &objs))

	res := NewExtractor(nil).ExtractObjects("nyc.json", objs, NYCObjectSpec())
	require.Len(t, res.Records, 2)
	assert.Equal(t, 1, res.Skipped)

	a := res.Records[0]
	assert.Equal(t, "Happy Kids NYC", a.Get(entity.FieldName))
	assert.Equal(t, "120 W 10TH ST", a.Get(entity.FieldAddress))
	assert.Equal(t, "10011", a.Get(entity.FieldZip))
	assert.Equal(t, "45", a.Get(entity.FieldCapacity))
	assert.Equal(t, "PR-777", a.Get(entity.FieldLicenseNumber))
	assert.Equal(t, "MANHATTAN", a.Get(entity.FieldBorough))
	assert.False(t, a.Has(entity.FieldWebsite))

	b := res.Records[1]
	assert.Equal(t, "Little Learners", b.Get(entity.FieldName))
	assert.Equal(t, "9 Court St", b.Get(entity.FieldAddress))
	assert.Equal(t, "11201", b.Get(entity.FieldZip))
	assert.Equal(t, "DC-1", b.Get(entity.FieldLicenseNumber))
	assert.True(t, b.Has(entity.FieldPhone))
	_, ok := b.Lookup(entity.FieldPhone)
	assert.False(t, ok, "present but null alias")
}

const campsIndex = `<html><body><div id="content">
<h2>Atlantic County</h2>
<ul>
  <li>1001 Camp Sunshine <a href="/camps/1001-2023.pdf">2023</a> <a href="/camps/1001-2024.pdf">2024</a></li>
  <li>1002 Ocean Breeze Day Camp [no report]</li>
</ul>
<h2>Bergen County</h2>
<p>Bergen 2040 Forest Friends 2022</p>
<p><a href="docs/2040_2022.pdf">Report (2022)</a></p>
<ul><li>1001 Camp Sunshine <a href="/camps/1001-2024.pdf">2024</a></li></ul>
</div></body></html>`

func TestParseCampIndex(t *testing.T) {
	entries, err := NewExtractor(nil).ParseCampIndex(strings.NewReader(campsIndex), "https://www.childcarenj.gov/Parents/Licensing/camps")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	sun := entries[0]
	assert.Equal(t, "Atlantic", sun.County)
	assert.Equal(t, "1001", sun.CampID)
	assert.Equal(t, "Camp Sunshine", sun.Name)
	latest, ok := sun.Latest()
	require.True(t, ok)
	assert.Equal(t, 2024, latest.Year)
	assert.Equal(t, "https://www.childcarenj.gov/camps/1001-2024.pdf", latest.URL)

	forest := entries[1]
	assert.Equal(t, "Bergen", forest.County)
	assert.Equal(t, "Forest Friends", forest.Name)
	require.Len(t, forest.Reports, 1)
	assert.Equal(t, "https://www.childcarenj.gov/Parents/Licensing/docs/2040_2022.pdf", forest.Reports[0].URL)

	rec := sun.Record("index.html", 0)
	assert.Equal(t, "1001", rec.Get(entity.FieldCampID))
	assert.Equal(t, "2024", rec.Get(entity.FieldInspectionYear))
	assert.Equal(t, latest.URL, rec.Get(entity.FieldReportURL))
}
