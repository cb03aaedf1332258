package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/geocode"
	"github.com/joseph-ayodele/provider-ingest/internal/reconcile"
	"github.com/joseph-ayodele/provider-ingest/internal/repository"
	"github.com/joseph-ayodele/provider-ingest/internal/source"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// pdfRunner serves canned pdftotext output keyed by file name.
type pdfRunner struct {
	text  map[string]string
	fail  map[string]error
	calls []string
}

func (r *pdfRunner) Run(_ context.Context, _ string, args ...string) ([]byte, []byte, error) {
	name := filepath.Base(args[len(args)-2])
	r.calls = append(r.calls, name)
	if err := r.fail[name]; err != nil {
		return nil, []byte("Syntax Error: Couldn't read xref table"), err
	}
	return []byte(r.text[name]), nil, nil
}

type fakeGeocoder struct {
	calls int
}

func (g *fakeGeocoder) Geocode(_ context.Context, addr geocode.Address) geocode.Result {
	g.calls++
	if addr.City == "Newark" {
		lat, lng := 40.7357, -74.1724
		return geocode.Result{Lat: &lat, Lng: &lng, Status: constants.GeocodeOK}
	}
	return geocode.Result{Status: constants.GeocodeNone}
}

func newStore(t *testing.T) repository.ProviderStore {
	t.Helper()
	ctx := context.Background()
	db, err := repository.OpenSQLite(ctx, "", quiet)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quiet) })
	require.NoError(t, repository.EnsureSchema(ctx, db, quiet))
	return repository.NewProviderStore(db, quiet)
}

func newPipeline(t *testing.T, opts Options, runner source.Runner, geo geocode.Geocoder, store repository.ProviderStore) *Pipeline {
	t.Helper()
	var pdf *source.PDFText
	if runner != nil {
		pdf = source.NewPDFText(common.PDFConfig{}, quiet).WithRunner(runner)
	}
	var up *reconcile.Upserter
	if store != nil {
		up = reconcile.NewUpserter(store, reconcile.Options{FallbackMatch: true, DryRun: opts.DryRun}, quiet)
	}
	p, err := New(opts, pdf, geo, up, quiet)
	require.NoError(t, err)
	return p
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const providersCSV = `Name,Address,City,State,Zip,Phone,Email,Type,Ages,License Number,Capacity
Sunshine Center,12 Main St.,newark,NJ,07102,201-555-1234,info@sunshine.org,Child Care Center,2 1/2 - 6 years,NJ100,45
Acorn Academy,9 Elm Ave,Orange,NJ,07050,,,Preschool Academy,infant - 5 years,NJ200,60
Little Sprouts,,Trenton,NJ,08608,,,,,,
`

func TestRunCSVIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "providers.csv", providersCSV)
	store := newStore(t)
	p := newPipeline(t, Options{Source: constants.SourceCSVImport}, nil, nil, store)
	ctx := context.Background()

	first, err := p.Run(ctx, Input{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, first.Documents)
	assert.Equal(t, 3, first.Extracted)
	assert.Equal(t, 3, first.Normalized)
	assert.Equal(t, 2, first.Valid)
	assert.Equal(t, 2, first.Inserted)
	assert.Equal(t, 1, first.Errors, "record without address reaches the store and fails there")
	assert.NotEmpty(t, first.RunID)
	require.Len(t, first.Records, 3)
	assert.Equal(t, constants.StateNew, first.Records[0].State)
	assert.Equal(t, "license:NJ100", first.Records[0].Key)
	assert.Equal(t, constants.StateError, first.Records[2].State)
	assert.False(t, first.OK())

	second, err := p.Run(ctx, Input{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Updated)

	st, err := store.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Total)
	assert.Equal(t, 0, st.Verified)
	assert.Equal(t, 2, st.BySource[string(constants.SourceCSVImport)])

	got, err := store.GetByNaturalKey(ctx, "license:NJ200")
	require.NoError(t, err)
	assert.Equal(t, "school", got.ProviderType)
	assert.Equal(t, "Orange", got.City)
}

func TestRunSkipInvalidPolicy(t *testing.T) {
	path := writeFile(t, t.TempDir(), "providers.csv", providersCSV)
	store := newStore(t)
	p := newPipeline(t, Options{Source: constants.SourceCSVImport, Policy: constants.PolicySkipInvalid}, nil, nil, store)

	rep, err := p.Run(context.Background(), Input{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Skipped)
	assert.Equal(t, 2, rep.Inserted)
	assert.Equal(t, 0, rep.Errors)
	assert.True(t, rep.OK())
	assert.Equal(t, StateSkipped, rep.Records[2].State)
	assert.False(t, rep.Records[2].Valid)
	require.NotEmpty(t, rep.Messages)
	assert.Contains(t, rep.Messages[0], "Little Sprouts")
	assert.Contains(t, rep.Messages[0], "address")
}

const dcfPage1 = `                 NJDCF Licensed Child Care Centers
#   County   License Number   Provider Type   Provider Name   Provider Address 1   Provider City   Provider Zip Code   Provider Phone Number   Provider Email Address   Ages Served   Licensed Capacity
1   Essex   NJ100   Child Care Center   Sunshine Center   12 Main St   Newark   07102   201-555-1234   info@sunshine.org   2 1/2 - 6 Years   45
2   Essex   NJ101   Before and After School Camp   Kids Club   40 Park Ave   Newark   07104   973-555-0100   N/A   5 - 12 Years   30
`

const dcfPage2 = `3   Mercer   NJ300   Child Care Center   Capitol Kids   1 State St   Trenton   08608   609-555-0199   kids@capitol.org   Infant - 5 Years   80
#   County   License Number   Provider Type   Provider Name   Provider Address 1   Provider City   Provider Zip Code   Provider Phone Number   Provider Email Address   Ages Served   Licensed Capacity
                                                                    Page 2 of 2
`

func TestRunNJDCFFromPDF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "centers.pdf", "")
	writeFile(t, dir, "blank.pdf", "")
	writeFile(t, dir, "notes.txt", "ignored")
	runner := &pdfRunner{text: map[string]string{
		"centers.pdf": dcfPage1 + "\f" + dcfPage2 + "\f",
		"blank.pdf":   "\f\f",
	}}
	geo := &fakeGeocoder{}
	store := newStore(t)
	p := newPipeline(t, Options{Source: constants.SourceNJDCF}, runner, geo, store)

	rep, err := p.Run(context.Background(), Input{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, []string{"blank.pdf", "centers.pdf"}, runner.calls)
	assert.Equal(t, 2, rep.Documents)
	assert.Equal(t, []string{filepath.Join(dir, "blank.pdf")}, rep.ZeroYield)
	assert.Equal(t, 3, rep.Extracted)
	assert.Equal(t, 1, rep.Dropped, "repeated header")
	assert.Equal(t, 3, rep.Inserted)
	assert.Equal(t, 3, geo.calls)
	assert.Equal(t, 2, rep.Geocoded)

	ctx := context.Background()
	club, err := store.GetByNaturalKey(ctx, "license:NJ101")
	require.NoError(t, err)
	assert.Equal(t, "camp", club.ProviderType)
	assert.Nil(t, club.Email)
	assert.Equal(t, "OK", club.GeocodeStatus)
	require.NotNil(t, club.Lat)
	assert.InDelta(t, 40.7357, *club.Lat, 1e-9)
	assert.True(t, club.IsVerifiedByGov)
	assert.Equal(t, "NJ", club.State)

	capitol, err := store.GetByNaturalKey(ctx, "license:NJ300")
	require.NoError(t, err)
	assert.Equal(t, "NONE", capitol.GeocodeStatus)
	assert.Nil(t, capitol.Lat)
	assert.Equal(t, 2, rep.Records[2].Page)
}

func TestRunContinuesPastUnreadableDocument(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a-broken.pdf", "")
	writeFile(t, dir, "b-centers.pdf", "")
	runner := &pdfRunner{
		text: map[string]string{"b-centers.pdf": dcfPage1},
		fail: map[string]error{"a-broken.pdf": errors.New("exit status 1")},
	}
	p := newPipeline(t, Options{Source: constants.SourceNJDCF}, runner, nil, newStore(t))

	rep, err := p.Run(context.Background(), Input{Path: dir})
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 2, rep.Inserted)
	assert.False(t, rep.OK())
	require.NotEmpty(t, rep.Messages)
	assert.Contains(t, rep.Messages[0], "a-broken.pdf")
	assert.Contains(t, rep.Messages[0], "xref")
}

const campsIndexPage = `<html><body><div id="content">
<h2>Atlantic County</h2>
<ul>
  <li>1001 Camp Sunshine <a href="/camps/1001-2023.pdf">2023</a> <a href="/camps/1001-2024.pdf">2024</a></li>
  <li>1002 Ocean Breeze Day Camp <a href="/camps/1002-2024.pdf">2024</a></li>
</ul>
</div></body></html>`

const sunshineReport = `NEW JERSEY DEPARTMENT OF HEALTH
YOUTH CAMP INSPECTION REPORT

CAMP ID: 1001                      COUNTY: Atlantic
CAMP NAME: Camp Sunshine
STREET ADDRESS: 45 Lakeview Rd     CITY: Hammonton
ZIP: 08037
PHONE NUMBER: (609) 555-0142       E-MAIL: Info@CampSunshine.org
CAMP OWNER: Sunshine LLC
CAMP DIRECTOR NAME: Jane Doe
EVALUATION: Satisfactory
INSPECTOR NAME: R. Smith           INSPECTION DATE: 07/15/2024
`

func TestRunCampsMergesIndexAndReports(t *testing.T) {
	dir := t.TempDir()
	index := writeFile(t, dir, "camps.html", campsIndexPage)
	reports := filepath.Join(dir, "reports")
	require.NoError(t, os.Mkdir(reports, 0o755))
	writeFile(t, reports, "camp-1001-2024.pdf", "")
	writeFile(t, reports, "9999.pdf", "")
	runner := &pdfRunner{text: map[string]string{"camp-1001-2024.pdf": sunshineReport}}
	store := newStore(t)
	p := newPipeline(t, Options{Source: constants.SourceNJDOHCamps, Policy: constants.PolicySkipInvalid}, runner, nil, store)

	rep, err := p.Run(context.Background(), Input{Path: reports, IndexPath: index})
	require.NoError(t, err)
	assert.Equal(t, []string{"camp-1001-2024.pdf"}, runner.calls)
	assert.Equal(t, 2, rep.Documents)
	assert.Equal(t, 2, rep.Extracted)
	assert.Equal(t, 1, rep.Inserted)
	assert.Equal(t, 1, rep.Skipped, "camp without a downloaded report has no address")
	assert.Empty(t, rep.ZeroYield)

	got, err := store.GetByNaturalKey(context.Background(), "camp:1001")
	require.NoError(t, err)
	assert.Equal(t, "Camp Sunshine", got.Name)
	assert.Equal(t, "45 Lakeview Road", got.Address)
	assert.Equal(t, "Hammonton", got.City)
	assert.Equal(t, "camp", got.ProviderType)
	assert.Equal(t, "Satisfactory", *got.Evaluation)
	assert.Equal(t, 2024, *got.InspectionYear)
	assert.Equal(t, "https://www.childcarenj.gov/camps/1001-2024.pdf", *got.ReportURL)
	assert.Equal(t, "+16095550142", *got.Phone)
	assert.Equal(t, "info@campsunshine.org", *got.Email)
}

func TestRunCampsPicksReportOfIndexYear(t *testing.T) {
	dir := t.TempDir()
	index := writeFile(t, dir, "camps.html", campsIndexPage)
	reports := filepath.Join(dir, "reports")
	require.NoError(t, os.Mkdir(reports, 0o755))
	writeFile(t, reports, "1001-2024.pdf", "")
	writeFile(t, reports, "camp-1001-2023.pdf", "")
	writeFile(t, reports, "camp-2024.pdf", "")
	older := strings.Replace(sunshineReport, "EVALUATION: Satisfactory", "EVALUATION: Unsatisfactory", 1)
	runner := &pdfRunner{text: map[string]string{
		"1001-2024.pdf":      sunshineReport,
		"camp-1001-2023.pdf": older,
		"camp-2024.pdf":      older,
	}}
	store := newStore(t)
	p := newPipeline(t, Options{Source: constants.SourceNJDOHCamps, Policy: constants.PolicySkipInvalid}, runner, nil, store)

	_, err := p.Run(context.Background(), Input{Path: reports, IndexPath: index})
	require.NoError(t, err)
	assert.Equal(t, []string{"1001-2024.pdf"}, runner.calls)

	got, err := store.GetByNaturalKey(context.Background(), "camp:1001")
	require.NoError(t, err)
	assert.Equal(t, "Satisfactory", *got.Evaluation)
	assert.Equal(t, 2024, *got.InspectionYear)
}

func TestPickReport(t *testing.T) {
	paths := []string{"r/1001-2022.pdf", "r/1001-2023.pdf", "r/1001-2024-amended.pdf"}
	assert.Equal(t, "r/1001-2023.pdf", pickReport(paths, "2023"))
	assert.Equal(t, "r/1001-2024-amended.pdf", pickReport(paths, "2021"))
	assert.Equal(t, "r/1001-2024-amended.pdf", pickReport(paths, ""))
	assert.Empty(t, pickReport(nil, "2024"))
}

func TestRunCampsRequiresIndex(t *testing.T) {
	p := newPipeline(t, Options{Source: constants.SourceNJDOHCamps}, &pdfRunner{}, nil, nil)
	_, err := p.Run(context.Background(), Input{Path: t.TempDir()})
	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

const nycJSON = `{"data": [
  {"centername": "Bronx Tots", "building": "100", "street": "GRAND CONCOURSE", "city": "Bronx", "borough": "BRONX", "zipcode": "10451", "permitnumber": "PN-1", "agerange": "2 YEARS - 5 YEARS", "childcaretype": "Child Care - Pre School", "maximumcapacity": 40},
  {"centername": "Harlem Kids", "building": "5", "street": "W 125 ST", "city": "New York", "borough": "MANHATTAN", "zipcode": "10027", "permitnumber": "PN-2", "childcaretype": "Child Care - Infants/Toddlers"},
  {"status": "closed"}
]}`

func TestRunNYCWithoutStore(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nyc.json", nycJSON)
	p := newPipeline(t, Options{Source: constants.SourceNYCDOHMH, DryRun: true}, nil, nil, nil)

	rep, err := p.Run(context.Background(), Input{Path: path})
	require.NoError(t, err)
	assert.True(t, rep.DryRun)
	assert.Equal(t, 2, rep.Extracted)
	assert.Equal(t, 1, rep.Dropped)
	assert.Equal(t, 2, rep.Valid)
	assert.Equal(t, 0, rep.Inserted)
	assert.Empty(t, rep.Records[0].State)
	assert.Equal(t, "license:PN-1", rep.Records[0].Key)
}

func TestRunDryRunLeavesStoreEmpty(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nyc.json", nycJSON)
	store := newStore(t)
	p := newPipeline(t, Options{Source: constants.SourceNYCDOHMH, DryRun: true}, nil, nil, store)

	rep, err := p.Run(context.Background(), Input{Path: path})
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Inserted)

	st, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, st.Total)
}

func TestRunCancelledBeforeStart(t *testing.T) {
	path := writeFile(t, t.TempDir(), "nyc.json", nycJSON)
	p := newPipeline(t, Options{Source: constants.SourceNYCDOHMH}, nil, nil, newStore(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Run(ctx, Input{Path: path})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectDocuments(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", "")
	writeFile(t, dir, "a.PDF", "")
	writeFile(t, dir, ".hidden.pdf", "")
	writeFile(t, dir, "c.json", "")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	writeFile(t, filepath.Join(dir, "sub"), "d.pdf", "")

	got, err := CollectDocuments(dir, constants.FormatPDF)
	require.NoError(t, err)
	var names []string
	for _, p := range got {
		rel, _ := filepath.Rel(dir, p)
		names = append(names, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"a.PDF", "b.pdf", "sub/d.pdf"}, names)

	single, err := CollectDocuments(filepath.Join(dir, "c.json"), constants.FormatPDF)
	require.NoError(t, err)
	assert.Len(t, single, 1)

	_, err = CollectDocuments(filepath.Join(dir, "missing"))
	assert.Error(t, err)
	_, err = CollectDocuments("  ")
	assert.True(t, strings.Contains(err.Error(), "required"))
}
