package extract

import (
	"fmt"
	"io"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

// ExtractHTML flattens an HTML fragment to text, one line per block element,
// and applies spec to it.
func (e *Extractor) ExtractHTML(fragment string, spec *FieldSpec, prov entity.Provenance) (entity.RawRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return entity.NewRawRecord(prov), fmt.Errorf("parse html: %w", err)
	}
	return e.ExtractText(HTMLText(doc.Selection), spec, prov), nil
}

// HTMLText renders a selection as text with line breaks at block boundaries.
func HTMLText(sel *goquery.Selection) string {
	sel.Find("script, style, noscript").Remove()
	sel.Find("br").ReplaceWithHtml("\n")
	sel.Find("p, div, li, tr, h1, h2, h3, h4, h5, h6, dt, dd").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("\n")
	})
	sel.Find("td, th").Each(func(_ int, s *goquery.Selection) {
		s.AppendHtml("  ")
	})

	var lines []string
	for _, line := range strings.Split(sel.Text(), "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return strings.Join(lines, "\n")
}

// ReportLink is one year's inspection report for a camp.
type ReportLink struct {
	Year int
	URL  string
}

// IndexEntry is one camp listed on the camps index page.
type IndexEntry struct {
	County  string
	CampID  string
	Name    string
	Reports []ReportLink
}

// Latest returns the most recent report, if any.
func (e IndexEntry) Latest() (ReportLink, bool) {
	if len(e.Reports) == 0 {
		return ReportLink{}, false
	}
	latest := e.Reports[0]
	for _, r := range e.Reports[1:] {
		if r.Year > latest.Year {
			latest = r
		}
	}
	return latest, true
}

// Record converts the entry to a raw record carrying the latest report link.
func (e IndexEntry) Record(document string, row int) entity.RawRecord {
	rec := entity.NewRawRecord(entity.Provenance{Document: document, Row: row})
	rec.Set(entity.FieldCampID, e.CampID)
	rec.Set(entity.FieldName, e.Name)
	if e.County != "" {
		rec.Set(entity.FieldCounty, e.County)
	}
	if latest, ok := e.Latest(); ok {
		rec.Set(entity.FieldReportURL, latest.URL)
		rec.Set(entity.FieldInspectionYear, strconv.Itoa(latest.Year))
	}
	return rec
}

var (
	reCountyHeader = regexp.MustCompile(`(?i)^([A-Za-z\s]+?)\s+County\s*$`)
	reCampLine     = regexp.MustCompile(`^(?:([A-Za-z\s]+?)\s+)?(\d{3,5})\s+(.+?)\s+(\[.+\]|\d{4}.*)$`)
	reYear4        = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	reCampLineHead = regexp.MustCompile(`^\d{3,5}\s+`)
)

// ParseCampIndex reads the camps index page. County headings set the county for
// the camps that follow; a camp line may also carry its own county. Report links
// are taken from the camp's element or, failing that, its following siblings.
func (e *Extractor) ParseCampIndex(r io.Reader, baseURL string) ([]IndexEntry, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse camps index: %w", err)
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	root := doc.Find("#content, .content").First()
	if root.Length() == 0 {
		root = doc.Selection
	}

	var entries []IndexEntry
	seen := map[string]bool{}
	county := ""
	root.Find("h2, h3, h4, li, p, tr").Each(func(_ int, el *goquery.Selection) {
		text := collapseSpace(el.Text())
		if m := reCountyHeader.FindStringSubmatch(text); m != nil {
			county = strings.TrimSpace(m[1])
			return
		}
		m := reCampLine.FindStringSubmatch(text)
		if m == nil || seen[m[2]] {
			return
		}
		entry := IndexEntry{
			County: strings.TrimSpace(m[1]),
			CampID: m[2],
			Name:   strings.TrimSpace(m[3]),
		}
		if entry.County == "" {
			entry.County = county
		}
		entry.Reports = reportLinks(el, base)
		for next := el.Next(); len(entry.Reports) == 0 && next.Length() > 0; next = next.Next() {
			nextText := collapseSpace(next.Text())
			if reCampLineHead.MatchString(nextText) || strings.Contains(nextText, "County") {
				break
			}
			entry.Reports = reportLinks(next, base)
		}
		if len(entry.Reports) == 0 {
			e.Logger.Warn("no report links for camp", "camp_id", entry.CampID, "name", entry.Name)
			return
		}
		seen[entry.CampID] = true
		entries = append(entries, entry)
	})

	e.Logger.Info("extract.camp_index", "camps", len(entries))
	return entries, nil
}

func reportLinks(sel *goquery.Selection, base *url.URL) []ReportLink {
	var links []ReportLink
	sel.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		lower := strings.ToLower(href)
		if !strings.Contains(lower, ".pdf") && !strings.Contains(lower, "camp") {
			return
		}
		y := reYear4.FindString(a.Text() + " " + href)
		if y == "" {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		year, _ := strconv.Atoi(y)
		links = append(links, ReportLink{Year: year, URL: base.ResolveReference(ref).String()})
	})
	sort.SliceStable(links, func(i, j int) bool { return links[i].Year > links[j].Year })
	return links
}
