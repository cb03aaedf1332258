package source

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/internal/extract"
)

var reColumnGap = regexp.MustCompile(`[ \t]{2,}`)

// LayoutTable splits layout text into table rows on runs of two or more blanks.
// Lines with fewer than minCells cells (titles, footers, wrapped fragments) are
// dropped. Page numbers are 1-based.
func LayoutTable(pages []string, minCells int) []extract.TablePage {
	out := make([]extract.TablePage, 0, len(pages))
	for i, text := range pages {
		page := extract.TablePage{Page: i + 1}
		for _, line := range strings.Split(text, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			cells := reColumnGap.Split(line, -1)
			if len(cells) < minCells {
				continue
			}
			page.Rows = append(page.Rows, cells)
		}
		out = append(out, page)
	}
	return out
}
