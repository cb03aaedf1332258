package extract

import (
	"fmt"

	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
)

// Result is the output of extracting one document.
type Result struct {
	Document string
	Records  []entity.RawRecord
	// Skipped counts rows dropped as repeated headers or lacking both name and city.
	Skipped  int
	Warnings []string
}

// ZeroYield reports that the document produced no usable records.
func (r Result) ZeroYield() bool { return len(r.Records) == 0 }

// Err returns a ZERO_YIELD error wrapping common.ErrZeroYield for a document
// that produced no records, and nil otherwise.
func (r Result) Err() error {
	if !r.ZeroYield() {
		return nil
	}
	return common.NewAppError("ZERO_YIELD", r.Document, common.ErrZeroYield)
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// TablePage is one page of a table-shaped source. Rows are positional cells.
type TablePage struct {
	Page int
	Rows [][]string
}
