package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/extract"
)

// StateSkipped marks a record left out of the batch by the validation policy.
const StateSkipped constants.UpsertState = "SKIPPED"

// Report is the outcome of one import run.
type Report struct {
	RunID  string
	Source constants.Source
	Policy constants.ValidationPolicy
	DryRun bool

	Documents int
	// Failed counts documents that could not be read at all.
	Failed int
	// Dropped counts rows discarded during extraction (repeated headers, no name or city).
	Dropped    int
	Extracted  int
	Normalized int
	Valid      int
	Skipped    int
	Geocoded   int
	Inserted   int
	Updated    int
	Errors     int

	ZeroYield []string
	Messages  []string
	Records   []RecordReport

	StartedAt time.Time
	Elapsed   time.Duration
}

// RecordReport follows one extracted record through the run.
type RecordReport struct {
	Document      string
	Page          int
	Row           int
	Name          string
	City          string
	Key           string
	Valid         bool
	State         constants.UpsertState
	GeocodeStatus constants.GeocodeStatus
	Warnings      []string
	Error         string
}

func (r *Report) addExtraction(res extract.Result) {
	r.addDocument(res)
	r.Dropped += res.Skipped
	r.Extracted += len(res.Records)
}

// addSupplement counts a document whose fields are merged into records already
// counted, such as a camp's inspection report.
func (r *Report) addSupplement(res extract.Result) {
	r.addDocument(res)
}

func (r *Report) addDocument(res extract.Result) {
	r.Documents++
	if err := res.Err(); errors.Is(err, common.ErrZeroYield) {
		r.ZeroYield = append(r.ZeroYield, res.Document)
	}
	for _, w := range res.Warnings {
		r.Messages = append(r.Messages, fmt.Sprintf("%s: %s", res.Document, w))
	}
}

func (r *Report) addFailure(document string, err error) {
	r.Documents++
	r.Failed++
	r.Messages = append(r.Messages, fmt.Sprintf("%s: %v", document, err))
}

// OK reports whether every document was read and every record was stored.
func (r *Report) OK() bool {
	return r.Failed == 0 && r.Errors == 0
}
