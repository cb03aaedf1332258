package main

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/joseph-ayodele/provider-ingest/internal/pipeline"
)

// maxListed caps the zero-yield documents and messages echoed to the terminal.
const maxListed = 20

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

func printSummary(w io.Writer, rep *pipeline.Report) {
	title := fmt.Sprintf("%s import", rep.Source)
	if rep.DryRun {
		title += " (dry run, rolled back)"
	}

	t := newTable(w)
	t.SetTitle(title)
	t.AppendHeader(table.Row{"Stage", "Count"})
	count := func(label string, n int) {
		t.AppendRow(table.Row{label, humanize.Comma(int64(n))})
	}
	count("Documents", rep.Documents)
	count("Unreadable documents", rep.Failed)
	count("Zero-yield documents", len(rep.ZeroYield))
	count("Rows dropped", rep.Dropped)
	count("Extracted", rep.Extracted)
	count("Normalized", rep.Normalized)
	count("Valid", rep.Valid)
	count("Skipped (invalid)", rep.Skipped)
	count("Geocoded", rep.Geocoded)
	t.AppendSeparator()
	count("Inserted", rep.Inserted)
	count("Updated", rep.Updated)
	count("Errors", rep.Errors)
	t.AppendSeparator()
	t.AppendRow(table.Row{"Elapsed", rep.Elapsed.Round(time.Millisecond).String()})
	t.Render()

	list(w, "Zero-yield documents", rep.ZeroYield)
	list(w, "Messages", rep.Messages)
}

func list(w io.Writer, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "\n%s:\n", title)
	for i, it := range items {
		if i == maxListed {
			fmt.Fprintf(w, "  ... and %s more\n", humanize.Comma(int64(len(items)-maxListed)))
			break
		}
		fmt.Fprintf(w, "  - %s\n", it)
	}
}
