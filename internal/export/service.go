package export

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/provider-ingest/internal/pipeline"
)

// Sheet names of the report workbook.
const (
	SummarySheet  = "Summary"
	RecordsSheet  = "Records"
	MessagesSheet = "Messages"
)

// Service renders import reports as XLSX workbooks for operator review.
type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// ReportXLSX returns the workbook for rep as bytes.
func (s *Service) ReportXLSX(rep *pipeline.Report) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	// the default "Sheet1" becomes the summary
	if err := f.SetSheetName("Sheet1", SummarySheet); err != nil {
		return nil, err
	}
	for _, name := range []string{RecordsSheet, MessagesSheet} {
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
	}
	idx, _ := f.GetSheetIndex(SummarySheet)
	f.SetActiveSheet(idx)

	if err := writeSummary(f, rep); err != nil {
		return nil, err
	}
	if err := writeRecords(f, rep.Records); err != nil {
		return nil, err
	}
	if err := writeMessages(f, rep); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"run_id", rep.RunID,
		"rows", len(rep.Records),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile writes the workbook for rep to path.
func (s *Service) WriteFile(path string, rep *pipeline.Report) error {
	b, err := s.ReportXLSX(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		s.logger.Error("export.xlsx.failed", "path", path, "err", err)
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func writeSummary(f *excelize.File, rep *pipeline.Report) error {
	rows := [][]any{
		{"Metric", "Value"},
		{"Run ID", rep.RunID},
		{"Source", string(rep.Source)},
		{"Policy", string(rep.Policy)},
		{"Dry run", rep.DryRun},
		{"Started", rep.StartedAt.UTC().Format(time.RFC3339)},
		{"Elapsed (s)", rep.Elapsed.Seconds()},
		{"Documents", rep.Documents},
		{"Unreadable documents", rep.Failed},
		{"Zero-yield documents", len(rep.ZeroYield)},
		{"Rows dropped", rep.Dropped},
		{"Extracted", rep.Extracted},
		{"Normalized", rep.Normalized},
		{"Valid", rep.Valid},
		{"Skipped", rep.Skipped},
		{"Geocoded", rep.Geocoded},
		{"Inserted", rep.Inserted},
		{"Updated", rep.Updated},
		{"Errors", rep.Errors},
	}
	if err := writeRows(f, SummarySheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(SummarySheet, "A", "A", 24)
	_ = f.SetColWidth(SummarySheet, "B", "B", 40)
	return nil
}

func writeRecords(f *excelize.File, records []pipeline.RecordReport) error {
	rows := make([][]any, 0, len(records)+1)
	rows = append(rows, []any{
		"Document",
		"Page",
		"Row",
		"Name",
		"City",
		"Natural Key",
		"Valid",
		"State",
		"Geocode",
		"Warnings",
		"Error",
	})
	for _, r := range records {
		rows = append(rows, []any{
			r.Document,
			r.Page,
			r.Row,
			r.Name,
			r.City,
			r.Key,
			r.Valid,
			string(r.State),
			string(r.GeocodeStatus),
			truncate(strings.Join(r.Warnings, "; "), 250),
			truncate(r.Error, 250),
		})
	}
	if err := writeRows(f, RecordsSheet, rows); err != nil {
		return err
	}

	_ = f.SetColWidth(RecordsSheet, "A", "A", 40) // document
	_ = f.SetColWidth(RecordsSheet, "B", "C", 8)  // page, row
	_ = f.SetColWidth(RecordsSheet, "D", "D", 32) // name
	_ = f.SetColWidth(RecordsSheet, "E", "E", 18) // city
	_ = f.SetColWidth(RecordsSheet, "F", "F", 36) // key
	_ = f.SetColWidth(RecordsSheet, "J", "K", 60) // warnings, error
	return f.AutoFilter(RecordsSheet, fmt.Sprintf("A1:K%d", len(rows)), nil)
}

func writeMessages(f *excelize.File, rep *pipeline.Report) error {
	rows := [][]any{{"Kind", "Message"}}
	for _, doc := range rep.ZeroYield {
		rows = append(rows, []any{"zero-yield", doc})
	}
	for _, m := range rep.Messages {
		rows = append(rows, []any{"message", m})
	}
	if err := writeRows(f, MessagesSheet, rows); err != nil {
		return err
	}
	_ = f.SetColWidth(MessagesSheet, "A", "A", 12)
	_ = f.SetColWidth(MessagesSheet, "B", "B", 100)
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("%s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
