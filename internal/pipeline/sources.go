package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
	"github.com/joseph-ayodele/provider-ingest/internal/extract"
	"github.com/joseph-ayodele/provider-ingest/internal/source"
)

// Input names the documents of one run.
type Input struct {
	// Path is a document or a directory of documents. For camps it holds the
	// downloaded inspection reports and may be empty.
	Path string
	// IndexPath is the saved camps index page.
	IndexPath string
}

// extractAll reads every document of in. A document that cannot be read is
// recorded on rep and the run continues; only cancellation stops it.
func (p *Pipeline) extractAll(ctx context.Context, in Input, rep *Report) ([]entity.RawRecord, error) {
	switch p.opts.Source {
	case constants.SourceNJDCF:
		return p.extractDocuments(ctx, in.Path, rep, p.readTable, constants.FormatPDF, constants.FormatXLSX, constants.FormatCSV)
	case constants.SourceNYCDOHMH:
		spec := extract.NYCObjectSpec()
		return p.extractDocuments(ctx, in.Path, rep, p.objectReader(spec), constants.FormatJSON, constants.FormatCSV, constants.FormatXLSX)
	case constants.SourceCSVImport:
		spec := extract.CSVObjectSpec()
		return p.extractDocuments(ctx, in.Path, rep, p.objectReader(spec), constants.FormatCSV, constants.FormatXLSX, constants.FormatJSON)
	case constants.SourceNJDOHCamps:
		return p.extractCamps(ctx, in, rep)
	default:
		return nil, common.NewAppError("UNKNOWN_SOURCE", fmt.Sprintf("no extraction flow for source %q", p.opts.Source), common.ErrInvalidInput)
	}
}

type documentReader func(ctx context.Context, path string) (extract.Result, error)

func (p *Pipeline) extractDocuments(ctx context.Context, root string, rep *Report, read documentReader, formats ...string) ([]entity.RawRecord, error) {
	paths, err := CollectDocuments(root, formats...)
	if err != nil {
		return nil, common.NewAppError("INPUT_ERROR", "cannot list input documents", err)
	}
	var out []entity.RawRecord
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := read(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Error("pipeline.document.failed", "document", path, "error", err)
			rep.addFailure(path, err)
			continue
		}
		rep.addExtraction(res)
		if err := res.Err(); err != nil {
			p.logger.Warn("pipeline.document.zero_yield", "document", path, "error", err)
		}
		out = append(out, res.Records...)
	}
	return out, nil
}

// readTable reads a licensing table from a PDF listing or a spreadsheet export.
func (p *Pipeline) readTable(ctx context.Context, path string) (extract.Result, error) {
	var pages []extract.TablePage
	switch formatOf(path) {
	case constants.FormatPDF:
		text, err := p.pdf.Pages(ctx, path)
		if err != nil {
			return extract.Result{}, err
		}
		pages = source.LayoutTable(text, p.opts.MinCells)
	case constants.FormatXLSX:
		err := withFile(path, func(f *os.File) (err error) {
			pages, err = source.ReadXLSX(f)
			return err
		})
		if err != nil {
			return extract.Result{}, err
		}
	case constants.FormatCSV:
		err := withFile(path, func(f *os.File) error {
			page, err := source.ReadCSV(f)
			pages = []extract.TablePage{page}
			return err
		})
		if err != nil {
			return extract.Result{}, err
		}
	}
	return p.extractor.ExtractTable(path, pages, p.opts.Table), nil
}

// objectReader reads keyed records from JSON, or from sheets whose first row names the keys.
func (p *Pipeline) objectReader(spec extract.ObjectSpec) documentReader {
	return func(_ context.Context, path string) (extract.Result, error) {
		var objs []map[string]any
		err := withFile(path, func(f *os.File) error {
			switch formatOf(path) {
			case constants.FormatJSON:
				recs, err := source.DecodeJSONRecords(f)
				objs = recs
				return err
			case constants.FormatCSV:
				page, err := source.ReadCSV(f)
				objs = source.RowsToObjects(page.Rows)
				return err
			case constants.FormatXLSX:
				pages, err := source.ReadXLSX(f)
				for _, pg := range pages {
					objs = append(objs, source.RowsToObjects(pg.Rows)...)
				}
				return err
			}
			return nil
		})
		if err != nil {
			return extract.Result{}, err
		}
		return p.extractor.ExtractObjects(path, objs, spec), nil
	}
}

var reCampIDRun = regexp.MustCompile(`\d{3,5}`)

// extractCamps reads the camps index and merges each camp with the fields of its
// latest inspection report. Reports are matched to camps by a digit run in the
// file name equal to a camp id, e.g. "1234.pdf" or "camp-1234-2024.pdf". Of
// several reports for one camp, the one naming the index's inspection year wins.
// A camp without a readable report keeps its index fields.
func (p *Pipeline) extractCamps(ctx context.Context, in Input, rep *Report) ([]entity.RawRecord, error) {
	if strings.TrimSpace(in.IndexPath) == "" {
		return nil, common.NewAppError("INPUT_ERROR", "the camps source needs an index page", common.ErrInvalidInput)
	}
	var entries []extract.IndexEntry
	err := withFile(in.IndexPath, func(f *os.File) (err error) {
		entries, err = p.extractor.ParseCampIndex(f, p.opts.IndexBaseURL)
		return err
	})
	if err != nil {
		return nil, common.NewAppError("INPUT_ERROR", "cannot read camps index", err)
	}

	index := extract.Result{Document: in.IndexPath}
	for i, e := range entries {
		index.Records = append(index.Records, e.Record(in.IndexPath, i))
	}
	rep.addExtraction(index)

	campIDs := map[string]bool{}
	for _, r := range index.Records {
		if id := r.Get(entity.FieldCampID); id != "" {
			campIDs[id] = true
		}
	}
	candidates := map[string][]string{}
	if strings.TrimSpace(in.Path) != "" {
		paths, err := CollectDocuments(in.Path, constants.FormatPDF)
		if err != nil {
			return nil, common.NewAppError("INPUT_ERROR", "cannot list inspection reports", err)
		}
		for _, path := range paths {
			for _, run := range digitRuns(path) {
				if campIDs[run] {
					candidates[run] = append(candidates[run], path)
				}
			}
		}
	}

	out := index.Records
	for i := range out {
		path := pickReport(candidates[out[i].Get(entity.FieldCampID)], out[i].Get(entity.FieldInspectionYear))
		if path == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pages, err := p.pdf.Pages(ctx, path)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			p.logger.Error("pipeline.document.failed", "document", path, "error", err)
			rep.addFailure(path, err)
			continue
		}
		res := p.extractor.ExtractDocument(path, pages, p.opts.TextSpec)
		rep.addSupplement(res)
		if len(res.Records) > 0 {
			mergeReport(&out[i], res.Records[0])
		}
	}
	return out, nil
}

func digitRuns(path string) []string {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return reCampIDRun.FindAllString(base, -1)
}

// pickReport prefers the file naming the index's inspection year, then the
// lexically last one. paths are sorted.
func pickReport(paths []string, year string) string {
	if len(paths) == 0 {
		return ""
	}
	if year != "" {
		for i := len(paths) - 1; i >= 0; i-- {
			if slices.Contains(digitRuns(paths[i]), year) {
				return paths[i]
			}
		}
	}
	return paths[len(paths)-1]
}

// mergeReport copies report fields over the index record. The index stays
// authoritative for the camp id and the report link.
func mergeReport(dst *entity.RawRecord, report entity.RawRecord) {
	for _, k := range report.Keys() {
		switch k {
		case entity.FieldCampID, entity.FieldReportURL, entity.FieldInspectionYear:
			continue
		}
		v, ok := report.Lookup(k)
		if !ok {
			if !dst.Has(k) {
				dst.SetNull(k)
			}
			continue
		}
		dst.Set(k, v)
	}
	row := dst.Provenance.Row
	dst.Provenance = report.Provenance
	dst.Provenance.Row = row
}

func withFile(path string, fn func(f *os.File) error) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	return fn(f)
}
