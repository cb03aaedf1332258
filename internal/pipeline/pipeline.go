package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/entity"
	"github.com/joseph-ayodele/provider-ingest/internal/extract"
	"github.com/joseph-ayodele/provider-ingest/internal/geocode"
	"github.com/joseph-ayodele/provider-ingest/internal/normalize"
	"github.com/joseph-ayodele/provider-ingest/internal/reconcile"
	"github.com/joseph-ayodele/provider-ingest/internal/source"
	"github.com/joseph-ayodele/provider-ingest/internal/validation"
)

// Options configures one import run.
type Options struct {
	Source constants.Source
	Policy constants.ValidationPolicy
	// Normalize defaults to the source's profile.
	Normalize normalize.Options
	// TextSpec reads camp inspection reports; nil uses the embedded camp spec.
	TextSpec *extract.FieldSpec
	// Table reads licensing tables; the zero value uses extract.DefaultTableSpec.
	Table extract.TableSpec
	// MinCells is the fewest layout columns a PDF line needs to count as a table row.
	MinCells int
	// IndexBaseURL resolves relative report links on the camps index page.
	IndexBaseURL string
	// MX enables the email deliverability check.
	MX normalize.MXChecker
	// DryRun is reported only; the upserter carries the rollback.
	DryRun bool
}

// Pipeline runs extract, normalize, validate, geocode and reconcile for one source.
type Pipeline struct {
	opts       Options
	extractor  *extract.Extractor
	normalizer *normalize.Normalizer
	pdf        *source.PDFText
	geocoder   geocode.Geocoder
	upserter   *reconcile.Upserter
	logger     *slog.Logger
}

// New builds a pipeline. A nil geocoder disables geocoding; a nil upserter stops
// the run after validation, which is how a dry run without a database behaves.
func New(opts Options, pdf *source.PDFText, geo geocode.Geocoder, up *reconcile.Upserter, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.Policy == "" {
		opts.Policy = constants.PolicyImportWithWarning
	}
	if opts.Normalize.Source == "" {
		opts.Normalize = normalize.ProfileFor(opts.Source)
	}
	if opts.Table.Synonyms == nil {
		opts.Table = extract.DefaultTableSpec()
	}
	if opts.MinCells <= 0 {
		opts.MinCells = 4
	}
	if opts.IndexBaseURL == "" {
		opts.IndexBaseURL = normalize.ProfileFor(constants.SourceNJDOHCamps).SourceURL
	}
	if opts.TextSpec == nil {
		spec, err := extract.DefaultSpec("camp_inspection")
		if err != nil {
			return nil, err
		}
		opts.TextSpec = spec
	}
	if pdf == nil {
		pdf = source.NewPDFText(common.PDFConfig{}, logger)
	}

	return &Pipeline{
		opts:       opts,
		extractor:  extract.NewExtractor(logger),
		normalizer: normalize.New(opts.Normalize),
		pdf:        pdf,
		geocoder:   geo,
		upserter:   up,
		logger:     logger,
	}, nil
}

// Run imports the documents of in. The report is returned even when the batch
// transaction fails, alongside the error.
func (p *Pipeline) Run(ctx context.Context, in Input) (*Report, error) {
	if common.RunIDFromContext(ctx) == "" {
		ctx = common.WithRunID(ctx, uuid.NewString())
	}
	logger := common.LoggerFromContext(ctx, p.logger)

	rep := &Report{
		RunID:     common.RunIDFromContext(ctx),
		Source:    p.opts.Source,
		Policy:    p.opts.Policy,
		DryRun:    p.opts.DryRun,
		StartedAt: time.Now(),
	}
	defer func() { rep.Elapsed = time.Since(rep.StartedAt) }()

	logger.Info("pipeline.start", "source", p.opts.Source, "input", in.Path, "index", in.IndexPath)
	raws, err := p.extractAll(ctx, in, rep)
	if err != nil {
		return rep, err
	}

	batch, rows := p.prepare(ctx, raws, rep)

	if p.upserter == nil {
		logger.Info("pipeline.reconcile.skipped", "records", len(batch))
	} else {
		res, err := p.upserter.RunBatch(ctx, batch)
		if err != nil {
			rep.Messages = append(rep.Messages, fmt.Sprintf("batch rolled back: %v", err))
			return rep, err
		}
		rep.Inserted, rep.Updated, rep.Errors = res.Inserted, res.Updated, res.Errors
		rep.Messages = append(rep.Messages, res.Messages...)
		for _, o := range res.Outcomes {
			r := &rep.Records[rows[o.Index]]
			r.State = o.State
			if o.Err != nil {
				r.Error = o.Err.Error()
			}
		}
	}

	logger.Info("pipeline.done",
		"documents", rep.Documents,
		"extracted", rep.Extracted,
		"valid", rep.Valid,
		"skipped", rep.Skipped,
		"inserted", rep.Inserted,
		"updated", rep.Updated,
		"errors", rep.Errors,
		"zero_yield", len(rep.ZeroYield),
	)
	return rep, nil
}

// prepare normalizes, validates and geocodes raws. It returns the batch to
// reconcile and, per batch position, the index of its record report.
func (p *Pipeline) prepare(ctx context.Context, raws []entity.RawRecord, rep *Report) ([]entity.CanonicalRecord, []int) {
	batch := make([]entity.CanonicalRecord, 0, len(raws))
	rows := make([]int, 0, len(raws))

	for _, raw := range raws {
		rec := p.normalizer.Normalize(raw)
		rep.Normalized++
		if p.opts.MX != nil && rec.Email != nil {
			rec.Email = normalize.DeliverableEmail(ctx, *rec.Email, p.opts.MX)
		}

		check := validation.Check(rec)
		row := RecordReport{
			Document: raw.Provenance.Document,
			Page:     raw.Provenance.Page,
			Row:      raw.Provenance.Row,
			Name:     rec.Name,
			City:     rec.City,
			Key:      rec.NaturalKey.String(),
			Valid:    check.Valid,
			Warnings: check.Messages(),
		}
		if check.Valid {
			rep.Valid++
		} else {
			msg := fmt.Sprintf("%s: %s", describe(row), strings.Join(check.Messages(), "; "))
			rep.Messages = append(rep.Messages, msg)
			if p.opts.Policy == constants.PolicySkipInvalid {
				rep.Skipped++
				row.State = StateSkipped
				row.GeocodeStatus = rec.GeocodeStatus
				rep.Records = append(rep.Records, row)
				continue
			}
		}

		if p.geocoder != nil && rec.Lat == nil {
			res := p.geocoder.Geocode(ctx, geocode.Address{
				Street: rec.Address,
				City:   rec.City,
				State:  rec.State,
				Zip:    deref(rec.ZipCode),
			})
			rec.Lat, rec.Lng, rec.GeocodeStatus = res.Lat, res.Lng, res.Status
			if res.Status != constants.GeocodeNone {
				rep.Geocoded++
			}
		}
		row.GeocodeStatus = rec.GeocodeStatus

		rows = append(rows, len(rep.Records))
		rep.Records = append(rep.Records, row)
		batch = append(batch, rec)
	}
	return batch, rows
}

func describe(r RecordReport) string {
	where := r.Document
	if r.Page > 0 {
		where = fmt.Sprintf("%s p%d", where, r.Page)
	}
	name := r.Name
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s row %d (%s)", where, r.Row, name)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
