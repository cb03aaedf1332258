package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/provider-ingest/constants"
	"github.com/joseph-ayodele/provider-ingest/internal/common"
	"github.com/joseph-ayodele/provider-ingest/internal/export"
	"github.com/joseph-ayodele/provider-ingest/internal/extract"
	"github.com/joseph-ayodele/provider-ingest/internal/geocode"
	"github.com/joseph-ayodele/provider-ingest/internal/normalize"
	"github.com/joseph-ayodele/provider-ingest/internal/pipeline"
	"github.com/joseph-ayodele/provider-ingest/internal/reconcile"
	"github.com/joseph-ayodele/provider-ingest/internal/repository"
	"github.com/joseph-ayodele/provider-ingest/internal/source"
)

type runFlags struct {
	source string
	input  string
	index  string
	strict bool
}

func newRunCmd(a *app) *cobra.Command {
	var f runFlags

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one import batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.run(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.source, "source", "", "source: nj-dcf, nj-camps, nyc or csv")
	fl.StringVar(&f.input, "input", "", "input document or directory")
	fl.StringVar(&f.index, "index", "", "saved camps index page (nj-camps)")
	fl.BoolVar(&f.strict, "strict", false, "exit non-zero when a document or record failed")
	fl.String("policy", string(constants.PolicyImportWithWarning), "invalid records: skip-invalid or import-with-warning")
	fl.Bool("geocode", false, "geocode addresses with Nominatim")
	fl.String("geocode-cache", "", "geocode cache file")
	fl.Bool("dry-run", false, "run the batch and roll it back")
	fl.Bool("draft", false, "import profiles as not public")
	fl.Bool("fallback-match", true, "match on name, address and city when no natural key matches")
	fl.Bool("check-mx", false, "drop emails whose domain has no MX record")
	fl.String("spec", "", "YAML field spec for inspection reports")
	fl.String("report", "", "write an XLSX review workbook to this path")
	fl.String("pdftotext", "", "pdftotext binary")
	_ = cmd.MarkFlagRequired("source")

	bind := map[string]string{
		"import.policy":         "policy",
		"geocode.enabled":       "geocode",
		"geocode.cache_path":    "geocode-cache",
		"import.dry_run":        "dry-run",
		"import.draft":          "draft",
		"import.fallback_match": "fallback-match",
		"import.check_email_mx": "check-mx",
		"import.field_spec":     "spec",
		"import.report":         "report",
		"pdf.pdftotext":         "pdftotext",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, fl.Lookup(flag))
	}
	return cmd
}

func (a *app) run(cmd *cobra.Command, f runFlags) error {
	ctx := cmd.Context()
	logger := a.logger

	src, ok := constants.ParseSource(f.source)
	if !ok {
		return fmt.Errorf("unknown --source %q", f.source)
	}
	if f.input == "" && src != constants.SourceNJDOHCamps {
		return errors.New("--input is required")
	}

	cfg := common.LoadConfig(a.v)
	if err := cfg.Validate(); err != nil {
		return err
	}

	var up *reconcile.Upserter
	db, err := repository.Connect(ctx, cfg.Database, logger)
	switch {
	case err == nil:
		defer db.Close(logger)
		if err := repository.EnsureSchema(ctx, db, logger); err != nil {
			return err
		}
		store := repository.NewProviderStore(db, logger)
		up = reconcile.NewUpserter(store, reconcile.Options{
			FallbackMatch: cfg.Import.FallbackMatch,
			DryRun:        cfg.Import.DryRun,
		}, logger)
	case errors.Is(err, common.ErrNotFound) && cfg.Import.DryRun:
		logger.Warn("no database configured; records will not be reconciled")
	default:
		return err
	}

	opts := pipeline.Options{
		Source:    src,
		Policy:    cfg.Import.Policy,
		Normalize: normalize.ProfileFor(src),
		DryRun:    cfg.Import.DryRun,
	}
	opts.Normalize.Draft = cfg.Import.Draft
	opts.Table = extract.DefaultTableSpec()
	if cfg.Import.PositionalWidth > 0 {
		opts.Table.PositionalWidth = cfg.Import.PositionalWidth
	}
	if cfg.Import.CheckEmailMX {
		opts.MX = normalize.DNSMXChecker{}
	}
	if path := cfg.Import.FieldSpecPath; path != "" {
		spec, err := loadFieldSpec(path)
		if err != nil {
			return err
		}
		opts.TextSpec = spec
	}

	var geo geocode.Geocoder
	if cfg.Geocode.Enabled {
		cache := geocode.NewCache()
		if err := cache.LoadFile(cfg.Geocode.CachePath); err != nil {
			return fmt.Errorf("load geocode cache: %w", err)
		}
		logger.Info("geocode cache loaded", "path", cfg.Geocode.CachePath, "entries", cache.Len())
		defer saveCache(cache, cfg.Geocode.CachePath, logger)
		geo = geocode.NewNominatim(cfg.Geocode, cache, logger)
	}

	p, err := pipeline.New(opts, source.NewPDFText(cfg.PDF, logger), geo, up, logger)
	if err != nil {
		return err
	}
	rep, runErr := p.Run(ctx, pipeline.Input{Path: f.input, IndexPath: f.index})
	if rep != nil {
		printSummary(cmd.OutOrStdout(), rep)
		if path := cfg.Import.ReportPath; path != "" {
			if err := export.NewService(logger).WriteFile(path, rep); err != nil {
				return err
			}
			if info, err := os.Stat(path); err == nil {
				fmt.Fprintf(cmd.OutOrStdout(), "report written to %s (%s)\n", path, humanize.Bytes(uint64(info.Size())))
			}
		}
	}
	if runErr != nil {
		return runErr
	}
	if f.strict && !rep.OK() {
		return fmt.Errorf("import finished with %d unreadable documents and %d record errors", rep.Failed, rep.Errors)
	}
	return nil
}

func loadFieldSpec(path string) (*extract.FieldSpec, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open field spec: %w", err)
	}
	defer func() { _ = file.Close() }()
	return extract.LoadFieldSpec(file)
}

func saveCache(cache *geocode.Cache, path string, logger *slog.Logger) {
	if !cache.Dirty() {
		return
	}
	if err := cache.SaveFile(path); err != nil {
		logger.Error("geocode cache save failed", "path", path, "error", err)
		return
	}
	logger.Info("geocode cache saved", "path", path, "entries", cache.Len())
}
