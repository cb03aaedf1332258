package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

type app struct {
	v      *viper.Viper
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "provider-import",
		Short: "Import childcare and camp licensing records into the providers table",
		Long: `provider-import extracts provider records from government listings,
normalizes and validates them, optionally geocodes their addresses and
upserts them into the providers table.

Examples:
  # NJ DCF licensed centers PDF into a local SQLite file
  provider-import run --source nj-dcf --input centers.pdf --sqlite providers.db

  # NJ youth camps: saved index page plus a folder of inspection reports
  provider-import run --source nj-camps --index camps.html --input reports/ --geocode

  # NYC open data into Postgres, writing an XLSX review workbook
  DB_URL=postgres://... provider-import run --source nyc --input nyc.json --report nyc.xlsx`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if path := a.v.GetString("config"); path != "" {
				a.v.SetConfigFile(path)
				if err := a.v.ReadInConfig(); err != nil {
					return fmt.Errorf("read config: %w", err)
				}
			}
			logger, err := newLogger(cmd.ErrOrStderr(), a.v.GetString("log.format"), a.v.GetString("log.level"))
			if err != nil {
				return err
			}
			a.logger = logger
			slog.SetDefault(logger)
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.String("config", "", "config file (yaml, json or toml)")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("dsn", "", "Postgres connection string (also DB_URL)")
	pf.String("sqlite", "", "SQLite database file")
	_ = a.v.BindPFlag("config", pf.Lookup("config"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("database.dsn", pf.Lookup("dsn"))
	_ = a.v.BindPFlag("database.sqlite_path", pf.Lookup("sqlite"))

	root.AddCommand(newRunCmd(a))
	return root
}

// newLogger builds the process logger from the --log-format and --log-level flags.
func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(level))); err != nil {
		return nil, fmt.Errorf("invalid --log-level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid --log-format %q: want text or json", format)
	}
}
