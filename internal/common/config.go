package common

import (
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/joseph-ayodele/provider-ingest/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Import   ImportConfig
	Geocode  GeocodeConfig
	PDF      PDFConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ImportConfig holds batch behavior
type ImportConfig struct {
	Policy          constants.ValidationPolicy
	FallbackMatch   bool
	Draft           bool
	CheckEmailMX    bool
	FieldSpecPath   string
	ReportPath      string
	DryRun          bool
	PositionalWidth int
}

// GeocodeConfig holds geocoding-related configuration
type GeocodeConfig struct {
	Enabled     bool
	BaseURL     string
	UserAgent   string
	CachePath   string
	MinInterval time.Duration
	Timeout     time.Duration
}

// PDFConfig holds pdftotext settings
type PDFConfig struct {
	Pdftotext string
}

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "PROVIDERS"

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.sqlite_path", "")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("database.max_conn_idle_time", 5*time.Minute)
	v.SetDefault("database.dial_timeout", 3*time.Second)
	v.SetDefault("database.statement_timeout", time.Duration(0))

	v.SetDefault("import.policy", string(constants.PolicyImportWithWarning))
	v.SetDefault("import.fallback_match", true)
	v.SetDefault("import.draft", false)
	v.SetDefault("import.check_email_mx", false)
	v.SetDefault("import.field_spec", "")
	v.SetDefault("import.report", "")
	v.SetDefault("import.dry_run", false)
	v.SetDefault("import.positional_width", 10)

	v.SetDefault("geocode.enabled", false)
	v.SetDefault("geocode.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocode.user_agent", "provider-ingest/1.0")
	v.SetDefault("geocode.cache_path", "geocode_cache.json")
	v.SetDefault("geocode.min_interval", time.Second)
	v.SetDefault("geocode.timeout", 10*time.Second)

	v.SetDefault("pdf.pdftotext", "pdftotext")
}

// LoadConfig loads configuration from defaults, environment variables and any
// flags already bound on v. A nil v uses a fresh instance.
func LoadConfig(v *viper.Viper) *Config {
	if v == nil {
		v = viper.New()
	}
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// DB_URL is still honored for existing deployments
	_ = v.BindEnv("database.dsn", EnvPrefix+"_DATABASE_DSN", "DB_URL")

	return &Config{
		Database: DatabaseConfig{
			DSN:              v.GetString("database.dsn"),
			SQLitePath:       v.GetString("database.sqlite_path"),
			MaxConns:         v.GetInt32("database.max_conns"),
			MinConns:         v.GetInt32("database.min_conns"),
			MaxConnLifetime:  v.GetDuration("database.max_conn_lifetime"),
			MaxConnIdleTime:  v.GetDuration("database.max_conn_idle_time"),
			DialTimeout:      v.GetDuration("database.dial_timeout"),
			StatementTimeout: v.GetDuration("database.statement_timeout"),
		},
		Import: ImportConfig{
			Policy:          constants.ValidationPolicy(v.GetString("import.policy")),
			FallbackMatch:   v.GetBool("import.fallback_match"),
			Draft:           v.GetBool("import.draft"),
			CheckEmailMX:    v.GetBool("import.check_email_mx"),
			FieldSpecPath:   v.GetString("import.field_spec"),
			ReportPath:      v.GetString("import.report"),
			DryRun:          v.GetBool("import.dry_run"),
			PositionalWidth: v.GetInt("import.positional_width"),
		},
		Geocode: GeocodeConfig{
			Enabled:     v.GetBool("geocode.enabled"),
			BaseURL:     v.GetString("geocode.base_url"),
			UserAgent:   v.GetString("geocode.user_agent"),
			CachePath:   v.GetString("geocode.cache_path"),
			MinInterval: v.GetDuration("geocode.min_interval"),
			Timeout:     v.GetDuration("geocode.timeout"),
		},
		PDF: PDFConfig{
			Pdftotext: v.GetString("pdf.pdftotext"),
		},
	}
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Database.SQLitePath == "" && !c.Import.DryRun {
		return NewAppError("CONFIG_ERROR", "database.dsn (DB_URL) or database.sqlite_path is required", ErrInvalidInput)
	}
	switch c.Import.Policy {
	case constants.PolicySkipInvalid, constants.PolicyImportWithWarning:
	default:
		return NewAppError("CONFIG_ERROR", "import.policy must be skip-invalid or import-with-warning", ErrInvalidInput)
	}
	if c.Geocode.Enabled && c.Geocode.BaseURL == "" {
		return NewAppError("CONFIG_ERROR", "geocode.base_url is required when geocoding is enabled", ErrInvalidInput)
	}
	return nil
}
