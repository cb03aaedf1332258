package repository

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/joseph-ayodele/provider-ingest/internal/common"
)

//go:embed migrations/*.sql
var migrations embed.FS

// DB is an open row store: the database/sql handle wrapped as an ent driver,
// plus the pgx pool when the backend is Postgres.
type DB struct {
	Driver  *entsql.Driver
	Dialect string
	pool    *pgxpool.Pool
}

// Open creates a pgx pool and wraps it for the ent SQL driver.
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	logger.Info("connecting to database", "backend", dialect.Postgres)
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		logger.Error("failed to parse database dsn", "error", err)
		return nil, common.NewAppError("DB_CONFIG", "invalid database dsn", err)
	}

	pc.MaxConns = cfg.MaxConns
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "provider-ingest"
	if cfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = fmt.Sprintf("%d", cfg.StatementTimeout.Milliseconds())
	}

	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	// Wrap pool as *sql.DB for the ent driver
	db := stdlib.OpenDBFromPool(pool)
	logger.Info("successfully connected to database")
	return &DB{Driver: entsql.OpenDB(dialect.Postgres, db), Dialect: dialect.Postgres, pool: pool}, nil
}

// OpenSQLite opens a SQLite database file, or a private in-memory database when
// path is "" or ":memory:".
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*DB, error) {
	if path == "" {
		path = ":memory:"
	}
	logger.Info("opening sqlite database", "path", path)
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	// one connection: an in-memory database exists per connection, and SQLite
	// serializes writers anyway
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return &DB{Driver: entsql.OpenDB(dialect.SQLite, db), Dialect: dialect.SQLite}, nil
}

// Connect opens Postgres when cfg has a DSN and SQLite otherwise.
// ErrNotFound is returned when neither is configured.
func Connect(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*DB, error) {
	switch {
	case cfg.DSN != "":
		return Open(ctx, cfg, logger)
	case cfg.SQLitePath != "":
		return OpenSQLite(ctx, cfg.SQLitePath, logger)
	default:
		return nil, fmt.Errorf("%w: no database configured", common.ErrNotFound)
	}
}

// EnsureSchema creates the providers table and its indexes when missing.
func EnsureSchema(ctx context.Context, db *DB, logger *slog.Logger) error {
	file := "migrations/postgres.sql"
	if db.Dialect == dialect.SQLite {
		file = "migrations/sqlite.sql"
	}
	ddl, err := migrations.ReadFile(file)
	if err != nil {
		return fmt.Errorf("no schema for dialect %q: %w", db.Dialect, err)
	}
	for _, stmt := range strings.Split(string(ddl), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Driver.DB().ExecContext(ctx, stmt); err != nil {
			logger.Error("failed to apply schema", "dialect", db.Dialect, "error", err)
			return fmt.Errorf("%w: apply schema: %v", common.ErrDatabase, err)
		}
	}
	logger.Debug("schema ready", "dialect", db.Dialect)
	return nil
}

// Close closes the database connections gracefully
func (db *DB) Close(logger *slog.Logger) {
	logger.Info("closing database connections")
	if err := db.Driver.Close(); err != nil {
		logger.Error("failed to close database", "error", err)
	}
	if db.pool != nil {
		db.pool.Close()
	}
	logger.Info("database connections closed")
}

// HealthCheck pings the database to catch DSN issues early.
func HealthCheck(ctx context.Context, db *DB, timeout time.Duration, logger *slog.Logger) error {
	logger.Debug("pinging database")
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	var err error
	if db.pool != nil {
		err = db.pool.Ping(ctx)
	} else {
		err = db.Driver.DB().PingContext(ctx)
	}
	if err != nil {
		logger.Error("database ping failed", "error", err)
		return fmt.Errorf("%w: ping: %v", common.ErrDatabase, err)
	}
	logger.Debug("database ping successful")
	return nil
}
