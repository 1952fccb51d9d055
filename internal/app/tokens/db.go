package tokens

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"strangerchat/internal/pkg/logx"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite3"
)

// Config selects and tunes the backing database.
type Config struct {
	// DSN is either a postgres:// URL or sqlite://<path>.
	DSN string

	// Location is the time zone whose midnight starts "today" in Stats.
	Location *time.Location
}

// Open connects to the database named by cfg.DSN, applies pending migrations and
// returns a ready Store.
func Open(ctx context.Context, cfg Config) (*SQLStore, error) {
	var (
		db      *sql.DB
		pool    *pgxpool.Pool
		dialect string
		err     error
	)

	switch {
	case strings.HasPrefix(cfg.DSN, "postgres://"), strings.HasPrefix(cfg.DSN, "postgresql://"):
		if pool, err = newPool(ctx, cfg.DSN); err != nil {
			return nil, err
		}
		db = stdlib.OpenDBFromPool(pool)
		dialect = dialectPostgres

	case strings.HasPrefix(cfg.DSN, "sqlite://"):
		if db, err = openSQLite(ctx, strings.TrimPrefix(cfg.DSN, "sqlite://")); err != nil {
			return nil, err
		}
		dialect = dialectSQLite

	default:
		return nil, fmt.Errorf("unsupported database DSN scheme: %q", redactDSN(cfg.DSN))
	}

	if err := runMigrations(db, dialect); err != nil {
		_ = db.Close()
		if pool != nil {
			pool.Close()
		}
		return nil, err
	}

	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	logx.Info("Token store ready.", "dialect", dialect)

	return &SQLStore{
		db:      db,
		pool:    pool,
		dialect: dialect,
		loc:     loc,
		now:     time.Now,
	}, nil
}

// newPool creates the PostgreSQL connection pool.
func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

// openSQLite opens a single-connection SQLite handle; SQLite serializes writers anyway.
func openSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite DSN has no path")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	db, err := sql.Open("sqlite", path+sep+"_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB, dialect string) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// redactDSN keeps only the scheme so credentials never reach the logs.
func redactDSN(dsn string) string {
	if i := strings.Index(dsn, "://"); i >= 0 {
		return dsn[:i+3] + "..."
	}
	return "..."
}
