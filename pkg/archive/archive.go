// Package archive implements the run history archive: a Postgres-backed
// append-only log of completed scenario runs, separate from the live
// in-memory coordinator store (pkg/store), which stays JSON-snapshotted.
// Writing to the archive is fire-and-forget — callers must never let an
// archive failure block or fail stop_scenario().
//
// Grounded on the teacher's pkg/database/client.go: same stdsql.Open("pgx",
// dsn) + golang-migrate-with-embedded-migrations shape, minus the ent
// wrapping this package has no use for — every query here is hand-written
// SQL over database/sql.
package archive

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chaosbench/chaosbench/pkg/config"
)

//go:embed migrations
var migrationsFS embed.FS

// Record is one completed scenario run, written by the coordinator on
// stop_scenario() and read back through Recent and ByName.
type Record struct {
	ID        int64
	Name      string
	StartedAt time.Time
	StoppedAt time.Time
	PassCount int
	FailCount int
	Report    string
}

// Client wraps the archive's database connection pool.
type Client struct {
	db *sql.DB
}

// Open connects to Postgres using cfg, applies any pending embedded
// migrations, and returns a ready Client.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("archive: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: ping: %w", err)
	}

	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("archive: migrate: %w", err)
	}

	return &Client{db: db}, nil
}

// NewFromDB wraps an already-open *sql.DB, useful for tests that manage
// their own container-backed connection.
func NewFromDB(db *sql.DB) *Client {
	return &Client{db: db}
}

func runMigrations(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return err
	}
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", source, "archive", driver)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return err
	}
	// Must not call m.Close(): it closes the database driver, which would
	// close the *sql.DB this Client keeps using past migration time.
	return source.Close()
}

// Close releases the underlying connection pool.
func (c *Client) Close() error {
	return c.db.Close()
}

// DB returns the underlying connection pool for health checks.
func (c *Client) DB() *sql.DB {
	return c.db
}

// Append inserts rec as a new run history row. Callers treat archive
// failures as non-fatal per this package's fire-and-forget contract.
func (c *Client) Append(ctx context.Context, rec Record) error {
	const q = `
		INSERT INTO scenario_runs (name, started_at, stopped_at, pass_count, fail_count, report)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := c.db.ExecContext(ctx, q, rec.Name, rec.StartedAt, rec.StoppedAt, rec.PassCount, rec.FailCount, rec.Report)
	if err != nil {
		return fmt.Errorf("archive: append: %w", err)
	}
	return nil
}

// Recent returns the limit most recently stopped runs, newest first.
func (c *Client) Recent(ctx context.Context, limit int) ([]Record, error) {
	const q = `
		SELECT id, name, started_at, stopped_at, pass_count, fail_count, report
		FROM scenario_runs
		ORDER BY stopped_at DESC
		LIMIT $1`
	rows, err := c.db.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Name, &r.StartedAt, &r.StoppedAt, &r.PassCount, &r.FailCount, &r.Report); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Prune deletes runs stopped before olderThan, returning the number of
// rows removed. Used by pkg/cleanup's periodic retention sweep.
func (c *Client) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	const q = `DELETE FROM scenario_runs WHERE stopped_at < $1`
	res, err := c.db.ExecContext(ctx, q, olderThan)
	if err != nil {
		return 0, fmt.Errorf("archive: prune: %w", err)
	}
	return res.RowsAffected()
}

// ByName returns the limit most recent runs of a specific scenario name.
func (c *Client) ByName(ctx context.Context, name string, limit int) ([]Record, error) {
	const q = `
		SELECT id, name, started_at, stopped_at, pass_count, fail_count, report
		FROM scenario_runs
		WHERE name = $1
		ORDER BY stopped_at DESC
		LIMIT $2`
	rows, err := c.db.QueryContext(ctx, q, name, limit)
	if err != nil {
		return nil, fmt.Errorf("archive: by_name: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.ID, &r.Name, &r.StartedAt, &r.StoppedAt, &r.PassCount, &r.FailCount, &r.Report); err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
