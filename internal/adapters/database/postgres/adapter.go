// Package postgres implements PostgreSQL database adapter.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/lib/pq" // PostgreSQL driver

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// DefaultSchema is used when the URL has no schema parameter.
const DefaultSchema = "public"

// Connection string parameters understood by Prisma but not by lib/pq.
var prismaParams = []string{"schema", "connection_limit", "pool_timeout", "pgbouncer", "statement_cache_size", "socket_timeout", "sslaccept"}

// PostgresAdapter implements the database.Connector interface for PostgreSQL.
type PostgresAdapter struct {
	database.Pool
	url     *url.URL
	schema  string
	flavour *flavour.PostgresFlavour
	lock    database.SessionLock
}

// NewPostgresAdapter creates a new PostgreSQL adapter.
func NewPostgresAdapter(config database.Config) (*PostgresAdapter, error) {
	u, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres url: %w", err)
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("invalid postgres url scheme %q", u.Scheme)
	}

	schema := u.Query().Get("schema")
	if schema == "" {
		schema = DefaultSchema
	}
	info := domain.ConnectionInfo{
		Provider: string(flavour.Postgres),
		Host:     u.Hostname(),
		Port:     u.Port(),
		Database: strings.TrimPrefix(u.Path, "/"),
		Schema:   schema,
		User:     u.User.Username(),
	}
	if info.Port == "" {
		info.Port = "5432"
	}

	return &PostgresAdapter{
		Pool:    database.NewPool(config, info, classify),
		url:     u,
		schema:  schema,
		flavour: flavour.NewPostgres(),
	}, nil
}

// Schema returns the schema the adapter works in.
func (a *PostgresAdapter) Schema() string { return a.schema }

// dsn turns the Prisma URL into a lib/pq URL: Prisma-only parameters are
// dropped, the schema becomes the search_path and sslmode defaults to
// disable, as lib/pq has no "prefer" mode.
func dsn(u *url.URL, database string) string {
	cp := *u
	q := cp.Query()
	schema := q.Get("schema")
	for _, p := range prismaParams {
		q.Del(p)
	}
	if schema != "" {
		q.Set("search_path", schema)
	}
	switch q.Get("sslmode") {
	case "", "prefer":
		q.Set("sslmode", "disable")
	}
	if database != "" {
		cp.Path = "/" + database
	}
	cp.RawQuery = q.Encode()
	return cp.String()
}

// Connect establishes a connection to the PostgreSQL database.
func (a *PostgresAdapter) Connect(ctx context.Context) error {
	return a.Open(ctx, "postgres", dsn(a.url, ""), 0)
}

// Flavour returns the PostgreSQL flavour.
func (a *PostgresAdapter) Flavour() flavour.Flavour { return a.flavour }

// Placeholder returns $n.
func (a *PostgresAdapter) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// AcquireLock takes pg_advisory_lock on a reserved connection.
func (a *PostgresAdapter) AcquireLock(ctx context.Context) error {
	return a.lock.Acquire(ctx, &a.Pool, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", flavour.PostgresAdvisoryLockID)
		return err
	})
}

// ReleaseLock releases the advisory lock.
func (a *PostgresAdapter) ReleaseLock(ctx context.Context) error {
	return a.lock.Release(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", flavour.PostgresAdvisoryLockID)
		return err
	})
}

// Reset drops and recreates the schema.
func (a *PostgresAdapter) Reset(ctx context.Context) error {
	schema := pq.QuoteIdentifier(a.schema)
	if _, err := a.Execute(ctx, "DROP SCHEMA IF EXISTS "+schema+" CASCADE"); err != nil {
		return fmt.Errorf("failed to drop schema: %w", err)
	}
	if _, err := a.Execute(ctx, "CREATE SCHEMA "+schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	debug.Debug("reset postgres schema", "schema", a.schema)
	return nil
}

// admin opens a short-lived connection to the postgres maintenance database.
func (a *PostgresAdapter) admin(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn(a.url, "postgres"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, a.MapError("connect", err)
	}
	return db, nil
}

// CreateDatabase creates the database of the URL and its schema.
func (a *PostgresAdapter) CreateDatabase(ctx context.Context) (string, error) {
	name := a.Info().Database
	db, err := a.admin(ctx)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return "", a.MapError("create database", err)
	}

	if a.schema != DefaultSchema {
		target, err := sql.Open("postgres", dsn(a.url, ""))
		if err != nil {
			return "", fmt.Errorf("failed to open database: %w", err)
		}
		defer target.Close()
		if _, err := target.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(a.schema)); err != nil {
			return "", a.MapError("create schema", err)
		}
	}
	return name, nil
}

// DropDatabase drops the database of the URL.
func (a *PostgresAdapter) DropDatabase(ctx context.Context) error {
	if err := a.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db, err := a.admin(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "DROP DATABASE "+pq.QuoteIdentifier(a.Info().Database)); err != nil {
		return a.MapError("drop database", err)
	}
	return nil
}

// CreateShadowDatabase creates a database on the same server and returns a
// URL pointing at it with the same schema.
func (a *PostgresAdapter) CreateShadowDatabase(ctx context.Context, name string) (string, error) {
	if _, err := a.Execute(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return "", domain.NewShadowDatabaseCreationError(err)
	}
	shadow := *a.url
	shadow.Path = "/" + name
	return shadow.String(), nil
}

// DropShadowDatabase drops a shadow database.
func (a *PostgresAdapter) DropShadowDatabase(ctx context.Context, name string) error {
	if _, err := a.Execute(ctx, "DROP DATABASE IF EXISTS "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("failed to drop shadow database: %w", err)
	}
	return nil
}

// Version returns the server version string.
func (a *PostgresAdapter) Version(ctx context.Context) (string, error) {
	versions, err := a.QueryStrings(ctx, "SELECT version()")
	if err != nil {
		return "", a.MapError("version", err)
	}
	if len(versions) == 0 {
		return "", errors.New("version() returned no row")
	}
	return versions[0], nil
}

func (a *PostgresAdapter) quoteTable(name string) string {
	return pq.QuoteIdentifier(a.schema) + "." + pq.QuoteIdentifier(name)
}

// CountRows implements destructive.Inspector.
func (a *PostgresAdapter) CountRows(ctx context.Context, table string, columns []string) (destructive.TableCounts, error) {
	return database.CountRows(ctx, a, a.quoteTable(table), pq.QuoteIdentifier, columns)
}

// CountValues implements destructive.Inspector. Enum columns are compared as
// text.
func (a *PostgresAdapter) CountValues(ctx context.Context, table, column string, values []string) (int64, error) {
	return database.CountValues(ctx, a, a.quoteTable(table), pq.QuoteIdentifier(column)+"::text", values, a.Placeholder)
}

func classify(err error) string {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return ""
	}
	switch pqErr.Code {
	case "28P01", "28000":
		return domain.CodeAuthenticationFailed
	case "3D000":
		return domain.CodeDatabaseDoesNotExist
	case "42P04":
		return domain.CodeDatabaseAlreadyExists
	case "42501":
		return domain.CodeDatabaseAccessDenied
	case "57014":
		return domain.CodeOperationTimeout
	case "55P03":
		return domain.CodeDatabaseTimeout
	}
	return ""
}

// Ensure PostgresAdapter implements Connector interface.
var _ database.Connector = (*PostgresAdapter)(nil)
