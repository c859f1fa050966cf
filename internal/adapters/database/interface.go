// Package database defines the database adapter interfaces of the engine.
package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// Executor runs statements. Adapters and transactions both implement it.
type Executor interface {
	// Execute executes a SQL statement.
	Execute(ctx context.Context, query string, args ...any) (sql.Result, error)

	// Query executes a query that returns rows.
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Adapter defines the database adapter interface.
type Adapter interface {
	Executor

	// Connect establishes a database connection.
	Connect(ctx context.Context) error

	// Disconnect closes the database connection.
	Disconnect(ctx context.Context) error

	// QueryRow executes a query that returns a single row.
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row

	// Begin starts a transaction.
	Begin(ctx context.Context) (Transaction, error)

	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// Flavour returns the provider flavour, tuned to the server version
	// once connected.
	Flavour() flavour.Flavour

	// Info describes the connection without secrets.
	Info() domain.ConnectionInfo

	// Placeholder returns the bind parameter for the n-th argument, from 1.
	Placeholder(n int) string
}

// Transaction defines the transaction interface.
type Transaction interface {
	Executor

	// Commit commits the transaction.
	Commit() error

	// Rollback rolls back the transaction.
	Rollback() error
}

// Connector is an adapter with the schema engine operations of one
// provider.
type Connector interface {
	Adapter
	destructive.Inspector

	// Describe reads the schema of the connected database.
	Describe(ctx context.Context) (*sqlschema.Schema, error)

	// AcquireLock takes the advisory migration lock, waiting at most the
	// configured lock timeout.
	AcquireLock(ctx context.Context) error

	// ReleaseLock releases the advisory migration lock.
	ReleaseLock(ctx context.Context) error

	// Reset drops every object of the database or schema.
	Reset(ctx context.Context) error

	// CreateDatabase creates the database named in the URL and returns its
	// name.
	CreateDatabase(ctx context.Context) (string, error)

	// DropDatabase drops the database named in the URL.
	DropDatabase(ctx context.Context) error

	// CreateShadowDatabase creates a temporary database next to the
	// connected one and returns its URL.
	CreateShadowDatabase(ctx context.Context, name string) (string, error)

	// DropShadowDatabase drops a database created by CreateShadowDatabase.
	DropShadowDatabase(ctx context.Context, name string) error

	// Version returns the server version string.
	Version(ctx context.Context) (string, error)
}

// Config holds database connection configuration.
type Config struct {
	URL            string
	MaxConnections int
	MaxIdleTime    time.Duration
	ConnectTimeout time.Duration
	LockTimeout    time.Duration
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 4
	}
	if c.MaxIdleTime <= 0 {
		c.MaxIdleTime = 5 * time.Minute
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = 5 * time.Second
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = 10 * time.Second
	}
	return c
}
