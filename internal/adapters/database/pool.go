package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
)

// ErrNotConnected is returned by adapters used before Connect.
var ErrNotConnected = errors.New("database not connected")

// Pool holds the database/sql handle shared by the provider adapters.
// Adapters embed it and add the provider specific operations.
type Pool struct {
	db       *sql.DB
	config   Config
	info     domain.ConnectionInfo
	classify ErrorClassifier
}

// NewPool creates an unconnected pool.
func NewPool(config Config, info domain.ConnectionInfo, classify ErrorClassifier) Pool {
	return Pool{config: config.WithDefaults(), info: info, classify: classify}
}

// Open opens driverName with dsn, applies the pool settings and pings the
// server within the connect timeout. maxOpen overrides the configured pool
// size when positive.
func (p *Pool) Open(ctx context.Context, driverName, dsn string, maxOpen int) error {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if maxOpen <= 0 {
		maxOpen = p.config.MaxConnections
	}
	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(max(maxOpen/2, 1))
	db.SetConnMaxIdleTime(p.config.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, p.config.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return p.MapError("connect", err)
	}

	p.db = db
	return nil
}

// DB returns the underlying handle, nil before Open.
func (p *Pool) DB() *sql.DB { return p.db }

// Config returns the connection settings with defaults applied.
func (p *Pool) Config() Config { return p.config }

// Info describes the connection.
func (p *Pool) Info() domain.ConnectionInfo { return p.info }

// SetInfo replaces the connection description.
func (p *Pool) SetInfo(info domain.ConnectionInfo) { p.info = info }

// MapError converts a driver error into a known error when possible.
func (p *Pool) MapError(op string, err error) error {
	return MapDriverError(op, err, p.info, p.classify)
}

// Disconnect closes the database connection.
func (p *Pool) Disconnect(ctx context.Context) error {
	if p.db == nil {
		return nil
	}
	err := p.db.Close()
	p.db = nil
	return err
}

// Execute executes a query without returning rows.
func (p *Pool) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}
	return p.db.ExecContext(ctx, query, args...)
}

// Query executes a query that returns rows.
func (p *Pool) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}
	return p.db.QueryContext(ctx, query, args...)
}

// QueryRow executes a query that returns a single row. It returns nil when
// the pool is not connected.
func (p *Pool) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	if p.db == nil {
		return nil
	}
	return p.db.QueryRowContext(ctx, query, args...)
}

// Begin starts a new transaction.
func (p *Pool) Begin(ctx context.Context) (Transaction, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	return &Tx{tx: tx}, nil
}

// Ping checks if the database connection is alive.
func (p *Pool) Ping(ctx context.Context) error {
	if p.db == nil {
		return ErrNotConnected
	}
	return p.db.PingContext(ctx)
}

// Conn reserves a single connection. Session scoped state such as advisory
// locks must use it.
func (p *Pool) Conn(ctx context.Context) (*sql.Conn, error) {
	if p.db == nil {
		return nil, ErrNotConnected
	}
	return p.db.Conn(ctx)
}

// QueryStrings runs a query returning one string column.
func (p *Pool) QueryStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := p.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Tx implements the Transaction interface.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback rolls back the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

// Execute executes a query within the transaction.
func (t *Tx) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.tx.ExecContext(ctx, query, args...)
}

// Query executes a query within the transaction.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.tx.QueryContext(ctx, query, args...)
}

// Ensure Tx implements Transaction interface.
var _ Transaction = (*Tx)(nil)
