// Package mssql implements SQL Server database adapter.
package mssql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	mssqldb "github.com/microsoft/go-mssqldb" // SQL Server driver

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// DefaultSchema is used when the connection string has no schema.
const DefaultSchema = "dbo"

const (
	acquireLockQuery = `DECLARE @res INT;
EXEC @res = sp_getapplock @Resource = @p1, @LockMode = 'Exclusive', @LockOwner = 'Session', @LockTimeout = @p2;
SELECT @res;`

	releaseLockQuery = `EXEC sp_releaseapplock @Resource = @p1, @LockOwner = 'Session'`

	dropForeignKeysQuery = `DECLARE @stmt NVARCHAR(max)
DECLARE @n CHAR(1)
SET @n = CHAR(10)
SELECT @stmt = ISNULL(@stmt + @n, '') +
    'ALTER TABLE [' + SCHEMA_NAME(schema_id) + '].[' + OBJECT_NAME(parent_object_id) + '] DROP CONSTRAINT [' + name + ']'
FROM sys.foreign_keys
WHERE SCHEMA_NAME(schema_id) = @p1
EXEC SP_EXECUTESQL @stmt`

	dropViewsQuery = `DECLARE @stmt NVARCHAR(max)
DECLARE @n CHAR(1)
SET @n = CHAR(10)
SELECT @stmt = ISNULL(@stmt + @n, '') +
    'DROP VIEW [' + SCHEMA_NAME(schema_id) + '].[' + name + ']'
FROM sys.views
WHERE SCHEMA_NAME(schema_id) = @p1
EXEC SP_EXECUTESQL @stmt`

	dropTablesQuery = `DECLARE @stmt NVARCHAR(max)
DECLARE @n CHAR(1)
SET @n = CHAR(10)
SELECT @stmt = ISNULL(@stmt + @n, '') +
    'DROP TABLE [' + SCHEMA_NAME(schema_id) + '].[' + name + ']'
FROM sys.tables
WHERE SCHEMA_NAME(schema_id) = @p1
EXEC SP_EXECUTESQL @stmt`
)

// MSSQLAdapter implements the database.Connector interface for SQL Server.
type MSSQLAdapter struct {
	database.Pool
	conn    *ConnString
	flavour *flavour.MSSQLFlavour
	lock    database.SessionLock
}

// NewMSSQLAdapter creates a new SQL Server adapter from a
// sqlserver://host:port;key=value URL.
func NewMSSQLAdapter(config database.Config) (*MSSQLAdapter, error) {
	conn, err := ParseConnString(config.URL)
	if err != nil {
		return nil, err
	}
	info := domain.ConnectionInfo{
		Provider: string(flavour.SQLServer),
		Host:     conn.Host,
		Port:     conn.Port,
		Database: conn.Database(),
		Schema:   conn.Schema(),
		User:     conn.Get("user"),
	}
	return &MSSQLAdapter{
		Pool:    database.NewPool(config, info, classify),
		conn:    conn,
		flavour: flavour.NewMSSQL(),
	}, nil
}

// Schema returns the schema the adapter works in.
func (a *MSSQLAdapter) Schema() string { return a.conn.Schema() }

// Connect establishes a connection to the SQL Server database.
func (a *MSSQLAdapter) Connect(ctx context.Context) error {
	return a.Open(ctx, "sqlserver", a.conn.DSN(a.conn.Database()), 0)
}

// Flavour returns the SQL Server flavour.
func (a *MSSQLAdapter) Flavour() flavour.Flavour { return a.flavour }

// Placeholder returns @pn.
func (a *MSSQLAdapter) Placeholder(n int) string { return fmt.Sprintf("@p%d", n) }

// Quote quotes an identifier with brackets.
func Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (a *MSSQLAdapter) quoteTable(name string) string {
	return Quote(a.Schema()) + "." + Quote(name)
}

// AcquireLock takes an exclusive session applock on a reserved connection.
func (a *MSSQLAdapter) AcquireLock(ctx context.Context) error {
	timeout := a.Config().LockTimeout.Milliseconds()
	return a.lock.Acquire(ctx, &a.Pool, func(ctx context.Context, conn *sql.Conn) error {
		var res int
		if err := conn.QueryRowContext(ctx, acquireLockQuery, flavour.MSSQLAdvisoryLockResource, timeout).Scan(&res); err != nil {
			return err
		}
		if res < 0 {
			return database.ErrLockTimeout
		}
		return nil
	})
}

// ReleaseLock releases the applock.
func (a *MSSQLAdapter) ReleaseLock(ctx context.Context) error {
	return a.lock.Release(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, releaseLockQuery, flavour.MSSQLAdvisoryLockResource)
		return err
	})
}

// Reset drops every foreign key, view and table in the schema.
func (a *MSSQLAdapter) Reset(ctx context.Context) error {
	for _, q := range []string{dropForeignKeysQuery, dropViewsQuery, dropTablesQuery} {
		if _, err := a.Execute(ctx, q, a.Schema()); err != nil {
			return fmt.Errorf("failed to reset schema: %w", err)
		}
	}
	debug.Debug("reset sql server schema", "schema", a.Schema())
	return nil
}

// admin opens a short-lived connection to the master database.
func (a *MSSQLAdapter) admin(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", a.conn.DSN("master"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, a.MapError("connect", err)
	}
	return db, nil
}

// CreateDatabase creates the database of the connection string and its
// schema.
func (a *MSSQLAdapter) CreateDatabase(ctx context.Context) (string, error) {
	name := a.conn.Database()
	db, err := a.admin(ctx)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+Quote(name)); err != nil {
		return "", a.MapError("create database", err)
	}

	if a.Schema() != DefaultSchema {
		target, err := sql.Open("sqlserver", a.conn.DSN(name))
		if err != nil {
			return "", fmt.Errorf("failed to open database: %w", err)
		}
		defer target.Close()
		if _, err := target.ExecContext(ctx, "CREATE SCHEMA "+Quote(a.Schema())); err != nil {
			return "", a.MapError("create schema", err)
		}
	}
	return name, nil
}

// DropDatabase drops the database of the connection string.
func (a *MSSQLAdapter) DropDatabase(ctx context.Context) error {
	if err := a.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db, err := a.admin(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "DROP DATABASE "+Quote(a.conn.Database())); err != nil {
		return a.MapError("drop database", err)
	}
	return nil
}

// CreateShadowDatabase creates a database on the same server and returns a
// connection string pointing at it.
func (a *MSSQLAdapter) CreateShadowDatabase(ctx context.Context, name string) (string, error) {
	if _, err := a.Execute(ctx, "CREATE DATABASE "+Quote(name)); err != nil {
		return "", domain.NewShadowDatabaseCreationError(err)
	}
	shadow := a.conn.WithDatabase(name)
	if a.Schema() != DefaultSchema {
		db, err := sql.Open("sqlserver", shadow.DSN(name))
		if err != nil {
			return "", domain.NewShadowDatabaseCreationError(err)
		}
		defer db.Close()
		if _, err := db.ExecContext(ctx, "CREATE SCHEMA "+Quote(a.Schema())); err != nil {
			return "", domain.NewShadowDatabaseCreationError(err)
		}
	}
	return shadow.String(), nil
}

// DropShadowDatabase drops a shadow database.
func (a *MSSQLAdapter) DropShadowDatabase(ctx context.Context, name string) error {
	if _, err := a.Execute(ctx, "DROP DATABASE IF EXISTS "+Quote(name)); err != nil {
		return fmt.Errorf("failed to drop shadow database: %w", err)
	}
	return nil
}

// Version returns @@VERSION.
func (a *MSSQLAdapter) Version(ctx context.Context) (string, error) {
	versions, err := a.QueryStrings(ctx, "SELECT @@VERSION")
	if err != nil {
		return "", a.MapError("version", err)
	}
	if len(versions) == 0 {
		return "", errors.New("@@VERSION returned no row")
	}
	return versions[0], nil
}

// CountRows implements destructive.Inspector.
func (a *MSSQLAdapter) CountRows(ctx context.Context, table string, columns []string) (destructive.TableCounts, error) {
	return database.CountRows(ctx, a, a.quoteTable(table), Quote, columns)
}

// CountValues implements destructive.Inspector.
func (a *MSSQLAdapter) CountValues(ctx context.Context, table, column string, values []string) (int64, error) {
	return database.CountValues(ctx, a, a.quoteTable(table), Quote(column), values, a.Placeholder)
}

func classify(err error) string {
	var msErr mssqldb.Error
	if !errors.As(err, &msErr) {
		return ""
	}
	switch msErr.Number {
	case 18456:
		return domain.CodeAuthenticationFailed
	case 4060:
		return domain.CodeDatabaseDoesNotExist
	case 1801:
		return domain.CodeDatabaseAlreadyExists
	case 229, 262:
		return domain.CodeDatabaseAccessDenied
	case 1222:
		return domain.CodeDatabaseTimeout
	}
	return ""
}

// Ensure MSSQLAdapter implements Connector interface.
var _ database.Connector = (*MSSQLAdapter)(nil)
