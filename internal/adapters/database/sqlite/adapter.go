// Package sqlite implements SQLite database adapter.
package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// lockPollInterval is the delay between attempts to create the lock table.
const lockPollInterval = 50 * time.Millisecond

// SQLiteAdapter implements the database.Connector interface for SQLite.
type SQLiteAdapter struct {
	database.Pool
	path    string
	flavour *flavour.SQLiteFlavour
}

// NewSQLiteAdapter creates a new SQLite adapter. The URL is a file path,
// optionally prefixed with file: or sqlite:.
func NewSQLiteAdapter(config database.Config) (*SQLiteAdapter, error) {
	path := FilePath(config.URL)
	if path == "" {
		return nil, fmt.Errorf("invalid sqlite url %q", config.URL)
	}
	info := domain.ConnectionInfo{Provider: string(flavour.SQLite), Database: path}
	return &SQLiteAdapter{
		Pool:    database.NewPool(config, info, classify),
		path:    path,
		flavour: flavour.NewSQLite(),
	}, nil
}

// FilePath extracts the database file path from a SQLite URL.
func FilePath(url string) string {
	path := strings.TrimSpace(url)
	for _, prefix := range []string{"file://", "file:", "sqlite://", "sqlite:"} {
		if strings.HasPrefix(path, prefix) {
			path = path[len(prefix):]
			break
		}
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	return path
}

// Path returns the database file path.
func (a *SQLiteAdapter) Path() string { return a.path }

func (a *SQLiteAdapter) dsn() string {
	return "file:" + a.path + "?_foreign_keys=1&_busy_timeout=5000"
}

// Connect opens the database file, creating it when missing.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	if dir := filepath.Dir(a.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	// One connection for writes, as SQLite serialises writers anyway.
	return a.Open(ctx, "sqlite3", a.dsn(), 1)
}

// Flavour returns the SQLite flavour.
func (a *SQLiteAdapter) Flavour() flavour.Flavour { return a.flavour }

// Placeholder returns ?.
func (a *SQLiteAdapter) Placeholder(int) string { return "?" }

func quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

// AcquireLock creates the sentinel lock table, retrying until the lock
// timeout while another process holds it.
func (a *SQLiteAdapter) AcquireLock(ctx context.Context) error {
	deadline := time.Now().Add(a.Config().LockTimeout)
	stmt := "CREATE TABLE " + quote(flavour.SQLiteLockTable) + " (id INTEGER PRIMARY KEY)"
	for {
		_, err := a.Execute(ctx, stmt)
		if err == nil {
			return nil
		}
		if !strings.Contains(err.Error(), "already exists") {
			return a.MapError("acquire lock", err)
		}
		if time.Now().After(deadline) {
			return domain.NewDatabaseLockAcquisitionError(a.Info(), errors.New("the lock table is held by another process"))
		}
		select {
		case <-ctx.Done():
			return domain.NewDatabaseLockAcquisitionError(a.Info(), ctx.Err())
		case <-time.After(lockPollInterval):
		}
	}
}

// ReleaseLock drops the sentinel lock table.
func (a *SQLiteAdapter) ReleaseLock(ctx context.Context) error {
	if _, err := a.Execute(ctx, "DROP TABLE IF EXISTS "+quote(flavour.SQLiteLockTable)); err != nil {
		return fmt.Errorf("failed to release lock: %w", err)
	}
	return nil
}

// Reset drops every view and table except the lock table.
func (a *SQLiteAdapter) Reset(ctx context.Context) error {
	objects, err := a.schemaObjects(ctx)
	if err != nil {
		return err
	}

	conn, err := a.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=OFF"); err != nil {
		return fmt.Errorf("failed to disable foreign keys: %w", err)
	}
	for _, obj := range objects {
		if _, err := conn.ExecContext(ctx, "DROP "+strings.ToUpper(obj.kind)+" "+quote(obj.name)); err != nil {
			return fmt.Errorf("failed to drop %s %s: %w", obj.kind, obj.name, err)
		}
	}
	if _, err := conn.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	debug.Debug("reset sqlite database", "path", a.path, "objects", len(objects))
	return nil
}

type schemaObject struct {
	kind string
	name string
}

// schemaObjects lists views first so tables are dropped after the views
// selecting from them.
func (a *SQLiteAdapter) schemaObjects(ctx context.Context) ([]schemaObject, error) {
	rows, err := a.Query(ctx, `SELECT type, name FROM sqlite_master
WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%' AND name <> ?
ORDER BY type DESC, name`, flavour.SQLiteLockTable)
	if err != nil {
		return nil, fmt.Errorf("failed to list schema objects: %w", err)
	}
	defer rows.Close()

	var out []schemaObject
	for rows.Next() {
		var obj schemaObject
		if err := rows.Scan(&obj.kind, &obj.name); err != nil {
			return nil, fmt.Errorf("failed to list schema objects: %w", err)
		}
		out = append(out, obj)
	}
	return out, rows.Err()
}

// CreateDatabase creates the database file.
func (a *SQLiteAdapter) CreateDatabase(ctx context.Context) (string, error) {
	if _, err := os.Stat(a.path); err == nil {
		return "", domain.NewDatabaseAlreadyExists(a.Info())
	}
	if err := a.Connect(ctx); err != nil {
		return "", err
	}
	return a.path, a.Disconnect(ctx)
}

// DropDatabase closes the connection and deletes the database file.
func (a *SQLiteAdapter) DropDatabase(ctx context.Context) error {
	if err := a.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	if err := os.Remove(a.path); err != nil {
		if os.IsNotExist(err) {
			return domain.NewDatabaseDoesNotExist(a.Info())
		}
		return fmt.Errorf("failed to remove database file: %w", err)
	}
	return nil
}

func shadowPath(name string) string {
	return filepath.Join(os.TempDir(), name+".db")
}

// CreateShadowDatabase creates an empty database file in the temporary
// directory.
func (a *SQLiteAdapter) CreateShadowDatabase(ctx context.Context, name string) (string, error) {
	path := shadowPath(name)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return "", domain.NewShadowDatabaseCreationError(err)
	}
	return "file:" + path, nil
}

// DropShadowDatabase deletes a shadow database file.
func (a *SQLiteAdapter) DropShadowDatabase(ctx context.Context, name string) error {
	if err := os.Remove(shadowPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to drop shadow database: %w", err)
	}
	return nil
}

// Version returns the SQLite library version.
func (a *SQLiteAdapter) Version(ctx context.Context) (string, error) {
	versions, err := a.QueryStrings(ctx, "SELECT sqlite_version()")
	if err != nil {
		return "", a.MapError("version", err)
	}
	if len(versions) == 0 {
		return "", errors.New("sqlite_version returned no row")
	}
	return versions[0], nil
}

// CountRows implements destructive.Inspector.
func (a *SQLiteAdapter) CountRows(ctx context.Context, table string, columns []string) (destructive.TableCounts, error) {
	return database.CountRows(ctx, a, quote(table), quote, columns)
}

// CountValues implements destructive.Inspector.
func (a *SQLiteAdapter) CountValues(ctx context.Context, table, column string, values []string) (int64, error) {
	return database.CountValues(ctx, a, quote(table), quote(column), values, a.Placeholder)
}

func classify(err error) string {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return ""
	}
	switch sqliteErr.Code {
	case sqlite3.ErrCantOpen, sqlite3.ErrNotFound:
		return domain.CodeDatabaseDoesNotExist
	case sqlite3.ErrPerm, sqlite3.ErrAuth, sqlite3.ErrReadonly:
		return domain.CodeDatabaseAccessDenied
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return domain.CodeDatabaseTimeout
	}
	return ""
}

// Ensure SQLiteAdapter implements Connector interface.
var _ database.Connector = (*SQLiteAdapter)(nil)
