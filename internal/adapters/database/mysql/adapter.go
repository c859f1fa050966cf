// Package mysql implements MySQL database adapter.
package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql" // MySQL driver

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// Character set and collation of databases created by the engine.
const createDatabaseOptions = "CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"

var systemDatabases = regexp.MustCompile(`(?i)^(mysql|information_schema|performance_schema|sys)$`)

// MySQLAdapter implements the database.Connector interface for MySQL and
// MariaDB.
type MySQLAdapter struct {
	database.Pool
	cfg     *mysql.Config
	url     *url.URL
	flavour *flavour.MySQLFlavour
	lock    database.SessionLock
}

// NewMySQLAdapter creates a new MySQL adapter. The URL is either a
// mysql:// URL or a go-sql-driver DSN.
func NewMySQLAdapter(config database.Config) (*MySQLAdapter, error) {
	cfg, u, err := parseURL(config.URL)
	if err != nil {
		return nil, err
	}

	host, port, _ := net.SplitHostPort(cfg.Addr)
	info := domain.ConnectionInfo{
		Provider: string(flavour.MySQL),
		Host:     host,
		Port:     port,
		Database: cfg.DBName,
		Schema:   cfg.DBName,
		User:     cfg.User,
	}
	return &MySQLAdapter{
		Pool:    database.NewPool(config, info, classify),
		cfg:     cfg,
		url:     u,
		flavour: flavour.NewMySQL(flavour.MySQLOptions{}),
	}, nil
}

// parseURL converts a mysql:// URL into a driver config.
func parseURL(raw string) (*mysql.Config, *url.URL, error) {
	if !strings.HasPrefix(raw, "mysql://") {
		cfg, err := mysql.ParseDSN(raw)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to parse mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		return cfg, nil, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse mysql url: %w", err)
	}
	cfg := mysql.NewConfig()
	cfg.User = u.User.Username()
	cfg.Passwd, _ = u.User.Password()
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true

	q := u.Query()
	if socket := q.Get("socket"); socket != "" {
		cfg.Net = "unix"
		cfg.Addr = socket
	} else {
		port := u.Port()
		if port == "" {
			port = "3306"
		}
		cfg.Net = "tcp"
		cfg.Addr = net.JoinHostPort(u.Hostname(), port)
	}
	if q.Get("sslaccept") == "accept_invalid_certs" {
		cfg.TLSConfig = "skip-verify"
	}
	if t := q.Get("connect_timeout"); t != "" {
		if d, err := time.ParseDuration(t + "s"); err == nil {
			cfg.Timeout = d
		}
	}
	return cfg, u, nil
}

func (a *MySQLAdapter) dsn(dbName string) string {
	cfg := a.cfg.Clone()
	cfg.DBName = dbName
	return cfg.FormatDSN()
}

// Connect establishes a connection and tunes the flavour to the server.
func (a *MySQLAdapter) Connect(ctx context.Context) error {
	if systemDatabases.MatchString(a.cfg.DBName) {
		return fmt.Errorf("the %q database is a system database, it should not be altered with prisma migrate. Please connect to another database", a.cfg.DBName)
	}
	if err := a.Open(ctx, "mysql", a.dsn(a.cfg.DBName), 0); err != nil {
		return err
	}

	var opts flavour.MySQLOptions
	if err := a.QueryRow(ctx, "SELECT @@version, @@lower_case_table_names").Scan(&opts.Version, &opts.LowerCaseTableNames); err != nil {
		return a.MapError("connect", err)
	}
	a.flavour = flavour.NewMySQL(opts)
	debug.Debug("connected to mysql", "version", opts.Version, "mariadb", a.flavour.IsMariaDB())
	return nil
}

// Flavour returns the MySQL flavour of the connected server.
func (a *MySQLAdapter) Flavour() flavour.Flavour { return a.flavour }

// Placeholder returns ?.
func (a *MySQLAdapter) Placeholder(int) string { return "?" }

func quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// AcquireLock takes GET_LOCK on a reserved connection.
func (a *MySQLAdapter) AcquireLock(ctx context.Context) error {
	timeout := int(a.Config().LockTimeout / time.Second)
	return a.lock.Acquire(ctx, &a.Pool, func(ctx context.Context, conn *sql.Conn) error {
		var got sql.NullInt64
		if err := conn.QueryRowContext(ctx, "SELECT GET_LOCK(?, ?)", flavour.MySQLAdvisoryLockName, timeout).Scan(&got); err != nil {
			return err
		}
		if !got.Valid || got.Int64 != 1 {
			return database.ErrLockTimeout
		}
		return nil
	})
}

// ReleaseLock releases the advisory lock.
func (a *MySQLAdapter) ReleaseLock(ctx context.Context) error {
	return a.lock.Release(ctx, func(ctx context.Context, conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "SELECT RELEASE_LOCK(?)", flavour.MySQLAdvisoryLockName)
		return err
	})
}

// Reset drops and recreates the database, then reconnects so that no pooled
// connection points at the dropped database.
func (a *MySQLAdapter) Reset(ctx context.Context) error {
	name := quote(a.cfg.DBName)
	if _, err := a.Execute(ctx, "DROP DATABASE "+name); err != nil {
		return fmt.Errorf("failed to drop database: %w", err)
	}
	if _, err := a.Execute(ctx, "CREATE DATABASE "+name+" "+createDatabaseOptions); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	if err := a.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return a.Connect(ctx)
}

func (a *MySQLAdapter) admin(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("mysql", a.dsn(""))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, a.MapError("connect", err)
	}
	return db, nil
}

// CreateDatabase creates the database of the URL.
func (a *MySQLAdapter) CreateDatabase(ctx context.Context) (string, error) {
	db, err := a.admin(ctx)
	if err != nil {
		return "", err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "CREATE DATABASE "+quote(a.cfg.DBName)+" "+createDatabaseOptions); err != nil {
		return "", a.MapError("create database", err)
	}
	return a.cfg.DBName, nil
}

// DropDatabase drops the database of the URL.
func (a *MySQLAdapter) DropDatabase(ctx context.Context) error {
	if err := a.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	db, err := a.admin(ctx)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, "DROP DATABASE "+quote(a.cfg.DBName)); err != nil {
		return a.MapError("drop database", err)
	}
	return nil
}

// CreateShadowDatabase creates a database on the same server.
func (a *MySQLAdapter) CreateShadowDatabase(ctx context.Context, name string) (string, error) {
	if _, err := a.Execute(ctx, "CREATE DATABASE "+quote(name)); err != nil {
		return "", domain.NewShadowDatabaseCreationError(err)
	}
	if a.url == nil {
		return a.dsn(name), nil
	}
	shadow := *a.url
	shadow.Path = "/" + name
	return shadow.String(), nil
}

// DropShadowDatabase drops a shadow database.
func (a *MySQLAdapter) DropShadowDatabase(ctx context.Context, name string) error {
	if _, err := a.Execute(ctx, "DROP DATABASE IF EXISTS "+quote(name)); err != nil {
		return fmt.Errorf("failed to drop shadow database: %w", err)
	}
	return nil
}

// Version returns @@version.
func (a *MySQLAdapter) Version(ctx context.Context) (string, error) {
	versions, err := a.QueryStrings(ctx, "SELECT @@version")
	if err != nil {
		return "", a.MapError("version", err)
	}
	if len(versions) == 0 {
		return "", errors.New("@@version returned no row")
	}
	return versions[0], nil
}

// CountRows implements destructive.Inspector.
func (a *MySQLAdapter) CountRows(ctx context.Context, table string, columns []string) (destructive.TableCounts, error) {
	return database.CountRows(ctx, a, quote(table), quote, columns)
}

// CountValues implements destructive.Inspector.
func (a *MySQLAdapter) CountValues(ctx context.Context, table, column string, values []string) (int64, error) {
	return database.CountValues(ctx, a, quote(table), quote(column), values, a.Placeholder)
}

func classify(err error) string {
	var myErr *mysql.MySQLError
	if !errors.As(err, &myErr) {
		return ""
	}
	switch myErr.Number {
	case 1045:
		return domain.CodeAuthenticationFailed
	case 1049:
		return domain.CodeDatabaseDoesNotExist
	case 1007:
		return domain.CodeDatabaseAlreadyExists
	case 1044, 1142:
		return domain.CodeDatabaseAccessDenied
	case 1205:
		return domain.CodeDatabaseTimeout
	case 3024:
		return domain.CodeOperationTimeout
	}
	return ""
}

// Ensure MySQLAdapter implements Connector interface.
var _ database.Connector = (*MySQLAdapter)(nil)
