package service

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/database/mssql"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/database/mysql"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/database/postgres"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/database/sqlite"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

// ConnectorFactory creates an unconnected connector for a provider.
type ConnectorFactory func(provider flavour.Provider, config database.Config) (database.Connector, error)

// NewConnector creates the connector of a provider.
func NewConnector(provider flavour.Provider, config database.Config) (database.Connector, error) {
	var (
		connector database.Connector
		err       error
	)
	switch provider {
	case flavour.Postgres:
		var a *postgres.PostgresAdapter
		if a, err = postgres.NewPostgresAdapter(config); err == nil {
			connector = a
		}
	case flavour.MySQL:
		var a *mysql.MySQLAdapter
		if a, err = mysql.NewMySQLAdapter(config); err == nil {
			connector = a
		}
	case flavour.SQLite:
		var a *sqlite.SQLiteAdapter
		if a, err = sqlite.NewSQLiteAdapter(config); err == nil {
			connector = a
		}
	case flavour.SQLServer:
		var a *mssql.MSSQLAdapter
		if a, err = mssql.NewMSSQLAdapter(config); err == nil {
			connector = a
		}
	default:
		return nil, fmt.Errorf("unsupported database provider: %s", provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s connector: %w", provider, err)
	}
	return connector, nil
}

// ProviderFromURL infers the provider from the scheme of a connection URL.
func ProviderFromURL(url string) (flavour.Provider, error) {
	u := strings.ToLower(strings.TrimSpace(url))
	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return flavour.Postgres, nil
	case strings.HasPrefix(u, "mysql://"):
		return flavour.MySQL, nil
	case strings.HasPrefix(u, "file:"), strings.HasPrefix(u, "sqlite:"):
		return flavour.SQLite, nil
	case strings.HasPrefix(u, mssql.Scheme):
		return flavour.SQLServer, nil
	}
	return "", fmt.Errorf("unsupported connection string scheme: %s", scheme(url))
}

func scheme(url string) string {
	if i := strings.Index(url, ":"); i >= 0 {
		return url[:i]
	}
	return url
}

// schemaOf returns the database schema the connector works in, if the
// provider has schemas.
func schemaOf(c database.Connector) string {
	if s, ok := c.(interface{ Schema() string }); ok {
		return s.Schema()
	}
	return ""
}
