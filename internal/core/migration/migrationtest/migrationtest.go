// Package migrationtest builds SQL schemas from Prisma models for tests.
package migrationtest

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/datamodel"
)

// Datasource renders a datasource block for a provider.
func Datasource(p flavour.Provider) string {
	return "datasource db {\n  provider = \"" + string(p) + "\"\n  url      = \"file:test.db\"\n}\n"
}

// Schema calculates the SQL schema of models on f.
func Schema(t testing.TB, f flavour.Flavour, models string) *sqlschema.Schema {
	t.Helper()
	dm, err := datamodel.Parse("schema.prisma", Datasource(f.Provider())+models)
	require.NoError(t, err)
	schema, err := calculator.New(f).Calculate(dm)
	require.NoError(t, err)
	return schema
}

// Flavour returns the default flavour of p.
func Flavour(t testing.TB, p flavour.Provider) flavour.Flavour {
	t.Helper()
	f, err := flavour.New(p)
	require.NoError(t, err)
	return f
}

// Providers lists every supported provider.
var Providers = []flavour.Provider{flavour.Postgres, flavour.MySQL, flavour.SQLite, flavour.SQLServer}
