package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/config"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

func TestResolveDatasourceFromURL(t *testing.T) {
	ds, err := ResolveDatasource(&config.Config{DatasourceURL: "postgresql://user:pw@localhost:5432/app"})
	require.NoError(t, err)
	assert.Equal(t, flavour.Postgres, ds.Provider)
	assert.Empty(t, ds.ShadowDatabaseURL)

	_, err = ResolveDatasource(&config.Config{DatasourceURL: "mongodb://localhost"})
	assert.Error(t, err)
}

func TestResolveDatasourceFromSchema(t *testing.T) {
	fs := afero.NewMemMapFs()
	prev := config.AppFs
	config.AppFs = fs
	t.Cleanup(func() { config.AppFs = prev })

	t.Setenv("DATABASE_URL", "mysql://root@localhost:3306/app")
	t.Setenv("SHADOW_DATABASE_URL", "mysql://root@localhost:3306/shadow")
	schema := `datasource db {
  provider          = "mysql"
  url               = env("DATABASE_URL")
  shadowDatabaseUrl = env("SHADOW_DATABASE_URL")
}
`
	require.NoError(t, afero.WriteFile(fs, "prisma/schema.prisma", []byte(schema), 0o644))

	ds, err := ResolveDatasource(&config.Config{SchemaPath: "prisma/schema.prisma"})
	require.NoError(t, err)
	assert.Equal(t, Datasource{
		Provider:          flavour.MySQL,
		URL:               "mysql://root@localhost:3306/app",
		ShadowDatabaseURL: "mysql://root@localhost:3306/shadow",
	}, ds)

	_, err = ResolveDatasource(&config.Config{SchemaPath: "missing.prisma"})
	assert.Error(t, err)
}

func TestDatasourceFromInvalidSchema(t *testing.T) {
	_, err := DatasourceFromSchema("schema.prisma", "model {")
	assert.True(t, domain.HasCode(err, domain.CodeSchemaParserError))

	_, err = DatasourceFromSchema("schema.prisma", "model User {\n  id Int @id\n}\n")
	assert.Error(t, err)
}

func TestNewContainer(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		DatasourceURL: "file:" + filepath.Join(t.TempDir(), "dev.db"),
		LockTimeout:   time.Second,
		MetricsAddr:   "127.0.0.1:0",
	}

	c, err := NewContainer(ctx, cfg)
	require.NoError(t, err)
	assert.Same(t, cfg, c.Config())
	assert.NotNil(t, c.Telemetry())

	svc := c.MigrationService()
	require.NotNil(t, svc)
	assert.Equal(t, flavour.SQLite, svc.Connector().Flavour().Provider())
	require.NoError(t, svc.EnsureConnectionValidity(ctx))

	require.NoError(t, c.Close(ctx))
}

func TestDatabaseConfigDefaults(t *testing.T) {
	dc := DatabaseConfig(&config.Config{}, "file:dev.db")
	assert.Equal(t, "file:dev.db", dc.URL)
	assert.Positive(t, dc.MaxConnections)
	assert.Positive(t, dc.LockTimeout)
}
