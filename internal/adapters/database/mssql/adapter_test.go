package mssql

import (
	"context"
	"os"
	"testing"

	mssqldb "github.com/microsoft/go-mssqldb"
	"github.com/microsoft/go-mssqldb/msdsn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/migrationtest"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/renderer"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

func TestParseConnString(t *testing.T) {
	c, err := ParseConnString("sqlserver://db.local:1434;database=app;user=SA;password={p;ss};schema=tenant;trustServerCertificate=true")
	require.NoError(t, err)
	assert.Equal(t, "db.local", c.Host)
	assert.Equal(t, "1434", c.Port)
	assert.Equal(t, "app", c.Database())
	assert.Equal(t, "tenant", c.Schema())
	assert.Equal(t, "SA", c.Get("user"))
	assert.Equal(t, "p;ss", c.Get("password"))

	c, err = ParseConnString(`sqlserver://localhost\SQLEXPRESS;initial catalog=app`)
	require.NoError(t, err)
	assert.Equal(t, "SQLEXPRESS", c.Instance)
	assert.Empty(t, c.Port)
	assert.Equal(t, "app", c.Database())
	assert.Equal(t, DefaultSchema, c.Schema())

	c, err = ParseConnString("sqlserver://localhost")
	require.NoError(t, err)
	assert.Equal(t, "1433", c.Port)
	assert.Equal(t, "master", c.Database())

	_, err = ParseConnString("postgresql://localhost/app")
	assert.Error(t, err)
	_, err = ParseConnString("sqlserver://localhost;database")
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	c, err := ParseConnString("sqlserver://db.local:1434;database=app;user=SA;password={p;ss};schema=tenant;connection_limit=2")
	require.NoError(t, err)

	dsn := c.DSN("shadow")
	assert.NotContains(t, dsn, "schema=")
	assert.NotContains(t, dsn, "connection_limit")
	assert.Contains(t, dsn, "encrypt=disable")

	cfg, err := msdsn.Parse(dsn)
	require.NoError(t, err)
	assert.Equal(t, "db.local", cfg.Host)
	assert.Equal(t, uint64(1434), cfg.Port)
	assert.Equal(t, "shadow", cfg.Database)
	assert.Equal(t, "SA", cfg.User)
	assert.Equal(t, "p;ss", cfg.Password)
}

func TestWithDatabaseKeepsOriginal(t *testing.T) {
	c, err := ParseConnString("sqlserver://localhost:1433;database=app;schema=tenant")
	require.NoError(t, err)

	shadow := c.WithDatabase("prisma_migrate_shadow_db_1")
	assert.Equal(t, "app", c.Database())
	assert.Equal(t, "sqlserver://localhost:1433;database=prisma_migrate_shadow_db_1;schema=tenant", shadow.String())

	parsed, err := ParseConnString(shadow.String())
	require.NoError(t, err)
	assert.Equal(t, "tenant", parsed.Schema())
}

func TestNewMSSQLAdapter(t *testing.T) {
	a, err := NewMSSQLAdapter(database.Config{URL: "sqlserver://db.local;database=app;user=SA"})
	require.NoError(t, err)
	info := a.Info()
	assert.Equal(t, "db.local", info.Host)
	assert.Equal(t, "app", info.Database)
	assert.Equal(t, "dbo", info.Schema)
	assert.Equal(t, "SA", info.User)
	assert.Equal(t, "@p2", a.Placeholder(2))
	assert.Equal(t, "[a]]b]", Quote("a]b"))
}

func TestClassify(t *testing.T) {
	tests := []struct {
		number int32
		want   string
	}{
		{18456, domain.CodeAuthenticationFailed},
		{4060, domain.CodeDatabaseDoesNotExist},
		{1801, domain.CodeDatabaseAlreadyExists},
		{262, domain.CodeDatabaseAccessDenied},
		{102, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classify(mssqldb.Error{Number: tt.number}), "error %d", tt.number)
	}
}

func TestColumnType(t *testing.T) {
	ct := columnType("nvarchar", 2000, 0, 0)
	assert.Equal(t, "NVarChar(1000)", ct.NativeType.String())
	assert.Equal(t, sqlschema.FamilyString, ct.Family)

	ct = columnType("varbinary", -1, 0, 0)
	assert.Equal(t, "VarBinary(Max)", ct.NativeType.String())

	ct = columnType("datetime2", 8, 27, 7)
	assert.Equal(t, "DateTime2", ct.NativeType.String())

	ct = columnType("decimal", 17, 32, 16)
	assert.Equal(t, "Decimal(32,16)", ct.NativeType.String())

	ct = columnType("bit", 1, 1, 0)
	assert.Equal(t, sqlschema.FamilyBoolean, ct.Family)

	ct = columnType("geography", -1, 0, 0)
	assert.Equal(t, sqlschema.FamilyUnsupported, ct.Family)
}

func connect(t *testing.T) *MSSQLAdapter {
	t.Helper()
	url := os.Getenv("TEST_MSSQL_URL")
	if url == "" {
		t.Skip("Requires database connection")
	}
	a, err := NewMSSQLAdapter(database.Config{URL: url})
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, a.Connect(ctx))
	require.NoError(t, a.Reset(ctx))
	t.Cleanup(func() { a.Disconnect(context.Background()) })
	return a
}

func TestDescribeRoundTrip(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	target := migrationtest.Schema(t, a.Flavour(), `
model User {
  id     Int     @id @default(autoincrement())
  email  String  @unique
  active Boolean @default(true)
  posts  Post[]
}

model Post {
  id        Int      @id @default(autoincrement())
  createdAt DateTime @default(now())
  authorId  Int
  author    User     @relation(fields: [authorId], references: [id])
}
`)
	r := renderer.NewMSSQL(a.Flavour(), a.Schema())
	script := applier.RenderScript(r, differ.Diff(sqlschema.Empty(), target, a.Flavour()), destructive.Diagnostics{})
	_, err := applier.New(a).ApplyScript(ctx, script)
	require.NoError(t, err)

	described, err := a.Describe(ctx)
	require.NoError(t, err)
	m := differ.Diff(described, target, a.Flavour())
	assert.True(t, m.IsEmpty(), "unexpected steps: %s", differ.Summary(m))
}

func TestAdvisoryLock(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	require.NoError(t, a.AcquireLock(ctx))
	require.NoError(t, a.ReleaseLock(ctx))
}
