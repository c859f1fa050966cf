package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/migrationtest"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/renderer"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

const blogModels = `
model User {
  id    Int     @id @default(autoincrement())
  email String  @unique
  name  String?
  posts Post[]
}

model Post {
  id        Int      @id @default(autoincrement())
  title     String   @default("untitled")
  published Boolean  @default(false)
  createdAt DateTime @default(now())
  authorId  Int
  author    User     @relation(fields: [authorId], references: [id])

  @@index([title])
}
`

func connect(t *testing.T) *SQLiteAdapter {
	t.Helper()
	a, err := NewSQLiteAdapter(database.Config{URL: "file:" + filepath.Join(t.TempDir(), "dev.db"), LockTimeout: 200 * time.Millisecond})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Disconnect(context.Background()) })
	return a
}

func migrate(t *testing.T, a *SQLiteAdapter, models string) *sqlschema.Schema {
	t.Helper()
	ctx := context.Background()
	current, err := a.Describe(ctx)
	require.NoError(t, err)

	target := migrationtest.Schema(t, a.Flavour(), models)
	m := differ.Diff(current, target, a.Flavour())
	r, err := renderer.New(a.Flavour())
	require.NoError(t, err)

	_, err = applier.New(a).ApplyScript(ctx, applier.RenderScript(r, m, destructive.Diagnostics{}))
	require.NoError(t, err)
	return target
}

func TestFilePath(t *testing.T) {
	assert.Equal(t, "./dev.db", FilePath("file:./dev.db"))
	assert.Equal(t, "/tmp/x.db", FilePath("file:/tmp/x.db?connection_limit=1"))
	assert.Equal(t, "dev.db", FilePath("dev.db"))
	assert.Equal(t, "/abs.db", FilePath("sqlite:///abs.db"))
}

func TestDescribeRoundTrip(t *testing.T) {
	a := connect(t)
	target := migrate(t, a, blogModels)

	described, err := a.Describe(context.Background())
	require.NoError(t, err)

	user, ok := described.Table("User")
	require.True(t, ok)
	assert.Equal(t, []string{"id"}, user.PrimaryKey.Columns)
	id, _ := user.Column("id")
	assert.True(t, id.AutoIncrement)
	name, _ := user.Column("name")
	assert.Equal(t, sqlschema.Nullable, name.Type.Arity)

	post, ok := described.Table("Post")
	require.True(t, ok)
	require.Len(t, post.ForeignKeys, 1)
	assert.Equal(t, "Post_authorId_fkey", post.ForeignKeys[0].ConstraintName)
	assert.Equal(t, "User", post.ForeignKeys[0].ReferencedTable)
	createdAt, _ := post.Column("createdAt")
	require.NotNil(t, createdAt.Default)
	assert.Equal(t, sqlschema.DefaultNow, createdAt.Default.Kind)
	title, _ := post.Column("title")
	require.NotNil(t, title.Default)
	assert.Equal(t, "untitled", title.Default.Value.Raw)

	m := differ.Diff(described, target, a.Flavour())
	assert.True(t, m.IsEmpty(), "unexpected steps: %v", differ.Summary(m))
}

func TestDescribeSkipsMigrationsTable(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	_, err := a.Execute(ctx, `CREATE TABLE "_prisma_migrations" (id TEXT PRIMARY KEY)`)
	require.NoError(t, err)

	s, err := a.Describe(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}

func TestRedefinitionKeepsData(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	migrate(t, a, `
model Post {
  id    Int    @id
  title String
  views Int?
}
`)
	_, err := a.Execute(ctx, `INSERT INTO "Post" ("id", "title", "views") VALUES (1, 'hello', 3)`)
	require.NoError(t, err)

	migrate(t, a, `
model Post {
  id    Int    @id
  title String
  views String?
}
`)
	var views string
	require.NoError(t, a.QueryRow(ctx, `SELECT "views" FROM "Post" WHERE "id" = 1`).Scan(&views))
	assert.Equal(t, "3", views)
}

func TestCountProbes(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	migrate(t, a, `
model Cat {
  id   Int     @id
  mood String?
}
`)
	for _, stmt := range []string{
		`INSERT INTO "Cat" ("id", "mood") VALUES (1, 'HAPPY')`,
		`INSERT INTO "Cat" ("id", "mood") VALUES (2, 'HUNGRY')`,
		`INSERT INTO "Cat" ("id", "mood") VALUES (3, NULL)`,
	} {
		_, err := a.Execute(ctx, stmt)
		require.NoError(t, err)
	}

	counts, err := a.CountRows(ctx, "Cat", []string{"mood"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts.Rows)
	assert.Equal(t, int64(2), counts.NonNull["mood"])

	n, err := a.CountValues(ctx, "Cat", "mood", []string{"HUNGRY", "SLEEPY"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestAdvisoryLock(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	require.NoError(t, a.AcquireLock(ctx))

	err := a.AcquireLock(ctx)
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeDatabaseLockAcquisition))

	require.NoError(t, a.ReleaseLock(ctx))
	require.NoError(t, a.AcquireLock(ctx))
	require.NoError(t, a.ReleaseLock(ctx))
}

func TestReset(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	migrate(t, a, blogModels)
	_, err := a.Execute(ctx, `CREATE VIEW "Titles" AS SELECT "title" FROM "Post"`)
	require.NoError(t, err)

	require.NoError(t, a.Reset(ctx))

	s, err := a.Describe(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}

func TestCreateAndDropDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "new.db")
	a, err := NewSQLiteAdapter(database.Config{URL: "file:" + path})
	require.NoError(t, err)
	ctx := context.Background()

	name, err := a.CreateDatabase(ctx)
	require.NoError(t, err)
	assert.Equal(t, path, name)
	assert.FileExists(t, path)

	_, err = a.CreateDatabase(ctx)
	assert.True(t, domain.HasCode(err, domain.CodeDatabaseAlreadyExists))

	require.NoError(t, a.DropDatabase(ctx))
	assert.NoFileExists(t, path)
	assert.True(t, domain.HasCode(a.DropDatabase(ctx), domain.CodeDatabaseDoesNotExist))
}

func TestVersion(t *testing.T) {
	a := connect(t)
	v, err := a.Version(context.Background())
	require.NoError(t, err)
	assert.Regexp(t, `^3\.`, v)
}

func TestApplyScriptRollsBack(t *testing.T) {
	a := connect(t)
	ctx := context.Background()
	script := "CREATE TABLE \"A\" (\"id\" INTEGER NOT NULL PRIMARY KEY);\n\nINSERT INTO \"Missing\" VALUES (1);\n"

	res, err := applier.New(a).ApplyScript(ctx, script)
	require.Error(t, err)
	var stmtErr *applier.StatementError
	require.ErrorAs(t, err, &stmtErr)
	assert.Equal(t, 1, stmtErr.Index)
	assert.Equal(t, 1, res.Applied)

	s, err := a.Describe(ctx)
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
}

func TestFlavourAndPlaceholder(t *testing.T) {
	a := connect(t)
	assert.Equal(t, flavour.SQLite, a.Flavour().Provider())
	assert.Equal(t, "?", a.Placeholder(3))
	assert.Equal(t, string(flavour.SQLite), a.Info().Provider)
}
