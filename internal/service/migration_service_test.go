package service

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/directory"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/history"
)

const migrationsPath = "/prisma/migrations"

const datasource = `
datasource db {
  provider = "sqlite"
  url      = "file:dev.db"
}
`

const userModel = `
model User {
  id    Int     @id @default(autoincrement())
  email String  @unique
  name  String?
}
`

const postModel = `
model Post {
  id    Int    @id @default(autoincrement())
  title String
}
`

type testEnv struct {
	service *MigrationService
	fs      afero.Fs
	url     string
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	url := "file:" + filepath.Join(t.TempDir(), "dev.db")
	cfg := database.Config{URL: url, LockTimeout: time.Second}
	connector, err := NewConnector(flavour.SQLite, cfg)
	require.NoError(t, err)
	require.NoError(t, connector.Connect(context.Background()))
	t.Cleanup(func() { connector.Disconnect(context.Background()) })

	fs := afero.NewMemMapFs()
	now := time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
	svc := NewMigrationService(connector, Config{
		Database: cfg,
		FS:       fs,
		Now: func() time.Time {
			now = now.Add(time.Second)
			return now
		},
	})
	return &testEnv{service: svc, fs: fs, url: url}
}

func (e *testEnv) create(t *testing.T, name, models string) string {
	t.Helper()
	out, err := e.service.CreateMigration(context.Background(), CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            datasource + models,
		MigrationName:           name,
	})
	require.NoError(t, err)
	require.NotNil(t, out.GeneratedMigrationName)
	return *out.GeneratedMigrationName
}

func (e *testEnv) apply(t *testing.T) []string {
	t.Helper()
	out, err := e.service.ApplyMigrations(context.Background(), ApplyMigrationsInput{MigrationsDirectoryPath: migrationsPath})
	require.NoError(t, err)
	return out.AppliedMigrationNames
}

func (e *testEnv) writeMigration(t *testing.T, name, script string) {
	t.Helper()
	m, err := directory.New(e.fs, migrationsPath).Create(name, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, m.WriteScript(script))
}

func (e *testEnv) exec(t *testing.T, stmt string) {
	t.Helper()
	_, err := e.service.Connector().Execute(context.Background(), stmt)
	require.NoError(t, err)
}

func TestCreateMigrationProviderSwitched(t *testing.T) {
	env := newTestEnv(t)
	require.NoError(t, directory.New(env.fs, migrationsPath).WriteLockFile("postgresql"))

	_, err := env.service.CreateMigration(context.Background(), CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            datasource + userModel,
		MigrationName:           "init",
	})
	assert.True(t, domain.HasCode(err, domain.CodeProviderSwitched))

	list, err := env.service.ListMigrationDirectories(context.Background(), ListMigrationDirectoriesInput{MigrationsDirectoryPath: migrationsPath})
	require.NoError(t, err)
	assert.Empty(t, list.Migrations)
}

func TestCreateMigrationWithoutChanges(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.service.CreateMigration(ctx, CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            datasource,
		MigrationName:           "nothing",
	})
	require.NoError(t, err)
	assert.Nil(t, out.GeneratedMigrationName)

	exists, err := afero.DirExists(env.fs, migrationsPath)
	require.NoError(t, err)
	assert.False(t, exists)

	out, err = env.service.CreateMigration(ctx, CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            datasource,
		MigrationName:           "nothing",
		Draft:                   true,
	})
	require.NoError(t, err)
	require.NotNil(t, out.GeneratedMigrationName)
	assert.True(t, strings.HasSuffix(*out.GeneratedMigrationName, "_nothing"))

	m, ok, err := directory.New(env.fs, migrationsPath).Find(*out.GeneratedMigrationName)
	require.NoError(t, err)
	require.True(t, ok)
	script, err := m.ReadScript()
	require.NoError(t, err)
	assert.Contains(t, script, applier.EmptyMigrationComment)
}

func TestCreateMigrationNameTooLong(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.service.CreateMigration(context.Background(), CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            datasource + userModel,
		MigrationName:           strings.Repeat("a", directory.MaxNameLength+1),
	})
	assert.True(t, domain.HasCode(err, domain.CodeMigrationNameTooLong))
}

func TestCreateMigrationBlockedPreviewFeature(t *testing.T) {
	env := newTestEnv(t)
	schema := datasource + `
generator client {
  provider        = "prisma-client-js"
  previewFeatures = ["mongoDb"]
}
` + userModel
	_, err := env.service.CreateMigration(context.Background(), CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            schema,
		MigrationName:           "init",
	})
	assert.True(t, domain.HasCode(err, domain.CodePreviewFeaturesBlocked))
}

func TestCreateAndApplyMigrations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	first := env.create(t, "init", userModel)
	assert.Equal(t, "20240305120001_init", first)
	assert.Equal(t, []string{first}, env.apply(t))
	assert.Empty(t, env.apply(t))

	second := env.create(t, "add posts", userModel+postModel)
	assert.Equal(t, "20240305120002_add_posts", second)

	m, _, err := directory.New(env.fs, migrationsPath).Find(second)
	require.NoError(t, err)
	script, err := m.ReadScript()
	require.NoError(t, err)
	assert.Contains(t, script, `CREATE TABLE "Post"`)
	assert.NotContains(t, script, `CREATE TABLE "User"`)

	lock, ok, err := directory.New(env.fs, migrationsPath).ReadLockFile()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "sqlite", lock.Provider)

	assert.Equal(t, []string{second}, env.apply(t))

	schema, err := env.service.Connector().Describe(ctx)
	require.NoError(t, err)
	assert.Len(t, schema.Tables, 2)

	list, err := env.service.ListMigrationDirectories(ctx, ListMigrationDirectoriesInput{MigrationsDirectoryPath: migrationsPath})
	require.NoError(t, err)
	assert.Equal(t, []string{first, second}, list.Migrations)

	records, err := history.NewTracker(env.service.Connector(), "").GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, r := range records {
		assert.Equal(t, history.Finished, r.State())
		assert.Positive(t, r.AppliedStepsCount)
	}
}

func TestApplyMigrationsOnNonEmptyDatabase(t *testing.T) {
	env := newTestEnv(t)
	env.exec(t, `CREATE TABLE "legacy" ("id" INTEGER PRIMARY KEY)`)
	env.create(t, "init", userModel)

	_, err := env.service.ApplyMigrations(context.Background(), ApplyMigrationsInput{MigrationsDirectoryPath: migrationsPath})
	assert.True(t, domain.HasCode(err, domain.CodeDatabaseNotEmpty))
}

func TestFailedMigrationBlocksApply(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeMigration(t, "broken", `CREATE TABLE "a" ("id" INTEGER PRIMARY KEY);
INSERT INTO "missing" VALUES (1);`)

	_, err := env.service.ApplyMigrations(ctx, ApplyMigrationsInput{MigrationsDirectoryPath: migrationsPath})
	require.True(t, domain.HasCode(err, domain.CodeApplyMigrationError))

	records, err := history.NewTracker(env.service.Connector(), "").GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, history.Failed, records[0].State())
	assert.Zero(t, records[0].AppliedStepsCount)
	assert.NotEmpty(t, records[0].Logs)

	_, err = env.service.ApplyMigrations(ctx, ApplyMigrationsInput{MigrationsDirectoryPath: migrationsPath})
	assert.True(t, domain.HasCode(err, domain.CodeFailedMigrationsFound))

	_, err = env.service.MarkMigrationRolledBack(ctx, MarkMigrationRolledBackInput{MigrationName: "20240101000000_broken"})
	require.NoError(t, err)

	_, err = env.service.MarkMigrationRolledBack(ctx, MarkMigrationRolledBackInput{MigrationName: "20240101000000_broken"})
	assert.True(t, domain.HasCode(err, domain.CodeCannotRollBackUnfailed))

	_, err = env.service.MarkMigrationRolledBack(ctx, MarkMigrationRolledBackInput{MigrationName: "unknown"})
	assert.True(t, domain.HasCode(err, domain.CodeCannotRollBackUnapplied))
}

func TestMarkMigrationApplied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	name := env.create(t, "init", userModel)

	input := MarkMigrationAppliedInput{MigrationName: name, MigrationsDirectoryPath: migrationsPath}

	_, err := env.service.MarkMigrationApplied(ctx, MarkMigrationAppliedInput{
		MigrationName:           name,
		MigrationsDirectoryPath: migrationsPath,
		ExpectFailed:            true,
	})
	assert.True(t, domain.HasCode(err, domain.CodeCannotRollBackUnfailed))

	_, err = env.service.MarkMigrationApplied(ctx, input)
	require.NoError(t, err)
	_, err = env.service.MarkMigrationApplied(ctx, input)
	assert.True(t, domain.HasCode(err, domain.CodeMigrationAlreadyApplied))

	_, err = env.service.MarkMigrationApplied(ctx, MarkMigrationAppliedInput{MigrationName: "missing", MigrationsDirectoryPath: migrationsPath})
	assert.True(t, domain.HasCode(err, domain.CodeMigrationNotFound))

	// The script was never run.
	schema, err := env.service.Connector().Describe(ctx)
	require.NoError(t, err)
	assert.Empty(t, schema.Tables)
	assert.Empty(t, env.apply(t))
}

func TestMarkFailedMigrationApplied(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.writeMigration(t, "broken", `INSERT INTO "missing" VALUES (1);`)
	_, err := env.service.ApplyMigrations(ctx, ApplyMigrationsInput{MigrationsDirectoryPath: migrationsPath})
	require.Error(t, err)

	_, err = env.service.MarkMigrationApplied(ctx, MarkMigrationAppliedInput{
		MigrationName:           "20240101000000_broken",
		MigrationsDirectoryPath: migrationsPath,
		ExpectFailed:            true,
	})
	require.NoError(t, err)

	records, err := history.NewTracker(env.service.Connector(), "").GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	states := map[history.State]int{}
	for _, r := range records {
		states[r.State()]++
	}
	assert.Equal(t, map[history.State]int{history.RolledBack: 1, history.Finished: 1}, states)
}

func TestDiagnoseMigrationHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	input := DiagnoseMigrationHistoryInput{MigrationsDirectoryPath: migrationsPath}

	out, err := env.service.DiagnoseMigrationHistory(ctx, input)
	require.NoError(t, err)
	assert.Nil(t, out.History)
	assert.False(t, out.HasMigrationsTable)
	assert.Empty(t, out.FailedMigrationNames)

	first := env.create(t, "init", userModel)
	out, err = env.service.DiagnoseMigrationHistory(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, out.History)
	assert.Equal(t, DatabaseIsBehind, out.History.Diagnostic)
	assert.Equal(t, []string{first}, out.History.UnappliedMigrationNames)

	env.apply(t)
	out, err = env.service.DiagnoseMigrationHistory(ctx, input)
	require.NoError(t, err)
	assert.Nil(t, out.History)
	assert.True(t, out.HasMigrationsTable)

	require.NoError(t, env.fs.RemoveAll(filepath.Join(migrationsPath, first)))
	out, err = env.service.DiagnoseMigrationHistory(ctx, input)
	require.NoError(t, err)
	require.NotNil(t, out.History)
	assert.Equal(t, MigrationsDirectoryIsBehind, out.History.Diagnostic)
	assert.Equal(t, []string{first}, out.History.UnpersistedMigrationNames)
}

func TestDiagnoseHistoriesDiverge(t *testing.T) {
	fs := afero.NewMemMapFs()
	dir := directory.New(fs, migrationsPath)
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var migrations []directory.Migration
	for i, name := range []string{"a", "b", "c"} {
		m, err := dir.Create(name, at.Add(time.Duration(i)*time.Second))
		require.NoError(t, err)
		migrations = append(migrations, m)
	}
	applied := []history.MigrationRecord{
		{MigrationName: migrations[0].Name()},
		{MigrationName: "20240101000005_x"},
	}

	d := diagnoseHistory(migrations, applied)
	require.NotNil(t, d)
	assert.Equal(t, HistoriesDiverge, d.Diagnostic)
	require.NotNil(t, d.LastCommonMigrationName)
	assert.Equal(t, migrations[0].Name(), *d.LastCommonMigrationName)
	assert.Equal(t, []string{migrations[1].Name(), migrations[2].Name()}, d.UnappliedMigrationNames)
	assert.Equal(t, []string{"20240101000005_x"}, d.UnpersistedMigrationNames)
}

func TestDevDiagnostic(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	input := DevDiagnosticInput{MigrationsDirectoryPath: migrationsPath}

	name := env.create(t, "init", userModel)
	env.apply(t)

	out, err := env.service.DevDiagnostic(ctx, input)
	require.NoError(t, err)
	assert.Equal(t, DevActionCreateMigration, out.Action.Tag)

	t.Run("drift", func(t *testing.T) {
		env.exec(t, `CREATE TABLE "drift" ("id" INTEGER PRIMARY KEY)`)
		t.Cleanup(func() { env.exec(t, `DROP TABLE "drift"`) })

		diag, err := env.service.DiagnoseMigrationHistory(ctx, DiagnoseMigrationHistoryInput{
			MigrationsDirectoryPath: migrationsPath,
			OptInToShadowDatabase:   true,
		})
		require.NoError(t, err)
		require.NotNil(t, diag.Drift)
		assert.Equal(t, DriftDetected, diag.Drift.Diagnostic)
		assert.Contains(t, diag.Drift.Rollback, `DROP TABLE "drift"`)

		out, err := env.service.DevDiagnostic(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, DevActionReset, out.Action.Tag)
		assert.Contains(t, out.Action.Reason, "Drift detected")
	})

	t.Run("edited", func(t *testing.T) {
		m, _, err := directory.New(env.fs, migrationsPath).Find(name)
		require.NoError(t, err)
		script, err := m.ReadScript()
		require.NoError(t, err)
		require.NoError(t, m.WriteScript(script+"\n-- edited\n"))

		diag, err := env.service.DiagnoseMigrationHistory(ctx, DiagnoseMigrationHistoryInput{MigrationsDirectoryPath: migrationsPath})
		require.NoError(t, err)
		assert.Equal(t, []string{name}, diag.EditedMigrationNames)

		out, err := env.service.DevDiagnostic(ctx, input)
		require.NoError(t, err)
		assert.Equal(t, DevActionReset, out.Action.Tag)
		assert.Contains(t, out.Action.Reason, "was modified after it was applied")
	})
}

func TestDevDiagnosticBrokenMigration(t *testing.T) {
	env := newTestEnv(t)
	env.writeMigration(t, "broken", `INSERT INTO "missing" VALUES (1);`)

	_, err := env.service.DevDiagnostic(context.Background(), DevDiagnosticInput{MigrationsDirectoryPath: migrationsPath})
	assert.True(t, domain.HasCode(err, domain.CodeMigrationDoesNotApply))
}

func TestEvaluateDataLoss(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "init", userModel)
	env.apply(t)
	env.exec(t, `INSERT INTO "User" ("email", "name") VALUES ('a@b.c', 'Ada')`)

	out, err := env.service.EvaluateDataLoss(ctx, EvaluateDataLossInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema: datasource + `
model User {
  id    Int    @id @default(autoincrement())
  email String @unique
}
`,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, out.MigrationSteps)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0].Message, "`name`")
	assert.Empty(t, out.UnexecutableSteps)
}

func TestSchemaPush(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	out, err := env.service.SchemaPush(ctx, SchemaPushInput{Schema: datasource + userModel + postModel})
	require.NoError(t, err)
	assert.Positive(t, out.ExecutedSteps)
	assert.Empty(t, out.Warnings)

	out, err = env.service.SchemaPush(ctx, SchemaPushInput{Schema: datasource + userModel + postModel})
	require.NoError(t, err)
	assert.Zero(t, out.ExecutedSteps)

	env.exec(t, `INSERT INTO "Post" ("title") VALUES ('hello')`)

	out, err = env.service.SchemaPush(ctx, SchemaPushInput{Schema: datasource + userModel})
	require.NoError(t, err)
	assert.Zero(t, out.ExecutedSteps)
	require.Len(t, out.Warnings, 1)
	assert.Contains(t, out.Warnings[0], "`Post`")

	out, err = env.service.SchemaPush(ctx, SchemaPushInput{Schema: datasource + userModel, Force: true})
	require.NoError(t, err)
	assert.Equal(t, 1, out.ExecutedSteps)

	schema, err := env.service.Connector().Describe(ctx)
	require.NoError(t, err)
	assert.Len(t, schema.Tables, 1)
}

func TestSchemaPushUnexecutable(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.service.SchemaPush(ctx, SchemaPushInput{Schema: datasource + userModel})
	require.NoError(t, err)
	env.exec(t, `INSERT INTO "User" ("email") VALUES ('a@b.c')`)

	out, err := env.service.SchemaPush(ctx, SchemaPushInput{
		Schema: datasource + `
model User {
  id    Int     @id @default(autoincrement())
  email String  @unique
  name  String?
  age   Int
}
`,
		Force: true,
	})
	require.NoError(t, err)
	assert.Zero(t, out.ExecutedSteps)
	assert.Len(t, out.Unexecutable, 1)
}

func TestShadowDatabaseIsMain(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, "init", userModel)

	svc := NewMigrationService(env.service.Connector(), Config{
		Database:          env.service.config.Database,
		ShadowDatabaseURL: env.url,
		FS:                env.fs,
	})
	_, err := svc.CreateMigration(context.Background(), CreateMigrationInput{
		MigrationsDirectoryPath: migrationsPath,
		PrismaSchema:            datasource + userModel + postModel,
		MigrationName:           "posts",
	})
	assert.True(t, domain.HasCode(err, domain.CodeShadowDatabaseIsMain))
}

func TestReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.create(t, "init", userModel)
	env.apply(t)

	require.NoError(t, env.service.Reset(ctx))

	schema, err := env.service.Connector().Describe(ctx)
	require.NoError(t, err)
	assert.Empty(t, schema.Tables)
	exists, err := history.NewTracker(env.service.Connector(), "").HasTable(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestDebugPanic(t *testing.T) {
	env := newTestEnv(t)
	assert.PanicsWithValue(t, "This is the debugPanic artificial panic", env.service.DebugPanic)
}
