package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/database/sqlite"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	a, err := sqlite.NewSQLiteAdapter(database.Config{URL: "file:" + filepath.Join(t.TempDir(), "dev.db")})
	require.NoError(t, err)
	require.NoError(t, a.Connect(context.Background()))
	t.Cleanup(func() { a.Disconnect(context.Background()) })

	tracker := NewTracker(a, "")
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	tracker.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	return tracker
}

func TestEnsureTable(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()

	exists, err := tracker.HasTable(ctx)
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, tracker.EnsureTable(ctx))
	require.NoError(t, tracker.EnsureTable(ctx))

	exists, err = tracker.HasTable(ctx)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, tracker.DropTable(ctx))
	exists, err = tracker.HasTable(ctx)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRecordLifecycle(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()
	require.NoError(t, tracker.EnsureTable(ctx))

	script := "CREATE TABLE \"User\" (\"id\" INTEGER NOT NULL PRIMARY KEY);\n"
	id, err := tracker.RecordStarted(ctx, "20240101000000_init", script)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	record, err := tracker.GetStatus(ctx, "20240101000000_init")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, Failed, record.State())
	assert.Equal(t, 0, record.AppliedStepsCount)
	assert.Equal(t, CalculateChecksum(script), record.Checksum)
	assert.Equal(t, script, record.Script)

	require.NoError(t, tracker.RecordStepApplied(ctx, id))
	require.NoError(t, tracker.RecordFinished(ctx, id))

	record, err = tracker.GetStatus(ctx, "20240101000000_init")
	require.NoError(t, err)
	assert.Equal(t, Finished, record.State())
	assert.Equal(t, 1, record.AppliedStepsCount)
	assert.True(t, record.IsFinished())
	assert.False(t, record.IsFailed())
}

func TestRecordFailureAndRollback(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()
	require.NoError(t, tracker.EnsureTable(ctx))

	id, err := tracker.RecordStarted(ctx, "20240102000000_broken", "SELECT nope;")
	require.NoError(t, err)
	require.NoError(t, tracker.RecordFailure(ctx, id, "no such column: nope"))

	record, err := tracker.GetStatus(ctx, "20240102000000_broken")
	require.NoError(t, err)
	assert.True(t, record.IsFailed())
	assert.Equal(t, "no such column: nope", record.Logs)

	require.NoError(t, tracker.RecordRollback(ctx, id))
	record, err = tracker.GetStatus(ctx, "20240102000000_broken")
	require.NoError(t, err)
	assert.Equal(t, RolledBack, record.State())
	assert.False(t, record.IsFailed())

	assert.Error(t, tracker.RecordRollback(ctx, "missing"))
}

func TestGetAllOrdersByStart(t *testing.T) {
	tracker := newTracker(t)
	ctx := context.Background()
	require.NoError(t, tracker.EnsureTable(ctx))

	_, err := tracker.RecordApplied(ctx, "20240101000000_b", "")
	require.NoError(t, err)
	_, err = tracker.RecordApplied(ctx, "20230101000000_a", "")
	require.NoError(t, err)

	records, err := tracker.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "20240101000000_b", records[0].MigrationName)
	assert.Equal(t, "20230101000000_a", records[1].MigrationName)
	assert.True(t, records[0].IsFinished())

	missing, err := tracker.GetStatus(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestChecksumCalculation(t *testing.T) {
	content := "CREATE TABLE users (id SERIAL PRIMARY KEY);"
	checksum := CalculateChecksum(content)

	assert.Len(t, checksum, 64)
	assert.Equal(t, checksum, CalculateChecksum(content))
	assert.NotEqual(t, checksum, CalculateChecksum("CREATE TABLE posts (id SERIAL);"))
	assert.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", CalculateChecksum(""))
}

func TestChecksumMatchesLegacy(t *testing.T) {
	// The digest of "abc" contains the byte 0x01, which legacy engines wrote as "1".
	script := "abc"
	canonical := CalculateChecksum(script)
	legacy := legacyChecksum(script)

	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", canonical)
	assert.Less(t, len(legacy), len(canonical))
	assert.True(t, ChecksumMatches(canonical, script))
	assert.True(t, ChecksumMatches(legacy, script))
	assert.False(t, ChecksumMatches(canonical, "abd"))
}

func TestDialectSQL(t *testing.T) {
	d := dialectFor("sqlserver", "tenant")
	assert.Equal(t, "[tenant].[_prisma_migrations]", d.table)
	assert.Contains(t, d.createTable, "NVARCHAR(250)")

	d = dialectFor("mysql", "")
	assert.Contains(t, d.createTable, "DATETIME(3)")
	assert.Contains(t, d.hasTable, "DATABASE()")
}
