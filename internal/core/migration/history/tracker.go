// Package history persists migration records in the _prisma_migrations
// table.
package history

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

// State is the lifecycle state of a migration record.
type State int

const (
	// Started records have no applied statement yet.
	Started State = iota
	// InProgress records have applied statements but are not finished.
	InProgress
	Finished
	// Failed records stopped before finishing. A record that is still
	// running in another process looks the same.
	Failed
	RolledBack
)

func (s State) String() string {
	switch s {
	case Started:
		return "started"
	case InProgress:
		return "in progress"
	case Finished:
		return "finished"
	case Failed:
		return "failed"
	case RolledBack:
		return "rolled back"
	}
	return "unknown"
}

// MigrationRecord represents a migration in the history table.
type MigrationRecord struct {
	ID                string
	Checksum          string
	FinishedAt        *time.Time
	MigrationName     string
	Logs              string
	RolledBackAt      *time.Time
	StartedAt         time.Time
	AppliedStepsCount int
	Script            string
}

// IsFinished reports whether the migration completed.
func (r MigrationRecord) IsFinished() bool { return r.FinishedAt != nil }

// IsRolledBack reports whether the migration was marked rolled back.
func (r MigrationRecord) IsRolledBack() bool { return r.RolledBackAt != nil }

// IsFailed reports whether the migration stopped before finishing and was
// not rolled back since.
func (r MigrationRecord) IsFailed() bool { return r.FinishedAt == nil && r.RolledBackAt == nil }

// State returns the lifecycle state of the record. A record that never
// finished is Failed from the point of view of any later process.
func (r MigrationRecord) State() State {
	switch {
	case r.RolledBackAt != nil:
		return RolledBack
	case r.FinishedAt != nil:
		return Finished
	default:
		return Failed
	}
}

// Tracker manages migration history in the database.
type Tracker struct {
	db      database.Adapter
	dialect dialect
	now     func() time.Time
}

// NewTracker creates a new migration history tracker. schema qualifies the
// table on SQL Server and is ignored elsewhere.
func NewTracker(db database.Adapter, schema string) *Tracker {
	return &Tracker{
		db:      db,
		dialect: dialectFor(db.Flavour().Provider(), schema),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (t *Tracker) arg(n int) string { return t.db.Placeholder(n) }

// HasTable reports whether the migrations table exists.
func (t *Tracker) HasTable(ctx context.Context) (bool, error) {
	var n int
	if err := t.db.QueryRow(ctx, t.dialect.hasTable).Scan(&n); err != nil {
		return false, fmt.Errorf("failed to check migrations table: %w", err)
	}
	return n > 0, nil
}

// EnsureTable creates the _prisma_migrations table if it doesn't exist.
func (t *Tracker) EnsureTable(ctx context.Context) error {
	exists, err := t.HasTable(ctx)
	if err != nil || exists {
		return err
	}
	if _, err := t.db.Execute(ctx, t.dialect.createTable); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// DropTable drops the migrations table if it exists.
func (t *Tracker) DropTable(ctx context.Context) error {
	exists, err := t.HasTable(ctx)
	if err != nil || !exists {
		return err
	}
	if _, err := t.db.Execute(ctx, "DROP TABLE "+t.dialect.table); err != nil {
		return fmt.Errorf("failed to drop migrations table: %w", err)
	}
	return nil
}

// RecordStarted inserts a Started record for a migration about to be
// applied and returns its id.
func (t *Tracker) RecordStarted(ctx context.Context, name, script string) (string, error) {
	return t.insert(ctx, name, script, nil)
}

// RecordApplied inserts a Finished record without running the script, as
// when a migration is marked applied by hand.
func (t *Tracker) RecordApplied(ctx context.Context, name, script string) (string, error) {
	now := t.now()
	return t.insert(ctx, name, script, &now)
}

func (t *Tracker) insert(ctx context.Context, name, script string, finishedAt *time.Time) (string, error) {
	id := uuid.NewString()
	query := fmt.Sprintf(
		"INSERT INTO %s (id, checksum, finished_at, migration_name, logs, started_at, applied_steps_count, script) VALUES (%s, %s, %s, %s, %s, %s, 0, %s)",
		t.dialect.table, t.arg(1), t.arg(2), t.arg(3), t.arg(4), t.arg(5), t.arg(6), t.arg(7))

	var finished any
	if finishedAt != nil {
		finished = *finishedAt
	}
	if _, err := t.db.Execute(ctx, query, id, CalculateChecksum(script), finished, name, "", t.now(), script); err != nil {
		return "", fmt.Errorf("failed to record migration %s: %w", name, err)
	}
	return id, nil
}

// RecordStepApplied increments applied_steps_count.
func (t *Tracker) RecordStepApplied(ctx context.Context, id string) error {
	return t.RecordStepsApplied(ctx, id, 1)
}

// RecordStepsApplied adds n to applied_steps_count.
func (t *Tracker) RecordStepsApplied(ctx context.Context, id string, n int) error {
	query := fmt.Sprintf("UPDATE %s SET applied_steps_count = applied_steps_count + %s WHERE id = %s", t.dialect.table, t.arg(1), t.arg(2))
	return t.update(ctx, query, n, id)
}

// RecordFinished sets finished_at.
func (t *Tracker) RecordFinished(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET finished_at = %s WHERE id = %s", t.dialect.table, t.arg(1), t.arg(2))
	return t.update(ctx, query, t.now(), id)
}

// RecordFailure stores the error logs of a failed migration. The record
// stays unfinished.
func (t *Tracker) RecordFailure(ctx context.Context, id, logs string) error {
	query := fmt.Sprintf("UPDATE %s SET logs = %s WHERE id = %s", t.dialect.table, t.arg(1), t.arg(2))
	return t.update(ctx, query, logs, id)
}

// RecordRollback sets rolled_back_at.
func (t *Tracker) RecordRollback(ctx context.Context, id string) error {
	query := fmt.Sprintf("UPDATE %s SET rolled_back_at = %s WHERE id = %s", t.dialect.table, t.arg(1), t.arg(2))
	return t.update(ctx, query, t.now(), id)
}

func (t *Tracker) update(ctx context.Context, query string, args ...any) error {
	res, err := t.db.Execute(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update migration record: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New("failed to update migration record: no such record")
	}
	return nil
}

// GetAll returns every record in the order the migrations were started.
func (t *Tracker) GetAll(ctx context.Context) ([]MigrationRecord, error) {
	query := fmt.Sprintf(`SELECT id, checksum, finished_at, migration_name, logs, rolled_back_at,
       started_at, applied_steps_count, script
FROM %s
ORDER BY started_at, migration_name`, t.dialect.table)

	rows, err := t.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations table: %w", err)
	}
	defer rows.Close()

	var records []MigrationRecord
	for rows.Next() {
		var (
			r                    MigrationRecord
			finished, rolledBack sql.NullTime
			logs                 sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.Checksum, &finished, &r.MigrationName, &logs, &rolledBack,
			&r.StartedAt, &r.AppliedStepsCount, &r.Script); err != nil {
			return nil, fmt.Errorf("failed to read migrations table: %w", err)
		}
		r.Logs = logs.String
		if finished.Valid {
			r.FinishedAt = &finished.Time
		}
		if rolledBack.Valid {
			r.RolledBackAt = &rolledBack.Time
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// GetStatus returns the latest record of a migration, or nil when it was
// never started.
func (t *Tracker) GetStatus(ctx context.Context, name string) (*MigrationRecord, error) {
	records, err := t.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var latest *MigrationRecord
	for i := range records {
		if records[i].MigrationName == name {
			latest = &records[i]
		}
	}
	return latest, nil
}

// CalculateChecksum computes the zero-padded SHA-256 hex digest of a
// migration script.
func CalculateChecksum(script string) string {
	hash := sha256.Sum256([]byte(script))
	return fmt.Sprintf("%x", hash)
}

// legacyChecksum renders the digest without padding bytes below 0x10, as
// older engines stored it.
func legacyChecksum(script string) string {
	hash := sha256.Sum256([]byte(script))
	var b strings.Builder
	for _, c := range hash {
		b.WriteString(strconv.FormatUint(uint64(c), 16))
	}
	return b.String()
}

// ChecksumMatches reports whether stored is the canonical or the legacy
// checksum of script.
func ChecksumMatches(stored, script string) bool {
	return stored == CalculateChecksum(script) || stored == legacyChecksum(script)
}

// dialect holds the per-provider SQL of the migrations table.
type dialect struct {
	table       string
	hasTable    string
	createTable string
}

func dialectFor(p flavour.Provider, schema string) dialect {
	name := flavour.MigrationsTableName
	switch p {
	case flavour.Postgres:
		return dialect{
			table:    `"` + name + `"`,
			hasTable: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = '` + name + `'`,
			createTable: `CREATE TABLE "` + name + `" (
    "id"                    VARCHAR(36) PRIMARY KEY NOT NULL,
    "checksum"              VARCHAR(64) NOT NULL,
    "finished_at"           TIMESTAMPTZ,
    "migration_name"        VARCHAR(255) NOT NULL,
    "logs"                  TEXT NOT NULL DEFAULT '',
    "rolled_back_at"        TIMESTAMPTZ,
    "started_at"            TIMESTAMPTZ NOT NULL DEFAULT now(),
    "applied_steps_count"   INTEGER NOT NULL DEFAULT 0,
    "script"                TEXT NOT NULL
)`,
		}
	case flavour.MySQL:
		return dialect{
			table:    "`" + name + "`",
			hasTable: `SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = '` + name + `'`,
			createTable: "CREATE TABLE `" + name + "` (" + `
    id                      VARCHAR(36) PRIMARY KEY NOT NULL,
    checksum                VARCHAR(64) NOT NULL,
    finished_at             DATETIME(3),
    migration_name          VARCHAR(255) NOT NULL,
    logs                    TEXT NOT NULL,
    rolled_back_at          DATETIME(3),
    started_at              DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
    applied_steps_count     INTEGER UNSIGNED NOT NULL DEFAULT 0,
    script                  LONGTEXT NOT NULL
) DEFAULT CHARACTER SET utf8mb4`,
		}
	case flavour.SQLServer:
		if schema == "" {
			schema = "dbo"
		}
		return dialect{
			table:    "[" + schema + "].[" + name + "]",
			hasTable: `SELECT COUNT(*) FROM sys.tables WHERE name = '` + name + `' AND SCHEMA_NAME(schema_id) = '` + strings.ReplaceAll(schema, "'", "''") + `'`,
			createTable: `CREATE TABLE [` + schema + `].[` + name + `] (
    id                      VARCHAR(36) PRIMARY KEY NOT NULL,
    checksum                VARCHAR(64) NOT NULL,
    finished_at             DATETIMEOFFSET,
    migration_name          NVARCHAR(250) NOT NULL,
    logs                    NVARCHAR(MAX) NOT NULL DEFAULT '',
    rolled_back_at          DATETIMEOFFSET,
    started_at              DATETIMEOFFSET NOT NULL DEFAULT CURRENT_TIMESTAMP,
    applied_steps_count     INT NOT NULL DEFAULT 0,
    script                  NVARCHAR(MAX) NOT NULL
)`,
		}
	default:
		return dialect{
			table:    `"` + name + `"`,
			hasTable: `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = '` + name + `'`,
			createTable: `CREATE TABLE "` + name + `" (
    "id"                    TEXT PRIMARY KEY NOT NULL,
    "checksum"              TEXT NOT NULL,
    "finished_at"           DATETIME,
    "migration_name"        TEXT NOT NULL,
    "logs"                  TEXT NOT NULL DEFAULT '',
    "rolled_back_at"        DATETIME,
    "started_at"            DATETIME NOT NULL DEFAULT current_timestamp,
    "applied_steps_count"   INTEGER UNSIGNED NOT NULL DEFAULT 0,
    "script"                TEXT NOT NULL
)`,
		}
	}
}
