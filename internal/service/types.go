package service

import (
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
)

// EmptyOutput is the result of commands that return nothing.
type EmptyOutput struct{}

// CreateMigrationInput is the input of createMigration.
type CreateMigrationInput struct {
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
	PrismaSchema            string `json:"prismaSchema"`
	MigrationName           string `json:"migrationName"`
	Draft                   bool   `json:"draft"`
}

// CreateMigrationOutput names the created directory. The name is nil when
// there was nothing to migrate.
type CreateMigrationOutput struct {
	GeneratedMigrationName *string `json:"generatedMigrationName"`
}

// ApplyMigrationsInput is the input of applyMigrations.
type ApplyMigrationsInput struct {
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
}

// ApplyMigrationsOutput lists the migrations applied by the call.
type ApplyMigrationsOutput struct {
	AppliedMigrationNames []string `json:"appliedMigrationNames"`
}

// EvaluateDataLossInput is the input of evaluateDataLoss.
type EvaluateDataLossInput struct {
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
	PrismaSchema            string `json:"prismaSchema"`
}

// EvaluateDataLossOutput lists the steps of the next migration and their
// destructive change diagnostics.
type EvaluateDataLossOutput struct {
	MigrationSteps    []string                 `json:"migrationSteps"`
	Warnings          []destructive.Diagnostic `json:"warnings"`
	UnexecutableSteps []destructive.Diagnostic `json:"unexecutableSteps"`
}

// DiagnoseMigrationHistoryInput is the input of diagnoseMigrationHistory.
type DiagnoseMigrationHistoryInput struct {
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
	OptInToShadowDatabase   bool   `json:"optInToShadowDatabase"`
}

// History diagnostics.
const (
	DatabaseIsBehind            = "databaseIsBehind"
	MigrationsDirectoryIsBehind = "migrationsDirectoryIsBehind"
	HistoriesDiverge            = "historiesDiverge"
)

// HistoryDiagnostic compares the migrations directory with the migrations
// recorded in the database.
type HistoryDiagnostic struct {
	Diagnostic                string   `json:"diagnostic"`
	LastCommonMigrationName   *string  `json:"lastCommonMigrationName,omitempty"`
	UnappliedMigrationNames   []string `json:"unappliedMigrationNames,omitempty"`
	UnpersistedMigrationNames []string `json:"unpersistedMigrationNames,omitempty"`
}

// Drift diagnostics.
const (
	DriftDetected          = "driftDetected"
	MigrationFailedToApply = "migrationFailedToApply"
)

// DriftDiagnostic reports a database schema that does not match its
// migration history.
type DriftDiagnostic struct {
	Diagnostic string `json:"diagnostic"`
	// Rollback is the script that brings the database back to the state
	// of its history.
	Rollback      string             `json:"rollback,omitempty"`
	MigrationName string             `json:"migrationName,omitempty"`
	Error         *domain.KnownError `json:"error,omitempty"`
}

// DiagnoseMigrationHistoryOutput is the result of diagnoseMigrationHistory.
type DiagnoseMigrationHistoryOutput struct {
	History                   *HistoryDiagnostic `json:"history"`
	FailedMigrationNames      []string           `json:"failedMigrationNames"`
	EditedMigrationNames      []string           `json:"editedMigrationNames"`
	HasMigrationsTable        bool               `json:"hasMigrationsTable"`
	Drift                     *DriftDiagnostic   `json:"drift"`
	ErrorInUnappliedMigration *domain.KnownError `json:"errorInUnappliedMigration"`
}

// MarkMigrationAppliedInput is the input of markMigrationApplied.
type MarkMigrationAppliedInput struct {
	MigrationName           string `json:"migrationName"`
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
	ExpectFailed            bool   `json:"expectFailed"`
}

// MarkMigrationRolledBackInput is the input of markMigrationRolledBack.
type MarkMigrationRolledBackInput struct {
	MigrationName string `json:"migrationName"`
}

// SchemaPushInput is the input of schemaPush.
type SchemaPushInput struct {
	Schema      string `json:"schema"`
	Force       bool   `json:"force"`
	AssumeEmpty bool   `json:"assumeEmpty"`
}

// SchemaPushOutput is the result of schemaPush.
type SchemaPushOutput struct {
	ExecutedSteps int      `json:"executedSteps"`
	Warnings      []string `json:"warnings"`
	Unexecutable  []string `json:"unexecutable"`
}

// DevDiagnosticInput is the input of devDiagnostic.
type DevDiagnosticInput struct {
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
}

// Dev actions.
const (
	DevActionReset           = "reset"
	DevActionCreateMigration = "createMigration"
)

// DevAction is what migrate dev should do next.
type DevAction struct {
	Tag    string `json:"tag"`
	Reason string `json:"reason,omitempty"`
}

// DevDiagnosticOutput is the result of devDiagnostic.
type DevDiagnosticOutput struct {
	Action DevAction `json:"action"`
}

// ListMigrationDirectoriesInput is the input of listMigrationDirectories.
type ListMigrationDirectoriesInput struct {
	MigrationsDirectoryPath string `json:"migrationsDirectoryPath"`
}

// ListMigrationDirectoriesOutput lists migration directory names in order.
type ListMigrationDirectoriesOutput struct {
	Migrations []string `json:"migrations"`
}
