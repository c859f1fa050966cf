// Package domain contains the user-facing errors and shared records of the
// migration engine.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Stable user-facing error codes.
const (
	CodeAuthenticationFailed    = "P1000"
	CodeDatabaseNotReachable    = "P1001"
	CodeDatabaseTimeout         = "P1002"
	CodeDatabaseDoesNotExist    = "P1003"
	CodeOperationTimeout        = "P1008"
	CodeDatabaseAlreadyExists   = "P1009"
	CodeDatabaseAccessDenied    = "P1010"
	CodeSchemaParserError       = "P1012"
	CodeDatabaseCreationFailed  = "P3000"
	CodeDatabaseNotEmpty        = "P3005"
	CodeMigrationDoesNotApply   = "P3006"
	CodePreviewFeaturesBlocked  = "P3007"
	CodeMigrationAlreadyApplied = "P3008"
	CodeFailedMigrationsFound   = "P3009"
	CodeCannotRollBackUnfailed  = "P3011"
	CodeCannotRollBackUnapplied = "P3012"
	CodeShadowDBCreationError   = "P3014"
	CodeMigrationNotFound       = "P3017"
	CodeApplyMigrationError     = "P3018"
	CodeProviderSwitched        = "P3019"
	CodeShadowDatabaseIsMain    = "P3020"
	CodeMigrationNameTooLong    = "P3021"
	CodeDatabaseLockAcquisition = CodeDatabaseTimeout
)

// KnownError is an error with a stable code that is reported verbatim to the
// caller.
type KnownError struct {
	Code    string         `json:"error_code"`
	Message string         `json:"message"`
	Meta    map[string]any `json:"meta"`
}

func (e *KnownError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewKnownError builds a KnownError.
func NewKnownError(code, message string, meta map[string]any) *KnownError {
	if meta == nil {
		meta = map[string]any{}
	}
	return &KnownError{Code: code, Message: message, Meta: meta}
}

// AsKnownError unwraps err into a KnownError when possible.
func AsKnownError(err error) (*KnownError, bool) {
	var known *KnownError
	if errors.As(err, &known) {
		return known, true
	}
	return nil, false
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code string) bool {
	known, ok := AsKnownError(err)
	return ok && known.Code == code
}

// NewProviderSwitchedError reports a lock file written for another provider.
func NewProviderSwitchedError(provider string) *KnownError {
	return NewKnownError(CodeProviderSwitched,
		fmt.Sprintf("The datasource provider `%s` specified in your schema does not match the one specified in the migration_lock.toml. Please remove your current migration directory and start a new migration history with prisma migrate dev.", provider),
		map[string]any{"provider": provider})
}

// NewMigrationNameTooLong rejects migration names above 200 characters.
func NewMigrationNameTooLong() *KnownError {
	return NewKnownError(CodeMigrationNameTooLong,
		"The migration name is too long. It must not be longer than 200 characters (bytes).", nil)
}

// NewDatabaseCreationFailed reports a failed CREATE DATABASE (P3000).
func NewDatabaseCreationFailed(err error) *KnownError {
	return NewKnownError(CodeDatabaseCreationFailed,
		fmt.Sprintf("Failed to create database: %v", err),
		map[string]any{"database_error": err.Error()})
}

// NewDatabaseSchemaNotEmpty refuses to start a migration history on a
// database that already has tables (P3005).
func NewDatabaseSchemaNotEmpty(name string) *KnownError {
	return NewKnownError(CodeDatabaseNotEmpty,
		fmt.Sprintf("The database schema for `%s` is not empty. Read more about how to baseline an existing production database: https://pris.ly/d/migrate-baseline", name),
		map[string]any{"database_name": name})
}

// NewShadowDatabaseCreationError wraps a failure to create the shadow database.
func NewShadowDatabaseCreationError(err error) *KnownError {
	return NewKnownError(CodeShadowDBCreationError,
		fmt.Sprintf("Prisma Migrate could not create the shadow database. Please make sure the database user has permission to create databases.\n\nOriginal error: %v", err),
		map[string]any{"inner_error": err.Error()})
}

// NewShadowDatabaseIsMainError rejects a shadow URL pointing at the main database.
func NewShadowDatabaseIsMainError() *KnownError {
	return NewKnownError(CodeShadowDatabaseIsMain,
		"The shadow database you configured appears to be the same as the main database. Please specify another shadow database.", nil)
}

// NewMigrationDoesNotApplyCleanly reports a migration failing on the shadow database.
func NewMigrationDoesNotApplyCleanly(name string, err error) *KnownError {
	return NewKnownError(CodeMigrationDoesNotApply,
		fmt.Sprintf("Migration `%s` failed to apply cleanly to the shadow database. \nError:\n%v", name, err),
		map[string]any{"migration_name": name, "inner_error": err.Error()})
}

// NewPreviewFeaturesBlocked rejects preview features that migrations cannot handle.
func NewPreviewFeaturesBlocked(features []string) *KnownError {
	return NewKnownError(CodePreviewFeaturesBlocked,
		fmt.Sprintf("Some of the requested preview features are not yet allowed in migration engine. Please remove them from your data model before using migrations. (blocked: %s)", strings.Join(quoteAll(features), ", ")),
		map[string]any{"features": features})
}

// NewApplyMigrationError reports a failure while applying a migration script.
func NewApplyMigrationError(name string, err error) *KnownError {
	return NewKnownError(CodeApplyMigrationError,
		fmt.Sprintf("A migration failed to apply. New migrations cannot be applied before the error is recovered from.\n\nMigration name: %s\n\nDatabase error: %v", name, err),
		map[string]any{"migration_name": name, "database_error": err.Error()})
}

// NewFailedMigrationsFound stops applyMigrations when failed records exist.
func NewFailedMigrationsFound(names []string) *KnownError {
	return NewKnownError(CodeFailedMigrationsFound,
		fmt.Sprintf("migrate found failed migrations in the target database, new migrations will not be applied.\nThe failed migrations are: %s", strings.Join(names, ", ")),
		map[string]any{"failed_migration_names": names})
}

// NewMigrationToMarkAppliedNotFailed rejects markMigrationApplied with
// expectFailed when the migration has no failed record.
func NewMigrationToMarkAppliedNotFailed(name string) *KnownError {
	return NewKnownError(CodeCannotRollBackUnfailed,
		fmt.Sprintf("Migration `%s` cannot be marked as applied because it is not in a failed state.", name),
		map[string]any{"migration_name": name})
}

// NewMigrationAlreadyApplied rejects markMigrationApplied on a finished migration.
func NewMigrationAlreadyApplied(name string) *KnownError {
	return NewKnownError(CodeMigrationAlreadyApplied,
		fmt.Sprintf("The migration `%s` is already recorded as applied in the database.", name),
		map[string]any{"migration_name": name})
}

// NewCannotRollBackUnfailed rejects a rollback of a migration that did not fail.
func NewCannotRollBackUnfailed(name string) *KnownError {
	return NewKnownError(CodeCannotRollBackUnfailed,
		fmt.Sprintf("Migration `%s` cannot be rolled back because it is not in a failed state.", name),
		map[string]any{"migration_name": name})
}

// NewCannotRollBackUnapplied rejects a rollback of a migration never applied.
func NewCannotRollBackUnapplied(name string) *KnownError {
	return NewKnownError(CodeCannotRollBackUnapplied,
		fmt.Sprintf("Migration `%s` cannot be rolled back because it was never applied to the database.", name),
		map[string]any{"migration_name": name})
}

// NewMigrationNotFound reports a migration missing from the migrations directory.
func NewMigrationNotFound(name string) *KnownError {
	return NewKnownError(CodeMigrationNotFound,
		fmt.Sprintf("The migration `%s` could not be found. Please make sure that the migration exists, and that you included the whole name of the directory.", name),
		map[string]any{"migration_name": name})
}

// NewSchemaParserError carries PSL validation diagnostics.
func NewSchemaParserError(details string) *KnownError {
	return NewKnownError(CodeSchemaParserError,
		fmt.Sprintf("Schema parsing\n%s", details),
		map[string]any{"full_error": details})
}

// NewDatabaseLockAcquisitionError reports a timed out advisory lock.
func NewDatabaseLockAcquisitionError(info ConnectionInfo, err error) *KnownError {
	return NewKnownError(CodeDatabaseLockAcquisition,
		fmt.Sprintf("Timed out trying to acquire a database advisory lock at `%s`. Please retry. (%v)", info.Location(), err),
		map[string]any{"database_host": info.Host, "database_port": info.Port, "context": "advisory lock"})
}

// ConnectionInfo describes a database connection without secrets.
type ConnectionInfo struct {
	Provider string
	Host     string
	Port     string
	Database string
	Schema   string
	User     string
}

// Location renders host:port or the file path.
func (c ConnectionInfo) Location() string {
	if c.Host == "" {
		return c.Database
	}
	if c.Port == "" {
		return c.Host
	}
	return c.Host + ":" + c.Port
}

// RedactURL replaces the password of a URL with asterisks.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "****")
	}
	return u.String()
}

// ConnectorError wraps a database failure with redacted connection details.
type ConnectorError struct {
	Op   string
	Info ConnectionInfo
	Err  error
}

func (e *ConnectorError) Error() string {
	return fmt.Sprintf("%s (%s at %s): %v", e.Op, e.Info.Provider, e.Info.Location(), e.Err)
}

func (e *ConnectorError) Unwrap() error {
	return e.Err
}

// NewAuthenticationFailed maps credential errors (P1000).
func NewAuthenticationFailed(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeAuthenticationFailed,
		fmt.Sprintf("Authentication failed against database server at `%s`, the provided database credentials for `%s` are not valid.\n\nPlease make sure to provide valid database credentials for the database server at `%s`.", info.Host, info.User, info.Host),
		map[string]any{"database_user": info.User, "database_host": info.Host})
}

// NewDatabaseNotReachable maps network errors (P1001).
func NewDatabaseNotReachable(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeDatabaseNotReachable,
		fmt.Sprintf("Can't reach database server at `%s`:`%s`\n\nPlease make sure your database server is running at `%s`:`%s`.", info.Host, info.Port, info.Host, info.Port),
		map[string]any{"database_host": info.Host, "database_port": info.Port})
}

// NewDatabaseTimeout maps connection timeouts (P1002).
func NewDatabaseTimeout(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeDatabaseTimeout,
		fmt.Sprintf("The database server at `%s`:`%s` was reached but timed out.\n\nPlease try again.", info.Host, info.Port),
		map[string]any{"database_host": info.Host, "database_port": info.Port})
}

// NewDatabaseDoesNotExist maps unknown databases (P1003).
func NewDatabaseDoesNotExist(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeDatabaseDoesNotExist,
		fmt.Sprintf("Database `%s` does not exist on the database server at `%s`.", info.Database, info.Location()),
		map[string]any{"database_name": info.Database, "database_location": info.Location()})
}

// NewOperationTimeout maps query timeouts (P1008).
func NewOperationTimeout(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeOperationTimeout,
		fmt.Sprintf("Operations timed out on database `%s`.", info.Database),
		map[string]any{"database_name": info.Database})
}

// NewDatabaseAlreadyExists maps duplicate database errors (P1009).
func NewDatabaseAlreadyExists(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeDatabaseAlreadyExists,
		fmt.Sprintf("Database `%s` already exists on the database server at `%s`", info.Database, info.Location()),
		map[string]any{"database_name": info.Database, "database_host": info.Host, "database_port": info.Port})
}

// NewDatabaseAccessDenied maps permission errors (P1010).
func NewDatabaseAccessDenied(info ConnectionInfo) *KnownError {
	return NewKnownError(CodeDatabaseAccessDenied,
		fmt.Sprintf("User `%s` was denied access on the database `%s`", info.User, info.Database),
		map[string]any{"database_user": info.User, "database_name": info.Database})
}

func quoteAll(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = fmt.Sprintf("%q", it)
	}
	return out
}
