// Package telemetry provides telemetry adapter interfaces.
package telemetry

import (
	"context"
	"time"
)

// Telemetry defines the telemetry adapter interface.
type Telemetry interface {
	// RecordCommand records one engine command.
	RecordCommand(ctx context.Context, info CommandInfo)

	// RecordMigration records the outcome of applying one migration.
	RecordMigration(ctx context.Context, info MigrationInfo)

	// RecordLock records an advisory lock acquisition.
	RecordLock(ctx context.Context, info LockInfo)

	// Close releases the adapter.
	Close(ctx context.Context) error
}

// CommandInfo describes an engine command.
type CommandInfo struct {
	// Method is the RPC method name.
	Method string

	// Duration is how long the command took.
	Duration time.Duration

	// ErrorCode is the known error code, "unknown" for other failures and
	// empty on success.
	ErrorCode string
}

// MigrationInfo describes one applied migration.
type MigrationInfo struct {
	Name       string
	Duration   time.Duration
	Statements int
	Success    bool
}

// LockInfo describes an advisory lock acquisition.
type LockInfo struct {
	Provider string
	Wait     time.Duration
	Success  bool
}

// Config holds telemetry configuration.
type Config struct {
	// Type is the telemetry type (noop, prometheus).
	Type string

	// Namespace prefixes every metric name.
	Namespace string
}
