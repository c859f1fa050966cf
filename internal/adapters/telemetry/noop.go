package telemetry

import (
	"context"
)

// NoopTelemetry is a no-op implementation of the Telemetry interface.
type NoopTelemetry struct{}

// NewNoopTelemetry creates a new no-op telemetry adapter.
func NewNoopTelemetry() *NoopTelemetry {
	return &NoopTelemetry{}
}

// RecordCommand does nothing.
func (n *NoopTelemetry) RecordCommand(ctx context.Context, info CommandInfo) {}

// RecordMigration does nothing.
func (n *NoopTelemetry) RecordMigration(ctx context.Context, info MigrationInfo) {}

// RecordLock does nothing.
func (n *NoopTelemetry) RecordLock(ctx context.Context, info LockInfo) {}

// Close does nothing.
func (n *NoopTelemetry) Close(ctx context.Context) error {
	return nil
}

// Ensure NoopTelemetry implements Telemetry interface.
var _ Telemetry = (*NoopTelemetry)(nil)
