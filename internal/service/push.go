package service

import (
	"context"
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// SchemaPush brings the database to a schema without a migrations
// directory. Destructive changes are applied only with Force, and
// unexecutable steps are never applied.
func (s *MigrationService) SchemaPush(ctx context.Context, input SchemaPushInput) (SchemaPushOutput, error) {
	next, err := s.calculate(input.Schema)
	if err != nil {
		return SchemaPushOutput{}, err
	}
	previous := sqlschema.Empty()
	if !input.AssumeEmpty {
		if previous, err = s.connector.Describe(ctx); err != nil {
			return SchemaPushOutput{}, err
		}
	}

	m := differ.Diff(previous, next, s.flavour())
	diagnostics, err := destructive.NewPlan(m).Execute(ctx, s.connector)
	if err != nil {
		return SchemaPushOutput{}, fmt.Errorf("failed to check destructive changes: %w", err)
	}
	out := SchemaPushOutput{
		Warnings:     messages(diagnostics.Warnings),
		Unexecutable: messages(diagnostics.Unexecutable),
	}

	switch {
	case m.IsEmpty():
		return out, nil
	case diagnostics.HasUnexecutable():
		debug.Info("schema push has unexecutable steps, nothing applied", "count", len(out.Unexecutable))
		return out, nil
	case diagnostics.HasWarnings() && !input.Force:
		debug.Info("schema push has warnings, nothing applied", "count", len(out.Warnings))
		return out, nil
	}

	r, err := s.renderer()
	if err != nil {
		return SchemaPushOutput{}, err
	}
	res, err := applier.New(s.connector).ApplySteps(ctx, r, m)
	if err != nil {
		return SchemaPushOutput{}, fmt.Errorf("failed to push schema: %w", err)
	}
	out.ExecutedSteps = res.Applied
	debug.Info("pushed schema", "steps", res.Applied, "duration", res.Duration)
	return out, nil
}

func messages(diagnostics []destructive.Diagnostic) []string {
	out := make([]string, 0, len(diagnostics))
	for _, d := range diagnostics {
		out = append(out, d.Message)
	}
	return out
}

// DebugPanic panics. It exercises the panic handling of the RPC server.
func (s *MigrationService) DebugPanic() {
	panic("This is the debugPanic artificial panic")
}
