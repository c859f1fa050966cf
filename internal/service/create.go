package service

import (
	"context"
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/directory"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// CreateMigration diffs the migrations directory, replayed on a shadow
// database, against a schema and writes the difference as a new migration.
// Nothing is written when there is no difference, unless the migration is a
// draft.
func (s *MigrationService) CreateMigration(ctx context.Context, input CreateMigrationInput) (CreateMigrationOutput, error) {
	if len(input.MigrationName) > directory.MaxNameLength {
		return CreateMigrationOutput{}, domain.NewMigrationNameTooLong()
	}
	dir := s.directory(input.MigrationsDirectoryPath)
	if err := dir.CheckProvider(string(s.provider)); err != nil {
		return CreateMigrationOutput{}, err
	}

	next, err := s.calculate(input.PrismaSchema)
	if err != nil {
		return CreateMigrationOutput{}, err
	}
	migrations, err := dir.List()
	if err != nil {
		return CreateMigrationOutput{}, err
	}
	previous, err := s.replaySchema(ctx, migrations)
	if err != nil {
		return CreateMigrationOutput{}, err
	}

	m := differ.Diff(previous, next, s.flavour())
	if m.IsEmpty() && !input.Draft {
		debug.Info("database schema is up to date, no migration created")
		return CreateMigrationOutput{}, nil
	}

	r, err := s.renderer()
	if err != nil {
		return CreateMigrationOutput{}, err
	}
	diagnostics := destructive.NewPlan(m).PureCheck()
	script := applier.RenderScript(r, m, diagnostics)

	created, err := dir.Create(input.MigrationName, s.config.Now())
	if err != nil {
		return CreateMigrationOutput{}, err
	}
	if err := created.WriteScript(script); err != nil {
		return CreateMigrationOutput{}, err
	}
	if err := dir.WriteLockFile(string(s.provider)); err != nil {
		return CreateMigrationOutput{}, err
	}

	name := created.Name()
	debug.Info("created migration", "migration", name, "steps", len(m.Steps), "warnings", len(diagnostics.Warnings))
	return CreateMigrationOutput{GeneratedMigrationName: &name}, nil
}

// EvaluateDataLoss computes the next migration like CreateMigration and
// checks it against the data of the main database, without writing
// anything.
func (s *MigrationService) EvaluateDataLoss(ctx context.Context, input EvaluateDataLossInput) (EvaluateDataLossOutput, error) {
	dir := s.directory(input.MigrationsDirectoryPath)
	if err := dir.CheckProvider(string(s.provider)); err != nil {
		return EvaluateDataLossOutput{}, err
	}

	next, err := s.calculate(input.PrismaSchema)
	if err != nil {
		return EvaluateDataLossOutput{}, err
	}
	migrations, err := dir.List()
	if err != nil {
		return EvaluateDataLossOutput{}, err
	}
	previous, err := s.replaySchema(ctx, migrations)
	if err != nil {
		return EvaluateDataLossOutput{}, err
	}

	m := differ.Diff(previous, next, s.flavour())
	diagnostics, err := destructive.NewPlan(m).Execute(ctx, s.connector)
	if err != nil {
		return EvaluateDataLossOutput{}, fmt.Errorf("failed to check destructive changes: %w", err)
	}

	out := EvaluateDataLossOutput{
		MigrationSteps:    make([]string, 0, len(m.Steps)),
		Warnings:          nonNil(diagnostics.Warnings),
		UnexecutableSteps: nonNil(diagnostics.Unexecutable),
	}
	for _, step := range m.Steps {
		out.MigrationSteps = append(out.MigrationSteps, step.Kind())
	}
	return out, nil
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
