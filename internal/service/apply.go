package service

import (
	"context"
	"errors"
	"time"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/history"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// ApplyMigrations applies the migrations of the directory that are not
// recorded as applied, in directory order. It refuses to run while a failed
// migration is recorded.
func (s *MigrationService) ApplyMigrations(ctx context.Context, input ApplyMigrationsInput) (ApplyMigrationsOutput, error) {
	dir := s.directory(input.MigrationsDirectoryPath)
	if err := dir.CheckProvider(string(s.provider)); err != nil {
		return ApplyMigrationsOutput{}, err
	}
	migrations, err := dir.List()
	if err != nil {
		return ApplyMigrationsOutput{}, err
	}

	out := ApplyMigrationsOutput{AppliedMigrationNames: []string{}}
	err = s.withLock(ctx, func() error {
		tracker := s.tracker()
		if err := s.initializeHistory(ctx, tracker); err != nil {
			return err
		}
		records, err := tracker.GetAll(ctx)
		if err != nil {
			return err
		}

		var failed []string
		applied := map[string]bool{}
		for _, r := range records {
			switch {
			case r.IsFailed():
				failed = append(failed, r.MigrationName)
			case r.IsFinished() && !r.IsRolledBack():
				applied[r.MigrationName] = true
			}
		}
		if len(failed) > 0 {
			return domain.NewFailedMigrationsFound(failed)
		}

		a := applier.New(s.connector)
		for _, m := range migrations {
			if applied[m.Name()] {
				continue
			}
			script, err := m.ReadScript()
			if err != nil {
				return err
			}
			if err := s.applyMigration(ctx, tracker, a, m.Name(), script); err != nil {
				return err
			}
			out.AppliedMigrationNames = append(out.AppliedMigrationNames, m.Name())
		}
		return nil
	})
	if err != nil {
		return ApplyMigrationsOutput{}, err
	}
	return out, nil
}

// initializeHistory creates the migrations table. A database without the
// table must be empty.
func (s *MigrationService) initializeHistory(ctx context.Context, tracker *history.Tracker) error {
	exists, err := tracker.HasTable(ctx)
	if err != nil || exists {
		return err
	}
	schema, err := s.connector.Describe(ctx)
	if err != nil {
		return err
	}
	if !schema.IsEmpty() {
		return domain.NewDatabaseSchemaNotEmpty(s.connector.Info().Database)
	}
	return tracker.EnsureTable(ctx)
}

func (s *MigrationService) applyMigration(ctx context.Context, tracker *history.Tracker, a *applier.Applier, name, script string) error {
	debug.Info("applying migration", "migration", name)
	id, err := tracker.RecordStarted(ctx, name, script)
	if err != nil {
		return err
	}

	start := time.Now()
	res, applyErr := a.ApplyScript(ctx, script)
	s.config.Telemetry.RecordMigration(ctx, telemetry.MigrationInfo{
		Name:       name,
		Duration:   time.Since(start),
		Statements: res.Applied,
		Success:    applyErr == nil,
	})

	// Records are written even when ctx is cancelled, so the failure
	// stays visible.
	recordCtx := context.WithoutCancel(ctx)
	steps := res.Applied
	if applyErr != nil && s.provider != flavour.MySQL {
		// The script ran in a transaction that was rolled back.
		steps = 0
	}
	if steps > 0 {
		if err := tracker.RecordStepsApplied(recordCtx, id, steps); err != nil {
			return err
		}
	}
	if applyErr != nil {
		if err := tracker.RecordFailure(recordCtx, id, applyErr.Error()); err != nil {
			debug.Error("failed to record migration failure", "migration", name, "error", err)
		}
		return domain.NewApplyMigrationError(name, applyErr)
	}
	return tracker.RecordFinished(recordCtx, id)
}

// MarkMigrationApplied records a migration of the directory as applied
// without running it. Failed records of the migration are rolled back.
func (s *MigrationService) MarkMigrationApplied(ctx context.Context, input MarkMigrationAppliedInput) (EmptyOutput, error) {
	dir := s.directory(input.MigrationsDirectoryPath)
	if err := dir.CheckProvider(string(s.provider)); err != nil {
		return EmptyOutput{}, err
	}
	m, ok, err := dir.Find(input.MigrationName)
	if err != nil {
		return EmptyOutput{}, err
	}
	if !ok {
		return EmptyOutput{}, domain.NewMigrationNotFound(input.MigrationName)
	}
	script, err := m.ReadScript()
	if err != nil {
		return EmptyOutput{}, err
	}

	err = s.withLock(ctx, func() error {
		tracker := s.tracker()
		if err := tracker.EnsureTable(ctx); err != nil {
			return err
		}
		relevant, err := s.recordsNamed(ctx, tracker, input.MigrationName)
		if err != nil {
			return err
		}

		var failed []history.MigrationRecord
		for _, r := range relevant {
			if r.IsFinished() && !r.IsRolledBack() {
				return domain.NewMigrationAlreadyApplied(input.MigrationName)
			}
			if r.IsFailed() {
				failed = append(failed, r)
			}
		}
		if input.ExpectFailed && len(failed) == 0 {
			return domain.NewMigrationToMarkAppliedNotFailed(input.MigrationName)
		}

		for _, r := range failed {
			if err := tracker.RecordRollback(ctx, r.ID); err != nil {
				return err
			}
		}
		_, err = tracker.RecordApplied(ctx, input.MigrationName, script)
		return err
	})
	return EmptyOutput{}, err
}

// MarkMigrationRolledBack marks the failed records of a migration as
// rolled back, so that applyMigrations can proceed.
func (s *MigrationService) MarkMigrationRolledBack(ctx context.Context, input MarkMigrationRolledBackInput) (EmptyOutput, error) {
	err := s.withLock(ctx, func() error {
		tracker := s.tracker()
		records, _, err := s.records(ctx, tracker)
		if err != nil {
			return err
		}

		var relevant, failed []history.MigrationRecord
		for _, r := range records {
			if r.MigrationName != input.MigrationName {
				continue
			}
			relevant = append(relevant, r)
			if r.IsFailed() {
				failed = append(failed, r)
			}
		}
		if len(relevant) == 0 {
			return domain.NewCannotRollBackUnapplied(input.MigrationName)
		}
		if len(failed) == 0 {
			return domain.NewCannotRollBackUnfailed(input.MigrationName)
		}

		var errs []error
		for _, r := range failed {
			errs = append(errs, tracker.RecordRollback(ctx, r.ID))
		}
		return errors.Join(errs...)
	})
	return EmptyOutput{}, err
}

func (s *MigrationService) recordsNamed(ctx context.Context, tracker *history.Tracker, name string) ([]history.MigrationRecord, error) {
	records, err := tracker.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	var out []history.MigrationRecord
	for _, r := range records {
		if r.MigrationName == name {
			out = append(out, r)
		}
	}
	return out, nil
}
