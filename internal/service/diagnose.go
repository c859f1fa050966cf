package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/directory"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/history"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// DiagnoseMigrationHistory compares the migrations directory with the
// migrations table. With a shadow database it also replays the history to
// detect drift and migrations that do not apply.
func (s *MigrationService) DiagnoseMigrationHistory(ctx context.Context, input DiagnoseMigrationHistoryInput) (DiagnoseMigrationHistoryOutput, error) {
	dir := s.directory(input.MigrationsDirectoryPath)
	if err := dir.CheckProvider(string(s.provider)); err != nil {
		return DiagnoseMigrationHistoryOutput{}, err
	}
	migrations, err := dir.List()
	if err != nil {
		return DiagnoseMigrationHistoryOutput{}, err
	}
	records, hasTable, err := s.records(ctx, s.tracker())
	if err != nil {
		return DiagnoseMigrationHistoryOutput{}, err
	}

	out := DiagnoseMigrationHistoryOutput{
		FailedMigrationNames: []string{},
		EditedMigrationNames: []string{},
		HasMigrationsTable:   hasTable,
	}

	byName := make(map[string]directory.Migration, len(migrations))
	for _, m := range migrations {
		byName[m.Name()] = m
	}
	var applied []history.MigrationRecord
	for _, r := range records {
		if r.IsRolledBack() {
			continue
		}
		if r.IsFailed() {
			out.FailedMigrationNames = append(out.FailedMigrationNames, r.MigrationName)
			continue
		}
		applied = append(applied, r)
		if m, ok := byName[r.MigrationName]; ok {
			matches, err := m.MatchesChecksum(r.Checksum)
			if err != nil {
				return DiagnoseMigrationHistoryOutput{}, err
			}
			if !matches {
				out.EditedMigrationNames = append(out.EditedMigrationNames, r.MigrationName)
			}
		}
	}
	out.History = diagnoseHistory(migrations, applied)

	if input.OptInToShadowDatabase {
		if err := s.diagnoseDrift(ctx, migrations, applied, &out); err != nil {
			return DiagnoseMigrationHistoryOutput{}, err
		}
	}
	return out, nil
}

// diagnoseHistory walks the directory and the applied records side by side
// and reports where they part.
func diagnoseHistory(migrations []directory.Migration, applied []history.MigrationRecord) *HistoryDiagnostic {
	seen := map[string]bool{}
	var appliedNames []string
	for _, r := range applied {
		if !seen[r.MigrationName] {
			seen[r.MigrationName] = true
			appliedNames = append(appliedNames, r.MigrationName)
		}
	}
	local := make([]string, len(migrations))
	for i, m := range migrations {
		local[i] = m.Name()
	}

	common := 0
	for common < len(local) && common < len(appliedNames) && local[common] == appliedNames[common] {
		common++
	}
	unapplied := local[common:]
	unpersisted := appliedNames[common:]

	switch {
	case len(unapplied) == 0 && len(unpersisted) == 0:
		return nil
	case len(unpersisted) == 0:
		return &HistoryDiagnostic{Diagnostic: DatabaseIsBehind, UnappliedMigrationNames: unapplied}
	case len(unapplied) == 0:
		return &HistoryDiagnostic{Diagnostic: MigrationsDirectoryIsBehind, UnpersistedMigrationNames: unpersisted}
	}

	d := &HistoryDiagnostic{
		Diagnostic:                HistoriesDiverge,
		UnappliedMigrationNames:   unapplied,
		UnpersistedMigrationNames: unpersisted,
	}
	if common > 0 {
		last := local[common-1]
		d.LastCommonMigrationName = &last
	}
	return d
}

// diagnoseDrift replays the applied migrations on a shadow database and
// compares the result with the main database, then replays the rest of the
// directory to find migrations that do not apply.
func (s *MigrationService) diagnoseDrift(ctx context.Context, migrations []directory.Migration, applied []history.MigrationRecord, out *DiagnoseMigrationHistoryOutput) error {
	isApplied := map[string]bool{}
	for _, r := range applied {
		isApplied[r.MigrationName] = true
	}
	var replayed, pending []directory.Migration
	for _, m := range migrations {
		if isApplied[m.Name()] {
			replayed = append(replayed, m)
		} else {
			pending = append(pending, m)
		}
	}

	return s.withShadowDatabase(ctx, func(shadow database.Connector) error {
		if err := replay(ctx, shadow, replayed); err != nil {
			known, ok := domain.AsKnownError(err)
			if !ok {
				return err
			}
			out.Drift = &DriftDiagnostic{
				Diagnostic:    MigrationFailedToApply,
				MigrationName: fmt.Sprint(known.Meta["migration_name"]),
				Error:         known,
			}
			return nil
		}

		expected, err := shadow.Describe(ctx)
		if err != nil {
			return fmt.Errorf("failed to describe shadow database: %w", err)
		}
		actual, err := s.connector.Describe(ctx)
		if err != nil {
			return err
		}
		drift := differ.Diff(actual, expected, s.flavour())
		if !drift.IsEmpty() {
			r, err := s.renderer()
			if err != nil {
				return err
			}
			debug.Info("drift detected", "steps", len(drift.Steps))
			out.Drift = &DriftDiagnostic{
				Diagnostic: DriftDetected,
				Rollback:   applier.RenderScript(r, drift, destructive.Diagnostics{}),
			}
		}

		if err := replay(ctx, shadow, pending); err != nil {
			known, ok := domain.AsKnownError(err)
			if !ok {
				return err
			}
			out.ErrorInUnappliedMigration = known
		}
		return nil
	})
}

// DevDiagnostic decides whether migrate dev can create a migration or must
// reset the database first.
func (s *MigrationService) DevDiagnostic(ctx context.Context, input DevDiagnosticInput) (DevDiagnosticOutput, error) {
	diagnostic, err := s.DiagnoseMigrationHistory(ctx, DiagnoseMigrationHistoryInput{
		MigrationsDirectoryPath: input.MigrationsDirectoryPath,
		OptInToShadowDatabase:   true,
	})
	if err != nil {
		return DevDiagnosticOutput{}, err
	}
	if diagnostic.ErrorInUnappliedMigration != nil {
		return DevDiagnosticOutput{}, diagnostic.ErrorInUnappliedMigration
	}
	if d := diagnostic.Drift; d != nil && d.Diagnostic == MigrationFailedToApply {
		return DevDiagnosticOutput{}, d.Error
	}

	if reason := resetReason(diagnostic); reason != "" {
		return DevDiagnosticOutput{Action: DevAction{Tag: DevActionReset, Reason: reason}}, nil
	}
	return DevDiagnosticOutput{Action: DevAction{Tag: DevActionCreateMigration}}, nil
}

func resetReason(d DiagnoseMigrationHistoryOutput) string {
	if h := d.History; h != nil {
		switch h.Diagnostic {
		case MigrationsDirectoryIsBehind:
			return fmt.Sprintf("The following migration(s) are applied to the database but missing from the local migrations directory: %s", strings.Join(h.UnpersistedMigrationNames, ", "))
		case HistoriesDiverge:
			last := "none"
			if h.LastCommonMigrationName != nil {
				last = *h.LastCommonMigrationName
			}
			return fmt.Sprintf("The migrations recorded in the database diverge from the local migrations directory. Last common migration: `%s`. Migrations applied to the database but absent from the migrations directory are: %s", last, strings.Join(h.UnpersistedMigrationNames, ", "))
		}
	}
	if len(d.EditedMigrationNames) > 0 {
		return fmt.Sprintf("The migration `%s` was modified after it was applied.", d.EditedMigrationNames[0])
	}
	if len(d.FailedMigrationNames) > 0 {
		return fmt.Sprintf("The migration `%s` failed.", d.FailedMigrationNames[0])
	}
	if d.Drift != nil && d.Drift.Diagnostic == DriftDetected {
		return "Drift detected: Your database schema is not in sync with your migration history."
	}
	return ""
}
