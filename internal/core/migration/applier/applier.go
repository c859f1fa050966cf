// Package applier executes migration scripts and migration steps.
package applier

import (
	"context"
	"fmt"
	"time"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/renderer"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// StatementError reports the statement of a script that failed.
type StatementError struct {
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("failed to execute SQL statement %d: %v\nSQL: %s", e.Index, e.Err, e.Statement)
}

func (e *StatementError) Unwrap() error {
	return e.Err
}

// Result summarises an apply run.
type Result struct {
	// Applied counts the statements, or the steps in step mode, that
	// succeeded before the run ended.
	Applied  int
	Duration time.Duration
}

// Applier runs SQL against one database.
type Applier struct {
	db       database.Adapter
	provider flavour.Provider
}

// New creates an applier for db.
func New(db database.Adapter) *Applier {
	return &Applier{db: db, provider: db.Flavour().Provider()}
}

// transactional reports whether DDL can be rolled back on the provider.
// MySQL commits implicitly after every DDL statement.
func (a *Applier) transactional() bool {
	return a.provider != flavour.MySQL
}

// ApplyScript splits a migration script and executes its statements in
// order. The first failure aborts the run.
func (a *Applier) ApplyScript(ctx context.Context, script string) (Result, error) {
	start := time.Now()
	stmts := SplitStatements(script, a.provider)
	debug.Debug("applying migration script", "statements", len(stmts))

	applied, err := a.run(ctx, func(exec database.Executor) (int, error) {
		for i, stmt := range stmts {
			if _, err := exec.Execute(ctx, stmt); err != nil {
				return i, &StatementError{Index: i, Statement: stmt, Err: err}
			}
		}
		return len(stmts), nil
	})
	return Result{Applied: applied, Duration: time.Since(start)}, err
}

// ApplySteps renders every step of m and executes it. Result.Applied
// counts whole steps.
func (a *Applier) ApplySteps(ctx context.Context, r renderer.Renderer, m *differ.Migration) (Result, error) {
	start := time.Now()
	applied, err := a.run(ctx, func(exec database.Executor) (int, error) {
		n := 0
		for i, step := range m.Steps {
			stmts := nonEmpty(renderer.RenderStep(r, m, step))
			for _, stmt := range stmts {
				if _, err := exec.Execute(ctx, stmt); err != nil {
					return i, &StatementError{Index: n, Statement: stmt, Err: err}
				}
				n++
			}
			debug.Debug("applied migration step", "step", step.Kind(), "statements", len(stmts))
		}
		return len(m.Steps), nil
	})
	return Result{Applied: applied, Duration: time.Since(start)}, err
}

func (a *Applier) run(ctx context.Context, body func(database.Executor) (int, error)) (int, error) {
	if !a.transactional() {
		return body(a.db)
	}

	tx, err := a.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	applied, err := body(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			debug.Warn("failed to roll back migration transaction", "error", rbErr)
		}
		return applied, err
	}
	if err := tx.Commit(); err != nil {
		return applied, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return applied, nil
}
