package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/applier"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/directory"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// ShadowDatabasePrefix prefixes the names of temporary shadow databases.
const ShadowDatabasePrefix = "prisma_migrate_shadow_db_"

// withShadowDatabase runs fn on an empty shadow database. The configured
// shadow database is reset before use; a temporary one is dropped after.
func (s *MigrationService) withShadowDatabase(ctx context.Context, fn func(shadow database.Connector) error) error {
	if s.config.ShadowDatabaseURL != "" {
		return s.withConfiguredShadowDatabase(ctx, fn)
	}

	name := ShadowDatabasePrefix + uuid.NewString()
	url, err := s.connector.CreateShadowDatabase(ctx, name)
	if err != nil {
		return err
	}
	debug.Debug("created shadow database", "name", name)
	defer func() {
		if err := s.connector.DropShadowDatabase(context.WithoutCancel(ctx), name); err != nil {
			debug.Warn("failed to drop shadow database", "name", name, "error", err)
		}
	}()

	shadow, err := s.openShadow(ctx, url)
	if err != nil {
		return domain.NewShadowDatabaseCreationError(err)
	}
	defer shadow.Disconnect(context.WithoutCancel(ctx))
	return fn(shadow)
}

func (s *MigrationService) withConfiguredShadowDatabase(ctx context.Context, fn func(shadow database.Connector) error) error {
	shadow, err := s.openShadow(ctx, s.config.ShadowDatabaseURL)
	if err != nil {
		return err
	}
	defer shadow.Disconnect(context.WithoutCancel(ctx))

	if sameDatabase(shadow.Info(), s.connector.Info()) {
		return domain.NewShadowDatabaseIsMainError()
	}
	if err := shadow.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset shadow database: %w", err)
	}
	return fn(shadow)
}

func (s *MigrationService) openShadow(ctx context.Context, url string) (database.Connector, error) {
	cfg := s.config.Database
	cfg.URL = url
	shadow, err := s.config.Connect(s.provider, cfg)
	if err != nil {
		return nil, err
	}
	if err := shadow.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to shadow database: %w", err)
	}
	return shadow, nil
}

func sameDatabase(a, b domain.ConnectionInfo) bool {
	return a.Provider == b.Provider && a.Host == b.Host && a.Port == b.Port &&
		a.Database == b.Database && a.Schema == b.Schema
}

// replay applies migrations to the shadow database in order. A migration
// that fails is reported as not applying cleanly.
func replay(ctx context.Context, shadow database.Connector, migrations []directory.Migration) error {
	a := applier.New(shadow)
	for _, m := range migrations {
		script, err := m.ReadScript()
		if err != nil {
			return err
		}
		if _, err := a.ApplyScript(ctx, script); err != nil {
			return domain.NewMigrationDoesNotApplyCleanly(m.Name(), err)
		}
		debug.Debug("replayed migration on shadow database", "migration", m.Name())
	}
	return nil
}

// replaySchema replays migrations on a shadow database and describes the
// result. Without migrations the schema is empty and no shadow database is
// created.
func (s *MigrationService) replaySchema(ctx context.Context, migrations []directory.Migration) (*sqlschema.Schema, error) {
	if len(migrations) == 0 {
		return sqlschema.Empty(), nil
	}
	var schema *sqlschema.Schema
	err := s.withShadowDatabase(ctx, func(shadow database.Connector) error {
		if err := replay(ctx, shadow, migrations); err != nil {
			return err
		}
		described, err := shadow.Describe(ctx)
		if err != nil {
			return fmt.Errorf("failed to describe shadow database: %w", err)
		}
		schema = described
		return nil
	})
	return schema, err
}
