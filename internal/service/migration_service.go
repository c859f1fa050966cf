// Package service implements the migration engine commands.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/afero"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/directory"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/history"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/renderer"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/datamodel"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// blockedPreviewFeatures are preview features migrations refuse to work with.
var blockedPreviewFeatures = []string{"mongoDb"}

// Config holds the dependencies of a MigrationService. Zero values are
// replaced with defaults.
type Config struct {
	// Database is the configuration of the main connector. Shadow
	// connectors reuse it with another URL.
	Database database.Config

	// ShadowDatabaseURL replaces the temporary shadow database.
	ShadowDatabaseURL string

	FS        afero.Fs
	Telemetry telemetry.Telemetry
	Connect   ConnectorFactory
	Now       func() time.Time
}

// MigrationService orchestrates migration operations on one connected
// database.
type MigrationService struct {
	connector database.Connector
	provider  flavour.Provider
	config    Config
}

// NewMigrationService creates a new migration service. The connector must
// be connected.
func NewMigrationService(connector database.Connector, config Config) *MigrationService {
	if config.FS == nil {
		config.FS = afero.NewOsFs()
	}
	if config.Telemetry == nil {
		config.Telemetry = telemetry.NewNoopTelemetry()
	}
	if config.Connect == nil {
		config.Connect = NewConnector
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	return &MigrationService{
		connector: connector,
		provider:  connector.Flavour().Provider(),
		config:    config,
	}
}

// Connector returns the main connector.
func (s *MigrationService) Connector() database.Connector {
	return s.connector
}

func (s *MigrationService) flavour() flavour.Flavour {
	return s.connector.Flavour()
}

func (s *MigrationService) directory(path string) *directory.Directory {
	return directory.New(s.config.FS, path)
}

func (s *MigrationService) tracker() *history.Tracker {
	return history.NewTracker(s.connector, schemaOf(s.connector))
}

func (s *MigrationService) renderer() (renderer.Renderer, error) {
	return rendererFor(s.connector)
}

func rendererFor(c database.Connector) (renderer.Renderer, error) {
	if c.Flavour().Provider() == flavour.SQLServer {
		return renderer.NewMSSQL(c.Flavour(), schemaOf(c)), nil
	}
	return renderer.New(c.Flavour())
}

// parseSchema parses a PSL schema. Errors are P1012 known errors.
func (s *MigrationService) parseSchema(source string) (*datamodel.Datamodel, error) {
	dm, err := datamodel.Parse("schema.prisma", source)
	if err != nil {
		return nil, err
	}
	var blocked []string
	for _, feature := range dm.PreviewFeatures() {
		for _, b := range blockedPreviewFeatures {
			if feature == b {
				blocked = append(blocked, feature)
			}
		}
	}
	if len(blocked) > 0 {
		return nil, domain.NewPreviewFeaturesBlocked(blocked)
	}
	return dm, nil
}

// calculate parses a PSL schema and returns its SQL schema on the
// connected flavour.
func (s *MigrationService) calculate(source string) (*sqlschema.Schema, error) {
	dm, err := s.parseSchema(source)
	if err != nil {
		return nil, err
	}
	schema, err := calculator.New(s.flavour()).Calculate(dm)
	if err != nil {
		return nil, fmt.Errorf("failed to calculate database schema: %w", err)
	}
	return schema, nil
}

// withLock runs fn while holding the advisory migration lock.
func (s *MigrationService) withLock(ctx context.Context, fn func() error) error {
	start := time.Now()
	err := s.connector.AcquireLock(ctx)
	s.config.Telemetry.RecordLock(ctx, telemetry.LockInfo{
		Provider: string(s.provider),
		Wait:     time.Since(start),
		Success:  err == nil,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := s.connector.ReleaseLock(context.WithoutCancel(ctx)); err != nil {
			debug.Warn("failed to release advisory lock", "error", err)
		}
	}()
	return fn()
}

// records reads the migration history. A missing table has no records.
func (s *MigrationService) records(ctx context.Context, tracker *history.Tracker) ([]history.MigrationRecord, bool, error) {
	exists, err := tracker.HasTable(ctx)
	if err != nil || !exists {
		return nil, false, err
	}
	records, err := tracker.GetAll(ctx)
	if err != nil {
		return nil, true, err
	}
	return records, true, nil
}

// GetDatabaseVersion returns the server version string.
func (s *MigrationService) GetDatabaseVersion(ctx context.Context) (string, error) {
	return s.connector.Version(ctx)
}

// EnsureConnectionValidity pings the database.
func (s *MigrationService) EnsureConnectionValidity(ctx context.Context) error {
	return s.connector.Ping(ctx)
}

// Reset drops every object of the database, including the migrations table.
func (s *MigrationService) Reset(ctx context.Context) error {
	debug.Info("resetting database", "database", s.connector.Info().Location())
	if err := s.connector.Reset(ctx); err != nil {
		return fmt.Errorf("failed to reset database: %w", err)
	}
	return nil
}

// ListMigrationDirectories lists the migration directory names in order.
func (s *MigrationService) ListMigrationDirectories(ctx context.Context, input ListMigrationDirectoriesInput) (ListMigrationDirectoriesOutput, error) {
	migrations, err := s.directory(input.MigrationsDirectoryPath).List()
	if err != nil {
		return ListMigrationDirectoriesOutput{}, err
	}
	names := make([]string, 0, len(migrations))
	for _, m := range migrations {
		names = append(names, m.Name())
	}
	return ListMigrationDirectoriesOutput{Migrations: names}, nil
}
