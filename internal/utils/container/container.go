// Package container provides dependency injection.
package container

import (
	"context"
	"errors"
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-migrate/internal/config"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/datamodel"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
	"github.com/satishbabariya/prisma-migrate/internal/service"
)

// Container holds all application dependencies.
type Container struct {
	// Configuration
	config *config.Config

	// Adapters
	connector database.Connector
	telemetry telemetry.Telemetry

	// Services
	migrationService *service.MigrationService
}

// Datasource is the resolved connection target of the engine.
type Datasource struct {
	Provider          flavour.Provider
	URL               string
	ShadowDatabaseURL string
}

// ResolveDatasource finds the database to connect to. An explicit URL in
// cfg wins over the datasource block of the schema file.
func ResolveDatasource(cfg *config.Config) (Datasource, error) {
	if cfg.DatasourceURL != "" {
		provider, err := service.ProviderFromURL(cfg.DatasourceURL)
		if err != nil {
			return Datasource{}, err
		}
		return Datasource{Provider: provider, URL: cfg.DatasourceURL}, nil
	}

	source, err := config.ReadSchema(cfg.SchemaPath)
	if err != nil {
		return Datasource{}, fmt.Errorf("failed to read schema: %w", err)
	}
	return DatasourceFromSchema(cfg.SchemaPath, source)
}

// DatasourceFromSchema resolves the datasource block of a schema,
// reading env() references from the environment.
func DatasourceFromSchema(filename, source string) (Datasource, error) {
	dm, err := datamodel.Parse(filename, source)
	if err != nil {
		return Datasource{}, err
	}
	if dm.Datasource == nil {
		return Datasource{}, errors.New("the schema has no datasource block")
	}
	url, err := dm.Datasource.URL.Resolve()
	if err != nil {
		return Datasource{}, err
	}
	ds := Datasource{Provider: dm.Datasource.Provider, URL: url}
	if shadow := dm.Datasource.ShadowDatabaseURL; shadow != nil {
		if ds.ShadowDatabaseURL, err = shadow.Resolve(); err != nil {
			return Datasource{}, err
		}
	}
	return ds, nil
}

// DatabaseConfig returns the connector configuration for url.
func DatabaseConfig(cfg *config.Config, url string) database.Config {
	return database.Config{
		URL:            url,
		MaxConnections: cfg.MaxConnections,
		ConnectTimeout: cfg.ConnectTimeout,
		LockTimeout:    cfg.LockTimeout,
	}.WithDefaults()
}

// NewContainer creates a new dependency injection container and connects
// to the database.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		config: cfg,
	}

	ds, err := ResolveDatasource(cfg)
	if err != nil {
		return nil, err
	}

	telemetryType := telemetry.TypeNoop
	if cfg.MetricsAddr != "" {
		telemetryType = telemetry.TypePrometheus
	}
	c.telemetry, err = telemetry.NewTelemetry(&telemetry.Config{Type: string(telemetryType)})
	if err != nil {
		return nil, fmt.Errorf("failed to create telemetry: %w", err)
	}

	dbConfig := DatabaseConfig(cfg, ds.URL)
	c.connector, err = service.NewConnector(ds.Provider, dbConfig)
	if err != nil {
		return nil, err
	}
	if err := c.connector.Connect(ctx); err != nil {
		return nil, err
	}
	debug.Info("connected to database", "provider", ds.Provider, "database", c.connector.Info().Location())

	c.migrationService = service.NewMigrationService(c.connector, service.Config{
		Database:          dbConfig,
		ShadowDatabaseURL: ds.ShadowDatabaseURL,
		FS:                config.AppFs,
		Telemetry:         c.telemetry,
	})

	return c, nil
}

// Config returns the configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// MigrationService returns the migration service.
func (c *Container) MigrationService() *service.MigrationService {
	return c.migrationService
}

// Telemetry returns the telemetry adapter.
func (c *Container) Telemetry() telemetry.Telemetry {
	return c.telemetry
}

// Close closes all resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if c.connector != nil {
		if err := c.connector.Disconnect(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to disconnect database: %w", err))
		}
	}
	if c.telemetry != nil {
		if err := c.telemetry.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to close telemetry: %w", err))
		}
	}
	return errors.Join(errs...)
}
