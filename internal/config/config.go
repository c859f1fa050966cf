// Package config loads engine configuration from files, .env and the environment.
package config

import (
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem used for migrations directories and schema files.
var AppFs = afero.NewOsFs()

// Config holds the engine configuration.
type Config struct {
	SchemaPath     string
	MigrationsPath string
	DatasourceURL  string
	LogFormat      string
	LogLevel       string
	MetricsAddr    string
	LockTimeout    time.Duration
	ConnectTimeout time.Duration
	MaxConnections int
}

// Load reads configuration from .prisma-migrate.yaml, PRISMA_MIGRATE_* variables
// and .env files. Missing files are not an error.
func Load() (*Config, error) {
	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigName(".prisma-migrate")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "prisma-migrate"))

	v.SetEnvPrefix("PRISMA_MIGRATE")
	v.AutomaticEnv()

	v.SetDefault("schema_path", "prisma/schema.prisma")
	v.SetDefault("migrations_path", "prisma/migrations")
	v.SetDefault("log_format", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("lock_timeout", "10s")
	v.SetDefault("connect_timeout", "5s")
	v.SetDefault("max_connections", 4)

	_ = v.ReadInConfig()

	LoadDotEnv()

	return &Config{
		SchemaPath:     v.GetString("schema_path"),
		MigrationsPath: v.GetString("migrations_path"),
		DatasourceURL:  v.GetString("datasource_url"),
		LogFormat:      v.GetString("log_format"),
		LogLevel:       v.GetString("log_level"),
		MetricsAddr:    v.GetString("metrics_addr"),
		LockTimeout:    v.GetDuration("lock_timeout"),
		ConnectTimeout: v.GetDuration("connect_timeout"),
		MaxConnections: v.GetInt("max_connections"),
	}, nil
}

// LoadDotEnv loads .env and then .env.local, the latter overriding.
func LoadDotEnv() {
	if _, err := AppFs.Stat(".env"); err == nil {
		_ = godotenv.Load(".env")
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		_ = godotenv.Overload(".env.local")
	}
}

// ReadSchema reads a schema file through AppFs.
func ReadSchema(path string) (string, error) {
	b, err := afero.ReadFile(AppFs, path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
