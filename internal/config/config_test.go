package config

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	orig := AppFs
	AppFs = afero.NewMemMapFs()
	defer func() { AppFs = orig }()

	t.Setenv("PRISMA_MIGRATE_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "prisma/migrations", cfg.MigrationsPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.LockTimeout)
	assert.Equal(t, 4, cfg.MaxConnections)
}

func TestReadSchema(t *testing.T) {
	orig := AppFs
	AppFs = afero.NewMemMapFs()
	defer func() { AppFs = orig }()

	require.NoError(t, afero.WriteFile(AppFs, "schema.prisma", []byte("model A { id Int @id }"), 0o644))

	s, err := ReadSchema("schema.prisma")
	require.NoError(t, err)
	assert.Contains(t, s, "model A")

	_, err = ReadSchema("missing.prisma")
	assert.Error(t, err)
}
