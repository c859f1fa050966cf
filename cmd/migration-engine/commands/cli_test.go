package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	color.NoColor = true

	cmd := NewRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestCLIDatabaseLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.db")
	url := "file:" + path

	out, _, err := runCommand(t, "cli", "create-database", "--datasource", url)
	require.NoError(t, err)
	assert.Contains(t, out, "was successfully created")
	assert.FileExists(t, path)

	_, stderr, err := runCommand(t, "cli", "create-database", "--datasource", url)
	require.Error(t, err)
	assert.Contains(t, stderr, `"error_code":"P1009"`)

	out, _, err = runCommand(t, "cli", "can-connect-to-database", "--datasource", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Connection successful")

	out, _, err = runCommand(t, "cli", "drop-database", "--datasource", url)
	require.NoError(t, err)
	assert.Contains(t, out, "was successfully dropped")
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestCLIRequiresDatasource(t *testing.T) {
	_, _, err := runCommand(t, "cli", "create-database")
	assert.Error(t, err)

	_, _, err = runCommand(t, "cli", "create-database", "--datasource", "mongodb://localhost/app")
	assert.Error(t, err)
}

func TestLoadConfigFlagsOverride(t *testing.T) {
	cfg, err := loadConfig(&rootOptions{
		datamodel:     "custom/schema.prisma",
		datasourceURL: "file:dev.db",
		metricsAddr:   ":9090",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom/schema.prisma", cfg.SchemaPath)
	assert.Equal(t, "file:dev.db", cfg.DatasourceURL)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}
