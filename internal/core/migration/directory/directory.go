// Package directory manages the migrations directory: one sub directory
// per migration holding migration.sql, plus the migration_lock.toml file.
package directory

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/history"
)

const (
	// ScriptFileName is the name of the script inside a migration directory.
	ScriptFileName = "migration.sql"

	// MaxNameLength bounds user supplied migration names.
	MaxNameLength = 200

	timestampFormat = "20060102150405"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9_\-]+`)

// Directory is a migrations directory on fs.
type Directory struct {
	fs   afero.Fs
	path string
}

// New returns the migrations directory at path.
func New(fs afero.Fs, path string) *Directory {
	return &Directory{fs: fs, path: path}
}

// Path returns the directory path.
func (d *Directory) Path() string { return d.path }

// Migration is one migration directory.
type Migration struct {
	fs   afero.Fs
	name string
	path string
}

// Name returns the {timestamp}_{name} directory name.
func (m Migration) Name() string { return m.name }

// Path returns the directory path.
func (m Migration) Path() string { return m.path }

// ReadScript reads migration.sql.
func (m Migration) ReadScript() (string, error) {
	b, err := afero.ReadFile(m.fs, filepath.Join(m.path, ScriptFileName))
	if err != nil {
		return "", fmt.Errorf("failed to read migration script of %s: %w", m.name, err)
	}
	return string(b), nil
}

// WriteScript writes migration.sql.
func (m Migration) WriteScript(script string) error {
	if err := afero.WriteFile(m.fs, filepath.Join(m.path, ScriptFileName), []byte(script), 0o644); err != nil {
		return fmt.Errorf("failed to write migration script to %s: %w", m.path, err)
	}
	return nil
}

// Checksum returns the checksum of migration.sql.
func (m Migration) Checksum() (string, error) {
	script, err := m.ReadScript()
	if err != nil {
		return "", err
	}
	return history.CalculateChecksum(script), nil
}

// MatchesChecksum reports whether stored is the checksum of migration.sql.
func (m Migration) MatchesChecksum(stored string) (bool, error) {
	script, err := m.ReadScript()
	if err != nil {
		return false, err
	}
	return history.ChecksumMatches(stored, script), nil
}

// List returns the migrations sorted by name. A missing directory has no
// migrations.
func (d *Directory) List() ([]Migration, error) {
	entries, err := afero.ReadDir(d.fs, d.path)
	if errors.Is(err, fs.ErrNotExist) || errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations directory: %w", err)
	}

	var migrations []Migration
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		migrations = append(migrations, d.migration(e.Name()))
	}
	sort.Slice(migrations, func(i, j int) bool { return migrations[i].name < migrations[j].name })
	return migrations, nil
}

// Find returns the migration named name.
func (d *Directory) Find(name string) (Migration, bool, error) {
	migrations, err := d.List()
	if err != nil {
		return Migration{}, false, err
	}
	for _, m := range migrations {
		if m.name == name {
			return m, true, nil
		}
	}
	return Migration{}, false, nil
}

func (d *Directory) migration(name string) Migration {
	return Migration{fs: d.fs, name: name, path: filepath.Join(d.path, name)}
}

// Create makes the directory of a new migration named after now and name.
func (d *Directory) Create(name string, now time.Time) (Migration, error) {
	if len(name) > MaxNameLength {
		return Migration{}, domain.NewMigrationNameTooLong()
	}
	m := d.migration(DirectoryName(now, name))
	if exists, _ := afero.DirExists(d.fs, m.path); exists {
		return Migration{}, fmt.Errorf("the migration directory already exists at %s", m.path)
	}
	if err := d.fs.MkdirAll(m.path, 0o755); err != nil {
		return Migration{}, fmt.Errorf("failed to create migration directory: %w", err)
	}
	return m, nil
}

// DirectoryName returns {UTC yyyyMMddHHmmss}_{sanitized name}.
func DirectoryName(now time.Time, name string) string {
	stamp := now.UTC().Format(timestampFormat)
	if s := SanitizeName(name); s != "" {
		return stamp + "_" + s
	}
	return stamp
}

// SanitizeName replaces runs of characters that are unsafe in directory
// names with an underscore.
func SanitizeName(name string) string {
	return strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSpace(name), "_"), "_")
}
