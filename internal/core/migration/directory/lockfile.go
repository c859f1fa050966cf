package directory

import (
	"fmt"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/afero"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
)

// LockFileName is the provider lock file at the root of the directory.
const LockFileName = "migration_lock.toml"

const lockFileHeader = "# Please do not edit this file manually\n"

// LockFile is the content of migration_lock.toml.
type LockFile struct {
	Provider string `toml:"provider"`
}

func (d *Directory) lockPath() string { return filepath.Join(d.path, LockFileName) }

// ReadLockFile reads the lock file. ok is false when there is none.
func (d *Directory) ReadLockFile() (lock LockFile, ok bool, err error) {
	exists, err := afero.Exists(d.fs, d.lockPath())
	if err != nil || !exists {
		return LockFile{}, false, err
	}
	b, err := afero.ReadFile(d.fs, d.lockPath())
	if err != nil {
		return LockFile{}, false, fmt.Errorf("failed to read migration lock file: %w", err)
	}
	if err := toml.Unmarshal(b, &lock); err != nil {
		return LockFile{}, false, fmt.Errorf("failed to parse migration lock file: %w", err)
	}
	return lock, true, nil
}

// WriteLockFile writes the lock file for provider.
func (d *Directory) WriteLockFile(provider string) error {
	if err := d.fs.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("failed to create migrations directory: %w", err)
	}
	content := fmt.Sprintf("%sprovider = %q\n", lockFileHeader, provider)
	if err := afero.WriteFile(d.fs, d.lockPath(), []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write migration lock file: %w", err)
	}
	return nil
}

// CheckProvider fails with a provider switched error when the lock file
// names another provider. A missing lock file matches any provider.
func (d *Directory) CheckProvider(provider string) error {
	lock, ok, err := d.ReadLockFile()
	if err != nil || !ok {
		return err
	}
	if lock.Provider != provider {
		return domain.NewProviderSwitchedError(provider)
	}
	return nil
}
