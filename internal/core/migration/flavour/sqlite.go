package flavour

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// SQLiteLockTable is the sentinel table used as an advisory lock.
const SQLiteLockTable = "_prisma_migrations_lock"

// SQLiteFlavour implements Flavour for SQLite.
type SQLiteFlavour struct {
	base
}

var _ Flavour = (*SQLiteFlavour)(nil)

// NewSQLite returns the SQLite flavour.
func NewSQLite() *SQLiteFlavour {
	return &SQLiteFlavour{}
}

func (f *SQLiteFlavour) Provider() Provider { return SQLite }

func (f *SQLiteFlavour) Capabilities() Capabilities {
	return Capabilities{
		RequiresTableRedefinition: true,
		InlineForeignKeys:         true,
	}
}

func (f *SQLiteFlavour) TableShouldBeIgnored(name string) bool {
	return f.base.TableShouldBeIgnored(name) || name == SQLiteLockTable || strings.HasPrefix(name, "sqlite_")
}

func (f *SQLiteFlavour) NativeTypes() []NativeTypeSpec { return nil }

func (f *SQLiteFlavour) ScalarType(scalar string) (sqlschema.ColumnTypeFamily, *sqlschema.NativeType, bool) {
	return lookupScalar(sqliteScalars, scalar)
}

// ColumnTypeChange compares families only; SQLite has no native types.
func (f *SQLiteFlavour) ColumnTypeChange(previous, next sqlschema.ColumnWalker) TypeChange {
	pt, nt := previous.Type(), next.Type()
	if pt.Family == nt.Family && pt.Arity == nt.Arity {
		return NoTypeChange
	}
	return CanonicalTypeChange(previous, next)
}

// ShouldRedefineTable is true for any structural change SQLite cannot ALTER.
func (f *SQLiteFlavour) ShouldRedefineTable(t RedefinitionTriggers) bool {
	return t.Any()
}
