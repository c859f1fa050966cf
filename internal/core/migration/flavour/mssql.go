package flavour

import (
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// MSSQLIdentifierSizeLimit is the sysname length.
const MSSQLIdentifierSizeLimit = 128

// MSSQLAdvisoryLockResource is the resource passed to sp_getapplock.
const MSSQLAdvisoryLockResource = "prisma_migrate"

// MSSQLFlavour implements Flavour for SQL Server.
type MSSQLFlavour struct {
	base
}

var _ Flavour = (*MSSQLFlavour)(nil)

// NewMSSQL returns the SQL Server flavour.
func NewMSSQL() *MSSQLFlavour {
	return &MSSQLFlavour{base: base{limit: MSSQLIdentifierSizeLimit}}
}

func (f *MSSQLFlavour) Provider() Provider { return SQLServer }

func (f *MSSQLFlavour) Capabilities() Capabilities {
	return Capabilities{
		CanAlterIndex:         true,
		IdentifierLengthLimit: MSSQLIdentifierSizeLimit,
		CycleSafeFKActions:    true,
	}
}

func (f *MSSQLFlavour) NativeTypes() []NativeTypeSpec { return mssqlNativeTypes }

func (f *MSSQLFlavour) ScalarType(scalar string) (sqlschema.ColumnTypeFamily, *sqlschema.NativeType, bool) {
	return lookupScalar(mssqlScalars, scalar)
}

func (f *MSSQLFlavour) ColumnTypeChange(previous, next sqlschema.ColumnWalker) TypeChange {
	pt, nt := previous.Type(), next.Type()
	if pt.Family == nt.Family && (pt.Arity == sqlschema.List) == (nt.Arity == sqlschema.List) {
		return rankedChange(f, pt.NativeType, nt.NativeType)
	}
	return CanonicalTypeChange(previous, next)
}
