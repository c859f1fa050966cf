package flavour

import (
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// PostgresIdentifierSizeLimit is NAMEDATALEN - 1.
const PostgresIdentifierSizeLimit = 63

// PostgresAdvisoryLockID is the key passed to pg_advisory_lock.
const PostgresAdvisoryLockID = 72707369

var postgresIgnoredTables = map[string]bool{
	"spatial_ref_sys":  true,
	"geometry_columns": true,
}

// PostgresFlavour implements Flavour for PostgreSQL.
type PostgresFlavour struct {
	base
}

var _ Flavour = (*PostgresFlavour)(nil)

// NewPostgres returns the PostgreSQL flavour.
func NewPostgres() *PostgresFlavour {
	return &PostgresFlavour{base: base{limit: PostgresIdentifierSizeLimit}}
}

func (f *PostgresFlavour) Provider() Provider { return Postgres }

func (f *PostgresFlavour) Capabilities() Capabilities {
	return Capabilities{
		CanAlterIndex:         true,
		SupportsEnums:         true,
		NamedEnums:            true,
		SupportsJSON:          true,
		SupportsScalarLists:   true,
		IdentifierLengthLimit: PostgresIdentifierSizeLimit,
		MultipleAutoincrement: true,
	}
}

func (f *PostgresFlavour) TableShouldBeIgnored(name string) bool {
	return f.base.TableShouldBeIgnored(name) || postgresIgnoredTables[name]
}

func (f *PostgresFlavour) NativeTypes() []NativeTypeSpec { return postgresNativeTypes }

func (f *PostgresFlavour) ScalarType(scalar string) (sqlschema.ColumnTypeFamily, *sqlschema.NativeType, bool) {
	return lookupScalar(postgresScalars, scalar)
}

func (f *PostgresFlavour) ColumnTypeChange(previous, next sqlschema.ColumnWalker) TypeChange {
	pt, nt := previous.Type(), next.Type()
	if pt.Family == nt.Family && pt.Family != sqlschema.FamilyEnum && (pt.Arity == sqlschema.List) == (nt.Arity == sqlschema.List) {
		return rankedChange(f, pt.NativeType, nt.NativeType)
	}
	// Integer widening across the Int/BigInt boundary is lossless.
	if pt.Family == sqlschema.FamilyInt && nt.Family == sqlschema.FamilyBigInt && pt.Arity == nt.Arity {
		return SafeCast
	}
	return CanonicalTypeChange(previous, next)
}
