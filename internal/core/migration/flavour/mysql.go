package flavour

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hashicorp/go-version"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// MySQLIdentifierSizeLimit is the maximum identifier length in bytes.
const MySQLIdentifierSizeLimit = 64

// MySQLAdvisoryLockName is the lock taken with GET_LOCK.
const MySQLAdvisoryLockName = "prisma_migrate"

var (
	mysql57         = version.Must(version.NewVersion("5.7.0"))
	mysqlVersionExp = regexp.MustCompile(`^\d+(\.\d+){0,2}`)
)

// MySQLOptions are the server properties that change the flavour.
type MySQLOptions struct {
	// Version is the output of SELECT @@version.
	Version string
	// LowerCaseTableNames is @@lower_case_table_names.
	LowerCaseTableNames int
}

// MySQLFlavour implements Flavour for MySQL and MariaDB.
type MySQLFlavour struct {
	base
	version             *version.Version
	mariadb             bool
	lowerCaseTableNames bool
}

var _ Flavour = (*MySQLFlavour)(nil)

// NewMySQL returns the MySQL flavour for a server.
func NewMySQL(opts MySQLOptions) *MySQLFlavour {
	f := &MySQLFlavour{
		base:                base{limit: MySQLIdentifierSizeLimit},
		lowerCaseTableNames: opts.LowerCaseTableNames != 0,
	}
	if opts.Version != "" {
		f.version, f.mariadb, _ = ParseMySQLVersion(opts.Version)
	}
	return f
}

// ParseMySQLVersion extracts the numeric version and the MariaDB marker from
// a @@version string such as "10.5.8-MariaDB-1:10.5.8+maria~focal".
func ParseMySQLVersion(s string) (*version.Version, bool, error) {
	mariadb := strings.Contains(strings.ToLower(s), "mariadb")
	m := mysqlVersionExp.FindString(strings.TrimSpace(s))
	if m == "" {
		return nil, mariadb, fmt.Errorf("failed to parse mysql version %q", s)
	}
	v, err := version.NewVersion(m)
	if err != nil {
		return nil, mariadb, fmt.Errorf("failed to parse mysql version %q: %w", s, err)
	}
	return v, mariadb, nil
}

// IsMariaDB reports whether the server is MariaDB.
func (f *MySQLFlavour) IsMariaDB() bool { return f.mariadb }

// IsMySQL56 reports a MySQL server older than 5.7.
func (f *MySQLFlavour) IsMySQL56() bool {
	return !f.mariadb && f.version != nil && f.version.LessThan(mysql57)
}

func (f *MySQLFlavour) Provider() Provider { return MySQL }

func (f *MySQLFlavour) Capabilities() Capabilities {
	return Capabilities{
		CanAlterIndex:         !f.mariadb && !f.IsMySQL56(),
		SupportsEnums:         true,
		SupportsJSON:          !f.IsMySQL56(),
		LowerCasesTableNames:  f.lowerCaseTableNames,
		IdentifierLengthLimit: MySQLIdentifierSizeLimit,
		SkipFKIndexes:         true,
		IgnoreJSONDefaults:    true,
		ImplicitFKIndexes:     true,
	}
}

func (f *MySQLFlavour) TableNamesMatch(previous, next string) bool {
	if f.lowerCaseTableNames {
		return strings.EqualFold(previous, next)
	}
	return previous == next
}

func (f *MySQLFlavour) NativeTypes() []NativeTypeSpec { return mysqlNativeTypes }

func (f *MySQLFlavour) ScalarType(scalar string) (sqlschema.ColumnTypeFamily, *sqlschema.NativeType, bool) {
	return lookupScalar(mysqlScalars, scalar)
}

// IsForeignKeyIndex matches the index MySQL creates implicitly for a foreign
// key: a non-unique index whose columns start with the foreign key columns.
func (f *MySQLFlavour) IsForeignKeyIndex(index sqlschema.IndexWalker) bool {
	if index.Kind() != sqlschema.IndexNormal {
		return false
	}
	cols := index.ColumnNames()
	for _, fk := range index.Table().ForeignKeys() {
		fkCols := fk.ColumnNames()
		if len(fkCols) > len(cols) {
			continue
		}
		match := true
		for i := range fkCols {
			if fkCols[i] != cols[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

func (f *MySQLFlavour) ColumnTypeChange(previous, next sqlschema.ColumnWalker) TypeChange {
	pt, nt := previous.Type(), next.Type()
	if f.mariadb && aliasedOnMariaDB(pt.Family, nt.Family) {
		return NoTypeChange
	}
	if pt.Family == nt.Family {
		if pt.Family == sqlschema.FamilyEnum {
			// Enums are per column; value changes are AlterEnum steps.
			return NoTypeChange
		}
		return rankedChange(f, pt.NativeType, nt.NativeType)
	}
	return CanonicalTypeChange(previous, next)
}

func aliasedOnMariaDB(a, b sqlschema.ColumnTypeFamily) bool {
	return (a == sqlschema.FamilyString && b == sqlschema.FamilyJSON) ||
		(a == sqlschema.FamilyJSON && b == sqlschema.FamilyString)
}

// MySQLEnumName is the name of the implicit enum of a MySQL column.
func MySQLEnumName(table, column string) string {
	return table + "_" + column
}
