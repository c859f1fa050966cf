// Package flavour encapsulates the per-dialect deviations of the migration
// engine: capability bits, name matching, type change classification and the
// native type tables.
package flavour

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// Provider identifies a database connector.
type Provider string

const (
	Postgres  Provider = "postgresql"
	MySQL     Provider = "mysql"
	SQLite    Provider = "sqlite"
	SQLServer Provider = "sqlserver"
)

// ParseProvider accepts the datasource provider spellings.
func ParseProvider(s string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "postgresql", "postgres":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite":
		return SQLite, nil
	case "sqlserver":
		return SQLServer, nil
	}
	return "", fmt.Errorf("unsupported provider %q", s)
}

// MigrationsTableName is the name of the migration history table.
const MigrationsTableName = "_prisma_migrations"

// TypeChange classifies a column type change.
type TypeChange int

const (
	NoTypeChange TypeChange = iota
	SafeCast
	RiskyCast
	NotCastable
)

func (c TypeChange) String() string {
	switch c {
	case SafeCast:
		return "SafeCast"
	case RiskyCast:
		return "RiskyCast"
	case NotCastable:
		return "NotCastable"
	default:
		return "None"
	}
}

// Capabilities are the capability bits consulted by the differ, the
// calculator and the renderers.
type Capabilities struct {
	CanAlterIndex             bool
	SupportsEnums             bool
	NamedEnums                bool
	SupportsJSON              bool
	SupportsScalarLists       bool
	LowerCasesTableNames      bool
	IdentifierLengthLimit     int
	SkipFKIndexes             bool
	RequiresTableRedefinition bool
	InlineForeignKeys         bool
	CycleSafeFKActions        bool
	IgnoreJSONDefaults        bool
	ImplicitFKIndexes         bool
	MultipleAutoincrement     bool
}

// RedefinitionTriggers summarises the changes of one table pair.
type RedefinitionTriggers struct {
	PrimaryKeyChanged      bool
	DroppedColumns         bool
	AddedRequiredNoDefault bool
	ColumnChanged          bool
	IndexRenamed           bool
	ForeignKeysChanged     bool
}

// Any reports whether any trigger is set.
func (r RedefinitionTriggers) Any() bool {
	return r.PrimaryKeyChanged || r.DroppedColumns || r.AddedRequiredNoDefault ||
		r.ColumnChanged || r.IndexRenamed || r.ForeignKeysChanged
}

// Flavour is implemented once per provider.
type Flavour interface {
	Provider() Provider
	Capabilities() Capabilities
	// TableNamesMatch compares a previous and a next table name.
	TableNamesMatch(previous, next string) bool
	// TableShouldBeIgnored hides engine owned and extension tables.
	TableShouldBeIgnored(name string) bool
	// ColumnTypeChange classifies the type change between two columns.
	ColumnTypeChange(previous, next sqlschema.ColumnWalker) TypeChange
	// IndexNamesMatch compares index names after identifier truncation.
	IndexNamesMatch(previous, next string) bool
	// IsForeignKeyIndex reports indexes the database created for a foreign key.
	IsForeignKeyIndex(index sqlschema.IndexWalker) bool
	// ShouldRedefineTable decides whether a changed table must be copied.
	ShouldRedefineTable(triggers RedefinitionTriggers) bool
	// NativeTypes lists the native types of the provider.
	NativeTypes() []NativeTypeSpec
	// ScalarType returns the column family and default native type of a PSL scalar.
	ScalarType(scalar string) (sqlschema.ColumnTypeFamily, *sqlschema.NativeType, bool)
}

// New returns the flavour of a provider with default server settings.
func New(p Provider) (Flavour, error) {
	switch p {
	case Postgres:
		return NewPostgres(), nil
	case MySQL:
		return NewMySQL(MySQLOptions{}), nil
	case SQLite:
		return NewSQLite(), nil
	case SQLServer:
		return NewMSSQL(), nil
	}
	return nil, fmt.Errorf("unsupported provider %q", p)
}

// base holds the conservative defaults shared by every flavour.
type base struct {
	limit int
}

func (b base) TableNamesMatch(previous, next string) bool {
	return previous == next
}

func (b base) TableShouldBeIgnored(name string) bool {
	return name == MigrationsTableName
}

func (b base) IndexNamesMatch(previous, next string) bool {
	return Truncate(previous, b.limit) == Truncate(next, b.limit)
}

func (b base) IsForeignKeyIndex(sqlschema.IndexWalker) bool {
	return false
}

func (b base) ShouldRedefineTable(RedefinitionTriggers) bool {
	return false
}

// Truncate cuts an identifier to limit bytes. A limit of zero means unbounded.
func Truncate(name string, limit int) string {
	if limit <= 0 || len(name) <= limit {
		return name
	}
	return name[:limit]
}

// CanonicalTypeChange applies the provider independent cast rules.
func CanonicalTypeChange(previous, next sqlschema.ColumnWalker) TypeChange {
	pt, nt := previous.Type(), next.Type()

	if (pt.Arity == sqlschema.List) != (nt.Arity == sqlschema.List) {
		return NotCastable
	}

	if pt.Family == nt.Family {
		if pt.Family == sqlschema.FamilyEnum {
			if pt.EnumName == nt.EnumName {
				return NoTypeChange
			}
			return enumChange(previous, next)
		}
		if pt.NativeType != nil && nt.NativeType != nil && !pt.NativeType.Equal(nt.NativeType) {
			return RiskyCast
		}
		return NoTypeChange
	}

	switch {
	case nt.Family == sqlschema.FamilyString:
		return SafeCast
	case pt.Family == sqlschema.FamilyString && nt.Family.IsNumeric():
		return RiskyCast
	case pt.Family == sqlschema.FamilyString && nt.Family == sqlschema.FamilyBytes:
		return NotCastable
	case pt.Family == sqlschema.FamilyBoolean && nt.Family != sqlschema.FamilyInt:
		return NotCastable
	default:
		return RiskyCast
	}
}

// enumChange is a SafeCast when every previous value survives in the next enum.
func enumChange(previous, next sqlschema.ColumnWalker) TypeChange {
	pe, okPrev := previous.Enum()
	ne, okNext := next.Enum()
	if !okPrev || !okNext {
		return RiskyCast
	}
	if ValuesSubset(pe.Values(), ne.Values()) {
		return SafeCast
	}
	return RiskyCast
}

// ValuesSubset reports whether every value of a is in b.
func ValuesSubset(a, b []string) bool {
	set := make(map[string]struct{}, len(b))
	for _, v := range b {
		set[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}
