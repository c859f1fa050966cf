// Package datamodel is the validated, name-resolved form of a Prisma schema:
// models, fields, relations, enums and the datasource the engine connects to.
package datamodel

import (
	"sort"

	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// Datamodel is a lifted schema.
type Datamodel struct {
	Datasource *Datasource
	Generators []*Generator
	Models     []*Model
	Enums      []*Enum

	relations []*Relation
}

// Model finds a model by name.
func (d *Datamodel) Model(name string) (*Model, bool) {
	for _, m := range d.Models {
		if m.Name == name {
			return m, true
		}
	}
	return nil, false
}

// Enum finds an enum by name.
func (d *Datamodel) Enum(name string) (*Enum, bool) {
	for _, e := range d.Enums {
		if e.Name == name {
			return e, true
		}
	}
	return nil, false
}

// Provider returns the datasource provider, or the empty provider.
func (d *Datamodel) Provider() flavour.Provider {
	if d.Datasource == nil {
		return ""
	}
	return d.Datasource.Provider
}

// PreviewFeatures merges the preview features of every generator.
func (d *Datamodel) PreviewFeatures() []string {
	seen := map[string]bool{}
	var out []string
	for _, g := range d.Generators {
		for _, f := range g.PreviewFeatures {
			if !seen[f] {
				seen[f] = true
				out = append(out, f)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Generator is a generator block. Only its preview features matter here.
type Generator struct {
	Name            string
	Provider        string
	PreviewFeatures []string
}

// ScalarType is a built-in PSL scalar.
type ScalarType string

const (
	String   ScalarType = "String"
	Int      ScalarType = "Int"
	BigInt   ScalarType = "BigInt"
	Float    ScalarType = "Float"
	Decimal  ScalarType = "Decimal"
	Boolean  ScalarType = "Boolean"
	DateTime ScalarType = "DateTime"
	Json     ScalarType = "Json"
	Bytes    ScalarType = "Bytes"
)

var scalarTypes = map[string]ScalarType{
	"String":   String,
	"Int":      Int,
	"BigInt":   BigInt,
	"Float":    Float,
	"Decimal":  Decimal,
	"Boolean":  Boolean,
	"DateTime": DateTime,
	"Json":     Json,
	"Bytes":    Bytes,
}

// FieldArity is the cardinality of a field.
type FieldArity int

const (
	Required FieldArity = iota
	Optional
	List
)

func (a FieldArity) String() string {
	switch a {
	case Optional:
		return "optional"
	case List:
		return "list"
	default:
		return "required"
	}
}

// FieldType is exactly one of a scalar, an enum reference or an
// Unsupported("...") database type.
type FieldType struct {
	Scalar      ScalarType
	Enum        string
	Unsupported string
}

// IsEnum reports an enum typed field.
func (t FieldType) IsEnum() bool { return t.Enum != "" }

// IsUnsupported reports an Unsupported("...") field.
func (t FieldType) IsUnsupported() bool { return t.Unsupported != "" }

func (t FieldType) String() string {
	switch {
	case t.Enum != "":
		return t.Enum
	case t.Unsupported != "":
		return "Unsupported(\"" + t.Unsupported + "\")"
	default:
		return string(t.Scalar)
	}
}

// DefaultKind distinguishes the @default forms.
type DefaultKind int

const (
	DefaultLiteral DefaultKind = iota
	DefaultAutoincrement
	DefaultNow
	DefaultUUID
	DefaultCUID
	DefaultDBGenerated
	DefaultSequence
)

// DefaultValue is a lifted @default.
type DefaultValue struct {
	Kind DefaultKind
	// Value is set for literals.
	Value sqlschema.PrismaValue
	// Expression is the argument of dbgenerated().
	Expression string
	// Name is the map: argument, the default constraint name on SQL Server.
	Name string
}

// ScalarField is a field backed by a column.
type ScalarField struct {
	Name        string
	DBName      string
	Type        FieldType
	Arity       FieldArity
	IsID        bool
	IDName      string
	IsUnique    bool
	UniqueName  string
	IsUpdatedAt bool
	IsIgnored   bool
	Default     *DefaultValue
	NativeType  *sqlschema.NativeType
	Pos         lexer.Position
}

// ColumnName is @map or the field name.
func (f *ScalarField) ColumnName() string {
	if f.DBName != "" {
		return f.DBName
	}
	return f.Name
}

// RelationInfo is the lifted @relation attribute.
type RelationInfo struct {
	To         string
	Name       string
	Fields     []string
	References []string
	OnDelete   *sqlschema.ReferentialAction
	OnUpdate   *sqlschema.ReferentialAction
	// FKName is the map: argument, the foreign key constraint name.
	FKName string
}

// RelationField is a field pointing at another model.
type RelationField struct {
	Name      string
	Arity     FieldArity
	Info      RelationInfo
	IsIgnored bool
	Pos       lexer.Position
}

// IsForward reports the side that carries fields and references.
func (f *RelationField) IsForward() bool { return len(f.Info.Fields) > 0 }

// PrimaryKey is the id criterion of a model.
type PrimaryKey struct {
	Fields []string
	// Name is the map: argument, the constraint name.
	Name string
}

// IndexKind is the flavour of an @@index / @@unique / @@fulltext.
type IndexKind int

const (
	IndexNormal IndexKind = iota
	IndexUnique
	IndexFulltext
)

// Index is a model level index or unique constraint.
type Index struct {
	Kind   IndexKind
	Fields []string
	// Name is the name: argument of @@unique, DBName the map: argument.
	Name   string
	DBName string
	Pos    lexer.Position
}

// Model is a lifted model.
type Model struct {
	Name           string
	DBName         string
	ScalarFields   []*ScalarField
	RelationFields []*RelationField
	PrimaryKey     *PrimaryKey
	Indexes        []*Index
	IsIgnored      bool
	IsView         bool
	Pos            lexer.Position
}

// TableName is @@map or the model name.
func (m *Model) TableName() string {
	if m.DBName != "" {
		return m.DBName
	}
	return m.Name
}

// ScalarField finds a scalar field by name.
func (m *Model) ScalarField(name string) (*ScalarField, bool) {
	for _, f := range m.ScalarFields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// RelationField finds a relation field by name.
func (m *Model) RelationField(name string) (*RelationField, bool) {
	for _, f := range m.RelationFields {
		if f.Name == name {
			return f, true
		}
	}
	return nil, false
}

// ColumnNames maps field names to column names.
func (m *Model) ColumnNames(fields []string) []string {
	out := make([]string, len(fields))
	for i, name := range fields {
		if f, ok := m.ScalarField(name); ok {
			out[i] = f.ColumnName()
		} else {
			out[i] = name
		}
	}
	return out
}

// EnumValue is a variant; DBName is the @map value stored in the database.
type EnumValue struct {
	Name   string
	DBName string
}

// DatabaseName is @map or the value name.
func (v EnumValue) DatabaseName() string {
	if v.DBName != "" {
		return v.DBName
	}
	return v.Name
}

// Enum is a lifted enum.
type Enum struct {
	Name   string
	DBName string
	Values []EnumValue
	Pos    lexer.Position
}

// DatabaseName is @@map or the enum name.
func (e *Enum) DatabaseName() string {
	if e.DBName != "" {
		return e.DBName
	}
	return e.Name
}

// DatabaseValues lists the stored values in declaration order.
func (e *Enum) DatabaseValues() []string {
	out := make([]string, len(e.Values))
	for i, v := range e.Values {
		out[i] = v.DatabaseName()
	}
	return out
}

// HasValue reports whether name is a variant of the enum.
func (e *Enum) HasValue(name string) bool {
	for _, v := range e.Values {
		if v.Name == name {
			return true
		}
	}
	return false
}
