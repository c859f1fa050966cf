// Package sqlschema is the typed representation of a relational schema at the
// DDL level. Cross references between entities are by name; walkers give
// borrowed handles into the flat vectors.
package sqlschema

import (
	"fmt"
	"strings"
)

// ColumnTypeFamily is the portable type category of a column.
type ColumnTypeFamily int

const (
	FamilyInt ColumnTypeFamily = iota
	FamilyBigInt
	FamilyFloat
	FamilyDecimal
	FamilyBoolean
	FamilyString
	FamilyDateTime
	FamilyJSON
	FamilyBytes
	FamilyUUID
	FamilyEnum
	FamilyUnsupported
)

var familyNames = map[ColumnTypeFamily]string{
	FamilyInt:         "Int",
	FamilyBigInt:      "BigInt",
	FamilyFloat:       "Float",
	FamilyDecimal:     "Decimal",
	FamilyBoolean:     "Boolean",
	FamilyString:      "String",
	FamilyDateTime:    "DateTime",
	FamilyJSON:        "Json",
	FamilyBytes:       "Bytes",
	FamilyUUID:        "Uuid",
	FamilyEnum:        "Enum",
	FamilyUnsupported: "Unsupported",
}

func (f ColumnTypeFamily) String() string {
	if s, ok := familyNames[f]; ok {
		return s
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

// IsNumeric reports whether the family holds numbers.
func (f ColumnTypeFamily) IsNumeric() bool {
	switch f {
	case FamilyInt, FamilyBigInt, FamilyFloat, FamilyDecimal:
		return true
	}
	return false
}

// IsInteger reports whether the family holds integers.
func (f ColumnTypeFamily) IsInteger() bool {
	return f == FamilyInt || f == FamilyBigInt
}

// ColumnArity is the nullability or list-ness of a column.
type ColumnArity int

const (
	Required ColumnArity = iota
	Nullable
	List
)

func (a ColumnArity) String() string {
	switch a {
	case Nullable:
		return "nullable"
	case List:
		return "list"
	default:
		return "required"
	}
}

// NativeType is a database specific type such as VarChar(255).
type NativeType struct {
	Name string
	Args []string
}

func (n NativeType) String() string {
	if len(n.Args) == 0 {
		return n.Name
	}
	return n.Name + "(" + strings.Join(n.Args, ",") + ")"
}

// Equal compares name (case-insensitively) and arguments.
func (n *NativeType) Equal(o *NativeType) bool {
	if n == nil || o == nil {
		return n == o
	}
	if !strings.EqualFold(n.Name, o.Name) || len(n.Args) != len(o.Args) {
		return false
	}
	for i := range n.Args {
		if !strings.EqualFold(strings.TrimSpace(n.Args[i]), strings.TrimSpace(o.Args[i])) {
			return false
		}
	}
	return true
}

// ColumnType describes the type of a column.
type ColumnType struct {
	Family ColumnTypeFamily
	// EnumName is set when Family is FamilyEnum.
	EnumName           string
	Arity              ColumnArity
	NativeType         *NativeType
	CharacterMaxLength *int64
	// FullDataType is the type as the database spells it.
	FullDataType string
}

// ValueKind tags a literal default.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueInt
	ValueFloat
	ValueBoolean
	ValueEnum
	ValueJSON
	ValueBytes
	ValueDateTime
	ValueList
)

// PrismaValue is a literal default value.
type PrismaValue struct {
	Kind  ValueKind
	Raw   string
	Items []PrismaValue
}

// DefaultKind tags a column default.
type DefaultKind int

const (
	DefaultValueLiteral DefaultKind = iota
	DefaultNow
	DefaultSequence
	DefaultDBGenerated
	DefaultAutoincrement
)

func (k DefaultKind) String() string {
	switch k {
	case DefaultNow:
		return "now"
	case DefaultSequence:
		return "sequence"
	case DefaultDBGenerated:
		return "db_generated"
	case DefaultAutoincrement:
		return "autoincrement"
	default:
		return "value"
	}
}

// DefaultValue is the default of a column.
type DefaultValue struct {
	Kind  DefaultKind
	Value PrismaValue
	// Expression holds the db_generated expression or the sequence name.
	Expression string
	// ConstraintName is the name of the default constraint on SQL Server.
	ConstraintName string
}

// ValueDefault builds a literal default.
func ValueDefault(kind ValueKind, raw string) *DefaultValue {
	return &DefaultValue{Kind: DefaultValueLiteral, Value: PrismaValue{Kind: kind, Raw: raw}}
}

// NowDefault builds a now() default.
func NowDefault() *DefaultValue {
	return &DefaultValue{Kind: DefaultNow}
}

// DBGeneratedDefault builds a db_generated default.
func DBGeneratedDefault(expr string) *DefaultValue {
	return &DefaultValue{Kind: DefaultDBGenerated, Expression: expr}
}

// SequenceDefault builds a sequence default.
func SequenceDefault(name string) *DefaultValue {
	return &DefaultValue{Kind: DefaultSequence, Expression: name}
}

// Column is a table column.
type Column struct {
	Name          string
	Type          ColumnType
	Default       *DefaultValue
	AutoIncrement bool
}

// IndexKind distinguishes normal, unique and fulltext indexes.
type IndexKind int

const (
	IndexNormal IndexKind = iota
	IndexUnique
	IndexFulltext
)

func (k IndexKind) String() string {
	switch k {
	case IndexUnique:
		return "unique"
	case IndexFulltext:
		return "fulltext"
	default:
		return "normal"
	}
}

// Index is a table index.
type Index struct {
	Name    string
	Columns []string
	Kind    IndexKind
}

// PrimaryKey is the primary key of a table.
type PrimaryKey struct {
	Columns        []string
	ConstraintName string
}

// ReferentialAction is a foreign key ON DELETE / ON UPDATE action.
type ReferentialAction int

const (
	NoAction ReferentialAction = iota
	Restrict
	Cascade
	SetNull
	SetDefault
)

// SQL renders the action keyword.
func (a ReferentialAction) SQL() string {
	switch a {
	case Restrict:
		return "RESTRICT"
	case Cascade:
		return "CASCADE"
	case SetNull:
		return "SET NULL"
	case SetDefault:
		return "SET DEFAULT"
	default:
		return "NO ACTION"
	}
}

func (a ReferentialAction) String() string {
	switch a {
	case Restrict:
		return "Restrict"
	case Cascade:
		return "Cascade"
	case SetNull:
		return "SetNull"
	case SetDefault:
		return "SetDefault"
	default:
		return "NoAction"
	}
}

// ParseReferentialAction parses both the PSL and the SQL spelling.
func ParseReferentialAction(s string) (ReferentialAction, bool) {
	switch strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "_", " ")) {
	case "CASCADE":
		return Cascade, true
	case "RESTRICT":
		return Restrict, true
	case "NO ACTION", "NOACTION":
		return NoAction, true
	case "SET NULL", "SETNULL":
		return SetNull, true
	case "SET DEFAULT", "SETDEFAULT":
		return SetDefault, true
	}
	return NoAction, false
}

// ForeignKey is a foreign key constraint.
type ForeignKey struct {
	ConstraintName    string
	Columns           []string
	ReferencedTable   string
	ReferencedColumns []string
	OnDelete          ReferentialAction
	OnUpdate          ReferentialAction
}

// Table is a database table.
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  *PrimaryKey
	Indexes     []Index
	ForeignKeys []ForeignKey
}

// Column returns the column with the given name.
func (t *Table) Column(name string) (*Column, bool) {
	for i := range t.Columns {
		if t.Columns[i].Name == name {
			return &t.Columns[i], true
		}
	}
	return nil, false
}

// IsPrimaryKeyColumn reports whether name is part of the primary key.
func (t *Table) IsPrimaryKeyColumn(name string) bool {
	if t.PrimaryKey == nil {
		return false
	}
	for _, c := range t.PrimaryKey.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Enum is a database enum type.
type Enum struct {
	Name   string
	Values []string
}

// View is a database view. Views are only ever dropped.
type View struct {
	Name       string
	Definition string
}

// Sequence is a Postgres sequence.
type Sequence struct {
	Name string
}

// Schema is a complete database schema.
type Schema struct {
	Tables    []Table
	Enums     []Enum
	Views     []View
	Sequences []Sequence
}

// Empty returns a schema without any object.
func Empty() *Schema {
	return &Schema{}
}

// FindTable returns the index of the named table.
func (s *Schema) FindTable(name string) (TableID, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return TableID(i), true
		}
	}
	return 0, false
}

// FindTableFold is FindTable ignoring case.
func (s *Schema) FindTableFold(name string) (TableID, bool) {
	for i := range s.Tables {
		if strings.EqualFold(s.Tables[i].Name, name) {
			return TableID(i), true
		}
	}
	return 0, false
}

// FindEnum returns the index of the named enum.
func (s *Schema) FindEnum(name string) (EnumID, bool) {
	for i := range s.Enums {
		if s.Enums[i].Name == name {
			return EnumID(i), true
		}
	}
	return 0, false
}

// Table returns the named table.
func (s *Schema) Table(name string) (*Table, bool) {
	id, ok := s.FindTable(name)
	if !ok {
		return nil, false
	}
	return &s.Tables[id], true
}

// Enum returns the named enum.
func (s *Schema) Enum(name string) (*Enum, bool) {
	id, ok := s.FindEnum(name)
	if !ok {
		return nil, false
	}
	return &s.Enums[id], true
}

// IsEmpty reports whether the schema holds no object.
func (s *Schema) IsEmpty() bool {
	return len(s.Tables) == 0 && len(s.Enums) == 0 && len(s.Views) == 0 && len(s.Sequences) == 0
}
