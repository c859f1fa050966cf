package sqlschema

// TableID is the position of a table in Schema.Tables.
type TableID int

// EnumID is the position of an enum in Schema.Enums.
type EnumID int

// TableWalker is a handle on one table of a schema.
type TableWalker struct {
	schema *Schema
	id     TableID
}

// WalkTable returns a walker for the table at id.
func (s *Schema) WalkTable(id TableID) TableWalker {
	return TableWalker{schema: s, id: id}
}

// WalkTables returns walkers for every table in order.
func (s *Schema) WalkTables() []TableWalker {
	out := make([]TableWalker, len(s.Tables))
	for i := range s.Tables {
		out[i] = TableWalker{schema: s, id: TableID(i)}
	}
	return out
}

// TableWalkerByName looks a table up by exact name.
func (s *Schema) TableWalkerByName(name string) (TableWalker, bool) {
	id, ok := s.FindTable(name)
	if !ok {
		return TableWalker{}, false
	}
	return s.WalkTable(id), true
}

func (t TableWalker) ID() TableID      { return t.id }
func (t TableWalker) Schema() *Schema  { return t.schema }
func (t TableWalker) Table() *Table    { return &t.schema.Tables[t.id] }
func (t TableWalker) Name() string     { return t.Table().Name }
func (t TableWalker) ColumnCount() int { return len(t.Table().Columns) }

// Columns returns walkers for the table's columns in order.
func (t TableWalker) Columns() []ColumnWalker {
	cols := t.Table().Columns
	out := make([]ColumnWalker, len(cols))
	for i := range cols {
		out[i] = ColumnWalker{schema: t.schema, table: t.id, idx: i}
	}
	return out
}

// ColumnAt returns the walker for column idx.
func (t TableWalker) ColumnAt(idx int) ColumnWalker {
	return ColumnWalker{schema: t.schema, table: t.id, idx: idx}
}

// Column looks a column up by name.
func (t TableWalker) Column(name string) (ColumnWalker, bool) {
	for i, c := range t.Table().Columns {
		if c.Name == name {
			return t.ColumnAt(i), true
		}
	}
	return ColumnWalker{}, false
}

// PrimaryKey returns the primary key, if any.
func (t TableWalker) PrimaryKey() *PrimaryKey {
	return t.Table().PrimaryKey
}

// PrimaryKeyColumns returns the walkers of the primary key columns.
func (t TableWalker) PrimaryKeyColumns() []ColumnWalker {
	pk := t.PrimaryKey()
	if pk == nil {
		return nil
	}
	var out []ColumnWalker
	for _, name := range pk.Columns {
		if c, ok := t.Column(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// Indexes returns walkers for every index.
func (t TableWalker) Indexes() []IndexWalker {
	idxs := t.Table().Indexes
	out := make([]IndexWalker, len(idxs))
	for i := range idxs {
		out[i] = IndexWalker{schema: t.schema, table: t.id, idx: i}
	}
	return out
}

// IndexAt returns the walker for index idx.
func (t TableWalker) IndexAt(idx int) IndexWalker {
	return IndexWalker{schema: t.schema, table: t.id, idx: idx}
}

// ForeignKeys returns walkers for every foreign key.
func (t TableWalker) ForeignKeys() []ForeignKeyWalker {
	fks := t.Table().ForeignKeys
	out := make([]ForeignKeyWalker, len(fks))
	for i := range fks {
		out[i] = ForeignKeyWalker{schema: t.schema, table: t.id, idx: i}
	}
	return out
}

// ForeignKeyAt returns the walker for foreign key idx.
func (t TableWalker) ForeignKeyAt(idx int) ForeignKeyWalker {
	return ForeignKeyWalker{schema: t.schema, table: t.id, idx: idx}
}

// ReferencingForeignKeys returns the foreign keys of other tables pointing here.
func (t TableWalker) ReferencingForeignKeys() []ForeignKeyWalker {
	var out []ForeignKeyWalker
	for _, other := range t.schema.WalkTables() {
		for _, fk := range other.ForeignKeys() {
			if fk.ForeignKey().ReferencedTable == t.Name() {
				out = append(out, fk)
			}
		}
	}
	return out
}

// ColumnWalker is a handle on one column.
type ColumnWalker struct {
	schema *Schema
	table  TableID
	idx    int
}

func (c ColumnWalker) Index() int               { return c.idx }
func (c ColumnWalker) Table() TableWalker       { return TableWalker{schema: c.schema, id: c.table} }
func (c ColumnWalker) Column() *Column          { return &c.schema.Tables[c.table].Columns[c.idx] }
func (c ColumnWalker) Name() string             { return c.Column().Name }
func (c ColumnWalker) Type() ColumnType         { return c.Column().Type }
func (c ColumnWalker) Family() ColumnTypeFamily { return c.Column().Type.Family }
func (c ColumnWalker) Arity() ColumnArity       { return c.Column().Type.Arity }
func (c ColumnWalker) Default() *DefaultValue   { return c.Column().Default }
func (c ColumnWalker) IsAutoIncrement() bool    { return c.Column().AutoIncrement }
func (c ColumnWalker) IsRequired() bool         { return c.Arity() == Required }
func (c ColumnWalker) NativeType() *NativeType  { return c.Column().Type.NativeType }
func (c ColumnWalker) IsPartOfPrimaryKey() bool { return c.Table().Table().IsPrimaryKeyColumn(c.Name()) }
func (c ColumnWalker) IsEnum() bool             { return c.Family() == FamilyEnum }
func (c ColumnWalker) Schema() *Schema          { return c.schema }
func (c ColumnWalker) EnumName() string         { return c.Column().Type.EnumName }
func (c ColumnWalker) HasDefaultOrIsGenerated() bool {
	return c.Default() != nil || c.IsAutoIncrement()
}

// Enum resolves the enum used by the column.
func (c ColumnWalker) Enum() (EnumWalker, bool) {
	if !c.IsEnum() {
		return EnumWalker{}, false
	}
	id, ok := c.schema.FindEnum(c.EnumName())
	if !ok {
		return EnumWalker{}, false
	}
	return EnumWalker{schema: c.schema, id: id}, true
}

// IndexWalker is a handle on one index.
type IndexWalker struct {
	schema *Schema
	table  TableID
	idx    int
}

func (i IndexWalker) Index() int         { return i.idx }
func (i IndexWalker) Table() TableWalker { return TableWalker{schema: i.schema, id: i.table} }
func (i IndexWalker) Get() *Index        { return &i.schema.Tables[i.table].Indexes[i.idx] }
func (i IndexWalker) Name() string       { return i.Get().Name }
func (i IndexWalker) Kind() IndexKind    { return i.Get().Kind }
func (i IndexWalker) IsUnique() bool     { return i.Get().Kind == IndexUnique }
func (i IndexWalker) ColumnNames() []string {
	return i.Get().Columns
}

// Columns resolves the indexed columns.
func (i IndexWalker) Columns() []ColumnWalker {
	var out []ColumnWalker
	t := i.Table()
	for _, name := range i.Get().Columns {
		if c, ok := t.Column(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// ForeignKeyWalker is a handle on one foreign key.
type ForeignKeyWalker struct {
	schema *Schema
	table  TableID
	idx    int
}

func (f ForeignKeyWalker) Index() int              { return f.idx }
func (f ForeignKeyWalker) Table() TableWalker      { return TableWalker{schema: f.schema, id: f.table} }
func (f ForeignKeyWalker) ForeignKey() *ForeignKey { return &f.schema.Tables[f.table].ForeignKeys[f.idx] }
func (f ForeignKeyWalker) ConstraintName() string  { return f.ForeignKey().ConstraintName }
func (f ForeignKeyWalker) ColumnNames() []string   { return f.ForeignKey().Columns }

// ReferencedTable resolves the table the foreign key points to.
func (f ForeignKeyWalker) ReferencedTable() (TableWalker, bool) {
	return f.schema.TableWalkerByName(f.ForeignKey().ReferencedTable)
}

// ConstrainedColumns resolves the local columns.
func (f ForeignKeyWalker) ConstrainedColumns() []ColumnWalker {
	var out []ColumnWalker
	t := f.Table()
	for _, name := range f.ForeignKey().Columns {
		if c, ok := t.Column(name); ok {
			out = append(out, c)
		}
	}
	return out
}

// IsSelfReferencing reports whether the foreign key points at its own table.
func (f ForeignKeyWalker) IsSelfReferencing() bool {
	return f.ForeignKey().ReferencedTable == f.Table().Name()
}

// EnumWalker is a handle on one enum.
type EnumWalker struct {
	schema *Schema
	id     EnumID
}

// WalkEnum returns a walker for the enum at id.
func (s *Schema) WalkEnum(id EnumID) EnumWalker {
	return EnumWalker{schema: s, id: id}
}

// WalkEnums returns walkers for every enum.
func (s *Schema) WalkEnums() []EnumWalker {
	out := make([]EnumWalker, len(s.Enums))
	for i := range s.Enums {
		out[i] = EnumWalker{schema: s, id: EnumID(i)}
	}
	return out
}

func (e EnumWalker) ID() EnumID       { return e.id }
func (e EnumWalker) Enum() *Enum      { return &e.schema.Enums[e.id] }
func (e EnumWalker) Name() string     { return e.Enum().Name }
func (e EnumWalker) Values() []string { return e.Enum().Values }

// Columns returns the columns of any table using this enum.
func (e EnumWalker) Columns() []ColumnWalker {
	var out []ColumnWalker
	for _, t := range e.schema.WalkTables() {
		for _, c := range t.Columns() {
			if c.IsEnum() && c.EnumName() == e.Name() {
				out = append(out, c)
			}
		}
	}
	return out
}
