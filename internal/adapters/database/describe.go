package database

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// SchemaBuilder assembles a schema from catalog rows. Rows may arrive in
// any table order; columns of one index or key must arrive in key order.
type SchemaBuilder struct {
	flavour flavour.Flavour
	schema  *sqlschema.Schema
	tables  map[string]int
	enums   map[string]int
}

// NewSchemaBuilder creates a builder that skips the tables f ignores.
func NewSchemaBuilder(f flavour.Flavour) *SchemaBuilder {
	return &SchemaBuilder{
		flavour: f,
		schema:  sqlschema.Empty(),
		tables:  make(map[string]int),
		enums:   make(map[string]int),
	}
}

// AddTable registers a table. Ignored tables are dropped silently.
func (b *SchemaBuilder) AddTable(name string) {
	if b.flavour.TableShouldBeIgnored(name) {
		return
	}
	if _, ok := b.tables[name]; ok {
		return
	}
	b.tables[name] = len(b.schema.Tables)
	b.schema.Tables = append(b.schema.Tables, sqlschema.Table{Name: name})
}

func (b *SchemaBuilder) table(name string) *sqlschema.Table {
	idx, ok := b.tables[name]
	if !ok {
		return nil
	}
	return &b.schema.Tables[idx]
}

// AddColumn appends a column to a known table.
func (b *SchemaBuilder) AddColumn(table string, col sqlschema.Column) {
	if t := b.table(table); t != nil {
		t.Columns = append(t.Columns, col)
	}
}

// AddPrimaryKeyColumn appends a column to the primary key of table.
func (b *SchemaBuilder) AddPrimaryKeyColumn(table, constraint, column string) {
	t := b.table(table)
	if t == nil {
		return
	}
	if t.PrimaryKey == nil {
		t.PrimaryKey = &sqlschema.PrimaryKey{ConstraintName: constraint}
	}
	t.PrimaryKey.Columns = append(t.PrimaryKey.Columns, column)
}

// AddIndexColumn appends a column to the named index of table.
func (b *SchemaBuilder) AddIndexColumn(table, index string, kind sqlschema.IndexKind, column string) {
	t := b.table(table)
	if t == nil {
		return
	}
	for i := range t.Indexes {
		if t.Indexes[i].Name == index {
			t.Indexes[i].Columns = append(t.Indexes[i].Columns, column)
			return
		}
	}
	t.Indexes = append(t.Indexes, sqlschema.Index{Name: index, Kind: kind, Columns: []string{column}})
}

// ForeignKeyColumn is one column pair of a foreign key row.
type ForeignKeyColumn struct {
	Table            string
	Constraint       string
	Column           string
	ReferencedTable  string
	ReferencedColumn string
	OnDelete         string
	OnUpdate         string
}

// AddForeignKeyColumn appends a column pair to the named foreign key.
func (b *SchemaBuilder) AddForeignKeyColumn(row ForeignKeyColumn) {
	t := b.table(row.Table)
	if t == nil {
		return
	}
	for i := range t.ForeignKeys {
		fk := &t.ForeignKeys[i]
		if fk.ConstraintName == row.Constraint {
			fk.Columns = append(fk.Columns, row.Column)
			fk.ReferencedColumns = append(fk.ReferencedColumns, row.ReferencedColumn)
			return
		}
	}
	onDelete, _ := sqlschema.ParseReferentialAction(row.OnDelete)
	onUpdate, _ := sqlschema.ParseReferentialAction(row.OnUpdate)
	t.ForeignKeys = append(t.ForeignKeys, sqlschema.ForeignKey{
		ConstraintName:    row.Constraint,
		Columns:           []string{row.Column},
		ReferencedTable:   row.ReferencedTable,
		ReferencedColumns: []string{row.ReferencedColumn},
		OnDelete:          onDelete,
		OnUpdate:          onUpdate,
	})
}

// AddEnumValue appends a value to the named enum.
func (b *SchemaBuilder) AddEnumValue(enum, value string) {
	idx, ok := b.enums[enum]
	if !ok {
		idx = len(b.schema.Enums)
		b.enums[enum] = idx
		b.schema.Enums = append(b.schema.Enums, sqlschema.Enum{Name: enum})
	}
	b.schema.Enums[idx].Values = append(b.schema.Enums[idx].Values, value)
}

// AddEnum registers a complete enum.
func (b *SchemaBuilder) AddEnum(enum sqlschema.Enum) {
	if _, ok := b.enums[enum.Name]; ok {
		return
	}
	b.enums[enum.Name] = len(b.schema.Enums)
	b.schema.Enums = append(b.schema.Enums, enum)
}

// AddView registers a view.
func (b *SchemaBuilder) AddView(name, definition string) {
	b.schema.Views = append(b.schema.Views, sqlschema.View{Name: name, Definition: definition})
}

// AddSequence registers a sequence.
func (b *SchemaBuilder) AddSequence(name string) {
	b.schema.Sequences = append(b.schema.Sequences, sqlschema.Sequence{Name: name})
}

// Schema returns the assembled schema with tables, enums, views and
// sequences sorted by name.
func (b *SchemaBuilder) Schema() *sqlschema.Schema {
	s := b.schema
	sort.SliceStable(s.Tables, func(i, j int) bool { return s.Tables[i].Name < s.Tables[j].Name })
	sort.SliceStable(s.Enums, func(i, j int) bool { return s.Enums[i].Name < s.Enums[j].Name })
	sort.SliceStable(s.Views, func(i, j int) bool { return s.Views[i].Name < s.Views[j].Name })
	sort.SliceStable(s.Sequences, func(i, j int) bool { return s.Sequences[i].Name < s.Sequences[j].Name })
	for i := range s.Tables {
		t := &s.Tables[i]
		sort.SliceStable(t.Indexes, func(a, c int) bool { return t.Indexes[a].Name < t.Indexes[c].Name })
		sort.SliceStable(t.ForeignKeys, func(a, c int) bool { return t.ForeignKeys[a].ConstraintName < t.ForeignKeys[c].ConstraintName })
	}
	b.tables = map[string]int{}
	return s
}

// CountRows counts the rows of the quoted table from and the non-null values
// of columns in one query. Column names are quoted with quote.
func CountRows(ctx context.Context, q Executor, from string, quote func(string) string, columns []string) (destructive.TableCounts, error) {
	exprs := []string{"COUNT(*)"}
	for _, c := range columns {
		exprs = append(exprs, "COUNT("+quote(c)+")")
	}
	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(exprs, ", "), from)

	rows, err := q.Query(ctx, query)
	if err != nil {
		return destructive.TableCounts{}, fmt.Errorf("failed to count rows of %s: %w", from, err)
	}
	defer rows.Close()

	dest := make([]int64, len(exprs))
	ptrs := make([]any, len(exprs))
	for i := range dest {
		ptrs[i] = &dest[i]
	}
	if rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return destructive.TableCounts{}, fmt.Errorf("failed to count rows of %s: %w", from, err)
		}
	}
	if err := rows.Err(); err != nil {
		return destructive.TableCounts{}, fmt.Errorf("failed to count rows of %s: %w", from, err)
	}

	counts := destructive.TableCounts{Rows: dest[0], NonNull: make(map[string]int64, len(columns))}
	for i, c := range columns {
		counts.NonNull[c] = dest[i+1]
	}
	return counts, nil
}

// CountValues counts the rows where columnExpr is one of values. from is the
// quoted table name; placeholder renders the n-th bind parameter.
func CountValues(ctx context.Context, q Executor, from, columnExpr string, values []string, placeholder func(int) string) (int64, error) {
	if len(values) == 0 {
		return 0, nil
	}
	params := make([]string, len(values))
	args := make([]any, len(values))
	for i, v := range values {
		params[i] = placeholder(i + 1)
		args[i] = v
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IN (%s)", from, columnExpr, strings.Join(params, ", "))

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to count values of %s: %w", from, err)
	}
	defer rows.Close()

	var n int64
	if rows.Next() {
		if err := rows.Scan(&n); err != nil {
			return 0, fmt.Errorf("failed to count values of %s: %w", from, err)
		}
	}
	return n, rows.Err()
}
