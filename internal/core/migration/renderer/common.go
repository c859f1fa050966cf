package renderer

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

const indent = "    "

func quoteDouble(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func quoteList(quote func(string) string, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}

// tableBody renders the lines between the parentheses of CREATE TABLE.
// Constraints are separated from columns by an empty line.
func tableBody(columns, constraints []string) string {
	var b strings.Builder
	for i, c := range columns {
		b.WriteString(indent + c)
		if i < len(columns)-1 || len(constraints) > 0 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	if len(constraints) > 0 {
		b.WriteString("\n")
	}
	for i, c := range constraints {
		b.WriteString(indent + c)
		if i < len(constraints)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// nativeType renders the declared native type of a column, falling back to
// the default mapping of its family.
func nativeType(f flavour.Flavour, t sqlschema.ColumnType, fallback string) string {
	if t.NativeType != nil {
		return flavour.RenderNativeType(f, *t.NativeType)
	}
	if t.FullDataType != "" {
		return t.FullDataType
	}
	if _, nt, ok := f.ScalarType(t.Family.String()); ok && nt != nil {
		return flavour.RenderNativeType(f, *nt)
	}
	return fallback
}

// literal renders a scalar default. Booleans and numbers are bare.
func literal(v sqlschema.PrismaValue) string {
	switch v.Kind {
	case sqlschema.ValueInt, sqlschema.ValueFloat:
		return v.Raw
	case sqlschema.ValueBoolean:
		return strings.ToLower(v.Raw)
	default:
		return quoteString(v.Raw)
	}
}

func primaryKeyName(t sqlschema.TableWalker) string {
	if pk := t.PrimaryKey(); pk != nil && pk.ConstraintName != "" {
		return pk.ConstraintName
	}
	return calculator.PrimaryKeyName(t.Name(), 0)
}

func referentialActions(fk *sqlschema.ForeignKey, mapAction func(sqlschema.ReferentialAction) sqlschema.ReferentialAction) string {
	onDelete, onUpdate := fk.OnDelete, fk.OnUpdate
	if mapAction != nil {
		onDelete, onUpdate = mapAction(onDelete), mapAction(onUpdate)
	}
	return "ON DELETE " + onDelete.SQL() + " ON UPDATE " + onUpdate.SQL()
}

// alterColumns resolves the column pair of an AlterColumn or
// DropAndRecreateColumn change.
func alterColumns(tables differ.MigrationPair[sqlschema.TableWalker], indexes differ.MigrationPair[int]) differ.MigrationPair[sqlschema.ColumnWalker] {
	return differ.NewPair(tables.Previous.ColumnAt(indexes.Previous), tables.Next.ColumnAt(indexes.Next))
}

// clauseSet accumulates the parts of one ALTER TABLE statement.
type clauseSet struct {
	before, clauses, after []string
}

func (c *clauseSet) add(clause ...string) { c.clauses = append(c.clauses, clause...) }

func (c *clauseSet) merge(a *AlteredColumn) {
	c.before = append(c.before, a.Before...)
	c.clauses = append(c.clauses, a.Clauses...)
	c.after = append(c.after, a.After...)
}

// statements joins the clauses into a single ALTER TABLE.
func (c *clauseSet) statements(table string) []string {
	out := append([]string{}, c.before...)
	if len(c.clauses) > 0 {
		out = append(out, "ALTER TABLE "+table+" "+strings.Join(c.clauses, ",\n"))
	}
	return append(out, c.after...)
}
