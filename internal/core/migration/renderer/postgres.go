package renderer

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// PostgresRenderer renders PostgreSQL DDL.
type PostgresRenderer struct {
	flavour flavour.Flavour
}

var _ Renderer = (*PostgresRenderer)(nil)

// NewPostgres creates a PostgreSQL renderer.
func NewPostgres(f flavour.Flavour) *PostgresRenderer {
	return &PostgresRenderer{flavour: f}
}

func (r *PostgresRenderer) Quote(ident string) string { return quoteDouble(ident) }

// QuoteWithSchema quotes ident. Tables live in the search_path schema.
func (r *PostgresRenderer) QuoteWithSchema(ident string) string { return quoteDouble(ident) }

func (r *PostgresRenderer) RenderColumnType(col sqlschema.ColumnWalker) string {
	t := col.Type()
	var out string
	switch t.Family {
	case sqlschema.FamilyEnum:
		out = r.Quote(t.EnumName)
	case sqlschema.FamilyUnsupported:
		out = t.FullDataType
	default:
		out = nativeType(r.flavour, t, "TEXT")
	}
	if t.Arity == sqlschema.List {
		out += "[]"
	}
	return out
}

// serialType maps an autoincrementing integer column to its SERIAL pseudo type.
func (r *PostgresRenderer) serialType(col sqlschema.ColumnWalker) string {
	if nt := col.NativeType(); nt != nil && strings.EqualFold(nt.Name, "SmallInt") {
		return "SMALLSERIAL"
	}
	if col.Family() == sqlschema.FamilyBigInt {
		return "BIGSERIAL"
	}
	return "SERIAL"
}

func (r *PostgresRenderer) RenderDefault(def *sqlschema.DefaultValue, col sqlschema.ColumnWalker) string {
	if def == nil {
		return ""
	}
	switch def.Kind {
	case sqlschema.DefaultNow:
		return "CURRENT_TIMESTAMP"
	case sqlschema.DefaultDBGenerated:
		return def.Expression
	case sqlschema.DefaultSequence:
		return "nextval(" + quoteString(r.Quote(def.Expression)) + "::regclass)"
	case sqlschema.DefaultValueLiteral:
		if def.Value.Kind == sqlschema.ValueList {
			items := make([]string, len(def.Value.Items))
			for i, item := range def.Value.Items {
				items[i] = literal(item)
			}
			return "ARRAY[" + strings.Join(items, ", ") + "]::" + r.RenderColumnType(col)
		}
		return literal(def.Value)
	}
	return ""
}

func (r *PostgresRenderer) columnDefinition(col sqlschema.ColumnWalker) string {
	typ := r.RenderColumnType(col)
	if col.IsAutoIncrement() && col.Family().IsInteger() && col.Arity() != sqlschema.List {
		typ = r.serialType(col)
	}
	out := r.Quote(col.Name()) + " " + typ
	if col.IsRequired() {
		out += " NOT NULL"
	}
	if d := r.RenderDefault(col.Default(), col); d != "" {
		out += " DEFAULT " + d
	}
	return out
}

func (r *PostgresRenderer) RenderReferences(fk sqlschema.ForeignKeyWalker) string {
	def := fk.ForeignKey()
	return fmt.Sprintf("REFERENCES %s(%s) %s",
		r.QuoteWithSchema(def.ReferencedTable), quoteList(r.Quote, def.ReferencedColumns), referentialActions(def, nil))
}

func (r *PostgresRenderer) RenderCreateTable(table sqlschema.TableWalker) string {
	var columns, constraints []string
	for _, col := range table.Columns() {
		columns = append(columns, r.columnDefinition(col))
	}
	if pk := table.PrimaryKey(); pk != nil {
		constraints = append(constraints, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY (%s)", r.Quote(primaryKeyName(table)), quoteList(r.Quote, pk.Columns)))
	}
	return "CREATE TABLE " + r.QuoteWithSchema(table.Name()) + " (\n" + tableBody(columns, constraints) + ")"
}

func (r *PostgresRenderer) RenderDropTable(name string) []string {
	return []string{"DROP TABLE " + r.QuoteWithSchema(name)}
}

func (r *PostgresRenderer) RenderRenameTable(from, to string) string {
	return "ALTER TABLE " + r.QuoteWithSchema(from) + " RENAME TO " + r.Quote(to)
}

func (r *PostgresRenderer) RenderAlterTable(tables differ.MigrationPair[sqlschema.TableWalker], changes []differ.TableChange) []string {
	var set clauseSet
	for _, change := range changes {
		switch c := change.(type) {
		case differ.DropPrimaryKey:
			set.add("DROP CONSTRAINT " + r.Quote(primaryKeyName(tables.Previous)))
		case differ.AddPrimaryKey:
			set.add(fmt.Sprintf("ADD CONSTRAINT %s PRIMARY KEY (%s)", r.Quote(primaryKeyName(tables.Next)), quoteList(r.Quote, tables.Next.PrimaryKey().Columns)))
		case differ.DropColumn:
			set.add("DROP COLUMN " + r.Quote(tables.Previous.ColumnAt(c.ColumnIndex).Name()))
		case differ.AddColumn:
			set.add("ADD COLUMN " + r.columnDefinition(tables.Next.ColumnAt(c.ColumnIndex)))
		case differ.AlterColumn:
			cols := alterColumns(tables, c.ColumnIndexes)
			if altered := r.RenderAlterColumn(cols, c.Changes, c.TypeChange); altered != nil {
				set.merge(altered)
			} else {
				set.add("DROP COLUMN "+r.Quote(cols.Previous.Name()), "ADD COLUMN "+r.columnDefinition(cols.Next))
			}
		case differ.DropAndRecreateColumn:
			cols := alterColumns(tables, c.ColumnIndexes)
			set.add("DROP COLUMN "+r.Quote(cols.Previous.Name()), "ADD COLUMN "+r.columnDefinition(cols.Next))
		}
	}
	return set.statements(r.QuoteWithSchema(tables.Next.Name()))
}

func (r *PostgresRenderer) RenderAlterColumn(cols differ.MigrationPair[sqlschema.ColumnWalker], changes differ.ColumnChanges, typeChange flavour.TypeChange) *AlteredColumn {
	prev, next := cols.Previous, cols.Next
	if typeChange == flavour.NotCastable {
		return nil
	}
	if changes.Has(differ.TypeChanged) && (prev.Arity() == sqlschema.List) != (next.Arity() == sqlschema.List) {
		return nil
	}

	out := &AlteredColumn{}
	name := r.Quote(next.Name())
	typeChanged := changes.Has(differ.TypeChanged)
	prevDefault := prev.Default() != nil && prev.Default().Kind != sqlschema.DefaultAutoincrement

	dropDefault := prevDefault && (typeChanged || changes.Has(differ.DefaultChanged))
	setDefault := ""
	if typeChanged || changes.Has(differ.DefaultChanged) {
		setDefault = r.RenderDefault(next.Default(), next)
	}

	if changes.Has(differ.SequenceChanged) {
		table := r.QuoteWithSchema(next.Table().Name())
		if next.IsAutoIncrement() {
			seq := calculator.SequenceName(next.Table().Name(), next.Name())
			out.Before = append(out.Before, "CREATE SEQUENCE "+r.Quote(seq))
			setDefault = "nextval(" + quoteString(r.Quote(seq)) + ")"
			out.After = append(out.After, "ALTER SEQUENCE "+r.Quote(seq)+" OWNED BY "+table+"."+name)
		} else {
			seq := calculator.SequenceName(prev.Table().Name(), prev.Name())
			if d := prev.Default(); d != nil && d.Kind == sqlschema.DefaultSequence {
				seq = d.Expression
			}
			dropDefault = true
			out.After = append(out.After, "DROP SEQUENCE "+r.Quote(seq))
		}
	}

	if dropDefault {
		out.Clauses = append(out.Clauses, "ALTER COLUMN "+name+" DROP DEFAULT")
	}
	if typeChanged {
		typ := r.RenderColumnType(next)
		clause := "ALTER COLUMN " + name + " SET DATA TYPE " + typ
		if typeChange == flavour.RiskyCast {
			clause += " USING (" + name + "::" + typ + ")"
		}
		out.Clauses = append(out.Clauses, clause)
	}
	if changes.Has(differ.ArityChanged) {
		if next.IsRequired() {
			out.Clauses = append(out.Clauses, "ALTER COLUMN "+name+" SET NOT NULL")
		} else {
			out.Clauses = append(out.Clauses, "ALTER COLUMN "+name+" DROP NOT NULL")
		}
	}
	if setDefault != "" {
		out.Clauses = append(out.Clauses, "ALTER COLUMN "+name+" SET DEFAULT "+setDefault)
	} else if changes.Has(differ.DefaultChanged) && !dropDefault {
		out.Clauses = append(out.Clauses, "ALTER COLUMN "+name+" DROP DEFAULT")
	}
	return out
}

// RenderRedefineTables moves the enum columns of the listed tables onto the
// replacement types created by AlterEnum.
func (r *PostgresRenderer) RenderRedefineTables(step differ.RedefineTables, schemas differ.MigrationPair[*sqlschema.Schema]) []string {
	var out []string
	for _, rt := range step.Tables {
		prevTable := schemas.Previous.WalkTable(rt.TableIDs.Previous)
		nextTable := schemas.Next.WalkTable(rt.TableIDs.Next)
		table := r.QuoteWithSchema(nextTable.Name())
		for _, cp := range rt.ColumnPairs {
			prev, next := prevTable.ColumnAt(cp.ColumnIndexes.Previous), nextTable.ColumnAt(cp.ColumnIndexes.Next)
			name := r.Quote(next.Name())
			if prev.Default() != nil {
				out = append(out, "ALTER TABLE "+table+" ALTER COLUMN "+name+" DROP DEFAULT")
			}
			typ := r.RenderColumnType(next)
			textType := "text"
			if next.Arity() == sqlschema.List {
				textType = "text[]"
			}
			out = append(out, fmt.Sprintf("ALTER TABLE %s ALTER COLUMN %s TYPE %s USING (%s::%s::%s)", table, name, typ, name, textType, typ))
			if d := r.RenderDefault(next.Default(), next); d != "" {
				out = append(out, "ALTER TABLE "+table+" ALTER COLUMN "+name+" SET DEFAULT "+d)
			}
		}
	}
	return out
}

func (r *PostgresRenderer) RenderCreateIndex(index sqlschema.IndexWalker) string {
	unique := ""
	if index.IsUnique() {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, r.Quote(index.Name()), r.QuoteWithSchema(index.Table().Name()), quoteList(r.Quote, index.ColumnNames()))
}

func (r *PostgresRenderer) RenderDropIndex(index sqlschema.IndexWalker) string {
	return "DROP INDEX " + r.Quote(index.Name())
}

func (r *PostgresRenderer) RenderAlterIndex(indexes differ.MigrationPair[sqlschema.IndexWalker]) []string {
	return []string{"ALTER INDEX " + r.Quote(indexes.Previous.Name()) + " RENAME TO " + r.Quote(indexes.Next.Name())}
}

func (r *PostgresRenderer) RenderAddForeignKey(fk sqlschema.ForeignKeyWalker) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) %s",
		r.QuoteWithSchema(fk.Table().Name()), r.Quote(fk.ConstraintName()), quoteList(r.Quote, fk.ColumnNames()), r.RenderReferences(fk))
}

func (r *PostgresRenderer) RenderDropForeignKey(fk sqlschema.ForeignKeyWalker) string {
	return "ALTER TABLE " + r.QuoteWithSchema(fk.Table().Name()) + " DROP CONSTRAINT " + r.Quote(fk.ConstraintName())
}

func (r *PostgresRenderer) RenderCreateEnum(enum sqlschema.EnumWalker) []string {
	return []string{r.createType(enum.Name(), enum.Values())}
}

func (r *PostgresRenderer) createType(name string, values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = quoteString(v)
	}
	return "CREATE TYPE " + r.Quote(name) + " AS ENUM (" + strings.Join(quoted, ", ") + ")"
}

func (r *PostgresRenderer) RenderDropEnum(step differ.DropEnum, schemas differ.MigrationPair[*sqlschema.Schema]) []string {
	name := schemas.Previous.Enums[step.EnumID].Name
	if step.Replaced {
		name = replacedEnumName(name)
	}
	return []string{"DROP TYPE " + r.Quote(name)}
}

// RenderAlterEnum adds values in place. Values cannot be removed from a
// Postgres enum, so removals create a replacement type and rename the old
// one out of the way; the columns are moved by RedefineTables.
func (r *PostgresRenderer) RenderAlterEnum(step differ.AlterEnum, schemas differ.MigrationPair[*sqlschema.Schema]) []string {
	next := schemas.Next.WalkEnum(step.EnumIDs.Next)
	if len(step.Dropped) == 0 {
		out := make([]string, 0, len(step.Created))
		for _, v := range step.Created {
			out = append(out, "ALTER TYPE "+r.Quote(next.Name())+" ADD VALUE "+quoteString(v))
		}
		return out
	}
	prevName := schemas.Previous.Enums[step.EnumIDs.Previous].Name
	tmp := next.Name() + "_new"
	return []string{
		r.createType(tmp, next.Values()),
		"ALTER TYPE " + r.Quote(prevName) + " RENAME TO " + r.Quote(replacedEnumName(prevName)),
		"ALTER TYPE " + r.Quote(tmp) + " RENAME TO " + r.Quote(next.Name()),
	}
}

func (r *PostgresRenderer) RenderDropView(view sqlschema.View) string {
	return "DROP VIEW " + r.QuoteWithSchema(view.Name)
}

func replacedEnumName(name string) string { return name + "_old" }
