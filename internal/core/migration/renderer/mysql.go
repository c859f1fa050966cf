package renderer

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

const mysqlTableOptions = "DEFAULT CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci"

// MySQLRenderer renders MySQL and MariaDB DDL.
type MySQLRenderer struct {
	flavour flavour.Flavour
}

var _ Renderer = (*MySQLRenderer)(nil)

// NewMySQL creates a MySQL renderer.
func NewMySQL(f flavour.Flavour) *MySQLRenderer {
	return &MySQLRenderer{flavour: f}
}

func (r *MySQLRenderer) Quote(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

func (r *MySQLRenderer) QuoteWithSchema(ident string) string { return r.Quote(ident) }

func (r *MySQLRenderer) RenderColumnType(col sqlschema.ColumnWalker) string {
	t := col.Type()
	switch t.Family {
	case sqlschema.FamilyEnum:
		enum, ok := col.Enum()
		if !ok {
			return "VARCHAR(191)"
		}
		values := make([]string, len(enum.Values()))
		for i, v := range enum.Values() {
			values[i] = quoteString(v)
		}
		return "ENUM(" + strings.Join(values, ", ") + ")"
	case sqlschema.FamilyUnsupported:
		return t.FullDataType
	default:
		return nativeType(r.flavour, t, "VARCHAR(191)")
	}
}

func (r *MySQLRenderer) RenderDefault(def *sqlschema.DefaultValue, col sqlschema.ColumnWalker) string {
	if def == nil {
		return ""
	}
	switch def.Kind {
	case sqlschema.DefaultNow:
		if nt := col.NativeType(); nt != nil && len(nt.Args) == 1 {
			return "CURRENT_TIMESTAMP(" + nt.Args[0] + ")"
		}
		return "CURRENT_TIMESTAMP"
	case sqlschema.DefaultDBGenerated:
		return def.Expression
	case sqlschema.DefaultValueLiteral:
		if def.Value.Kind == sqlschema.ValueList {
			return ""
		}
		return literal(def.Value)
	}
	return ""
}

func (r *MySQLRenderer) columnDefinition(col sqlschema.ColumnWalker) string {
	out := r.Quote(col.Name()) + " " + r.RenderColumnType(col)
	if col.IsRequired() {
		out += " NOT NULL"
	} else {
		out += " NULL"
	}
	if d := r.RenderDefault(col.Default(), col); d != "" {
		out += " DEFAULT " + d
	}
	if col.IsAutoIncrement() {
		out += " AUTO_INCREMENT"
	}
	return out
}

func (r *MySQLRenderer) RenderReferences(fk sqlschema.ForeignKeyWalker) string {
	def := fk.ForeignKey()
	return fmt.Sprintf("REFERENCES %s(%s) %s",
		r.Quote(def.ReferencedTable), quoteList(r.Quote, def.ReferencedColumns), referentialActions(def, nil))
}

func (r *MySQLRenderer) RenderCreateTable(table sqlschema.TableWalker) string {
	var columns, constraints []string
	for _, col := range table.Columns() {
		columns = append(columns, r.columnDefinition(col))
	}
	if pk := table.PrimaryKey(); pk != nil {
		constraints = append(constraints, "PRIMARY KEY ("+quoteList(r.Quote, pk.Columns)+")")
	}
	return "CREATE TABLE " + r.Quote(table.Name()) + " (\n" + tableBody(columns, constraints) + ") " + mysqlTableOptions
}

func (r *MySQLRenderer) RenderDropTable(name string) []string {
	return []string{"DROP TABLE " + r.Quote(name)}
}

func (r *MySQLRenderer) RenderRenameTable(from, to string) string {
	return "ALTER TABLE " + r.Quote(from) + " RENAME TO " + r.Quote(to)
}

func (r *MySQLRenderer) RenderAlterTable(tables differ.MigrationPair[sqlschema.TableWalker], changes []differ.TableChange) []string {
	var set clauseSet
	for _, change := range changes {
		switch c := change.(type) {
		case differ.DropPrimaryKey:
			set.add("DROP PRIMARY KEY")
		case differ.AddPrimaryKey:
			set.add("ADD PRIMARY KEY (" + quoteList(r.Quote, tables.Next.PrimaryKey().Columns) + ")")
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
	return set.statements(r.Quote(tables.Next.Name()))
}

// RenderAlterColumn restates the whole column with MODIFY, except for
// default-only changes.
func (r *MySQLRenderer) RenderAlterColumn(cols differ.MigrationPair[sqlschema.ColumnWalker], changes differ.ColumnChanges, typeChange flavour.TypeChange) *AlteredColumn {
	if typeChange == flavour.NotCastable {
		return nil
	}
	next := cols.Next
	if changes.OnlyDefaultChanged() {
		name := r.Quote(next.Name())
		if d := r.RenderDefault(next.Default(), next); d != "" {
			return &AlteredColumn{Clauses: []string{"ALTER COLUMN " + name + " SET DEFAULT " + d}}
		}
		return &AlteredColumn{Clauses: []string{"ALTER COLUMN " + name + " DROP DEFAULT"}}
	}
	return &AlteredColumn{Clauses: []string{"MODIFY " + r.columnDefinition(next)}}
}

func (r *MySQLRenderer) RenderRedefineTables(differ.RedefineTables, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

func (r *MySQLRenderer) RenderCreateIndex(index sqlschema.IndexWalker) string {
	kind := ""
	switch index.Kind() {
	case sqlschema.IndexUnique:
		kind = "UNIQUE "
	case sqlschema.IndexFulltext:
		kind = "FULLTEXT "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", kind, r.Quote(index.Name()), r.Quote(index.Table().Name()), quoteList(r.Quote, index.ColumnNames()))
}

func (r *MySQLRenderer) RenderDropIndex(index sqlschema.IndexWalker) string {
	return "DROP INDEX " + r.Quote(index.Name()) + " ON " + r.Quote(index.Table().Name())
}

func (r *MySQLRenderer) RenderAlterIndex(indexes differ.MigrationPair[sqlschema.IndexWalker]) []string {
	return []string{fmt.Sprintf("ALTER TABLE %s RENAME INDEX %s TO %s",
		r.Quote(indexes.Next.Table().Name()), r.Quote(indexes.Previous.Name()), r.Quote(indexes.Next.Name()))}
}

func (r *MySQLRenderer) RenderAddForeignKey(fk sqlschema.ForeignKeyWalker) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) %s",
		r.Quote(fk.Table().Name()), r.Quote(fk.ConstraintName()), quoteList(r.Quote, fk.ColumnNames()), r.RenderReferences(fk))
}

func (r *MySQLRenderer) RenderDropForeignKey(fk sqlschema.ForeignKeyWalker) string {
	return "ALTER TABLE " + r.Quote(fk.Table().Name()) + " DROP FOREIGN KEY " + r.Quote(fk.ConstraintName())
}

// MySQL enums are column types; they are created with their column.
func (r *MySQLRenderer) RenderCreateEnum(sqlschema.EnumWalker) []string { return nil }

func (r *MySQLRenderer) RenderDropEnum(differ.DropEnum, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

// RenderAlterEnum restates every column using the enum with its new values.
func (r *MySQLRenderer) RenderAlterEnum(step differ.AlterEnum, schemas differ.MigrationPair[*sqlschema.Schema]) []string {
	var out []string
	for _, col := range schemas.Next.WalkEnum(step.EnumIDs.Next).Columns() {
		out = append(out, "ALTER TABLE "+r.Quote(col.Table().Name())+" MODIFY "+r.columnDefinition(col))
	}
	return out
}

func (r *MySQLRenderer) RenderDropView(view sqlschema.View) string {
	return "DROP VIEW " + r.Quote(view.Name)
}
