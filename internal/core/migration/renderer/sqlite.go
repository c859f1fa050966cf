package renderer

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

var sqliteFamilyTypes = map[sqlschema.ColumnTypeFamily]string{
	sqlschema.FamilyInt:      "INTEGER",
	sqlschema.FamilyBigInt:   "BIGINT",
	sqlschema.FamilyFloat:    "REAL",
	sqlschema.FamilyDecimal:  "DECIMAL",
	sqlschema.FamilyBoolean:  "BOOLEAN",
	sqlschema.FamilyString:   "TEXT",
	sqlschema.FamilyDateTime: "DATETIME",
	sqlschema.FamilyJSON:     "TEXT",
	sqlschema.FamilyBytes:    "BLOB",
	sqlschema.FamilyUUID:     "TEXT",
	sqlschema.FamilyEnum:     "TEXT",
}

// SQLiteRenderer renders SQLite DDL. Foreign keys are part of CREATE TABLE;
// any other table change goes through a table copy.
type SQLiteRenderer struct {
	flavour flavour.Flavour
}

var _ Renderer = (*SQLiteRenderer)(nil)

// NewSQLite creates a SQLite renderer.
func NewSQLite(f flavour.Flavour) *SQLiteRenderer {
	return &SQLiteRenderer{flavour: f}
}

func (r *SQLiteRenderer) Quote(ident string) string           { return quoteDouble(ident) }
func (r *SQLiteRenderer) QuoteWithSchema(ident string) string { return quoteDouble(ident) }

func (r *SQLiteRenderer) RenderColumnType(col sqlschema.ColumnWalker) string {
	t := col.Type()
	if t.Family == sqlschema.FamilyUnsupported || t.FullDataType != "" {
		return t.FullDataType
	}
	if s, ok := sqliteFamilyTypes[t.Family]; ok {
		return s
	}
	return "TEXT"
}

func (r *SQLiteRenderer) RenderDefault(def *sqlschema.DefaultValue, _ sqlschema.ColumnWalker) string {
	if def == nil {
		return ""
	}
	switch def.Kind {
	case sqlschema.DefaultNow:
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

// inlinePrimaryKey reports whether the primary key is declared on the
// column itself, which SQLite requires for AUTOINCREMENT.
func inlinePrimaryKey(table sqlschema.TableWalker) (string, bool) {
	pk := table.PrimaryKey()
	if pk == nil || len(pk.Columns) != 1 {
		return "", false
	}
	return pk.Columns[0], true
}

func (r *SQLiteRenderer) columnDefinition(col sqlschema.ColumnWalker, primaryKey bool) string {
	out := r.Quote(col.Name()) + " " + r.RenderColumnType(col)
	if col.IsRequired() {
		out += " NOT NULL"
	}
	if primaryKey {
		out += " PRIMARY KEY"
		if col.IsAutoIncrement() {
			out += " AUTOINCREMENT"
		}
	}
	if d := r.RenderDefault(col.Default(), col); d != "" {
		out += " DEFAULT " + d
	}
	return out
}

func (r *SQLiteRenderer) RenderReferences(fk sqlschema.ForeignKeyWalker) string {
	def := fk.ForeignKey()
	return fmt.Sprintf("REFERENCES %s (%s) %s",
		r.Quote(def.ReferencedTable), quoteList(r.Quote, def.ReferencedColumns), referentialActions(def, nil))
}

func (r *SQLiteRenderer) RenderCreateTable(table sqlschema.TableWalker) string {
	return r.createTable(table, table.Name())
}

func (r *SQLiteRenderer) createTable(table sqlschema.TableWalker, name string) string {
	pkColumn, inline := inlinePrimaryKey(table)
	var columns, constraints []string
	for _, col := range table.Columns() {
		columns = append(columns, r.columnDefinition(col, inline && col.Name() == pkColumn))
	}
	if pk := table.PrimaryKey(); pk != nil && !inline {
		constraints = append(constraints, "PRIMARY KEY ("+quoteList(r.Quote, pk.Columns)+")")
	}
	for _, fk := range table.ForeignKeys() {
		constraints = append(constraints, fmt.Sprintf("CONSTRAINT %s FOREIGN KEY (%s) %s",
			r.Quote(fk.ConstraintName()), quoteList(r.Quote, fk.ColumnNames()), r.RenderReferences(fk)))
	}
	return "CREATE TABLE " + r.Quote(name) + " (\n" + tableBody(columns, constraints) + ")"
}

// RenderDropTable defers foreign key checks to commit, so tables referencing
// each other can be dropped in any order within the migration.
func (r *SQLiteRenderer) RenderDropTable(name string) []string {
	return []string{
		"PRAGMA defer_foreign_keys=ON",
		"DROP TABLE " + r.Quote(name),
	}
}

func (r *SQLiteRenderer) RenderRenameTable(from, to string) string {
	return "ALTER TABLE " + r.Quote(from) + " RENAME TO " + r.Quote(to)
}

// RenderAlterTable covers the changes SQLite supports in place: adding and
// dropping columns.
func (r *SQLiteRenderer) RenderAlterTable(tables differ.MigrationPair[sqlschema.TableWalker], changes []differ.TableChange) []string {
	table := r.Quote(tables.Next.Name())
	var out []string
	for _, change := range changes {
		switch c := change.(type) {
		case differ.AddColumn:
			out = append(out, "ALTER TABLE "+table+" ADD COLUMN "+r.columnDefinition(tables.Next.ColumnAt(c.ColumnIndex), false))
		case differ.DropColumn:
			out = append(out, "ALTER TABLE "+table+" DROP COLUMN "+r.Quote(tables.Previous.ColumnAt(c.ColumnIndex).Name()))
		}
	}
	return out
}

func (r *SQLiteRenderer) RenderAlterColumn(differ.MigrationPair[sqlschema.ColumnWalker], differ.ColumnChanges, flavour.TypeChange) *AlteredColumn {
	return nil
}

// RenderRedefineTables copies each table into a new table with the next
// definition, then swaps the names. Foreign key enforcement is suspended for
// the duration of the copy and checked at the end.
func (r *SQLiteRenderer) RenderRedefineTables(step differ.RedefineTables, schemas differ.MigrationPair[*sqlschema.Schema]) []string {
	out := []string{"PRAGMA defer_foreign_keys=ON", "PRAGMA foreign_keys=OFF"}
	for _, rt := range step.Tables {
		prevTable := schemas.Previous.WalkTable(rt.TableIDs.Previous)
		nextTable := schemas.Next.WalkTable(rt.TableIDs.Next)
		tmp := "new_" + nextTable.Name()

		out = append(out, r.createTable(nextTable, tmp))

		var targets, sources []string
		for _, cp := range rt.ColumnPairs {
			prev, next := prevTable.ColumnAt(cp.ColumnIndexes.Previous), nextTable.ColumnAt(cp.ColumnIndexes.Next)
			targets = append(targets, r.Quote(next.Name()))
			sources = append(sources, r.copyExpression(prev, next, cp.Changes))
		}
		if len(targets) > 0 {
			out = append(out, fmt.Sprintf("INSERT INTO %s (%s) SELECT %s FROM %s",
				r.Quote(tmp), strings.Join(targets, ", "), strings.Join(sources, ", "), r.Quote(prevTable.Name())))
		}
		out = append(out,
			"DROP TABLE "+r.Quote(prevTable.Name()),
			"ALTER TABLE "+r.Quote(tmp)+" RENAME TO "+r.Quote(nextTable.Name()),
		)
		for _, idx := range nextTable.Indexes() {
			out = append(out, r.RenderCreateIndex(idx))
		}
	}
	out = append(out, "PRAGMA foreign_key_check")
	return append(out, "PRAGMA foreign_keys=ON", "PRAGMA defer_foreign_keys=OFF")
}

func (r *SQLiteRenderer) copyExpression(prev, next sqlschema.ColumnWalker, changes differ.ColumnChanges) string {
	expr := r.Quote(prev.Name())
	if changes.Has(differ.TypeChanged) {
		expr = "CAST(" + expr + " AS " + r.RenderColumnType(next) + ")"
	}
	if changes.Has(differ.ArityChanged) && next.IsRequired() {
		if d := r.RenderDefault(next.Default(), next); d != "" {
			expr = "coalesce(" + expr + ", " + d + ")"
		}
	}
	return expr
}

func (r *SQLiteRenderer) RenderCreateIndex(index sqlschema.IndexWalker) string {
	unique := ""
	if index.IsUnique() {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sINDEX %s ON %s(%s)", unique, r.Quote(index.Name()), r.Quote(index.Table().Name()), quoteList(r.Quote, index.ColumnNames()))
}

func (r *SQLiteRenderer) RenderDropIndex(index sqlschema.IndexWalker) string {
	return "DROP INDEX " + r.Quote(index.Name())
}

func (r *SQLiteRenderer) RenderAlterIndex(indexes differ.MigrationPair[sqlschema.IndexWalker]) []string {
	return []string{r.RenderDropIndex(indexes.Previous), r.RenderCreateIndex(indexes.Next)}
}

// Foreign keys only change through a table redefinition.
func (r *SQLiteRenderer) RenderAddForeignKey(sqlschema.ForeignKeyWalker) string  { return "" }
func (r *SQLiteRenderer) RenderDropForeignKey(sqlschema.ForeignKeyWalker) string { return "" }

func (r *SQLiteRenderer) RenderCreateEnum(sqlschema.EnumWalker) []string { return nil }

func (r *SQLiteRenderer) RenderDropEnum(differ.DropEnum, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

func (r *SQLiteRenderer) RenderAlterEnum(differ.AlterEnum, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

func (r *SQLiteRenderer) RenderDropView(view sqlschema.View) string {
	return "DROP VIEW " + r.Quote(view.Name)
}
