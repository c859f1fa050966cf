package renderer

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// DefaultMSSQLSchema is the schema tables are created in.
const DefaultMSSQLSchema = "dbo"

// MSSQLRenderer renders SQL Server DDL.
type MSSQLRenderer struct {
	flavour flavour.Flavour
	schema  string
}

var _ Renderer = (*MSSQLRenderer)(nil)

// NewMSSQL creates a SQL Server renderer for tables in schema.
func NewMSSQL(f flavour.Flavour, schema string) *MSSQLRenderer {
	if schema == "" {
		schema = DefaultMSSQLSchema
	}
	return &MSSQLRenderer{flavour: f, schema: schema}
}

func (r *MSSQLRenderer) Quote(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (r *MSSQLRenderer) QuoteWithSchema(ident string) string {
	return r.Quote(r.schema) + "." + r.Quote(ident)
}

func (r *MSSQLRenderer) RenderColumnType(col sqlschema.ColumnWalker) string {
	t := col.Type()
	if t.Family == sqlschema.FamilyUnsupported {
		return t.FullDataType
	}
	return nativeType(r.flavour, t, "NVARCHAR(1000)")
}

func (r *MSSQLRenderer) RenderDefault(def *sqlschema.DefaultValue, _ sqlschema.ColumnWalker) string {
	if def == nil {
		return ""
	}
	switch def.Kind {
	case sqlschema.DefaultNow:
		return "CURRENT_TIMESTAMP"
	case sqlschema.DefaultDBGenerated:
		return def.Expression
	case sqlschema.DefaultValueLiteral:
		switch def.Value.Kind {
		case sqlschema.ValueList:
			return ""
		case sqlschema.ValueBoolean:
			if strings.EqualFold(def.Value.Raw, "true") {
				return "1"
			}
			return "0"
		}
		return literal(def.Value)
	}
	return ""
}

func (r *MSSQLRenderer) defaultConstraint(col sqlschema.ColumnWalker) string {
	if def := col.Default(); def != nil && def.ConstraintName != "" {
		return def.ConstraintName
	}
	return calculator.DefaultConstraintName(col.Table().Name(), col.Name())
}

func (r *MSSQLRenderer) columnDefinition(col sqlschema.ColumnWalker) string {
	out := r.Quote(col.Name()) + " " + r.RenderColumnType(col)
	if col.IsRequired() {
		out += " NOT NULL"
	} else {
		out += " NULL"
	}
	if col.IsAutoIncrement() {
		out += " IDENTITY(1,1)"
	}
	if d := r.RenderDefault(col.Default(), col); d != "" {
		out += " CONSTRAINT " + r.Quote(r.defaultConstraint(col)) + " DEFAULT " + d
	}
	return out
}

// SQL Server has no RESTRICT; NO ACTION is equivalent for immediate checks.
func mssqlAction(a sqlschema.ReferentialAction) sqlschema.ReferentialAction {
	if a == sqlschema.Restrict {
		return sqlschema.NoAction
	}
	return a
}

func (r *MSSQLRenderer) RenderReferences(fk sqlschema.ForeignKeyWalker) string {
	def := fk.ForeignKey()
	return fmt.Sprintf("REFERENCES %s(%s) %s",
		r.QuoteWithSchema(def.ReferencedTable), quoteList(r.Quote, def.ReferencedColumns), referentialActions(def, mssqlAction))
}

func (r *MSSQLRenderer) RenderCreateTable(table sqlschema.TableWalker) string {
	var columns, constraints []string
	for _, col := range table.Columns() {
		columns = append(columns, r.columnDefinition(col))
	}
	if pk := table.PrimaryKey(); pk != nil {
		constraints = append(constraints, fmt.Sprintf("CONSTRAINT %s PRIMARY KEY CLUSTERED (%s)", r.Quote(primaryKeyName(table)), quoteList(r.Quote, pk.Columns)))
	}
	return "CREATE TABLE " + r.QuoteWithSchema(table.Name()) + " (\n" + tableBody(columns, constraints) + ")"
}

func (r *MSSQLRenderer) RenderDropTable(name string) []string {
	return []string{"DROP TABLE " + r.QuoteWithSchema(name)}
}

func (r *MSSQLRenderer) RenderRenameTable(from, to string) string {
	return fmt.Sprintf("EXEC SP_RENAME N'%s.%s', N'%s'", r.schema, from, to)
}

// RenderAlterTable emits one statement per change. Default constraints
// are dropped before their column is dropped or altered.
func (r *MSSQLRenderer) RenderAlterTable(tables differ.MigrationPair[sqlschema.TableWalker], changes []differ.TableChange) []string {
	table := "ALTER TABLE " + r.QuoteWithSchema(tables.Next.Name())
	var out []string
	dropColumn := func(col sqlschema.ColumnWalker) {
		if col.Default() != nil {
			out = append(out, table+" DROP CONSTRAINT "+r.Quote(r.defaultConstraint(col)))
		}
		out = append(out, table+" DROP COLUMN "+r.Quote(col.Name()))
	}

	for _, change := range changes {
		switch c := change.(type) {
		case differ.DropPrimaryKey:
			out = append(out, table+" DROP CONSTRAINT "+r.Quote(primaryKeyName(tables.Previous)))
		case differ.AddPrimaryKey:
			out = append(out, fmt.Sprintf("%s ADD CONSTRAINT %s PRIMARY KEY CLUSTERED (%s)", table, r.Quote(primaryKeyName(tables.Next)), quoteList(r.Quote, tables.Next.PrimaryKey().Columns)))
		case differ.DropColumn:
			dropColumn(tables.Previous.ColumnAt(c.ColumnIndex))
		case differ.AddColumn:
			out = append(out, table+" ADD "+r.columnDefinition(tables.Next.ColumnAt(c.ColumnIndex)))
		case differ.AlterColumn:
			cols := alterColumns(tables, c.ColumnIndexes)
			if altered := r.RenderAlterColumn(cols, c.Changes, c.TypeChange); altered != nil {
				out = append(out, altered.Before...)
				for _, clause := range altered.Clauses {
					out = append(out, table+" "+clause)
				}
				out = append(out, altered.After...)
			} else {
				dropColumn(cols.Previous)
				out = append(out, table+" ADD "+r.columnDefinition(cols.Next))
			}
		case differ.DropAndRecreateColumn:
			cols := alterColumns(tables, c.ColumnIndexes)
			dropColumn(cols.Previous)
			out = append(out, table+" ADD "+r.columnDefinition(cols.Next))
		}
	}
	return out
}

// RenderAlterColumn returns nil for identity changes, which SQL Server
// cannot apply in place.
func (r *MSSQLRenderer) RenderAlterColumn(cols differ.MigrationPair[sqlschema.ColumnWalker], changes differ.ColumnChanges, typeChange flavour.TypeChange) *AlteredColumn {
	if typeChange == flavour.NotCastable || changes.Has(differ.AutoIncrementChanged) {
		return nil
	}
	prev, next := cols.Previous, cols.Next
	name := r.Quote(next.Name())
	out := &AlteredColumn{}

	resetDefault := changes.Has(differ.DefaultChanged) || changes.Has(differ.TypeChanged)
	if resetDefault && prev.Default() != nil {
		out.Clauses = append(out.Clauses, "DROP CONSTRAINT "+r.Quote(r.defaultConstraint(prev)))
	}
	if changes.Has(differ.TypeChanged) || changes.Has(differ.ArityChanged) {
		nullability := " NULL"
		if next.IsRequired() {
			nullability = " NOT NULL"
		}
		out.Clauses = append(out.Clauses, "ALTER COLUMN "+name+" "+r.RenderColumnType(next)+nullability)
	}
	if resetDefault {
		if d := r.RenderDefault(next.Default(), next); d != "" {
			out.Clauses = append(out.Clauses, "ADD CONSTRAINT "+r.Quote(r.defaultConstraint(next))+" DEFAULT "+d+" FOR "+name)
		}
	}
	return out
}

func (r *MSSQLRenderer) RenderRedefineTables(differ.RedefineTables, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

func (r *MSSQLRenderer) RenderCreateIndex(index sqlschema.IndexWalker) string {
	unique := ""
	if index.IsUnique() {
		unique = "UNIQUE "
	}
	return fmt.Sprintf("CREATE %sNONCLUSTERED INDEX %s ON %s(%s)", unique, r.Quote(index.Name()), r.QuoteWithSchema(index.Table().Name()), quoteList(r.Quote, index.ColumnNames()))
}

func (r *MSSQLRenderer) RenderDropIndex(index sqlschema.IndexWalker) string {
	return "DROP INDEX " + r.Quote(index.Name()) + " ON " + r.QuoteWithSchema(index.Table().Name())
}

func (r *MSSQLRenderer) RenderAlterIndex(indexes differ.MigrationPair[sqlschema.IndexWalker]) []string {
	return []string{fmt.Sprintf("EXEC SP_RENAME N'%s.%s.%s', N'%s', N'INDEX'",
		r.schema, indexes.Previous.Table().Name(), indexes.Previous.Name(), indexes.Next.Name())}
}

func (r *MSSQLRenderer) RenderAddForeignKey(fk sqlschema.ForeignKeyWalker) string {
	return fmt.Sprintf("ALTER TABLE %s ADD CONSTRAINT %s FOREIGN KEY (%s) %s",
		r.QuoteWithSchema(fk.Table().Name()), r.Quote(fk.ConstraintName()), quoteList(r.Quote, fk.ColumnNames()), r.RenderReferences(fk))
}

func (r *MSSQLRenderer) RenderDropForeignKey(fk sqlschema.ForeignKeyWalker) string {
	return "ALTER TABLE " + r.QuoteWithSchema(fk.Table().Name()) + " DROP CONSTRAINT " + r.Quote(fk.ConstraintName())
}

func (r *MSSQLRenderer) RenderCreateEnum(sqlschema.EnumWalker) []string { return nil }

func (r *MSSQLRenderer) RenderDropEnum(differ.DropEnum, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

func (r *MSSQLRenderer) RenderAlterEnum(differ.AlterEnum, differ.MigrationPair[*sqlschema.Schema]) []string {
	return nil
}

func (r *MSSQLRenderer) RenderDropView(view sqlschema.View) string {
	return "DROP VIEW " + r.QuoteWithSchema(view.Name)
}
