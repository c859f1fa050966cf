// Package renderer turns migration steps into dialect specific SQL.
package renderer

import (
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// AlteredColumn is the rendering of an in-place column change. Clauses are
// joined into the ALTER TABLE statement; Before and After are standalone
// statements around it.
type AlteredColumn struct {
	Before  []string
	Clauses []string
	After   []string
}

// Renderer renders steps for one SQL dialect. Statements carry no trailing
// semicolon.
type Renderer interface {
	Quote(ident string) string
	QuoteWithSchema(ident string) string
	RenderColumnType(col sqlschema.ColumnWalker) string
	RenderDefault(def *sqlschema.DefaultValue, col sqlschema.ColumnWalker) string
	RenderReferences(fk sqlschema.ForeignKeyWalker) string

	RenderCreateTable(table sqlschema.TableWalker) string
	RenderDropTable(name string) []string
	RenderRenameTable(from, to string) string
	RenderAlterTable(tables differ.MigrationPair[sqlschema.TableWalker], changes []differ.TableChange) []string
	// RenderAlterColumn returns nil when the column has to be dropped and
	// recreated.
	RenderAlterColumn(columns differ.MigrationPair[sqlschema.ColumnWalker], changes differ.ColumnChanges, typeChange flavour.TypeChange) *AlteredColumn
	RenderRedefineTables(step differ.RedefineTables, schemas differ.MigrationPair[*sqlschema.Schema]) []string

	RenderCreateIndex(index sqlschema.IndexWalker) string
	RenderDropIndex(index sqlschema.IndexWalker) string
	RenderAlterIndex(indexes differ.MigrationPair[sqlschema.IndexWalker]) []string

	RenderAddForeignKey(fk sqlschema.ForeignKeyWalker) string
	RenderDropForeignKey(fk sqlschema.ForeignKeyWalker) string

	RenderCreateEnum(enum sqlschema.EnumWalker) []string
	RenderDropEnum(step differ.DropEnum, schemas differ.MigrationPair[*sqlschema.Schema]) []string
	RenderAlterEnum(step differ.AlterEnum, schemas differ.MigrationPair[*sqlschema.Schema]) []string

	RenderDropView(view sqlschema.View) string
}

// New creates the renderer for a flavour.
func New(f flavour.Flavour) (Renderer, error) {
	switch f.Provider() {
	case flavour.Postgres:
		return NewPostgres(f), nil
	case flavour.MySQL:
		return NewMySQL(f), nil
	case flavour.SQLite:
		return NewSQLite(f), nil
	case flavour.SQLServer:
		return NewMSSQL(f, DefaultMSSQLSchema), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", f.Provider())
	}
}

// RenderStep renders one step of m.
func RenderStep(r Renderer, m *differ.Migration, step differ.Step) []string {
	previous, next := m.Schemas.Previous, m.Schemas.Next

	switch s := step.(type) {
	case differ.CreateEnum:
		return r.RenderCreateEnum(next.WalkEnum(s.EnumID))
	case differ.DropEnum:
		return r.RenderDropEnum(s, m.Schemas)
	case differ.AlterEnum:
		return r.RenderAlterEnum(s, m.Schemas)
	case differ.CreateTable:
		return []string{r.RenderCreateTable(next.WalkTable(s.TableID))}
	case differ.DropTable:
		return r.RenderDropTable(previous.Tables[s.TableID].Name)
	case differ.AlterTable:
		tables := differ.NewPair(previous.WalkTable(s.TableIDs.Previous), next.WalkTable(s.TableIDs.Next))
		return r.RenderAlterTable(tables, s.Changes)
	case differ.RedefineTables:
		return r.RenderRedefineTables(s, m.Schemas)
	case differ.AddForeignKey:
		return []string{r.RenderAddForeignKey(next.WalkTable(s.TableID).ForeignKeyAt(s.ForeignKeyIndex))}
	case differ.DropForeignKey:
		return []string{r.RenderDropForeignKey(previous.WalkTable(s.TableID).ForeignKeyAt(s.ForeignKeyIndex))}
	case differ.CreateIndex:
		return []string{r.RenderCreateIndex(next.WalkTable(s.TableID).IndexAt(s.IndexIndex))}
	case differ.DropIndex:
		return []string{r.RenderDropIndex(previous.WalkTable(s.TableID).IndexAt(s.IndexIndex))}
	case differ.AlterIndex:
		return r.RenderAlterIndex(indexPair(m, s.TableIDs, s.IndexIndexes))
	case differ.RedefineIndex:
		indexes := indexPair(m, s.TableIDs, s.IndexIndexes)
		return []string{r.RenderDropIndex(indexes.Previous), r.RenderCreateIndex(indexes.Next)}
	case differ.DropView:
		return []string{r.RenderDropView(previous.Views[s.ViewIndex])}
	}
	return nil
}

// RenderMigration renders every step of m, one statement list per step.
func RenderMigration(r Renderer, m *differ.Migration) [][]string {
	out := make([][]string, 0, len(m.Steps))
	for _, step := range m.Steps {
		out = append(out, RenderStep(r, m, step))
	}
	return out
}

func indexPair(m *differ.Migration, tables differ.MigrationPair[sqlschema.TableID], indexes differ.MigrationPair[int]) differ.MigrationPair[sqlschema.IndexWalker] {
	return differ.NewPair(
		m.Schemas.Previous.WalkTable(tables.Previous).IndexAt(indexes.Previous),
		m.Schemas.Next.WalkTable(tables.Next).IndexAt(indexes.Next),
	)
}
