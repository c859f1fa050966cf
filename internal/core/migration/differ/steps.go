package differ

import (
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// Migration is the ordered list of steps between two schemas. Steps refer to
// tables, columns and indexes by their position in Schemas.
type Migration struct {
	Schemas MigrationPair[*sqlschema.Schema]
	Steps   []Step
}

// IsEmpty reports a migration without steps.
func (m *Migration) IsEmpty() bool { return len(m.Steps) == 0 }

// Step is one schema change.
type Step interface {
	// Kind is the step name, as written in migration scripts.
	Kind() string
}

// CreateEnum creates an enum of the next schema.
type CreateEnum struct {
	EnumID sqlschema.EnumID
}

// DropEnum drops an enum of the previous schema. Replaced drops the type
// that an AlterEnum removing values renamed out of the way instead.
type DropEnum struct {
	EnumID   sqlschema.EnumID
	Replaced bool
}

// AlterEnum adds or removes enum values.
type AlterEnum struct {
	EnumIDs MigrationPair[sqlschema.EnumID]
	Created []string
	Dropped []string
}

// CreateTable creates a table of the next schema.
type CreateTable struct {
	TableID sqlschema.TableID
}

// DropTable drops a table of the previous schema.
type DropTable struct {
	TableID sqlschema.TableID
}

// AlterTable applies in-place changes to one table.
type AlterTable struct {
	TableIDs MigrationPair[sqlschema.TableID]
	Changes  []TableChange
}

// RedefineTables rewrites tables that ALTER TABLE cannot change in place.
// On SQLite the tables are copied through a new table. On Postgres the
// listed enum columns are moved onto a replacement enum type.
type RedefineTables struct {
	Tables []RedefineTable
}

// RedefineTable is one table of a RedefineTables step.
type RedefineTable struct {
	TableIDs          MigrationPair[sqlschema.TableID]
	DroppedPrimaryKey bool
	ColumnPairs       []RedefineColumn
	// AddedColumns are next column indexes, DroppedColumns previous ones.
	AddedColumns   []int
	DroppedColumns []int
}

// RedefineColumn is a column kept across a redefinition.
type RedefineColumn struct {
	ColumnIndexes MigrationPair[int]
	Changes       ColumnChanges
	TypeChange    flavour.TypeChange
}

// AddForeignKey adds a foreign key of a next table.
type AddForeignKey struct {
	TableID         sqlschema.TableID
	ForeignKeyIndex int
}

// DropForeignKey drops a foreign key of a previous table.
type DropForeignKey struct {
	TableID         sqlschema.TableID
	ForeignKeyIndex int
	ConstraintName  string
}

// CreateIndex creates an index of a next table.
type CreateIndex struct {
	TableID             sqlschema.TableID
	IndexIndex          int
	CausedByCreateTable bool
}

// DropIndex drops an index of a previous table.
type DropIndex struct {
	TableID    sqlschema.TableID
	IndexIndex int
}

// AlterIndex renames an index in place.
type AlterIndex struct {
	TableIDs     MigrationPair[sqlschema.TableID]
	IndexIndexes MigrationPair[int]
}

// RedefineIndex renames an index by dropping and recreating it.
type RedefineIndex struct {
	TableIDs     MigrationPair[sqlschema.TableID]
	IndexIndexes MigrationPair[int]
}

// DropView drops a view of the previous schema.
type DropView struct {
	ViewIndex int
}

func (CreateEnum) Kind() string     { return "CreateEnum" }
func (DropEnum) Kind() string       { return "DropEnum" }
func (AlterEnum) Kind() string      { return "AlterEnum" }
func (CreateTable) Kind() string    { return "CreateTable" }
func (DropTable) Kind() string      { return "DropTable" }
func (AlterTable) Kind() string     { return "AlterTable" }
func (RedefineTables) Kind() string { return "RedefineTables" }
func (AddForeignKey) Kind() string  { return "AddForeignKey" }
func (DropForeignKey) Kind() string { return "DropForeignKey" }
func (CreateIndex) Kind() string    { return "CreateIndex" }
func (DropIndex) Kind() string      { return "DropIndex" }
func (AlterIndex) Kind() string     { return "AlterIndex" }
func (RedefineIndex) Kind() string  { return "RedefineIndex" }
func (DropView) Kind() string       { return "DropView" }

// TableChange is one change inside an AlterTable step.
type TableChange interface {
	isTableChange()
}

// AddColumn adds a next column.
type AddColumn struct {
	ColumnIndex int
}

// DropColumn drops a previous column.
type DropColumn struct {
	ColumnIndex int
}

// AlterColumn changes a column in place.
type AlterColumn struct {
	ColumnIndexes MigrationPair[int]
	Changes       ColumnChanges
	TypeChange    flavour.TypeChange
}

// DropAndRecreateColumn replaces a column whose type cannot be cast.
type DropAndRecreateColumn struct {
	ColumnIndexes MigrationPair[int]
	Changes       ColumnChanges
}

// AddPrimaryKey adds the primary key of the next table.
type AddPrimaryKey struct{}

// DropPrimaryKey drops the primary key of the previous table.
type DropPrimaryKey struct{}

func (AddColumn) isTableChange()             {}
func (DropColumn) isTableChange()            {}
func (AlterColumn) isTableChange()           {}
func (DropAndRecreateColumn) isTableChange() {}
func (AddPrimaryKey) isTableChange()         {}
func (DropPrimaryKey) isTableChange()        {}
