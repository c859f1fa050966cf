package differ

import (
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// differDatabase pairs up the tables and columns of the two schemas.
type differDatabase struct {
	flavour flavour.Flavour
	schemas MigrationPair[*sqlschema.Schema]

	// tablePairs are in previous schema order.
	tablePairs    []*tablePair
	createdTables []sqlschema.TableID
	droppedTables []sqlschema.TableID
}

type tablePair struct {
	ids            MigrationPair[sqlschema.TableID]
	columnPairs    []columnPair
	addedColumns   []int
	droppedColumns []int
}

type columnPair struct {
	indexes    MigrationPair[int]
	changes    ColumnChanges
	typeChange flavour.TypeChange
}

func newDifferDatabase(previous, next *sqlschema.Schema, f flavour.Flavour) *differDatabase {
	db := &differDatabase{flavour: f, schemas: NewPair(previous, next)}

	matched := make(map[sqlschema.TableID]bool)
	for i, prev := range previous.Tables {
		if f.TableShouldBeIgnored(prev.Name) {
			continue
		}
		nextID, ok := db.findNextTable(prev.Name)
		if !ok {
			db.droppedTables = append(db.droppedTables, sqlschema.TableID(i))
			continue
		}
		matched[nextID] = true
		tp := &tablePair{ids: NewPair(sqlschema.TableID(i), nextID)}
		db.pairColumns(tp)
		db.tablePairs = append(db.tablePairs, tp)
	}

	for i, t := range next.Tables {
		if f.TableShouldBeIgnored(t.Name) || matched[sqlschema.TableID(i)] {
			continue
		}
		db.createdTables = append(db.createdTables, sqlschema.TableID(i))
	}
	return db
}

func (db *differDatabase) findNextTable(name string) (sqlschema.TableID, bool) {
	for i, t := range db.schemas.Next.Tables {
		if db.flavour.TableShouldBeIgnored(t.Name) {
			continue
		}
		if db.flavour.TableNamesMatch(name, t.Name) {
			return sqlschema.TableID(i), true
		}
	}
	return 0, false
}

func (db *differDatabase) tables(tp *tablePair) MigrationPair[sqlschema.TableWalker] {
	return MigrationPair[sqlschema.TableWalker]{
		Previous: db.schemas.Previous.WalkTable(tp.ids.Previous),
		Next:     db.schemas.Next.WalkTable(tp.ids.Next),
	}
}

func (db *differDatabase) pairColumns(tp *tablePair) {
	tables := db.tables(tp)
	seen := make(map[int]bool)
	for _, prev := range tables.Previous.Columns() {
		next, ok := tables.Next.Column(prev.Name())
		if !ok {
			tp.droppedColumns = append(tp.droppedColumns, prev.Index())
			continue
		}
		seen[next.Index()] = true
		changes, typeChange := diffColumns(db.flavour, NewPair(prev, next))
		tp.columnPairs = append(tp.columnPairs, columnPair{
			indexes:    NewPair(prev.Index(), next.Index()),
			changes:    changes,
			typeChange: typeChange,
		})
	}
	for _, next := range tables.Next.Columns() {
		if !seen[next.Index()] {
			tp.addedColumns = append(tp.addedColumns, next.Index())
		}
	}
}

// columnChanges returns the changes of a next column, if it was paired.
func (db *differDatabase) columnChanges(table, column string) (ColumnChanges, bool) {
	for _, tp := range db.tablePairs {
		next := db.schemas.Next.WalkTable(tp.ids.Next)
		if next.Name() != table {
			continue
		}
		for _, cp := range tp.columnPairs {
			if next.ColumnAt(cp.indexes.Next).Name() == column {
				return cp.changes, true
			}
		}
	}
	return 0, false
}

// primaryKeyChanged compares the primary key columns of a table pair.
func (db *differDatabase) primaryKeyChanged(tp *tablePair) bool {
	tables := db.tables(tp)
	prev, next := tables.Previous.PrimaryKey(), tables.Next.PrimaryKey()
	if prev == nil || next == nil {
		return (prev == nil) != (next == nil)
	}
	return !equalStrings(prev.Columns, next.Columns)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
