// Package differ compares two SQL schemas and produces the ordered steps
// that migrate the first into the second.
package differ

import (
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// steps buckets the generated steps by phase. Phases are emitted in field
// order.
type steps struct {
	dropViews       []Step
	dropForeignKeys []Step
	alterEnumsPre   []Step
	dropIndexes     []Step
	createEnums     []Step
	alterTables     []Step
	redefineTables  RedefineTables
	dropTables      []Step
	dropEnums       []Step
	createTables    []Step
	createIndexes   []Step
	alterEnumsPost  []Step
	addForeignKeys  []Step
	renameIndexes   []Step
}

func (s *steps) ordered() []Step {
	var out []Step
	out = append(out, s.dropViews...)
	out = append(out, s.dropForeignKeys...)
	out = append(out, s.alterEnumsPre...)
	out = append(out, s.dropIndexes...)
	out = append(out, s.createEnums...)
	out = append(out, s.alterTables...)
	if len(s.redefineTables.Tables) > 0 {
		out = append(out, s.redefineTables)
	}
	out = append(out, s.dropTables...)
	out = append(out, s.dropEnums...)
	out = append(out, s.createTables...)
	out = append(out, s.createIndexes...)
	out = append(out, s.alterEnumsPost...)
	out = append(out, s.addForeignKeys...)
	out = append(out, s.renameIndexes...)
	return out
}

type differ struct {
	db    *differDatabase
	f     flavour.Flavour
	caps  flavour.Capabilities
	steps steps
	// rewrittenEnums are the Postgres enums losing values, by name.
	rewrittenEnums map[string]bool
}

// Diff computes the migration from previous to next. Both schemas are only
// read. The result is deterministic for identical inputs.
func Diff(previous, next *sqlschema.Schema, f flavour.Flavour) *Migration {
	if previous == nil {
		previous = sqlschema.Empty()
	}
	if next == nil {
		next = sqlschema.Empty()
	}
	d := &differ{
		db:             newDifferDatabase(previous, next, f),
		f:              f,
		caps:           f.Capabilities(),
		rewrittenEnums: make(map[string]bool),
	}

	d.diffViews()
	d.diffEnums()
	for _, tp := range d.db.tablePairs {
		d.diffTablePair(tp)
	}
	d.dropTables()
	d.createTables()

	return &Migration{Schemas: d.db.schemas, Steps: d.steps.ordered()}
}

func (d *differ) diffViews() {
	for i := range d.db.schemas.Previous.Views {
		d.steps.dropViews = append(d.steps.dropViews, DropView{ViewIndex: i})
	}
}

func (d *differ) diffEnums() {
	if !d.caps.SupportsEnums {
		return
	}
	previous, next := d.db.schemas.Previous, d.db.schemas.Next

	for _, prev := range previous.WalkEnums() {
		nextID, ok := next.FindEnum(prev.Name())
		if !ok {
			if d.caps.NamedEnums {
				d.steps.dropEnums = append(d.steps.dropEnums, DropEnum{EnumID: prev.ID()})
			}
			continue
		}
		nextEnum := next.WalkEnum(nextID)
		created := difference(nextEnum.Values(), prev.Values())
		dropped := difference(prev.Values(), nextEnum.Values())
		if len(created) == 0 && len(dropped) == 0 {
			continue
		}
		step := AlterEnum{EnumIDs: NewPair(prev.ID(), nextID), Created: created, Dropped: dropped}
		if len(dropped) == 0 {
			d.steps.alterEnumsPost = append(d.steps.alterEnumsPost, step)
			continue
		}
		d.steps.alterEnumsPre = append(d.steps.alterEnumsPre, step)
		if d.caps.NamedEnums {
			// The old type goes once no table uses it, dropped ones included.
			d.rewrittenEnums[prev.Name()] = true
			d.steps.dropEnums = append(d.steps.dropEnums, DropEnum{EnumID: prev.ID(), Replaced: true})
		}
	}

	if !d.caps.NamedEnums {
		return
	}
	for _, e := range next.WalkEnums() {
		if _, ok := previous.FindEnum(e.Name()); !ok {
			d.steps.createEnums = append(d.steps.createEnums, CreateEnum{EnumID: e.ID()})
		}
	}
}

// difference returns the values of a missing from b, in a's order.
func difference(a, b []string) []string {
	set := make(map[string]bool, len(b))
	for _, v := range b {
		set[v] = true
	}
	var out []string
	for _, v := range a {
		if !set[v] {
			out = append(out, v)
		}
	}
	return out
}

func (d *differ) diffTablePair(tp *tablePair) {
	tables := d.db.tables(tp)
	pkChanged := d.db.primaryKeyChanged(tp)
	droppedFKs, addedFKs := d.diffForeignKeys(tables)
	droppedIdx, createdIdx, renamedIdx := d.diffIndexes(tables)

	if d.caps.RequiresTableRedefinition {
		triggers := flavour.RedefinitionTriggers{
			PrimaryKeyChanged:      pkChanged,
			DroppedColumns:         len(tp.droppedColumns) > 0,
			AddedRequiredNoDefault: d.addsRequiredColumnWithoutDefault(tp),
			ColumnChanged:          tp.hasColumnChanges(),
			IndexRenamed:           len(renamedIdx) > 0,
			ForeignKeysChanged:     len(droppedFKs) > 0 || len(addedFKs) > 0,
		}
		if d.f.ShouldRedefineTable(triggers) {
			d.redefine(tp, pkChanged)
			return
		}
	}

	prevID, nextID := tp.ids.Previous, tp.ids.Next
	for _, fk := range droppedFKs {
		d.steps.dropForeignKeys = append(d.steps.dropForeignKeys, DropForeignKey{
			TableID:         prevID,
			ForeignKeyIndex: fk,
			ConstraintName:  tables.Previous.ForeignKeyAt(fk).ConstraintName(),
		})
	}
	for _, fk := range addedFKs {
		d.steps.addForeignKeys = append(d.steps.addForeignKeys, AddForeignKey{TableID: nextID, ForeignKeyIndex: fk})
	}
	for _, idx := range droppedIdx {
		d.steps.dropIndexes = append(d.steps.dropIndexes, DropIndex{TableID: prevID, IndexIndex: idx})
	}
	for _, idx := range createdIdx {
		d.steps.createIndexes = append(d.steps.createIndexes, CreateIndex{TableID: nextID, IndexIndex: idx})
	}
	for _, pair := range renamedIdx {
		if d.caps.CanAlterIndex {
			d.steps.renameIndexes = append(d.steps.renameIndexes, AlterIndex{TableIDs: tp.ids, IndexIndexes: pair})
		} else {
			d.steps.renameIndexes = append(d.steps.renameIndexes, RedefineIndex{TableIDs: tp.ids, IndexIndexes: pair})
		}
	}

	if changes := d.tableChanges(tp, pkChanged); len(changes) > 0 {
		d.steps.alterTables = append(d.steps.alterTables, AlterTable{TableIDs: tp.ids, Changes: changes})
	}
	if len(d.rewrittenEnums) > 0 {
		d.rewriteEnumColumns(tp)
	}
}

func (tp *tablePair) hasColumnChanges() bool {
	for _, cp := range tp.columnPairs {
		if cp.changes.Differs() {
			return true
		}
	}
	return false
}

func (d *differ) addsRequiredColumnWithoutDefault(tp *tablePair) bool {
	next := d.db.schemas.Next.WalkTable(tp.ids.Next)
	for _, idx := range tp.addedColumns {
		col := next.ColumnAt(idx)
		if col.IsRequired() && !col.HasDefaultOrIsGenerated() {
			return true
		}
	}
	return false
}

// tableChanges lists the AlterTable changes of a pair: primary key drop,
// column drops, column alterations, column additions, primary key add.
func (d *differ) tableChanges(tp *tablePair, pkChanged bool) []TableChange {
	tables := d.db.tables(tp)
	var changes []TableChange

	if pkChanged && tables.Previous.PrimaryKey() != nil {
		changes = append(changes, DropPrimaryKey{})
	}
	for _, idx := range tp.droppedColumns {
		changes = append(changes, DropColumn{ColumnIndex: idx})
	}
	for _, cp := range tp.columnPairs {
		if !cp.changes.Differs() {
			continue
		}
		if cp.typeChange == flavour.NotCastable {
			changes = append(changes, DropAndRecreateColumn{ColumnIndexes: cp.indexes, Changes: cp.changes})
			continue
		}
		changes = append(changes, AlterColumn{ColumnIndexes: cp.indexes, Changes: cp.changes, TypeChange: cp.typeChange})
	}
	for _, idx := range tp.addedColumns {
		changes = append(changes, AddColumn{ColumnIndex: idx})
	}
	if pkChanged && tables.Next.PrimaryKey() != nil {
		changes = append(changes, AddPrimaryKey{})
	}
	return changes
}

// redefine queues a whole table copy.
func (d *differ) redefine(tp *tablePair, pkChanged bool) {
	rt := RedefineTable{
		TableIDs:          tp.ids,
		DroppedPrimaryKey: pkChanged,
		AddedColumns:      tp.addedColumns,
		DroppedColumns:    tp.droppedColumns,
	}
	for _, cp := range tp.columnPairs {
		rt.ColumnPairs = append(rt.ColumnPairs, RedefineColumn{
			ColumnIndexes: cp.indexes,
			Changes:       cp.changes,
			TypeChange:    cp.typeChange,
		})
	}
	d.steps.redefineTables.Tables = append(d.steps.redefineTables.Tables, rt)
}

// rewriteEnumColumns moves the columns of a Postgres enum losing values onto
// the replacement type.
func (d *differ) rewriteEnumColumns(tp *tablePair) {
	tables := d.db.tables(tp)
	rt := RedefineTable{TableIDs: tp.ids}
	for _, cp := range tp.columnPairs {
		prev, next := tables.Previous.ColumnAt(cp.indexes.Previous), tables.Next.ColumnAt(cp.indexes.Next)
		if !prev.IsEnum() || !next.IsEnum() || prev.EnumName() != next.EnumName() || !d.rewrittenEnums[next.EnumName()] {
			continue
		}
		rt.ColumnPairs = append(rt.ColumnPairs, RedefineColumn{
			ColumnIndexes: cp.indexes,
			Changes:       cp.changes | TypeChanged,
			TypeChange:    flavour.RiskyCast,
		})
	}
	if len(rt.ColumnPairs) > 0 {
		d.steps.redefineTables.Tables = append(d.steps.redefineTables.Tables, rt)
	}
}

// diffForeignKeys returns the previous foreign keys to drop and the next ones
// to add. Foreign keys on columns whose type changes are recreated.
func (d *differ) diffForeignKeys(tables MigrationPair[sqlschema.TableWalker]) (dropped, added []int) {
	prevFKs, nextFKs := tables.Previous.ForeignKeys(), tables.Next.ForeignKeys()
	matched := make(map[int]bool)

	for _, prev := range prevFKs {
		found := -1
		for _, next := range nextFKs {
			if !matched[next.Index()] && d.foreignKeysMatch(prev, next) {
				found = next.Index()
				break
			}
		}
		if found < 0 {
			dropped = append(dropped, prev.Index())
			continue
		}
		matched[found] = true
		if d.foreignKeyColumnsChangeType(tables.Next.ForeignKeyAt(found)) {
			dropped = append(dropped, prev.Index())
			added = append(added, found)
		}
	}
	for _, next := range nextFKs {
		if !matched[next.Index()] {
			added = append(added, next.Index())
		}
	}
	return dropped, added
}

// foreignKeysMatch compares constrained columns, referenced table and
// columns, and the referential actions.
func (d *differ) foreignKeysMatch(prev, next sqlschema.ForeignKeyWalker) bool {
	p, n := prev.ForeignKey(), next.ForeignKey()
	return equalStrings(p.Columns, n.Columns) &&
		d.f.TableNamesMatch(p.ReferencedTable, n.ReferencedTable) &&
		equalStrings(p.ReferencedColumns, n.ReferencedColumns) &&
		p.OnDelete == n.OnDelete &&
		p.OnUpdate == n.OnUpdate
}

func (d *differ) foreignKeyColumnsChangeType(fk sqlschema.ForeignKeyWalker) bool {
	k := fk.ForeignKey()
	for _, c := range k.Columns {
		if changes, ok := d.db.columnChanges(fk.Table().Name(), c); ok && changes.Has(TypeChanged) {
			return true
		}
	}
	for _, c := range k.ReferencedColumns {
		if changes, ok := d.db.columnChanges(k.ReferencedTable, c); ok && changes.Has(TypeChanged) {
			return true
		}
	}
	return false
}

// diffIndexes matches indexes by name. An index whose name matches but
// whose definition changed is dropped and recreated. Unmatched indexes with
// identical definitions are renames.
func (d *differ) diffIndexes(tables MigrationPair[sqlschema.TableWalker]) (dropped, created []int, renamed []MigrationPair[int]) {
	prevIdx, nextIdx := tables.Previous.Indexes(), tables.Next.Indexes()
	matchedNext := make(map[int]bool)
	var unmatchedPrev []sqlschema.IndexWalker

	for _, prev := range prevIdx {
		found := false
		for _, next := range nextIdx {
			if matchedNext[next.Index()] || !d.f.IndexNamesMatch(prev.Name(), next.Name()) {
				continue
			}
			matchedNext[next.Index()] = true
			found = true
			if !sameIndexDefinition(prev, next) {
				dropped = append(dropped, prev.Index())
				created = append(created, next.Index())
			}
			break
		}
		if !found {
			unmatchedPrev = append(unmatchedPrev, prev)
		}
	}

	for _, prev := range unmatchedPrev {
		renamedTo := -1
		for _, next := range nextIdx {
			if !matchedNext[next.Index()] && sameIndexDefinition(prev, next) {
				renamedTo = next.Index()
				break
			}
		}
		if renamedTo >= 0 {
			matchedNext[renamedTo] = true
			renamed = append(renamed, NewPair(prev.Index(), renamedTo))
			continue
		}
		if d.caps.SkipFKIndexes && d.f.IsForeignKeyIndex(prev) {
			continue
		}
		dropped = append(dropped, prev.Index())
	}

	for _, next := range nextIdx {
		if !matchedNext[next.Index()] {
			created = append(created, next.Index())
		}
	}
	return dropped, created, renamed
}

func sameIndexDefinition(a, b sqlschema.IndexWalker) bool {
	return a.Kind() == b.Kind() && equalStrings(a.ColumnNames(), b.ColumnNames())
}

func (d *differ) dropTables() {
	previous := d.db.schemas.Previous
	for _, id := range d.db.droppedTables {
		table := previous.WalkTable(id)
		if !d.caps.InlineForeignKeys {
			for _, fk := range table.ForeignKeys() {
				d.steps.dropForeignKeys = append(d.steps.dropForeignKeys, DropForeignKey{
					TableID:         id,
					ForeignKeyIndex: fk.Index(),
					ConstraintName:  fk.ConstraintName(),
				})
			}
		}
		d.steps.dropTables = append(d.steps.dropTables, DropTable{TableID: id})
	}
}

func (d *differ) createTables() {
	next := d.db.schemas.Next
	for _, id := range sortByDependencies(next, d.db.createdTables) {
		table := next.WalkTable(id)
		d.steps.createTables = append(d.steps.createTables, CreateTable{TableID: id})
		for _, idx := range table.Indexes() {
			d.steps.createIndexes = append(d.steps.createIndexes, CreateIndex{
				TableID:             id,
				IndexIndex:          idx.Index(),
				CausedByCreateTable: true,
			})
		}
		if d.caps.InlineForeignKeys {
			continue
		}
		for _, fk := range table.ForeignKeys() {
			d.steps.addForeignKeys = append(d.steps.addForeignKeys, AddForeignKey{TableID: id, ForeignKeyIndex: fk.Index()})
		}
	}
}

// sortByDependencies orders created tables so that referenced tables come
// first. Cycles are broken in schema order; their foreign keys are added by
// separate steps anyway.
func sortByDependencies(schema *sqlschema.Schema, ids []sqlschema.TableID) []sqlschema.TableID {
	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[schema.Tables[id].Name] = true
	}
	ready := func(id sqlschema.TableID) bool {
		t := schema.Tables[id]
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable != t.Name && pending[fk.ReferencedTable] {
				return false
			}
		}
		return true
	}

	out := make([]sqlschema.TableID, 0, len(ids))
	remaining := append([]sqlschema.TableID(nil), ids...)
	for len(remaining) > 0 {
		pick := 0
		for i, id := range remaining {
			if ready(id) {
				pick = i
				break
			}
		}
		id := remaining[pick]
		out = append(out, id)
		delete(pending, schema.Tables[id].Name)
		remaining = append(remaining[:pick], remaining[pick+1:]...)
	}
	return out
}
