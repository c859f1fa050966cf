// Package destructive detects the steps of a migration that can lose data
// or fail on existing rows.
package destructive

import (
	"context"
	"fmt"
	"sort"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
)

// Diagnostic is a warning or an unexecutable step, tied to the step that
// causes it.
type Diagnostic struct {
	Message   string `json:"message"`
	StepIndex int    `json:"stepIndex"`
}

// Diagnostics are the results of a check, ordered by step index.
type Diagnostics struct {
	Warnings     []Diagnostic `json:"warnings"`
	Unexecutable []Diagnostic `json:"unexecutableSteps"`
}

// HasWarnings reports any warning.
func (d Diagnostics) HasWarnings() bool { return len(d.Warnings) > 0 }

// HasUnexecutable reports any unexecutable step.
func (d Diagnostics) HasUnexecutable() bool { return len(d.Unexecutable) > 0 }

// IsEmpty reports a plan without findings.
func (d Diagnostics) IsEmpty() bool { return !d.HasWarnings() && !d.HasUnexecutable() }

// TableCounts is the probe result of one table.
type TableCounts struct {
	Rows int64
	// NonNull counts the non-null values of each probed column.
	NonNull map[string]int64
}

// Inspector runs the read-only probes of a check against a live database.
type Inspector interface {
	// CountRows counts the rows of table and the non-null values of columns
	// in a single query.
	CountRows(ctx context.Context, table string, columns []string) (TableCounts, error)
	// CountValues counts the rows where column holds one of values.
	CountValues(ctx context.Context, table, column string, values []string) (int64, error)
}

type planItem struct {
	step  int
	check check
}

// Plan is the list of checks derived from a migration.
type Plan struct {
	items []planItem
}

// Len returns the number of checks.
func (p *Plan) Len() int { return len(p.items) }

// NewPlan derives the checks of a migration.
func NewPlan(m *differ.Migration) *Plan {
	p := &Plan{}
	previous, next := m.Schemas.Previous, m.Schemas.Next

	for i, step := range m.Steps {
		add := func(c check) { p.items = append(p.items, planItem{step: i, check: c}) }

		switch s := step.(type) {
		case differ.DropTable:
			add(dropTable{name: previous.Tables[s.TableID].Name})
		case differ.AlterTable:
			prevTable := previous.WalkTable(s.TableIDs.Previous)
			nextTable := next.WalkTable(s.TableIDs.Next)
			for _, change := range s.Changes {
				tableChangeChecks(prevTable, nextTable, change, add)
			}
		case differ.RedefineTables:
			for _, rt := range s.Tables {
				redefineChecks(previous.WalkTable(rt.TableIDs.Previous), next.WalkTable(rt.TableIDs.Next), rt, add)
			}
		case differ.AlterEnum:
			if len(s.Dropped) == 0 {
				continue
			}
			prevEnum := previous.WalkEnum(s.EnumIDs.Previous)
			c := enumValuesRemoved{enum: prevEnum.Name(), values: s.Dropped}
			for _, col := range prevEnum.Columns() {
				c.users = append(c.users, columnRef{table: col.Table().Name(), column: col.Name()})
			}
			add(c)
		}
	}
	return p
}

func tableChangeChecks(prev, next sqlschema.TableWalker, change differ.TableChange, add func(check)) {
	switch c := change.(type) {
	case differ.DropColumn:
		add(dropColumn{tableName: prev.Name(), column: prev.ColumnAt(c.ColumnIndex).Name()})
	case differ.AddColumn:
		col := next.ColumnAt(c.ColumnIndex)
		if col.IsRequired() && !col.HasDefaultOrIsGenerated() {
			add(addRequiredColumn{tableName: next.Name(), column: col.Name()})
		}
	case differ.AlterColumn:
		alterColumnChecks(prev.ColumnAt(c.ColumnIndexes.Previous), next.ColumnAt(c.ColumnIndexes.Next), c.Changes, c.TypeChange, add)
	case differ.DropAndRecreateColumn:
		col := next.ColumnAt(c.ColumnIndexes.Next)
		add(dropAndRecreate{tableName: next.Name(), column: col.Name(), required: col.IsRequired() && col.Default() == nil})
	case differ.DropPrimaryKey:
		add(primaryKeyChange{name: prev.Name()})
	case differ.AddPrimaryKey:
		// A replaced key already warned on its DropPrimaryKey.
		if prev.PrimaryKey() == nil {
			add(primaryKeyChange{name: next.Name()})
		}
	}
}

func alterColumnChecks(prev, next sqlschema.ColumnWalker, changes differ.ColumnChanges, typeChange flavour.TypeChange, add func(check)) {
	table := prev.Table().Name()
	if changes.Has(differ.ArityChanged) && !prev.IsRequired() && next.IsRequired() {
		add(madeRequired{tableName: table, column: prev.Name()})
	}
	switch typeChange {
	case flavour.RiskyCast:
		add(riskyCast{tableName: table, column: prev.Name(), previous: typeName(prev), next: typeName(next)})
	case flavour.NotCastable:
		add(dropAndRecreate{tableName: table, column: prev.Name(), required: next.IsRequired() && next.Default() == nil})
	}
}

func redefineChecks(prev, next sqlschema.TableWalker, rt differ.RedefineTable, add func(check)) {
	if rt.DroppedPrimaryKey {
		add(primaryKeyChange{name: prev.Name()})
	}
	for _, idx := range rt.DroppedColumns {
		add(dropColumn{tableName: prev.Name(), column: prev.ColumnAt(idx).Name()})
	}
	for _, cp := range rt.ColumnPairs {
		p, n := prev.ColumnAt(cp.ColumnIndexes.Previous), next.ColumnAt(cp.ColumnIndexes.Next)
		if p.IsEnum() && n.IsEnum() && p.EnumName() == n.EnumName() {
			// Enum value removals are reported on the enum.
			continue
		}
		alterColumnChecks(p, n, cp.Changes, cp.TypeChange, add)
	}
	for _, idx := range rt.AddedColumns {
		col := next.ColumnAt(idx)
		if col.IsRequired() && !col.HasDefaultOrIsGenerated() {
			add(addRequiredColumn{tableName: next.Name(), column: col.Name()})
		}
	}
}

func typeName(c sqlschema.ColumnWalker) string {
	t := c.Type()
	switch {
	case t.Family == sqlschema.FamilyEnum:
		return t.EnumName
	case t.NativeType != nil:
		return t.NativeType.String()
	case t.FullDataType != "":
		return t.FullDataType
	default:
		return t.Family.String()
	}
}

// PureCheck evaluates the plan without a database: every check is reported
// as possible.
func (p *Plan) PureCheck() Diagnostics {
	var d Diagnostics
	for _, item := range p.items {
		msg, fires := item.check.evaluate(nil, nil)
		if fires {
			d.add(item, msg)
		}
	}
	d.sort()
	return d
}

// Execute probes the database and reports the checks that apply to the
// current data. One probe is issued per table. A failed probe degrades the
// affected checks to their pure form.
func (p *Plan) Execute(ctx context.Context, inspector Inspector) (Diagnostics, error) {
	columnsByTable := map[string][]string{}
	var tables []string
	for _, item := range p.items {
		name := item.check.table()
		if name == "" {
			continue
		}
		if _, ok := columnsByTable[name]; !ok {
			tables = append(tables, name)
			columnsByTable[name] = nil
		}
		columnsByTable[name] = appendUnique(columnsByTable[name], item.check.columns()...)
	}

	states := make(map[string]*tableState, len(tables))
	for _, name := range tables {
		if err := ctx.Err(); err != nil {
			return Diagnostics{}, fmt.Errorf("failed to inspect table %s: %w", name, err)
		}
		counts, err := inspector.CountRows(ctx, name, columnsByTable[name])
		if err != nil {
			debug.Debug("destructive change probe failed", "table", name, "error", err)
			continue
		}
		states[name] = &tableState{rows: counts.Rows, nonNull: counts.NonNull}
	}

	var d Diagnostics
	for _, item := range p.items {
		var enumCount *int64
		if ev, ok := item.check.(enumValuesRemoved); ok {
			enumCount = countEnumValues(ctx, inspector, ev)
		}
		msg, fires := item.check.evaluate(states[item.check.table()], enumCount)
		if fires {
			d.add(item, msg)
		}
	}
	d.sort()
	return d, nil
}

func countEnumValues(ctx context.Context, inspector Inspector, c enumValuesRemoved) *int64 {
	var total int64
	for _, u := range c.users {
		n, err := inspector.CountValues(ctx, u.table, u.column, c.values)
		if err != nil {
			debug.Debug("enum value probe failed", "table", u.table, "column", u.column, "error", err)
			return nil
		}
		total += n
	}
	return &total
}

func (d *Diagnostics) add(item planItem, msg string) {
	diag := Diagnostic{Message: msg, StepIndex: item.step}
	if item.check.unexecutable() {
		d.Unexecutable = append(d.Unexecutable, diag)
	} else {
		d.Warnings = append(d.Warnings, diag)
	}
}

func (d *Diagnostics) sort() {
	sort.SliceStable(d.Warnings, func(i, j int) bool { return d.Warnings[i].StepIndex < d.Warnings[j].StepIndex })
	sort.SliceStable(d.Unexecutable, func(i, j int) bool { return d.Unexecutable[i].StepIndex < d.Unexecutable[j].StepIndex })
}

func appendUnique(list []string, values ...string) []string {
	for _, v := range values {
		found := false
		for _, existing := range list {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			list = append(list, v)
		}
	}
	return list
}
