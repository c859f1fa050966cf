package differ

import (
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// ColumnChanges is a bit set of the differences between two columns.
type ColumnChanges uint8

const (
	ArityChanged ColumnChanges = 1 << iota
	TypeChanged
	DefaultChanged
	AutoIncrementChanged
	SequenceChanged
)

// Has reports whether every bit of flag is set.
func (c ColumnChanges) Has(flag ColumnChanges) bool { return c&flag == flag }

// Differs reports any change.
func (c ColumnChanges) Differs() bool { return c != 0 }

// OnlyDefaultChanged reports a change limited to the default.
func (c ColumnChanges) OnlyDefaultChanged() bool { return c == DefaultChanged }

func (c ColumnChanges) String() string {
	if c == 0 {
		return "none"
	}
	var parts []string
	names := []struct {
		flag ColumnChanges
		name string
	}{
		{ArityChanged, "arity"},
		{TypeChanged, "type"},
		{DefaultChanged, "default"},
		{AutoIncrementChanged, "autoincrement"},
		{SequenceChanged, "sequence"},
	}
	for _, n := range names {
		if c.Has(n.flag) {
			parts = append(parts, n.name)
		}
	}
	return strings.Join(parts, "|")
}

// diffColumns computes the changes between a column pair.
func diffColumns(f flavour.Flavour, cols MigrationPair[sqlschema.ColumnWalker]) (ColumnChanges, flavour.TypeChange) {
	var changes ColumnChanges
	prev, next := cols.Previous, cols.Next

	if prev.Arity() != next.Arity() {
		changes |= ArityChanged
	}
	typeChange := f.ColumnTypeChange(prev, next)
	if typeChange != flavour.NoTypeChange {
		changes |= TypeChanged
	}
	if !defaultsMatch(prev, next) {
		changes |= DefaultChanged
	}
	if prev.IsAutoIncrement() != next.IsAutoIncrement() {
		changes |= AutoIncrementChanged
		if f.Provider() == flavour.Postgres {
			changes |= SequenceChanged
		}
	}
	return changes, typeChange
}

func defaultsMatch(prev, next sqlschema.ColumnWalker) bool {
	pd, nd := prev.Default(), next.Default()

	// An unnamed dbgenerated() leaves whatever the database has.
	if nd != nil && nd.Kind == sqlschema.DefaultDBGenerated && nd.Expression == "" {
		return true
	}
	// Sequences back autoincrement on Postgres; the flag is compared separately.
	if pd != nil && pd.Kind == sqlschema.DefaultSequence && next.IsAutoIncrement() && nd == nil {
		return true
	}
	if pd == nil || nd == nil {
		return pd == nil && nd == nil
	}
	if pd.Kind != nd.Kind {
		return false
	}

	switch pd.Kind {
	case sqlschema.DefaultValueLiteral:
		return valuesMatch(pd.Value, nd.Value, next.Family())
	case sqlschema.DefaultDBGenerated:
		return normalizeExpression(pd.Expression) == normalizeExpression(nd.Expression)
	default:
		return true
	}
}

func valuesMatch(a, b sqlschema.PrismaValue, family sqlschema.ColumnTypeFamily) bool {
	if len(a.Items) > 0 || len(b.Items) > 0 {
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !valuesMatch(a.Items[i], b.Items[i], family) {
				return false
			}
		}
		return true
	}

	switch family {
	case sqlschema.FamilyInt, sqlschema.FamilyBigInt, sqlschema.FamilyFloat, sqlschema.FamilyDecimal:
		x, errA := strconv.ParseFloat(a.Raw, 64)
		y, errB := strconv.ParseFloat(b.Raw, 64)
		if errA == nil && errB == nil {
			return x == y
		}
	case sqlschema.FamilyBoolean:
		return normalizeBool(a.Raw) == normalizeBool(b.Raw)
	case sqlschema.FamilyJSON:
		return strings.Join(strings.Fields(a.Raw), "") == strings.Join(strings.Fields(b.Raw), "")
	}
	return a.Raw == b.Raw
}

func normalizeBool(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "1", "t":
		return "true"
	case "false", "0", "f":
		return "false"
	}
	return s
}

// normalizeExpression strips wrapping parentheses and case so that
// expressions echoed back by the database compare equal.
func normalizeExpression(s string) string {
	s = strings.TrimSpace(s)
	for len(s) >= 2 && s[0] == '(' && s[len(s)-1] == ')' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	return strings.ToLower(s)
}
