package calculator

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

// Constraint name suffixes.
const (
	suffixPrimaryKey = "pkey"
	suffixUnique     = "key"
	suffixIndex      = "idx"
	suffixForeignKey = "fkey"
)

// ConstraintName builds {table}_{columns}_{suffix}, truncated to the
// identifier limit while keeping the suffix.
func ConstraintName(table string, columns []string, suffix string, limit int) string {
	parts := append([]string{table}, columns...)
	base := strings.Join(parts, "_")
	tail := "_" + suffix
	if limit > 0 && len(base)+len(tail) > limit {
		base = flavour.Truncate(base, limit-len(tail))
	}
	return base + tail
}

// PrimaryKeyName builds {table}_pkey.
func PrimaryKeyName(table string, limit int) string {
	return ConstraintName(table, nil, suffixPrimaryKey, limit)
}

// DefaultConstraintName is the SQL Server default constraint name.
func DefaultConstraintName(table, column string) string {
	return "DF__" + table + "__" + column
}

// SequenceName is the implicit sequence of an autoincrementing column.
func SequenceName(table, column string) string {
	return table + "_" + column + "_seq"
}
