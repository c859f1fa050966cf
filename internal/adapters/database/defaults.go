package database

import (
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

// nowExpressions are the spellings of now() across providers.
var nowExpressions = map[string]bool{
	"current_timestamp":   true,
	"current_timestamp()": true,
	"now()":               true,
	"getdate()":           true,
	"sysdatetime()":       true,
}

// ParseDefault turns a catalog default expression into a column default.
// Quoted strings, numbers and booleans become literals; now() spellings
// become DefaultNow; anything else is kept as a db generated expression.
// Callers strip provider casts before calling.
func ParseDefault(raw string, t sqlschema.ColumnType) *sqlschema.DefaultValue {
	expr := strings.TrimSpace(raw)
	if expr == "" || strings.EqualFold(expr, "NULL") {
		return nil
	}

	lower := strings.ToLower(expr)
	if nowExpressions[lower] || strings.HasPrefix(lower, "current_timestamp(") {
		if t.Family == sqlschema.FamilyDateTime {
			return sqlschema.NowDefault()
		}
		return sqlschema.DBGeneratedDefault(expr)
	}

	if s, ok := UnquoteString(expr); ok {
		return sqlschema.ValueDefault(valueKind(t), s)
	}

	switch t.Family {
	case sqlschema.FamilyInt, sqlschema.FamilyBigInt:
		if _, err := strconv.ParseInt(expr, 10, 64); err == nil {
			return sqlschema.ValueDefault(sqlschema.ValueInt, expr)
		}
	case sqlschema.FamilyFloat, sqlschema.FamilyDecimal:
		if _, err := strconv.ParseFloat(expr, 64); err == nil {
			return sqlschema.ValueDefault(sqlschema.ValueFloat, expr)
		}
	case sqlschema.FamilyBoolean:
		switch lower {
		case "true", "1", "b'1'":
			return sqlschema.ValueDefault(sqlschema.ValueBoolean, "true")
		case "false", "0", "b'0'":
			return sqlschema.ValueDefault(sqlschema.ValueBoolean, "false")
		}
	case sqlschema.FamilyEnum:
		return sqlschema.ValueDefault(sqlschema.ValueEnum, expr)
	}
	return sqlschema.DBGeneratedDefault(expr)
}

// UnquoteString strips single quotes and undoubles embedded quotes. An N
// prefix (SQL Server national strings) is accepted.
func UnquoteString(expr string) (string, bool) {
	if strings.HasPrefix(expr, "N'") {
		expr = expr[1:]
	}
	if len(expr) < 2 || expr[0] != '\'' || expr[len(expr)-1] != '\'' {
		return "", false
	}
	body := expr[1 : len(expr)-1]
	if strings.Contains(strings.ReplaceAll(body, "''", ""), "'") {
		return "", false
	}
	return strings.ReplaceAll(body, "''", "'"), true
}

// StripParens removes the redundant outer parentheses SQL Server wraps
// around default definitions.
func StripParens(expr string) string {
	expr = strings.TrimSpace(expr)
	for len(expr) >= 2 && expr[0] == '(' && expr[len(expr)-1] == ')' && balanced(expr[1:len(expr)-1]) {
		expr = strings.TrimSpace(expr[1 : len(expr)-1])
	}
	return expr
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

func valueKind(t sqlschema.ColumnType) sqlschema.ValueKind {
	switch t.Family {
	case sqlschema.FamilyInt, sqlschema.FamilyBigInt:
		return sqlschema.ValueInt
	case sqlschema.FamilyFloat, sqlschema.FamilyDecimal:
		return sqlschema.ValueFloat
	case sqlschema.FamilyBoolean:
		return sqlschema.ValueBoolean
	case sqlschema.FamilyEnum:
		return sqlschema.ValueEnum
	case sqlschema.FamilyJSON:
		return sqlschema.ValueJSON
	case sqlschema.FamilyBytes:
		return sqlschema.ValueBytes
	case sqlschema.FamilyDateTime:
		return sqlschema.ValueDateTime
	}
	return sqlschema.ValueString
}
