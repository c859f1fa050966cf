package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

const (
	tablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = $1 AND table_type = 'BASE TABLE'
ORDER BY table_name`

	enumsQuery = `SELECT t.typname, e.enumlabel
FROM pg_type t
JOIN pg_enum e ON t.oid = e.enumtypid
JOIN pg_namespace n ON n.oid = t.typnamespace
WHERE n.nspname = $1
ORDER BY t.typname, e.enumsortorder`

	columnsQuery = `SELECT table_name, column_name, data_type, udt_name, is_nullable,
       column_default, character_maximum_length, numeric_precision, numeric_scale,
       datetime_precision, is_identity
FROM information_schema.columns
WHERE table_schema = $1
ORDER BY table_name, ordinal_position`

	indexesQuery = `SELECT t.relname, i.relname, ix.indisunique, ix.indisprimary, a.attname
FROM pg_index ix
JOIN pg_class t ON t.oid = ix.indrelid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN LATERAL unnest(ix.indkey) WITH ORDINALITY AS k(attnum, ord) ON true
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = k.attnum
WHERE n.nspname = $1 AND t.relkind = 'r'
ORDER BY t.relname, i.relname, k.ord`

	foreignKeysQuery = `SELECT con.conname, cl.relname, att.attname, fcl.relname, fatt.attname,
       con.confdeltype, con.confupdtype
FROM pg_constraint con
JOIN pg_class cl ON cl.oid = con.conrelid
JOIN pg_namespace n ON n.oid = cl.relnamespace
JOIN pg_class fcl ON fcl.oid = con.confrelid
JOIN LATERAL unnest(con.conkey, con.confkey) WITH ORDINALITY AS k(col, fcol, ord) ON true
JOIN pg_attribute att ON att.attrelid = con.conrelid AND att.attnum = k.col
JOIN pg_attribute fatt ON fatt.attrelid = con.confrelid AND fatt.attnum = k.fcol
WHERE con.contype = 'f' AND n.nspname = $1
ORDER BY con.conname, k.ord`

	viewsQuery = `SELECT table_name, COALESCE(view_definition, '')
FROM information_schema.views
WHERE table_schema = $1
ORDER BY table_name`

	// Sequences owned by a column belong to that column.
	sequencesQuery = `SELECT c.relname
FROM pg_class c
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE c.relkind = 'S' AND n.nspname = $1
  AND NOT EXISTS (SELECT 1 FROM pg_depend d WHERE d.objid = c.oid AND d.deptype IN ('a', 'i'))
ORDER BY c.relname`
)

// pgTypes maps udt_name to the native type name.
var pgTypes = map[string]string{
	"int2":        "SmallInt",
	"int4":        "Integer",
	"int8":        "BigInt",
	"oid":         "Oid",
	"float4":      "Real",
	"float8":      "DoublePrecision",
	"numeric":     "Decimal",
	"money":       "Money",
	"bool":        "Boolean",
	"bpchar":      "Char",
	"varchar":     "VarChar",
	"text":        "Text",
	"citext":      "Citext",
	"xml":         "Xml",
	"inet":        "Inet",
	"bit":         "Bit",
	"varbit":      "VarBit",
	"uuid":        "Uuid",
	"timestamp":   "Timestamp",
	"timestamptz": "Timestamptz",
	"date":        "Date",
	"time":        "Time",
	"timetz":      "Timetz",
	"json":        "Json",
	"jsonb":       "JsonB",
	"bytea":       "ByteA",
}

// Referential action codes of pg_constraint.
var pgActions = map[string]string{
	"a": "NO ACTION",
	"r": "RESTRICT",
	"c": "CASCADE",
	"n": "SET NULL",
	"d": "SET DEFAULT",
}

var (
	nextvalExp = regexp.MustCompile(`^nextval\('(?:"?)([^'"]+)(?:"?)'(?:::regclass)?\)$`)
	castExp    = regexp.MustCompile(`::[A-Za-z_"][A-Za-z0-9_ "\.]*(\[\])?$`)
)

// Describe reads the schema from information_schema and pg_catalog.
func (a *PostgresAdapter) Describe(ctx context.Context) (*sqlschema.Schema, error) {
	b := database.NewSchemaBuilder(a.flavour)

	tables, err := a.QueryStrings(ctx, tablesQuery, a.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to describe tables: %w", err)
	}
	for _, t := range tables {
		b.AddTable(t)
	}

	enums := map[string]bool{}
	if err := a.each(ctx, enumsQuery, func(rows *sql.Rows) error {
		var name, value string
		if err := rows.Scan(&name, &value); err != nil {
			return err
		}
		enums[name] = true
		b.AddEnumValue(name, value)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe enums: %w", err)
	}

	if err := a.each(ctx, columnsQuery, func(rows *sql.Rows) error {
		table, col, err := scanColumn(rows, enums)
		if err != nil {
			return err
		}
		b.AddColumn(table, col)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe columns: %w", err)
	}

	if err := a.each(ctx, indexesQuery, func(rows *sql.Rows) error {
		var table, index, column string
		var unique, primary bool
		if err := rows.Scan(&table, &index, &unique, &primary, &column); err != nil {
			return err
		}
		switch {
		case primary:
			b.AddPrimaryKeyColumn(table, index, column)
		case unique:
			b.AddIndexColumn(table, index, sqlschema.IndexUnique, column)
		default:
			b.AddIndexColumn(table, index, sqlschema.IndexNormal, column)
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe indexes: %w", err)
	}

	if err := a.each(ctx, foreignKeysQuery, func(rows *sql.Rows) error {
		var row database.ForeignKeyColumn
		var onDelete, onUpdate string
		if err := rows.Scan(&row.Constraint, &row.Table, &row.Column, &row.ReferencedTable, &row.ReferencedColumn, &onDelete, &onUpdate); err != nil {
			return err
		}
		row.OnDelete, row.OnUpdate = pgActions[onDelete], pgActions[onUpdate]
		b.AddForeignKeyColumn(row)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe foreign keys: %w", err)
	}

	if err := a.each(ctx, viewsQuery, func(rows *sql.Rows) error {
		var name, def string
		if err := rows.Scan(&name, &def); err != nil {
			return err
		}
		b.AddView(name, def)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe views: %w", err)
	}

	sequences, err := a.QueryStrings(ctx, sequencesQuery, a.schema)
	if err != nil {
		return nil, fmt.Errorf("failed to describe sequences: %w", err)
	}
	for _, s := range sequences {
		b.AddSequence(s)
	}

	return b.Schema(), nil
}

func (a *PostgresAdapter) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := a.Query(ctx, query, a.schema)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanColumn(rows *sql.Rows, enums map[string]bool) (string, sqlschema.Column, error) {
	var (
		table, name, dataType, udt, nullable, identity string
		def                                            sql.NullString
		charLen, precision, scale, dtPrecision         sql.NullInt64
	)
	if err := rows.Scan(&table, &name, &dataType, &udt, &nullable, &def, &charLen, &precision, &scale, &dtPrecision, &identity); err != nil {
		return "", sqlschema.Column{}, err
	}

	col := sqlschema.Column{Name: name}
	col.Type = columnType(dataType, udt, enums, charLen, precision, scale, dtPrecision)
	switch {
	case dataType == "ARRAY":
		col.Type.Arity = sqlschema.List
	case nullable == "YES":
		col.Type.Arity = sqlschema.Nullable
	default:
		col.Type.Arity = sqlschema.Required
	}

	if identity == "YES" {
		col.AutoIncrement = true
	}
	if def.Valid {
		if m := nextvalExp.FindStringSubmatch(strings.TrimSpace(def.String)); m != nil {
			if m[1] == calculator.SequenceName(table, name) {
				col.AutoIncrement = true
			} else {
				col.Default = sqlschema.SequenceDefault(m[1])
			}
		} else {
			col.Default = parseDefault(def.String, col.Type)
		}
	}
	return table, col, nil
}

func columnType(dataType, udt string, enums map[string]bool, charLen, precision, scale, dtPrecision sql.NullInt64) sqlschema.ColumnType {
	base := strings.TrimPrefix(udt, "_")
	if dataType != "ARRAY" {
		base = udt
	}
	if enums[base] {
		return sqlschema.ColumnType{Family: sqlschema.FamilyEnum, EnumName: base}
	}

	name, ok := pgTypes[base]
	if !ok {
		return sqlschema.ColumnType{Family: sqlschema.FamilyUnsupported, FullDataType: base}
	}
	spec, _ := flavour.LookupNativeType(flavour.NewPostgres(), name)
	t := sqlschema.ColumnType{Family: spec.Family, NativeType: &sqlschema.NativeType{Name: name}}

	switch name {
	case "VarChar", "Char", "Bit", "VarBit":
		if charLen.Valid {
			t.NativeType.Args = []string{strconv.FormatInt(charLen.Int64, 10)}
			t.CharacterMaxLength = &charLen.Int64
		}
	case "Decimal":
		if precision.Valid && scale.Valid {
			t.NativeType.Args = []string{strconv.FormatInt(precision.Int64, 10), strconv.FormatInt(scale.Int64, 10)}
		}
	case "Timestamp", "Timestamptz", "Time", "Timetz":
		if dtPrecision.Valid {
			t.NativeType.Args = []string{strconv.FormatInt(dtPrecision.Int64, 10)}
		}
	}
	return t
}

// parseDefault strips the casts Postgres adds to stored defaults and parses
// array literals item by item.
func parseDefault(raw string, t sqlschema.ColumnType) *sqlschema.DefaultValue {
	expr := stripCast(strings.TrimSpace(raw))
	if t.Arity == sqlschema.List && strings.HasPrefix(expr, "ARRAY[") && strings.HasSuffix(expr, "]") {
		item := t
		item.Arity = sqlschema.Required
		var items []sqlschema.PrismaValue
		for _, part := range splitTopLevel(expr[len("ARRAY[") : len(expr)-1]) {
			d := database.ParseDefault(stripCast(part), item)
			if d == nil || d.Kind != sqlschema.DefaultValueLiteral {
				return sqlschema.DBGeneratedDefault(raw)
			}
			items = append(items, d.Value)
		}
		return &sqlschema.DefaultValue{Kind: sqlschema.DefaultValueLiteral, Value: sqlschema.PrismaValue{Kind: sqlschema.ValueList, Items: items}}
	}
	if strings.HasPrefix(expr, "(") {
		expr = database.StripParens(expr)
	}
	return database.ParseDefault(expr, t)
}

// stripCast removes trailing ::type casts outside of string literals.
func stripCast(expr string) string {
	for {
		loc := castExp.FindStringIndex(expr)
		if loc == nil || inLiteral(expr, loc[0]) {
			return expr
		}
		expr = strings.TrimSpace(expr[:loc[0]])
	}
}

func inLiteral(s string, pos int) bool {
	in := false
	for i := 0; i < pos; i++ {
		if s[i] == '\'' {
			in = !in
		}
	}
	return in
}

// splitTopLevel splits on commas outside of quotes and parentheses.
func splitTopLevel(s string) []string {
	var out []string
	depth, start := 0, 0
	quoted := false
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '\'':
			quoted = !quoted
		case quoted:
		case c == '(' || c == '[':
			depth++
		case c == ')' || c == ']':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	if rest := strings.TrimSpace(s[start:]); rest != "" {
		out = append(out, rest)
	}
	return out
}
