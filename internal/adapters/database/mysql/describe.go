package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

const (
	tablesQuery = `SELECT table_name FROM information_schema.tables
WHERE table_schema = ? AND table_type = 'BASE TABLE'
ORDER BY table_name`

	columnsQuery = `SELECT table_name, column_name, data_type, column_type, is_nullable,
       column_default, character_maximum_length, numeric_precision, numeric_scale,
       datetime_precision, extra
FROM information_schema.columns
WHERE table_schema = ?
ORDER BY table_name, ordinal_position`

	indexesQuery = `SELECT table_name, index_name, non_unique, column_name, index_type
FROM information_schema.statistics
WHERE table_schema = ?
ORDER BY table_name, index_name, seq_in_index`

	foreignKeysQuery = `SELECT kcu.constraint_name, kcu.table_name, kcu.column_name,
       kcu.referenced_table_name, kcu.referenced_column_name,
       rc.delete_rule, rc.update_rule
FROM information_schema.key_column_usage kcu
JOIN information_schema.referential_constraints rc
  ON rc.constraint_schema = kcu.table_schema
 AND rc.constraint_name = kcu.constraint_name
 AND rc.table_name = kcu.table_name
WHERE kcu.table_schema = ? AND kcu.referenced_table_name IS NOT NULL
ORDER BY kcu.constraint_name, kcu.ordinal_position`

	viewsQuery = `SELECT table_name, COALESCE(view_definition, '')
FROM information_schema.views
WHERE table_schema = ?
ORDER BY table_name`
)

// mysqlTypes maps data_type to the native type name.
var mysqlTypes = map[string]string{
	"tinyint":    "TinyInt",
	"smallint":   "SmallInt",
	"mediumint":  "MediumInt",
	"int":        "Int",
	"integer":    "Int",
	"bigint":     "BigInt",
	"float":      "Float",
	"double":     "Double",
	"decimal":    "Decimal",
	"bit":        "Bit",
	"char":       "Char",
	"varchar":    "VarChar",
	"tinytext":   "TinyText",
	"text":       "Text",
	"mediumtext": "MediumText",
	"longtext":   "LongText",
	"date":       "Date",
	"time":       "Time",
	"datetime":   "DateTime",
	"timestamp":  "Timestamp",
	"year":       "Year",
	"json":       "Json",
	"binary":     "Binary",
	"varbinary":  "VarBinary",
	"tinyblob":   "TinyBlob",
	"blob":       "Blob",
	"mediumblob": "MediumBlob",
	"longblob":   "LongBlob",
}

var enumValueExp = regexp.MustCompile(`'((?:[^']|'')*)'`)

// typeCatalog resolves native type families; they do not depend on the
// server version.
var typeCatalog = flavour.NewMySQL(flavour.MySQLOptions{})

// Describe reads the schema of the connected database from
// information_schema.
func (a *MySQLAdapter) Describe(ctx context.Context) (*sqlschema.Schema, error) {
	b := database.NewSchemaBuilder(a.flavour)
	schema := a.cfg.DBName

	tables, err := a.QueryStrings(ctx, tablesQuery, schema)
	if err != nil {
		return nil, fmt.Errorf("failed to describe tables: %w", err)
	}
	for _, t := range tables {
		b.AddTable(t)
	}

	if err := a.each(ctx, columnsQuery, func(rows *sql.Rows) error {
		table, col, enum, err := a.scanColumn(rows)
		if err != nil {
			return err
		}
		if a.flavour.TableShouldBeIgnored(table) {
			return nil
		}
		if enum != nil {
			b.AddEnum(*enum)
		}
		b.AddColumn(table, col)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe columns: %w", err)
	}

	if err := a.each(ctx, indexesQuery, func(rows *sql.Rows) error {
		var table, index, column, indexType string
		var nonUnique int
		if err := rows.Scan(&table, &index, &nonUnique, &column, &indexType); err != nil {
			return err
		}
		switch {
		case index == "PRIMARY":
			b.AddPrimaryKeyColumn(table, "", column)
		case strings.EqualFold(indexType, "FULLTEXT"):
			b.AddIndexColumn(table, index, sqlschema.IndexFulltext, column)
		case nonUnique == 0:
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
		if err := rows.Scan(&row.Constraint, &row.Table, &row.Column, &row.ReferencedTable, &row.ReferencedColumn, &row.OnDelete, &row.OnUpdate); err != nil {
			return err
		}
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

	return b.Schema(), nil
}

func (a *MySQLAdapter) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := a.Query(ctx, query, a.cfg.DBName)
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

func (a *MySQLAdapter) scanColumn(rows *sql.Rows) (string, sqlschema.Column, *sqlschema.Enum, error) {
	var (
		table, name, dataType, columnType, nullable, extra string
		def                                                sql.NullString
		charLen, precision, scale, dtPrecision             sql.NullInt64
	)
	if err := rows.Scan(&table, &name, &dataType, &columnType, &nullable, &def, &charLen, &precision, &scale, &dtPrecision, &extra); err != nil {
		return "", sqlschema.Column{}, nil, err
	}

	col := sqlschema.Column{Name: name}
	var enum *sqlschema.Enum
	if strings.EqualFold(dataType, "enum") {
		enumName := flavour.MySQLEnumName(table, name)
		enum = &sqlschema.Enum{Name: enumName, Values: EnumValues(columnType)}
		col.Type = sqlschema.ColumnType{Family: sqlschema.FamilyEnum, EnumName: enumName}
	} else {
		col.Type = nativeColumnType(dataType, columnType, charLen, precision, scale, dtPrecision)
	}

	if nullable == "YES" {
		col.Type.Arity = sqlschema.Nullable
	}
	col.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
	if def.Valid {
		col.Default = parseDefault(def.String, extra, col.Type)
	}
	return table, col, enum, nil
}

// EnumValues extracts the values of an enum('a','b') column type.
func EnumValues(columnType string) []string {
	var values []string
	for _, m := range enumValueExp.FindAllStringSubmatch(columnType, -1) {
		values = append(values, strings.ReplaceAll(m[1], "''", "'"))
	}
	return values
}

func nativeColumnType(dataType, columnType string, charLen, precision, scale, dtPrecision sql.NullInt64) sqlschema.ColumnType {
	dataType = strings.ToLower(dataType)
	columnType = strings.ToLower(columnType)

	if columnType == "tinyint(1)" || dataType == "boolean" {
		return sqlschema.ColumnType{Family: sqlschema.FamilyBoolean, NativeType: &sqlschema.NativeType{Name: "Boolean"}}
	}
	name, ok := mysqlTypes[dataType]
	if !ok {
		return sqlschema.ColumnType{Family: sqlschema.FamilyUnsupported, FullDataType: columnType}
	}
	if strings.Contains(columnType, "unsigned") {
		if _, ok := flavour.LookupNativeType(typeCatalog, "Unsigned"+name); ok {
			name = "Unsigned" + name
		}
	}
	spec, _ := flavour.LookupNativeType(typeCatalog, name)
	t := sqlschema.ColumnType{Family: spec.Family, NativeType: &sqlschema.NativeType{Name: name}}

	switch name {
	case "Char", "VarChar", "Binary", "VarBinary":
		if charLen.Valid {
			t.NativeType.Args = []string{strconv.FormatInt(charLen.Int64, 10)}
			t.CharacterMaxLength = &charLen.Int64
		}
	case "Bit":
		if precision.Valid {
			t.NativeType.Args = []string{strconv.FormatInt(precision.Int64, 10)}
		}
	case "Decimal":
		if precision.Valid && scale.Valid {
			t.NativeType.Args = []string{strconv.FormatInt(precision.Int64, 10), strconv.FormatInt(scale.Int64, 10)}
		}
	case "DateTime", "Timestamp", "Time":
		if dtPrecision.Valid && dtPrecision.Int64 > 0 {
			t.NativeType.Args = []string{strconv.FormatInt(dtPrecision.Int64, 10)}
		}
	}
	return t
}

// parseDefault reads column_default. MySQL 8 stores string defaults without
// quotes and marks expressions with DEFAULT_GENERATED; MariaDB quotes
// strings and spells NULL.
func parseDefault(raw, extra string, t sqlschema.ColumnType) *sqlschema.DefaultValue {
	expr := strings.TrimSpace(raw)
	generated := strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED")
	if generated {
		return database.ParseDefault(database.StripParens(expr), t)
	}
	if _, quoted := database.UnquoteString(expr); quoted || strings.EqualFold(expr, "NULL") {
		return database.ParseDefault(expr, t)
	}

	lower := strings.ToLower(expr)
	if strings.HasPrefix(lower, "current_timestamp") || lower == "now()" {
		return database.ParseDefault(expr, t)
	}
	switch t.Family {
	case sqlschema.FamilyString, sqlschema.FamilyDateTime, sqlschema.FamilyJSON, sqlschema.FamilyBytes, sqlschema.FamilyEnum:
		return database.ParseDefault("'"+strings.ReplaceAll(expr, "'", "''")+"'", t)
	}
	return database.ParseDefault(expr, t)
}
