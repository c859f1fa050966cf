package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

const (
	tablesQuery = `SELECT t.name FROM sys.tables t
WHERE SCHEMA_NAME(t.schema_id) = @p1 AND t.is_ms_shipped = 0
ORDER BY t.name`

	columnsQuery = `SELECT t.name, c.name, ty.name, c.max_length, c.precision, c.scale,
       c.is_nullable, c.is_identity, COALESCE(dc.name, ''), dc.definition
FROM sys.columns c
JOIN sys.tables t ON t.object_id = c.object_id
JOIN sys.types ty ON ty.user_type_id = c.user_type_id
LEFT JOIN sys.default_constraints dc ON dc.object_id = c.default_object_id
WHERE SCHEMA_NAME(t.schema_id) = @p1
ORDER BY t.name, c.column_id`

	indexesQuery = `SELECT t.name, i.name, i.is_primary_key, i.is_unique, c.name
FROM sys.indexes i
JOIN sys.tables t ON t.object_id = i.object_id
JOIN sys.index_columns ic ON ic.object_id = i.object_id AND ic.index_id = i.index_id
JOIN sys.columns c ON c.object_id = ic.object_id AND c.column_id = ic.column_id
WHERE SCHEMA_NAME(t.schema_id) = @p1 AND i.name IS NOT NULL AND ic.is_included_column = 0
ORDER BY t.name, i.name, ic.key_ordinal`

	foreignKeysQuery = `SELECT fk.name, tp.name, cp.name, tr.name, cr.name,
       fk.delete_referential_action_desc, fk.update_referential_action_desc
FROM sys.foreign_keys fk
JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
JOIN sys.tables tp ON tp.object_id = fkc.parent_object_id
JOIN sys.columns cp ON cp.object_id = fkc.parent_object_id AND cp.column_id = fkc.parent_column_id
JOIN sys.tables tr ON tr.object_id = fkc.referenced_object_id
JOIN sys.columns cr ON cr.object_id = fkc.referenced_object_id AND cr.column_id = fkc.referenced_column_id
WHERE SCHEMA_NAME(fk.schema_id) = @p1
ORDER BY fk.name, fkc.constraint_column_id`

	viewsQuery = `SELECT v.name, COALESCE(m.definition, '')
FROM sys.views v
LEFT JOIN sys.sql_modules m ON m.object_id = v.object_id
WHERE SCHEMA_NAME(v.schema_id) = @p1
ORDER BY v.name`
)

// DATETIME2, TIME and DATETIMEOFFSET report this scale when declared bare.
const defaultTimeScale = 7

var mssqlTypes = map[string]string{
	"tinyint":          "TinyInt",
	"smallint":         "SmallInt",
	"int":              "Int",
	"bigint":           "BigInt",
	"bit":              "Bit",
	"real":             "Real",
	"float":            "Float",
	"decimal":          "Decimal",
	"numeric":          "Decimal",
	"money":            "Money",
	"smallmoney":       "SmallMoney",
	"char":             "Char",
	"nchar":            "NChar",
	"varchar":          "VarChar",
	"nvarchar":         "NVarChar",
	"text":             "Text",
	"ntext":            "NText",
	"xml":              "Xml",
	"uniqueidentifier": "UniqueIdentifier",
	"date":             "Date",
	"time":             "Time",
	"smalldatetime":    "SmallDateTime",
	"datetime":         "DateTime",
	"datetime2":        "DateTime2",
	"datetimeoffset":   "DateTimeOffset",
	"binary":           "Binary",
	"varbinary":        "VarBinary",
	"image":            "Image",
}

// Describe reads the schema from the sys catalog views.
func (a *MSSQLAdapter) Describe(ctx context.Context) (*sqlschema.Schema, error) {
	b := database.NewSchemaBuilder(a.flavour)

	tables, err := a.QueryStrings(ctx, tablesQuery, a.Schema())
	if err != nil {
		return nil, fmt.Errorf("failed to describe tables: %w", err)
	}
	for _, t := range tables {
		b.AddTable(t)
	}

	if err := a.each(ctx, columnsQuery, func(rows *sql.Rows) error {
		var (
			table, name, typeName, defaultName string
			maxLength                          int64
			precision, scale                   int64
			nullable, identity                 bool
			definition                         sql.NullString
		)
		if err := rows.Scan(&table, &name, &typeName, &maxLength, &precision, &scale, &nullable, &identity, &defaultName, &definition); err != nil {
			return err
		}
		col := sqlschema.Column{
			Name:          name,
			Type:          columnType(typeName, maxLength, precision, scale),
			AutoIncrement: identity,
		}
		if nullable {
			col.Type.Arity = sqlschema.Nullable
		}
		if definition.Valid {
			if d := database.ParseDefault(database.StripParens(definition.String), col.Type); d != nil {
				d.ConstraintName = defaultName
				col.Default = d
			}
		}
		b.AddColumn(table, col)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to describe columns: %w", err)
	}

	if err := a.each(ctx, indexesQuery, func(rows *sql.Rows) error {
		var table, index, column string
		var primary, unique bool
		if err := rows.Scan(&table, &index, &primary, &unique, &column); err != nil {
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

func (a *MSSQLAdapter) each(ctx context.Context, query string, scan func(*sql.Rows) error) error {
	rows, err := a.Query(ctx, query, a.Schema())
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

// columnType maps a sys.types name and the sys.columns size attributes to a
// column type. maxLength is in bytes and -1 for MAX.
func columnType(typeName string, maxLength, precision, scale int64) sqlschema.ColumnType {
	name, ok := mssqlTypes[strings.ToLower(typeName)]
	if !ok {
		return sqlschema.ColumnType{Family: sqlschema.FamilyUnsupported, FullDataType: typeName}
	}
	spec, _ := flavour.LookupNativeType(flavour.NewMSSQL(), name)
	t := sqlschema.ColumnType{Family: spec.Family, NativeType: &sqlschema.NativeType{Name: name}}

	switch name {
	case "Char", "VarChar", "Binary", "VarBinary":
		t.NativeType.Args = []string{lengthArg(maxLength)}
		if maxLength > 0 {
			t.CharacterMaxLength = &maxLength
		}
	case "NChar", "NVarChar":
		if maxLength > 0 {
			chars := maxLength / 2
			t.NativeType.Args = []string{strconv.FormatInt(chars, 10)}
			t.CharacterMaxLength = &chars
		} else {
			t.NativeType.Args = []string{"Max"}
		}
	case "Float":
		t.NativeType.Args = []string{strconv.FormatInt(precision, 10)}
	case "Decimal":
		t.NativeType.Args = []string{strconv.FormatInt(precision, 10), strconv.FormatInt(scale, 10)}
	case "Time", "DateTime2", "DateTimeOffset":
		if scale != defaultTimeScale {
			t.NativeType.Args = []string{strconv.FormatInt(scale, 10)}
		}
	}
	return t
}

func lengthArg(maxLength int64) string {
	if maxLength < 0 {
		return "Max"
	}
	return strconv.FormatInt(maxLength, 10)
}
