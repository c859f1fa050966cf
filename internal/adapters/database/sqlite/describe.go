package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/calculator"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

var (
	fkConstraintExp   = regexp.MustCompile(`(?i)CONSTRAINT\s+"((?:[^"]|"")+)"\s+FOREIGN\s+KEY\s*\(([^)]*)\)`)
	autoincrementExp  = regexp.MustCompile(`(?i)\bAUTOINCREMENT\b`)
	sqliteTypeArgsExp = regexp.MustCompile(`\(.*\)$`)
)

type tableDef struct {
	name string
	sql  string
}

// Describe reads the schema from sqlite_master and the table pragmas. Every
// result set is drained before the next query: the pool has one connection.
func (a *SQLiteAdapter) Describe(ctx context.Context) (*sqlschema.Schema, error) {
	b := database.NewSchemaBuilder(a.flavour)

	tables, views, err := a.masterEntries(ctx)
	if err != nil {
		return nil, err
	}
	for _, v := range views {
		b.AddView(v.name, v.sql)
	}

	for _, t := range tables {
		if a.flavour.TableShouldBeIgnored(t.name) {
			continue
		}
		b.AddTable(t.name)
		if err := a.describeColumns(ctx, b, t); err != nil {
			return nil, err
		}
		if err := a.describeIndexes(ctx, b, t.name); err != nil {
			return nil, err
		}
		if err := a.describeForeignKeys(ctx, b, t); err != nil {
			return nil, err
		}
	}
	return b.Schema(), nil
}

func (a *SQLiteAdapter) masterEntries(ctx context.Context) (tables, views []tableDef, err error) {
	rows, err := a.Query(ctx, "SELECT type, name, COALESCE(sql, '') FROM sqlite_master WHERE type IN ('table', 'view') ORDER BY name")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read sqlite_master: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var def tableDef
		if err := rows.Scan(&kind, &def.name, &def.sql); err != nil {
			return nil, nil, fmt.Errorf("failed to read sqlite_master: %w", err)
		}
		if kind == "view" {
			views = append(views, def)
		} else {
			tables = append(tables, def)
		}
	}
	return tables, views, rows.Err()
}

type pragmaColumn struct {
	name       string
	declType   string
	notNull    bool
	defaultSQL sql.NullString
	pk         int
}

func (a *SQLiteAdapter) describeColumns(ctx context.Context, b *database.SchemaBuilder, t tableDef) error {
	rows, err := a.Query(ctx, "PRAGMA table_info("+quote(t.name)+")")
	if err != nil {
		return fmt.Errorf("failed to describe columns of %s: %w", t.name, err)
	}
	var cols []pragmaColumn
	for rows.Next() {
		var cid int
		var c pragmaColumn
		if err := rows.Scan(&cid, &c.name, &c.declType, &c.notNull, &c.defaultSQL, &c.pk); err != nil {
			rows.Close()
			return fmt.Errorf("failed to describe columns of %s: %w", t.name, err)
		}
		cols = append(cols, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to describe columns of %s: %w", t.name, err)
	}

	var pk []pragmaColumn
	for _, c := range cols {
		if c.pk > 0 {
			pk = append(pk, c)
		}
	}
	sort.Slice(pk, func(i, j int) bool { return pk[i].pk < pk[j].pk })
	autoincrement := len(pk) == 1 && autoincrementExp.MatchString(t.sql)

	for _, c := range cols {
		col := sqlschema.Column{Name: c.name, Type: columnType(c.declType)}
		if c.notNull || c.pk > 0 {
			col.Type.Arity = sqlschema.Required
		} else {
			col.Type.Arity = sqlschema.Nullable
		}
		if c.defaultSQL.Valid {
			col.Default = database.ParseDefault(c.defaultSQL.String, col.Type)
		}
		col.AutoIncrement = autoincrement && c.pk == 1 && col.Type.Family.IsInteger()
		b.AddColumn(t.name, col)
	}
	for _, c := range pk {
		b.AddPrimaryKeyColumn(t.name, "", c.name)
	}
	return nil
}

// columnType maps a declared type to a family by the SQLite affinity rules,
// with the Prisma spellings recognised first.
func columnType(decl string) sqlschema.ColumnType {
	upper := strings.ToUpper(strings.TrimSpace(sqliteTypeArgsExp.ReplaceAllString(decl, "")))
	switch upper {
	case "INTEGER", "INT":
		return sqlschema.ColumnType{Family: sqlschema.FamilyInt}
	case "BIGINT":
		return sqlschema.ColumnType{Family: sqlschema.FamilyBigInt}
	case "REAL", "FLOAT", "DOUBLE", "DOUBLE PRECISION":
		return sqlschema.ColumnType{Family: sqlschema.FamilyFloat}
	case "DECIMAL", "NUMERIC":
		return sqlschema.ColumnType{Family: sqlschema.FamilyDecimal}
	case "BOOLEAN", "BOOL":
		return sqlschema.ColumnType{Family: sqlschema.FamilyBoolean}
	case "TEXT", "VARCHAR", "CHAR", "CLOB", "STRING":
		return sqlschema.ColumnType{Family: sqlschema.FamilyString}
	case "DATETIME", "DATE", "TIMESTAMP":
		return sqlschema.ColumnType{Family: sqlschema.FamilyDateTime}
	case "BLOB":
		return sqlschema.ColumnType{Family: sqlschema.FamilyBytes}
	}
	switch {
	case strings.Contains(upper, "INT"):
		return sqlschema.ColumnType{Family: sqlschema.FamilyInt}
	case strings.Contains(upper, "CHAR"), strings.Contains(upper, "TEXT"):
		return sqlschema.ColumnType{Family: sqlschema.FamilyString}
	}
	return sqlschema.ColumnType{Family: sqlschema.FamilyUnsupported, FullDataType: decl}
}

type pragmaIndex struct {
	name   string
	unique bool
	origin string
}

func (a *SQLiteAdapter) describeIndexes(ctx context.Context, b *database.SchemaBuilder, table string) error {
	rows, err := a.Query(ctx, "PRAGMA index_list("+quote(table)+")")
	if err != nil {
		return fmt.Errorf("failed to describe indexes of %s: %w", table, err)
	}
	var indexes []pragmaIndex
	for rows.Next() {
		var seq int
		var partial bool
		var idx pragmaIndex
		if err := rows.Scan(&seq, &idx.name, &idx.unique, &idx.origin, &partial); err != nil {
			rows.Close()
			return fmt.Errorf("failed to describe indexes of %s: %w", table, err)
		}
		// Primary keys and inline UNIQUE constraints have implicit indexes.
		if idx.origin == "pk" || strings.HasPrefix(idx.name, "sqlite_autoindex_") {
			continue
		}
		indexes = append(indexes, idx)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to describe indexes of %s: %w", table, err)
	}

	for _, idx := range indexes {
		kind := sqlschema.IndexNormal
		if idx.unique {
			kind = sqlschema.IndexUnique
		}
		columns, err := a.indexColumns(ctx, idx.name)
		if err != nil {
			return err
		}
		for _, c := range columns {
			b.AddIndexColumn(table, idx.name, kind, c)
		}
	}
	return nil
}

func (a *SQLiteAdapter) indexColumns(ctx context.Context, index string) ([]string, error) {
	rows, err := a.Query(ctx, "PRAGMA index_info("+quote(index)+")")
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", index, err)
	}
	defer rows.Close()

	type entry struct {
		seq  int
		name string
	}
	var entries []entry
	for rows.Next() {
		var e entry
		var cid int
		var name sql.NullString
		if err := rows.Scan(&e.seq, &cid, &name); err != nil {
			return nil, fmt.Errorf("failed to describe index %s: %w", index, err)
		}
		e.name = name.String
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })

	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.name
	}
	return out, rows.Err()
}

type pragmaForeignKey struct {
	id, seq            int
	table, from, to    string
	onUpdate, onDelete string
}

func (a *SQLiteAdapter) describeForeignKeys(ctx context.Context, b *database.SchemaBuilder, t tableDef) error {
	rows, err := a.Query(ctx, "PRAGMA foreign_key_list("+quote(t.name)+")")
	if err != nil {
		return fmt.Errorf("failed to describe foreign keys of %s: %w", t.name, err)
	}
	var fks []pragmaForeignKey
	for rows.Next() {
		var fk pragmaForeignKey
		var to sql.NullString
		var match string
		if err := rows.Scan(&fk.id, &fk.seq, &fk.table, &fk.from, &to, &fk.onUpdate, &fk.onDelete, &match); err != nil {
			rows.Close()
			return fmt.Errorf("failed to describe foreign keys of %s: %w", t.name, err)
		}
		fk.to = to.String
		fks = append(fks, fk)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to describe foreign keys of %s: %w", t.name, err)
	}

	sort.Slice(fks, func(i, j int) bool {
		if fks[i].id != fks[j].id {
			return fks[i].id < fks[j].id
		}
		return fks[i].seq < fks[j].seq
	})

	columnsByID := map[int][]string{}
	for _, fk := range fks {
		columnsByID[fk.id] = append(columnsByID[fk.id], fk.from)
	}
	names := constraintNames(t.sql)
	for _, fk := range fks {
		cols := columnsByID[fk.id]
		name, ok := names[strings.Join(cols, ",")]
		if !ok {
			name = calculator.ConstraintName(t.name, cols, "fkey", 0)
		}
		b.AddForeignKeyColumn(database.ForeignKeyColumn{
			Table:            t.name,
			Constraint:       name,
			Column:           fk.from,
			ReferencedTable:  fk.table,
			ReferencedColumn: fk.to,
			OnDelete:         fk.onDelete,
			OnUpdate:         fk.onUpdate,
		})
	}
	return nil
}

// constraintNames maps the column list of every named foreign key in a
// CREATE TABLE statement to its constraint name. SQLite does not report
// foreign key names through the pragmas.
func constraintNames(createTable string) map[string]string {
	out := map[string]string{}
	for _, m := range fkConstraintExp.FindAllStringSubmatch(createTable, -1) {
		var cols []string
		for _, c := range strings.Split(m[2], ",") {
			c = strings.TrimSpace(c)
			c = strings.Trim(c, "\"`[]")
			cols = append(cols, c)
		}
		out[strings.Join(cols, ",")] = strings.ReplaceAll(m[1], `""`, `"`)
	}
	return out
}
