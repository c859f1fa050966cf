package calculator

import (
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/datamodel"
)

// addForeignKey attaches the constraint of a one-to-one or one-to-many
// relation to the table of its forward side.
func (c *Calculator) addForeignKey(schema *sqlschema.Schema, rel *datamodel.Relation) error {
	table, ok := schema.Table(rel.Model.TableName())
	if !ok {
		return fmt.Errorf("failed to find table %q for relation %s", rel.Model.TableName(), rel.Name)
	}
	info := rel.Field.Info
	cols := rel.Model.ColumnNames(info.Fields)

	if rel.Field.Arity == datamodel.Required {
		for _, name := range cols {
			if col, ok := table.Column(name); ok && col.Type.Arity == sqlschema.Nullable {
				col.Type.Arity = sqlschema.Required
			}
		}
	}

	onDelete := sqlschema.SetNull
	if rel.Field.Arity == datamodel.Required {
		onDelete = sqlschema.Cascade
	}
	onUpdate := sqlschema.Cascade
	if c.caps.CycleSafeFKActions && rel.Model == rel.RelatedModel {
		onDelete, onUpdate = sqlschema.NoAction, sqlschema.NoAction
	}
	if info.OnDelete != nil {
		onDelete = *info.OnDelete
	}
	if info.OnUpdate != nil {
		onUpdate = *info.OnUpdate
	}

	name := info.FKName
	if name == "" {
		name = ConstraintName(table.Name, cols, suffixForeignKey, c.limit())
	}
	table.ForeignKeys = append(table.ForeignKeys, sqlschema.ForeignKey{
		ConstraintName:    name,
		Columns:           cols,
		ReferencedTable:   rel.RelatedModel.TableName(),
		ReferencedColumns: rel.RelatedModel.ColumnNames(info.References),
		OnDelete:          onDelete,
		OnUpdate:          onUpdate,
	})
	return nil
}

// joinTable builds the implicit _{Relation} table of a many-to-many relation.
// Column A references the model whose name sorts first.
func (c *Calculator) joinTable(schema *sqlschema.Schema, rel *datamodel.Relation) (sqlschema.Table, error) {
	name := rel.JoinTableName()
	table := sqlschema.Table{Name: name}

	sides := []struct {
		column string
		model  *datamodel.Model
	}{
		{"A", rel.Model},
		{"B", rel.RelatedModel},
	}
	action := sqlschema.Cascade
	if c.caps.CycleSafeFKActions && rel.Model == rel.RelatedModel {
		action = sqlschema.NoAction
	}

	for _, side := range sides {
		target, ok := schema.Table(side.model.TableName())
		if !ok || target.PrimaryKey == nil || len(target.PrimaryKey.Columns) != 1 {
			return table, fmt.Errorf("failed to build join table %s: %s needs a single column id", name, side.model.Name)
		}
		idCol, _ := target.Column(target.PrimaryKey.Columns[0])
		colType := idCol.Type
		colType.Arity = sqlschema.Required
		table.Columns = append(table.Columns, sqlschema.Column{Name: side.column, Type: colType})
		table.ForeignKeys = append(table.ForeignKeys, sqlschema.ForeignKey{
			ConstraintName:    name + "_" + side.column + "_fkey",
			Columns:           []string{side.column},
			ReferencedTable:   target.Name,
			ReferencedColumns: []string{idCol.Name},
			OnDelete:          action,
			OnUpdate:          action,
		})
	}

	table.Indexes = []sqlschema.Index{
		{Name: name + "_AB_unique", Columns: []string{"A", "B"}, Kind: sqlschema.IndexUnique},
		{Name: name + "_B_index", Columns: []string{"B"}, Kind: sqlschema.IndexNormal},
	}
	return table, nil
}

// addImplicitForeignKeyIndexes adds the index MySQL would create for a
// foreign key whose columns do not lead an existing index or the primary key.
func addImplicitForeignKeyIndexes(table *sqlschema.Table) {
	for _, fk := range table.ForeignKeys {
		if coveredBy(fk.Columns, primaryKeyColumns(table)) {
			continue
		}
		covered := false
		for _, idx := range table.Indexes {
			if coveredBy(fk.Columns, idx.Columns) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		table.Indexes = append(table.Indexes, sqlschema.Index{
			Name:    fk.ConstraintName,
			Columns: append([]string(nil), fk.Columns...),
			Kind:    sqlschema.IndexNormal,
		})
	}
}

func primaryKeyColumns(table *sqlschema.Table) []string {
	if table.PrimaryKey == nil {
		return nil
	}
	return table.PrimaryKey.Columns
}

// coveredBy reports whether columns is a prefix of index.
func coveredBy(columns, index []string) bool {
	if len(columns) == 0 || len(columns) > len(index) {
		return false
	}
	for i := range columns {
		if columns[i] != index[i] {
			return false
		}
	}
	return true
}
