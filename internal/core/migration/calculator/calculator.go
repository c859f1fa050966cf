// Package calculator derives the SQL schema a datamodel needs on a given
// database flavour.
package calculator

import (
	"fmt"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/datamodel"
)

// Calculator turns a datamodel into a sqlschema.Schema.
type Calculator struct {
	flavour flavour.Flavour
	caps    flavour.Capabilities
}

// New returns a calculator for a flavour.
func New(f flavour.Flavour) *Calculator {
	return &Calculator{flavour: f, caps: f.Capabilities()}
}

// Calculate computes the target schema. Ignored models and views produce no
// tables.
func (c *Calculator) Calculate(dm *datamodel.Datamodel) (*sqlschema.Schema, error) {
	schema := sqlschema.Empty()

	if c.caps.NamedEnums {
		for _, e := range dm.Enums {
			schema.Enums = append(schema.Enums, sqlschema.Enum{Name: e.DatabaseName(), Values: e.DatabaseValues()})
		}
	}

	for _, m := range dm.Models {
		if m.IsIgnored || m.IsView {
			continue
		}
		table, enums, err := c.table(dm, m)
		if err != nil {
			return nil, err
		}
		schema.Tables = append(schema.Tables, table)
		schema.Enums = append(schema.Enums, enums...)
	}

	for _, rel := range dm.Relations() {
		if rel.Model.IsIgnored || rel.RelatedModel.IsIgnored || rel.Model.IsView || rel.RelatedModel.IsView || rel.Field.IsIgnored {
			continue
		}
		if rel.Kind == datamodel.ManyToMany {
			join, err := c.joinTable(schema, rel)
			if err != nil {
				return nil, err
			}
			schema.Tables = append(schema.Tables, join)
			continue
		}
		if err := c.addForeignKey(schema, rel); err != nil {
			return nil, err
		}
	}

	if c.caps.ImplicitFKIndexes {
		for i := range schema.Tables {
			addImplicitForeignKeyIndexes(&schema.Tables[i])
		}
	}
	return schema, nil
}

func (c *Calculator) limit() int { return c.caps.IdentifierLengthLimit }

func (c *Calculator) table(dm *datamodel.Datamodel, m *datamodel.Model) (sqlschema.Table, []sqlschema.Enum, error) {
	table := sqlschema.Table{Name: m.TableName()}
	var enums []sqlschema.Enum

	for _, f := range m.ScalarFields {
		col, enum, err := c.column(dm, m, f)
		if err != nil {
			return table, nil, err
		}
		table.Columns = append(table.Columns, col)
		if enum != nil {
			enums = append(enums, *enum)
		}
	}

	if m.PrimaryKey != nil {
		pk := &sqlschema.PrimaryKey{Columns: m.ColumnNames(m.PrimaryKey.Fields), ConstraintName: m.PrimaryKey.Name}
		if pk.ConstraintName == "" && (c.flavour.Provider() == flavour.Postgres || c.flavour.Provider() == flavour.SQLServer) {
			pk.ConstraintName = PrimaryKeyName(table.Name, c.limit())
		}
		table.PrimaryKey = pk
	}

	for _, f := range m.ScalarFields {
		if !f.IsUnique {
			continue
		}
		name := f.UniqueName
		if name == "" {
			name = ConstraintName(table.Name, []string{f.ColumnName()}, suffixUnique, c.limit())
		}
		table.Indexes = append(table.Indexes, sqlschema.Index{Name: name, Columns: []string{f.ColumnName()}, Kind: sqlschema.IndexUnique})
	}
	for _, idx := range m.Indexes {
		cols := m.ColumnNames(idx.Fields)
		kind, suffix := sqlschema.IndexNormal, suffixIndex
		switch idx.Kind {
		case datamodel.IndexUnique:
			kind, suffix = sqlschema.IndexUnique, suffixUnique
		case datamodel.IndexFulltext:
			kind = sqlschema.IndexFulltext
		}
		name := idx.DBName
		if name == "" {
			name = ConstraintName(table.Name, cols, suffix, c.limit())
		}
		table.Indexes = append(table.Indexes, sqlschema.Index{Name: name, Columns: cols, Kind: kind})
	}
	return table, enums, nil
}

func (c *Calculator) column(dm *datamodel.Datamodel, m *datamodel.Model, f *datamodel.ScalarField) (sqlschema.Column, *sqlschema.Enum, error) {
	col := sqlschema.Column{Name: f.ColumnName()}
	col.Type.Arity = arity(f.Arity)
	var enum *sqlschema.Enum

	switch {
	case f.Type.IsUnsupported():
		col.Type.Family = sqlschema.FamilyUnsupported
		col.Type.FullDataType = f.Type.Unsupported
	case f.Type.IsEnum():
		e, ok := dm.Enum(f.Type.Enum)
		if !ok {
			return col, nil, fmt.Errorf("failed to resolve enum %q of field %s.%s", f.Type.Enum, m.Name, f.Name)
		}
		switch {
		case c.caps.NamedEnums:
			col.Type.Family = sqlschema.FamilyEnum
			col.Type.EnumName = e.DatabaseName()
		case c.caps.SupportsEnums:
			name := flavour.MySQLEnumName(m.TableName(), col.Name)
			col.Type.Family = sqlschema.FamilyEnum
			col.Type.EnumName = name
			enum = &sqlschema.Enum{Name: name, Values: e.DatabaseValues()}
		default:
			family, native, _ := c.flavour.ScalarType(string(datamodel.String))
			col.Type.Family = family
			col.Type.NativeType = native
		}
	default:
		family, native, ok := c.flavour.ScalarType(string(f.Type.Scalar))
		if !ok {
			return col, nil, fmt.Errorf("failed to map type %s of field %s.%s on %s", f.Type.Scalar, m.Name, f.Name, c.flavour.Provider())
		}
		col.Type.Family = family
		col.Type.NativeType = native
		if f.NativeType != nil {
			nt := *f.NativeType
			col.Type.NativeType = &nt
		}
	}

	if f.Default != nil {
		c.applyDefault(&col, m, f)
	}
	return col, enum, nil
}

func (c *Calculator) applyDefault(col *sqlschema.Column, m *datamodel.Model, f *datamodel.ScalarField) {
	def := f.Default
	switch def.Kind {
	case datamodel.DefaultAutoincrement:
		col.AutoIncrement = true
	case datamodel.DefaultNow:
		col.Default = sqlschema.NowDefault()
	case datamodel.DefaultUUID, datamodel.DefaultCUID:
		// Generated by the client, no database default.
	case datamodel.DefaultDBGenerated:
		if def.Expression != "" {
			col.Default = sqlschema.DBGeneratedDefault(def.Expression)
		}
	case datamodel.DefaultSequence:
		col.Default = sqlschema.SequenceDefault(SequenceName(m.TableName(), col.Name))
	case datamodel.DefaultLiteral:
		if f.Type.Scalar == datamodel.Json && c.caps.IgnoreJSONDefaults {
			return
		}
		col.Default = &sqlschema.DefaultValue{Kind: sqlschema.DefaultValueLiteral, Value: def.Value}
	}
	if col.Default != nil && c.flavour.Provider() == flavour.SQLServer {
		col.Default.ConstraintName = def.Name
		if col.Default.ConstraintName == "" {
			col.Default.ConstraintName = DefaultConstraintName(m.TableName(), col.Name)
		}
	}
}

func arity(a datamodel.FieldArity) sqlschema.ColumnArity {
	switch a {
	case datamodel.Optional:
		return sqlschema.Nullable
	case datamodel.List:
		return sqlschema.List
	default:
		return sqlschema.Required
	}
}
