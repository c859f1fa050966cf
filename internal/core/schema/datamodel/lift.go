package datamodel

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/ast"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/parser"
)

// Parse parses and lifts a schema. Syntax and validation errors are returned
// as a P1012 known error.
func Parse(filename, source string) (*Datamodel, error) {
	tree, err := parser.ParseString(filename, source)
	if err != nil {
		return nil, domain.NewSchemaParserError(syntaxDiagnostics(err).Error())
	}
	dm, diags := Lift(tree)
	if diags.HasErrors() {
		return nil, domain.NewSchemaParserError(diags.Error())
	}
	return dm, nil
}

func syntaxDiagnostics(err error) Diagnostics {
	if syntaxErr, ok := err.(*parser.SyntaxError); ok {
		return Diagnostics{{Message: "Error validating: " + syntaxErr.Message, Pos: syntaxErr.Pos}}
	}
	return Diagnostics{{Message: err.Error()}}
}

type lifter struct {
	tree    *ast.Schema
	dm      *Datamodel
	flavour flavour.Flavour
	diags   Diagnostics
	models  map[string]*ast.Model
	enums   map[string]*ast.Enum
}

// Lift resolves names and attributes of a parsed schema and validates it.
func Lift(tree *ast.Schema) (*Datamodel, Diagnostics) {
	l := &lifter{
		tree:   tree,
		dm:     &Datamodel{},
		models: map[string]*ast.Model{},
		enums:  map[string]*ast.Enum{},
	}
	l.dm.Datasource = liftDatasource(tree.Datasources(), &l.diags)
	l.dm.Generators = liftGenerators(tree.Generators(), &l.diags)
	if l.dm.Datasource != nil && l.dm.Datasource.Provider != "" {
		l.flavour, _ = flavour.New(l.dm.Datasource.Provider)
	}

	l.collectNames()
	for _, e := range tree.Enums() {
		l.dm.Enums = append(l.dm.Enums, l.liftEnum(e))
	}
	for _, m := range tree.Models() {
		l.dm.Models = append(l.dm.Models, l.liftModel(m))
	}
	l.validate()
	return l.dm, l.diags
}

func (l *lifter) collectNames() {
	for _, e := range l.tree.Enums() {
		if _, dup := l.enums[e.Name]; dup {
			l.diags.addf(e.Pos, "The enum %q cannot be defined because an enum with that name already exists.", e.Name)
			continue
		}
		l.enums[e.Name] = e
	}
	for _, m := range l.tree.Models() {
		if _, dup := l.models[m.Name]; dup {
			l.diags.addf(m.Pos, "The model %q cannot be defined because a model with that name already exists.", m.Name)
			continue
		}
		if _, clash := l.enums[m.Name]; clash {
			l.diags.addf(m.Pos, "The model %q cannot be defined because an enum with that name already exists.", m.Name)
			continue
		}
		l.models[m.Name] = m
	}
}

func (l *lifter) liftEnum(e *ast.Enum) *Enum {
	out := &Enum{Name: e.Name, Pos: e.Pos}
	if attr := e.BlockAttribute("map"); attr != nil {
		out.DBName = l.stringArg(attr, "name")
	}
	seen := map[string]bool{}
	for _, v := range e.Values() {
		if seen[v.Name] {
			l.diags.addf(v.Pos, "Value %q is already defined on enum %q.", v.Name, e.Name)
			continue
		}
		seen[v.Name] = true
		value := EnumValue{Name: v.Name}
		for _, attr := range v.Attributes {
			if attr.Name != "map" {
				l.diags.addf(attr.Pos, "Attribute not known: \"@%s\".", attr.Name)
				continue
			}
			value.DBName = l.stringArg(attr, "name")
		}
		out.Values = append(out.Values, value)
	}
	if len(out.Values) == 0 {
		l.diags.addf(e.Pos, "An enum must have at least one value.")
	}
	return out
}

func (l *lifter) liftModel(m *ast.Model) *Model {
	out := &Model{Name: m.Name, IsView: m.IsView(), Pos: m.Pos}
	seen := map[string]bool{}
	for _, f := range m.Fields() {
		if seen[f.Name] {
			l.diags.addf(f.Pos, "Field %q is already defined on model %q.", f.Name, m.Name)
			continue
		}
		seen[f.Name] = true
		l.liftField(out, f)
	}
	for _, f := range out.ScalarFields {
		if !f.IsID {
			continue
		}
		if out.PrimaryKey != nil {
			l.diags.addf(f.Pos, "At most one field must be marked as the id field with the `@id` attribute.")
			continue
		}
		out.PrimaryKey = &PrimaryKey{Fields: []string{f.Name}, Name: f.IDName}
	}
	for _, attr := range m.BlockAttributes() {
		l.liftBlockAttribute(out, attr)
	}
	return out
}

func fieldArity(f *ast.Field) FieldArity {
	switch {
	case f.List:
		return List
	case f.Optional:
		return Optional
	default:
		return Required
	}
}

func (l *lifter) liftField(model *Model, f *ast.Field) {
	arity := fieldArity(f)
	if f.Type.Unsupported == nil {
		if _, isModel := l.models[f.Type.Name]; isModel {
			model.RelationFields = append(model.RelationFields, l.liftRelationField(f, arity))
			return
		}
	}

	field := &ScalarField{Name: f.Name, Arity: arity, Pos: f.Pos}
	switch {
	case f.Type.Unsupported != nil:
		field.Type = FieldType{Unsupported: *f.Type.Unsupported}
	case scalarTypes[f.Type.Name] != "":
		field.Type = FieldType{Scalar: scalarTypes[f.Type.Name]}
	case l.enums[f.Type.Name] != nil:
		field.Type = FieldType{Enum: f.Type.Name}
	default:
		l.diags.addf(f.Type.Pos, "Type %q is neither a built-in type, nor refers to another model, composite type, or enum.", f.Type.Name)
		return
	}

	for _, attr := range f.Attributes {
		switch {
		case attr.Name == "id":
			field.IsID = true
			field.IDName = l.stringArg(attr, "map", -1)
		case attr.Name == "unique":
			field.IsUnique = true
			field.UniqueName = l.stringArg(attr, "map", -1)
		case attr.Name == "map":
			field.DBName = l.stringArg(attr, "name")
		case attr.Name == "updatedAt":
			field.IsUpdatedAt = true
		case attr.Name == "ignore":
			field.IsIgnored = true
		case attr.Name == "default":
			field.Default = l.liftDefault(field, attr)
		case attr.Name == "relation":
			l.diags.addf(attr.Pos, "Invalid field type: the @relation attribute can only be used on relation fields, but %q is of type %s.", f.Name, field.Type)
		case strings.Contains(attr.Name, "."):
			field.NativeType = l.liftNativeType(field, attr)
		default:
			l.diags.addf(attr.Pos, "Attribute not known: \"@%s\".", attr.Name)
		}
	}
	model.ScalarFields = append(model.ScalarFields, field)
}

func (l *lifter) liftRelationField(f *ast.Field, arity FieldArity) *RelationField {
	rf := &RelationField{Name: f.Name, Arity: arity, Info: RelationInfo{To: f.Type.Name}, Pos: f.Pos}
	for _, attr := range f.Attributes {
		switch attr.Name {
		case "relation":
			l.liftRelationAttribute(rf, attr)
		case "ignore":
			rf.IsIgnored = true
		default:
			l.diags.addf(attr.Pos, "Attribute not known: \"@%s\".", attr.Name)
		}
	}
	return rf
}

func (l *lifter) liftRelationAttribute(rf *RelationField, attr *ast.Attribute) {
	if v := attr.Argument("name", 0); v != nil {
		name, ok := ast.AsString(v)
		if !ok {
			l.diags.addf(v.Position(), "Expected a string value for the relation name, but received %s.", v.String())
		}
		rf.Info.Name = name
	}
	if v := attr.Argument("fields", -1); v != nil {
		refs, ok := ast.FieldRefs(v)
		if !ok {
			l.diags.addf(v.Position(), "Expected a list of field references for `fields`.")
		}
		rf.Info.Fields = refs
	}
	if v := attr.Argument("references", -1); v != nil {
		refs, ok := ast.FieldRefs(v)
		if !ok {
			l.diags.addf(v.Position(), "Expected a list of field references for `references`.")
		}
		rf.Info.References = refs
	}
	rf.Info.OnDelete = l.referentialAction(attr, "onDelete")
	rf.Info.OnUpdate = l.referentialAction(attr, "onUpdate")
	rf.Info.FKName = l.stringArg(attr, "map", -1)
}

func (l *lifter) referentialAction(attr *ast.Attribute, arg string) *sqlschema.ReferentialAction {
	v := attr.Argument(arg, -1)
	if v == nil {
		return nil
	}
	name, _ := ast.AsConstant(v)
	action, ok := sqlschema.ParseReferentialAction(name)
	if !ok {
		l.diags.addf(v.Position(), "Invalid referential action: %q. Allowed values: (Cascade, Restrict, NoAction, SetNull, SetDefault)", v.String())
		return nil
	}
	return &action
}

func (l *lifter) liftBlockAttribute(model *Model, attr *ast.Attribute) {
	switch attr.Name {
	case "map":
		model.DBName = l.stringArg(attr, "name")
	case "ignore":
		model.IsIgnored = true
	case "id":
		fields := l.fieldsArg(attr)
		if model.PrimaryKey != nil {
			l.diags.addf(attr.Pos, "Each model must have at most one id criteria. You can't have `@id` and `@@id` at the same time.")
			return
		}
		model.PrimaryKey = &PrimaryKey{Fields: fields, Name: l.stringArg(attr, "map", -1)}
	case "unique":
		model.Indexes = append(model.Indexes, &Index{
			Kind:   IndexUnique,
			Fields: l.fieldsArg(attr),
			Name:   l.stringArg(attr, "name", -1),
			DBName: l.stringArg(attr, "map", -1),
			Pos:    attr.Pos,
		})
	case "index", "fulltext":
		kind := IndexNormal
		if attr.Name == "fulltext" {
			kind = IndexFulltext
		}
		dbName := l.stringArg(attr, "map", -1)
		if dbName == "" {
			dbName = l.stringArg(attr, "name", -1)
		}
		model.Indexes = append(model.Indexes, &Index{Kind: kind, Fields: l.fieldsArg(attr), DBName: dbName, Pos: attr.Pos})
	default:
		l.diags.addf(attr.Pos, "Attribute not known: \"@@%s\".", attr.Name)
	}
}

func (l *lifter) fieldsArg(attr *ast.Attribute) []string {
	v := attr.Argument("fields", 0)
	if v == nil {
		l.diags.addf(attr.Pos, "Argument \"fields\" is missing in attribute \"@@%s\".", attr.Name)
		return nil
	}
	refs, ok := ast.FieldRefs(v)
	if !ok {
		l.diags.addf(v.Position(), "Expected a list of field references in attribute \"@@%s\".", attr.Name)
	}
	return refs
}

// stringArg reads a string argument by name, falling back to the positional
// argument at pos (0 when omitted).
func (l *lifter) stringArg(attr *ast.Attribute, name string, pos ...int) string {
	p := 0
	if len(pos) > 0 {
		p = pos[0]
	}
	v := attr.Argument(name, p)
	if v == nil {
		return ""
	}
	s, ok := ast.AsString(v)
	if !ok {
		l.diags.addf(v.Position(), "Expected a string value for %q, but received %s.", name, v.String())
	}
	return s
}

func (l *lifter) liftDefault(field *ScalarField, attr *ast.Attribute) *DefaultValue {
	v := attr.Argument("value", 0)
	if v == nil {
		l.diags.addf(attr.Pos, "Argument \"value\" is missing in attribute \"@default\".")
		return nil
	}
	def := &DefaultValue{Name: l.stringArg(attr, "map", -1)}

	if call, ok := ast.AsFunction(v); ok {
		scalar := field.Type.Scalar
		switch call.Name {
		case "autoincrement":
			def.Kind = DefaultAutoincrement
			if scalar != Int && scalar != BigInt {
				l.diags.addf(call.Pos, "The function autoincrement() cannot be used on fields of type %s.", field.Type)
			}
		case "sequence":
			def.Kind = DefaultSequence
			if scalar != Int && scalar != BigInt {
				l.diags.addf(call.Pos, "The function sequence() cannot be used on fields of type %s.", field.Type)
			}
		case "now":
			def.Kind = DefaultNow
			if scalar != DateTime {
				l.diags.addf(call.Pos, "The function now() cannot be used on fields of type %s.", field.Type)
			}
		case "uuid", "cuid":
			def.Kind = DefaultUUID
			if call.Name == "cuid" {
				def.Kind = DefaultCUID
			}
			if scalar != String {
				l.diags.addf(call.Pos, "The function %s() cannot be used on fields of type %s.", call.Name, field.Type)
			}
		case "dbgenerated":
			def.Kind = DefaultDBGenerated
			if args := call.Args(); len(args) > 0 {
				def.Expression, _ = ast.AsString(args[0].Value)
			}
		default:
			l.diags.addf(call.Pos, "The function %s() is not a known function.", call.Name)
			return nil
		}
		return def
	}

	value, ok := l.literal(field, v)
	if !ok {
		return nil
	}
	def.Kind = DefaultLiteral
	def.Value = value
	return def
}

func (l *lifter) literal(field *ScalarField, v ast.Expression) (sqlschema.PrismaValue, bool) {
	if arr, ok := v.(*ast.ArrayExpression); ok {
		if field.Arity != List {
			l.diags.addf(v.Position(), "A list default is only allowed on list fields.")
			return sqlschema.PrismaValue{}, false
		}
		out := sqlschema.PrismaValue{Kind: sqlschema.ValueList}
		for _, el := range arr.Elements {
			item, ok := l.scalarLiteral(field, el)
			if !ok {
				return sqlschema.PrismaValue{}, false
			}
			out.Items = append(out.Items, item)
		}
		return out, true
	}
	return l.scalarLiteral(field, v)
}

func (l *lifter) scalarLiteral(field *ScalarField, v ast.Expression) (sqlschema.PrismaValue, bool) {
	mismatch := func() (sqlschema.PrismaValue, bool) {
		l.diags.addf(v.Position(), "Expected a %s value, but received %s.", field.Type, v.String())
		return sqlschema.PrismaValue{}, false
	}

	if field.Type.IsEnum() {
		name, ok := ast.AsConstant(v)
		if !ok {
			return mismatch()
		}
		e, _ := l.dm.Enum(field.Type.Enum)
		if e == nil || !e.HasValue(name) {
			l.diags.addf(v.Position(), "The defined default value `%s` is not a valid value of the enum specified for the field.", name)
			return sqlschema.PrismaValue{}, false
		}
		for _, ev := range e.Values {
			if ev.Name == name {
				return sqlschema.PrismaValue{Kind: sqlschema.ValueEnum, Raw: ev.DatabaseName()}, true
			}
		}
	}

	switch field.Type.Scalar {
	case String, DateTime, Json, Bytes:
		s, ok := ast.AsString(v)
		if !ok {
			return mismatch()
		}
		kind := map[ScalarType]sqlschema.ValueKind{
			String:   sqlschema.ValueString,
			DateTime: sqlschema.ValueDateTime,
			Json:     sqlschema.ValueJSON,
			Bytes:    sqlschema.ValueBytes,
		}[field.Type.Scalar]
		return sqlschema.PrismaValue{Kind: kind, Raw: s}, true
	case Int, BigInt:
		n, ok := v.(*ast.NumericValue)
		if !ok || strings.Contains(n.Value, ".") {
			return mismatch()
		}
		return sqlschema.PrismaValue{Kind: sqlschema.ValueInt, Raw: n.Value}, true
	case Float, Decimal:
		n, ok := v.(*ast.NumericValue)
		if !ok {
			return mismatch()
		}
		return sqlschema.PrismaValue{Kind: sqlschema.ValueFloat, Raw: n.Value}, true
	case Boolean:
		b, ok := ast.AsBool(v)
		if !ok {
			return mismatch()
		}
		raw := "false"
		if b {
			raw = "true"
		}
		return sqlschema.PrismaValue{Kind: sqlschema.ValueBoolean, Raw: raw}, true
	}
	return mismatch()
}

func (l *lifter) liftNativeType(field *ScalarField, attr *ast.Attribute) *sqlschema.NativeType {
	prefix, name, _ := strings.Cut(attr.Name, ".")
	ds := l.dm.Datasource
	if ds == nil || prefix != ds.Name {
		l.diags.addf(attr.Pos, "Attribute not known: \"@%s\".", attr.Name)
		return nil
	}
	nt := &sqlschema.NativeType{Name: name}
	if attr.Arguments != nil {
		for _, arg := range attr.Arguments.Arguments {
			switch val := arg.Value.(type) {
			case *ast.NumericValue:
				nt.Args = append(nt.Args, val.Value)
			case *ast.ConstantValue:
				nt.Args = append(nt.Args, val.Value)
			case *ast.StringValue:
				nt.Args = append(nt.Args, val.Value)
			default:
				l.diags.addf(arg.Pos, "Invalid argument %s for native type %s.", val.String(), name)
			}
		}
	}
	if l.flavour == nil || field.Type.Scalar == "" {
		return nt
	}
	spec, ok := flavour.LookupNativeType(l.flavour, name)
	if !ok {
		l.diags.addf(attr.Pos, "Native type %s is not supported for %s connector.", name, l.flavour.Provider())
		return nil
	}
	family, _, _ := l.flavour.ScalarType(string(field.Type.Scalar))
	if spec.Family != family && !compatibleNativeFamily(spec.Family, family) {
		l.diags.addf(attr.Pos, "Native type %s is not compatible with declared field type %s, expected field type %s.", name, field.Type.Scalar, spec.Family)
		return nil
	}
	if len(nt.Args) > spec.MaxArgs {
		l.diags.addf(attr.Pos, "Native type %s takes %d optional arguments, but received %d.", name, spec.MaxArgs, len(nt.Args))
		return nil
	}
	nt.Name = spec.Name
	return nt
}

// compatibleNativeFamily allows the integer native types on BigInt fields and
// the reverse, which every connector accepts.
func compatibleNativeFamily(native, field sqlschema.ColumnTypeFamily) bool {
	return native.IsInteger() && field.IsInteger()
}
