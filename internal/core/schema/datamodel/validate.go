package datamodel

import (
	"sort"
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

// RelationKind classifies a resolved relation.
type RelationKind int

const (
	OneToOne RelationKind = iota
	OneToMany
	ManyToMany
)

// Relation is a pair of relation fields. For one-to-one and one-to-many
// relations Model/Field is the side that carries fields and references. For
// many-to-many relations Model is the alphabetically first model, which the
// join table column A points at.
type Relation struct {
	Name         string
	Kind         RelationKind
	Model        *Model
	Field        *RelationField
	RelatedModel *Model
	RelatedField *RelationField
}

// JoinTableName is the name of the implicit many-to-many table.
func (r *Relation) JoinTableName() string {
	return "_" + r.Name
}

// Relations returns the resolved relations in declaration order.
func (d *Datamodel) Relations() []*Relation {
	return d.relations
}

// ImplicitRelationName is the name of a relation without an explicit name.
func ImplicitRelationName(a, b string) string {
	if a < b {
		return a + "To" + b
	}
	return b + "To" + a
}

func (l *lifter) validate() {
	for _, m := range l.dm.Models {
		l.validateModel(m)
	}
	l.resolveRelations()
}

func (l *lifter) validateModel(m *Model) {
	if !m.IsIgnored && !m.IsView && m.PrimaryKey == nil {
		l.diags.addf(m.Pos, "Each model must have exactly one id criterion. Add `@id` to a field or `@@id` to model %q.", m.Name)
	}
	if m.PrimaryKey != nil {
		for _, name := range m.PrimaryKey.Fields {
			f, ok := m.ScalarField(name)
			if !ok {
				l.diags.addf(m.Pos, "The id definition refers to the unknown field %q in model %q.", name, m.Name)
				continue
			}
			if f.Arity != Required {
				l.diags.addf(f.Pos, "Fields that are marked as id must be required.")
			}
		}
	}
	for _, idx := range m.Indexes {
		var unknown []string
		for _, name := range idx.Fields {
			if _, ok := m.ScalarField(name); !ok {
				unknown = append(unknown, name)
			}
		}
		if len(unknown) > 0 {
			l.diags.addf(idx.Pos, "The index definition refers to the unknown fields: %s.", strings.Join(unknown, ", "))
		}
		if idx.Kind == IndexFulltext && l.flavour != nil && l.flavour.Provider() != flavour.MySQL {
			l.diags.addf(idx.Pos, "The current connector does not support fulltext indexes.")
		}
	}

	if l.flavour == nil {
		return
	}
	caps := l.flavour.Capabilities()
	for _, f := range m.ScalarFields {
		if f.Arity == List && !caps.SupportsScalarLists {
			l.diags.addf(f.Pos, "Field %q in model %q can't be a list. The current connector does not support lists of primitive types.", f.Name, m.Name)
		}
		if f.Type.Scalar == Json && !caps.SupportsJSON && l.flavour.Provider() != flavour.MySQL {
			l.diags.addf(f.Pos, "Field %q in model %q can't be of type Json. The current connector does not support the Json type.", f.Name, m.Name)
		}
	}
}

type relationSide struct {
	model *Model
	field *RelationField
	name  string
}

func (l *lifter) resolveRelations() {
	var sides []*relationSide
	for _, m := range l.dm.Models {
		for _, f := range m.RelationFields {
			name := f.Info.Name
			if name == "" {
				name = ImplicitRelationName(m.Name, f.Info.To)
			}
			sides = append(sides, &relationSide{model: m, field: f, name: name})
		}
	}

	paired := map[*RelationField]bool{}
	for _, side := range sides {
		if paired[side.field] {
			continue
		}
		var candidates []*relationSide
		for _, other := range sides {
			if other.field == side.field || paired[other.field] {
				continue
			}
			if other.model.Name == side.field.Info.To && other.field.Info.To == side.model.Name && other.name == side.name {
				candidates = append(candidates, other)
			}
		}
		switch len(candidates) {
		case 0:
			l.diags.addf(side.field.Pos, "Error validating field `%s` in model `%s`: The relation field `%s` on Model `%s` is missing an opposite relation field on the model `%s`. Either run `prisma format` or add it manually.",
				side.field.Name, side.model.Name, side.field.Name, side.model.Name, side.field.Info.To)
			paired[side.field] = true
			continue
		case 1:
		default:
			l.diags.addf(side.field.Pos, "Ambiguous relation detected. The fields `%s` and `%s` in model `%s` both refer to `%s`. Please provide different relation names for them by adding `@relation(<name>)`.",
				candidates[0].field.Name, candidates[1].field.Name, candidates[0].model.Name, side.model.Name)
			paired[side.field] = true
			continue
		}
		other := candidates[0]
		paired[side.field] = true
		paired[other.field] = true
		if rel := l.buildRelation(side, other); rel != nil {
			l.dm.relations = append(l.dm.relations, rel)
		}
	}
}

func (l *lifter) buildRelation(a, b *relationSide) *Relation {
	if a.field.Arity == List && b.field.Arity == List {
		if a.field.IsForward() || b.field.IsForward() || len(a.field.Info.References) > 0 || len(b.field.Info.References) > 0 {
			l.diags.addf(a.field.Pos, "Implicit many-to-many relations must not specify the `fields` or `references` argument. The relation `%s` does.", a.name)
			return nil
		}
		for _, side := range []*relationSide{a, b} {
			if side.model.PrimaryKey == nil || len(side.model.PrimaryKey.Fields) != 1 {
				l.diags.addf(side.field.Pos, "The relation field `%s` on model `%s` is part of an implicit many-to-many relation, which requires model `%s` to have a single-field id.", side.field.Name, side.model.Name, side.model.Name)
				return nil
			}
		}
		first, second := a, b
		if b.model.Name < a.model.Name || (b.model.Name == a.model.Name && b.field.Name < a.field.Name) {
			first, second = b, a
		}
		return &Relation{
			Name:         a.name,
			Kind:         ManyToMany,
			Model:        first.model,
			Field:        first.field,
			RelatedModel: second.model,
			RelatedField: second.field,
		}
	}

	aForward, bForward := a.field.IsForward() || len(a.field.Info.References) > 0, b.field.IsForward() || len(b.field.Info.References) > 0
	switch {
	case aForward && bForward:
		l.diags.addf(a.field.Pos, "The relation fields `%s` on Model `%s` and `%s` on Model `%s` both provide the `references` argument in the @relation attribute. You have to provide it only on one of the two fields.",
			a.field.Name, a.model.Name, b.field.Name, b.model.Name)
		return nil
	case !aForward && !bForward:
		l.diags.addf(a.field.Pos, "The relation fields `%s` on Model `%s` and `%s` on Model `%s` do not provide the `fields` argument in the @relation attribute. You have to provide it on one of the two fields.",
			a.field.Name, a.model.Name, b.field.Name, b.model.Name)
		return nil
	case bForward:
		a, b = b, a
	}

	fwd := a.field
	if fwd.Arity == List {
		l.diags.addf(fwd.Pos, "The relation field `%s` on Model `%s` is a list and must not specify the `fields` or `references` argument.", fwd.Name, a.model.Name)
		return nil
	}
	if len(fwd.Info.Fields) != len(fwd.Info.References) {
		l.diags.addf(fwd.Pos, "You must specify the same number of fields in `fields` and `references`.")
		return nil
	}
	ok := true
	for _, name := range fwd.Info.Fields {
		if _, found := a.model.ScalarField(name); !found {
			l.diags.addf(fwd.Pos, "The argument fields must refer only to existing fields. The following fields do not exist in this model: %s", name)
			ok = false
		}
	}
	for _, name := range fwd.Info.References {
		if _, found := b.model.ScalarField(name); !found {
			l.diags.addf(fwd.Pos, "The argument `references` must refer only to existing fields in the related model `%s`. The following fields do not exist in the related model: %s", b.model.Name, name)
			ok = false
		}
	}
	if b.field.Info.OnDelete != nil || b.field.Info.OnUpdate != nil {
		l.diags.addf(b.field.Pos, "The relation field `%s` on Model `%s` must not specify the `onDelete` or `onUpdate` argument in the @relation attribute. You must only specify it on the opposite field `%s` on model `%s`.",
			b.field.Name, b.model.Name, fwd.Name, a.model.Name)
		ok = false
	}
	if !ok {
		return nil
	}

	kind := OneToMany
	if b.field.Arity != List {
		kind = OneToOne
	}
	return &Relation{Name: a.name, Kind: kind, Model: a.model, Field: fwd, RelatedModel: b.model, RelatedField: b.field}
}

// ModelsByTableName returns the non-ignored models sorted by table name.
func (d *Datamodel) ModelsByTableName() []*Model {
	out := make([]*Model, 0, len(d.Models))
	for _, m := range d.Models {
		if !m.IsIgnored && !m.IsView {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].TableName() < out[j].TableName() })
	return out
}
