package ast

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Model is a model or view declaration.
type Model struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Keyword string         `@("model" | "view")`
	Name    string         `@(Ident | Keyword)`
	Members []*ModelMember `"{" @@* "}"`
}

// ModelMember is a field or a block attribute.
type ModelMember struct {
	BlockAttribute *Attribute `  "@@" @@`
	Field          *Field     `| @@`
}

// IsView reports a view declaration.
func (m *Model) IsView() bool { return m.Keyword == "view" }

// Fields returns the fields in declaration order.
func (m *Model) Fields() []*Field {
	var out []*Field
	for _, mem := range m.Members {
		if mem.Field != nil {
			out = append(out, mem.Field)
		}
	}
	return out
}

// BlockAttributes returns the @@ attributes in declaration order.
func (m *Model) BlockAttributes() []*Attribute {
	var out []*Attribute
	for _, mem := range m.Members {
		if mem.BlockAttribute != nil {
			out = append(out, mem.BlockAttribute)
		}
	}
	return out
}

// BlockAttribute finds the first block attribute with the given name.
func (m *Model) BlockAttribute(name string) *Attribute {
	return findAttribute(m.BlockAttributes(), name)
}

// Field is a model field.
type Field struct {
	Pos        lexer.Position
	EndPos     lexer.Position
	Name       string       `@(Ident | Keyword)`
	Type       *FieldType   `@@`
	List       bool         `( @("[" "]")`
	Optional   bool         `| @"?" )?`
	Attributes []*Attribute `( "@" @@ )*`
}

// Attribute finds the first field attribute with the given name.
func (f *Field) Attribute(name string) *Attribute {
	return findAttribute(f.Attributes, name)
}

// FieldType is a type reference or Unsupported("...").
type FieldType struct {
	Pos         lexer.Position
	Unsupported *string `  "Unsupported" "(" @String ")"`
	Name        string  `| @Ident`
}

func (t *FieldType) String() string {
	if t.Unsupported != nil {
		return "Unsupported(\"" + *t.Unsupported + "\")"
	}
	return t.Name
}

// Enum is an enum declaration.
type Enum struct {
	Pos     lexer.Position
	EndPos  lexer.Position
	Name    string        `"enum" @(Ident | Keyword)`
	Members []*EnumMember `"{" @@* "}"`
}

// EnumMember is a value or a block attribute.
type EnumMember struct {
	BlockAttribute *Attribute `  "@@" @@`
	Value          *EnumValue `| @@`
}

// EnumValue is one variant of an enum.
type EnumValue struct {
	Pos        lexer.Position
	Name       string       `@Ident`
	Attributes []*Attribute `( "@" @@ )*`
}

// Values returns the enum values in declaration order.
func (e *Enum) Values() []*EnumValue {
	var out []*EnumValue
	for _, mem := range e.Members {
		if mem.Value != nil {
			out = append(out, mem.Value)
		}
	}
	return out
}

// BlockAttribute finds the first block attribute with the given name.
func (e *Enum) BlockAttribute(name string) *Attribute {
	var attrs []*Attribute
	for _, mem := range e.Members {
		if mem.BlockAttribute != nil {
			attrs = append(attrs, mem.BlockAttribute)
		}
	}
	return findAttribute(attrs, name)
}

// ConfigBlock is a datasource or generator block.
type ConfigBlock struct {
	Pos        lexer.Position
	Kind       string            `@("datasource" | "generator")`
	Name       string            `@(Ident | Keyword)`
	Properties []*ConfigProperty `"{" @@* "}"`
}

// ConfigProperty is a key = value line of a config block.
type ConfigProperty struct {
	Pos   lexer.Position
	Name  string     `@Ident`
	Value Expression `"=" @@`
}

// Property finds a property by name.
func (c *ConfigBlock) Property(name string) *ConfigProperty {
	for _, p := range c.Properties {
		if p.Name == name {
			return p
		}
	}
	return nil
}
