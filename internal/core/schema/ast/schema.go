// Package ast defines the syntax tree of the Prisma Schema Language. The
// struct tags are the participle grammar consumed by the parser package.
package ast

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// Schema is a parsed schema file.
type Schema struct {
	Pos  lexer.Position
	Tops []*Top `@@*`
}

// Top is a union of the top-level declarations.
type Top struct {
	Pos    lexer.Position
	Model  *Model       `  @@`
	Enum   *Enum        `| @@`
	Config *ConfigBlock `| @@`
}

// Models returns the model and view declarations in source order.
func (s *Schema) Models() []*Model {
	var out []*Model
	for _, t := range s.Tops {
		if t.Model != nil {
			out = append(out, t.Model)
		}
	}
	return out
}

// Enums returns the enum declarations in source order.
func (s *Schema) Enums() []*Enum {
	var out []*Enum
	for _, t := range s.Tops {
		if t.Enum != nil {
			out = append(out, t.Enum)
		}
	}
	return out
}

// Datasources returns the datasource blocks.
func (s *Schema) Datasources() []*ConfigBlock {
	return s.configBlocks("datasource")
}

// Generators returns the generator blocks.
func (s *Schema) Generators() []*ConfigBlock {
	return s.configBlocks("generator")
}

func (s *Schema) configBlocks(kind string) []*ConfigBlock {
	var out []*ConfigBlock
	for _, t := range s.Tops {
		if t.Config != nil && t.Config.Kind == kind {
			out = append(out, t.Config)
		}
	}
	return out
}

// Span is a source range.
type Span struct {
	Start lexer.Position
	End   lexer.Position
}

// SpanOf builds a span from participle positions.
func SpanOf(start, end lexer.Position) Span {
	return Span{Start: start, End: end}
}
