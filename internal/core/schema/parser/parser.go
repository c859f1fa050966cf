// Package parser parses Prisma Schema Language into the ast package's tree.
package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"

	"github.com/satishbabariya/prisma-migrate/internal/core/schema/ast"
)

var schemaParser = participle.MustBuild[ast.Schema](
	participle.Lexer(SchemaLexer),
	participle.Elide("Whitespace", "Newline", "Comment", "DocComment", "MultiLineComment"),
	participle.Unquote("String"),
	participle.UseLookahead(10),
	participle.Union[ast.Expression](
		&ast.FunctionCall{},
		&ast.ArrayExpression{},
		&ast.StringValue{},
		&ast.NumericValue{},
		&ast.ConstantValue{},
	),
)

// SyntaxError is a parse failure with its source position.
type SyntaxError struct {
	Pos     lexer.Position
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.Pos.Filename, e.Pos.Line, e.Pos.Column, e.Message)
}

// Parse parses a schema from r.
func Parse(filename string, r io.Reader) (*ast.Schema, error) {
	schema, err := schemaParser.Parse(filename, r)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, &SyntaxError{Pos: perr.Position(), Message: perr.Message()}
		}
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return schema, nil
}

// ParseString parses a schema held in memory.
func ParseString(filename, input string) (*ast.Schema, error) {
	return Parse(filename, strings.NewReader(input))
}

// MustParseString parses a schema and panics on error. Intended for tests.
func MustParseString(input string) *ast.Schema {
	schema, err := ParseString("schema.prisma", input)
	if err != nil {
		panic(err)
	}
	return schema
}
