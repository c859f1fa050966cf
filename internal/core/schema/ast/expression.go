package ast

import (
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Attribute is a field (@name) or block (@@name) attribute. The prefix is
// matched by the enclosing node.
type Attribute struct {
	Pos       lexer.Position
	Name      string        `@Ident ( @"." @Ident )*`
	Arguments *ArgumentList `( "(" @@? ")" )?`
}

// Argument returns the named argument, or the positional argument at index
// pos when no argument carries the name. A negative pos disables the
// positional fallback.
func (a *Attribute) Argument(name string, pos int) Expression {
	if a.Arguments == nil {
		return nil
	}
	for _, arg := range a.Arguments.Arguments {
		if arg.Name == name {
			return arg.Value
		}
	}
	if pos < 0 {
		return nil
	}
	positional := 0
	for _, arg := range a.Arguments.Arguments {
		if arg.Name != "" {
			continue
		}
		if positional == pos {
			return arg.Value
		}
		positional++
	}
	return nil
}

func (a *Attribute) String() string {
	if a.Arguments == nil {
		return a.Name
	}
	return a.Name + "(" + a.Arguments.String() + ")"
}

func findAttribute(attrs []*Attribute, name string) *Attribute {
	for _, a := range attrs {
		if a.Name == name {
			return a
		}
	}
	return nil
}

// ArgumentList is the parenthesised argument list of an attribute or call.
type ArgumentList struct {
	Pos       lexer.Position
	Arguments []*Argument `@@ ( "," @@ )* ","?`
}

func (l *ArgumentList) String() string {
	if l == nil {
		return ""
	}
	parts := make([]string, len(l.Arguments))
	for i, a := range l.Arguments {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Argument is a named or positional argument.
type Argument struct {
	Pos   lexer.Position
	Name  string     `( @Ident ":" )?`
	Value Expression `@@`
}

func (a *Argument) String() string {
	if a.Name != "" {
		return a.Name + ": " + a.Value.String()
	}
	return a.Value.String()
}

// Expression is a value: string, number, constant, function call or array.
type Expression interface {
	Position() lexer.Position
	String() string
}

// StringValue is a quoted string, already unquoted by the lexer.
type StringValue struct {
	Pos   lexer.Position
	Value string `@String`
}

func (s *StringValue) Position() lexer.Position { return s.Pos }
func (s *StringValue) String() string           { return strconv.Quote(s.Value) }

// NumericValue is an integer or decimal literal.
type NumericValue struct {
	Pos   lexer.Position
	Value string `@Number`
}

func (n *NumericValue) Position() lexer.Position { return n.Pos }
func (n *NumericValue) String() string           { return n.Value }

// ConstantValue is a bare identifier such as true, Cascade or a field name.
type ConstantValue struct {
	Pos   lexer.Position
	Value string `@Ident`
}

func (c *ConstantValue) Position() lexer.Position { return c.Pos }
func (c *ConstantValue) String() string           { return c.Value }

// FunctionCall is a call like env("URL") or autoincrement().
type FunctionCall struct {
	Pos       lexer.Position
	Name      string        `@Ident "("`
	Arguments *ArgumentList `@@? ")"`
}

func (f *FunctionCall) Position() lexer.Position { return f.Pos }
func (f *FunctionCall) String() string           { return f.Name + "(" + f.Arguments.String() + ")" }

// Args returns the call arguments.
func (f *FunctionCall) Args() []*Argument {
	if f.Arguments == nil {
		return nil
	}
	return f.Arguments.Arguments
}

// ArrayExpression is a bracketed list.
type ArrayExpression struct {
	Pos      lexer.Position
	Elements []Expression `"[" ( @@ ( "," @@ )* ","? )? "]"`
}

func (a *ArrayExpression) Position() lexer.Position { return a.Pos }

func (a *ArrayExpression) String() string {
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// AsString returns the value of a string literal.
func AsString(e Expression) (string, bool) {
	s, ok := e.(*StringValue)
	if !ok {
		return "", false
	}
	return s.Value, true
}

// AsConstant returns the identifier of a constant.
func AsConstant(e Expression) (string, bool) {
	c, ok := e.(*ConstantValue)
	if !ok {
		return "", false
	}
	return c.Value, true
}

// AsFunction returns a function call.
func AsFunction(e Expression) (*FunctionCall, bool) {
	f, ok := e.(*FunctionCall)
	return f, ok
}

// AsBool interprets the constants true and false.
func AsBool(e Expression) (bool, bool) {
	switch v, _ := AsConstant(e); v {
	case "true":
		return true, true
	case "false":
		return false, true
	}
	return false, false
}

// FieldRefs returns the names of a field reference list such as
// [a, b(sort: Desc)] or a single bare reference.
func FieldRefs(e Expression) ([]string, bool) {
	switch v := e.(type) {
	case *ArrayExpression:
		out := make([]string, 0, len(v.Elements))
		for _, el := range v.Elements {
			switch ref := el.(type) {
			case *ConstantValue:
				out = append(out, ref.Value)
			case *FunctionCall:
				out = append(out, ref.Name)
			default:
				return nil, false
			}
		}
		return out, true
	case *ConstantValue:
		return []string{v.Value}, true
	}
	return nil, false
}

// StringList returns the values of an array of string literals.
func StringList(e Expression) ([]string, bool) {
	arr, ok := e.(*ArrayExpression)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(arr.Elements))
	for _, el := range arr.Elements {
		s, ok := AsString(el)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
