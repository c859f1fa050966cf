package parser

import (
	"github.com/alecthomas/participle/v2/lexer"
)

// SchemaLexer tokenizes Prisma Schema Language. Rules are tried in order.
var SchemaLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "Keyword", Pattern: `\b(model|view|enum|datasource|generator|type|Unsupported)\b`},

	// @@ before @
	{Name: "BlockAttr", Pattern: `@@`},
	{Name: "FieldAttr", Pattern: `@`},

	{Name: "Punct", Pattern: `[{}()\[\]:,.=?]`},

	{Name: "String", Pattern: `"(?:\\.|[^"\\])*"`},
	{Name: "Number", Pattern: `-?\d+(?:\.\d+)?`},
	{Name: "Ident", Pattern: `[\p{L}_][\p{L}\p{N}_-]*`},

	{Name: "DocComment", Pattern: `///[^\n]*`},
	{Name: "Comment", Pattern: `//[^\n]*`},
	{Name: "MultiLineComment", Pattern: `/\*(?:[^*]|\*+[^*/])*\*+/`},

	{Name: "Newline", Pattern: `[\r\n]+`},
	{Name: "Whitespace", Pattern: `[ \t]+`},
})
