package datamodel

import (
	"fmt"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// Diagnostic is one validation error with its source position.
type Diagnostic struct {
	Message string
	Pos     lexer.Position
}

func (d Diagnostic) String() string {
	if d.Pos.Line == 0 {
		return "error: " + d.Message
	}
	file := d.Pos.Filename
	if file == "" {
		file = "schema.prisma"
	}
	return fmt.Sprintf("error: %s\n  -->  %s:%d", d.Message, file, d.Pos.Line)
}

// Diagnostics is the list of errors produced while lifting a schema.
type Diagnostics []Diagnostic

func (d Diagnostics) Error() string {
	parts := make([]string, len(d))
	for i, diag := range d {
		parts[i] = diag.String()
	}
	return strings.Join(parts, "\n")
}

// HasErrors reports whether any diagnostic was recorded.
func (d Diagnostics) HasErrors() bool { return len(d) > 0 }

// Err returns nil for an empty list.
func (d Diagnostics) Err() error {
	if len(d) == 0 {
		return nil
	}
	return d
}

func (d *Diagnostics) addf(pos lexer.Position, format string, args ...any) {
	*d = append(*d, Diagnostic{Message: fmt.Sprintf(format, args...), Pos: pos})
}
