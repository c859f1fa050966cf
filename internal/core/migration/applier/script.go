package applier

import (
	"strings"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/renderer"
)

// EmptyMigrationComment is the body of a draft migration without steps.
const EmptyMigrationComment = "-- This is an empty migration."

// RenderScript renders the canonical migration.sql of m: a comment header
// with the diagnostics, then one commented block per step.
func RenderScript(r renderer.Renderer, m *differ.Migration, diagnostics destructive.Diagnostics) string {
	var b strings.Builder
	writeHeader(&b, diagnostics)

	blocks := 0
	for _, step := range m.Steps {
		stmts := nonEmpty(renderer.RenderStep(r, m, step))
		if len(stmts) == 0 {
			continue
		}
		if blocks > 0 {
			b.WriteString("\n")
		}
		blocks++
		b.WriteString("-- " + step.Kind() + "\n")
		for i, stmt := range stmts {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(stmt + ";\n")
		}
	}
	if blocks == 0 {
		b.WriteString(EmptyMigrationComment + "\n")
	}
	return b.String()
}

func writeHeader(b *strings.Builder, d destructive.Diagnostics) {
	if d.IsEmpty() {
		return
	}
	b.WriteString("/*\n  Warnings:\n\n")
	for _, w := range d.Warnings {
		b.WriteString("  - " + w.Message + "\n")
	}
	for _, u := range d.Unexecutable {
		b.WriteString("  - " + u.Message + "\n")
	}
	b.WriteString("\n*/\n")
}

func nonEmpty(stmts []string) []string {
	out := stmts[:0:0]
	for _, s := range stmts {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
