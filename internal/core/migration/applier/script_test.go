package applier

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/destructive"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/migrationtest"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/renderer"
)

const userOnly = `
model User {
  id Int @id
}
`

const userWithPosts = `
model User {
  id    Int    @id
  posts Post[]
}

model Post {
  id       Int  @id
  authorId Int
  author   User @relation(fields: [authorId], references: [id])
}
`

func migration(t *testing.T, f flavour.Flavour, previous, next string) (*differ.Migration, renderer.Renderer) {
	t.Helper()
	m := differ.Diff(migrationtest.Schema(t, f, previous), migrationtest.Schema(t, f, next), f)
	r, err := renderer.New(f)
	require.NoError(t, err)
	return m, r
}

func TestRenderScript(t *testing.T) {
	m, r := migration(t, flavour.NewPostgres(), userOnly, userWithPosts)
	script := RenderScript(r, m, destructive.Diagnostics{})
	assert.Equal(t, `-- CreateTable
CREATE TABLE "Post" (
    "id" INTEGER NOT NULL,
    "authorId" INTEGER NOT NULL,

    CONSTRAINT "Post_pkey" PRIMARY KEY ("id")
);

-- AddForeignKey
ALTER TABLE "Post" ADD CONSTRAINT "Post_authorId_fkey" FOREIGN KEY ("authorId") REFERENCES "User"("id") ON DELETE CASCADE ON UPDATE CASCADE;
`, script)

	assert.Len(t, SplitStatements(script, flavour.Postgres), 2)
}

func TestRenderScriptWarningsHeader(t *testing.T) {
	m, r := migration(t, flavour.NewPostgres(), userWithPosts, userOnly)
	d := destructive.Diagnostics{
		Warnings:     []destructive.Diagnostic{{Message: "You are about to drop the `Post` table, which is not empty (2 rows).", StepIndex: 1}},
		Unexecutable: []destructive.Diagnostic{{Message: "Added the required column `x` to the `User` table without a default value.", StepIndex: 0}},
	}
	script := RenderScript(r, m, d)
	assert.Equal(t, `/*
  Warnings:

  - You are about to drop the `+"`Post`"+` table, which is not empty (2 rows).
  - Added the required column `+"`x`"+` to the `+"`User`"+` table without a default value.

*/
-- DropForeignKey
ALTER TABLE "Post" DROP CONSTRAINT "Post_authorId_fkey";

-- DropTable
DROP TABLE "Post";
`, script)
}

func TestRenderScriptEmpty(t *testing.T) {
	m, r := migration(t, flavour.NewSQLite(), userOnly, userOnly)
	script := RenderScript(r, m, destructive.Diagnostics{})
	assert.Equal(t, EmptyMigrationComment+"\n", script)
	assert.Empty(t, SplitStatements(script, flavour.SQLite))
}

func TestRenderScriptMultiStatementStep(t *testing.T) {
	m, r := migration(t, flavour.NewSQLite(), `
model Post {
  id    Int    @id
  title String
}
`, `
model Post {
  id    String @id
  title String
}
`)
	script := RenderScript(r, m, destructive.Diagnostics{})
	assert.Contains(t, script, "-- RedefineTables\nPRAGMA defer_foreign_keys=ON;\n\nPRAGMA foreign_keys=OFF;\n")
	assert.Len(t, SplitStatements(script, flavour.SQLite), 9)
}
