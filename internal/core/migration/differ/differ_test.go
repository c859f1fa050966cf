package differ

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/migrationtest"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
)

func diff(t *testing.T, f flavour.Flavour, previous, next string) *Migration {
	t.Helper()
	return Diff(migrationtest.Schema(t, f, previous), migrationtest.Schema(t, f, next), f)
}

func kinds(m *Migration) []string {
	out := make([]string, len(m.Steps))
	for i, s := range m.Steps {
		out[i] = s.Kind()
	}
	return out
}

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

func TestDiffAddModel(t *testing.T) {
	t.Run("postgres", func(t *testing.T) {
		m := diff(t, flavour.NewPostgres(), userOnly, userWithPosts)
		assert.Equal(t, []string{"CreateTable", "AddForeignKey"}, kinds(m))
		ct := m.Steps[0].(CreateTable)
		assert.Equal(t, "Post", m.Schemas.Next.Tables[ct.TableID].Name)
	})

	t.Run("mysql adds the foreign key index", func(t *testing.T) {
		m := diff(t, flavour.NewMySQL(flavour.MySQLOptions{Version: "8.0.32"}), userOnly, userWithPosts)
		assert.Equal(t, []string{"CreateTable", "CreateIndex", "AddForeignKey"}, kinds(m))
		ci := m.Steps[1].(CreateIndex)
		assert.True(t, ci.CausedByCreateTable)
	})

	t.Run("sqlite inlines foreign keys", func(t *testing.T) {
		m := diff(t, flavour.NewSQLite(), userOnly, userWithPosts)
		assert.Equal(t, []string{"CreateTable"}, kinds(m))
	})
}

func TestDiffIdenticalSchemasIsEmpty(t *testing.T) {
	for _, p := range migrationtest.Providers {
		t.Run(string(p), func(t *testing.T) {
			f := migrationtest.Flavour(t, p)
			m := diff(t, f, userWithPosts, userWithPosts)
			assert.True(t, m.IsEmpty(), "steps: %v", kinds(m))
		})
	}
}

func TestDiffMakeColumnRequired(t *testing.T) {
	m := diff(t, flavour.NewPostgres(), `
model User {
  id   Int     @id
  name String?
}
`, `
model User {
  id   Int    @id
  name String
}
`)
	require.Equal(t, []string{"AlterTable"}, kinds(m))
	at := m.Steps[0].(AlterTable)
	require.Len(t, at.Changes, 1)
	ac := at.Changes[0].(AlterColumn)
	assert.True(t, ac.Changes.Has(ArityChanged))
	assert.False(t, ac.Changes.Has(TypeChanged))
}

const catsBefore = `
model Cat {
  id   Int  @id
  mood Mood
}

enum Mood {
  HAPPY
  HUNGRY
  PLAYFUL
}
`

const catsAfter = `
model Cat {
  id   Int  @id
  mood Mood
}

enum Mood {
  HAPPY
  HUNGRY
}
`

func TestDiffDropEnumVariant(t *testing.T) {
	t.Run("postgres rewrites the table", func(t *testing.T) {
		m := diff(t, flavour.NewPostgres(), catsBefore, catsAfter)
		require.Equal(t, []string{"AlterEnum", "RedefineTables", "DropEnum"}, kinds(m))
		ae := m.Steps[0].(AlterEnum)
		assert.Equal(t, []string{"PLAYFUL"}, ae.Dropped)
		assert.Empty(t, ae.Created)

		rt := m.Steps[1].(RedefineTables)
		require.Len(t, rt.Tables, 1)
		assert.Equal(t, "Cat", m.Schemas.Next.Tables[rt.Tables[0].TableIDs.Next].Name)
		require.Len(t, rt.Tables[0].ColumnPairs, 1)

		de := m.Steps[2].(DropEnum)
		assert.True(t, de.Replaced)
		assert.Equal(t, "Mood", m.Schemas.Previous.Enums[de.EnumID].Name)
	})

	t.Run("mysql alters the column enum", func(t *testing.T) {
		m := diff(t, flavour.NewMySQL(flavour.MySQLOptions{}), catsBefore, catsAfter)
		require.Equal(t, []string{"AlterEnum"}, kinds(m))
		ae := m.Steps[0].(AlterEnum)
		assert.Equal(t, "Cat_mood", m.Schemas.Next.Enums[ae.EnumIDs.Next].Name)
		assert.Equal(t, []string{"PLAYFUL"}, ae.Dropped)
	})

	t.Run("added variants come after tables", func(t *testing.T) {
		m := diff(t, flavour.NewPostgres(), catsAfter, catsBefore)
		require.Equal(t, []string{"AlterEnum"}, kinds(m))
		ae := m.Steps[0].(AlterEnum)
		assert.Equal(t, []string{"PLAYFUL"}, ae.Created)
	})
}

const postIntID = `
model Post {
  id    Int    @id
  title String
}
`

const postStringID = `
model Post {
  id    String @id
  title String
}
`

func TestDiffChangeIDType(t *testing.T) {
	t.Run("sqlite redefines", func(t *testing.T) {
		m := diff(t, flavour.NewSQLite(), postIntID, postStringID)
		require.Equal(t, []string{"RedefineTables"}, kinds(m))
		rt := m.Steps[0].(RedefineTables)
		require.Len(t, rt.Tables, 1)
		var changed []RedefineColumn
		for _, cp := range rt.Tables[0].ColumnPairs {
			if cp.Changes.Differs() {
				changed = append(changed, cp)
			}
		}
		require.Len(t, changed, 1)
		assert.Equal(t, flavour.SafeCast, changed[0].TypeChange)
	})

	t.Run("postgres alters the column", func(t *testing.T) {
		m := diff(t, flavour.NewPostgres(), postIntID, postStringID)
		require.Equal(t, []string{"AlterTable"}, kinds(m))
		at := m.Steps[0].(AlterTable)
		require.Len(t, at.Changes, 1)
		ac := at.Changes[0].(AlterColumn)
		assert.True(t, ac.Changes.Has(TypeChanged))
		assert.Equal(t, flavour.SafeCast, ac.TypeChange)
	})

	t.Run("postgres string to int is risky", func(t *testing.T) {
		m := diff(t, flavour.NewPostgres(), postStringID, postIntID)
		at := m.Steps[0].(AlterTable)
		ac := at.Changes[0].(AlterColumn)
		assert.Equal(t, flavour.RiskyCast, ac.TypeChange)
	})
}

func TestDiffStepOrdering(t *testing.T) {
	f := flavour.NewPostgres()
	previous := migrationtest.Schema(t, f, `
model Keep {
  id   Int   @id
  olds Old[]
}

model Old {
  id     Int  @id
  keepId Int
  keep   Keep @relation(fields: [keepId], references: [id])
}
`)
	previous.Views = append(previous.Views, sqlschema.View{Name: "KeepView", Definition: "SELECT 1"})
	next := migrationtest.Schema(t, f, `
model Keep {
  id     Int    @id
  status Status @default(ON)
  news   New[]
}

model New {
  id     Int  @id
  keepId Int
  keep   Keep @relation(fields: [keepId], references: [id])
}

enum Status {
  ON
  OFF
}
`)
	m := Diff(previous, next, f)
	assert.Equal(t, []string{
		"DropView",
		"DropForeignKey",
		"CreateEnum",
		"AlterTable",
		"DropTable",
		"CreateTable",
		"AddForeignKey",
	}, kinds(m))

	dfk := m.Steps[1].(DropForeignKey)
	assert.Equal(t, "Old_keepId_fkey", dfk.ConstraintName)
}

// assertPhaseOrder checks that every step of a kind in before comes ahead
// of every step of a kind in after.
func assertPhaseOrder(t *testing.T, m *Migration, before, after func(Step) bool) {
	t.Helper()
	for i, a := range m.Steps {
		for j, b := range m.Steps {
			if before(a) && after(b) {
				assert.Less(t, i, j, "%s must precede %s in %v", a.Kind(), b.Kind(), kinds(m))
			}
		}
	}
}

func isKind(names ...string) func(Step) bool {
	return func(s Step) bool {
		for _, n := range names {
			if s.Kind() == n {
				return true
			}
		}
		return false
	}
}

func isReplacedEnumDrop(s Step) bool {
	de, ok := s.(DropEnum)
	return ok && de.Replaced
}

func TestDiffMixedPlansOrdering(t *testing.T) {
	tests := []struct {
		name     string
		previous string
		next     string
		kinds    []string
	}{
		{
			name: "variant removed while a user table is dropped",
			previous: `
model Cat {
  id   Int  @id
  mood Mood
}

model Dog {
  id   Int  @id
  mood Mood
}

enum Mood {
  HAPPY
  HUNGRY
  PLAYFUL
}
`,
			next: `
model Dog {
  id   Int  @id
  mood Mood
}

enum Mood {
  HAPPY
  HUNGRY
}
`,
			kinds: []string{"AlterEnum", "RedefineTables", "DropTable", "DropEnum"},
		},
		{
			name: "variant removed while a user column is dropped",
			previous: `
model Dog {
  id      Int  @id
  mood    Mood
  oldMood Mood
}

enum Mood {
  HAPPY
  PLAYFUL
}
`,
			next: `
model Dog {
  id   Int  @id
  mood Mood
}

enum Mood {
  HAPPY
}
`,
			kinds: []string{"AlterEnum", "AlterTable", "RedefineTables", "DropEnum"},
		},
		{
			name: "enum dropped with its only table",
			previous: `
model Cat {
  id   Int  @id
  mood Mood
}

model Keep {
  id Int @id
}

enum Mood {
  HAPPY
}
`,
			next: `
model Keep {
  id Int @id
}
`,
			kinds: []string{"DropTable", "DropEnum"},
		},
		{
			name: "related tables swapped and variant added",
			previous: `
model Owner {
  id   Int    @id
  mood Mood
  cats Cat[]
}

model Cat {
  id      Int   @id
  ownerId Int
  owner   Owner @relation(fields: [ownerId], references: [id])
}

enum Mood {
  HAPPY
}
`,
			next: `
model Owner {
  id   Int    @id
  mood Mood
  dogs Dog[]
}

model Dog {
  id      Int   @id
  mood    Mood  @default(HAPPY)
  ownerId Int
  owner   Owner @relation(fields: [ownerId], references: [id])
}

enum Mood {
  HAPPY
  HUNGRY
}
`,
			kinds: []string{"DropForeignKey", "DropTable", "CreateTable", "AlterEnum", "AddForeignKey"},
		},
		{
			name: "variant removed while related tables are swapped",
			previous: `
model Owner {
  id   Int   @id
  mood Mood
  cats Cat[]
}

model Cat {
  id      Int   @id
  mood    Mood
  ownerId Int
  owner   Owner @relation(fields: [ownerId], references: [id])
}

enum Mood {
  HAPPY
  PLAYFUL
}
`,
			next: `
model Owner {
  id   Int   @id
  mood Mood
  dogs Dog[]
}

model Dog {
  id      Int   @id
  mood    Mood
  ownerId Int
  owner   Owner @relation(fields: [ownerId], references: [id])
}

enum Mood {
  HAPPY
}
`,
			kinds: []string{"DropForeignKey", "AlterEnum", "RedefineTables", "DropTable", "DropEnum", "CreateTable", "AddForeignKey"},
		},
	}

	f := flavour.NewPostgres()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := diff(t, f, tt.previous, tt.next)
			assert.Equal(t, tt.kinds, kinds(m))

			assertPhaseOrder(t, m, isKind("DropForeignKey"), isKind("DropTable"))
			assertPhaseOrder(t, m, isKind("CreateTable"), isKind("AddForeignKey"))
			assertPhaseOrder(t, m, isKind("CreateEnum"), isKind("CreateTable", "AlterTable"))
			assertPhaseOrder(t, m, isKind("DropTable"), isKind("DropEnum"))
			assertPhaseOrder(t, m, isKind("AlterEnum", "RedefineTables", "AlterTable"), isReplacedEnumDrop)
		})
	}
}

func TestDiffCreateTablesInDependencyOrder(t *testing.T) {
	f := flavour.NewPostgres()
	m := diff(t, f, ``, `
model Comment {
  id     Int  @id
  postId Int
  post   Post @relation(fields: [postId], references: [id])
}

model Post {
  id       Int       @id
  comments Comment[]
}
`)
	var names []string
	for _, s := range m.Steps {
		if ct, ok := s.(CreateTable); ok {
			names = append(names, m.Schemas.Next.Tables[ct.TableID].Name)
		}
	}
	assert.Equal(t, []string{"Post", "Comment"}, names)
}

const indexedBefore = `
model User {
  id    Int    @id
  email String

  @@index([email], map: "old_email_idx")
}
`

const indexedAfter = `
model User {
  id    Int    @id
  email String

  @@index([email], map: "new_email_idx")
}
`

func TestDiffIndexRename(t *testing.T) {
	m := diff(t, flavour.NewPostgres(), indexedBefore, indexedAfter)
	require.Equal(t, []string{"AlterIndex"}, kinds(m))

	m = diff(t, flavour.NewMySQL(flavour.MySQLOptions{Version: "5.6.51"}), indexedBefore, indexedAfter)
	require.Equal(t, []string{"RedefineIndex"}, kinds(m))

	m = diff(t, flavour.NewSQLite(), indexedBefore, indexedAfter)
	require.Equal(t, []string{"RedefineTables"}, kinds(m))
}

func TestDiffIndexColumnsChange(t *testing.T) {
	m := diff(t, flavour.NewPostgres(), `
model User {
  id    Int    @id
  email String
  name  String

  @@index([email], map: "lookup")
}
`, `
model User {
  id    Int    @id
  email String
  name  String

  @@index([name], map: "lookup")
}
`)
	assert.Equal(t, []string{"DropIndex", "CreateIndex"}, kinds(m))
}

func TestDiffIgnoresMigrationsTable(t *testing.T) {
	f := flavour.NewPostgres()
	previous := migrationtest.Schema(t, f, userOnly)
	previous.Tables = append(previous.Tables, sqlschema.Table{Name: flavour.MigrationsTableName})
	next := migrationtest.Schema(t, f, userOnly)
	assert.True(t, Diff(previous, next, f).IsEmpty())
}

func TestDiffFromEmpty(t *testing.T) {
	f := flavour.NewPostgres()
	m := Diff(nil, migrationtest.Schema(t, f, catsBefore), f)
	assert.Equal(t, []string{"CreateEnum", "CreateTable"}, kinds(m))

	m = Diff(migrationtest.Schema(t, f, catsBefore), nil, f)
	assert.Equal(t, []string{"DropTable", "DropEnum"}, kinds(m))
}

func TestDiffDefaultChange(t *testing.T) {
	m := diff(t, flavour.NewPostgres(), `
model Counter {
  id    Int @id
  value Int @default(1)
}
`, `
model Counter {
  id    Int @id
  value Int @default(2)
}
`)
	require.Equal(t, []string{"AlterTable"}, kinds(m))
	ac := m.Steps[0].(AlterTable).Changes[0].(AlterColumn)
	assert.True(t, ac.Changes.OnlyDefaultChanged())
}

func TestSummary(t *testing.T) {
	m := diff(t, flavour.NewPostgres(), userOnly, userWithPosts)
	summary := Summary(m)
	assert.Contains(t, summary, "[+] Added tables\n  - Post")

	m = diff(t, flavour.NewPostgres(), catsBefore, catsAfter)
	assert.Contains(t, Summary(m), "[*] Changed the `Mood` enum\n  [-] Removed variant `PLAYFUL`")
}
