package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/core/schema/ast"
)

const blogSchema = `
datasource db {
  provider = "postgresql"
  url      = env("DATABASE_URL")
}

generator client {
  provider        = "prisma-client-js"
  previewFeatures = ["fullTextIndex"]
}

/// A blog author
model User {
  id    Int     @id @default(autoincrement())
  email String  @unique @db.VarChar(255)
  name  String? // nullable
  posts Post[]
  role  Role    @default(USER)

  @@map("users")
}

model Post {
  id       String   @id @default(uuid())
  title    String
  authorId Int
  author   User     @relation(fields: [authorId], references: [id], onDelete: Cascade)
  tags     String[]
  geo      Unsupported("geometry")?
  type     Int      @default(-1)

  @@index([title(sort: Desc), authorId], map: "post_title")
  @@unique([authorId, title],)
}

enum Role {
  USER
  ADMIN @map("admin")

  @@map("roles")
}
`

func TestParseBlogSchema(t *testing.T) {
	schema, err := ParseString("schema.prisma", blogSchema)
	require.NoError(t, err)

	require.Len(t, schema.Datasources(), 1)
	ds := schema.Datasources()[0]
	assert.Equal(t, "db", ds.Name)
	provider, ok := ast.AsString(ds.Property("provider").Value)
	require.True(t, ok)
	assert.Equal(t, "postgresql", provider)
	env, ok := ast.AsFunction(ds.Property("url").Value)
	require.True(t, ok)
	assert.Equal(t, "env", env.Name)

	gen := schema.Generators()[0]
	features, ok := ast.StringList(gen.Property("previewFeatures").Value)
	require.True(t, ok)
	assert.Equal(t, []string{"fullTextIndex"}, features)

	models := schema.Models()
	require.Len(t, models, 2)

	user := models[0]
	assert.Equal(t, "User", user.Name)
	fields := user.Fields()
	require.Len(t, fields, 5)
	assert.Equal(t, "Int", fields[0].Type.Name)
	assert.NotNil(t, fields[0].Attribute("id"))
	assert.NotNil(t, fields[1].Attribute("db.VarChar"))
	assert.True(t, fields[2].Optional)
	assert.True(t, fields[3].List)
	mapped, _ := ast.AsString(user.BlockAttribute("map").Argument("name", 0))
	assert.Equal(t, "users", mapped)
}

func TestParseRelationsAndIndexes(t *testing.T) {
	schema := MustParseString(blogSchema)
	post := schema.Models()[1]
	fields := post.Fields()

	author := fields[3]
	rel := author.Attribute("relation")
	require.NotNil(t, rel)
	cols, ok := ast.FieldRefs(rel.Argument("fields", -1))
	require.True(t, ok)
	assert.Equal(t, []string{"authorId"}, cols)
	action, _ := ast.AsConstant(rel.Argument("onDelete", -1))
	assert.Equal(t, "Cascade", action)

	geo := fields[5]
	require.NotNil(t, geo.Type.Unsupported)
	assert.Equal(t, "geometry", *geo.Type.Unsupported)
	assert.True(t, geo.Optional)

	typeField := fields[6]
	assert.Equal(t, "type", typeField.Name)
	num, ok := typeField.Attribute("default").Argument("value", 0).(*ast.NumericValue)
	require.True(t, ok)
	assert.Equal(t, "-1", num.Value)

	idx := post.BlockAttribute("index")
	require.NotNil(t, idx)
	refs, ok := ast.FieldRefs(idx.Argument("fields", 0))
	require.True(t, ok)
	assert.Equal(t, []string{"title", "authorId"}, refs)
	name, _ := ast.AsString(idx.Argument("map", -1))
	assert.Equal(t, "post_title", name)

	assert.NotNil(t, post.BlockAttribute("unique"))
}

func TestParseEnum(t *testing.T) {
	schema := MustParseString(blogSchema)
	enums := schema.Enums()
	require.Len(t, enums, 1)

	values := enums[0].Values()
	require.Len(t, values, 2)
	assert.Equal(t, "USER", values[0].Name)
	assert.Equal(t, "ADMIN", values[1].Name)
	assert.NotNil(t, enums[0].BlockAttribute("map"))
}

func TestParseDbGeneratedDefault(t *testing.T) {
	schema := MustParseString(`
model Session {
  id      String   @id @default(dbgenerated("gen_random_uuid()")) @db.Uuid
  expires DateTime @default(now())
  score   Float    @default(0.5)
  active  Boolean  @default(true)
}`)
	fields := schema.Models()[0].Fields()

	call, ok := ast.AsFunction(fields[0].Attribute("default").Argument("value", 0))
	require.True(t, ok)
	assert.Equal(t, "dbgenerated", call.Name)
	expr, _ := ast.AsString(call.Args()[0].Value)
	assert.Equal(t, "gen_random_uuid()", expr)

	now, ok := ast.AsFunction(fields[1].Attribute("default").Argument("value", 0))
	require.True(t, ok)
	assert.Equal(t, "now", now.Name)
	assert.Empty(t, now.Args())

	b, ok := ast.AsBool(fields[3].Attribute("default").Argument("value", 0))
	require.True(t, ok)
	assert.True(t, b)
}

func TestParseSyntaxErrorHasPosition(t *testing.T) {
	_, err := ParseString("schema.prisma", "model User {\n  id Int @id\n  name\n}")
	require.Error(t, err)

	var syntaxErr *SyntaxError
	require.ErrorAs(t, err, &syntaxErr)
	assert.GreaterOrEqual(t, syntaxErr.Pos.Line, 3)
}

func TestParseEmptySchema(t *testing.T) {
	schema, err := ParseString("schema.prisma", "// nothing here\n")
	require.NoError(t, err)
	assert.Empty(t, schema.Models())
}
