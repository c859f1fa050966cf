package datamodel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/sqlschema"
	"github.com/satishbabariya/prisma-migrate/internal/core/schema/parser"
)

const datasourcePostgres = `
datasource db {
  provider          = "postgresql"
  url               = env("TEST_DATABASE_URL")
  shadowDatabaseUrl = "postgresql://localhost:5432/shadow"
}
`

func lift(t *testing.T, src string) (*Datamodel, Diagnostics) {
	t.Helper()
	tree, err := parser.ParseString("schema.prisma", src)
	require.NoError(t, err)
	return Lift(tree)
}

func TestLiftBlog(t *testing.T) {
	dm, diags := lift(t, datasourcePostgres+`
generator client {
  provider        = "prisma-client-js"
  previewFeatures = ["fullTextIndex", "metrics"]
}

model User {
  id    Int     @id @default(autoincrement())
  email String  @unique(map: "user_email")
  name  String? @map("full_name")
  role  Role    @default(ADMIN)
  posts Post[]

  @@map("users")
}

model Post {
  id       Int    @id
  title    String @db.VarChar(200)
  authorId Int
  author   User   @relation(fields: [authorId], references: [id], onDelete: Restrict)

  @@index([title])
}

enum Role {
  USER
  ADMIN @map("admin")
}
`)
	require.Empty(t, diags)

	require.NotNil(t, dm.Datasource)
	assert.Equal(t, flavour.Postgres, dm.Provider())
	assert.Equal(t, "TEST_DATABASE_URL", dm.Datasource.URL.FromEnvVar)
	require.NotNil(t, dm.Datasource.ShadowDatabaseURL)
	assert.Equal(t, "postgresql://localhost:5432/shadow", dm.Datasource.ShadowDatabaseURL.Value)
	assert.Equal(t, []string{"fullTextIndex", "metrics"}, dm.PreviewFeatures())

	user, ok := dm.Model("User")
	require.True(t, ok)
	assert.Equal(t, "users", user.TableName())
	require.NotNil(t, user.PrimaryKey)
	assert.Equal(t, []string{"id"}, user.PrimaryKey.Fields)

	id, _ := user.ScalarField("id")
	require.NotNil(t, id.Default)
	assert.Equal(t, DefaultAutoincrement, id.Default.Kind)

	email, _ := user.ScalarField("email")
	assert.True(t, email.IsUnique)
	assert.Equal(t, "user_email", email.UniqueName)

	name, _ := user.ScalarField("name")
	assert.Equal(t, Optional, name.Arity)
	assert.Equal(t, "full_name", name.ColumnName())

	role, _ := user.ScalarField("role")
	assert.True(t, role.Type.IsEnum())
	assert.Equal(t, sqlschema.ValueEnum, role.Default.Value.Kind)
	assert.Equal(t, "admin", role.Default.Value.Raw)

	post, _ := dm.Model("Post")
	title, _ := post.ScalarField("title")
	require.NotNil(t, title.NativeType)
	assert.Equal(t, "VarChar(200)", title.NativeType.String())
	require.Len(t, post.Indexes, 1)
	assert.Equal(t, IndexNormal, post.Indexes[0].Kind)

	rels := dm.Relations()
	require.Len(t, rels, 1)
	assert.Equal(t, "PostToUser", rels[0].Name)
	assert.Equal(t, OneToMany, rels[0].Kind)
	assert.Equal(t, "Post", rels[0].Model.Name)
	assert.Equal(t, "author", rels[0].Field.Name)
	require.NotNil(t, rels[0].Field.Info.OnDelete)
	assert.Equal(t, sqlschema.Restrict, *rels[0].Field.Info.OnDelete)
}

func TestLiftManyToMany(t *testing.T) {
	dm, diags := lift(t, datasourcePostgres+`
model Post {
  id         Int        @id
  categories Category[]
}

model Category {
  id    Int    @id
  posts Post[]
}
`)
	require.Empty(t, diags)
	rels := dm.Relations()
	require.Len(t, rels, 1)
	assert.Equal(t, ManyToMany, rels[0].Kind)
	assert.Equal(t, "CategoryToPost", rels[0].Name)
	assert.Equal(t, "_CategoryToPost", rels[0].JoinTableName())
	assert.Equal(t, "Category", rels[0].Model.Name)
	assert.Equal(t, "Post", rels[0].RelatedModel.Name)
}

func TestLiftSelfRelation(t *testing.T) {
	dm, diags := lift(t, datasourcePostgres+`
model Employee {
  id        Int        @id
  managerId Int?
  manager   Employee?  @relation("Management", fields: [managerId], references: [id])
  reports   Employee[] @relation("Management")
}
`)
	require.Empty(t, diags)
	rels := dm.Relations()
	require.Len(t, rels, 1)
	assert.Equal(t, "Management", rels[0].Name)
	assert.Equal(t, "manager", rels[0].Field.Name)
	assert.Equal(t, "reports", rels[0].RelatedField.Name)
}

func TestLiftValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		schema  string
		message string
	}{
		{
			name:    "missing id",
			schema:  `model A { name String }`,
			message: "exactly one id criterion",
		},
		{
			name:    "id and block id",
			schema:  `model A { id Int @id` + "\n" + `other Int` + "\n" + `@@id([id, other]) }`,
			message: "at most one id criteria",
		},
		{
			name:    "unknown type",
			schema:  `model A { id Int @id` + "\n" + `b Foo }`,
			message: `Type "Foo" is neither a built-in type`,
		},
		{
			name:    "missing opposite field",
			schema:  "model A { id Int @id\n bId Int\n b B @relation(fields: [bId], references: [id]) }\nmodel B { id Int @id }",
			message: "missing an opposite relation field",
		},
		{
			name:    "no side carries fields",
			schema:  "model A { id Int @id\n b B? }\nmodel B { id Int @id\n a A? }",
			message: "do not provide the `fields` argument",
		},
		{
			name:    "fields and references mismatch",
			schema:  "model A { id Int @id\n bId Int\n b B @relation(fields: [bId], references: [id, x]) }\nmodel B { id Int @id\n x Int\n as A[] }",
			message: "same number of fields",
		},
		{
			name:    "autoincrement on string",
			schema:  `model A { id String @id @default(autoincrement()) }`,
			message: "autoincrement() cannot be used on fields of type String",
		},
		{
			name:    "unknown attribute",
			schema:  `model A { id Int @id @foo }`,
			message: `Attribute not known: "@foo"`,
		},
		{
			name:    "bad enum default",
			schema:  "model A { id Int @id\n r R @default(C) }\nenum R {\n A\n B\n}",
			message: "not a valid value of the enum",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, diags := lift(t, datasourcePostgres+tt.schema)
			require.True(t, diags.HasErrors())
			assert.Contains(t, diags.Error(), tt.message)
		})
	}
}

func TestScalarListsRequirePostgres(t *testing.T) {
	schema := `
model A {
  id   Int      @id
  tags String[]
}
`
	_, diags := lift(t, datasourcePostgres+schema)
	assert.Empty(t, diags)

	_, diags = lift(t, `datasource db {
  provider = "mysql"
  url      = "mysql://root@localhost/db"
}
`+schema)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "can't be a list")
}

func TestNativeTypeValidation(t *testing.T) {
	_, diags := lift(t, datasourcePostgres+`
model A {
  id   Int    @id
  name String @db.Integer
}
`)
	require.True(t, diags.HasErrors())
	assert.Contains(t, diags.Error(), "not compatible with declared field type String")

	_, diags = lift(t, datasourcePostgres+`
model A {
  id   Int    @id
  name String @db.Bogus
}
`)
	assert.Contains(t, diags.Error(), "Native type Bogus is not supported")
}

func TestParseReturnsKnownError(t *testing.T) {
	_, err := Parse("schema.prisma", "model A {")
	require.Error(t, err)
	assert.True(t, domain.HasCode(err, domain.CodeSchemaParserError))

	_, err = Parse("schema.prisma", "model A { name String }")
	require.Error(t, err)
	known, ok := domain.AsKnownError(err)
	require.True(t, ok)
	assert.Contains(t, known.Message, "schema.prisma:1")
}

func TestStringFromEnv(t *testing.T) {
	lookup := func(name string) (string, bool) {
		if name == "DB" {
			return "file:dev.db", true
		}
		return "", false
	}
	v, err := StringFromEnv{FromEnvVar: "DB"}.ResolveWith(lookup)
	require.NoError(t, err)
	assert.Equal(t, "file:dev.db", v)

	_, err = StringFromEnv{FromEnvVar: "MISSING"}.ResolveWith(lookup)
	assert.Error(t, err)

	v, err = StringFromEnv{Value: "literal"}.ResolveWith(lookup)
	require.NoError(t, err)
	assert.Equal(t, "literal", v)
}
