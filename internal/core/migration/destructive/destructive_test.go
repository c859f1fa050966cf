package destructive

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/differ"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/migrationtest"
)

type fakeInspector struct {
	tables map[string]TableCounts
	values map[string]int64
	probes []string
	fail   bool
}

func (f *fakeInspector) CountRows(_ context.Context, table string, columns []string) (TableCounts, error) {
	f.probes = append(f.probes, table)
	if f.fail {
		return TableCounts{}, errors.New("connection reset")
	}
	return f.tables[table], nil
}

func (f *fakeInspector) CountValues(_ context.Context, table, column string, _ []string) (int64, error) {
	return f.values[table+"."+column], nil
}

func plan(t *testing.T, f flavour.Flavour, previous, next string) *Plan {
	t.Helper()
	m := differ.Diff(migrationtest.Schema(t, f, previous), migrationtest.Schema(t, f, next), f)
	return NewPlan(m)
}

const optionalName = `
model User {
  id   Int     @id
  name String?
}
`

const requiredName = `
model User {
  id   Int    @id
  name String
}
`

func TestMadeColumnRequired(t *testing.T) {
	p := plan(t, flavour.NewPostgres(), optionalName, requiredName)
	require.Equal(t, 1, p.Len())

	t.Run("null values block the step", func(t *testing.T) {
		inspector := &fakeInspector{tables: map[string]TableCounts{
			"User": {Rows: 3, NonNull: map[string]int64{"name": 2}},
		}}
		d, err := p.Execute(context.Background(), inspector)
		require.NoError(t, err)
		assert.Empty(t, d.Warnings)
		require.Len(t, d.Unexecutable, 1)
		assert.Equal(t, "Made the column `name` on table `User` required, but there are 1 existing NULL values.", d.Unexecutable[0].Message)
		assert.Equal(t, 0, d.Unexecutable[0].StepIndex)
	})

	t.Run("no null values", func(t *testing.T) {
		inspector := &fakeInspector{tables: map[string]TableCounts{
			"User": {Rows: 3, NonNull: map[string]int64{"name": 3}},
		}}
		d, err := p.Execute(context.Background(), inspector)
		require.NoError(t, err)
		assert.True(t, d.IsEmpty())
	})

	t.Run("pure check reports the risk", func(t *testing.T) {
		d := p.PureCheck()
		require.Len(t, d.Unexecutable, 1)
		assert.Contains(t, d.Unexecutable[0].Message, "Made the column `name` on table `User` required")
	})
}

func TestDropTableAndColumn(t *testing.T) {
	f := flavour.NewPostgres()
	p := plan(t, f, `
model User {
  id   Int    @id
  name String
}

model Legacy {
  id Int @id
}
`, `
model User {
  id Int @id
}
`)
	inspector := &fakeInspector{tables: map[string]TableCounts{
		"User":   {Rows: 4, NonNull: map[string]int64{"name": 4}},
		"Legacy": {Rows: 2},
	}}
	d, err := p.Execute(context.Background(), inspector)
	require.NoError(t, err)
	require.Len(t, d.Warnings, 2)
	assert.Equal(t, "You are about to drop the column `name` on the `User` table, which still contains 4 non-null values.", d.Warnings[0].Message)
	assert.Equal(t, "You are about to drop the `Legacy` table, which is not empty (2 rows).", d.Warnings[1].Message)
	assert.Less(t, d.Warnings[0].StepIndex, d.Warnings[1].StepIndex)
	assert.ElementsMatch(t, []string{"User", "Legacy"}, inspector.probes)
}

func TestAddRequiredColumn(t *testing.T) {
	p := plan(t, flavour.NewMySQL(flavour.MySQLOptions{}), `
model User {
  id Int @id
}
`, requiredName)
	inspector := &fakeInspector{tables: map[string]TableCounts{"User": {Rows: 5}}}
	d, err := p.Execute(context.Background(), inspector)
	require.NoError(t, err)
	require.Len(t, d.Unexecutable, 1)
	assert.Equal(t, "Added the required column `name` to the `User` table without a default value. There are 5 rows in this table, it is not possible to execute this step.", d.Unexecutable[0].Message)

	inspector = &fakeInspector{tables: map[string]TableCounts{"User": {Rows: 0}}}
	d, err = p.Execute(context.Background(), inspector)
	require.NoError(t, err)
	assert.True(t, d.IsEmpty())
}

func TestRiskyCast(t *testing.T) {
	p := plan(t, flavour.NewPostgres(), `
model Post {
  id    Int    @id
  views String
}
`, `
model Post {
  id    Int @id
  views Int
}
`)
	inspector := &fakeInspector{tables: map[string]TableCounts{
		"Post": {Rows: 10, NonNull: map[string]int64{"views": 10}},
	}}
	d, err := p.Execute(context.Background(), inspector)
	require.NoError(t, err)
	require.Len(t, d.Warnings, 1)
	assert.Equal(t, "You are about to alter the column `views` on the `Post` table, which contains 10 non-null values. The data in that column will be cast from `Text` to `Integer`.", d.Warnings[0].Message)
}

func TestEnumValuesRemoved(t *testing.T) {
	previous := `
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
	next := `
model Cat {
  id   Int  @id
  mood Mood
}

enum Mood {
  HAPPY
  HUNGRY
}
`
	for _, f := range []flavour.Flavour{flavour.NewPostgres(), flavour.NewMySQL(flavour.MySQLOptions{})} {
		t.Run(string(f.Provider()), func(t *testing.T) {
			p := plan(t, f, previous, next)

			d, err := p.Execute(context.Background(), &fakeInspector{values: map[string]int64{"Cat.mood": 1}})
			require.NoError(t, err)
			require.Len(t, d.Warnings, 1)
			assert.Contains(t, d.Warnings[0].Message, "The values [PLAYFUL] on the enum")

			d, err = p.Execute(context.Background(), &fakeInspector{})
			require.NoError(t, err)
			assert.True(t, d.IsEmpty())
		})
	}
}

const pairKeyedOnA = `
model Pair {
  a Int
  b Int

  @@id([a])
}
`

func TestPrimaryKeyChangeAlwaysWarns(t *testing.T) {
	const message = "The primary key for the `Pair` table will be changed. If it partially fails, the table could be left without primary key constraint."

	t.Run("replaced key", func(t *testing.T) {
		p := plan(t, flavour.NewPostgres(), pairKeyedOnA, `
model Pair {
  a Int
  b Int

  @@id([a, b])
}
`)
		d, err := p.Execute(context.Background(), &fakeInspector{})
		require.NoError(t, err)
		require.Len(t, d.Warnings, 1)
		assert.Equal(t, message, d.Warnings[0].Message)
	})

	t.Run("added key", func(t *testing.T) {
		f := flavour.NewPostgres()
		previous := migrationtest.Schema(t, f, pairKeyedOnA)
		previous.Tables[0].PrimaryKey = nil
		m := differ.Diff(previous, migrationtest.Schema(t, f, pairKeyedOnA), f)
		require.Len(t, m.Steps, 1)
		at := m.Steps[0].(differ.AlterTable)
		assert.Equal(t, []differ.TableChange{differ.AddPrimaryKey{}}, at.Changes)

		p := NewPlan(m)
		pure := p.PureCheck()
		require.Len(t, pure.Warnings, 1)
		assert.Equal(t, message, pure.Warnings[0].Message)
		assert.Empty(t, pure.Unexecutable)

		d, err := p.Execute(context.Background(), &fakeInspector{})
		require.NoError(t, err)
		require.Len(t, d.Warnings, 1)
		assert.Equal(t, message, d.Warnings[0].Message)
	})
}

func TestFailedProbeFallsBackToPureMessage(t *testing.T) {
	p := plan(t, flavour.NewPostgres(), optionalName, requiredName)
	d, err := p.Execute(context.Background(), &fakeInspector{fail: true})
	require.NoError(t, err)
	require.Len(t, d.Unexecutable, 1)
	assert.Contains(t, d.Unexecutable[0].Message, "might be existing NULL values")
}

func TestCanceledContext(t *testing.T) {
	p := plan(t, flavour.NewPostgres(), optionalName, requiredName)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Execute(ctx, &fakeInspector{})
	assert.ErrorIs(t, err, context.Canceled)
}
