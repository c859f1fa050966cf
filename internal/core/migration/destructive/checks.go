package destructive

import (
	"fmt"
	"strings"
)

// check is one potential data loss, evaluated against probe results.
// evaluate returns the message and whether the check fires. A nil state
// means the database could not be inspected.
type check interface {
	table() string
	columns() []string
	unexecutable() bool
	evaluate(state *tableState, enumCount *int64) (string, bool)
}

type tableState struct {
	rows    int64
	nonNull map[string]int64
}

type dropTable struct {
	name string
}

func (c dropTable) table() string      { return c.name }
func (c dropTable) columns() []string  { return nil }
func (c dropTable) unexecutable() bool { return false }

func (c dropTable) evaluate(s *tableState, _ *int64) (string, bool) {
	if s == nil {
		return fmt.Sprintf("You are about to drop the `%s` table. If the table is not empty, all the data it contains will be lost.", c.name), true
	}
	if s.rows == 0 {
		return "", false
	}
	return fmt.Sprintf("You are about to drop the `%s` table, which is not empty (%d rows).", c.name, s.rows), true
}

type dropColumn struct {
	tableName, column string
}

func (c dropColumn) table() string      { return c.tableName }
func (c dropColumn) columns() []string  { return []string{c.column} }
func (c dropColumn) unexecutable() bool { return false }

func (c dropColumn) evaluate(s *tableState, _ *int64) (string, bool) {
	if s == nil {
		return fmt.Sprintf("You are about to drop the column `%s` on the `%s` table. All the data in the column will be lost.", c.column, c.tableName), true
	}
	n := s.nonNull[c.column]
	if n == 0 {
		return "", false
	}
	return fmt.Sprintf("You are about to drop the column `%s` on the `%s` table, which still contains %d non-null values.", c.column, c.tableName, n), true
}

type addRequiredColumn struct {
	tableName, column string
}

func (c addRequiredColumn) table() string      { return c.tableName }
func (c addRequiredColumn) columns() []string  { return nil }
func (c addRequiredColumn) unexecutable() bool { return true }

func (c addRequiredColumn) evaluate(s *tableState, _ *int64) (string, bool) {
	if s == nil {
		return fmt.Sprintf("Added the required column `%s` to the `%s` table without a default value. This is not possible if the table is not empty.", c.column, c.tableName), true
	}
	if s.rows == 0 {
		return "", false
	}
	return fmt.Sprintf("Added the required column `%s` to the `%s` table without a default value. There are %d rows in this table, it is not possible to execute this step.", c.column, c.tableName, s.rows), true
}

type madeRequired struct {
	tableName, column string
}

func (c madeRequired) table() string      { return c.tableName }
func (c madeRequired) columns() []string  { return []string{c.column} }
func (c madeRequired) unexecutable() bool { return true }

func (c madeRequired) evaluate(s *tableState, _ *int64) (string, bool) {
	if s == nil {
		return fmt.Sprintf("Made the column `%s` on table `%s` required, but there might be existing NULL values.", c.column, c.tableName), true
	}
	nulls := s.rows - s.nonNull[c.column]
	if nulls <= 0 {
		return "", false
	}
	return fmt.Sprintf("Made the column `%s` on table `%s` required, but there are %d existing NULL values.", c.column, c.tableName, nulls), true
}

type riskyCast struct {
	tableName, column string
	previous, next    string
}

func (c riskyCast) table() string      { return c.tableName }
func (c riskyCast) columns() []string  { return []string{c.column} }
func (c riskyCast) unexecutable() bool { return false }

func (c riskyCast) evaluate(s *tableState, _ *int64) (string, bool) {
	if s == nil {
		return fmt.Sprintf("You are about to alter the column `%s` on the `%s` table. The data in that column could be lost. The data in that column will be cast from `%s` to `%s`.", c.column, c.tableName, c.previous, c.next), true
	}
	n := s.nonNull[c.column]
	if n == 0 {
		return "", false
	}
	return fmt.Sprintf("You are about to alter the column `%s` on the `%s` table, which contains %d non-null values. The data in that column will be cast from `%s` to `%s`.", c.column, c.tableName, n, c.previous, c.next), true
}

// dropAndRecreate is a type change without a cast. It blocks the migration
// when the recreated column is required and the table has rows.
type dropAndRecreate struct {
	tableName, column string
	required          bool
}

func (c dropAndRecreate) table() string      { return c.tableName }
func (c dropAndRecreate) columns() []string  { return []string{c.column} }
func (c dropAndRecreate) unexecutable() bool { return c.required }

func (c dropAndRecreate) evaluate(s *tableState, _ *int64) (string, bool) {
	if c.required {
		if s != nil && s.rows == 0 {
			return "", false
		}
		return fmt.Sprintf("Changed the type of `%s` on the `%s` table. No cast exists, the column would be dropped and recreated, which cannot be done since the column is required and there is data in the table.", c.column, c.tableName), true
	}
	if s != nil && s.nonNull[c.column] == 0 {
		return "", false
	}
	return fmt.Sprintf("The `%s` column on the `%s` table would be dropped and recreated. This will lead to data loss.", c.column, c.tableName), true
}

type primaryKeyChange struct {
	name string
}

func (c primaryKeyChange) table() string      { return c.name }
func (c primaryKeyChange) columns() []string  { return nil }
func (c primaryKeyChange) unexecutable() bool { return false }

func (c primaryKeyChange) evaluate(*tableState, *int64) (string, bool) {
	return fmt.Sprintf("The primary key for the `%s` table will be changed. If it partially fails, the table could be left without primary key constraint.", c.name), true
}

// enumValuesRemoved counts rows of every column using the enum.
type enumValuesRemoved struct {
	enum   string
	values []string
	users  []columnRef
}

type columnRef struct {
	table, column string
}

func (c enumValuesRemoved) table() string      { return "" }
func (c enumValuesRemoved) columns() []string  { return nil }
func (c enumValuesRemoved) unexecutable() bool { return false }

func (c enumValuesRemoved) evaluate(_ *tableState, count *int64) (string, bool) {
	if count != nil && *count == 0 {
		return "", false
	}
	return fmt.Sprintf("The values [%s] on the enum `%s` will be removed. If these variants are still used in the database, this will fail.", strings.Join(c.values, ","), c.enum), true
}
