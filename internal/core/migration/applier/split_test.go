package applier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/satishbabariya/prisma-migrate/internal/core/migration/flavour"
)

func TestSplitStatements(t *testing.T) {
	tests := []struct {
		name     string
		provider flavour.Provider
		script   string
		want     []string
	}{
		{
			name:     "semicolons end statements",
			provider: flavour.Postgres,
			script:   "CREATE TABLE a (id INT);\n\nCREATE TABLE b (id INT);\n",
			want:     []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"},
		},
		{
			name:     "semicolons inside literals and comments",
			provider: flavour.Postgres,
			script:   "-- first; step\nINSERT INTO a VALUES ('x;y');\n/* block; comment */\nSELECT \"odd;name\" FROM a;",
			want:     []string{"-- first; step\nINSERT INTO a VALUES ('x;y')", "/* block; comment */\nSELECT \"odd;name\" FROM a"},
		},
		{
			name:     "comment only statements are dropped",
			provider: flavour.SQLite,
			script:   "/*\n  Warnings:\n*/\n-- This is an empty migration.\n",
			want:     nil,
		},
		{
			name:     "dollar quoted bodies",
			provider: flavour.Postgres,
			script:   "CREATE FUNCTION f() RETURNS trigger AS $body$ BEGIN RETURN NEW; END; $body$ LANGUAGE plpgsql;\nSELECT $1;",
			want:     []string{"CREATE FUNCTION f() RETURNS trigger AS $body$ BEGIN RETURN NEW; END; $body$ LANGUAGE plpgsql", "SELECT $1"},
		},
		{
			name:     "mysql delimiter directive",
			provider: flavour.MySQL,
			script:   "DELIMITER $$\nCREATE PROCEDURE p() BEGIN SELECT 1; END$$\nDELIMITER ;\nSELECT 'it\\'s';",
			want:     []string{"CREATE PROCEDURE p() BEGIN SELECT 1; END", "SELECT 'it\\'s'"},
		},
		{
			name:     "sql server brackets",
			provider: flavour.SQLServer,
			script:   "CREATE TABLE [dbo].[a;b] ([id] INT);\nDROP TABLE [x]",
			want:     []string{"CREATE TABLE [dbo].[a;b] ([id] INT)", "DROP TABLE [x]"},
		},
		{
			name:     "doubled quotes",
			provider: flavour.SQLite,
			script:   "INSERT INTO a VALUES ('it''s; fine');",
			want:     []string{"INSERT INTO a VALUES ('it''s; fine')"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitStatements(tt.script, tt.provider))
		})
	}
}
