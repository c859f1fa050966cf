// Package main is the entry point for the migration engine.
package main

import (
	"fmt"
	"os"

	"github.com/satishbabariya/prisma-migrate/cmd/migration-engine/commands"
)

func main() {
	if err := commands.NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
