package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/database"
	"github.com/satishbabariya/prisma-migrate/internal/config"
	"github.com/satishbabariya/prisma-migrate/internal/core/migration/domain"
	"github.com/satishbabariya/prisma-migrate/internal/service"
	"github.com/satishbabariya/prisma-migrate/internal/utils/container"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
)

// NewCLICommand creates the cli command, which runs one database
// operation and exits.
func NewCLICommand() *cobra.Command {
	var datasource string

	cmd := &cobra.Command{
		Use:   "cli",
		Short: "Run a single database operation",
	}
	cmd.PersistentFlags().StringVar(&datasource, "datasource", "", "Connection string of the target database")
	_ = cmd.MarkPersistentFlagRequired("datasource")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "create-database",
			Short: "Create the database named in the connection string",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCLI(cmd, datasource, createDatabase)
			},
		},
		&cobra.Command{
			Use:   "drop-database",
			Short: "Drop the database named in the connection string",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCLI(cmd, datasource, dropDatabase)
			},
		},
		&cobra.Command{
			Use:   "can-connect-to-database",
			Short: "Check that the database can be reached",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runCLI(cmd, datasource, canConnect)
			},
		},
	)

	return cmd
}

type cliAction func(ctx context.Context, c database.Connector) (string, error)

func runCLI(cmd *cobra.Command, datasource string, action cliAction) error {
	provider, err := service.ProviderFromURL(datasource)
	if err != nil {
		return err
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	connector, err := service.NewConnector(provider, container.DatabaseConfig(cfg, datasource))
	if err != nil {
		return err
	}
	defer connector.Disconnect(context.WithoutCancel(cmd.Context()))

	msg, err := action(cmd.Context(), connector)
	if err != nil {
		printError(cmd.ErrOrStderr(), err)
		return err
	}
	successColor.Fprintln(cmd.OutOrStdout(), msg)
	return nil
}

func createDatabase(ctx context.Context, c database.Connector) (string, error) {
	name, err := c.CreateDatabase(ctx)
	if err != nil {
		if _, ok := domain.AsKnownError(err); ok {
			return "", err
		}
		return "", domain.NewDatabaseCreationFailed(err)
	}
	return fmt.Sprintf("Database '%s' was successfully created.", name), nil
}

func dropDatabase(ctx context.Context, c database.Connector) (string, error) {
	name := c.Info().Database
	if err := c.DropDatabase(ctx); err != nil {
		return "", err
	}
	return fmt.Sprintf("The database '%s' was successfully dropped.", name), nil
}

func canConnect(ctx context.Context, c database.Connector) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	if err := c.Ping(ctx); err != nil {
		return "", err
	}
	return "Connection successful", nil
}

// printError writes known errors as JSON, which callers parse, and other
// errors as plain text.
func printError(w io.Writer, err error) {
	if known, ok := domain.AsKnownError(err); ok {
		if b, jerr := json.Marshal(known); jerr == nil {
			errorColor.Fprintln(w, string(b))
			return
		}
	}
	errorColor.Fprintln(w, err.Error())
}
