// Package commands implements the migration engine commands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/satishbabariya/prisma-migrate/internal/adapters/telemetry"
	"github.com/satishbabariya/prisma-migrate/internal/config"
	"github.com/satishbabariya/prisma-migrate/internal/debug"
	"github.com/satishbabariya/prisma-migrate/internal/rpc"
	"github.com/satishbabariya/prisma-migrate/internal/utils/container"
)

// Version information (set at build time).
var (
	Version   = "dev"
	GitCommit = "unknown"
)

type rootOptions struct {
	datamodel     string
	datasourceURL string
	logFormat     string
	logLevel      string
	metricsAddr   string
}

// NewRootCommand creates the engine command. Without a subcommand it serves
// JSON-RPC requests on stdin until EOF.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "migration-engine",
		Short: "Prisma migration engine",
		Long: `The migration engine reads JSON-RPC 2.0 requests, one per line, on stdin
and writes one response per line on stdout. Logs are written to stderr.`,
		Version:       fmt.Sprintf("%s (commit: %s, %s)", Version, GitCommit, runtime.Version()),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			initLogging(opts)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.datamodel, "datamodel", "d", "", "Path to the Prisma schema file")
	flags.StringVar(&opts.datasourceURL, "datasource-url", "", "Connection string, overrides the schema datasource")
	flags.StringVar(&opts.logFormat, "log-format", "", "Log format: json or text (defaults to RUST_LOG_FORMAT)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	cmd.AddCommand(NewCLICommand())

	return cmd
}

func initLogging(opts *rootOptions) {
	format := debug.FormatFromEnv()
	if opts.logFormat != "" {
		format = debug.Format(opts.logFormat)
	}
	level := opts.logLevel
	if level == "" {
		level = os.Getenv("PRISMA_MIGRATE_LOG_LEVEL")
	}
	debug.Init(debug.Options{Format: format, Level: level})
}

// loadConfig merges the flags into the file and environment configuration.
func loadConfig(opts *rootOptions) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if opts.datamodel != "" {
		cfg.SchemaPath = opts.datamodel
	}
	if opts.datasourceURL != "" {
		cfg.DatasourceURL = opts.datasourceURL
	}
	if opts.metricsAddr != "" {
		cfg.MetricsAddr = opts.metricsAddr
	}
	return cfg, nil
}

func runServer(ctx context.Context, opts *rootOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	c, err := container.NewContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer func() {
		if err := c.Close(context.Background()); err != nil {
			debug.Warn("failed to shut down cleanly", "error", err)
		}
	}()

	if p, ok := c.Telemetry().(*telemetry.PrometheusTelemetry); ok && cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: cfg.MetricsAddr, Handler: p.Handler(), ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				debug.Error("metrics server failed", "error", err)
			}
		}()
		defer srv.Close()
		debug.Info("serving metrics", "addr", cfg.MetricsAddr)
	}

	debug.Info("migration engine started", "version", Version)
	return rpc.NewServer(c.MigrationService(), c.Telemetry()).Serve(ctx, os.Stdin, os.Stdout)
}
