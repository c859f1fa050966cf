package telemetry

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const defaultNamespace = "prisma_migrate"

// PrometheusTelemetry implements Telemetry with Prometheus collectors on a
// private registry.
type PrometheusTelemetry struct {
	registry *prometheus.Registry

	commandDuration   *prometheus.HistogramVec
	commandsTotal     *prometheus.CounterVec
	migrationDuration prometheus.Histogram
	migrationsTotal   *prometheus.CounterVec
	statementsTotal   prometheus.Counter
	lockWait          *prometheus.HistogramVec
}

// NewPrometheusTelemetry creates a new Prometheus telemetry adapter.
func NewPrometheusTelemetry(config *Config) *PrometheusTelemetry {
	ns := defaultNamespace
	if config != nil && config.Namespace != "" {
		ns = config.Namespace
	}

	p := &PrometheusTelemetry{
		registry: prometheus.NewRegistry(),
		commandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "command_duration_seconds",
			Help:      "Duration of engine commands.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"method"}),
		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "commands_total",
			Help:      "Engine commands by method and error code.",
		}, []string{"method", "code"}),
		migrationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "migration_duration_seconds",
			Help:      "Duration of applying one migration.",
			Buckets:   prometheus.DefBuckets,
		}),
		migrationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "migrations_applied_total",
			Help:      "Migrations applied, by outcome.",
		}, []string{"status"}),
		statementsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "statements_executed_total",
			Help:      "SQL statements executed by migrations.",
		}),
		lockWait: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "advisory_lock_wait_seconds",
			Help:      "Time spent acquiring the advisory lock.",
			Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		}, []string{"provider", "status"}),
	}
	p.registry.MustRegister(
		p.commandDuration,
		p.commandsTotal,
		p.migrationDuration,
		p.migrationsTotal,
		p.statementsTotal,
		p.lockWait,
	)
	return p
}

// RecordCommand records one engine command.
func (p *PrometheusTelemetry) RecordCommand(ctx context.Context, info CommandInfo) {
	code := info.ErrorCode
	if code == "" {
		code = "ok"
	}
	p.commandDuration.WithLabelValues(info.Method).Observe(info.Duration.Seconds())
	p.commandsTotal.WithLabelValues(info.Method, code).Inc()
}

// RecordMigration records the outcome of applying one migration.
func (p *PrometheusTelemetry) RecordMigration(ctx context.Context, info MigrationInfo) {
	p.migrationDuration.Observe(info.Duration.Seconds())
	p.migrationsTotal.WithLabelValues(status(info.Success)).Inc()
	p.statementsTotal.Add(float64(info.Statements))
}

// RecordLock records an advisory lock acquisition.
func (p *PrometheusTelemetry) RecordLock(ctx context.Context, info LockInfo) {
	p.lockWait.WithLabelValues(info.Provider, status(info.Success)).Observe(info.Wait.Seconds())
}

// Registry returns the registry holding the collectors.
func (p *PrometheusTelemetry) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the collected metrics in the Prometheus exposition format.
func (p *PrometheusTelemetry) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Close does nothing; collectors live as long as the registry.
func (p *PrometheusTelemetry) Close(ctx context.Context) error {
	return nil
}

func status(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Ensure PrometheusTelemetry implements Telemetry interface.
var _ Telemetry = (*PrometheusTelemetry)(nil)
