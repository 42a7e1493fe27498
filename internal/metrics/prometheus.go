package metrics

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sellerdesk/seller-backoffice/internal/migrate"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// Migration metrics
	MigrationsApplied *prometheus.CounterVec
	MigrationsSkipped prometheus.Counter
	MigrationsFailed  *prometheus.CounterVec
	MigrationDuration prometheus.Histogram
	RunsTotal         *prometheus.CounterVec
	RunDuration       prometheus.Histogram
	LastRunApplied    prometheus.Gauge
	LastRunTimestamp  prometheus.Gauge
	LastRunSucceeded  prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all collectors on a private registry
func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		MigrationsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_applied_total",
				Help:      "Total number of migration files applied",
			},
			[]string{"name"},
		),
		MigrationsSkipped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_skipped_total",
				Help:      "Total number of migration files skipped as already applied",
			},
		),
		MigrationsFailed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migrations_failed_total",
				Help:      "Total number of migration files that failed, by failure kind",
			},
			[]string{"kind"},
		),
		MigrationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "migration_duration_seconds",
				Help:      "Time to apply a single migration file",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 60, 300},
			},
		),
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "migration_runs_total",
				Help:      "Total number of migration runs by final state",
			},
			[]string{"state"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "migration_run_duration_seconds",
				Help:      "Duration of complete migration runs",
				Buckets:   []float64{.05, .1, .5, 1, 5, 15, 60, 300, 900},
			},
		),
		LastRunApplied: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "migration_last_run_applied",
				Help:      "Files applied by the most recent completed run",
			},
		),
		LastRunTimestamp: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "migration_last_run_timestamp_seconds",
				Help:      "Unix time the most recent run finished",
			},
		),
		LastRunSucceeded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "migration_last_run_success",
				Help:      "1 if the most recent run completed, 0 if it failed",
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
	}

	m.registry.MustRegister(
		m.MigrationsApplied,
		m.MigrationsSkipped,
		m.MigrationsFailed,
		m.MigrationDuration,
		m.RunsTotal,
		m.RunDuration,
		m.LastRunApplied,
		m.LastRunTimestamp,
		m.LastRunSucceeded,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// RegisterDBStats exposes connection pool statistics gathered by stats
func (m *Metrics) RegisterDBStats(namespace string, stats func() sql.DBStats) {
	m.registry.MustRegister(
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_open",
				Help:      "Number of open database connections",
			},
			func() float64 { return float64(stats().OpenConnections) },
		),
		prometheus.NewGaugeFunc(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "db_connections_in_use",
				Help:      "Number of database connections in use",
			},
			func() float64 { return float64(stats().InUse) },
		),
	)
}

// Registry returns the registry every collector is registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GinMiddleware records request counts and latencies by route template
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// FileApplied implements migrate.Recorder
func (m *Metrics) FileApplied(file migrate.MigrationFile, elapsed time.Duration) {
	m.MigrationsApplied.WithLabelValues(file.Name).Inc()
	m.MigrationDuration.Observe(elapsed.Seconds())
}

// FileSkipped implements migrate.Recorder
func (m *Metrics) FileSkipped(migrate.MigrationFile) {
	m.MigrationsSkipped.Inc()
}

// FileFailed implements migrate.Recorder
func (m *Metrics) FileFailed(_ migrate.MigrationFile, kind error) {
	m.MigrationsFailed.WithLabelValues(kindLabel(kind)).Inc()
}

// RunFinished implements migrate.Recorder
func (m *Metrics) RunFinished(state migrate.State, result *migrate.Result, elapsed time.Duration) {
	m.RunsTotal.WithLabelValues(string(state)).Inc()
	m.RunDuration.Observe(elapsed.Seconds())
	m.LastRunTimestamp.SetToCurrentTime()

	if state == migrate.StateCompleted {
		m.LastRunSucceeded.Set(1)
		if result != nil {
			m.LastRunApplied.Set(float64(result.Applied))
		}
		return
	}
	m.LastRunSucceeded.Set(0)
}

func kindLabel(kind error) string {
	switch {
	case errors.Is(kind, migrate.ErrTrackingInsertConflict):
		return "tracking_insert_conflict"
	case errors.Is(kind, migrate.ErrFileRead):
		return "file_read"
	case errors.Is(kind, migrate.ErrStatementExecution):
		return "statement_execution"
	default:
		return "unknown"
	}
}

var _ migrate.Recorder = (*Metrics)(nil)
