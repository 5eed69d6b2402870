package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MigrationMetrics records engine activity served over RPC.
type MigrationMetrics struct {
	migrations *prometheus.CounterVec
	escrowOps  *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

var (
	migrationOnce sync.Once
	migrationReg  *MigrationMetrics
)

// Metrics returns the lazily-initialised migration metrics registry.
func Metrics() *MigrationMetrics {
	migrationOnce.Do(func() {
		migrationReg = &MigrationMetrics{
			migrations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "migrator",
				Subsystem: "engine",
				Name:      "migrations_total",
				Help:      "Total migration calls segmented by asset class and outcome.",
			}, []string{"class", "outcome"}),
			escrowOps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "migrator",
				Subsystem: "engine",
				Name:      "escrow_operations_total",
				Help:      "Total administrative escrow operations segmented by asset class and kind.",
			}, []string{"class", "op", "outcome"}),
			duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "migrator",
				Subsystem: "engine",
				Name:      "migration_duration_seconds",
				Help:      "Latency distribution of migration calls.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"class"}),
		}
		prometheus.MustRegister(migrationReg.migrations, migrationReg.escrowOps, migrationReg.duration)
	})
	return migrationReg
}

// ObserveMigration records one migration call.
func (m *MigrationMetrics) ObserveMigration(class string, took time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.migrations.WithLabelValues(class, outcome).Inc()
	m.duration.WithLabelValues(class).Observe(took.Seconds())
}

// ObserveEscrowOp records one administrative escrow or recovery operation.
func (m *MigrationMetrics) ObserveEscrowOp(class, op string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.escrowOps.WithLabelValues(class, op, outcome).Inc()
}
