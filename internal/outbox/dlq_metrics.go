package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// DLQ outcomes, used as the outcome label.
const (
	dlqOutcomeRequeued    = "requeued"
	dlqOutcomeRescheduled = "rescheduled"
	dlqOutcomeQuarantined = "quarantined"
)

var (
	dlqOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "dlq",
		Name:      "entries_total",
		Help:      "Dead-lettered exercise events handled by the DLQ manager, by outcome.",
	}, []string{"outcome", "event_type"})

	dlqPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "exercise_tracker",
		Subsystem: "dlq",
		Name:      "pending_entries",
		Help:      "Dead-lettered events that are not quarantined.",
	})
)

func init() {
	prometheus.MustRegister(dlqOutcomes, dlqPending)
}

func recordDLQOutcome(outcome string, entry dlqEntry) {
	dlqOutcomes.WithLabelValues(outcome, entry.EventType).Inc()
}

// refreshDLQPending resets the pending gauge from the table.
func refreshDLQPending(ctx context.Context, pool *pgxpool.Pool) error {
	var pending int
	if err := pool.QueryRow(ctx, `SELECT COUNT(*) FROM outbox_dlq WHERE quarantined_at IS NULL`).Scan(&pending); err != nil {
		return err
	}
	dlqPending.Set(float64(pending))
	return nil
}
