package outbox

import "github.com/prometheus/client_golang/prometheus"

// Publish outcomes, used as the outcome label.
const (
	outcomeDelivered    = "delivered"
	outcomeDeadLettered = "dead_lettered"
)

var (
	publishedEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "outbox",
		Name:      "events_total",
		Help:      "Outbox events settled by the dispatcher, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exercise_tracker",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time from locking a batch to committing it.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})
)

func init() {
	prometheus.MustRegister(publishedEvents, batchDuration)
}

func recordSettled(msgs []Message, outcome string) {
	for _, msg := range msgs {
		publishedEvents.WithLabelValues(msg.EventType, outcome).Inc()
	}
}
