package scoring

import "github.com/prometheus/client_golang/prometheus"

const (
	skipReasonDate   = "malformed_date"
	skipReasonWindow = "outside_window"
)

var skippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
	Namespace: "exercise_tracker",
	Subsystem: "scoring",
	Name:      "records_skipped_total",
	Help:      "Exercise records excluded from scoring, labeled by reason.",
}, []string{"reason"})

func init() {
	prometheus.MustRegister(skippedCounter)
}

func recordSkipped(reason string) {
	skippedCounter.WithLabelValues(reason).Inc()
}
