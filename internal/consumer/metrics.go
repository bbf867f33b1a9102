package consumer

import "github.com/prometheus/client_golang/prometheus"

// Settled event outcomes, used as the outcome label.
const (
	outcomeApplied   = "applied"
	outcomeAbandoned = "abandoned"
)

var (
	handledEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "events_handled_total",
		Help:      "Exercise events settled by the consumer, by event type and outcome.",
	}, []string{"event_type", "outcome"})

	handlerRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "handler_retries_total",
		Help:      "Handler attempts repeated after a failure.",
	})

	decodeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "decode_failures_total",
		Help:      "Records dropped because they could not be decoded.",
	}, []string{"topic"})

	lastEventTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "exercise_tracker",
		Subsystem: "consumer",
		Name:      "last_event_timestamp_seconds",
		Help:      "Produce time of the newest settled event per topic.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(handledEvents, handlerRetries, decodeFailures, lastEventTimestamp)
}

func recordHandled(msg Message, outcome string) {
	handledEvents.WithLabelValues(msg.EventType, outcome).Inc()
	if !msg.Timestamp.IsZero() {
		lastEventTimestamp.WithLabelValues(msg.Topic).Set(float64(msg.Timestamp.Unix()))
	}
}

func recordDecodeFailure(topic string) {
	decodeFailures.WithLabelValues(topic).Inc()
}
