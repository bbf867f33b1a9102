// Package observability holds service-wide Prometheus collectors.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	exerciseLoggedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "exercise_tracker",
		Subsystem: "persistence",
		Name:      "last_exercise_logged_timestamp_seconds",
		Help:      "Unix timestamp of the most recent exercise appended to a user's log.",
	})

	pointsComputedHistogram = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exercise_tracker",
		Subsystem: "scoring",
		Name:      "points_awarded",
		Help:      "Distribution of point totals produced by score computations.",
		Buckets:   prometheus.LinearBuckets(0, 10, 10),
	})

	scoreDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "exercise_tracker",
		Subsystem: "scoring",
		Name:      "computation_duration_seconds",
		Help:      "Time spent computing a single user's point total.",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
	})

	snapshotGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "exercise_tracker",
		Subsystem: "projection",
		Name:      "last_score_snapshot_timestamp_seconds",
		Help:      "Unix timestamp of the most recent score snapshot written by the projector.",
	})
)

func init() {
	prometheus.MustRegister(exerciseLoggedGauge, pointsComputedHistogram, scoreDuration, snapshotGauge)
}

// RecordExerciseLogged updates the exercise write watermark.
func RecordExerciseLogged(ts time.Time) {
	if ts.IsZero() {
		return
	}
	exerciseLoggedGauge.Set(float64(ts.Unix()))
}

// RecordPointsComputed observes a finished score computation.
func RecordPointsComputed(points int, elapsed time.Duration) {
	pointsComputedHistogram.Observe(float64(points))
	scoreDuration.Observe(elapsed.Seconds())
}

// RecordScoreSnapshot updates the projection watermark.
func RecordScoreSnapshot(ts time.Time) {
	if ts.IsZero() {
		return
	}
	snapshotGauge.Set(float64(ts.Unix()))
}
