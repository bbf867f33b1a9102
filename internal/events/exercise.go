// Package events defines the payloads published for exercise log changes.
package events

import "time"

// Event types recorded in the outbox.
const (
	TypeExerciseLogged  = "exercise.logged"
	TypeExerciseDeleted = "exercise.deleted"
)

// Kafka headers carried by every published event.
const (
	HeaderEventType     = "event_type"
	HeaderSchemaSubject = "schema_subject"
)

// ExerciseLogged is emitted when a user appends an exercise to their log.
type ExerciseLogged struct {
	ExerciseID   string    `json:"exercise_id"`
	Username     string    `json:"username"`
	ActivityType string    `json:"activity_type"`
	Date         string    `json:"date"`
	TimeMin      int       `json:"time"`
	Steps        int       `json:"steps"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// ExerciseDeleted is emitted when a user removes an exercise from their log.
type ExerciseDeleted struct {
	ExerciseID string    `json:"exercise_id"`
	Username   string    `json:"username"`
	OccurredAt time.Time `json:"occurred_at"`
}

// UserRef extracts the username both payloads carry, for consumers that only need to know whose score changed.
type UserRef struct {
	Username string `json:"username"`
}
