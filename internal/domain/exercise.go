package domain

import (
	"time"

	"example.com/exercisetracker/internal/scoring"
)

// DefaultActivityType is stored when a request omits the activity type.
const DefaultActivityType = "others"

// User is a competition participant.
type User struct {
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

// Exercise is one raw entry in a user's log. Date is stored exactly as submitted
// and is only interpreted when scoring.
type Exercise struct {
	ID           string
	Username     string
	ActivityType string
	Note         string
	TimeMin      int
	Calorie      int
	Steps        int
	Date         string
	CreatedAt    time.Time
}

// Kind returns the scoring variant for the exercise's activity type.
func (e Exercise) Kind() scoring.Kind {
	return scoring.KindOf(e.ActivityType)
}

// Record projects the exercise onto the fields the scoring engine reads.
func (e Exercise) Record() scoring.Record {
	return scoring.Record{
		Kind:    e.Kind(),
		Date:    e.Date,
		Minutes: e.TimeMin,
		Steps:   e.Steps,
	}
}

// Records converts a log into scoring records, preserving order.
func Records(exercises []Exercise) []scoring.Record {
	out := make([]scoring.Record, 0, len(exercises))
	for _, exercise := range exercises {
		out = append(out, exercise.Record())
	}
	return out
}

// DashboardEntry annotates an exercise with whether its day earned a point.
type DashboardEntry struct {
	Exercise
	DailyPoint int
}

// Dashboard is the signed-in user's view of their own log.
type Dashboard struct {
	Username  string
	Points    int
	Exercises []DashboardEntry
}

// Standing is one scoreboard row.
type Standing struct {
	Username string
	Points   int
}
