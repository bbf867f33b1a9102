// Package scoring turns a raw exercise log into competition points.
//
// Effective minutes are summed per calendar day, a day with at least
// DailyThresholdMinutes earns one point, and each Sunday–Saturday week is
// capped at WeeklyCap points. Only days inside CompetitionWindow count.
package scoring

import (
	"sort"
	"time"
)

const (
	// DateLayout is the only accepted exercise date format.
	DateLayout = "2006-01-02"

	// DailyThresholdMinutes is the effective-minute total a day needs to earn a point.
	DailyThresholdMinutes = 30
	// WeeklyCap bounds the points a single Sunday–Saturday week can contribute.
	WeeklyCap = 5
	// HikeStepThreshold is the step count a hike needs before it is credited.
	HikeStepThreshold = 10000
	// HikeCreditMinutes is the effective minutes credited for a qualifying hike.
	HikeCreditMinutes = 30
)

// Window is an inclusive range of calendar days.
type Window struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether day falls inside the window, bounds included.
func (w Window) Contains(day time.Time) bool {
	return !day.Before(w.Start) && !day.After(w.End)
}

// CompetitionWindow is the fixed scoring period.
var CompetitionWindow = Window{
	Start: time.Date(2025, time.March, 2, 0, 0, 0, 0, time.UTC),
	End:   time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC),
}

// Record is the scoring view of one logged exercise.
type Record struct {
	Kind    Kind
	Date    string
	Minutes int
	Steps   int
}

// EffectiveMinutes returns the minutes a record contributes to its day.
func (r Record) EffectiveMinutes() int {
	switch r.Kind {
	case KindHike:
		if r.Steps >= HikeStepThreshold {
			return HikeCreditMinutes
		}
		return 0
	default:
		return r.Minutes
	}
}

// ParseDate parses a strict YYYY-MM-DD date as a UTC midnight.
func ParseDate(value string) (time.Time, bool) {
	day, err := time.Parse(DateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}

// WeekSpan returns the Sunday that starts the week containing day and the Saturday that ends it.
func WeekSpan(day time.Time) (time.Time, time.Time) {
	start := day.AddDate(0, 0, -int(day.Weekday()))
	return start, start.AddDate(0, 0, 6)
}

// WeekScore describes one Sunday–Saturday span that had logged days.
type WeekScore struct {
	Start          time.Time
	End            time.Time
	QualifyingDays int
	Points         int
}

// ComputePoints returns the competition total for the supplied exercises.
// Records with malformed dates or dates outside CompetitionWindow are ignored.
func ComputePoints(records []Record) int {
	total := 0
	for _, week := range Breakdown(records) {
		total += week.Points
	}
	return total
}

// Breakdown returns the per-week scores, oldest first, for records inside CompetitionWindow.
func Breakdown(records []Record) []WeekScore {
	minutes := dailyMinutes(records, &CompetitionWindow)

	days := make([]time.Time, 0, len(minutes))
	for day := range minutes {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	weeks := make([]WeekScore, 0)
	var current *WeekScore
	for _, day := range days {
		if current == nil || day.After(current.End) {
			if current != nil {
				weeks = append(weeks, closeWeek(*current))
			}
			start, end := WeekSpan(day)
			current = &WeekScore{Start: start, End: end}
		}
		if minutes[day] >= DailyThresholdMinutes {
			current.QualifyingDays++
		}
	}
	if current != nil {
		weeks = append(weeks, closeWeek(*current))
	}
	return weeks
}

func closeWeek(week WeekScore) WeekScore {
	week.Points = min(week.QualifyingDays, WeeklyCap)
	return week
}

// DailyMinutes sums effective minutes per parseable date, keyed by the canonical
// YYYY-MM-DD form. No window is applied.
func DailyMinutes(records []Record) map[string]int {
	byDay := dailyMinutes(records, nil)
	out := make(map[string]int, len(byDay))
	for day, total := range byDay {
		out[day.Format(DateLayout)] = total
	}
	return out
}

// DailyPoint reports whether date earned a daily point given the day totals from DailyMinutes.
func DailyPoint(totals map[string]int, date string) int {
	day, ok := ParseDate(date)
	if !ok {
		return 0
	}
	if totals[day.Format(DateLayout)] >= DailyThresholdMinutes {
		return 1
	}
	return 0
}

func dailyMinutes(records []Record, window *Window) map[time.Time]int {
	out := make(map[time.Time]int)
	for _, record := range records {
		day, ok := ParseDate(record.Date)
		if !ok {
			recordSkipped(skipReasonDate)
			continue
		}
		if window != nil && !window.Contains(day) {
			recordSkipped(skipReasonWindow)
			continue
		}
		out[day] += record.EffectiveMinutes()
	}
	return out
}
