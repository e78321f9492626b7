package store

import (
	"math"
	"sort"
	"time"
)

// RecentSessions is how many sessions Stats includes as recent history.
const RecentSessions = 10

// Stats aggregates the whole workout history.
type Stats struct {
	TotalWorkouts   int            `json:"total_workouts"`
	TotalReps       int            `json:"total_reps"`
	TotalCalories   int            `json:"total_calories"`
	TotalMinutes    int            `json:"total_minutes"`
	AverageAccuracy int            `json:"average_accuracy"`
	CurrentStreak   int            `json:"current_streak"`
	BestStreak      int            `json:"best_streak"`
	ByCategory      map[string]int `json:"by_category"`
	Recent          []*Session     `json:"recent"`
}

// Stats computes totals, per-category counts and day streaks. Days are
// calendar days in now's location; the current streak only counts if the
// latest workout was today or yesterday.
func (s *Store) Stats(now time.Time) (*Stats, error) {
	st := &Stats{ByCategory: make(map[string]int)}

	var durationMs int64
	var avgAccuracy float64
	err := s.db.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(count), 0), COALESCE(SUM(calories), 0),
		        COALESCE(SUM(duration_ms), 0), COALESCE(AVG(accuracy), 0)
		 FROM sessions`,
	).Scan(&st.TotalWorkouts, &st.TotalReps, &st.TotalCalories, &durationMs, &avgAccuracy)
	if err != nil {
		return nil, err
	}
	st.TotalMinutes = int(time.Duration(durationMs) * time.Millisecond / time.Minute)
	st.AverageAccuracy = int(math.Round(avgAccuracy))

	if st.TotalWorkouts == 0 {
		st.Recent = []*Session{}
		return st, nil
	}

	rows, err := s.db.Query(`SELECT category, COUNT(*) FROM sessions GROUP BY category`)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var category string
		var n int
		if err := rows.Scan(&category, &n); err != nil {
			rows.Close()
			return nil, err
		}
		st.ByCategory[category] = n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`SELECT started_ms FROM sessions`)
	if err != nil {
		return nil, err
	}
	var starts []time.Time
	for rows.Next() {
		var ms int64
		if err := rows.Scan(&ms); err != nil {
			rows.Close()
			return nil, err
		}
		starts = append(starts, time.UnixMilli(ms))
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	st.CurrentStreak, st.BestStreak = Streaks(starts, now)

	st.Recent, err = s.Sessions().List(RecentSessions)
	if err != nil {
		return nil, err
	}
	return st, nil
}

// Streaks returns the current and best runs of consecutive workout days.
func Streaks(starts []time.Time, now time.Time) (current, best int) {
	if len(starts) == 0 {
		return 0, 0
	}

	loc := now.Location()
	seen := make(map[int]bool)
	var days []int
	for _, t := range starts {
		d := dayNumber(t.In(loc))
		if !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Sort(sort.Reverse(sort.IntSlice(days)))

	today := dayNumber(now)
	if gap := today - days[0]; gap == 0 || gap == 1 {
		current = 1
		for i := 1; i < len(days) && days[i-1]-days[i] == 1; i++ {
			current++
		}
	}

	run := 1
	best = 1
	for i := 1; i < len(days); i++ {
		if days[i-1]-days[i] == 1 {
			run++
		} else {
			run = 1
		}
		if run > best {
			best = run
		}
	}
	return current, best
}

// dayNumber maps the calendar date of t to a day count, ignoring DST shifts.
func dayNumber(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
