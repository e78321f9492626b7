package workout

import (
	"math"
	"time"

	"github.com/ayusman/formcoach/internal/exercise"
)

// Scoring constants.
const (
	// FormChecksPerRep is how many form checks a rep is assumed to get.
	FormChecksPerRep = 3
	// MinAccuracy is the accuracy floor, in percent.
	MinAccuracy = 60
	// PaceReference is the workout length that earns no pace bonus.
	PaceReference = 600 * time.Second
	// MaxPaceBonus caps the calorie multiplier for fast workouts.
	MaxPaceBonus = 1.2
)

// Summary is the plain record of a finished workout handed to persistence.
type Summary struct {
	Kind      exercise.Kind `json:"exercise"`
	Target    int           `json:"target"`
	Count     int           `json:"count"`
	Duration  time.Duration `json:"duration"`
	Warnings  int           `json:"warnings"`
	Accuracy  int           `json:"accuracy"`
	Calories  int           `json:"calories"`
	Manual    bool          `json:"manual"`
	Completed bool          `json:"completed"`
	// Issues are the distinct warning messages in the order first seen.
	Issues    []string  `json:"issues,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// NewSummary fills in the derived accuracy, calorie and completion fields.
func NewSummary(kind exercise.Kind, target, count int, duration time.Duration, warnings int, issues []string) Summary {
	if target <= 0 {
		target = kind.Info().DefaultTarget
	}
	acc := Accuracy(count, warnings)
	return Summary{
		Kind:      kind,
		Target:    target,
		Count:     count,
		Duration:  duration,
		Warnings:  warnings,
		Accuracy:  acc,
		Calories:  Calories(kind, count, duration, acc),
		Completed: count >= target,
		Issues:    issues,
	}
}

// Accuracy scores form as a percentage: warnings are weighed against
// FormChecksPerRep checks per counted rep, with a floor of MinAccuracy.
// With nothing counted it is 100 if there were no warnings and MinAccuracy otherwise.
func Accuracy(count, warnings int) int {
	if count <= 0 {
		if warnings > 0 {
			return MinAccuracy
		}
		return 100
	}
	checks := float64(count * FormChecksPerRep)
	acc := int(math.Round((1 - float64(warnings)/checks) * 100))
	if acc < MinAccuracy {
		return MinAccuracy
	}
	return acc
}

// Calories estimates energy burned: the catalog figure scaled by the share
// of the default target done, a pace bonus for workouts shorter than
// PaceReference (capped at MaxPaceBonus) and the accuracy.
func Calories(kind exercise.Kind, count int, elapsed time.Duration, accuracy int) int {
	info := kind.Info()
	if info.DefaultTarget <= 0 || count <= 0 {
		return 0
	}

	base := info.Calories * float64(count) / float64(info.DefaultTarget)
	pace := 1.0
	if elapsed > 0 {
		pace = math.Min(MaxPaceBonus, PaceReference.Seconds()/elapsed.Seconds())
	}
	return int(math.Round(base * pace * float64(accuracy) / 100))
}
