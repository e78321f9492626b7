// Package exercise turns skeletons into exercise phases, repetition counts and
// form feedback.
package exercise

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnsupportedKind is returned for exercise names with no rule set.
var ErrUnsupportedKind = errors.New("unsupported exercise")

// Kind identifies an exercise and selects its rule set.
type Kind string

const (
	PushUps      Kind = "pushups"
	Squats       Kind = "squats"
	Plank        Kind = "plank"
	JumpingJacks Kind = "jumpingjacks"
)

// Kinds lists every supported exercise.
var Kinds = []Kind{PushUps, Squats, Plank, JumpingJacks}

// ParseKind maps a user supplied exercise name to a Kind.
// Matching ignores case, spaces, dashes and underscores ("Push-Ups" -> pushups).
func ParseKind(s string) (Kind, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer("-", "", "_", "", " ", "").Replace(norm)

	for _, k := range Kinds {
		if string(k) == norm {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedKind, s)
}

// Phase is the discrete position within an exercise cycle.
type Phase string

const (
	PhaseUp     Phase = "UP"
	PhaseDown   Phase = "DOWN"
	PhaseIn     Phase = "IN"
	PhaseOut    Phase = "OUT"
	PhaseHold   Phase = "HOLD"
	PhaseAdjust Phase = "ADJUST"
	// PhaseReady is reported by the manual counter, which never sees a body.
	PhaseReady Phase = "READY"
)

// Severity grades a form feedback message.
type Severity string

const (
	SeverityCorrect Severity = "correct"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Feedback is one qualitative message about the user's posture.
type Feedback struct {
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// IsZero reports whether no feedback has been set.
func (f Feedback) IsZero() bool {
	return f.Message == "" && f.Severity == ""
}

// Category groups exercises for statistics.
type Category string

const (
	CategoryStrength Category = "strength"
	CategoryCore     Category = "core"
	CategoryCardio   Category = "cardio"
)

// Info describes an exercise for catalogs and session summaries.
type Info struct {
	Kind          Kind     `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Category      Category `json:"category"`
	TimeBased     bool     `json:"time_based"`
	Calories      float64  `json:"calories"` // burned over DefaultTarget
	DefaultTarget int      `json:"default_target"`
	Options       []int    `json:"options"`
	Unit          string   `json:"unit"`
}

var catalog = map[Kind]Info{
	PushUps: {
		Kind:          PushUps,
		Name:          "Push-ups",
		Description:   "Upper body strength with form correction",
		Category:      CategoryStrength,
		Calories:      8,
		DefaultTarget: 10,
		Options:       []int{5, 10, 15, 20, 25, 30},
		Unit:          "reps",
	},
	Squats: {
		Kind:          Squats,
		Name:          "Squats",
		Description:   "Lower body strength with depth tracking",
		Category:      CategoryStrength,
		Calories:      10,
		DefaultTarget: 15,
		Options:       []int{10, 15, 20, 25, 30, 40},
		Unit:          "reps",
	},
	Plank: {
		Kind:          Plank,
		Name:          "Plank",
		Description:   "Core stability with posture monitoring",
		Category:      CategoryCore,
		TimeBased:     true,
		Calories:      5,
		DefaultTarget: 30,
		Options:       []int{15, 30, 45, 60, 90, 120},
		Unit:          "seconds",
	},
	JumpingJacks: {
		Kind:          JumpingJacks,
		Name:          "Jumping Jacks",
		Description:   "Cardio with arm and leg synchronization",
		Category:      CategoryCardio,
		Calories:      6,
		DefaultTarget: 20,
		Options:       []int{15, 20, 25, 30, 40, 50},
		Unit:          "reps",
	},
}

// Info returns the catalog entry for k. Unknown kinds yield a zero Info.
func (k Kind) Info() Info {
	return catalog[k]
}

// Valid reports whether k is a supported exercise.
func (k Kind) Valid() bool {
	_, ok := catalog[k]
	return ok
}

// TimeBased reports whether the count of k is held seconds rather than reps.
func (k Kind) TimeBased() bool {
	return catalog[k].TimeBased
}

// Catalog returns the catalog entries in Kinds order.
func Catalog() []Info {
	infos := make([]Info, 0, len(Kinds))
	for _, k := range Kinds {
		infos = append(infos, catalog[k])
	}
	return infos
}
