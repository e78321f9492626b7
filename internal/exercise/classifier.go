package exercise

import (
	"fmt"
	"time"

	"github.com/ayusman/formcoach/internal/pose"
)

// NoBodyMessage is the feedback given when a frame has no usable keypoints.
const NoBodyMessage = "No body detected - step into the camera frame"

// Step is the outcome of classifying one frame.
type Step struct {
	// Evaluated is false when the frame was skipped because the body or a
	// required keypoint was missing. Phase and Count are then unchanged.
	Evaluated bool
	Previous  Phase
	Phase     Phase
	Count     int
	// Counted is set when Count changed on this frame.
	Counted  bool
	Features Features
	Feedback Feedback
	Angles   []JointAngle
}

// PhaseChanged reports whether the frame moved the classifier to a new phase.
func (s Step) PhaseChanged() bool {
	return s.Evaluated && s.Previous != s.Phase
}

// Classifier is the per-exercise phase state machine. The next phase depends
// only on the current phase and the frame's features. It is not safe for
// concurrent use.
type Classifier struct {
	kind  Kind
	rule  rule
	phase Phase
	count int
}

// NewClassifier creates a classifier for k in its initial phase.
func NewClassifier(k Kind) (*Classifier, error) {
	r, ok := rules[k]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, k)
	}
	return &Classifier{
		kind:  k,
		rule:  r,
		phase: r.initial,
	}, nil
}

// Kind returns the exercise being classified.
func (c *Classifier) Kind() Kind {
	return c.kind
}

// Phase returns the current phase.
func (c *Classifier) Phase() Phase {
	return c.phase
}

// Count returns the repetition count, or held whole seconds for time-based kinds.
func (c *Classifier) Count() int {
	return c.count
}

// Reset returns the classifier to its initial phase with a zero count.
func (c *Classifier) Reset() {
	c.phase = c.rule.initial
	c.count = 0
}

// Transition computes the phase features f lead to from the current phase
// and whether that move completes a repetition. It does not change state.
func (c *Classifier) Transition(f Features) (next Phase, rep bool) {
	next = c.rule.classify(f)
	rep = c.rule.active != "" && c.phase == c.rule.active && next != c.rule.active
	return next, rep
}

// Step classifies one frame. elapsed is the running stopwatch of the
// workout and only matters for time-based exercises, whose count becomes the
// whole elapsed seconds whenever the frame is in HOLD.
func (c *Classifier) Step(sk pose.Skeleton, elapsed time.Duration) Step {
	step := Step{
		Previous: c.phase,
		Phase:    c.phase,
		Count:    c.count,
	}

	if sk.Empty() {
		step.Feedback = Feedback{Message: NoBodyMessage, Severity: SeverityError}
		return step
	}

	kps, ok := sk.Require(c.rule.required...)
	if !ok {
		step.Feedback = Feedback{Message: c.rule.reposition, Severity: SeverityWarning}
		return step
	}

	step.Evaluated = true
	step.Features = c.rule.extract(kps)

	next, rep := c.Transition(step.Features)
	c.phase = next
	if rep {
		c.count++
	}
	if c.kind.TimeBased() && next == PhaseHold {
		if secs := int(elapsed / time.Second); secs > c.count {
			c.count = secs
		}
	}

	step.Phase = c.phase
	step.Counted = c.count != step.Count
	step.Count = c.count
	step.Feedback = Assess(c.kind, sk)
	step.Angles = JointAngles(sk)
	return step
}
