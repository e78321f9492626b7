package exercise

import (
	"fmt"
	"math"

	"github.com/ayusman/formcoach/internal/pose"
)

// Phase thresholds. Distances are in source video pixels, angles in degrees.
// They were tuned against a single camera framing and are not adaptive.
const (
	PushUpDownDistance     = 120.0 // shoulder-to-elbow-line distance sum below which a push-up is DOWN
	SquatDownAngle         = 120.0 // average knee angle below which a squat is DOWN
	JumpingJackAnkleSpread = 100.0 // horizontal ankle separation above which legs are apart
	PlankHoldOffset        = 40.0  // shoulder/hip midpoint vertical offset below which a plank is held
)

// Features are the geometric measurements a rule derives from one frame.
// Only the fields relevant to the active exercise are set.
type Features struct {
	ElbowLineDistance float64 `json:"elbow_line_distance,omitempty"`
	KneeAngle         float64 `json:"knee_angle,omitempty"`
	ArmsRaised        bool    `json:"arms_raised,omitempty"`
	AnkleSpread       float64 `json:"ankle_spread,omitempty"`
	TorsoOffset       float64 `json:"torso_offset,omitempty"`
}

// rule is the closed per-exercise variant: which keypoints it needs, how it
// measures them and how measurements map to a phase.
type rule struct {
	required   []string
	reposition string
	initial    Phase
	// active is the phase whose exit completes a repetition. Empty for
	// time-based exercises.
	active   Phase
	extract  func(kps []pose.Keypoint) Features
	classify func(Features) Phase
	label    func(Features) string
}

var rules = map[Kind]rule{
	PushUps: {
		required:   []string{pose.LeftShoulder, pose.RightShoulder, pose.LeftElbow, pose.RightElbow},
		reposition: "Position yourself so your upper body is visible",
		initial:    PhaseUp,
		active:     PhaseDown,
		extract: func(kps []pose.Keypoint) Features {
			ls, rs, le, re := kps[0], kps[1], kps[2], kps[3]
			return Features{
				ElbowLineDistance: pose.DistanceToSegment(ls, le, re) + pose.DistanceToSegment(rs, le, re),
			}
		},
		classify: func(f Features) Phase {
			if f.ElbowLineDistance < PushUpDownDistance {
				return PhaseDown
			}
			return PhaseUp
		},
		label: func(f Features) string {
			return fmt.Sprintf("Distance: %.0f", f.ElbowLineDistance)
		},
	},
	Squats: {
		required: []string{
			pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle,
		},
		reposition: "Position yourself so your full body is visible",
		initial:    PhaseUp,
		active:     PhaseDown,
		extract: func(kps []pose.Keypoint) Features {
			lh, rh, lk, rk, la, ra := kps[0], kps[1], kps[2], kps[3], kps[4], kps[5]
			left := pose.Angle(lh, lk, la)
			right := pose.Angle(rh, rk, ra)
			return Features{KneeAngle: (left + right) / 2}
		},
		classify: func(f Features) Phase {
			if f.KneeAngle < SquatDownAngle {
				return PhaseDown
			}
			return PhaseUp
		},
		label: func(f Features) string {
			return fmt.Sprintf("Knee Angle: %.0f°", f.KneeAngle)
		},
	},
	JumpingJacks: {
		required: []string{
			pose.LeftWrist, pose.RightWrist, pose.LeftAnkle, pose.RightAnkle, pose.Nose,
		},
		reposition: "Position yourself so your full body is visible",
		initial:    PhaseIn,
		active:     PhaseOut,
		extract: func(kps []pose.Keypoint) Features {
			lw, rw, la, ra, nose := kps[0], kps[1], kps[2], kps[3], kps[4]
			return Features{
				// Image y grows downward, so "above" is a smaller y.
				ArmsRaised:  lw.Y < nose.Y && rw.Y < nose.Y,
				AnkleSpread: math.Abs(la.X - ra.X),
			}
		},
		classify: func(f Features) Phase {
			if f.ArmsRaised && f.AnkleSpread > JumpingJackAnkleSpread {
				return PhaseOut
			}
			return PhaseIn
		},
		label: func(f Features) string {
			arms, legs := "DOWN", "IN"
			if f.ArmsRaised {
				arms = "UP"
			}
			if f.AnkleSpread > JumpingJackAnkleSpread {
				legs = "OUT"
			}
			return fmt.Sprintf("Arms: %s | Legs: %s", arms, legs)
		},
	},
	Plank: {
		required:   []string{pose.LeftShoulder, pose.RightShoulder, pose.LeftHip, pose.RightHip},
		reposition: "Position yourself so your torso is visible",
		initial:    PhaseAdjust,
		extract: func(kps []pose.Keypoint) Features {
			shoulders := pose.Midpoint(kps[0], kps[1])
			hips := pose.Midpoint(kps[2], kps[3])
			return Features{TorsoOffset: math.Abs(shoulders.Y - hips.Y)}
		},
		classify: func(f Features) Phase {
			if f.TorsoOffset < PlankHoldOffset {
				return PhaseHold
			}
			return PhaseAdjust
		},
		label: func(f Features) string {
			return fmt.Sprintf("Offset: %.0f", f.TorsoOffset)
		},
	},
}

// Required returns the keypoints the phase rule of k needs.
func (k Kind) Required() []string {
	r, ok := rules[k]
	if !ok {
		return nil
	}
	return append([]string(nil), r.required...)
}

// InitialPhase is the phase a fresh or reset classifier for k starts in.
func (k Kind) InitialPhase() Phase {
	return rules[k].initial
}

// Label renders the features that drive the phase of k as a short debug line.
func (k Kind) Label(f Features) string {
	r, ok := rules[k]
	if !ok {
		return ""
	}
	return r.label(f)
}
