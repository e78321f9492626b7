package exercise

import (
	"math"

	"github.com/ayusman/formcoach/internal/pose"
)

// Form check thresholds, in source video pixels or degrees.
const (
	ShoulderLevelTolerance   = 30.0
	ElbowFlareDistance       = 200.0
	PushUpTorsoTolerance     = 50.0
	SquatDepthAngle          = 90.0
	KneeTrackingRatio        = 0.8
	HipLevelTolerance        = 20.0
	PlankElbowAlignTolerance = 30.0
)

// Messages emitted by the form evaluator.
const (
	MsgGoodForm       = "Good form!"
	MsgPerfectPlank   = "Perfect plank position!"
	MsgShouldersLevel = "Keep your shoulders level"
	MsgElbowsIn       = "Keep your elbows closer to your body"
	MsgBodyStraight   = "Keep your body straight - maintain plank position"
	MsgGoDeeper       = "Go deeper - bend your knees more"
	MsgKneesOverToes  = "Keep knees aligned over your toes"
	MsgHipsLevel      = "Keep your hips level"
	MsgLowerHips      = "Lower your hips - keep your body straight"
	MsgRaiseHips      = "Raise your hips - avoid sagging"
	MsgShouldersOver  = "Align your shoulders directly over your elbows"
	MsgRaiseArms      = "Raise your arms higher"
	MsgSpreadLegs     = "Spread your legs wider"
	MsgNoUpperBody    = "Cannot detect upper body - position yourself in frame"
	MsgNoFullBody     = "Cannot detect full body - position yourself fully in frame"
	MsgNoAlignment    = "Cannot detect full body alignment"
)

// Evaluate runs the secondary posture checks for k and returns the
// violations found, highest priority first. It keeps no state.
func Evaluate(k Kind, sk pose.Skeleton) []Feedback {
	var msgs []string
	switch k {
	case PushUps:
		msgs = pushUpForm(sk)
	case Squats:
		msgs = squatForm(sk)
	case Plank:
		msgs = plankForm(sk)
	case JumpingJacks:
		msgs = jumpingJackForm(sk)
	}

	out := make([]Feedback, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, Feedback{Message: m, Severity: SeverityWarning})
	}
	return out
}

// Assess returns the single feedback to surface for a frame: the highest
// priority violation, or a good-form message when there is none.
func Assess(k Kind, sk pose.Skeleton) Feedback {
	if violations := Evaluate(k, sk); len(violations) > 0 {
		return violations[0]
	}
	if k == Plank {
		return Feedback{Message: MsgPerfectPlank, Severity: SeverityCorrect}
	}
	return Feedback{Message: MsgGoodForm, Severity: SeverityCorrect}
}

func pushUpForm(sk pose.Skeleton) []string {
	kps, ok := sk.Require(pose.LeftShoulder, pose.RightShoulder, pose.LeftElbow, pose.RightElbow)
	if !ok {
		return []string{MsgNoUpperBody}
	}
	ls, rs, le, re := kps[0], kps[1], kps[2], kps[3]

	var msgs []string
	if math.Abs(ls.Y-rs.Y) > ShoulderLevelTolerance {
		msgs = append(msgs, MsgShouldersLevel)
	}

	if pose.DistanceToSegment(ls, le, re)+pose.DistanceToSegment(rs, le, re) > ElbowFlareDistance {
		msgs = append(msgs, MsgElbowsIn)
	}

	if hips, ok := sk.Require(pose.LeftHip, pose.RightHip); ok {
		if math.Abs(ls.Y-hips[0].Y) > PushUpTorsoTolerance || math.Abs(rs.Y-hips[1].Y) > PushUpTorsoTolerance {
			msgs = append(msgs, MsgBodyStraight)
		}
	}
	return msgs
}

// squatForm uses its own 90° depth check, separate from the 120° phase
// threshold. Counting never reads it.
func squatForm(sk pose.Skeleton) []string {
	kps, ok := sk.Require(
		pose.LeftHip, pose.RightHip, pose.LeftKnee, pose.RightKnee, pose.LeftAnkle, pose.RightAnkle,
	)
	if !ok {
		return []string{MsgNoFullBody}
	}
	lh, rh, lk, rk, la, ra := kps[0], kps[1], kps[2], kps[3], kps[4], kps[5]

	var msgs []string
	if pose.Angle(lh, lk, la) < SquatDepthAngle || pose.Angle(rh, rk, ra) < SquatDepthAngle {
		msgs = append(msgs, MsgGoDeeper)
	}

	kneeWidth := math.Abs(lk.X - rk.X)
	ankleWidth := math.Abs(la.X - ra.X)
	if kneeWidth < ankleWidth*KneeTrackingRatio {
		msgs = append(msgs, MsgKneesOverToes)
	}

	if math.Abs(lh.Y-rh.Y) > HipLevelTolerance {
		msgs = append(msgs, MsgHipsLevel)
	}
	return msgs
}

func plankForm(sk pose.Skeleton) []string {
	kps, ok := sk.Require(rules[Plank].required...)
	if !ok {
		return []string{MsgNoAlignment}
	}
	shoulders := pose.Midpoint(kps[0], kps[1])
	hips := pose.Midpoint(kps[2], kps[3])

	// Good form is only possible while the hold itself counts.
	var msgs []string
	if rules[Plank].classify(rules[Plank].extract(kps)) != PhaseHold {
		if shoulders.Y > hips.Y {
			msgs = append(msgs, MsgLowerHips)
		} else {
			msgs = append(msgs, MsgRaiseHips)
		}
	}

	if elbows, ok := sk.Require(pose.LeftElbow, pose.RightElbow); ok {
		if math.Abs(shoulders.X-pose.Midpoint(elbows[0], elbows[1]).X) > PlankElbowAlignTolerance {
			msgs = append(msgs, MsgShouldersOver)
		}
	}
	return msgs
}

func jumpingJackForm(sk pose.Skeleton) []string {
	kps, ok := sk.Require(rules[JumpingJacks].required...)
	if !ok {
		return []string{MsgNoFullBody}
	}
	f := rules[JumpingJacks].extract(kps)
	legsSpread := f.AnkleSpread > JumpingJackAnkleSpread

	switch {
	case f.ArmsRaised == legsSpread:
		return nil
	case !f.ArmsRaised:
		return []string{MsgRaiseArms}
	default:
		return []string{MsgSpreadLegs}
	}
}
