package exercise

import "github.com/ayusman/formcoach/internal/pose"

// JointAngle is a diagnostic reading of one joint for overlays and the
// angle callback. It never affects phase or count.
type JointAngle struct {
	Name    string  `json:"name"`
	Angle   float64 `json:"angle"`
	Correct bool    `json:"correct"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
}

type joint struct {
	name      string
	a, b, c   string
	min, max  float64
	isCorrect func(angle float64) bool
}

var joints = []joint{
	{
		name: pose.LeftElbow, a: pose.LeftShoulder, b: pose.LeftElbow, c: pose.LeftWrist,
		min: 70, max: 110, isCorrect: elbowCorrect,
	},
	{
		name: pose.RightElbow, a: pose.RightShoulder, b: pose.RightElbow, c: pose.RightWrist,
		min: 70, max: 110, isCorrect: elbowCorrect,
	},
	{
		name: pose.LeftKnee, a: pose.LeftHip, b: pose.LeftKnee, c: pose.LeftAnkle,
		min: 90, max: 180, isCorrect: kneeCorrect,
	},
	{
		name: pose.RightKnee, a: pose.RightHip, b: pose.RightKnee, c: pose.RightAnkle,
		min: 90, max: 180, isCorrect: kneeCorrect,
	},
}

// An elbow reads well in the bottom half of a push-up.
func elbowCorrect(angle float64) bool {
	return angle >= 70 && angle <= 110
}

// A knee reads well when locked out or in a deep squat.
func kneeCorrect(angle float64) bool {
	return angle >= 160 || angle <= 90
}

// JointAngles measures the elbows and knees that are fully visible in sk.
func JointAngles(sk pose.Skeleton) []JointAngle {
	var out []JointAngle
	for _, j := range joints {
		kps, ok := sk.Require(j.a, j.b, j.c)
		if !ok {
			continue
		}
		angle := pose.Angle(kps[0], kps[1], kps[2])
		out = append(out, JointAngle{
			Name:    j.name,
			Angle:   angle,
			Correct: j.isCorrect(angle),
			Min:     j.min,
			Max:     j.max,
		})
	}
	return out
}
