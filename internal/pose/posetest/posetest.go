// Package posetest builds synthetic skeletons with known geometry for tests.
package posetest

import (
	"math"

	"github.com/ayusman/formcoach/internal/pose"
)

// Score is the confidence assigned to every generated keypoint.
const Score = 0.9

// Standing returns a full 17-keypoint skeleton of a person standing upright,
// facing the camera in a 640x480 frame.
func Standing() pose.Skeleton {
	coords := map[string][2]float64{
		pose.Nose:          {320, 80},
		pose.LeftEye:       {310, 70},
		pose.RightEye:      {330, 70},
		pose.LeftEar:       {300, 75},
		pose.RightEar:      {340, 75},
		pose.LeftShoulder:  {280, 140},
		pose.RightShoulder: {360, 140},
		pose.LeftElbow:     {270, 210},
		pose.RightElbow:    {370, 210},
		pose.LeftWrist:     {265, 270},
		pose.RightWrist:    {375, 270},
		pose.LeftHip:       {295, 280},
		pose.RightHip:      {345, 280},
		pose.LeftKnee:      {295, 370},
		pose.RightKnee:     {345, 370},
		pose.LeftAnkle:     {295, 460},
		pose.RightAnkle:    {345, 460},
	}

	sk := pose.Skeleton{Score: Score}
	for _, name := range pose.Names {
		c := coords[name]
		sk.Keypoints = append(sk.Keypoints, pose.Keypoint{Name: name, X: c[0], Y: c[1], Score: Score})
	}
	return sk
}

// Set moves the named keypoint, adding it if absent.
func Set(sk pose.Skeleton, name string, x, y float64) pose.Skeleton {
	out := pose.Skeleton{Score: sk.Score, Keypoints: make([]pose.Keypoint, 0, len(sk.Keypoints)+1)}
	found := false
	for _, kp := range sk.Keypoints {
		if kp.Name == name {
			kp.X, kp.Y = x, y
			found = true
		}
		out.Keypoints = append(out.Keypoints, kp)
	}
	if !found {
		out.Keypoints = append(out.Keypoints, pose.Keypoint{Name: name, X: x, Y: y, Score: Score})
	}
	return out
}

// PushUp returns a push-up skeleton whose shoulder-to-elbow-line distances
// sum to distanceSum. Shoulders are level and in line with the hips.
func PushUp(distanceSum float64) pose.Skeleton {
	const elbowY = 300.0
	shoulderY := elbowY - distanceSum/2

	sk := Standing()
	sk = Set(sk, pose.LeftElbow, 200, elbowY)
	sk = Set(sk, pose.RightElbow, 400, elbowY)
	sk = Set(sk, pose.LeftShoulder, 250, shoulderY)
	sk = Set(sk, pose.RightShoulder, 350, shoulderY)
	sk = Set(sk, pose.LeftHip, 100, shoulderY)
	sk = Set(sk, pose.RightHip, 500, shoulderY)
	return sk
}

// Squat returns a squat skeleton whose hip-knee-ankle angle is kneeAngle
// degrees on both legs. Knees track directly over the ankles.
func Squat(kneeAngle float64) pose.Skeleton {
	const (
		kneeY  = 370.0
		ankleY = 460.0
		thigh  = 90.0
	)
	rad := kneeAngle * math.Pi / 180
	dx := thigh * math.Sin(rad)
	dy := thigh * math.Cos(rad)

	sk := Standing()
	sk = Set(sk, pose.LeftKnee, 295, kneeY)
	sk = Set(sk, pose.RightKnee, 345, kneeY)
	sk = Set(sk, pose.LeftAnkle, 295, ankleY)
	sk = Set(sk, pose.RightAnkle, 345, ankleY)
	sk = Set(sk, pose.LeftHip, 295-dx, kneeY+dy)
	sk = Set(sk, pose.RightHip, 345+dx, kneeY+dy)
	return sk
}

// JumpingJack returns a skeleton with arms raised above the nose or hanging
// down, and feet apart or together.
func JumpingJack(armsUp, legsApart bool) pose.Skeleton {
	sk := Standing()
	if armsUp {
		sk = Set(sk, pose.LeftWrist, 220, 30)
		sk = Set(sk, pose.RightWrist, 420, 30)
	}
	if legsApart {
		sk = Set(sk, pose.LeftAnkle, 220, 460)
		sk = Set(sk, pose.RightAnkle, 420, 460)
	}
	return sk
}

// Plank returns a side-on plank skeleton where the hip midpoint sits offset
// pixels below the shoulder midpoint (negative offsets put the hips above).
// Elbows are directly under the shoulders.
func Plank(offset float64) pose.Skeleton {
	const shoulderY = 300.0

	sk := Standing()
	sk = Set(sk, pose.LeftShoulder, 200, shoulderY)
	sk = Set(sk, pose.RightShoulder, 210, shoulderY)
	sk = Set(sk, pose.LeftElbow, 200, shoulderY+60)
	sk = Set(sk, pose.RightElbow, 210, shoulderY+60)
	sk = Set(sk, pose.LeftHip, 400, shoulderY+offset)
	sk = Set(sk, pose.RightHip, 410, shoulderY+offset)
	return sk
}
