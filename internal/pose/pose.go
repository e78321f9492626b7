// Package pose provides the skeletal keypoint types produced by a pose estimator.
package pose

// Keypoint names following the MoveNet / COCO convention.
// See: https://www.tensorflow.org/hub/tutorials/movenet
const (
	Nose          = "nose"
	LeftEye       = "left_eye"
	RightEye      = "right_eye"
	LeftEar       = "left_ear"
	RightEar      = "right_ear"
	LeftShoulder  = "left_shoulder"
	RightShoulder = "right_shoulder"
	LeftElbow     = "left_elbow"
	RightElbow    = "right_elbow"
	LeftWrist     = "left_wrist"
	RightWrist    = "right_wrist"
	LeftHip       = "left_hip"
	RightHip      = "right_hip"
	LeftKnee      = "left_knee"
	RightKnee     = "right_knee"
	LeftAnkle     = "left_ankle"
	RightAnkle    = "right_ankle"
	NumKeypoints  = 17
)

// DefaultMinScore is the confidence a keypoint needs to take part in geometry.
const DefaultMinScore = 0.3

// Names lists the keypoint names in model output order.
var Names = [NumKeypoints]string{
	Nose, LeftEye, RightEye, LeftEar, RightEar,
	LeftShoulder, RightShoulder, LeftElbow, RightElbow, LeftWrist, RightWrist,
	LeftHip, RightHip, LeftKnee, RightKnee, LeftAnkle, RightAnkle,
}

// Connections are the keypoint pairs drawn as skeleton bones.
var Connections = [][2]string{
	{LeftShoulder, RightShoulder},
	{LeftShoulder, LeftElbow},
	{LeftElbow, LeftWrist},
	{RightShoulder, RightElbow},
	{RightElbow, RightWrist},
	{LeftShoulder, LeftHip},
	{RightShoulder, RightHip},
	{LeftHip, RightHip},
	{LeftHip, LeftKnee},
	{LeftKnee, LeftAnkle},
	{RightHip, RightKnee},
	{RightKnee, RightAnkle},
}

// Keypoint is a named body landmark in frame pixel coordinates.
type Keypoint struct {
	Name  string  `json:"name"`
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z,omitempty"`
	Score float64 `json:"score"`
}

// Skeleton is one detected body: its keypoints plus an overall confidence.
type Skeleton struct {
	Keypoints []Keypoint `json:"keypoints"`
	Score     float64    `json:"score"`
}

// Filter returns a skeleton holding only the keypoints whose score is at
// least minScore. Order is preserved.
func (s Skeleton) Filter(minScore float64) Skeleton {
	out := Skeleton{Score: s.Score}
	for _, kp := range s.Keypoints {
		if kp.Score >= minScore {
			out.Keypoints = append(out.Keypoints, kp)
		}
	}
	return out
}

// Empty reports whether the skeleton has no keypoints, i.e. no body was detected.
func (s Skeleton) Empty() bool {
	return len(s.Keypoints) == 0
}

// Lookup finds a keypoint by name.
func (s Skeleton) Lookup(name string) (Keypoint, bool) {
	for _, kp := range s.Keypoints {
		if kp.Name == name {
			return kp, true
		}
	}
	return Keypoint{}, false
}

// Require returns the named keypoints in the order asked for.
// ok is false if any of them is missing.
func (s Skeleton) Require(names ...string) (kps []Keypoint, ok bool) {
	kps = make([]Keypoint, len(names))
	for i, name := range names {
		kp, found := s.Lookup(name)
		if !found {
			return nil, false
		}
		kps[i] = kp
	}
	return kps, true
}

// Without returns a copy of the skeleton with the named keypoints removed.
func (s Skeleton) Without(names ...string) Skeleton {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	out := Skeleton{Score: s.Score}
	for _, kp := range s.Keypoints {
		if !drop[kp.Name] {
			out.Keypoints = append(out.Keypoints, kp)
		}
	}
	return out
}
