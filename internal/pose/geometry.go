package pose

import "math"

// Angle returns the angle at vertex b formed by the rays b->a and b->c,
// in degrees within [0, 180].
func Angle(a, b, c Keypoint) float64 {
	radians := math.Atan2(c.Y-b.Y, c.X-b.X) - math.Atan2(a.Y-b.Y, a.X-b.X)
	angle := math.Abs(radians * 180.0 / math.Pi)

	// The raw difference of two atan2 values spans (-360, 360).
	if angle > 180.0 {
		angle = 360.0 - angle
	}
	return angle
}

// Distance returns the Euclidean distance between two keypoints in the image plane.
func Distance(a, b Keypoint) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y
	return math.Sqrt(dx*dx + dy*dy)
}

// DistanceToSegment returns the distance from p to the closest point of the
// segment s1-s2. A zero-length segment degrades to the distance from p to s1.
func DistanceToSegment(p, s1, s2 Keypoint) float64 {
	cx := s2.X - s1.X
	cy := s2.Y - s1.Y
	lenSq := cx*cx + cy*cy

	t := 0.0
	if lenSq != 0 {
		t = ((p.X-s1.X)*cx + (p.Y-s1.Y)*cy) / lenSq
	}
	t = math.Max(0, math.Min(1, t))

	closest := Keypoint{X: s1.X + t*cx, Y: s1.Y + t*cy}
	return Distance(p, closest)
}

// Midpoint returns the point halfway between a and b.
func Midpoint(a, b Keypoint) Keypoint {
	return Keypoint{
		X: (a.X + b.X) / 2,
		Y: (a.Y + b.Y) / 2,
		Z: (a.Z + b.Z) / 2,
	}
}
