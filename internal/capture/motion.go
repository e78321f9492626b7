package capture

import (
	"image"
	"sync"

	"gocv.io/x/gocv"
)

// Motion gate defaults.
const (
	// BlurSize is the Gaussian kernel applied before differencing.
	BlurSize = 21
	// DiffThreshold is the per-pixel intensity change that counts as movement.
	DiffThreshold = 25
	// DefaultMotionPercent is the share of changed pixels, in percent, that counts as motion.
	DefaultMotionPercent = 0.5
	// DefaultSettleFrames keeps frames flowing after motion stops so the
	// resting position at the end of a movement is still seen.
	DefaultSettleFrames = 5
)

// MotionGate decides whether a frame differs enough from the previous one to
// be worth running pose inference on. It is only meant for repetition
// exercises: a still body cannot complete a rep, but a held plank still has
// to be timed.
type MotionGate struct {
	percent  float64
	settle   int
	prevGray gocv.Mat
	primed   bool
	// remaining counts the frames still let through after the last motion.
	remaining int
	mu        sync.Mutex
}

// NewMotionGate creates a gate that opens when more than percent of the
// pixels change, and stays open for settle frames after motion stops.
func NewMotionGate(percent float64, settle int) *MotionGate {
	if percent <= 0 {
		percent = DefaultMotionPercent
	}
	if settle < 0 {
		settle = 0
	}
	return &MotionGate{
		percent:  percent,
		settle:   settle,
		prevGray: gocv.NewMat(),
	}
}

// Allow reports whether frame should be processed, along with the percentage
// of changed pixels. The first frame after creation or Reset is always allowed.
func (g *MotionGate) Allow(frame *gocv.Mat) (bool, float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if frame == nil || frame.Empty() {
		return false, 0
	}

	gray := gocv.NewMat()
	defer gray.Close()
	if frame.Channels() > 1 {
		gocv.CvtColor(*frame, &gray, gocv.ColorBGRToGray)
	} else {
		frame.CopyTo(&gray)
	}

	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Point{X: BlurSize, Y: BlurSize}, 0, 0, gocv.BorderDefault)

	if !g.primed {
		blurred.CopyTo(&g.prevGray)
		g.primed = true
		g.remaining = g.settle
		return true, 100
	}

	diff := gocv.NewMat()
	defer diff.Close()
	gocv.AbsDiff(blurred, g.prevGray, &diff)

	thresh := gocv.NewMat()
	defer thresh.Close()
	gocv.Threshold(diff, &thresh, DiffThreshold, 255, gocv.ThresholdBinary)

	changed := float64(gocv.CountNonZero(thresh)) / float64(thresh.Rows()*thresh.Cols()) * 100.0
	blurred.CopyTo(&g.prevGray)

	if changed > g.percent {
		g.remaining = g.settle
		return true, changed
	}
	if g.remaining > 0 {
		g.remaining--
		return true, changed
	}
	return false, changed
}

// Reset forgets the baseline frame.
func (g *MotionGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.primed = false
	g.remaining = 0
}

// Close releases the baseline frame.
func (g *MotionGate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prevGray.Close()
	g.prevGray = gocv.NewMat()
	g.primed = false
}
