package capture

import (
	"fmt"
	"image"
	"image/color"
	"sync"

	"gocv.io/x/gocv"

	"github.com/ayusman/formcoach/internal/exercise"
	"github.com/ayusman/formcoach/internal/pose"
)

var (
	colorKeypoint = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	colorBone     = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorActive   = color.RGBA{R: 255, G: 0, B: 0, A: 255}
	colorResting  = color.RGBA{R: 0, G: 200, B: 0, A: 255}
	colorDebug    = color.RGBA{R: 255, G: 255, B: 0, A: 255}
	colorWarning  = color.RGBA{R: 255, G: 165, B: 0, A: 255}
)

// Overlay is what gets drawn over a processed frame.
type Overlay struct {
	Skeleton  pose.Skeleton
	Phase     exercise.Phase
	Count     int
	TimeBased bool
	// Label is the debug line showing the signal that drives the phase.
	Label    string
	Feedback exercise.Feedback
}

// CountLine renders the counter the way the overlay shows it.
func (o Overlay) CountLine() string {
	if o.TimeBased {
		return fmt.Sprintf("Time: %ds", o.Count)
	}
	return fmt.Sprintf("Reps: %d", o.Count)
}

// PhaseColor is red for the effortful half of a cycle.
func PhaseColor(p exercise.Phase) color.RGBA {
	switch p {
	case exercise.PhaseDown, exercise.PhaseAdjust, exercise.PhaseOut:
		return colorActive
	default:
		return colorResting
	}
}

// Draw renders o onto frame in place.
func Draw(frame *gocv.Mat, o Overlay) {
	for _, bone := range pose.Connections {
		a, okA := o.Skeleton.Lookup(bone[0])
		b, okB := o.Skeleton.Lookup(bone[1])
		if !okA || !okB {
			continue
		}
		gocv.Line(frame, toPoint(a), toPoint(b), colorBone, 2)
	}
	for _, kp := range o.Skeleton.Keypoints {
		gocv.Circle(frame, toPoint(kp), 5, colorKeypoint, -1)
	}

	if o.Phase != "" {
		gocv.PutText(frame, "Position: "+string(o.Phase), image.Pt(10, 30),
			gocv.FontHersheySimplex, 0.8, PhaseColor(o.Phase), 2)
	}
	gocv.PutText(frame, o.CountLine(), image.Pt(10, 60),
		gocv.FontHersheySimplex, 0.8, colorResting, 2)
	if o.Label != "" {
		gocv.PutText(frame, o.Label, image.Pt(10, 90),
			gocv.FontHersheySimplex, 0.6, colorDebug, 1)
	}

	if o.Feedback.Message != "" {
		c := colorResting
		switch o.Feedback.Severity {
		case exercise.SeverityWarning:
			c = colorWarning
		case exercise.SeverityError:
			c = colorActive
		}
		gocv.PutText(frame, o.Feedback.Message, image.Pt(10, frame.Rows()-20),
			gocv.FontHersheySimplex, 0.6, c, 2)
	}
}

func toPoint(kp pose.Keypoint) image.Point {
	return image.Pt(int(kp.X), int(kp.Y))
}

// Surface is where annotated frames are presented.
type Surface interface {
	// Render draws o over frame and presents it. frame stays owned by the caller.
	Render(frame *gocv.Mat, o Overlay) error
	Close() error
}

// NopSurface discards frames.
type NopSurface struct{}

func (NopSurface) Render(*gocv.Mat, Overlay) error { return nil }
func (NopSurface) Close() error                    { return nil }

// WindowSurface shows annotated frames in a desktop window.
type WindowSurface struct {
	mu     sync.Mutex
	window *gocv.Window
}

// NewWindowSurface opens a window with the given title.
func NewWindowSurface(title string) *WindowSurface {
	return &WindowSurface{window: gocv.NewWindow(title)}
}

func (w *WindowSurface) Render(frame *gocv.Mat, o Overlay) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.window == nil {
		return ErrSourceNotOpen
	}
	Draw(frame, o)
	w.window.IMShow(*frame)
	w.window.WaitKey(1)
	return nil
}

func (w *WindowSurface) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.window == nil {
		return nil
	}
	err := w.window.Close()
	w.window = nil
	return err
}

// StreamSurface keeps the latest annotated frame as JPEG for MJPEG streaming.
type StreamSurface struct {
	mu     sync.RWMutex
	jpeg   []byte
	seq    uint64
	closed bool
}

// NewStreamSurface creates an empty stream surface.
func NewStreamSurface() *StreamSurface {
	return &StreamSurface{}
}

func (s *StreamSurface) Render(frame *gocv.Mat, o Overlay) error {
	annotated := frame.Clone()
	defer annotated.Close()
	Draw(&annotated, o)

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, annotated)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	defer buf.Close()

	data := append([]byte(nil), buf.GetBytes()...)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.jpeg = data
	s.seq++
	return nil
}

// Latest returns the newest JPEG frame and its sequence number. seq is 0
// until something has been rendered.
func (s *StreamSurface) Latest() (jpeg []byte, seq uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.jpeg, s.seq
}

func (s *StreamSurface) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.jpeg = nil
	return nil
}

// MockSurface records rendered overlays for tests.
type MockSurface struct {
	mu       sync.Mutex
	overlays []Overlay
	closed   int
}

func (m *MockSurface) Render(_ *gocv.Mat, o Overlay) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overlays = append(m.overlays, o)
	return nil
}

func (m *MockSurface) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// Overlays returns a copy of everything rendered so far.
func (m *MockSurface) Overlays() []Overlay {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Overlay(nil), m.overlays...)
}

// Closed returns how many times Close was called.
func (m *MockSurface) Closed() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
