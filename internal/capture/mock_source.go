package capture

import (
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// MockSource plays back pre-recorded frames for testing. With no frames it
// produces blank frames of the configured size forever.
type MockSource struct {
	frames  []*gocv.Mat
	width   int
	height  int
	index   int
	loop    bool
	reads   int
	mu      sync.Mutex
	running bool
}

// NewMockSource plays frames once, or forever when loop is set.
func NewMockSource(frames []*gocv.Mat, loop bool) *MockSource {
	return &MockSource{
		frames: frames,
		loop:   loop,
		width:  DefaultWidth,
		height: DefaultHeight,
	}
}

// NewBlankSource produces endless black frames of the given size.
func NewBlankSource(width, height int) *MockSource {
	return &MockSource{width: width, height: height}
}

func (s *MockSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
	s.index = 0
	return nil
}

func (s *MockSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	return nil
}

func (s *MockSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil, ErrSourceNotOpen
	}
	s.reads++

	if len(s.frames) == 0 {
		mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), s.height, s.width, gocv.MatTypeCV8UC3)
		return &mat, nil
	}

	if s.index >= len(s.frames) {
		if !s.loop {
			return nil, fmt.Errorf("mock source: %w", ErrEndOfStream)
		}
		s.index = 0
	}

	// Clone the frame so the original isn't modified
	frame := s.frames[s.index].Clone()
	s.index++

	return &frame, nil
}

func (s *MockSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Reads returns how many frames were requested while open.
func (s *MockSource) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}
