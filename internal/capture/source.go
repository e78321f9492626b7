// Package capture provides video frame sources and the overlay surfaces
// frames are rendered to, using GoCV (OpenCV).
package capture

import (
	"errors"
	"fmt"
	"sync"

	"gocv.io/x/gocv"
)

// Default capture settings
const (
	DefaultFPS    = 15
	DefaultWidth  = 640
	DefaultHeight = 480
)

// ErrSourceNotOpen is returned when trying to read from a source that is not open.
var ErrSourceNotOpen = errors.New("video source is not open")

// ErrEndOfStream is returned by a non-looping file source once it has no more frames.
var ErrEndOfStream = errors.New("end of video stream")

// Source defines the interface for frame providers.
type Source interface {
	Open() error
	Close() error
	// ReadFrame returns the next frame. The caller owns the returned Mat.
	ReadFrame() (*gocv.Mat, error)
	IsOpen() bool
}

// Config selects and tunes a video source.
type Config struct {
	// DeviceID is the camera index, used when VideoFile is empty.
	DeviceID int
	// VideoFile plays a recording instead of a live camera.
	VideoFile string
	// Loop rewinds VideoFile at the end instead of returning ErrEndOfStream.
	Loop   bool
	Width  int
	Height int
	FPS    int
}

// DefaultConfig returns a Config for the first camera at 640x480.
func DefaultConfig() Config {
	return Config{
		Width:  DefaultWidth,
		Height: DefaultHeight,
		FPS:    DefaultFPS,
	}
}

// videoSource reads frames from a camera device or a video file using GoCV.
type videoSource struct {
	config  Config
	capture *gocv.VideoCapture
	mu      sync.Mutex
	running bool
}

// NewSource creates a Source for cfg. Nothing is opened until Open.
func NewSource(cfg Config) Source {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.Height <= 0 {
		cfg.Height = DefaultHeight
	}
	if cfg.FPS <= 0 {
		cfg.FPS = DefaultFPS
	}
	return &videoSource{config: cfg}
}

// Open opens the camera or file.
func (s *videoSource) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	var (
		capture *gocv.VideoCapture
		err     error
	)
	if s.config.VideoFile != "" {
		capture, err = gocv.VideoCaptureFile(s.config.VideoFile)
	} else {
		capture, err = gocv.OpenVideoCapture(s.config.DeviceID)
	}
	if err != nil {
		return fmt.Errorf("open video source: %w", err)
	}

	if s.config.VideoFile == "" {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.config.Width))
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.config.Height))
		capture.Set(gocv.VideoCaptureFPS, float64(s.config.FPS))
	}

	s.capture = capture
	s.running = true

	return nil
}

// Close closes the source and releases resources.
func (s *videoSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		s.running = false
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.running = false

	return err
}

// ReadFrame reads a single frame.
// The caller is responsible for closing the returned Mat.
func (s *videoSource) ReadFrame() (*gocv.Mat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running || s.capture == nil {
		return nil, ErrSourceNotOpen
	}

	mat := gocv.NewMat()
	ok := s.capture.Read(&mat)
	if (!ok || mat.Empty()) && s.config.VideoFile != "" {
		if !s.config.Loop {
			mat.Close()
			return nil, ErrEndOfStream
		}
		s.capture.Set(gocv.VideoCapturePosFrames, 0)
		ok = s.capture.Read(&mat)
	}
	if !ok {
		mat.Close()
		return nil, errors.New("failed to read frame from video source")
	}

	if mat.Empty() {
		mat.Close()
		return nil, errors.New("captured frame is empty")
	}

	return &mat, nil
}

// IsOpen returns true if the source is currently open.
func (s *videoSource) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}
