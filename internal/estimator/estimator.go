// Package estimator wraps the pose-estimation model that turns video frames
// into skeletons.
package estimator

import (
	"context"
	"errors"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/formcoach/internal/pose"
)

// ErrScriptNotFound is returned when the MoveNet service script cannot be located.
var ErrScriptNotFound = errors.New("movenet_service.py not found")

// Estimator defines the interface for pose estimation implementations.
type Estimator interface {
	// Estimate analyzes a video frame and returns the detected bodies.
	// Returns an empty slice if nobody is in the frame. Keypoints are in
	// frame pixel coordinates and are not filtered by score.
	Estimate(ctx context.Context, frame *gocv.Mat) ([]pose.Skeleton, error)

	// Close releases any resources held by the estimator.
	Close() error
}

// Config holds configuration options for pose estimation.
type Config struct {
	// ModelType selects the MoveNet variant: "lightning" or "thunder".
	ModelType string

	// ScriptPath overrides the search for movenet_service.py.
	ScriptPath string

	// PythonPath overrides the interpreter lookup.
	PythonPath string

	// IdleTimeout stops the model process after this long without a request.
	IdleTimeout time.Duration

	// StartTimeout bounds how long the process may take to load the model.
	StartTimeout time.Duration
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		ModelType:    "lightning",
		IdleTimeout:  30 * time.Second,
		StartTimeout: time.Minute,
	}
}
