package workout

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
)

// Open builds and initializes a pose detector for cfg. If the pose model or
// camera cannot be brought up it returns an announced ManualDetector instead.
// An unsupported exercise or a context error is returned as is.
func Open(ctx context.Context, cfg Config) (Detector, error) {
	pd, err := NewPoseDetector(cfg)
	if err != nil {
		return nil, err
	}

	err = pd.Initialize(ctx)
	if err == nil {
		return pd, nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil, err
	}

	if cerr := pd.Cleanup(); cerr != nil {
		log.WithError(cerr).Debug("cleanup after failed initialize")
	}

	log.WithError(err).WithField("exercise", cfg.Kind).Warn("pose detection unavailable, counting manually")
	if cfg.Metrics != nil {
		cfg.Metrics.CounterFallbacks.Inc()
	}

	md, merr := NewManualDetector(ManualConfig{
		Kind:      cfg.Kind,
		Target:    cfg.Target,
		Callbacks: cfg.Callbacks,
		Now:       cfg.Now,
	})
	if merr != nil {
		return nil, merr
	}
	md.Announce()
	return md, nil
}
