// Package tracking follows detected objects across video frames by centroid
// distance and counts one-time crossings of an entry and an exit line.
package tracking

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is returned by NewCounter for unusable settings.
var ErrInvalidConfig = errors.New("invalid tracking config")

// Config is fixed for the lifetime of a Counter.
type Config struct {
	MaxDistance float64 `json:"max_distance"`
	MaxAge      int     `json:"max_age"`
	EntryLineY  int     `json:"entry_line_y"`
	ExitLineY   int     `json:"exit_line_y"`
}

// Validate checks the thresholds. Line positions are unconstrained.
func (c Config) Validate() error {
	if c.MaxDistance <= 0 {
		return fmt.Errorf("%w: max distance must be positive, got %v", ErrInvalidConfig, c.MaxDistance)
	}
	if c.MaxAge < 0 {
		return fmt.Errorf("%w: max age must not be negative, got %d", ErrInvalidConfig, c.MaxAge)
	}
	return nil
}

// FrameResult is what a single ProcessFrame call produced.
type FrameResult struct {
	FrameIndex int64           `json:"frame_index"`
	Events     []CrossingEvent `json:"events,omitempty"`
	Created    []int           `json:"created,omitempty"`
	Expired    []int           `json:"expired,omitempty"`
	Counts     Counts          `json:"counts"`
	Active     int             `json:"active"`
}

// Snapshot is a read-only view of a counter between frames.
type Snapshot struct {
	FrameIndex int64           `json:"frame_index"`
	Tracks     []TrackSnapshot `json:"tracks"`
	Counts     Counts          `json:"counts"`
	Net        int             `json:"net"`
}

// Counter tracks detections frame by frame and counts line crossings.
// It is not safe for concurrent use; callers feed frames one at a time.
type Counter struct {
	cfg       Config
	store     *TrackStore
	lifecycle *Lifecycle
	detector  *CrossingDetector
	lastFrame int64
}

// NewCounter validates cfg and returns an empty counter.
func NewCounter(cfg Config) (*Counter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	store := NewTrackStore()
	return &Counter{
		cfg:       cfg,
		store:     store,
		lifecycle: NewLifecycle(store, cfg.MaxAge),
		detector:  NewCrossingDetector(cfg.EntryLineY, cfg.ExitLineY),
		lastFrame: -1,
	}, nil
}

// ProcessFrame runs association, lifecycle and crossing detection for one
// frame of boxes. Boxes are expected to be valid.
func (c *Counter) ProcessFrame(frameIndex int64, boxes []BBox) FrameResult {
	centroids := Centroids(boxes)
	assignment := Associate(c.store.Tracks(), centroids, c.cfg.MaxDistance)
	lc := c.lifecycle.Apply(centroids, assignment)

	res := FrameResult{
		FrameIndex: frameIndex,
		Created:    lc.Created,
		Expired:    lc.Expired,
	}
	for _, t := range lc.Matched {
		if kind, ok := c.detector.Evaluate(t); ok {
			res.Events = append(res.Events, CrossingEvent{
				TrackID:    t.ID,
				Kind:       kind,
				FrameIndex: frameIndex,
				Centroid:   t.Centroid(),
			})
		}
	}

	c.lastFrame = frameIndex
	res.Counts = c.detector.Counts()
	res.Active = c.store.Len()
	return res
}

// Snapshot copies the live tracks and totals.
func (c *Counter) Snapshot() Snapshot {
	counts := c.detector.Counts()
	return Snapshot{
		FrameIndex: c.lastFrame,
		Tracks:     c.store.Snapshot(),
		Counts:     counts,
		Net:        counts.Net(),
	}
}

// Counts returns the session totals.
func (c *Counter) Counts() Counts {
	return c.detector.Counts()
}

// LastFrame is the index of the last processed frame, -1 before the first.
func (c *Counter) LastFrame() int64 {
	return c.lastFrame
}

// Config returns the settings the counter was built with.
func (c *Counter) Config() Config {
	return c.cfg
}
