package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/footfall/internal/tracking"
)

// CrossingEvent is a stored line crossing of one track.
type CrossingEvent struct {
	ID         uuid.UUID             `json:"id" db:"id"`
	SessionID  uuid.UUID             `json:"session_id" db:"session_id"`
	TrackID    int                   `json:"track_id" db:"track_id"`
	Kind       tracking.CrossingKind `json:"kind" db:"kind"`
	FrameIndex int64                 `json:"frame_index" db:"frame_index"`
	X          int                   `json:"x" db:"x"`
	Y          int                   `json:"y" db:"y"`
	Timestamp  time.Time             `json:"timestamp" db:"timestamp"`
	CreatedAt  time.Time             `json:"created_at" db:"created_at"`
}

// DetectionFrame is the message a detector publishes for every frame.
// Boxes are [x1, y1, x2, y2] in pixels.
type DetectionFrame struct {
	SessionID  uuid.UUID `json:"session_id"`
	FrameIndex int64     `json:"frame_index"`
	Timestamp  time.Time `json:"timestamp"`
	Boxes      [][4]int  `json:"boxes"`
}

// BBoxes converts the wire boxes, dropping those without positive area.
func (f DetectionFrame) BBoxes() (boxes []tracking.BBox, dropped int) {
	boxes = make([]tracking.BBox, 0, len(f.Boxes))
	for _, b := range f.Boxes {
		bb := tracking.BBox{X1: b[0], Y1: b[1], X2: b[2], Y2: b[3]}
		if !bb.Valid() {
			dropped++
			continue
		}
		boxes = append(boxes, bb)
	}
	return boxes, dropped
}

// TrackSnapshot is published after frames so renderers can draw live tracks.
type TrackSnapshot struct {
	SessionID uuid.UUID         `json:"session_id"`
	Timestamp time.Time         `json:"timestamp"`
	Snapshot  tracking.Snapshot `json:"snapshot"`
}
