package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/your-org/footfall/internal/tracking"
)

type SessionStatus string

const (
	SessionStatusCreated SessionStatus = "created"
	SessionStatusRunning SessionStatus = "running"
	SessionStatusStopped SessionStatus = "stopped"
	SessionStatusError   SessionStatus = "error"
)

// Session is one counting run over a single camera feed or video.
// Nil thresholds mean the worker's configured defaults apply.
type Session struct {
	ID           uuid.UUID     `json:"id" db:"id"`
	Name         string        `json:"name" db:"name"`
	Status       SessionStatus `json:"status" db:"status"`
	MaxDistance  *float64      `json:"max_distance,omitempty" db:"max_distance"`
	MaxAge       *int          `json:"max_age,omitempty" db:"max_age"`
	EntryLineY   *int          `json:"entry_line_y,omitempty" db:"entry_line_y"`
	ExitLineY    *int          `json:"exit_line_y,omitempty" db:"exit_line_y"`
	FrameHeight  *int          `json:"frame_height,omitempty" db:"frame_height"`
	EntryCount   int           `json:"entry_count" db:"entry_count"`
	ExitCount    int           `json:"exit_count" db:"exit_count"`
	Frames       int64         `json:"frames" db:"frames"`
	SummaryKey   string        `json:"summary_key,omitempty" db:"summary_key"`
	ErrorMessage string        `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at" db:"updated_at"`
}

// SessionSummary is written to object storage when a session stops. Tracks
// holds the final trajectories, which is what heatmap tooling renders from.
type SessionSummary struct {
	SessionID  uuid.UUID                `json:"session_id"`
	StartedAt  time.Time                `json:"started_at"`
	StoppedAt  time.Time                `json:"stopped_at"`
	Frames     int64                    `json:"frames"`
	LastFrame  int64                    `json:"last_frame"`
	Entries    int                      `json:"entries"`
	Exits      int                      `json:"exits"`
	Net        int                      `json:"net"`
	EntryLineY int                      `json:"entry_line_y"`
	ExitLineY  int                      `json:"exit_line_y"`
	Tracks     []tracking.TrackSnapshot `json:"tracks"`
}
