package dto

import "github.com/google/uuid"

type CrossingEventResponse struct {
	ID         uuid.UUID `json:"id"`
	SessionID  uuid.UUID `json:"session_id"`
	TrackID    int       `json:"track_id"`
	Kind       string    `json:"kind"`
	FrameIndex int64     `json:"frame_index"`
	X          int       `json:"x"`
	Y          int       `json:"y"`
	Timestamp  string    `json:"timestamp"`
	CreatedAt  string    `json:"created_at,omitempty"`
}

type EventListResponse struct {
	Events []CrossingEventResponse `json:"events"`
	Total  int                     `json:"total"`
}

const (
	WSTypeCrossing = "crossing"
	WSTypeTracks   = "tracks"
)

// WSMessage is a WebSocket message for real-time delivery.
type WSMessage struct {
	Type      string      `json:"type"` // crossing, tracks
	SessionID uuid.UUID   `json:"session_id"`
	Data      interface{} `json:"data"`
}
