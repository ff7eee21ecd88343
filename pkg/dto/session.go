package dto

import "github.com/google/uuid"

// CreateSessionRequest registers a counting session. Omitted thresholds use
// the counter's configured defaults.
type CreateSessionRequest struct {
	Name        string   `json:"name" binding:"required"`
	MaxDistance *float64 `json:"max_distance,omitempty" binding:"omitempty,gt=0"`
	MaxAge      *int     `json:"max_age,omitempty" binding:"omitempty,gte=0"`
	EntryLineY  *int     `json:"entry_line_y,omitempty" binding:"omitempty,gte=0"`
	ExitLineY   *int     `json:"exit_line_y,omitempty" binding:"omitempty,gte=0"`
	FrameHeight *int     `json:"frame_height,omitempty" binding:"omitempty,gt=0"`
}

type SessionResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	MaxDistance  *float64  `json:"max_distance,omitempty"`
	MaxAge       *int      `json:"max_age,omitempty"`
	EntryLineY   *int      `json:"entry_line_y,omitempty"`
	ExitLineY    *int      `json:"exit_line_y,omitempty"`
	FrameHeight  *int      `json:"frame_height,omitempty"`
	Entries      int       `json:"entries"`
	Exits        int       `json:"exits"`
	Net          int       `json:"net"`
	Frames       int64     `json:"frames"`
	HasSummary   bool      `json:"has_summary"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    string    `json:"created_at"`
	UpdatedAt    string    `json:"updated_at"`
}

type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
	Total    int               `json:"total"`
}

// DetectionsRequest is one frame of person boxes, [x1, y1, x2, y2] each.
type DetectionsRequest struct {
	FrameIndex *int64   `json:"frame_index" binding:"required,gte=0"`
	Timestamp  string   `json:"timestamp,omitempty"`
	Boxes      [][4]int `json:"boxes"`
}

type CountsResponse struct {
	SessionID uuid.UUID `json:"session_id"`
	Entries   int       `json:"entries"`
	Exits     int       `json:"exits"`
	Net       int       `json:"net"`
}
