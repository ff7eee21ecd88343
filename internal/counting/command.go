package counting

import (
	"encoding/json"
	"fmt"

	"github.com/your-org/footfall/internal/config"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/tracking"
)

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// SessionCommand is a start/stop command from the API. Nil settings fall
// back to the worker's counting defaults.
type SessionCommand struct {
	Action      string   `json:"action"`
	SessionID   string   `json:"session_id"`
	MaxDistance *float64 `json:"max_distance,omitempty"`
	MaxAge      *int     `json:"max_age,omitempty"`
	EntryLineY  *int     `json:"entry_line_y,omitempty"`
	ExitLineY   *int     `json:"exit_line_y,omitempty"`
	FrameHeight *int     `json:"frame_height,omitempty"`
}

// CommandForSession builds a start command carrying the session's stored
// overrides.
func CommandForSession(st *models.Session) SessionCommand {
	return SessionCommand{
		Action:      ActionStart,
		SessionID:   st.ID.String(),
		MaxDistance: st.MaxDistance,
		MaxAge:      st.MaxAge,
		EntryLineY:  st.EntryLineY,
		ExitLineY:   st.ExitLineY,
		FrameHeight: st.FrameHeight,
	}
}

// ParseCommand parses a NATS message into a SessionCommand.
func ParseCommand(data []byte) (SessionCommand, error) {
	var cmd SessionCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return cmd, fmt.Errorf("parse command: %w", err)
	}
	return cmd, nil
}

// TrackingConfig resolves the tracker settings for this command.
func (c SessionCommand) TrackingConfig(defaults config.CountingConfig) tracking.Config {
	if c.FrameHeight != nil {
		defaults.FrameHeight = *c.FrameHeight
	}
	if c.EntryLineY != nil {
		defaults.EntryLineY = c.EntryLineY
	}
	if c.ExitLineY != nil {
		defaults.ExitLineY = c.ExitLineY
	}
	entry, exit := defaults.Lines()

	cfg := tracking.Config{
		MaxDistance: defaults.MaxDistance,
		MaxAge:      defaults.MaxAge,
		EntryLineY:  entry,
		ExitLineY:   exit,
	}
	if c.MaxDistance != nil {
		cfg.MaxDistance = *c.MaxDistance
	}
	if c.MaxAge != nil {
		cfg.MaxAge = *c.MaxAge
	}
	return cfg
}
