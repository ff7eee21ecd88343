package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/storage"
	"github.com/your-org/footfall/internal/tracking"
	"github.com/your-org/footfall/pkg/dto"
)

type EventHandler struct {
	db EventStore
}

func NewEventHandler(db EventStore) *EventHandler {
	return &EventHandler{db: db}
}

func (h *EventHandler) List(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var f storage.EventFilter
	switch kind := tracking.CrossingKind(c.Query("kind")); kind {
	case "":
	case tracking.CrossingEntry, tracking.CrossingExit:
		f.Kind = kind
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "kind must be entry or exit"})
		return
	}

	if fromStr := c.Query("from"); fromStr != "" {
		if t, err := time.Parse(time.RFC3339, fromStr); err == nil {
			f.From = &t
		}
	}
	if toStr := c.Query("to"); toStr != "" {
		if t, err := time.Parse(time.RFC3339, toStr); err == nil {
			f.To = &t
		}
	}

	f.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	f.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	events, total, err := h.db.QueryCrossingEvents(c.Request.Context(), sessionID, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.CrossingEventResponse, 0, len(events))
	for i := range events {
		resp = append(resp, EventToResponse(&events[i]))
	}

	c.JSON(http.StatusOK, dto.EventListResponse{Events: resp, Total: total})
}

// Counts totals the stored crossings of a session.
func (h *EventHandler) Counts(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	counts, err := h.db.CountCrossings(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.CountsResponse{
		SessionID: sessionID,
		Entries:   counts.Entries,
		Exits:     counts.Exits,
		Net:       counts.Net(),
	})
}

// EventToResponse is shared with the WebSocket relay.
func EventToResponse(ev *models.CrossingEvent) dto.CrossingEventResponse {
	r := dto.CrossingEventResponse{
		ID:         ev.ID,
		SessionID:  ev.SessionID,
		TrackID:    ev.TrackID,
		Kind:       string(ev.Kind),
		FrameIndex: ev.FrameIndex,
		X:          ev.X,
		Y:          ev.Y,
		Timestamp:  ev.Timestamp.Format(time.RFC3339Nano),
	}
	if !ev.CreatedAt.IsZero() {
		r.CreatedAt = ev.CreatedAt.Format(time.RFC3339)
	}
	return r
}
