package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/footfall/internal/counting"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/storage"
	"github.com/your-org/footfall/pkg/dto"
)

type SessionHandler struct {
	db        SessionStore
	objects   ObjectStore
	publisher Publisher
}

func NewSessionHandler(db SessionStore, objects ObjectStore, publisher Publisher) *SessionHandler {
	return &SessionHandler{db: db, objects: objects, publisher: publisher}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	st := &models.Session{
		Name:        req.Name,
		MaxDistance: req.MaxDistance,
		MaxAge:      req.MaxAge,
		EntryLineY:  req.EntryLineY,
		ExitLineY:   req.ExitLineY,
		FrameHeight: req.FrameHeight,
	}

	if err := h.db.CreateSession(c.Request.Context(), st); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sessionToResponse(st))
}

func (h *SessionHandler) Get(c *gin.Context) {
	st, ok := h.load(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, sessionToResponse(st))
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.db.ListSessions(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.SessionResponse, 0, len(sessions))
	for i := range sessions {
		resp = append(resp, sessionToResponse(&sessions[i]))
	}

	c.JSON(http.StatusOK, dto.SessionListResponse{Sessions: resp, Total: len(resp)})
}

// Start asks the counting workers to begin counting with the session's settings.
func (h *SessionHandler) Start(c *gin.Context) {
	st, ok := h.load(c)
	if !ok {
		return
	}

	if st.Status == models.SessionStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "session already running"})
		return
	}

	if err := h.sendCommand(counting.CommandForSession(st)); err != nil {
		slog.Error("publish start command", "session_id", st.ID, "error", err)
		_ = h.db.UpdateSessionStatus(c.Request.Context(), st.ID, models.SessionStatusError, "failed to publish start command")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send start command"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "starting", "session_id": st.ID})
}

// Stop asks the workers to stop the session. The worker writes the summary
// and the final status.
func (h *SessionHandler) Stop(c *gin.Context) {
	st, ok := h.load(c)
	if !ok {
		return
	}

	if st.Status != models.SessionStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "session not running"})
		return
	}

	if err := h.sendCommand(counting.SessionCommand{Action: counting.ActionStop, SessionID: st.ID.String()}); err != nil {
		slog.Error("publish stop command", "session_id", st.ID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send stop command"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": "stopping", "session_id": st.ID})
}

func (h *SessionHandler) Delete(c *gin.Context) {
	st, ok := h.load(c)
	if !ok {
		return
	}

	if st.Status == models.SessionStatusRunning {
		_ = h.sendCommand(counting.SessionCommand{Action: counting.ActionStop, SessionID: st.ID.String()})
	}

	if err := h.db.DeleteSession(c.Request.Context(), st.ID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if st.SummaryKey != "" {
		if err := h.objects.DeleteObject(c.Request.Context(), st.SummaryKey); err != nil {
			slog.Warn("delete session summary", "session_id", st.ID, "key", st.SummaryKey, "error", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// Detections accepts one frame of detections from detectors that cannot
// publish to NATS themselves.
func (h *SessionHandler) Detections(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	var req dto.DetectionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ts := time.Now().UTC()
	if req.Timestamp != "" {
		ts, err = time.Parse(time.RFC3339Nano, req.Timestamp)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid timestamp"})
			return
		}
	}

	st, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if st.Status != models.SessionStatusRunning {
		c.JSON(http.StatusConflict, gin.H{"error": "session not running"})
		return
	}

	frame := models.DetectionFrame{
		SessionID:  id,
		FrameIndex: *req.FrameIndex,
		Timestamp:  ts,
		Boxes:      req.Boxes,
	}
	if err := h.publisher.PublishDetections(c.Request.Context(), id.String(), frame.FrameIndex, frame); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue detections"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"session_id": id, "frame_index": frame.FrameIndex, "boxes": len(frame.Boxes)})
}

// Summary returns the summary written when the session stopped.
func (h *SessionHandler) Summary(c *gin.Context) {
	st, ok := h.load(c)
	if !ok {
		return
	}
	if st.SummaryKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary not available"})
		return
	}

	data, err := h.objects.GetObject(c.Request.Context(), st.SummaryKey)
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "summary not found"})
		return
	}
	if err != nil {
		slog.Error("load session summary", "session_id", st.ID, "key", st.SummaryKey, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load summary"})
		return
	}

	c.Data(http.StatusOK, "application/json", data)
}

// load resolves the :id parameter, writing the error response on failure.
func (h *SessionHandler) load(c *gin.Context) (*models.Session, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return nil, false
	}

	st, err := h.db.GetSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if st == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return nil, false
	}
	return st, true
}

func (h *SessionHandler) sendCommand(cmd counting.SessionCommand) error {
	data, err := json.Marshal(cmd)
	if err != nil {
		return err
	}
	return h.publisher.PublishControl(data)
}

func sessionToResponse(st *models.Session) dto.SessionResponse {
	return dto.SessionResponse{
		ID:           st.ID,
		Name:         st.Name,
		Status:       string(st.Status),
		MaxDistance:  st.MaxDistance,
		MaxAge:       st.MaxAge,
		EntryLineY:   st.EntryLineY,
		ExitLineY:    st.ExitLineY,
		FrameHeight:  st.FrameHeight,
		Entries:      st.EntryCount,
		Exits:        st.ExitCount,
		Net:          st.EntryCount - st.ExitCount,
		Frames:       st.Frames,
		HasSummary:   st.SummaryKey != "",
		ErrorMessage: st.ErrorMessage,
		CreatedAt:    st.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    st.UpdatedAt.Format(time.RFC3339),
	}
}
