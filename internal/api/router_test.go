package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/footfall/internal/api/handlers"
	"github.com/your-org/footfall/internal/api/ws"
	"github.com/your-org/footfall/internal/counting"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/storage"
	"github.com/your-org/footfall/internal/tracking"
	"github.com/your-org/footfall/pkg/dto"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*models.Session
	events   []models.CrossingEvent
	filter   storage.EventFilter
}

func (m *memStore) CreateSession(_ context.Context, st *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st.ID = uuid.New()
	st.Status = models.SessionStatusCreated
	st.CreatedAt = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	st.UpdatedAt = st.CreatedAt
	cp := *st
	m.sessions[st.ID] = &cp
	return nil
}

func (m *memStore) GetSession(_ context.Context, id uuid.UUID) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

func (m *memStore) ListSessions(_ context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Session, 0, len(m.sessions))
	for _, st := range m.sessions {
		out = append(out, *st)
	}
	return out, nil
}

func (m *memStore) UpdateSessionStatus(_ context.Context, id uuid.UUID, status models.SessionStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.sessions[id]
	if !ok {
		return storage.ErrNotFound
	}
	st.Status = status
	st.ErrorMessage = errMsg
	return nil
}

func (m *memStore) DeleteSession(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

func (m *memStore) QueryCrossingEvents(_ context.Context, sessionID uuid.UUID, f storage.EventFilter) ([]models.CrossingEvent, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = f
	var out []models.CrossingEvent
	for _, ev := range m.events {
		if ev.SessionID == sessionID && (f.Kind == "" || ev.Kind == f.Kind) {
			out = append(out, ev)
		}
	}
	return out, len(out), nil
}

func (m *memStore) CountCrossings(_ context.Context, sessionID uuid.UUID) (tracking.Counts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var c tracking.Counts
	for _, ev := range m.events {
		if ev.SessionID != sessionID {
			continue
		}
		if ev.Kind == tracking.CrossingEntry {
			c.Entries++
		} else {
			c.Exits++
		}
	}
	return c, nil
}

type memObjects struct {
	objects map[string][]byte
	deleted []string
	err     error
}

func (m *memObjects) GetObject(_ context.Context, key string) ([]byte, error) {
	if m.err != nil {
		return nil, m.err
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return data, nil
}

func (m *memObjects) DeleteObject(_ context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	delete(m.objects, key)
	return nil
}

type recordingPublisher struct {
	commands   []counting.SessionCommand
	detections []models.DetectionFrame
	err        error
}

func (p *recordingPublisher) PublishControl(data []byte) error {
	if p.err != nil {
		return p.err
	}
	cmd, err := counting.ParseCommand(data)
	if err != nil {
		return err
	}
	p.commands = append(p.commands, cmd)
	return nil
}

func (p *recordingPublisher) PublishDetections(_ context.Context, _ string, _ int64, data interface{}) error {
	if p.err != nil {
		return p.err
	}
	p.detections = append(p.detections, data.(models.DetectionFrame))
	return nil
}

type fixture struct {
	router  *gin.Engine
	db      *memStore
	objects *memObjects
	pub     *recordingPublisher
}

func newFixture(t *testing.T, apiKey string) *fixture {
	t.Helper()
	f := &fixture{
		db:      &memStore{sessions: map[uuid.UUID]*models.Session{}},
		objects: &memObjects{objects: map[string][]byte{}},
		pub:     &recordingPublisher{},
	}
	f.router = NewRouter(RouterConfig{
		APIKey:    apiKey,
		DB:        f.db,
		Objects:   f.objects,
		Publisher: f.pub,
		Hub:       ws.NewHub(),
		Checks: map[string]handlers.Check{
			"postgres": func(context.Context) error { return nil },
		},
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func (f *fixture) create(t *testing.T, body interface{}) dto.SessionResponse {
	t.Helper()
	w := f.do(t, http.MethodPost, "/v1/sessions", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp dto.SessionResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestSessionLifecycle(t *testing.T) {
	f := newFixture(t, "")
	entry := 150

	created := f.create(t, map[string]interface{}{"name": "front door", "entry_line_y": entry})
	assert.Equal(t, "front door", created.Name)
	assert.Equal(t, "created", created.Status)
	require.NotNil(t, created.EntryLineY)
	assert.Equal(t, entry, *created.EntryLineY)
	assert.Nil(t, created.ExitLineY)

	path := "/v1/sessions/" + created.ID.String()

	w := f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = f.do(t, http.MethodPost, path+"/stop", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, path+"/start", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.pub.commands, 1)
	cmd := f.pub.commands[0]
	assert.Equal(t, counting.ActionStart, cmd.Action)
	assert.Equal(t, created.ID.String(), cmd.SessionID)
	require.NotNil(t, cmd.EntryLineY)
	assert.Equal(t, entry, *cmd.EntryLineY)
	assert.Nil(t, cmd.MaxDistance)

	// The worker reports running.
	require.NoError(t, f.db.UpdateSessionStatus(context.Background(), created.ID, models.SessionStatusRunning, ""))

	w = f.do(t, http.MethodPost, path+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = f.do(t, http.MethodPost, path+"/stop", nil)
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, f.pub.commands, 2)
	assert.Equal(t, counting.ActionStop, f.pub.commands[1].Action)

	w = f.do(t, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.SessionListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Total)
}

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t, "")

	tests := []struct {
		name string
		body interface{}
	}{
		{"missing name", map[string]interface{}{}},
		{"negative max age", map[string]interface{}{"name": "x", "max_age": -1}},
		{"zero max distance", map[string]interface{}{"name": "x", "max_distance": 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := f.do(t, http.MethodPost, "/v1/sessions", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
		})
	}
}

func TestSessionNotFound(t *testing.T) {
	f := newFixture(t, "")

	assert.Equal(t, http.StatusBadRequest, f.do(t, http.MethodGet, "/v1/sessions/abc", nil).Code)
	missing := "/v1/sessions/" + uuid.New().String()
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, missing, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodPost, missing+"/start", nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, missing, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, missing+"/summary", nil).Code)
}

func TestStartPublishFailureMarksError(t *testing.T) {
	f := newFixture(t, "")
	created := f.create(t, map[string]interface{}{"name": "lobby"})
	f.pub.err = errors.New("nats down")

	w := f.do(t, http.MethodPost, "/v1/sessions/"+created.ID.String()+"/start", nil)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	st, _ := f.db.GetSession(context.Background(), created.ID)
	assert.Equal(t, models.SessionStatusError, st.Status)
}

func TestDeleteRemovesSummary(t *testing.T) {
	f := newFixture(t, "")
	created := f.create(t, map[string]interface{}{"name": "lobby"})
	key := storage.SummaryKey(created.ID.String())
	f.objects.objects[key] = []byte(`{"entries":2}`)
	f.db.sessions[created.ID].SummaryKey = key

	w := f.do(t, http.MethodGet, "/v1/sessions/"+created.ID.String()+"/summary", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"entries":2}`, w.Body.String())

	w = f.do(t, http.MethodDelete, "/v1/sessions/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{key}, f.objects.deleted)
	assert.Empty(t, f.db.sessions)
}

func TestSummaryErrors(t *testing.T) {
	f := newFixture(t, "")
	created := f.create(t, map[string]interface{}{"name": "lobby"})
	path := "/v1/sessions/" + created.ID.String() + "/summary"

	w := f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "no summary written yet")

	f.db.sessions[created.ID].SummaryKey = storage.SummaryKey(created.ID.String())
	w = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "summary object missing")

	f.objects.err = errors.New("minio unreachable")
	w = f.do(t, http.MethodGet, path, nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestDetections(t *testing.T) {
	f := newFixture(t, "")
	created := f.create(t, map[string]interface{}{"name": "lobby"})
	path := "/v1/sessions/" + created.ID.String() + "/detections"
	require.NoError(t, f.db.UpdateSessionStatus(context.Background(), created.ID, models.SessionStatusRunning, ""))

	w := f.do(t, http.MethodPost, path, map[string]interface{}{
		"frame_index": 12,
		"timestamp":   "2025-03-01T10:00:00Z",
		"boxes":       [][4]int{{0, 0, 10, 10}, {20, 20, 40, 60}},
	})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	require.Len(t, f.pub.detections, 1)
	frame := f.pub.detections[0]
	assert.Equal(t, created.ID, frame.SessionID)
	assert.Equal(t, int64(12), frame.FrameIndex)
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), frame.Timestamp)
	assert.Len(t, frame.Boxes, 2)

	w = f.do(t, http.MethodPost, path, map[string]interface{}{"boxes": [][4]int{}})
	assert.Equal(t, http.StatusBadRequest, w.Code, "frame_index is required")

	w = f.do(t, http.MethodPost, path, map[string]interface{}{"frame_index": 1, "timestamp": "yesterday"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodPost, "/v1/sessions/"+uuid.New().String()+"/detections", map[string]interface{}{"frame_index": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDetectionsRequireRunningSession(t *testing.T) {
	f := newFixture(t, "")
	created := f.create(t, map[string]interface{}{"name": "lobby", "entry_line_y": 200})
	path := "/v1/sessions/" + created.ID.String() + "/detections"
	body := map[string]interface{}{"frame_index": 0, "boxes": [][4]int{{0, 0, 10, 10}}}

	w := f.do(t, http.MethodPost, path, body)
	assert.Equal(t, http.StatusConflict, w.Code, "created but not started")

	for _, status := range []models.SessionStatus{models.SessionStatusStopped, models.SessionStatusError} {
		require.NoError(t, f.db.UpdateSessionStatus(context.Background(), created.ID, status, ""))
		w = f.do(t, http.MethodPost, path, body)
		assert.Equal(t, http.StatusConflict, w.Code, string(status))
	}
	assert.Empty(t, f.pub.detections)

	require.NoError(t, f.db.UpdateSessionStatus(context.Background(), created.ID, models.SessionStatusRunning, ""))
	w = f.do(t, http.MethodPost, path, body)
	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Len(t, f.pub.detections, 1)
}

func TestEventsAndCounts(t *testing.T) {
	f := newFixture(t, "")
	sid := uuid.New()
	ts := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f.db.events = []models.CrossingEvent{
		{ID: uuid.New(), SessionID: sid, TrackID: 1, Kind: tracking.CrossingEntry, FrameIndex: 4, X: 10, Y: 101, Timestamp: ts},
		{ID: uuid.New(), SessionID: sid, TrackID: 2, Kind: tracking.CrossingEntry, FrameIndex: 9, X: 30, Y: 100, Timestamp: ts},
		{ID: uuid.New(), SessionID: sid, TrackID: 3, Kind: tracking.CrossingExit, FrameIndex: 11, X: 50, Y: 299, Timestamp: ts},
		{ID: uuid.New(), SessionID: uuid.New(), TrackID: 1, Kind: tracking.CrossingExit, Timestamp: ts},
	}
	base := "/v1/sessions/" + sid.String()

	w := f.do(t, http.MethodGet, base+"/events?kind=entry&limit=10&offset=0&from=2025-03-01T00:00:00Z", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list dto.EventListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Equal(t, 2, list.Total)
	assert.Equal(t, "entry", list.Events[0].Kind)
	assert.Equal(t, 10, f.db.filter.Limit)
	require.NotNil(t, f.db.filter.From)
	assert.Nil(t, f.db.filter.To)

	w = f.do(t, http.MethodGet, base+"/events?kind=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(t, http.MethodGet, base+"/counts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var counts dto.CountsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &counts))
	assert.Equal(t, dto.CountsResponse{SessionID: sid, Entries: 2, Exits: 1, Net: 1}, counts)
}

func TestAPIKeyGuardsV1Only(t *testing.T) {
	f := newFixture(t, "secret")

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodGet, "/v1/sessions", nil).Code)

	req := httptest.NewRequest(http.MethodGet, "/v1/sessions", nil)
	req.Header.Set("X-API-Key", "secret")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, "")
	w := f.do(t, http.MethodGet, "/readyz", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ready","checks":{"postgres":"ok"}}`, w.Body.String())

	failing := NewRouter(RouterConfig{
		DB:  f.db,
		Hub: ws.NewHub(),
		Checks: map[string]handlers.Check{
			"postgres": func(context.Context) error { return nil },
			"nats":     func(context.Context) error { return errors.New("no servers available") },
		},
	})
	w = httptest.NewRecorder()
	failing.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"not ready","checks":{"postgres":"ok","nats":"no servers available"}}`, w.Body.String())
}
