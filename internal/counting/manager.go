// Package counting hosts one tracking.Counter per counting session and
// connects it to the queue and storage layers.
package counting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/footfall/internal/config"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/observability"
	"github.com/your-org/footfall/internal/tracking"
)

var (
	ErrSessionRunning = errors.New("session already running")
	ErrUnknownAction  = errors.New("unknown action")
)

// EventPublisher is the outbound side of the message queue.
type EventPublisher interface {
	PublishCrossing(ctx context.Context, sessionID string, data interface{}) error
	PublishSnapshot(sessionID string, data interface{}) error
}

// SessionStore persists session state.
type SessionStore interface {
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, errMsg string) error
	UpdateSessionCounts(ctx context.Context, id uuid.UUID, counts tracking.Counts, frames int64) error
	SetSessionSummary(ctx context.Context, id uuid.UUID, key string) error
}

// ObjectStore keeps session summaries.
type ObjectStore interface {
	SaveSummary(ctx context.Context, summary models.SessionSummary) (key string, err error)
}

// stoppedLimit bounds how many stopped session ids a worker remembers.
const stoppedLimit = 4096

type activeSession struct {
	mu        sync.Mutex
	id        uuid.UUID
	counter   *tracking.Counter
	startedAt time.Time
	frames    int64
	closed    bool // set by stopSession under mu
}

// Manager owns the counters of all sessions on this worker. Frames of one
// session are processed strictly one at a time.
type Manager struct {
	publisher EventPublisher
	store     SessionStore
	objects   ObjectStore
	defaults  config.CountingConfig
	now       func() time.Time

	mu           sync.RWMutex
	sessions     map[uuid.UUID]*activeSession
	stopped      map[uuid.UUID]bool
	stoppedOrder []uuid.UUID
	stoppedLimit int
}

func NewManager(publisher EventPublisher, store SessionStore, objects ObjectStore, defaults config.CountingConfig) *Manager {
	return &Manager{
		publisher: publisher,
		store:     store,
		objects:   objects,
		defaults:  defaults,
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*activeSession),
		stopped:   make(map[uuid.UUID]bool),

		stoppedLimit: stoppedLimit,
	}
}

// HandleCommand processes a session control command.
func (m *Manager) HandleCommand(ctx context.Context, cmd SessionCommand) error {
	id, err := uuid.Parse(cmd.SessionID)
	if err != nil {
		return fmt.Errorf("invalid session id %q: %w", cmd.SessionID, err)
	}

	switch cmd.Action {
	case ActionStart:
		return m.startSession(ctx, id, cmd)
	case ActionStop:
		return m.stopSession(ctx, id)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, cmd.Action)
	}
}

func (m *Manager) startSession(ctx context.Context, id uuid.UUID, cmd SessionCommand) error {
	cfg := cmd.TrackingConfig(m.defaults)
	counter, err := tracking.NewCounter(cfg)
	if err != nil {
		m.updateStatus(ctx, id, models.SessionStatusError, err.Error())
		return fmt.Errorf("start session %s: %w", id, err)
	}

	m.mu.Lock()
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		return fmt.Errorf("session %s: %w", id, ErrSessionRunning)
	}
	m.sessions[id] = &activeSession{
		id:        id,
		counter:   counter,
		startedAt: m.now(),
	}
	delete(m.stopped, id)
	m.mu.Unlock()

	observability.ActiveSessions.Inc()
	m.updateStatus(ctx, id, models.SessionStatusRunning, "")

	slog.Info("counting session started",
		"session_id", id,
		"max_distance", cfg.MaxDistance,
		"max_age", cfg.MaxAge,
		"entry_line_y", cfg.EntryLineY,
		"exit_line_y", cfg.ExitLineY,
	)
	return nil
}

func (m *Manager) stopSession(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	as, exists := m.sessions[id]
	if exists {
		delete(m.sessions, id)
		m.markStopped(id)
	}
	m.mu.Unlock()

	if !exists {
		return nil // Already stopped
	}

	observability.ActiveSessions.Dec()
	observability.ActiveTracks.DeleteLabelValues(id.String())

	as.mu.Lock()
	defer as.mu.Unlock()
	as.closed = true

	snap := as.counter.Snapshot()
	cfg := as.counter.Config()
	summary := models.SessionSummary{
		SessionID:  id,
		StartedAt:  as.startedAt,
		StoppedAt:  m.now(),
		Frames:     as.frames,
		LastFrame:  snap.FrameIndex,
		Entries:    snap.Counts.Entries,
		Exits:      snap.Counts.Exits,
		Net:        snap.Net,
		EntryLineY: cfg.EntryLineY,
		ExitLineY:  cfg.ExitLineY,
		Tracks:     snap.Tracks,
	}

	var errs []error
	if err := m.store.UpdateSessionCounts(ctx, id, snap.Counts, as.frames); err != nil {
		errs = append(errs, err)
	}
	if err := m.writeSummary(ctx, summary); err != nil {
		errs = append(errs, err)
	}
	if err := errors.Join(errs...); err != nil {
		m.updateStatus(ctx, id, models.SessionStatusError, err.Error())
		return fmt.Errorf("stop session %s: %w", id, err)
	}
	m.updateStatus(ctx, id, models.SessionStatusStopped, "")

	slog.Info("counting session stopped",
		"session_id", id,
		"frames", as.frames,
		"entries", summary.Entries,
		"exits", summary.Exits,
		"net", summary.Net,
	)
	return nil
}

func (m *Manager) writeSummary(ctx context.Context, summary models.SessionSummary) error {
	key, err := m.objects.SaveSummary(ctx, summary)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return m.store.SetSessionSummary(ctx, summary.SessionID, key)
}

// markStopped remembers a stopped session, forgetting the oldest once
// stoppedLimit is reached. Callers hold m.mu.
func (m *Manager) markStopped(id uuid.UUID) {
	if m.stopped[id] {
		return
	}
	m.stopped[id] = true
	m.stoppedOrder = append(m.stoppedOrder, id)
	for len(m.stoppedOrder) > m.stoppedLimit {
		oldest := m.stoppedOrder[0]
		m.stoppedOrder = m.stoppedOrder[1:]
		delete(m.stopped, oldest)
	}
}

// ProcessFrame feeds one frame of detections to the session's counter.
// Frames for sessions without a running counter start one, using the
// stored session settings or the defaults for unregistered ids. Frames for
// stopped sessions and frames not newer than the last processed
// one are dropped.
func (m *Manager) ProcessFrame(ctx context.Context, frame models.DetectionFrame) error {
	as, err := m.sessionFor(ctx, frame.SessionID)
	if err != nil {
		return err
	}
	if as == nil {
		slog.Debug("frame for stopped session dropped", "session_id", frame.SessionID, "frame", frame.FrameIndex)
		return nil
	}
	return m.process(ctx, as, frame)
}

func (m *Manager) process(ctx context.Context, as *activeSession, frame models.DetectionFrame) error {
	sid := frame.SessionID.String()

	as.mu.Lock()
	defer as.mu.Unlock()

	if as.closed {
		slog.Debug("frame for stopped session dropped", "session_id", sid, "frame", frame.FrameIndex)
		return nil
	}

	if last := as.counter.LastFrame(); frame.FrameIndex <= last {
		observability.FramesDropped.WithLabelValues(sid).Inc()
		slog.Warn("out of order frame dropped", "session_id", sid, "frame", frame.FrameIndex, "last_frame", last)
		return nil
	}

	boxes, dropped := frame.BBoxes()
	if dropped > 0 {
		slog.Warn("invalid boxes dropped", "session_id", sid, "frame", frame.FrameIndex, "dropped", dropped)
	}

	start := time.Now()
	res := as.counter.ProcessFrame(frame.FrameIndex, boxes)
	observability.FrameDuration.Observe(time.Since(start).Seconds())
	as.frames++

	observability.FramesProcessed.WithLabelValues(sid).Inc()
	observability.ActiveTracks.WithLabelValues(sid).Set(float64(res.Active))
	if len(res.Created) > 0 {
		observability.TracksCreated.WithLabelValues(sid).Add(float64(len(res.Created)))
	}
	if len(res.Expired) > 0 {
		observability.TracksExpired.WithLabelValues(sid).Add(float64(len(res.Expired)))
	}

	ts := frame.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}
	for _, ev := range res.Events {
		observability.Crossings.WithLabelValues(sid, string(ev.Kind)).Inc()
		slog.Info("crossing",
			"session_id", sid,
			"track_id", ev.TrackID,
			"kind", ev.Kind,
			"frame", ev.FrameIndex,
		)

		event := models.CrossingEvent{
			ID:         uuid.New(),
			SessionID:  frame.SessionID,
			TrackID:    ev.TrackID,
			Kind:       ev.Kind,
			FrameIndex: ev.FrameIndex,
			X:          ev.Centroid.X,
			Y:          ev.Centroid.Y,
			Timestamp:  ts,
		}
		if err := m.publisher.PublishCrossing(ctx, sid, event); err != nil {
			slog.Error("publish crossing", "error", err, "session_id", sid, "track_id", ev.TrackID)
		}
	}

	if len(res.Events) > 0 {
		if err := m.store.UpdateSessionCounts(ctx, frame.SessionID, res.Counts, as.frames); err != nil {
			slog.Error("update session counts", "error", err, "session_id", sid)
		}
	}

	if every := m.defaults.SnapshotInterval(); every > 0 && as.frames%int64(every) == 0 {
		snap := models.TrackSnapshot{
			SessionID: frame.SessionID,
			Timestamp: ts,
			Snapshot:  as.counter.Snapshot(),
		}
		if err := m.publisher.PublishSnapshot(sid, snap); err != nil {
			slog.Debug("publish snapshot", "error", err, "session_id", sid)
		}
	}

	return nil
}

// sessionFor returns the active session, starting it if it was never seen.
// Sessions registered in the store start with their stored settings.
// It returns nil for sessions that were explicitly stopped.
func (m *Manager) sessionFor(ctx context.Context, id uuid.UUID) (*activeSession, error) {
	m.mu.RLock()
	as, ok := m.sessions[id]
	stopped := m.stopped[id]
	m.mu.RUnlock()
	if ok {
		return as, nil
	}
	if stopped {
		return nil, nil
	}

	st, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load session %s: %w", id, err)
	}
	cmd := SessionCommand{Action: ActionStart, SessionID: id.String()}
	switch {
	case st == nil:
		slog.Info("frame for unregistered session, starting with defaults", "session_id", id)
	case st.Status == models.SessionStatusStopped:
		m.mu.Lock()
		m.markStopped(id)
		m.mu.Unlock()
		return nil, nil
	default:
		slog.Info("frame before start command, starting with stored settings", "session_id", id)
		cmd = CommandForSession(st)
	}

	err = m.startSession(ctx, id, cmd)
	if err != nil && !errors.Is(err, ErrSessionRunning) {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[id], nil
}

func (m *Manager) updateStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, errMsg string) {
	if err := m.store.UpdateSessionStatus(ctx, id, status, errMsg); err != nil {
		slog.Error("update session status", "session_id", id, "error", err)
	}
}

// Snapshot returns the live view of a session, if it is active here.
func (m *Manager) Snapshot(id uuid.UUID) (tracking.Snapshot, bool) {
	m.mu.RLock()
	as, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return tracking.Snapshot{}, false
	}
	as.mu.Lock()
	defer as.mu.Unlock()
	return as.counter.Snapshot(), true
}

// ActiveCount returns the number of running sessions.
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// StopAll stops every running session, writing their summaries.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.RUnlock()

	for _, id := range ids {
		if err := m.stopSession(ctx, id); err != nil {
			slog.Error("stop session", "session_id", id, "error", err)
		}
	}
}
