package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/footfall/internal/config"
	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/tracking"
)

// ErrNotFound is returned by mutations that matched no row and by reads of
// missing objects.
var ErrNotFound = errors.New("not found")

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// EnsureSchema creates the tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		status TEXT NOT NULL,
		max_distance DOUBLE PRECISION,
		max_age INTEGER,
		entry_line_y INTEGER,
		exit_line_y INTEGER,
		frame_height INTEGER,
		entry_count INTEGER NOT NULL DEFAULT 0,
		exit_count INTEGER NOT NULL DEFAULT 0,
		frames BIGINT NOT NULL DEFAULT 0,
		summary_key TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS crossing_events (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
		track_id INTEGER NOT NULL,
		kind TEXT NOT NULL CHECK (kind IN ('entry', 'exit')),
		frame_index BIGINT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		timestamp TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS crossing_events_session_ts ON crossing_events (session_id, timestamp DESC)`,
}

// --- Sessions ---

const sessionColumns = `id, name, status, max_distance, max_age, entry_line_y, exit_line_y, frame_height,
	entry_count, exit_count, frames, summary_key, error_message, created_at, updated_at`

func scanSession(row pgx.Row, st *models.Session) error {
	return row.Scan(&st.ID, &st.Name, &st.Status, &st.MaxDistance, &st.MaxAge,
		&st.EntryLineY, &st.ExitLineY, &st.FrameHeight,
		&st.EntryCount, &st.ExitCount, &st.Frames, &st.SummaryKey, &st.ErrorMessage,
		&st.CreatedAt, &st.UpdatedAt)
}

func (s *PostgresStore) CreateSession(ctx context.Context, st *models.Session) error {
	st.ID = uuid.New()
	st.Status = models.SessionStatusCreated
	return s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, name, status, max_distance, max_age, entry_line_y, exit_line_y, frame_height)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		st.ID, st.Name, st.Status, st.MaxDistance, st.MaxAge, st.EntryLineY, st.ExitLineY, st.FrameHeight,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	st := &models.Session{}
	err := scanSession(s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE id = $1`, id), st)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var st models.Session
		if err := scanSession(rows, &st); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, st)
	}
	return sessions, rows.Err()
}

func (s *PostgresStore) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, error_message = $2, updated_at = now() WHERE id = $3`,
		status, errMsg, id)
	if err != nil {
		return fmt.Errorf("update session status: %w", err)
	}
	return nil
}

// UpdateSessionCounts stores the running totals reported by a counter.
func (s *PostgresStore) UpdateSessionCounts(ctx context.Context, id uuid.UUID, counts tracking.Counts, frames int64) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET entry_count = $1, exit_count = $2, frames = $3, updated_at = now() WHERE id = $4`,
		counts.Entries, counts.Exits, frames, id)
	if err != nil {
		return fmt.Errorf("update session counts: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetSessionSummary(ctx context.Context, id uuid.UUID, key string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET summary_key = $1, updated_at = now() WHERE id = $2`, key, id)
	if err != nil {
		return fmt.Errorf("set session summary: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete session %s: %w", id, ErrNotFound)
	}
	return nil
}

// --- Crossing events ---

// CreateCrossingEvent inserts an event. Redelivered events with a known id
// are ignored; events of an unregistered session return ErrNotFound.
func (s *PostgresStore) CreateCrossingEvent(ctx context.Context, ev *models.CrossingEvent) error {
	if ev.ID == uuid.Nil {
		ev.ID = uuid.New()
	}
	ev.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO crossing_events (id, session_id, track_id, kind, frame_index, x, y, timestamp, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		ev.ID, ev.SessionID, ev.TrackID, string(ev.Kind), ev.FrameIndex, ev.X, ev.Y, ev.Timestamp, ev.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("create crossing event: session %s: %w", ev.SessionID, ErrNotFound)
		}
		return fmt.Errorf("create crossing event: %w", err)
	}
	return nil
}

// EventFilter narrows QueryCrossingEvents. Zero values mean no filter.
type EventFilter struct {
	Kind   tracking.CrossingKind
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

func (s *PostgresStore) QueryCrossingEvents(ctx context.Context, sessionID uuid.UUID, f EventFilter) ([]models.CrossingEvent, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE session_id = $1"
	args := []interface{}{sessionID}
	argIdx := 2

	if f.Kind != "" {
		baseWhere += fmt.Sprintf(" AND kind = $%d", argIdx)
		args = append(args, string(f.Kind))
		argIdx++
	}
	if f.From != nil {
		baseWhere += fmt.Sprintf(" AND timestamp >= $%d", argIdx)
		args = append(args, *f.From)
		argIdx++
	}
	if f.To != nil {
		baseWhere += fmt.Sprintf(" AND timestamp <= $%d", argIdx)
		args = append(args, *f.To)
		argIdx++
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM crossing_events "+baseWhere, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count crossing events: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, session_id, track_id, kind, frame_index, x, y, timestamp, created_at
		 FROM crossing_events %s ORDER BY frame_index DESC, timestamp DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, limit, f.Offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query crossing events: %w", err)
	}
	defer rows.Close()

	var events []models.CrossingEvent
	for rows.Next() {
		var ev models.CrossingEvent
		var kind string
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.TrackID, &kind, &ev.FrameIndex,
			&ev.X, &ev.Y, &ev.Timestamp, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan crossing event: %w", err)
		}
		ev.Kind = tracking.CrossingKind(kind)
		events = append(events, ev)
	}
	return events, total, rows.Err()
}

// CountCrossings totals stored events of a session by kind.
func (s *PostgresStore) CountCrossings(ctx context.Context, sessionID uuid.UUID) (tracking.Counts, error) {
	var c tracking.Counts
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FILTER (WHERE kind = 'entry'), COUNT(*) FILTER (WHERE kind = 'exit')
		 FROM crossing_events WHERE session_id = $1`, sessionID,
	).Scan(&c.Entries, &c.Exits)
	if err != nil {
		return c, fmt.Errorf("count crossings: %w", err)
	}
	return c, nil
}
