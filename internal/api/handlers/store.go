package handlers

import (
	"context"

	"github.com/google/uuid"

	"github.com/your-org/footfall/internal/models"
	"github.com/your-org/footfall/internal/storage"
	"github.com/your-org/footfall/internal/tracking"
)

// SessionStore is the session half of storage.PostgresStore.
type SessionStore interface {
	CreateSession(ctx context.Context, st *models.Session) error
	GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error)
	ListSessions(ctx context.Context) ([]models.Session, error)
	UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, errMsg string) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

// EventStore is the crossing-event half of storage.PostgresStore.
type EventStore interface {
	QueryCrossingEvents(ctx context.Context, sessionID uuid.UUID, f storage.EventFilter) ([]models.CrossingEvent, int, error)
	CountCrossings(ctx context.Context, sessionID uuid.UUID) (tracking.Counts, error)
}

type ObjectStore interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
	DeleteObject(ctx context.Context, key string) error
}

// Publisher sends commands and detections to the counting workers.
type Publisher interface {
	PublishControl(data []byte) error
	PublishDetections(ctx context.Context, sessionID string, frameIndex int64, data interface{}) error
}
