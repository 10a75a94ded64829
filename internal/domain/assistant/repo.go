package assistant

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository persists chat sessions.
type SessionRepository interface {
	Create(ctx context.Context, s *ChatSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*ChatSession, error)
	Update(ctx context.Context, s *ChatSession) error
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ChatSession, error)
	GetLatestByPatient(ctx context.Context, patientID uuid.UUID) (*ChatSession, error)
}

// MessageRepository persists chat messages.
type MessageRepository interface {
	Create(ctx context.Context, m *ChatMessage) error
	// ListRecentBySession returns up to limit most recent messages of the
	// session, oldest first.
	ListRecentBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ChatMessage, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*ChatMessage, error)
	CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error)
}
