package assistant

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ayushcare/portal/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func conn(ctx context.Context, pool *pgxpool.Pool) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return pool
}

type sessionRepoPG struct{ pool *pgxpool.Pool }

func NewSessionRepoPG(pool *pgxpool.Pool) SessionRepository {
	return &sessionRepoPG{pool: pool}
}

const sessionCols = `id, patient_id, title, started_at`

func scanSession(row pgx.Row) (*ChatSession, error) {
	var s ChatSession
	err := row.Scan(&s.ID, &s.PatientID, &s.Title, &s.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &s, err
}

func (r *sessionRepoPG) Create(ctx context.Context, s *ChatSession) error {
	s.ID = uuid.New()
	if s.Title == "" {
		s.Title = DefaultTitle
	}
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO chat_session (id, patient_id, title)
		VALUES ($1,$2,$3)
		RETURNING started_at`,
		s.ID, s.PatientID, s.Title).Scan(&s.StartedAt)
}

func (r *sessionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ChatSession, error) {
	return scanSession(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM chat_session WHERE id = $1`, id))
}

func (r *sessionRepoPG) Update(ctx context.Context, s *ChatSession) error {
	_, err := conn(ctx, r.pool).Exec(ctx,
		`UPDATE chat_session SET title = $2 WHERE id = $1`, s.ID, s.Title)
	return err
}

func (r *sessionRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ChatSession, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+sessionCols+` FROM chat_session WHERE patient_id = $1 ORDER BY started_at DESC`,
		patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChatSession
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, nil
}

func (r *sessionRepoPG) GetLatestByPatient(ctx context.Context, patientID uuid.UUID) (*ChatSession, error) {
	return scanSession(conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+sessionCols+` FROM chat_session WHERE patient_id = $1 ORDER BY started_at DESC LIMIT 1`,
		patientID))
}

type messageRepoPG struct{ pool *pgxpool.Pool }

func NewMessageRepoPG(pool *pgxpool.Pool) MessageRepository {
	return &messageRepoPG{pool: pool}
}

const messageCols = `id, session_id, patient_id, sender, message, created_at`

func scanMessage(row pgx.Row) (*ChatMessage, error) {
	var m ChatMessage
	err := row.Scan(&m.ID, &m.SessionID, &m.PatientID, &m.Sender, &m.Message, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &m, err
}

func (r *messageRepoPG) Create(ctx context.Context, m *ChatMessage) error {
	m.ID = uuid.New()
	return conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO chat_message (id, session_id, patient_id, sender, message)
		VALUES ($1,$2,$3,$4,$5)
		RETURNING created_at`,
		m.ID, m.SessionID, m.PatientID, m.Sender, m.Message).Scan(&m.CreatedAt)
}

func (r *messageRepoPG) ListRecentBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]*ChatMessage, error) {
	// The inner query picks the newest rows, the outer one restores
	// chronological order.
	rows, err := conn(ctx, r.pool).Query(ctx, `
		SELECT `+messageCols+` FROM (
			SELECT `+messageCols+` FROM chat_message
			WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *messageRepoPG) ListBySession(ctx context.Context, sessionID uuid.UUID) ([]*ChatMessage, error) {
	rows, err := conn(ctx, r.pool).Query(ctx,
		`SELECT `+messageCols+` FROM chat_message WHERE session_id = $1 ORDER BY created_at ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*ChatMessage
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *messageRepoPG) CountBySession(ctx context.Context, sessionID uuid.UUID) (int, error) {
	var n int
	err := conn(ctx, r.pool).QueryRow(ctx,
		`SELECT COUNT(*) FROM chat_message WHERE session_id = $1`, sessionID).Scan(&n)
	return n, err
}
