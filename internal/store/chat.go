package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docvault/backend/internal/apperr"
	"github.com/docvault/backend/internal/models"
)

type PgChatStore struct {
	db *pgxpool.Pool
}

func NewChatStore(db *pgxpool.Pool) *PgChatStore {
	return &PgChatStore{db: db}
}

func (s *PgChatStore) CreateSession(ctx context.Context, sess *models.ChatSession) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO chat_sessions (id, workspace_id, user_id, title)
		 VALUES ($1, $2, $3, $4)
		 RETURNING created_at, updated_at`,
		sess.ID, sess.WorkspaceID, sess.UserID, sess.Title,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *PgChatStore) GetSession(ctx context.Context, id uuid.UUID) (*models.ChatSession, error) {
	var sess models.ChatSession
	err := s.db.QueryRow(ctx,
		`SELECT id, workspace_id, user_id, title, created_at, updated_at
		 FROM chat_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.WorkspaceID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &sess, nil
}

func (s *PgChatStore) ListSessions(ctx context.Context, workspaceID, userID uuid.UUID) ([]models.ChatSession, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, workspace_id, user_id, title, created_at, updated_at
		 FROM chat_sessions WHERE workspace_id = $1 AND user_id = $2
		 ORDER BY updated_at DESC`,
		workspaceID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.ChatSession
	for rows.Next() {
		var sess models.ChatSession
		if err := rows.Scan(&sess.ID, &sess.WorkspaceID, &sess.UserID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (s *PgChatStore) TouchSession(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, "UPDATE chat_sessions SET updated_at = now() WHERE id = $1", id)
	return err
}

func (s *PgChatStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Exec(ctx, "DELETE FROM chat_sessions WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("session %s: %w", id, apperr.ErrNotFound)
	}
	return nil
}

func (s *PgChatStore) InsertMessage(ctx context.Context, m *models.ChatMessage) error {
	sources, err := json.Marshal(m.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}

	err = s.db.QueryRow(ctx,
		`INSERT INTO chat_messages (id, session_id, role, content, sources)
		 VALUES ($1, $2, $3, $4, $5)
		 RETURNING created_at`,
		m.ID, m.SessionID, m.Role, m.Content, sources,
	).Scan(&m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (s *PgChatStore) ListMessages(ctx context.Context, sessionID uuid.UUID) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, role, content, sources, feedback, created_at
		 FROM chat_messages WHERE session_id = $1 ORDER BY created_at`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *PgChatStore) RecentMessages(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.ChatMessage, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, session_id, role, content, sources, feedback, created_at FROM (
			SELECT id, session_id, role, content, sources, feedback, created_at
			FROM chat_messages WHERE session_id = $1
			ORDER BY created_at DESC LIMIT $2
		 ) recent ORDER BY created_at`,
		sessionID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent messages: %w", err)
	}
	defer rows.Close()
	return scanMessages(rows)
}

func (s *PgChatStore) SetFeedback(ctx context.Context, messageID uuid.UUID, feedback string) error {
	res, err := s.db.Exec(ctx,
		"UPDATE chat_messages SET feedback = $1 WHERE id = $2", feedback, messageID)
	if err != nil {
		return fmt.Errorf("set feedback: %w", err)
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("message %s: %w", messageID, apperr.ErrNotFound)
	}
	return nil
}

func scanMessages(rows pgx.Rows) ([]models.ChatMessage, error) {
	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var sources []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &sources, &m.Feedback, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
