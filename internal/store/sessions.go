package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hackjutsu/mini-chatbot/internal/db"

	"github.com/google/uuid"
)

const sessionSelect = `
SELECT
  s.id,
  s.user_id,
  s.title,
  COALESCE(s.character_id, ''),
  s.created_at,
  s.updated_at,
  (SELECT COUNT(*) FROM messages m WHERE m.session_id = s.id)
FROM sessions s`

func (s Store) CreateSession(ctx context.Context, userID, title, characterID string) (Session, error) {
	finalTitle := strings.TrimSpace(title)
	if finalTitle == "" {
		finalTitle = db.DefaultSessionTitle
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, user_id, title, character_id)
VALUES (?, ?, ?, ?);
`, id, userID, finalTitle, nullable(characterID)); err != nil {
		return Session{}, fmt.Errorf("create session: %w", err)
	}
	return s.GetSessionOwnedBy(ctx, id, userID)
}

func (s Store) GetSessionOwnedBy(ctx context.Context, sessionID, userID string) (Session, error) {
	var out Session
	err := s.db.QueryRowContext(ctx, sessionSelect+` WHERE s.id = ? AND s.user_id = ?;`, sessionID, userID).Scan(
		&out.ID,
		&out.UserID,
		&out.Title,
		&out.CharacterID,
		&out.CreatedAt,
		&out.UpdatedAt,
		&out.MessageCount,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	if err != nil {
		return Session{}, fmt.Errorf("get session: %w", err)
	}
	return out, nil
}

func (s Store) ListSessionsForUser(ctx context.Context, userID string) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx, sessionSelect+` WHERE s.user_id = ? ORDER BY s.updated_at DESC, s.rowid DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]Session, 0, 16)
	for rows.Next() {
		var item Session
		if err := rows.Scan(
			&item.ID,
			&item.UserID,
			&item.Title,
			&item.CharacterID,
			&item.CreatedAt,
			&item.UpdatedAt,
			&item.MessageCount,
		); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// DeleteSession removes the session and, through the foreign key, its
// messages.
func (s Store) DeleteSession(ctx context.Context, sessionID, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?;`, sessionID, userID)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetSessionTitle stores title, falling back to the default placeholder
// when it is blank.
func (s Store) SetSessionTitle(ctx context.Context, sessionID, userID, title string) error {
	finalTitle := strings.TrimSpace(title)
	if finalTitle == "" {
		finalTitle = db.DefaultSessionTitle
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE sessions SET title = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ?;
`, finalTitle, sessionID, userID)
	if err != nil {
		return fmt.Errorf("set session title: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimDefaultTitle replaces the title only while it is still the default
// placeholder, so concurrent first messages cannot both retitle a session.
func (s Store) ClaimDefaultTitle(ctx context.Context, sessionID, userID, title string) (bool, error) {
	if strings.TrimSpace(title) == "" {
		return false, nil
	}
	result, err := s.db.ExecContext(ctx, `
UPDATE sessions SET title = ?, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND user_id = ? AND (title = ? OR title = '');
`, title, sessionID, userID, db.DefaultSessionTitle)
	if err != nil {
		return false, fmt.Errorf("claim session title: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s Store) CountMessages(ctx context.Context, sessionID string) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM messages WHERE session_id = ?;`, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count messages: %w", err)
	}
	return count, nil
}

func (s Store) CreateMessage(ctx context.Context, sessionID string, role Role, content string) (Message, error) {
	switch role {
	case RoleUser, RoleAssistant:
	default:
		return Message{}, fmt.Errorf("unsupported message role %q", role)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Message{}, fmt.Errorf("begin create message: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	out := Message{ID: uuid.NewString(), SessionID: sessionID, Role: role, Content: content}
	if err := tx.QueryRowContext(ctx, `
INSERT INTO messages (id, session_id, role, content)
VALUES (?, ?, ?, ?)
RETURNING created_at;
`, out.ID, sessionID, role, content).Scan(&out.CreatedAt); err != nil {
		return Message{}, fmt.Errorf("create message: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = CURRENT_TIMESTAMP WHERE id = ?;`, sessionID); err != nil {
		return Message{}, fmt.Errorf("touch session: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return Message{}, fmt.Errorf("commit create message: %w", err)
	}
	return out, nil
}

// ListMessages returns the transcript oldest first. rowid breaks ties
// between messages created within the same second.
func (s Store) ListMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, session_id, role, content, created_at
FROM messages
WHERE session_id = ?
ORDER BY created_at ASC, rowid ASC;
`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	out := make([]Message, 0, 16)
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
