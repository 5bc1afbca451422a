package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const userColumns = `id, username, COALESCE(preferred_model, ''), created_at`

// CreateUser inserts a user and pins the published library characters for
// them so a fresh picker is never empty.
func (s Store) CreateUser(ctx context.Context, username, preferredModel string) (User, error) {
	normalized := normalizeUsername(username)
	if normalized == "" {
		return User{}, errors.New("username is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return User{}, fmt.Errorf("begin create user: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE username_normalized = ?;`, normalized).Scan(&exists); err != nil {
		return User{}, fmt.Errorf("check username: %w", err)
	}
	if exists > 0 {
		return User{}, ErrUsernameTaken
	}

	id := uuid.NewString()
	if _, err := tx.ExecContext(ctx, `
INSERT INTO users (id, username, username_normalized, preferred_model)
VALUES (?, ?, ?, ?);
`, id, strings.TrimSpace(username), normalized, nullable(preferredModel)); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
INSERT OR IGNORE INTO character_pins (user_id, character_id)
SELECT ?, id FROM characters WHERE owner_user_id = ? AND status = ?;
`, id, LibraryUserID, StatusPublished); err != nil {
		return User{}, fmt.Errorf("pin library characters: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return User{}, fmt.Errorf("commit create user: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

func (s Store) GetUserByID(ctx context.Context, userID string) (User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?;`, userID))
}

func (s Store) GetUserByUsername(ctx context.Context, username string) (User, error) {
	normalized := normalizeUsername(username)
	if normalized == "" {
		return User{}, ErrNotFound
	}
	return s.scanUser(s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username_normalized = ?;`, normalized))
}

func (s Store) SetUserPreferredModel(ctx context.Context, userID, model string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET preferred_model = ? WHERE id = ?;`, nullable(model), userID)
	if err != nil {
		return fmt.Errorf("set preferred model: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) scanUser(row *sql.Row) (User, error) {
	var out User
	err := row.Scan(&out.ID, &out.Username, &out.PreferredModel, &out.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("read user: %w", err)
	}
	return out, nil
}
