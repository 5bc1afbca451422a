package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

const characterSelect = `
SELECT
  c.id,
  c.owner_user_id,
  u.username,
  c.name,
  c.prompt,
  COALESCE(c.avatar_url, ''),
  COALESCE(c.short_description, ''),
  c.status,
  c.version,
  COALESCE(c.last_published_at, ''),
  c.created_at,
  c.updated_at
FROM characters c
JOIN users u ON u.id = c.owner_user_id`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCharacter(row rowScanner, extra ...any) (Character, error) {
	var out Character
	dest := []any{
		&out.ID,
		&out.OwnerUserID,
		&out.OwnerUsername,
		&out.Name,
		&out.Prompt,
		&out.AvatarURL,
		&out.ShortDescription,
		&out.Status,
		&out.Version,
		&out.LastPublishedAt,
		&out.CreatedAt,
		&out.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return Character{}, err
	}
	return out, nil
}

func (s Store) CreateCharacter(ctx context.Context, ownerUserID string, input CharacterInput) (Character, error) {
	name := strings.TrimSpace(input.Name)
	prompt := strings.TrimSpace(input.Prompt)
	if name == "" || prompt == "" {
		return Character{}, errors.New("character name and prompt are required")
	}

	id := uuid.NewString()
	if _, err := s.db.ExecContext(ctx, `
INSERT INTO characters (id, owner_user_id, name, prompt, avatar_url, short_description)
VALUES (?, ?, ?, ?, ?, ?);
`, id, ownerUserID, name, prompt, nullable(input.AvatarURL), nullable(input.ShortDescription)); err != nil {
		return Character{}, fmt.Errorf("create character: %w", err)
	}
	return s.GetCharacterByID(ctx, id)
}

// GetCharacterByID is the cross-user read path; callers must apply the
// visibility rules themselves.
func (s Store) GetCharacterByID(ctx context.Context, characterID string) (Character, error) {
	out, err := scanCharacter(s.db.QueryRowContext(ctx, characterSelect+` WHERE c.id = ?;`, characterID))
	if errors.Is(err, sql.ErrNoRows) {
		return Character{}, ErrNotFound
	}
	if err != nil {
		return Character{}, fmt.Errorf("get character: %w", err)
	}
	return out, nil
}

func (s Store) GetCharacterOwnedBy(ctx context.Context, characterID, userID string) (Character, error) {
	out, err := scanCharacter(s.db.QueryRowContext(ctx, characterSelect+` WHERE c.id = ? AND c.owner_user_id = ?;`, characterID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return Character{}, ErrNotFound
	}
	if err != nil {
		return Character{}, fmt.Errorf("get owned character: %w", err)
	}
	return out, nil
}

func (s Store) ListCharactersOwnedBy(ctx context.Context, userID string) ([]Character, error) {
	return s.queryCharacters(ctx, characterSelect+` WHERE c.owner_user_id = ? ORDER BY c.updated_at DESC, c.rowid DESC;`, userID)
}

func (s Store) ListPublishedCharacters(ctx context.Context) ([]Character, error) {
	return s.queryCharacters(ctx, characterSelect+` WHERE c.status = ? ORDER BY c.updated_at DESC, c.rowid DESC;`, StatusPublished)
}

func (s Store) UpdateCharacter(ctx context.Context, characterID, userID string, input CharacterInput) (Character, error) {
	name := strings.TrimSpace(input.Name)
	prompt := strings.TrimSpace(input.Prompt)
	if name == "" || prompt == "" {
		return Character{}, errors.New("character name and prompt are required")
	}

	result, err := s.db.ExecContext(ctx, `
UPDATE characters
SET name = ?, prompt = ?, avatar_url = ?, short_description = ?, version = version + 1, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND owner_user_id = ?;
`, name, prompt, nullable(input.AvatarURL), nullable(input.ShortDescription), characterID, userID)
	if err != nil {
		return Character{}, fmt.Errorf("update character: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return Character{}, ErrNotFound
	}
	return s.GetCharacterOwnedBy(ctx, characterID, userID)
}

func (s Store) PublishCharacter(ctx context.Context, characterID, userID string) (Character, error) {
	return s.setCharacterStatus(ctx, characterID, userID, `
UPDATE characters
SET status = 'published', last_published_at = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND owner_user_id = ?;
`)
}

func (s Store) UnpublishCharacter(ctx context.Context, characterID, userID string) (Character, error) {
	return s.setCharacterStatus(ctx, characterID, userID, `
UPDATE characters
SET status = 'draft', updated_at = CURRENT_TIMESTAMP
WHERE id = ? AND owner_user_id = ?;
`)
}

func (s Store) setCharacterStatus(ctx context.Context, characterID, userID, query string) (Character, error) {
	result, err := s.db.ExecContext(ctx, query, characterID, userID)
	if err != nil {
		return Character{}, fmt.Errorf("set character status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return Character{}, ErrNotFound
	}
	return s.GetCharacterOwnedBy(ctx, characterID, userID)
}

func (s Store) DeleteCharacter(ctx context.Context, characterID, userID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM characters WHERE id = ? AND owner_user_id = ?;`, characterID, userID)
	if err != nil {
		return fmt.Errorf("delete character: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s Store) PinCharacter(ctx context.Context, userID, characterID string) error {
	if _, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO character_pins (user_id, character_id) VALUES (?, ?);`, userID, characterID); err != nil {
		return fmt.Errorf("pin character: %w", err)
	}
	return nil
}

func (s Store) UnpinCharacter(ctx context.Context, userID, characterID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM character_pins WHERE user_id = ? AND character_id = ?;`, userID, characterID)
	if err != nil {
		return false, fmt.Errorf("unpin character: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (s Store) IsCharacterPinned(ctx context.Context, userID, characterID string) (bool, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM character_pins WHERE user_id = ? AND character_id = ?;`, userID, characterID).Scan(&count); err != nil {
		return false, fmt.Errorf("check pin: %w", err)
	}
	return count > 0, nil
}

const pinnedCharacterSelect = `
SELECT
  c.id,
  c.owner_user_id,
  u.username,
  c.name,
  c.prompt,
  COALESCE(c.avatar_url, ''),
  COALESCE(c.short_description, ''),
  c.status,
  c.version,
  COALESCE(c.last_published_at, ''),
  c.created_at,
  c.updated_at,
  p.pinned_at
FROM character_pins p
JOIN characters c ON c.id = p.character_id
JOIN users u ON u.id = c.owner_user_id`

// Pins on another user's character stay hidden while it is a draft.
const pinnedVisible = ` AND (c.status = 'published' OR c.owner_user_id = p.user_id)`

func scanPinnedCharacter(row rowScanner) (Character, error) {
	var pinnedAt string
	character, err := scanCharacter(row, &pinnedAt)
	if err != nil {
		return Character{}, err
	}
	character.PinnedAt = pinnedAt
	return character, nil
}

func (s Store) GetPinnedCharacter(ctx context.Context, userID, characterID string) (Character, error) {
	out, err := scanPinnedCharacter(s.db.QueryRowContext(ctx, pinnedCharacterSelect+` WHERE p.user_id = ? AND p.character_id = ?`+pinnedVisible+`;`, userID, characterID))
	if errors.Is(err, sql.ErrNoRows) {
		return Character{}, ErrNotFound
	}
	if err != nil {
		return Character{}, fmt.Errorf("get pinned character: %w", err)
	}
	return out, nil
}

func (s Store) ListPinnedCharacters(ctx context.Context, userID string) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx, pinnedCharacterSelect+` WHERE p.user_id = ?`+pinnedVisible+` ORDER BY p.pinned_at DESC, p.rowid DESC;`, userID)
	if err != nil {
		return nil, fmt.Errorf("list pinned characters: %w", err)
	}
	defer rows.Close()

	out := make([]Character, 0, 8)
	for rows.Next() {
		character, err := scanPinnedCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pinned character: %w", err)
		}
		out = append(out, character)
	}
	return out, rows.Err()
}

func (s Store) queryCharacters(ctx context.Context, query string, args ...any) ([]Character, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list characters: %w", err)
	}
	defer rows.Close()

	out := make([]Character, 0, 8)
	for rows.Next() {
		character, err := scanCharacter(rows)
		if err != nil {
			return nil, fmt.Errorf("scan character: %w", err)
		}
		out = append(out, character)
	}
	return out, rows.Err()
}
