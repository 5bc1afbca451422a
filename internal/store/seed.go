package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

const LibraryUserID = "__system_character_owner__"

const libraryUsername = "Mini Character Library"

var libraryCharacters = []CharacterInput{
	{
		Name:             "Nova the Explorer",
		ShortDescription: "Cosmic mapmaker who replies with vivid optimism.",
		Prompt:           "You are Nova, an upbeat astro-cartographer who speaks in vivid imagery about discoveries. Offer practical optimism and sprinkle in cosmic metaphors.",
		AvatarURL:        "/avatars/nova.svg",
	},
	{
		Name:             "Chef Lumi",
		ShortDescription: "Tactile culinary mentor with actionable steps.",
		Prompt:           "You are Chef Lumi, a warm culinary mentor who explains ideas through kitchen analogies. Answer with tactile descriptions and actionable steps.",
		AvatarURL:        "/avatars/lumi.svg",
	},
	{
		Name:             "Professor Willow",
		ShortDescription: "Thoughtful guide who balances curiosity with rigor.",
		Prompt:           "You are Professor Willow, a thoughtful mentor who balances curiosity with rigor. Guide the user with probing questions and concise wisdom.",
		AvatarURL:        "/avatars/willow.svg",
	},
}

// SeedLibrary ensures the library owner and its published characters exist.
// Characters are matched by name so reruns never duplicate them.
func (s Store) SeedLibrary(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO users (id, username, username_normalized)
VALUES (?, ?, ?);
`, LibraryUserID, libraryUsername, LibraryUserID); err != nil {
		return fmt.Errorf("seed library user: %w", err)
	}

	for _, character := range libraryCharacters {
		var count int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM characters WHERE owner_user_id = ? AND name = ?;`, LibraryUserID, character.Name).Scan(&count); err != nil {
			return fmt.Errorf("check library character: %w", err)
		}
		if count > 0 {
			continue
		}
		if _, err := s.db.ExecContext(ctx, `
INSERT INTO characters (id, owner_user_id, name, prompt, avatar_url, short_description, status, last_published_at)
VALUES (?, ?, ?, ?, ?, ?, 'published', CURRENT_TIMESTAMP);
`, uuid.NewString(), LibraryUserID, character.Name, character.Prompt, nullable(character.AvatarURL), nullable(character.ShortDescription)); err != nil {
			return fmt.Errorf("seed library character %q: %w", character.Name, err)
		}
	}
	return nil
}
