package character

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/hackjutsu/mini-chatbot/internal/cache"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"go.uber.org/zap"
)

type Store interface {
	CreateCharacter(ctx context.Context, ownerUserID string, input store.CharacterInput) (store.Character, error)
	GetCharacterByID(ctx context.Context, characterID string) (store.Character, error)
	GetCharacterOwnedBy(ctx context.Context, characterID, userID string) (store.Character, error)
	ListCharactersOwnedBy(ctx context.Context, userID string) ([]store.Character, error)
	ListPublishedCharacters(ctx context.Context) ([]store.Character, error)
	ListPinnedCharacters(ctx context.Context, userID string) ([]store.Character, error)
	GetPinnedCharacter(ctx context.Context, userID, characterID string) (store.Character, error)
	UpdateCharacter(ctx context.Context, characterID, userID string, input store.CharacterInput) (store.Character, error)
	PublishCharacter(ctx context.Context, characterID, userID string) (store.Character, error)
	UnpublishCharacter(ctx context.Context, characterID, userID string) (store.Character, error)
	DeleteCharacter(ctx context.Context, characterID, userID string) error
	PinCharacter(ctx context.Context, userID, characterID string) error
	UnpinCharacter(ctx context.Context, userID, characterID string) (bool, error)
}

type Service struct {
	store  Store
	cache  cache.Cache[store.Character]
	ttl    time.Duration
	logger *zap.Logger
}

func NewService(s Store, c cache.Cache[store.Character], ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: s, cache: c, ttl: ttl, logger: logger}
}

func publishedKey(characterID string) string {
	return "character:published:" + characterID
}

// GetForUser returns the character the user may chat with, or nil when it
// does not exist or is not visible. Owners always see the live row; anyone
// else sees the cached published view.
func (s *Service) GetForUser(ctx context.Context, characterID, userID string) (*store.Character, error) {
	characterID = strings.TrimSpace(characterID)
	if characterID == "" {
		return nil, nil
	}

	owned, err := s.store.GetCharacterOwnedBy(ctx, characterID, userID)
	if err == nil {
		return &owned, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	view, ok, err := cache.Wrap(ctx, s.cache, publishedKey(characterID), s.ttl, func(ctx context.Context) (store.Character, bool, error) {
		character, err := s.store.GetCharacterByID(ctx, characterID)
		if errors.Is(err, store.ErrNotFound) {
			return store.Character{}, false, nil
		}
		if err != nil {
			return store.Character{}, false, err
		}
		return character, character.Published(), nil
	})
	if err != nil || !ok {
		return nil, err
	}
	return &view, nil
}

func (s *Service) ListOwned(ctx context.Context, userID string) ([]store.Character, error) {
	return s.store.ListCharactersOwnedBy(ctx, userID)
}

func (s *Service) ListPublished(ctx context.Context) ([]store.Character, error) {
	return s.store.ListPublishedCharacters(ctx)
}

func (s *Service) ListPinned(ctx context.Context, userID string) ([]store.Character, error) {
	return s.store.ListPinnedCharacters(ctx, userID)
}

func (s *Service) Create(ctx context.Context, userID string, input store.CharacterInput) (store.Character, error) {
	if !validInput(input) {
		return store.Character{}, ErrInvalid
	}
	return s.store.CreateCharacter(ctx, userID, input)
}

func (s *Service) Update(ctx context.Context, characterID, userID string, input store.CharacterInput) (store.Character, error) {
	if !validInput(input) {
		return store.Character{}, ErrInvalid
	}
	updated, err := s.store.UpdateCharacter(ctx, characterID, userID, input)
	if err != nil {
		return store.Character{}, mapNotFound(err)
	}
	if updated.Published() {
		s.cache.Set(ctx, publishedKey(characterID), updated, s.ttl)
	} else {
		s.cache.Delete(ctx, publishedKey(characterID))
	}
	return updated, nil
}

func (s *Service) Publish(ctx context.Context, characterID, userID string) (store.Character, error) {
	published, err := s.store.PublishCharacter(ctx, characterID, userID)
	if err != nil {
		return store.Character{}, mapNotFound(err)
	}
	s.cache.Set(ctx, publishedKey(characterID), published, s.ttl)
	s.logger.Info("character published", zap.String("characterId", characterID), zap.Int("version", published.Version))
	return published, nil
}

func (s *Service) Unpublish(ctx context.Context, characterID, userID string) (store.Character, error) {
	draft, err := s.store.UnpublishCharacter(ctx, characterID, userID)
	if err != nil {
		return store.Character{}, mapNotFound(err)
	}
	s.cache.Delete(ctx, publishedKey(characterID))
	return draft, nil
}

func (s *Service) Delete(ctx context.Context, characterID, userID string) error {
	if err := s.store.DeleteCharacter(ctx, characterID, userID); err != nil {
		return mapNotFound(err)
	}
	s.cache.Delete(ctx, publishedKey(characterID))
	return nil
}

// Pin lets a user pin their own characters or anyone's published ones.
func (s *Service) Pin(ctx context.Context, characterID, userID string) (store.Character, error) {
	character, err := s.store.GetCharacterByID(ctx, characterID)
	if err != nil {
		return store.Character{}, mapNotFound(err)
	}
	if character.OwnerUserID != userID && !character.Published() {
		return store.Character{}, ErrNotPublished
	}
	if err := s.store.PinCharacter(ctx, userID, characterID); err != nil {
		return store.Character{}, err
	}
	pinned, err := s.store.GetPinnedCharacter(ctx, userID, characterID)
	if err != nil {
		return character, nil
	}
	return pinned, nil
}

func (s *Service) Unpin(ctx context.Context, characterID, userID string) error {
	removed, err := s.store.UnpinCharacter(ctx, userID, characterID)
	if err != nil {
		return err
	}
	if !removed {
		return ErrNotPinned
	}
	return nil
}

func validInput(input store.CharacterInput) bool {
	return strings.TrimSpace(input.Name) != "" && strings.TrimSpace(input.Prompt) != ""
}

func mapNotFound(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}
