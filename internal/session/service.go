package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hackjutsu/mini-chatbot/internal/store"
)

var (
	ErrNotFound          = errors.New("session not found")
	ErrCharacterNotFound = errors.New("character not found for user")
)

type Store interface {
	CreateSession(ctx context.Context, userID, title, characterID string) (store.Session, error)
	GetSessionOwnedBy(ctx context.Context, sessionID, userID string) (store.Session, error)
	ListSessionsForUser(ctx context.Context, userID string) ([]store.Session, error)
	SetSessionTitle(ctx context.Context, sessionID, userID, title string) error
	DeleteSession(ctx context.Context, sessionID, userID string) error
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
}

type CharacterLookup interface {
	GetForUser(ctx context.Context, characterID, userID string) (*store.Character, error)
}

// View is a session as returned to clients, with its bound character when
// the user can still see it.
type View struct {
	store.Session
	Character *store.Character `json:"character"`
}

type Transcript struct {
	Session  View            `json:"session"`
	Messages []store.Message `json:"messages"`
}

type Service struct {
	store      Store
	characters CharacterLookup
}

func NewService(s Store, characters CharacterLookup) *Service {
	return &Service{store: s, characters: characters}
}

// Create starts a session. A characterId must resolve for the user at
// creation time.
func (s *Service) Create(ctx context.Context, userID, title, characterID string) (View, error) {
	characterID = strings.TrimSpace(characterID)
	var character *store.Character
	if characterID != "" {
		found, err := s.characters.GetForUser(ctx, characterID, userID)
		if err != nil {
			return View{}, fmt.Errorf("resolve session character: %w", err)
		}
		if found == nil {
			return View{}, ErrCharacterNotFound
		}
		character = found
	}

	created, err := s.store.CreateSession(ctx, userID, title, characterID)
	if err != nil {
		return View{}, err
	}
	return View{Session: created, Character: character}, nil
}

func (s *Service) FindOwned(ctx context.Context, sessionID, userID string) (store.Session, error) {
	found, err := s.store.GetSessionOwnedBy(ctx, strings.TrimSpace(sessionID), userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.Session{}, ErrNotFound
	}
	return found, err
}

func (s *Service) List(ctx context.Context, userID string) ([]View, error) {
	sessions, err := s.store.ListSessionsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resolved := make(map[string]*store.Character)
	out := make([]View, 0, len(sessions))
	for _, item := range sessions {
		view := View{Session: item}
		if item.CharacterID != "" {
			character, seen := resolved[item.CharacterID]
			if !seen {
				character, err = s.characters.GetForUser(ctx, item.CharacterID, userID)
				if err != nil {
					return nil, fmt.Errorf("resolve session character: %w", err)
				}
				resolved[item.CharacterID] = character
			}
			view.Character = character
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Service) Transcript(ctx context.Context, session store.Session, userID string) (Transcript, error) {
	view, err := s.view(ctx, session, userID)
	if err != nil {
		return Transcript{}, err
	}
	messages, err := s.store.ListMessages(ctx, session.ID)
	if err != nil {
		return Transcript{}, err
	}
	view.MessageCount = len(messages)
	return Transcript{Session: view, Messages: messages}, nil
}

func (s *Service) Rename(ctx context.Context, sessionID, userID, title string) (View, error) {
	if err := s.store.SetSessionTitle(ctx, sessionID, userID, title); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return View{}, ErrNotFound
		}
		return View{}, err
	}
	updated, err := s.FindOwned(ctx, sessionID, userID)
	if err != nil {
		return View{}, err
	}
	return s.view(ctx, updated, userID)
}

func (s *Service) Delete(ctx context.Context, sessionID, userID string) error {
	if err := s.store.DeleteSession(ctx, sessionID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

func (s *Service) view(ctx context.Context, session store.Session, userID string) (View, error) {
	view := View{Session: session}
	if session.CharacterID == "" {
		return view, nil
	}
	character, err := s.characters.GetForUser(ctx, session.CharacterID, userID)
	if err != nil {
		return View{}, fmt.Errorf("resolve session character: %w", err)
	}
	view.Character = character
	return view, nil
}
