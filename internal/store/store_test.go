package store

import (
	"context"
	"testing"

	"github.com/hackjutsu/mini-chatbot/internal/db"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	database, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s := New(database)
	require.NoError(t, s.SeedLibrary(context.Background()))
	return s
}

func TestCreateUserNormalizesAndPinsLibrary(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "  Alice ", "qwen2.5:7b")
	require.NoError(t, err)
	require.Equal(t, "Alice", user.Username)
	require.Equal(t, "qwen2.5:7b", user.PreferredModel)

	_, err = s.CreateUser(ctx, "ALICE", "")
	require.ErrorIs(t, err, ErrUsernameTaken)

	found, err := s.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.Equal(t, user.ID, found.ID)

	pinned, err := s.ListPinnedCharacters(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, pinned, len(libraryCharacters))
	for _, character := range pinned {
		require.Equal(t, LibraryUserID, character.OwnerUserID)
		require.True(t, character.Published())
		require.NotEmpty(t, character.PinnedAt)
	}
}

func TestSeedLibraryIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.SeedLibrary(ctx))

	published, err := s.ListPublishedCharacters(ctx)
	require.NoError(t, err)
	require.Len(t, published, len(libraryCharacters))
}

func TestSetUserPreferredModel(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "bob", "")
	require.NoError(t, err)
	require.Empty(t, user.PreferredModel)

	require.NoError(t, s.SetUserPreferredModel(ctx, user.ID, "llama3"))
	reloaded, err := s.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, "llama3", reloaded.PreferredModel)

	require.ErrorIs(t, s.SetUserPreferredModel(ctx, "missing", "llama3"), ErrNotFound)
}

func TestCharacterVersioningAndStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	owner, err := s.CreateUser(ctx, "owner", "")
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, "other", "")
	require.NoError(t, err)

	created, err := s.CreateCharacter(ctx, owner.ID, CharacterInput{Name: " Sage ", Prompt: " Be wise "})
	require.NoError(t, err)
	require.Equal(t, "Sage", created.Name)
	require.Equal(t, StatusDraft, created.Status)
	require.Equal(t, 1, created.Version)
	require.Equal(t, "owner", created.OwnerUsername)

	updated, err := s.UpdateCharacter(ctx, created.ID, owner.ID, CharacterInput{Name: "Sage", Prompt: "Be wiser"})
	require.NoError(t, err)
	require.Equal(t, 2, updated.Version)

	_, err = s.UpdateCharacter(ctx, created.ID, other.ID, CharacterInput{Name: "Hijack", Prompt: "x"})
	require.ErrorIs(t, err, ErrNotFound)

	published, err := s.PublishCharacter(ctx, created.ID, owner.ID)
	require.NoError(t, err)
	require.True(t, published.Published())
	require.Equal(t, 2, published.Version)
	require.NotEmpty(t, published.LastPublishedAt)

	unpublished, err := s.UnpublishCharacter(ctx, created.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, unpublished.Status)
	require.Equal(t, 2, unpublished.Version)

	_, err = s.GetCharacterOwnedBy(ctx, created.ID, other.ID)
	require.ErrorIs(t, err, ErrNotFound)
	byID, err := s.GetCharacterByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, owner.ID, byID.OwnerUserID)

	require.ErrorIs(t, s.DeleteCharacter(ctx, created.ID, other.ID), ErrNotFound)
	require.NoError(t, s.DeleteCharacter(ctx, created.ID, owner.ID))
	_, err = s.GetCharacterByID(ctx, created.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPinAndUnpin(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	owner, err := s.CreateUser(ctx, "owner", "")
	require.NoError(t, err)
	fan, err := s.CreateUser(ctx, "fan", "")
	require.NoError(t, err)

	character, err := s.CreateCharacter(ctx, owner.ID, CharacterInput{Name: "Muse", Prompt: "Inspire"})
	require.NoError(t, err)
	_, err = s.PublishCharacter(ctx, character.ID, owner.ID)
	require.NoError(t, err)

	require.NoError(t, s.PinCharacter(ctx, fan.ID, character.ID))
	require.NoError(t, s.PinCharacter(ctx, fan.ID, character.ID))

	pinned, err := s.IsCharacterPinned(ctx, fan.ID, character.ID)
	require.NoError(t, err)
	require.True(t, pinned)

	view, err := s.GetPinnedCharacter(ctx, fan.ID, character.ID)
	require.NoError(t, err)
	require.Equal(t, "Muse", view.Name)
	require.NotEmpty(t, view.PinnedAt)

	_, err = s.UnpublishCharacter(ctx, character.ID, owner.ID)
	require.NoError(t, err)
	_, err = s.GetPinnedCharacter(ctx, fan.ID, character.ID)
	require.ErrorIs(t, err, ErrNotFound)
	listed, err := s.ListPinnedCharacters(ctx, fan.ID)
	require.NoError(t, err)
	for _, item := range listed {
		require.NotEqual(t, character.ID, item.ID)
	}

	require.NoError(t, s.PinCharacter(ctx, owner.ID, character.ID))
	ownView, err := s.GetPinnedCharacter(ctx, owner.ID, character.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, ownView.Status)

	removed, err := s.UnpinCharacter(ctx, fan.ID, character.ID)
	require.NoError(t, err)
	require.True(t, removed)

	removed, err = s.UnpinCharacter(ctx, fan.ID, character.ID)
	require.NoError(t, err)
	require.False(t, removed)

	_, err = s.GetPinnedCharacter(ctx, fan.ID, character.ID)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSessionTitlesAndMessages(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "carol", "")
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, "dave", "")
	require.NoError(t, err)

	session, err := s.CreateSession(ctx, user.ID, "   ", "")
	require.NoError(t, err)
	require.Equal(t, db.DefaultSessionTitle, session.Title)
	require.Empty(t, session.CharacterID)
	require.Zero(t, session.MessageCount)

	_, err = s.GetSessionOwnedBy(ctx, session.ID, other.ID)
	require.ErrorIs(t, err, ErrNotFound)

	claimed, err := s.ClaimDefaultTitle(ctx, session.ID, user.ID, "First question")
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = s.ClaimDefaultTitle(ctx, session.ID, user.ID, "Second question")
	require.NoError(t, err)
	require.False(t, claimed)

	for i, content := range []string{"one", "two", "three"} {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		_, err := s.CreateMessage(ctx, session.ID, role, content)
		require.NoError(t, err)
	}

	_, err = s.CreateMessage(ctx, session.ID, Role("system"), "never stored")
	require.Error(t, err)

	messages, err := s.ListMessages(ctx, session.ID)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	require.Equal(t, "one", messages[0].Content)
	require.Equal(t, RoleAssistant, messages[1].Role)
	require.Equal(t, "three", messages[2].Content)

	reloaded, err := s.GetSessionOwnedBy(ctx, session.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, "First question", reloaded.Title)
	require.Equal(t, 3, reloaded.MessageCount)

	require.NoError(t, s.SetSessionTitle(ctx, session.ID, user.ID, ""))
	reloaded, err = s.GetSessionOwnedBy(ctx, session.ID, user.ID)
	require.NoError(t, err)
	require.Equal(t, db.DefaultSessionTitle, reloaded.Title)
}

func TestDeletingCharacterDetachesSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "erin", "")
	require.NoError(t, err)
	character, err := s.CreateCharacter(ctx, user.ID, CharacterInput{Name: "Guide", Prompt: "Guide"})
	require.NoError(t, err)

	session, err := s.CreateSession(ctx, user.ID, "", character.ID)
	require.NoError(t, err)
	require.Equal(t, character.ID, session.CharacterID)

	require.NoError(t, s.DeleteCharacter(ctx, character.ID, user.ID))

	reloaded, err := s.GetSessionOwnedBy(ctx, session.ID, user.ID)
	require.NoError(t, err)
	require.Empty(t, reloaded.CharacterID)
}

func TestListAndDeleteSessions(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	user, err := s.CreateUser(ctx, "frank", "")
	require.NoError(t, err)
	first, err := s.CreateSession(ctx, user.ID, "first", "")
	require.NoError(t, err)
	second, err := s.CreateSession(ctx, user.ID, "second", "")
	require.NoError(t, err)
	_, err = s.CreateMessage(ctx, first.ID, RoleUser, "hi")
	require.NoError(t, err)

	sessions, err := s.ListSessionsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	ids := []string{sessions[0].ID, sessions[1].ID}
	require.ElementsMatch(t, []string{first.ID, second.ID}, ids)

	require.ErrorIs(t, s.DeleteSession(ctx, first.ID, "someone-else"), ErrNotFound)
	require.NoError(t, s.DeleteSession(ctx, first.ID, user.ID))

	count, err := s.CountMessages(ctx, first.ID)
	require.NoError(t, err)
	require.Zero(t, count)

	sessions, err = s.ListSessionsForUser(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	require.Equal(t, second.ID, sessions[0].ID)
}
