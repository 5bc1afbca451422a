package character

import (
	"context"
	"testing"
	"time"

	"github.com/hackjutsu/mini-chatbot/internal/cache"
	"github.com/hackjutsu/mini-chatbot/internal/db"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fixture struct {
	service *Service
	store   store.Store
	cache   cache.Cache[store.Character]
	owner   store.User
	other   store.User
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	database, err := db.OpenMemory(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	s := store.New(database)
	owner, err := s.CreateUser(ctx, "owner", "")
	require.NoError(t, err)
	other, err := s.CreateUser(ctx, "other", "")
	require.NoError(t, err)

	c := cache.NewMemory[store.Character]()
	return fixture{
		service: NewService(s, c, time.Minute, zap.NewNop()),
		store:   s,
		cache:   c,
		owner:   owner,
		other:   other,
	}
}

func TestGetForUserVisibility(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	draft, err := f.service.Create(ctx, f.owner.ID, store.CharacterInput{Name: "Sage", Prompt: "Be wise"})
	require.NoError(t, err)

	got, err := f.service.GetForUser(ctx, draft.ID, f.owner.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Be wise", got.Prompt)

	got, err = f.service.GetForUser(ctx, draft.ID, f.other.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	_, cached := f.cache.Get(ctx, publishedKey(draft.ID))
	require.False(t, cached)

	_, err = f.service.Publish(ctx, draft.ID, f.owner.ID)
	require.NoError(t, err)

	got, err = f.service.GetForUser(ctx, draft.ID, f.other.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, "Sage", got.Name)

	got, err = f.service.GetForUser(ctx, "", f.other.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	got, err = f.service.GetForUser(ctx, "missing", f.other.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestCacheFollowsLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, f.owner.ID, store.CharacterInput{Name: "Muse", Prompt: "v1"})
	require.NoError(t, err)
	_, err = f.service.Publish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)

	cached, ok := f.cache.Get(ctx, publishedKey(created.ID))
	require.True(t, ok)
	require.Equal(t, "v1", cached.Prompt)

	_, err = f.service.Update(ctx, created.ID, f.owner.ID, store.CharacterInput{Name: "Muse", Prompt: "v2"})
	require.NoError(t, err)
	got, err := f.service.GetForUser(ctx, created.ID, f.other.ID)
	require.NoError(t, err)
	require.Equal(t, "v2", got.Prompt)
	require.Equal(t, 2, got.Version)

	_, err = f.service.Unpublish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	_, ok = f.cache.Get(ctx, publishedKey(created.ID))
	require.False(t, ok)
	got, err = f.service.GetForUser(ctx, created.ID, f.other.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	_, err = f.service.Publish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	require.NoError(t, f.service.Delete(ctx, created.ID, f.owner.ID))
	_, ok = f.cache.Get(ctx, publishedKey(created.ID))
	require.False(t, ok)
	got, err = f.service.GetForUser(ctx, created.ID, f.other.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestOwnerOnlyMutations(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, f.owner.ID, store.CharacterInput{Name: "Muse", Prompt: "p"})
	require.NoError(t, err)

	_, err = f.service.Update(ctx, created.ID, f.other.ID, store.CharacterInput{Name: "x", Prompt: "y"})
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.service.Publish(ctx, created.ID, f.other.ID)
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.service.Unpublish(ctx, created.ID, f.other.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, f.service.Delete(ctx, created.ID, f.other.ID), ErrNotFound)

	_, err = f.service.Create(ctx, f.owner.ID, store.CharacterInput{Name: " ", Prompt: "p"})
	require.ErrorIs(t, err, ErrInvalid)
}

func TestPinRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, f.owner.ID, store.CharacterInput{Name: "Muse", Prompt: "p"})
	require.NoError(t, err)

	_, err = f.service.Pin(ctx, "missing", f.other.ID)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = f.service.Pin(ctx, created.ID, f.other.ID)
	require.ErrorIs(t, err, ErrNotPublished)

	pinned, err := f.service.Pin(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	require.NotEmpty(t, pinned.PinnedAt)

	_, err = f.service.Publish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	_, err = f.service.Pin(ctx, created.ID, f.other.ID)
	require.NoError(t, err)

	list, err := f.service.ListPinned(ctx, f.other.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, f.service.Unpin(ctx, created.ID, f.other.ID))
	require.ErrorIs(t, f.service.Unpin(ctx, created.ID, f.other.ID), ErrNotPinned)
}

func TestPinnedListHidesUnpublishedDrafts(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	created, err := f.service.Create(ctx, f.owner.ID, store.CharacterInput{Name: "Oracle", Prompt: "v1"})
	require.NoError(t, err)
	_, err = f.service.Publish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	_, err = f.service.Pin(ctx, created.ID, f.other.ID)
	require.NoError(t, err)
	_, err = f.service.Pin(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)

	_, err = f.service.Unpublish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	_, err = f.service.Update(ctx, created.ID, f.owner.ID, store.CharacterInput{Name: "Oracle", Prompt: "private draft v2"})
	require.NoError(t, err)

	got, err := f.service.GetForUser(ctx, created.ID, f.other.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	list, err := f.service.ListPinned(ctx, f.other.ID)
	require.NoError(t, err)
	require.Empty(t, list)

	ownList, err := f.service.ListPinned(ctx, f.owner.ID)
	require.NoError(t, err)
	require.Len(t, ownList, 1)
	require.Equal(t, "private draft v2", ownList[0].Prompt)

	_, err = f.service.Publish(ctx, created.ID, f.owner.ID)
	require.NoError(t, err)
	list, err = f.service.ListPinned(ctx, f.other.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}
