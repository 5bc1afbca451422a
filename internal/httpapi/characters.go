package httpapi

import (
	"context"
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type characterRequest struct {
	UserID           string `json:"userId" validate:"notblank"`
	Name             string `json:"name" validate:"notblank,max=80"`
	Prompt           string `json:"prompt" validate:"notblank"`
	AvatarURL        string `json:"avatarUrl" validate:"omitempty,max=2048"`
	ShortDescription string `json:"shortDescription" validate:"omitempty,max=280"`
}

func (req characterRequest) input() store.CharacterInput {
	return store.CharacterInput{
		Name:             req.Name,
		Prompt:           req.Prompt,
		AvatarURL:        req.AvatarURL,
		ShortDescription: req.ShortDescription,
	}
}

type characterActionRequest struct {
	UserID string `json:"userId" validate:"notblank"`
}

func (h Handler) writeCharacterList(w http.ResponseWriter, characters []store.Character, err error) {
	if err != nil {
		h.logger.Error("list characters failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to list characters")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"characters": characters})
}

func (h Handler) ListCharacters(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	characters, err := h.characters.ListOwned(r.Context(), user.ID)
	h.writeCharacterList(w, characters, err)
}

func (h Handler) ListPublishedCharacters(w http.ResponseWriter, r *http.Request) {
	characters, err := h.characters.ListPublished(r.Context())
	h.writeCharacterList(w, characters, err)
}

func (h Handler) ListPinnedCharacters(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	characters, err := h.characters.ListPinned(r.Context(), user.ID)
	h.writeCharacterList(w, characters, err)
}

func (h Handler) CreateCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	user, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}

	created, err := h.characters.Create(r.Context(), user.ID, req.input())
	if err != nil {
		h.writeCharacterError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"character": created})
}

func (h Handler) UpdateCharacter(w http.ResponseWriter, r *http.Request) {
	var req characterRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	user, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}

	updated, err := h.characters.Update(r.Context(), chi.URLParam(r, "characterId"), user.ID, req.input())
	if err != nil {
		h.writeCharacterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"character": updated})
}

func (h Handler) DeleteCharacter(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	if err := h.characters.Delete(r.Context(), chi.URLParam(r, "characterId"), user.ID); err != nil {
		h.writeCharacterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h Handler) PublishCharacter(w http.ResponseWriter, r *http.Request) {
	h.characterAction(w, r, h.characters.Publish)
}

func (h Handler) UnpublishCharacter(w http.ResponseWriter, r *http.Request) {
	h.characterAction(w, r, h.characters.Unpublish)
}

func (h Handler) PinCharacter(w http.ResponseWriter, r *http.Request) {
	h.characterAction(w, r, h.characters.Pin)
}

func (h Handler) UnpinCharacter(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	if err := h.characters.Unpin(r.Context(), chi.URLParam(r, "characterId"), user.ID); err != nil {
		h.writeCharacterError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type characterActionFunc func(ctx context.Context, characterID, userID string) (store.Character, error)

func (h Handler) characterAction(w http.ResponseWriter, r *http.Request, action characterActionFunc) {
	var req characterActionRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	user, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}

	result, err := action(r.Context(), chi.URLParam(r, "characterId"), user.ID)
	if err != nil {
		h.writeCharacterError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"character": result})
}
