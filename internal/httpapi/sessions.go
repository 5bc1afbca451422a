package httpapi

import (
	"errors"
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/character"
	"github.com/hackjutsu/mini-chatbot/internal/session"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

func (h Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	sessions, err := h.sessions.List(r.Context(), user.ID)
	if err != nil {
		h.logger.Error("list sessions failed", zap.String("userId", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to list sessions")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

type createSessionRequest struct {
	UserID      string `json:"userId" validate:"notblank"`
	Title       string `json:"title" validate:"max=200"`
	CharacterID string `json:"characterId"`
}

func (h Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	user, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}

	created, err := h.sessions.Create(r.Context(), user.ID, req.Title, req.CharacterID)
	if errors.Is(err, session.ErrCharacterNotFound) {
		writeError(w, http.StatusBadRequest, character.CodeNotFound, "Character not found for user.")
		return
	}
	if err != nil {
		h.logger.Error("create session failed", zap.String("userId", user.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "Unable to create session.")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"session": created})
}

func (h Handler) GetSessionMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}
	found, ok := h.loadSession(w, r, chi.URLParam(r, "sessionId"), user)
	if !ok {
		return
	}

	transcript, err := h.sessions.Transcript(r.Context(), found, user.ID)
	if err != nil {
		h.logger.Error("load transcript failed", zap.String("sessionId", found.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to load messages")
		return
	}
	writeJSON(w, http.StatusOK, transcript)
}

type renameSessionRequest struct {
	UserID string  `json:"userId" validate:"notblank"`
	Title  *string `json:"title" validate:"required,max=200"`
}

func (h Handler) RenameSession(w http.ResponseWriter, r *http.Request) {
	var req renameSessionRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}
	user, ok := h.loadUser(w, r, req.UserID)
	if !ok {
		return
	}

	renamed, err := h.sessions.Rename(r.Context(), chi.URLParam(r, "sessionId"), user.ID, *req.Title)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found.")
		return
	}
	if err != nil {
		h.logger.Error("rename session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to rename session")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"session": renamed})
}

func (h Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	err := h.sessions.Delete(r.Context(), chi.URLParam(r, "sessionId"), user.ID)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found.")
		return
	}
	if err != nil {
		h.logger.Error("delete session failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
