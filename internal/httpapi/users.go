package httpapi

import (
	"errors"
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/models"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type userResponse struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	PreferredModel string `json:"preferredModel"`
}

func (h Handler) userPayload(user store.User) userResponse {
	preferred := user.PreferredModel
	if preferred == "" {
		preferred = h.cfg.OllamaModel
	}
	return userResponse{ID: user.ID, Username: user.Username, PreferredModel: preferred}
}

type createUserRequest struct {
	Username string `json:"username" validate:"username"`
}

func (h Handler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	user, err := h.users.CreateUser(r.Context(), req.Username, h.cfg.OllamaModel)
	if errors.Is(err, store.ErrUsernameTaken) {
		writeError(w, http.StatusConflict, "username_taken", "Username already exists.")
		return
	}
	if err != nil {
		h.logger.Error("create user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "Unable to create user.")
		return
	}
	writeJSON(w, http.StatusCreated, h.userPayload(user))
}

func (h Handler) GetUser(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	if !usernamePattern.MatchString(username) {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid username.")
		return
	}
	user, err := h.users.GetUserByUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user_not_found", "User not found.")
		return
	}
	if err != nil {
		h.logger.Error("get user failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to load user")
		return
	}
	writeJSON(w, http.StatusOK, h.userPayload(user))
}

func (h Handler) ListModels(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, r.URL.Query().Get("userId"))
	if !ok {
		return
	}

	available, err := h.models.ListModelsStrict(r.Context())
	if err != nil {
		h.logger.Error("load model list failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "upstream_unavailable", "Unable to load model list from Ollama.")
		return
	}
	selected := h.models.Resolve(r.Context(), user, available)
	writeJSON(w, http.StatusOK, map[string]any{
		"models":        available,
		"selectedModel": selected,
	})
}

type setModelRequest struct {
	Model string `json:"model" validate:"notblank"`
}

func (h Handler) SetUserModel(w http.ResponseWriter, r *http.Request) {
	user, ok := h.loadUser(w, r, chi.URLParam(r, "userId"))
	if !ok {
		return
	}
	var req setModelRequest
	if !h.decodeRequest(w, r, &req) {
		return
	}

	model, err := h.models.SetPreference(r.Context(), user.ID, req.Model)
	if errors.Is(err, models.ErrModelUnavailable) {
		writeError(w, http.StatusBadRequest, "model_unavailable", "Model is not available on the server.")
		return
	}
	if err != nil {
		h.logger.Error("update user model failed", zap.String("userId", user.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "model_update_failed", "Unable to update model preference.")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"model": model})
}
