package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/hackjutsu/mini-chatbot/internal/character"
	"github.com/hackjutsu/mini-chatbot/internal/chat"
	"github.com/hackjutsu/mini-chatbot/internal/config"
	"github.com/hackjutsu/mini-chatbot/internal/models"
	"github.com/hackjutsu/mini-chatbot/internal/session"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type UserStore interface {
	CreateUser(ctx context.Context, username, preferredModel string) (store.User, error)
	GetUserByID(ctx context.Context, userID string) (store.User, error)
	GetUserByUsername(ctx context.Context, username string) (store.User, error)
}

type Dependencies struct {
	Config     config.Config
	Logger     *zap.Logger
	Users      UserStore
	Models     *models.Resolver
	Characters *character.Service
	Sessions   *session.Service
	Chat       *chat.Service
}

type Handler struct {
	cfg        config.Config
	logger     *zap.Logger
	users      UserStore
	models     *models.Resolver
	characters *character.Service
	sessions   *session.Service
	chat       *chat.Service
	validate   *validator.Validate
}

func NewHandler(deps Dependencies) Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return Handler{
		cfg:        deps.Config,
		logger:     logger,
		users:      deps.Users,
		models:     deps.Models,
		characters: deps.Characters,
		sessions:   deps.Sessions,
		chat:       deps.Chat,
		validate:   newValidator(),
	}
}

func (h Handler) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h Handler) Config(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"model": h.cfg.OllamaModel})
}

// loadUser resolves userID or writes 400 (missing) / 404 (unknown).
func (h Handler) loadUser(w http.ResponseWriter, r *http.Request, userID string) (store.User, bool) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "userId is required")
		return store.User{}, false
	}
	user, err := h.users.GetUserByID(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "user_not_found", "User not found.")
		return store.User{}, false
	}
	if err != nil {
		h.logger.Error("load user failed", zap.String("userId", userID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to load user")
		return store.User{}, false
	}
	return user, true
}

// loadSession resolves a session owned by user or writes 400 / 404.
func (h Handler) loadSession(w http.ResponseWriter, r *http.Request, sessionID string, user store.User) (store.Session, bool) {
	if strings.TrimSpace(sessionID) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "sessionId is required")
		return store.Session{}, false
	}
	found, err := h.sessions.FindOwned(r.Context(), sessionID, user.ID)
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "session_not_found", "Session not found.")
		return store.Session{}, false
	}
	if err != nil {
		h.logger.Error("load session failed", zap.String("sessionId", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "db_error", "failed to load session")
		return store.Session{}, false
	}
	return found, true
}

// writeCharacterError maps character domain errors to stable responses.
func (h Handler) writeCharacterError(w http.ResponseWriter, err error) {
	var domainErr *character.Error
	if errors.As(err, &domainErr) {
		status := http.StatusNotFound
		switch domainErr.Code {
		case character.CodeNotPublished:
			status = http.StatusConflict
		case character.CodeInvalid:
			status = http.StatusBadRequest
		}
		writeError(w, status, domainErr.Code, domainErr.Message)
		return
	}
	h.logger.Error("character operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "db_error", "character operation failed")
}
