package httpapi

import (
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/logging"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

func NewRouter(h Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(logging.RequestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: h.cfg.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", h.Healthz)
	r.Get("/config", h.Config)

	r.Post("/chat", h.Chat)
	r.Get("/models", h.ListModels)

	r.Route("/users", func(users chi.Router) {
		users.Post("/", h.CreateUser)
		users.Get("/{username}", h.GetUser)
		users.Patch("/{userId}/model", h.SetUserModel)
	})

	r.Route("/sessions", func(sessions chi.Router) {
		sessions.Get("/", h.ListSessions)
		sessions.Post("/", h.CreateSession)
		sessions.Get("/{sessionId}/messages", h.GetSessionMessages)
		sessions.Patch("/{sessionId}", h.RenameSession)
		sessions.Delete("/{sessionId}", h.DeleteSession)
	})

	r.Route("/characters", func(characters chi.Router) {
		characters.Get("/", h.ListCharacters)
		characters.Get("/published", h.ListPublishedCharacters)
		characters.Get("/pinned", h.ListPinnedCharacters)
		characters.Post("/", h.CreateCharacter)
		characters.Patch("/{characterId}", h.UpdateCharacter)
		characters.Delete("/{characterId}", h.DeleteCharacter)
		characters.Post("/{characterId}/publish", h.PublishCharacter)
		characters.Post("/{characterId}/unpublish", h.UnpublishCharacter)
		characters.Post("/{characterId}/pin", h.PinCharacter)
		characters.Delete("/{characterId}/pin", h.UnpinCharacter)
	})

	return r
}
