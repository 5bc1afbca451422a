package httpapi

import (
	"database/sql"
	"net/http"

	"github.com/hackjutsu/mini-chatbot/internal/cache"
	"github.com/hackjutsu/mini-chatbot/internal/character"
	"github.com/hackjutsu/mini-chatbot/internal/chat"
	"github.com/hackjutsu/mini-chatbot/internal/config"
	"github.com/hackjutsu/mini-chatbot/internal/models"
	"github.com/hackjutsu/mini-chatbot/internal/ollama"
	"github.com/hackjutsu/mini-chatbot/internal/session"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const cacheKeyPrefix = "mini-chatbot:"

func NewAPI(cfg config.Config, database *sql.DB, logger *zap.Logger, redisClient redis.UniversalClient) (http.Handler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := store.New(database)

	upstream, err := ollama.NewClient(cfg, nil)
	if err != nil {
		return nil, err
	}

	modelCache := cache.New[[]string](cfg.CacheProvider, redisClient, cacheKeyPrefix, logger)
	characterCache := cache.New[store.Character](cfg.CacheProvider, redisClient, cacheKeyPrefix, logger)

	resolver := models.NewResolver(upstream, s, modelCache, cfg.ModelCacheTTL, cfg.OllamaModel, logger.Named("models"))
	characters := character.NewService(s, characterCache, cfg.CharacterCacheTTL, logger.Named("character"))
	sessions := session.NewService(s, characters)
	chatService := chat.NewService(
		s,
		chat.NewContextBuilder(characters, s, cfg.SystemPrompt),
		resolver,
		chat.NewRelay(upstream, s, logger.Named("relay")),
		logger.Named("chat"),
	)

	return NewRouter(NewHandler(Dependencies{
		Config:     cfg,
		Logger:     logger,
		Users:      s,
		Models:     resolver,
		Characters: characters,
		Sessions:   sessions,
		Chat:       chatService,
	})), nil
}
