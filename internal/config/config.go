package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultPort                = "3000"
	defaultDatabaseURL         = "file:data/chat.sqlite"
	defaultOllamaChatURL       = "http://localhost:11434/api/chat"
	defaultOllamaModel         = "qwen2.5:7b"
	defaultLogLevel            = "info"
	defaultCacheProvider       = "memory"
	defaultRedisURL            = "redis://localhost:6379/0"
	defaultModelCacheTTL       = 15 * time.Second
	defaultCharacterCacheTTL   = 5 * time.Minute
	defaultUpstreamConnect     = 30 * time.Second
	defaultUpstreamKeepAlive   = 60 * time.Second
	defaultMaxIdleConnsPerHost = 64
)

type Config struct {
	Port           string
	Environment    string
	AllowedOrigins []string

	DatabaseURL       string
	DatabaseAuthToken string

	OllamaChatURL string
	OllamaModel   string
	SystemPrompt  string

	LogLevel    string
	LogFilePath string

	CacheProvider     string
	RedisURL          string
	ModelCacheTTL     time.Duration
	CharacterCacheTTL time.Duration

	UpstreamConnectTimeout      time.Duration
	UpstreamKeepAlive           time.Duration
	UpstreamMaxIdleConnsPerHost int
}

func (c Config) ListenAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load reads configuration from the process environment. A .env file in the
// working directory is applied first when present; real environment
// variables always win over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Port:                        envOrDefault("PORT", defaultPort),
		Environment:                 envOrDefault("APP_ENV", "development"),
		DatabaseURL:                 envOrDefault("DATABASE_URL", defaultDatabaseURL),
		DatabaseAuthToken:           strings.TrimSpace(os.Getenv("DATABASE_AUTH_TOKEN")),
		OllamaChatURL:               envOrDefault("OLLAMA_CHAT_URL", defaultOllamaChatURL),
		OllamaModel:                 envOrDefault("OLLAMA_MODEL", defaultOllamaModel),
		SystemPrompt:                strings.TrimSpace(os.Getenv("SYSTEM_PROMPT")),
		LogLevel:                    strings.ToLower(envOrDefault("LOG_LEVEL", defaultLogLevel)),
		LogFilePath:                 strings.TrimSpace(os.Getenv("LOG_FILE_PATH")),
		CacheProvider:               strings.ToLower(envOrDefault("CACHE_PROVIDER", defaultCacheProvider)),
		RedisURL:                    envOrDefault("REDIS_URL", defaultRedisURL),
		ModelCacheTTL:               durationOrDefault("MODEL_CACHE_TTL", defaultModelCacheTTL),
		CharacterCacheTTL:           durationOrDefault("CHARACTER_CACHE_TTL", defaultCharacterCacheTTL),
		UpstreamConnectTimeout:      durationOrDefault("UPSTREAM_CONNECT_TIMEOUT", defaultUpstreamConnect),
		UpstreamKeepAlive:           durationOrDefault("UPSTREAM_KEEPALIVE", defaultUpstreamKeepAlive),
		UpstreamMaxIdleConnsPerHost: intOrDefault("UPSTREAM_MAX_IDLE_CONNS_PER_HOST", defaultMaxIdleConnsPerHost),
	}

	cfg.AllowedOrigins = parseList(envOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:4173"))
	if len(cfg.AllowedOrigins) == 0 {
		return Config{}, errors.New("CORS_ALLOWED_ORIGINS must include at least one origin")
	}

	chatURL, err := url.Parse(cfg.OllamaChatURL)
	if err != nil || chatURL.Scheme == "" || chatURL.Host == "" {
		return Config{}, fmt.Errorf("OLLAMA_CHAT_URL is not a valid absolute url: %q", cfg.OllamaChatURL)
	}
	if strings.HasPrefix(cfg.DatabaseURL, "libsql://") && cfg.DatabaseAuthToken == "" {
		return Config{}, errors.New("DATABASE_AUTH_TOKEN is required for libsql:// URLs")
	}
	if cfg.ModelCacheTTL <= 0 {
		return Config{}, errors.New("MODEL_CACHE_TTL must be > 0")
	}
	if cfg.CharacterCacheTTL <= 0 {
		return Config{}, errors.New("CHARACTER_CACHE_TTL must be > 0")
	}
	if cfg.UpstreamMaxIdleConnsPerHost <= 0 {
		return Config{}, errors.New("UPSTREAM_MAX_IDLE_CONNS_PER_HOST must be > 0")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func intOrDefault(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return parsed
}

// durationOrDefault accepts Go duration strings ("15s") and bare integers,
// which are read as milliseconds.
func durationOrDefault(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	if parsed, err := time.ParseDuration(raw); err == nil {
		return parsed
	}
	if millis, err := strconv.Atoi(raw); err == nil {
		return time.Duration(millis) * time.Millisecond
	}
	return fallback
}

func parseList(raw string) []string {
	items := strings.Split(raw, ",")
	out := make([]string, 0, len(items))
	for _, item := range items {
		trimmed := strings.TrimSpace(item)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
