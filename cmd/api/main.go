package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hackjutsu/mini-chatbot/internal/cache"
	"github.com/hackjutsu/mini-chatbot/internal/config"
	"github.com/hackjutsu/mini-chatbot/internal/db"
	"github.com/hackjutsu/mini-chatbot/internal/httpapi"
	"github.com/hackjutsu/mini-chatbot/internal/logging"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "mini-chatbot",
		Short:         "Streaming chat relay in front of a local Ollama server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema and seed the character library",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return migrate(cmd.Context())
		},
	})

	users := &cobra.Command{Use: "user", Short: "Manage users"}
	users.AddCommand(&cobra.Command{
		Use:   "add <username>",
		Short: "Create a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return addUser(cmd.Context(), args[0])
		},
	})
	root.AddCommand(users)

	return root
}

type app struct {
	cfg      config.Config
	logger   *zap.Logger
	database *sql.DB
	store    store.Store
}

func (rt app) close() {
	_ = rt.database.Close()
	_ = rt.logger.Sync()
}

// bootstrap loads config, builds the logger and opens a migrated, seeded
// database.
func bootstrap(ctx context.Context) (app, error) {
	cfg, err := config.Load()
	if err != nil {
		return app{}, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		FilePath:   cfg.LogFilePath,
		Production: cfg.IsProduction(),
	})
	if err != nil {
		return app{}, fmt.Errorf("build logger: %w", err)
	}

	database, err := db.OpenMigrated(ctx, cfg)
	if err != nil {
		_ = logger.Sync()
		return app{}, fmt.Errorf("open db: %w", err)
	}
	rt := app{cfg: cfg, logger: logger, database: database, store: store.New(database)}
	if err := rt.store.SeedLibrary(ctx); err != nil {
		rt.close()
		return app{}, err
	}
	return rt, nil
}

func serve(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()
	cfg, logger := rt.cfg, rt.logger

	var redisClient redis.UniversalClient
	if cfg.CacheProvider == cache.ProviderRedis {
		client, err := cache.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer client.Close()
		redisClient = client
		logger.Info("using redis cache", zap.String("addr", client.Options().Addr))
	}

	handler, err := httpapi.NewAPI(cfg, rt.database, logger, redisClient)
	if err != nil {
		return err
	}

	// Chat replies stream for as long as the model keeps generating, so the
	// server sets no WriteTimeout.
	srv := &http.Server{
		Addr:              cfg.ListenAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		logger.Info("api listening",
			zap.String("addr", srv.Addr),
			zap.String("ollamaChatUrl", cfg.OllamaChatURL),
			zap.String("defaultModel", cfg.OllamaModel),
			zap.String("cacheProvider", cfg.CacheProvider),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	eg.Go(func() error {
		<-egCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
			return err
		}
		return nil
	})

	return eg.Wait()
}

func migrate(ctx context.Context) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	rt.logger.Info("database migrated", zap.String("databaseUrl", redactDatabaseURL(rt.cfg.DatabaseURL)))
	return nil
}

func addUser(ctx context.Context, username string) error {
	rt, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer rt.close()

	user, err := rt.store.CreateUser(ctx, username, rt.cfg.OllamaModel)
	if errors.Is(err, store.ErrUsernameTaken) {
		return fmt.Errorf("username %q already exists", username)
	}
	if err != nil {
		return err
	}
	fmt.Printf("created user %s (%s)\n", user.Username, user.ID)
	return nil
}

// redactDatabaseURL drops the query string, which may carry an auth token.
func redactDatabaseURL(raw string) string {
	base, _, _ := strings.Cut(raw, "?")
	return base
}
