package models

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/hackjutsu/mini-chatbot/internal/cache"
	"github.com/hackjutsu/mini-chatbot/internal/store"

	"go.uber.org/zap"
)

var ErrModelUnavailable = errors.New("model is not available")

const (
	freshKey    = "models:installed"
	lastGoodKey = "models:installed:last-good"
)

type Lister interface {
	ListModels(ctx context.Context) ([]string, error)
}

type PreferenceStore interface {
	SetUserPreferredModel(ctx context.Context, userID, model string) error
}

type Resolver struct {
	lister       Lister
	preferences  PreferenceStore
	cache        cache.Cache[[]string]
	ttl          time.Duration
	defaultModel string
	logger       *zap.Logger
}

func NewResolver(lister Lister, preferences PreferenceStore, c cache.Cache[[]string], ttl time.Duration, defaultModel string, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		lister:       lister,
		preferences:  preferences,
		cache:        c,
		ttl:          ttl,
		defaultModel: strings.TrimSpace(defaultModel),
		logger:       logger,
	}
}

func (r *Resolver) DefaultModel() string {
	return r.defaultModel
}

// ListModels never fails: on discovery errors it serves the last good list,
// or the configured default alone.
func (r *Resolver) ListModels(ctx context.Context) []string {
	models, err := r.ListModelsStrict(ctx)
	if err != nil {
		r.logger.Warn("model discovery failed, using default", zap.String("model", r.defaultModel), zap.Error(err))
		return []string{r.defaultModel}
	}
	return models
}

// ListModelsStrict is ListModels without the final fallback. It errors only
// when discovery fails and no list was ever fetched.
func (r *Resolver) ListModelsStrict(ctx context.Context) ([]string, error) {
	if models, ok := r.cache.Get(ctx, freshKey); ok && len(models) > 0 {
		return slices.Clone(models), nil
	}

	models, err := r.lister.ListModels(ctx)
	if err != nil {
		if lastGood, ok := r.cache.Get(ctx, lastGoodKey); ok && len(lastGood) > 0 {
			r.logger.Warn("model discovery failed, serving last good list", zap.Int("count", len(lastGood)), zap.Error(err))
			return slices.Clone(lastGood), nil
		}
		return nil, fmt.Errorf("list models: %w", err)
	}
	if len(models) == 0 {
		models = []string{r.defaultModel}
	}

	r.cache.Set(ctx, freshKey, models, r.ttl)
	r.cache.Set(ctx, lastGoodKey, models, 0)
	return slices.Clone(models), nil
}

// Resolve picks the stored preference, then the default, then the first
// available model. A result that differs from the stored preference is
// written back so stale preferences heal themselves.
func (r *Resolver) Resolve(ctx context.Context, user store.User, available []string) string {
	preferred := strings.TrimSpace(user.PreferredModel)

	var selected string
	switch {
	case len(available) == 0 && preferred != "":
		selected = preferred
	case len(available) == 0:
		selected = r.defaultModel
	case preferred != "" && slices.Contains(available, preferred):
		selected = preferred
	case slices.Contains(available, r.defaultModel):
		selected = r.defaultModel
	default:
		selected = available[0]
	}

	if selected != "" && selected != preferred {
		if err := r.preferences.SetUserPreferredModel(ctx, user.ID, selected); err != nil {
			r.logger.Warn("persist resolved model failed",
				zap.String("userId", user.ID),
				zap.String("model", selected),
				zap.Error(err),
			)
		} else {
			r.logger.Info("user model preference updated",
				zap.String("userId", user.ID),
				zap.String("from", preferred),
				zap.String("model", selected),
			)
		}
	}
	return selected
}

// ModelFor picks the model for a chat turn. When discovery fails and no list
// was ever fetched, the stored preference is used without being rewritten.
func (r *Resolver) ModelFor(ctx context.Context, user store.User) string {
	available, err := r.ListModelsStrict(ctx)
	if err != nil {
		r.logger.Warn("model discovery failed, keeping stored preference",
			zap.String("userId", user.ID),
			zap.Error(err),
		)
		if preferred := strings.TrimSpace(user.PreferredModel); preferred != "" {
			return preferred
		}
		return r.defaultModel
	}
	return r.Resolve(ctx, user, available)
}

func (r *Resolver) SetPreference(ctx context.Context, userID, model string) (string, error) {
	model = strings.TrimSpace(model)
	if model == "" || !slices.Contains(r.ListModels(ctx), model) {
		return "", ErrModelUnavailable
	}
	if err := r.preferences.SetUserPreferredModel(ctx, userID, model); err != nil {
		return "", err
	}
	return model, nil
}
