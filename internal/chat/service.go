// Package chat runs one chat turn: context assembly, persistence ordering,
// cancellation and the streaming relay to Ollama.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hackjutsu/mini-chatbot/internal/store"

	"go.uber.org/zap"
)

var ErrEmptyContent = errors.New("content is required")

const defaultModelLookupTimeout = 5 * time.Second

type Store interface {
	TranscriptReader
	MessageWriter
	ClaimDefaultTitle(ctx context.Context, sessionID, userID, title string) (bool, error)
}

type ModelSelector interface {
	ModelFor(ctx context.Context, user store.User) string
}

type Service struct {
	store   Store
	builder *ContextBuilder
	models  ModelSelector
	relay   *Relay
	logger  *zap.Logger

	modelLookupTimeout time.Duration
}

func NewService(s Store, builder *ContextBuilder, models ModelSelector, relay *Relay, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:              s,
		builder:            builder,
		models:             models,
		relay:              relay,
		logger:             logger,
		modelLookupTimeout: defaultModelLookupTimeout,
	}
}

// HandleTurn validates text, stores it, retitles a fresh session and relays
// the reply into sink. Errors are returned only for failures before
// anything was written to sink.
func (s *Service) HandleTurn(ctx context.Context, user store.User, session store.Session, text string, sink Sink) (RelayResult, error) {
	content := strings.TrimSpace(text)
	if content == "" {
		return RelayResult{}, ErrEmptyContent
	}

	turns, err := s.builder.BuildTurns(ctx, session, user.ID, content)
	if err != nil {
		return RelayResult{}, err
	}

	if _, err := s.store.CreateMessage(ctx, session.ID, store.RoleUser, content); err != nil {
		return RelayResult{}, fmt.Errorf("persist user message: %w", err)
	}
	s.maybeAutoTitle(ctx, session, user.ID, content)

	lookupCtx, cancelLookup := context.WithTimeout(ctx, s.modelLookupTimeout)
	model := s.models.ModelFor(lookupCtx, user)
	cancelLookup()

	coordinator := NewAbortCoordinator(context.WithoutCancel(ctx))
	defer coordinator.Release()
	coordinator.Arm(ctx)

	return s.relay.Run(ctx, RelayRequest{
		SessionID: session.ID,
		UserID:    user.ID,
		Model:     model,
		Turns:     turns,
	}, coordinator, sink), nil
}

func (s *Service) maybeAutoTitle(ctx context.Context, session store.Session, userID, content string) {
	title := DeriveTitle(content)
	if title == "" {
		return
	}
	claimed, err := s.store.ClaimDefaultTitle(ctx, session.ID, userID, title)
	if err != nil {
		s.logger.Warn("auto title failed", zap.String("sessionId", session.ID), zap.Error(err))
		return
	}
	if claimed {
		s.logger.Debug("session auto titled", zap.String("sessionId", session.ID), zap.String("title", title))
	}
}
