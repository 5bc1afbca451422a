package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/hackjutsu/mini-chatbot/internal/ollama"
	"github.com/hackjutsu/mini-chatbot/internal/store"
)

type CharacterLookup interface {
	GetForUser(ctx context.Context, characterID, userID string) (*store.Character, error)
}

type TranscriptReader interface {
	ListMessages(ctx context.Context, sessionID string) ([]store.Message, error)
}

type ContextBuilder struct {
	characters   CharacterLookup
	transcripts  TranscriptReader
	systemPrompt string
}

func NewContextBuilder(characters CharacterLookup, transcripts TranscriptReader, systemPrompt string) *ContextBuilder {
	return &ContextBuilder{
		characters:   characters,
		transcripts:  transcripts,
		systemPrompt: strings.TrimSpace(systemPrompt),
	}
}

// BuildTurns returns, in order: the operator system prompt, the bound
// character's prompt, the stored transcript, then the new user turn.
func (b *ContextBuilder) BuildTurns(ctx context.Context, session store.Session, userID, newUserText string) ([]ollama.Message, error) {
	history, err := b.transcripts.ListMessages(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	turns := make([]ollama.Message, 0, len(history)+3)
	if b.systemPrompt != "" {
		turns = append(turns, ollama.Message{Role: "system", Content: b.systemPrompt})
	}
	if session.CharacterID != "" {
		character, err := b.characters.GetForUser(ctx, session.CharacterID, userID)
		if err != nil {
			return nil, fmt.Errorf("load session character: %w", err)
		}
		if character != nil && strings.TrimSpace(character.Prompt) != "" {
			turns = append(turns, ollama.Message{Role: "system", Content: character.Prompt})
		}
	}
	for _, message := range history {
		turns = append(turns, ollama.Message{Role: string(message.Role), Content: message.Content})
	}
	return append(turns, ollama.Message{Role: string(store.RoleUser), Content: newUserText}), nil
}
