package store

import (
	"database/sql"
	"errors"
	"strings"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrUsernameTaken = errors.New("username already exists")
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type CharacterStatus string

const (
	StatusDraft     CharacterStatus = "draft"
	StatusPublished CharacterStatus = "published"
)

type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	PreferredModel string `json:"preferredModel,omitempty"`
	CreatedAt      string `json:"createdAt"`
}

// Character rows are immutable once loaded; caches hand out copies of them.
type Character struct {
	ID               string          `json:"id"`
	OwnerUserID      string          `json:"ownerUserId"`
	OwnerUsername    string          `json:"ownerUsername"`
	Name             string          `json:"name"`
	Prompt           string          `json:"prompt"`
	AvatarURL        string          `json:"avatarUrl,omitempty"`
	ShortDescription string          `json:"shortDescription,omitempty"`
	Status           CharacterStatus `json:"status"`
	Version          int             `json:"version"`
	LastPublishedAt  string          `json:"lastPublishedAt,omitempty"`
	CreatedAt        string          `json:"createdAt"`
	UpdatedAt        string          `json:"updatedAt"`
	PinnedAt         string          `json:"pinnedAt,omitempty"`
}

func (c Character) Published() bool {
	return c.Status == StatusPublished
}

type CharacterInput struct {
	Name             string
	Prompt           string
	AvatarURL        string
	ShortDescription string
}

type Session struct {
	ID           string `json:"id"`
	UserID       string `json:"userId"`
	Title        string `json:"title"`
	CharacterID  string `json:"characterId,omitempty"`
	CreatedAt    string `json:"createdAt"`
	UpdatedAt    string `json:"updatedAt"`
	MessageCount int    `json:"messageCount"`
}

type Message struct {
	ID        string `json:"id"`
	SessionID string `json:"sessionId"`
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"createdAt"`
}

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) Store {
	return Store{db: db}
}

func nullable(value string) sql.NullString {
	trimmed := strings.TrimSpace(value)
	return sql.NullString{String: trimmed, Valid: trimmed != ""}
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}
