package storage

import (
	"time"

	"github.com/wonny/quorum/backend/internal/council"
	"github.com/wonny/quorum/backend/internal/schema"
)

// Message is one conversation turn. User turns carry only Content;
// assistant turns carry the full three-stage record.
type Message struct {
	Role      string              `json:"role"` // user | assistant
	Content   string              `json:"content,omitempty"`
	Stage1    []schema.Opinion    `json:"stage1,omitempty"`
	Stage2    []schema.PeerReview `json:"stage2,omitempty"`
	Stage3    string              `json:"stage3,omitempty"`
	Metadata  *council.Metadata   `json:"metadata,omitempty"`
	CreatedAt time.Time           `json:"created_at"`
}

// Conversation is a full conversation with its message history.
type Conversation struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}

// ConversationSummary is the list view: no message bodies, just counts.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}
