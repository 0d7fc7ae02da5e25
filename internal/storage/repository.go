package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/quorum/backend/internal/council"
)

// ErrNotFound is returned when a conversation id does not exist.
var ErrNotFound = errors.New("conversation not found")

// Repository handles conversation persistence
// ⭐ SSOT: 대화 저장/조회는 여기서만
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new conversation repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateConversation creates an empty conversation with a placeholder title.
func (r *Repository) CreateConversation(ctx context.Context) (*Conversation, error) {
	conv := &Conversation{
		ID:        uuid.New().String(),
		Title:     "New Conversation",
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
		Messages:  []Message{},
	}

	query := `
		INSERT INTO council.conversations (id, title, messages, created_at, updated_at)
		VALUES ($1, $2, '[]'::jsonb, $3, $4)
	`

	_, err := r.pool.Exec(ctx, query, conv.ID, conv.Title, conv.CreatedAt, conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}

	return conv, nil
}

// ListConversations returns summaries of all conversations, newest first.
func (r *Repository) ListConversations(ctx context.Context) ([]ConversationSummary, error) {
	query := `
		SELECT id, title, created_at, updated_at, jsonb_array_length(messages)
		FROM council.conversations
		ORDER BY updated_at DESC
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query conversations: %w", err)
	}
	defer rows.Close()

	summaries := make([]ConversationSummary, 0)

	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.Title, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount); err != nil {
			return nil, fmt.Errorf("failed to scan conversation: %w", err)
		}
		summaries = append(summaries, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return summaries, nil
}

// GetConversation loads one conversation with its full message history.
func (r *Repository) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	query := `
		SELECT id, title, messages, created_at, updated_at
		FROM council.conversations
		WHERE id = $1
	`

	var conv Conversation
	var messagesJSON []byte

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&conv.ID, &conv.Title, &messagesJSON, &conv.CreatedAt, &conv.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	if err := json.Unmarshal(messagesJSON, &conv.Messages); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}

	return &conv, nil
}

// appendMessage appends one message to a conversation's JSONB history.
func (r *Repository) appendMessage(ctx context.Context, conversationID string, msg Message) error {
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	query := `
		UPDATE council.conversations
		SET messages = messages || $2::jsonb, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, conversationID, msgJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to append message: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// AppendUserMessage records the user's question as a turn.
func (r *Repository) AppendUserMessage(ctx context.Context, conversationID, content string) error {
	return r.appendMessage(ctx, conversationID, Message{
		Role:      "user",
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
}

// SaveRun records a completed deliberation as the assistant turn.
func (r *Repository) SaveRun(ctx context.Context, conversationID string, run *council.RunResult) error {
	return r.appendMessage(ctx, conversationID, Message{
		Role:      "assistant",
		Stage1:    run.Opinions,
		Stage2:    run.Reviews,
		Stage3:    run.Rendered,
		Metadata:  &run.Metadata,
		CreatedAt: time.Now().UTC(),
	})
}

// UpdateTitle replaces a conversation title.
func (r *Repository) UpdateTitle(ctx context.Context, conversationID, title string) error {
	query := `
		UPDATE council.conversations
		SET title = $2, updated_at = $3
		WHERE id = $1
	`

	tag, err := r.pool.Exec(ctx, query, conversationID, title, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update title: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteConversation removes a conversation and its history.
func (r *Repository) DeleteConversation(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM council.conversations WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Prune deletes conversations untouched for longer than maxAge and returns
// how many were removed.
func (r *Repository) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	tag, err := r.pool.Exec(ctx,
		"DELETE FROM council.conversations WHERE updated_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune conversations: %w", err)
	}

	return tag.RowsAffected(), nil
}
