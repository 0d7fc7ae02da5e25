package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/quorum/backend/internal/storage"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// ConversationStore is the persistence surface the handlers need.
type ConversationStore interface {
	CreateConversation(ctx context.Context) (*storage.Conversation, error)
	ListConversations(ctx context.Context) ([]storage.ConversationSummary, error)
	GetConversation(ctx context.Context, id string) (*storage.Conversation, error)
	AppendUserMessage(ctx context.Context, conversationID, content string) error
	UpdateTitle(ctx context.Context, conversationID, title string) error
	DeleteConversation(ctx context.Context, id string) error
}

// ConversationHandler handles conversation CRUD endpoints
// ⭐ SSOT: 대화 CRUD API 핸들러는 이 구조체에서만
type ConversationHandler struct {
	store  ConversationStore
	logger *logger.Logger
}

// NewConversationHandler creates a new conversation handler
func NewConversationHandler(store ConversationStore, log *logger.Logger) *ConversationHandler {
	return &ConversationHandler{store: store, logger: log}
}

// List returns all conversation summaries, newest first.
// GET /api/conversations
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.store.ListConversations(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to list conversations")
		respondError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    summaries,
	})
}

// Create starts an empty conversation.
// POST /api/conversations
func (h *ConversationHandler) Create(w http.ResponseWriter, r *http.Request) {
	conv, err := h.store.CreateConversation(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to create conversation")
		respondError(w, http.StatusInternalServerError, "Failed to create conversation")
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"data":    conv,
	})
}

// Get returns one conversation with its full history.
// GET /api/conversations/{id}
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conv, err := h.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to get conversation")
		respondError(w, http.StatusInternalServerError, "Failed to get conversation")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    conv,
	})
}

// Delete removes a conversation.
// DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	err := h.store.DeleteConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to delete conversation")
		respondError(w, http.StatusInternalServerError, "Failed to delete conversation")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
	})
}
