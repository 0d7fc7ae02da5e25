package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/quorum/backend/internal/council"
	"github.com/wonny/quorum/backend/internal/storage"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// Deliberator is the orchestration surface the message handlers need.
type Deliberator interface {
	Deliberate(ctx context.Context, conversationID, query string, opts council.RunOptions) (*council.RunResult, error)
	DeliberateStream(ctx context.Context, conversationID, query string, opts council.RunOptions) <-chan council.Event
	GenerateTitle(ctx context.Context, query string) string
}

// MessageRequest is the body of a deliberation request.
type MessageRequest struct {
	Content      string `json:"content"`
	TutorMode    bool   `json:"tutor_mode"`
	ReducedPanel bool   `json:"reduced_panel"`
}

// MessageHandler handles deliberation endpoints
// ⭐ SSOT: 심의 API 핸들러는 이 구조체에서만
type MessageHandler struct {
	orchestrator Deliberator
	store        ConversationStore
	logger       *logger.Logger
}

// NewMessageHandler creates a new message handler
func NewMessageHandler(orchestrator Deliberator, store ConversationStore, log *logger.Logger) *MessageHandler {
	return &MessageHandler{
		orchestrator: orchestrator,
		store:        store,
		logger:       log,
	}
}

// prepareTurn validates the request, records the user turn and reports
// whether this is the conversation's first turn.
func (h *MessageHandler) prepareTurn(w http.ResponseWriter, r *http.Request) (id string, req MessageRequest, firstTurn, ok bool) {
	id = mux.Vars(r)["id"]

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return "", req, false, false
	}
	if req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return "", req, false, false
	}

	conv, err := h.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		respondError(w, http.StatusNotFound, "Conversation not found")
		return "", req, false, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to load conversation")
		respondError(w, http.StatusInternalServerError, "Failed to load conversation")
		return "", req, false, false
	}
	firstTurn = len(conv.Messages) == 0

	if err := h.store.AppendUserMessage(r.Context(), id, req.Content); err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to record user message")
		respondError(w, http.StatusInternalServerError, "Failed to record message")
		return "", req, false, false
	}

	return id, req, firstTurn, true
}

// maybeTitle generates and persists a title on the first turn.
func (h *MessageHandler) maybeTitle(ctx context.Context, conversationID, query string, firstTurn bool) string {
	if !firstTurn {
		return ""
	}
	title := h.orchestrator.GenerateTitle(ctx, query)
	if err := h.store.UpdateTitle(ctx, conversationID, title); err != nil {
		h.logger.WithError(err).WithField("id", conversationID).Warn("Failed to persist title")
	}
	return title
}

// Message runs a full blocking deliberation.
// POST /api/conversations/{id}/message
func (h *MessageHandler) Message(w http.ResponseWriter, r *http.Request) {
	id, req, firstTurn, ok := h.prepareTurn(w, r)
	if !ok {
		return
	}

	opts := council.RunOptions{TutorMode: req.TutorMode, ReducedPanel: req.ReducedPanel}
	run, err := h.orchestrator.Deliberate(r.Context(), id, req.Content, opts)
	if errors.Is(err, council.ErrNoOpinions) {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Deliberation failed")
		respondError(w, http.StatusInternalServerError, "Deliberation failed")
		return
	}

	title := h.maybeTitle(r.Context(), id, req.Content, firstTurn)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    run,
		"title":   title,
	})
}

// Title regenerates the conversation title from a question.
// POST /api/conversations/{id}/title
func (h *MessageHandler) Title(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req MessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Content == "" {
		respondError(w, http.StatusBadRequest, "content is required")
		return
	}

	title := h.orchestrator.GenerateTitle(r.Context(), req.Content)
	if err := h.store.UpdateTitle(r.Context(), id, title); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			respondError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		h.logger.WithError(err).WithField("id", id).Error("Failed to persist title")
		respondError(w, http.StatusInternalServerError, "Failed to persist title")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"title":   title,
	})
}
