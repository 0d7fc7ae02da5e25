package handlers

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/wonny/quorum/backend/internal/council"
	"github.com/wonny/quorum/backend/internal/storage"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients come from the configured frontend origin; the CORS
	// middleware already gates HTTP, so the upgrade accepts any origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket runs a deliberation over a websocket: the client sends one
// MessageRequest, receives the stage events as JSON frames, then the
// connection closes.
// GET /api/conversations/{id}/ws
func (h *MessageHandler) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	var req MessageRequest
	if err := conn.ReadJSON(&req); err != nil || req.Content == "" {
		conn.WriteJSON(council.Event{Type: council.EventError, Message: "content is required"})
		return
	}

	// The HTTP-path turn bookkeeping applies here too.
	id, firstTurn, ok := h.prepareWSTurn(r, conn, req)
	if !ok {
		return
	}

	failed := false
	opts := council.RunOptions{TutorMode: req.TutorMode, ReducedPanel: req.ReducedPanel}
	for event := range h.orchestrator.DeliberateStream(r.Context(), id, req.Content, opts) {
		if event.Type == council.EventError {
			failed = true
		}
		if err := conn.WriteJSON(event); err != nil {
			h.logger.WithError(err).WithField("id", id).Warn("WebSocket client gone")
			return
		}
	}

	// A failed run never gets a title.
	if !failed {
		if title := h.maybeTitle(r.Context(), id, req.Content, firstTurn); title != "" {
			conn.WriteJSON(council.Event{Type: council.EventStatus, Message: "title", Content: title})
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "deliberation complete"))
}

// prepareWSTurn mirrors prepareTurn for the websocket transport: errors go
// out as error frames instead of HTTP statuses.
func (h *MessageHandler) prepareWSTurn(r *http.Request, conn *websocket.Conn, req MessageRequest) (string, bool, bool) {
	id := mux.Vars(r)["id"]

	conv, err := h.store.GetConversation(r.Context(), id)
	if errors.Is(err, storage.ErrNotFound) {
		conn.WriteJSON(council.Event{Type: council.EventError, Message: "Conversation not found"})
		return "", false, false
	}
	if err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to load conversation")
		conn.WriteJSON(council.Event{Type: council.EventError, Message: "Failed to load conversation"})
		return "", false, false
	}

	if err := h.store.AppendUserMessage(r.Context(), id, req.Content); err != nil {
		h.logger.WithError(err).WithField("id", id).Error("Failed to record user message")
		conn.WriteJSON(council.Event{Type: council.EventError, Message: "Failed to record message"})
		return "", false, false
	}

	return id, len(conv.Messages) == 0, true
}
