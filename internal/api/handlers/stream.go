package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/wonny/quorum/backend/internal/council"
)

// doneSentinel terminates every NDJSON stream.
const doneSentinel = "[DONE]"

// Stream runs a deliberation and emits the stage events as NDJSON lines,
// terminated by the [DONE] sentinel.
// POST /api/conversations/{id}/message/stream
func (h *MessageHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id, req, firstTurn, ok := h.prepareTurn(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, "Streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(w)
	opts := council.RunOptions{TutorMode: req.TutorMode, ReducedPanel: req.ReducedPanel}

	failed := false
	for event := range h.orchestrator.DeliberateStream(r.Context(), id, req.Content, opts) {
		if event.Type == council.EventError {
			failed = true
		}
		if err := encoder.Encode(event); err != nil {
			h.logger.WithError(err).WithField("id", id).Warn("Stream client gone")
			return
		}
		flusher.Flush()
	}

	// The stream is done; titling happens after the verdict is out and
	// never after a failed run.
	if !failed {
		if title := h.maybeTitle(r.Context(), id, req.Content, firstTurn); title != "" {
			encoder.Encode(council.Event{Type: council.EventStatus, Message: "title", Content: title})
			flusher.Flush()
		}
	}

	fmt.Fprintln(w, doneSentinel)
	flusher.Flush()
}
