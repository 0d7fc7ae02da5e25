package handlers

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/wonny/quorum/backend/internal/market"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// MarketData is the market surface the handler needs.
type MarketData interface {
	Snapshot(ctx context.Context, ticker string) (*market.Snapshot, error)
	Context(ctx context.Context) (string, error)
}

// MarketHandler exposes the market snapshots the council deliberates on.
type MarketHandler struct {
	service MarketData
	logger  *logger.Logger
}

// NewMarketHandler creates a new market handler
func NewMarketHandler(service MarketData, log *logger.Logger) *MarketHandler {
	return &MarketHandler{service: service, logger: log}
}

// Snapshot returns the snapshot for one ticker.
// GET /api/market/snapshot/{ticker}
func (h *MarketHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	ticker := mux.Vars(r)["ticker"]
	if ticker == "" {
		respondError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	snapshot, err := h.service.Snapshot(r.Context(), ticker)
	if err != nil {
		h.logger.WithError(err).WithField("ticker", ticker).Error("Failed to fetch snapshot")
		respondError(w, http.StatusBadGateway, "Failed to fetch market snapshot")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    snapshot,
	})
}

// Context returns the rendered watchlist context block.
// GET /api/market/context
func (h *MarketHandler) Context(w http.ResponseWriter, r *http.Request) {
	blob, err := h.service.Context(r.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to build market context")
		respondError(w, http.StatusBadGateway, "Failed to build market context")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"context": blob,
	})
}
