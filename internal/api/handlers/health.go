package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/quorum/backend/pkg/database"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// DatabaseChecker reports database health.
type DatabaseChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// CacheChecker reports whether the cache layer is reachable.
type CacheChecker interface {
	Enabled() bool
}

// HealthHandler serves the service health surface
// ⭐ SSOT: 헬스 체크는 이 핸들러에서만
type HealthHandler struct {
	db     DatabaseChecker
	cache  CacheChecker
	logger *logger.Logger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db DatabaseChecker, cache CacheChecker, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		db:     db,
		cache:  cache,
		logger: log,
	}
}

// Health reports service health including the database pool and cache.
// GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ok"
	code := http.StatusOK

	dbStatus, err := h.db.HealthCheck(ctx)
	if err != nil {
		h.logger.WithError(err).Error("Database health check failed")
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	redisStatus := "disabled"
	if h.cache.Enabled() {
		redisStatus = "ok"
	}

	respondJSON(w, code, map[string]interface{}{
		"status":   status,
		"service":  "quorum-council-api",
		"database": dbStatus,
		"redis":    redisStatus,
	})
}
