package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/quorum/backend/internal/api/handlers"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(
	conversations *handlers.ConversationHandler,
	messages *handlers.MessageHandler,
	marketHandler *handlers.MarketHandler,
	health *handlers.HealthHandler,
	jobs *handlers.JobHandler,
	frontendOrigin string,
	log *logger.Logger,
) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", health.Health).Methods("GET")

	// API v1
	api := r.PathPrefix("/api").Subrouter()

	// Conversation endpoints
	api.HandleFunc("/conversations", conversations.List).Methods("GET")
	api.HandleFunc("/conversations", conversations.Create).Methods("POST")
	api.HandleFunc("/conversations/{id}", conversations.Get).Methods("GET")
	api.HandleFunc("/conversations/{id}", conversations.Delete).Methods("DELETE")
	api.HandleFunc("/conversations/{id}/title", messages.Title).Methods("POST")

	// Deliberation endpoints
	api.HandleFunc("/conversations/{id}/message", messages.Message).Methods("POST")
	api.HandleFunc("/conversations/{id}/message/stream", messages.Stream).Methods("POST")
	api.HandleFunc("/conversations/{id}/ws", messages.WebSocket).Methods("GET")

	// Market endpoints
	api.HandleFunc("/market/snapshot/{ticker}", marketHandler.Snapshot).Methods("GET")
	api.HandleFunc("/market/context", marketHandler.Context).Methods("GET")

	// Scheduler endpoints
	api.HandleFunc("/jobs", jobs.List).Methods("GET")
	api.HandleFunc("/jobs/{name}/run", jobs.Run).Methods("POST")

	// Apply middleware
	r.Use(corsMiddleware(frontendOrigin))
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// corsMiddleware allows the configured frontend origin
func corsMiddleware(origin string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Call next handler
			next.ServeHTTP(w, r)

			// Log request
			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
