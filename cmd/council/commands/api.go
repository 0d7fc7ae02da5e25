package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quorum/backend/internal/api"
	"github.com/wonny/quorum/backend/internal/api/handlers"
	"github.com/wonny/quorum/backend/internal/council"
	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/market"
	"github.com/wonny/quorum/backend/internal/memory"
	"github.com/wonny/quorum/backend/internal/scheduler"
	"github.com/wonny/quorum/backend/internal/scheduler/jobs"
	"github.com/wonny/quorum/backend/internal/storage"
	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/database"
	"github.com/wonny/quorum/backend/pkg/httputil"
	"github.com/wonny/quorum/backend/pkg/logger"
	"github.com/wonny/quorum/backend/pkg/redis"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `REST API 서버를 시작합니다.

이 명령어는:
- HTTP API 서버 시작
- 대화/심의 엔드포인트 제공
- 마켓 스냅샷 엔드포인트 제공
- 백그라운드 스케줄러 실행 (스냅샷 워밍업, 대화 정리)

Endpoints:
  GET    /health                                 - Health check
  GET    /api/conversations                      - 대화 목록
  POST   /api/conversations                      - 대화 생성
  GET    /api/conversations/{id}                 - 대화 조회
  DELETE /api/conversations/{id}                 - 대화 삭제
  POST   /api/conversations/{id}/message         - 심의 실행 (blocking)
  POST   /api/conversations/{id}/message/stream  - 심의 실행 (NDJSON stream)
  GET    /api/conversations/{id}/ws              - 심의 실행 (WebSocket)
  GET    /api/market/snapshot/{ticker}           - 마켓 스냅샷
  GET    /api/jobs                                - 스케줄 작업 상태
  POST   /api/jobs/{name}/run                     - 작업 즉시 실행

Example:
  go run ./cmd/council api
  go run ./cmd/council api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	// Flags
	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (default: PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Quorum Council API Server ===")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Override port if flag is set
	if apiPort != "" {
		cfg.Port = apiPort
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	log.WithFields(map[string]interface{}{
		"port":       cfg.Port,
		"env":        cfg.Env,
		"simulation": cfg.OpenRouter.Simulation,
	}).Info("Initializing API server")

	// 3. Connect to database
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()

	log.Info("Connected to database")

	// 4. Connect to Redis (optional; everything degrades without it)
	redisClient, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
		redisClient = redis.Disabled()
	}
	defer redisClient.Close()

	cache := redis.NewCache(redisClient, "quorum")
	var limiter *redis.RateLimiter
	if redisClient.Enabled() {
		limiter = redis.NewRateLimiter(redisClient, "quorum")
	}

	// 5. Create HTTP client and LLM invoker
	// Market fetches retry on a short budget so a flaky upstream never
	// stalls a deliberation waiting on context.
	httpClient := httputil.New(cfg, log).WithRetry(2, 500*time.Millisecond)
	if limiter != nil {
		httpClient = httpClient.WithRateLimiter(limiter, redis.QuoteRateLimit)
	}

	var invoker llm.Invoker
	if cfg.OpenRouter.Simulation {
		log.Warn("SIMULATION MODE: using canned agent responses")
		invoker = llm.NewSimulator()
	} else {
		invoker = llm.NewClient(cfg, log, limiter)
	}

	// 6. Create market service
	marketService := market.NewService(httpClient, cache, cfg.Market, log)

	// 7. Create repositories
	convRepo := storage.NewRepository(db.Pool)
	memRepo := memory.NewRepository(db.Pool)

	// 8. Create council orchestrator
	councilCore := council.New(invoker, cfg, log)
	orchestrator := council.NewOrchestrator(councilCore, marketService, convRepo, memRepo, log)

	// 9. Create background scheduler
	sched := scheduler.New(log)
	if err := sched.AddJob(jobs.NewSnapshotWarmupJob(marketService, log)); err != nil {
		return fmt.Errorf("schedule warmup job: %w", err)
	}
	if err := sched.AddJob(jobs.NewConversationPruneJob(convRepo, 90*24*time.Hour, log)); err != nil {
		return fmt.Errorf("schedule prune job: %w", err)
	}

	// 10. Create handlers
	conversationHandler := handlers.NewConversationHandler(convRepo, log)
	messageHandler := handlers.NewMessageHandler(orchestrator, convRepo, log)
	marketHandler := handlers.NewMarketHandler(marketService, log)
	healthHandler := handlers.NewHealthHandler(db, redisClient, log)
	jobHandler := handlers.NewJobHandler(sched, log)

	// 11. Create router and server
	router := api.NewRouter(conversationHandler, messageHandler, marketHandler,
		healthHandler, jobHandler, cfg.OpenRouter.Referer, log)
	server := api.New(cfg, log, router)

	// 12. Start scheduler and server with graceful shutdown
	sched.Start()
	defer sched.Stop()
	go func() {
		if err := server.Start(); err != nil {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", cfg.Port)
	fmt.Println("\nAvailable endpoints:")
	fmt.Println("  GET    /health")
	fmt.Println("  GET    /api/conversations")
	fmt.Println("  POST   /api/conversations/{id}/message")
	fmt.Println("  POST   /api/conversations/{id}/message/stream")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	log.Info("Server stopped")
	return nil
}
