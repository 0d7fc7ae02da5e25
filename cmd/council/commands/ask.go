package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/quorum/backend/internal/council"
	"github.com/wonny/quorum/backend/internal/llm"
	"github.com/wonny/quorum/backend/internal/market"
	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/httputil"
	"github.com/wonny/quorum/backend/pkg/logger"
	"github.com/wonny/quorum/backend/pkg/redis"
)

// askCmd runs a one-shot deliberation from the terminal
var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "1회성 심의 실행",
	Long: `터미널에서 1회성 심의를 실행합니다. DB 없이 동작합니다.

이 명령어는:
- 패널 의견 수집 (Stage 1)
- 익명 상호 평가 (Stage 2)
- 의장 종합 판정 출력 (Stage 3)

Example:
  go run ./cmd/council ask "Should I buy NVDA now?"
  go run ./cmd/council ask --tutor --reduced "Is VOO safe?"
  SIMULATION_MODE=true go run ./cmd/council ask "test question"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

var (
	askTutor    bool
	askReduced  bool
	askNoMarket bool
)

func init() {
	rootCmd.AddCommand(askCmd)

	// Flags
	askCmd.Flags().BoolVar(&askTutor, "tutor", false, "평이한 설명 추가 (tutor mode)")
	askCmd.Flags().BoolVar(&askReduced, "reduced", false, "전문가 3인 패널만 사용")
	askCmd.Flags().BoolVar(&askNoMarket, "no-market", false, "마켓 컨텍스트 없이 실행")
}

func runAsk(cmd *cobra.Command, args []string) error {
	question := strings.Join(args, " ")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	// 3. Create LLM invoker (no Redis for a one-shot run)
	var invoker llm.Invoker
	if cfg.OpenRouter.Simulation {
		fmt.Println("⚠️  SIMULATION MODE")
		invoker = llm.NewSimulator()
	} else {
		invoker = llm.NewClient(cfg, log, nil)
	}

	// 4. Create market context provider
	var provider council.ContextProvider
	if !askNoMarket {
		httpClient := httputil.New(cfg, log)
		cache := redis.NewCache(redis.Disabled(), "quorum")
		provider = market.NewService(httpClient, cache, cfg.Market, log)
	}

	// 5. Run the deliberation, printing stage progress
	councilCore := council.New(invoker, cfg, log)
	orchestrator := council.NewOrchestrator(councilCore, provider, nil, nil, log)

	opts := council.RunOptions{TutorMode: askTutor, ReducedPanel: askReduced}

	fmt.Printf("\n🏛  Council deliberating: %s\n\n", question)

	var rendered string
	for event := range orchestrator.DeliberateStream(context.Background(), "", question, opts) {
		switch event.Type {
		case council.EventStatus:
			fmt.Printf("⏳ Stage %d: %s\n", event.Stage, event.Message)
		case council.EventError:
			return fmt.Errorf("deliberation failed: %s", event.Message)
		case council.EventResult:
			rendered, _ = event.Content.(string)
		}
	}

	fmt.Println()
	fmt.Println(rendered)
	return nil
}
