package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	configFile string
	env        string
	verbose    bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "council",
	Short: "Quorum - 멀티 에이전트 투자 심의 엔진",
	Long: `Quorum Unified CLI

Go BFF 기반 멀티 에이전트 LLM 심의 시스템.
3단계 파이프라인: 독립 의견 수집 → 익명 상호 평가 → 의장 종합.

Usage:
  go run ./cmd/council [command]

Examples:
  go run ./cmd/council api
  go run ./cmd/council ask "Should I buy NVDA?"
  go run ./cmd/council cleanup --days 90`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default is .env)")
	rootCmd.PersistentFlags().StringVar(&env, "env", "development", "environment (development|staging|production)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
