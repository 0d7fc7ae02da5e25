package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/quorum/backend/internal/storage"
	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/database"
)

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "오래된 대화 정리",
	Long: `일정 기간 이상 갱신되지 않은 대화를 삭제합니다.

Example:
  go run ./cmd/council cleanup
  go run ./cmd/council cleanup --days 30`,
	RunE: runCleanup,
}

var cleanupDays int

func init() {
	rootCmd.AddCommand(cleanupCmd)

	// Flags
	cleanupCmd.Flags().IntVar(&cleanupDays, "days", 90, "이 일수 이상 갱신 없는 대화 삭제")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Conversation Cleanup ===")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("❌ Failed to load config: %w", err)
	}

	// Create database connection
	db, err := database.New(cfg)
	if err != nil {
		return fmt.Errorf("❌ Failed to connect to database: %w", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo := storage.NewRepository(db.Pool)
	maxAge := time.Duration(cleanupDays) * 24 * time.Hour

	fmt.Printf("🗑️ Pruning conversations idle for more than %d days...\n", cleanupDays)

	removed, err := repo.Prune(ctx, maxAge)
	if err != nil {
		return fmt.Errorf("❌ Failed to prune conversations: %w", err)
	}

	fmt.Printf("✅ Deleted %d conversations\n", removed)
	return nil
}
