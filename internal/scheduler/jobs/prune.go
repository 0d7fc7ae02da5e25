package jobs

import (
	"context"
	"time"

	"github.com/wonny/quorum/backend/internal/storage"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// ConversationPruneJob deletes conversations that have been idle too long.
type ConversationPruneJob struct {
	repo   *storage.Repository
	maxAge time.Duration
	logger *logger.Logger
}

// NewConversationPruneJob creates a new prune job
func NewConversationPruneJob(repo *storage.Repository, maxAge time.Duration, log *logger.Logger) *ConversationPruneJob {
	return &ConversationPruneJob{
		repo:   repo,
		maxAge: maxAge,
		logger: log,
	}
}

// Name returns the job name
func (j *ConversationPruneJob) Name() string {
	return "conversation_prune"
}

// Schedule returns the cron schedule (daily at 03:00)
func (j *ConversationPruneJob) Schedule() string {
	return "0 0 3 * * *"
}

// Run executes the prune
func (j *ConversationPruneJob) Run(ctx context.Context) error {
	removed, err := j.repo.Prune(ctx, j.maxAge)
	if err != nil {
		return err
	}

	if removed > 0 {
		j.logger.WithField("removed", removed).Info("Pruned idle conversations")
	}

	return nil
}
