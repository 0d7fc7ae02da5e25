package jobs

import (
	"context"

	"github.com/wonny/quorum/backend/internal/market"
	"github.com/wonny/quorum/backend/pkg/logger"
)

// SnapshotWarmupJob keeps the watchlist snapshot cache hot so a deliberation
// never waits on cold upstream fetches.
type SnapshotWarmupJob struct {
	service *market.Service
	logger  *logger.Logger
}

// NewSnapshotWarmupJob creates a new warmup job
func NewSnapshotWarmupJob(service *market.Service, log *logger.Logger) *SnapshotWarmupJob {
	return &SnapshotWarmupJob{
		service: service,
		logger:  log,
	}
}

// Name returns the job name
func (j *SnapshotWarmupJob) Name() string {
	return "snapshot_warmup"
}

// Schedule returns the cron schedule (every 15 minutes)
func (j *SnapshotWarmupJob) Schedule() string {
	return "0 */15 * * * *"
}

// Run executes the warmup
func (j *SnapshotWarmupJob) Run(ctx context.Context) error {
	j.logger.Debug("Starting snapshot warmup")
	return j.service.Warm(ctx)
}
