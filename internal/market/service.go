package market

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/httputil"
	"github.com/wonny/quorum/backend/pkg/logger"
	"github.com/wonny/quorum/backend/pkg/redis"
)

// Service fetches market snapshots for the council context.
// ⭐ SSOT: 시세/뉴스 외부 호출은 이 서비스를 통해서만
type Service struct {
	client *httputil.Client
	cache  *redis.Cache
	cfg    config.MarketConfig
	logger *logger.Logger

	// Concurrent requests for the same ticker share one upstream fetch.
	group singleflight.Group
}

// NewService creates a market service over the shared HTTP client and cache.
func NewService(client *httputil.Client, cache *redis.Cache, cfg config.MarketConfig, log *logger.Logger) *Service {
	return &Service{
		client: client,
		cache:  cache,
		cfg:    cfg,
		logger: log,
	}
}

// Snapshot returns the cached snapshot for a ticker or fetches it.
func (s *Service) Snapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	var cached Snapshot
	found, err := s.cache.Get(ctx, redis.SnapshotKey(ticker), &cached)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Snapshot cache read failed")
	}
	if found {
		return &cached, nil
	}

	result, err, _ := s.group.Do(ticker, func() (interface{}, error) {
		return s.fetchSnapshot(ctx, ticker)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Snapshot), nil
}

// fetchSnapshot assembles quote + headlines from upstream and caches it.
// Headlines are best effort; a quote failure fails the snapshot.
func (s *Service) fetchSnapshot(ctx context.Context, ticker string) (*Snapshot, error) {
	quote, err := s.fetchQuote(ctx, ticker)
	if err != nil {
		return nil, fmt.Errorf("quote fetch for %s failed: %w", ticker, err)
	}

	headlines, err := s.Headlines(ctx, ticker, 5)
	if err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Headlines fetch failed")
		headlines = nil
	}

	snapshot := &Snapshot{
		Quote:     *quote,
		Headlines: headlines,
		FetchedAt: time.Now().UTC(),
	}

	if err := s.cache.Set(ctx, redis.SnapshotKey(ticker), snapshot, s.cfg.SnapshotTTL); err != nil {
		s.logger.WithError(err).WithField("ticker", ticker).Warn("Snapshot cache write failed")
	}

	return snapshot, nil
}

// Warm pre-populates the snapshot cache for the configured watchlist.
func (s *Service) Warm(ctx context.Context) error {
	var failed int
	for _, ticker := range s.cfg.Watchlist {
		if _, err := s.Snapshot(ctx, ticker); err != nil {
			s.logger.WithError(err).WithField("ticker", ticker).Warn("Snapshot warmup failed")
			failed++
		}
	}
	if failed == len(s.cfg.Watchlist) && failed > 0 {
		return fmt.Errorf("all %d watchlist snapshots failed", failed)
	}
	return nil
}
