package market

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/httputil"
	"github.com/wonny/quorum/backend/pkg/logger"
	"github.com/wonny/quorum/backend/pkg/redis"
)

const quoteBody = `{
	"quoteResponse": {
		"result": [{
			"symbol": "NVDA",
			"shortName": "NVIDIA Corporation",
			"regularMarketPrice": 903.5,
			"regularMarketChangePercent": -2.31,
			"regularMarketVolume": 41250000,
			"marketCap": 2230000000000,
			"trailingPE": 68.4,
			"fiftyDayAverage": 880.12,
			"twoHundredDayAverage": 720.55,
			"fiftyTwoWeekHigh": 974.0,
			"fiftyTwoWeekLow": 390.1
		}],
		"error": null
	}
}`

const newsBody = `<html><body>
	<h3><a href="/news/1">NVDA beats earnings expectations</a></h3>
	<h3><a href="/news/2">Analysts split on semiconductor outlook</a></h3>
	<h3><a href="/news/1">NVDA beats earnings expectations</a></h3>
	<h3>   </h3>
</body></html>`

func testService(t *testing.T, handler http.Handler) *Service {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.Config{}
	log := logger.Nop()
	client := httputil.New(cfg, log).DisableRetry()
	cache := redis.NewCache(redis.Disabled(), "quorum")

	return NewService(client, cache, config.MarketConfig{
		QuoteBaseURL: server.URL,
		NewsBaseURL:  server.URL,
		Watchlist:    []string{"NVDA"},
		SnapshotTTL:  time.Minute,
	}, log)
}

func quoteAndNewsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v7/finance/quote", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, quoteBody)
	})
	mux.HandleFunc("/quote/NVDA/news", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, newsBody)
	})
	return mux
}

func TestSnapshot(t *testing.T) {
	s := testService(t, quoteAndNewsHandler())

	snapshot, err := s.Snapshot(context.Background(), "NVDA")
	require.NoError(t, err)

	assert.Equal(t, "NVDA", snapshot.Quote.Ticker)
	assert.Equal(t, "NVIDIA Corporation", snapshot.Quote.Name)
	assert.InDelta(t, 903.5, snapshot.Quote.Price, 1e-9)
	assert.InDelta(t, -2.31, snapshot.Quote.ChangePercent, 1e-9)
	assert.Equal(t, int64(41250000), snapshot.Quote.Volume)
	assert.False(t, snapshot.FetchedAt.IsZero())

	// Duplicate and blank headline nodes are dropped.
	require.Len(t, snapshot.Headlines, 2)
	assert.Equal(t, "NVDA beats earnings expectations", snapshot.Headlines[0])
}

func TestSnapshotQuoteFailure(t *testing.T) {
	s := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))

	_, err := s.Snapshot(context.Background(), "NVDA")
	assert.Error(t, err)
}

func TestSnapshotNewsFailureIsTolerated(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v7/finance/quote", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, quoteBody)
	})
	// No news route: headline scraping 404s.
	s := testService(t, mux)

	snapshot, err := s.Snapshot(context.Background(), "NVDA")
	require.NoError(t, err)
	assert.Empty(t, snapshot.Headlines)
}

func TestSnapshotEmptyResult(t *testing.T) {
	s := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"quoteResponse": {"result": [], "error": null}}`)
	}))

	_, err := s.Snapshot(context.Background(), "NVDA")
	assert.ErrorContains(t, err, "no quote returned")
}

func TestContext(t *testing.T) {
	s := testService(t, quoteAndNewsHandler())

	blob, err := s.Context(context.Background())
	require.NoError(t, err)

	assert.Contains(t, blob, "=== NVDA (NVIDIA Corporation) ===")
	assert.Contains(t, blob, "Price: $903.50 (-2.31%)")
	assert.Contains(t, blob, "SMA 200: $720.55")
	assert.Contains(t, blob, "52-week range: $390.10 - $974.00")
	assert.Contains(t, blob, "- NVDA beats earnings expectations")
}

func TestContextAllTickersFailed(t *testing.T) {
	s := testService(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusInternalServerError)
	}))

	_, err := s.Context(context.Background())
	assert.Error(t, err)
}

func TestContextEmptyWatchlist(t *testing.T) {
	s := testService(t, quoteAndNewsHandler())
	s.cfg.Watchlist = nil

	blob, err := s.Context(context.Background())
	require.NoError(t, err)
	assert.Empty(t, blob)
}
