package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/quorum/backend/pkg/redis"
)

// Headlines scrapes recent headlines for a ticker from the news page.
// Results are cached on the long TTL since headlines move slowly.
func (s *Service) Headlines(ctx context.Context, ticker string, limit int) ([]string, error) {
	var headlines []string
	err := s.cache.GetOrSet(ctx, redis.HeadlinesKey(ticker), &headlines, redis.TTLLong, func() (interface{}, error) {
		return s.scrapeHeadlines(ctx, ticker, limit)
	})
	if err != nil {
		return nil, err
	}
	return headlines, nil
}

// scrapeHeadlines parses h3 headline nodes from the ticker news page.
// ⭐ SSOT: 뉴스 스크래핑은 이 함수에서만
func (s *Service) scrapeHeadlines(ctx context.Context, ticker string, limit int) ([]string, error) {
	fullURL := fmt.Sprintf("%s/quote/%s/news", s.cfg.NewsBaseURL, ticker)

	resp, err := s.client.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": browserUserAgent,
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse HTML failed: %w", err)
	}

	seen := make(map[string]bool)
	var headlines []string
	doc.Find("h3").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		text := strings.TrimSpace(sel.Text())
		if text == "" || seen[text] {
			return true
		}
		seen[text] = true
		headlines = append(headlines, text)
		return len(headlines) < limit
	})

	s.logger.WithFields(map[string]interface{}{
		"ticker": ticker,
		"count":  len(headlines),
	}).Debug("Scraped headlines")
	return headlines, nil
}
