package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// quoteResponse mirrors the Yahoo-style quote API envelope.
type quoteResponse struct {
	QuoteResponse struct {
		Result []quoteResult `json:"result"`
		Error  *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"quoteResponse"`
}

type quoteResult struct {
	Symbol                     string  `json:"symbol"`
	ShortName                  string  `json:"shortName"`
	RegularMarketPrice         float64 `json:"regularMarketPrice"`
	RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
	RegularMarketVolume        int64   `json:"regularMarketVolume"`
	MarketCap                  int64   `json:"marketCap"`
	TrailingPE                 float64 `json:"trailingPE"`
	FiftyDayAverage            float64 `json:"fiftyDayAverage"`
	TwoHundredDayAverage       float64 `json:"twoHundredDayAverage"`
	FiftyTwoWeekHigh           float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow            float64 `json:"fiftyTwoWeekLow"`
}

// fetchQuote fetches one ticker from the quote API.
// ⭐ SSOT: 시세 API 호출은 이 함수에서만
func (s *Service) fetchQuote(ctx context.Context, ticker string) (*Quote, error) {
	fullURL := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", s.cfg.QuoteBaseURL, url.QueryEscape(ticker))

	resp, err := s.client.GetWithHeaders(ctx, fullURL, map[string]string{
		"User-Agent": browserUserAgent,
		"Accept":     "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var parsed quoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response failed: %w", err)
	}

	if parsed.QuoteResponse.Error != nil {
		return nil, fmt.Errorf("quote API error: %s", parsed.QuoteResponse.Error.Description)
	}
	if len(parsed.QuoteResponse.Result) == 0 {
		return nil, fmt.Errorf("no quote returned for %s", ticker)
	}

	r := parsed.QuoteResponse.Result[0]
	quote := &Quote{
		Ticker:               r.Symbol,
		Name:                 r.ShortName,
		Price:                r.RegularMarketPrice,
		ChangePercent:        r.RegularMarketChangePercent,
		Volume:               r.RegularMarketVolume,
		MarketCap:            r.MarketCap,
		TrailingPE:           r.TrailingPE,
		FiftyDayAverage:      r.FiftyDayAverage,
		TwoHundredDayAverage: r.TwoHundredDayAverage,
		FiftyTwoWeekHigh:     r.FiftyTwoWeekHigh,
		FiftyTwoWeekLow:      r.FiftyTwoWeekLow,
	}
	if quote.Ticker == "" {
		quote.Ticker = ticker
	}

	s.logger.WithFields(map[string]interface{}{
		"ticker": quote.Ticker,
		"price":  quote.Price,
	}).Debug("Fetched quote")
	return quote, nil
}

// Quote endpoints reject default Go client identification.
const browserUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36"
