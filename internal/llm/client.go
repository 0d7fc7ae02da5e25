// Package llm invokes text-generation agents through the OpenRouter gateway.
// Failures never escape as panics: every call returns a tagged error the
// caller converts into a degraded domain object.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/quorum/backend/pkg/config"
	"github.com/wonny/quorum/backend/pkg/httputil"
	"github.com/wonny/quorum/backend/pkg/logger"
	"github.com/wonny/quorum/backend/pkg/redis"
)

// Message is one turn of a chat exchange.
type Message struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// Result is a successful agent response.
type Result struct {
	Content string
}

// Invoker is the single entry point the council uses to reach an agent.
type Invoker interface {
	Invoke(ctx context.Context, model string, messages []Message, timeout time.Duration) (Result, error)
}

// Client calls the OpenRouter chat-completions API
// ⭐ SSOT: LLM 게이트웨이 호출은 이 클라이언트에서만
type Client struct {
	cfg    config.OpenRouterConfig
	http   *httputil.Client
	logger *logger.Logger

	// Local limiter used when Redis is disabled; the Redis sliding window
	// is attached to the HTTP client when available.
	local *rate.Limiter
}

// NewClient creates an OpenRouter client. When rl is non-nil the shared
// Redis rate limit applies; otherwise a local token bucket guards the API.
func NewClient(cfg *config.Config, log *logger.Logger, rl *redis.RateLimiter) *Client {
	// The transport timeout must sit above the longest per-call budget or
	// it clips long chairman calls before their context deadline.
	httpClient := httputil.NewWithTimeout(cfg, log, cfg.OpenRouter.Timeout+10*time.Second).DisableRetry()
	var local *rate.Limiter
	if rl != nil {
		httpClient = httpClient.WithRateLimiter(rl, redis.OpenRouterRateLimit)
	} else {
		local = rate.NewLimiter(rate.Limit(1), 5) // 1 req/s burst 5
	}

	return &Client{
		cfg:    cfg.OpenRouter,
		http:   httpClient,
		logger: log,
		local:  local,
	}
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Invoke sends one two-message exchange to the named model.
// The per-call timeout bounds the whole request.
func (c *Client) Invoke(ctx context.Context, model string, messages []Message, timeout time.Duration) (Result, error) {
	if timeout <= 0 {
		timeout = c.cfg.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if c.local != nil {
		if err := c.local.Wait(ctx); err != nil {
			return Result{}, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	payload := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: 0.1, // 낮은 온도로 JSON 정확도 확보
		ResponseFormat: &responseFormat{
			Type: "json_object",
		},
	}

	headers := map[string]string{
		"Authorization": "Bearer " + c.cfg.APIKey,
		"HTTP-Referer":  c.cfg.Referer,
		"X-Title":       "Quorum Council",
	}

	resp, err := c.http.PostJSON(ctx, c.cfg.BaseURL, payload, headers)
	if err != nil {
		return Result{}, fmt.Errorf("openrouter request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode != 200 {
		c.logger.WithFields(map[string]interface{}{
			"model":       model,
			"status_code": resp.StatusCode,
		}).Error("OpenRouter returned error status")
		return Result{}, fmt.Errorf("openrouter status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return Result{}, fmt.Errorf("decode response: %w", err)
	}
	if parsed.Error != nil {
		return Result{}, fmt.Errorf("openrouter error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return Result{}, fmt.Errorf("openrouter returned no choices")
	}

	return Result{Content: parsed.Choices[0].Message.Content}, nil
}
