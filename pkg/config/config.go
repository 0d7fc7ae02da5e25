package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: 모든 환경변수는 여기서만 읽음
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// OpenRouter (LLM gateway)
	OpenRouter OpenRouterConfig

	// Council panel composition
	Council CouncilConfig

	// Market data
	Market MarketConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// OpenRouterConfig holds the LLM gateway configuration
type OpenRouterConfig struct {
	APIKey     string
	BaseURL    string
	Referer    string
	Timeout    time.Duration // per-agent call budget
	Simulation bool          // canned responses, no network
}

// CouncilConfig maps council roles to model identities
// ⭐ SSOT: 역할 → 모델 매핑은 여기서만
type CouncilConfig struct {
	QuantModel    string
	RiskModel     string
	MacroModel    string
	ChairmanModel string
	TitleModel    string

	// Generalist analysts added when the reduced panel flag is off
	GeneralistModels []string

	// Episodic memory entries injected into the deliberation context
	MemoryLimit int
}

// MarketConfig holds market snapshot configuration
type MarketConfig struct {
	QuoteBaseURL string
	NewsBaseURL  string
	Watchlist    []string
	SnapshotTTL  time.Duration
}

// Load reads configuration from environment variables
// ⭐ SSOT: 이 함수만 os.Getenv()를 호출함
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8090"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "quorum"),
			User:            getEnv("DB_USER", "quorum"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
		},

		// OpenRouter
		OpenRouter: OpenRouterConfig{
			APIKey:     getEnv("OPENROUTER_API_KEY", ""),
			BaseURL:    getEnv("OPENROUTER_API_URL", "https://openrouter.ai/api/v1/chat/completions"),
			Referer:    getEnv("OPENROUTER_REFERER", "http://localhost:5173"),
			Timeout:    getEnvAsDuration("OPENROUTER_TIMEOUT", "60s"),
			Simulation: getEnvAsBool("SIMULATION_MODE", false),
		},

		// Council
		Council: CouncilConfig{
			QuantModel:       getEnv("AGENT_QUANT_MODEL", "anthropic/claude-sonnet-4"),
			RiskModel:        getEnv("AGENT_RISK_MODEL", "anthropic/claude-sonnet-4"),
			MacroModel:       getEnv("AGENT_MACRO_MODEL", "openai/gpt-4o"),
			ChairmanModel:    getEnv("AGENT_CHAIRMAN_MODEL", "anthropic/claude-sonnet-4"),
			TitleModel:       getEnv("AGENT_TITLE_MODEL", "google/gemini-2.0-flash"),
			GeneralistModels: getEnvAsList("COUNCIL_GENERALIST_MODELS", "openai/gpt-4o,x-ai/grok-3,google/gemini-2.0-flash"),
			MemoryLimit:      getEnvAsInt("COUNCIL_MEMORY_LIMIT", 3),
		},

		// Market data
		Market: MarketConfig{
			QuoteBaseURL: getEnv("QUOTE_BASE_URL", "https://query1.finance.yahoo.com"),
			NewsBaseURL:  getEnv("NEWS_BASE_URL", "https://finance.yahoo.com"),
			Watchlist:    getEnvAsList("MARKET_WATCHLIST", "NVDA,MSFT,AAPL,VOO,SCHD"),
			SnapshotTTL:  getEnvAsDuration("MARKET_SNAPSHOT_TTL", "5m"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	// A live council needs either an API key or simulation mode
	if !c.OpenRouter.Simulation && c.OpenRouter.APIKey == "" {
		return fmt.Errorf("OPENROUTER_API_KEY is required unless SIMULATION_MODE=true")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",         // Current directory
		"backend/.env", // From project root
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}

func getEnvAsList(key string, defaultValue string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
