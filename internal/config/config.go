// Package config provides configuration for the copilot service.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration. Instance credentials are
// not configured here: the n8n base URL and API key arrive with each
// session's connect request and live only in that session.
type Config struct {
	// Server settings
	HTTPPort int

	// Model endpoint settings
	LLMBaseURL string
	LLMAPIKey  string
	LLMModel   string
	LLMTimeout time.Duration
	Mode       string // MOCK replaces the model endpoint with a scriptable stub

	// Web search settings
	SearchBaseURL string

	// Agent settings
	MaxIterations int
	TurnTimeout   time.Duration
	ToolTimeout   time.Duration
	ReaderTimeout time.Duration
	HistoryBudget int

	// Ledger settings
	LedgerDSN string

	// Logging
	LogLevel string
}

// Load loads configuration from the environment, reading a .env file
// first if present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		HTTPPort:      getEnvInt("HTTP_PORT", 8080),
		LLMBaseURL:    getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMAPIKey:     getEnv("LLM_API_KEY", ""),
		LLMModel:      getEnv("LLM_MODEL", "gpt-4o-mini"),
		LLMTimeout:    time.Duration(getEnvInt("LLM_TIMEOUT_MS", 60000)) * time.Millisecond,
		Mode:          getEnv("COPILOT_MODE", ""),
		SearchBaseURL: getEnv("SEARCH_BASE_URL", ""),
		MaxIterations: getEnvInt("MAX_TOOL_ITERATIONS", 6),
		TurnTimeout:   time.Duration(getEnvInt("TURN_TIMEOUT_MS", 180000)) * time.Millisecond,
		ToolTimeout:   time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 20000)) * time.Millisecond,
		ReaderTimeout: time.Duration(getEnvInt("N8N_TIMEOUT_MS", 15000)) * time.Millisecond,
		HistoryBudget: getEnvInt("HISTORY_BUDGET_CHARS", 48000),
		LedgerDSN:     getEnv("LEDGER_DSN", "file::memory:?cache=shared"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
