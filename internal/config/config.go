// Package config provides configuration for the analysis agent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the agent configuration.
type Config struct {
	// Completion service
	AnthropicAPIKey  string
	AnthropicBaseURL string
	ModelID          string
	MaxOutputTokens  int

	// Turn loop
	MaxToolRounds int
	LLMTimeout    time.Duration
	ToolTimeout   time.Duration

	// Dataset
	DatasetDir  string
	DatasetURL  string
	DatabaseDSN string

	// Visualization output
	ChartDir string

	// HTTP server
	HTTPPort int
}

// Load loads configuration from environment variables.
func Load() *Config {
	return &Config{
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicBaseURL: getEnv("ANTHROPIC_BASE_URL", "https://api.anthropic.com"),
		ModelID:          getEnv("MODEL_ID", "claude-sonnet-4-20250514"),
		MaxOutputTokens:  getEnvInt("MAX_OUTPUT_TOKENS", 4096),
		MaxToolRounds:    getEnvInt("MAX_TOOL_ROUNDS", 10),
		LLMTimeout:       time.Duration(getEnvInt("LLM_TIMEOUT_MS", 120000)) * time.Millisecond,
		ToolTimeout:      time.Duration(getEnvInt("TOOL_TIMEOUT_MS", 30000)) * time.Millisecond,
		DatasetDir:       getEnv("DATASET_DIR", "./data"),
		DatasetURL:       getEnv("DATASET_URL", ""),
		DatabaseDSN:      getEnv("DATABASE_DSN", ":memory:"),
		ChartDir:         getEnv("CHART_DIR", "visualizations"),
		HTTPPort:         getEnvInt("HTTP_PORT", 8080),
	}
}

// Validate checks the fields a running agent cannot do without.
func (c *Config) Validate() error {
	if c.AnthropicAPIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("MAX_TOOL_ROUNDS must be positive, got %d", c.MaxToolRounds)
	}
	if c.MaxOutputTokens <= 0 {
		return fmt.Errorf("MAX_OUTPUT_TOKENS must be positive, got %d", c.MaxOutputTokens)
	}
	return nil
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
