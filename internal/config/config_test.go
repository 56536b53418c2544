package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("MODEL_ID", "")
	t.Setenv("MAX_TOOL_ROUNDS", "")

	cfg := Load()

	assert.Equal(t, "https://api.anthropic.com", cfg.AnthropicBaseURL)
	assert.Equal(t, "claude-sonnet-4-20250514", cfg.ModelID)
	assert.Equal(t, 4096, cfg.MaxOutputTokens)
	assert.Equal(t, 10, cfg.MaxToolRounds)
	assert.Equal(t, 120*time.Second, cfg.LLMTimeout)
	assert.Equal(t, ":memory:", cfg.DatabaseDSN)
	assert.Equal(t, "visualizations", cfg.ChartDir)
	assert.Equal(t, 8080, cfg.HTTPPort)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "key")
	t.Setenv("MODEL_ID", "claude-test")
	t.Setenv("MAX_TOOL_ROUNDS", "3")
	t.Setenv("LLM_TIMEOUT_MS", "5000")

	cfg := Load()

	assert.Equal(t, "key", cfg.AnthropicAPIKey)
	assert.Equal(t, "claude-test", cfg.ModelID)
	assert.Equal(t, 3, cfg.MaxToolRounds)
	assert.Equal(t, 5*time.Second, cfg.LLMTimeout)
}

func TestLoadBadIntFallsBack(t *testing.T) {
	t.Setenv("MAX_TOOL_ROUNDS", "many")

	cfg := Load()
	assert.Equal(t, 10, cfg.MaxToolRounds)
}

func TestValidate(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "key")
	cfg := Load()
	require.NoError(t, cfg.Validate())

	cfg.AnthropicAPIKey = ""
	assert.Error(t, cfg.Validate())

	cfg.AnthropicAPIKey = "key"
	cfg.MaxToolRounds = 0
	assert.Error(t, cfg.Validate())

	cfg.MaxToolRounds = 5
	cfg.MaxOutputTokens = -1
	assert.Error(t, cfg.Validate())
}
