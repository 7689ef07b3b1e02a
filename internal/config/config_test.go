package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"PORT", "API_PORT", "LLM_PROVIDER", "ARK_API_KEY", "ARK_ACCESS_KEY", "ARK_SECRET_KEY",
		"Model", "DEFAULT_MODEL", "OPENAI_BASE_URL", "OLLAMA_HOST", "LLM_TIMEOUT", "LLM_TEMPERATURE",
		"ARK_TEMPERATURE", "DATABASE_URL", "SESSION_HEARTBEAT_INTERVAL", "SESSION_READ_TIMEOUT",
		"WORKER_POOL_SIZE", "WORKER_QUEUE_SIZE", "WHISPER_MAX_RETRIES",
	} {
		t.Setenv(key, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8101", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "http://localhost:11434/v1", cfg.AI.OpenAIBaseURL)
	assert.False(t, cfg.AI.Enabled(), "no model configured")
	assert.Equal(t, "http://localhost:8100", cfg.Catalog.BaseURL)
	assert.Equal(t, 30*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, 120*time.Second, cfg.Session.ReadTimeout)
	assert.Equal(t, 3, cfg.Transcriber.MaxRetries)
	assert.Equal(t, 8, cfg.Worker.PoolSize)
}

func TestLoadArkSelectedWhenCredentialsPresent(t *testing.T) {
	clearEnv(t)
	t.Setenv("ARK_API_KEY", "key")
	t.Setenv("Model", "doubao")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ProviderArk, cfg.AI.Provider)
	assert.True(t, cfg.AI.Enabled())
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "127.0.0.1:9000")
	t.Setenv("LLM_PROVIDER", "OpenAI")
	t.Setenv("DEFAULT_MODEL", "qwen2.5:7b")
	t.Setenv("OLLAMA_HOST", "http://ollama:11434/")
	t.Setenv("SESSION_HEARTBEAT_INTERVAL", "5")
	t.Setenv("SESSION_READ_TIMEOUT", "1m")
	t.Setenv("WORKER_POOL_SIZE", "0")
	t.Setenv("DATABASE_URL", "http://db:8100/")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, ProviderOpenAI, cfg.AI.Provider)
	assert.Equal(t, "qwen2.5:7b", cfg.AI.Model)
	assert.Equal(t, "http://ollama:11434/v1", cfg.AI.OpenAIBaseURL)
	assert.True(t, cfg.AI.Enabled())
	assert.Equal(t, 5*time.Second, cfg.Session.HeartbeatInterval)
	assert.Equal(t, time.Minute, cfg.Session.ReadTimeout)
	assert.Equal(t, 1, cfg.Worker.PoolSize)
	assert.Equal(t, "http://db:8100", cfg.Catalog.BaseURL)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"PORT":                       "80 80",
		"LLM_PROVIDER":               "mystery",
		"SESSION_HEARTBEAT_INTERVAL": "soon",
		"SESSION_READ_TIMEOUT":       "-5s",
		"WORKER_QUEUE_SIZE":          "many",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
