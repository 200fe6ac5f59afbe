package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LUCERNA_PROVIDER_APIKEY", "")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Provider.BaseURL)
	assert.Equal(t, 64, cfg.Cache.Size)
	assert.Equal(t, 5, cfg.Orchestrator.MaxToolRounds)
	assert.Equal(t, -1, cfg.Orchestrator.DefaultWindow)
}

func TestLoad_OverridesFromEnv(t *testing.T) {
	t.Setenv("LUCERNA_PROVIDER_APIKEY", "sk-test")
	t.Setenv("LUCERNA_CACHE_SIZE", "128")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.Provider.APIKey)
	assert.Equal(t, 128, cfg.Cache.Size)
}

func TestExpandHome(t *testing.T) {
	assert.Equal(t, "/abs/path", ExpandHome("/abs/path"))
	assert.NotEqual(t, "~", ExpandHome("~"))
}
