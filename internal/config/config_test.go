package config_test

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"

	"docuchat/internal/config"
)

func TestLoadConfig(t *testing.T) {
	// Set env var directly to test envconfig logic
	os.Setenv("DB_HOST", "test-host")
	defer os.Unsetenv("DB_HOST")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-host", cfg.DBHost)
}

func TestLoadConfig_FromEnvFile(t *testing.T) {
	// Create a temp .env file
	content := []byte("DB_HOST=loaded-from-file")
	err := os.WriteFile(".env", content, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer os.Remove(".env")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "loaded-from-file", cfg.DBHost)
}

func TestLoadConfig_ProviderKeys(t *testing.T) {
	os.Setenv("OPENAI_API_KEY", "test-key")
	os.Setenv("PRIMARY_PROVIDER", "anthropic")
	defer os.Unsetenv("OPENAI_API_KEY")
	defer os.Unsetenv("PRIMARY_PROVIDER")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, "test-key", cfg.OpenAIAPIKey)
	assert.Equal(t, "anthropic", cfg.PrimaryProvider)
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.Equal(t, 1000, cfg.ChunkSize)
	assert.Equal(t, 200, cfg.ChunkOverlap)
	assert.Equal(t, 10, cfg.TopK)
	assert.Equal(t, 0.5, cfg.MinScore)
	assert.Equal(t, "openai,anthropic,gemini", cfg.FallbackOrder)
}

func TestLoadConfig_Toggles(t *testing.T) {
	os.Setenv("ENABLE_API", "false")
	os.Setenv("ENABLE_PIPELINE", "true")
	os.Setenv("RAG_TOP_K", "5")
	defer os.Unsetenv("ENABLE_API")
	defer os.Unsetenv("ENABLE_PIPELINE")
	defer os.Unsetenv("RAG_TOP_K")

	cfg, err := config.Load()
	assert.NoError(t, err)
	assert.False(t, cfg.EnableAPI)
	assert.True(t, cfg.EnablePipeline)
	assert.Equal(t, 5, cfg.TopK)
}
