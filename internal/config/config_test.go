package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trialscope/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "console", cfg.Log.Format)

	assert.Equal(t, 4096, cfg.LLM.MaxTokens)
	assert.Equal(t, 120, cfg.LLM.TimeoutSecs)
	assert.Equal(t, "gpt-4o", cfg.LLM.OpenAI.DefaultModel)
	assert.Equal(t, []string{"gpt-4o", "gpt-4-turbo", "gpt-3.5-turbo"}, cfg.LLM.OpenAI.Models)
	assert.Equal(t, "claude-3-sonnet-20240229", cfg.LLM.Anthropic.DefaultModel)
	assert.Len(t, cfg.LLM.Anthropic.Models, 3)

	assert.Equal(t, 20, cfg.PubMed.DefaultResults)
	assert.Equal(t, 400, cfg.PubMed.MaxResults)
	assert.Equal(t, "clinicaltrial[filter]", cfg.PubMed.Filter)

	assert.Equal(t, []string{"eng", "fra", "ara", "spa"}, cfg.OCR.Languages)
	assert.Equal(t, 300, cfg.OCR.DPI)

	assert.Equal(t, 1, cfg.Analysis.Concurrency)
	assert.Equal(t, 5*time.Minute, cfg.Analysis.ItemTimeout)
	assert.False(t, cfg.S3.Enabled())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("TRIALSCOPE_SERVER_PORT", ":9090")
	t.Setenv("TRIALSCOPE_ANALYSIS_CONCURRENCY", "4")
	t.Setenv("TRIALSCOPE_S3_BUCKET", "exports-bucket")
	t.Setenv("TRIALSCOPE_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.True(t, cfg.S3.Enabled())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoad_NCBIFallbackEnv(t *testing.T) {
	t.Setenv("NCBI_EMAIL", "someone@example.org")
	t.Setenv("NCBI_API_KEY", "ncbi-key")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "someone@example.org", cfg.PubMed.Email)
	assert.Equal(t, "ncbi-key", cfg.PubMed.APIKey)
}

func TestLoad_PlatformPort(t *testing.T) {
	t.Setenv("PORT", "5000")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, ":5000", cfg.Server.Port)
}

func TestLoad_ConcurrencyFloor(t *testing.T) {
	t.Setenv("TRIALSCOPE_ANALYSIS_CONCURRENCY", "0")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Analysis.Concurrency)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trialscope.yaml")
	yaml := "pubmed:\n  max_results: 100\nllm:\n  provider: anthropic\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 100, cfg.PubMed.MaxResults)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLLMConfig_ProviderConfig(t *testing.T) {
	cfg := config.LLMConfig{
		TimeoutSecs: 60,
		MaxTokens:   2048,
		Anthropic: config.ModelCatalog{
			BaseURL:      "https://api.anthropic.com/v1",
			DefaultModel: "claude-3-sonnet-20240229",
		},
	}

	pc := cfg.ProviderConfig("anthropic", "sk-ant", "")
	assert.Equal(t, "claude-3-sonnet-20240229", pc.Model)
	assert.Equal(t, "https://api.anthropic.com/v1", pc.BaseURL)
	assert.Equal(t, 60, pc.TimeoutSecs)
	assert.Equal(t, 2048, pc.MaxTokens)

	pc = cfg.ProviderConfig("anthropic", "sk-ant", "claude-3-haiku-20240307")
	assert.Equal(t, "claude-3-haiku-20240307", pc.Model)
}

func TestModelCatalog_Has(t *testing.T) {
	c := config.ModelCatalog{Models: []string{"gpt-4o", "gpt-4-turbo"}}
	assert.True(t, c.Has("gpt-4o"))
	assert.False(t, c.Has("gpt-5"))
}
