package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "local", cfg.LLM.Provider)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 0.7, cfg.Generation.DefaultTemperature)
	assert.Equal(t, 1024, cfg.Generation.DefaultMaxTokens)
	assert.Equal(t, 0.1, cfg.Generation.ClassifierTemperature)
	assert.Equal(t, 64, cfg.Generation.ClassifierMaxTokens)
	assert.Equal(t, 0.9, cfg.Generation.TopP)
	assert.Equal(t, 1.1, cfg.Generation.RepetitionPenalty)
	assert.Equal(t, 30, cfg.Generation.MaxHistory)
	assert.Equal(t, 0.75, cfg.Model.GPUMemoryUtilization)
	assert.Equal(t, 4096, cfg.Model.MaxModelLen)
	assert.Equal(t, 6, cfg.Model.MaxNumSeqs)
	assert.Equal(t, "./credentials.json", cfg.Paths.CredentialsPath)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("MODEL_PATH and PORT", func(t *testing.T) {
		t.Setenv("MODEL_PATH", "/models/llama3-8b")
		t.Setenv("PORT", "9000")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, "/models/llama3-8b", cfg.Model.Path)
		assert.Equal(t, 9000, cfg.Server.Port)
	})

	t.Run("unset variables keep defaults", func(t *testing.T) {
		t.Setenv("MODEL_PATH", "/models/other")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())

		assert.Equal(t, 8000, cfg.Server.Port)
		assert.Equal(t, 0.7, cfg.Generation.DefaultTemperature)
	})

	t.Run("ENFORCE_EAGER accepts yes", func(t *testing.T) {
		t.Setenv("ENFORCE_EAGER", "yes")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.True(t, cfg.Model.EnforceEager)
	})

	t.Run("ENFORCE_EAGER rejects other values", func(t *testing.T) {
		t.Setenv("ENFORCE_EAGER", "maybe")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.False(t, cfg.Model.EnforceEager)
	})

	t.Run("embedding key falls back to Gemini key", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "gm-key")

		cfg := DefaultConfig()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, "gm-key", cfg.Embedding.GenAIAPIKey)
	})
}

func TestLoadLayering(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "sonagent.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: 8100\nmodel:\n  path: /from/yaml\n"), 0644))

	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("MODEL_PATH=/from/dotenv\nTOP_P=0.8\n"), 0644))

	// Process env beats both files
	t.Setenv("TOP_P", "0.95")

	cfg, err := Load(yamlPath, envPath)
	require.NoError(t, err)

	assert.Equal(t, 8100, cfg.Server.Port, "yaml should override default")
	assert.Equal(t, "/from/dotenv", cfg.Model.Path, "dotenv should override yaml")
	assert.Equal(t, 0.95, cfg.Generation.TopP, "process env should override dotenv")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sonagent.yaml")

	want := DefaultConfig()
	want.Server.Port = 8100
	want.LLM.Provider = "gemini"
	want.LLM.GeminiAPIKey = "gm-key"
	want.Embedding.Provider = "genai"
	want.Embedding.TaskType = "RETRIEVAL_DOCUMENT"
	require.NoError(t, want.Save(path))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	got := DefaultConfig()
	require.NoError(t, yaml.Unmarshal(raw, got))

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("config round-trip mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadMissingFilesKeepsDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(filepath.Join(dir, "nope.yaml"), filepath.Join(dir, "nope.env"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestValidate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultConfig().Validate())
	})

	t.Run("empty model path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Model.Path = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LLM.Provider = "vllm"
		assert.Error(t, cfg.Validate())
	})

	t.Run("hosted provider requires key", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.LLM.Provider = "openai"
		assert.Error(t, cfg.Validate())

		cfg.LLM.OpenAIAPIKey = "sk-test"
		assert.NoError(t, cfg.Validate())
	})

	t.Run("port bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Server.Port = 0
		assert.Error(t, cfg.Validate())
		cfg.Server.Port = 70000
		assert.Error(t, cfg.Validate())
	})

	t.Run("temperature bounds", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Generation.DefaultTemperature = 2.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("bad embedding provider", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Embedding.Provider = "word2vec"
		assert.Error(t, cfg.Validate())
	})
}

func TestAddr(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8000
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr())
}
