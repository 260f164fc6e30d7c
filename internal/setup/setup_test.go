package setup

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonagent/internal/config"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	base := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Paths.DocumentsDir = filepath.Join(base, "documents")
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.OrdersFile = filepath.Join(base, "data", "don_hang.csv")
	cfg.Paths.ProfilesFile = filepath.Join(base, "data", "customer_profiles.json")
	cfg.Paths.CredentialsPath = filepath.Join(base, "credentials.json")
	// Nothing listens here, the backend probe must come back down fast.
	cfg.LLM.BaseURL = "http://127.0.0.1:9/v1"
	return cfg
}

func runOpts(cfg *config.Config, opts Options) Options {
	if opts.EnvFile == "" {
		opts.EnvFile = filepath.Join(filepath.Dir(cfg.Paths.DocumentsDir), ".env")
	}
	if opts.Writer == nil {
		opts.Writer = &bytes.Buffer{}
	}
	return opts
}

func TestRunScaffoldsWorkspace(t *testing.T) {
	cfg := testConfig(t)
	var out bytes.Buffer
	opts := runOpts(cfg, Options{Yes: true, Writer: &out})

	res, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)

	assert.Len(t, res.CreatedDirs, 3)
	assert.DirExists(t, cfg.Paths.DocumentsDir)
	assert.DirExists(t, cfg.Paths.DataDir)
	assert.DirExists(t, cfg.Paths.LogDir)

	assert.True(t, res.EnvCreated)
	data, err := os.ReadFile(opts.EnvFile)
	require.NoError(t, err)
	env := string(data)
	assert.Contains(t, env, "MODEL_PATH="+cfg.Model.Path)
	assert.Contains(t, env, "PORT=8000")
	assert.Contains(t, env, "PHANLOAI_TEMPERATURE=0.1")
	assert.Contains(t, env, "EMBEDDING_PROVIDER=none")

	assert.True(t, res.WroteDocuments)
	entries, err := os.ReadDir(cfg.Paths.DocumentsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 5)

	assert.True(t, res.WroteOrders)
	assert.FileExists(t, cfg.Paths.OrdersFile)

	assert.False(t, res.HasCredentials)
	assert.False(t, res.BackendUp)
	assert.Contains(t, out.String(), "Setup complete")
}

func TestRunIsIdempotent(t *testing.T) {
	cfg := testConfig(t)
	opts := runOpts(cfg, Options{Yes: true})

	_, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)
	before, err := os.ReadFile(opts.EnvFile)
	require.NoError(t, err)

	res, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)

	assert.Empty(t, res.CreatedDirs)
	assert.False(t, res.EnvCreated)
	assert.False(t, res.EnvUpdated)
	assert.False(t, res.WroteDocuments)
	assert.False(t, res.WroteOrders)

	after, err := os.ReadFile(opts.EnvFile)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
}

func TestModelPathPrompt(t *testing.T) {
	t.Run("answer is used", func(t *testing.T) {
		cfg := testConfig(t)
		opts := runOpts(cfg, Options{Reader: bufio.NewReader(strings.NewReader("models/vi-llama3\n"))})

		res, err := Run(context.Background(), cfg, opts)
		require.NoError(t, err)
		assert.Equal(t, "models/vi-llama3", res.ModelPath)

		data, err := os.ReadFile(opts.EnvFile)
		require.NoError(t, err)
		assert.Contains(t, string(data), "MODEL_PATH=models/vi-llama3")
	})

	t.Run("empty answer keeps the default", func(t *testing.T) {
		cfg := testConfig(t)
		opts := runOpts(cfg, Options{Reader: bufio.NewReader(strings.NewReader("\n"))})

		res, err := Run(context.Background(), cfg, opts)
		require.NoError(t, err)
		assert.Equal(t, cfg.Model.Path, res.ModelPath)
	})

	t.Run("flag wins over the prompt", func(t *testing.T) {
		cfg := testConfig(t)
		opts := runOpts(cfg, Options{
			ModelPath: "models/from-flag",
			Reader:    bufio.NewReader(strings.NewReader("models/from-prompt\n")),
		})

		res, err := Run(context.Background(), cfg, opts)
		require.NoError(t, err)
		assert.Equal(t, "models/from-flag", res.ModelPath)
	})
}

func TestExistingEnvKeepsUserEdits(t *testing.T) {
	cfg := testConfig(t)
	opts := runOpts(cfg, Options{Yes: true, ModelPath: "models/new"})

	existing := "# my tuned settings\nPORT=9999\nMODEL_PATH=models/old\nDEFAULT_TEMPERATURE=0.3\n"
	require.NoError(t, os.WriteFile(opts.EnvFile, []byte(existing), 0o644))

	res, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.False(t, res.EnvCreated)
	assert.True(t, res.EnvUpdated)

	data, err := os.ReadFile(opts.EnvFile)
	require.NoError(t, err)
	env := string(data)
	assert.Contains(t, env, "# my tuned settings\n")
	assert.Contains(t, env, "PORT=9999\n")
	assert.Contains(t, env, "DEFAULT_TEMPERATURE=0.3\n")
	assert.Contains(t, env, "MODEL_PATH=models/new\n")
	assert.NotContains(t, env, "models/old")
}

func TestExistingEnvWithoutModelPathGetsOne(t *testing.T) {
	cfg := testConfig(t)
	opts := runOpts(cfg, Options{Yes: true, ModelPath: "models/appended"})

	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("PORT=8800\n"), 0o644))

	res, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.True(t, res.EnvUpdated)

	data, err := os.ReadFile(opts.EnvFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "PORT=8800\n")
	assert.Contains(t, string(data), "MODEL_PATH=models/appended\n")
}

func TestEnvModelPathIsPromptDefault(t *testing.T) {
	cfg := testConfig(t)
	opts := runOpts(cfg, Options{Yes: true})

	require.NoError(t, os.WriteFile(opts.EnvFile, []byte("MODEL_PATH=models/kept\n"), 0o644))

	res, err := Run(context.Background(), cfg, opts)
	require.NoError(t, err)
	assert.Equal(t, "models/kept", res.ModelPath)
	assert.False(t, res.EnvUpdated)
}

func TestCredentialsDetected(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.Paths.CredentialsPath, []byte("{}"), 0o600))

	var out bytes.Buffer
	res, err := Run(context.Background(), cfg, runOpts(cfg, Options{Yes: true, Writer: &out}))
	require.NoError(t, err)
	assert.True(t, res.HasCredentials)
	assert.Contains(t, out.String(), "Google Sheets")
}

func TestSampleDataSkippedWhenPresent(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.MkdirAll(cfg.Paths.DocumentsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Paths.DocumentsDir, "gia_son.txt"), []byte("bảng giá"), 0o644))

	res, err := Run(context.Background(), cfg, runOpts(cfg, Options{Yes: true}))
	require.NoError(t, err)
	assert.False(t, res.WroteDocuments)

	entries, err := os.ReadDir(cfg.Paths.DocumentsDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
