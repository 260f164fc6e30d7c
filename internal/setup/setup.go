// Package setup provisions the runtime workspace for the agent server:
// directories, the .env template, sample documents and orders, and a
// status report on the optional integrations. Re-running is safe; an
// existing .env only has its MODEL_PATH line replaced.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"sonagent/internal/config"
	"sonagent/internal/docstore"
	"sonagent/internal/llm"
	"sonagent/internal/logging"
	"sonagent/internal/orders"
)

const backendPingTimeout = 3 * time.Second

// Options controls one provisioning run.
type Options struct {
	EnvFile   string // defaults to .env
	ModelPath string // skips the prompt when set
	Yes       bool   // non-interactive, keep current values

	Reader *bufio.Reader // prompt input, defaults to stdin
	Writer io.Writer     // progress output, defaults to stdout
}

// Result reports what the run changed and found.
type Result struct {
	ModelPath      string
	CreatedDirs    []string
	EnvCreated     bool
	EnvUpdated     bool
	WroteDocuments bool
	WroteOrders    bool
	HasCredentials bool
	BackendUp      bool
}

// Run provisions the workspace described by cfg. Scaffold failures are
// fatal; missing integrations only end up in the report.
func Run(ctx context.Context, cfg *config.Config, opts Options) (*Result, error) {
	if opts.EnvFile == "" {
		opts.EnvFile = ".env"
	}
	if opts.Reader == nil {
		opts.Reader = bufio.NewReader(os.Stdin)
	}
	if opts.Writer == nil {
		opts.Writer = os.Stdout
	}
	out := opts.Writer
	res := &Result{}

	fmt.Fprintln(out, "sonagent setup")
	fmt.Fprintln(out, "==============")

	if err := scaffoldDirs(cfg, opts, res); err != nil {
		return nil, err
	}

	modelPath, err := resolveModelPath(cfg, opts)
	if err != nil {
		return nil, err
	}
	res.ModelPath = modelPath

	if err := writeEnvFile(opts, modelPath, res); err != nil {
		return nil, err
	}

	if err := writeSamples(cfg, opts, res); err != nil {
		return nil, err
	}

	checkIntegrations(ctx, cfg, opts, modelPath, res)

	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Setup complete. Start the server with: sonagent serve")
	logging.Setup("setup finished (model=%s env_created=%t docs=%t orders=%t)",
		modelPath, res.EnvCreated, res.WroteDocuments, res.WroteOrders)
	return res, nil
}

func scaffoldDirs(cfg *config.Config, opts Options, res *Result) error {
	for _, dir := range []string{cfg.Paths.DocumentsDir, cfg.Paths.DataDir, cfg.Paths.LogDir} {
		if _, err := os.Stat(dir); err == nil {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		res.CreatedDirs = append(res.CreatedDirs, dir)
		fmt.Fprintf(opts.Writer, "  created %s\n", dir)
	}
	return nil
}

// resolveModelPath picks the model path: the flag wins, then the prompt,
// then whatever the existing .env or the defaults already say.
func resolveModelPath(cfg *config.Config, opts Options) (string, error) {
	current := cfg.Model.Path
	if env, err := godotenv.Read(opts.EnvFile); err == nil {
		if v := strings.TrimSpace(env["MODEL_PATH"]); v != "" {
			current = v
		}
	}

	modelPath := strings.TrimSpace(opts.ModelPath)
	if modelPath != "" {
		return modelPath, nil
	}
	if opts.Yes {
		return current, nil
	}

	fmt.Fprintf(opts.Writer, "Model path or name [%s]: ", current)
	line, err := opts.Reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read model path: %w", err)
	}
	if line = strings.TrimSpace(line); line != "" {
		return line, nil
	}
	return current, nil
}

func writeEnvFile(opts Options, modelPath string, res *Result) error {
	if _, err := os.Stat(opts.EnvFile); err == nil {
		updated, err := replaceModelPath(opts.EnvFile, modelPath)
		if err != nil {
			return err
		}
		res.EnvUpdated = updated
		if updated {
			fmt.Fprintf(opts.Writer, "  updated MODEL_PATH in %s\n", opts.EnvFile)
		} else {
			fmt.Fprintf(opts.Writer, "  %s unchanged\n", opts.EnvFile)
		}
		return nil
	}

	if err := os.WriteFile(opts.EnvFile, []byte(envTemplate(modelPath)), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", opts.EnvFile, err)
	}
	res.EnvCreated = true
	fmt.Fprintf(opts.Writer, "  wrote %s\n", opts.EnvFile)
	return nil
}

// replaceModelPath rewrites only the MODEL_PATH line, appending one when
// the file never had it. Every other line survives byte for byte.
func replaceModelPath(path, modelPath string) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	want := "MODEL_PATH=" + modelPath
	lines := strings.Split(string(data), "\n")
	found := false
	changed := false
	for i, line := range lines {
		if !strings.HasPrefix(strings.TrimSpace(line), "MODEL_PATH=") {
			continue
		}
		found = true
		if strings.TrimSpace(line) != want {
			lines[i] = want
			changed = true
		}
		break
	}
	if !found {
		// Keep the trailing newline intact when appending.
		for len(lines) > 0 && lines[len(lines)-1] == "" {
			lines = lines[:len(lines)-1]
		}
		lines = append(lines, want, "")
		changed = true
	}
	if !changed {
		return false, nil
	}

	if err := os.WriteFile(path, []byte(strings.Join(lines, "\n")), 0o644); err != nil {
		return false, fmt.Errorf("failed to update %s: %w", path, err)
	}
	return true, nil
}

func writeSamples(cfg *config.Config, opts Options, res *Result) error {
	entries, err := os.ReadDir(cfg.Paths.DocumentsDir)
	if err != nil {
		return fmt.Errorf("failed to read documents dir: %w", err)
	}
	if len(entries) == 0 {
		if err := docstore.CreateSampleStructure(cfg.Paths.DocumentsDir); err != nil {
			return fmt.Errorf("failed to write sample documents: %w", err)
		}
		res.WroteDocuments = true
		fmt.Fprintf(opts.Writer, "  wrote %d sample documents to %s\n",
			len(docstore.SampleFilenames), cfg.Paths.DocumentsDir)
	}

	if _, err := os.Stat(cfg.Paths.OrdersFile); os.IsNotExist(err) {
		if err := orders.WriteSampleOrders(cfg.Paths.OrdersFile); err != nil {
			return fmt.Errorf("failed to write sample orders: %w", err)
		}
		res.WroteOrders = true
		fmt.Fprintf(opts.Writer, "  wrote sample orders to %s\n", cfg.Paths.OrdersFile)
	}
	return nil
}

// checkIntegrations probes the optional pieces and reports, never fails.
func checkIntegrations(ctx context.Context, cfg *config.Config, opts Options, modelPath string, res *Result) {
	out := opts.Writer
	fmt.Fprintln(out, "")
	fmt.Fprintln(out, "Integration status:")

	if _, err := os.Stat(cfg.Paths.CredentialsPath); err == nil {
		res.HasCredentials = true
		fmt.Fprintf(out, "  [ok] %s present, check_order will use Google Sheets\n", cfg.Paths.CredentialsPath)
	} else {
		fmt.Fprintf(out, "  [--] %s missing, check_order falls back to %s\n",
			cfg.Paths.CredentialsPath, cfg.Paths.OrdersFile)
	}

	probe := *cfg
	probe.Model.Path = modelPath
	client, err := llm.NewClient(&probe)
	if err != nil {
		fmt.Fprintf(out, "  [--] model client: %v\n", err)
		return
	}
	if p, ok := client.(llm.Pinger); ok {
		pingCtx, cancel := context.WithTimeout(ctx, backendPingTimeout)
		defer cancel()
		if err := p.Ping(pingCtx); err != nil {
			fmt.Fprintf(out, "  [--] backend %s not reachable yet (%v)\n", cfg.LLM.BaseURL, err)
		} else {
			res.BackendUp = true
			fmt.Fprintf(out, "  [ok] backend reachable at %s\n", cfg.LLM.BaseURL)
		}
	} else {
		fmt.Fprintf(out, "  [ok] provider %s configured\n", cfg.LLM.Provider)
	}
}

// envTemplate is the full configuration surface at documented defaults.
// Only MODEL_PATH is injected; operators edit the rest in place.
func envTemplate(modelPath string) string {
	return fmt.Sprintf(`# sonagent configuration
# Written by 'sonagent setup'. Real environment variables override
# these values at startup.

# --- Model backend ---
# Path or name of the model the inference backend serves.
MODEL_PATH=%s
# Hints forwarded to the external vLLM/llama-server process.
DTYPE=auto
GPU_MEMORY_UTILIZATION=0.75
MAX_MODEL_LEN=4096
TENSOR_PARALLEL_SIZE=1
ENFORCE_EAGER=false
MAX_NUM_SEQS=6

# --- Provider ---
# local: OpenAI-compatible endpoint at LLM_BASE_URL (vLLM, llama-server)
# openai / gemini: hosted APIs, set the matching key below.
LLM_PROVIDER=local
LLM_BASE_URL=http://localhost:8001/v1
LLM_TIMEOUT=120s
#OPENAI_API_KEY=
#GEMINI_API_KEY=

# --- HTTP server ---
HOST=0.0.0.0
PORT=8000

# --- Generation ---
DEFAULT_TEMPERATURE=0.7
DEFAULT_MAX_TOKENS=1024
PHANLOAI_TEMPERATURE=0.1
PHANLOAI_MAX_TOKENS=64
TOP_P=0.9
REPETITION_PENALTY=1.1
MAX_CONVERSATION_HISTORY=30

# --- Semantic document search (optional) ---
# none disables embeddings; ollama and genai enable them.
EMBEDDING_PROVIDER=none
#OLLAMA_ENDPOINT=http://localhost:11434
#OLLAMA_MODEL=embeddinggemma
#GENAI_API_KEY=
#EMBEDDING_MODEL=gemini-embedding-001
#EMBEDDING_TASK_TYPE=

# --- Storage ---
DATABASE_PATH=data/sonagent.db
ARCHIVE_ENABLED=false

# --- Paths ---
DOCUMENTS_DIR=./documents
DATA_DIR=./data
ORDERS_FILE=./data/don_hang.csv
PROFILES_FILE=./data/customer_profiles.json
GOOGLE_CREDENTIALS_PATH=./credentials.json
LOG_DIR=./logs

# --- Logging ---
LOG_LEVEL=INFO
`, modelPath)
}
