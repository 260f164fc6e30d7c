// Package config holds all sonagent configuration.
// Values are layered: built-in defaults, then an optional YAML file, then a
// .env file, then process environment variables. Environment wins.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration tree.
type Config struct {
	// Inference backend hints (forwarded to the model server, not enforced here)
	Model ModelConfig `yaml:"model"`

	// LLM provider selection and transport
	LLM LLMConfig `yaml:"llm"`

	// HTTP server settings
	Server ServerConfig `yaml:"server"`

	// Generation / sampling defaults
	Generation GenerationConfig `yaml:"generation"`

	// Embedding engine (semantic document search), optional
	Embedding EmbeddingConfig `yaml:"embedding"`

	// SQLite persistence
	Storage StorageConfig `yaml:"storage"`

	// Workspace paths
	Paths PathsConfig `yaml:"paths"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// ModelConfig mirrors the knobs of the external inference server.
type ModelConfig struct {
	Path                 string  `yaml:"path" env:"MODEL_PATH"`
	DType                string  `yaml:"dtype" env:"DTYPE"`
	GPUMemoryUtilization float64 `yaml:"gpu_memory_utilization" env:"GPU_MEMORY_UTILIZATION"`
	MaxModelLen          int     `yaml:"max_model_len" env:"MAX_MODEL_LEN"`
	TensorParallelSize   int     `yaml:"tensor_parallel_size" env:"TENSOR_PARALLEL_SIZE"`
	EnforceEager         bool    `yaml:"enforce_eager" env:"-"`
	MaxNumSeqs           int     `yaml:"max_num_seqs" env:"MAX_NUM_SEQS"`
}

// LLMConfig configures the model transport.
type LLMConfig struct {
	Provider     string `yaml:"provider" env:"LLM_PROVIDER"` // local, openai, gemini
	BaseURL      string `yaml:"base_url" env:"LLM_BASE_URL"`
	OpenAIAPIKey string `yaml:"openai_api_key" env:"OPENAI_API_KEY"`
	GeminiAPIKey string `yaml:"gemini_api_key" env:"GEMINI_API_KEY"`
	Timeout      string `yaml:"timeout" env:"LLM_TIMEOUT"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT"`
}

// GenerationConfig holds sampling defaults shared by the agents.
type GenerationConfig struct {
	DefaultTemperature    float64 `yaml:"default_temperature" env:"DEFAULT_TEMPERATURE"`
	DefaultMaxTokens      int     `yaml:"default_max_tokens" env:"DEFAULT_MAX_TOKENS"`
	ClassifierTemperature float64 `yaml:"classifier_temperature" env:"PHANLOAI_TEMPERATURE"`
	ClassifierMaxTokens   int     `yaml:"classifier_max_tokens" env:"PHANLOAI_MAX_TOKENS"`
	TopP                  float64 `yaml:"top_p" env:"TOP_P"`
	RepetitionPenalty     float64 `yaml:"repetition_penalty" env:"REPETITION_PENALTY"`
	MaxHistory            int     `yaml:"max_conversation_history" env:"MAX_CONVERSATION_HISTORY"`
}

// EmbeddingConfig configures the optional embedding engine.
type EmbeddingConfig struct {
	Provider       string `yaml:"provider" env:"EMBEDDING_PROVIDER"` // none, genai, ollama
	OllamaEndpoint string `yaml:"ollama_endpoint" env:"OLLAMA_ENDPOINT"`
	OllamaModel    string `yaml:"ollama_model" env:"OLLAMA_MODEL"`
	GenAIAPIKey    string `yaml:"genai_api_key" env:"GENAI_API_KEY"`
	GenAIModel     string `yaml:"genai_model" env:"EMBEDDING_MODEL"`
	TaskType       string `yaml:"task_type" env:"EMBEDDING_TASK_TYPE"` // empty selects per call
}

// StorageConfig configures SQLite persistence.
type StorageConfig struct {
	DatabasePath   string `yaml:"database_path" env:"DATABASE_PATH"`
	ArchiveEnabled bool   `yaml:"archive_enabled" env:"ARCHIVE_ENABLED"`
}

// PathsConfig holds workspace locations.
type PathsConfig struct {
	DocumentsDir    string `yaml:"documents_dir" env:"DOCUMENTS_DIR"`
	DataDir         string `yaml:"data_dir" env:"DATA_DIR"`
	OrdersFile      string `yaml:"orders_file" env:"ORDERS_FILE"`
	ProfilesFile    string `yaml:"profiles_file" env:"PROFILES_FILE"`
	CredentialsPath string `yaml:"credentials_path" env:"GOOGLE_CREDENTIALS_PATH"`
	LogDir          string `yaml:"log_dir" env:"LOG_DIR"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"` // debug, info, warn, error
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Model: ModelConfig{
			Path:                 "/root/llm-agent-api/Model",
			DType:                "auto",
			GPUMemoryUtilization: 0.75,
			MaxModelLen:          4096,
			TensorParallelSize:   1,
			EnforceEager:         false,
			MaxNumSeqs:           6,
		},
		LLM: LLMConfig{
			Provider: "local",
			BaseURL:  "http://localhost:8001/v1",
			Timeout:  "120s",
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Generation: GenerationConfig{
			DefaultTemperature:    0.7,
			DefaultMaxTokens:      1024,
			ClassifierTemperature: 0.1,
			ClassifierMaxTokens:   64,
			TopP:                  0.9,
			RepetitionPenalty:     1.1,
			MaxHistory:            30,
		},
		Embedding: EmbeddingConfig{
			Provider:       "none",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
		},
		Storage: StorageConfig{
			DatabasePath:   "data/sonagent.db",
			ArchiveEnabled: false,
		},
		Paths: PathsConfig{
			DocumentsDir:    "./documents",
			DataDir:         "./data",
			OrdersFile:      "./data/don_hang.csv",
			ProfilesFile:    "./data/customer_profiles.json",
			CredentialsPath: "./credentials.json",
			LogDir:          "./logs",
		},
		Logging: LoggingConfig{
			Level: "INFO",
		},
	}
}

// Load builds the configuration: defaults, optional YAML file at path,
// .env file at envPath (if present), then process environment overrides.
func Load(path, envPath string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// Missing file keeps defaults
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// godotenv does not override variables already set in the environment,
	// so explicit env vars keep precedence over .env entries.
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load %s: %w", envPath, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides onto cfg.
// Fields without a matching variable keep their current value.
func (c *Config) applyEnvOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}

	// ENFORCE_EAGER accepts 1/true/yes, which strconv.ParseBool does not.
	if v := os.Getenv("ENFORCE_EAGER"); v != "" {
		switch strings.ToLower(v) {
		case "1", "true", "yes":
			c.Model.EnforceEager = true
		default:
			c.Model.EnforceEager = false
		}
	}

	// Embedding falls back to the Gemini key when no dedicated key is set.
	if c.Embedding.GenAIAPIKey == "" {
		c.Embedding.GenAIAPIKey = c.LLM.GeminiAPIKey
	}
	return nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// ValidProviders lists all supported LLM providers.
var ValidProviders = []string{"local", "openai", "gemini"}

// Validate checks the configuration before the server starts.
func (c *Config) Validate() error {
	if c.Model.Path == "" {
		return fmt.Errorf("MODEL_PATH not configured (run 'sonagent setup' or set it in .env)")
	}

	validProvider := false
	for _, p := range ValidProviders {
		if c.LLM.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid LLM provider: %s (valid: %v)", c.LLM.Provider, ValidProviders)
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY required for provider openai")
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY required for provider gemini")
		}
	case "local":
		if c.LLM.BaseURL == "" {
			return fmt.Errorf("LLM_BASE_URL required for provider local")
		}
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Generation.DefaultTemperature < 0 || c.Generation.DefaultTemperature > 2 {
		return fmt.Errorf("DEFAULT_TEMPERATURE out of range [0,2]: %v", c.Generation.DefaultTemperature)
	}
	if c.Generation.TopP <= 0 || c.Generation.TopP > 1 {
		return fmt.Errorf("TOP_P out of range (0,1]: %v", c.Generation.TopP)
	}
	if c.Generation.RepetitionPenalty <= 0 {
		return fmt.Errorf("REPETITION_PENALTY must be positive: %v", c.Generation.RepetitionPenalty)
	}
	if c.Generation.DefaultMaxTokens < 1 {
		return fmt.Errorf("DEFAULT_MAX_TOKENS must be at least 1: %d", c.Generation.DefaultMaxTokens)
	}
	if c.Generation.MaxHistory < 1 {
		return fmt.Errorf("MAX_CONVERSATION_HISTORY must be at least 1: %d", c.Generation.MaxHistory)
	}

	switch c.Embedding.Provider {
	case "", "none", "genai", "ollama":
	default:
		return fmt.Errorf("invalid embedding provider: %s (valid: none, genai, ollama)", c.Embedding.Provider)
	}
	return nil
}

// GetLLMTimeout returns the LLM request timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// EmbeddingEnabled reports whether an embedding engine is configured.
func (c *Config) EmbeddingEnabled() bool {
	return c.Embedding.Provider != "" && c.Embedding.Provider != "none"
}
