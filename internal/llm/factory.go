package llm

import (
	"fmt"
	"os"
	"strings"

	"sonagent/internal/config"
	"sonagent/internal/logging"
)

// DetectProvider picks a provider from the environment.
// Priority: LLM_PROVIDER > OPENAI_API_KEY > GEMINI_API_KEY > local.
func DetectProvider() string {
	if p := os.Getenv("LLM_PROVIDER"); p != "" {
		return strings.ToLower(p)
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return "openai"
	}
	if os.Getenv("GEMINI_API_KEY") != "" {
		return "gemini"
	}
	return "local"
}

// NewClient creates the model client for the configured provider.
func NewClient(cfg *config.Config) (Client, error) {
	provider := cfg.LLM.Provider
	if provider == "" {
		provider = DetectProvider()
	}

	switch provider {
	case "local":
		client := NewLocalClientWithConfig(LocalConfig{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.Model.Path,
			Timeout: cfg.GetLLMTimeout(),
		})
		logging.Model("provider=local base_url=%s model=%s", cfg.LLM.BaseURL, cfg.Model.Path)
		return client, nil

	case "openai":
		openaiCfg := DefaultOpenAIConfig(cfg.LLM.OpenAIAPIKey)
		openaiCfg.Timeout = cfg.GetLLMTimeout()
		client := NewOpenAIClientWithConfig(openaiCfg)
		if isModelName(cfg.Model.Path) {
			client.SetModel(cfg.Model.Path)
		}
		logging.Model("provider=openai model=%s", client.GetModel())
		return client, nil

	case "gemini":
		geminiCfg := DefaultGeminiConfig(cfg.LLM.GeminiAPIKey)
		geminiCfg.Timeout = cfg.GetLLMTimeout()
		client := NewGeminiClientWithConfig(geminiCfg)
		if isModelName(cfg.Model.Path) {
			client.SetModel(cfg.Model.Path)
		}
		logging.Model("provider=gemini model=%s", client.GetModel())
		return client, nil

	default:
		return nil, fmt.Errorf("unknown provider: %s (valid: %v)", provider, config.ValidProviders)
	}
}

// isModelName reports whether the configured model path looks like a hosted
// model name rather than a filesystem path. MODEL_PATH does double duty:
// for the local backend it points at model weights on disk, for hosted
// backends it names the remote model.
func isModelName(path string) bool {
	if path == "" {
		return false
	}
	return !strings.HasPrefix(path, "/") && !strings.HasPrefix(path, "./") && !strings.HasPrefix(path, "../")
}
