package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"sonagent/internal/logging"
)

// LocalConfig configures the local completion backend.
type LocalConfig struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// DefaultLocalConfig returns defaults for a vLLM server on localhost.
func DefaultLocalConfig() LocalConfig {
	return LocalConfig{
		BaseURL: "http://localhost:8001/v1",
		Timeout: 120 * time.Second,
	}
}

// LocalClient talks to a local inference server exposing the OpenAI
// completions API (vLLM, llama.cpp server and friends). It sends raw
// Llama 3 formatted prompts so the chat template stays under our control
// instead of the server's.
type LocalClient struct {
	baseURL    string
	model      string
	httpClient *http.Client

	// Rate limiting
	mu          sync.Mutex
	lastRequest time.Time
}

// NewLocalClient creates a local client with default settings.
func NewLocalClient(baseURL, model string) *LocalClient {
	cfg := DefaultLocalConfig()
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	cfg.Model = model
	return NewLocalClientWithConfig(cfg)
}

// NewLocalClientWithConfig creates a local client with custom config.
func NewLocalClientWithConfig(config LocalConfig) *LocalClient {
	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LocalClient{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		model:      config.Model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type completionRequest struct {
	Model             string   `json:"model"`
	Prompt            string   `json:"prompt"`
	MaxTokens         int      `json:"max_tokens,omitempty"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p,omitempty"`
	RepetitionPenalty float64  `json:"repetition_penalty,omitempty"`
	Stop              []string `json:"stop,omitempty"`
}

type completionResponse struct {
	Choices []struct {
		Text         string `json:"text"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat formats the conversation with the Llama 3 template and completes it.
func (c *LocalClient) Chat(ctx context.Context, systemPrompt string, turns []Message, params SamplingParams) (string, error) {
	if len(params.Stop) == 0 {
		params.Stop = Llama3StopTokens()
	}
	return c.Complete(ctx, BuildLlama3Prompt(systemPrompt, turns), params)
}

// Complete sends a raw prompt to the completions endpoint.
func (c *LocalClient) Complete(ctx context.Context, prompt string, params SamplingParams) (string, error) {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.httpClient.Timeout)
		defer cancel()
	}

	startTime := time.Now()
	logging.ModelDebug("[Local] Complete: model=%s prompt_len=%d max_tokens=%d", c.model, len(prompt), params.MaxTokens)

	// Rate limiting
	c.mu.Lock()
	elapsed := time.Since(c.lastRequest)
	if elapsed < 100*time.Millisecond {
		time.Sleep(100*time.Millisecond - elapsed)
	}
	c.lastRequest = time.Now()
	c.mu.Unlock()

	reqBody := completionRequest{
		Model:             c.model,
		Prompt:            prompt,
		MaxTokens:         params.MaxTokens,
		Temperature:       params.Temperature,
		TopP:              params.TopP,
		RepetitionPenalty: params.RepetitionPenalty,
		Stop:              params.Stop,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	// Retry loop for rate limits
	maxRetries := 3
	var lastErr error

	for i := 0; i <= maxRetries; i++ {
		if i > 0 {
			time.Sleep(time.Duration(1<<uint(i-1)) * time.Second)
		}

		req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/completions", bytes.NewReader(jsonData))
		if err != nil {
			return "", fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			continue
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			lastErr = fmt.Errorf("rate limit exceeded (429)")
			continue
		}

		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("completion request failed with status %d: %s", resp.StatusCode, string(body))
		}

		var compResp completionResponse
		if err := json.Unmarshal(body, &compResp); err != nil {
			return "", fmt.Errorf("failed to parse response: %w", err)
		}

		if len(compResp.Choices) == 0 {
			return "", fmt.Errorf("no completion returned")
		}

		text := strings.TrimSpace(compResp.Choices[0].Text)
		logging.ModelDebug("[Local] Complete: completed in %v response_len=%d finish=%s",
			time.Since(startTime), len(text), compResp.Choices[0].FinishReason)
		return text, nil
	}

	logging.ModelError("[Local] Complete: max retries exceeded after %v: %v", time.Since(startTime), lastErr)
	return "", fmt.Errorf("max retries exceeded: %w", lastErr)
}

// Ping checks that the backend is reachable by listing its models.
func (c *LocalClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, "GET", c.baseURL+"/models", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("model server returned status %d", resp.StatusCode)
	}
	return nil
}

// Name identifies the backend.
func (c *LocalClient) Name() string { return "local" }

// SetModel changes the model used for completions.
func (c *LocalClient) SetModel(model string) { c.model = model }

// GetModel returns the current model.
func (c *LocalClient) GetModel() string { return c.model }
