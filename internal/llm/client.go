// Package llm provides the model backends and the conversation handler
// shared by all agents. Backends speak to an OpenAI-compatible local
// server (vLLM), the OpenAI API, or the Google Gemini API.
package llm

import "context"

// Message is a single conversation turn.
type Message struct {
	Role    string `json:"role"` // user or assistant
	Content string `json:"content"`
}

// SamplingParams controls a single generation.
type SamplingParams struct {
	Temperature       float64
	TopP              float64
	MaxTokens         int
	RepetitionPenalty float64
	Stop              []string
}

// Client is the contract every model backend implements.
type Client interface {
	// Chat generates an assistant reply for a system prompt and
	// conversation turns. The last turn is the pending user message.
	Chat(ctx context.Context, systemPrompt string, turns []Message, params SamplingParams) (string, error)

	// Complete generates text for an already formatted prompt.
	Complete(ctx context.Context, prompt string, params SamplingParams) (string, error)

	// Name identifies the backend (local, openai, gemini).
	Name() string

	// SetModel changes the model used for generation.
	SetModel(model string)

	// GetModel returns the current model.
	GetModel() string
}

// Pinger is implemented by backends that can be probed for readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Llama3StopTokens returns the stop sequences for Llama 3 style models.
// <|start_header_id|> keeps the model from opening a new turn on its own.
func Llama3StopTokens() []string {
	return []string{"<|eot_id|>", "<|end_of_text|>", "<|start_header_id|>"}
}
