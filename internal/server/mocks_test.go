package server

import (
	"context"
	"sync"

	"sonagent/internal/llm"
)

// mockCall records one Chat invocation.
type mockCall struct {
	System string
	Turns  []llm.Message
	Params llm.SamplingParams
}

// mockClient is a scriptable llm.Client for endpoint tests.
type mockClient struct {
	mu      sync.Mutex
	model   string
	reply   string
	replyFn func(turns []llm.Message) string
	err     error
	calls   []mockCall
}

func (m *mockClient) Chat(ctx context.Context, systemPrompt string, turns []llm.Message, params llm.SamplingParams) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, mockCall{System: systemPrompt, Turns: turns, Params: params})
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.err != nil {
		return "", m.err
	}
	if m.replyFn != nil {
		return m.replyFn(turns), nil
	}
	return m.reply, nil
}

func (m *mockClient) Complete(ctx context.Context, prompt string, params llm.SamplingParams) (string, error) {
	return m.Chat(ctx, "", []llm.Message{{Role: "user", Content: prompt}}, params)
}

func (m *mockClient) Name() string { return "mock" }

func (m *mockClient) SetModel(model string) { m.model = model }

func (m *mockClient) GetModel() string { return m.model }

func (m *mockClient) lastCall() mockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[len(m.calls)-1]
}

func (m *mockClient) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
