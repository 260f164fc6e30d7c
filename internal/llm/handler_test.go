package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sonagent/internal/config"
)

func testGenConfig() config.GenerationConfig {
	return config.GenerationConfig{
		DefaultTemperature:    0.7,
		DefaultMaxTokens:      1024,
		ClassifierTemperature: 0.1,
		ClassifierMaxTokens:   64,
		TopP:                  0.9,
		RepetitionPenalty:     1.1,
		MaxHistory:            30,
	}
}

func TestHandlerSocialShortcuts(t *testing.T) {
	cases := []struct {
		name  string
		input string
		kind  string
	}{
		{"greeting", "xin chào", "greeting"},
		{"greeting uppercase", "Hello", "greeting"},
		{"farewell", "tạm biệt", "farewell"},
		{"thanks", "cảm ơn", "thanks"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			mock := &mockClient{reply: "Dạ em chào anh/chị ạ!"}
			h := NewHandler(mock, testGenConfig())

			out, err := h.Generate(context.Background(), "FULL AGENT PROMPT", tc.input, nil, GenerateOptions{})
			require.NoError(t, err)
			assert.Equal(t, "Dạ em chào anh/chị ạ!", out)

			call := mock.lastCall()
			// The lightweight prompt replaces the full agent prompt.
			assert.NotContains(t, call.System, "FULL AGENT PROMPT")
			assert.Contains(t, call.System, "Sơn Đức Dương")
			assert.Contains(t, call.System, tc.kind)
			assert.InDelta(t, 0.8, call.Params.Temperature, 1e-9)
			assert.Equal(t, 100, call.Params.MaxTokens)
			assert.Contains(t, call.Params.Stop, "\n\n")
		})
	}
}

func TestHandlerAcknowledgment(t *testing.T) {
	t.Run("without context asks what the customer needs", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ anh/chị cần em hỗ trợ gì ạ?"}
		h := NewHandler(mock, testGenConfig())

		out, err := h.Generate(context.Background(), "AGENT", "ok", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Dạ anh/chị cần em hỗ trợ gì ạ?", out)

		call := mock.lastCall()
		assert.Contains(t, call.System, "ok/oke")
		assert.Equal(t, 80, call.Params.MaxTokens)
	})

	t.Run("with context continues the conversation normally", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ vậy em chốt đơn nhé ạ."}
		h := NewHandler(mock, testGenConfig())
		history := []Message{
			{Role: "user", Content: "cho tôi 2 lon sơn"},
			{Role: "assistant", Content: "Anh xác nhận 2 lon sơn nhé?"},
		}

		out, err := h.Generate(context.Background(), "AGENT", "ok", history, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Dạ vậy em chốt đơn nhé ạ.", out)

		call := mock.lastCall()
		assert.Equal(t, "AGENT", call.System)
		// History plus the pending user turn.
		require.Len(t, call.Turns, 3)
		assert.Equal(t, "ok", call.Turns[2].Content)
	})
}

func TestHandlerShortInput(t *testing.T) {
	t.Run("two letter noise asks for clarification", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ anh/chị nói rõ hơn giúp em ạ?"}
		h := NewHandler(mock, testGenConfig())

		out, err := h.Generate(context.Background(), "AGENT", "zz", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Dạ anh/chị nói rõ hơn giúp em ạ?", out)

		call := mock.lastCall()
		assert.Contains(t, call.System, "quá ngắn")
		assert.Equal(t, 60, call.Params.MaxTokens)
	})

	t.Run("short but meaningful goes through the agent", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ em đây ạ."}
		h := NewHandler(mock, testGenConfig())

		_, err := h.Generate(context.Background(), "AGENT", "ơi", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "AGENT", mock.lastCall().System)
	})
}

func TestHandlerHistoryWindow(t *testing.T) {
	mock := &mockClient{reply: "ok"}
	h := NewHandler(mock, testGenConfig())

	history := make([]Message, 0, 16)
	for i := 0; i < 16; i++ {
		role := "user"
		if i%2 == 1 {
			role = "assistant"
		}
		history = append(history, Message{Role: role, Content: strings.Repeat("x", i+1)})
	}

	_, err := h.Generate(context.Background(), "AGENT", "câu hỏi mới đây", history, GenerateOptions{})
	require.NoError(t, err)

	call := mock.lastCall()
	// Ten most recent turns plus the pending user message.
	require.Len(t, call.Turns, 11)
	assert.Equal(t, history[6].Content, call.Turns[0].Content)
	assert.Equal(t, "câu hỏi mới đây", call.Turns[10].Content)
	assert.Equal(t, Llama3StopTokens(), call.Params.Stop)
	assert.InDelta(t, 0.9, call.Params.TopP, 1e-9)
	assert.InDelta(t, 1.1, call.Params.RepetitionPenalty, 1e-9)
}

func TestHandlerSamplingOverrides(t *testing.T) {
	mock := &mockClient{reply: "ok"}
	h := NewHandler(mock, testGenConfig())

	temp := 0.1
	maxTokens := 64
	_, err := h.Generate(context.Background(), "AGENT", "phân loại giúp tôi nhé", nil, GenerateOptions{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	require.NoError(t, err)

	call := mock.lastCall()
	assert.InDelta(t, 0.1, call.Params.Temperature, 1e-9)
	assert.Equal(t, 64, call.Params.MaxTokens)
}

func TestHandlerOutputCleanup(t *testing.T) {
	gen := testGenConfig()

	t.Run("stop tokens stripped", func(t *testing.T) {
		mock := &mockClient{reply: "Dạ có ạ.<|eot_id|>"}
		h := NewHandler(mock, gen)
		out, err := h.Generate(context.Background(), "AGENT", "còn hàng không", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Dạ có ạ.", out)
	})

	t.Run("empty output falls back to apology", func(t *testing.T) {
		mock := &mockClient{reply: "<|eot_id|>"}
		h := NewHandler(mock, gen)
		out, err := h.Generate(context.Background(), "AGENT", "còn hàng không", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, fallbackEmptyOutput, out)
	})

	t.Run("leaked instructions rescued to first answer line", func(t *testing.T) {
		mock := &mockClient{reply: "Quy tắc: luôn lịch sự\nDạ, sơn 2K có độ bóng cao 90% ạ.\n"}
		h := NewHandler(mock, gen)
		out, err := h.Generate(context.Background(), "AGENT", "sơn 2K bóng không", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, "Dạ, sơn 2K có độ bóng cao 90% ạ.", out)
	})

	t.Run("pure instruction leak falls back to greeting", func(t *testing.T) {
		mock := &mockClient{reply: "Nhiệm vụ: phân loại tin nhắn\nBước 1: đọc kỹ"}
		h := NewHandler(mock, gen)
		out, err := h.Generate(context.Background(), "AGENT", "tư vấn sơn giúp tôi", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, fallbackMetaOutput, out)
	})
}

func TestHandlerModelFailure(t *testing.T) {
	t.Run("model error degrades to canned reply", func(t *testing.T) {
		mock := &mockClient{err: errors.New("backend down")}
		h := NewHandler(mock, testGenConfig())
		out, err := h.Generate(context.Background(), "AGENT", "tư vấn sơn giúp tôi", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, fallbackGenerateFail, out)
	})

	t.Run("cancelled context propagates", func(t *testing.T) {
		mock := &mockClient{reply: "ok"}
		h := NewHandler(mock, testGenConfig())
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := h.Generate(ctx, "AGENT", "tư vấn sơn giúp tôi", nil, GenerateOptions{})
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("social path error falls through to normal generation", func(t *testing.T) {
		mock := &mockClient{err: errors.New("backend down")}
		h := NewHandler(mock, testGenConfig())
		out, err := h.Generate(context.Background(), "AGENT", "xin chào", nil, GenerateOptions{})
		require.NoError(t, err)
		assert.Equal(t, fallbackGenerateFail, out)
		// Lightweight attempt first, then the normal path.
		assert.Equal(t, 2, mock.callCount())
	})
}

func TestStripStopTokens(t *testing.T) {
	assert.Equal(t, "hello", StripStopTokens("  hello<|eot_id|>  "))
	assert.Equal(t, "a b", StripStopTokens("a b<|end_of_text|><|start_header_id|>"))
	assert.Equal(t, "", StripStopTokens("<|eot_id|>"))
}
