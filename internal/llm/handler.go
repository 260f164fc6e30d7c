package llm

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"sonagent/internal/config"
	"sonagent/internal/logging"
)

// historyWindow caps how many past turns go into the prompt.
const historyWindow = 10

// Social input word lists. Matches are exact after trimming and lowercasing.
var (
	greetingWords = []string{"hi", "hey", "hello", "chào", "chao", "xin chào", "alo", "a lo", "hê lô"}
	farewellWords = []string{"bye", "goodbye", "tạm biệt", "tam biet", "hẹn gặp lại", "see you", "bai bai"}
	ackWords      = []string{"ok", "oke", "okay", "uh", "um", "uhm", "à", "ờ", "ừ"}
	thanksWords   = []string{"thanks", "thank you", "cảm ơn", "cam on", "cám ơn", "thank", "cảm ơn em"}
)

// shortMeaningful are very short inputs that still deserve a normal reply.
var shortMeaningful = []string{"hi", "ơi", "à", "ê"}

// metaKeywords flag output where the model leaked its own instructions
// instead of answering the customer.
var metaKeywords = []string{
	"nếu nhận tag",
	"ta sẽ trả lời",
	"ta có thể dựa vào",
	"để đưa ra câu trả lời",
	"quy tắc:",
	"quy_tắc",
	"nhiệm vụ:",
	"nhiệm_vụ",
	"bước 1:",
	"phương pháp",
	"ví dụ trả lời",
	"lưu ý:",
	"trong đoạn đối thoại",
	"trên đây là ví dụ",
	"#1.", "#2.", "#3.", "#4.",
	"quan_trọng:",
}

// Canned replies for degraded generations. The bot always answers.
const (
	fallbackEmptyOutput  = "Xin lỗi, em chưa thể tạo câu trả lời phù hợp. Anh/chị thử hỏi lại được không ạ?"
	fallbackMetaOutput   = "Chào anh/chị! Em là trợ lý của Sơn Đức Dương. Em có thể giúp gì cho anh/chị ạ?"
	fallbackGenerateFail = "Xin lỗi, em gặp lỗi khi xử lý yêu cầu của anh/chị."
)

const socialPromptFormat = `Bạn là trợ lý thân thiện của Sơn Đức Dương.

Khách vừa %s. Hãy trả lời TỰ NHIÊN, NGẮN GỌN (1-2 câu).

Gợi ý:
- Nếu chào hỏi: Chào lại thân thiện, hỏi cần giúp gì
- Nếu tạm biệt: Chúc tốt lành, mời quay lại
- Nếu cảm ơn: Đáp lại lịch sự

Xưng "em" (bạn), "anh/chị" (khách). TỰ NHIÊN, đừng giống nhau mỗi lần.`

const ackPrompt = `Bạn là trợ lý của Sơn Đức Dương.

Khách chỉ nói "ok/oke" mà không có ngữ cảnh trước đó.

Hãy hỏi lại xem khách cần giúp gì. Tự nhiên, ngắn gọn 1 câu.`

const unclearPrompt = `Bạn là trợ lý của Sơn Đức Dương.

Khách gửi tin nhắn quá ngắn/không rõ ràng.

Hãy lịch sự hỏi lại. Ngắn gọn, tự nhiên.`

// Handler shapes conversations around a raw model client: social shortcut
// replies, history windowing, sampling defaults and output cleanup. Every
// agent generation goes through it.
type Handler struct {
	client Client
	gen    config.GenerationConfig
}

// NewHandler wraps a client with the generation defaults from config.
func NewHandler(client Client, gen config.GenerationConfig) *Handler {
	return &Handler{client: client, gen: gen}
}

// Client returns the underlying model client.
func (h *Handler) Client() Client { return h.client }

// GenerateOptions tunes a single generation. Nil fields fall back to the
// configured defaults. DisableShortcuts turns off the social-input fast
// path for agents that must see every input verbatim, like the intent
// classifier.
type GenerateOptions struct {
	Temperature      *float64
	MaxTokens        *int
	DisableShortcuts bool
}

// Generate produces an assistant reply for the user input given the prior
// conversation turns. Model failures degrade to a polite canned reply; the
// returned error is non-nil only when the context is cancelled.
func (h *Handler) Generate(ctx context.Context, systemPrompt, userInput string, history []Message, opts GenerateOptions) (string, error) {
	temperature := h.gen.DefaultTemperature
	if opts.Temperature != nil {
		temperature = *opts.Temperature
	}
	maxTokens := h.gen.DefaultMaxTokens
	if opts.MaxTokens != nil {
		maxTokens = *opts.MaxTokens
	}

	if !opts.DisableShortcuts {
		cleanInput := strings.ToLower(strings.TrimSpace(userInput))
		if reply, done, err := h.shortcutReply(ctx, cleanInput, userInput, history); err != nil {
			return "", err
		} else if done {
			return reply, nil
		}
	}

	// Normal path: windowed history plus the current user turn.
	turns := history
	if len(turns) > historyWindow {
		turns = turns[len(turns)-historyWindow:]
	}
	turns = append(append([]Message{}, turns...), Message{Role: "user", Content: userInput})

	params := SamplingParams{
		Temperature:       temperature,
		TopP:              h.gen.TopP,
		MaxTokens:         maxTokens,
		RepetitionPenalty: h.gen.RepetitionPenalty,
		Stop:              Llama3StopTokens(),
	}

	logging.ModelDebug("[Handler] generating: turns=%d temp=%.2f max_tokens=%d", len(turns), temperature, maxTokens)

	raw, err := h.client.Chat(ctx, systemPrompt, turns, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.ModelError("[Handler] generation failed: %v", err)
		return fallbackGenerateFail, nil
	}

	return h.cleanOutput(raw), nil
}

// shortcutReply handles greetings, farewells, thanks, bare acknowledgments
// and too-short inputs with a lightweight prompt, so a plain "hi" does not
// drag the full agent prompt through the model. Returns done=false when the
// input should take the normal path.
func (h *Handler) shortcutReply(ctx context.Context, cleanInput, userInput string, history []Message) (string, bool, error) {
	isGreeting := matchesAny(greetingWords, cleanInput)
	isFarewell := matchesAny(farewellWords, cleanInput)
	isThanks := matchesAny(thanksWords, cleanInput)
	isAck := matchesAny(ackWords, cleanInput)

	if isGreeting || isFarewell || isThanks {
		intentType := "thanks (cảm ơn)"
		switch {
		case isGreeting:
			intentType = "greeting (chào hỏi)"
		case isFarewell:
			intentType = "farewell (tạm biệt)"
		}
		logging.Model("[Handler] social input %q (%s)", userInput, intentType)

		reply, err := h.lightweight(ctx, fmt.Sprintf(socialPromptFormat, intentType), userInput, SamplingParams{
			Temperature: 0.8,
			TopP:        0.95,
			MaxTokens:   100,
			Stop:        []string{"<|eot_id|>", "<|end_of_text|>", "\n\n"},
		})
		if err != nil {
			return "", false, err
		}
		if reply != "" {
			return reply, true, nil
		}
		logging.ModelWarn("[Handler] social generation came back empty, taking normal path")
		return "", false, nil
	}

	if isAck {
		// An acknowledgment inside a conversation continues it normally.
		if len(history) > 0 {
			logging.ModelDebug("[Handler] acknowledgment with context, continuing normally")
			return "", false, nil
		}
		logging.Model("[Handler] acknowledgment without context: %q", userInput)
		reply, err := h.lightweight(ctx, ackPrompt, userInput, SamplingParams{
			Temperature: 0.7,
			MaxTokens:   80,
			Stop:        []string{"<|eot_id|>", "<|end_of_text|>"},
		})
		if err != nil {
			return "", false, err
		}
		if reply != "" {
			return reply, true, nil
		}
		return "", false, nil
	}

	if utf8.RuneCountInString(cleanInput) <= 2 && !matchesAny(shortMeaningful, cleanInput) {
		logging.ModelWarn("[Handler] input too short: %q", userInput)
		reply, err := h.lightweight(ctx, unclearPrompt, userInput, SamplingParams{
			Temperature: 0.7,
			MaxTokens:   60,
			Stop:        []string{"<|eot_id|>", "<|end_of_text|>"},
		})
		if err != nil {
			return "", false, err
		}
		if reply != "" {
			return reply, true, nil
		}
	}

	return "", false, nil
}

// lightweight runs a single-turn generation without conversation history.
// Model failures are logged and swallowed so the caller falls through to
// the normal generation path.
func (h *Handler) lightweight(ctx context.Context, systemPrompt, userInput string, params SamplingParams) (string, error) {
	out, err := h.client.Chat(ctx, systemPrompt, []Message{{Role: "user", Content: userInput}}, params)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		logging.ModelWarn("[Handler] lightweight generation failed: %v", err)
		return "", nil
	}
	return strings.TrimSpace(out), nil
}

// cleanOutput strips stop tokens, rescues answers from leaked instruction
// text and substitutes a polite fallback for empty generations.
func (h *Handler) cleanOutput(raw string) string {
	text := StripStopTokens(raw)

	if text == "" {
		logging.ModelWarn("[Handler] empty generation after cleanup")
		return fallbackEmptyOutput
	}

	if hasMetaInstructions(text) {
		logging.ModelWarn("[Handler] meta instructions leaked into output: %.120q", text)
		if line := firstAnswerLine(text); line != "" {
			return line
		}
		return fallbackMetaOutput
	}

	return text
}

// StripStopTokens removes Llama 3 control tokens and trims whitespace.
func StripStopTokens(raw string) string {
	text := raw
	for _, tok := range Llama3StopTokens() {
		text = strings.ReplaceAll(text, tok, "")
	}
	return strings.TrimSpace(text)
}

func hasMetaInstructions(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range metaKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// firstAnswerLine picks the first line of the output that is not part of the
// leaked instructions, if any.
func firstAnswerLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || line == "-" || line == "*" || line == "•" {
			continue
		}
		if hasMetaInstructions(line) {
			continue
		}
		if utf8.RuneCountInString(line) > 10 {
			return line
		}
	}
	return ""
}

func matchesAny(words []string, input string) bool {
	for _, w := range words {
		if input == w {
			return true
		}
	}
	return false
}
