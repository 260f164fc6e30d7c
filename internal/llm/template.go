package llm

import "strings"

// BuildLlama3Prompt renders a system prompt and conversation turns into the
// Llama 3 chat template. When the last turn is a user message, an assistant
// header is appended so the model continues as the assistant.
func BuildLlama3Prompt(systemPrompt string, turns []Message) string {
	var b strings.Builder
	b.WriteString("<|begin_of_text|>\n")

	if systemPrompt != "" {
		b.WriteString("<|start_header_id|>system<|end_header_id|>\n\n")
		b.WriteString(systemPrompt)
		b.WriteString("\n<|eot_id|>\n")
	}

	for _, turn := range turns {
		switch turn.Role {
		case "user", "assistant":
			b.WriteString("<|start_header_id|>")
			b.WriteString(turn.Role)
			b.WriteString("<|end_header_id|>\n\n")
			b.WriteString(turn.Content)
			b.WriteString("\n<|eot_id|>\n")
		}
	}

	if len(turns) > 0 && turns[len(turns)-1].Role == "user" {
		b.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	}

	return b.String()
}
