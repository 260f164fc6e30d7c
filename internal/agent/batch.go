package agent

import (
	"context"

	"sonagent/internal/llm"
	"sonagent/internal/logging"
	"sonagent/internal/textutil"
)

// Agent type names as they appear on the wire.
const (
	TypeClassifier  = "phanloai"
	TypeCreateOrder = "create_order"
	TypeConsulting  = "consulting"
	TypeCheckOrder  = "check_order"
)

const replyBadAgentType = "Lỗi: Agent type không hợp lệ"

// BatchTypes are the agent types Batch accepts. Order lookup is excluded
// because it needs a per-request spreadsheet ID.
func BatchTypes() []string {
	return []string{TypeClassifier, TypeCreateOrder, TypeConsulting}
}

// Batch runs every input through the named agent with no session memory and
// returns the replies in input order. Generation is fanned out through the
// handler's bounded batch path. An unknown agent type yields the error
// reply for every input. The returned error is non-nil only on context
// cancellation.
func (s *Service) Batch(ctx context.Context, inputs []string, agentType string) ([]string, error) {
	logging.Agent("[Batch] %d inputs, agent=%s", len(inputs), agentType)

	batch := make([]llm.BatchInput, len(inputs))

	switch agentType {
	case TypeClassifier:
		for i, input := range inputs {
			batch[i] = llm.BatchInput{
				SystemPrompt: PromptClassifier,
				UserInput:    input,
				Options:      s.classifierOptions(),
			}
		}
		outputs, err := s.handler.BatchGenerate(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, out := range outputs {
			outputs[i] = textutil.ExtractIntentJSON(out)
		}
		return outputs, nil

	case TypeCreateOrder:
		for i, input := range inputs {
			batch[i] = llm.BatchInput{
				SystemPrompt: PromptCreateOrder,
				UserInput:    input,
				Options:      orderOptions(),
			}
		}
		outputs, err := s.handler.BatchGenerate(ctx, batch)
		if err != nil {
			return nil, err
		}
		for i, out := range outputs {
			outputs[i] = s.finishOrderReply(out)
		}
		return outputs, nil

	case TypeConsulting:
		// Document context is resolved per input before fan-out; the smart
		// handler keeps no cross-input state for a blank session.
		for i, input := range inputs {
			batch[i] = llm.BatchInput{
				SystemPrompt: s.consultingPrompt(ctx, input, "", ""),
				UserInput:    input,
			}
		}
		return s.handler.BatchGenerate(ctx, batch)

	default:
		logging.AgentWarn("[Batch] unknown agent type %q", agentType)
		outputs := make([]string, len(inputs))
		for i := range outputs {
			outputs[i] = replyBadAgentType
		}
		return outputs, nil
	}
}
