package server

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"sonagent/internal/agent"
)

// maxInputLength caps the user message accepted by the agent endpoints.
const maxInputLength = 2000

// Batch size limits.
const (
	minBatchInputs = 1
	maxBatchInputs = 50
)

// AgentRequest is the body of the single-agent endpoints. Temperature and
// max_tokens are validated for compatibility with existing clients; the
// agents pick their own sampling.
type AgentRequest struct {
	Input       string   `json:"input"`
	SessionID   string   `json:"session_id,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// Validate normalizes the request in place and reports the first field
// error in "field: message" form.
func (r *AgentRequest) Validate() error {
	if utf8.RuneCountInString(r.Input) > maxInputLength {
		return fmt.Errorf("input: không được vượt quá %d ký tự", maxInputLength)
	}
	r.Input = strings.TrimSpace(r.Input)
	if r.Input == "" {
		return fmt.Errorf("input: không được rỗng hoặc chỉ có khoảng trắng")
	}
	if r.Temperature != nil && (*r.Temperature < 0 || *r.Temperature > 2) {
		return fmt.Errorf("temperature: phải nằm trong khoảng [0.0, 2.0]")
	}
	if r.MaxTokens != nil && (*r.MaxTokens < 1 || *r.MaxTokens > 2048) {
		return fmt.Errorf("max_tokens: phải nằm trong khoảng [1, 2048]")
	}
	return nil
}

// CheckOrderRequest is the body of the order-lookup endpoint. The
// spreadsheet ID is dynamic per request so one deployment can serve several
// order sheets.
type CheckOrderRequest struct {
	Input         string `json:"input"`
	SessionID     string `json:"session_id,omitempty"`
	SpreadsheetID string `json:"spreadsheet_id"`
}

// Validate normalizes the request in place.
func (r *CheckOrderRequest) Validate() error {
	req := AgentRequest{Input: r.Input}
	if err := req.Validate(); err != nil {
		return err
	}
	r.Input = req.Input
	r.SpreadsheetID = strings.TrimSpace(r.SpreadsheetID)
	if r.SpreadsheetID == "" {
		return fmt.Errorf("spreadsheet_id: trường này là bắt buộc")
	}
	return nil
}

// AgentResponse is the reply of every single-agent endpoint.
type AgentResponse struct {
	Output         string  `json:"output"`
	SessionID      string  `json:"session_id,omitempty"`
	ProcessingTime float64 `json:"processing_time"`
}

// BatchRequest is the body of the batch endpoint.
type BatchRequest struct {
	Inputs    []string `json:"inputs"`
	AgentType string   `json:"agent_type,omitempty"`
}

// Validate trims the inputs, drops blank ones and defaults the agent type.
func (r *BatchRequest) Validate() error {
	if len(r.Inputs) < minBatchInputs {
		return fmt.Errorf("inputs: cần ít nhất %d phần tử", minBatchInputs)
	}
	if len(r.Inputs) > maxBatchInputs {
		return fmt.Errorf("inputs: tối đa %d phần tử", maxBatchInputs)
	}

	kept := r.Inputs[:0]
	for _, in := range r.Inputs {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		kept = append(kept, in)
	}
	r.Inputs = kept
	if len(r.Inputs) == 0 {
		return fmt.Errorf("inputs: không được rỗng hoặc chỉ có khoảng trắng")
	}

	if r.AgentType == "" {
		r.AgentType = agent.TypeConsulting
	}
	for _, allowed := range agent.BatchTypes() {
		if r.AgentType == allowed {
			return nil
		}
	}
	return fmt.Errorf("agent_type: phải là một trong: %s", strings.Join(agent.BatchTypes(), ", "))
}

// BatchResponse is the reply of the batch endpoint.
type BatchResponse struct {
	Outputs        []string `json:"outputs"`
	ProcessingTime float64  `json:"processing_time"`
}
