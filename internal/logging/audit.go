package logging

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// AuditEvent is one line of the audit trail. Events carry only what is
// needed to reconstruct a request afterwards; message content stays in the
// per-category logs.
type AuditEvent struct {
	Timestamp int64  `json:"ts"` // Unix milliseconds
	Event     string `json:"event"`
	Agent     string `json:"agent,omitempty"`
	SessionID string `json:"session,omitempty"`
	RequestID string `json:"req,omitempty"`
	Source    string `json:"source,omitempty"` // order lookup backend
	InputLen  int    `json:"input_len,omitempty"`
	Inputs    int    `json:"inputs,omitempty"` // batch size
	DurMs     int64  `json:"dur_ms"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

// Audit event names.
const (
	auditAgentRequest   = "agent_request"
	auditBatchRequest   = "batch_request"
	auditOrderLookup    = "order_lookup"
	auditSessionCleared = "session_cleared"
)

var (
	auditMu   sync.Mutex
	auditFile *os.File
)

// InitAudit opens the audit trail next to the category logs: one JSON
// object per line, one file per day. No-op when file logging is disabled.
func InitAudit() error {
	stateMu.RLock()
	dir := logsDir
	on := enabled
	stateMu.RUnlock()
	if !on || dir == "" {
		return nil
	}

	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		return nil
	}

	date := time.Now().Format("2006-01-02")
	path := filepath.Join(dir, fmt.Sprintf("%s_audit.jsonl", date))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	auditFile = file
	return nil
}

// CloseAudit closes the audit trail (call at shutdown).
func CloseAudit() {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile != nil {
		auditFile.Close()
		auditFile = nil
	}
}

// writeAudit appends one event. Before InitAudit it drops events silently
// so callers can record unconditionally.
func writeAudit(e AuditEvent) {
	auditMu.Lock()
	defer auditMu.Unlock()
	if auditFile == nil {
		return
	}
	if e.Timestamp == 0 {
		e.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(e)
	if err != nil {
		return
	}
	auditFile.Write(append(data, '\n'))
}

// AuditAgent records one conversational agent call.
func AuditAgent(agent, sessionID, requestID string, inputLen int, d time.Duration, err error) {
	e := AuditEvent{
		Event:     auditAgentRequest,
		Agent:     agent,
		SessionID: sessionID,
		RequestID: requestID,
		InputLen:  inputLen,
		DurMs:     d.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	writeAudit(e)
}

// AuditOrderLookup records an order lookup with the source that served it.
func AuditOrderLookup(source, sessionID, requestID string, inputLen int, d time.Duration, err error) {
	e := AuditEvent{
		Event:     auditOrderLookup,
		Agent:     "check_order",
		Source:    source,
		SessionID: sessionID,
		RequestID: requestID,
		InputLen:  inputLen,
		DurMs:     d.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	writeAudit(e)
}

// AuditBatch records one batch call.
func AuditBatch(agentType, requestID string, inputs int, d time.Duration, err error) {
	e := AuditEvent{
		Event:     auditBatchRequest,
		Agent:     agentType,
		RequestID: requestID,
		Inputs:    inputs,
		DurMs:     d.Milliseconds(),
		Success:   err == nil,
	}
	if err != nil {
		e.Error = err.Error()
	}
	writeAudit(e)
}

// AuditSessionCleared records a memory wipe.
func AuditSessionCleared(sessionID, requestID string) {
	writeAudit(AuditEvent{
		Event:     auditSessionCleared,
		SessionID: sessionID,
		RequestID: requestID,
		Success:   true,
	})
}
