// Package memory keeps per-session, per-agent conversation history.
//
// History is partitioned by agent so the order-taking dialogue never leaks
// into the consulting context and vice versa:
//
//	sessions[sessionID][agent] = []Entry
//
// Everything lives in process memory; an optional Archiver mirrors turns to
// durable storage as they arrive.
package memory

import (
	"context"
	"sync"
	"time"

	"sonagent/internal/logging"
)

// Message roles as they appear in history entries.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// defaultAgents are the history buckets created eagerly for a new session.
// Buckets for other agents appear lazily on first write.
var defaultAgents = []string{"phanloai", "create_order", "consulting"}

// Entry is a single message in an agent's history.
type Entry struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// AgentInfo summarizes one agent's history inside a session.
type AgentInfo struct {
	MessageCount int        `json:"message_count"`
	LastMessage  *time.Time `json:"last_message"`
}

// SessionInfo summarizes a whole session.
type SessionInfo struct {
	Exists    bool                 `json:"exists"`
	SessionID string               `json:"session_id"`
	Agents    map[string]AgentInfo `json:"agents,omitempty"`
}

// Archiver receives every stored turn for durable archival. Implementations
// must tolerate replays: the same (session, agent, seq) may be delivered
// more than once across process restarts.
type Archiver interface {
	ArchiveTurn(sessionID, agent string, seq int, entry Entry) error
}

// Manager holds conversation history for all active sessions.
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]map[string][]Entry
	seq        map[string]int // per session+agent, survives trimming
	maxHistory int
	archiver   Archiver

	now func() time.Time
}

// NewManager creates an empty manager. maxHistory caps the entries kept per
// session and agent; older entries are dropped.
func NewManager(maxHistory int) *Manager {
	if maxHistory < 1 {
		maxHistory = 1
	}
	logging.Memory("Memory manager initialized (max history %d)", maxHistory)
	return &Manager{
		sessions:   make(map[string]map[string][]Entry),
		seq:        make(map[string]int),
		maxHistory: maxHistory,
		now:        time.Now,
	}
}

// SetArchiver installs the durable archive hook. Archive failures are logged
// and never block the conversation.
func (m *Manager) SetArchiver(a Archiver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.archiver = a
}

// ensureSession creates the session with its default agent buckets.
// Caller must hold the write lock.
func (m *Manager) ensureSession(sessionID string) map[string][]Entry {
	agents, ok := m.sessions[sessionID]
	if !ok {
		agents = make(map[string][]Entry, len(defaultAgents))
		for _, a := range defaultAgents {
			agents[a] = nil
		}
		m.sessions[sessionID] = agents
		logging.MemoryDebug("Created session %s", sessionID)
	}
	return agents
}

// History returns a copy of the history for one agent in a session. An empty
// session ID yields no history.
func (m *Manager) History(sessionID, agent string) []Entry {
	if sessionID == "" {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	agents := m.ensureSession(sessionID)
	entries := agents[agent]
	out := make([]Entry, len(entries))
	copy(out, entries)
	logging.MemoryDebug("Fetched %d messages for session %s agent %s", len(out), sessionID, agent)
	return out
}

// Add appends a message to one agent's history, trimming to the configured
// maximum. Calls with an empty session ID are dropped.
func (m *Manager) Add(sessionID, agent, role, content string) {
	if sessionID == "" {
		logging.Get(logging.CategoryMemory).Warn("Dropping message without session ID")
		return
	}

	m.mu.Lock()
	agents := m.ensureSession(sessionID)
	entry := Entry{Role: role, Content: content, Timestamp: m.now()}
	agents[agent] = append(agents[agent], entry)
	if len(agents[agent]) > m.maxHistory {
		trimmed := make([]Entry, m.maxHistory)
		copy(trimmed, agents[agent][len(agents[agent])-m.maxHistory:])
		agents[agent] = trimmed
		logging.MemoryDebug("Trimmed history for session %s agent %s", sessionID, agent)
	}

	seqKey := sessionID + "\x00" + agent
	m.seq[seqKey]++
	seq := m.seq[seqKey]
	archiver := m.archiver
	m.mu.Unlock()

	logging.MemoryDebug("Added %s message to session %s agent %s", role, sessionID, agent)

	if archiver != nil {
		if err := archiver.ArchiveTurn(sessionID, agent, seq, entry); err != nil {
			logging.Get(logging.CategoryMemory).Warn("Archive failed for session %s agent %s seq %d: %v", sessionID, agent, seq, err)
		}
	}
}

// Clear removes an entire session. Returns false when the session does not
// exist.
func (m *Manager) Clear(sessionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[sessionID]; !ok {
		logging.Get(logging.CategoryMemory).Warn("Clear of unknown session %s", sessionID)
		return false
	}
	delete(m.sessions, sessionID)
	logging.Memory("Cleared all history for session %s", sessionID)
	return true
}

// ClearAgent empties one agent's history inside a session. Returns false
// when the session or the agent bucket does not exist.
func (m *Manager) ClearAgent(sessionID, agent string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	agents, ok := m.sessions[sessionID]
	if !ok {
		logging.Get(logging.CategoryMemory).Warn("Clear of unknown session %s", sessionID)
		return false
	}
	if _, ok := agents[agent]; !ok {
		logging.Get(logging.CategoryMemory).Warn("Agent %s not found in session %s", agent, sessionID)
		return false
	}
	agents[agent] = nil
	logging.Memory("Cleared %s history for session %s", agent, sessionID)
	return true
}

// ActiveSessions counts sessions currently held in memory.
func (m *Manager) ActiveSessions() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Info returns per-agent message counts and last activity for a session.
func (m *Manager) Info(sessionID string) SessionInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	agents, ok := m.sessions[sessionID]
	if !ok {
		return SessionInfo{Exists: false, SessionID: sessionID}
	}

	info := SessionInfo{Exists: true, SessionID: sessionID, Agents: make(map[string]AgentInfo, len(agents))}
	for agent, entries := range agents {
		ai := AgentInfo{MessageCount: len(entries)}
		if len(entries) > 0 {
			ts := entries[len(entries)-1].Timestamp
			ai.LastMessage = &ts
		}
		info.Agents[agent] = ai
	}
	return info
}

// CleanupOlderThan drops sessions whose most recent message is older than
// maxAge. Sessions with no messages at all are kept. Returns the number of
// sessions removed.
func (m *Manager) CleanupOlderThan(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.now().Add(-maxAge)
	var stale []string
	for sessionID, agents := range m.sessions {
		var mostRecent time.Time
		for _, entries := range agents {
			if len(entries) == 0 {
				continue
			}
			if ts := entries[len(entries)-1].Timestamp; ts.After(mostRecent) {
				mostRecent = ts
			}
		}
		if !mostRecent.IsZero() && mostRecent.Before(cutoff) {
			stale = append(stale, sessionID)
		}
	}

	for _, sessionID := range stale {
		delete(m.sessions, sessionID)
		logging.Memory("Cleaned up stale session %s", sessionID)
	}
	if len(stale) > 0 {
		logging.Memory("Cleaned up %d stale sessions", len(stale))
	}
	return len(stale)
}

// RunCleanup sweeps stale sessions every interval until the context is
// cancelled. Intended to run in its own goroutine.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logging.Memory("Session cleanup running (interval %s, max age %s)", interval, maxAge)
	for {
		select {
		case <-ctx.Done():
			logging.Memory("Session cleanup stopped")
			return
		case <-ticker.C:
			m.CleanupOlderThan(maxAge)
		}
	}
}
