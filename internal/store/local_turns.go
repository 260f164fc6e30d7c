package store

import (
	"time"

	"sonagent/internal/logging"
	"sonagent/internal/memory"
)

// ArchiveTurn records one conversation turn. Uses INSERT OR IGNORE so a
// replayed (session, agent, seq) triple is silently skipped, which makes the
// archive hook safe to call repeatedly.
func (s *LocalStore) ArchiveTurn(sessionID, agent string, seq int, entry memory.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO conversation_turns (session_id, agent, seq, role, content, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		sessionID, agent, seq, entry.Role, entry.Content, entry.Timestamp.UTC(),
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to archive turn: session=%s agent=%s seq=%d: %v", sessionID, agent, seq, err)
		return err
	}
	logging.StoreDebug("Archived turn: session=%s agent=%s seq=%d", sessionID, agent, seq)
	return nil
}

// ArchivedTurn is one row of the conversation archive.
type ArchivedTurn struct {
	SessionID string    `json:"session_id"`
	Agent     string    `json:"agent"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionTurns returns the archived turns for one session and agent in
// sequence order.
func (s *LocalStore) SessionTurns(sessionID, agent string, limit int) ([]ArchivedTurn, error) {
	timer := logging.StartTimer(logging.CategoryStore, "SessionTurns")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.Query(
		`SELECT session_id, agent, seq, role, content, created_at
		 FROM conversation_turns
		 WHERE session_id = ? AND agent = ?
		 ORDER BY seq ASC
		 LIMIT ?`,
		sessionID, agent, limit,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to query turns for %s/%s: %v", sessionID, agent, err)
		return nil, err
	}
	defer rows.Close()

	var turns []ArchivedTurn
	for rows.Next() {
		var t ArchivedTurn
		if err := rows.Scan(&t.SessionID, &t.Agent, &t.Seq, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	logging.StoreDebug("Retrieved %d archived turns for %s/%s", len(turns), sessionID, agent)
	return turns, rows.Err()
}

// PurgeTurnsBefore deletes archived turns older than the cutoff. Returns the
// number of rows removed.
func (s *LocalStore) PurgeTurnsBefore(cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec("DELETE FROM conversation_turns WHERE created_at < ?", cutoff.UTC())
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to purge old turns: %v", err)
		return 0, err
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		logging.Store("Purged %d archived turns older than %s", n, cutoff.Format("2006-01-02"))
	}
	return int(n), nil
}
