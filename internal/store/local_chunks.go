package store

import (
	"encoding/json"
	"fmt"

	"sonagent/internal/logging"
)

// DocChunk is one indexed piece of a source document, with its embedding
// vector when semantic search is enabled. Embeddings are stored as JSON so
// the schema stays portable across sqlite builds.
type DocChunk struct {
	DocKey     string    `json:"doc_key"`
	ChunkIndex int       `json:"chunk_index"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	Metadata   string    `json:"metadata,omitempty"`
}

// ReplaceDocChunks swaps all chunks for a document in one transaction, so a
// re-indexed document never shows a mix of old and new chunks.
func (s *LocalStore) ReplaceDocChunks(docKey string, chunks []DocChunk) error {
	timer := logging.StartTimer(logging.CategoryStore, "ReplaceDocChunks")
	defer timer.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM doc_chunks WHERE doc_key = ?", docKey); err != nil {
		return fmt.Errorf("failed to clear chunks for %s: %w", docKey, err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO doc_chunks (doc_key, chunk_index, content, embedding, metadata)
		 VALUES (?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		var embJSON string
		if len(c.Embedding) > 0 {
			data, err := json.Marshal(c.Embedding)
			if err != nil {
				return fmt.Errorf("failed to encode embedding: %w", err)
			}
			embJSON = string(data)
		}
		if _, err := stmt.Exec(docKey, c.ChunkIndex, c.Content, embJSON, c.Metadata); err != nil {
			return fmt.Errorf("failed to insert chunk %d of %s: %w", c.ChunkIndex, docKey, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}
	logging.StoreDebug("Replaced %d chunks for document %s", len(chunks), docKey)
	return nil
}

// LoadAllChunks returns every indexed chunk, ordered by document and chunk
// position. Used to warm-start the in-memory semantic index.
func (s *LocalStore) LoadAllChunks() ([]DocChunk, error) {
	timer := logging.StartTimer(logging.CategoryStore, "LoadAllChunks")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT doc_key, chunk_index, content, embedding, metadata
		 FROM doc_chunks
		 ORDER BY doc_key, chunk_index`,
	)
	if err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to load chunks: %v", err)
		return nil, err
	}
	defer rows.Close()

	var chunks []DocChunk
	for rows.Next() {
		var c DocChunk
		var embJSON string
		if err := rows.Scan(&c.DocKey, &c.ChunkIndex, &c.Content, &embJSON, &c.Metadata); err != nil {
			continue
		}
		if embJSON != "" {
			if err := json.Unmarshal([]byte(embJSON), &c.Embedding); err != nil {
				logging.Get(logging.CategoryStore).Warn("Corrupt embedding for %s[%d]: %v", c.DocKey, c.ChunkIndex, err)
			}
		}
		chunks = append(chunks, c)
	}
	logging.StoreDebug("Loaded %d indexed chunks", len(chunks))
	return chunks, rows.Err()
}

// DeleteDocChunks removes all chunks of one document.
func (s *LocalStore) DeleteDocChunks(docKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM doc_chunks WHERE doc_key = ?", docKey); err != nil {
		logging.Get(logging.CategoryStore).Error("Failed to delete chunks for %s: %v", docKey, err)
		return err
	}
	logging.StoreDebug("Deleted chunks for document %s", docKey)
	return nil
}

// IndexedDocuments lists the doc keys currently present in the index.
func (s *LocalStore) IndexedDocuments() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT DISTINCT doc_key FROM doc_chunks ORDER BY doc_key")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			continue
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
