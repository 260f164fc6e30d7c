package docstore

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"sonagent/internal/embedding"
	"sonagent/internal/logging"
	"sonagent/internal/store"
)

// chunkMaxRunes bounds one indexed chunk. Paragraphs are merged up to this
// size; an oversized paragraph is hard-split.
const chunkMaxRunes = 600

// semanticMinSimilarity filters out hits that merely share vocabulary.
const semanticMinSimilarity = 0.35

// indexedChunk is one embedded piece of a document held in memory.
type indexedChunk struct {
	DocKey  string // source filename
	Content string
	Vector  []float32
}

// SemanticIndex answers similarity queries over embedded document chunks.
// The chunks and their vectors live in memory; the SQLite store keeps them
// across restarts so a warm start skips re-embedding.
type SemanticIndex struct {
	engine embedding.Engine
	db     *store.LocalStore // nil disables persistence

	mu     sync.RWMutex
	chunks []indexedChunk
}

// NewSemanticIndex creates an index over the given engine. db may be nil.
func NewSemanticIndex(engine embedding.Engine, db *store.LocalStore) *SemanticIndex {
	return &SemanticIndex{engine: engine, db: db}
}

// WarmStart loads previously persisted chunks into memory. Chunks without a
// stored vector are skipped; they will be re-embedded on the next Index.
func (si *SemanticIndex) WarmStart(ctx context.Context) error {
	if si.db == nil {
		return nil
	}
	stored, err := si.db.LoadAllChunks()
	if err != nil {
		return fmt.Errorf("failed to load persisted chunks: %w", err)
	}

	chunks := make([]indexedChunk, 0, len(stored))
	for _, c := range stored {
		if len(c.Embedding) == 0 {
			continue
		}
		chunks = append(chunks, indexedChunk{DocKey: c.DocKey, Content: c.Content, Vector: c.Embedding})
	}

	si.mu.Lock()
	si.chunks = chunks
	si.mu.Unlock()

	logging.Embedding("Semantic index warm-started with %d chunks", len(chunks))
	return nil
}

// Index chunks and embeds every document in the store, replacing the index
// contents. Documents that fail to embed are logged and skipped.
func (si *SemanticIndex) Index(ctx context.Context, s *Store) error {
	var all []indexedChunk
	indexed := 0

	for _, name := range s.ListDocuments() {
		doc, ok := s.GetDocument(name)
		if !ok {
			continue
		}
		pieces := chunkText(doc.Content, chunkMaxRunes)
		if len(pieces) == 0 {
			continue
		}

		vectors, err := si.engine.EmbedBatch(ctx, pieces)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logging.EmbeddingDebug("Embedding failed for %s: %v", doc.Filename, err)
			continue
		}

		stored := make([]store.DocChunk, 0, len(pieces))
		for i, piece := range pieces {
			if i >= len(vectors) || len(vectors[i]) == 0 {
				continue
			}
			all = append(all, indexedChunk{DocKey: doc.Filename, Content: piece, Vector: vectors[i]})
			stored = append(stored, store.DocChunk{
				DocKey:     doc.Filename,
				ChunkIndex: i,
				Content:    piece,
				Embedding:  vectors[i],
			})
		}
		if si.db != nil {
			if err := si.db.ReplaceDocChunks(doc.Filename, stored); err != nil {
				logging.Get(logging.CategoryEmbed).Warn("Failed to persist chunks for %s: %v", doc.Filename, err)
			}
		}
		indexed++
	}

	si.mu.Lock()
	si.chunks = all
	si.mu.Unlock()

	logging.Embedding("Semantic index built: %d documents, %d chunks", indexed, len(all))
	return nil
}

// Search embeds the query and returns the most similar chunks as search
// results. Relevance carries the similarity as a percentage.
func (si *SemanticIndex) Search(ctx context.Context, query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = 5
	}

	si.mu.RLock()
	chunks := si.chunks
	si.mu.RUnlock()
	if len(chunks) == 0 {
		return nil
	}

	var queryVec []float32
	var err error
	if qe, ok := si.engine.(embedding.QueryEmbedder); ok {
		queryVec, err = qe.EmbedQuery(ctx, query)
	} else {
		queryVec, err = si.engine.Embed(ctx, query)
	}
	if err != nil {
		logging.EmbeddingDebug("Query embedding failed: %v", err)
		return nil
	}

	corpus := make([][]float32, len(chunks))
	for i, c := range chunks {
		corpus[i] = c.Vector
	}
	top, err := embedding.FindTopK(queryVec, corpus, limit)
	if err != nil {
		return nil
	}

	var results []SearchResult
	for _, hit := range top {
		if hit.Similarity < semanticMinSimilarity {
			continue
		}
		c := chunks[hit.Index]
		results = append(results, SearchResult{
			Document:  strings.TrimSuffix(c.DocKey, "."+typeSuffix(c.DocKey)),
			Filename:  c.DocKey,
			Type:      "semantic",
			Snippet:   c.Content,
			Relevance: int(hit.Similarity * 100),
		})
	}
	return results
}

func typeSuffix(filename string) string {
	if i := strings.LastIndex(filename, "."); i >= 0 {
		return filename[i+1:]
	}
	return ""
}

// ChunkCount returns how many chunks are in memory.
func (si *SemanticIndex) ChunkCount() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.chunks)
}

// chunkText splits content into pieces of at most maxRunes runes, preferring
// paragraph boundaries.
func chunkText(content string, maxRunes int) []string {
	var chunks []string
	var current []rune

	flush := func() {
		text := strings.TrimSpace(string(current))
		if text != "" {
			chunks = append(chunks, text)
		}
		current = current[:0]
	}

	for _, para := range strings.Split(content, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		runes := []rune(para)

		// Hard-split paragraphs that alone exceed the budget.
		for len(runes) > maxRunes {
			flush()
			chunks = append(chunks, strings.TrimSpace(string(runes[:maxRunes])))
			runes = runes[maxRunes:]
		}
		if len(current) > 0 && len(current)+len(runes)+2 > maxRunes {
			flush()
		}
		if len(current) > 0 {
			current = append(current, '\n', '\n')
		}
		current = append(current, runes...)
	}
	flush()
	return chunks
}
