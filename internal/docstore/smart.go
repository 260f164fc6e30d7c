package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"sonagent/internal/llm"
	"sonagent/internal/logging"
	"sonagent/internal/textutil"
)

// maxRewriteQueries caps how many search queries one user question expands to.
const maxRewriteQueries = 5

// stopWords are dropped by the keyword fallback.
var stopWords = map[string]struct{}{
	"là": {}, "gì": {}, "như": {}, "thế": {}, "nào": {},
	"được": {}, "không": {}, "có": {}, "của": {}, "thì": {},
}

const rewriteSystemPrompt = "Bạn là trợ lý phân tích câu hỏi. CHỈ trả về JSON."

const rewritePromptFormat = `Phân tích câu hỏi của khách hàng và trích xuất thông tin tìm kiếm.

Câu hỏi: "%s"%s

Nhiệm vụ:
1. Xác định chủ đề chính (sản phẩm nào? sơn 2K, sơn 1K, sơn dầu...)
2. Xác định thông tin cần tìm (giá? thành phần? ứng dụng? cách dùng?)
3. Tạo 3-5 search queries ngắn gọn để tìm trong tài liệu

Trả về ĐÚNG format JSON:
{
  "main_topic": "sơn 2K",
  "question_type": "ứng dụng",
  "search_queries": [
    "sơn 2k",
    "ứng dụng sơn 2k",
    "sơn ngoài trời"
  ],
  "entities": ["sơn 2K", "ngoài trời"]
}

CHỈ trả về JSON, không giải thích.`

// generator is the slice of llm.Handler the rewriter needs.
type generator interface {
	Generate(ctx context.Context, systemPrompt, userInput string, history []llm.Message, opts llm.GenerateOptions) (string, error)
}

// rewriteResult is the JSON shape the rewrite prompt asks for.
type rewriteResult struct {
	MainTopic     string   `json:"main_topic"`
	QuestionType  string   `json:"question_type"`
	SearchQueries []string `json:"search_queries"`
	Entities      []string `json:"entities"`
}

// topicContext is what the rewriter remembers about a session between
// questions, so "còn loại kia thì sao?" can resolve against the prior topic.
type topicContext struct {
	Topic    string
	Entities []string
}

// SmartResults is what SmartSearch found.
type SmartResults struct {
	Documents   []SearchResult `json:"documents"`
	Products    []Product      `json:"products"`
	QueriesUsed []string       `json:"queries_used"`
}

// Smart layers LLM query rewriting and per-session topic tracking over a
// Store. With a nil generator it degrades to plain keyword extraction.
type Smart struct {
	store *Store
	gen   generator

	semantic *SemanticIndex // optional

	mu       sync.Mutex
	sessions map[string]topicContext
}

// NewSmart wraps a store. gen may be nil.
func NewSmart(store *Store, gen generator) *Smart {
	return &Smart{
		store:    store,
		gen:      gen,
		sessions: make(map[string]topicContext),
	}
}

// SetSemanticIndex attaches an embedding-based index that augments search.
func (s *Smart) SetSemanticIndex(idx *SemanticIndex) {
	s.semantic = idx
}

// Store returns the wrapped document store.
func (s *Smart) Store() *Store { return s.store }

// RewriteQuery expands the user question into short search queries. When a
// model is available it analyzes the question (with the session's previous
// topic as context); otherwise, or on any failure, keyword extraction is
// used instead.
func (s *Smart) RewriteQuery(ctx context.Context, userInput, sessionID string) []string {
	if s.gen == nil {
		return simpleKeywords(userInput)
	}

	var prevContext string
	if sessionID != "" {
		s.mu.Lock()
		if tc, ok := s.sessions[sessionID]; ok && tc.Topic != "" {
			prevContext = "\nCâu hỏi trước đó về: " + tc.Topic
		}
		s.mu.Unlock()
	}

	prompt := fmt.Sprintf(rewritePromptFormat, userInput, prevContext)

	temp := 0.3
	maxTokens := 256
	response, err := s.gen.Generate(ctx, rewriteSystemPrompt, prompt, nil, llm.GenerateOptions{
		Temperature: &temp,
		MaxTokens:   &maxTokens,
	})
	if err == nil {
		if raw, ok := textutil.FirstJSONObject(response); ok {
			var result rewriteResult
			if jsonErr := json.Unmarshal([]byte(raw), &result); jsonErr == nil && len(result.SearchQueries) > 0 {
				if sessionID != "" {
					s.mu.Lock()
					s.sessions[sessionID] = topicContext{Topic: result.MainTopic, Entities: result.Entities}
					s.mu.Unlock()
				}
				queries := result.SearchQueries
				if len(queries) > maxRewriteQueries {
					queries = queries[:maxRewriteQueries]
				}
				logging.Docs("Rewritten queries: %v", queries)
				return queries
			}
		}
	}

	logging.DocsWarn("Query rewriting failed, using keyword fallback")
	return simpleKeywords(userInput)
}

// simpleKeywords extracts search queries without a model: stop words out,
// short words out, then single keywords plus bigrams.
func simpleKeywords(text string) []string {
	var keywords []string
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if _, stop := stopWords[w]; stop {
			continue
		}
		if len([]rune(w)) <= 2 {
			continue
		}
		keywords = append(keywords, w)
	}

	var queries []string
	if len(keywords) > 0 && len(keywords) <= 3 {
		queries = append(queries, strings.Join(keywords, " "))
	}
	for i, kw := range keywords {
		if i >= 3 {
			break
		}
		queries = append(queries, kw)
	}
	for i := 0; i+1 < len(keywords); i++ {
		queries = append(queries, keywords[i]+" "+keywords[i+1])
	}

	// Dedup, keep at most maxRewriteQueries, stable order.
	seen := make(map[string]struct{}, len(queries))
	var out []string
	for _, q := range queries {
		if _, dup := seen[q]; dup || q == "" {
			continue
		}
		seen[q] = struct{}{}
		out = append(out, q)
		if len(out) == maxRewriteQueries {
			break
		}
	}
	return out
}

// SmartSearch runs every rewritten query against documents and products,
// deduplicating hits across queries.
func (s *Smart) SmartSearch(ctx context.Context, userInput, sessionID string, limit int) SmartResults {
	if limit <= 0 {
		limit = 5
	}

	queries := s.RewriteQuery(ctx, userInput, sessionID)
	logging.Docs("Searching with %d queries: %v", len(queries), queries)

	var docResults []SearchResult
	var productResults []Product
	seenDocs := make(map[string]struct{})
	seenProducts := make(map[string]struct{})

	for _, query := range queries {
		for _, doc := range s.store.Search(query, 2) {
			if _, dup := seenDocs[doc.Filename]; dup {
				continue
			}
			seenDocs[doc.Filename] = struct{}{}
			docResults = append(docResults, doc)
		}
		for _, prod := range s.store.SearchProducts(query, 2) {
			key, _ := productKey(prod)
			if _, dup := seenProducts[key]; dup {
				continue
			}
			seenProducts[key] = struct{}{}
			productResults = append(productResults, prod)
		}
	}

	// Semantic hits fill in what keyword search missed.
	if s.semantic != nil {
		for _, hit := range s.semantic.Search(ctx, userInput, 2) {
			if _, dup := seenDocs[hit.Filename]; dup {
				continue
			}
			seenDocs[hit.Filename] = struct{}{}
			docResults = append(docResults, hit)
		}
	}

	sort.SliceStable(docResults, func(i, j int) bool {
		return docResults[i].Relevance > docResults[j].Relevance
	})
	if len(docResults) > limit {
		docResults = docResults[:limit]
	}
	if len(productResults) > limit {
		productResults = productResults[:limit]
	}

	logging.Docs("Found %d docs, %d products", len(docResults), len(productResults))
	return SmartResults{Documents: docResults, Products: productResults, QueriesUsed: queries}
}

// ContextAwareInfo renders SmartSearch results as a prompt context block,
// truncated to maxLength runes.
func (s *Smart) ContextAwareInfo(ctx context.Context, userInput, sessionID string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 2000
	}

	results := s.SmartSearch(ctx, userInput, sessionID, 3)

	var b strings.Builder
	if len(results.Documents) > 0 {
		b.WriteString("\n\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		b.WriteString("📚 THÔNG TIN TỪ TÀI LIỆU:\n")
		b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		for _, doc := range results.Documents {
			b.WriteString("\n[" + doc.Filename + "]\n")
			b.WriteString(doc.Snippet + "\n")
		}
	}
	if len(results.Products) > 0 {
		b.WriteString("\n\n━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		b.WriteString("🏷️ THÔNG TIN SẢN PHẨM:\n")
		b.WriteString("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━\n")
		for _, prod := range results.Products {
			b.WriteString("\n📦 " + productLabel(prod) + ":\n")
			for _, field := range []string{"type", "color", "price", "description", "weights"} {
				if v, ok := prod[field]; ok {
					b.WriteString("   • " + field + ": " + formatValue(v) + "\n")
				}
			}
		}
	}

	context := b.String()
	if runes := []rune(context); len(runes) > maxLength {
		context = string(runes[:maxLength]) + "\n\n... (Nội dung bị cắt ngắn)"
	}
	if context == "" {
		context = "\n\n⚠️ Không tìm thấy thông tin liên quan trong tài liệu.\n"
	}
	return context
}

// formatValue renders a product field for the context block.
func formatValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	}
}

// ForgetSession drops the rewriter's topic memory for one session.
func (s *Smart) ForgetSession(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
}
