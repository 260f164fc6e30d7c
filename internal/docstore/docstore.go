// Package docstore loads the product documentation folder and answers
// keyword and product lookups over it. Documents are cached whole in memory;
// the folder is small (product sheets, price lists, application guides) and
// reloading is cheap enough to do on every change.
package docstore

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode/utf8"

	"sonagent/internal/logging"
)

// snippetRadius is how many bytes of surrounding context a search hit keeps
// on each side, snapped outward to rune boundaries.
const snippetRadius = 200

// noContextFound is returned when nothing in the folder matches a query.
const noContextFound = "Không tìm thấy thông tin liên quan trong tài liệu."

// Document is one loaded file.
type Document struct {
	Name     string `json:"name"` // filename without extension
	Filename string `json:"filename"`
	Filepath string `json:"filepath"`
	Type     string `json:"type"` // text, json, csv, pdf
	Content  string `json:"-"`
	Pages    int    `json:"pages,omitempty"`
	Size     int    `json:"size"`
}

// Product is one entry from a JSON or CSV product file. Fields vary per
// source file, so it stays a loose map.
type Product map[string]interface{}

// SearchResult is one document hit.
type SearchResult struct {
	Document  string `json:"document"`
	Filename  string `json:"filename"`
	Type      string `json:"type"`
	Snippet   string `json:"snippet"`
	Relevance int    `json:"relevance"`
}

// Store holds the loaded documentation folder.
type Store struct {
	dir string

	mu           sync.RWMutex
	documents    map[string]Document
	products     map[string]Product
	productOrder []string // insertion order, for stable search results
}

// NewStore creates a store over the given folder, creating it when missing.
// Call Load to read the files.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create documents directory: %w", err)
	}
	logging.Docs("Document store initialized with directory: %s", dir)
	return &Store{
		dir:       dir,
		documents: make(map[string]Document),
		products:  make(map[string]Product),
	}, nil
}

// Dir returns the documents directory.
func (s *Store) Dir() string { return s.dir }

// Load scans the folder recursively and replaces the cache with what it
// finds. Unsupported extensions are skipped; a broken file is logged and
// skipped without failing the whole scan.
func (s *Store) Load() error {
	logging.Docs("Scanning documents in %s...", s.dir)

	documents := make(map[string]Document)
	products := make(map[string]Product)
	var productOrder []string

	var files []string
	err := filepath.WalkDir(s.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan %s: %w", s.dir, err)
	}
	sort.Strings(files)
	logging.Docs("Found %d files", len(files))

	addProduct := func(p Product) {
		key, ok := productKey(p)
		if !ok {
			return
		}
		if _, seen := products[key]; !seen {
			productOrder = append(productOrder, key)
		}
		products[key] = p
	}

	for _, path := range files {
		var (
			doc Document
			err error
		)
		switch strings.ToLower(filepath.Ext(path)) {
		case ".txt":
			doc, err = loadTxt(path)
		case ".json":
			doc, err = loadJSON(path, addProduct)
		case ".csv":
			doc, err = loadCSV(path, addProduct)
		case ".pdf":
			doc, err = loadPDF(path)
		default:
			logging.DocsDebug("Skipping %s (unsupported extension)", filepath.Base(path))
			continue
		}
		if err != nil {
			logging.DocsWarn("Failed to load %s: %v", filepath.Base(path), err)
			continue
		}
		documents[doc.Name] = doc
	}

	s.mu.Lock()
	s.documents = documents
	s.products = products
	s.productOrder = productOrder
	s.mu.Unlock()

	logging.Docs("Loaded %d documents and %d products", len(documents), len(products))
	for _, name := range sortedKeys(documents) {
		d := documents[name]
		logging.DocsDebug("  - %s (%s, %d bytes)", name, d.Type, len(d.Content))
	}
	return nil
}

// productKey picks the cache key for a product row: id first, then name.
func productKey(p Product) (string, bool) {
	if id, ok := p["id"].(string); ok && id != "" {
		return id, true
	}
	if name, ok := p["name"].(string); ok && name != "" {
		return name, true
	}
	return "", false
}

func sortedKeys(m map[string]Document) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Search finds documents containing the query (case-insensitive substring)
// and returns snippets around the first occurrence, most relevant first.
// Relevance is the occurrence count.
func (s *Store) Search(query string, limit int) []SearchResult {
	if limit <= 0 {
		limit = 5
	}
	queryLower := strings.ToLower(query)
	if strings.TrimSpace(queryLower) == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []SearchResult
	for _, name := range sortedKeys(s.documents) {
		doc := s.documents[name]
		contentLower := strings.ToLower(doc.Content)
		idx := strings.Index(contentLower, queryLower)
		if idx < 0 {
			continue
		}
		results = append(results, SearchResult{
			Document:  name,
			Filename:  doc.Filename,
			Type:      doc.Type,
			Snippet:   snippetAround(doc.Content, idx, len(queryLower)),
			Relevance: strings.Count(contentLower, queryLower),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	if len(results) > limit {
		results = results[:limit]
	}
	return results
}

// snippetAround extracts text around a match, snapping the cut points to
// rune boundaries so Vietnamese text never ends up with broken characters.
func snippetAround(content string, idx, matchLen int) string {
	start := idx - snippetRadius
	if start < 0 {
		start = 0
	}
	end := idx + matchLen + snippetRadius
	if end > len(content) {
		end = len(content)
	}
	for start > 0 && !utf8.RuneStart(content[start]) {
		start--
	}
	for end < len(content) && !utf8.RuneStart(content[end]) {
		end++
	}
	return strings.TrimSpace(content[start:end])
}

// SearchProducts finds products whose JSON form contains the query.
func (s *Store) SearchProducts(query string, limit int) []Product {
	if limit <= 0 {
		limit = 5
	}
	queryLower := strings.ToLower(query)
	if strings.TrimSpace(queryLower) == "" {
		return nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []Product
	for _, key := range s.productOrder {
		p := s.products[key]
		data, err := json.Marshal(p)
		if err != nil {
			continue
		}
		if strings.Contains(strings.ToLower(string(data)), queryLower) {
			hit := Product{"id": key}
			for k, v := range p {
				hit[k] = v
			}
			results = append(results, hit)
		}
		if len(results) >= limit {
			break
		}
	}
	return results
}

// RelevantContext builds a prompt context block from document and product
// hits for the query, truncated to maxLength runes.
func (s *Store) RelevantContext(query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 2000
	}

	docResults := s.Search(query, 3)
	productResults := s.SearchProducts(query, 3)

	var b strings.Builder
	if len(docResults) > 0 {
		b.WriteString("THÔNG TIN TỪ TÀI LIỆU:\n\n")
		for _, r := range docResults {
			fmt.Fprintf(&b, "[%s]\n%s\n\n", r.Filename, r.Snippet)
		}
	}
	if len(productResults) > 0 {
		b.WriteString("THÔNG TIN SẢN PHẨM:\n\n")
		for _, p := range productResults {
			fmt.Fprintf(&b, "- %s:\n", productLabel(p))
			for _, k := range sortedProductFields(p) {
				fmt.Fprintf(&b, "  %s: %v\n", k, p[k])
			}
			b.WriteString("\n")
		}
	}

	context := b.String()
	if context == "" {
		return noContextFound
	}
	if runes := []rune(context); len(runes) > maxLength {
		context = string(runes[:maxLength]) + "..."
	}
	return context
}

// productLabel prefers the display name, falling back to the id.
func productLabel(p Product) string {
	if name, ok := p["name"].(string); ok && name != "" {
		return name
	}
	if id, ok := p["id"].(string); ok {
		return id
	}
	return ""
}

// sortedProductFields lists a product's fields except id and name, sorted
// for stable output.
func sortedProductFields(p Product) []string {
	fields := make([]string, 0, len(p))
	for k := range p {
		if k == "id" || k == "name" {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	return fields
}

// ListDocuments returns the names of all loaded documents, sorted.
func (s *Store) ListDocuments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.documents)
}

// GetDocument returns one document by name.
func (s *Store) GetDocument(name string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.documents[name]
	return doc, ok
}

// DocumentCount returns how many documents are loaded.
func (s *Store) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents)
}

// ProductCount returns how many products are cached.
func (s *Store) ProductCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products)
}
