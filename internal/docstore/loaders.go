package docstore

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"sonagent/internal/logging"
)

// docName is the cache key for a file: its base name without extension.
func docName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadTxt reads a plain text file (product sheets, usage guides).
func loadTxt(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}
	content := string(data)
	logging.DocsDebug("TXT: %s (%d bytes)", filepath.Base(path), len(content))
	return Document{
		Name:     docName(path),
		Filename: filepath.Base(path),
		Filepath: path,
		Type:     "text",
		Content:  content,
		Size:     len(content),
	}, nil
}

// loadJSON reads a JSON file (product catalogs, price tables). Entries with
// an id or name are also fed into the product cache, either from a top-level
// array or from a "products" key.
func loadJSON(path string, addProduct func(Product)) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, err
	}

	var parsed interface{}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return Document{}, fmt.Errorf("invalid JSON: %w", err)
	}

	pretty, err := json.MarshalIndent(parsed, "", "  ")
	if err != nil {
		return Document{}, err
	}
	content := string(pretty)

	collect := func(items []interface{}) {
		for _, item := range items {
			if m, ok := item.(map[string]interface{}); ok {
				addProduct(Product(m))
			}
		}
	}
	switch v := parsed.(type) {
	case []interface{}:
		collect(v)
	case map[string]interface{}:
		if items, ok := v["products"].([]interface{}); ok {
			collect(items)
		}
	}

	logging.DocsDebug("JSON: %s", filepath.Base(path))
	return Document{
		Name:     docName(path),
		Filename: filepath.Base(path),
		Filepath: path,
		Type:     "json",
		Content:  content,
		Size:     len(content),
	}, nil
}

// loadCSV reads a CSV file with a header row (spec tables). Rows with an id
// or name column also land in the product cache.
func loadCSV(path string, addProduct func(Product)) (Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return Document{}, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return Document{}, fmt.Errorf("invalid CSV: %w", err)
	}
	if len(records) == 0 {
		return Document{}, fmt.Errorf("empty CSV")
	}

	header := records[0]
	rows := make([]map[string]interface{}, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(map[string]interface{}, len(header))
		for i, col := range header {
			if i < len(record) {
				row[col] = record[i]
			} else {
				row[col] = ""
			}
		}
		rows = append(rows, row)
		if _, ok := row["id"]; ok {
			addProduct(Product(row))
		} else if _, ok := row["name"]; ok {
			addProduct(Product(row))
		}
	}

	pretty, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return Document{}, err
	}

	logging.DocsDebug("CSV: %s (%d rows)", filepath.Base(path), len(rows))
	return Document{
		Name:     docName(path),
		Filename: filepath.Base(path),
		Filepath: path,
		Type:     "csv",
		Content:  string(pretty),
		Size:     len(rows),
	}, nil
}

// loadPDF extracts plain text from a PDF, one page banner per page.
func loadPDF(path string) (Document, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := reader.NumPage()
	for i := 1; i <= pages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		fmt.Fprintf(&b, "\n--- Trang %d ---\n", i)
		text, err := page.GetPlainText(nil)
		if err != nil {
			logging.DocsWarn("Failed to extract page %d of %s: %v", i, filepath.Base(path), err)
			continue
		}
		b.WriteString(text)
		b.WriteString("\n")
	}

	content := b.String()
	logging.DocsDebug("PDF: %s (%d pages)", filepath.Base(path), pages)
	return Document{
		Name:     docName(path),
		Filename: filepath.Base(path),
		Filepath: path,
		Type:     "pdf",
		Content:  content,
		Pages:    pages,
		Size:     len(content),
	}, nil
}
