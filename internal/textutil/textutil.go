// Package textutil provides the text helpers shared by the agent pipeline:
// input sanitization, Vietnamese phone validation, free-text item
// extraction, and size estimates.
package textutil

import (
	"regexp"
	"strconv"
	"strings"
)

// Llama 3 control tokens stripped from inputs and outputs.
var specialTokens = []string{
	"<|begin_of_text|>",
	"<|start_header_id|>",
	"<|end_header_id|>",
	"<|eot_id|>",
	"<|end_of_text|>",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// SanitizeText removes null bytes and model control tokens, collapses
// whitespace, and caps the result at maxLength runes.
func SanitizeText(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\x00", "")
	for _, tok := range specialTokens {
		text = strings.ReplaceAll(text, tok, "")
	}
	text = whitespaceRe.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if maxLength > 0 {
		if r := []rune(text); len(r) > maxLength {
			text = string(r[:maxLength])
		}
	}
	return text
}

var (
	phoneNoiseRe   = regexp.MustCompile(`[\s\-.]`)
	phonePatternRe = regexp.MustCompile(`^0[35789]\d{8}$`)
	nonDigitRe     = regexp.MustCompile(`\D`)
)

// NormalizePhone strips separators and converts the +84/84 country prefix
// to the leading-zero form.
func NormalizePhone(phone string) string {
	clean := phoneNoiseRe.ReplaceAllString(phone, "")
	if strings.HasPrefix(clean, "+84") {
		clean = "0" + clean[3:]
	} else if strings.HasPrefix(clean, "84") && len(clean) == 11 {
		clean = "0" + clean[2:]
	}
	return clean
}

// ValidatePhone reports whether phone is a valid Vietnamese mobile number.
// Valid numbers have ten digits, start with 0 and a carrier prefix of
// 3, 5, 7, 8 or 9. Separators and the +84 prefix are tolerated.
func ValidatePhone(phone string) bool {
	if phone == "" {
		return false
	}
	return phonePatternRe.MatchString(NormalizePhone(phone))
}

// DigitsOnly strips every non-digit rune.
func DigitsOnly(s string) string {
	return nonDigitRe.ReplaceAllString(s, "")
}

// Item is a product line extracted from free text.
type Item struct {
	Quantity    int    `json:"quantity"`
	Unit        string `json:"unit"`
	Description string `json:"description"`
}

const unitAlternatives = `lon|thùng|kết|bao|kg|lít|l|túi|hộp|chai|gói`

var (
	itemSeparatorRe = regexp.MustCompile(`,|\bvà\b|\n`)
	qtyFirstRe      = regexp.MustCompile(`(?i)(\d+)\s*(` + unitAlternatives + `)\s+(.+)`)
	qtyLastRe       = regexp.MustCompile(`(?i)(.+?)\s+(\d+)\s*(` + unitAlternatives + `)\b`)
)

// ExtractItems pulls product lines out of free text using unit keywords.
// Both "2 lon sơn dầu trắng" and "sơn dầu trắng 2 lon" forms are
// recognized; duplicates are dropped. Returns nil when nothing matches.
func ExtractItems(text string) []Item {
	if text == "" {
		return nil
	}

	var items []Item
	for _, segment := range itemSeparatorRe.Split(text, -1) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}

		if m := qtyFirstRe.FindStringSubmatch(segment); m != nil {
			if qty, err := strconv.Atoi(m[1]); err == nil && qty > 0 {
				desc := strings.TrimSpace(m[3])
				if desc != "" {
					items = append(items, Item{Quantity: qty, Unit: strings.ToLower(m[2]), Description: desc})
				}
			}
			continue
		}
		if m := qtyLastRe.FindStringSubmatch(segment); m != nil {
			if qty, err := strconv.Atoi(m[2]); err == nil && qty > 0 {
				desc := strings.TrimSpace(m[1])
				if desc != "" {
					items = append(items, Item{Quantity: qty, Unit: strings.ToLower(m[3]), Description: desc})
				}
			}
		}
	}

	// Drop duplicates, preserving first occurrence order
	seen := make(map[Item]bool, len(items))
	unique := items[:0]
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			unique = append(unique, it)
		}
	}
	if len(unique) == 0 {
		return nil
	}
	return unique
}

// TruncateString shortens text to maxLength runes, appending suffix when
// the text was cut.
func TruncateString(text string, maxLength int, suffix string) string {
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	suffixRunes := []rune(suffix)
	if maxLength <= len(suffixRunes) {
		return string(suffixRunes[:maxLength])
	}
	return string(runes[:maxLength-len(suffixRunes)]) + suffix
}

// EstimateTokens gives a rough token count for Vietnamese text,
// about 1.3 tokens per whitespace-separated word.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	words := len(strings.Fields(text))
	return int(float64(words) * 1.3)
}
