package textutil

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// UnknownIntent is the fallback classifier output.
const UnknownIntent = `{"json":"Unknown"}`

var intentValues = []string{"Create_O", "Check_O", "Unknown"}

var (
	intentObjectRe = regexp.MustCompile(`(?i)\{[\s\S]*?"json"\s*:\s*"(Create_O|Check_O|Unknown)"[\s\S]*?\}`)
	intentPairRe   = regexp.MustCompile(`(?i)"json"\s*:\s*"(Create_O|Check_O|Unknown)"`)
)

// ExtractIntentJSON extracts the classifier JSON object from raw model
// output. Several strategies are tried in order; when none yields a valid
// intent the Unknown fallback is returned.
func ExtractIntentJSON(response string) string {
	if response == "" {
		return UnknownIntent
	}

	response = strings.ReplaceAll(response, "<|eot_id|>", "")
	response = strings.ReplaceAll(response, "<|end_of_text|>", "")
	response = strings.TrimSpace(response)

	// 1. A complete JSON object carrying the "json" key
	if m := intentObjectRe.FindString(response); m != "" {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(m), &parsed); err == nil {
			if v, ok := parsed["json"].(string); ok && isIntentValue(v) {
				return m
			}
		}
	}

	// 2. Just the key-value pair, rebuilt into an object.
	// The captured value keeps the model's casing.
	if m := intentPairRe.FindStringSubmatch(response); m != nil {
		return fmt.Sprintf(`{"json":"%s"}`, m[1])
	}

	// 3. A bare value, possibly wrapped in backticks or quotes
	clean := strings.TrimSpace(response)
	clean = strings.Trim(clean, "`")
	clean = strings.Trim(clean, `"`)
	clean = strings.Trim(clean, `'`)
	clean = strings.TrimSpace(clean)
	if isIntentValue(clean) {
		return fmt.Sprintf(`{"json":"%s"}`, clean)
	}

	// 4. Case variants of the bare value
	if v, ok := normalizeIntent(clean); ok {
		return fmt.Sprintf(`{"json":"%s"}`, v)
	}

	// 5. Any JSON object spanning the first '{' to the last '}'
	if start, end := strings.Index(response, "{"), strings.LastIndex(response, "}"); start != -1 && end > start {
		var parsed map[string]interface{}
		if err := json.Unmarshal([]byte(response[start:end+1]), &parsed); err == nil {
			if raw, ok := parsed["json"].(string); ok {
				if v, ok := normalizeIntent(raw); ok {
					return fmt.Sprintf(`{"json":"%s"}`, v)
				}
			}
		}
	}

	return UnknownIntent
}

func isIntentValue(v string) bool {
	for _, want := range intentValues {
		if v == want {
			return true
		}
	}
	return false
}

func normalizeIntent(v string) (string, bool) {
	switch strings.ToUpper(v) {
	case "CREATE_O":
		return "Create_O", true
	case "CHECK_O":
		return "Check_O", true
	case "UNKNOWN":
		return "Unknown", true
	}
	return "", false
}

// FirstJSONObject returns the first balanced JSON object embedded in s
// that unmarshals cleanly. Braces inside string literals are ignored.
func FirstJSONObject(s string) (string, bool) {
	for start := 0; start < len(s); start++ {
		if s[start] != '{' {
			continue
		}
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(s); i++ {
			c := s[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case c == '\\':
					escaped = true
				case c == '"':
					inString = false
				}
				continue
			}
			switch c {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					candidate := s[start : i+1]
					if json.Valid([]byte(candidate)) {
						return candidate, true
					}
					// Broken candidate; resume scanning after this brace
					i = len(s)
				}
			}
		}
	}
	return "", false
}
