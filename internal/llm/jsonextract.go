// In file: internal/llm/jsonextract.go
package llm

import (
	"encoding/json"
	"regexp"
	"strings"
)

var fencedJSON = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ExtractJSON decodes the first JSON object found in a model reply into v.
// It accepts a bare object, a ```json fenced block, or an object embedded in
// prose. It reports false when nothing decodes; that is not an error.
func ExtractJSON(text string, v any) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	if json.Unmarshal([]byte(text), v) == nil {
		return true
	}
	if m := fencedJSON.FindStringSubmatch(text); len(m) > 1 {
		if json.Unmarshal([]byte(m[1]), v) == nil {
			return true
		}
	}
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		return json.Unmarshal([]byte(text[start:end+1]), v) == nil
	}
	return false
}
