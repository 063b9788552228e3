// In file: internal/llm/tokens.go
package llm

import (
	"math"
	"strings"
	"unicode"
)

// EstimateTokens approximates token usage as ceil(words / 0.75). A word is a
// run of letters, apostrophes or hyphens; digits and punctuation do not count.
func EstimateTokens(text string) int {
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\'' && r != '-'
	})
	n := 0
	for _, w := range words {
		if strings.IndexFunc(w, unicode.IsLetter) >= 0 {
			n++
		}
	}
	return int(math.Ceil(float64(n) / 0.75))
}
