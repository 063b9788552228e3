// In file: internal/location/intent.go
package location

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// IntentWeather is the only intent the assistant routes on.
const IntentWeather = "weather"

// weatherKeywords covers Spanish and English phrasing. Each keyword must
// appear as a whole word, so "sol" does not fire on "soltero".
var weatherKeywords = []string{
	"clima", "tiempo", "temperatura", "lluvia", "sol", "nublado",
	"weather", "temperature", "rain", "sunny", "cloudy",
	"°c", "°f", "grados", "calor", "frío", "viento", "humedad",
	"forecast", "pronóstico", "pronostico", "how hot is it", "is it raining",
}

// IntentAnalyzer is a keyword classifier for weather questions.
type IntentAnalyzer struct {
	keywords []string
}

func NewIntentAnalyzer() *IntentAnalyzer {
	return &IntentAnalyzer{keywords: weatherKeywords}
}

// IsWeatherQuery reports whether text mentions any weather keyword.
func (ia *IntentAnalyzer) IsWeatherQuery(text string) bool {
	if ia == nil {
		return false
	}
	_, ok := ia.Match(text)
	return ok
}

// Match returns the first keyword found in text.
func (ia *IntentAnalyzer) Match(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, kw := range ia.keywords {
		if containsWord(lower, kw) {
			return kw, true
		}
	}
	return "", false
}

// AnalyzeIntent returns IntentWeather or the empty string.
func (ia *IntentAnalyzer) AnalyzeIntent(text string) string {
	if ia.IsWeatherQuery(text) {
		return IntentWeather
	}
	return ""
}

// containsWord reports whether word occurs in s with no letter directly
// before or after it. Both arguments are expected in lower case.
func containsWord(s, word string) bool {
	if word == "" {
		return false
	}
	for offset := 0; offset < len(s); {
		i := strings.Index(s[offset:], word)
		if i < 0 {
			return false
		}
		start := offset + i
		end := start + len(word)
		if boundaryBefore(s, start) && boundaryAfter(s, end) {
			return true
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		offset = start + size
	}
	return false
}

func boundaryBefore(s string, i int) bool {
	if i == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return !unicode.IsLetter(r)
}

func boundaryAfter(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return !unicode.IsLetter(r)
}
