// In file: internal/guard/guard.go

// Package guard flags and neutralizes common prompt-injection phrasing in
// user messages. It is a best-effort filter, not a security boundary.
package guard

import (
	"log"
	"regexp"
	"strings"

	"github.com/dileep-u-k/weatherbot/internal/metrics"
)

// MaxInputRunes is the length user input is truncated to before it reaches
// the model.
const MaxInputRunes = 2000

const filtered = "[FILTERED]"

var (
	injectionPatterns = []*regexp.Regexp{
		// Accepts "ignore all previous instructions" as well as the two-word forms.
		regexp.MustCompile(`(?i)ignore\s+(?:(?:previous|above|all)\s+)+instructions?`),
		regexp.MustCompile(`(?i)you\s+are\s+now\s+`),
		regexp.MustCompile(`(?i)forget\s+(?:everything|all|previous)`),
		regexp.MustCompile(`(?i)pretend\s+to\s+be`),
		regexp.MustCompile(`(?i)system\s*:\s*`),
		regexp.MustCompile(`(?i)new\s+instructions?`),
		regexp.MustCompile(`(?i)<\|im_start\|>`),
		regexp.MustCompile(`(?i)<\|im_end\|>`),
		regexp.MustCompile(`(?i)###\s*System`),
	}

	// "act as" is only suspicious when the rest of the line is not about weather.
	actAsPattern   = regexp.MustCompile(`(?i)act\s+as\s+`)
	actAsAllowList = regexp.MustCompile(`(?i)weather|clima`)

	keywordPattern   = regexp.MustCompile(`(?i)\b(?:ignore|forget|pretend|system|instructions?)\b`)
	weatherFollowing = regexp.MustCompile(`(?i)^\s+weather`)
	specialTokens    = regexp.MustCompile(`<\|.*?\|>`)
	roleHeaders      = regexp.MustCompile(`###\s*\w+:`)
)

// Guard is stateless; the zero value is ready to use.
type Guard struct{}

func New() *Guard {
	return &Guard{}
}

// DetectInjection reports whether text matches a known injection signature.
// A match is logged together with the offending input.
func (g *Guard) DetectInjection(text string) bool {
	for _, p := range injectionPatterns {
		if p.MatchString(text) {
			log.Printf("⚠️ Potential prompt injection detected (pattern %q): %q", p.String(), text)
			return true
		}
	}
	if actAsWithoutWeather(text) {
		log.Printf("⚠️ Potential prompt injection detected (act as): %q", text)
		return true
	}
	return false
}

func actAsWithoutWeather(text string) bool {
	for _, loc := range actAsPattern.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		if i := strings.IndexByte(rest, '\n'); i >= 0 {
			rest = rest[:i]
		}
		if !actAsAllowList.MatchString(rest) {
			return true
		}
	}
	return false
}

// Sanitize replaces control keywords with [FILTERED] unless they are followed
// by "weather", strips special tokens and role headers, truncates to
// MaxInputRunes and trims.
func (g *Guard) Sanitize(text string) string {
	var b strings.Builder
	last := 0
	for _, loc := range keywordPattern.FindAllStringIndex(text, -1) {
		if weatherFollowing.MatchString(text[loc[1]:]) {
			continue
		}
		b.WriteString(text[last:loc[0]])
		b.WriteString(filtered)
		last = loc[1]
	}
	b.WriteString(text[last:])

	out := specialTokens.ReplaceAllString(b.String(), "")
	out = roleHeaders.ReplaceAllString(out, "")

	if r := []rune(out); len(r) > MaxInputRunes {
		out = string(r[:MaxInputRunes])
	}
	return strings.TrimSpace(out)
}

// Check runs detection and sanitization in the order the assistant needs
// them. Flagged input is counted and still sanitized; it is never rejected.
func (g *Guard) Check(text string) (string, bool) {
	flagged := g.DetectInjection(text)
	if flagged {
		metrics.PromptInjectionsTotal.Inc()
	}
	return g.Sanitize(text), flagged
}
