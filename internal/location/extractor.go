// In file: internal/location/extractor.go
package location

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	// shortMessageLimit is the rune length under which a whole message may
	// itself be a place name.
	shortMessageLimit = 50
	minLocationRunes  = 2
	trimCutset        = " \t\n\r\x00\x0B.,;:!?¿¡\"'"
)

// capitalizedRun matches runs of capitalized words, accents included.
var capitalizedRun = regexp.MustCompile(`\p{Lu}\p{Ll}+(?:\s+\p{Lu}\p{Ll}+)*`)

// Extractor applies Rules to user messages. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	rules *Rules
}

func NewExtractor(rules *Rules) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules}
}

// IsWeatherQuery runs the rule set's intent analyzer. Rules without one
// never classify a message as weather.
func (e *Extractor) IsWeatherQuery(msg string) bool {
	return e.rules.Intent.IsWeatherQuery(msg)
}

// ExtractLocation returns the best location candidate in raw. The stages run
// in a fixed order and the first hit wins.
func (e *Extractor) ExtractLocation(raw string) (string, bool) {
	msg := strings.TrimSpace(raw)
	if msg == "" {
		return "", false
	}

	if loc, ok := e.knownCity(msg); ok {
		return loc, true
	}
	if loc, ok := e.phrase(msg); ok {
		return loc, true
	}
	if loc, ok := e.shortMessage(msg); ok {
		return loc, true
	}
	if loc, ok := e.capitalized(msg); ok {
		return loc, true
	}
	return "", false
}

func (e *Extractor) knownCity(msg string) (string, bool) {
	lower := strings.ToLower(msg)
	for _, c := range e.rules.KnownCities {
		if containsWord(lower, c.Alias) {
			return c.Canonical, true
		}
	}
	return "", false
}

func (e *Extractor) phrase(msg string) (string, bool) {
	weatherFlavored := e.IsWeatherQuery(msg)
	for _, rule := range e.rules.Phrases {
		if rule.RequiresWeatherContext && !weatherFlavored {
			continue
		}
		m := rule.Pattern.FindStringSubmatch(msg)
		if len(m) < 2 {
			continue
		}
		if loc, ok := e.CleanLocationString(m[1]); ok {
			return loc, true
		}
	}
	return "", false
}

func (e *Extractor) shortMessage(msg string) (string, bool) {
	if utf8.RuneCountInString(msg) > shortMessageLimit {
		return "", false
	}
	if e.rules.Fillers != nil && e.rules.Fillers.MatchString(msg) {
		return "", false
	}
	if e.rules.WeatherNouns != nil {
		msg = stripAll(e.rules.WeatherNouns, msg)
	}
	return e.CleanLocationString(msg)
}

func (e *Extractor) capitalized(msg string) (string, bool) {
	for _, span := range capitalizedRun.FindAllStringIndex(msg, -1) {
		if !boundaryBefore(msg, span[0]) || !boundaryAfter(msg, span[1]) {
			continue
		}
		words := e.trimStopWords(strings.Fields(msg[span[0]:span[1]]))
		if len(words) == 0 {
			continue
		}
		if loc, ok := e.CleanLocationString(strings.Join(words, " ")); ok && !e.isStopWord(loc) {
			return loc, true
		}
	}
	return "", false
}

// trimStopWords drops common words from both ends of a capitalized run, so
// "Hola Madrid" yields "Madrid".
func (e *Extractor) trimStopWords(words []string) []string {
	for len(words) > 0 && e.isStopWord(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && e.isStopWord(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	return words
}

func (e *Extractor) isStopWord(word string) bool {
	_, ok := e.rules.StopWords[strings.ToLower(word)]
	return ok
}

// CleanLocationString normalizes a raw candidate. It trims punctuation,
// collapses whitespace, drops a trailing country name (the geocoder resolves
// bare city names better), strips leading and trailing articles and
// title-cases what remains. Candidates shorter than two runes are rejected.
func (e *Extractor) CleanLocationString(raw string) (string, bool) {
	loc := strings.Join(strings.Fields(strings.Trim(raw, trimCutset)), " ")
	if utf8.RuneCountInString(loc) < minLocationRunes {
		return "", false
	}

	for _, c := range e.rules.Countries {
		if m := c.Pattern.FindStringSubmatch(loc); len(m) > 1 {
			city := strings.Trim(m[1], trimCutset)
			if utf8.RuneCountInString(city) < minLocationRunes {
				return "", false
			}
			return titleCase(city), true
		}
	}

	words := strings.Fields(loc)
	for len(words) > 0 && e.isArticle(words[0]) {
		words = words[1:]
	}
	for len(words) > 0 && e.isArticle(words[len(words)-1]) {
		words = words[:len(words)-1]
	}
	loc = strings.Trim(strings.Join(words, " "), trimCutset)
	if utf8.RuneCountInString(loc) < minLocationRunes || !hasLetter(loc) {
		return "", false
	}
	return titleCase(loc), true
}

func (e *Extractor) isArticle(word string) bool {
	_, ok := e.rules.Articles[strings.ToLower(word)]
	return ok
}

// stripAll removes every match of re, including matches that share a
// separator with the previous one.
func stripAll(re *regexp.Regexp, s string) string {
	for {
		next := re.ReplaceAllString(s, " ")
		if next == s {
			return s
		}
		s = next
	}
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// titleCase builds a fresh Caser per call; Casers are not safe for
// concurrent use.
func titleCase(s string) string {
	return cases.Title(language.Spanish).String(strings.ToLower(s))
}
