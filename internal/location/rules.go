// In file: internal/location/rules.go

// Package location pulls a place name out of a free-form user message.
//
// Extraction is a layered heuristic: a known-city table, ordered phrase
// patterns, a short-message rule and finally capitalized words. Every layer
// reads its data from Rules, so cities and patterns can be added without
// touching the control flow in extractor.go.
package location

import (
	"regexp"
	"sort"
	"strings"
)

// KnownCity maps a lower-case alias to its canonical "City, Country" form.
type KnownCity struct {
	Alias     string
	Canonical string
}

// PhraseRule captures a location in group 1. Rules are tried in order and
// the first one producing a clean location wins.
type PhraseRule struct {
	Name    string
	Pattern *regexp.Regexp
	// RequiresWeatherContext restricts the rule to weather-flavored messages.
	RequiresWeatherContext bool
}

// CountryRule recognises a trailing country name after a city.
type CountryRule struct {
	Pattern *regexp.Regexp
	Country string
}

// Rules is the data every extraction stage reads from.
type Rules struct {
	KnownCities  []KnownCity
	Phrases      []PhraseRule
	Countries    []CountryRule
	Fillers      *regexp.Regexp
	WeatherNouns *regexp.Regexp
	Articles     map[string]struct{}
	StopWords    map[string]struct{}
	Intent       *IntentAnalyzer
}

// capture is the location span shared by every phrase pattern.
const capture = `([a-záéíóúñü\s,-]+?)(?:\s*[.?!]|$)`

func phrase(name, prefix string, weatherOnly bool) PhraseRule {
	return PhraseRule{
		Name:                   name,
		Pattern:                regexp.MustCompile(`(?i)` + prefix + capture),
		RequiresWeatherContext: weatherOnly,
	}
}

var defaultPhrases = []PhraseRule{
	phrase("es-noun-prep", `(?:clima|tiempo|temperatura|pronóstico|pronostico)\s+(?:en|de|para)\s+`, false),
	phrase("es-como-esta", `(?:cómo|como)\s+(?:está|esta)\s+(?:el\s+)?(?:clima|tiempo)\s+(?:en|de)\s+`, false),
	phrase("es-que-hace", `(?:qué|que)\s+(?:tiempo|clima)\s+(?:hace|hay)\s+(?:en|de)\s+`, false),
	phrase("es-cual-temperatura", `(?:cuál|cual)\s+(?:es\s+)?(?:la\s+)?temperatura\s+(?:en|de)\s+`, false),
	phrase("es-dame", `(?:dame|dime)\s+(?:el\s+)?(?:clima|tiempo|pronóstico|pronostico)\s+(?:de|en|para)\s+`, false),
	phrase("en-noun-prep", `(?:weather|climate|temperature|forecast)\s+(?:in|for|at)\s+`, false),
	phrase("en-how-is", `how(?:\s+is|'s)\s+(?:the\s+)?(?:weather|climate)\s+(?:in|at)\s+`, false),
	phrase("en-what-is", `what(?:\s+is|'s)\s+(?:the\s+)?(?:weather|temperature)\s+(?:in|at|like\s+in)\s+`, false),
	phrase("generic-in", `\b(?:en|in)\s+`, true),
}

func country(pattern, name string) CountryRule {
	return CountryRule{Pattern: regexp.MustCompile(`(?i)^(.+?)\s+(` + pattern + `)$`), Country: name}
}

var defaultCountries = []CountryRule{
	country("colombia", "Colombia"),
	country("mexico", "Mexico"),
	country("argentina", "Argentina"),
	country("chile", "Chile"),
	country("peru", "Peru"),
	country("spain", "Spain"),
	country("france", "France"),
	country("italy", "Italy"),
	country("germany", "Germany"),
	country("uk", "UK"),
	country("usa", "USA"),
	country("brazil", "Brazil"),
	country("venezuela", "Venezuela"),
	country("ecuador", "Ecuador"),
	country("bolivia", "Bolivia"),
	country("uruguay", "Uruguay"),
	country("paraguay", "Paraguay"),
	country("japan", "Japan"),
	country("china", "China"),
	country("india", "India"),
	country("australia", "Australia"),
	country("canada", "Canada"),
	country("russia", "Russia"),
	country("méxico", "Mexico"),
	country("españa", "Spain"),
	country("francia", "France"),
	country("italia", "Italy"),
	country("alemania", "Germany"),
	country("japón", "Japan"),
	country("estados unidos|eeuu", "USA"),
	country("reino unido", "UK"),
}

var defaultCities = map[string]string{
	"madrid":              "Madrid, Spain",
	"barcelona":           "Barcelona, Spain",
	"valencia":            "Valencia, Spain",
	"sevilla":             "Sevilla, Spain",
	"bilbao":              "Bilbao, Spain",
	"málaga":              "Málaga, Spain",
	"malaga":              "Málaga, Spain",
	"zaragoza":            "Zaragoza, Spain",
	"bogotá":              "Bogotá, Colombia",
	"bogota":              "Bogotá, Colombia",
	"medellín":            "Medellín, Colombia",
	"medellin":            "Medellín, Colombia",
	"cali":                "Cali, Colombia",
	"cartagena":           "Cartagena, Colombia",
	"ciudad de méxico":    "Mexico City, Mexico",
	"ciudad de mexico":    "Mexico City, Mexico",
	"mexico city":         "Mexico City, Mexico",
	"cdmx":                "Mexico City, Mexico",
	"guadalajara":         "Guadalajara, Mexico",
	"monterrey":           "Monterrey, Mexico",
	"buenos aires":        "Buenos Aires, Argentina",
	"santiago":            "Santiago, Chile",
	"lima":                "Lima, Peru",
	"quito":               "Quito, Ecuador",
	"caracas":             "Caracas, Venezuela",
	"montevideo":          "Montevideo, Uruguay",
	"asunción":            "Asunción, Paraguay",
	"asuncion":            "Asunción, Paraguay",
	"la paz":              "La Paz, Bolivia",
	"san josé":            "San José, Costa Rica",
	"san jose":            "San José, Costa Rica",
	"la habana":           "Havana, Cuba",
	"nueva york":          "New York, USA",
	"new york":            "New York, USA",
	"nyc":                 "New York, USA",
	"los ángeles":         "Los Angeles, USA",
	"los angeles":         "Los Angeles, USA",
	"miami":               "Miami, USA",
	"londres":             "London, UK",
	"london":              "London, UK",
	"parís":               "Paris, France",
	"paris":               "Paris, France",
	"roma":                "Rome, Italy",
	"rome":                "Rome, Italy",
	"berlín":              "Berlin, Germany",
	"berlin":              "Berlin, Germany",
	"lisboa":              "Lisbon, Portugal",
	"lisbon":              "Lisbon, Portugal",
	"ámsterdam":           "Amsterdam, Netherlands",
	"amsterdam":           "Amsterdam, Netherlands",
	"tokio":               "Tokyo, Japan",
	"tokyo":               "Tokyo, Japan",
	"pekín":               "Beijing, China",
	"beijing":             "Beijing, China",
	"sídney":              "Sydney, Australia",
	"sydney":              "Sydney, Australia",
	"río de janeiro":      "Rio de Janeiro, Brazil",
	"rio de janeiro":      "Rio de Janeiro, Brazil",
	"são paulo":           "São Paulo, Brazil",
	"sao paulo":           "São Paulo, Brazil",
	"toronto":             "Toronto, Canada",
	"moscú":               "Moscow, Russia",
	"moscow":              "Moscow, Russia",
	"santo domingo":       "Santo Domingo, Dominican Republic",
	"ciudad de panamá":    "Panama City, Panama",
	"ciudad de guatemala": "Guatemala City, Guatemala",
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	return set
}

// DefaultRules returns a fresh rule set. Callers may extend it with AddCities.
func DefaultRules() *Rules {
	r := &Rules{
		Phrases:      append([]PhraseRule(nil), defaultPhrases...),
		Countries:    append([]CountryRule(nil), defaultCountries...),
		Fillers:      regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:hola|hello|hi|gracias|thanks|como|cómo|how|que|qué|what|cuando|cuándo|when|buenos|buenas|adiós|adios|bye)(?:$|[^\p{L}])`),
		WeatherNouns: regexp.MustCompile(`(?i)(?:^|[^\p{L}])(?:clima|tiempo|weather|temperature|temperatura|pronóstico|pronostico|forecast)(?:$|[^\p{L}])`),
		Articles: wordSet("el", "la", "los", "las", "de", "del", "en", "para", "con", "por",
			"the", "of", "in", "at", "for", "with"),
		StopWords: wordSet(
			"Clima", "Tiempo", "Temperatura", "Pronóstico", "Pronostico", "Hola", "Como", "Cómo",
			"Está", "Esta", "Dame", "Dime", "Quiero", "Saber", "Hace", "Hay", "Qué", "Que",
			"Cuál", "Cual", "Hoy", "Mañana", "Ayer", "Ahora", "Gracias", "Por", "Favor",
			"Weather", "Climate", "Temperature", "Forecast", "Hello", "Hi", "How", "What",
			"When", "Where", "Today", "Tomorrow", "Yesterday", "Now", "Thanks", "Please",
			"Lunes", "Martes", "Miércoles", "Jueves", "Viernes", "Sábado", "Domingo",
			"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday",
			"Enero", "Febrero", "Marzo", "Abril", "Mayo", "Junio", "Julio", "Agosto",
			"Septiembre", "Octubre", "Noviembre", "Diciembre",
			"January", "February", "March", "April", "May", "June", "July", "August",
			"September", "October", "November", "December",
		),
		Intent: NewIntentAnalyzer(),
	}
	r.AddCities(defaultCities)
	return r
}

// AddCities merges aliases into the known-city table. Existing aliases are
// overwritten. The table stays sorted longest alias first so that
// "ciudad de méxico" wins over any shorter alias it contains.
func (r *Rules) AddCities(cities map[string]string) {
	index := make(map[string]int, len(r.KnownCities))
	for i, c := range r.KnownCities {
		index[c.Alias] = i
	}
	for alias, canonical := range cities {
		alias = strings.ToLower(strings.TrimSpace(alias))
		canonical = strings.TrimSpace(canonical)
		if alias == "" || canonical == "" {
			continue
		}
		if i, ok := index[alias]; ok {
			r.KnownCities[i].Canonical = canonical
			continue
		}
		index[alias] = len(r.KnownCities)
		r.KnownCities = append(r.KnownCities, KnownCity{Alias: alias, Canonical: canonical})
	}
	sort.SliceStable(r.KnownCities, func(i, j int) bool {
		li, lj := len([]rune(r.KnownCities[i].Alias)), len([]rune(r.KnownCities[j].Alias))
		if li != lj {
			return li > lj
		}
		return r.KnownCities[i].Alias < r.KnownCities[j].Alias
	})
}

// Canonicals lists the distinct canonical city names, in table order.
func (r *Rules) Canonicals() []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range r.KnownCities {
		if !seen[c.Canonical] {
			seen[c.Canonical] = true
			out = append(out, c.Canonical)
		}
	}
	return out
}
