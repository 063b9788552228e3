// In file: internal/weather/codes.go
package weather

// UnknownCondition is returned for any WMO code outside the table.
const UnknownCondition = "Condición desconocida"

const unknownIcon = "unknown"

// WMO weather interpretation codes as reported by Open-Meteo.
var descriptions = map[int]string{
	0:  "Despejado",
	1:  "Mayormente despejado",
	2:  "Parcialmente nublado",
	3:  "Nublado",
	45: "Niebla",
	48: "Niebla con escarcha",
	51: "Llovizna ligera",
	53: "Llovizna moderada",
	55: "Llovizna intensa",
	56: "Llovizna helada ligera",
	57: "Llovizna helada intensa",
	61: "Lluvia ligera",
	63: "Lluvia moderada",
	65: "Lluvia intensa",
	66: "Lluvia helada ligera",
	67: "Lluvia helada intensa",
	71: "Nieve ligera",
	73: "Nieve moderada",
	75: "Nieve intensa",
	77: "Granizo",
	80: "Chubascos ligeros",
	81: "Chubascos moderados",
	82: "Chubascos intensos",
	85: "Chubascos de nieve ligeros",
	86: "Chubascos de nieve intensos",
	95: "Tormenta",
	96: "Tormenta con granizo ligero",
	99: "Tormenta con granizo intenso",
}

var icons = map[int]string{
	0:  "clear-day",
	1:  "partly-cloudy-day",
	2:  "cloudy",
	3:  "overcast",
	45: "fog",
	48: "fog",
	51: "drizzle",
	53: "drizzle",
	55: "drizzle",
	56: "sleet",
	57: "sleet",
	61: "rain",
	63: "rain",
	65: "rain",
	66: "sleet",
	67: "sleet",
	71: "snow",
	73: "snow",
	75: "snow",
	77: "hail",
	80: "rain",
	81: "rain",
	82: "rain",
	85: "snow",
	86: "snow",
	95: "thunderstorm",
	96: "thunderstorm",
	99: "thunderstorm",
}

// Describe maps a weather code to its Spanish description.
func Describe(code int) string {
	if d, ok := descriptions[code]; ok {
		return d
	}
	return UnknownCondition
}

// Icon maps a weather code to an icon slug.
func Icon(code int) string {
	if i, ok := icons[code]; ok {
		return i
	}
	return unknownIcon
}

// KnownCodes lists every code in the table, in no particular order.
func KnownCodes() []int {
	codes := make([]int, 0, len(descriptions))
	for c := range descriptions {
		codes = append(codes, c)
	}
	return codes
}
