// In file: internal/weather/format.go
package weather

import (
	"fmt"
	"strings"
	"time"
)

// FormatForAI renders a Result as the Spanish markdown block handed to the
// model as function output context.
func FormatForAI(res *Result) string {
	if res == nil || res.Record == nil {
		return "Error al obtener datos meteorológicos."
	}
	rec := res.Record

	var b strings.Builder
	fmt.Fprintf(&b, "📍 **%s**\n\n", res.Location)

	if cur := rec.Current; cur != nil {
		b.WriteString("🌡️ **Condiciones Actuales:**\n")
		fmt.Fprintf(&b, "- Temperatura: %.1f°C (sensación térmica: %.1f°C)\n", cur.Temperature, cur.FeelsLike)
		fmt.Fprintf(&b, "- Condición: %s\n", cur.Description)
		fmt.Fprintf(&b, "- Humedad: %d%%\n", cur.Humidity)
		fmt.Fprintf(&b, "- Viento: %.1f km/h\n", cur.WindSpeed)
		if cur.Precipitation > 0 {
			fmt.Fprintf(&b, "- Precipitación: %.1f mm\n", cur.Precipitation)
		}
		fmt.Fprintf(&b, "- Presión: %.1f hPa\n", cur.Pressure)
		fmt.Fprintf(&b, "- Nubosidad: %d%%\n\n", cur.CloudCover)
	}

	if len(rec.Daily) > 0 {
		b.WriteString("📅 **Pronóstico:**\n")
		for i, day := range rec.Daily {
			if i == 3 {
				break
			}
			fmt.Fprintf(&b, "- **%s**: %s, Max: %.1f°C, Min: %.1f°C", shortDate(day.Date), day.Description, day.TempMax, day.TempMin)
			if day.PrecipitationSum > 0 {
				fmt.Fprintf(&b, ", Lluvia: %.1f mm", day.PrecipitationSum)
			}
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\n🕐 **Datos actualizados:** %s hrs", rec.CapturedAt.Format("15:04"))
	b.WriteString("\n📊 **Fuente:** Open-Meteo")
	return b.String()
}

// FormatForPrompt renders current conditions as the labeled context block
// embedded in single-call prompts.
func FormatForPrompt(rec *Record) string {
	cur := rec.Current
	if cur == nil {
		cur = &Conditions{Description: UnknownCondition}
	}
	isDay := "No"
	if cur.IsDay {
		isDay = "Sí"
	}
	return fmt.Sprintf(
		"Ubicación: %s, %s\n"+
			"Temperatura actual: %.1f°C\n"+
			"Sensación térmica: %.1f°C\n"+
			"Descripción: %s\n"+
			"Humedad: %d%%\n"+
			"Presión: %.1f hPa\n"+
			"Viento: %.1f km/h, dirección %d°\n"+
			"Es de día: %s\n"+
			"Coordenadas: %.4f, %.4f",
		rec.Location, rec.Country,
		cur.Temperature,
		cur.FeelsLike,
		cur.Description,
		cur.Humidity,
		cur.Pressure,
		cur.WindSpeed, cur.WindDirection,
		isDay,
		rec.Coordinates.Latitude, rec.Coordinates.Longitude,
	)
}

// FormatForecastForPrompt renders a multi-day forecast, one line per day.
func FormatForecastForPrompt(f *Forecast) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ubicación: %s\nPronóstico de %d días:\n", f.Location, len(f.Days))
	for _, day := range f.Days {
		fmt.Fprintf(&b, "- %s: %s, máxima %.1f°C, mínima %.1f°C, precipitación %.1f mm\n",
			day.Date, day.Description, day.TempMax, day.TempMin, day.PrecipitationSum)
	}
	fmt.Fprintf(&b, "Coordenadas: %.4f, %.4f", f.Coordinates.Latitude, f.Coordinates.Longitude)
	return b.String()
}

func shortDate(date string) string {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return date
	}
	return t.Format("2 Jan")
}
