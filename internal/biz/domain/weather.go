package domain

import (
	"fmt"
	"time"
)

// WeatherConfig holds the lookup policy: the home coordinates, the cache
// TTL and the classification thresholds.
type WeatherConfig struct {
	Lat        float64
	Lon        float64
	City       string
	TTL        time.Duration
	Thresholds WeatherThresholds
}

// CurrentWeather is the current-condition half of a forecast bundle.
// Temperature is rounded to the nearest integer degree.
type CurrentWeather struct {
	Temp  int
	Code  int // WMO weather interpretation code
	IsDay bool
}

// DailyForecast is the 1-day-forecast half of a forecast bundle.
// Probabilities and humidity are clamped to [0,100] and rounded;
// MinHumidity is nil when the provider omitted the field.
type DailyForecast struct {
	RainProbability int
	TempMax         int
	TempMin         int
	MinHumidity     *int
}

// WeatherBundle is one cacheable forecast lookup result.
type WeatherBundle struct {
	Current CurrentWeather
	Daily   DailyForecast
}

// TempFeel classifies the day's temperature range.
type TempFeel int

const (
	FeelMild TempFeel = iota
	FeelCold
	FeelHot
)

// ForecastNote selects which extra banner a forecast message carries.
type ForecastNote int

const (
	NoteCalm ForecastNote = iota
	NoteRainWarning
	NoteLowHumidity
)

// WeatherThresholds are the classification policy constants. They come
// from configuration, not protocol.
type WeatherThresholds struct {
	ColdMax     int // TempMin at or below this reads as cold
	HotMin      int // TempMax at or above this reads as hot
	RainWarnPct int // rain probability at or above this warrants a warning
	LowHumidity int // min humidity at or below this warrants a note
}

// DefaultWeatherThresholds mirror the provider granularity the bot has
// always used.
func DefaultWeatherThresholds() WeatherThresholds {
	return WeatherThresholds{ColdMax: 16, HotMin: 33, RainWarnPct: 60, LowHumidity: 25}
}

// Feel classifies the forecast against th. Cold wins over hot when a day
// manages to qualify for both.
func (d DailyForecast) Feel(th WeatherThresholds) TempFeel {
	switch {
	case d.TempMin <= th.ColdMax:
		return FeelCold
	case d.TempMax >= th.HotMin:
		return FeelHot
	default:
		return FeelMild
	}
}

// Note picks the extra banner for the forecast: rain warning first, then
// low humidity, otherwise calm.
func (d DailyForecast) Note(th WeatherThresholds) ForecastNote {
	switch {
	case d.RainProbability >= th.RainWarnPct:
		return NoteRainWarning
	case d.MinHumidity != nil && *d.MinHumidity <= th.LowHumidity:
		return NoteLowHumidity
	default:
		return NoteCalm
	}
}

// CodeToEmoji maps a WMO weather code to a presentable emoji. Specific
// ranges are checked before broad ones; order matters.
func CodeToEmoji(code int, isDay bool) string {
	dayNight := func(day, night string) string {
		if isDay {
			return day
		}
		return night
	}

	switch {
	case code == 0:
		return dayNight("☀️", "🌙")
	case code == 1 || code == 2:
		return dayNight("⛅", "☁️🌙")
	case code == 3:
		return "☁️"
	case code == 45 || code == 48:
		return "🌫️"
	case code >= 61 && code <= 65:
		return "🌧️"
	case (code >= 51 && code <= 57) || (code >= 66 && code <= 67):
		return dayNight("🌦️", "🌧️🌙")
	case code >= 71 && code <= 77:
		return "❄️"
	case code >= 80 && code <= 82:
		return dayNight("🌦️", "🌧️🌙")
	case code >= 95 && code <= 99:
		return "⛈️"
	default:
		return dayNight("☀️", "🌙")
	}
}

// CoordinateKey builds the cache key for a coordinate pair, rounded to 4
// decimal places so near-identical floats collapse to one entry.
func CoordinateKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}
