package usecase

import (
	"context"
	"fmt"
	"math/rand"
	"strings"

	"github.com/rs/zerolog"

	"yasbot/internal/biz/domain"
	"yasbot/internal/biz/repo"
	"yasbot/internal/cache"
)

// WeatherUnavailableText is the degraded reply when no bundle can be
// served at all.
const WeatherUnavailableText = "I couldn't pull the forecast right now 😕"

// WeatherUsecase wraps the forecast provider behind a coalescing TTL cache
// and turns bundles into user-facing text.
type WeatherUsecase struct {
	provider repo.WeatherRepo
	cache    *cache.Cache[string, domain.WeatherBundle]
	config   domain.WeatherConfig
	log      zerolog.Logger

	pick func(n int) int // index picker for response variants
}

// NewWeatherUsecase creates a new weather usecase
func NewWeatherUsecase(provider repo.WeatherRepo, config domain.WeatherConfig, log zerolog.Logger) *WeatherUsecase {
	return &WeatherUsecase{
		provider: provider,
		cache:    cache.New[string, domain.WeatherBundle](),
		config:   config,
		log:      log.With().Str("component", "weather").Logger(),
		pick:     rand.Intn,
	}
}

// Bundle returns the cached forecast for the home coordinates, or nil when
// the provider is unavailable and no stale value exists. It never returns
// an error past this boundary.
func (uc *WeatherUsecase) Bundle(ctx context.Context) *domain.WeatherBundle {
	return uc.BundleFor(ctx, uc.config.Lat, uc.config.Lon)
}

// BundleFor returns the cached forecast for an arbitrary coordinate pair.
func (uc *WeatherUsecase) BundleFor(ctx context.Context, lat, lon float64) *domain.WeatherBundle {
	key := domain.CoordinateKey(lat, lon)

	bundle, err := uc.cache.GetOrLoad(ctx, key, uc.config.TTL, func(loadCtx context.Context) (domain.WeatherBundle, error) {
		b, err := uc.provider.FetchBundle(loadCtx, lat, lon)
		if err != nil {
			return domain.WeatherBundle{}, err
		}
		return *b, nil
	})
	if err != nil {
		uc.log.Warn().Err(err).Str("key", key).Msg("forecast unavailable")
		return nil
	}
	return &bundle
}

// CurrentEmoji returns the emoji for current conditions, with a sunny
// default when no bundle is available.
func (uc *WeatherUsecase) CurrentEmoji(ctx context.Context) string {
	wx := uc.Bundle(ctx)
	if wx == nil {
		return "☀️"
	}
	return domain.CodeToEmoji(wx.Current.Code, wx.Current.IsDay)
}

// MorningReport builds the scheduled forecast message for the home city.
// rainWarning reports whether the caller should attach the rain sticker.
func (uc *WeatherUsecase) MorningReport(ctx context.Context) (text string, rainWarning bool) {
	wx := uc.Bundle(ctx)
	if wx == nil {
		return WeatherUnavailableText, false
	}

	lines := []string{
		fmt.Sprintf("Good morning %s!", uc.config.City),
		"",
		fmt.Sprintf("Today's forecast for %s:", uc.config.City),
	}
	lines = append(lines, uc.forecastLines(wx.Daily)...)

	return strings.Join(lines, "\n"), wx.Daily.Note(uc.config.Thresholds) == domain.NoteRainWarning
}

// forecastLines renders the daily half of a bundle.
func (uc *WeatherUsecase) forecastLines(d domain.DailyForecast) []string {
	th := uc.config.Thresholds
	lines := []string{
		fmt.Sprintf("🌡️ Low of %d° and a high of %d°.", d.TempMin, d.TempMax),
	}

	feel := d.Feel(th)
	switch feel {
	case domain.FeelCold:
		lines = append(lines, "🧥🥶 It's going to be cold.")
	case domain.FeelHot:
		lines = append(lines, "🔥🫠 It's going to be hot.")
	}

	switch d.Note(th) {
	case domain.NoteRainWarning:
		lines = append(lines, fmt.Sprintf("☔ Chance of rain is %d%%.", d.RainProbability))
	case domain.NoteLowHumidity:
		lines = append(lines, fmt.Sprintf("💧👎 Low humidity, %d%%.", *d.MinHumidity))
	default:
		if feel == domain.FeelMild {
			lines = append(lines, fmt.Sprintf("😄 Calm forecast for today in %s.", uc.config.City))
		}
	}

	return lines
}

// RainAnswer renders the full reply to a rain question, or the degraded
// text when no bundle is available.
func (uc *WeatherUsecase) RainAnswer(ctx context.Context) string {
	wx := uc.Bundle(ctx)
	if wx == nil {
		return WeatherUnavailableText
	}
	return uc.formatRainAnswer(wx.Daily.RainProbability)
}

func (uc *WeatherUsecase) formatRainAnswer(prob int) string {
	city := uc.config.City

	var variants []string
	switch {
	case prob >= 81:
		variants = []string{
			fmt.Sprintf("Yes, it's going to rain: %d%% chance in %s. ☔", prob, city),
			fmt.Sprintf("Rain is all but certain: %d%% in %s. Close the windows! ☔", prob, city),
		}
	case prob >= 61:
		variants = []string{
			fmt.Sprintf("Everything points to rain: %d%% in %s. Better be ready 🌧️", prob, city),
			fmt.Sprintf("Good odds of raindrops: %d%% in %s. Bring a coat! 🌧️", prob, city),
		}
	case prob >= 36:
		variants = []string{
			fmt.Sprintf("It might rain: %d%% in %s. Fifty-fifty… 🌦️", prob, city),
			fmt.Sprintf("There's a chance, but no promise: %d%% in %s. 🌦️", prob, city),
		}
	case prob >= 11:
		variants = []string{
			fmt.Sprintf("Low chance of rain: %d%% in %s. A drizzle at most. ☁️", prob, city),
		}
	default:
		variants = []string{
			fmt.Sprintf("According to the voices in my head it won't rain in %s; the forecast says %d%%.", city, prob),
			fmt.Sprintf("No rain around here: %d%% in %s. ☀️", prob, city),
		}
	}

	return variants[uc.pick(len(variants))]
}

var rainSassReplies = []string{
	"Do I look like the weather girl on the evening news to you?",
	"Stick your arm out the window and check yourself 😡",
}

// RainSass is the lighter-weight reply for a repeated rain question.
func (uc *WeatherUsecase) RainSass() string {
	return rainSassReplies[uc.pick(len(rainSassReplies))]
}
