// Package openmeteo implements the forecast provider over the Open-Meteo
// HTTP API.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"yasbot/internal/biz/domain"
)

const defaultBaseURL = "https://api.open-meteo.com/v1/forecast"

// Client fetches current conditions plus the 1-day forecast.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint, for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = u }
}

// WithHTTPClient overrides the HTTP client. The default carries a 10s
// timeout; the cache above this layer has none of its own.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// NewClient creates a new Open-Meteo client
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		baseURL:    defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// payload mirrors the subset of the Open-Meteo response the bot consumes.
// Pointers distinguish absent fields from zero values.
type payload struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		WeatherCode *int     `json:"weather_code"`
		IsDay       *int     `json:"is_day"`
	} `json:"current"`
	Daily struct {
		PrecipitationProbabilityMax []*float64 `json:"precipitation_probability_max"`
		TemperatureMax              []*float64 `json:"temperature_2m_max"`
		TemperatureMin              []*float64 `json:"temperature_2m_min"`
		RelativeHumidityMin         []*float64 `json:"relative_humidity_2m_min"`
	} `json:"daily"`
}

// FetchBundle fetches and normalizes the forecast for a coordinate pair.
// Missing required fields make the whole payload an error; callers above
// degrade to stale or nil.
func (c *Client) FetchBundle(ctx context.Context, lat, lon float64) (*domain.WeatherBundle, error) {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("current", "temperature_2m,weather_code,is_day")
	q.Set("daily", "precipitation_probability_max,temperature_2m_max,temperature_2m_min,relative_humidity_2m_min")
	q.Set("forecast_days", "1")
	q.Set("timezone", "auto")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch forecast: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch forecast: unexpected status %d", resp.StatusCode)
	}

	var p payload
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		return nil, fmt.Errorf("decode forecast: %w", err)
	}

	return p.toBundle()
}

func (p *payload) toBundle() (*domain.WeatherBundle, error) {
	if p.Current.Temperature == nil || p.Current.WeatherCode == nil || p.Current.IsDay == nil {
		return nil, fmt.Errorf("malformed forecast: missing current fields")
	}

	probRain := first(p.Daily.PrecipitationProbabilityMax)
	tMax := first(p.Daily.TemperatureMax)
	tMin := first(p.Daily.TemperatureMin)
	if probRain == nil || tMax == nil || tMin == nil {
		return nil, fmt.Errorf("malformed forecast: missing daily fields")
	}

	bundle := &domain.WeatherBundle{
		Current: domain.CurrentWeather{
			Temp:  roundTemp(*p.Current.Temperature),
			Code:  *p.Current.WeatherCode,
			IsDay: *p.Current.IsDay == 1,
		},
		Daily: domain.DailyForecast{
			RainProbability: clampPct(*probRain),
			TempMax:         roundTemp(*tMax),
			TempMin:         roundTemp(*tMin),
		},
	}

	if rhMin := first(p.Daily.RelativeHumidityMin); rhMin != nil {
		v := clampPct(*rhMin)
		bundle.Daily.MinHumidity = &v
	}

	return bundle, nil
}

func first(values []*float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}

func roundTemp(v float64) int {
	return int(math.Round(v))
}

func clampPct(v float64) int {
	r := int(math.Round(v))
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}
