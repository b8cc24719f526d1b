package repo

import (
	"context"

	"yasbot/internal/biz/domain"
)

// WeatherRepo is the external forecast provider interface.
// Responsible for fetching and normalizing provider payloads; cache and
// coalescing live above it.
type WeatherRepo interface {
	// FetchBundle fetches current conditions plus the 1-day forecast for a
	// coordinate pair. A malformed payload is an error, not a partial
	// bundle.
	FetchBundle(ctx context.Context, lat, lon float64) (*domain.WeatherBundle, error)
}
