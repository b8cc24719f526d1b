package openmeteo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const goodResponse = `{
	"current": {"temperature_2m": 21.6, "weather_code": 61, "is_day": 1},
	"daily": {
		"precipitation_probability_max": [72.4],
		"temperature_2m_max": [24.4],
		"temperature_2m_min": [15.5],
		"relative_humidity_2m_min": [104.0]
	}
}`

func TestFetchBundle(t *testing.T) {
	var gotQuery map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Write([]byte(goodResponse))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	bundle, err := c.FetchBundle(context.Background(), -34.6037, -58.3816)
	if err != nil {
		t.Fatal(err)
	}

	if got := gotQuery["latitude"]; len(got) != 1 || got[0] != "-34.6037" {
		t.Fatalf("latitude query = %v", got)
	}
	if got := gotQuery["forecast_days"]; len(got) != 1 || got[0] != "1" {
		t.Fatalf("forecast_days query = %v", got)
	}

	if bundle.Current.Temp != 22 || bundle.Current.Code != 61 || !bundle.Current.IsDay {
		t.Fatalf("current = %+v", bundle.Current)
	}
	if bundle.Daily.RainProbability != 72 {
		t.Fatalf("RainProbability = %d, want 72", bundle.Daily.RainProbability)
	}
	if bundle.Daily.TempMax != 24 || bundle.Daily.TempMin != 16 {
		t.Fatalf("temps = %d/%d", bundle.Daily.TempMin, bundle.Daily.TempMax)
	}
	if bundle.Daily.MinHumidity == nil || *bundle.Daily.MinHumidity != 100 {
		t.Fatalf("MinHumidity = %v, want clamped 100", bundle.Daily.MinHumidity)
	}
}

func TestFetchBundleMissingHumidityIsOptional(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{
			"current": {"temperature_2m": 10.0, "weather_code": 0, "is_day": 0},
			"daily": {
				"precipitation_probability_max": [0],
				"temperature_2m_max": [12.0],
				"temperature_2m_min": [4.0]
			}
		}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	bundle, err := c.FetchBundle(context.Background(), 0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if bundle.Daily.MinHumidity != nil {
		t.Fatal("absent humidity must stay nil")
	}
	if bundle.Current.IsDay {
		t.Fatal("is_day 0 must map to false")
	}
}

func TestFetchBundleMalformedPayload(t *testing.T) {
	cases := map[string]string{
		"missing current":    `{"daily": {"precipitation_probability_max": [10], "temperature_2m_max": [20], "temperature_2m_min": [10]}}`,
		"empty daily arrays": `{"current": {"temperature_2m": 10, "weather_code": 0, "is_day": 1}, "daily": {}}`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.Write([]byte(body))
			}))
			defer srv.Close()

			c := NewClient(WithBaseURL(srv.URL))
			if _, err := c.FetchBundle(context.Background(), 0, 0); err == nil {
				t.Fatal("malformed payload must be an error")
			}
		})
	}
}

func TestFetchBundleServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	if _, err := c.FetchBundle(context.Background(), 0, 0); err == nil {
		t.Fatal("non-200 status must be an error")
	}
}
