package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sweeney/arrival-display/internal/logic"
)

// DefaultOpenMeteoURL is the forecast endpoint.
const DefaultOpenMeteoURL = "https://api.open-meteo.com/v1/forecast"

const openMeteoFields = "temperature_2m,apparent_temperature,relative_humidity_2m," +
	"wind_speed_10m,wind_direction_10m,cloud_cover,rain"

// OpenMeteoConfig configures the current-conditions fetcher.
type OpenMeteoConfig struct {
	URL       string  `yaml:"url"`
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// OpenMeteo fetches current conditions from the Open-Meteo API.
type OpenMeteo struct {
	url    string
	client *http.Client
}

// NewOpenMeteo builds the request URL for the configured location.
func NewOpenMeteo(cfg OpenMeteoConfig, client *http.Client) (*OpenMeteo, error) {
	base := cfg.URL
	if base == "" {
		base = DefaultOpenMeteoURL
	}
	u, err := url.Parse(base)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("open-meteo url %q: invalid", base)
	}
	q := u.Query()
	q.Set("latitude", strconv.FormatFloat(cfg.Latitude, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(cfg.Longitude, 'f', -1, 64))
	q.Set("current", openMeteoFields)
	q.Set("wind_speed_unit", "kmh")
	q.Set("timezone", "auto")
	u.RawQuery = q.Encode()

	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &OpenMeteo{url: u.String(), client: client}, nil
}

type currentDoc struct {
	Current *struct {
		Time        string   `json:"time"`
		Temperature *float64 `json:"temperature_2m"`
		Apparent    float64  `json:"apparent_temperature"`
		Humidity    float64  `json:"relative_humidity_2m"`
		WindSpeed   float64  `json:"wind_speed_10m"`
		WindDir     float64  `json:"wind_direction_10m"`
		CloudCover  float64  `json:"cloud_cover"`
		Rain        float64  `json:"rain"`
	} `json:"current"`
}

// Fetch retrieves the current conditions.
func (o *OpenMeteo) Fetch(ctx context.Context) (logic.Weather, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.url, nil)
	if err != nil {
		return logic.Weather{}, err
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return logic.Weather{}, fmt.Errorf("open-meteo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return logic.Weather{}, fmt.Errorf("open-meteo: unexpected status %s", resp.Status)
	}
	return ParseCurrent(resp.Body)
}

// ParseCurrent decodes an Open-Meteo response with a "current" block.
func ParseCurrent(r io.Reader) (logic.Weather, error) {
	var doc currentDoc
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return logic.Weather{}, fmt.Errorf("decode current: %w", err)
	}
	c := doc.Current
	if c == nil || c.Temperature == nil {
		return logic.Weather{}, ErrEmptySnapshot
	}

	w := logic.Weather{
		Temperature: *c.Temperature,
		FeelsLike:   c.Apparent,
		Humidity:    c.Humidity,
		WindSpeed:   c.WindSpeed,
		WindHeading: c.WindDir,
		CloudCover:  c.CloudCover,
		Rainfall:    c.Rain,
	}
	if ts, err := time.Parse("2006-01-02T15:04", c.Time); err == nil {
		w.UpdatedAt = ts
	}
	return w, nil
}
