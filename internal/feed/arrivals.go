package feed

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/sweeney/arrival-display/internal/logic"
)

// MaxArrivals is the number of departures kept per snapshot.
const MaxArrivals = 3

const tisseoTimeLayout = "2006-01-02 15:04:05"

// TisseoConfig configures the Tisseo stop_schedules fetcher.
type TisseoConfig struct {
	// URL is the full request URL without the key parameter,
	// e.g. https://api.tisseo.fr/v2/stops_schedules.xml?stopPointId=...
	URL string `yaml:"url"`
	Key string `yaml:"key"`
	// Timezone of the dateTime attributes (default Europe/Paris).
	Timezone string `yaml:"timezone"`
}

// Tisseo fetches upcoming departures from the Tisseo open data API.
type Tisseo struct {
	url    string
	loc    *time.Location
	client *http.Client
}

// NewTisseo validates cfg and returns a fetcher.
func NewTisseo(cfg TisseoConfig, client *http.Client) (*Tisseo, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("tisseo url %q: invalid", cfg.URL)
	}
	if cfg.Key != "" {
		q := u.Query()
		q.Set("key", cfg.Key)
		u.RawQuery = q.Encode()
	}
	tz := cfg.Timezone
	if tz == "" {
		tz = "Europe/Paris"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("tisseo timezone: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Tisseo{url: u.String(), loc: loc, client: client}, nil
}

type departuresDoc struct {
	XMLName    xml.Name `xml:"departures"`
	Departures []struct {
		DateTime string `xml:"dateTime,attr"`
		RealTime string `xml:"realTime,attr"`
	} `xml:"departure"`
}

// Fetch returns up to MaxArrivals departures, oldest first.
func (t *Tisseo) Fetch(ctx context.Context) ([]logic.Arrival, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tisseo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tisseo: unexpected status %s", resp.Status)
	}
	return ParseDepartures(resp.Body, t.loc)
}

// ParseDepartures decodes a <departures> document.
func ParseDepartures(r io.Reader, loc *time.Location) ([]logic.Arrival, error) {
	var doc departuresDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode departures: %w", err)
	}

	out := make([]logic.Arrival, 0, MaxArrivals)
	for _, d := range doc.Departures {
		if len(out) == MaxArrivals {
			break
		}
		at, err := time.ParseInLocation(tisseoTimeLayout, d.DateTime, loc)
		if err != nil {
			return nil, fmt.Errorf("departure dateTime %q: %w", d.DateTime, err)
		}
		out = append(out, logic.Arrival{At: at, RealTime: d.RealTime == "yes"})
	}
	return out, nil
}
