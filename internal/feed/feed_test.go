package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/arrival-display/internal/logging/logtest"
	"github.com/sweeney/arrival-display/internal/logic"
	"github.com/sweeney/arrival-display/internal/metrics"
)

const departuresXML = `<?xml version="1.0" encoding="UTF-8"?>
<departures>
  <departure dateTime="2026-10-14 08:03:00" realTime="yes"/>
  <departure dateTime="2026-10-14 08:15:30" realTime="no"/>
  <departure dateTime="2026-10-14 08:27:00" realTime="yes"/>
  <departure dateTime="2026-10-14 08:40:00" realTime="yes"/>
</departures>`

func TestParseDepartures(t *testing.T) {
	loc := time.FixedZone("CEST", 2*3600)
	got, err := ParseDepartures(strings.NewReader(departuresXML), loc)
	require.NoError(t, err)
	require.Len(t, got, MaxArrivals)

	assert.Equal(t, time.Date(2026, 10, 14, 8, 3, 0, 0, loc), got[0].At)
	assert.True(t, got[0].RealTime)
	assert.False(t, got[1].RealTime)
	assert.Equal(t, 30, got[1].At.Second())
}

func TestParseDeparturesEmpty(t *testing.T) {
	got, err := ParseDepartures(strings.NewReader(`<departures/>`), time.UTC)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseDeparturesMalformed(t *testing.T) {
	_, err := ParseDepartures(strings.NewReader(`<departures><departure dateTime="soon"/></departures>`), time.UTC)
	assert.Error(t, err)

	_, err = ParseDepartures(strings.NewReader(`not xml`), time.UTC)
	assert.Error(t, err)
}

func TestTisseoFetch(t *testing.T) {
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.URL.Query().Get("key")
		fmt.Fprint(w, departuresXML)
	}))
	defer srv.Close()

	f, err := NewTisseo(TisseoConfig{URL: srv.URL + "/v2/stops_schedules.xml?stopPointId=1", Key: "secret", Timezone: "UTC"}, srv.Client())
	require.NoError(t, err)

	got, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "secret", gotKey)
}

func TestTisseoFetchHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	f, err := NewTisseo(TisseoConfig{URL: srv.URL, Timezone: "UTC"}, srv.Client())
	require.NoError(t, err)
	_, err = f.Fetch(context.Background())
	assert.Error(t, err)
}

func TestNewTisseoRejectsBadURL(t *testing.T) {
	_, err := NewTisseo(TisseoConfig{URL: "::"}, nil)
	assert.Error(t, err)
}

const currentJSON = `{"latitude":43.53,"longitude":1.52,"current":{"time":"2026-10-14T08:00",
"temperature_2m":14.2,"apparent_temperature":12.9,"relative_humidity_2m":81,
"wind_speed_10m":11.5,"wind_direction_10m":290,"cloud_cover":75,"rain":0.4}}`

func TestOpenMeteoFetch(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		fmt.Fprint(w, currentJSON)
	}))
	defer srv.Close()

	f, err := NewOpenMeteo(OpenMeteoConfig{URL: srv.URL, Latitude: 43.53424, Longitude: 1.51813}, srv.Client())
	require.NoError(t, err)

	w, err := f.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, logic.Weather{
		Temperature: 14.2,
		FeelsLike:   12.9,
		Humidity:    81,
		WindSpeed:   11.5,
		WindHeading: 290,
		CloudCover:  75,
		Rainfall:    0.4,
		UpdatedAt:   time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC),
	}, w)
	assert.Contains(t, query, "latitude=43.53424")
	assert.Contains(t, query, "current=")
}

func TestParseCurrentMissing(t *testing.T) {
	_, err := ParseCurrent(strings.NewReader(`{"current":{}}`))
	assert.ErrorIs(t, err, ErrEmptySnapshot)
	_, err = ParseCurrent(strings.NewReader(`{}`))
	assert.ErrorIs(t, err, ErrEmptySnapshot)
}

type stubFetcher struct {
	mu    sync.Mutex
	calls int
	err   error
	value int
}

func (s *stubFetcher) Fetch(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return 0, s.err
	}
	s.value++
	return s.value, nil
}

func (s *stubFetcher) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestFeedCachesLastGood(t *testing.T) {
	sf := &stubFetcher{}
	f := New[int]("stub", sf, BreakerConfig{}, logtest.New(t), metrics.New())

	_, ok := f.Read()
	assert.False(t, ok)

	require.NoError(t, f.Refresh(context.Background()))
	v, ok := f.Read()
	assert.True(t, ok)
	assert.Equal(t, 1, v)

	sf.err = errors.New("upstream down")
	assert.Error(t, f.Refresh(context.Background()))
	v, ok = f.Read()
	assert.True(t, ok, "stale snapshot kept")
	assert.Equal(t, 1, v)
	assert.Equal(t, "upstream down", f.Status().LastError)
}

func TestFeedBreakerOpens(t *testing.T) {
	sf := &stubFetcher{err: errors.New("boom")}
	f := New[int]("stub", sf, BreakerConfig{MaxFailures: 2, Timeout: time.Hour}, logtest.New(t), nil)

	for i := 0; i < 5; i++ {
		f.Refresh(context.Background())
	}
	assert.Equal(t, 2, sf.Calls(), "breaker stops calling upstream")
	assert.Equal(t, gobreaker.StateOpen.String(), f.Status().Breaker)

	err := f.Refresh(context.Background())
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
}

func TestStatic(t *testing.T) {
	s := NewStatic([]logic.Arrival{{At: time.Unix(0, 0)}})
	v, ok := s.Read()
	assert.True(t, ok)
	assert.Len(t, v, 1)

	s.Clear()
	_, ok = s.Read()
	assert.False(t, ok)
}

func TestSchedulerInitialRefresh(t *testing.T) {
	sf := &stubFetcher{}
	f := New[int]("stub", sf, BreakerConfig{}, logtest.New(t), nil)

	s := NewScheduler(time.Second, logtest.New(t))
	require.NoError(t, s.Add("@every 1h", f))
	s.Start()
	require.Eventually(t, func() bool { return sf.Calls() == 1 }, time.Second, 5*time.Millisecond)
	s.Stop()

	_, ok := f.Read()
	assert.True(t, ok)
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	s := NewScheduler(0, logtest.New(t))
	f := New[int]("stub", &stubFetcher{}, BreakerConfig{}, logtest.New(t), nil)
	assert.Error(t, s.Add("every now and then", f))
	s.Stop()
}
