package weather

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const currentBody = `{
	"dt": 1718452800,
	"name": "Portland",
	"weather": [{"id": 501, "main": "Rain", "description": "moderate rain"}],
	"wind": {"speed": 4.5},
	"sys": {"sunrise": 1718424000, "sunset": 1718478000}
}`

const forecastBody = `{
	"list": [
		{"dt": 1718463600, "weather": [{"id": 800, "description": "clear sky"}], "wind": {"speed": 1.2}},
		{"dt": 1718474400, "weather": [], "wind": {"speed": 0}},
		{"dt": 1718485200, "weather": [{"id": 211, "description": "thunderstorm"}], "wind": {"speed": 9}}
	],
	"city": {"name": "Portland", "sunrise": 1718424000, "sunset": 1718478000}
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*ClientConfig)) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := ClientConfig{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		Timeout:           2 * time.Second,
		RequestsPerMinute: 60000,
		Backoff: BackoffConfig{
			MaxRetries:      2,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
		},
	}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := NewClient(cfg)
	require.NoError(t, err)
	return c
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	assert.ErrorIs(t, err, ErrInvalidAPIKey)
}

func TestFetchCurrent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/weather", r.URL.Path)
		assert.Equal(t, "45.5200", r.URL.Query().Get("lat"))
		assert.Equal(t, "-122.6800", r.URL.Query().Get("lon"))
		assert.Equal(t, "test-key", r.URL.Query().Get("appid"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(currentBody))
	})

	snap, err := c.FetchCurrent(context.Background(), 45.52, -122.68)
	require.NoError(t, err)

	assert.Equal(t, 501, snap.ConditionCode)
	assert.InDelta(t, 4.5, snap.WindSpeed, 1e-9)
	assert.Equal(t, "Portland", snap.LocationName)
	assert.Equal(t, "moderate rain", snap.Description)
	assert.Equal(t, time.Unix(1718424000, 0).UTC(), snap.Sunrise)
	assert.Equal(t, time.Unix(1718478000, 0).UTC(), snap.Sunset)
	assert.Equal(t, time.Unix(1718452800, 0).UTC(), snap.ObservedAt)
	assert.NoError(t, snap.Validate())
}

func TestFetchForecast(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/forecast", r.URL.Path)
		_, _ = w.Write([]byte(forecastBody))
	})

	f, err := c.FetchForecast(context.Background(), 45.52, -122.68)
	require.NoError(t, err)

	assert.Equal(t, "Portland", f.LocationName)
	require.Len(t, f.Entries, 2)
	assert.Equal(t, 800, f.Entries[0].ConditionCode)
	assert.Equal(t, 211, f.Entries[1].ConditionCode)
	assert.Equal(t, time.Unix(1718485200, 0).UTC(), f.Entries[1].ObservedAt)
}

func TestFetchCurrentErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantErr  error
		wantHits int32
	}{
		{"unauthorized is not retried", http.StatusUnauthorized, `{}`, ErrInvalidAPIKey, 1},
		{"server errors are retried", http.StatusInternalServerError, `{}`, ErrUpstreamFailure, 3},
		{"rate limited", http.StatusTooManyRequests, `{}`, ErrRateLimited, 3},
		{"not found", http.StatusNotFound, `{}`, ErrInvalidResponse, 1},
		{"bad json", http.StatusOK, `{"weather":`, ErrInvalidResponse, 1},
		{"no conditions", http.StatusOK, `{"dt": 1718452800, "weather": []}`, ErrInvalidResponse, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits atomic.Int32
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				hits.Add(1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}, func(cfg *ClientConfig) {
				cfg.BreakerFailures = 100
			})

			_, err := c.FetchCurrent(context.Background(), 1, 2)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.wantHits, hits.Load())
		})
	}
}

func TestRetryRecovers(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(currentBody))
	})

	snap, err := c.FetchCurrent(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 501, snap.ConditionCode)
	assert.Equal(t, int32(2), hits.Load())
}

func TestBreakerOpens(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, func(cfg *ClientConfig) {
		cfg.Backoff.MaxRetries = 0
		cfg.BreakerFailures = 2
		cfg.BreakerTimeout = time.Hour
	})

	for i := 0; i < 2; i++ {
		_, err := c.FetchCurrent(context.Background(), 1, 2)
		require.ErrorIs(t, err, ErrUpstreamFailure)
	}

	_, err := c.FetchCurrent(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrUpstreamFailure)
	assert.Contains(t, err.Error(), "circuit open")
	assert.Equal(t, int32(2), hits.Load())
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(currentBody))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.FetchCurrent(ctx, 1, 2)
	assert.Error(t, err)
}

func TestStatusLabel(t *testing.T) {
	assert.Equal(t, "success", statusLabel(200))
	assert.Equal(t, "rate_limited", statusLabel(429))
	assert.Equal(t, "client_error", statusLabel(404))
	assert.Equal(t, "server_error", statusLabel(503))
	assert.Equal(t, "error", statusLabel(302))
}
