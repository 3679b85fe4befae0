package weather

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/observability"
)

// DefaultBaseURL is the OpenWeatherMap 2.5 API root.
const DefaultBaseURL = "https://api.openweathermap.org/data/2.5"

var (
	ErrInvalidAPIKey   = errors.New("invalid API key")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrRateLimited     = errors.New("rate limited")
	ErrInvalidResponse = errors.New("invalid response")
)

// BackoffConfig controls retries after a retryable failure.
type BackoffConfig struct {
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// ClientConfig configures an OpenWeatherMap client.
type ClientConfig struct {
	APIKey  string
	BaseURL string
	Units   string // metric keeps wind in m/s
	Timeout time.Duration

	// RequestsPerMinute caps outbound calls; zero means 60.
	RequestsPerMinute int
	Backoff           BackoffConfig

	// BreakerFailures is the consecutive failure count that opens the
	// circuit; BreakerTimeout is how long it stays open.
	BreakerFailures uint32
	BreakerTimeout  time.Duration

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client fetches current weather and forecasts from OpenWeatherMap.
type Client struct {
	apiKey  string
	baseURL string
	units   string
	timeout time.Duration
	backoff BackoffConfig

	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient creates a client. The API key is required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}

	c := &Client{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		units:   cfg.Units,
		timeout: cfg.Timeout,
		backoff: cfg.Backoff,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.units == "" {
		c.units = "metric"
	}
	if c.timeout <= 0 {
		c.timeout = 10 * time.Second
	}
	if c.backoff.InitialInterval <= 0 {
		c.backoff.InitialInterval = 500 * time.Millisecond
	}
	if c.backoff.MaxInterval <= 0 {
		c.backoff.MaxInterval = 5 * time.Second
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}

	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = 60
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), 1)

	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	breakerTimeout := cfg.BreakerTimeout
	if breakerTimeout <= 0 {
		breakerTimeout = 2 * time.Minute
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "openweather",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return c, nil
}

type condition struct {
	ID          int    `json:"id"`
	Main        string `json:"main"`
	Description string `json:"description"`
}

type currentResponse struct {
	Dt      int64       `json:"dt"`
	Name    string      `json:"name"`
	Weather []condition `json:"weather"`
	Wind    struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Sys struct {
		Sunrise int64 `json:"sunrise"`
		Sunset  int64 `json:"sunset"`
	} `json:"sys"`
}

type forecastResponse struct {
	List []struct {
		Dt      int64       `json:"dt"`
		Weather []condition `json:"weather"`
		Wind    struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
	} `json:"list"`
	City struct {
		Name    string `json:"name"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"city"`
}

// FetchCurrent returns the current conditions at lat, lon.
func (c *Client) FetchCurrent(ctx context.Context, lat, lon float64) (*domain.WeatherSnapshot, error) {
	var resp currentResponse
	if err := c.get(ctx, "weather", lat, lon, &resp); err != nil {
		return nil, err
	}
	if len(resp.Weather) == 0 || resp.Dt == 0 {
		return nil, fmt.Errorf("%w: missing weather conditions", ErrInvalidResponse)
	}

	return &domain.WeatherSnapshot{
		ConditionCode: resp.Weather[0].ID,
		WindSpeed:     resp.Wind.Speed,
		Sunrise:       time.Unix(resp.Sys.Sunrise, 0).UTC(),
		Sunset:        time.Unix(resp.Sys.Sunset, 0).UTC(),
		ObservedAt:    time.Unix(resp.Dt, 0).UTC(),
		LocationName:  resp.Name,
		Description:   resp.Weather[0].Description,
	}, nil
}

// FetchForecast returns the upcoming forecast at lat, lon.
func (c *Client) FetchForecast(ctx context.Context, lat, lon float64) (*domain.Forecast, error) {
	var resp forecastResponse
	if err := c.get(ctx, "forecast", lat, lon, &resp); err != nil {
		return nil, err
	}

	forecast := &domain.Forecast{
		LocationName: resp.City.Name,
		FetchedAt:    time.Now().UTC(),
	}
	sunrise := time.Unix(resp.City.Sunrise, 0).UTC()
	sunset := time.Unix(resp.City.Sunset, 0).UTC()
	for _, item := range resp.List {
		if len(item.Weather) == 0 {
			continue
		}
		forecast.Entries = append(forecast.Entries, domain.WeatherSnapshot{
			ConditionCode: item.Weather[0].ID,
			WindSpeed:     item.Wind.Speed,
			Sunrise:       sunrise,
			Sunset:        sunset,
			ObservedAt:    time.Unix(item.Dt, 0).UTC(),
			LocationName:  resp.City.Name,
			Description:   item.Weather[0].Description,
		})
	}
	return forecast, nil
}

// get calls endpoint with retries, backoff and the circuit breaker, and
// decodes the JSON body into out.
func (c *Client) get(ctx context.Context, endpoint string, lat, lon float64, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRateLimited, err)
	}

	var lastErr error
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(c.delay(attempt))
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		}

		result, err := c.breaker.Execute(func() (interface{}, error) {
			return c.call(ctx, endpoint, lat, lon)
		})
		if err == nil {
			body := result.([]byte)
			if err := json.Unmarshal(body, out); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
			}
			return nil
		}

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: circuit open: %v", ErrUpstreamFailure, err)
		}
		lastErr = err
		if !retryable(err) || attempt >= c.backoff.MaxRetries {
			break
		}
		c.logger.Debug("retrying weather request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return lastErr
}

func (c *Client) call(ctx context.Context, endpoint string, lat, lon float64) ([]byte, error) {
	start := time.Now()
	defer func() {
		observability.WeatherFetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.buildRequest(ctx, endpoint, lat, lon)
	if err != nil {
		observability.WeatherFetchesTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		observability.WeatherFetchesTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, fmt.Errorf("%w: %v", ErrUpstreamFailure, err)
	}
	defer resp.Body.Close()

	observability.WeatherFetchesTotal.WithLabelValues(endpoint, statusLabel(resp.StatusCode)).Inc()
	if err := categorize(resp.StatusCode); err != nil {
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read body: %v", ErrUpstreamFailure, err)
	}
	return body, nil
}

func (c *Client) buildRequest(ctx context.Context, endpoint string, lat, lon float64) (*http.Request, error) {
	u, err := url.Parse(c.baseURL + "/" + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', 4, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', 4, 64))
	params.Set("appid", c.apiKey)
	params.Set("units", c.units)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// delay is exponential in attempt, capped, with up to 10% jitter.
func (c *Client) delay(attempt int) time.Duration {
	d := float64(c.backoff.InitialInterval) * math.Pow(2, float64(attempt-1))
	d = math.Min(d, float64(c.backoff.MaxInterval))
	return time.Duration(d + d*0.1*rand.Float64())
}

func categorize(status int) error {
	switch {
	case status == http.StatusUnauthorized:
		return ErrInvalidAPIKey
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status >= 500:
		return fmt.Errorf("%w: HTTP %d", ErrUpstreamFailure, status)
	case status < 200 || status >= 300:
		return fmt.Errorf("%w: HTTP %d", ErrInvalidResponse, status)
	}
	return nil
}

func retryable(err error) bool {
	return errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamFailure)
}

func statusLabel(status int) string {
	switch {
	case status >= 200 && status < 300:
		return "success"
	case status == http.StatusTooManyRequests:
		return "rate_limited"
	case status >= 400 && status < 500:
		return "client_error"
	case status >= 500:
		return "server_error"
	default:
		return "error"
	}
}
