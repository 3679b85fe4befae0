// Package config loads skyface settings from defaults, an optional YAML
// file, a .env file and SKYFACE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SKYFACE_"

// Config holds resolved settings.
type Config struct {
	LogLevel string `validate:"oneof=debug info warn error"`
	// AssetsDir holds <key>.png art; empty selects the built-in synthetic set.
	AssetsDir    string
	DisplayWidth int `validate:"gte=8,lte=1024"`

	WeatherAPIKey     string
	WeatherBaseURL    string        `validate:"required,url"`
	WeatherUnits      string        `validate:"oneof=metric imperial standard"`
	WeatherTimeout    time.Duration `validate:"gt=0"`
	WeatherRatePerMin int           `validate:"gt=0"`
	RetryAttempts     int           `validate:"gte=0,lte=10"`
	BreakerFailures   uint32        `validate:"gt=0"`

	// Location is the fixed device position, if known up front.
	Location *domain.Location

	WeatherInterval    time.Duration `validate:"gt=0"`
	ScreenInterval     time.Duration `validate:"gt=0"`
	LightningInterval  time.Duration `validate:"gt=0"`
	LightningFreshness time.Duration `validate:"gt=0"`
	RefreshWaitTimeout time.Duration `validate:"gt=0"`

	WindScale      float64 `validate:"gt=0"`
	VerticalRate   float64 `validate:"gt=0"`
	JitterFraction float64 `validate:"gte=0,lt=1"`

	CacheBackend     string        `validate:"oneof=memory memcached"`
	MemcachedServers string        `validate:"required_if=CacheBackend memcached"`
	MemcachedTimeout time.Duration `validate:"gt=0"`
	CacheTTL         time.Duration `validate:"gt=0"`

	DatabasePath string `validate:"required"`
	HTTPAddr     string `validate:"required"`
	PixooAddr    string
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		LogLevel:           "info",
		DisplayWidth:       64,
		WeatherBaseURL:     "https://api.openweathermap.org/data/2.5",
		WeatherUnits:       "metric",
		WeatherTimeout:     10 * time.Second,
		WeatherRatePerMin:  60,
		RetryAttempts:      3,
		BreakerFailures:    5,
		WeatherInterval:    20 * time.Minute,
		ScreenInterval:     5 * time.Second,
		LightningInterval:  6 * time.Second,
		LightningFreshness: 30 * time.Second,
		RefreshWaitTimeout: 2 * time.Second,
		WindScale:          2,
		VerticalRate:       16,
		JitterFraction:     0.2,
		CacheBackend:       "memory",
		MemcachedServers:   "localhost:11211",
		MemcachedTimeout:   500 * time.Millisecond,
		CacheTTL:           10 * time.Minute,
		DatabasePath:       "skyface.db",
		HTTPAddr:           ":8080",
	}
}

type fileConfig struct {
	LogLevel string `yaml:"log_level"`

	Display struct {
		AssetsDir string `yaml:"assets_dir"`
		Width     int    `yaml:"width"`
	} `yaml:"display"`

	Weather struct {
		APIKey        string           `yaml:"api_key"`
		BaseURL       string           `yaml:"base_url"`
		Units         string           `yaml:"units"`
		Timeout       string           `yaml:"timeout"`
		RatePerMinute int              `yaml:"rate_per_minute"`
		RetryAttempts *int             `yaml:"retry_attempts"`
		BreakerFails  uint32           `yaml:"breaker_failures"`
		Interval      string           `yaml:"interval"`
		Location      *domain.Location `yaml:"location"`
	} `yaml:"weather"`

	Sky struct {
		ScreenInterval     string  `yaml:"screen_interval"`
		RefreshWaitTimeout string  `yaml:"refresh_wait_timeout"`
		WindScale          float64 `yaml:"wind_scale"`
		VerticalRate       float64 `yaml:"vertical_rate"`
	} `yaml:"sky"`

	Lightning struct {
		Interval       string   `yaml:"interval"`
		Freshness      string   `yaml:"freshness"`
		JitterFraction *float64 `yaml:"jitter_fraction"`
	} `yaml:"lightning"`

	Cache struct {
		Backend   string `yaml:"backend"`
		TTL       string `yaml:"ttl"`
		Memcached struct {
			Servers string `yaml:"servers"`
			Timeout string `yaml:"timeout"`
		} `yaml:"memcached"`
	} `yaml:"cache"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Pixoo struct {
		Addr string `yaml:"addr"`
	} `yaml:"pixoo"`
}

var validate = validator.New()

// Load resolves settings. path may be empty; a named file must exist.
// A .env file in the working directory is applied when present.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		if err := cfg.applyFile(&fc); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c *Config) applyFile(fc *fileConfig) error {
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.AssetsDir, fc.Display.AssetsDir)
	setInt(&c.DisplayWidth, fc.Display.Width)

	setString(&c.WeatherAPIKey, fc.Weather.APIKey)
	setString(&c.WeatherBaseURL, fc.Weather.BaseURL)
	setString(&c.WeatherUnits, fc.Weather.Units)
	setInt(&c.WeatherRatePerMin, fc.Weather.RatePerMinute)
	if fc.Weather.RetryAttempts != nil {
		c.RetryAttempts = *fc.Weather.RetryAttempts
	}
	if fc.Weather.BreakerFails > 0 {
		c.BreakerFailures = fc.Weather.BreakerFails
	}
	if fc.Weather.Location != nil {
		loc := *fc.Weather.Location
		c.Location = &loc
	}

	setFloat(&c.WindScale, fc.Sky.WindScale)
	setFloat(&c.VerticalRate, fc.Sky.VerticalRate)
	if fc.Lightning.JitterFraction != nil {
		c.JitterFraction = *fc.Lightning.JitterFraction
	}

	setString(&c.CacheBackend, strings.ToLower(strings.TrimSpace(fc.Cache.Backend)))
	setString(&c.MemcachedServers, fc.Cache.Memcached.Servers)
	setString(&c.DatabasePath, fc.Storage.Path)
	setString(&c.HTTPAddr, fc.Server.Addr)
	setString(&c.PixooAddr, fc.Pixoo.Addr)

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"weather.timeout", fc.Weather.Timeout, &c.WeatherTimeout},
		{"weather.interval", fc.Weather.Interval, &c.WeatherInterval},
		{"sky.screen_interval", fc.Sky.ScreenInterval, &c.ScreenInterval},
		{"sky.refresh_wait_timeout", fc.Sky.RefreshWaitTimeout, &c.RefreshWaitTimeout},
		{"lightning.interval", fc.Lightning.Interval, &c.LightningInterval},
		{"lightning.freshness", fc.Lightning.Freshness, &c.LightningFreshness},
		{"cache.ttl", fc.Cache.TTL, &c.CacheTTL},
		{"cache.memcached.timeout", fc.Cache.Memcached.Timeout, &c.MemcachedTimeout},
	}
	for _, d := range durations {
		if err := setDuration(d.dst, d.raw); err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
	}
	return nil
}

// applyEnv overrides fields from SKYFACE_* variables.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) string {
		v, _ := lookup(EnvPrefix + key)
		return strings.TrimSpace(v)
	}

	setString(&c.LogLevel, strings.ToLower(get("LOG_LEVEL")))
	setString(&c.AssetsDir, get("ASSETS_DIR"))
	setString(&c.WeatherAPIKey, get("WEATHER_API_KEY"))
	setString(&c.WeatherBaseURL, get("WEATHER_BASE_URL"))
	setString(&c.WeatherUnits, get("WEATHER_UNITS"))
	setString(&c.CacheBackend, strings.ToLower(get("CACHE_BACKEND")))
	setString(&c.MemcachedServers, get("MEMCACHED_SERVERS"))
	setString(&c.DatabasePath, get("DB_PATH"))
	setString(&c.HTTPAddr, get("HTTP_ADDR"))
	setString(&c.PixooAddr, get("PIXOO_ADDR"))

	if v := get("DISPLAY_WIDTH"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sDISPLAY_WIDTH: %w", EnvPrefix, err)
		}
		c.DisplayWidth = n
	}

	durations := map[string]*time.Duration{
		"WEATHER_TIMEOUT":      &c.WeatherTimeout,
		"WEATHER_INTERVAL":     &c.WeatherInterval,
		"SCREEN_INTERVAL":      &c.ScreenInterval,
		"REFRESH_WAIT_TIMEOUT": &c.RefreshWaitTimeout,
		"LIGHTNING_INTERVAL":   &c.LightningInterval,
		"LIGHTNING_FRESHNESS":  &c.LightningFreshness,
		"CACHE_TTL":            &c.CacheTTL,
	}
	for key, dst := range durations {
		if err := setDuration(dst, get(key)); err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
	}

	floats := map[string]*float64{
		"WIND_SCALE":      &c.WindScale,
		"VERTICAL_RATE":   &c.VerticalRate,
		"JITTER_FRACTION": &c.JitterFraction,
	}
	for key, dst := range floats {
		v := get(key)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = f
	}

	lat, lon := get("LAT"), get("LON")
	if lat != "" || lon != "" {
		loc, err := parseLocation(lat, lon)
		if err != nil {
			return err
		}
		c.Location = loc
	}
	return nil
}

func parseLocation(lat, lon string) (*domain.Location, error) {
	if lat == "" || lon == "" {
		return nil, fmt.Errorf("%sLAT and %sLON must be set together", EnvPrefix, EnvPrefix)
	}
	la, err := strconv.ParseFloat(lat, 64)
	if err != nil {
		return nil, fmt.Errorf("%sLAT: %w", EnvPrefix, err)
	}
	lo, err := strconv.ParseFloat(lon, 64)
	if err != nil {
		return nil, fmt.Errorf("%sLON: %w", EnvPrefix, err)
	}
	return &domain.Location{Lat: la, Lon: lo}, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}

func setFloat(dst *float64, v float64) {
	if v != 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return err
	}
	*dst = d
	return nil
}
