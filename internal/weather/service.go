package weather

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/cache"
	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/observability"
)

// Source fetches weather for a coordinate.
type Source interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (*domain.WeatherSnapshot, error)
	FetchForecast(ctx context.Context, lat, lon float64) (*domain.Forecast, error)
}

// Service puts a snapshot cache in front of a Source. Forecasts are not
// cached.
type Service struct {
	source    Source
	cache     cache.Cache
	cacheType string
	ttl       time.Duration
	logger    *zap.Logger
}

// NewService wraps source with c. cacheType labels cache metrics.
func NewService(source Source, c cache.Cache, cacheType string, ttl time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{
		source:    source,
		cache:     c,
		cacheType: cacheType,
		ttl:       ttl,
		logger:    logger,
	}
}

func currentKey(lat, lon float64) string {
	return "current:" + domain.Location{Lat: lat, Lon: lon}.Key()
}

// FetchCurrent returns a cached snapshot when one is live, otherwise it asks
// the source and caches the answer. Cache failures are logged and bypassed.
func (s *Service) FetchCurrent(ctx context.Context, lat, lon float64) (*domain.WeatherSnapshot, error) {
	key := currentKey(lat, lon)

	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, key)
		switch {
		case err != nil:
			s.logger.Warn("weather cache read failed", zap.String("key", key), zap.Error(err))
		case ok:
			observability.CacheHitsTotal.WithLabelValues(s.cacheType).Inc()
			s.logger.Debug("weather cache hit", zap.String("key", key))
			return &snap, nil
		}
	}

	snap, err := s.source.FetchCurrent(ctx, lat, lon)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, *snap, s.ttl); err != nil {
			s.logger.Warn("weather cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return snap, nil
}

// FetchForecast passes through to the source.
func (s *Service) FetchForecast(ctx context.Context, lat, lon float64) (*domain.Forecast, error) {
	return s.source.FetchForecast(ctx, lat, lon)
}
