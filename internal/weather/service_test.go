package weather

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettg0396/skyface-go/internal/cache"
	"github.com/brettg0396/skyface-go/internal/domain"
)

type countingSource struct {
	current   int
	forecasts int
	err       error
}

func (s *countingSource) FetchCurrent(ctx context.Context, lat, lon float64) (*domain.WeatherSnapshot, error) {
	s.current++
	if s.err != nil {
		return nil, s.err
	}
	return &domain.WeatherSnapshot{
		ConditionCode: 600 + s.current,
		Sunrise:       time.Date(2024, 6, 15, 6, 0, 0, 0, time.UTC),
		Sunset:        time.Date(2024, 6, 15, 18, 0, 0, 0, time.UTC),
		ObservedAt:    time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC),
	}, nil
}

func (s *countingSource) FetchForecast(ctx context.Context, lat, lon float64) (*domain.Forecast, error) {
	s.forecasts++
	return &domain.Forecast{LocationName: "here"}, nil
}

type brokenCache struct{}

func (brokenCache) Get(ctx context.Context, key string) (domain.WeatherSnapshot, bool, error) {
	return domain.WeatherSnapshot{}, false, errors.New("down")
}

func (brokenCache) Set(ctx context.Context, key string, value domain.WeatherSnapshot, ttl time.Duration) error {
	return errors.New("down")
}

func TestServiceCachesCurrent(t *testing.T) {
	src := &countingSource{}
	svc := NewService(src, cache.NewInMemory(), "memory", time.Minute, nil)
	ctx := context.Background()

	first, err := svc.FetchCurrent(ctx, 45.521, -122.681)
	require.NoError(t, err)
	second, err := svc.FetchCurrent(ctx, 45.523, -122.679)
	require.NoError(t, err)

	assert.Equal(t, 1, src.current)
	assert.Equal(t, first.ConditionCode, second.ConditionCode)

	_, err = svc.FetchCurrent(ctx, 40, -74)
	require.NoError(t, err)
	assert.Equal(t, 2, src.current)
}

func TestServiceBypassesBrokenCache(t *testing.T) {
	src := &countingSource{}
	svc := NewService(src, brokenCache{}, "memcached", time.Minute, nil)

	for i := 0; i < 2; i++ {
		snap, err := svc.FetchCurrent(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, 601+i, snap.ConditionCode)
	}
	assert.Equal(t, 2, src.current)
}

func TestServiceSourceError(t *testing.T) {
	src := &countingSource{err: ErrUpstreamFailure}
	svc := NewService(src, cache.NewInMemory(), "memory", time.Minute, nil)

	_, err := svc.FetchCurrent(context.Background(), 1, 2)
	assert.ErrorIs(t, err, ErrUpstreamFailure)

	src.err = nil
	snap, err := svc.FetchCurrent(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.Equal(t, 602, snap.ConditionCode)
}

func TestServiceForecastPassesThrough(t *testing.T) {
	src := &countingSource{}
	svc := NewService(src, nil, "none", 0, nil)

	for i := 0; i < 2; i++ {
		f, err := svc.FetchForecast(context.Background(), 1, 2)
		require.NoError(t, err)
		assert.Equal(t, "here", f.LocationName)
	}
	assert.Equal(t, 2, src.forecasts)
}
