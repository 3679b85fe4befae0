package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/assets"
	"github.com/brettg0396/skyface-go/internal/cache"
	"github.com/brettg0396/skyface-go/internal/config"
	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/lightning"
	"github.com/brettg0396/skyface-go/internal/observability"
	"github.com/brettg0396/skyface-go/internal/sky"
	"github.com/brettg0396/skyface-go/internal/storage"
	"github.com/brettg0396/skyface-go/internal/storage/sqlite"
	"github.com/brettg0396/skyface-go/internal/weather"
)

// snapshotRetention is how long stored snapshots are kept.
const snapshotRetention = 7 * 24 * time.Hour

// app is the wired sky stack shared by the long-running commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  storage.Store
	engine *sky.Engine

	cachePing func() error
	closers   []func() error
}

func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(os.Getenv("SKYFACE_CONFIG"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, logger, nil
}

func newApp(ctx context.Context) (*app, error) {
	cfg, logger, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}

	store, err := sqlite.NewFileStore(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	a.store = store
	a.closers = append(a.closers, store.Close)

	source, err := a.weatherSource()
	if err != nil {
		a.close()
		return nil, err
	}

	engine, err := sky.New(sky.Options{
		Assets:             a.assetStore(),
		Source:             source,
		Classifier:         weather.NewClassifier(cfg.VerticalRate, cfg.WindScale),
		ScreenInterval:     cfg.ScreenInterval,
		RefreshWaitTimeout: cfg.RefreshWaitTimeout,
		Lightning: lightning.Options{
			Freshness:      cfg.LightningFreshness,
			JitterFraction: cfg.JitterFraction,
		},
		Logger:     logger.Named("sky"),
		OnSnapshot: a.saveSnapshot,
		OnLocation: a.saveLocation,
	})
	if err != nil {
		a.close()
		return nil, err
	}
	a.engine = engine

	go func() {
		if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("sky engine stopped", zap.Error(err))
		}
	}()
	a.restore(ctx)
	return a, nil
}

func (a *app) assetStore() assets.Store {
	if a.cfg.AssetsDir == "" {
		a.logger.Info("using synthetic sky art", zap.Int("width", a.cfg.DisplayWidth))
		return assets.NewSynthetic(a.cfg.DisplayWidth)
	}
	a.logger.Info("loading sky art", zap.String("dir", a.cfg.AssetsDir))
	return assets.NewScaled(assets.NewDir(os.DirFS(a.cfg.AssetsDir)), a.cfg.DisplayWidth)
}

func (a *app) weatherSource() (sky.WeatherSource, error) {
	cfg := a.cfg
	if cfg.WeatherAPIKey == "" {
		a.logger.Warn("no weather API key configured; showing the seasonal sky")
		return nil, nil
	}

	client, err := weather.NewClient(weather.ClientConfig{
		APIKey:            cfg.WeatherAPIKey,
		BaseURL:           cfg.WeatherBaseURL,
		Units:             cfg.WeatherUnits,
		Timeout:           cfg.WeatherTimeout,
		RequestsPerMinute: cfg.WeatherRatePerMin,
		Backoff:           weather.BackoffConfig{MaxRetries: cfg.RetryAttempts},
		BreakerFailures:   cfg.BreakerFailures,
		Logger:            a.logger.Named("openweather"),
	})
	if err != nil {
		return nil, err
	}

	var c cache.Cache
	switch cfg.CacheBackend {
	case "memcached":
		mc := cache.NewMemcached(cfg.MemcachedServers, cfg.MemcachedTimeout)
		a.cachePing = mc.Ping
		a.closers = append(a.closers, mc.Close)
		c = mc
	default:
		c = cache.NewInMemory()
	}
	return weather.NewService(client, c, cfg.CacheBackend, cfg.CacheTTL, a.logger.Named("weather")), nil
}

// restore replays the stored location and snapshot into the engine. The
// configured location wins over the stored one.
func (a *app) restore(ctx context.Context) {
	if snap, err := a.store.LatestSnapshot(ctx); err == nil {
		a.logger.Info("restored last snapshot",
			zap.Int("code", snap.ConditionCode),
			zap.Time("observedAt", snap.ObservedAt))
		a.engine.Restore(snap)
	} else if !storage.IsNotFound(err) {
		a.logger.Warn("failed to restore snapshot", zap.Error(err))
	}

	loc := a.cfg.Location
	if loc == nil {
		stored, err := a.store.GetLocation(ctx)
		switch {
		case err == nil:
			loc = stored
		case !storage.IsNotFound(err):
			a.logger.Warn("failed to restore location", zap.Error(err))
		}
	}
	if loc != nil {
		a.engine.OnLocationUpdated(loc.Lat, loc.Lon)
	}
}

func (a *app) saveSnapshot(snap *domain.WeatherSnapshot) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stored := *snap
	if err := a.store.SaveSnapshot(ctx, &stored); err != nil {
		a.logger.Warn("failed to persist snapshot", zap.Error(err))
		return
	}
	if n, err := a.store.DeleteSnapshotsBefore(ctx, time.Now().Add(-snapshotRetention)); err != nil {
		a.logger.Warn("failed to prune snapshots", zap.Error(err))
	} else if n > 0 {
		a.logger.Debug("pruned snapshots", zap.Int64("count", n))
	}
}

func (a *app) saveLocation(loc domain.Location) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.store.SaveLocation(ctx, loc); err != nil {
		a.logger.Warn("failed to persist location", zap.Error(err))
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close failed", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
