// Package scheduler runs the periodic sky jobs: weather refresh, bundle
// refresh, lightning strikes and an optional surface push.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"

	"github.com/brettg0396/skyface-go/internal/render"
	"github.com/brettg0396/skyface-go/internal/sky"
)

// Engine is the part of sky.Engine the jobs drive.
type Engine interface {
	RefreshWeather()
	Refresh(ctx context.Context, now time.Time, priority bool) error
	TriggerLightning(ctx context.Context) (bool, error)
	Show(ctx context.Context, surface sky.Surface, now time.Time, mode render.Mode) error
}

// Options configures job intervals. A zero interval disables that job.
type Options struct {
	WeatherInterval   time.Duration
	ScreenInterval    time.Duration
	LightningInterval time.Duration
	// LightningDelay postpones the first lightning run.
	LightningDelay time.Duration

	// Surface, when set, receives a frame every PushInterval in the mode
	// returned by Mode.
	Surface      sky.Surface
	PushInterval time.Duration
	Mode         func() render.Mode

	Now    func() time.Time
	Logger *zap.Logger
}

// Scheduler owns a gocron scheduler with the sky jobs registered.
type Scheduler struct {
	scheduler *gocron.Scheduler
	engine    Engine
	opts      Options
	logger    *zap.Logger
	stopOnce  sync.Once
}

// New creates a Scheduler. Jobs are registered by Start.
func New(engine Engine, opts Options) *Scheduler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Mode == nil {
		opts.Mode = func() render.Mode { return render.Mode{} }
	}
	if opts.LightningDelay <= 0 {
		opts.LightningDelay = time.Second
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Scheduler{
		scheduler: s,
		engine:    engine,
		opts:      opts,
		logger:    opts.Logger,
	}
}

// Start registers the jobs and starts them. Jobs stop when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) error {
	if d := s.opts.WeatherInterval; d > 0 {
		_, err := s.scheduler.Every(d).Tag("weather").Do(func() {
			s.logger.Debug("scheduled weather refresh")
			s.engine.RefreshWeather()
		})
		if err != nil {
			return fmt.Errorf("failed to schedule weather refresh: %w", err)
		}
	}

	if d := s.opts.ScreenInterval; d > 0 {
		_, err := s.scheduler.Every(d).Tag("screen").WaitForSchedule().Do(func() {
			if err := s.engine.Refresh(ctx, s.opts.Now(), false); err != nil && ctx.Err() == nil {
				s.logger.Warn("scheduled sky refresh failed", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule sky refresh: %w", err)
		}
	}

	if d := s.opts.LightningInterval; d > 0 {
		start := s.opts.Now().Add(s.opts.LightningDelay)
		_, err := s.scheduler.Every(d).Tag("lightning").StartAt(start).Do(func() {
			struck, err := s.engine.TriggerLightning(ctx)
			switch {
			case err != nil && ctx.Err() == nil:
				s.logger.Warn("lightning strike interrupted", zap.Error(err))
			case struck:
				s.logger.Debug("lightning strike finished")
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule lightning: %w", err)
		}
	}

	if s.opts.Surface != nil && s.opts.PushInterval > 0 {
		_, err := s.scheduler.Every(s.opts.PushInterval).Tag("push").Do(func() {
			if err := s.engine.Show(ctx, s.opts.Surface, s.opts.Now(), s.opts.Mode()); err != nil && ctx.Err() == nil {
				s.logger.Warn("failed to push frame", zap.Error(err))
			}
		})
		if err != nil {
			return fmt.Errorf("failed to schedule surface push: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.logger.Info("scheduler started", zap.Int("jobs", s.scheduler.Len()))

	go func() {
		<-ctx.Done()
		s.Stop()
	}()
	return nil
}

// Stop stops all jobs and waits for running ones to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		s.scheduler.Stop()
		s.logger.Info("scheduler stopped")
	})
}

// Jobs returns the tags of the registered jobs.
func (s *Scheduler) Jobs() []string {
	var tags []string
	for _, j := range s.scheduler.Jobs() {
		tags = append(tags, j.Tags()...)
	}
	return tags
}
