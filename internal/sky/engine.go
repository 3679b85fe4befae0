// Package sky holds the live sky state and renders frames from it.
//
// One goroutine (Run) owns every write: weather, location and timezone
// updates arrive as commands, are folded into a new Bundle, and the bundle is
// published atomically. Readers always see a complete bundle.
package sky

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/brettg0396/skyface-go/internal/assets"
	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/effect"
	"github.com/brettg0396/skyface-go/internal/lightning"
	"github.com/brettg0396/skyface-go/internal/observability"
	"github.com/brettg0396/skyface-go/internal/render"
	"github.com/brettg0396/skyface-go/internal/solar"
	"github.com/brettg0396/skyface-go/internal/weather"
)

// Defaults.
const (
	DefaultScreenInterval     = 5 * time.Second
	DefaultRefreshWaitTimeout = 2 * time.Second
	DefaultFetchTimeout       = 30 * time.Second
)

const commandBuffer = 16

// ErrStopped is returned when the engine goroutine has exited.
var ErrStopped = errors.New("sky engine stopped")

// WeatherSource fetches weather for a coordinate.
type WeatherSource interface {
	FetchCurrent(ctx context.Context, lat, lon float64) (*domain.WeatherSnapshot, error)
	FetchForecast(ctx context.Context, lat, lon float64) (*domain.Forecast, error)
}

// Clock reports the current time.
type Clock interface {
	Now() time.Time
}

// ZoneProvider reports the active timezone.
type ZoneProvider interface {
	Location() *time.Location
}

// Surface is a display the engine can push frames to.
type Surface interface {
	Size() (int, int)
	Show(ctx context.Context, img image.Image) error
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ZoneFunc adapts a function to ZoneProvider.
type ZoneFunc func() *time.Location

func (f ZoneFunc) Location() *time.Location { return f() }

// LocalZone reports the process's local timezone.
var LocalZone = ZoneFunc(func() *time.Location { return time.Local })

// Options configures an Engine.
type Options struct {
	Assets             assets.Store
	Source             WeatherSource // optional; without it weather only arrives via OnWeatherUpdated
	Clock              Clock
	Zone               ZoneProvider
	Classifier         weather.Classifier
	ScreenInterval     time.Duration
	RefreshWaitTimeout time.Duration
	FetchTimeout       time.Duration
	Lightning          lightning.Options
	Logger             *zap.Logger

	// Hooks run on the engine goroutine.
	OnSnapshot func(*domain.WeatherSnapshot)
	OnLocation func(domain.Location)
}

type commandKind int

const (
	cmdRefresh commandKind = iota
	cmdWeather
	cmdForecast
	cmdLocation
	cmdTimezone
	cmdFetch
	cmdRestore
)

type command struct {
	kind     commandKind
	now      time.Time
	snapshot *domain.WeatherSnapshot
	forecast *domain.Forecast
	location domain.Location
	done     chan struct{}
}

// Engine is the sky state holder.
type Engine struct {
	store      assets.Store
	source     WeatherSource
	clock      Clock
	zone       ZoneProvider
	classifier weather.Classifier
	logger     *zap.Logger
	onSnapshot func(*domain.WeatherSnapshot)
	onLocation func(domain.Location)

	stars         image.Image
	width, height int

	waitTimeout  time.Duration
	fetchTimeout time.Duration
	limiter      *rate.Limiter
	seq          *lightning.Sequencer

	live        atomic.Pointer[Bundle]
	lastRefresh atomic.Int64
	fetching    atomic.Bool
	fetchMu     sync.Mutex
	fetchDone   chan struct{} // closed once the in-flight fetch has settled
	cmds        chan command
	stopped     chan struct{}
	stopOnce    sync.Once

	// Owned by the Run goroutine once New returns.
	loc      *time.Location
	phases   solar.Phases
	stale    bool // phases must be recomputed on the next build
	snapshot *domain.WeatherSnapshot
	forecast *domain.Forecast
	location *domain.Location
}

// New creates an engine and publishes the default bundle. Every image the
// engine may need is loaded up front; a missing one is an
// assets.ConfigurationError.
func New(opts Options) (*Engine, error) {
	if opts.Assets == nil {
		return nil, errors.New("asset store is required")
	}
	if err := assets.Require(opts.Assets, assets.RequiredKeys()); err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	stars, err := opts.Assets.Load(assets.KeyStars)
	if err != nil {
		return nil, fmt.Errorf("failed to load starfield: %w", err)
	}

	e := &Engine{
		store:        opts.Assets,
		source:       opts.Source,
		clock:        opts.Clock,
		zone:         opts.Zone,
		classifier:   opts.Classifier,
		logger:       opts.Logger,
		onSnapshot:   opts.OnSnapshot,
		onLocation:   opts.OnLocation,
		stars:        stars,
		width:        stars.Bounds().Dx(),
		height:       stars.Bounds().Dy(),
		waitTimeout:  opts.RefreshWaitTimeout,
		fetchTimeout: opts.FetchTimeout,
		cmds:         make(chan command, commandBuffer),
		stopped:      make(chan struct{}),
	}
	if e.clock == nil {
		e.clock = systemClock{}
	}
	if e.zone == nil {
		e.zone = LocalZone
	}
	if e.classifier == (weather.Classifier{}) {
		e.classifier = weather.NewClassifier(0, 0)
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	if e.waitTimeout <= 0 {
		e.waitTimeout = DefaultRefreshWaitTimeout
	}
	if e.fetchTimeout <= 0 {
		e.fetchTimeout = DefaultFetchTimeout
	}
	interval := opts.ScreenInterval
	if interval <= 0 {
		interval = DefaultScreenInterval
	}
	e.limiter = rate.NewLimiter(rate.Every(interval), 1)

	lopts := opts.Lightning
	if lopts.Now == nil {
		lopts.Now = e.clock.Now
	}
	if lopts.Logger == nil {
		lopts.Logger = e.logger
	}
	onStrike := lopts.OnStrike
	lopts.OnStrike = func() {
		observability.LightningFlashesTotal.Inc()
		if onStrike != nil {
			onStrike()
		}
	}
	e.seq = lightning.NewSequencer(e, lopts)

	now := e.clock.Now()
	e.loc = e.zoneLocation()
	e.phases = solar.Bootstrap(now, e.loc)
	if err := e.rebuild(now); err != nil {
		return nil, err
	}
	return e, nil
}

// Run processes commands until ctx is cancelled. It must be called at most once.
func (e *Engine) Run(ctx context.Context) error {
	defer e.stopOnce.Do(func() { close(e.stopped) })

	e.logger.Info("sky engine started", zap.String("zone", e.loc.String()))
	for {
		select {
		case <-ctx.Done():
			e.logger.Info("sky engine stopped")
			return ctx.Err()
		case cmd := <-e.cmds:
			e.handle(ctx, cmd)
			if cmd.done != nil {
				close(cmd.done)
			}
		}
	}
}

func (e *Engine) handle(ctx context.Context, cmd command) {
	now := cmd.now
	if now.IsZero() {
		now = e.clock.Now()
	}

	switch cmd.kind {
	case cmdWeather:
		if !e.accept(cmd.snapshot) {
			return
		}
		e.snapshot = cmd.snapshot
		e.stale = true
		e.lastRefresh.Store(now.UnixNano())
		if e.onSnapshot != nil {
			e.onSnapshot(cmd.snapshot)
		}
	case cmdRestore:
		if !e.accept(cmd.snapshot) {
			return
		}
		if e.snapshot != nil && !cmd.snapshot.ObservedAt.After(e.snapshot.ObservedAt) {
			return
		}
		e.snapshot = cmd.snapshot
		e.stale = true
	case cmdForecast:
		e.forecast = cmd.forecast
	case cmdLocation:
		loc := cmd.location
		e.location = &loc
		if e.onLocation != nil {
			e.onLocation(loc)
		}
		e.fetch(ctx)
	case cmdTimezone:
		e.loc = e.zoneLocation()
		e.phases = solar.Phases{}
		e.stale = true
		e.logger.Info("timezone changed", zap.String("zone", e.loc.String()))
		e.fetch(ctx)
	case cmdFetch:
		e.fetch(ctx)
		return
	}

	if err := e.rebuild(now); err != nil {
		e.logger.Error("failed to rebuild sky", zap.Error(err))
	}
}

func (e *Engine) accept(snapshot *domain.WeatherSnapshot) bool {
	if snapshot == nil {
		return false
	}
	if err := snapshot.Validate(); err != nil {
		observability.SnapshotsRejectedTotal.Inc()
		e.logger.Warn("discarding weather snapshot", zap.Error(err))
		return false
	}
	return true
}

func (e *Engine) zoneLocation() *time.Location {
	if loc := e.zone.Location(); loc != nil {
		return loc
	}
	return time.Local
}

// fetch starts a background weather fetch for the last known location
// unless one is already running. Results come back as commands.
func (e *Engine) fetch(ctx context.Context) {
	if e.source == nil || e.location == nil {
		return
	}
	if !e.fetching.CompareAndSwap(false, true) {
		e.logger.Debug("weather fetch already in flight")
		return
	}

	loc := *e.location
	done := make(chan struct{})
	e.fetchMu.Lock()
	e.fetchDone = done
	e.fetchMu.Unlock()

	go func() {
		defer e.fetching.Store(false)
		settle := sync.OnceFunc(func() { e.settleFetch(done) })
		defer settle()

		ctx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
		defer cancel()

		snapshot, err := e.source.FetchCurrent(ctx, loc.Lat, loc.Lon)
		if err != nil {
			e.logger.Warn("weather fetch failed", zap.String("location", loc.String()), zap.Error(err))
			return
		}
		applied := make(chan struct{})
		if e.enqueue(command{kind: cmdWeather, snapshot: snapshot, done: applied}) {
			select {
			case <-applied:
			case <-e.stopped:
			}
		}
		settle()

		forecast, err := e.source.FetchForecast(ctx, loc.Lat, loc.Lon)
		if err != nil {
			e.logger.Warn("forecast fetch failed", zap.String("location", loc.String()), zap.Error(err))
			return
		}
		e.enqueue(command{kind: cmdForecast, forecast: forecast})
	}()
}

func (e *Engine) settleFetch(done chan struct{}) {
	e.fetchMu.Lock()
	if e.fetchDone == done {
		e.fetchDone = nil
	}
	e.fetchMu.Unlock()
	close(done)
}

// pendingFetch returns the settle channel of the in-flight fetch, or nil.
func (e *Engine) pendingFetch() chan struct{} {
	e.fetchMu.Lock()
	defer e.fetchMu.Unlock()
	return e.fetchDone
}

func (e *Engine) enqueue(cmd command) bool {
	select {
	case e.cmds <- cmd:
		return true
	case <-e.stopped:
		return false
	}
}

func (e *Engine) rebuild(now time.Time) error {
	start := time.Now()
	b, err := e.build(now)
	observability.BundleRebuildDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		observability.BundleRebuildsTotal.WithLabelValues("error").Inc()
		return err
	}
	observability.BundleRebuildsTotal.WithLabelValues("ok").Inc()
	observability.ActiveEffects.Set(float64(len(b.Sprites)))
	e.live.Store(b)
	return nil
}

func (e *Engine) build(now time.Time) (*Bundle, error) {
	if e.stale || e.phases.NeedsRecompute(now, e.loc, e.snapshot) {
		phases, err := solar.Recompute(e.phases, e.snapshot, now, e.loc)
		if err != nil {
			e.logger.Warn("keeping previous solar phases", zap.Error(err))
		}
		if phases.Day != solar.CivilDay(now, e.loc) {
			phases = solar.Bootstrap(now, e.loc)
		}
		e.phases = phases
		e.stale = false
	}

	// a snapshot from before today says nothing about today's weather
	code, wind := domain.ClearSkyCode, 0.0
	if e.snapshot.ObservedSince(e.phases.Today) {
		code, wind = e.snapshot.ConditionCode, e.snapshot.WindSpeed
	}
	class := e.classifier.Classify(code, now.In(e.loc).Month(), wind)

	sky, err := e.store.Load(class.Base)
	if err != nil {
		return nil, fmt.Errorf("failed to load sky %s: %w", class.Base, err)
	}
	sb := sky.Bounds()
	heights := solar.HeightsFor(sb.Dx(), sb.Dy())
	offset := e.phases.Offset(now, heights)
	bg := render.Background(e.stars, render.CropSky(sky, offset, e.width, e.height))

	sprites, err := e.sprites(e.live.Load(), class)
	if err != nil {
		return nil, err
	}
	for _, s := range sprites {
		s.SetShaderCrop(offset)
	}

	return &Bundle{
		Zone:           e.loc,
		Phases:         e.phases,
		Heights:        heights,
		Offset:         offset,
		Classification: class,
		Snapshot:       e.snapshot,
		Forecast:       e.forecast,
		Location:       e.location,
		Background:     bg,
		Gray:           render.Grayscale(bg),
		Sprites:        sprites,
		BuiltAt:        now,
	}, nil
}

// sprites reuses the previous bundle's sprites unless the weather changed.
func (e *Engine) sprites(prev *Bundle, class weather.Classification) ([]*effect.Sprite, error) {
	if prev != nil && prev.Classification.Code == class.Code && prev.Classification.Recolor == class.Recolor {
		return prev.Sprites, nil
	}

	sprites := make([]*effect.Sprite, 0, len(class.Effects))
	for _, d := range class.Effects {
		s, err := e.sprite(d)
		if err != nil {
			return nil, err
		}
		sprites = append(sprites, s)
	}
	e.logger.Info("weather effects rebuilt",
		zap.Int("code", class.Code),
		zap.String("base", class.Base),
		zap.Int("layers", len(sprites)),
	)
	return sprites, nil
}

func (e *Engine) sprite(d weather.Descriptor) (*effect.Sprite, error) {
	frames := make([]image.Image, 0, len(d.Sprites))
	for _, key := range d.Sprites {
		img, err := e.store.Load(key)
		if err != nil {
			return nil, fmt.Errorf("failed to load effect %s: %w", key, err)
		}
		frames = append(frames, img)
	}

	var mask image.Image
	if d.Recolor != "" {
		var err error
		if mask, err = e.store.Load(d.Recolor); err != nil {
			return nil, fmt.Errorf("failed to load recolor mask %s: %w", d.Recolor, err)
		}
	}

	s, err := effect.New(effect.Options{
		Name:    d.Name,
		Kind:    d.Kind,
		Axis:    d.Axis,
		Speed:   d.Speed,
		Frames:  frames,
		Mask:    mask,
		Width:   e.width,
		Height:  e.height,
		Visible: d.Visible,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create effect %s: %w", d.Name, err)
	}
	return s, nil
}

// OnWeatherUpdated queues a new snapshot. Malformed snapshots are dropped
// by the engine goroutine.
func (e *Engine) OnWeatherUpdated(snapshot *domain.WeatherSnapshot) {
	e.enqueue(command{kind: cmdWeather, snapshot: snapshot})
}

// Restore seeds the engine with a previously stored snapshot. It is not a
// weather refresh: the lightning freshness window and the OnSnapshot hook
// ignore it. A snapshot older than the current one is dropped.
func (e *Engine) Restore(snapshot *domain.WeatherSnapshot) {
	e.enqueue(command{kind: cmdRestore, snapshot: snapshot})
}

// OnLocationUpdated records the device location and fetches its weather.
func (e *Engine) OnLocationUpdated(lat, lon float64) {
	e.enqueue(command{kind: cmdLocation, location: domain.Location{Lat: lat, Lon: lon}})
}

// OnTimezoneChanged re-derives the phases in the zone's new location and
// re-fetches weather.
func (e *Engine) OnTimezoneChanged() {
	e.enqueue(command{kind: cmdTimezone})
}

// RefreshWeather fetches weather for the last known location.
func (e *Engine) RefreshWeather() {
	e.enqueue(command{kind: cmdFetch})
}

// Refresh asks the engine to rebuild the bundle for now.
//
// A non-priority refresh is rate limited and never blocks. A priority
// refresh waits for the rebuild and for any weather fetch in flight behind
// it, such as the one a fresh location fix starts, all within the configured
// wait timeout.
func (e *Engine) Refresh(ctx context.Context, now time.Time, priority bool) error {
	if !priority {
		if !e.limiter.Allow() {
			return nil
		}
		select {
		case e.cmds <- command{kind: cmdRefresh, now: now}:
		default:
		}
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.waitTimeout)
	defer cancel()

	done := make(chan struct{})
	select {
	case e.cmds <- command{kind: cmdRefresh, now: now, done: done}:
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := e.wait(ctx, done); err != nil {
		return err
	}
	if pending := e.pendingFetch(); pending != nil {
		return e.wait(ctx, pending)
	}
	return nil
}

func (e *Engine) wait(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-e.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SkyImage returns the background (starfield plus sky crop) for now. When
// the civil day has rolled over it waits briefly for fresh phases; on timeout
// the previous background is returned.
func (e *Engine) SkyImage(ctx context.Context, now time.Time) *image.RGBA {
	b := e.live.Load()
	priority := solar.CivilDay(now, b.Zone) != b.Phases.Day
	if err := e.Refresh(ctx, now, priority); err != nil {
		e.logger.Debug("using stale sky", zap.Error(err))
	}
	return e.live.Load().Background
}

// Effects returns the live effect layers in draw order, index 0 on top.
func (e *Engine) Effects() []*effect.Sprite {
	return e.live.Load().ordered(e.seq.Strike())
}

// CombinedEffectFrame folds every effect layer into one shaded image.
func (e *Engine) CombinedEffectFrame(now time.Time) *image.RGBA {
	b := e.live.Load()
	strike := e.seq.Strike()
	img := render.FoldEffects(now, layers(b.ordered(strike)), strike.Frame, e.width, e.height, true)
	if img == nil {
		img = image.NewRGBA(image.Rect(0, 0, e.width, e.height))
	}
	return img
}

// HasEffect reports whether an effect of kind is in the live bundle.
func (e *Engine) HasEffect(kind domain.EffectKind) bool {
	for _, s := range e.live.Load().Sprites {
		if s.Kind() == kind {
			return true
		}
	}
	return false
}

// IsFlashActive reports whether a lightning bolt is lit right now.
func (e *Engine) IsFlashActive() bool {
	return e.seq.IsFlashActive()
}

// TriggerLightning runs one strobe when a storm is showing.
func (e *Engine) TriggerLightning(ctx context.Context) (bool, error) {
	return e.seq.Trigger(ctx)
}

// Lightning implements lightning.Target.
func (e *Engine) Lightning() (lightning.Bolt, int) {
	b := e.live.Load()
	bolt := b.bolt()
	if bolt == nil {
		return nil, len(b.Sprites)
	}
	return bolt, len(b.Sprites)
}

// LastRefresh implements lightning.Target.
func (e *Engine) LastRefresh() time.Time {
	n := e.lastRefresh.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Size returns the frame size.
func (e *Engine) Size() (int, int) {
	return e.width, e.height
}

// Render composes a full frame for now in mode.
func (e *Engine) Render(ctx context.Context, now time.Time, mode render.Mode) *image.RGBA {
	start := time.Now()
	e.SkyImage(ctx, now)

	b := e.live.Load()
	strike := e.seq.Strike()
	img := render.Compose(now, mode, render.Scene{
		Background:     b.Background,
		Gray:           b.Gray,
		Layers:         layers(b.ordered(strike)),
		LightningFrame: strike.Frame,
		Flash:          strike.Flashing(),
	})

	observability.FramesRenderedTotal.WithLabelValues(mode.String()).Inc()
	observability.RenderDuration.Observe(time.Since(start).Seconds())
	return img
}

// Show renders a frame and pushes it to surface.
func (e *Engine) Show(ctx context.Context, surface Surface, now time.Time, mode render.Mode) error {
	img := e.Render(ctx, now, mode)
	if err := surface.Show(ctx, img); err != nil {
		return fmt.Errorf("failed to show frame: %w", err)
	}
	return nil
}
