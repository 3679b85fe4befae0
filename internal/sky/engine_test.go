package sky

import (
	"context"
	"errors"
	"image"
	"sync"
	"sync/atomic"
	"testing"
	"testing/fstest"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brettg0396/skyface-go/internal/assets"
	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/render"
	"github.com/brettg0396/skyface-go/internal/solar"
)

var noon = time.Date(2024, time.June, 15, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type fakeSource struct {
	mu       sync.Mutex
	snapshot *domain.WeatherSnapshot
	err      error
	calls    int
}

func (f *fakeSource) FetchCurrent(context.Context, float64, float64) (*domain.WeatherSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.snapshot, f.err
}

func (f *fakeSource) FetchForecast(context.Context, float64, float64) (*domain.Forecast, error) {
	return &domain.Forecast{Entries: make([]domain.WeatherSnapshot, 3)}, nil
}

func (f *fakeSource) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func snapshotAt(observed time.Time, code int) *domain.WeatherSnapshot {
	day := solar.Midnight(observed, time.UTC)
	return &domain.WeatherSnapshot{
		ConditionCode: code,
		WindSpeed:     3,
		Sunrise:       day.Add(6 * time.Hour),
		Sunset:        day.Add(18 * time.Hour),
		ObservedAt:    observed,
		LocationName:  "Testville",
	}
}

func newEngine(t *testing.T, configure func(*Options)) (*Engine, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: noon}
	opts := Options{
		Assets:             assets.NewSynthetic(16),
		Clock:              clock,
		Zone:               ZoneFunc(func() *time.Location { return time.UTC }),
		RefreshWaitTimeout: time.Second,
	}
	if configure != nil {
		configure(&opts)
	}
	e, err := New(opts)
	require.NoError(t, err)
	return e, clock
}

func start(t *testing.T, e *Engine) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

// apply hands a snapshot to the engine and waits for it to be published.
func apply(t *testing.T, e *Engine, snapshot *domain.WeatherSnapshot) {
	t.Helper()
	e.OnWeatherUpdated(snapshot)
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))
}

func TestNewWithoutWeatherUsesSeasonDefaults(t *testing.T) {
	e, _ := newEngine(t, nil)

	img := e.SkyImage(context.Background(), noon)

	require.NotNil(t, img)
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	st := e.Status()
	assert.Equal(t, domain.ClearSkyCode, st.Code)
	assert.Equal(t, assets.KeySkySummer, st.Base)
	assert.Empty(t, st.Effects)
	assert.Equal(t, "day", st.Phase)
	assert.Equal(t, time.Date(2024, time.June, 15, 7, 0, 0, 0, time.UTC), st.Phases.Dawn.Set)
	assert.True(t, st.LastRefresh.IsZero())
}

func TestNewRequiresAssets(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Assets: assets.NewDir(fstest.MapFS{})})
	require.Error(t, err)
	assert.True(t, assets.IsConfigurationError(err))
}

func TestWeatherUpdateAppliesClassification(t *testing.T) {
	e, _ := newEngine(t, nil)
	start(t, e)

	apply(t, e, snapshotAt(noon, 500))

	st := e.Status()
	assert.Equal(t, 500, st.Code)
	assert.Equal(t, assets.KeySkyOvercast, st.Base)
	assert.Equal(t, []string{"rain", "clouds-near", "clouds-mid", "clouds-far"}, st.Effects)
	assert.Equal(t, noon.Add(-6*time.Hour), st.Phases.Dawn.Set)
	assert.True(t, st.LastRefresh.Equal(noon))
	assert.True(t, e.HasEffect(domain.EffectCloud))
	assert.False(t, e.HasEffect(domain.EffectLightning))
}

func TestMalformedSnapshotLeavesPhasesUnchanged(t *testing.T) {
	e, _ := newEngine(t, nil)
	start(t, e)
	apply(t, e, snapshotAt(noon, 500))
	before := e.Status()

	bad := snapshotAt(noon, 201)
	bad.Sunrise, bad.Sunset = bad.Sunset, bad.Sunrise
	apply(t, e, bad)

	after := e.Status()
	assert.Equal(t, before.Phases, after.Phases)
	assert.Equal(t, 500, after.Code)
	assert.Same(t, before.Snapshot, after.Snapshot)
}

func TestStaleSnapshotFallsBackToClearSky(t *testing.T) {
	e, _ := newEngine(t, nil)
	start(t, e)

	yesterday := noon.Add(-24 * time.Hour)
	snap := snapshotAt(yesterday, 500)
	snap.Sunrise = snap.Sunrise.Add(-30 * time.Minute)
	apply(t, e, snap)

	st := e.Status()
	assert.Equal(t, domain.ClearSkyCode, st.Code)
	assert.Equal(t, time.Date(2024, time.June, 15, 5, 30, 0, 0, time.UTC), st.Phases.Dawn.Set)
}

func TestSpritesReusedUntilCodeChanges(t *testing.T) {
	e, clock := newEngine(t, nil)
	start(t, e)

	apply(t, e, snapshotAt(noon, 500))
	first := e.Effects()[0]

	clock.Set(noon.Add(time.Minute))
	apply(t, e, snapshotAt(noon.Add(time.Minute), 500))
	assert.Same(t, first, e.Effects()[0])

	apply(t, e, snapshotAt(noon.Add(time.Minute), 600))
	assert.NotSame(t, first, e.Effects()[0])
	assert.Equal(t, "snow", e.Effects()[0].Name())
}

func TestLightningStrikeReordersAndRestores(t *testing.T) {
	var (
		positions []int
		flashing  []bool
		e         *Engine
	)
	indexOfBolt := func() int {
		for i, s := range e.Effects() {
			if s.Kind() == domain.EffectLightning {
				return i
			}
		}
		return -1
	}
	e, _ = newEngine(t, func(o *Options) {
		o.Lightning.Sleep = func(context.Context, time.Duration) error {
			positions = append(positions, indexOfBolt())
			flashing = append(flashing, e.IsFlashActive())
			return nil
		}
	})
	start(t, e)
	apply(t, e, snapshotAt(noon, 201))

	require.True(t, e.HasEffect(domain.EffectLightning))
	require.Len(t, e.Effects(), 5)
	assert.Equal(t, 4, indexOfBolt())

	ran, err := e.TriggerLightning(context.Background())

	require.NoError(t, err)
	assert.True(t, ran)
	require.Len(t, positions, 4)
	assert.Contains(t, []int{1, 2}, positions[0])
	assert.Equal(t, []bool{true, false, true, false}, flashing)

	assert.Equal(t, 4, indexOfBolt())
	assert.False(t, e.Effects()[4].Visible())
	assert.False(t, e.IsFlashActive())
}

func TestLightningSkippedWhenWeatherStale(t *testing.T) {
	e, clock := newEngine(t, func(o *Options) {
		o.Lightning.Sleep = func(context.Context, time.Duration) error { return nil }
	})
	start(t, e)
	apply(t, e, snapshotAt(noon, 201))

	clock.Set(noon.Add(time.Minute))
	ran, err := e.TriggerLightning(context.Background())

	require.NoError(t, err)
	assert.False(t, ran)
}

func TestLightningSkippedWithoutStorm(t *testing.T) {
	e, _ := newEngine(t, nil)

	ran, err := e.TriggerLightning(context.Background())

	require.NoError(t, err)
	assert.False(t, ran)
}

func TestRenderModes(t *testing.T) {
	e, _ := newEngine(t, nil)
	start(t, e)
	apply(t, e, snapshotAt(noon, 500))

	img := e.Render(context.Background(), noon, render.Mode{})
	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())

	flat := e.Render(context.Background(), noon, render.Mode{Ambient: true, BurnIn: true})
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			require.Equal(t, render.ColorAmbientFill, flat.RGBAAt(x, y))
		}
	}
}

func TestCombinedEffectFrameWithoutEffectsIsBlank(t *testing.T) {
	e, _ := newEngine(t, nil)

	img := e.CombinedEffectFrame(noon)

	assert.Equal(t, image.Rect(0, 0, 16, 16), img.Bounds())
	for i := 3; i < len(img.Pix); i += 4 {
		require.Zero(t, img.Pix[i])
	}
}

func TestLocationUpdateFetchesWeather(t *testing.T) {
	source := &fakeSource{snapshot: snapshotAt(noon, 600)}
	var (
		mu    sync.Mutex
		saved []*domain.WeatherSnapshot
		locs  []domain.Location
	)
	e, _ := newEngine(t, func(o *Options) {
		o.Source = source
		o.OnSnapshot = func(s *domain.WeatherSnapshot) {
			mu.Lock()
			defer mu.Unlock()
			saved = append(saved, s)
		}
		o.OnLocation = func(l domain.Location) {
			mu.Lock()
			defer mu.Unlock()
			locs = append(locs, l)
		}
	})
	start(t, e)

	e.OnLocationUpdated(40.7, -74)

	assert.Eventually(t, func() bool {
		st := e.Status()
		return st.Code == 600 && st.HasForecast
	}, 2*time.Second, 5*time.Millisecond)

	st := e.Status()
	assert.Equal(t, 3, st.ForecastEntries)
	require.NotNil(t, st.Location)
	assert.Equal(t, domain.Location{Lat: 40.7, Lon: -74}, *st.Location)

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, saved, 1)
	assert.Equal(t, []domain.Location{{Lat: 40.7, Lon: -74}}, locs)
}

func TestFetchFailureKeepsPreviousSnapshot(t *testing.T) {
	source := &fakeSource{err: errors.New("upstream down")}
	e, _ := newEngine(t, func(o *Options) { o.Source = source })
	start(t, e)
	apply(t, e, snapshotAt(noon, 500))

	e.OnLocationUpdated(1, 2)
	assert.Eventually(t, func() bool { return source.Calls() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	assert.Equal(t, 500, e.Status().Code)
}

func TestRefreshWeatherWithoutLocationDoesNothing(t *testing.T) {
	source := &fakeSource{snapshot: snapshotAt(noon, 600)}
	e, _ := newEngine(t, func(o *Options) { o.Source = source })
	start(t, e)

	e.RefreshWeather()
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	assert.Zero(t, source.Calls())
}

func TestTimezoneChangeRebootstraps(t *testing.T) {
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	var zone atomic.Pointer[time.Location]
	zone.Store(time.UTC)
	e, _ := newEngine(t, func(o *Options) {
		o.Zone = ZoneFunc(func() *time.Location { return zone.Load() })
	})
	start(t, e)

	zone.Store(newYork)
	e.OnTimezoneChanged()
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	st := e.Status()
	assert.Equal(t, "America/New_York", st.Zone)
	assert.True(t, st.Phases.Dawn.Set.Equal(time.Date(2024, time.June, 15, 8, 0, 0, 0, newYork)))
}

func TestDayRolloverRecomputesPhases(t *testing.T) {
	e, clock := newEngine(t, nil)
	start(t, e)

	next := noon.Add(24 * time.Hour)
	clock.Set(next)
	img := e.SkyImage(context.Background(), next)

	assert.NotNil(t, img)
	assert.Equal(t, "2024-06-16", e.Status().Phases.Day)
}

func TestPriorityRefreshTimesOutWithoutRun(t *testing.T) {
	e, _ := newEngine(t, func(o *Options) { o.RefreshWaitTimeout = 20 * time.Millisecond })
	next := noon.Add(24 * time.Hour)

	err := e.Refresh(context.Background(), next, true)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	img := e.SkyImage(context.Background(), next)
	assert.NotNil(t, img)
	assert.Equal(t, "2024-06-15", e.Status().Phases.Day)
}

func TestRunStopsOnCancel(t *testing.T) {
	e, _ := newEngine(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	cancel()

	assert.ErrorIs(t, <-done, context.Canceled)
	assert.ErrorIs(t, e.Refresh(context.Background(), noon, true), ErrStopped)
}

func TestShowPushesFrame(t *testing.T) {
	e, _ := newEngine(t, nil)
	surface := &recordingSurface{}

	require.NoError(t, e.Show(context.Background(), surface, noon, render.Mode{}))

	require.Len(t, surface.frames, 1)
	assert.Equal(t, image.Rect(0, 0, 16, 16), surface.frames[0].Bounds())
}

type recordingSurface struct {
	frames []image.Image
}

func (s *recordingSurface) Size() (int, int) { return 16, 16 }

func (s *recordingSurface) Show(_ context.Context, img image.Image) error {
	s.frames = append(s.frames, img)
	return nil
}

// slowSource answers after delay, or when ctx ends.
type slowSource struct {
	fakeSource
	delay time.Duration
}

func (s *slowSource) FetchCurrent(ctx context.Context, lat, lon float64) (*domain.WeatherSnapshot, error) {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return s.fakeSource.FetchCurrent(ctx, lat, lon)
}

func TestPriorityRefreshWaitsForLocationFetch(t *testing.T) {
	source := &slowSource{fakeSource: fakeSource{snapshot: snapshotAt(noon, 500)}, delay: 50 * time.Millisecond}
	e, _ := newEngine(t, func(o *Options) { o.Source = source })
	start(t, e)

	e.OnLocationUpdated(51.5, -0.1)
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	assert.Equal(t, 500, e.Status().Code)
	assert.False(t, e.LastRefresh().IsZero())
}

func TestPriorityRefreshGivesUpOnSlowFetch(t *testing.T) {
	source := &slowSource{fakeSource: fakeSource{snapshot: snapshotAt(noon, 500)}, delay: time.Second}
	e, _ := newEngine(t, func(o *Options) {
		o.Source = source
		o.RefreshWaitTimeout = 50 * time.Millisecond
	})
	start(t, e)

	e.OnLocationUpdated(51.5, -0.1)
	err := e.Refresh(context.Background(), time.Time{}, true)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, domain.ClearSkyCode, e.Status().Code)
}

func TestPriorityRefreshAfterFailedFetchReturns(t *testing.T) {
	source := &slowSource{fakeSource: fakeSource{err: errors.New("upstream down")}, delay: 20 * time.Millisecond}
	e, _ := newEngine(t, func(o *Options) { o.Source = source })
	start(t, e)

	e.OnLocationUpdated(51.5, -0.1)
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	assert.Equal(t, 1, source.Calls())
	assert.Equal(t, domain.ClearSkyCode, e.Status().Code)
}

func TestRestoreIsNotARefresh(t *testing.T) {
	var hooked atomic.Int32
	e, _ := newEngine(t, func(o *Options) {
		o.OnSnapshot = func(*domain.WeatherSnapshot) { hooked.Add(1) }
	})
	start(t, e)

	e.Restore(snapshotAt(noon.Add(-time.Hour), 500))
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	st := e.Status()
	assert.Equal(t, 500, st.Code)
	assert.True(t, st.LastRefresh.IsZero())
	assert.Zero(t, hooked.Load())
}

func TestRestoreKeepsNewerSnapshot(t *testing.T) {
	e, _ := newEngine(t, nil)
	start(t, e)
	apply(t, e, snapshotAt(noon, 600))

	e.Restore(snapshotAt(noon.Add(-time.Hour), 500))
	require.NoError(t, e.Refresh(context.Background(), time.Time{}, true))

	assert.Equal(t, 600, e.Status().Code)
}
