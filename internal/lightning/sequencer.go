// Package lightning runs the strobe that briefly reveals a storm's lightning layer.
package lightning

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"go.uber.org/zap"
)

// State is the sequencer state.
type State int

const (
	Idle State = iota
	Priming
	Flash1
	Gap
	Flash2
	Cooldown
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Priming:
		return "priming"
	case Flash1:
		return "flash1"
	case Gap:
		return "gap"
	case Flash2:
		return "flash2"
	case Cooldown:
		return "cooldown"
	default:
		return "unknown"
	}
}

// Step is one hold of the strobe pattern.
type Step struct {
	State   State
	Visible bool
	Hold    time.Duration
}

// DefaultPattern is on 250ms, off 250ms, on 250ms, off 500ms.
var DefaultPattern = []Step{
	{State: Flash1, Visible: true, Hold: 250 * time.Millisecond},
	{State: Gap, Visible: false, Hold: 250 * time.Millisecond},
	{State: Flash2, Visible: true, Hold: 250 * time.Millisecond},
	{State: Cooldown, Visible: false, Hold: 500 * time.Millisecond},
}

// Defaults.
const (
	DefaultFreshness      = 30 * time.Second
	DefaultJitterFraction = 0.25
)

// Bolt is the lightning layer the sequencer drives.
type Bolt interface {
	SetVisible(bool)
	SetPosition(x, y float64)
	SourceSize() (int, int)
	FrameCount() int
}

// Target exposes the current effect stack to the sequencer.
type Target interface {
	// Lightning returns the active lightning layer and the number of layers
	// in the stack, or nil when no storm is showing.
	Lightning() (Bolt, int)
	// LastRefresh returns when weather was last applied.
	LastRefresh() time.Time
}

// Strike describes the flash currently showing.
type Strike struct {
	State State
	Frame int
	// Z is the stack index the lightning layer is drawn at.
	Z    int
	Bolt Bolt
}

// Active reports whether a strike is in progress.
func (s Strike) Active() bool {
	return s.State != Idle
}

// Flashing reports whether the bolt is currently lit.
func (s Strike) Flashing() bool {
	return s.State == Flash1 || s.State == Flash2
}

// Options configures a Sequencer.
type Options struct {
	Pattern        []Step
	Freshness      time.Duration
	JitterFraction float64
	Rand           *rand.Rand
	Now            func() time.Time
	// Sleep waits for d or until ctx is done.
	Sleep  func(ctx context.Context, d time.Duration) error
	Logger *zap.Logger
	// OnStrike is called once per completed trigger.
	OnStrike func()
}

// Sequencer runs the strobe pattern against a Target.
type Sequencer struct {
	target   Target
	pattern  []Step
	fresh    time.Duration
	jitter   float64
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	logger   *zap.Logger
	onStrike func()

	randMu sync.Mutex
	rand   *rand.Rand

	mu     sync.Mutex
	strike Strike
}

// NewSequencer creates a sequencer. Zero options take package defaults.
func NewSequencer(target Target, opts Options) *Sequencer {
	s := &Sequencer{
		target:   target,
		pattern:  opts.Pattern,
		fresh:    opts.Freshness,
		jitter:   opts.JitterFraction,
		now:      opts.Now,
		sleep:    opts.Sleep,
		logger:   opts.Logger,
		onStrike: opts.OnStrike,
		rand:     opts.Rand,
	}
	if s.pattern == nil {
		s.pattern = DefaultPattern
	}
	if s.fresh <= 0 {
		s.fresh = DefaultFreshness
	}
	if s.jitter <= 0 {
		s.jitter = DefaultJitterFraction
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.sleep == nil {
		s.sleep = sleepContext
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.rand == nil {
		s.rand = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return s
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Strike returns the current strike state.
func (s *Sequencer) Strike() Strike {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.strike
}

// IsFlashActive reports whether the bolt is lit right now.
func (s *Sequencer) IsFlashActive() bool {
	return s.Strike().Flashing()
}

// Trigger runs one strobe if a storm is showing and weather is fresh. It
// blocks for the length of the pattern and reports whether a strike ran.
// Overlapping calls return false immediately.
func (s *Sequencer) Trigger(ctx context.Context) (bool, error) {
	bolt, layers := s.target.Lightning()
	if bolt == nil {
		return false, nil
	}
	if s.now().Sub(s.target.LastRefresh()) > s.fresh {
		return false, nil
	}

	s.mu.Lock()
	if s.strike.Active() {
		s.mu.Unlock()
		return false, nil
	}
	strike := s.prime(bolt, layers)
	s.strike = strike
	s.mu.Unlock()

	defer s.reset(bolt)

	for _, step := range s.pattern {
		s.mu.Lock()
		s.strike.State = step.State
		bolt.SetVisible(step.Visible)
		s.mu.Unlock()

		if err := s.sleep(ctx, step.Hold); err != nil {
			return false, err
		}
	}

	if s.onStrike != nil {
		s.onStrike()
	}
	s.logger.Debug("lightning strike", zap.Int("frame", strike.Frame), zap.Int("z", strike.Z))
	return true, nil
}

// prime picks the variant, offset and stack position for a strike.
func (s *Sequencer) prime(bolt Bolt, layers int) Strike {
	s.randMu.Lock()
	defer s.randMu.Unlock()

	frames := max(1, bolt.FrameCount())
	w, _ := bolt.SourceSize()
	span := s.jitter * float64(w)

	strike := Strike{
		State: Priming,
		Frame: s.rand.IntN(frames),
		Z:     1 + s.rand.IntN(2),
		Bolt:  bolt,
	}
	// never past the end of the stack
	strike.Z = min(strike.Z, max(0, layers-1))

	bolt.SetPosition((s.rand.Float64()*2-1)*span, 0)
	return strike
}

func (s *Sequencer) reset(bolt Bolt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bolt.SetVisible(false)
	s.strike = Strike{State: Idle}
}
