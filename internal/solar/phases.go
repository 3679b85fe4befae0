// Package solar computes dawn and dusk windows and the sky crop offset they imply.
package solar

import (
	"fmt"
	"time"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// Window lead and trail durations around sunrise and sunset.
const (
	DawnLead  = time.Hour
	DawnTrail = 2 * time.Hour
	DuskLead  = 2 * time.Hour
	DuskTrail = time.Hour
)

// Hours after midnight assumed before any weather snapshot arrives.
const (
	DefaultSunriseHour = 7
	DefaultSunsetHour  = 19
)

// Window is a transition centred on Set.
type Window struct {
	Start time.Time
	Set   time.Time
	End   time.Time
}

func newWindow(set time.Time, lead, trail time.Duration) Window {
	return Window{Start: set.Add(-lead), Set: set, End: set.Add(trail)}
}

// Phases holds today's dawn and dusk windows.
type Phases struct {
	Day      string // civil date, YYYY-MM-DD in the active zone
	Today    time.Time
	Tomorrow time.Time
	Dawn     Window
	Dusk     Window

	// Sunrise and Sunset are the inputs the windows were built from.
	Sunrise time.Time
	Sunset  time.Time
}

// Midnight returns the start of t's civil day in loc.
func Midnight(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// CivilDay returns t's calendar date in loc.
func CivilDay(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(time.DateOnly)
}

// Bootstrap returns default phases with sunrise 7h and sunset 19h after
// midnight. The zone's daylight-saving offset at now is added once, so in
// summer time they fall at 08:00 and 20:00 local.
func Bootstrap(now time.Time, loc *time.Location) Phases {
	today := Midnight(now, loc)
	base := today.Add(daylightOffset(now, loc))
	sunrise := base.Add(DefaultSunriseHour * time.Hour)
	sunset := base.Add(DefaultSunsetHour * time.Hour)
	return build(today, sunrise, sunset)
}

// daylightOffset is how far loc runs ahead of its standard time at t.
func daylightOffset(t time.Time, loc *time.Location) time.Duration {
	t = t.In(loc)
	if !t.IsDST() {
		return 0
	}
	_, jan := time.Date(t.Year(), time.January, 1, 12, 0, 0, 0, loc).Zone()
	_, jul := time.Date(t.Year(), time.July, 1, 12, 0, 0, 0, loc).Zone()
	_, cur := t.Zone()
	return time.Duration(cur-min(jan, jul)) * time.Second
}

// Recompute rebuilds the phases for now's civil day from snapshot.
//
// A snapshot observed before today's midnight still supplies a useful
// estimate, so its local sunrise and sunset clock times are carried onto
// today. When sunrise is not before sunset prev is returned unchanged along
// with domain.ErrMalformedSnapshot.
func Recompute(prev Phases, snapshot *domain.WeatherSnapshot, now time.Time, loc *time.Location) (Phases, error) {
	if snapshot == nil {
		return Bootstrap(now, loc), nil
	}
	if !snapshot.Sunrise.Before(snapshot.Sunset) {
		return prev, fmt.Errorf("%w: sunrise %s not before sunset %s", domain.ErrMalformedSnapshot,
			snapshot.Sunrise.Format(time.RFC3339), snapshot.Sunset.Format(time.RFC3339))
	}

	today := Midnight(now, loc)
	sunrise, sunset := snapshot.Sunrise, snapshot.Sunset
	if !snapshot.ObservedSince(today) {
		sunrise = onDay(sunrise, today, loc)
		sunset = onDay(sunset, today, loc)
		if !sunrise.Before(sunset) {
			return prev, fmt.Errorf("%w: carried sunrise not before sunset", domain.ErrMalformedSnapshot)
		}
	}
	return build(today, sunrise, sunset), nil
}

// onDay moves t's local clock time onto day.
func onDay(t, day time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

func build(today, sunrise, sunset time.Time) Phases {
	p := Phases{
		Day:      today.Format(time.DateOnly),
		Today:    today,
		Tomorrow: today.Add(24 * time.Hour),
		Dawn:     newWindow(sunrise, DawnLead, DawnTrail),
		Dusk:     newWindow(sunset, DuskLead, DuskTrail),
		Sunrise:  sunrise,
		Sunset:   sunset,
	}
	p.clamp()
	return p
}

// clamp forces every boundary into [Today, Tomorrow] and into non-decreasing order.
func (p *Phases) clamp() {
	floor := p.Today
	for _, b := range []*time.Time{
		&p.Dawn.Start, &p.Dawn.Set, &p.Dawn.End,
		&p.Dusk.Start, &p.Dusk.Set, &p.Dusk.End,
	} {
		if b.Before(floor) {
			*b = floor
		}
		if b.After(p.Tomorrow) {
			*b = p.Tomorrow
		}
		floor = *b
	}
}

// Ordered reports whether the boundaries are in non-decreasing order within the day.
func (p Phases) Ordered() bool {
	seq := []time.Time{
		p.Today,
		p.Dawn.Start, p.Dawn.Set, p.Dawn.End,
		p.Dusk.Start, p.Dusk.Set, p.Dusk.End,
		p.Tomorrow,
	}
	for i := 1; i < len(seq); i++ {
		if seq[i].Before(seq[i-1]) {
			return false
		}
	}
	return true
}

// NeedsRecompute reports whether the civil day has rolled over, or whether a
// snapshot from today carries a different sunrise or sunset.
func (p Phases) NeedsRecompute(now time.Time, loc *time.Location, snapshot *domain.WeatherSnapshot) bool {
	if CivilDay(now, loc) != p.Day {
		return true
	}
	if !snapshot.ObservedSince(p.Today) {
		return false
	}
	return !snapshot.Sunrise.Equal(p.Sunrise) || !snapshot.Sunset.Equal(p.Sunset)
}

// Heights are the crop offsets within a tall sky image.
type Heights struct {
	Sky  int // image width; first crop past night
	Sun  int // sun on the horizon
	Day  int // full daylight, the last crop
	Dusk int // end of the dusk band
}

// HeightsFor derives crop heights from a sky image of width w and height h.
func HeightsFor(w, h int) Heights {
	return Heights{
		Sky:  w,
		Sun:  2 * w,
		Day:  max(0, h-w),
		Dusk: max(0, h-3*w),
	}
}

// Offset returns the vertical crop offset into the sky image at now.
//
// Every sub-window excludes its lower bound and includes its upper bound.
func (p Phases) Offset(now time.Time, h Heights) int {
	switch {
	case !now.After(p.Dawn.Start):
		return 0
	case !now.After(p.Dawn.Set):
		return Interpolate(now, p.Dawn.Start, p.Dawn.Set, h.Sun, h.Sky, true)
	case !now.After(p.Dawn.End):
		return Interpolate(now, p.Dawn.Set, p.Dawn.End, h.Dusk, h.Sun, true)
	case !now.After(p.Dusk.Start):
		return h.Day
	case !now.After(p.Dusk.Set):
		return Interpolate(now, p.Dusk.Start, p.Dusk.Set, h.Dusk, h.Sun, false)
	case !now.After(p.Dusk.End):
		return Interpolate(now, p.Dusk.Set, p.Dusk.End, h.Sun, h.Sky, false)
	default:
		return 0
	}
}

// Name returns a label for the part of the day now falls in.
func (p Phases) Name(now time.Time) string {
	switch {
	case !now.After(p.Dawn.Start):
		return "night"
	case !now.After(p.Dawn.End):
		return "dawn"
	case !now.After(p.Dusk.Start):
		return "day"
	case !now.After(p.Dusk.End):
		return "dusk"
	default:
		return "night"
	}
}
