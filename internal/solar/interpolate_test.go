package solar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var t0 = time.Date(2024, 3, 10, 6, 0, 0, 0, time.UTC)

func TestInterpolateReversedBoundaries(t *testing.T) {
	start := t0
	set := t0.Add(time.Hour)

	assert.Equal(t, 50, Interpolate(start, start, set, 200, 50, true))
	assert.Equal(t, 200, Interpolate(set, start, set, 200, 50, true))
}

func TestInterpolateReversedMidpoint(t *testing.T) {
	start := t0
	set := t0.Add(time.Hour)
	mid := start.Add(30 * time.Minute)

	// rate is 200px per hour, so half an hour adds 100px to the 50px floor
	assert.Equal(t, 150, Interpolate(mid, start, set, 200, 50, true))
}

func TestInterpolateForward(t *testing.T) {
	start := t0
	end := t0.Add(2 * time.Hour)

	assert.Equal(t, 200, Interpolate(start, start, end, 200, 50, false))
	assert.Equal(t, 100, Interpolate(start.Add(time.Hour), start, end, 200, 50, false))
	assert.Equal(t, 50, Interpolate(end, start, end, 200, 50, false))
}

func TestInterpolateSaturates(t *testing.T) {
	start := t0
	end := t0.Add(time.Hour)

	assert.Equal(t, 200, Interpolate(end.Add(time.Hour), start, end, 200, 50, true))
	assert.Equal(t, 50, Interpolate(end.Add(time.Hour), start, end, 200, 50, false))
}

func TestInterpolateBeforeStartHoldsInitialValue(t *testing.T) {
	start := t0
	end := t0.Add(time.Hour)

	assert.Equal(t, 50, Interpolate(start.Add(-time.Minute), start, end, 200, 50, true))
	assert.Equal(t, 200, Interpolate(start.Add(-time.Minute), start, end, 200, 50, false))
}

func TestInterpolateZeroLengthWindow(t *testing.T) {
	assert.NotPanics(t, func() {
		assert.Equal(t, 200, Interpolate(t0, t0, t0, 200, 50, true))
		assert.Equal(t, 50, Interpolate(t0, t0, t0, 200, 50, false))
	})
}

func TestInterpolateMonotonic(t *testing.T) {
	start := t0
	end := t0.Add(90 * time.Minute)

	prevUp, prevDown := -1, 1<<30
	for now := start; !now.After(end); now = now.Add(37 * time.Second) {
		up := Interpolate(now, start, end, 300, 64, true)
		down := Interpolate(now, start, end, 300, 64, false)
		assert.GreaterOrEqual(t, up, prevUp)
		assert.LessOrEqual(t, down, prevDown)
		prevUp, prevDown = up, down
	}
}
