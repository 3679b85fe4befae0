package solar

import (
	"math"
	"time"
)

// Interpolate maps now within [start, end] onto a pixel offset between
// rangeMin and rangeMax.
//
// The ramp rate is rangeMax per window, so the result saturates before the
// window closes whenever rangeMin > 0. Reversed ramps climb from rangeMin
// toward rangeMax; forward ramps fall from rangeMax toward rangeMin. A
// zero-length window jumps straight to its terminal value.
func Interpolate(now, start, end time.Time, rangeMax, rangeMin int, reversed bool) int {
	span := end.Sub(start)
	if span <= 0 {
		if reversed {
			return rangeMax
		}
		return rangeMin
	}

	elapsed := now.Sub(start)
	if elapsed < 0 {
		elapsed = 0
	}

	rate := float64(rangeMax) / float64(span.Milliseconds())
	progress := int(math.Round(rate * float64(elapsed.Milliseconds())))

	if reversed {
		return min(rangeMax, rangeMin+progress)
	}
	return max(rangeMin, rangeMax-progress)
}
