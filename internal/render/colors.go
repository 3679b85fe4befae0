package render

import "image/color"

// Common colors for the sky face.
var (
	ColorBlack = color.RGBA{A: 0xff}
	ColorWhite = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}

	// Lightning: the sky washes out and clouds become silhouettes.
	ColorFlash      = ColorWhite
	ColorSilhouette = ColorBlack

	// Flat ambient fill.
	ColorAmbientFill = ColorBlack

	// Clock overlay.
	ColorClock       = color.RGBA{R: 0xf0, G: 0xf0, B: 0xf0, A: 0xff}
	ColorClockShadow = color.RGBA{A: 0xc0}
)

// LerpColor linearly interpolates between two colors, alpha included.
func LerpColor(a, b color.RGBA, t float64) color.RGBA {
	if t <= 0 {
		return a
	}
	if t >= 1 {
		return b
	}
	lerp := func(x, y uint8) uint8 {
		return uint8(float64(x) + t*float64(int(y)-int(x)))
	}
	return color.RGBA{R: lerp(a.R, b.R), G: lerp(a.G, b.G), B: lerp(a.B, b.B), A: lerp(a.A, b.A)}
}
