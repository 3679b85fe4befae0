// Package render composites the sky background and weather layers into frames.
package render

import (
	"image"
	"image/draw"
	"time"
)

// Mode describes how the host is currently displaying the face.
type Mode struct {
	Ambient bool // dim always-on display
	LowBit  bool // ambient panel supports few colors
	BurnIn  bool // ambient panel needs burn-in protection
}

// Flat reports whether the frame should be a plain fill.
func (m Mode) Flat() bool {
	return m.Ambient && (m.LowBit || m.BurnIn)
}

func (m Mode) String() string {
	switch {
	case m.Flat():
		return "flat"
	case m.Ambient:
		return "ambient"
	default:
		return "interactive"
	}
}

// Layer is an effect layer that can be drawn into a frame.
type Layer interface {
	Frame(now time.Time, lightningFrame int) *image.RGBA
	ShaderCrop() *image.RGBA
}

// Scene is everything needed to compose one frame.
type Scene struct {
	Background *image.RGBA
	Gray       *image.RGBA
	// Layers are ordered top-most first.
	Layers         []Layer
	LightningFrame int
	Flash          bool
}

// CropSky cuts a w x h window from sky at the vertical offset.
func CropSky(sky image.Image, offset, w, h int) *image.RGBA {
	sb := sky.Bounds()
	offset = max(0, min(offset, sb.Dy()-h))
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(out, out.Bounds(), sky, image.Pt(sb.Min.X, sb.Min.Y+offset), draw.Src)
	return out
}

// Background draws the starfield and then the sky crop on top of it, so
// stars show wherever the crop is transparent.
func Background(stars image.Image, crop image.Image) *image.RGBA {
	sb := stars.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, sb.Dx(), sb.Dy()))
	draw.Draw(out, out.Bounds(), stars, sb.Min, draw.Src)
	draw.Draw(out, crop.Bounds().Sub(crop.Bounds().Min), crop, crop.Bounds().Min, draw.Over)
	return out
}

// FoldEffects draws layers bottom-to-top into a single w x h image, so index
// 0 ends up on top. When shaded, each layer is first multiplied by its
// shader crop. Returns nil when there are no layers.
func FoldEffects(now time.Time, layers []Layer, lightningFrame int, w, h int, shaded bool) *image.RGBA {
	if len(layers) == 0 {
		return nil
	}
	out := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := len(layers) - 1; i >= 0; i-- {
		frame := layers[i].Frame(now, lightningFrame)
		if shaded {
			if crop := layers[i].ShaderCrop(); crop != nil {
				Multiply(frame, crop)
			}
		}
		Over(out, frame)
	}
	return out
}

// Compose produces the final frame for now.
//
// Flat mode yields a black fill. Ambient mode uses the grayscale background
// and skips shading. A flash washes the sky white and turns the effect layers
// into black silhouettes, in ambient mode as well.
func Compose(now time.Time, mode Mode, scene Scene) *image.RGBA {
	size := scene.Background.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, size.Dx(), size.Dy()))

	if mode.Flat() {
		Fill(out, ColorAmbientFill)
		return out
	}

	bg := scene.Background
	if mode.Ambient && scene.Gray != nil {
		bg = scene.Gray
	}
	draw.Draw(out, out.Bounds(), bg, bg.Bounds().Min, draw.Src)

	if scene.Flash {
		ReplaceColor(out, ColorFlash)
	}

	effects := FoldEffects(now, scene.Layers, scene.LightningFrame, size.Dx(), size.Dy(), !mode.Ambient)
	if effects != nil {
		if scene.Flash {
			ReplaceColor(effects, ColorSilhouette)
		}
		Over(out, effects)
	}
	return out
}
