package assets

import (
	"hash/fnv"
	"image"
	"image/color"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"sync"

	"github.com/brettg0396/skyface-go/internal/render"
)

// SkyAspect is the height of a synthetic sky or shader image in widths.
const SkyAspect = 6

// Synthetic draws a deterministic procedural asset set, so the face renders
// without bundled art. The same key and width always produce the same pixels.
type Synthetic struct {
	width int

	mu    sync.Mutex
	cache map[string]image.Image
}

// NewSynthetic creates a procedural store for a display width pixels wide.
func NewSynthetic(width int) *Synthetic {
	return &Synthetic{width: max(8, width), cache: make(map[string]image.Image)}
}

// Load generates key, caching the result.
func (s *Synthetic) Load(key string) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if img, ok := s.cache[key]; ok {
		return img, nil
	}
	img := s.generate(key)
	if img == nil {
		return nil, ConfigurationError{Key: key, Reason: "no synthetic image"}
	}
	s.cache[key] = img
	return img, nil
}

type stop struct {
	at float64
	c  color.RGBA
}

// Sky palettes: the horizon glow and the midday colour.
var skyPalettes = map[string][2]color.RGBA{
	KeySkyWinter:   {{R: 235, G: 150, B: 120, A: 255}, {R: 140, G: 185, B: 230, A: 255}},
	KeySkySpring:   {{R: 240, G: 140, B: 100, A: 255}, {R: 90, G: 160, B: 235, A: 255}},
	KeySkySummer:   {{R: 250, G: 130, B: 60, A: 255}, {R: 50, G: 130, B: 235, A: 255}},
	KeySkyFall:     {{R: 240, G: 110, B: 50, A: 255}, {R: 100, G: 150, B: 215, A: 255}},
	KeySkyOvercast: {{R: 170, G: 150, B: 150, A: 255}, {R: 150, G: 160, B: 170, A: 255}},
	KeySkyStormy:   {{R: 110, G: 95, B: 100, A: 255}, {R: 85, G: 95, B: 110, A: 255}},
}

// Shader glows: how effects are tinted around sunrise and sunset.
var shaderGlows = map[string]color.RGBA{
	KeyShaderWinter:   {R: 255, G: 200, B: 200, A: 255},
	KeyShaderSpring:   {R: 255, G: 190, B: 170, A: 255},
	KeyShaderSummer:   {R: 255, G: 170, B: 120, A: 255},
	KeyShaderFall:     {R: 255, G: 160, B: 110, A: 255},
	KeyShaderOvercast: {R: 210, G: 200, B: 200, A: 255},
	KeyShaderStormy:   {R: 170, G: 165, B: 170, A: 255},
}

// cloud deck parameters per layer
var cloudDecks = map[string]struct {
	blobs int
	alpha uint8
}{
	KeyCloudsNear: {blobs: 6, alpha: 230},
	KeyCloudsMid:  {blobs: 5, alpha: 170},
	KeyCloudsFar:  {blobs: 4, alpha: 110},
}

func (s *Synthetic) generate(key string) image.Image {
	if palette, ok := skyPalettes[key]; ok {
		return s.sky(palette[0], palette[1])
	}
	if glow, ok := shaderGlows[key]; ok {
		return s.shader(glow)
	}
	if deck, ok := cloudDecks[key]; ok {
		return s.clouds(s.rng(key), deck.blobs, deck.alpha)
	}
	switch key {
	case KeyStars:
		return s.stars(s.rng(key))
	case KeyRain:
		return s.rain(s.rng(key))
	case KeySnow:
		return s.snow(s.rng(key))
	}
	if idx, ok := strings.CutPrefix(key, "lightning_"); ok {
		i, err := strconv.Atoi(idx)
		if err == nil && i >= 0 && i < LightningFrames {
			return s.bolt(s.rng(key))
		}
	}
	return nil
}

func (s *Synthetic) rng(key string) *rand.Rand {
	h := fnv.New64a()
	h.Write([]byte(key))
	seed := h.Sum64()
	return rand.New(rand.NewPCG(seed, seed^uint64(s.width)))
}

// gradient fills a w×h image top to bottom through stops.
func gradient(w, h int, stops []stop) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		t := float64(y) / float64(max(1, h-1))
		c := stops[len(stops)-1].c
		for i := 1; i < len(stops); i++ {
			if t <= stops[i].at {
				a, b := stops[i-1], stops[i]
				c = render.LerpColor(a.c, b.c, (t-a.at)/(b.at-a.at))
				break
			}
		}
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// sky runs from transparent night at the top, through the horizon glow,
// to full daylight at the bottom.
func (s *Synthetic) sky(glow, day color.RGBA) *image.RGBA {
	return gradient(s.width, s.width*SkyAspect, []stop{
		{0, color.RGBA{}},
		{0.15, color.RGBA{R: 10, G: 12, B: 45, A: 200}},
		{0.3, color.RGBA{R: 60, G: 40, B: 110, A: 255}},
		{0.45, glow},
		{0.6, render.LerpColor(glow, day, 0.5)},
		{0.8, render.LerpColor(day, render.ColorWhite, 0.2)},
		{1, day},
	})
}

func (s *Synthetic) shader(glow color.RGBA) *image.RGBA {
	return gradient(s.width, s.width*SkyAspect, []stop{
		{0, color.RGBA{R: 40, G: 40, B: 70, A: 255}},
		{0.3, color.RGBA{R: 110, G: 90, B: 130, A: 255}},
		{0.45, glow},
		{0.6, render.LerpColor(glow, render.ColorWhite, 0.5)},
		{0.8, render.ColorWhite},
		{1, render.ColorWhite},
	})
}

func (s *Synthetic) stars(r *rand.Rand) *image.RGBA {
	w := s.width
	img := image.NewRGBA(image.Rect(0, 0, w, w))
	render.Fill(img, render.ColorBlack)
	for range w * w / 40 {
		v := uint8(120 + r.IntN(136))
		img.SetRGBA(r.IntN(w), r.IntN(w), color.RGBA{R: v, G: v, B: v, A: 255})
	}
	return img
}

// clouds draws soft white blobs that wrap at every edge so the tile repeats
// without a seam.
func (s *Synthetic) clouds(r *rand.Rand, blobs int, alpha uint8) *image.RGBA {
	w := s.width
	img := image.NewRGBA(image.Rect(0, 0, w, w))
	for range blobs {
		cx := r.Float64() * float64(w)
		cy := r.Float64() * float64(w) / 2
		radius := float64(w) * (0.2 + r.Float64()*0.15)
		for y := 0; y < w; y++ {
			for x := 0; x < w; x++ {
				d := math.Hypot(wrapDist(float64(x), cx, w), wrapDist(float64(y), cy, w))
				if d >= radius {
					continue
				}
				a := uint8(float64(alpha) * (1 - d/radius))
				if a > img.RGBAAt(x, y).A {
					img.SetRGBA(x, y, color.RGBA{R: a, G: a, B: a, A: a})
				}
			}
		}
	}
	return img
}

func wrapDist(a, b float64, m int) float64 {
	d := math.Abs(a - b)
	return math.Min(d, float64(m)-d)
}

func (s *Synthetic) rain(r *rand.Rand) *image.RGBA {
	w := s.width
	img := image.NewRGBA(image.Rect(0, 0, w, w))
	drop := color.RGBA{R: 140, G: 160, B: 200, A: 200}
	for range w / 2 {
		x, y := r.IntN(w), r.IntN(w)
		for i := range 3 + r.IntN(3) {
			img.SetRGBA(x, (y+i)%w, drop)
		}
	}
	return img
}

func (s *Synthetic) snow(r *rand.Rand) *image.RGBA {
	w := s.width
	img := image.NewRGBA(image.Rect(0, 0, w, w))
	flake := color.RGBA{R: 230, G: 230, B: 230, A: 230}
	for range w / 3 {
		img.SetRGBA(r.IntN(w), r.IntN(w), flake)
	}
	return img
}

// bolt draws a jagged stroke from the top of the tile down two thirds of it.
func (s *Synthetic) bolt(r *rand.Rand) *image.RGBA {
	w := s.width
	img := image.NewRGBA(image.Rect(0, 0, w, w))
	core := render.ColorWhite
	glow := color.RGBA{R: 100, G: 100, B: 140, A: 140}

	x := w/2 + r.IntN(w/4+1) - w/8
	for y := 0; y < w*2/3; y++ {
		if y%3 == 0 {
			x = max(1, min(w-2, x+r.IntN(5)-2))
		}
		img.SetRGBA(x-1, y, glow)
		img.SetRGBA(x+1, y, glow)
		img.SetRGBA(x, y, core)
	}
	return img
}
