// Package effect implements animated weather layers.
package effect

import (
	"errors"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// ErrNoFrames is returned when a sprite is created without source images.
var ErrNoFrames = errors.New("sprite has no frames")

// Options configures a new Sprite.
type Options struct {
	Name    string
	Kind    domain.EffectKind
	Axis    domain.Axis
	Speed   float64 // px/s
	Frames  []image.Image
	Mask    image.Image // optional recolor mask, as tall as the sky image
	Width   int
	Height  int
	Visible bool
}

// Sprite is one animated effect layer. It is safe for concurrent use.
type Sprite struct {
	name  string
	kind  domain.EffectKind
	axis  domain.Axis
	speed float64

	frames []*image.RGBA
	mask   *image.RGBA
	width  int
	height int

	mu         sync.Mutex
	x, y       float64
	lastUpdate time.Time
	visible    bool
	shaderCrop *image.RGBA
}

// New creates a sprite positioned at the origin of its source.
func New(opts Options) (*Sprite, error) {
	if len(opts.Frames) == 0 {
		return nil, ErrNoFrames
	}
	s := &Sprite{
		name:    opts.Name,
		kind:    opts.Kind,
		axis:    opts.Axis,
		speed:   opts.Speed,
		width:   opts.Width,
		height:  opts.Height,
		visible: opts.Visible,
	}
	for _, f := range opts.Frames {
		s.frames = append(s.frames, toRGBA(f))
	}
	if opts.Mask != nil {
		s.mask = toRGBA(opts.Mask)
	}
	if s.width <= 0 || s.height <= 0 {
		b := s.frames[0].Bounds()
		s.width, s.height = b.Dx(), b.Dy()
	}
	return s, nil
}

// Name returns the layer name.
func (s *Sprite) Name() string { return s.name }

// Kind returns the effect kind.
func (s *Sprite) Kind() domain.EffectKind { return s.kind }

// Size returns the frame size produced by Frame.
func (s *Sprite) Size() (int, int) { return s.width, s.height }

// SourceSize returns the size of the first source image.
func (s *Sprite) SourceSize() (int, int) {
	b := s.frames[0].Bounds()
	return b.Dx(), b.Dy()
}

// FrameCount returns the number of source images.
func (s *Sprite) FrameCount() int { return len(s.frames) }

// Visible reports whether the sprite is drawn.
func (s *Sprite) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// SetVisible shows or hides the sprite.
func (s *Sprite) SetVisible(v bool) {
	s.mu.Lock()
	s.visible = v
	s.mu.Unlock()
}

// Position returns the current sampling position.
func (s *Sprite) Position() (float64, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.x, s.y
}

// SetPosition moves the sprite, wrapping into the source bounds.
func (s *Sprite) SetPosition(x, y float64) {
	w, h := s.SourceSize()
	s.mu.Lock()
	s.x = Wrap(x, float64(w))
	s.y = Wrap(y, float64(h))
	s.mu.Unlock()
}

// SetShaderCrop cuts the recolor window at the sky crop offset.
func (s *Sprite) SetShaderCrop(offset int) {
	if s.mask == nil {
		return
	}
	mb := s.mask.Bounds()
	offset = max(0, min(offset, mb.Dy()-s.height))

	crop := image.NewRGBA(image.Rect(0, 0, s.width, s.height))
	draw.Draw(crop, crop.Bounds(), s.mask, image.Pt(mb.Min.X, mb.Min.Y+offset), draw.Src)

	s.mu.Lock()
	s.shaderCrop = crop
	s.mu.Unlock()
}

// ShaderCrop returns the recolor window, or nil when the sprite has no mask.
func (s *Sprite) ShaderCrop() *image.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shaderCrop
}

// Frame renders the sprite at now.
//
// Drifting layers advance by speed times the time since the previous call.
// Lightning layers draw variant lightningFrame at their offset and never
// move on their own. Hidden sprites yield a transparent frame.
func (s *Sprite) Frame(now time.Time, lightningFrame int) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, s.width, s.height))

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.kind == domain.EffectCloud {
		s.advance(now)
	}
	if !s.visible {
		return out
	}

	switch s.kind {
	case domain.EffectLightning:
		s.drawFlash(out, wrapInt(lightningFrame, len(s.frames)))
	default:
		Tile(out, s.frames[0], int(math.Floor(s.x)), int(math.Floor(s.y)))
	}
	return out
}

func (s *Sprite) advance(now time.Time) {
	if !s.lastUpdate.IsZero() {
		elapsed := now.Sub(s.lastUpdate)
		if elapsed > 0 {
			dx, dy := s.axis.Unit()
			travel := s.speed * float64(elapsed.Milliseconds()) / 1000
			b := s.frames[0].Bounds()
			s.x = Wrap(s.x+dx*travel, float64(b.Dx()))
			s.y = Wrap(s.y+dy*travel, float64(b.Dy()))
		}
	}
	s.lastUpdate = now
}

// drawFlash draws one lightning variant at the sprite offset, wrapping
// horizontally across the frame.
func (s *Sprite) drawFlash(out *image.RGBA, idx int) {
	src := s.frames[idx]
	ox, oy := int(math.Round(s.x)), int(math.Round(s.y))
	ox = wrapInt(ox, s.width)

	for _, dx := range []int{ox, ox - s.width} {
		r := src.Bounds().Sub(src.Bounds().Min).Add(image.Pt(dx, oy))
		draw.Draw(out, r, src, src.Bounds().Min, draw.Over)
	}
}
