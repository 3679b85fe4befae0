package assets

import (
	"image"
	"sync"

	xdraw "golang.org/x/image/draw"
)

// Scaled resizes images from another store to a fixed width, keeping the
// aspect ratio.
type Scaled struct {
	store Store
	width int

	mu    sync.Mutex
	cache map[string]image.Image
}

// NewScaled wraps store so every image comes back width pixels wide.
func NewScaled(store Store, width int) *Scaled {
	return &Scaled{store: store, width: width, cache: make(map[string]image.Image)}
}

// Load returns key scaled to the configured width.
func (s *Scaled) Load(key string) (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if img, ok := s.cache[key]; ok {
		return img, nil
	}

	img, err := s.store.Load(key)
	if err != nil {
		return nil, err
	}

	b := img.Bounds()
	if s.width > 0 && b.Dx() != s.width && b.Dx() > 0 {
		h := max(1, b.Dy()*s.width/b.Dx())
		dst := image.NewRGBA(image.Rect(0, 0, s.width, h))
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Src, nil)
		img = dst
	}

	s.cache[key] = img
	return img, nil
}
