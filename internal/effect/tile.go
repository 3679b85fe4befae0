package effect

import (
	"image"
	"image/draw"
	"math"
)

// Wrap returns a modulo m in [0, m), for negative a as well.
func Wrap(a, m float64) float64 {
	if m <= 0 {
		return 0
	}
	r := math.Mod(a, m)
	if r < 0 {
		r += m
	}
	// r + m can round up to m for tiny negative remainders
	if r >= m {
		r = 0
	}
	return r
}

func wrapInt(a, m int) int {
	r := a % m
	if r < 0 {
		r += m
	}
	return r
}

// Tile fills dst with src sampled from (ox, oy) as if src repeated forever in
// both directions. A window that runs past an edge of src is stitched from
// the tail of src and its wrapped-around head.
func Tile(dst *image.RGBA, src image.Image, ox, oy int) {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()
	if sw == 0 || sh == 0 {
		return
	}
	db := dst.Bounds()
	w, h := db.Dx(), db.Dy()

	for ty := 0; ty < h; {
		sy := wrapInt(oy+ty, sh)
		rows := min(sh-sy, h-ty)
		for tx := 0; tx < w; {
			sx := wrapInt(ox+tx, sw)
			cols := min(sw-sx, w-tx)
			r := image.Rect(tx, ty, tx+cols, ty+rows).Add(db.Min)
			draw.Draw(dst, r, src, sb.Min.Add(image.Pt(sx, sy)), draw.Src)
			tx += cols
		}
		ty += rows
	}
}

// toRGBA returns img as an *image.RGBA anchored at the origin.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}
