package render

import (
	"image"
	"image/color"
	"image/draw"
)

// Multiply darkens dst by mask channel-wise: dst = dst * mask / 255.
// Alpha is left untouched; fully transparent mask pixels leave dst unchanged.
func Multiply(dst *image.RGBA, mask *image.RGBA) {
	b := dst.Bounds().Intersect(mask.Bounds())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			m := mask.RGBAAt(x, y)
			if m.A == 0 {
				continue
			}
			c := dst.RGBAAt(x, y)
			if c.A == 0 {
				continue
			}
			dst.SetRGBA(x, y, color.RGBA{
				R: scale(c.R, m.R, m.A),
				G: scale(c.G, m.G, m.A),
				B: scale(c.B, m.B, m.A),
				A: c.A,
			})
		}
	}
}

// scale multiplies premultiplied channel v by the straight mask channel m/a.
func scale(v, m, a uint8) uint8 {
	straight := uint32(m) * 255 / uint32(a)
	return uint8(uint32(v) * min(straight, 255) / 255)
}

// ReplaceColor paints every pixel of img with c while keeping its alpha.
func ReplaceColor(img *image.RGBA, c color.RGBA) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			a := img.RGBAAt(x, y).A
			if a == 0 {
				continue
			}
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(uint32(c.R) * uint32(a) / 255),
				G: uint8(uint32(c.G) * uint32(a) / 255),
				B: uint8(uint32(c.B) * uint32(a) / 255),
				A: a,
			})
		}
	}
}

// Grayscale returns a desaturated copy of img using Rec. 709 luma weights.
func Grayscale(img image.Image) *image.RGBA {
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	for i := 0; i < len(out.Pix); i += 4 {
		l := 0.213*float64(out.Pix[i]) + 0.715*float64(out.Pix[i+1]) + 0.072*float64(out.Pix[i+2])
		y := uint8(min(l+0.5, float64(out.Pix[i+3])))
		out.Pix[i], out.Pix[i+1], out.Pix[i+2] = y, y, y
	}
	return out
}

// Over draws src onto dst with source-over compositing.
func Over(dst *image.RGBA, src image.Image) {
	draw.Draw(dst, dst.Bounds(), src, src.Bounds().Min, draw.Over)
}

// Fill paints dst with an opaque color.
func Fill(dst *image.RGBA, c color.RGBA) {
	draw.Draw(dst, dst.Bounds(), &image.Uniform{C: c}, image.Point{}, draw.Src)
}
