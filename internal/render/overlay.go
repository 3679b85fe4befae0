package render

import (
	"image"
	"image/color"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ClockFormat is the layout used by DrawClock (12-hour without leading zero).
const ClockFormat = "3:04"

// DrawClock writes the time centered near the top of img with a drop shadow.
func DrawClock(img *image.RGBA, t time.Time) {
	DrawTextCentered(img, t.Format(ClockFormat), 2, ColorClock)
}

// DrawTextCentered draws text horizontally centered with its top at y.
func DrawTextCentered(img *image.RGBA, text string, y int, c color.RGBA) {
	face := basicfont.Face7x13
	d := font.Drawer{Dst: img, Face: face}
	width := d.MeasureString(text).Ceil()
	x := (img.Bounds().Dx() - width) / 2
	baseline := y + face.Metrics().Ascent.Ceil()

	drawString(img, text, x+1, baseline+1, ColorClockShadow)
	drawString(img, text, x, baseline, c)
}

func drawString(img *image.RGBA, text string, x, y int, c color.RGBA) {
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(img.Bounds().Min.X+x, img.Bounds().Min.Y+y),
	}
	d.DrawString(text)
}
