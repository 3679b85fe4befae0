package render

import (
	"image"
	"image/color"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	green       = color.RGBA{G: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	transparent = color.RGBA{}
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	Fill(img, c)
	return img
}

type stubLayer struct {
	frame  *image.RGBA
	shader *image.RGBA
	calls  int
	frames []int
}

func (s *stubLayer) Frame(_ time.Time, lightningFrame int) *image.RGBA {
	s.calls++
	s.frames = append(s.frames, lightningFrame)
	out := image.NewRGBA(s.frame.Bounds())
	copy(out.Pix, s.frame.Pix)
	return out
}

func (s *stubLayer) ShaderCrop() *image.RGBA { return s.shader }

func TestFoldEffectsIndexZeroOnTop(t *testing.T) {
	a := &stubLayer{frame: solid(4, 4, red)}
	b := &stubLayer{frame: solid(4, 4, green)}
	c := &stubLayer{frame: solid(4, 4, blue)}

	out := FoldEffects(time.Now(), []Layer{a, b, c}, 0, 4, 4, false)

	require.NotNil(t, out)
	assert.Equal(t, red, out.RGBAAt(1, 1))
}

func TestFoldEffectsShowsLowerLayersThroughGaps(t *testing.T) {
	top := image.NewRGBA(image.Rect(0, 0, 4, 4))
	top.SetRGBA(0, 0, red)
	a := &stubLayer{frame: top}
	b := &stubLayer{frame: solid(4, 4, green)}

	out := FoldEffects(time.Now(), []Layer{a, b}, 0, 4, 4, false)

	assert.Equal(t, red, out.RGBAAt(0, 0))
	assert.Equal(t, green, out.RGBAAt(3, 3))
}

func TestFoldEffectsEmpty(t *testing.T) {
	assert.Nil(t, FoldEffects(time.Now(), nil, 0, 4, 4, true))
}

func TestFoldEffectsPassesLightningFrame(t *testing.T) {
	a := &stubLayer{frame: solid(2, 2, red)}
	b := &stubLayer{frame: solid(2, 2, green)}

	FoldEffects(time.Now(), []Layer{a, b}, 3, 2, 2, false)

	assert.Equal(t, []int{3}, a.frames)
	assert.Equal(t, []int{3}, b.frames)
}

func TestFoldEffectsAppliesShader(t *testing.T) {
	layer := &stubLayer{
		frame:  solid(2, 2, color.RGBA{R: 200, G: 200, B: 200, A: 255}),
		shader: solid(2, 2, color.RGBA{R: 255, G: 128, B: 0, A: 255}),
	}

	shaded := FoldEffects(time.Now(), []Layer{layer}, 0, 2, 2, true)
	plain := FoldEffects(time.Now(), []Layer{layer}, 0, 2, 2, false)

	assert.Equal(t, color.RGBA{R: 200, G: 100, B: 0, A: 255}, shaded.RGBAAt(0, 0))
	assert.Equal(t, color.RGBA{R: 200, G: 200, B: 200, A: 255}, plain.RGBAAt(0, 0))
}

func TestCropSky(t *testing.T) {
	sky := image.NewRGBA(image.Rect(0, 0, 2, 10))
	for y := 0; y < 10; y++ {
		sky.SetRGBA(0, y, color.RGBA{R: uint8(y), A: 255})
	}

	crop := CropSky(sky, 4, 2, 2)
	assert.Equal(t, uint8(4), crop.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(5), crop.RGBAAt(0, 1).R)

	clamped := CropSky(sky, 50, 2, 2)
	assert.Equal(t, uint8(8), clamped.RGBAAt(0, 0).R)
}

func TestBackgroundStarsShowThroughCrop(t *testing.T) {
	stars := solid(4, 4, color.RGBA{R: 9, G: 9, B: 9, A: 255})
	crop := image.NewRGBA(image.Rect(0, 0, 4, 4))
	crop.SetRGBA(1, 1, blue)

	bg := Background(stars, crop)

	assert.Equal(t, blue, bg.RGBAAt(1, 1))
	assert.Equal(t, color.RGBA{R: 9, G: 9, B: 9, A: 255}, bg.RGBAAt(2, 2))
	assert.Equal(t, image.Rect(0, 0, 4, 4), bg.Bounds())
}

func TestComposeFlatMode(t *testing.T) {
	layer := &stubLayer{frame: solid(4, 4, red)}
	scene := Scene{Background: solid(4, 4, blue), Layers: []Layer{layer}}

	out := Compose(time.Now(), Mode{Ambient: true, BurnIn: true}, scene)

	assert.Equal(t, ColorAmbientFill, out.RGBAAt(2, 2))
	assert.Zero(t, layer.calls)
}

func TestComposeInteractive(t *testing.T) {
	top := image.NewRGBA(image.Rect(0, 0, 4, 4))
	top.SetRGBA(0, 0, red)
	scene := Scene{
		Background: solid(4, 4, blue),
		Gray:       solid(4, 4, color.RGBA{R: 18, G: 18, B: 18, A: 255}),
		Layers:     []Layer{&stubLayer{frame: top}},
	}

	out := Compose(time.Now(), Mode{}, scene)

	assert.Equal(t, red, out.RGBAAt(0, 0))
	assert.Equal(t, blue, out.RGBAAt(3, 3))
}

func TestComposeAmbientUsesGrayBackground(t *testing.T) {
	gray := color.RGBA{R: 18, G: 18, B: 18, A: 255}
	scene := Scene{Background: solid(4, 4, blue), Gray: solid(4, 4, gray)}

	out := Compose(time.Now(), Mode{Ambient: true}, scene)

	assert.Equal(t, gray, out.RGBAAt(2, 2))
}

func TestComposeFlash(t *testing.T) {
	top := image.NewRGBA(image.Rect(0, 0, 4, 4))
	top.SetRGBA(0, 0, red)
	scene := Scene{
		Background: solid(4, 4, blue),
		Layers:     []Layer{&stubLayer{frame: top}},
		Flash:      true,
	}

	out := Compose(time.Now(), Mode{}, scene)
	assert.Equal(t, ColorFlash, out.RGBAAt(3, 3))
	assert.Equal(t, ColorSilhouette, out.RGBAAt(0, 0))

}

func TestComposeAmbientFlashKeepsBlackSilhouettes(t *testing.T) {
	gray := color.RGBA{R: 18, G: 18, B: 18, A: 255}
	top := image.NewRGBA(image.Rect(0, 0, 4, 4))
	top.SetRGBA(0, 0, red)
	scene := Scene{
		Background: solid(4, 4, blue),
		Gray:       solid(4, 4, gray),
		Layers:     []Layer{&stubLayer{frame: top}},
		Flash:      true,
	}

	out := Compose(time.Now(), Mode{Ambient: true}, scene)

	assert.Equal(t, ColorSilhouette, out.RGBAAt(0, 0))
	assert.Equal(t, ColorFlash, out.RGBAAt(3, 3))
}

func TestComposeFlatIgnoresFlash(t *testing.T) {
	scene := Scene{Background: solid(4, 4, blue), Flash: true}

	out := Compose(time.Now(), Mode{Ambient: true, BurnIn: true}, scene)

	assert.Equal(t, ColorAmbientFill, out.RGBAAt(1, 1))
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "interactive", Mode{}.String())
	assert.Equal(t, "ambient", Mode{Ambient: true}.String())
	assert.Equal(t, "flat", Mode{Ambient: true, LowBit: true}.String())
	assert.False(t, Mode{LowBit: true}.Flat())
}
