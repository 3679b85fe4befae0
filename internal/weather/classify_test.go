package weather

import (
	"testing"
	"time"

	"github.com/brettg0396/skyface-go/internal/assets"
	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func layersNamed(c Classification) []string {
	names := make([]string, len(c.Effects))
	for i, e := range c.Effects {
		names[i] = e.Name
	}
	return names
}

func TestSeasonOf(t *testing.T) {
	tests := []struct {
		month time.Month
		want  Season
	}{
		{time.December, Winter}, {time.January, Winter}, {time.February, Winter},
		{time.March, Spring}, {time.May, Spring},
		{time.June, Summer}, {time.August, Summer},
		{time.September, Fall}, {time.November, Fall},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SeasonOf(tt.month), tt.month.String())
	}
}

func TestClassifyLightRainInJune(t *testing.T) {
	c := NewClassifier(10, 2)

	got := c.Classify(500, time.June, 4)

	assert.Equal(t, assets.KeySkyOvercast, got.Base)
	assert.Equal(t, assets.KeyShaderOvercast, got.Recolor)

	var rain []Descriptor
	for _, e := range got.Effects {
		if e.Axis == domain.AxisNegY {
			rain = append(rain, e)
		}
	}
	require.Len(t, rain, 1)
	assert.Equal(t, "rain", rain[0].Name)
	assert.Equal(t, 20.0, rain[0].Speed)
	assert.Equal(t, []string{"rain", "clouds-near", "clouds-mid", "clouds-far"}, layersNamed(got))
}

func TestClassifyIsDeterministic(t *testing.T) {
	c := NewClassifier(10, 2)
	first := c.Classify(500, time.June, 4)

	c.Classify(211, time.January, 12)
	c.Classify(602, time.March, 1)

	assert.Equal(t, first, c.Classify(500, time.June, 4))
}

func TestClassifyBaseImages(t *testing.T) {
	c := NewClassifier(0, 0)
	tests := []struct {
		code int
		want string
	}{
		{200, assets.KeySkyStormy},
		{232, assets.KeySkyStormy},
		{502, assets.KeySkyStormy},
		{511, assets.KeySkyStormy},
		{602, assets.KeySkyStormy},
		{611, assets.KeySkyStormy},
		{804, assets.KeySkyStormy},
		{300, assets.KeySkyOvercast},
		{501, assets.KeySkyOvercast},
		{531, assets.KeySkyOvercast},
		{601, assets.KeySkyOvercast},
		{622, assets.KeySkyOvercast},
		{741, assets.KeySkyOvercast},
		{803, assets.KeySkyOvercast},
		{800, assets.KeySkySummer},
		{801, assets.KeySkySummer},
		{802, assets.KeySkySummer},
		{999, assets.KeySkySummer},
	}
	for _, tt := range tests {
		got := c.Classify(tt.code, time.July, 3)
		assert.Equal(t, tt.want, got.Base, "code %d", tt.code)
	}
}

func TestClassifySeasonFallback(t *testing.T) {
	c := NewClassifier(0, 0)
	tests := []struct {
		month   time.Month
		base    string
		recolor string
	}{
		{time.January, assets.KeySkyWinter, assets.KeyShaderWinter},
		{time.April, assets.KeySkySpring, assets.KeyShaderSpring},
		{time.July, assets.KeySkySummer, assets.KeyShaderSummer},
		{time.October, assets.KeySkyFall, assets.KeyShaderFall},
	}
	for _, tt := range tests {
		got := c.Classify(domain.ClearSkyCode, tt.month, 0)
		assert.Equal(t, tt.base, got.Base)
		assert.Equal(t, tt.recolor, got.Recolor)
		assert.Empty(t, got.Effects)
	}
}

func TestClassifyCloudLayers(t *testing.T) {
	c := NewClassifier(10, 3)

	assert.Equal(t, []string{"clouds-near"}, layersNamed(c.Classify(801, time.May, 2)))
	assert.Equal(t, []string{"clouds-near", "clouds-mid"}, layersNamed(c.Classify(802, time.May, 2)))
	assert.Equal(t, []string{"clouds-near", "clouds-mid", "clouds-far"}, layersNamed(c.Classify(803, time.May, 2)))

	got := c.Classify(804, time.May, 2)
	require.Len(t, got.Effects, 3)
	assert.InDelta(t, 6.0, got.Effects[0].Speed, 1e-9)
	assert.InDelta(t, 4.0, got.Effects[1].Speed, 1e-9)
	assert.InDelta(t, 2.0, got.Effects[2].Speed, 1e-9)
	for _, e := range got.Effects {
		assert.Equal(t, domain.AxisPosX, e.Axis)
		assert.Equal(t, assets.KeyShaderStormy, e.Recolor)
		assert.True(t, e.Visible)
	}
}

func TestClassifyPrecipitationRates(t *testing.T) {
	c := NewClassifier(8, 1)
	tests := []struct {
		code  int
		layer string
		speed float64
	}{
		{500, "rain", 16},
		{501, "rain", 24},
		{502, "rain", 32},
		{600, "snow", 2},
		{601, "snow", 4},
		{602, "snow", 8},
	}
	for _, tt := range tests {
		got := c.Classify(tt.code, time.February, 0)
		require.NotEmpty(t, got.Effects)
		assert.Equal(t, tt.layer, got.Effects[0].Name, "code %d", tt.code)
		assert.Equal(t, tt.speed, got.Effects[0].Speed, "code %d", tt.code)
		assert.Equal(t, domain.AxisNegY, got.Effects[0].Axis)
	}
}

func TestClassifySleetAddsRainAndSnow(t *testing.T) {
	c := NewClassifier(8, 1)

	got := c.Classify(613, time.February, 0)

	assert.Equal(t, []string{"rain", "snow", "clouds-near", "clouds-mid", "clouds-far"}, layersNamed(got))
	assert.Equal(t, 24.0, got.Effects[0].Speed)
	assert.Equal(t, 4.0, got.Effects[1].Speed)
}

func TestClassifyThunderstormAppendsHiddenLightning(t *testing.T) {
	c := NewClassifier(8, 1)

	got := c.Classify(201, time.August, 5)

	require.True(t, got.HasLightning())
	last := got.Effects[len(got.Effects)-1]
	assert.Equal(t, domain.EffectLightning, last.Kind)
	assert.False(t, last.Visible)
	assert.Equal(t, assets.LightningKeys(), last.Sprites)
	assert.Empty(t, last.Recolor)
	assert.Equal(t, []string{"rain", "clouds-near", "clouds-mid", "clouds-far", "lightning"}, layersNamed(got))
}

func TestClassifyDryThunderstorm(t *testing.T) {
	c := NewClassifier(8, 1)

	got := c.Classify(211, time.August, 5)

	assert.Equal(t, []string{"clouds-near", "clouds-mid", "clouds-far", "lightning"}, layersNamed(got))
}

func TestClassifyNegativeWindStopsClouds(t *testing.T) {
	c := NewClassifier(8, 1)

	got := c.Classify(803, time.August, -3)

	for _, e := range got.Effects {
		assert.Zero(t, e.Speed)
	}
}

func TestNewClassifierDefaults(t *testing.T) {
	c := NewClassifier(-1, 0)

	assert.Equal(t, DefaultVerticalRate, c.VerticalRate)
	assert.Equal(t, DefaultWindScale, c.WindScale)
}
