// Package weather classifies weather conditions into sky layers and fetches
// current conditions from OpenWeather.
package weather

import (
	"time"

	"github.com/brettg0396/skyface-go/internal/assets"
	"github.com/brettg0396/skyface-go/internal/domain"
)

// Default motion rates.
const (
	DefaultVerticalRate = 16.0 // px/s, one unit of precipitation fall
	DefaultWindScale    = 2.0  // px/s per m/s of wind
)

// Season is a meteorological season.
type Season string

const (
	Winter Season = "winter"
	Spring Season = "spring"
	Summer Season = "summer"
	Fall   Season = "fall"
)

// SeasonOf maps a month to its northern-hemisphere meteorological season.
func SeasonOf(month time.Month) Season {
	switch month {
	case time.December, time.January, time.February:
		return Winter
	case time.March, time.April, time.May:
		return Spring
	case time.June, time.July, time.August:
		return Summer
	default:
		return Fall
	}
}

// Descriptor describes one effect layer.
type Descriptor struct {
	Name    string
	Sprites []string // asset keys; one for drifting layers, four for lightning
	Kind    domain.EffectKind
	Axis    domain.Axis
	Speed   float64 // px/s
	Recolor string  // asset key of the recolor mask, empty for none
	Visible bool
}

// Classification is the sky configuration for a condition code.
type Classification struct {
	Code    int
	Base    string
	Recolor string
	// Effects are ordered top-most first.
	Effects []Descriptor
}

// HasLightning reports whether a lightning layer is present.
func (c Classification) HasLightning() bool {
	for _, e := range c.Effects {
		if e.Kind == domain.EffectLightning {
			return true
		}
	}
	return false
}

type intensity int

const (
	none intensity = iota
	light
	moderate
	heavy
)

var rainFactor = map[intensity]float64{light: 2, moderate: 3, heavy: 4}

var snowFactor = map[intensity]float64{light: 0.25, moderate: 0.5, heavy: 1}

type precipitation struct {
	rain intensity
	snow intensity
}

// precipitationByCode lists the OpenWeather codes that add falling layers.
var precipitationByCode = map[int]precipitation{
	200: {rain: light}, 201: {rain: moderate}, 202: {rain: heavy},
	230: {rain: light}, 231: {rain: light}, 232: {rain: moderate},

	300: {rain: light}, 301: {rain: light}, 302: {rain: moderate},
	310: {rain: light}, 311: {rain: light}, 312: {rain: moderate},
	313: {rain: moderate}, 314: {rain: heavy}, 321: {rain: moderate},

	500: {rain: light}, 501: {rain: moderate}, 502: {rain: heavy},
	503: {rain: heavy}, 504: {rain: heavy}, 511: {rain: moderate, snow: light},
	520: {rain: light}, 521: {rain: moderate}, 522: {rain: heavy}, 531: {rain: moderate},

	600: {snow: light}, 601: {snow: moderate}, 602: {snow: heavy},
	611: {rain: light, snow: moderate}, 612: {rain: light, snow: light}, 613: {rain: moderate, snow: moderate},
	615: {rain: light, snow: light}, 616: {rain: moderate, snow: moderate},
	620: {snow: light}, 621: {snow: moderate}, 622: {snow: heavy},
}

type codeRange struct{ lo, hi int }

func inRanges(code int, ranges []codeRange) bool {
	for _, r := range ranges {
		if code >= r.lo && code <= r.hi {
			return true
		}
	}
	return false
}

var stormyCodes = []codeRange{{200, 232}, {502, 511}, {602, 611}, {804, 804}}

var overcastCodes = []codeRange{
	{300, 321}, {500, 501}, {520, 531}, {600, 601}, {612, 622}, {701, 781}, {803, 803},
}

var seasonImages = map[Season][2]string{
	Winter: {assets.KeySkyWinter, assets.KeyShaderWinter},
	Spring: {assets.KeySkySpring, assets.KeyShaderSpring},
	Summer: {assets.KeySkySummer, assets.KeyShaderSummer},
	Fall:   {assets.KeySkyFall, assets.KeyShaderFall},
}

// cloudLayers lists the drifting cloud layers top-most first, with their
// share of the wind speed.
var cloudLayers = []struct {
	name  string
	key   string
	share float64
}{
	{"clouds-near", assets.KeyCloudsNear, 1},
	{"clouds-mid", assets.KeyCloudsMid, 2.0 / 3.0},
	{"clouds-far", assets.KeyCloudsFar, 1.0 / 3.0},
}

// Classifier maps condition codes to sky configurations.
type Classifier struct {
	VerticalRate float64 // px/s
	WindScale    float64 // px/s per m/s
}

// NewClassifier creates a classifier, substituting defaults for non-positive rates.
func NewClassifier(verticalRate, windScale float64) Classifier {
	if verticalRate <= 0 {
		verticalRate = DefaultVerticalRate
	}
	if windScale <= 0 {
		windScale = DefaultWindScale
	}
	return Classifier{VerticalRate: verticalRate, WindScale: windScale}
}

// Classify returns the base image, recolor mask and effect layers for a
// condition code observed in month with the given wind speed (m/s).
func (c Classifier) Classify(code int, month time.Month, windSpeed float64) Classification {
	out := Classification{Code: code}

	var clouds int
	switch {
	case inRanges(code, stormyCodes):
		out.Base, out.Recolor, clouds = assets.KeySkyStormy, assets.KeyShaderStormy, 3
	case inRanges(code, overcastCodes):
		out.Base, out.Recolor, clouds = assets.KeySkyOvercast, assets.KeyShaderOvercast, 3
	default:
		images := seasonImages[SeasonOf(month)]
		out.Base, out.Recolor = images[0], images[1]
		switch code {
		case 801:
			clouds = 1
		case 802:
			clouds = 2
		}
	}

	if p, ok := precipitationByCode[code]; ok {
		if p.rain != none {
			out.Effects = append(out.Effects, c.falling("rain", assets.KeyRain, rainFactor[p.rain], out.Recolor))
		}
		if p.snow != none {
			out.Effects = append(out.Effects, c.falling("snow", assets.KeySnow, snowFactor[p.snow], out.Recolor))
		}
	}

	wind := max(0, windSpeed) * c.WindScale
	for _, layer := range cloudLayers[:clouds] {
		out.Effects = append(out.Effects, Descriptor{
			Name:    layer.name,
			Sprites: []string{layer.key},
			Kind:    domain.EffectCloud,
			Axis:    domain.AxisPosX,
			Speed:   wind * layer.share,
			Recolor: out.Recolor,
			Visible: true,
		})
	}

	if code >= 200 && code < 300 {
		out.Effects = append(out.Effects, Descriptor{
			Name:    "lightning",
			Sprites: assets.LightningKeys(),
			Kind:    domain.EffectLightning,
		})
	}

	return out
}

func (c Classifier) falling(name, key string, factor float64, recolor string) Descriptor {
	return Descriptor{
		Name:    name,
		Sprites: []string{key},
		Kind:    domain.EffectCloud,
		Axis:    domain.AxisNegY,
		Speed:   c.VerticalRate * factor,
		Recolor: recolor,
		Visible: true,
	}
}
