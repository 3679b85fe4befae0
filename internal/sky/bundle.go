package sky

import (
	"image"
	"time"

	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/effect"
	"github.com/brettg0396/skyface-go/internal/lightning"
	"github.com/brettg0396/skyface-go/internal/render"
	"github.com/brettg0396/skyface-go/internal/solar"
	"github.com/brettg0396/skyface-go/internal/weather"
)

// Bundle is the render state published by the engine. A published bundle is
// never modified; the sprites it points at guard their own state.
type Bundle struct {
	Zone           *time.Location
	Phases         solar.Phases
	Heights        solar.Heights
	Offset         int
	Classification weather.Classification

	Snapshot *domain.WeatherSnapshot
	Forecast *domain.Forecast
	Location *domain.Location

	Background *image.RGBA
	Gray       *image.RGBA
	Sprites    []*effect.Sprite

	BuiltAt time.Time
}

// bolt returns the bundle's lightning sprite, if any.
func (b *Bundle) bolt() *effect.Sprite {
	for _, s := range b.Sprites {
		if s.Kind() == domain.EffectLightning {
			return s
		}
	}
	return nil
}

// ordered returns the sprites in draw order, with the lightning layer moved
// to the strike's stack position while a strike is running.
func (b *Bundle) ordered(strike lightning.Strike) []*effect.Sprite {
	out := make([]*effect.Sprite, 0, len(b.Sprites))
	var bolt *effect.Sprite
	for _, s := range b.Sprites {
		if strike.Active() && lightning.Bolt(s) == strike.Bolt {
			bolt = s
			continue
		}
		out = append(out, s)
	}
	if bolt == nil {
		return out
	}

	z := max(0, min(strike.Z, len(out)))
	out = append(out, nil)
	copy(out[z+1:], out[z:])
	out[z] = bolt
	return out
}

func layers(sprites []*effect.Sprite) []render.Layer {
	out := make([]render.Layer, len(sprites))
	for i, s := range sprites {
		out[i] = s
	}
	return out
}
