package sky

import (
	"time"

	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/solar"
)

// Status is a point-in-time summary of the live bundle.
type Status struct {
	Zone            string
	Location        *domain.Location
	Snapshot        *domain.WeatherSnapshot
	Phase           string
	Phases          solar.Phases
	Offset          int
	Code            int
	Base            string
	Effects         []string
	HasForecast     bool
	ForecastEntries int
	LastRefresh     time.Time
	Flashing        bool
	BuiltAt         time.Time
}

// Status summarizes the live bundle.
func (e *Engine) Status() Status {
	b := e.live.Load()
	st := Status{
		Zone:        b.Zone.String(),
		Location:    b.Location,
		Snapshot:    b.Snapshot,
		Phase:       b.Phases.Name(e.clock.Now()),
		Phases:      b.Phases,
		Offset:      b.Offset,
		Code:        b.Classification.Code,
		Base:        b.Classification.Base,
		HasForecast: b.Forecast != nil,
		LastRefresh: e.LastRefresh(),
		Flashing:    e.IsFlashActive(),
		BuiltAt:     b.BuiltAt,
	}
	for _, s := range b.Sprites {
		st.Effects = append(st.Effects, s.Name())
	}
	if b.Forecast != nil {
		st.ForecastEntries = len(b.Forecast.Entries)
	}
	return st
}
