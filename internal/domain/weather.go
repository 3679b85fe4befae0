package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrMalformedSnapshot is returned when a snapshot cannot drive the sky.
var ErrMalformedSnapshot = errors.New("malformed weather snapshot")

// ClearSkyCode is the condition code assumed when no current weather is known.
const ClearSkyCode = 800

// WeatherSnapshot is one observation from a weather source.
type WeatherSnapshot struct {
	ID            string    `json:"id,omitempty"`
	ConditionCode int       `json:"conditionCode"`
	WindSpeed     float64   `json:"windSpeed"` // m/s
	Sunrise       time.Time `json:"sunrise"`
	Sunset        time.Time `json:"sunset"`
	ObservedAt    time.Time `json:"observedAt"`
	LocationName  string    `json:"locationName"`
	Description   string    `json:"description"`
}

// Validate reports ErrMalformedSnapshot for missing fields or sunrise >= sunset.
func (s *WeatherSnapshot) Validate() error {
	switch {
	case s.ConditionCode <= 0:
		return fmt.Errorf("%w: missing condition code", ErrMalformedSnapshot)
	case s.Sunrise.IsZero() || s.Sunset.IsZero():
		return fmt.Errorf("%w: missing sunrise or sunset", ErrMalformedSnapshot)
	case !s.Sunrise.Before(s.Sunset):
		return fmt.Errorf("%w: sunrise %s is not before sunset %s",
			ErrMalformedSnapshot, s.Sunrise.Format(time.RFC3339), s.Sunset.Format(time.RFC3339))
	case s.WindSpeed < 0:
		return fmt.Errorf("%w: negative wind speed %.2f", ErrMalformedSnapshot, s.WindSpeed)
	case s.ObservedAt.IsZero():
		return fmt.Errorf("%w: missing observation time", ErrMalformedSnapshot)
	}
	return nil
}

// ObservedSince reports whether the snapshot was taken at or after t.
func (s *WeatherSnapshot) ObservedSince(t time.Time) bool {
	return s != nil && !s.ObservedAt.Before(t)
}

// Forecast is a list of upcoming observations.
type Forecast struct {
	LocationName string            `json:"locationName"`
	Entries      []WeatherSnapshot `json:"entries"`
	FetchedAt    time.Time         `json:"fetchedAt"`
}

// Location is a latitude/longitude pair in degrees.
type Location struct {
	Lat float64 `json:"lat" yaml:"lat" validate:"gte=-90,lte=90"`
	Lon float64 `json:"lon" yaml:"lon" validate:"gte=-180,lte=180"`
}

// Key returns a stable cache key for the location (two decimal places).
func (l Location) Key() string {
	return fmt.Sprintf("%.2f,%.2f", l.Lat, l.Lon)
}

// String returns a human-readable representation.
func (l Location) String() string {
	return fmt.Sprintf("(%.4f, %.4f)", l.Lat, l.Lon)
}
