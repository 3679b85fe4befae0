// Package storage provides persistence for the last known sky state.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/brettg0396/skyface-go/internal/domain"
)

// Store is the interface for persistent storage.
type Store interface {
	// Weather snapshots
	SaveSnapshot(ctx context.Context, snapshot *domain.WeatherSnapshot) error
	LatestSnapshot(ctx context.Context) (*domain.WeatherSnapshot, error)
	DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error)

	// Device location
	SaveLocation(ctx context.Context, loc domain.Location) error
	GetLocation(ctx context.Context) (*domain.Location, error)

	// Frame cache
	CacheFrame(ctx context.Context, frame *CachedFrame) error
	GetCachedFrame(ctx context.Context) (*CachedFrame, error)

	// Configuration
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	DeleteConfig(ctx context.Context, key string) error

	// Device management
	SaveDevice(ctx context.Context, device *Device) error
	GetDevice(ctx context.Context, id string) (*Device, error)
	GetDevices(ctx context.Context) ([]*Device, error)
	DeleteDevice(ctx context.Context, id string) error

	// Lifecycle
	Close() error
}

// CachedFrame is the last rendered frame, PNG encoded.
type CachedFrame struct {
	FrameData   []byte
	Mode        string
	GeneratedAt time.Time
}

// Device is a display the face has been pushed to.
type Device struct {
	ID        string
	IP        string
	Name      string
	Type      string
	CreatedAt time.Time
	LastSeen  time.Time
}

// NewDevice creates a new device record.
func NewDevice(id, ip, name, deviceType string) *Device {
	now := time.Now()
	return &Device{
		ID:        id,
		IP:        ip,
		Name:      name,
		Type:      deviceType,
		CreatedAt: now,
		LastSeen:  now,
	}
}

// ErrNotFound is returned when a record is not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e ErrNotFound) Error() string {
	return e.Resource + " not found: " + e.ID
}

// IsNotFound checks if an error is a not found error.
func IsNotFound(err error) bool {
	var nf ErrNotFound
	return errors.As(err, &nf)
}
