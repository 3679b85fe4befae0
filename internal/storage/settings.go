package storage

import (
	"context"
	"fmt"
	"strconv"
)

// KeyBrightness is the config key holding the display brightness (0-100).
const KeyBrightness = "pixoo.brightness"

// DefaultBrightness is used until a brightness is stored.
const DefaultBrightness = 100

// ConfigStore is the key/value part of Store.
type ConfigStore interface {
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
	DeleteConfig(ctx context.Context, key string) error
}

// DeviceStore is the device part of Store.
type DeviceStore interface {
	GetDevice(ctx context.Context, id string) (*Device, error)
	DeleteDevice(ctx context.Context, id string) error
}

// Brightness returns the stored display brightness, or DefaultBrightness
// when none is set.
func Brightness(ctx context.Context, s ConfigStore) (int, error) {
	value, err := s.GetConfig(ctx, KeyBrightness)
	if IsNotFound(err) {
		return DefaultBrightness, nil
	}
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid stored brightness %q: %w", value, err)
	}
	return n, nil
}

// SetBrightness stores the display brightness.
func SetBrightness(ctx context.Context, s ConfigStore, level int) error {
	if level < 0 || level > 100 {
		return fmt.Errorf("brightness must be 0-100, got %d", level)
	}
	return s.SetConfig(ctx, KeyBrightness, strconv.Itoa(level))
}

// ResetBrightness forgets the stored brightness.
func ResetBrightness(ctx context.Context, s ConfigStore) error {
	return s.DeleteConfig(ctx, KeyBrightness)
}

// AmbientBrightness is the dimmed level used in ambient mode: a quarter of
// level, but never off unless level is.
func AmbientBrightness(level int) int {
	if level <= 0 {
		return 0
	}
	return max(1, level/4)
}

// ForgetDevice removes a remembered device and returns it.
func ForgetDevice(ctx context.Context, s DeviceStore, id string) (*Device, error) {
	device, err := s.GetDevice(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.DeleteDevice(ctx, id); err != nil {
		return nil, fmt.Errorf("failed to delete device %s: %w", id, err)
	}
	return device, nil
}
