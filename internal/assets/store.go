// Package assets loads the images the sky is built from.
package assets

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io/fs"
	"sync"
)

// Store loads images by key.
type Store interface {
	Load(key string) (image.Image, error)
}

// ConfigurationError is returned when a required image is missing.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e ConfigurationError) Error() string {
	if e.Reason != "" {
		return "asset " + e.Key + " unavailable: " + e.Reason
	}
	return "asset " + e.Key + " unavailable"
}

// IsConfigurationError checks if an error is a configuration error.
func IsConfigurationError(err error) bool {
	var cfgErr ConfigurationError
	return errors.As(err, &cfgErr)
}

// Require loads every key once and reports all failures together.
func Require(store Store, keys []string) error {
	var errs []error
	for _, key := range keys {
		if _, err := store.Load(key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dir loads <key>.png files from a file system.
type Dir struct {
	fsys fs.FS

	mu    sync.Mutex
	cache map[string]image.Image
}

// NewDir creates a store reading from fsys.
func NewDir(fsys fs.FS) *Dir {
	return &Dir{fsys: fsys, cache: make(map[string]image.Image)}
}

// Load decodes key's PNG, caching the result.
func (d *Dir) Load(key string) (image.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if img, ok := d.cache[key]; ok {
		return img, nil
	}

	f, err := d.fsys.Open(key + ".png")
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ConfigurationError{Key: key, Reason: "file not found"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open asset %s: %w", key, err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, ConfigurationError{Key: key, Reason: err.Error()}
	}

	d.cache[key] = img
	return img, nil
}
