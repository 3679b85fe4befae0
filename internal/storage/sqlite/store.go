// Package sqlite provides a SQLite implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/brettg0396/skyface-go/internal/domain"
	"github.com/brettg0396/skyface-go/internal/storage"

	_ "modernc.org/sqlite"
)

// Store is a SQLite implementation of storage.Store.
type Store struct {
	db *sql.DB
}

// NewMemoryStore creates an in-memory SQLite store.
func NewMemoryStore() (*Store, error) {
	return newStore(":memory:")
}

// NewFileStore creates a file-based SQLite store.
func NewFileStore(path string) (*Store, error) {
	return newStore(path)
}

func newStore(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Each :memory: connection is its own database.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return store, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Snapshot methods

// SaveSnapshot stores snapshot, assigning an ID if it has none.
func (s *Store) SaveSnapshot(ctx context.Context, snapshot *domain.WeatherSnapshot) error {
	if snapshot.ID == "" {
		snapshot.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO snapshots
			(id, condition_code, wind_speed, sunrise, sunset, observed_at, location_name, description, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, snapshot.ID, snapshot.ConditionCode, snapshot.WindSpeed,
		snapshot.Sunrise.UTC(), snapshot.Sunset.UTC(), snapshot.ObservedAt.UTC(),
		snapshot.LocationName, snapshot.Description, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LatestSnapshot returns the most recently observed snapshot.
func (s *Store) LatestSnapshot(ctx context.Context) (*domain.WeatherSnapshot, error) {
	var snap domain.WeatherSnapshot
	var name, desc sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, condition_code, wind_speed, sunrise, sunset, observed_at, location_name, description
		FROM snapshots ORDER BY observed_at DESC, created_at DESC LIMIT 1
	`).Scan(&snap.ID, &snap.ConditionCode, &snap.WindSpeed,
		&snap.Sunrise, &snap.Sunset, &snap.ObservedAt, &name, &desc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "snapshot", ID: "latest"}
	}
	if err != nil {
		return nil, err
	}
	snap.LocationName = name.String
	snap.Description = desc.String
	snap.Sunrise = snap.Sunrise.UTC()
	snap.Sunset = snap.Sunset.UTC()
	snap.ObservedAt = snap.ObservedAt.UTC()
	return &snap, nil
}

// DeleteSnapshotsBefore removes snapshots observed before the cutoff.
func (s *Store) DeleteSnapshotsBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM snapshots WHERE observed_at < ?", before.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Location methods

func (s *Store) SaveLocation(ctx context.Context, loc domain.Location) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO location (id, lat, lon, updated_at)
		VALUES (1, ?, ?, ?)
	`, loc.Lat, loc.Lon, time.Now().UTC())
	return err
}

func (s *Store) GetLocation(ctx context.Context) (*domain.Location, error) {
	var loc domain.Location
	err := s.db.QueryRowContext(ctx, "SELECT lat, lon FROM location WHERE id = 1").Scan(&loc.Lat, &loc.Lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "location", ID: "1"}
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

// Device methods

func (s *Store) SaveDevice(ctx context.Context, device *storage.Device) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO devices (id, ip, name, type, created_at, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
	`, device.ID, device.IP, device.Name, device.Type, device.CreatedAt.UTC(), device.LastSeen.UTC())
	return err
}

func (s *Store) GetDevice(ctx context.Context, id string) (*storage.Device, error) {
	var device storage.Device
	err := s.db.QueryRowContext(ctx, `
		SELECT id, ip, name, type, created_at, last_seen FROM devices WHERE id = ?
	`, id).Scan(&device.ID, &device.IP, &device.Name, &device.Type, &device.CreatedAt, &device.LastSeen)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "device", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return &device, nil
}

func (s *Store) GetDevices(ctx context.Context) ([]*storage.Device, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ip, name, type, created_at, last_seen FROM devices ORDER BY last_seen DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var devices []*storage.Device
	for rows.Next() {
		var device storage.Device
		if err := rows.Scan(&device.ID, &device.IP, &device.Name, &device.Type, &device.CreatedAt, &device.LastSeen); err != nil {
			return nil, err
		}
		devices = append(devices, &device)
	}
	return devices, rows.Err()
}

func (s *Store) DeleteDevice(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM devices WHERE id = ?", id)
	return err
}

// Frame cache methods

func (s *Store) CacheFrame(ctx context.Context, frame *storage.CachedFrame) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO frame_cache (id, frame_data, mode, generated_at)
		VALUES (1, ?, ?, ?)
	`, frame.FrameData, frame.Mode, frame.GeneratedAt.UTC())
	return err
}

func (s *Store) GetCachedFrame(ctx context.Context) (*storage.CachedFrame, error) {
	var frame storage.CachedFrame
	err := s.db.QueryRowContext(ctx, `
		SELECT frame_data, mode, generated_at FROM frame_cache WHERE id = 1
	`).Scan(&frame.FrameData, &frame.Mode, &frame.GeneratedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound{Resource: "frame_cache", ID: "1"}
	}
	if err != nil {
		return nil, err
	}
	return &frame, nil
}

// Config methods

func (s *Store) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound{Resource: "config", ID: key}
	}
	return value, err
}

func (s *Store) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO config (key, value, updated_at)
		VALUES (?, ?, ?)
	`, key, value, time.Now().UTC())
	return err
}

func (s *Store) DeleteConfig(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM config WHERE key = ?", key)
	return err
}

// Verify interface compliance
var _ storage.Store = (*Store)(nil)
