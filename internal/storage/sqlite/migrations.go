package sqlite

// schema contains the database schema DDL.
const schema = `
-- Devices
CREATE TABLE IF NOT EXISTS devices (
    id TEXT PRIMARY KEY,
    ip TEXT NOT NULL,
    name TEXT,
    type TEXT DEFAULT 'pixoo64',
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
    last_seen DATETIME
);

-- Weather snapshots
CREATE TABLE IF NOT EXISTS snapshots (
    id TEXT PRIMARY KEY,
    condition_code INTEGER NOT NULL,
    wind_speed REAL NOT NULL DEFAULT 0,
    sunrise DATETIME NOT NULL,
    sunset DATETIME NOT NULL,
    observed_at DATETIME NOT NULL,
    location_name TEXT,
    description TEXT,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_snapshots_observed ON snapshots(observed_at);

-- Device location
CREATE TABLE IF NOT EXISTS location (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    lat REAL NOT NULL,
    lon REAL NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Configuration
CREATE TABLE IF NOT EXISTS config (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

-- Frame cache
CREATE TABLE IF NOT EXISTS frame_cache (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    frame_data BLOB NOT NULL,
    mode TEXT NOT NULL DEFAULT '',
    generated_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`
