package overlay

import (
	"context"
	"database/sql"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"geotask/internal/task"
)

// SQLiteStore persists entries so they survive between CLI invocations.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens or creates the overlay database at dbPath.
func OpenSQLite(dbPath string) (*SQLiteStore, error) {
	if dbPath == "" {
		return nil, errors.New("overlay db path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o700); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, err
	}
	db, err := sql.Open("sqlite", sqliteDSN(dbPath))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) ensureSchema() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS overlay (
	task_id TEXT PRIMARY KEY,
	address TEXT NOT NULL DEFAULT '',
	latitude REAL DEFAULT NULL,
	longitude REAL DEFAULT NULL,
	updated_at TEXT NOT NULL
);`
	_, err := s.db.Exec(ddl)
	return err
}

func (s *SQLiteStore) Put(ctx context.Context, id string, e Entry) error {
	var lat, lon sql.NullFloat64
	if e.Coordinates != nil {
		lat = sql.NullFloat64{Float64: e.Coordinates.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: e.Coordinates.Longitude, Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO overlay (task_id, address, latitude, longitude, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(task_id) DO UPDATE SET
	address = excluded.address,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	updated_at = excluded.updated_at;`,
		id, e.Address, lat, lon, time.Now().UTC().Format(time.RFC3339))
	return err
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (Entry, bool, error) {
	var e Entry
	var lat, lon sql.NullFloat64
	err := s.db.QueryRowContext(ctx,
		`SELECT address, latitude, longitude FROM overlay WHERE task_id = ?;`, id,
	).Scan(&e.Address, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if lat.Valid && lon.Valid {
		e.Coordinates = &task.Coordinates{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	return e, true, nil
}

func sqliteDSN(path string) string {
	if strings.HasPrefix(path, "file:") {
		return path
	}
	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	u := url.URL{Scheme: "file", Path: path}
	q := u.Query()
	q.Set("mode", "rwc")
	q.Set("_pragma", "busy_timeout(5000)")
	u.RawQuery = q.Encode()
	return u.String()
}
