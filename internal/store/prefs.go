package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/i474232898/weather-widget/internal/weather"
)

// Themes accepted by SaveTheme.
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preferences are the per-profile display settings. Forecast data is never persisted.
type Preferences struct {
	Profile   string       `json:"profile"`
	Unit      weather.Unit `json:"unit"`
	Theme     string       `json:"theme"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// PrefsStore persists Preferences in SQLite.
type PrefsStore struct {
	db *sql.DB
}

const prefsSchema = `CREATE TABLE IF NOT EXISTS preferences (
	profile    TEXT PRIMARY KEY,
	unit       TEXT NOT NULL DEFAULT 'c',
	theme      TEXT NOT NULL DEFAULT 'light',
	updated_at TEXT NOT NULL
);`

// OpenPrefs opens (or creates) the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func OpenPrefs(ctx context.Context, path string) (*PrefsStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open prefs db: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes writes.
	db.SetMaxOpenConns(1)

	if path != ":memory:" {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, prefsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply prefs schema: %w", err)
	}
	return &PrefsStore{db: db}, nil
}

// Get returns the preferences of profile or ErrNotFound.
func (p *PrefsStore) Get(ctx context.Context, profile string) (Preferences, error) {
	var (
		prefs Preferences
		unit  string
		ts    string
	)
	err := p.db.QueryRowContext(ctx,
		`SELECT profile, unit, theme, updated_at FROM preferences WHERE profile = ?`, profile,
	).Scan(&prefs.Profile, &unit, &prefs.Theme, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return Preferences{}, ErrNotFound
	}
	if err != nil {
		return Preferences{}, fmt.Errorf("get preferences: %w", err)
	}

	prefs.Unit, err = weather.ParseUnit(unit)
	if err != nil {
		prefs.Unit = weather.Celsius
	}
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		prefs.UpdatedAt = t
	}
	return prefs, nil
}

// SaveUnit stores the unit of profile, creating the record if needed.
func (p *PrefsStore) SaveUnit(ctx context.Context, profile string, unit weather.Unit) error {
	if unit != weather.Celsius && unit != weather.Fahrenheit {
		return fmt.Errorf("invalid unit %q", unit)
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO preferences(profile, unit, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET unit = excluded.unit, updated_at = excluded.updated_at`,
		profile, string(unit), now())
	if err != nil {
		return fmt.Errorf("save unit: %w", err)
	}
	return nil
}

// SaveTheme stores the theme of profile, creating the record if needed.
func (p *PrefsStore) SaveTheme(ctx context.Context, profile, theme string) error {
	if theme != ThemeLight && theme != ThemeDark {
		return fmt.Errorf("invalid theme %q", theme)
	}
	_, err := p.db.ExecContext(ctx,
		`INSERT INTO preferences(profile, theme, updated_at) VALUES(?, ?, ?)
		 ON CONFLICT(profile) DO UPDATE SET theme = excluded.theme, updated_at = excluded.updated_at`,
		profile, theme, now())
	if err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

func (p *PrefsStore) Close() error {
	return p.db.Close()
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
