package settings

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/natefinch/atomic"
)

// SetupSchema creates the options table if it does not exist.
func SetupSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS options (
			name       TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);`)
	return err
}

// Store loads and saves Options in a SQLite database.
type Store struct {
	db        *sql.DB
	logger    *slog.Logger
	defaults  Options
	sanitizer Sanitizer

	mu      sync.RWMutex
	current Options
	loaded  bool
}

// NewStore returns a Store whose missing keys fall back to defaults.
func NewStore(db *sql.DB, logger *slog.Logger, defaults Options, sanitizer Sanitizer) *Store {
	if sanitizer.Logger == nil {
		sanitizer.Logger = logger
	}
	return &Store{
		db:        db,
		logger:    logger,
		defaults:  defaults,
		sanitizer: sanitizer,
	}
}

// Load reads the stored options merged over the defaults. A missing row
// yields the defaults.
func (s *Store) Load(ctx context.Context) (Options, error) {
	opts := s.defaults
	opts.TemplatePaths = append(Paths(nil), s.defaults.TemplatePaths...)

	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM options WHERE name = ?", OptionName).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.Debug("No stored options, using defaults")
	case err != nil:
		return Options{}, fmt.Errorf("failed to read options: %w", err)
	default:
		// Unmarshal over the defaults so absent keys keep their default.
		if err = json.Unmarshal([]byte(raw), &opts); err != nil {
			return Options{}, fmt.Errorf("failed to decode stored options: %w", err)
		}
	}

	s.mu.Lock()
	s.current = opts
	s.loaded = true
	s.mu.Unlock()
	return opts, nil
}

// Current returns the options last loaded or saved, loading them first if
// needed.
func (s *Store) Current(ctx context.Context) (Options, error) {
	s.mu.RLock()
	if s.loaded {
		opts := s.current
		s.mu.RUnlock()
		return opts, nil
	}
	s.mu.RUnlock()
	return s.Load(ctx)
}

// Save sanitizes opts, persists them and returns what was stored.
func (s *Store) Save(ctx context.Context, opts Options) (Options, error) {
	opts = s.sanitizer.Sanitize(opts)

	data, err := json.Marshal(opts)
	if err != nil {
		return Options{}, fmt.Errorf("failed to encode options: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO options (name, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		OptionName, string(data), time.Now().UTC())
	if err != nil {
		return Options{}, fmt.Errorf("failed to save options: %w", err)
	}

	s.mu.Lock()
	s.current = opts
	s.loaded = true
	s.mu.Unlock()
	s.logger.Info("Options saved", "template_paths", len(opts.TemplatePaths), "use_cache", opts.UseCache)
	return opts, nil
}

// Export writes the current options to path as indented JSON. The file is
// replaced atomically.
func (s *Store) Export(ctx context.Context, path string) error {
	opts, err := s.Current(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(opts, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
