package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/CTAG07/Nepenthes/pkg/settings"
)

// initDB opens the SQLite database at path, creating its directory, and
// applies the connection pragmas both drivers understand.
func initDB(path string) (*sql.DB, error) {
	file, _, _ := strings.Cut(path, "?")
	if file != "" && file != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(file), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open(sqliteDriver, path)
	if err != nil {
		return nil, err
	}
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err = db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return db, nil
}

// setupSchemas creates every table the server uses.
func setupSchemas(db *sql.DB) error {
	if err := settings.SetupSchema(db); err != nil {
		return fmt.Errorf("settings schema: %w", err)
	}
	if err := setupAuthSchema(db); err != nil {
		return fmt.Errorf("auth schema: %w", err)
	}
	if err := setupStatsSchema(db); err != nil {
		return fmt.Errorf("stats schema: %w", err)
	}
	return nil
}
