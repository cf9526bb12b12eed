package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const statsSchema = `
CREATE TABLE IF NOT EXISTS stats_render (
    identifier    TEXT PRIMARY KEY,
    template      TEXT NOT NULL,
    total_hits    INTEGER NOT NULL DEFAULT 1,
    total_errors  INTEGER NOT NULL DEFAULT 0,
    first_seen    DATETIME NOT NULL,
    last_seen     DATETIME NOT NULL
);
`

// RenderStat is the per-identifier render record.
type RenderStat struct {
	Identifier  string    `json:"identifier"`
	Template    string    `json:"template"`
	TotalHits   int       `json:"total_hits"`
	TotalErrors int       `json:"total_errors"`
	FirstSeen   time.Time `json:"first_seen"`
	LastSeen    time.Time `json:"last_seen"`
}

// GlobalStatsSummary provides a high-level overview of all collected stats.
type GlobalStatsSummary struct {
	TotalRenders      int64 `json:"total_renders"`
	TotalErrors       int64 `json:"total_errors"`
	UniqueIdentifiers int64 `json:"unique_identifiers"`
}

// StatsAPI records page renders and serves the collected statistics.
type StatsAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupStatsSchema(db *sql.DB) error {
	_, err := db.Exec(statsSchema)
	return err
}

func NewStatsAPI(db *sql.DB, logger *slog.Logger) *StatsAPI {
	return &StatsAPI{db: db, logger: logger}
}

func (s *StatsAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/stats/summary", requireScope(scopeStatsRead, s.handleSummary))
	mux.HandleFunc("GET /api/stats/top", requireScope(scopeStatsRead, s.handleTop))
	mux.HandleFunc("DELETE /api/stats", requireScope(scopeServerControl, s.handleReset))
}

// Record counts one render of identifier through template. failed marks a
// render that ended in an error.
func (s *StatsAPI) Record(ctx context.Context, identifier, template string, failed bool) error {
	now := time.Now().UTC()
	errInc := 0
	if failed {
		errInc = 1
	}
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO stats_render (identifier, template, total_errors, first_seen, last_seen) VALUES (?, ?, ?, ?, ?)
        ON CONFLICT(identifier) DO UPDATE SET
            template = excluded.template,
            total_hits = total_hits + 1,
            total_errors = total_errors + excluded.total_errors,
            last_seen = excluded.last_seen
    `, identifier, template, errInc, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert stats_render: %w", err)
	}
	return nil
}

// Top returns the most rendered identifiers, at most limit of them.
func (s *StatsAPI) Top(ctx context.Context, limit int) ([]RenderStat, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT identifier, template, total_hits, total_errors, first_seen, last_seen
        FROM stats_render ORDER BY total_hits DESC, identifier LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query render stats: %w", err)
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	results := []RenderStat{}
	for rows.Next() {
		var st RenderStat
		if err = rows.Scan(&st.Identifier, &st.Template, &st.TotalHits, &st.TotalErrors, &st.FirstSeen, &st.LastSeen); err != nil {
			return nil, fmt.Errorf("failed to scan render stats: %w", err)
		}
		results = append(results, st)
	}
	return results, rows.Err()
}

func (s *StatsAPI) handleSummary(w http.ResponseWriter, r *http.Request) {
	var summary GlobalStatsSummary
	err := s.db.QueryRowContext(r.Context(),
		"SELECT COALESCE(SUM(total_hits), 0), COALESCE(SUM(total_errors), 0), COUNT(*) FROM stats_render").
		Scan(&summary.TotalRenders, &summary.TotalErrors, &summary.UniqueIdentifiers)
	if err != nil {
		s.logger.Error("Failed to query stats summary", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

func (s *StatsAPI) handleTop(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 1000 {
		limit = 100
	}
	results, err := s.Top(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to query top identifiers", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	respondWithJSON(w, http.StatusOK, results)
}

func (s *StatsAPI) handleReset(w http.ResponseWriter, r *http.Request) {
	if _, err := s.db.ExecContext(r.Context(), "DELETE FROM stats_render"); err != nil {
		s.logger.Error("Failed to reset stats", "error", err)
		respondWithError(w, http.StatusInternalServerError, fmt.Sprintf("Database error: %v", err))
		return
	}
	s.logger.Info("Render statistics reset via API")
	w.WriteHeader(http.StatusNoContent)
}
