package main

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"
)

const authSchema = `
CREATE TABLE IF NOT EXISTS api_keys (
    id            INTEGER   PRIMARY KEY,
    key_hash      TEXT      NOT NULL UNIQUE,
    scopes        TEXT      NOT NULL,
    description   TEXT      NOT NULL,
    created_at    DATETIME  NOT NULL
);
`

// authHeader carries the raw API key.
const authHeader = "nep-auth"

// Scopes understood by the API. "*" grants everything.
const (
	scopeMaster        = "*"
	scopeAuthManage    = "auth:manage"
	scopeSettingsRead  = "settings:read"
	scopeSettingsWrite = "settings:write"
	scopeViewsRead     = "views:read"
	scopeViewsWrite    = "views:write"
	scopeStatsRead     = "stats:read"
	scopeServerConfig  = "server:config"
	scopeServerControl = "server:control"
)

type contextKey string

const contextKeyPermissions = contextKey("permissions")

// Permissions holds the authentication info for a request.
type Permissions struct {
	ScopeSet map[string]struct{}
}

func newPermissions(scopes []string) *Permissions {
	set := make(map[string]struct{}, len(scopes))
	for _, s := range scopes {
		if s != "" {
			set[s] = struct{}{}
		}
	}
	return &Permissions{ScopeSet: set}
}

// Has reports whether scope is granted, directly or through the master scope.
func (p *Permissions) Has(scope string) bool {
	if _, ok := p.ScopeSet[scopeMaster]; ok {
		return true
	}
	_, ok := p.ScopeSet[scope]
	return ok
}

// AuthAPI holds the dependencies for the authentication API handlers.
type AuthAPI struct {
	db     *sql.DB
	logger *slog.Logger
}

func setupAuthSchema(db *sql.DB) error {
	_, err := db.Exec(authSchema)
	return err
}

func NewAuthAPI(db *sql.DB, logger *slog.Logger) *AuthAPI {
	return &AuthAPI{db: db, logger: logger}
}

// RegisterRoutes sets up the routing for all /api/auth endpoints.
func (a *AuthAPI) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/auth/me", a.handleCheckMe)
	mux.HandleFunc("GET /api/auth/keys", requireScope(scopeAuthManage, a.listKeys))
	mux.HandleFunc("POST /api/auth/keys", a.createKey)
	mux.HandleFunc("DELETE /api/auth/keys/{id}", requireScope(scopeAuthManage, a.deleteKey))
}

// APIKeyInfo is the structure returned when listing keys.
type APIKeyInfo struct {
	ID          int       `json:"id"`
	Scopes      []string  `json:"scopes"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}

// CreateKeyRequest is the expected JSON body for creating a new key.
type CreateKeyRequest struct {
	Scopes      []string `json:"scopes"`
	Description string   `json:"description"`
}

// CreateKeyResponse is the JSON response after creating a key.
type CreateKeyResponse struct {
	ID     int      `json:"id"`
	RawKey string   `json:"raw_key"`
	Scopes []string `json:"scopes"`
}

// Authenticate checks for a valid key in the auth header. While no key
// exists the API is open with master permissions, so the first key can be
// created.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyCount, err := a.countKeys(r.Context())
		if err != nil {
			a.logger.Error("Authenticate failed to count keys", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		if keyCount == 0 {
			ctx := context.WithValue(r.Context(), contextKeyPermissions, newPermissions([]string{scopeMaster}))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		apiKey := r.Header.Get(authHeader)
		if apiKey == "" {
			respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
			return
		}

		var scopesStr string
		err = a.db.QueryRowContext(r.Context(), "SELECT scopes FROM api_keys WHERE key_hash = ?", hashAPIKey(apiKey)).Scan(&scopesStr)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				respondWithError(w, http.StatusUnauthorized, http.StatusText(http.StatusUnauthorized))
				return
			}
			a.logger.Error("Authenticate failed to query API key", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		ctx := context.WithValue(r.Context(), contextKeyPermissions, newPermissions(strings.Fields(scopesStr)))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *AuthAPI) countKeys(ctx context.Context) (int, error) {
	var n int
	err := a.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM api_keys").Scan(&n)
	return n, err
}

func (a *AuthAPI) handleCheckMe(w http.ResponseWriter, r *http.Request) {
	perms, ok := r.Context().Value(contextKeyPermissions).(*Permissions)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "Invalid or missing token")
		return
	}
	scopes := make([]string, 0, len(perms.ScopeSet))
	for s := range perms.ScopeSet {
		scopes = append(scopes, s)
	}
	sort.Strings(scopes)
	respondWithJSON(w, http.StatusOK, map[string]any{"scopes": scopes})
}

func (a *AuthAPI) listKeys(w http.ResponseWriter, r *http.Request) {
	rows, err := a.db.QueryContext(r.Context(), `SELECT id, description, scopes, created_at FROM api_keys ORDER BY id`)
	if err != nil {
		a.logger.Error("Failed to query API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	defer func(rows *sql.Rows) {
		_ = rows.Close()
	}(rows)

	keys := []APIKeyInfo{}
	for rows.Next() {
		var key APIKeyInfo
		var scopesStr string
		if err = rows.Scan(&key.ID, &key.Description, &scopesStr, &key.CreatedAt); err != nil {
			a.logger.Error("Failed to scan API key row", "error", err)
			respondWithError(w, http.StatusInternalServerError, "Failed to process database results")
			return
		}
		key.Scopes = strings.Fields(scopesStr)
		keys = append(keys, key)
	}
	respondWithJSON(w, http.StatusOK, keys)
}

// createKey issues a new key. Anyone may create the first key, which is
// always a master key; after that auth:manage is required.
func (a *AuthAPI) createKey(w http.ResponseWriter, r *http.Request) {
	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid JSON request body")
		return
	}

	keyCount, err := a.countKeys(r.Context())
	if err != nil {
		a.logger.Error("Failed to count API keys", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Database query failed")
		return
	}
	if keyCount > 0 && !hasScope(r, scopeAuthManage) {
		respondWithError(w, http.StatusForbidden, fmt.Sprintf("Forbidden: requires '%s' scope", scopeAuthManage))
		return
	}

	scopes := req.Scopes
	if keyCount == 0 {
		// Never let the operator lock themselves out.
		scopes = []string{scopeMaster}
	}
	if len(scopes) == 0 {
		respondWithError(w, http.StatusBadRequest, "At least one scope is required")
		return
	}

	rawKey, err := generateAPIKey()
	if err != nil {
		a.logger.Error("Failed to generate new API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Key generation failed")
		return
	}

	var newID int
	err = a.db.QueryRowContext(r.Context(),
		`INSERT INTO api_keys (key_hash, description, scopes, created_at) VALUES (?, ?, ?, ?) RETURNING id`,
		hashAPIKey(rawKey), req.Description, strings.Join(scopes, " "), time.Now().UTC()).Scan(&newID)
	if err != nil {
		a.logger.Error("Failed to insert new API key", "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to save new key")
		return
	}

	a.logger.Info("API key created", "id", newID, "scopes", scopes)
	respondWithJSON(w, http.StatusCreated, CreateKeyResponse{ID: newID, RawKey: rawKey, Scopes: scopes})
}

func (a *AuthAPI) deleteKey(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid key ID format in URL")
		return
	}
	if id == 1 {
		respondWithError(w, http.StatusBadRequest, "Cannot delete the primary master key (ID 1)")
		return
	}

	res, err := a.db.ExecContext(r.Context(), "DELETE FROM api_keys WHERE id = ?", id)
	if err != nil {
		a.logger.Error("Failed to delete API key", "id", id, "error", err)
		respondWithError(w, http.StatusInternalServerError, "Failed to delete key")
		return
	}
	if rowsAffected, _ := res.RowsAffected(); rowsAffected == 0 {
		respondWithError(w, http.StatusNotFound, "Key not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// hasScope checks if the permission set in the request context includes a required scope.
func hasScope(r *http.Request, requiredScope string) bool {
	perms, ok := r.Context().Value(contextKeyPermissions).(*Permissions)
	return ok && perms.Has(requiredScope)
}

// requireScope rejects requests lacking scope before calling next.
func requireScope(scope string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !hasScope(r, scope) {
			respondWithError(w, http.StatusForbidden, fmt.Sprintf("Forbidden: requires '%s' scope", scope))
			return
		}
		next(w, r)
	}
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return "nep_" + hex.EncodeToString(buf), nil
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		if err := json.NewEncoder(w).Encode(payload); err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
