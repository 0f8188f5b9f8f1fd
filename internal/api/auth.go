package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/FocuswithJustin/Scribe/internal/logging"
)

// minKeyLength is the shortest API key accepted.
const minKeyLength = 16

// AuthConfig holds authentication configuration. Authentication is on
// when at least one key is configured.
type AuthConfig struct {
	Keys []string
}

// Enabled reports whether requests must carry a key.
func (a AuthConfig) Enabled() bool {
	return len(a.Keys) > 0
}

// valid compares key against every configured key in constant time.
func (a AuthConfig) valid(key string) bool {
	ok := 0
	for _, k := range a.Keys {
		ok |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return ok == 1
}

// AuthMiddleware checks the X-API-Key header when auth is enabled.
// Public endpoints (/, /health) always bypass authentication. The
// websocket endpoint also accepts an api_key query parameter, since
// browsers cannot set headers on the upgrade request.
func AuthMiddleware(authCfg AuthConfig, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !authCfg.Enabled() || isPublicEndpoint(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		apiKey := r.Header.Get("X-API-Key")
		if apiKey == "" && r.URL.Path == "/ws" {
			apiKey = r.URL.Query().Get("api_key")
		}
		if apiKey == "" {
			logging.WarnContext(r.Context(), "unauthorized_request",
				"path", r.URL.Path, "reason", "missing API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Missing X-API-Key header")
			return
		}
		if !authCfg.valid(apiKey) {
			logging.WarnContext(r.Context(), "unauthorized_request",
				"path", r.URL.Path, "reason", "invalid API key")
			respondError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isPublicEndpoint(path string) bool {
	return path == "/" || path == "/health"
}

// ValidateAuthConfig validates the authentication configuration.
func ValidateAuthConfig(cfg AuthConfig) error {
	for i, k := range cfg.Keys {
		if len(k) < minKeyLength {
			return fmt.Errorf("API key %d must be at least %d characters (got %d)", i+1, minKeyLength, len(k))
		}
	}
	return nil
}
