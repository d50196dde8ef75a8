package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
)

// publicPaths skip both API-key auth and rate limiting.
var publicPaths = map[string]bool{
	"/health":  true,
	"/version": true,
	"/metrics": true,
}

func isPublicPath(path string) bool {
	return publicPaths[path]
}

// APIKeyAuth guards the reasoning endpoints with the keys from
// auth.api_keys. The key set is fixed at startup; an empty set lets every
// request through.
//
// A key is read from, in order:
//   - Authorization: Bearer <key>
//   - X-API-Key: <key>
//   - the api_key query parameter (EventSource clients cannot set headers)
type APIKeyAuth struct {
	digests [][sha256.Size]byte
}

// NewAPIKeyAuth builds the guard. Blank and repeated keys are ignored.
func NewAPIKeyAuth(keys []string) *APIKeyAuth {
	a := &APIKeyAuth{}
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		key = strings.TrimSpace(key)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		a.digests = append(a.digests, sha256.Sum256([]byte(key)))
	}
	return a
}

// Enabled reports whether any key is configured.
func (a *APIKeyAuth) Enabled() bool {
	return len(a.digests) > 0
}

// Middleware rejects requests without a configured key with 401.
func (a *APIKeyAuth) Middleware(next http.Handler) http.Handler {
	if !a.Enabled() {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key, source := credential(r)
		switch {
		case key == "":
			log.Debug().Str("path", r.URL.Path).Msg("Request without API key")
			unauthorized(w, "missing_api_key", "send the key as Authorization: Bearer <key> or X-API-Key")
			return
		case !a.accepts(key):
			log.Warn().Str("path", r.URL.Path).Str("source", source).Msg("Rejected API key")
			unauthorized(w, "invalid_api_key", "the API key is not recognised")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accepts compares fixed-size digests so neither key content nor key
// length shows up in timing.
func (a *APIKeyAuth) accepts(key string) bool {
	got := sha256.Sum256([]byte(key))
	ok := 0
	for i := range a.digests {
		ok |= subtle.ConstantTimeCompare(got[:], a.digests[i][:])
	}
	return ok == 1
}

func credential(r *http.Request) (key, source string) {
	if h := r.Header.Get("Authorization"); len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:]), "bearer"
	}
	if k := r.Header.Get("X-API-Key"); k != "" {
		return k, "header"
	}
	if k := r.URL.Query().Get("api_key"); k != "" {
		return k, "query"
	}
	return "", ""
}

func unauthorized(w http.ResponseWriter, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="ftl-tool-think"`)
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   code,
		"message": msg,
	})
}
