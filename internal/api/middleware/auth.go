// Package middleware provides the authentication middleware of the indexing
// API.
package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/search-index-sync/pkg/logger"
)

// KeySet validates API keys against a set of SHA-256 hashes, so raw keys
// never appear in configuration.
type KeySet struct {
	hashes [][]byte
}

// NewKeySet creates a KeySet from hex-encoded SHA-256 hashes. Malformed
// entries are ignored.
func NewKeySet(hexHashes []string) *KeySet {
	ks := &KeySet{}
	for _, h := range hexHashes {
		b, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil || len(b) != sha256.Size {
			continue
		}
		ks.hashes = append(ks.hashes, b)
	}
	return ks
}

// Empty reports whether no key is configured.
func (ks *KeySet) Empty() bool {
	return len(ks.hashes) == 0
}

// Valid reports whether raw hashes to one of the configured keys.
func (ks *KeySet) Valid(raw string) bool {
	sum := sha256.Sum256([]byte(raw))
	ok := 0
	for _, h := range ks.hashes {
		ok |= subtle.ConstantTimeCompare(sum[:], h)
	}
	return ok == 1
}

// HashKey returns the hex-encoded SHA-256 hash of a raw key, the form the
// configuration expects.
func HashKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Auth rejects requests without a valid API key. Keys can be provided via
// Authorization: Bearer <key> or the X-API-Key header. Health and metrics
// endpoints are exempt. An empty KeySet disables authentication.
func Auth(keys *KeySet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if keys.Empty() || strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == "/metrics" {
				next.ServeHTTP(w, r)
				return
			}
			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}
			if !keys.Valid(key) {
				logger.FromContext(r.Context()).Warn("rejected api key", "path", r.URL.Path)
				writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.Header.Get("X-API-Key")
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
