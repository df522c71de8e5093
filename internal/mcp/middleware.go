package mcp

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/takeshy/gitlabuploader/internal/logging"
)

// apiKeyFrom returns the key sent as X-API-Key, a bearer token or the api_key query parameter
func apiKeyFrom(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && token != "" {
		return token
	}
	return r.URL.Query().Get("api_key")
}

// APIKeyMiddleware rejects requests that do not carry apiKey
func APIKeyMiddleware(apiKey string, log *logging.Logger, next http.Handler) http.Handler {
	if log == nil {
		log = logging.Nop()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		provided := apiKeyFrom(r)
		if subtle.ConstantTimeCompare([]byte(provided), []byte(apiKey)) != 1 {
			log.Warn().Str("remote", r.RemoteAddr).Str("path", r.URL.Path).Msg("rejected request without a valid API key")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}
