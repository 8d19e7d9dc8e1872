package apikey

import (
	"net/http"
	"strings"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// Middleware guards the external JSON API with API keys.
type Middleware struct {
	Service *Service
}

// Require rejects requests whose key is missing, invalid or lacks capability.
// On success the key becomes the request actor.
func (m Middleware) Require(capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.Service == nil {
				common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "api key service not configured", nil)
				return
			}
			raw := RawKey(r)
			if raw == "" {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid API key", nil)
				return
			}
			key, err := m.Service.Authenticate(r.Context(), raw, capability)
			if err != nil {
				common.WriteError(w, err)
				return
			}
			role := string(Read)
			if key.CanWrite {
				role = string(Write)
			}
			ctx := common.WithActor(r.Context(), common.Actor{Kind: "api_key", ID: key.KeyID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RawKey extracts the key from "Authorization: Bearer" or "X-API-Key".
func RawKey(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
