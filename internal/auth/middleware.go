package auth

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// Middleware authenticates admin session tokens.
type Middleware struct {
	Service *Service
}

// RequireAuth rejects requests without a valid bearer token and records the
// user as the request actor.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Service == nil {
			common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "auth service not configured", nil)
			return
		}
		token := bearerToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		claims, err := m.Service.ParseAccessToken(token)
		if err != nil {
			common.WriteError(w, err)
			return
		}
		ctx := common.WithActor(r.Context(), common.Actor{
			Kind: "user",
			ID:   strconv.FormatInt(claims.UserID, 10),
			Role: claims.Role,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireRole allows the request through only when the authenticated user
// holds one of roles. It must run after RequireAuth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := common.ActorFrom(r.Context())
			if !ok || actor.Kind != "user" {
				common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
				return
			}
			if _, ok := allowed[actor.Role]; !ok {
				common.JSONError(w, http.StatusForbidden, "FORBIDDEN", "insufficient role", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
