package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type routeKey struct{}

// WithRoutePattern records the chi pattern that served the request, such as
// /api/v1/invoices/{id}/payments.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routeKey{}, pattern)
}

// RoutePatternFromContext returns the recorded pattern or "".
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	pattern, _ := ctx.Value(routeKey{}).(string)
	return pattern
}

// routeOf is only meaningful after next.ServeHTTP returned: chi fills in the
// pattern while routing.
func routeOf(r *http.Request, fallback string) string {
	if pattern := RoutePatternFromContext(r.Context()); pattern != "" {
		return pattern
	}
	rc := chi.RouteContext(r.Context())
	if rc == nil || rc.RoutePattern() == "" {
		return fallback
	}
	return rc.RoutePattern()
}
