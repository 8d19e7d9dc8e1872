package obs

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/invoice-manager/internal/common"
)

// StatusRecorder remembers the status code and body size a handler produced.
type StatusRecorder struct {
	http.ResponseWriter
	status int
	size   int64
	wrote  bool
}

// NewStatusRecorder wraps w. Handlers that never call WriteHeader report 200.
func NewStatusRecorder(w http.ResponseWriter) *StatusRecorder {
	return &StatusRecorder{ResponseWriter: w, status: http.StatusOK}
}

func (rec *StatusRecorder) WriteHeader(code int) {
	if !rec.wrote {
		rec.status = code
		rec.wrote = true
	}
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *StatusRecorder) Write(p []byte) (int, error) {
	rec.wrote = true
	n, err := rec.ResponseWriter.Write(p)
	rec.size += int64(n)
	return n, err
}

func (rec *StatusRecorder) Status() int { return rec.status }

func (rec *StatusRecorder) BytesWritten() int64 { return rec.size }

func (rec *StatusRecorder) Flush() {
	if f, ok := rec.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the real writer.
func (rec *StatusRecorder) Unwrap() http.ResponseWriter { return rec.ResponseWriter }

// HTTPObs feeds HTTPMetrics. Requests are labelled by route pattern so
// /api/v1/invoices/17 and /api/v1/invoices/18 share a series.
type HTTPObs struct {
	Metrics *HTTPMetrics
}

func (o HTTPObs) Middleware(next http.Handler) http.Handler {
	if o.Metrics == nil {
		return next
	}
	m := o.Metrics
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		rec := NewStatusRecorder(w)
		began := time.Now()
		next.ServeHTTP(rec, r)

		route := routeOf(r, "unknown")
		m.ReqTotal.WithLabelValues(r.Method, route, strconv.Itoa(rec.Status())).Inc()
		m.ReqDur.WithLabelValues(r.Method, route).Observe(DurationMillis(time.Since(began)))
	})
}

// RoutePatternMiddleware copies chi's matched pattern into the context for
// handlers mounted below a sub-router.
func RoutePatternMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rc := chi.RouteContext(r.Context()); rc != nil {
			if pattern := rc.RoutePattern(); pattern != "" {
				r = r.WithContext(WithRoutePattern(r.Context(), pattern))
			}
		}
		next.ServeHTTP(w, r)
	})
}

// untracedPaths are scraped or probed too often to be worth a span each.
var untracedPaths = []string{"/metrics", "/health/", "/debug/pprof"}

// TracingMiddleware opens a server span per request through otelhttp. Once
// the router has run, the span is renamed after the route and tagged with
// the caller that authenticated.
func TracingMiddleware(next http.Handler) http.Handler {
	annotate := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(common.WithActorSlot(r.Context()))
		next.ServeHTTP(w, r)

		span := trace.SpanFromContext(r.Context())
		if !span.IsRecording() {
			return
		}
		route := routeOf(r, r.URL.Path)
		span.SetName(r.Method + " " + route)
		span.SetAttributes(attribute.String("http.route", route))
		if actor, ok := common.ActorFrom(r.Context()); ok && actor.ID != "" {
			span.SetAttributes(
				attribute.String("invoice.actor.kind", actor.Kind),
				attribute.String("invoice.actor.id", actor.ID),
			)
		}
		if id := chi.URLParam(r, "id"); id != "" {
			span.SetAttributes(attribute.String("invoice.resource.id", id))
		}
	})
	return otelhttp.NewHandler(annotate, "http.request",
		otelhttp.WithFilter(func(r *http.Request) bool {
			for _, p := range untracedPaths {
				if strings.HasPrefix(r.URL.Path, p) {
					return false
				}
			}
			return true
		}),
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
