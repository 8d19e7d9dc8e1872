package obs_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/obs"
)

func TestHTTPMetricsUseRoutePattern(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := obs.NewHTTPMetrics("invoice", []float64{1, 10}, registry)

	r := chi.NewRouter()
	r.Use(obs.HTTPObs{Metrics: metrics}.Middleware)
	r.Get("/api/v1/invoices/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/invoices/42", nil))
	require.Equal(t, http.StatusNoContent, rr.Code)

	total := testutil.ToFloat64(metrics.ReqTotal.WithLabelValues(http.MethodGet, "/api/v1/invoices/{id}", "204"))
	require.Equal(t, float64(1), total)
	require.NotZero(t, testutil.CollectAndCount(metrics.ReqDur))
	require.Equal(t, float64(0), testutil.ToFloat64(metrics.InFlight))
}

func TestNewHTTPMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := obs.NewHTTPMetrics("invoice", nil, registry)
	second := obs.NewHTTPMetrics("invoice", nil, registry)
	require.Same(t, first.ReqTotal, second.ReqTotal)
}

func TestRequestLoggerIncludesActor(t *testing.T) {
	var buf bytes.Buffer
	logger := obs.NewLoggerTo(&buf, "json", "info")

	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = common.WithActor(r.Context(), common.Actor{Kind: "api_key", ID: "a1b2c3d4e5f6"})
		w.WriteHeader(http.StatusCreated)
	})
	h := obs.RequestLogger{Logger: logger}.Middleware(inner)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/invoices", nil))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "http_request", entry["message"])
	require.Equal(t, float64(http.StatusCreated), entry["status"])
	require.Equal(t, "a1b2c3d4e5f6", entry["api_key_id"])
}

func TestParseBucketsCSV(t *testing.T) {
	require.Equal(t, []float64{5, 50}, obs.ParseBucketsCSV("5, x, -1, 50"))
	require.Nil(t, obs.ParseBucketsCSV(""))
}

func TestTracingNamesSpanAfterRoute(t *testing.T) {
	spans := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	r := chi.NewRouter()
	r.Use(obs.TracingMiddleware)
	r.Post("/api/v1/invoices/{id}/payments", func(w http.ResponseWriter, r *http.Request) {
		_ = common.WithActor(r.Context(), common.Actor{Kind: "api_key", ID: "k1"})
		w.WriteHeader(http.StatusCreated)
	})
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/invoices/7/payments", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))

	ended := spans.Ended()
	require.Len(t, ended, 1)
	require.Equal(t, "POST /api/v1/invoices/{id}/payments", ended[0].Name())
	attrs := map[string]string{}
	for _, kv := range ended[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	require.Equal(t, "k1", attrs["invoice.actor.id"])
	require.Equal(t, "7", attrs["invoice.resource.id"])
}

func TestStatusRecorderKeepsFirstStatus(t *testing.T) {
	rec := obs.NewStatusRecorder(httptest.NewRecorder())
	_, _ = rec.Write([]byte("partial"))
	rec.WriteHeader(http.StatusInternalServerError)
	require.Equal(t, http.StatusOK, rec.Status())
	require.Equal(t, int64(7), rec.BytesWritten())
}
