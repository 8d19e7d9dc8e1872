package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/apidocs"
	"github.com/noah-isme/invoice-manager/internal/apikey"
	"github.com/noah-isme/invoice-manager/internal/app"
	"github.com/noah-isme/invoice-manager/internal/audit"
	"github.com/noah-isme/invoice-manager/internal/auth"
	"github.com/noah-isme/invoice-manager/internal/common"
	"github.com/noah-isme/invoice-manager/internal/config"
	"github.com/noah-isme/invoice-manager/internal/customer"
	"github.com/noah-isme/invoice-manager/internal/health"
	"github.com/noah-isme/invoice-manager/internal/importer"
	"github.com/noah-isme/invoice-manager/internal/invoice"
	"github.com/noah-isme/invoice-manager/internal/migrations"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/payment"
	"github.com/noah-isme/invoice-manager/internal/product"
	"github.com/noah-isme/invoice-manager/internal/ratelimit"
	"github.com/noah-isme/invoice-manager/internal/security"
	"github.com/noah-isme/invoice-manager/internal/settings"
)

const importBodyFactor = 8

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	if err := cfg.RequireServer(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "invoices")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "invoice-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.DBAutoMigrate {
		if err := migrations.Up(cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	deps, err := app.Open(context.Background(), cfg, logger, app.Options{
		ApplicationName: "invoice-api",
		RequireRedis:    true,
		RedisMetrics:    metricsEnabled,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise dependencies")
	}
	defer deps.Close()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(cfg, deps, logger, tracingEnabled, metricsEnabled, metricsNamespace),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	case <-ctx.Done():
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 15000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("graceful shutdown")
		}
	}
}

func newRouter(cfg *config.Config, deps *app.Dependencies, logger zerolog.Logger, tracingEnabled, metricsEnabled bool, metricsNamespace string) http.Handler {
	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	limiter, err := ratelimit.NewRedisLimiter(deps.Redis, "ratelimit")
	if err != nil {
		logger.Error().Err(err).Msg("redis rate limiter unavailable, using memory store")
		limiter = ratelimit.NewMemoryLimiter()
	}
	limitBy := func(key func(*http.Request) string, max int) func(http.Handler) http.Handler {
		return ratelimit.Handler{
			Limiter: limiter,
			Config:  ratelimit.Config{Key: key, Window: time.Minute, Max: max},
			OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter failed open") },
		}.Middleware
	}
	// Buckets only trust what the server verified: the peer address before
	// authentication, the key or user after it.
	ipLimit := limitBy(ratelimit.KeyByIP("api"), cfg.RateLimitPerMinute)
	actorLimit := limitBy(ratelimit.KeyByActor("actor"), cfg.RateLimitPerMinute)
	loginLimit := limitBy(ratelimit.KeyByIP("login"), cfg.LoginRateLimitPerMinute)

	keys := apikey.Middleware{Service: deps.APIKeys}
	sessions := auth.Middleware{Service: deps.Auth}
	idem := common.Idem{R: deps.Redis, TTL: cfg.IdempotencyTTL}
	auditRec := audit.HTTPRecorder{
		Service: deps.Audit,
		OnError: func(err error) { logger.Error().Err(err).Msg("record audit log") },
	}

	invoiceHandler := &invoice.Handler{Service: deps.Invoices}
	customerHandler := &customer.Handler{Service: deps.Customers}
	productHandler := &product.Handler{Service: deps.Products}
	importHandler := &importer.Handler{Importer: deps.Importer}
	settingsHandler := &settings.Handler{Service: deps.Settings}
	keyHandler := &apikey.Handler{Service: deps.APIKeys}
	authHandler := &auth.Handler{Service: deps.Auth}
	auditHandler := audit.Handler{Store: deps.Queries}
	paymentWebhook := payment.Webhook{
		Invoices:  deps.Invoices,
		Replay:    payment.RedisReplayGuard{Client: deps.Redis},
		ReplayTTL: cfg.PaymentWebhookReplayTTL,
		Logger:    logger.With().Str("component", "payment_webhook").Logger(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.CORS(cfg.CORSAllowedOrigins))
	r.Use(security.Headers{
		Enable:             cfg.SecurityHeadersEnabled,
		EnableHSTS:         cfg.IsProduction(),
		HSTSMaxAge:         31536000,
		RelaxedCSPPrefixes: []string{"/api-docs"},
	}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	var db interface{ Ping(context.Context) error }
	if deps.Pool != nil {
		db = deps.Pool
	}
	healthHandler := health.Handler{Probes: []health.Probe{
		health.Postgres(db, envDurationMillis("HEALTH_READY_DB_TIMEOUT_MS", 500)),
		health.Redis(deps.Redis, envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300)),
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Get(apidocs.SpecPath, apidocs.Spec)
	r.Get("/api-docs/*", apidocs.UI())

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(ipLimit)
		v.Use(auditRec.Middleware(audit.HTTPConfig{ResourceIDParam: "id"}))

		v.Group(func(api chi.Router) {
			api.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)

			api.Group(func(read chi.Router) {
				read.Use(keys.Require(apikey.Read), actorLimit)
				read.Get("/invoices", invoiceHandler.List)
				read.Get("/invoices/{id}", invoiceHandler.Get)
				read.Get("/invoices/{id}/pdf", invoiceHandler.PDF)
				read.Get("/customers", customerHandler.List)
				read.Get("/customers/{id}", customerHandler.Get)
				read.Get("/products", productHandler.List)
				read.Get("/products/{id}", productHandler.Get)
			})

			api.Group(func(write chi.Router) {
				write.Use(keys.Require(apikey.Write), actorLimit)
				write.With(idem.Middleware).Post("/invoices", invoiceHandler.Create)
				write.Put("/invoices/{id}", invoiceHandler.Update)
				write.Delete("/invoices/{id}", invoiceHandler.Delete)
				write.With(idem.Middleware).Post("/invoices/{id}/payments", invoiceHandler.AddPayment)
				write.Delete("/invoices/{id}/payments/{paymentID}", invoiceHandler.DeletePayment)

				write.Post("/customers", customerHandler.Create)
				write.Put("/customers/{id}", customerHandler.Update)
				write.Delete("/customers/{id}", customerHandler.Delete)
				write.Post("/products", productHandler.Create)
				write.Put("/products/{id}", productHandler.Update)
				write.Delete("/products/{id}", productHandler.Delete)

				write.Post("/webhooks/payment", paymentWebhook.Handle)
			})

			api.Route("/auth", func(a chi.Router) {
				a.With(loginLimit).Post("/login", authHandler.Login)
				a.With(sessions.RequireAuth, actorLimit).Get("/me", authHandler.Me)
			})

			api.Route("/admin", func(admin chi.Router) {
				admin.Use(sessions.RequireAuth)
				admin.Use(auth.RequireRole(auth.RoleAdmin, auth.RoleAccountant), actorLimit)
				admin.Get("/settings", settingsHandler.Get)
				admin.Put("/settings", settingsHandler.Update)
				admin.Get("/api-keys", keyHandler.List)
				admin.Post("/api-keys", keyHandler.Create)
				admin.Patch("/api-keys/{id}", keyHandler.Toggle)
				admin.Get("/audit-logs", auditHandler.List)
			})
		})

		v.Route("/import", func(im chi.Router) {
			im.Use(security.BodyLimit{Max: cfg.BodyLimitBytes * importBodyFactor}.Middleware)
			im.Use(keys.Require(apikey.Write), actorLimit)
			im.Post("/customers", importHandler.Customers)
			im.Post("/invoices", importHandler.Invoices)
		})
	})

	return r
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	for _, name := range []string{"allocs", "block", "goroutine", "heap", "mutex", "threadcreate"} {
		mux.Handle("/"+name, pprof.Handler(name))
	}
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
