// Package app assembles the services shared by the API server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/invoice-manager/internal/apikey"
	"github.com/noah-isme/invoice-manager/internal/audit"
	"github.com/noah-isme/invoice-manager/internal/auth"
	"github.com/noah-isme/invoice-manager/internal/config"
	"github.com/noah-isme/invoice-manager/internal/customer"
	"github.com/noah-isme/invoice-manager/internal/events"
	"github.com/noah-isme/invoice-manager/internal/importer"
	"github.com/noah-isme/invoice-manager/internal/invoice"
	"github.com/noah-isme/invoice-manager/internal/lock"
	"github.com/noah-isme/invoice-manager/internal/notify"
	"github.com/noah-isme/invoice-manager/internal/numbering"
	"github.com/noah-isme/invoice-manager/internal/obs"
	"github.com/noah-isme/invoice-manager/internal/product"
	"github.com/noah-isme/invoice-manager/internal/resilience"
	"github.com/noah-isme/invoice-manager/internal/settings"
	"github.com/noah-isme/invoice-manager/internal/store"
)

const settingsCacheTTL = 30 * time.Second

// Options tune Open for the calling binary.
type Options struct {
	ApplicationName string
	// RequireRedis fails Open when REDIS_URL is unset or unreachable.
	RequireRedis   bool
	RedisMetrics   bool
	ConnectTimeout time.Duration
}

// Dependencies holds the connections and services of one process.
type Dependencies struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Queries *store.Queries

	Settings   *settings.Service
	Customers  *customer.Service
	Products   *product.Service
	Invoices   *invoice.Service
	APIKeys    *apikey.Service
	Auth       *auth.Service
	Audit      *audit.Service
	Importer   *importer.Importer
	Dispatcher *notify.Dispatcher
	Bus        *events.Bus
}

// Open connects to Postgres (and Redis when configured) and builds the
// services on top.
func Open(ctx context.Context, cfg *config.Config, logger zerolog.Logger, opts Options) (*Dependencies, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}
	poolConfig.ConnConfig.Tracer = obs.PGXTracer{}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	if opts.ApplicationName != "" {
		poolConfig.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL, opts.RedisMetrics, logger)
		if err != nil && opts.RequireRedis {
			pool.Close()
			return nil, err
		}
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, continuing without locks and caches")
			rdb = nil
		}
	} else if opts.RequireRedis {
		pool.Close()
		return nil, errors.New("REDIS_URL is required")
	}

	deps, err := Build(cfg, logger, pool, store.New(pool), rdb)
	if err != nil {
		pool.Close()
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, err
	}
	return deps, nil
}

func openRedis(ctx context.Context, url string, metrics bool, logger zerolog.Logger) (*redis.Client, error) {
	redisOpts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metrics {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Build wires services over existing connections. pool and rdb may be nil;
// without a pool invoice writes run without a transaction and without Redis
// numbering runs unlocked.
func Build(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool, queries *store.Queries, rdb *redis.Client) (*Dependencies, error) {
	if queries == nil {
		return nil, errors.New("app: queries are required")
	}
	d := &Dependencies{Config: cfg, Logger: logger, Pool: pool, Redis: rdb, Queries: queries}

	d.Settings = &settings.Service{
		Store:  queries,
		Cache:  settings.NewCache(rdb, settingsCacheTTL),
		Logger: logger.With().Str("component", "settings").Logger(),
	}
	d.Customers = &customer.Service{Store: queries}
	d.Products = &product.Service{Store: queries}

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target: "outbound_webhook",
		Logger: logger,
	})
	d.Dispatcher = &notify.Dispatcher{
		Settings: d.Settings,
		HTTP: &resilience.HTTPClient{
			Client:      notify.NewHTTPClient(cfg.Webhook.Timeout, cfg.Webhook.AllowInsecureTLS),
			Breaker:     breaker,
			Timeout:     cfg.Webhook.Timeout,
			MaxAttempts: 1,
		},
		Timeout: cfg.Webhook.Timeout,
		Logger:  logger.With().Str("component", "webhook").Logger(),
	}
	d.Bus = &events.Bus{Store: queries, Notifiers: []events.Notifier{d.Dispatcher}}

	var locker numbering.Locker
	if rdb != nil {
		locker = lock.Locker{R: rdb, Prefix: "lock:", MaxWait: cfg.Invoice.NumberLockTTL}
	}
	numbers := &numbering.Allocator{
		Store:   queries,
		Locker:  locker,
		Scheme:  cfg.Invoice.NumberScheme,
		Prefix:  cfg.Invoice.NumberPrefix,
		LockTTL: cfg.Invoice.NumberLockTTL,
		Logger:  logger.With().Str("component", "numbering").Logger(),
	}

	var tx invoice.Transactor
	if pool != nil {
		tx = invoice.PoolTx{Pool: pool, Queries: queries}
	}
	d.Invoices = &invoice.Service{
		Store:        queries,
		Tx:           tx,
		Settings:     d.Settings,
		Numbers:      numbers,
		Events:       d.Bus,
		RequireItems: cfg.Invoice.RequireItems,
		Logger:       logger.With().Str("component", "invoice").Logger(),
	}

	d.APIKeys = &apikey.Service{Store: queries, Logger: logger.With().Str("component", "apikey").Logger()}
	if cfg.JWTSecret != "" {
		authSvc, err := auth.NewService(auth.Config{
			Users:          queries,
			Secret:         cfg.JWTSecret,
			AccessTokenTTL: cfg.AccessTokenTTL,
		})
		if err != nil {
			return nil, fmt.Errorf("initialise auth service: %w", err)
		}
		d.Auth = authSvc
	}
	d.Audit = &audit.Service{Store: queries, Enabled: cfg.AuditEnabled}
	d.Importer = &importer.Importer{
		Customers: d.Customers,
		Invoices:  d.Invoices,
		Logger:    logger.With().Str("component", "importer").Logger(),
	}
	return d, nil
}

// Close waits for in-flight webhook deliveries and releases connections.
func (d *Dependencies) Close() {
	if d.Dispatcher != nil {
		d.Dispatcher.Wait()
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error().Err(err).Msg("close redis")
		}
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}
