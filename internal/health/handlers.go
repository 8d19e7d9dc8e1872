// Package health serves the liveness and readiness probes.
package health

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/invoice-manager/internal/common"
)

var draining atomic.Bool

// SetReady(false) is called when shutdown starts so load balancers stop
// routing new requests while in-flight ones finish.
func SetReady(v bool) { draining.Store(!v) }

// Probe checks one dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

func (p Probe) run(ctx context.Context) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}

type pinger interface {
	Ping(ctx context.Context) error
}

// Postgres probes the pool. A nil pool always fails: the API cannot serve
// invoices without its database.
func Postgres(db pinger, timeout time.Duration) Probe {
	return Probe{Name: "db", Timeout: timeout, Check: func(ctx context.Context) error {
		if db == nil {
			return errors.New("db not configured")
		}
		return db.Ping(ctx)
	}}
}

// Redis probes the shared client used for rate limits, idempotency and
// numbering locks.
func Redis(client *redis.Client, timeout time.Duration) Probe {
	return Probe{Name: "redis", Timeout: timeout, Check: func(ctx context.Context) error {
		if client == nil {
			return errors.New("redis not configured")
		}
		return client.Ping(ctx).Err()
	}}
}

// Handler serves /health/live and /health/ready.
type Handler struct {
	Probes []Probe
}

func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// Ready answers 200 only when every probe passes. The body maps probe names
// to "ok" or the failure message.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if draining.Load() {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "shutting_down"})
		return
	}
	if len(h.Probes) == 0 {
		common.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "no probes configured"})
		return
	}
	code := http.StatusOK
	report := make(map[string]string, len(h.Probes))
	for _, p := range h.Probes {
		if err := p.run(r.Context()); err != nil {
			report[p.Name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		report[p.Name] = "ok"
	}
	common.JSON(w, code, report)
}
