package resilience

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	metricsOnce        sync.Once
	breakerState       *prometheus.GaugeVec
	breakerTransitions *prometheus.CounterVec
	breakerOpenedTotal *prometheus.CounterVec
)

func ensureMetrics() {
	metricsOnce.Do(func() {
		breakerState = registerVec(prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "outbound_breaker_state",
			Help: "Current breaker state per target: 0=closed, 1=open, 2=half-open",
		}, []string{"target"}))
		breakerTransitions = registerVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_breaker_transitions_total",
			Help: "Breaker state transitions per target",
		}, []string{"target", "from", "to"}))
		breakerOpenedTotal = registerVec(prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_breaker_opened_total",
			Help: "Times a breaker moved into the open state",
		}, []string{"target"}))
	})
}

func registerVec[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
