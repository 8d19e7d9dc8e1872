package resilience

import "github.com/prometheus/client_golang/prometheus"

func OpenedTotal(target string) prometheus.Counter {
	return breakerOpenedTotal.WithLabelValues(target)
}
