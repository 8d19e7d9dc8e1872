package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// InvoicesCreatedTotal counts persisted invoices by creation path.
	InvoicesCreatedTotal *prometheus.CounterVec
	// PaymentsRecordedTotal counts recorded payments by source.
	PaymentsRecordedTotal *prometheus.CounterVec
	// InvoiceNumberConflictsTotal counts unique violations on invoice numbers.
	InvoiceNumberConflictsTotal *prometheus.CounterVec
	// WebhookDeliveriesTotal tracks outbound webhook outcomes.
	WebhookDeliveriesTotal *prometheus.CounterVec
	// WebhookAttemptLatency records delivery attempt latency in milliseconds.
	WebhookAttemptLatency *prometheus.HistogramVec
	// CSVImportRowsTotal counts imported rows by kind and result.
	CSVImportRowsTotal *prometheus.CounterVec
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		InvoicesCreatedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_created_total",
			Help:      "Count of invoices created.",
		}, []string{"source"}))
		PaymentsRecordedTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_recorded_total",
			Help:      "Count of payments recorded against invoices.",
		}, []string{"source"}))
		InvoiceNumberConflictsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_number_conflicts_total",
			Help:      "Unique constraint violations while allocating invoice numbers.",
		}, []string{"outcome"}))
		WebhookDeliveriesTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Count of webhook delivery outcomes.",
		}, []string{"event", "result"}))
		WebhookAttemptLatency = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "webhook_attempt_duration_ms",
			Help:      "Latency for webhook delivery attempts in milliseconds.",
			Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"result"}))
		CSVImportRowsTotal = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "csv_import_rows_total",
			Help:      "Rows processed by CSV imports.",
		}, []string{"kind", "result"}))
	})
}
