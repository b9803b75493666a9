package sync

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the price sync pipeline.
type Metrics struct {
	Registry        *prometheus.Registry
	ProductsTotal   *prometheus.CounterVec
	BatchesTotal    *prometheus.CounterVec
	APIErrorsTotal  *prometheus.CounterVec
	RetriesTotal    prometheus.Counter
	RequestDuration prometheus.Histogram
	ExecutionsTotal *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	products := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_products_total",
			Help: "Products processed per execution by result.",
		},
		[]string{"result"},
	)
	batches := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_batches_total",
			Help: "Product batches dispatched to the pricing API by result.",
		},
		[]string{"result"},
	)
	apiErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_api_errors_total",
			Help: "Pricing API errors by type.",
		},
		[]string{"error_type"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricesync_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pricesync_request_duration_seconds",
			Help:    "Pricing API request latency per batch.",
			Buckets: prometheus.DefBuckets,
		},
	)
	executions := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricesync_executions_total",
			Help: "Sync executions by final status.",
		},
		[]string{"status"},
	)

	registry.MustRegister(products, batches, apiErrors, retries, requestDuration, executions)

	return &Metrics{
		Registry:        registry,
		ProductsTotal:   products,
		BatchesTotal:    batches,
		APIErrorsTotal:  apiErrors,
		RetriesTotal:    retries,
		RequestDuration: requestDuration,
		ExecutionsTotal: executions,
	}
}

// IncProduct increments the products counter for a result label.
func (m *Metrics) IncProduct(result string) {
	if m == nil {
		return
	}
	m.ProductsTotal.WithLabelValues(result).Inc()
}

// IncBatch increments the batches counter for a result label.
func (m *Metrics) IncBatch(result string) {
	if m == nil {
		return
	}
	m.BatchesTotal.WithLabelValues(result).Inc()
}

// IncAPIError increments the API errors counter for a type label.
func (m *Metrics) IncAPIError(errorType string) {
	if m == nil {
		return
	}
	m.APIErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// ObserveRequestDuration records one batch request duration.
func (m *Metrics) ObserveRequestDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncExecution increments the executions counter for a status label.
func (m *Metrics) IncExecution(status string) {
	if m == nil {
		return
	}
	m.ExecutionsTotal.WithLabelValues(status).Inc()
}
