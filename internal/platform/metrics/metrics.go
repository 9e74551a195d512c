package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for identifier allocation and the HTTP surface.
type Metrics struct {
	// Identifier allocations by kind (mrn, order, sample) and mode (online, offline)
	Allocations *prometheus.CounterVec

	// Allocation failures by kind and reason (exhausted, unavailable, duplicate)
	AllocationFailures *prometheus.CounterVec

	// Allocation latency including the row lock wait
	AllocateLatency prometheus.Histogram

	// HTTP requests by method, path and status
	Requests *prometheus.CounterVec
}

// New creates a new Metrics instance with all collectors registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		Allocations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lims_identifier_allocations_total",
			Help: "Total identifier allocations by kind and mode",
		}, []string{"kind", "mode"}),

		AllocationFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lims_identifier_allocation_failures_total",
			Help: "Total identifier allocation failures by kind and reason",
		}, []string{"kind", "reason"}),

		AllocateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "lims_identifier_allocate_duration_seconds",
			Help:    "Duration of identifier allocation including lock wait",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "lims_http_requests_total",
			Help: "Total HTTP requests by method, path and status",
		}, []string{"method", "path", "status"}),
	}
}

// IncrementAllocation records a successful identifier allocation.
func (m *Metrics) IncrementAllocation(kind, mode string) {
	if m != nil {
		m.Allocations.WithLabelValues(kind, mode).Inc()
	}
}

// IncrementAllocationFailure records a failed identifier allocation.
func (m *Metrics) IncrementAllocationFailure(kind, reason string) {
	if m != nil {
		m.AllocationFailures.WithLabelValues(kind, reason).Inc()
	}
}

// ObserveAllocateLatency records the duration of an allocation.
func (m *Metrics) ObserveAllocateLatency(d time.Duration) {
	if m != nil {
		m.AllocateLatency.Observe(d.Seconds())
	}
}

// IncrementRequest records an HTTP request.
func (m *Metrics) IncrementRequest(method, path, status string) {
	if m != nil {
		m.Requests.WithLabelValues(method, path, status).Inc()
	}
}
