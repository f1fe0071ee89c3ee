// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Lifecycle loop metrics
	LoopCycles          *prometheus.CounterVec
	GatewayErrors       *prometheus.CounterVec
	ConsecutiveFailures *prometheus.GaugeVec

	// Order metrics
	OrdersPlaced    *prometheus.CounterVec
	OrdersCancelled *prometheus.CounterVec
	SplitChunks     prometheus.Histogram

	// Task metrics
	ActiveTasks prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "token_seller"
	}

	return &Metrics{
		LoopCycles: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "cycles_total",
			Help:      "Total number of lifecycle loop cycles by exchange",
		}, []string{"exchange"}),
		GatewayErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "gateway_errors_total",
			Help:      "Total number of gateway failures caught inside loops",
		}, []string{"exchange"}),
		ConsecutiveFailures: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "loop",
			Name:      "consecutive_failures",
			Help:      "Current consecutive gateway failure streak per exchange",
		}, []string{"exchange"}),
		OrdersPlaced: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "placed_total",
			Help:      "Total number of limit sell orders placed",
		}, []string{"exchange"}),
		OrdersCancelled: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "cancelled_total",
			Help:      "Total number of orders cancelled on user request",
		}, []string{"exchange"}),
		SplitChunks: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "split_chunks",
			Help:      "Number of chunks a sell amount was split into",
			Buckets:   []float64{1, 2, 3, 5, 10, 20, 50},
		}),
		ActiveTasks: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "active",
			Help:      "Number of tasks with a running lifecycle loop",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// DefaultMetrics is the default metrics instance.
var DefaultMetrics = NewMetrics("")

// RecordCycle increments the loop cycle counter.
func RecordCycle(exchange string) {
	DefaultMetrics.LoopCycles.WithLabelValues(exchange).Inc()
}

// RecordGatewayError records a caught gateway failure and the new streak.
func RecordGatewayError(exchange string, streak int) {
	DefaultMetrics.GatewayErrors.WithLabelValues(exchange).Inc()
	DefaultMetrics.ConsecutiveFailures.WithLabelValues(exchange).Set(float64(streak))
}

// RecordRecovered resets the failure streak gauge after a clean cycle.
func RecordRecovered(exchange string) {
	DefaultMetrics.ConsecutiveFailures.WithLabelValues(exchange).Set(0)
}

// RecordOrdersPlaced records placed split orders.
func RecordOrdersPlaced(exchange string, chunks int) {
	DefaultMetrics.OrdersPlaced.WithLabelValues(exchange).Add(float64(chunks))
	DefaultMetrics.SplitChunks.Observe(float64(chunks))
}

// RecordOrderCancelled increments the cancelled order counter.
func RecordOrderCancelled(exchange string) {
	DefaultMetrics.OrdersCancelled.WithLabelValues(exchange).Inc()
}

// SetActiveTasks updates the running loop gauge.
func SetActiveTasks(n int) {
	DefaultMetrics.ActiveTasks.Set(float64(n))
}
