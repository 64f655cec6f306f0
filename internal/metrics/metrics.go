// Package metrics exposes Prometheus collectors for the HTTP surface and the
// checkout path.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	Requests         *prometheus.CounterVec
	LatencyMS        *prometheus.HistogramVec
	OrdersCreated    prometheus.Counter
	OrdersCancelled  prometheus.Counter
	CheckoutFailures *prometheus.CounterVec
	StockReleased    prometheus.Counter
	WorkerMessages   *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Passing a fresh registry keeps tests
// independent of the global default.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "storefront",
			Name:      "http_request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_created_total",
			Help:      "Orders placed successfully.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "orders_cancelled_total",
			Help:      "Orders cancelled by users or admins.",
		}),
		CheckoutFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "checkout_failures_total",
			Help:      "Rejected checkouts by error code.",
		}, []string{"code"}),
		StockReleased: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "stock_released_units_total",
			Help:      "Units returned to inventory by cancellations.",
		}),
		WorkerMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront",
			Name:      "fulfillment_messages_total",
			Help:      "Fulfillment queue messages by type and outcome.",
		}, []string{"type", "outcome"}),
		gatherer: reg,
	}
	reg.MustRegister(m.Requests, m.LatencyMS, m.OrdersCreated, m.OrdersCancelled,
		m.CheckoutFailures, m.StockReleased, m.WorkerMessages)
	return m
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.Requests.WithLabelValues(route, strconv.Itoa(c.Writer.Status())).Inc()
		m.LatencyMS.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// The helpers below accept a nil receiver so services can run without
// metrics in tests.

func (m *Metrics) OrderCreated() {
	if m != nil {
		m.OrdersCreated.Inc()
	}
}

func (m *Metrics) OrderCancelled(releasedUnits int) {
	if m != nil {
		m.OrdersCancelled.Inc()
		m.StockReleased.Add(float64(releasedUnits))
	}
}

func (m *Metrics) CheckoutFailed(code string) {
	if m != nil {
		m.CheckoutFailures.WithLabelValues(code).Inc()
	}
}

func (m *Metrics) WorkerMessage(msgType, outcome string) {
	if m != nil {
		m.WorkerMessages.WithLabelValues(msgType, outcome).Inc()
	}
}
