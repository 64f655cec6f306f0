package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_CountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())
	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/orders/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/orders/abc", nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Requests.WithLabelValues("/orders/:id", "404")))
}

func TestHandler_ExposesCheckoutCounters(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.OrderCreated()
	m.CheckoutFailed("INSUFFICIENT_STOCK")
	m.OrderCancelled(3)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "storefront_orders_created_total 1"))
	assert.True(t, strings.Contains(body, `storefront_checkout_failures_total{code="INSUFFICIENT_STOCK"} 1`))
	assert.True(t, strings.Contains(body, "storefront_stock_released_units_total 3"))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.OrderCreated()
		m.OrderCancelled(1)
		m.CheckoutFailed("X")
		m.WorkerMessage("payment.result", "ok")
	})
}
