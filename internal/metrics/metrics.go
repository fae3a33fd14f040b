// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors. A nil *Metrics records nothing.
type Metrics struct {
	Deliveries     *prometheus.CounterVec
	RenderDuration prometheus.Histogram
	Verifications  *prometheus.CounterVec
	HTTPRequests   *prometheus.CounterVec
	HTTPDuration   *prometheus.HistogramVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Deliveries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "card_deliveries_total",
			Help:      "ID card deliveries by reason and outcome.",
		}, []string{"reason", "outcome"}),
		RenderDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "membership",
			Name:      "card_render_seconds",
			Help:      "Time spent rendering and writing an ID card.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5},
		}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "verifications_total",
			Help:      "Card verification lookups by result.",
		}, []string{"result"}),
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "membership",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "membership",
			Name:      "http_request_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

// ObserveDelivery counts one delivery attempt.
func (m *Metrics) ObserveDelivery(reason, outcome string) {
	if m == nil {
		return
	}
	m.Deliveries.WithLabelValues(reason, outcome).Inc()
}

// ObserveRender records how long a card took to produce.
func (m *Metrics) ObserveRender(d time.Duration) {
	if m == nil {
		return
	}
	m.RenderDuration.Observe(d.Seconds())
}

// ObserveVerification counts one verification lookup.
func (m *Metrics) ObserveVerification(result string) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(result).Inc()
}

// GinMiddleware records request counts and latency per matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}
