// Package httpx holds the gin handlers and middleware shared by the HTTP services.
package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	errorCodeKey    = "marketpulse.error_code"
	unmatchedRoute  = "unmatched"
	codeUnspecified = "unspecified"
)

// RequestMetrics counts requests per route template, so campaign and source ids never
// become label values. Failed requests are also counted by the error code the handler
// rendered.
type RequestMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	failures *prometheus.CounterVec
	inFlight prometheus.Gauge
}

// NewRequestMetrics registers the collectors on reg under the service label.
func NewRequestMetrics(reg prometheus.Registerer, service string) *RequestMetrics {
	f := promauto.With(reg)
	labels := prometheus.Labels{"service": service}
	return &RequestMetrics{
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "marketpulse",
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Requests handled, by route template and status",
			ConstLabels: labels,
		}, []string{"route", "method", "status"}),
		latency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "marketpulse",
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "Request latency by route template",
			ConstLabels: labels,
			Buckets:     []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 15},
		}, []string{"route", "method"}),
		failures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "marketpulse",
			Subsystem:   "http",
			Name:        "failures_total",
			Help:        "Requests answered with a 4xx or 5xx, by error code",
			ConstLabels: labels,
		}, []string{"route", "code"}),
		inFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace:   "marketpulse",
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Requests currently being served",
			ConstLabels: labels,
		}),
	}
}

// Handler records one request.
func (m *RequestMetrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		m.inFlight.Inc()
		defer m.inFlight.Dec()
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
		m.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
		if status >= http.StatusBadRequest {
			m.failures.WithLabelValues(route, failureCode(c, status)).Inc()
		}
	}
}

// failureCode is the code WriteError or reject stored, else one derived from the status.
func failureCode(c *gin.Context, status int) string {
	if code := c.GetString(errorCodeKey); code != "" {
		return code
	}
	text := http.StatusText(status)
	if text == "" {
		return codeUnspecified
	}
	return strings.ToLower(strings.ReplaceAll(text, " ", "_"))
}

// CORS answers preflight requests and allows the listed origins. An empty list or "*"
// allows any origin.
func CORS(allowed []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowed))
	allowAll := len(allowed) == 0
	for _, o := range allowed {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}
	methods := strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
	}, ",")
	headers := strings.Join([]string{
		"Authorization", "Content-Type", AdapterHeader, APIKeyHeader, SignatureHeader,
	}, ",")

	return func(c *gin.Context) {
		h := c.Writer.Header()
		origin := c.GetHeader("Origin")
		switch {
		case allowAll:
			h.Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			h.Add("Vary", "Origin")
			if _, ok := origins[strings.ToLower(origin)]; ok {
				h.Set("Access-Control-Allow-Origin", origin)
			}
		}
		h.Set("Access-Control-Allow-Methods", methods)
		h.Set("Access-Control-Allow-Headers", headers)
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
