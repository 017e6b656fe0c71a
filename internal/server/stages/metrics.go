package stages

import (
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/vipkeeper/internal/server/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "vipkeeper"

// Metrics records request counters and latencies. It also exposes the
// login outcome counter used by the login handler.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
	logins   *prometheus.CounterVec
	gatherer prometheus.Gatherer
	now      func() time.Time
}

// NewMetrics registers the collectors in reg. Passing a fresh
// prometheus.NewRegistry keeps tests independent of global state.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),

		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),

		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_in_flight",
			Help:      "HTTP requests currently being served.",
		}),

		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),

		gatherer: reg,
		now:      time.Now,
	}
}

func (m *Metrics) Serve(f *pipeline.Flow) {
	m.inFlight.Inc()
	defer m.inFlight.Dec()

	start := m.now()
	f.Next()

	route := routeLabel(f.Request)
	m.requests.WithLabelValues(f.Request.Method, route, strconv.Itoa(statusOf(f.Status()))).Inc()
	m.duration.WithLabelValues(f.Request.Method, route).Observe(m.now().Sub(start).Seconds())
}

// Login outcomes.
const (
	LoginSuccess   = "success"
	LoginFailure   = "failure"
	LoginThrottled = "throttled"
)

// ObserveLogin counts one login attempt. A nil receiver is a no-op so
// handlers can run without metrics.
func (m *Metrics) ObserveLogin(outcome string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
