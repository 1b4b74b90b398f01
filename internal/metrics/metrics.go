// Package metrics exposes the portal's prometheus collectors.
package metrics

import (
	"strconv"
	"time"

	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/guard"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "course_portal"

type Metrics struct {
	checkoutTransitions *prometheus.CounterVec
	checkoutErrors      *prometheus.CounterVec
	guardDecisions      *prometheus.CounterVec
	gateVerdicts        *prometheus.CounterVec
	requests            *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		checkoutTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_transitions_total",
			Help:      "Checkout state machine transitions by target state.",
		}, []string{"to"}),
		checkoutErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkout_errors_total",
			Help:      "Checkout attempts that ended in FAILED, by error kind.",
		}, []string{"kind"}),
		guardDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "guard_decisions_total",
			Help:      "Route guard decisions by action.",
		}, []string{"action"}),
		gateVerdicts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "enrollment_gate_verdicts_total",
			Help:      "Enrollment gate verdicts by reason.",
		}, []string{"reason"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// ObserveTransition is a payment.Observer.
func (m *Metrics) ObserveTransition(t payment.Transition) {
	m.checkoutTransitions.WithLabelValues(string(t.To)).Inc()
	if t.To == payment.StateFailed {
		kind := string(t.Kind)
		if kind == "" {
			kind = "unknown"
		}
		m.checkoutErrors.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveGuard(d guard.Decision) {
	m.guardDecisions.WithLabelValues(d.Action.String()).Inc()
}

func (m *Metrics) ObserveVerdict(v enrollment.Verdict) {
	m.gateVerdicts.WithLabelValues(string(v.Reason)).Inc()
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
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
