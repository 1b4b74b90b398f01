package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SAP-F-2025/course-portal/internal/enrollment"
	"github.com/SAP-F-2025/course-portal/internal/guard"
	"github.com/SAP-F-2025/course-portal/internal/payment"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObservers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveTransition(payment.Transition{To: payment.StateReady})
	m.ObserveTransition(payment.Transition{To: payment.StateFailed, Kind: payment.KindBackend})
	m.ObserveTransition(payment.Transition{To: payment.StateFailed})
	m.ObserveGuard(guard.Decision{Action: guard.RedirectLogin})
	m.ObserveVerdict(enrollment.Verdict{Reason: enrollment.ReasonMustEnroll})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutTransitions.WithLabelValues("READY")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.checkoutTransitions.WithLabelValues("FAILED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutErrors.WithLabelValues("backend")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.checkoutErrors.WithLabelValues("unknown")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.guardDecisions.WithLabelValues("redirect_login")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.gateVerdicts.WithLabelValues("must_enroll")))
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := New(prometheus.NewRegistry())

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/courses/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/courses/a", "/courses/b", "/missing"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "/courses/:id", "204")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("GET", "unmatched", "404")))
}
