// Package metrics exposes check-in outcomes as Prometheus metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"clubattend/internal/attendance"
)

// Metrics implements attendance.Observer.
type Metrics struct {
	checkIns   *prometheus.CounterVec
	rejections *prometheus.CounterVec
	sessions   prometheus.Counter
	collisions prometheus.Counter
	requests   *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		checkIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clubattend_checkins_total",
			Help: "Accepted check-ins by classification and whether the source IP was outside the allowlist.",
		}, []string{"classification", "degraded"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clubattend_checkin_rejections_total",
			Help: "Rejected check-ins by reason.",
		}, []string{"reason"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clubattend_sessions_created_total",
			Help: "Sessions created.",
		}),
		collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clubattend_session_code_collisions_total",
			Help: "Session code candidates that were already taken.",
		}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clubattend_http_request_duration_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.checkIns, m.rejections, m.sessions, m.collisions, m.requests)
	return m
}

func (m *Metrics) CheckInAccepted(c attendance.Classification, degraded bool) {
	m.checkIns.WithLabelValues(string(c), strconv.FormatBool(degraded)).Inc()
}

func (m *Metrics) CheckInRejected(r attendance.Reason) {
	m.rejections.WithLabelValues(string(r)).Inc()
}

func (m *Metrics) SessionCreated() { m.sessions.Inc() }

func (m *Metrics) CodeCollision() { m.collisions.Inc() }

// GinMiddleware records request latency labelled by the matched route.
func (m *Metrics) GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
