package api

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"clubattend/internal/attendance"
	"clubattend/internal/auth"
	"clubattend/internal/httpmiddleware"
	"clubattend/internal/metrics"
)

// Deps is everything the router needs. Limiter, Metrics and MetricsHandler
// are optional.
type Deps struct {
	Handler        *Handler
	Limiter        httpmiddleware.Limiter
	Metrics        *metrics.Metrics
	MetricsHandler http.Handler
}

// NewRouter builds the gin engine with middleware and routes.
func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowAllOrigins = true
	corsCfg.AddAllowHeaders("Authorization")
	r.Use(cors.New(corsCfg))
	r.Use(securityHeaders())
	if d.Metrics != nil {
		r.Use(d.Metrics.GinMiddleware())
	}

	h := d.Handler
	r.GET("/healthz", h.Healthz)
	if d.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(d.MetricsHandler))
	}

	v1 := r.Group("/v1")
	if d.Limiter != nil {
		v1.Use(httpmiddleware.RateLimit(d.Limiter))
	}
	v1.POST("/checkins", h.CheckIn)
	v1.POST("/sessions", h.CreateSession)
	v1.GET("/sessions/:id/status", h.SessionStatus)

	admin := v1.Group("/sessions", auth.BearerToken())
	admin.GET("", h.ListSessions)
	admin.GET("/:id", h.GetSession)

	if h.dev != nil {
		v1.POST("/dev/tokens", h.IssueDevToken)
	}
	return r
}

func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		c.Next()
	}
}

// StatusFor maps a rejection reason to its HTTP status.
func StatusFor(r attendance.Reason) int {
	switch r {
	case attendance.ReasonIdentityInvalid:
		return http.StatusUnauthorized
	case attendance.ReasonNotOrganizationMember, attendance.ReasonNotAdmin,
		attendance.ReasonWindowClosed, attendance.ReasonExcusedWindowClosed:
		return http.StatusForbidden
	case attendance.ReasonSessionNotFound:
		return http.StatusNotFound
	case attendance.ReasonInvalidExcusedReason, attendance.ReasonInvalidTimestamp,
		attendance.ReasonInvalidKind:
		return http.StatusBadRequest
	case attendance.ReasonDuplicateCheckIn:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// reject writes a rejection body. Internal details are logged by gin's
// error list, not returned.
func reject(c *gin.Context, err error) {
	reason := attendance.ReasonOf(err)
	_ = c.Error(err)
	c.JSON(StatusFor(reason), gin.H{
		"accepted":         false,
		"rejection_reason": reason,
		"retryable":        reason.Retryable(),
	})
}
