// Package api exposes the attendance service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"clubattend/internal/attendance"
	"clubattend/internal/auth"
	"clubattend/internal/queue"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck = func(ctx context.Context) bool

// DevTokens configures the development-only token endpoint.
type DevTokens struct {
	Issuer string
	Key    string
	TTL    time.Duration
}

type Handler struct {
	svc    *attendance.Service
	events queue.Queue // nil disables event publishing
	health map[string]HealthCheck
	dev    *DevTokens
}

func NewHandler(svc *attendance.Service, events queue.Queue, health map[string]HealthCheck, dev *DevTokens) *Handler {
	return &Handler{svc: svc, events: events, health: health, dev: dev}
}

// ---------- Health ----------

func (h *Handler) Healthz(c *gin.Context) {
	body := gin.H{"status": "ok"}
	status := http.StatusOK
	for name, check := range h.health {
		ok := check(c.Request.Context())
		body[name] = ok
		if !ok {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
		}
	}
	c.JSON(status, body)
}

// ---------- Check-in ----------

type checkInRequest struct {
	IdentityToken string `json:"identity_token"`
	SessionID     string `json:"session_id" binding:"required"`
	Kind          string `json:"kind" binding:"required"`
	ExcusedReason string `json:"excused_reason"`
}

// CheckIn admits a live or excused check-in. The request time is the
// server clock and the source IP comes from the connection.
func (h *Handler) CheckIn(c *gin.Context) {
	var req checkInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "error": err.Error()})
		return
	}
	kind, err := attendance.ParseKind(req.Kind)
	if err != nil {
		reject(c, &attendance.Rejection{Reason: attendance.ReasonInvalidKind, Err: err})
		return
	}
	token := bodyOrBearer(c, req.IdentityToken)

	res, err := h.svc.CheckIn(c.Request.Context(), attendance.CheckInRequest{
		IdentityToken: token,
		SessionID:     req.SessionID,
		Kind:          kind,
		ExcusedReason: req.ExcusedReason,
		SourceIP:      c.ClientIP(),
	})
	if err != nil {
		reject(c, err)
		return
	}

	h.publish(c.Request.Context(), attendance.CleanSessionID(req.SessionID), res)
	c.JSON(http.StatusOK, gin.H{
		"accepted":       true,
		"classification": res.Classification,
		"degraded":       res.Degraded(),
	})
}

func (h *Handler) publish(ctx context.Context, sessionID string, res attendance.Result) {
	if h.events == nil {
		return
	}
	msg, err := queue.NewMessage(queue.TypeCheckIn, queue.CheckInEvent{
		SessionID:      sessionID,
		Classification: string(res.Classification),
		At:             time.Now().UTC(),
	})
	if err == nil {
		err = h.events.Publish(ctx, msg)
	}
	if err != nil {
		log.Printf("queue publish failed for session %s: %v", sessionID, err)
	}
}

// ---------- Sessions ----------

type createSessionRequest struct {
	IdentityToken string          `json:"identity_token"`
	ScheduledAt   json.RawMessage `json:"scheduled_at"`
}

// CreateSession allocates a session code for an admin. scheduled_at may be
// an RFC3339 string or unix milliseconds.
func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"accepted": false, "error": err.Error()})
		return
	}
	token := bodyOrBearer(c, req.IdentityToken)
	at, err := parseScheduledAt(req.ScheduledAt)
	if err != nil {
		// Identity and admin rejections take precedence over a bad timestamp.
		if aerr := h.svc.RequireAdmin(c.Request.Context(), token); aerr != nil {
			reject(c, aerr)
			return
		}
		reject(c, &attendance.Rejection{Reason: attendance.ReasonInvalidTimestamp, Err: err})
		return
	}

	sess, err := h.svc.CreateSession(c.Request.Context(), token, at)
	if err != nil {
		reject(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"accepted":     true,
		"session_id":   sess.ID,
		"scheduled_at": sess.ScheduledAt,
	})
}

func (h *Handler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListSessions(c.Request.Context(), c.GetString(auth.TokenKey))
	if err != nil {
		reject(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *Handler) GetSession(c *gin.Context) {
	sum, err := h.svc.Summary(c.Request.Context(), c.GetString(auth.TokenKey), c.Param("id"))
	if err != nil {
		reject(c, err)
		return
	}
	c.JSON(http.StatusOK, sum)
}

func (h *Handler) SessionStatus(c *gin.Context) {
	st, err := h.svc.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		reject(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

// ---------- Dev tokens ----------

type devTokenRequest struct {
	Subject string `json:"subject" binding:"required"`
	Name    string `json:"name"`
	Email   string `json:"email" binding:"required"`
	Picture string `json:"picture"`
}

// IssueDevToken signs an identity token for local testing.
func (h *Handler) IssueDevToken(c *gin.Context) {
	var req devTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, exp, err := auth.Issue(auth.Profile{
		Subject: req.Subject,
		Name:    req.Name,
		Email:   req.Email,
		Picture: req.Picture,
	}, h.dev.Issuer, h.dev.Key, h.dev.TTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"identity_token": token, "expires_at": exp.Unix()})
}

func bodyOrBearer(c *gin.Context, token string) string {
	if token != "" {
		return token
	}
	return auth.FromHeader(c.GetHeader("Authorization"))
}

func parseScheduledAt(raw json.RawMessage) (time.Time, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return time.Time{}, errors.New("scheduled_at is required")
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			return time.Time{}, err
		}
		if ms, err := strconv.ParseInt(str, 10, 64); err == nil {
			return time.UnixMilli(ms).UTC(), nil
		}
		t, err := time.Parse(time.RFC3339, str)
		if err != nil {
			return time.Time{}, errors.New("scheduled_at must be RFC3339 or unix milliseconds")
		}
		return t.UTC(), nil
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, errors.New("scheduled_at must be RFC3339 or unix milliseconds")
	}
	return time.UnixMilli(ms).UTC(), nil
}
