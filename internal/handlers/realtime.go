package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"social-realtime/internal/maintenance"
	"social-realtime/internal/middleware"
	"social-realtime/internal/repositories"
	"social-realtime/internal/telemetry"
)

// OnlineStats is the local view of connected users.
type OnlineStats interface {
	Stats() (users, conns int)
}

// ClusterCounter reports users online on any node. It is optional.
type ClusterCounter interface {
	OnlineCount(ctx context.Context) (int, error)
}

type RealtimeHandler struct {
	users   repositories.UserRepository
	gate    *maintenance.Gate
	stats   OnlineStats
	cluster ClusterCounter
	audit   *telemetry.AuditEmitter
}

func NewRealtimeHandler(users repositories.UserRepository, gate *maintenance.Gate, stats OnlineStats, cluster ClusterCounter, audit *telemetry.AuditEmitter) *RealtimeHandler {
	return &RealtimeHandler{users: users, gate: gate, stats: stats, cluster: cluster, audit: audit}
}

// Me is the sign-in check: administrators always get their profile, other
// users are told about maintenance here rather than by the global gate.
func (h *RealtimeHandler) Me(c *gin.Context) {
	claims := middleware.ClaimsFrom(c)
	if err := h.gate.CheckSignIn(c.Request.Context(), claims.IsAdmin()); err != nil {
		h.audit.Emit(c.Request.Context(), "WARN", "sign-in refused during maintenance", requestIDFromContext(c), claims.UserID)
		maintenance.Reject(c)
		return
	}

	user, err := h.users.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
			return
		}
		log.Error().Err(err).Int("user_id", claims.UserID).Msg("load current user")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load user"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "maintenance": h.gate.Enabled(c.Request.Context())})
}

// Online reports connected users for the admin dashboard.
func (h *RealtimeHandler) Online(c *gin.Context) {
	users, conns := h.stats.Stats()
	resp := gin.H{"count": users, "connections": conns}
	if h.cluster != nil {
		total, err := h.cluster.OnlineCount(c.Request.Context())
		if err != nil {
			log.Warn().Err(err).Msg("cluster online count unavailable")
		} else {
			resp["cluster_count"] = total
		}
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RealtimeHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "maintenance": h.gate.Enabled(c.Request.Context())})
}

// RegisterRoutes mounts the HTTP surface next to the socket endpoint.
func (h *RealtimeHandler) RegisterRoutes(router gin.IRouter, ws gin.HandlerFunc) {
	router.GET("/healthz", h.Health)
	router.GET("/ws", ws)
	router.GET("/auth/me", middleware.RequireAuth(), h.Me)
	router.GET("/admin/online", middleware.RequireAdmin(), h.Online)
}
