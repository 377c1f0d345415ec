package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"social-realtime/internal/auth"
	"social-realtime/internal/observability"
)

// Handler upgrades authenticated requests into realtime connections.
type Handler struct {
	dispatcher *Dispatcher
	verifier   *auth.Verifier
	eventRate  rate.Limit
	eventBurst int
}

// NewHandler constructs a Handler. eventRate <= 0 disables per-connection limiting.
func NewHandler(dispatcher *Dispatcher, verifier *auth.Verifier, eventRate float64, eventBurst int) *Handler {
	return &Handler{dispatcher: dispatcher, verifier: verifier, eventRate: rate.Limit(eventRate), eventBurst: eventBurst}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handle upgrades the connection and starts its pumps.
func (h *Handler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("social-realtime/ws").Start(c.Request.Context(), "ws.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	token, ok := auth.BearerToken(c.GetHeader("Authorization"))
	if !ok {
		token = c.Query("token")
	}
	claims, err := h.verifier.Parse(token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	info := ConnInfo{
		ConnID:      newConnID(),
		UserID:      claims.UserID,
		Admin:       claims.IsAdmin(),
		Meta:        observability.RequestMetaFrom(c),
		TraceID:     span.SpanContext().TraceID().String(),
		ConnectedAt: time.Now(),
	}
	var limiter *rate.Limiter
	if h.eventRate > 0 {
		limiter = rate.NewLimiter(h.eventRate, h.eventBurst)
	}
	client := NewClient(info.ConnID, conn, claims, info, limiter)

	// the request context ends with this handler; the session outlives it
	sessionCtx := trace.ContextWithSpanContext(context.Background(), span.SpanContext())

	observability.IncWSActive()
	publishLifecycle(sessionCtx, "ws_connect", info, "")
	log.Info().Int("user_id", info.UserID).Str("conn_id", info.ConnID).Str("ip", info.Meta.IP).Msg("websocket connected")

	go client.writePump()
	go func() {
		readErr := client.readPump(sessionCtx, h.dispatcher)
		reason := ""
		if readErr != nil {
			reason = readErr.Error()
		}
		if websocket.IsUnexpectedCloseError(readErr, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
			publishLifecycle(sessionCtx, "ws_error", info, reason)
		}
		h.dispatcher.Disconnect(sessionCtx, client)
		client.Close()
		observability.DecWSActive()
		publishLifecycle(sessionCtx, "ws_disconnect", info, reason)
		log.Info().Int("user_id", info.UserID).Str("conn_id", info.ConnID).Str("reason", reason).Msg("websocket disconnected")
	}()
}

func publishLifecycle(ctx context.Context, event string, info ConnInfo, reason string) {
	_ = observability.PublishEvent(ctx, observability.WSEventsRoutingKey, info.lifecycleEvent(event, reason, time.Now()), info.headers())
}
