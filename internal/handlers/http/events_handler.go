package http

import (
	"net/http"
	"time"

	"streamgate/internal/core/domain"
	"streamgate/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventsHandler pushes health snapshots over a websocket so dashboards do
// not have to poll the metrics endpoint. Access is gated on the same stream
// token as artifact delivery.
type EventsHandler struct {
	sessions ports.SessionManager
	tokens   ports.TokenService
	hub      ports.EventHub
	stats    ports.StatsRecorder
	logger   *zap.SugaredLogger

	upgrader websocket.Upgrader
}

func NewEventsHandler(
	sessions ports.SessionManager,
	tokens ports.TokenService,
	hub ports.EventHub,
	stats ports.StatsRecorder,
	logger *zap.SugaredLogger,
) *EventsHandler {
	return &EventsHandler{
		sessions: sessions,
		tokens:   tokens,
		hub:      hub,
		stats:    stats,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *EventsHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/stream/:id/events", h.Events)
}

func (h *EventsHandler) Events(c *gin.Context) {
	sessionID := domain.SessionID(c.Param("id"))
	session, err := h.sessions.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	token, err := h.tokens.Validate(c.Query("token"))
	if err != nil || !token.Allows(domain.PermissionStreamView) ||
		token.CameraID != session.CameraID || token.StoreID != session.StoreID {
		h.stats.TokenRejected()
		respondDomainError(c, domain.ErrTokenInvalid)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warnw("websocket upgrade failed", "session_id", sessionID, "error", err)
		return
	}
	defer conn.Close()

	updates, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	// Send the latest known snapshot immediately so the client does not
	// wait a full sampling interval for its first datapoint.
	if snapshot := session.Health(); snapshot != nil {
		if err := h.writeSnapshot(conn, sessionID, snapshot); err != nil {
			return
		}
	}

	for snapshot := range updates {
		if err := h.writeSnapshot(conn, sessionID, snapshot); err != nil {
			return
		}
	}
	// Channel closed: session torn down.
	deadline := time.Now().Add(time.Second)
	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session ended"), deadline)
}

func (h *EventsHandler) writeSnapshot(conn *websocket.Conn, id domain.SessionID, snapshot *domain.HealthSnapshot) error {
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(gin.H{
		"session_id": id,
		"health":     snapshot,
	})
}
