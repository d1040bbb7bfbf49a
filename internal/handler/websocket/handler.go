package websocket

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	gws "github.com/gorilla/websocket"

	"github.com/jwalitptl/obex-alerts/internal/model"
	"github.com/jwalitptl/obex-alerts/internal/realtime"
	"github.com/jwalitptl/obex-alerts/pkg/httputil"
	"github.com/jwalitptl/obex-alerts/pkg/logger"
)

const (
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096

	endpointTemplate = "/ws/alerts/{user_id}"
	welcomeMessage   = "Connected to OBEX Alert System"
)

// Registry is the part of realtime.Registry the endpoint drives.
type Registry interface {
	Connect(userID string, ch realtime.Channel)
	Release(userID string, ch realtime.Channel) bool
	ActiveCount() int
}

type Config struct {
	ConnectionURL  string
	AllowedOrigins []string
}

type Handler struct {
	registry Registry
	upgrader gws.Upgrader
	config   Config
	logger   *logger.Logger
	now      func() time.Time
}

func NewHandler(registry Registry, config Config, logger *logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		upgrader: gws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(config.AllowedOrigins),
		},
		config: config,
		logger: logger,
		now:    time.Now,
	}
}

// originChecker allows every origin when the list is empty or contains "*".
func originChecker(allowed []string) func(r *http.Request) bool {
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return func(r *http.Request) bool { return true }
		}
		set[o] = true
	}
	if len(set) == 0 {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}

func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/ws/alerts/:user_id", h.ServeAlerts)
	r.GET("/websocket-info", h.Info)
}

// ServeAlerts upgrades the request and holds the user's live channel until
// the peer goes away.
func (h *Handler) ServeAlerts(c *gin.Context) {
	parsed, err := uuid.Parse(c.Param("user_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, httputil.NewErrorResponse("invalid user id"))
		return
	}
	userID := parsed.String()

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("WebSocket upgrade failed", "user_id", userID, "error", err.Error())
		return
	}

	ch := realtime.NewWSChannel(conn)
	h.registry.Connect(userID, ch)
	h.logger.Info("WebSocket connected", "user_id", userID, "active_connections", h.registry.ActiveCount())

	defer func() {
		h.registry.Release(userID, ch)
		_ = ch.Close()
		h.logger.Info("WebSocket closed", "user_id", userID, "active_connections", h.registry.ActiveCount())
	}()

	if err := h.sendEnvelope(ch, model.SystemEnvelope{Type: model.EnvelopeSystem, Message: welcomeMessage}); err != nil {
		h.logger.Warn("Failed to send welcome message", "user_id", userID, "error", err.Error())
		return
	}

	done := make(chan struct{})
	defer close(done)
	go h.keepAlive(userID, ch, done)

	h.readLoop(userID, conn, ch)
}

func (h *Handler) readLoop(userID string, conn *gws.Conn, ch *realtime.WSChannel) {
	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		msgType, _, err := conn.ReadMessage()
		if err != nil {
			if gws.IsUnexpectedCloseError(err, gws.CloseGoingAway, gws.CloseNormalClosure) {
				h.logger.Warn("WebSocket read error", "user_id", userID, "error", err.Error())
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		if msgType != gws.TextMessage {
			continue
		}

		now := h.now().UTC()
		pong := model.SystemEnvelope{Type: model.EnvelopePong, Message: "Connection active", Timestamp: &now}
		if err := h.sendEnvelope(ch, pong); err != nil {
			h.logger.Warn("Failed to send pong", "user_id", userID, "error", err.Error())
			return
		}
	}
}

// keepAlive pings the peer until done is closed or a ping fails.
func (h *Handler) keepAlive(userID string, ch *realtime.WSChannel, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := ch.Ping(); err != nil {
				h.logger.Debug("WebSocket ping failed", "user_id", userID, "error", err.Error())
				_ = ch.Close()
				return
			}
		}
	}
}

func (h *Handler) sendEnvelope(ch realtime.Channel, envelope model.SystemEnvelope) error {
	msg, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return ch.Send(msg)
}

// Info describes the real-time endpoint for client developers.
func (h *Handler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"websocket_endpoint": endpointTemplate,
		"active_connections": h.registry.ActiveCount(),
		"connection_url":     h.config.ConnectionURL,
		"status":             "operational",
		"supported_events": gin.H{
			"incoming": []string{"ping", "message"},
			"outgoing": []string{model.EnvelopeSystem, model.EnvelopePong, model.EnvelopeNewAlert},
		},
	})
}
