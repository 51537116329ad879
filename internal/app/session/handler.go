package session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/middleware"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// Handler upgrades GET /ws requests and runs the connection for its
// lifetime. Origin and auth violations are reported as 1008 policy closes
// after the upgrade so clients see the reason and know not to reconnect.
type Handler struct {
	hub      *Hub
	cfg      *config.Config
	limiter  *middleware.ConnLimiter
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

func NewHandler(hub *Hub, cfg *config.Config, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		hub:     hub,
		cfg:     cfg,
		limiter: middleware.NewConnLimiter(cfg.Session.MaxConnsPerIP),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origin is checked after the upgrade so the policy close
			// reason reaches the client.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ServeWS handles the websocket handshake and blocks until the connection
// closes.
func (h *Handler) ServeWS(c *gin.Context) {
	ip := c.ClientIP()
	if !h.limiter.Acquire(ip) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many connections"})
		return
	}
	defer h.limiter.Release(ip)

	identity, authErr := h.authenticate(c)

	ws, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("Websocket upgrade failed", zap.Error(err))
		return
	}

	conn := NewConn(ws, h.hub, identity, h.cfg.Session, h.logger)

	if !h.originAllowed(c.GetHeader("Origin")) {
		h.logger.Warn("Websocket origin blocked",
			zap.String("origin", c.GetHeader("Origin")),
			zap.String("ip", ip),
		)
		conn.Terminate(PolicyOriginBlocked)
		return
	}
	if authErr != "" {
		h.logger.Info("ws_require_auth",
			zap.String("reason", authErr),
			zap.String("ip", ip),
		)
		conn.Terminate(PolicyNotAuthorized)
		return
	}

	conn.Run()
}

// authenticate resolves the connection identity. The second return value is
// a non-empty rejection reason when auth is required and fails.
func (h *Handler) authenticate(c *gin.Context) (Identity, string) {
	anonymous := Identity{SessionID: middleware.AnonymousSessionID}

	token := middleware.ExtractToken(c)
	if token == "" {
		if h.cfg.Features.WSRequireAuth {
			return anonymous, "missing_token"
		}
		return anonymous, ""
	}

	claims, err := middleware.ParseToken(h.cfg.JWTSecret, token)
	if err != nil {
		if h.cfg.Features.WSRequireAuth {
			return anonymous, "invalid_token"
		}
		return anonymous, ""
	}
	return Identity{UserID: claims.UserID, SessionID: claims.SessionID}, ""
}

func (h *Handler) originAllowed(origin string) bool {
	allowed := h.cfg.Session.AllowedOrigins
	if len(allowed) == 0 || origin == "" {
		return true
	}
	for _, a := range allowed {
		if a == origin || a == "*" {
			return true
		}
	}
	return false
}
