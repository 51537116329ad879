package routes

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/handlers"
	"github.com/dinefind/dinefind/internal/app/middleware"
	"github.com/dinefind/dinefind/internal/app/session"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// Setup mounts every route. Search accepts anonymous callers when a token is
// absent; admin routes always require one. The ws endpoint authenticates
// inside the upgrade handshake so policy close codes reach the client.
func Setup(r *gin.Engine, api *handlers.SearchHandler, ws *session.Handler, cfg *config.Config, logger *zap.Logger) {
	r.GET("/health", api.HandleHealth)
	r.GET("/ws", ws.ServeWS)

	v1 := r.Group("/api/v1")
	v1.POST("/search", middleware.JWTAuth(cfg.JWTSecret, false, logger), api.HandleSearch)

	admin := v1.Group("/admin", middleware.JWTAuth(cfg.JWTSecret, true, logger))
	admin.GET("/cache/stats", api.HandleCacheStats)
}
