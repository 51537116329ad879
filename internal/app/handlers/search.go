package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/interaction"
	"github.com/dinefind/dinefind/internal/app/middleware"
	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/app/session"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// SearchRunner executes one search request end to end.
type SearchRunner interface {
	Run(ctx context.Context, req models.SearchRequest) *models.SearchResponse
}

// SearchHandler is the HTTP boundary of the search pipeline. It validates
// the request, registers job ownership for the ws session layer, runs the
// pipeline and returns the response with its requestId.
type SearchHandler struct {
	cfg    *config.Config
	runner SearchRunner
	hub    *session.Hub
	store  *interaction.Store
	caches *cache.CacheManager
	logger *zap.Logger
	deps   []DependencyPing
}

func NewSearchHandler(
	cfg *config.Config,
	runner SearchRunner,
	hub *session.Hub,
	store *interaction.Store,
	caches *cache.CacheManager,
	logger *zap.Logger,
) *SearchHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SearchHandler{
		cfg:    cfg,
		runner: runner,
		hub:    hub,
		store:  store,
		caches: caches,
		logger: logger,
	}
}

// DependencyPing names a backing service and how to reach it. Health checks
// run each ping with a short deadline.
type DependencyPing struct {
	Name string
	Ping func(ctx context.Context) error
}

// AddDependencyPing registers a backing-service check for GET /health.
func (h *SearchHandler) AddDependencyPing(name string, ping func(ctx context.Context) error) {
	h.deps = append(h.deps, DependencyPing{Name: name, Ping: ping})
}

type searchEnvelope struct {
	RequestID string `json:"requestId"`
	*models.SearchResponse
}

// HandleSearch serves POST /api/v1/search.
func (h *SearchHandler) HandleSearch(c *gin.Context) {
	var req models.SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	req.Query = strings.TrimSpace(req.Query)
	if req.Query == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query is required"})
		return
	}

	userID, callerSession := middleware.CallerIdentity(c)
	req.UserID = userID
	if req.SessionID == "" {
		req.SessionID = callerSession
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	} else if _, err := uuid.Parse(req.RequestID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "requestId must be a UUID"})
		return
	}

	if h.hub != nil {
		h.hub.RegisterJob(req.RequestID, session.OwnerRecord{
			UserID:    req.UserID,
			SessionID: req.SessionID,
			CreatedAt: time.Now(),
		})
	}

	resp := h.runner.Run(c.Request.Context(), req)
	h.audit(c.Request.Context(), req, resp)

	c.JSON(http.StatusOK, searchEnvelope{RequestID: req.RequestID, SearchResponse: resp})
}

func (h *SearchHandler) audit(ctx context.Context, req models.SearchRequest, resp *models.SearchResponse) {
	if h.store == nil {
		return
	}
	requestID, err := uuid.Parse(req.RequestID)
	if err != nil {
		return
	}
	h.store.RecordSearchAsync(ctx, interaction.SearchRecord{
		RequestID:     requestID,
		UserID:        req.UserID,
		SessionID:     req.SessionID,
		Query:         req.Query,
		Outcome:       string(resp.Assist.Type),
		FailureReason: resp.Meta.FailureReason,
		ResultCount:   len(resp.Results),
		TotalMs:       resp.Meta.TimingsMs.Total,
	})
}

// HandleHealth serves GET /health. Dependency failures mark the service
// degraded but keep the status code 200, since the pipeline runs without
// either backing store.
func (h *SearchHandler) HandleHealth(c *gin.Context) {
	status := "ok"
	deps := gin.H{}
	for _, dep := range h.deps {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		if err := dep.Ping(ctx); err != nil {
			deps[dep.Name] = "unreachable"
			status = "degraded"
			h.logger.Warn("Health ping failed", zap.String("dependency", dep.Name), zap.Error(err))
		} else {
			deps[dep.Name] = "ok"
		}
		cancel()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":       status,
		"service":      "dinefind-api",
		"version":      h.cfg.Search.PipelineVersion,
		"dependencies": deps,
		"time":         time.Now().UTC().Format(time.RFC3339),
	})
}

// HandleCacheStats serves GET /api/v1/admin/cache/stats. Auth-gated in the
// router.
func (h *SearchHandler) HandleCacheStats(c *gin.Context) {
	if h.caches == nil {
		c.JSON(http.StatusOK, gin.H{"caches": gin.H{}})
		return
	}
	c.JSON(http.StatusOK, gin.H{"caches": h.caches.GetAllMetrics()})
}
