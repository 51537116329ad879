package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/classify"
	"github.com/dinefind/dinefind/internal/app/domain/enrichment"
	"github.com/dinefind/dinefind/internal/app/domain/interaction"
	"github.com/dinefind/dinefind/internal/app/domain/llm"
	"github.com/dinefind/dinefind/internal/app/domain/places"
	"github.com/dinefind/dinefind/internal/app/domain/search"
	"github.com/dinefind/dinefind/internal/app/domain/websearch"
	"github.com/dinefind/dinefind/internal/app/handlers"
	"github.com/dinefind/dinefind/internal/app/session"
	"github.com/dinefind/dinefind/internal/db"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/pkg/redis"
)

// Server owns every long-lived dependency of the API process. Postgres and
// Redis are optional collaborators; the pipeline runs without them with
// auditing and shared enrichment caching disabled.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	dbPool *pgxpool.Pool
	redis  *redis.Client
	caches *cache.CacheManager
	store  *interaction.Store
	hub    *session.Hub
	enrich *enrichment.Service

	api    *handlers.SearchHandler
	ws     *session.Handler
	router http.Handler
}

// New wires the full dependency graph.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	if err := s.setupDatabase(ctx); err != nil {
		return nil, err
	}
	s.setupRedis(ctx)
	s.caches = cache.NewCacheManager(cfg.Cache, logger)
	s.store = s.newStore()

	ai, err := llm.NewGeminiClient(ctx, cfg.LLM, logger, s.store)
	if err != nil {
		return nil, fmt.Errorf("setup model client: %w", err)
	}
	classifier := classify.NewClassifier(ai, cfg, logger, classify.NewMemoizer(cfg))
	provider := places.NewGoogleProvider(cfg, s.caches, logger)
	geocoder := places.NewGoogleGeocoder(cfg, s.caches, logger)

	s.hub = session.NewHub(cfg, logger)
	s.ws = session.NewHandler(s.hub, cfg, logger)

	resolver := enrichment.NewResolver(websearch.Select(cfg, logger), cfg.Timeouts.WebSearch, logger)
	s.enrich = enrichment.NewService(cfg, resolver, s.redis, s.caches, s.hub, logger)

	orchestrator := search.NewOrchestrator(cfg, classifier, provider, geocoder, s.enrich, s.caches, s.hub, logger)
	s.api = handlers.NewSearchHandler(cfg, orchestrator, s.hub, s.store, s.caches, logger)
	if s.dbPool != nil {
		s.api.AddDependencyPing("postgres", s.dbPool.Ping)
	}
	if s.redis != nil {
		s.api.AddDependencyPing("redis", s.redis.Ping)
	}

	return s, nil
}

func (s *Server) setupDatabase(ctx context.Context) error {
	if s.cfg.Postgres.URL == "" {
		s.logger.Info("DATABASE_URL not set, interaction auditing disabled")
		return nil
	}
	pool, err := db.NewPool(ctx, s.cfg.Postgres)
	if err != nil {
		return fmt.Errorf("setup database: %w", err)
	}
	if !db.WaitForDB(ctx, pool, s.logger) {
		pool.Close()
		return fmt.Errorf("database did not become ready")
	}
	if err := db.RunMigrations(s.cfg.Postgres.URL, s.logger); err != nil {
		pool.Close()
		return fmt.Errorf("setup database: %w", err)
	}
	s.dbPool = pool
	return nil
}

func (s *Server) setupRedis(ctx context.Context) {
	if s.cfg.Redis.URL == "" {
		s.logger.Info("REDIS_URL not set, shared enrichment cache disabled")
		return
	}
	client, err := redis.Connect(s.cfg.Redis.URL)
	if err != nil {
		s.logger.Warn("Redis unavailable, shared enrichment cache disabled", zap.Error(err))
		return
	}
	if err := client.Ping(ctx); err != nil {
		s.logger.Warn("Redis ping failed, shared enrichment cache disabled", zap.Error(err))
		_ = client.Close()
		return
	}
	s.redis = client
}

func (s *Server) newStore() *interaction.Store {
	if s.dbPool == nil {
		return interaction.NewStore(nil, s.logger)
	}
	return interaction.NewStore(s.dbPool, s.logger)
}

// SetRouter sets the HTTP handler served by HTTPServer.
func (s *Server) SetRouter(router http.Handler) {
	s.router = router
}

// HTTPServer builds the main listener. Write timeout stays generous because
// the search pipeline can legitimately run close to its total deadline.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      s.router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Close releases every owned resource in dependency order.
func (s *Server) Close() {
	if s.enrich != nil {
		s.enrich.Stop()
	}
	if s.hub != nil {
		s.hub.Stop()
	}
	if s.store != nil {
		s.store.Flush()
	}
	if s.caches != nil {
		s.caches.Stop()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	if s.dbPool != nil {
		s.dbPool.Close()
	}
}
