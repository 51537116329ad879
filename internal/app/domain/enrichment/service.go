package enrichment

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/app/session"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/pkg/redis"
)

const (
	lockTTL     = 60 * time.Second
	foundTTL    = 7 * 24 * time.Hour
	notFoundTTL = 24 * time.Hour
)

// Service owns deep-link enrichment: cache-first slot annotation on the
// search response, then asynchronous resolution through per-provider
// queues. Nothing in here ever blocks a search response.
type Service struct {
	cfg       *config.Config
	providers []ProviderSpec
	resolver  *Resolver
	redis     *redis.Client
	caches    *cache.CacheManager
	publisher session.Publisher
	queues    map[string]*jobQueue
	logger    *zap.Logger
	done      chan struct{}
}

func NewService(
	cfg *config.Config,
	resolver *Resolver,
	rdb *redis.Client,
	caches *cache.CacheManager,
	publisher session.Publisher,
	logger *zap.Logger,
) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		cfg:       cfg,
		providers: Registry(cfg.Features),
		resolver:  resolver,
		redis:     rdb,
		caches:    caches,
		publisher: publisher,
		queues:    make(map[string]*jobQueue),
		logger:    logger,
		done:      make(chan struct{}),
	}
	for _, spec := range s.providers {
		q := newJobQueue(spec.Name, logger)
		s.queues[spec.Name] = q
		go s.runWorker(spec, q)
	}
	return s
}

// Stop terminates the provider workers. In-flight jobs finish.
func (s *Service) Stop() {
	close(s.done)
}

// Annotate fills provider slots on each result from cache and schedules
// resolution for the misses. Fresh cached records land in the response
// directly; misses are marked PENDING and patched later over the session
// channel.
func (s *Service) Annotate(ctx context.Context, requestID, city string, results []models.RestaurantResult) {
	if len(s.providers) == 0 {
		return
	}

	for i := range results {
		if results[i].Providers == nil {
			results[i].Providers = make(map[string]*models.ProviderSlot, len(s.providers))
		}
		for _, spec := range s.providers {
			results[i].Providers[spec.Name] = s.slotFor(ctx, requestID, spec, &results[i], city)
		}
	}
}

// slotFor resolves one (provider, place) slot: cached record, or PENDING
// plus a scheduled job.
func (s *Service) slotFor(ctx context.Context, requestID string, spec ProviderSpec, result *models.RestaurantResult, city string) *models.ProviderSlot {
	if rec, ok := s.lookup(ctx, spec.Name, result.PlaceID); ok {
		s.logger.Debug("deeplink_cache_hit",
			zap.String("provider", spec.Name),
			zap.String("place_id", result.PlaceID),
		)
		updatedAt := rec.UpdatedAt
		return &models.ProviderSlot{Status: rec.Status, URL: rec.URL, UpdatedAt: &updatedAt}
	}

	s.schedule(ctx, requestID, spec, result, city)
	return &models.ProviderSlot{Status: models.EnrichmentPending}
}

// lookup is cache-first across tiers: shared cache, then the local mirror.
// Shared hits refresh the mirror.
func (s *Service) lookup(ctx context.Context, provider, placeID string) (models.DeepLinkRecord, bool) {
	key := cache.ProviderKey(provider, placeID)

	if s.redis != nil {
		var rec models.DeepLinkRecord
		found, err := s.redis.GetJSON(ctx, key, &rec)
		if err != nil {
			s.logger.Warn("Shared cache read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			s.caches.DeepLink.SetWithTTL(key, rec, s.mirrorTTL(rec.Status))
			return rec, true
		}
	}

	return s.caches.DeepLink.Get(key)
}

// schedule claims the resolution lock and enqueues the job. Without a
// shared cache there is no cross-instance lock and no resolution either;
// the slot is immediately patched NOT_FOUND so clients never wait on a
// PENDING that cannot complete.
func (s *Service) schedule(ctx context.Context, requestID string, spec ProviderSpec, result *models.RestaurantResult, city string) {
	if s.redis == nil {
		s.publishPatch(requestID, result.PlaceID, spec.Name, models.DeepLinkRecord{
			Status:    models.EnrichmentNotFound,
			UpdatedAt: time.Now(),
		})
		return
	}

	lockKey := cache.ProviderLockKey(spec.Name, result.PlaceID)
	won, err := s.redis.SetNX(ctx, lockKey, "1", lockTTL)
	if err != nil {
		s.logger.Warn("Lock claim failed", zap.String("key", lockKey), zap.Error(err))
		return
	}
	if !won {
		// Another instance is already resolving this slot.
		s.logger.Debug("deeplink_lock_busy",
			zap.String("provider", spec.Name),
			zap.String("place_id", result.PlaceID),
		)
		return
	}

	s.queues[spec.Name].enqueue(resolveJob{
		requestID: requestID,
		placeID:   result.PlaceID,
		name:      result.Name,
		city:      city,
	})
}

func (s *Service) publishPatch(requestID, placeID, provider string, rec models.DeepLinkRecord) {
	if s.publisher == nil {
		return
	}
	updatedAt := rec.UpdatedAt
	slot := models.ProviderSlot{Status: rec.Status, URL: rec.URL, UpdatedAt: &updatedAt}
	s.publisher.Publish(session.ChannelSearch, requestID,
		session.NewResultPatch(requestID, placeID, provider, slot))
}

func (s *Service) mirrorTTL(status models.EnrichmentStatus) time.Duration {
	if status == models.EnrichmentFound {
		return foundTTL
	}
	return notFoundTTL
}
