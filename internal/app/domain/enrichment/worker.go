package enrichment

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/app/observability/metrics"
	"github.com/dinefind/dinefind/internal/pkg/cache"
)

// runWorker drains one provider queue until Stop.
func (s *Service) runWorker(spec ProviderSpec, q *jobQueue) {
	for {
		select {
		case <-s.done:
			return
		case job := <-q.ch:
			q.taken(job)
			s.process(spec, job)
		}
	}
}

// process resolves one job end to end: re-verify the lock, search, write
// the record, release the lock, patch the subscriber. A panic anywhere in
// resolution still patches the slot so clients never hang on PENDING.
func (s *Service) process(spec ProviderSpec, job resolveJob) {
	outcome := "not_found"
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Deep link worker panic",
				zap.String("provider", spec.Name),
				zap.String("place_id", job.placeID),
				zap.Any("panic", r),
			)
			s.publishPatch(job.requestID, job.placeID, spec.Name, models.DeepLinkRecord{
				Status:    models.EnrichmentNotFound,
				UpdatedAt: time.Now(),
			})
			outcome = "panic"
		}
		metrics.Get().EnrichmentJobsTotal.Add(context.Background(), 1,
			metric.WithAttributes(
				attribute.String("provider", spec.Name),
				attribute.String("outcome", outcome),
			))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Timeouts.EnrichmentJob)
	defer cancel()

	// The lock may have expired while the job sat queued; if someone else
	// holds it now, their resolution wins.
	lockKey := cache.ProviderLockKey(spec.Name, job.placeID)
	if held, err := s.redis.Raw().Exists(ctx, lockKey).Result(); err != nil || held == 0 {
		if err != nil {
			s.logger.Warn("Lock re-verify failed", zap.String("key", lockKey), zap.Error(err))
		}
		outcome = "lock_lost"
		return
	}

	url, found := s.resolver.Resolve(ctx, spec, job.name, job.city)
	if ctx.Err() != nil {
		// Timed-out work must not poison the cache with a partial answer.
		outcome = "timeout"
		return
	}

	rec := models.DeepLinkRecord{Status: models.EnrichmentNotFound, UpdatedAt: time.Now()}
	if found {
		rec.Status = models.EnrichmentFound
		rec.URL = &url
		outcome = "found"
	}

	key := cache.ProviderKey(spec.Name, job.placeID)
	ttl := s.mirrorTTL(rec.Status)
	if err := s.redis.SetJSON(ctx, key, rec, ttl); err != nil {
		s.logger.Warn("Deep link record write failed", zap.String("key", key), zap.Error(err))
	}
	s.caches.DeepLink.SetWithTTL(key, rec, ttl)

	if err := s.redis.Del(ctx, lockKey); err != nil {
		s.logger.Debug("Lock release failed, will expire on its own", zap.Error(err))
	}

	s.publishPatch(job.requestID, job.placeID, spec.Name, rec)
}
