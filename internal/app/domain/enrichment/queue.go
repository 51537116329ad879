package enrichment

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/observability/metrics"
)

const queueCap = 100

// resolveJob is one deep-link resolution unit of work.
type resolveJob struct {
	requestID string
	placeID   string
	name      string
	city      string
}

// jobQueue is a bounded per-provider FIFO with in-queue placeId dedup.
// One worker drains it, so resolution per provider is strictly serial.
type jobQueue struct {
	provider string
	ch       chan resolveJob
	mu       sync.Mutex
	queued   map[string]struct{}
	logger   *zap.Logger
}

func newJobQueue(provider string, logger *zap.Logger) *jobQueue {
	return &jobQueue{
		provider: provider,
		ch:       make(chan resolveJob, queueCap),
		queued:   make(map[string]struct{}),
		logger:   logger,
	}
}

// enqueue admits a job unless the placeId is already waiting or the queue
// is full. Never blocks.
func (q *jobQueue) enqueue(j resolveJob) bool {
	q.mu.Lock()
	if _, dup := q.queued[j.placeID]; dup {
		q.mu.Unlock()
		q.logger.Debug("deeplink_deduplicated",
			zap.String("provider", q.provider),
			zap.String("place_id", j.placeID),
		)
		return false
	}

	select {
	case q.ch <- j:
		q.queued[j.placeID] = struct{}{}
		q.mu.Unlock()
		metrics.Get().EnrichmentQueueDepth.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("provider", q.provider)))
		return true
	default:
		q.mu.Unlock()
		q.logger.Warn("Deep link queue full, job dropped",
			zap.String("provider", q.provider),
			zap.String("place_id", j.placeID),
		)
		return false
	}
}

// taken marks a dequeued job as no longer in the queue.
func (q *jobQueue) taken(j resolveJob) {
	q.mu.Lock()
	delete(q.queued, j.placeID)
	q.mu.Unlock()
	metrics.Get().EnrichmentQueueDepth.Add(context.Background(), -1,
		metric.WithAttributes(attribute.String("provider", q.provider)))
}
