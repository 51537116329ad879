package metrics

import (
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/pkg/logger"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	SearchRequestsTotal  metric.Int64Counter
	PipelineStageSeconds metric.Float64Histogram
	LLMCallSeconds       metric.Float64Histogram
	ProviderCallSeconds  metric.Float64Histogram

	CacheHitsTotal   metric.Int64Counter
	CacheMissesTotal metric.Int64Counter

	EnrichmentQueueDepth metric.Int64UpDownCounter
	EnrichmentJobsTotal  metric.Int64Counter

	WSConnectionsActive    metric.Int64UpDownCounter
	WSSubscriptionsActive  metric.Int64UpDownCounter
	WSPendingSubscriptions metric.Int64Counter
	WSMessagesPublished    metric.Int64Counter
	WSMessagesBacklogged   metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// Init creates the instruments from the globally configured MeterProvider.
// Call after the provider is set up; calling earlier binds no-op instruments.
func Init() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("dinefind-api")
		m := &AppMetrics{}

		m.SearchRequestsTotal = mustCounter(meter, "search_requests_total",
			"Total number of search requests accepted", "{request}")
		m.PipelineStageSeconds = mustHistogram(meter, "pipeline_stage_duration_seconds",
			"Duration of each search pipeline stage in seconds")
		m.LLMCallSeconds = mustHistogram(meter, "llm_call_duration_seconds",
			"Duration of model calls in seconds")
		m.ProviderCallSeconds = mustHistogram(meter, "places_provider_call_duration_seconds",
			"Duration of places provider calls in seconds")

		m.CacheHitsTotal = mustCounter(meter, "cache_hits_total",
			"Total cache hits by namespace", "{hit}")
		m.CacheMissesTotal = mustCounter(meter, "cache_misses_total",
			"Total cache misses by namespace", "{miss}")

		m.EnrichmentQueueDepth = mustUpDown(meter, "enrichment_queue_depth",
			"Queued deep link resolution jobs by provider")
		m.EnrichmentJobsTotal = mustCounter(meter, "enrichment_jobs_total",
			"Completed deep link resolution jobs by provider and outcome", "{job}")

		m.WSConnectionsActive = mustUpDown(meter, "ws_connections_active",
			"Open websocket connections")
		m.WSSubscriptionsActive = mustUpDown(meter, "ws_subscriptions_active",
			"Active websocket subscriptions")
		m.WSPendingSubscriptions = mustCounter(meter, "ws_pending_subscriptions_total",
			"Subscribes accepted before their job existed", "{subscription}")
		m.WSMessagesPublished = mustCounter(meter, "ws_messages_published_total",
			"Frames delivered to websocket subscribers", "{message}")
		m.WSMessagesBacklogged = mustCounter(meter, "ws_messages_backlogged_total",
			"Frames stored for subscriber-less keys", "{message}")

		appMetrics = m
	})
}

// Get returns the instruments, initializing them lazily. Lazy callers that
// run before the MeterProvider is configured get no-op instruments, which is
// what tests want.
func Get() *AppMetrics {
	if appMetrics == nil {
		Init()
	}
	return appMetrics
}

func mustCounter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name,
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	)
	if err != nil {
		logger.Get().Fatal("Failed to create counter instrument", zap.String("name", name), zap.Error(err))
	}
	return c
}

func mustHistogram(meter metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name,
		metric.WithDescription(desc),
		metric.WithUnit("s"),
	)
	if err != nil {
		logger.Get().Fatal("Failed to create histogram instrument", zap.String("name", name), zap.Error(err))
	}
	return h
}

func mustUpDown(meter metric.Meter, name, desc string) metric.Int64UpDownCounter {
	c, err := meter.Int64UpDownCounter(name,
		metric.WithDescription(desc),
	)
	if err != nil {
		logger.Get().Fatal("Failed to create updown instrument", zap.String("name", name), zap.Error(err))
	}
	return c
}
