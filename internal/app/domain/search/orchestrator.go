package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dinefind/dinefind/internal/app/domain/llm"
	"github.com/dinefind/dinefind/internal/app/domain/places"
	"github.com/dinefind/dinefind/internal/app/domain/ranking"
	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/app/observability/metrics"
	"github.com/dinefind/dinefind/internal/app/session"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/pkg/lang"
)

// StageClassifier is the model-driven stage surface the orchestrator calls.
type StageClassifier interface {
	Gate(ctx context.Context, query string) models.GateResult
	Intent(ctx context.Context, query, gateLanguage, ctxHash string) (*models.IntentResult, error)
	PlanRoute(ctx context.Context, query string, intent *models.IntentResult, filters *models.FinalSharedFilters, userLocation *models.LatLng) (*models.ProviderCallPlan, error)
	Constraints(ctx context.Context, query, language, ctxHash string) (*models.PostConstraints, error)
}

// Enricher annotates results with delivery deep-link slots and streams
// patches as resolutions finish.
type Enricher interface {
	Annotate(ctx context.Context, requestID, city string, results []models.RestaurantResult)
}

// Orchestrator drives one search request through the staged pipeline: gate,
// intent, route planning and constraint extraction, the places provider,
// city and constraint filtering, ranking, failure detection and enrichment.
// Every request produces exactly one SearchResponse.
type Orchestrator struct {
	cfg        *config.Config
	classifier StageClassifier
	provider   places.Provider
	geocoder   places.Geocoder
	normalizer *places.Normalizer
	ranker     *ranking.Ranker
	caches     *cache.CacheManager
	enricher   Enricher
	publisher  session.Publisher
	logger     *zap.Logger
}

// NewOrchestrator wires the pipeline. enricher and publisher may be nil;
// enrichment and event streaming are then skipped.
func NewOrchestrator(
	cfg *config.Config,
	classifier StageClassifier,
	provider places.Provider,
	geocoder places.Geocoder,
	enricher Enricher,
	caches *cache.CacheManager,
	publisher session.Publisher,
	logger *zap.Logger,
) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cfg:        cfg,
		classifier: classifier,
		provider:   provider,
		geocoder:   geocoder,
		normalizer: places.NewNormalizer(logger),
		ranker:     ranking.NewRanker(logger),
		caches:     caches,
		enricher:   enricher,
		publisher:  publisher,
		logger:     logger,
	}
}

// runState accumulates per-request pipeline state so response assembly sees
// one place for timings, filters and cache-hit bookkeeping.
type runState struct {
	req       models.SearchRequest
	start     time.Time
	timings   models.StageTimings
	filters   *models.FinalSharedFilters
	signals   failureSignals
	cacheHits map[string]bool
	fetched   int
}

func (st *runState) uiLanguage() string {
	if st.filters != nil {
		return st.filters.UILanguage
	}
	return "en"
}

// Run executes the whole pipeline under the total deadline and returns the
// response it also publishes to the request's search channel.
func (o *Orchestrator) Run(ctx context.Context, req models.SearchRequest) *models.SearchResponse {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Total)
	defer cancel()

	st := &runState{
		req:       req,
		start:     time.Now(),
		cacheHits: make(map[string]bool),
	}
	o.publish(req.RequestID, session.NewStatus(req.RequestID, session.StatusPending))

	detected := lang.DetectLanguage(req.Query)
	deviceRegion := lang.SanitizeRegionCode(req.UserRegionCode)

	// Stage 1: gate. STOP and ASK_CLARIFY short-circuit before any further
	// model spend.
	gateStart := time.Now()
	gate := o.classifier.Gate(ctx, req.Query)
	st.timings.Gate = o.stageMs("gate", gateStart)

	uiLang := earlyUILanguage(gate, detected)
	switch gate.Route {
	case models.GateStop:
		return o.clarify(st, models.Assist{
			Type:         models.AssistClarify,
			Reason:       "not_food",
			Message:      msgNotFood.in(uiLang),
			BlocksSearch: true,
		})
	case models.GateAskClarify:
		return o.clarify(st, models.Assist{
			Type:     models.AssistClarify,
			Reason:   "ambiguous_query",
			Question: msgTooShort.in(uiLang),
		})
	}

	// Stage 2: intent.
	intentStart := time.Now()
	intent, err := o.classifier.Intent(ctx, req.Query, gate.Language, "")
	st.timings.Intent = o.stageMs("intent", intentStart)
	if err != nil {
		o.logger.Error("Intent stage failed",
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
		st.filters = resolveSharedFilters(detected, deviceRegion, gate, &models.IntentResult{}, o.cfg.Search.DefaultRegion)
		return o.recover(st, stageFailure(err))
	}
	if intent.Clarify != nil {
		return o.clarify(st, models.Assist{
			Type:     models.AssistClarify,
			Reason:   "intent_clarify",
			Question: intent.Clarify.Question,
			Choices:  intent.Clarify.Choices,
		})
	}

	st.filters = resolveSharedFilters(detected, deviceRegion, gate, intent, o.cfg.Search.DefaultRegion)
	st.signals.intentConfidence = intent.Confidence

	// Early guards. The region code never anchors a text search on its own;
	// only a user location or an extracted city does.
	if assist := o.earlyGuard(st, intent); assist != nil {
		return o.clarify(st, *assist)
	}

	// Stage 3: route planning and constraint extraction, concurrently.
	// Constraint failure degrades to an unconstrained pass; a planning
	// failure ends the request.
	o.logger.Info("google_parallel_start_decision",
		zap.String("route", string(intent.Route)),
		zap.Bool("hasLocation", req.UserLocation != nil),
		zap.Bool("allowed", true),
	)
	var (
		plan        *models.ProviderCallPlan
		constraints *models.PostConstraints
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		routeStart := time.Now()
		p, planErr := o.classifier.PlanRoute(gctx, req.Query, intent, st.filters, req.UserLocation)
		st.timings.RouteLLM = o.stageMs("route_llm", routeStart)
		if planErr != nil {
			return planErr
		}
		plan = p
		return nil
	})
	g.Go(func() error {
		c, cErr := o.classifier.Constraints(gctx, req.Query, st.filters.ProviderLanguage, "")
		if cErr != nil {
			o.logger.Warn("Constraint extraction degraded",
				zap.String("kind", string(llm.KindOf(cErr))),
				zap.Error(cErr),
			)
			return nil
		}
		constraints = c
		return nil
	})
	if err := g.Wait(); err != nil {
		o.logger.Error("Route planning failed", zap.Error(err))
		return o.recover(st, stageFailure(err))
	}

	// Late anchor guard: a planned text search with neither a bias circle
	// nor a city cannot be scoped and goes back to the user.
	if plan.Route == models.RouteTextSearch && plan.TextSearch.Bias == nil && plan.CityText == nil {
		return o.clarify(st, models.Assist{
			Type:     models.AssistClarify,
			Reason:   "no_search_anchor",
			Question: msgAskAnchor.in(st.uiLanguage()),
		})
	}

	mergeConstraints(st.filters, constraints)
	liveData := intent.Hybrid.OpenNowRequested || st.filters.OpenState != nil
	st.signals.liveDataWanted = liveData

	// Stage 4: provider call.
	providerStart := time.Now()
	pool, explicit := o.callProvider(ctx, plan, intent, liveData)
	st.timings.Provider = o.stageMs("provider", providerStart)
	st.fetched = len(pool)
	if explicit != models.FailureNone {
		st.signals.explicitReason = explicit
		if explicit.IsCritical() || len(pool) == 0 {
			return o.recover(st, detectFailure(st.signals))
		}
	}

	// Stage 5: city filter, when the plan carries a city.
	if plan.CityText != nil && len(pool) > 0 {
		pool = o.applyCityScope(ctx, st, pool, *plan.CityText, plan.Region)
	}

	// Stage 6: constraint post-filter.
	postStart := time.Now()
	pool = applyPostFilter(pool, st.filters, constraints, time.Now())
	st.timings.PostFilter = o.stageMs("post_filter", postStart)

	// Stage 7: rank.
	rankStart := time.Now()
	ranked := o.rank(st, pool, intent, constraints)
	st.timings.Rank = o.stageMs("rank", rankStart)

	// Stage 8: failure detection over the finished pool.
	st.signals.resultCount = len(ranked)
	st.signals.topUnknownOpen = topResultsUnknownOpen(ranked, 3)
	reason := detectFailure(st.signals)
	if reason.IsCritical() {
		return o.recover(st, reason)
	}

	// Stage 9: enrichment on the visible window, then assembly.
	pagination := o.paginate(st.fetched, len(ranked))
	visible := ranked[:pagination.ReturnedCount]
	if o.enricher != nil {
		o.enricher.Annotate(ctx, req.RequestID, planCity(plan), visible)
	}

	resp := &models.SearchResponse{
		Results: visible,
		Assist:  models.Assist{Type: models.AssistNormal},
		Meta:    o.buildMeta(st, pagination, reason),
	}
	o.finish(st, resp, session.StatusCompleted, "results")
	return resp
}

// earlyGuard checks the pre-planning invariants and returns the clarify
// assist when one fails.
func (o *Orchestrator) earlyGuard(st *runState, intent *models.IntentResult) *models.Assist {
	uiLang := st.uiLanguage()

	if intent.Route == models.RouteNearby && st.req.UserLocation == nil {
		return &models.Assist{
			Type:         models.AssistClarify,
			Reason:       "ask_location",
			Question:     msgAskLocation.in(uiLang),
			BlocksSearch: true,
		}
	}

	if intent.Route == models.RouteTextSearch {
		hasUserLocation := st.req.UserLocation != nil
		hasCityText := intent.CityText != nil && *intent.CityText != ""
		allowed := hasUserLocation || hasCityText
		o.logger.Info("textsearch_anchor_eval",
			zap.Bool("allowed", allowed),
			zap.Bool("hasUserLocation", hasUserLocation),
			zap.Bool("hasCityText", hasCityText),
		)
		if !allowed {
			return &models.Assist{
				Type:     models.AssistClarify,
				Reason:   "no_search_anchor",
				Question: msgAskAnchor.in(uiLang),
			}
		}
	}

	// The token floor only applies to unanchored queries; a one-word query
	// with a location or city is still searchable.
	hasAnchor := st.req.UserLocation != nil ||
		(intent.CityText != nil && *intent.CityText != "")
	if !hasAnchor && tokenCount(st.req.Query) < o.cfg.Search.MinQueryTokens {
		return &models.Assist{
			Type:     models.AssistClarify,
			Reason:   "query_too_short",
			Question: msgTooShort.in(uiLang),
		}
	}
	return nil
}

// callProvider executes the plan against the places provider and maps any
// failure onto the explicit failure taxonomy.
func (o *Orchestrator) callProvider(ctx context.Context, plan *models.ProviderCallPlan, intent *models.IntentResult, liveData bool) ([]models.RestaurantResult, models.FailureReason) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.Timeouts.Provider)
	defer cancel()

	switch plan.Route {
	case models.RouteTextSearch:
		results, err := o.provider.TextSearch(ctx, places.TextSearchParams{
			Query:    plan.TextSearch.TextQuery,
			Bias:     plan.TextSearch.Bias,
			Language: plan.Language,
			Region:   plan.Region,
			LiveData: liveData,
		})
		return results, providerFailure(err)

	case models.RouteNearby:
		results, err := o.provider.NearbySearch(ctx, places.NearbyParams{
			Center:       plan.Nearby.Center,
			RadiusMeters: plan.Nearby.RadiusMeters,
			Keyword:      o.keywordFor(plan.Nearby.Keyword, intent),
			Language:     plan.Language,
			Region:       plan.Region,
			LiveData:     liveData,
		})
		return results, providerFailure(err)

	case models.RouteLandmark:
		anchor, err := o.geocoder.GeocodeLandmark(ctx, plan.Landmark.GeocodeQuery, plan.Region)
		if err != nil {
			if errors.Is(err, places.ErrNoGeocodeResult) {
				return nil, models.FailureGeocodingFailed
			}
			return nil, providerFailure(err)
		}
		results, err := o.provider.NearbySearch(ctx, places.NearbyParams{
			Center:       anchor.Location,
			RadiusMeters: plan.Landmark.RadiusMeters,
			Keyword:      o.keywordFor(plan.Landmark.Keyword, intent),
			Language:     plan.Language,
			Region:       plan.Region,
			LiveData:     liveData,
		})
		return results, providerFailure(err)
	}
	return nil, models.FailureProviderError
}

// keywordFor normalizes the planned keyword into provider-preferred phrasing,
// falling back to the canonical category when the plan left it empty.
func (o *Orchestrator) keywordFor(planned string, intent *models.IntentResult) string {
	if planned == "" {
		planned = intent.CanonicalCategory
	}
	return o.normalizer.ToProviderQuery(planned)
}

// applyCityScope geocodes the plan's city and trims the pool around it. A
// geocoding failure keeps the pool intact and records the signal for the
// failure detector.
func (o *Orchestrator) applyCityScope(ctx context.Context, st *runState, pool []models.RestaurantResult, city, region string) []models.RestaurantResult {
	centroid, err := o.geocoder.GeocodeCity(ctx, city, region)
	if err != nil {
		o.logger.Warn("City geocoding failed, keeping unscoped pool",
			zap.String("city", city),
			zap.Error(err),
		)
		st.signals.geocodeFailed = true
		return pool
	}
	return filterByCity(pool, centroid.Location, st.filters.StrictCity, o.cfg.Search.MinCityResults, o.logger)
}

// rank orders the pool, consulting the ranked-pool cache first. The cache
// key covers the pool membership, the weight profile, the rounded user
// location and the score-only preferences so annotations never leak between
// callers.
func (o *Orchestrator) rank(st *runState, pool []models.RestaurantResult, intent *models.IntentResult, constraints *models.PostConstraints) []models.RestaurantResult {
	profile := ranking.SelectProfile(st.req.UserLocation != nil, intent.Hybrid)
	prefs := rankingPrefs(intent, constraints)
	ranking.ApplyPrefs(pool, prefs)

	key := cache.RankKey(poolHash(pool), rankContextHash(profile, st.req.UserLocation, st.filters.ProviderLanguage, prefs))
	if cached, ok := o.caches.Ranking.Get(key); ok {
		st.cacheHits["rank"] = true
		metrics.Get().CacheHitsTotal.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("cache", "ranking")))
		return cached
	}
	st.cacheHits["rank"] = false
	metrics.Get().CacheMissesTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("cache", "ranking")))

	ranked := o.ranker.Rank(pool, profile, st.req.UserLocation)
	o.caches.Ranking.Set(key, ranked)
	return ranked
}

// paginate computes the visible window over the ranked pool.
func (o *Orchestrator) paginate(fetched, rankedLen int) models.Pagination {
	available := rankedLen
	if available > o.cfg.Search.MaxResults {
		available = o.cfg.Search.MaxResults
	}
	returned := o.cfg.Search.InitialResults
	if returned > available {
		returned = available
	}
	return models.Pagination{
		FetchedCount:   fetched,
		ReturnedCount:  returned,
		AvailableCount: available,
		NextIncrement:  o.cfg.Search.ResultStep,
		MaxVisible:     o.cfg.Search.MaxResults,
	}
}

func (o *Orchestrator) clarify(st *runState, assist models.Assist) *models.SearchResponse {
	resp := &models.SearchResponse{
		Results: []models.RestaurantResult{},
		Assist:  assist,
		Meta:    o.buildMeta(st, models.Pagination{MaxVisible: o.cfg.Search.MaxResults}, models.FailureNone),
	}
	o.finish(st, resp, session.StatusCompleted, "clarify")
	return resp
}

func (o *Orchestrator) recover(st *runState, reason models.FailureReason) *models.SearchResponse {
	resp := &models.SearchResponse{
		Results: []models.RestaurantResult{},
		Assist: models.Assist{
			Type:    models.AssistRecover,
			Reason:  string(reason),
			Message: recoverMessage(reason, st.uiLanguage()),
		},
		Meta: o.buildMeta(st, models.Pagination{MaxVisible: o.cfg.Search.MaxResults}, reason),
	}
	o.finish(st, resp, session.StatusFailed, "recover")
	return resp
}

func (o *Orchestrator) buildMeta(st *runState, pagination models.Pagination, reason models.FailureReason) models.Meta {
	st.timings.Total = time.Since(st.start).Milliseconds()
	meta := models.Meta{
		Source:          "google_places",
		PipelineVersion: o.cfg.Search.PipelineVersion,
		FailureReason:   reason,
		TimingsMs:       st.timings,
		Pagination:      pagination,
		CacheHits:       st.cacheHits,
	}
	if st.filters != nil {
		meta.RegionSource = st.filters.Sources["region"]
		meta.LanguageSource = st.filters.Sources["language"]
		meta.FilterSources = st.filters.Sources
	}
	return meta
}

func (o *Orchestrator) finish(st *runState, resp *models.SearchResponse, status, outcome string) {
	metrics.Get().SearchRequestsTotal.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("outcome", outcome)))

	o.publish(st.req.RequestID, session.NewResults(st.req.RequestID, resp))
	o.publish(st.req.RequestID, session.NewStatus(st.req.RequestID, status))

	o.logger.Info("search_completed",
		zap.String("request_id", st.req.RequestID),
		zap.String("outcome", outcome),
		zap.String("failure_reason", string(resp.Meta.FailureReason)),
		zap.Int("returned", len(resp.Results)),
		zap.Int64("total_ms", resp.Meta.TimingsMs.Total),
	)
}

func (o *Orchestrator) publish(requestID string, msg session.ServerMessage) {
	if o.publisher == nil || requestID == "" {
		return
	}
	o.publisher.Publish(session.ChannelSearch, requestID, msg)
}

// stageMs records one stage duration and returns it in milliseconds.
func (o *Orchestrator) stageMs(stage string, start time.Time) int64 {
	elapsed := time.Since(start)
	metrics.Get().PipelineStageSeconds.Record(context.Background(), elapsed.Seconds(),
		metric.WithAttributes(attribute.String("stage", stage)))
	return elapsed.Milliseconds()
}

// earlyUILanguage picks the assist language before shared filters exist.
func earlyUILanguage(gate models.GateResult, detected lang.Language) string {
	if gate.Language == "he" || detected == lang.LangHebrew {
		return "he"
	}
	return "en"
}

// stageFailure maps a classifier stage error onto the failure taxonomy.
func stageFailure(err error) models.FailureReason {
	switch llm.KindOf(err) {
	case llm.KindTimeout:
		return models.FailureTimeout
	case llm.KindQuota:
		return models.FailureQuotaExceeded
	default:
		return models.FailureProviderError
	}
}

// providerFailure maps a places call error; nil maps to NONE.
func providerFailure(err error) models.FailureReason {
	switch {
	case err == nil:
		return models.FailureNone
	case errors.Is(err, context.DeadlineExceeded):
		return models.FailureTimeout
	default:
		return models.FailureProviderError
	}
}

func planCity(plan *models.ProviderCallPlan) string {
	if plan.CityText != nil {
		return *plan.CityText
	}
	return ""
}

func tokenCount(query string) int {
	return len(strings.Fields(query))
}

// poolHash identifies a pool by its member place IDs in provider order.
func poolHash(pool []models.RestaurantResult) string {
	ids := make([]string, len(pool))
	for i, r := range pool {
		ids[i] = r.PlaceID
	}
	return llm.HashText(strings.Join(ids, ","))
}

// rankContextHash keys the ranking inputs that change scores: the profile,
// the caller's rounded location, the provider language and the score-only
// preferences.
func rankContextHash(profile ranking.Profile, userLocation *models.LatLng, language string, prefs ranking.Prefs) string {
	loc := "none"
	if userLocation != nil {
		loc = fmt.Sprintf("%.4f,%.4f", userLocation.Lat, userLocation.Lng)
	}
	key, err := cache.NewCacheKeyBuilder().
		Add("profile", string(profile)).
		Add("location", loc).
		AddLanguage(language).
		AddFilters(prefs.Fingerprint()).
		Build()
	if err != nil {
		return llm.HashText(string(profile) + "|" + loc + "|" + language + "|" + prefs.Fingerprint())
	}
	return key
}

// rankingPrefs collects the score-only preferences: the intent's cuisine key
// plus every dietary or accessibility flag the constraints stage extracted
// as explicitly requested.
func rankingPrefs(intent *models.IntentResult, c *models.PostConstraints) ranking.Prefs {
	prefs := ranking.Prefs{CuisineKey: intent.Hybrid.CuisineKey}
	if c == nil {
		return prefs
	}
	if c.IsKosher != nil && *c.IsKosher {
		prefs.RequiredTags = append(prefs.RequiredTags, "kosher")
	}
	if c.IsGlutenFree != nil && *c.IsGlutenFree {
		prefs.RequiredTags = append(prefs.RequiredTags, "gluten_free")
	}
	if c.Requirements.Accessible != nil && *c.Requirements.Accessible {
		prefs.RequiredTags = append(prefs.RequiredTags, "wheelchair_accessible")
	}
	if c.Requirements.Parking != nil && *c.Requirements.Parking {
		prefs.RequiredTags = append(prefs.RequiredTags, "parking")
	}
	return prefs
}
