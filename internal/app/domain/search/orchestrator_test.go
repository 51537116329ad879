package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/llm"
	"github.com/dinefind/dinefind/internal/app/domain/places"
	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/app/session"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

type fakeClassifier struct {
	gate           models.GateResult
	intent         *models.IntentResult
	intentErr      error
	plan           *models.ProviderCallPlan
	planErr        error
	constraints    *models.PostConstraints
	constraintsErr error
}

func (f *fakeClassifier) Gate(context.Context, string) models.GateResult { return f.gate }

func (f *fakeClassifier) Intent(context.Context, string, string, string) (*models.IntentResult, error) {
	return f.intent, f.intentErr
}

func (f *fakeClassifier) PlanRoute(context.Context, string, *models.IntentResult, *models.FinalSharedFilters, *models.LatLng) (*models.ProviderCallPlan, error) {
	return f.plan, f.planErr
}

func (f *fakeClassifier) Constraints(context.Context, string, string, string) (*models.PostConstraints, error) {
	return f.constraints, f.constraintsErr
}

type fakeProvider struct {
	mu          sync.Mutex
	results     []models.RestaurantResult
	err         error
	textCalls   int
	nearbyCalls int
	lastText    places.TextSearchParams
	lastNearby  places.NearbyParams
}

func (f *fakeProvider) TextSearch(_ context.Context, p places.TextSearchParams) ([]models.RestaurantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.textCalls++
	f.lastText = p
	return f.results, f.err
}

func (f *fakeProvider) NearbySearch(_ context.Context, p places.NearbyParams) ([]models.RestaurantResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nearbyCalls++
	f.lastNearby = p
	return f.results, f.err
}

func (f *fakeProvider) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.textCalls + f.nearbyCalls
}

type fakeGeocoder struct {
	city        *models.GeocodeResult
	cityErr     error
	landmark    *models.GeocodeResult
	landmarkErr error
}

func (f *fakeGeocoder) GeocodeCity(context.Context, string, string) (*models.GeocodeResult, error) {
	return f.city, f.cityErr
}

func (f *fakeGeocoder) GeocodeLandmark(context.Context, string, string) (*models.GeocodeResult, error) {
	return f.landmark, f.landmarkErr
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []session.ServerMessage
}

func (p *recordingPublisher) Publish(_ session.Channel, _ string, msg session.ServerMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.msgs))
	for i, m := range p.msgs {
		out[i] = m.Type
	}
	return out
}

func (p *recordingPublisher) statuses() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.msgs {
		if m.Type == session.TypeStatus {
			out = append(out, m.Status)
		}
	}
	return out
}

type recordingEnricher struct {
	mu      sync.Mutex
	city    string
	results int
	calls   int
}

func (e *recordingEnricher) Annotate(_ context.Context, _ string, city string, results []models.RestaurantResult) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	e.city = city
	e.results = len(results)
}

func searchTestConfig() *config.Config {
	return &config.Config{
		Timeouts: config.TimeoutsConfig{
			Total:    5 * time.Second,
			Provider: 2 * time.Second,
		},
		Cache: config.CacheConfig{
			GeocodingSize: 10, GeocodingTTL: time.Minute,
			PlacesSize: 10, PlacesStatic: time.Minute, PlacesLive: time.Minute,
			RankingSize: 10, RankingTTL: time.Minute,
		},
		Search: config.SearchConfig{
			PipelineVersion: "v1",
			MinCityResults:  5,
			InitialResults:  10,
			ResultStep:      5,
			MaxResults:      20,
			MinQueryTokens:  1,
			DefaultRegion:   "IL",
		},
	}
}

func newTestOrchestrator(t *testing.T, fc *fakeClassifier, fp *fakeProvider, fg *fakeGeocoder) (*Orchestrator, *recordingPublisher, *recordingEnricher) {
	t.Helper()
	cfg := searchTestConfig()
	caches := cache.NewCacheManager(cfg.Cache, zap.NewNop())
	t.Cleanup(caches.Stop)
	pub := &recordingPublisher{}
	enr := &recordingEnricher{}
	o := NewOrchestrator(cfg, fc, fp, fg, enr, caches, pub, zap.NewNop())
	return o, pub, enr
}

func continueGate(language string) models.GateResult {
	return models.GateResult{
		FoodSignal: models.FoodYes,
		Language:   language,
		Route:      models.GateContinue,
		Confidence: 0.95,
	}
}

func place(id string, lat, lng, rating float64, reviews int) models.RestaurantResult {
	return models.RestaurantResult{
		PlaceID:      id,
		Source:       "google",
		Name:         "Place " + id,
		Location:     models.LatLng{Lat: lat, Lng: lng},
		Rating:       &rating,
		ReviewsCount: &reviews,
		OpenNow:      models.OpenNow,
	}
}

func strPtr(s string) *string { return &s }

func TestGateStopShortCircuits(t *testing.T) {
	fc := &fakeClassifier{
		gate: models.GateResult{Route: models.GateStop, Language: "he", FoodSignal: models.FoodNo},
	}
	fp := &fakeProvider{}
	o, pub, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{Query: "מה מזג האוויר", RequestID: "r1"})

	assert.Equal(t, models.AssistClarify, resp.Assist.Type)
	assert.True(t, resp.Assist.BlocksSearch)
	assert.Equal(t, msgNotFood.he, resp.Assist.Message)
	assert.Empty(t, resp.Results)
	assert.Zero(t, fp.calls())
	assert.Equal(t, []string{session.StatusPending, session.StatusCompleted}, pub.statuses())
}

func TestTextSearchWithoutAnchorAsksForCity(t *testing.T) {
	fc := &fakeClassifier{
		gate: continueGate("he"),
		intent: &models.IntentResult{
			Route:             models.RouteTextSearch,
			Confidence:        0.9,
			Language:          "he",
			CanonicalCategory: "burger",
		},
	}
	fp := &fakeProvider{}
	o, _, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{Query: "ציזבורגר", RequestID: "r1"})

	assert.Equal(t, models.AssistClarify, resp.Assist.Type)
	assert.Equal(t, "no_search_anchor", resp.Assist.Reason)
	assert.Equal(t, msgAskAnchor.he, resp.Assist.Question)
	assert.False(t, resp.Assist.BlocksSearch)
	assert.Equal(t, models.FailureNone, resp.Meta.FailureReason)
	assert.Zero(t, fp.calls())
}

func TestNearbyWithoutLocationBlocks(t *testing.T) {
	fc := &fakeClassifier{
		gate: continueGate("en"),
		intent: &models.IntentResult{
			Route:      models.RouteNearby,
			Confidence: 0.9,
			Language:   "en",
		},
	}
	fp := &fakeProvider{}
	o, _, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{Query: "pizza near me", RequestID: "r1"})

	assert.Equal(t, models.AssistClarify, resp.Assist.Type)
	assert.Equal(t, "ask_location", resp.Assist.Reason)
	assert.True(t, resp.Assist.BlocksSearch)
	assert.Zero(t, fp.calls())
}

func TestIntentClarifyPassesThrough(t *testing.T) {
	fc := &fakeClassifier{
		gate: continueGate("en"),
		intent: &models.IntentResult{
			Route:      models.RouteTextSearch,
			Confidence: 0.4,
			Clarify: &models.ClarifySpec{
				Question: "Dine in or delivery?",
				Choices:  []string{"dine in", "delivery"},
			},
		},
	}
	o, _, _ := newTestOrchestrator(t, fc, &fakeProvider{}, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{Query: "food", RequestID: "r1"})

	assert.Equal(t, models.AssistClarify, resp.Assist.Type)
	assert.Equal(t, "Dine in or delivery?", resp.Assist.Question)
	assert.Equal(t, []string{"dine in", "delivery"}, resp.Assist.Choices)
}

func TestIntentErrorMapsFailureReason(t *testing.T) {
	tests := []struct {
		name string
		kind llm.ErrorKind
		want models.FailureReason
	}{
		{"timeout", llm.KindTimeout, models.FailureTimeout},
		{"quota", llm.KindQuota, models.FailureQuotaExceeded},
		{"parse error", llm.KindParseError, models.FailureProviderError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fc := &fakeClassifier{
				gate:      continueGate("en"),
				intentErr: &llm.StageError{Stage: "intent", Kind: tt.kind, Err: errors.New("boom")},
			}
			o, pub, _ := newTestOrchestrator(t, fc, &fakeProvider{}, &fakeGeocoder{})

			resp := o.Run(context.Background(), models.SearchRequest{Query: "sushi in haifa", RequestID: "r1"})

			assert.Equal(t, models.AssistRecover, resp.Assist.Type)
			assert.Equal(t, tt.want, resp.Meta.FailureReason)
			assert.NotEmpty(t, resp.Assist.Message)
			assert.Equal(t, []string{session.StatusPending, session.StatusFailed}, pub.statuses())
		})
	}
}

func TestTextSearchHappyPath(t *testing.T) {
	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate: continueGate("he"),
		intent: &models.IntentResult{
			Route:             models.RouteTextSearch,
			Confidence:        0.92,
			Language:          "he",
			CityText:          strPtr("Tel Aviv"),
			CanonicalCategory: "burger",
		},
		plan: &models.ProviderCallPlan{
			Route: models.RouteTextSearch,
			TextSearch: &models.TextSearchPlan{
				TextQuery: "hamburger restaurant",
				Bias:      &models.Circle{Center: telAviv, RadiusMeters: 3000},
			},
			CityText: strPtr("Tel Aviv"),
		},
	}
	fp := &fakeProvider{results: []models.RestaurantResult{
		place("a", 32.08, 34.78, 4.6, 900),
		place("b", 32.09, 34.77, 4.2, 300),
		place("c", 32.07, 34.79, 4.8, 2000),
	}}
	fg := &fakeGeocoder{city: &models.GeocodeResult{Location: telAviv, FormattedAddress: "Tel Aviv-Yafo, Israel"}}
	o, pub, enr := newTestOrchestrator(t, fc, fp, fg)

	resp := o.Run(context.Background(), models.SearchRequest{Query: "המבורגר בתל אביב", RequestID: "r1"})

	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	assert.Equal(t, models.FailureNone, resp.Meta.FailureReason)
	require.Len(t, resp.Results, 3)
	for _, r := range resp.Results {
		require.NotNil(t, r.CityMatch)
		assert.True(t, *r.CityMatch)
	}
	assert.Equal(t, 1, fp.textCalls)
	assert.Equal(t, "hamburger restaurant", fp.lastText.Query)

	assert.Equal(t, 3, resp.Meta.Pagination.FetchedCount)
	assert.Equal(t, 3, resp.Meta.Pagination.ReturnedCount)
	assert.Equal(t, 5, resp.Meta.Pagination.NextIncrement)
	assert.Equal(t, 20, resp.Meta.Pagination.MaxVisible)

	assert.Equal(t, 1, enr.calls)
	assert.Equal(t, "Tel Aviv", enr.city)
	assert.Equal(t, 3, enr.results)

	assert.Equal(t, []string{session.TypeStatus, session.TypeResults, session.TypeStatus}, pub.types())
	assert.Equal(t, []string{session.StatusPending, session.StatusCompleted}, pub.statuses())
}

func TestNearbyNormalizesKeyword(t *testing.T) {
	center := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate: continueGate("he"),
		intent: &models.IntentResult{
			Route:             models.RouteNearby,
			Confidence:        0.9,
			CanonicalCategory: "בשרית",
		},
		plan: &models.ProviderCallPlan{
			Route:  models.RouteNearby,
			Nearby: &models.NearbyPlan{Center: center, RadiusMeters: 1500},
		},
	}
	fp := &fakeProvider{results: []models.RestaurantResult{
		place("a", 32.08, 34.78, 4.6, 900),
		place("b", 32.09, 34.77, 4.4, 500),
		place("c", 32.07, 34.79, 4.1, 200),
	}}
	o, _, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{
		Query:        "בשרית לידי",
		RequestID:    "r1",
		UserLocation: &center,
	})

	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	assert.Equal(t, 1, fp.nearbyCalls)
	// Hebrew category leak recovers to the provider-preferred phrasing.
	assert.Equal(t, "steakhouse", fp.lastNearby.Keyword)
}

func TestLandmarkGeocodeFailureRecovers(t *testing.T) {
	fc := &fakeClassifier{
		gate: continueGate("en"),
		intent: &models.IntentResult{
			Route:        models.RouteLandmark,
			Confidence:   0.9,
			LandmarkText: strPtr("Azrieli Center"),
		},
		plan: &models.ProviderCallPlan{
			Route:    models.RouteLandmark,
			Landmark: &models.LandmarkPlan{GeocodeQuery: "Azrieli Center", RadiusMeters: 1000, Keyword: "sushi"},
		},
	}
	fg := &fakeGeocoder{landmarkErr: errors.Wrap(places.ErrNoGeocodeResult, "geocode landmark")}
	o, _, _ := newTestOrchestrator(t, fc, &fakeProvider{}, fg)

	resp := o.Run(context.Background(), models.SearchRequest{Query: "sushi near azrieli", RequestID: "r1"})

	assert.Equal(t, models.AssistRecover, resp.Assist.Type)
	assert.Equal(t, models.FailureGeocodingFailed, resp.Meta.FailureReason)
}

func TestProviderErrorRecovers(t *testing.T) {
	center := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate:   continueGate("en"),
		intent: &models.IntentResult{Route: models.RouteNearby, Confidence: 0.9},
		plan: &models.ProviderCallPlan{
			Route:  models.RouteNearby,
			Nearby: &models.NearbyPlan{Center: center, RadiusMeters: 1500, Keyword: "pizza"},
		},
	}
	fp := &fakeProvider{err: errors.New("upstream 502")}
	o, pub, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{
		Query: "pizza", RequestID: "r1", UserLocation: &center,
	})

	assert.Equal(t, models.AssistRecover, resp.Assist.Type)
	assert.Equal(t, models.FailureProviderError, resp.Meta.FailureReason)
	assert.Equal(t, []string{session.StatusPending, session.StatusFailed}, pub.statuses())
}

func TestEmptyPoolRecoversWithNoResults(t *testing.T) {
	center := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate:   continueGate("he"),
		intent: &models.IntentResult{Route: models.RouteNearby, Confidence: 0.9, Language: "he"},
		plan: &models.ProviderCallPlan{
			Route:  models.RouteNearby,
			Nearby: &models.NearbyPlan{Center: center, RadiusMeters: 1500, Keyword: "ramen"},
		},
	}
	fp := &fakeProvider{results: nil}
	o, _, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{
		Query: "ראמן", RequestID: "r1", UserLocation: &center,
	})

	assert.Equal(t, models.AssistRecover, resp.Assist.Type)
	assert.Equal(t, models.FailureNoResults, resp.Meta.FailureReason)
	assert.Equal(t, recoverMessages[models.FailureNoResults].he, resp.Assist.Message)
}

func TestPaginationWindowsLargePool(t *testing.T) {
	center := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	pool := make([]models.RestaurantResult, 0, 25)
	for i := 0; i < 25; i++ {
		pool = append(pool, place(string(rune('a'+i)), 32.08, 34.78, 4.0, 100+i))
	}
	fc := &fakeClassifier{
		gate:   continueGate("en"),
		intent: &models.IntentResult{Route: models.RouteNearby, Confidence: 0.9},
		plan: &models.ProviderCallPlan{
			Route:  models.RouteNearby,
			Nearby: &models.NearbyPlan{Center: center, RadiusMeters: 1500, Keyword: "cafe"},
		},
	}
	fp := &fakeProvider{results: pool}
	o, _, enr := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	resp := o.Run(context.Background(), models.SearchRequest{
		Query: "cafe", RequestID: "r1", UserLocation: &center,
	})

	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	assert.Len(t, resp.Results, 10)
	assert.Equal(t, 25, resp.Meta.Pagination.FetchedCount)
	assert.Equal(t, 10, resp.Meta.Pagination.ReturnedCount)
	assert.Equal(t, 20, resp.Meta.Pagination.AvailableCount)
	// Enrichment only touches the visible window.
	assert.Equal(t, 10, enr.results)
}

func TestRankCacheHitOnRepeat(t *testing.T) {
	center := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate:   continueGate("en"),
		intent: &models.IntentResult{Route: models.RouteNearby, Confidence: 0.9},
		plan: &models.ProviderCallPlan{
			Route:  models.RouteNearby,
			Nearby: &models.NearbyPlan{Center: center, RadiusMeters: 1500, Keyword: "falafel"},
		},
	}
	fp := &fakeProvider{results: []models.RestaurantResult{
		place("a", 32.08, 34.78, 4.6, 900),
		place("b", 32.09, 34.77, 4.4, 500),
		place("c", 32.07, 34.79, 4.1, 200),
	}}
	o, _, _ := newTestOrchestrator(t, fc, fp, &fakeGeocoder{})

	req := models.SearchRequest{Query: "falafel", RequestID: "r1", UserLocation: &center}
	first := o.Run(context.Background(), req)
	second := o.Run(context.Background(), req)

	assert.False(t, first.Meta.CacheHits["rank"])
	assert.True(t, second.Meta.CacheHits["rank"])
	assert.Equal(t, resultIDs(first.Results), resultIDs(second.Results))
}

func resultIDs(results []models.RestaurantResult) []string {
	ids := make([]string, len(results))
	for i, r := range results {
		ids[i] = r.PlaceID
	}
	return ids
}

func TestStrictCityDropsSuburbsEndToEnd(t *testing.T) {
	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate: continueGate("he"),
		intent: &models.IntentResult{
			Route:             models.RouteTextSearch,
			Confidence:        0.92,
			Language:          "he",
			CityText:          strPtr("Tel Aviv"),
			CanonicalCategory: "burger",
			Hybrid:            models.HybridFlags{StrictCity: true},
		},
		plan: &models.ProviderCallPlan{
			Route:      models.RouteTextSearch,
			TextSearch: &models.TextSearchPlan{TextQuery: "hamburger restaurant"},
			CityText:   strPtr("Tel Aviv"),
		},
	}
	fp := &fakeProvider{results: []models.RestaurantResult{
		place("core-a", 32.08, 34.78, 4.6, 900),
		place("core-b", 32.09, 34.77, 4.2, 300),
		place("suburb", 32.21, 34.78, 4.9, 5000), // ~14 km out
	}}
	fg := &fakeGeocoder{city: &models.GeocodeResult{Location: telAviv, FormattedAddress: "Tel Aviv-Yafo, Israel"}}
	o, _, _ := newTestOrchestrator(t, fc, fp, fg)

	resp := o.Run(context.Background(), models.SearchRequest{Query: "המבורגר רק בתל אביב", RequestID: "r1"})

	// MinCityResults is 5 and only two core matches survive, but strict mode
	// never promotes the suburb back.
	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	require.Len(t, resp.Results, 2)
	for _, r := range resp.Results {
		assert.NotEqual(t, "suburb", r.PlaceID)
		require.NotNil(t, r.CityMatch)
		assert.True(t, *r.CityMatch)
	}
}

func TestTokenGuardOnlyFiresWithoutAnchors(t *testing.T) {
	cfg := searchTestConfig()
	cfg.Search.MinQueryTokens = 2
	caches := cache.NewCacheManager(cfg.Cache, zap.NewNop())
	t.Cleanup(caches.Stop)

	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	fc := &fakeClassifier{
		gate: continueGate("he"),
		intent: &models.IntentResult{
			Route:             models.RouteTextSearch,
			Confidence:        0.9,
			Language:          "he",
			CityText:          strPtr("Tel Aviv"),
			CanonicalCategory: "sushi",
		},
		plan: &models.ProviderCallPlan{
			Route:      models.RouteTextSearch,
			TextSearch: &models.TextSearchPlan{TextQuery: "sushi in Tel Aviv"},
			CityText:   strPtr("Tel Aviv"),
		},
	}
	fp := &fakeProvider{results: []models.RestaurantResult{place("a", 32.08, 34.78, 4.5, 500)}}
	fg := &fakeGeocoder{city: &models.GeocodeResult{Location: telAviv}}
	o := NewOrchestrator(cfg, fc, fp, fg, nil, caches, nil, zap.NewNop())

	// One token, but the extracted city anchors the query.
	resp := o.Run(context.Background(), models.SearchRequest{Query: "סושי", RequestID: "r1"})
	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	assert.Equal(t, 1, fp.calls())

	// Same short query with neither location nor city clarifies before any
	// provider spend.
	fcBare := &fakeClassifier{
		gate: continueGate("he"),
		intent: &models.IntentResult{
			Route:             models.RouteLandmark,
			Confidence:        0.9,
			Language:          "he",
			LandmarkText:      strPtr("הנמל"),
			CanonicalCategory: "sushi",
		},
	}
	fpBare := &fakeProvider{}
	oBare := NewOrchestrator(cfg, fcBare, fpBare, &fakeGeocoder{}, nil, caches, nil, zap.NewNop())

	resp = oBare.Run(context.Background(), models.SearchRequest{Query: "סושי", RequestID: "r2"})
	assert.Equal(t, models.AssistClarify, resp.Assist.Type)
	assert.Equal(t, "query_too_short", resp.Assist.Reason)
	assert.Zero(t, fpBare.calls())
}

func TestCuisinePreferenceShapesOrdering(t *testing.T) {
	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	sushiBar := place("sushi-bar", 32.08, 34.78, 4.0, 200)
	sushiBar.Tags = []string{"sushi_restaurant"}
	grill := place("grill", 32.08, 34.78, 4.0, 200)
	grill.Tags = []string{"steak_house"}

	fc := &fakeClassifier{
		gate: continueGate("en"),
		intent: &models.IntentResult{
			Route:             models.RouteTextSearch,
			Confidence:        0.9,
			Language:          "en",
			CityText:          strPtr("Tel Aviv"),
			CanonicalCategory: "sushi",
			Hybrid:            models.HybridFlags{CuisineKey: strPtr("sushi")},
		},
		plan: &models.ProviderCallPlan{
			Route:      models.RouteTextSearch,
			TextSearch: &models.TextSearchPlan{TextQuery: "sushi in tel aviv"},
			CityText:   strPtr("Tel Aviv"),
		},
	}
	// Identical ratings and reviews: only the cuisine preference separates
	// the two under the cuisine-focused profile.
	fp := &fakeProvider{results: []models.RestaurantResult{grill, sushiBar}}
	fg := &fakeGeocoder{city: &models.GeocodeResult{Location: telAviv}}
	o, _, _ := newTestOrchestrator(t, fc, fp, fg)

	resp := o.Run(context.Background(), models.SearchRequest{Query: "sushi in tel aviv", RequestID: "r1"})

	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "sushi-bar", resp.Results[0].PlaceID)
}

func TestDietaryFlagsShapeOrdering(t *testing.T) {
	telAviv := models.LatLng{Lat: 32.0853, Lng: 34.7818}
	// The plain diner carries more reviews so it would win on the base
	// features alone; the kosher request flips the order.
	kosher := place("kosher-deli", 32.08, 34.78, 4.0, 200)
	kosher.Tags = []string{"kosher_restaurant"}
	plain := place("plain-diner", 32.08, 34.78, 4.0, 400)
	plain.Tags = []string{"restaurant"}

	yes := true
	fc := &fakeClassifier{
		gate: continueGate("en"),
		intent: &models.IntentResult{
			Route:             models.RouteTextSearch,
			Confidence:        0.9,
			Language:          "en",
			CityText:          strPtr("Tel Aviv"),
			CanonicalCategory: "restaurant",
		},
		plan: &models.ProviderCallPlan{
			Route:      models.RouteTextSearch,
			TextSearch: &models.TextSearchPlan{TextQuery: "kosher restaurant in tel aviv"},
			CityText:   strPtr("Tel Aviv"),
		},
		constraints: &models.PostConstraints{IsKosher: &yes},
	}
	fp := &fakeProvider{results: []models.RestaurantResult{plain, kosher}}
	fg := &fakeGeocoder{city: &models.GeocodeResult{Location: telAviv}}
	o, _, _ := newTestOrchestrator(t, fc, fp, fg)

	resp := o.Run(context.Background(), models.SearchRequest{Query: "kosher restaurant in tel aviv", RequestID: "r1"})

	require.Equal(t, models.AssistNormal, resp.Assist.Type)
	require.Len(t, resp.Results, 2)
	// The kosher request never drops the non-kosher candidate, it only
	// outranks it.
	assert.Equal(t, "kosher-deli", resp.Results[0].PlaceID)
	assert.Equal(t, "plain-diner", resp.Results[1].PlaceID)
}
