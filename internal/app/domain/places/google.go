package places

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/pkg/request"
)

const placesFieldMask = "places.id,places.displayName,places.formattedAddress," +
	"places.location,places.rating,places.userRatingCount,places.priceLevel," +
	"places.currentOpeningHours.openNow,places.types,places.googleMapsUri"

// GoogleProvider talks to the Places API (New) JSON endpoints. Responses are
// cached under the shared places key layout; live-data-sensitive queries use
// the short-TTL namespace.
type GoogleProvider struct {
	client *request.Client
	cache  *cache.CacheManager
	cfg    config.PlacesConfig
	logger *zap.Logger
}

var _ Provider = (*GoogleProvider)(nil)

func NewGoogleProvider(cfg *config.Config, cm *cache.CacheManager, logger *zap.Logger) *GoogleProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleProvider{
		client: request.New(cfg.Timeouts.Provider, cfg.Retries.Places, cfg.Retries.PlacesBackoff, logger),
		cache:  cm,
		cfg:    cfg.Places,
		logger: logger,
	}
}

type googlePlace struct {
	ID          string `json:"id"`
	DisplayName struct {
		Text string `json:"text"`
	} `json:"displayName"`
	FormattedAddress string  `json:"formattedAddress"`
	Location         latLng  `json:"location"`
	Rating           float64 `json:"rating"`
	UserRatingCount  int     `json:"userRatingCount"`
	PriceLevel       string  `json:"priceLevel"`
	CurrentOpening   *struct {
		OpenNow bool `json:"openNow"`
	} `json:"currentOpeningHours"`
	Types         []string `json:"types"`
	GoogleMapsURI string   `json:"googleMapsUri"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type searchResponse struct {
	Places []googlePlace `json:"places"`
}

// TextSearch runs places:searchText with an optional location bias.
func (g *GoogleProvider) TextSearch(ctx context.Context, p TextSearchParams) ([]models.RestaurantResult, error) {
	tracer := otel.Tracer("PlacesProvider")
	ctx, span := tracer.Start(ctx, "TextSearch", trace.WithAttributes(
		attribute.String("places.query", p.Query),
		attribute.String("places.language", p.Language),
	))
	defer span.End()

	var lat, lng float64
	var radius int
	if p.Bias != nil {
		lat, lng = p.Bias.Center.Lat, p.Bias.Center.Lng
		radius = p.Bias.RadiusMeters
	}
	key := cache.PlacesKey(p.Query, lat, lng, radius, p.Language, p.LiveData)
	if hit, ok := g.cachedResults(key, p.LiveData); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return hit, nil
	}

	body := map[string]any{
		"textQuery":    p.Query,
		"languageCode": canonicalLanguage(p.Language),
		"regionCode":   p.Region,
		"maxResultCount": 20,
	}
	if p.Bias != nil {
		body["locationBias"] = map[string]any{
			"circle": map[string]any{
				"center": map[string]any{"latitude": p.Bias.Center.Lat, "longitude": p.Bias.Center.Lng},
				"radius": float64(p.Bias.RadiusMeters),
			},
		}
	}

	results, err := g.search(ctx, g.cfg.BaseURL+"/places:searchText", body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "text search failed")
		return nil, err
	}
	span.SetStatus(codes.Ok, "")
	g.storeResults(key, results, p.LiveData)
	return results, nil
}

// NearbySearch runs places:searchNearby around a known center.
func (g *GoogleProvider) NearbySearch(ctx context.Context, p NearbyParams) ([]models.RestaurantResult, error) {
	tracer := otel.Tracer("PlacesProvider")
	ctx, span := tracer.Start(ctx, "NearbySearch", trace.WithAttributes(
		attribute.String("places.keyword", p.Keyword),
		attribute.Int("places.radius_m", p.RadiusMeters),
	))
	defer span.End()

	key := cache.PlacesKey(p.Keyword, p.Center.Lat, p.Center.Lng, p.RadiusMeters, p.Language, p.LiveData)
	if hit, ok := g.cachedResults(key, p.LiveData); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return hit, nil
	}

	body := map[string]any{
		"includedTypes":  []string{"restaurant"},
		"languageCode":   canonicalLanguage(p.Language),
		"regionCode":     p.Region,
		"maxResultCount": 20,
		"locationRestriction": map[string]any{
			"circle": map[string]any{
				"center": map[string]any{"latitude": p.Center.Lat, "longitude": p.Center.Lng},
				"radius": float64(p.RadiusMeters),
			},
		},
	}

	results, err := g.search(ctx, g.cfg.BaseURL+"/places:searchNearby", body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "nearby search failed")
		return nil, err
	}

	// searchNearby has no keyword parameter; filter client-side on the
	// keyword against name and types when one was given.
	if p.Keyword != "" {
		results = filterByKeyword(results, p.Keyword)
	}

	span.SetStatus(codes.Ok, "")
	g.storeResults(key, results, p.LiveData)
	return results, nil
}

func (g *GoogleProvider) search(ctx context.Context, url string, body map[string]any) ([]models.RestaurantResult, error) {
	headers := map[string]string{
		"X-Goog-Api-Key":   g.cfg.APIKey,
		"X-Goog-FieldMask": placesFieldMask,
	}

	var resp searchResponse
	if err := g.client.PostJSON(ctx, url, body, headers, &resp); err != nil {
		return nil, fmt.Errorf("places search: %w", err)
	}

	results := make([]models.RestaurantResult, 0, len(resp.Places))
	for _, p := range resp.Places {
		results = append(results, convertPlace(p))
	}
	return results, nil
}

func (g *GoogleProvider) cachedResults(key string, live bool) ([]models.RestaurantResult, bool) {
	if live {
		return g.cache.PlacesLive.Get(key)
	}
	return g.cache.PlacesStatic.Get(key)
}

func (g *GoogleProvider) storeResults(key string, results []models.RestaurantResult, live bool) {
	if live {
		g.cache.PlacesLive.Set(key, results)
		return
	}
	g.cache.PlacesStatic.Set(key, results)
}

func convertPlace(p googlePlace) models.RestaurantResult {
	r := models.RestaurantResult{
		PlaceID: p.ID,
		Source:  "google_places",
		Name:    p.DisplayName.Text,
		Address: p.FormattedAddress,
		Location: models.LatLng{
			Lat: p.Location.Latitude,
			Lng: p.Location.Longitude,
		},
		OpenNow:       models.OpenUnknown,
		Tags:          p.Types,
		GoogleMapsURL: p.GoogleMapsURI,
	}
	if p.Rating > 0 {
		rating := p.Rating
		r.Rating = &rating
	}
	if p.UserRatingCount > 0 {
		count := p.UserRatingCount
		r.ReviewsCount = &count
	}
	if level, ok := priceLevelFromString(p.PriceLevel); ok {
		r.PriceLevel = &level
	}
	if p.CurrentOpening != nil {
		if p.CurrentOpening.OpenNow {
			r.OpenNow = models.OpenNow
		} else {
			r.OpenNow = models.ClosedNow
		}
	}
	return r
}

func priceLevelFromString(s string) (int, bool) {
	switch s {
	case "PRICE_LEVEL_INEXPENSIVE":
		return 1, true
	case "PRICE_LEVEL_MODERATE":
		return 2, true
	case "PRICE_LEVEL_EXPENSIVE":
		return 3, true
	case "PRICE_LEVEL_VERY_EXPENSIVE":
		return 4, true
	default:
		return 0, false
	}
}

func filterByKeyword(results []models.RestaurantResult, keyword string) []models.RestaurantResult {
	keyword = strings.ToLower(keyword)
	filtered := make([]models.RestaurantResult, 0, len(results))
	for _, r := range results {
		if strings.Contains(strings.ToLower(r.Name), keyword) {
			filtered = append(filtered, r)
			continue
		}
		for _, t := range r.Tags {
			if strings.Contains(strings.ToLower(t), strings.ReplaceAll(keyword, " ", "_")) {
				filtered = append(filtered, r)
				break
			}
		}
	}
	// A keyword that matches nothing usually means the provider already
	// answered the intent with its own relevance; keep the pool.
	if len(filtered) == 0 {
		return results
	}
	return filtered
}

// canonicalLanguage normalizes a provider language hint to a well-formed
// BCP-47 tag the API accepts; unknown hints fall back to English.
func canonicalLanguage(lang string) string {
	tag, err := language.Parse(lang)
	if err != nil {
		return "en"
	}
	base, _ := tag.Base()
	return base.String()
}
