package places

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
	"github.com/dinefind/dinefind/internal/pkg/request"
)

// ErrNoGeocodeResult reports a well-formed geocoding response with zero
// matches. Callers map it to the GEOCODING_FAILED failure reason.
var ErrNoGeocodeResult = fmt.Errorf("geocoding returned no results")

// GoogleGeocoder wraps the Geocoding API for city and landmark lookups.
type GoogleGeocoder struct {
	client *request.Client
	cache  *cache.CacheManager
	cfg    config.PlacesConfig
	logger *zap.Logger
}

var _ Geocoder = (*GoogleGeocoder)(nil)

func NewGoogleGeocoder(cfg *config.Config, cm *cache.CacheManager, logger *zap.Logger) *GoogleGeocoder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GoogleGeocoder{
		client: request.New(cfg.Timeouts.Geocoding, cfg.Retries.Geocoding, cfg.Retries.GeocodingBackoff, logger),
		cache:  cm,
		cfg:    cfg.Places,
		logger: logger,
	}
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

// GeocodeCity resolves a city name to its centroid.
func (g *GoogleGeocoder) GeocodeCity(ctx context.Context, city, region string) (*models.GeocodeResult, error) {
	return g.geocode(ctx, city, region, "city")
}

// GeocodeLandmark resolves a landmark query for the geocode-then-nearby plan.
func (g *GoogleGeocoder) GeocodeLandmark(ctx context.Context, query, region string) (*models.GeocodeResult, error) {
	return g.geocode(ctx, query, region, "landmark")
}

func (g *GoogleGeocoder) geocode(ctx context.Context, query, region, kind string) (*models.GeocodeResult, error) {
	tracer := otel.Tracer("Geocoder")
	ctx, span := tracer.Start(ctx, "Geocode", trace.WithAttributes(
		attribute.String("geocode.kind", kind),
		attribute.String("geocode.region", region),
	))
	defer span.End()

	normalized := normalizeGeoQuery(query, region)
	key := cache.GeoKey(normalized)
	if hit, ok := g.cache.Geocoding.Get(key); ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &hit, nil
	}

	params := url.Values{}
	params.Set("address", query)
	params.Set("key", g.cfg.GeocodingAPIKey)
	if region != "" {
		params.Set("region", strings.ToLower(region))
	}

	var resp geocodeResponse
	if err := g.client.GetJSON(ctx, g.cfg.GeocodingURL+"?"+params.Encode(), nil, &resp); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "geocoding call failed")
		return nil, fmt.Errorf("geocode %s: %w", kind, err)
	}

	if resp.Status == "ZERO_RESULTS" || len(resp.Results) == 0 {
		span.SetStatus(codes.Error, "zero results")
		return nil, fmt.Errorf("geocode %s %q: %w", kind, query, ErrNoGeocodeResult)
	}
	if resp.Status != "OK" {
		span.SetStatus(codes.Error, resp.Status)
		return nil, fmt.Errorf("geocode %s: upstream status %s", kind, resp.Status)
	}

	top := resp.Results[0]
	result := models.GeocodeResult{
		Location: models.LatLng{
			Lat: top.Geometry.Location.Lat,
			Lng: top.Geometry.Location.Lng,
		},
		FormattedAddress: top.FormattedAddress,
	}

	g.cache.Geocoding.Set(key, result)
	span.SetStatus(codes.Ok, "")
	g.logger.Debug("Geocoded",
		zap.String("kind", kind),
		zap.String("query", query),
		zap.String("address", result.FormattedAddress),
	)
	return &result, nil
}

func normalizeGeoQuery(query, region string) string {
	q := strings.Join(strings.Fields(strings.ToLower(query)), " ")
	if region != "" {
		q += ":" + strings.ToUpper(region)
	}
	return q
}
