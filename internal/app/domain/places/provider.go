package places

import (
	"context"

	"github.com/dinefind/dinefind/internal/app/models"
)

// TextSearchParams is a free-text provider query.
type TextSearchParams struct {
	Query    string
	Bias     *models.Circle
	Language string
	Region   string
	LiveData bool
}

// NearbyParams queries around a coordinate.
type NearbyParams struct {
	Center       models.LatLng
	RadiusMeters int
	Keyword      string
	Language     string
	Region       string
	LiveData     bool
}

// Provider is the outbound places capability. Both calls honor ctx
// cancellation and return provider-sourced candidates with open status and
// price level when the provider has them.
type Provider interface {
	TextSearch(ctx context.Context, p TextSearchParams) ([]models.RestaurantResult, error)
	NearbySearch(ctx context.Context, p NearbyParams) ([]models.RestaurantResult, error)
}

// Geocoder resolves city and landmark names to coordinates. The landmark
// variant feeds the geocode-then-nearby plan.
type Geocoder interface {
	GeocodeCity(ctx context.Context, city, region string) (*models.GeocodeResult, error)
	GeocodeLandmark(ctx context.Context, query, region string) (*models.GeocodeResult, error)
}
