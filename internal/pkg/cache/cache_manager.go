package cache

import (
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// CacheManager holds the typed cache namespaces of the search pipeline.
// Each namespace carries its own TTL and size cap from the env contract.
type CacheManager struct {
	// Geocoded city/landmark lookups, keyed geo:<normalized>
	Geocoding *UnifiedCache[models.GeocodeResult]

	// Places provider responses; static vs live-data-sensitive TTLs
	PlacesStatic *UnifiedCache[[]models.RestaurantResult]
	PlacesLive   *UnifiedCache[[]models.RestaurantResult]

	// Ranked pools, keyed rank:<resHash>:<intentHash>
	Ranking *UnifiedCache[[]models.RestaurantResult]

	// Local mirror of provider deep-link records; authoritative copy lives
	// in the shared cache when one is configured
	DeepLink *UnifiedCache[models.DeepLinkRecord]
}

// NewCacheManager creates all namespaces with TTLs and caps from config.
func NewCacheManager(cfg config.CacheConfig, logger *zap.Logger) *CacheManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheManager{
		Geocoding:    NewUnifiedCache[models.GeocodeResult](cfg.GeocodingTTL, cfg.GeocodingSize, "geocoding", logger),
		PlacesStatic: NewUnifiedCache[[]models.RestaurantResult](cfg.PlacesStatic, cfg.PlacesSize, "places_static", logger),
		PlacesLive:   NewUnifiedCache[[]models.RestaurantResult](cfg.PlacesLive, cfg.PlacesSize, "places_live", logger),
		Ranking:      NewUnifiedCache[[]models.RestaurantResult](cfg.RankingTTL, cfg.RankingSize, "ranking", logger),
		DeepLink:     NewUnifiedCache[models.DeepLinkRecord](cfg.PlacesStatic, 5000, "deeplink", logger),
	}
}

// GetAllMetrics returns metrics for all caches
func (cm *CacheManager) GetAllMetrics() map[string]CacheMetrics {
	return map[string]CacheMetrics{
		"geocoding":     cm.Geocoding.GetMetrics(),
		"places_static": cm.PlacesStatic.GetMetrics(),
		"places_live":   cm.PlacesLive.GetMetrics(),
		"ranking":       cm.Ranking.GetMetrics(),
		"deeplink":      cm.DeepLink.GetMetrics(),
	}
}

// ClearAll clears all caches
func (cm *CacheManager) ClearAll() {
	cm.Geocoding.Clear()
	cm.PlacesStatic.Clear()
	cm.PlacesLive.Clear()
	cm.Ranking.Clear()
	cm.DeepLink.Clear()
}

// Stop terminates every namespace's janitor.
func (cm *CacheManager) Stop() {
	cm.Geocoding.Stop()
	cm.PlacesStatic.Stop()
	cm.PlacesLive.Stop()
	cm.Ranking.Stop()
	cm.DeepLink.Stop()
}
