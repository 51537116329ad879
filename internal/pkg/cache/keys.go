package cache

import (
	"fmt"
	"strconv"
)

// Key builders for the namespaced cache-key layout shared with the
// cross-instance cache tier. Keys are plain UTF-8 so they stay readable in
// redis-cli and log lines.

// GeoKey keys a geocoding lookup by its normalized query.
func GeoKey(normalized string) string {
	return "geo:" + normalized
}

// PlacesKey keys a provider call by query, truncated coordinates, radius,
// language and live-data sensitivity. Coordinates are cut to 4 decimals
// (~11m) so nearby callers share entries.
func PlacesKey(query string, lat, lng float64, radiusMeters int, language string, liveData bool) string {
	return fmt.Sprintf("places:%s:%s,%s:%d:%s:%t",
		query, trunc4(lat), trunc4(lng), radiusMeters, language, liveData)
}

// RankKey keys a ranked pool by the result-set hash and the intent hash.
func RankKey(resHash, intentHash string) string {
	return "rank:" + resHash + ":" + intentHash
}

// IntentKey keys a memoized intent classification. ctxHash is optional.
func IntentKey(normalizedQuery, language, ctxHash string) string {
	key := "intent:" + normalizedQuery + ":" + language
	if ctxHash != "" {
		key += ":" + ctxHash
	}
	return key
}

// ProviderKey keys a resolved deep-link record.
func ProviderKey(provider, placeID string) string {
	return "provider:" + provider + ":" + placeID
}

// ProviderLockKey keys the resolution lock for a deep-link record.
func ProviderLockKey(provider, placeID string) string {
	return "provider:" + provider + ":lock:" + placeID
}

func trunc4(v float64) string {
	return strconv.FormatFloat(v, 'f', 4, 64)
}
