package search

import (
	"github.com/dinefind/dinefind/internal/app/models"
)

// failureSignals is everything the detector looks at when classifying the
// outcome of a request at assembly time.
type failureSignals struct {
	// explicitReason is a hard failure already mapped from an error
	// (TIMEOUT, QUOTA_EXCEEDED, PROVIDER_ERROR). Empty when none occurred.
	explicitReason models.FailureReason

	geocodeFailed    bool
	resultCount      int
	intentConfidence float64
	liveDataWanted   bool
	topUnknownOpen   bool
}

// weakMatchThreshold pairs with lowConfidenceThreshold in the precedence
// chain below.
const (
	lowConfidenceThreshold = 0.5
	weakMatchThreshold     = 0.7
	weakMatchMinResults    = 3
)

// detectFailure applies the deterministic precedence chain: explicit error,
// geocoding, empty pool, low intent confidence, stale live data, weak
// matches, none. Exactly one reason comes out.
func detectFailure(s failureSignals) models.FailureReason {
	if s.explicitReason != "" && s.explicitReason != models.FailureNone {
		return s.explicitReason
	}
	if s.geocodeFailed {
		return models.FailureGeocodingFailed
	}
	if s.resultCount == 0 {
		return models.FailureNoResults
	}
	if s.intentConfidence < lowConfidenceThreshold {
		return models.FailureLowConfidence
	}
	if s.liveDataWanted && s.topUnknownOpen {
		return models.FailureLiveDataUnavailable
	}
	if s.resultCount < weakMatchMinResults && s.intentConfidence < weakMatchThreshold {
		return models.FailureWeakMatches
	}
	return models.FailureNone
}

// topResultsUnknownOpen reports whether every one of the first n results
// has an unknown open status. Used for the LIVE_DATA_UNAVAILABLE signal.
func topResultsUnknownOpen(results []models.RestaurantResult, n int) bool {
	if len(results) == 0 {
		return false
	}
	if len(results) < n {
		n = len(results)
	}
	for _, r := range results[:n] {
		if r.OpenNow != models.OpenUnknown {
			return false
		}
	}
	return true
}
