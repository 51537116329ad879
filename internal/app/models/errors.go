package models

import "errors"

// Domain sentinel errors shared across handler and session layers.
var (
	ErrNotFound        = errors.New("requested item not found")
	ErrUnauthenticated = errors.New("authentication required or invalid credentials")
	ErrForbidden       = errors.New("action forbidden")
	ErrBadRequest      = errors.New("bad request")
	ErrValidation      = errors.New("validation failed")
)

// FailureReason is the deterministic outcome classification attached to
// every response. Exactly one reason is reported per request.
type FailureReason string

const (
	FailureNone                FailureReason = "NONE"
	FailureNoResults           FailureReason = "NO_RESULTS"
	FailureLowConfidence       FailureReason = "LOW_CONFIDENCE"
	FailureGeocodingFailed     FailureReason = "GEOCODING_FAILED"
	FailureProviderError       FailureReason = "PROVIDER_ERROR"
	FailureTimeout             FailureReason = "TIMEOUT"
	FailureQuotaExceeded       FailureReason = "QUOTA_EXCEEDED"
	FailureLiveDataUnavailable FailureReason = "LIVE_DATA_UNAVAILABLE"
	FailureWeakMatches         FailureReason = "WEAK_MATCHES"
)

// IsCritical reports whether the reason should surface as a recovery
// response instead of a degraded-but-normal one.
func (r FailureReason) IsCritical() bool {
	switch r {
	case FailureNoResults, FailureProviderError, FailureTimeout, FailureQuotaExceeded:
		return true
	default:
		return false
	}
}
