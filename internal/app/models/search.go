package models

import (
	"fmt"
	"time"
)

// LatLng is a WGS84 coordinate pair.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// SearchRequest is the immutable pipeline input. RequestID is caller-supplied
// or generated at the HTTP boundary; UserID arrives from auth middleware and
// is empty for anonymous callers.
type SearchRequest struct {
	Query          string  `json:"query"`
	SessionID      string  `json:"sessionId"`
	RequestID      string  `json:"requestId,omitempty"`
	UserLocation   *LatLng `json:"userLocation,omitempty"`
	UserRegionCode string  `json:"userRegionCode,omitempty"`
	UserID         string  `json:"-"`
}

// OpenStatus is the tri-state opening status reported by the places
// provider. It marshals to true/false or the string "UNKNOWN" so the wire
// shape matches what clients expect.
type OpenStatus int8

const (
	OpenUnknown OpenStatus = iota
	OpenNow
	ClosedNow
)

func (s OpenStatus) MarshalJSON() ([]byte, error) {
	switch s {
	case OpenNow:
		return []byte("true"), nil
	case ClosedNow:
		return []byte("false"), nil
	default:
		return []byte(`"UNKNOWN"`), nil
	}
}

func (s *OpenStatus) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case "true":
		*s = OpenNow
	case "false":
		*s = ClosedNow
	case `"UNKNOWN"`, "null":
		*s = OpenUnknown
	default:
		return fmt.Errorf("invalid open status %q", string(data))
	}
	return nil
}

// EnrichmentStatus is the lifecycle of one provider deep-link slot.
type EnrichmentStatus string

const (
	EnrichmentPending  EnrichmentStatus = "PENDING"
	EnrichmentFound    EnrichmentStatus = "FOUND"
	EnrichmentNotFound EnrichmentStatus = "NOT_FOUND"
)

// ProviderSlot is one delivery provider's deep-link state on a result.
type ProviderSlot struct {
	Status    EnrichmentStatus `json:"status"`
	URL       *string          `json:"url"`
	UpdatedAt *time.Time       `json:"updatedAt,omitempty"`
}

// RestaurantResult is a single candidate place, as returned to the caller.
type RestaurantResult struct {
	PlaceID       string                   `json:"placeId"`
	Source        string                   `json:"source"`
	Name          string                   `json:"name"`
	Address       string                   `json:"address"`
	Location      LatLng                   `json:"location"`
	Rating        *float64                 `json:"rating,omitempty"`
	ReviewsCount  *int                     `json:"reviewsCount,omitempty"`
	PriceLevel    *int                     `json:"priceLevel,omitempty"`
	OpenNow       OpenStatus               `json:"openNow"`
	Tags          []string                 `json:"tags,omitempty"`
	GoogleMapsURL string                   `json:"googleMapsUrl,omitempty"`
	CuisineScore  *float64                 `json:"cuisineScore,omitempty"`
	CityMatch     *bool                    `json:"cityMatch,omitempty"`
	DistanceKm    *float64                 `json:"distanceKm,omitempty"`
	Providers     map[string]*ProviderSlot `json:"providers,omitempty"`
}

// AssistType tells the caller how to treat the response: normal results, a
// clarification question, or a recovery message after an internal failure.
type AssistType string

const (
	AssistNormal  AssistType = "normal"
	AssistClarify AssistType = "clarify"
	AssistRecover AssistType = "recover"
)

// Assist carries the conversational side-channel of a response. A response
// with Type clarify or recover carries no results.
type Assist struct {
	Type         AssistType `json:"type"`
	Reason       string     `json:"reason,omitempty"`
	Message      string     `json:"message,omitempty"`
	Question     string     `json:"question,omitempty"`
	Choices      []string   `json:"choices,omitempty"`
	BlocksSearch bool       `json:"blocksSearch,omitempty"`
}

// StageTimings are per-stage wall-clock durations in milliseconds.
type StageTimings struct {
	Gate       int64 `json:"gate"`
	Intent     int64 `json:"intent"`
	RouteLLM   int64 `json:"routeLlm"`
	Provider   int64 `json:"provider"`
	PostFilter int64 `json:"postFilter"`
	Rank       int64 `json:"rank"`
	Total      int64 `json:"total"`
}

// Pagination describes the visible window over the ranked pool.
type Pagination struct {
	FetchedCount   int `json:"fetchedCount"`
	ReturnedCount  int `json:"returnedCount"`
	AvailableCount int `json:"availableCount"`
	NextIncrement  int `json:"nextIncrement"`
	MaxVisible     int `json:"maxVisible"`
}

// Meta is the response envelope's diagnostic block.
type Meta struct {
	Source          string            `json:"source"`
	PipelineVersion string            `json:"pipelineVersion"`
	FailureReason   FailureReason     `json:"failureReason"`
	TimingsMs       StageTimings      `json:"timingsMs"`
	Pagination      Pagination        `json:"pagination"`
	RegionSource    string            `json:"regionSource,omitempty"`
	LanguageSource  string            `json:"languageSource,omitempty"`
	CacheHits       map[string]bool   `json:"cacheHits,omitempty"`
	FilterSources   map[string]string `json:"filterSources,omitempty"`
}

// SearchResponse is the orchestrator's complete answer.
type SearchResponse struct {
	Results []RestaurantResult `json:"results"`
	Assist  Assist             `json:"assist"`
	Meta    Meta               `json:"meta"`
}

// DeepLinkRecord is the cached outcome of one provider deep-link resolution.
// Status drives the cache TTL: FOUND entries live 7 days, NOT_FOUND 24h.
type DeepLinkRecord struct {
	URL       *string          `json:"url"`
	Status    EnrichmentStatus `json:"status"`
	UpdatedAt time.Time        `json:"updatedAt"`
}

// GeocodeResult is the cached output of a geocoding lookup.
type GeocodeResult struct {
	Location         LatLng `json:"location"`
	FormattedAddress string `json:"formattedAddress"`
}
