package models

// FoodSignal is the gate's judgement on whether the query is about food.
type FoodSignal string

const (
	FoodYes   FoodSignal = "YES"
	FoodNo    FoodSignal = "NO"
	FoodMaybe FoodSignal = "MAYBE"
)

// GateRoute is the gate's routing verdict.
type GateRoute string

const (
	GateContinue   GateRoute = "CONTINUE"
	GateStop       GateRoute = "STOP"
	GateAskClarify GateRoute = "ASK_CLARIFY"
)

// GateResult is the first-stage classification of a raw query.
type GateResult struct {
	FoodSignal FoodSignal `json:"foodSignal"`
	Language   string     `json:"language"`
	Route      GateRoute  `json:"route"`
	Confidence float64    `json:"confidence"`
	Reason     string     `json:"reason"`
}

// IntentRoute selects the provider call family.
type IntentRoute string

const (
	RouteTextSearch IntentRoute = "TEXTSEARCH"
	RouteNearby     IntentRoute = "NEARBY"
	RouteLandmark   IntentRoute = "LANDMARK"
)

// PriceIntent is the coarse budget expressed by the user.
type PriceIntent string

const (
	PriceAny       PriceIntent = "any"
	PriceCheap     PriceIntent = "cheap"
	PriceMid       PriceIntent = "mid"
	PriceExpensive PriceIntent = "expensive"
)

// HybridFlags are the language-agnostic intent signals used by filtering and
// ranking profile selection.
type HybridFlags struct {
	DistanceIntent   bool        `json:"distanceIntent"`
	OpenNowRequested bool        `json:"openNowRequested"`
	PriceIntent      PriceIntent `json:"priceIntent"`
	QualityIntent    bool        `json:"qualityIntent"`
	StrictCity       bool        `json:"strictCity"`
	Occasion         *string     `json:"occasion"`
	CuisineKey       *string     `json:"cuisineKey"`
}

// ClarifySpec is an optional clarification the intent stage wants surfaced.
type ClarifySpec struct {
	Question string   `json:"question"`
	Choices  []string `json:"choices"`
}

// IntentResult is the structured routing decision for a query.
// When Route is LANDMARK, LandmarkText is always non-nil.
type IntentResult struct {
	Route              IntentRoute  `json:"route"`
	Confidence         float64      `json:"confidence"`
	Reason             string       `json:"reason"`
	Language           string       `json:"language"`
	LanguageConfidence float64      `json:"languageConfidence"`
	RegionCandidate    string       `json:"regionCandidate"`
	RegionConfidence   float64      `json:"regionConfidence"`
	RegionReason       string       `json:"regionReason"`
	RegionCode         *string      `json:"regionCode"`
	CityText           *string      `json:"cityText"`
	LandmarkText       *string      `json:"landmarkText"`
	RadiusMeters       *int         `json:"radiusMeters"`
	CanonicalCategory  string       `json:"canonicalCategory"`
	Hybrid             HybridFlags  `json:"hybrid"`
	Clarify            *ClarifySpec `json:"clarify"`
}

// OpenState is a requested opening-hours constraint.
type OpenState string

const (
	OpenStateNow     OpenState = "OPEN_NOW"
	OpenStateClosed  OpenState = "CLOSED_NOW"
	OpenStateAt      OpenState = "OPEN_AT"
	OpenStateBetween OpenState = "OPEN_BETWEEN"
)

// OpenAt pins a single day/time the place must be open.
type OpenAt struct {
	Day      *string `json:"day"`
	TimeHHmm *string `json:"timeHHmm"`
}

// OpenBetween pins a day and a time window.
type OpenBetween struct {
	Day       *string `json:"day"`
	StartHHmm *string `json:"startHHmm"`
	EndHHmm   *string `json:"endHHmm"`
}

// PriceLevelRange is an inclusive 1..4 price-level window.
type PriceLevelRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Requirements are accessibility-style constraints that pass through to
// ranking only when explicitly requested.
type Requirements struct {
	Accessible *bool `json:"accessible"`
	Parking    *bool `json:"parking"`
}

// PostConstraints is the constraint extraction output. Every sub-object is
// present in the schema with null-when-absent semantics.
type PostConstraints struct {
	OpenState       *OpenState       `json:"openState"`
	OpenAt          *OpenAt          `json:"openAt"`
	OpenBetween     *OpenBetween     `json:"openBetween"`
	PriceLevel      *int             `json:"priceLevel"`
	PriceLevelRange *PriceLevelRange `json:"priceLevelRange"`
	IsKosher        *bool            `json:"isKosher"`
	IsGlutenFree    *bool            `json:"isGlutenFree"`
	Requirements    Requirements     `json:"requirements"`
}

// Disclaimers flags which caveats the caller must show alongside results.
type Disclaimers struct {
	Hours   bool `json:"hours"`
	Dietary bool `json:"dietary"`
}

// FinalSharedFilters is the deterministic resolution of language, region and
// constraint state shared by every downstream stage. Sources records where
// each field's value came from (intent lock, device, base hint, default).
type FinalSharedFilters struct {
	UILanguage       string            `json:"uiLanguage"`
	ProviderLanguage string            `json:"providerLanguage"`
	RegionCode       string            `json:"regionCode"`
	OpenState        *OpenState        `json:"openState"`
	OpenAt           *OpenAt           `json:"openAt"`
	OpenBetween      *OpenBetween      `json:"openBetween"`
	PriceIntent      PriceIntent       `json:"priceIntent,omitempty"`
	PriceLevels      []int             `json:"priceLevels,omitempty"`
	StrictCity       bool              `json:"strictCity,omitempty"`
	Disclaimers      Disclaimers       `json:"disclaimers"`
	Sources          map[string]string `json:"sources,omitempty"`
}

// TextSearchPlan is a free-text provider query with an optional location bias.
type TextSearchPlan struct {
	TextQuery string  `json:"textQuery"`
	Bias      *Circle `json:"bias"`
}

// Circle is a center plus radius in meters.
type Circle struct {
	Center       LatLng `json:"center"`
	RadiusMeters int    `json:"radiusMeters"`
}

// NearbyPlan queries around a known coordinate.
type NearbyPlan struct {
	Center       LatLng `json:"center"`
	RadiusMeters int    `json:"radiusMeters"`
	Keyword      string `json:"keyword"`
}

// LandmarkPlan geocodes a landmark first and then searches around it.
type LandmarkPlan struct {
	GeocodeQuery string `json:"geocodeQuery"`
	RadiusMeters int    `json:"radiusMeters"`
	Keyword      string `json:"keyword"`
}

// ProviderCallPlan is the tagged union emitted by route planning. Exactly one
// of TextSearch, Nearby, Landmark is non-nil and matches Route. Language and
// Region always travel with the plan.
type ProviderCallPlan struct {
	Route      IntentRoute     `json:"route"`
	TextSearch *TextSearchPlan `json:"textSearch"`
	Nearby     *NearbyPlan     `json:"nearby"`
	Landmark   *LandmarkPlan   `json:"landmark"`
	CityText   *string         `json:"cityText"`
	Language   string          `json:"language"`
	Region     string          `json:"region"`
}
