package ranking

import "github.com/dinefind/dinefind/internal/app/models"

// Profile is a named weight tuple over the five normalized features. Each
// profile's weights sum to 1.0.
type Profile string

const (
	ProfileDistanceHeavy  Profile = "DISTANCE_HEAVY"
	ProfileBalanced       Profile = "BALANCED"
	ProfileCuisineFocused Profile = "CUISINE_FOCUSED"
	ProfileQualityFocused Profile = "QUALITY_FOCUSED"
	ProfileNoLocation     Profile = "NO_LOCATION"
)

// Weights splits the unit score mass across the features.
type Weights struct {
	Rating   float64
	Reviews  float64
	Distance float64
	Open     float64
	Cuisine  float64
}

var profileWeights = map[Profile]Weights{
	ProfileDistanceHeavy:  {Rating: 0.20, Reviews: 0.10, Distance: 0.45, Open: 0.10, Cuisine: 0.15},
	ProfileBalanced:       {Rating: 0.30, Reviews: 0.20, Distance: 0.25, Open: 0.10, Cuisine: 0.15},
	ProfileCuisineFocused: {Rating: 0.20, Reviews: 0.10, Distance: 0.15, Open: 0.10, Cuisine: 0.45},
	ProfileQualityFocused: {Rating: 0.45, Reviews: 0.25, Distance: 0.10, Open: 0.05, Cuisine: 0.15},
	ProfileNoLocation:     {Rating: 0.40, Reviews: 0.25, Distance: 0.00, Open: 0.15, Cuisine: 0.20},
}

// SelectProfile picks the weight profile from location availability and the
// intent's hybrid flags. Precedence: no location beats everything, then
// distance, then quality, then cuisine.
func SelectProfile(hasLocation bool, hybrid models.HybridFlags) Profile {
	switch {
	case !hasLocation:
		return ProfileNoLocation
	case hybrid.DistanceIntent:
		return ProfileDistanceHeavy
	case hybrid.QualityIntent:
		return ProfileQualityFocused
	case hybrid.CuisineKey != nil && *hybrid.CuisineKey != "":
		return ProfileCuisineFocused
	default:
		return ProfileBalanced
	}
}

// WeightsFor returns the weight tuple of a profile.
func WeightsFor(p Profile) Weights {
	if w, ok := profileWeights[p]; ok {
		return w
	}
	return profileWeights[ProfileBalanced]
}
