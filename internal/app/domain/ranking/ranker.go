package ranking

import (
	"math"
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/models"
)

// Ranker scores a candidate pool against a profile's weights. Every feature
// normalizes into [0,1] and is null-safe; cuisine affects score only and
// never drops a candidate.
type Ranker struct {
	logger *zap.Logger
}

func NewRanker(logger *zap.Logger) *Ranker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{logger: logger}
}

// Scored pairs a result with its computed score for callers that want the
// breakdown.
type Scored struct {
	Result models.RestaurantResult
	Score  float64
}

// Rank scores and orders the pool descending. Ties break on reviewsCount
// descending, then placeId ascending, so output order is deterministic.
func (r *Ranker) Rank(pool []models.RestaurantResult, profile Profile, userLocation *models.LatLng) []models.RestaurantResult {
	weights := WeightsFor(profile)

	scored := make([]Scored, 0, len(pool))
	for _, res := range pool {
		res := res
		if userLocation != nil {
			km := distanceKm(userLocation, res.Location)
			res.DistanceKm = &km
		}
		scored = append(scored, Scored{Result: res, Score: r.score(res, weights)})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		ri, rj := reviewsOf(scored[i].Result), reviewsOf(scored[j].Result)
		if ri != rj {
			return ri > rj
		}
		return scored[i].Result.PlaceID < scored[j].Result.PlaceID
	})

	ranked := make([]models.RestaurantResult, len(scored))
	for i, s := range scored {
		ranked[i] = s.Result
	}

	r.logger.Debug("Ranked pool",
		zap.String("profile", string(profile)),
		zap.Int("pool_size", len(pool)),
	)
	return ranked
}

func (r *Ranker) score(res models.RestaurantResult, w Weights) float64 {
	return w.Rating*NormalizeRating(res.Rating) +
		w.Reviews*NormalizeReviews(res.ReviewsCount) +
		w.Distance*NormalizeDistance(res.DistanceKm) +
		w.Open*OpenBoost(res.OpenNow) +
		w.Cuisine*CuisineScore(res.CuisineScore)
}

// NormalizeRating maps a 0-5 star rating into [0,1]; absent ratings score 0.
func NormalizeRating(rating *float64) float64 {
	if rating == nil {
		return 0
	}
	return clamp01(*rating / 5)
}

// NormalizeReviews compresses review counts with log10; 100k+ reviews
// saturate at 1.
func NormalizeReviews(count *int) float64 {
	if count == nil || *count < 0 {
		return 0
	}
	return clamp01(math.Log10(float64(*count)+1) / 5)
}

// NormalizeDistance decays with distance: 1 at 0 km, 0.5 at 1 km. Unknown
// location scores 0 so distance weight never rewards missing data.
func NormalizeDistance(km *float64) float64 {
	if km == nil || *km < 0 {
		return 0
	}
	return clamp01(1 / (1 + *km))
}

// OpenBoost scores the tri-state open flag; unknown sits in the middle.
func OpenBoost(status models.OpenStatus) float64 {
	switch status {
	case models.OpenNow:
		return 1
	case models.ClosedNow:
		return 0
	default:
		return 0.5
	}
}

// CuisineScore passes the precomputed cuisine match through, defaulting to
// neutral when the scorer did not run.
func CuisineScore(score *float64) float64 {
	if score == nil {
		return 0.5
	}
	return clamp01(*score)
}

func distanceKm(from *models.LatLng, to models.LatLng) float64 {
	meters := geo.Distance(
		orb.Point{from.Lng, from.Lat},
		orb.Point{to.Lng, to.Lat},
	)
	return meters / 1000
}

func reviewsOf(res models.RestaurantResult) int {
	if res.ReviewsCount == nil {
		return 0
	}
	return *res.ReviewsCount
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
