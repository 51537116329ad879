package search

import (
	"sort"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/models"
)

// City radius rings in kilometers. Inside the core ring a result is a firm
// city match; the suburb ring is kept unless the caller asked for the city
// strictly; beyond that the result is dropped.
const (
	cityCoreKm   = 10.0
	citySuburbKm = 20.0
)

// filterByCity partitions the pool around the geocoded city centroid and
// stamps CityMatch on every survivor. When trimming leaves fewer than
// minResults survivors, the closest dropped candidates are promoted back so a
// narrow pool does not starve the response; strict mode never promotes.
func filterByCity(
	pool []models.RestaurantResult,
	center models.LatLng,
	strict bool,
	minResults int,
	logger *zap.Logger,
) []models.RestaurantResult {
	type candidate struct {
		res models.RestaurantResult
		km  float64
	}

	kept := make([]candidate, 0, len(pool))
	dropped := make([]candidate, 0)

	for _, res := range pool {
		km := kmBetween(center, res.Location)
		switch {
		case km <= cityCoreKm:
			match := true
			res.CityMatch = &match
			kept = append(kept, candidate{res: res, km: km})
		case km <= citySuburbKm && !strict:
			match := false
			res.CityMatch = &match
			kept = append(kept, candidate{res: res, km: km})
		default:
			dropped = append(dropped, candidate{res: res, km: km})
		}
	}

	// Promote the closest dropped candidates when the rings cut too deep.
	// Strict callers asked for the city only, so starvation stays starved.
	if !strict && len(kept) < minResults && len(dropped) > 0 {
		sort.Slice(dropped, func(i, j int) bool { return dropped[i].km < dropped[j].km })
		for _, c := range dropped {
			if len(kept) >= minResults {
				break
			}
			match := false
			c.res.CityMatch = &match
			kept = append(kept, c)
		}
		logger.Debug("Promoted out-of-city candidates",
			zap.Int("kept", len(kept)),
			zap.Int("min_results", minResults),
		)
	}

	out := make([]models.RestaurantResult, len(kept))
	for i, c := range kept {
		out[i] = c.res
	}
	return out
}

func kmBetween(from, to models.LatLng) float64 {
	meters := geo.Distance(
		orb.Point{from.Lng, from.Lat},
		orb.Point{to.Lng, to.Lat},
	)
	return meters / 1000
}
