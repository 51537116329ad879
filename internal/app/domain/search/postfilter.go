package search

import (
	"strings"
	"time"

	"github.com/dinefind/dinefind/internal/app/models"
)

// regionTZ maps a region code to the timezone used when evaluating
// time-anchored open constraints. Unlisted regions evaluate in UTC.
var regionTZ = map[string]string{
	"IL": "Asia/Jerusalem",
	"US": "America/New_York",
	"GB": "Europe/London",
	"FR": "Europe/Paris",
	"ES": "Europe/Madrid",
	"RU": "Europe/Moscow",
}

// openAtSlackMinutes is how far a point-in-time request may sit from "now"
// and still be answerable with the provider's live open flag.
const openAtSlackMinutes = 30

// applyPostFilter trims the pool by the merged open-state and price
// constraints. Results with unknown open status or absent price level are
// retained; the hours and dietary disclaimers cover the uncertainty.
func applyPostFilter(pool []models.RestaurantResult, filters *models.FinalSharedFilters, c *models.PostConstraints, now time.Time) []models.RestaurantResult {
	out := pool

	if state := effectiveOpenState(filters, now); state != nil {
		out = filterByOpenState(out, *state)
	}

	if levels := allowedPriceLevels(c, filters.PriceIntent); levels != nil {
		filters.PriceLevels = levels
		out = filterByPriceLevels(out, levels)
	}

	return out
}

// effectiveOpenState reduces the requested open constraint to something the
// provider's live flag can answer. OPEN_AT and OPEN_BETWEEN collapse to
// OPEN_NOW when the requested window covers the present moment in the
// region's timezone; otherwise the constraint cannot be checked against live
// data and no filtering happens.
func effectiveOpenState(filters *models.FinalSharedFilters, now time.Time) *models.OpenState {
	if filters.OpenState == nil {
		return nil
	}
	local := now.In(regionLocation(filters.RegionCode))

	switch *filters.OpenState {
	case models.OpenStateNow, models.OpenStateClosed:
		return filters.OpenState
	case models.OpenStateAt:
		if openAtCoversNow(filters.OpenAt, local) {
			state := models.OpenStateNow
			return &state
		}
	case models.OpenStateBetween:
		if openBetweenCoversNow(filters.OpenBetween, local) {
			state := models.OpenStateNow
			return &state
		}
	}
	return nil
}

func filterByOpenState(pool []models.RestaurantResult, state models.OpenState) []models.RestaurantResult {
	out := pool[:0:0]
	for _, res := range pool {
		switch state {
		case models.OpenStateNow:
			if res.OpenNow == models.ClosedNow {
				continue
			}
		case models.OpenStateClosed:
			if res.OpenNow == models.OpenNow {
				continue
			}
		}
		out = append(out, res)
	}
	return out
}

// allowedPriceLevels resolves the price constraint to an inclusive level set.
// Explicit extraction wins over the coarse intent; "any" means no filtering.
func allowedPriceLevels(c *models.PostConstraints, intent models.PriceIntent) []int {
	if c != nil {
		if c.PriceLevel != nil {
			return []int{*c.PriceLevel}
		}
		if r := c.PriceLevelRange; r != nil && r.Min >= 1 && r.Max >= r.Min {
			levels := make([]int, 0, r.Max-r.Min+1)
			for l := r.Min; l <= r.Max; l++ {
				levels = append(levels, l)
			}
			return levels
		}
	}

	// Coarse budget words map to overlapping level bands so mid-priced
	// places are reachable from either side of the scale.
	switch intent {
	case models.PriceCheap:
		return []int{1, 2}
	case models.PriceMid:
		return []int{2, 3}
	case models.PriceExpensive:
		return []int{3, 4}
	default:
		return nil
	}
}

func filterByPriceLevels(pool []models.RestaurantResult, levels []int) []models.RestaurantResult {
	allowed := make(map[int]struct{}, len(levels))
	for _, l := range levels {
		allowed[l] = struct{}{}
	}
	out := pool[:0:0]
	for _, res := range pool {
		if res.PriceLevel != nil {
			if _, ok := allowed[*res.PriceLevel]; !ok {
				continue
			}
		}
		out = append(out, res)
	}
	return out
}

func regionLocation(region string) *time.Location {
	if name, ok := regionTZ[region]; ok {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc
		}
	}
	return time.UTC
}

func openAtCoversNow(at *models.OpenAt, local time.Time) bool {
	if at == nil || at.TimeHHmm == nil {
		return false
	}
	if !dayMatches(at.Day, local) {
		return false
	}
	target, ok := atClock(*at.TimeHHmm, local)
	if !ok {
		return false
	}
	delta := local.Sub(target)
	if delta < 0 {
		delta = -delta
	}
	return delta <= openAtSlackMinutes*time.Minute
}

func openBetweenCoversNow(between *models.OpenBetween, local time.Time) bool {
	if between == nil || between.StartHHmm == nil || between.EndHHmm == nil {
		return false
	}
	if !dayMatches(between.Day, local) {
		return false
	}
	start, okStart := atClock(*between.StartHHmm, local)
	end, okEnd := atClock(*between.EndHHmm, local)
	if !okStart || !okEnd {
		return false
	}
	if end.Before(start) {
		// Window crosses midnight.
		end = end.Add(24 * time.Hour)
		if local.Before(start) {
			local = local.Add(24 * time.Hour)
		}
	}
	return !local.Before(start) && !local.After(end)
}

// dayMatches treats an absent day as "today".
func dayMatches(day *string, local time.Time) bool {
	if day == nil || *day == "" {
		return true
	}
	return strings.EqualFold(*day, local.Weekday().String())
}

// atClock pins an HH:mm string onto local's date.
func atClock(hhmm string, local time.Time) (time.Time, bool) {
	parsed, err := time.Parse("15:04", hhmm)
	if err != nil {
		return time.Time{}, false
	}
	return time.Date(
		local.Year(), local.Month(), local.Day(),
		parsed.Hour(), parsed.Minute(), 0, 0, local.Location(),
	), true
}
