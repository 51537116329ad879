package ranking

import (
	"strings"

	"github.com/dinefind/dinefind/internal/app/models"
)

// Prefs are the explicit, score-only query preferences: the intent's cuisine
// key plus any dietary or accessibility flags the user actually requested.
// They shape ordering through cuisineScore and never drop a candidate.
type Prefs struct {
	CuisineKey   *string
	RequiredTags []string
}

// Empty reports whether no preference was requested.
func (p Prefs) Empty() bool {
	return (p.CuisineKey == nil || *p.CuisineKey == "") && len(p.RequiredTags) == 0
}

// Fingerprint renders the preferences as a stable cache-key fragment.
func (p Prefs) Fingerprint() string {
	cuisine := ""
	if p.CuisineKey != nil {
		cuisine = strings.ToLower(*p.CuisineKey)
	}
	return cuisine + "|" + strings.ToLower(strings.Join(p.RequiredTags, ","))
}

// ApplyPrefs stamps cuisineScore on every candidate as the share of the
// requested preferences its tags or name satisfy. With nothing requested the
// pool is left untouched and every candidate keeps the neutral default.
func ApplyPrefs(pool []models.RestaurantResult, p Prefs) {
	if p.Empty() {
		return
	}

	terms := make([]string, 0, len(p.RequiredTags)+1)
	if p.CuisineKey != nil && *p.CuisineKey != "" {
		terms = append(terms, strings.ToLower(*p.CuisineKey))
	}
	for _, tag := range p.RequiredTags {
		terms = append(terms, strings.ToLower(tag))
	}

	for i := range pool {
		matched := 0
		for _, term := range terms {
			if candidateMatches(pool[i], term) {
				matched++
			}
		}
		score := float64(matched) / float64(len(terms))
		pool[i].CuisineScore = &score
	}
}

// candidateMatches checks the term against the provider's type tags and the
// place name, so "kosher" matches both a kosher_restaurant tag and a name
// like "Kosher Deli".
func candidateMatches(res models.RestaurantResult, term string) bool {
	if strings.Contains(strings.ToLower(res.Name), term) {
		return true
	}
	for _, tag := range res.Tags {
		if strings.Contains(strings.ToLower(tag), term) {
			return true
		}
	}
	return false
}
