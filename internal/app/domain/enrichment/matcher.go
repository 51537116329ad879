package enrichment

import (
	"strings"
	"unicode"

	"github.com/dinefind/dinefind/internal/app/domain/websearch"
)

// Generic venue words carry no identity; a title match on "Bar" alone must
// not count as a name match.
var nameSuffixes = map[string]struct{}{
	"restaurant": {},
	"bar":        {},
	"cafe":       {},
	"grill":      {},
	"bbq":        {},
	"מסעדה":      {},
	"מסעדת":      {},
	"בר":         {},
	"קפה":        {},
	"גריל":       {},
}

// Match scores per field.
const (
	scoreTitleName   = 50
	scoreSnippetName = 20
	scoreCity        = 30
	matchThreshold   = 50
)

// normalizeName lowercases, strips punctuation and drops generic venue
// words, so "Taizu Restaurant & Bar" and "taizu" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	var kept []string
	for _, tok := range strings.Fields(b.String()) {
		if _, generic := nameSuffixes[tok]; generic {
			continue
		}
		kept = append(kept, tok)
	}
	return strings.Join(kept, " ")
}

// citySlug turns a city name into the hyphenated form used in URL paths.
func citySlug(city string) string {
	return strings.ReplaceAll(normalizeName(city), " ", "-")
}

// bestMatch picks the most plausible restaurant URL from search hits.
// Invalid URLs are skipped before scoring; ties resolve to the earliest
// hit, except that providers with city-slug paths prefer a tied hit whose
// path carries the city.
func bestMatch(spec ProviderSpec, hits []websearch.SearchHit, name, city string) (string, bool) {
	normName := normalizeName(name)
	if normName == "" {
		return "", false
	}
	normCity := normalizeName(city)
	slug := citySlug(city)

	bestURL := ""
	bestScore := 0
	bestHasSlug := false

	for _, hit := range hits {
		if !spec.ValidURL(hit.URL) {
			continue
		}

		title := normalizeName(hit.Title)
		snippet := normalizeName(hit.Snippet)

		score := 0
		if strings.Contains(title, normName) {
			score += scoreTitleName
		}
		if strings.Contains(snippet, normName) {
			score += scoreSnippetName
		}
		if normCity != "" && (strings.Contains(title, normCity) || strings.Contains(snippet, normCity)) {
			score += scoreCity
		}
		if score < matchThreshold {
			continue
		}

		hasSlug := spec.PrefersCitySlug && slug != "" &&
			strings.Contains(strings.ToLower(hit.URL), "/"+slug+"/")

		better := score > bestScore ||
			(score == bestScore && hasSlug && !bestHasSlug)
		if better {
			bestURL = hit.URL
			bestScore = score
			bestHasSlug = hasSlug
		}
	}

	return bestURL, bestURL != ""
}
