package classify

import (
	"strings"

	a "github.com/petar-dambovaliev/aho-corasick"
)

// Deterministic canonical-category fallback: when the intent stage returns an
// empty category or low confidence, a whole-word scan over a fixed he/ru/en
// token table substitutes the category. Non-ASCII scripts defeat the
// automaton's ASCII whole-word mode, so Hebrew and Russian tokens go through
// a plain substring table instead.

var asciiFallbackBuilder = a.NewAhoCorasickBuilder(a.Opts{
	AsciiCaseInsensitive: true,
	MatchOnlyWholeWords:  true,
})

var asciiFallbackTokens = []string{
	"meat", "steak", "steakhouse", "grill",
	"dairy", "milky",
	"hummus", "houmous",
	"vegetarian", "vegan",
	"sushi", "pizza", "burger", "hamburger", "shawarma", "falafel",
}

var asciiFallbackMatcher = asciiFallbackBuilder.Build(asciiFallbackTokens)

var asciiTokenCategory = map[string]string{
	"meat": "meat restaurant", "steak": "steakhouse", "steakhouse": "steakhouse",
	"grill": "grill restaurant",
	"dairy": "dairy restaurant", "milky": "dairy restaurant",
	"hummus": "hummus", "houmous": "hummus",
	"vegetarian": "vegetarian restaurant", "vegan": "vegan restaurant",
	"sushi": "sushi", "pizza": "pizza", "burger": "burger",
	"hamburger": "burger", "shawarma": "shawarma", "falafel": "falafel",
}

// nonLatinTokenCategory covers the Hebrew and Russian spellings of the same
// fixed set. Substring containment is safe here: the tokens are full words
// and the scripts do not embed them inside unrelated words the way English
// can.
var nonLatinTokenCategory = []struct {
	token    string
	category string
}{
	{"בשרית", "meat restaurant"},
	{"בשר", "meat restaurant"},
	{"סטייק", "steakhouse"},
	{"חלבית", "dairy restaurant"},
	{"חומוס", "hummus"},
	{"צמחוני", "vegetarian restaurant"},
	{"טבעוני", "vegan restaurant"},
	{"סושי", "sushi"},
	{"פיצה", "pizza"},
	{"המבורגר", "burger"},
	{"שווארמה", "shawarma"},
	{"פלאפל", "falafel"},
	{"мясн", "meat restaurant"},
	{"стейк", "steakhouse"},
	{"молочн", "dairy restaurant"},
	{"хумус", "hummus"},
	{"вегетариан", "vegetarian restaurant"},
	{"суши", "sushi"},
	{"пицц", "pizza"},
	{"бургер", "burger"},
	{"шаурм", "shawarma"},
	{"фалафел", "falafel"},
}

// FallbackCategory scans the raw query for a known food token and returns
// its canonical category. The second return is false when nothing matched.
func FallbackCategory(query string) (string, bool) {
	lowered := strings.ToLower(query)

	iter := asciiFallbackMatcher.Iter(lowered)
	if m := iter.Next(); m != nil {
		token := lowered[m.Start():m.End()]
		if cat, ok := asciiTokenCategory[token]; ok {
			return cat, true
		}
	}

	for _, e := range nonLatinTokenCategory {
		if strings.Contains(lowered, e.token) {
			return e.category, true
		}
	}
	return "", false
}
