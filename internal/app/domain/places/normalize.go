package places

import (
	"sort"
	"strings"
	"unicode"

	"go.uber.org/zap"
)

// Canonical category -> provider-preferred query. The provider's own corpus
// matches some phrasings far better than the literal category.
var providerQueryTable = map[string]string{
	"meat restaurant":       "steakhouse",
	"steakhouse":            "steakhouse",
	"grill restaurant":      "grill restaurant",
	"dairy restaurant":      "dairy restaurant",
	"hummus":                "hummus restaurant",
	"vegetarian restaurant": "vegetarian restaurant",
	"vegan restaurant":      "vegan restaurant",
	"sushi":                 "sushi",
	"pizza":                 "pizza restaurant",
	"burger":                "hamburger restaurant",
	"shawarma":              "shawarma restaurant",
	"falafel":               "falafel restaurant",
	"fish restaurant":       "seafood restaurant",
	"asian":                 "asian restaurant",
	"italian":               "italian restaurant",
	"cafe":                  "cafe",
	"bakery":                "bakery",
}

// Non-Latin token -> English canonical. Recovery net for the cases where a
// classifier leaks a Hebrew or Russian category through as-is.
var recoveryTable = map[string]string{
	"בשרית":      "meat restaurant",
	"בשר":        "meat restaurant",
	"סטייקייה":   "steakhouse",
	"סטייק":      "steakhouse",
	"חלבית":      "dairy restaurant",
	"חומוס":      "hummus",
	"צמחוני":     "vegetarian restaurant",
	"טבעוני":     "vegan restaurant",
	"סושי":       "sushi",
	"פיצה":       "pizza",
	"המבורגר":    "burger",
	"שווארמה":    "shawarma",
	"פלאפל":      "falafel",
	"דגים":       "fish restaurant",
	"בית קפה":    "cafe",
	"мясной":     "meat restaurant",
	"стейк":      "steakhouse",
	"молочный":   "dairy restaurant",
	"хумус":      "hummus",
	"вегетариан": "vegetarian restaurant",
	"суши":       "sushi",
	"пицца":      "pizza",
	"бургер":     "burger",
	"шаурма":     "shawarma",
	"фалафель":   "falafel",
}

const fallbackQuery = "restaurant"

// Normalizer maps canonical categories to the provider's preferred query
// text. Output is always Latin-only and never empty; the function is
// idempotent so a normalized value can flow through again unchanged.
type Normalizer struct {
	logger *zap.Logger
}

func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger}
}

// ToProviderQuery normalizes one canonical category.
func (n *Normalizer) ToProviderQuery(canonical string) string {
	canonical = strings.TrimSpace(strings.ToLower(canonical))
	if canonical == "" {
		return fallbackQuery
	}

	if mapped, ok := providerQueryTable[canonical]; ok {
		return mapped
	}

	if !containsNonLatin(canonical) {
		return canonical
	}

	// Non-Latin leak: try exact recovery, then token-level recovery, then
	// give up to the generic fallback.
	if recovered, matchType, ok := n.recover(canonical); ok {
		n.logger.Info("normalizer_recovery",
			zap.String("match_type", matchType),
			zap.String("recovered", recovered),
		)
		return n.ToProviderQuery(recovered)
	}

	n.logger.Warn("normalizer_recovery_failed", zap.String("canonical", canonical))
	return fallbackQuery
}

// recoveryTokens is the recovery table's key set, longest first, so the most
// specific token wins deterministically ("בשרית" before "בשר").
var recoveryTokens = func() []string {
	tokens := make([]string, 0, len(recoveryTable))
	for t := range recoveryTable {
		tokens = append(tokens, t)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}()

func (n *Normalizer) recover(canonical string) (string, string, bool) {
	if recovered, ok := recoveryTable[canonical]; ok {
		return recovered, "exact", true
	}
	for _, token := range recoveryTokens {
		if strings.Contains(canonical, token) {
			return recoveryTable[token], "token", true
		}
	}
	return "", "", false
}

func containsNonLatin(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) && !unicode.Is(unicode.Latin, r) {
			return true
		}
	}
	return false
}
