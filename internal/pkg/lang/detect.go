package lang

import (
	"strings"
	"unicode"
)

// Language is the detected query language. Only the four scripts the detector
// can distinguish are produced here; fr/es arrive from classifier hints.
type Language string

const (
	LangHebrew  Language = "he"
	LangRussian Language = "ru"
	LangArabic  Language = "ar"
	LangEnglish Language = "en"
	LangUnknown Language = "unknown"
)

// majorityShare is the fraction of script code-points a single script must
// reach for the query to be attributed to it.
const majorityShare = 0.60

// scriptOrder fixes the evaluation order; the first script reaching the
// majority share wins, so Hebrew outranks Cyrillic, Cyrillic outranks
// Arabic, Arabic outranks Latin on boundary inputs.
var scriptOrder = []struct {
	lang  Language
	table *unicode.RangeTable
}{
	{LangHebrew, unicode.Hebrew},
	{LangRussian, unicode.Cyrillic},
	{LangArabic, unicode.Arabic},
	{LangEnglish, unicode.Latin},
}

// DetectLanguage attributes a query to a language by majority script:
// count the code-points belonging to Hebrew, Cyrillic, Arabic and Latin,
// then pick the first script (in scriptOrder) holding at least 60% of the
// counted total. Queries with no script letters at all are unknown.
func DetectLanguage(query string) Language {
	counts := make(map[Language]int, len(scriptOrder))
	total := 0

	for _, r := range strings.ToLower(query) {
		for _, s := range scriptOrder {
			if unicode.Is(s.table, r) {
				counts[s.lang]++
				total++
				break
			}
		}
	}

	if total == 0 {
		return LangUnknown
	}

	for _, s := range scriptOrder {
		if float64(counts[s.lang])/float64(total) >= majorityShare {
			return s.lang
		}
	}
	return LangUnknown
}
