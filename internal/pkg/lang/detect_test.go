package lang

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  Language
	}{
		{name: "hebrew query", query: "מסעדה כשרה בתל אביב", want: LangHebrew},
		{name: "russian query", query: "ресторан рядом со мной", want: LangRussian},
		{name: "arabic query", query: "مطعم قريب مني", want: LangArabic},
		{name: "english query", query: "cheap italian near me", want: LangEnglish},
		{name: "digits and punctuation only", query: "123 ?!", want: LangUnknown},
		{name: "empty", query: "", want: LangUnknown},
		{
			name:  "latin with a few hebrew letters stays english",
			query: "pizza in תל אביב downtown area please",
			want:  LangEnglish,
		},
		{
			name:  "mixed below threshold is unknown",
			query: "sushi סושי",
			want:  LangUnknown,
		},
		{
			name:  "uppercase input is folded first",
			query: "BEST BURGER IN TOWN",
			want:  LangEnglish,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DetectLanguage(tc.query))
		})
	}
}

func TestDetectLanguageTieBreakOrder(t *testing.T) {
	// Four Hebrew letters against four Cyrillic letters: neither reaches the
	// 60% share, so the result must be unknown rather than an arbitrary pick.
	assert.Equal(t, LangUnknown, DetectLanguage("שלום мирр"))

	// Seven Hebrew letters against four Latin ones crosses the threshold and
	// Hebrew wins even though Latin letters are present.
	assert.Equal(t, LangHebrew, DetectLanguage("שווארמה pita"))
}

func TestSanitizeRegionCode(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{name: "valid uppercase", raw: "IL", want: "IL"},
		{name: "lowercase normalized", raw: "us", want: "US"},
		{name: "surrounding whitespace", raw: "  fr ", want: "FR"},
		{name: "three letters dropped", raw: "USA", want: ""},
		{name: "digits dropped", raw: "I1", want: ""},
		{name: "empty dropped", raw: "", want: ""},
		{name: "non-latin dropped", raw: "ישר", want: ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeRegionCode(tc.raw))
		})
	}
}
