package places

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestToProviderQuery(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	tests := []struct {
		name      string
		canonical string
		want      string
	}{
		{name: "empty falls back", canonical: "", want: "restaurant"},
		{name: "whitespace falls back", canonical: "   ", want: "restaurant"},
		{name: "table hit", canonical: "meat restaurant", want: "steakhouse"},
		{name: "table hit is case-insensitive", canonical: "Meat Restaurant", want: "steakhouse"},
		{name: "latin passthrough", canonical: "ramen", want: "ramen"},
		{name: "hebrew recovery", canonical: "סושי", want: "sushi"},
		{name: "sushi maps to itself", canonical: "sushi", want: "sushi"},
		{name: "russian recovery", canonical: "пицца", want: "pizza restaurant"},
		{name: "hebrew token inside phrase", canonical: "מסעדה חלבית", want: "dairy restaurant"},
		{name: "unrecoverable non-latin falls back", canonical: "مطعم", want: "restaurant"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, n.ToProviderQuery(tc.canonical))
		})
	}
}

func TestToProviderQueryIdempotent(t *testing.T) {
	n := NewNormalizer(zap.NewNop())

	inputs := []string{
		"", "meat restaurant", "hummus", "sushi", "ramen", "סושי", "пицца",
		"vegetarian restaurant", "burger", "cafe", "מסעדה בשרית",
	}
	for _, in := range inputs {
		once := n.ToProviderQuery(in)
		twice := n.ToProviderQuery(once)
		assert.Equal(t, once, twice, "normalize(normalize(%q))", in)
		assert.False(t, containsNonLatin(once), "non-latin output for %q", in)
		assert.NotEmpty(t, once)
	}
}
