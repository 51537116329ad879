package enrichment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinefind/dinefind/internal/pkg/config"
)

func providerByName(t *testing.T, name string) ProviderSpec {
	t.Helper()
	for _, p := range allProviders {
		if p.Name == name {
			return p
		}
	}
	t.Fatalf("unknown provider %s", name)
	return ProviderSpec{}
}

func TestValidURL(t *testing.T) {
	tests := []struct {
		provider string
		url      string
		want     bool
	}{
		{"wolt", "https://wolt.com/en/isr/tel-aviv/restaurant/taizu", true},
		{"wolt", "https://wolt.com/he/isr/jerusalem/restaurant/hummus-ben-sira", true},
		{"wolt", "https://consumer.wolt.com/en/isr/tel-aviv/restaurant/taizu", true},
		{"wolt", "https://wolt.com/en/isr/tel-aviv/venue/taizu", false},
		{"wolt", "https://notwolt.com/restaurant/taizu", false},
		{"wolt", "https://evil-wolt.com/restaurant/taizu", false},
		{"tenbis", "https://www.10bis.co.il/next/restaurants/menu/delivery/19156", true},
		{"tenbis", "https://10bis.co.il/next/restaurants/menu/delivery/19156", true},
		{"tenbis", "https://10bis.co.il/restaurants/19156", false},
		{"tenbis", "https://app.10bis.co.il/next/restaurants/19156", false},
		{"mishloha", "https://mishloha.co.il/now/r/12345", true},
		{"mishloha", "https://www.mishloha.co.il/now/r/12345", true},
		{"mishloha", "https://mishloha.co.il/r/12345", false},
		{"mishloha", "ftp://mishloha.co.il/now/r/12345", false},
	}

	for _, tt := range tests {
		spec := providerByName(t, tt.provider)
		assert.Equal(t, tt.want, spec.ValidURL(tt.url), "%s: %s", tt.provider, tt.url)
	}
}

func TestRegistryHonorsFeatureFlags(t *testing.T) {
	all := Registry(config.FeaturesConfig{WoltEnrichment: true, TenbisEnrichment: true, MishlohaEnrichment: true})
	require.Len(t, all, 3)
	assert.Equal(t, "wolt", all[0].Name)

	some := Registry(config.FeaturesConfig{TenbisEnrichment: true})
	require.Len(t, some, 1)
	assert.Equal(t, "tenbis", some[0].Name)

	assert.Empty(t, Registry(config.FeaturesConfig{}))
}
