package enrichment

import (
	"net/url"
	"strings"

	"github.com/dinefind/dinefind/internal/pkg/config"
)

// ProviderSpec describes one delivery provider's deep-link shape: which
// hosts its restaurant pages live on, the path segment a real restaurant
// page must contain, and the host used in site-restricted search queries.
type ProviderSpec struct {
	Name         string
	Hosts        []string
	RequiredPath string
	SiteQuery    string

	// PrefersCitySlug breaks score ties toward URLs whose path carries the
	// city slug. Wolt nests restaurant pages under city paths.
	PrefersCitySlug bool
}

var allProviders = []ProviderSpec{
	{
		Name:            "wolt",
		Hosts:           []string{"wolt.com", "*.wolt.com"},
		RequiredPath:    "/restaurant/",
		SiteQuery:       "wolt.com",
		PrefersCitySlug: true,
	},
	{
		Name:         "tenbis",
		Hosts:        []string{"10bis.co.il", "www.10bis.co.il"},
		RequiredPath: "/next/",
		SiteQuery:    "10bis.co.il",
	},
	{
		Name:         "mishloha",
		Hosts:        []string{"mishloha.co.il", "www.mishloha.co.il"},
		RequiredPath: "/now/r/",
		SiteQuery:    "mishloha.co.il",
	},
}

// Registry returns the providers enabled by feature flags, in fixed order.
func Registry(features config.FeaturesConfig) []ProviderSpec {
	enabled := make([]ProviderSpec, 0, len(allProviders))
	for _, p := range allProviders {
		switch p.Name {
		case "wolt":
			if !features.WoltEnrichment {
				continue
			}
		case "tenbis":
			if !features.TenbisEnrichment {
				continue
			}
		case "mishloha":
			if !features.MishlohaEnrichment {
				continue
			}
		}
		enabled = append(enabled, p)
	}
	return enabled
}

// ValidURL reports whether raw is a plausible restaurant page for this
// provider: https, allowlisted host (exact or wildcard suffix) and the
// required path segment present. Anything else is rejected, including
// aggregator and blog pages that mention the provider.
func (p ProviderSpec) ValidURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if !p.hostAllowed(host) {
		return false
	}
	return strings.Contains(strings.ToLower(u.Path), p.RequiredPath)
}

func (p ProviderSpec) hostAllowed(host string) bool {
	for _, allowed := range p.Hosts {
		if suffix, ok := strings.CutPrefix(allowed, "*."); ok {
			if strings.HasSuffix(host, "."+suffix) {
				return true
			}
			continue
		}
		if host == allowed {
			return true
		}
	}
	return false
}
