package enrichment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/websearch"
)

const maxHitsPerAttempt = 10

// relaxPolicy is one rung of the progressive query relaxation ladder.
// Quoting loosens rung by rung until only the bare name remains.
type relaxPolicy struct {
	name      string
	needsCity bool
	build     func(site, name, city string) string
}

var relaxPolicies = []relaxPolicy{
	{"strict", true, func(site, name, city string) string {
		return fmt.Sprintf("site:%s %q %q", site, name, city)
	}},
	{"moderate", true, func(site, name, city string) string {
		return fmt.Sprintf("site:%s %q %s", site, name, city)
	}},
	{"relaxed", false, func(site, name, _ string) string {
		return fmt.Sprintf("site:%s %q", site, name)
	}},
	{"minimal", false, func(site, name, _ string) string {
		return fmt.Sprintf("site:%s %s", site, name)
	}},
}

// Resolver finds a provider's restaurant page via site-restricted web
// search. Retries on transient search failures live in the HTTP client;
// the resolver only walks the relaxation ladder.
type Resolver struct {
	search        websearch.Searcher
	searchTimeout time.Duration
	logger        *zap.Logger
}

func NewResolver(search websearch.Searcher, searchTimeout time.Duration, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{search: search, searchTimeout: searchTimeout, logger: logger}
}

// Resolve walks the relaxation ladder and returns the first validated URL.
// City-dependent rungs are skipped when no city is known. No configured
// search engine means an immediate not-found.
func (r *Resolver) Resolve(ctx context.Context, spec ProviderSpec, name, city string) (string, bool) {
	if r.search == nil || name == "" {
		return "", false
	}

	for _, policy := range relaxPolicies {
		if policy.needsCity && city == "" {
			continue
		}
		if ctx.Err() != nil {
			return "", false
		}

		query := policy.build(spec.SiteQuery, name, city)
		attemptCtx, cancel := context.WithTimeout(ctx, r.searchTimeout)
		hits, err := r.search.Search(attemptCtx, query, maxHitsPerAttempt)
		cancel()
		if err != nil {
			r.logger.Warn("Deep link search attempt failed",
				zap.String("provider", spec.Name),
				zap.String("policy", policy.name),
				zap.Error(err),
			)
			continue
		}

		if url, ok := bestMatch(spec, hits, name, city); ok {
			r.logger.Debug("Deep link resolved",
				zap.String("provider", spec.Name),
				zap.String("policy", policy.name),
			)
			return url, true
		}
	}
	return "", false
}
