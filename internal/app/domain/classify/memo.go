package classify

import (
	"strings"

	gocache "github.com/patrickmn/go-cache"

	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/cache"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// Memoizer caches intent and post-constraints classifications for identical
// queries inside a short window. Off by default; multi-turn context arrives
// as an opaque ctxHash so replayed sessions can opt in without changing the
// key shape.
type Memoizer struct {
	enabled bool
	store   *gocache.Cache
}

// NewMemoizer builds the memo store from config. Returns a disabled memoizer
// when the feature flag is off; all methods are nil-safe.
func NewMemoizer(cfg *config.Config) *Memoizer {
	if !cfg.Features.IntentMemo {
		return &Memoizer{}
	}
	return &Memoizer{
		enabled: true,
		store:   gocache.New(cfg.Cache.IntentTTL, cfg.Cache.IntentTTL/2),
	}
}

func (m *Memoizer) GetIntent(query, language, ctxHash string) (*models.IntentResult, bool) {
	if m == nil || !m.enabled {
		return nil, false
	}
	v, ok := m.store.Get(cache.IntentKey(normalizeMemoQuery(query), language, ctxHash))
	if !ok {
		return nil, false
	}
	res, ok := v.(*models.IntentResult)
	return res, ok
}

func (m *Memoizer) SetIntent(query, language, ctxHash string, intent *models.IntentResult) {
	if m == nil || !m.enabled {
		return
	}
	m.store.SetDefault(cache.IntentKey(normalizeMemoQuery(query), language, ctxHash), intent)
}

func (m *Memoizer) GetConstraints(query, language, ctxHash string) (*models.PostConstraints, bool) {
	if m == nil || !m.enabled {
		return nil, false
	}
	v, ok := m.store.Get("constraints:" + cache.IntentKey(normalizeMemoQuery(query), language, ctxHash))
	if !ok {
		return nil, false
	}
	res, ok := v.(*models.PostConstraints)
	return res, ok
}

func (m *Memoizer) SetConstraints(query, language, ctxHash string, constraints *models.PostConstraints) {
	if m == nil || !m.enabled {
		return
	}
	m.store.SetDefault("constraints:"+cache.IntentKey(normalizeMemoQuery(query), language, ctxHash), constraints)
}

func normalizeMemoQuery(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}
