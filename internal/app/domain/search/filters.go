package search

import (
	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/lang"
)

// Filter-source labels recorded per resolved field.
const (
	sourceIntentLock = "intent_lock"
	sourceGate       = "gate"
	sourceDetector   = "detector"
	sourceDevice     = "device"
	sourceDefault    = "default"
)

var supportedLanguages = map[string]struct{}{
	"he": {}, "en": {}, "ru": {}, "ar": {}, "fr": {}, "es": {},
}

// resolveSharedFilters pins language and region for every downstream stage.
// Intent locks win when confident and well-formed; otherwise resolution
// falls back through gate hint, script detector, device value, and finally
// the configured default. Every field records where its value came from.
func resolveSharedFilters(
	detected lang.Language,
	deviceRegion string,
	gate models.GateResult,
	intent *models.IntentResult,
	defaultRegion string,
) *models.FinalSharedFilters {
	f := &models.FinalSharedFilters{
		Disclaimers: models.Disclaimers{Hours: true, Dietary: true},
		Sources:     make(map[string]string, 2),
	}

	f.ProviderLanguage, f.Sources["language"] = resolveLanguage(detected, gate, intent)
	if f.ProviderLanguage == "he" {
		f.UILanguage = "he"
	} else {
		f.UILanguage = "en"
	}

	f.RegionCode, f.Sources["region"] = resolveRegion(deviceRegion, intent, defaultRegion)

	f.PriceIntent = intent.Hybrid.PriceIntent
	f.StrictCity = intent.Hybrid.StrictCity

	return f
}

func resolveLanguage(detected lang.Language, gate models.GateResult, intent *models.IntentResult) (string, string) {
	if _, ok := supportedLanguages[intent.Language]; ok && intent.Language != "other" {
		return intent.Language, sourceIntentLock
	}
	if _, ok := supportedLanguages[gate.Language]; ok {
		return gate.Language, sourceGate
	}
	if detected != lang.LangUnknown {
		return string(detected), sourceDetector
	}
	return "en", sourceDefault
}

func resolveRegion(deviceRegion string, intent *models.IntentResult, defaultRegion string) (string, string) {
	if candidate := lang.SanitizeRegionCode(intent.RegionCandidate); candidate != "" {
		return candidate, sourceIntentLock
	}
	if deviceRegion != "" {
		return deviceRegion, sourceDevice
	}
	return defaultRegion, sourceDefault
}

// mergeConstraints copies the extracted open-state constraints onto the
// shared filters once the post-constraints stage has answered. A nil
// constraints value (stage degraded) leaves the filters untouched.
func mergeConstraints(f *models.FinalSharedFilters, c *models.PostConstraints) {
	if c == nil {
		return
	}
	f.OpenState = c.OpenState
	f.OpenAt = c.OpenAt
	f.OpenBetween = c.OpenBetween
}
