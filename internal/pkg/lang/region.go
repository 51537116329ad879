package lang

import (
	"regexp"
	"strings"
)

var regionCodeRe = regexp.MustCompile(`^[A-Z]{2}$`)

// SanitizeRegionCode normalizes a caller-supplied region hint to an
// ISO-3166-1 alpha-2 code. Anything that does not look like one is dropped:
// the pipeline treats region as a market/language hint, never as a location
// anchor, so a bad value is safer discarded than guessed.
func SanitizeRegionCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if !regionCodeRe.MatchString(code) {
		return ""
	}
	return code
}
