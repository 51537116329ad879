package search

import "github.com/dinefind/dinefind/internal/app/models"

// User-visible assist text, localized to the UI language. Hebrew and
// English only; other provider languages fall back to English.

type localizedText struct {
	he string
	en string
}

func (t localizedText) in(uiLanguage string) string {
	if uiLanguage == "he" {
		return t.he
	}
	return t.en
}

var (
	msgNotFood = localizedText{
		he: "אני יודע לעזור רק בחיפוש מסעדות ואוכל. נסו לשאול על מקום לאכול בו.",
		en: "I can only help with restaurants and food. Try asking about somewhere to eat.",
	}
	msgAskLocation = localizedText{
		he: "כדי לחפש לידכם אני צריך מיקום. אפשר לשתף מיקום או לציין עיר?",
		en: "I need a location to search near you. Share your location or name a city?",
	}
	msgAskAnchor = localizedText{
		he: "באיזו עיר או אזור לחפש?",
		en: "Which city or area should I search in?",
	}
	msgTooShort = localizedText{
		he: "אפשר לפרט קצת יותר מה אתם מחפשים?",
		en: "Could you tell me a bit more about what you're looking for?",
	}
)

var recoverMessages = map[models.FailureReason]localizedText{
	models.FailureNoResults: {
		he: "לא מצאתי מסעדות שמתאימות לחיפוש. נסו לנסח אחרת או להרחיב את האזור.",
		en: "I couldn't find restaurants matching that. Try rephrasing or widening the area.",
	},
	models.FailureProviderError: {
		he: "שירות החיפוש לא זמין כרגע. נסו שוב בעוד רגע.",
		en: "The search service is unavailable right now. Please try again in a moment.",
	},
	models.FailureTimeout: {
		he: "החיפוש לקח יותר מדי זמן. נסו שוב.",
		en: "The search took too long. Please try again.",
	},
	models.FailureQuotaExceeded: {
		he: "יש כרגע עומס על השירות. נסו שוב בעוד כמה דקות.",
		en: "The service is under heavy load. Please try again in a few minutes.",
	},
	models.FailureGeocodingFailed: {
		he: "לא הצלחתי לזהות את המיקום שביקשתם. נסו לציין עיר מוכרת.",
		en: "I couldn't recognize that location. Try naming a well-known city.",
	},
}

func recoverMessage(reason models.FailureReason, uiLanguage string) string {
	if msg, ok := recoverMessages[reason]; ok {
		return msg.in(uiLanguage)
	}
	return recoverMessages[models.FailureProviderError].in(uiLanguage)
}
