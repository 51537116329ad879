package classify

import "google.golang.org/genai"

// Strict response schemas: every field required, nullable fields explicitly
// nullable. The JSON hash of each schema is attached to its calls so drift
// between prompt and schema versions is observable.

func nullable(s *genai.Schema) *genai.Schema {
	s.Nullable = genai.Ptr(true)
	return s
}

var gateSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"foodSignal": {Type: genai.TypeString, Enum: []string{"YES", "NO", "MAYBE"}},
		"language":   {Type: genai.TypeString},
		"route":      {Type: genai.TypeString, Enum: []string{"CONTINUE", "STOP", "ASK_CLARIFY"}},
		"confidence": {Type: genai.TypeNumber},
		"reason":     {Type: genai.TypeString},
	},
	Required: []string{"foodSignal", "language", "route", "confidence", "reason"},
}

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"route":              {Type: genai.TypeString, Enum: []string{"TEXTSEARCH", "NEARBY", "LANDMARK"}},
		"confidence":         {Type: genai.TypeNumber},
		"reason":             {Type: genai.TypeString},
		"language":           {Type: genai.TypeString},
		"languageConfidence": {Type: genai.TypeNumber},
		"regionCandidate":    {Type: genai.TypeString},
		"regionConfidence":   {Type: genai.TypeNumber},
		"regionReason":       {Type: genai.TypeString},
		"regionCode":         nullable(&genai.Schema{Type: genai.TypeString}),
		"cityText":           nullable(&genai.Schema{Type: genai.TypeString}),
		"landmarkText":       nullable(&genai.Schema{Type: genai.TypeString}),
		"radiusMeters":       nullable(&genai.Schema{Type: genai.TypeInteger}),
		"canonicalCategory":  {Type: genai.TypeString},
		"hybrid": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"distanceIntent":   {Type: genai.TypeBoolean},
				"openNowRequested": {Type: genai.TypeBoolean},
				"priceIntent":      {Type: genai.TypeString, Enum: []string{"any", "cheap", "mid", "expensive"}},
				"qualityIntent":    {Type: genai.TypeBoolean},
				"strictCity":       {Type: genai.TypeBoolean},
				"occasion":         nullable(&genai.Schema{Type: genai.TypeString}),
				"cuisineKey":       nullable(&genai.Schema{Type: genai.TypeString}),
			},
			Required: []string{"distanceIntent", "openNowRequested", "priceIntent", "qualityIntent", "strictCity", "occasion", "cuisineKey"},
		},
		"clarify": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"question": {Type: genai.TypeString},
				"choices":  {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			},
			Required: []string{"question", "choices"},
		}),
	},
	Required: []string{
		"route", "confidence", "reason", "language", "languageConfidence",
		"regionCandidate", "regionConfidence", "regionReason", "regionCode",
		"cityText", "landmarkText", "radiusMeters", "canonicalCategory",
		"hybrid", "clarify",
	},
}

var latLngSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"lat": {Type: genai.TypeNumber},
		"lng": {Type: genai.TypeNumber},
	},
	Required: []string{"lat", "lng"},
}

var routeSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"route": {Type: genai.TypeString, Enum: []string{"TEXTSEARCH", "NEARBY", "LANDMARK"}},
		"textSearch": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"textQuery": {Type: genai.TypeString},
				"bias": nullable(&genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"center":       latLngSchema,
						"radiusMeters": {Type: genai.TypeInteger},
					},
					Required: []string{"center", "radiusMeters"},
				}),
			},
			Required: []string{"textQuery", "bias"},
		}),
		"nearby": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"center":       latLngSchema,
				"radiusMeters": {Type: genai.TypeInteger},
				"keyword":      {Type: genai.TypeString},
			},
			Required: []string{"center", "radiusMeters", "keyword"},
		}),
		"landmark": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"geocodeQuery": {Type: genai.TypeString},
				"radiusMeters": {Type: genai.TypeInteger},
				"keyword":      {Type: genai.TypeString},
			},
			Required: []string{"geocodeQuery", "radiusMeters", "keyword"},
		}),
		"cityText": nullable(&genai.Schema{Type: genai.TypeString}),
	},
	Required: []string{"route", "textSearch", "nearby", "landmark", "cityText"},
}

var postConstraintsSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"openState": nullable(&genai.Schema{
			Type: genai.TypeString,
			Enum: []string{"OPEN_NOW", "CLOSED_NOW", "OPEN_AT", "OPEN_BETWEEN"},
		}),
		"openAt": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"day":      nullable(&genai.Schema{Type: genai.TypeString}),
				"timeHHmm": nullable(&genai.Schema{Type: genai.TypeString}),
			},
			Required: []string{"day", "timeHHmm"},
		}),
		"openBetween": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"day":       nullable(&genai.Schema{Type: genai.TypeString}),
				"startHHmm": nullable(&genai.Schema{Type: genai.TypeString}),
				"endHHmm":   nullable(&genai.Schema{Type: genai.TypeString}),
			},
			Required: []string{"day", "startHHmm", "endHHmm"},
		}),
		"priceLevel": nullable(&genai.Schema{Type: genai.TypeInteger}),
		"priceLevelRange": nullable(&genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"min": {Type: genai.TypeInteger},
				"max": {Type: genai.TypeInteger},
			},
			Required: []string{"min", "max"},
		}),
		"isKosher":     nullable(&genai.Schema{Type: genai.TypeBoolean}),
		"isGlutenFree": nullable(&genai.Schema{Type: genai.TypeBoolean}),
		"requirements": {
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"accessible": nullable(&genai.Schema{Type: genai.TypeBoolean}),
				"parking":    nullable(&genai.Schema{Type: genai.TypeBoolean}),
			},
			Required: []string{"accessible", "parking"},
		},
	},
	Required: []string{
		"openState", "openAt", "openBetween", "priceLevel", "priceLevelRange",
		"isKosher", "isGlutenFree", "requirements",
	},
}
