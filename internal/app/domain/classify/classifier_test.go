package classify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/llm"
	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		LLM: config.LLMConfig{Temperature: 0.2},
	}
}

func stageOutput(raw string) *llm.GenerateOutput {
	return &llm.GenerateOutput{
		Raw:        json.RawMessage(raw),
		PromptHash: "abc123def456",
		SchemaHash: "fed654cba321",
	}
}

func TestGateSuccess(t *testing.T) {
	mockAI := new(MockAIClient)
	mockAI.On("GenerateStructured", mock.Anything, mock.MatchedBy(func(in llm.GenerateInput) bool {
		return in.Stage == "gate"
	})).Return(stageOutput(`{"foodSignal":"YES","language":"en","route":"CONTINUE","confidence":0.95,"reason":"food query"}`), nil)

	c := NewClassifier(mockAI, testConfig(), zap.NewNop(), nil)
	gate := c.Gate(context.Background(), "sushi near me")

	assert.Equal(t, models.FoodYes, gate.FoodSignal)
	assert.Equal(t, models.GateContinue, gate.Route)
	assert.InDelta(t, 0.95, gate.Confidence, 1e-9)
	mockAI.AssertExpectations(t)
}

func TestGateLenientFallbackOnFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "timeout", err: &llm.StageError{Stage: "gate", Kind: llm.KindTimeout, Err: errors.New("deadline")}},
		{name: "quota", err: &llm.StageError{Stage: "gate", Kind: llm.KindQuota, Err: errors.New("429")}},
		{name: "other", err: errors.New("transport broke")},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockAI := new(MockAIClient)
			mockAI.On("GenerateStructured", mock.Anything, mock.Anything).Return(nil, tc.err)

			c := NewClassifier(mockAI, testConfig(), zap.NewNop(), nil)
			gate := c.Gate(context.Background(), "burger")

			// The gate never blocks a search on its own failure.
			assert.Equal(t, models.GateContinue, gate.Route)
			assert.Equal(t, models.FoodMaybe, gate.FoodSignal)
			mockAI.AssertExpectations(t)
		})
	}
}

func TestIntentLandmarkInvariant(t *testing.T) {
	mockAI := new(MockAIClient)
	mockAI.On("GenerateStructured", mock.Anything, mock.Anything).Return(stageOutput(`{
		"route":"LANDMARK","confidence":0.9,"reason":"landmark anchor","language":"en",
		"languageConfidence":0.9,"regionCandidate":"IL","regionConfidence":0.8,
		"regionReason":"hebrew landmark","regionCode":null,"cityText":null,
		"landmarkText":null,"radiusMeters":null,"canonicalCategory":"sushi",
		"hybrid":{"distanceIntent":false,"openNowRequested":false,"priceIntent":"any",
		"qualityIntent":false,"occasion":null,"cuisineKey":null},"clarify":null}`), nil)

	c := NewClassifier(mockAI, testConfig(), zap.NewNop(), nil)
	_, err := c.Intent(context.Background(), "sushi near azrieli", "en", "")

	var se *llm.StageError
	assert.ErrorAs(t, err, &se)
	assert.Equal(t, llm.KindSchemaInvalid, se.Kind)
}

func TestIntentCategoryFallback(t *testing.T) {
	tests := []struct {
		name     string
		response string
		query    string
		want     string
	}{
		{
			name: "empty category substituted",
			response: `{
				"route":"NEARBY","confidence":0.9,"reason":"","language":"en",
				"languageConfidence":0.9,"regionCandidate":"IL","regionConfidence":0.5,
				"regionReason":"","regionCode":null,"cityText":null,"landmarkText":null,
				"radiusMeters":null,"canonicalCategory":"",
				"hybrid":{"distanceIntent":true,"openNowRequested":false,"priceIntent":"any",
				"qualityIntent":false,"occasion":null,"cuisineKey":null},"clarify":null}`,
			query: "hummus near me",
			want:  "hummus",
		},
		{
			name: "low confidence substituted from hebrew",
			response: `{
				"route":"NEARBY","confidence":0.4,"reason":"","language":"he",
				"languageConfidence":0.9,"regionCandidate":"IL","regionConfidence":0.5,
				"regionReason":"","regionCode":null,"cityText":null,"landmarkText":null,
				"radiusMeters":null,"canonicalCategory":"food",
				"hybrid":{"distanceIntent":true,"openNowRequested":false,"priceIntent":"any",
				"qualityIntent":false,"occasion":null,"cuisineKey":null},"clarify":null}`,
			query: "סושי קרוב אליי",
			want:  "sushi",
		},
		{
			name: "confident category untouched",
			response: `{
				"route":"NEARBY","confidence":0.92,"reason":"","language":"en",
				"languageConfidence":0.9,"regionCandidate":"IL","regionConfidence":0.5,
				"regionReason":"","regionCode":null,"cityText":null,"landmarkText":null,
				"radiusMeters":null,"canonicalCategory":"ramen",
				"hybrid":{"distanceIntent":true,"openNowRequested":false,"priceIntent":"any",
				"qualityIntent":false,"occasion":null,"cuisineKey":null},"clarify":null}`,
			query: "pizza near me",
			want:  "ramen",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mockAI := new(MockAIClient)
			mockAI.On("GenerateStructured", mock.Anything, mock.Anything).Return(stageOutput(tc.response), nil)

			c := NewClassifier(mockAI, testConfig(), zap.NewNop(), nil)
			intent, err := c.Intent(context.Background(), tc.query, "en", "")

			assert.NoError(t, err)
			assert.Equal(t, tc.want, intent.CanonicalCategory)
		})
	}
}

func TestPlanRouteUnionValidation(t *testing.T) {
	filters := &models.FinalSharedFilters{ProviderLanguage: "he", RegionCode: "IL"}
	intent := &models.IntentResult{Route: models.RouteNearby}

	t.Run("mismatched union rejected", func(t *testing.T) {
		mockAI := new(MockAIClient)
		mockAI.On("GenerateStructured", mock.Anything, mock.Anything).Return(stageOutput(`{
			"route":"NEARBY","textSearch":{"textQuery":"sushi","bias":null},
			"nearby":null,"landmark":null,"cityText":null}`), nil)

		c := NewClassifier(mockAI, testConfig(), zap.NewNop(), nil)
		_, err := c.PlanRoute(context.Background(), "sushi", intent, filters, nil)

		var se *llm.StageError
		assert.ErrorAs(t, err, &se)
		assert.Equal(t, llm.KindSchemaInvalid, se.Kind)
	})

	t.Run("language and region stamped onto plan", func(t *testing.T) {
		mockAI := new(MockAIClient)
		mockAI.On("GenerateStructured", mock.Anything, mock.Anything).Return(stageOutput(`{
			"route":"NEARBY","textSearch":null,
			"nearby":{"center":{"lat":32.07,"lng":34.79},"radiusMeters":1500,"keyword":"sushi"},
			"landmark":null,"cityText":null}`), nil)

		c := NewClassifier(mockAI, testConfig(), zap.NewNop(), nil)
		plan, err := c.PlanRoute(context.Background(), "sushi", intent, filters, &models.LatLng{Lat: 32.07, Lng: 34.79})

		assert.NoError(t, err)
		assert.Equal(t, "he", plan.Language)
		assert.Equal(t, "IL", plan.Region)
		assert.NotNil(t, plan.Nearby)
	})
}

func TestFallbackCategory(t *testing.T) {
	tests := []struct {
		query string
		want  string
		ok    bool
	}{
		{query: "best hummus in town", want: "hummus", ok: true},
		{query: "steakhouse please", want: "steakhouse", ok: true},
		{query: "СУШИ рядом", want: "sushi", ok: true},
		{query: "מסעדה חלבית", want: "dairy restaurant", ok: true},
		{query: "something to celebrate", want: "", ok: false},
		// whole-word: "meat" inside another word must not match
		{query: "meatspace gathering", want: "", ok: false},
	}

	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			got, ok := FallbackCategory(tc.query)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMemoizerDisabledByDefault(t *testing.T) {
	memo := NewMemoizer(&config.Config{})
	memo.SetIntent("q", "en", "", &models.IntentResult{Route: models.RouteNearby})
	_, ok := memo.GetIntent("q", "en", "")
	assert.False(t, ok)
}

func TestMemoizerRoundTrip(t *testing.T) {
	cfg := &config.Config{}
	cfg.Features.IntentMemo = true
	cfg.Cache.IntentTTL = 10 * time.Minute

	memo := NewMemoizer(cfg)
	intent := &models.IntentResult{Route: models.RouteTextSearch, CanonicalCategory: "sushi"}
	memo.SetIntent("Sushi  In Haifa", "en", "", intent)

	// Whitespace/case normalization makes equivalent queries share an entry.
	got, ok := memo.GetIntent("sushi in haifa", "en", "")
	assert.True(t, ok)
	assert.Equal(t, intent, got)

	_, ok = memo.GetIntent("sushi in haifa", "he", "")
	assert.False(t, ok)
}
