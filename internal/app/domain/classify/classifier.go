package classify

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/dinefind/dinefind/internal/app/domain/llm"
	"github.com/dinefind/dinefind/internal/app/models"
	"github.com/dinefind/dinefind/internal/pkg/config"
)

// Classifier runs the four model-driven pipeline stages against the
// structured-output capability. Each stage is one call, one attempt; the
// orchestrator decides what a failure means.
type Classifier struct {
	ai       llm.AIClient
	timeouts config.TimeoutsConfig
	temp     float32
	logger   *zap.Logger
	memo     *Memoizer
}

// NewClassifier wires the stages. memo may be nil (memoization off).
func NewClassifier(ai llm.AIClient, cfg *config.Config, logger *zap.Logger, memo *Memoizer) *Classifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Classifier{
		ai:       ai,
		timeouts: cfg.Timeouts,
		temp:     float32(cfg.LLM.Temperature),
		logger:   logger,
		memo:     memo,
	}
}

// Gate is the cheap first classifier. It is the only stage with a lenient
// failure default: any model failure yields CONTINUE so a flaky gate can
// never block a legitimate search.
func (c *Classifier) Gate(ctx context.Context, query string) models.GateResult {
	out, err := c.ai.GenerateStructured(ctx, llm.GenerateInput{
		Stage:         "gate",
		SystemPrompt:  gateSystemPrompt,
		PromptVersion: gatePromptVersion,
		UserPrompt:    query,
		Schema:        gateSchema,
		Temperature:   c.temp,
		Timeout:       c.timeouts.Gate,
	})
	if err != nil {
		c.logger.Warn("Gate failed, falling back to full analysis",
			zap.String("kind", string(llm.KindOf(err))),
			zap.Error(err),
		)
		return models.GateResult{
			FoodSignal: models.FoodMaybe,
			Language:   "other",
			Route:      models.GateContinue,
			Confidence: 0,
			Reason:     "gate unavailable, full analysis",
		}
	}

	var gate models.GateResult
	if err := json.Unmarshal(out.Raw, &gate); err != nil {
		c.logger.Warn("Gate response unmarshal failed, falling back", zap.Error(err))
		return models.GateResult{
			FoodSignal: models.FoodMaybe,
			Language:   "other",
			Route:      models.GateContinue,
			Reason:     "gate parse failure, full analysis",
		}
	}

	c.logger.Info("gate_decision",
		zap.String("food_signal", string(gate.FoodSignal)),
		zap.String("route", string(gate.Route)),
		zap.String("language", gate.Language),
		zap.Float64("confidence", gate.Confidence),
		zap.String("prompt_hash", out.PromptHash),
		zap.String("schema_hash", out.SchemaHash),
	)
	return gate
}

// Intent classifies the query into a route and extracts entities. The gate's
// language is pinned into the system prompt. A failure propagates as a
// *llm.StageError; confidence-based category fallback is applied on success.
func (c *Classifier) Intent(ctx context.Context, query, gateLanguage, ctxHash string) (*models.IntentResult, error) {
	if cached, ok := c.memo.GetIntent(query, gateLanguage, ctxHash); ok {
		c.logger.Debug("Intent memo hit", zap.String("language", gateLanguage))
		return cached, nil
	}

	out, err := c.ai.GenerateStructured(ctx, llm.GenerateInput{
		Stage:         "intent",
		SystemPrompt:  fmt.Sprintf(intentSystemPrompt, gateLanguage),
		PromptVersion: intentPromptVersion,
		UserPrompt:    query,
		Schema:        intentSchema,
		Temperature:   c.temp,
		Timeout:       c.timeouts.Intent,
	})
	if err != nil {
		return nil, err
	}

	var intent models.IntentResult
	if err := json.Unmarshal(out.Raw, &intent); err != nil {
		return nil, &llm.StageError{Stage: "intent", Kind: llm.KindParseError, Err: err}
	}
	if intent.Route == models.RouteLandmark && intent.LandmarkText == nil {
		return nil, &llm.StageError{
			Stage: "intent",
			Kind:  llm.KindSchemaInvalid,
			Err:   fmt.Errorf("landmark route without landmarkText"),
		}
	}

	c.applyCategoryFallback(query, &intent)

	c.logger.Info("intent_decision",
		zap.String("route", string(intent.Route)),
		zap.Float64("confidence", intent.Confidence),
		zap.String("language", intent.Language),
		zap.String("region_candidate", intent.RegionCandidate),
		zap.String("canonical_category", intent.CanonicalCategory),
		zap.String("prompt_hash", out.PromptHash),
		zap.String("schema_hash", out.SchemaHash),
	)

	c.memo.SetIntent(query, gateLanguage, ctxHash, &intent)
	return &intent, nil
}

// lowCategoryConfidence is the threshold below which the deterministic
// keyword fallback overrides the model's canonical category.
const lowCategoryConfidence = 0.7

func (c *Classifier) applyCategoryFallback(query string, intent *models.IntentResult) {
	if intent.CanonicalCategory != "" && intent.Confidence >= lowCategoryConfidence {
		return
	}
	category, ok := FallbackCategory(query)
	if !ok {
		return
	}
	c.logger.Info("intent_fallback",
		zap.String("category", category),
		zap.String("previous", intent.CanonicalCategory),
		zap.Float64("confidence", intent.Confidence),
	)
	intent.CanonicalCategory = category
}

// PlanRoute projects the intent and shared filters into one concrete
// provider call plan.
func (c *Classifier) PlanRoute(ctx context.Context, query string, intent *models.IntentResult, filters *models.FinalSharedFilters, userLocation *models.LatLng) (*models.ProviderCallPlan, error) {
	userPrompt, err := buildRouteUserPrompt(query, intent, userLocation)
	if err != nil {
		return nil, &llm.StageError{Stage: "route_llm", Kind: llm.KindOther, Err: err}
	}

	out, err := c.ai.GenerateStructured(ctx, llm.GenerateInput{
		Stage:         "route_llm",
		SystemPrompt:  fmt.Sprintf(routeSystemPrompt, filters.ProviderLanguage, filters.RegionCode),
		PromptVersion: routePromptVersion,
		UserPrompt:    userPrompt,
		Schema:        routeSchema,
		Temperature:   c.temp,
		Timeout:       c.timeouts.RouteLLM,
	})
	if err != nil {
		return nil, err
	}

	var plan models.ProviderCallPlan
	if err := json.Unmarshal(out.Raw, &plan); err != nil {
		return nil, &llm.StageError{Stage: "route_llm", Kind: llm.KindParseError, Err: err}
	}
	if err := validatePlanUnion(&plan); err != nil {
		return nil, &llm.StageError{Stage: "route_llm", Kind: llm.KindSchemaInvalid, Err: err}
	}
	plan.Language = filters.ProviderLanguage
	plan.Region = filters.RegionCode

	c.logger.Info("route_plan",
		zap.String("route", string(plan.Route)),
		zap.Bool("has_city_text", plan.CityText != nil),
		zap.String("prompt_hash", out.PromptHash),
		zap.String("schema_hash", out.SchemaHash),
	)
	return &plan, nil
}

// Constraints extracts the post-filter constraint set. Runs concurrently
// with PlanRoute in the orchestrator.
func (c *Classifier) Constraints(ctx context.Context, query, language, ctxHash string) (*models.PostConstraints, error) {
	if cached, ok := c.memo.GetConstraints(query, language, ctxHash); ok {
		return cached, nil
	}

	out, err := c.ai.GenerateStructured(ctx, llm.GenerateInput{
		Stage:         "post_constraints",
		SystemPrompt:  postConstraintsSystemPrompt,
		PromptVersion: postConstraintsPromptVersion,
		UserPrompt:    query,
		Schema:        postConstraintsSchema,
		Temperature:   c.temp,
		Timeout:       c.timeouts.PostConstraints,
	})
	if err != nil {
		return nil, err
	}

	var constraints models.PostConstraints
	if err := json.Unmarshal(out.Raw, &constraints); err != nil {
		return nil, &llm.StageError{Stage: "post_constraints", Kind: llm.KindParseError, Err: err}
	}

	c.memo.SetConstraints(query, language, ctxHash, &constraints)
	return &constraints, nil
}

func buildRouteUserPrompt(query string, intent *models.IntentResult, userLocation *models.LatLng) (string, error) {
	payload := map[string]any{
		"query":  query,
		"intent": intent,
	}
	if userLocation != nil {
		payload["userLocation"] = userLocation
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal route prompt payload: %w", err)
	}
	return string(data), nil
}

func validatePlanUnion(plan *models.ProviderCallPlan) error {
	switch plan.Route {
	case models.RouteTextSearch:
		if plan.TextSearch == nil {
			return fmt.Errorf("TEXTSEARCH plan without textSearch body")
		}
	case models.RouteNearby:
		if plan.Nearby == nil {
			return fmt.Errorf("NEARBY plan without nearby body")
		}
	case models.RouteLandmark:
		if plan.Landmark == nil {
			return fmt.Errorf("LANDMARK plan without landmark body")
		}
	default:
		return fmt.Errorf("unknown plan route %q", plan.Route)
	}
	return nil
}
