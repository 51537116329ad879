package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/dinefind/dinefind/internal/pkg/config"
)

// GenerateInput is one structured-output call. The schema travels by value
// with the call; its hash and the prompt hash are attached to the output for
// drift detection.
type GenerateInput struct {
	Stage         string
	SystemPrompt  string
	PromptVersion string
	UserPrompt    string
	Schema        *genai.Schema
	Temperature   float32
	Timeout       time.Duration
}

// TokenUsage mirrors the model's reported token counts.
type TokenUsage struct {
	Prompt     int32
	Candidates int32
	Total      int32
}

// GenerateOutput carries the schema-conforming raw JSON plus observability
// metadata for the call.
type GenerateOutput struct {
	Raw           json.RawMessage
	PromptHash    string
	SchemaHash    string
	PromptVersion string
	Model         string
	Elapsed       time.Duration
	Usage         TokenUsage
}

// AIClient is the structured-output model capability: given a system prompt,
// a user prompt and a JSON schema, return a value conforming to the schema
// or fail with a typed *StageError. One attempt per call; stages fall back
// instead of retrying.
type AIClient interface {
	GenerateStructured(ctx context.Context, in GenerateInput) (*GenerateOutput, error)
}

// InteractionRecord is the observability record of one model call.
type InteractionRecord struct {
	Stage         string
	Model         string
	PromptVersion string
	PromptHash    string
	SchemaHash    string
	LatencyMs     int64
	Status        string
	ErrorKind     string
}

// Recorder persists interaction records without blocking the caller.
type Recorder interface {
	RecordAsync(ctx context.Context, rec InteractionRecord)
}

// GeminiClient implements AIClient over the Gemini API.
type GeminiClient struct {
	client   *genai.Client
	model    string
	logger   *zap.Logger
	recorder Recorder
}

var _ AIClient = (*GeminiClient)(nil)

// NewGeminiClient builds the model client. recorder may be nil.
func NewGeminiClient(ctx context.Context, cfg config.LLMConfig, logger *zap.Logger, recorder Recorder) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini api key is not configured")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		client:   client,
		model:    cfg.Model,
		logger:   logger,
		recorder: recorder,
	}, nil
}

// GenerateStructured performs one schema-constrained generation.
func (g *GeminiClient) GenerateStructured(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	tracer := otel.Tracer("LLMClient")
	ctx, span := tracer.Start(ctx, "GenerateStructured", trace.WithAttributes(
		attribute.String("llm.stage", in.Stage),
		attribute.String("llm.model", g.model),
	))
	defer span.End()

	promptHash := HashText(in.SystemPrompt)
	schemaHash, err := HashSchema(in.Schema)
	if err != nil {
		return nil, &StageError{Stage: in.Stage, Kind: KindOther, Err: err}
	}
	span.SetAttributes(
		attribute.String("llm.prompt_hash", promptHash),
		attribute.String("llm.schema_hash", schemaHash),
	)

	callCtx := ctx
	if in.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, in.Timeout)
		defer cancel()
	}

	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr(in.Temperature),
		ResponseMIMEType: "application/json",
		ResponseSchema:   in.Schema,
	}
	if in.SystemPrompt != "" {
		genCfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: in.SystemPrompt}},
		}
	}

	start := time.Now()
	resp, genErr := g.client.Models.GenerateContent(callCtx, g.model, genai.Text(in.UserPrompt), genCfg)
	elapsed := time.Since(start)

	fail := func(kind ErrorKind, cause error) (*GenerateOutput, error) {
		stageErr := &StageError{Stage: in.Stage, Kind: kind, Err: cause}
		span.RecordError(stageErr)
		span.SetStatus(codes.Error, string(kind))
		g.logger.Warn("Structured generation failed",
			zap.String("stage", in.Stage),
			zap.String("kind", string(kind)),
			zap.String("prompt_hash", promptHash),
			zap.String("schema_hash", schemaHash),
			zap.Duration("elapsed", elapsed),
			zap.Error(cause),
		)
		g.record(ctx, in, promptHash, schemaHash, elapsed, "error", string(kind))
		return nil, stageErr
	}

	if genErr != nil {
		return fail(classifyTransportError(callCtx, genErr), genErr)
	}

	text, err := responseText(resp)
	if err != nil {
		return fail(KindParseError, err)
	}
	text = cleanJSONBlock(text)
	if text == "" {
		return fail(KindParseError, errors.New("empty model response"))
	}
	if !json.Valid([]byte(text)) {
		return fail(KindParseError, errors.New("model response is not valid JSON"))
	}
	if err := ValidateStructured([]byte(text), in.Schema); err != nil {
		return fail(KindSchemaInvalid, err)
	}

	out := &GenerateOutput{
		Raw:           json.RawMessage(text),
		PromptHash:    promptHash,
		SchemaHash:    schemaHash,
		PromptVersion: in.PromptVersion,
		Model:         g.model,
		Elapsed:       elapsed,
	}
	if resp.UsageMetadata != nil {
		out.Usage = TokenUsage{
			Prompt:     resp.UsageMetadata.PromptTokenCount,
			Candidates: resp.UsageMetadata.CandidatesTokenCount,
			Total:      resp.UsageMetadata.TotalTokenCount,
		}
	}

	span.SetStatus(codes.Ok, "")
	g.logger.Debug("Structured generation complete",
		zap.String("stage", in.Stage),
		zap.String("prompt_hash", promptHash),
		zap.String("schema_hash", schemaHash),
		zap.Duration("elapsed", elapsed),
		zap.Int32("tokens_total", out.Usage.Total),
	)
	g.record(ctx, in, promptHash, schemaHash, elapsed, "ok", "")

	return out, nil
}

// record ships the interaction to the recorder off the request path. The
// context is detached so request cancellation cannot drop the record.
func (g *GeminiClient) record(ctx context.Context, in GenerateInput, promptHash, schemaHash string, elapsed time.Duration, status, errorKind string) {
	if g.recorder == nil {
		return
	}
	g.recorder.RecordAsync(context.WithoutCancel(ctx), InteractionRecord{
		Stage:         in.Stage,
		Model:         g.model,
		PromptVersion: in.PromptVersion,
		PromptHash:    promptHash,
		SchemaHash:    schemaHash,
		LatencyMs:     elapsed.Milliseconds(),
		Status:        status,
		ErrorKind:     errorKind,
	})
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", errors.New("no candidates returned")
	}
	if resp.Candidates[0].Content == nil {
		return "", errors.New("candidate has no content")
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part != nil && part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

// cleanJSONBlock strips markdown code fences some models wrap around JSON.
func cleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}
