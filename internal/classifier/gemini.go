package classifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"
)

const (
	// DefaultModel is the multimodal model used for the liveness audit.
	DefaultModel = "gemini-3-flash-preview"
	// DefaultTimeout bounds a single classification round trip.
	DefaultTimeout = 30 * time.Second

	tracerName = "github.com/thevault/vault/internal/classifier"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini classifier.
type GeminiConfig struct {
	APIKey  string
	Model   string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Gemini classifies snapshots with a Gemini multimodal model.
type Gemini struct {
	models  contentGenerator
	model   string
	timeout time.Duration
	logger  *slog.Logger
	tracer  trace.Tracer
	initErr error
}

// NewGemini builds a Gemini classifier. A missing API key or client setup
// failure does not error here; every Classify call then returns a negative
// verdict naming the cause.
func NewGemini(ctx context.Context, cfg GeminiConfig) *Gemini {
	g := newGemini(nil, cfg)
	if strings.TrimSpace(cfg.APIKey) == "" {
		g.initErr = ErrMissingCredential
		return g
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		g.initErr = fmt.Errorf("create genai client: %w", err)
		g.logger.Error("gemini client unavailable", slog.Any("error", err))
		return g
	}
	g.models = client.Models
	return g
}

func newGemini(models contentGenerator, cfg GeminiConfig) *Gemini {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Gemini{
		models:  models,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		logger:  cfg.Logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Classify sends the snapshot and challenge text to the model.
func (g *Gemini) Classify(ctx context.Context, req Request) Verdict {
	ctx, span := g.tracer.Start(ctx, "classifier.Classify", trace.WithAttributes(
		attribute.String("classifier.model", g.model),
		attribute.Int("classifier.image_bytes", len(req.ImageJPEG)),
	))
	defer span.End()

	verdict, err := g.classify(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		g.logger.Warn("liveness classification failed", slog.String("model", g.model), slog.Any("error", err))
		verdict = Negative(err)
	}
	span.SetAttributes(
		attribute.Bool("verdict.is_real", verdict.IsReal),
		attribute.Float64("verdict.confidence", verdict.Confidence),
	)
	return verdict
}

func (g *Gemini) classify(ctx context.Context, req Request) (Verdict, error) {
	if g.initErr != nil {
		return Verdict{}, g.initErr
	}
	if g.models == nil {
		return Verdict{}, ErrMissingCredential
	}
	if len(req.ImageJPEG) == 0 {
		return Verdict{}, ErrEmptyImage
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromBytes(req.ImageJPEG, "image/jpeg"),
			genai.NewPartFromText(Prompt(req.ChallengeText)),
		}, genai.RoleUser),
	}
	resp, err := g.models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   verdictSchema,
	})
	if err != nil {
		return Verdict{}, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil {
		return Verdict{}, ErrEmptyResponse
	}
	return ParseVerdict(resp.Text())
}

var verdictSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"isReal":     {Type: genai.TypeBoolean},
		"confidence": {Type: genai.TypeNumber},
		"sentiment":  {Type: genai.TypeString},
		"reasoning":  {Type: genai.TypeString},
	},
	Required: []string{"isReal", "confidence", "sentiment", "reasoning"},
}

// ParseVerdict decodes the model's JSON reply. All four fields are required;
// confidence is clamped to [0, 1].
func ParseVerdict(text string) (Verdict, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Verdict{}, ErrEmptyResponse
	}
	var raw struct {
		IsReal     *bool    `json:"isReal"`
		Confidence *float64 `json:"confidence"`
		Sentiment  *string  `json:"sentiment"`
		Reasoning  *string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return Verdict{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if raw.IsReal == nil || raw.Confidence == nil || raw.Sentiment == nil || raw.Reasoning == nil {
		return Verdict{}, fmt.Errorf("%w: missing required field", ErrMalformedResponse)
	}
	confidence := *raw.Confidence
	switch {
	case confidence < 0:
		confidence = 0
	case confidence > 1:
		confidence = 1
	}
	return Verdict{
		IsReal:     *raw.IsReal,
		Confidence: confidence,
		Sentiment:  strings.ToLower(strings.TrimSpace(*raw.Sentiment)),
		Reasoning:  strings.TrimSpace(*raw.Reasoning),
	}, nil
}
